// Package keycode encodes and validates the human-shareable activation key.
//
// A key is 16 uppercase alphanumerics presented as four dash-separated
// groups: the first 12 characters are the first 12 characters of the device
// identity, the last 4 are a checksum binding the key to the embedded secret.
// Generation runs in the vendor's offline keygen tool from a fingerprint the
// customer reports; validation runs on the device against the live identity.
package keycode

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"billcli/internal/config"
	"billcli/internal/digest"
)

const (
	keyLength     = config.LicenseKeyLength
	devicePartLen = 12
	checksumLen   = 4
	groupSize     = 4
)

// Generate constructs the activation key for a device identity. Pure
// function: it never touches device state, so it can run in the offline
// keygen tool. The identity must carry at least 12 characters.
func Generate(deviceIdentity string) (string, error) {
	if len(deviceIdentity) < devicePartLen {
		return "", fmt.Errorf("device identity too short: %d characters", len(deviceIdentity))
	}

	devicePart := strings.ToUpper(deviceIdentity[:devicePartLen])
	return Format(devicePart + checksum(devicePart)), nil
}

// Validate reports whether key is the activation key for deviceIdentity.
// Boolean only: callers must not branch trust decisions on why a key failed.
func Validate(key, deviceIdentity string) bool {
	raw, ok := Normalize(key)
	if !ok || len(deviceIdentity) < devicePartLen {
		return false
	}

	expectedDevice := strings.ToUpper(deviceIdentity[:devicePartLen])
	devicePart := raw[:devicePartLen]
	if devicePart != expectedDevice {
		return false
	}
	return digest.Equal(raw[devicePartLen:], checksum(devicePart))
}

// Explain returns a qualitative failure reason for display purposes only.
// UX hint, never a trust signal: Validate remains the single authority.
func Explain(key, deviceIdentity string) string {
	raw, ok := Normalize(key)
	if !ok {
		return "malformed key"
	}
	if len(deviceIdentity) >= devicePartLen &&
		raw[:devicePartLen] != strings.ToUpper(deviceIdentity[:devicePartLen]) {
		return "key issued for a different device"
	}
	if raw[devicePartLen:] != checksum(raw[:devicePartLen]) {
		return "checksum mismatch"
	}
	return ""
}

// Normalize strips dashes and whitespace and uppercases the key. It returns
// false unless the result is exactly 16 alphanumeric characters of valid
// UTF-8 input.
func Normalize(key string) (string, bool) {
	if !utf8.ValidString(key) {
		return "", false
	}

	raw := strings.ToUpper(strings.TrimSpace(key))
	raw = strings.ReplaceAll(raw, "-", "")
	if len(raw) != keyLength {
		return "", false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", false
		}
	}
	return raw, true
}

// Format renders a raw 16-character key as four dash-separated groups.
func Format(raw string) string {
	var groups []string
	for i := 0; i < len(raw); i += groupSize {
		end := i + groupSize
		if end > len(raw) {
			end = len(raw)
		}
		groups = append(groups, raw[i:end])
	}
	return strings.Join(groups, "-")
}

// checksum is the first 4 hex characters of hash(devicePart + secret),
// uppercased.
func checksum(devicePart string) string {
	return strings.ToUpper(digest.HexString(devicePart + config.EmbeddedSecret)[:checksumLen])
}
