package license

import (
	"fmt"

	"billcli/internal/config"
	"billcli/internal/digest"
)

// DeriveDeviceKey derives the per-device signing key from the embedded
// secret. Payloads are signed with this derived key, never with the secret
// itself, so every signature stays bound to one device even if the secret is
// extracted from the binary.
func DeriveDeviceKey(deviceIdentity string) string {
	return digest.MAC(config.EmbeddedSecret, deviceIdentity)
}

// CanonicalString is the canonical serialization signatures are computed
// over. Explicit fixed field order:
//
//	v<version>|<trial start date>|<device fingerprint>|<license key or empty>
//
// Signing and verification both go through this one encoder; any change to
// the order or separators invalidates every signature in the field.
func CanonicalString(p Payload) string {
	return fmt.Sprintf("v%d|%s|%s|%s",
		p.Version, p.TrialStartDate, p.DeviceFingerprint, p.LicenseKey)
}

// Sign computes the payload signature using the key derived from the
// payload's own fingerprint.
func Sign(p Payload) string {
	return digest.MAC(DeriveDeviceKey(p.DeviceFingerprint), CanonicalString(p))
}

// NewSignedData builds the persisted record for a payload.
func NewSignedData(p Payload) SignedData {
	return SignedData{Payload: p, Signature: Sign(p)}
}

// Verify checks a stored record against the LIVE device identity, not the
// one embedded in the payload. A record copied from device A carries A's
// fingerprint, so re-signing with B's live key will not match; an attacker
// who also edits the stored fingerprint field breaks the signature instead.
// Both checks run: the recomputed signature must match exactly AND the
// payload fingerprint must equal the live identity.
func Verify(data SignedData, liveDeviceIdentity string) bool {
	expected := digest.MAC(DeriveDeviceKey(liveDeviceIdentity), CanonicalString(data.Payload))
	return digest.Equal(data.Signature, expected) &&
		data.Payload.DeviceFingerprint == liveDeviceIdentity
}

// VerifySignatureOnly checks only the MAC with the live identity, leaving the
// fingerprint-equality decision to the caller. The validation engine needs
// the two outcomes separately: a bad MAC scores toward tampering while a
// foreign fingerprint means copied data and resets the trial.
func VerifySignatureOnly(data SignedData, liveDeviceIdentity string) bool {
	expected := digest.MAC(DeriveDeviceKey(liveDeviceIdentity), CanonicalString(data.Payload))
	return digest.Equal(data.Signature, expected)
}
