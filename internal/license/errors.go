package license

import "errors"

// Error codes for license operations, surfaced in logs and typed results.
// Raw cryptographic failure text never reaches the end user; the UI maps
// these to coarse states only.
const (
	ErrCodeInvalidKey     = "INVALID_LICENSE_KEY"
	ErrCodeExpired        = "LICENSE_EXPIRED"
	ErrCodeTampered       = "TAMPER_DETECTED"
	ErrCodeDeviceMismatch = "DEVICE_MISMATCH"
	ErrCodeStorageFailed  = "STORAGE_UNAVAILABLE"
	ErrCodeRateLimited    = "RATE_LIMITED"
)

// Sentinel errors for callers that branch on failure kind.
var (
	// ErrAllLocationsFailed is the only storage condition surfaced to
	// callers: with every location gone, no license state can be tracked at
	// all. Individual location failures degrade to "absent" silently.
	ErrAllLocationsFailed = errors.New("all storage locations failed")

	// ErrIdentityUnavailable means no stable platform identifier could be
	// derived, so nothing can be validated or signed.
	ErrIdentityUnavailable = errors.New("device identity unavailable")
)

// Validation error strings accumulated into Result.Errors. Diagnostic detail
// for logs and support, not user-facing copy.
const (
	errPackageMismatch  = "package id mismatch"
	errSignatureFailed  = "signature verification failed"
	errVersionMismatch  = "data version mismatch"
	errClockFuture      = "trial start date in the future"
	errClockTooOld      = "trial start date predates product release"
	errClockUnparseable = "trial start date unparseable"
)
