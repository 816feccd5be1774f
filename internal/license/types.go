package license

import "time"

// Status is the license lifecycle state.
type Status string

const (
	// StatusUnknown is the pre-initialization default. Permission checks
	// fail open in this state: an internal validation bug must never block
	// the user's own data.
	StatusUnknown  Status = "unknown"
	StatusTrial    Status = "trial"
	StatusLicensed Status = "licensed"
	StatusExpired  Status = "expired"
	StatusTampered Status = "tampered"
)

// Payload is the record content persisted to every storage location.
// TrialStartDate must not sit in the future beyond the drift tolerance and
// must not predate the product launch; both are checked during validation,
// never silently corrected.
type Payload struct {
	TrialStartDate    string `json:"trial_start_date"` // calendar date, 2006-01-02, UTC
	DeviceFingerprint string `json:"device_fingerprint"`
	LicenseKey        string `json:"license_key,omitempty"`
	Version           int    `json:"version"`
}

// TrialStart parses the payload's trial start date.
func (p Payload) TrialStart() (time.Time, error) {
	return time.ParseInLocation(dateLayout, p.TrialStartDate, time.UTC)
}

const dateLayout = "2006-01-02"

// SignedData is the only persisted unit: a payload plus the MAC computed over
// its canonical serialization with the device-derived key.
type SignedData struct {
	Payload   Payload `json:"payload"`
	Signature string  `json:"signature"`
}

// Result is the outcome of one validation pass. Ephemeral: rebuilt from the
// stored record plus live checks on every full validation, never persisted.
type Result struct {
	Status         Status    `json:"status"`
	IntegrityScore int       `json:"integrity_score"` // 0..100
	TrialStartDate string    `json:"trial_start_date"`
	DaysRemaining  *int      `json:"days_remaining,omitempty"` // nil once licensed
	LicenseKey     string    `json:"license_key,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
	ValidatedAt    time.Time `json:"validated_at"`
}

// PermissionFlags gates the application's protected actions. All three
// currently derive from one condition; they stay separate fields so a future
// per-feature gate needs no API change.
type PermissionFlags struct {
	CanCreateBill   bool `json:"can_create_bill"`
	CanEditBill     bool `json:"can_edit_bill"`
	CanEditSettings bool `json:"can_edit_settings"`
}

// ActivationResult is returned by Activate. Invalid keys are normal input,
// not errors: the method never panics and never fails the process.
type ActivationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func intPtr(v int) *int { return &v }
