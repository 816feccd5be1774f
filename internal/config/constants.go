package config

import "time"

// Application constants - all hardcoded values for the BillCLI license core.
const (
	// Application Info
	AppName    = "BillCLI"
	AppVersion = "1.2.0"

	// ExpectedPackageID is the package identity the validation engine checks
	// the running binary against. Build-info comparison, not a security
	// boundary: dev builds without build info pass open.
	ExpectedPackageID = "billcli"

	// License System Constants
	TrialDurationDays = 14
	PayloadVersion    = 1

	// TamperThreshold is the integrity score below which a signature failure
	// escalates to the tampered state. A signature mismatch on a record bound
	// to this device always falls below it; the remaining score records how
	// many other checks had already degraded. Records bound to a different
	// device never reach this check - they reset the trial instead.
	TamperThreshold = 70

	// MaxClockDrift is how far in the future a stored trial start date may sit
	// before the clock-consistency check rejects it.
	MaxClockDrift = 24 * time.Hour

	// License Key Format
	LicenseKeyLength  = 16
	LicenseKeyPattern = "^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$"

	// EmbeddedSecret is compiled into every distributed binary and roots the
	// device key derivation and the license key checksum. Deterrence only: an
	// attacker with the binary can extract it, which the design accepts.
	EmbeddedSecret = "BILL-License-Root-2024-Do-Not-Share"

	// Storage Constants
	StorageRecordKey  = "license_state"
	PrefsFileName     = "prefs.json"
	DatabaseFileName  = "billcli.db"
	LicenseFileName   = ".license.dat"
	InstallIDFileName = ".install_id"
	DefaultDataDir    = "data"

	// Storage I/O bound. Local disk only, so short.
	StorageTimeout = 5 * time.Second

	// Rate Limiting
	ActivationRateLimit = 10 // activation attempts per minute
	ActivationBurstSize = 3

	// Cache
	DefaultCacheTTL = 5 * time.Minute
)

// ProductLaunchDate is the lower bound for any plausible trial start date.
// A stored date before this predates the product's existence.
var ProductLaunchDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
