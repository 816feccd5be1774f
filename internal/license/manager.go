package license

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"billcli/internal/config"
	"billcli/internal/fingerprint"
	"billcli/internal/keycode"
)

// Manager orchestrates device identity, signed storage, and the license
// state machine into a single validation surface for the application.
//
// Lifecycle: unknown → trial (first run) → licensed (activation) or expired
// (trial window elapsed); any state can fall to tampered when a signature
// failure combines with a low integrity score. tampered and expired recover
// only through explicit key activation, which re-derives fresh signed state.
type Manager struct {
	cfg      config.LicenseConfig
	identity fingerprint.Provider
	store    *StorageManager

	cache  resultCache
	flight singleflight.Group

	// Serializes full validations and activations so a repair cycle can
	// never interleave with an in-progress activation write.
	opMu sync.Mutex

	limiter *rate.Limiter
	metrics *Metrics
	log     *slog.Logger

	// Clock hook for trial lifecycle tests.
	now func() time.Time
}

// NewManager creates a license manager over the given identity provider and
// storage coordinator.
func NewManager(cfg config.LicenseConfig, identity fingerprint.Provider, store *StorageManager) *Manager {
	m := &Manager{
		cfg:      cfg,
		identity: identity,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ActivationRate), cfg.ActivationBurst),
		log:      slog.Default().With("component", "license"),
		now:      time.Now,
	}

	metrics, err := InitMetrics()
	if err != nil {
		m.log.Warn("license metrics unavailable",
			slog.String("action", "metrics_init"),
			slog.String("error", err.Error()),
		)
	} else {
		m.metrics = metrics
	}
	return m
}

// Initialize prepares the storage locations (creating the database table on
// first run) and performs the startup full validation. Call once at startup.
func (m *Manager) Initialize(ctx context.Context) (*Result, error) {
	if err := m.store.Prepare(ctx); err != nil {
		return nil, err
	}
	return m.FullValidation(ctx)
}

// FullValidation runs the complete validation pass: all three locations,
// signature and consistency checks, consensus repair, and state
// determination. Concurrent callers collapse into one in-flight validation.
func (m *Manager) FullValidation(ctx context.Context) (*Result, error) {
	v, err, _ := m.flight.Do("full_validation", func() (any, error) {
		m.opMu.Lock()
		defer m.opMu.Unlock()

		start := m.now()
		result, err := m.runFullValidation(ctx)
		if err != nil {
			m.logError(ctx, "full_validation", "validation aborted",
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		m.metrics.recordValidation(ctx, result, time.Since(start).Seconds())
		m.logInfo(ctx, "full_validation", "validation completed",
			slog.String("status", string(result.Status)),
			slog.Int("integrity_score", result.IntegrityScore),
			slog.Int("error_count", len(result.Errors)),
		)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// runFullValidation holds the validation pipeline. Caller holds opMu.
func (m *Manager) runFullValidation(ctx context.Context) (*Result, error) {
	liveIdentity, err := m.identity.DeviceIdentity()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	score := 100
	var issues []string

	if !m.identity.VerifyPackageIdentity() {
		issues = append(issues, errPackageMismatch)
		score -= 30
		m.logWarn(ctx, "package_check", "package identity mismatch")
	}

	records := m.store.ReadAll(ctx)
	matches := m.store.CountMatching(records)

	// No data anywhere is the first-run path, not an error.
	if matches == 0 {
		m.logInfo(ctx, "full_validation", "no license data found, starting trial")
		return m.startNewTrial(ctx, liveIdentity)
	}

	if matches < 3 {
		issues = append(issues, fmt.Sprintf("%d/3 storage locations agree", matches))
		score -= 15 * (3 - matches)
	}

	trusted := m.store.MostTrusted(records)
	if trusted == nil {
		return m.startNewTrial(ctx, liveIdentity)
	}

	// A record bound to a different device means copied app data, not an
	// attack on this installation: its signature can never match the live
	// key, so provenance is decided before the integrity verdict. Treated as
	// a fresh installation - a copied blob grants a reset, never a head
	// start.
	if trusted.Payload.DeviceFingerprint != liveIdentity {
		m.metrics.addFingerprintMismatch(ctx)
		m.logWarn(ctx, "device_mismatch", "stored record bound to a different device")
		return m.startNewTrial(ctx, liveIdentity)
	}

	if !VerifySignatureOnly(*trusted, liveIdentity) {
		issues = append(issues, errSignatureFailed)
		score -= 40
		if score < config.TamperThreshold {
			// A failed signature on a record bound to this device with a
			// degraded score is treated as an attack, not data loss: no
			// repair, no trial fallback.
			result := &Result{
				Status:         StatusTampered,
				IntegrityScore: clampScore(score),
				TrialStartDate: trusted.Payload.TrialStartDate,
				Errors:         issues,
				ValidatedAt:    m.now(),
			}
			m.cache.set(*result, m.now())
			m.logWarn(ctx, "tamper_detected", "validation short-circuited to tampered",
				slog.Int("integrity_score", result.IntegrityScore),
			)
			return result, nil
		}
	}

	if trusted.Payload.Version != config.PayloadVersion {
		issues = append(issues, errVersionMismatch)
		score -= 10
	}

	if reason, ok := m.clockConsistent(trusted.Payload); !ok {
		issues = append(issues, reason)
		score -= 20
	}

	if matches < 3 {
		if err := m.store.Repair(ctx, *trusted); err != nil {
			m.logWarn(ctx, "storage_repair", "repair failed",
				slog.String("error", err.Error()),
			)
		} else {
			m.metrics.addRepair(ctx)
		}
	}

	status, daysRemaining := m.determineStatus(trusted)
	result := &Result{
		Status:         status,
		IntegrityScore: clampScore(score),
		TrialStartDate: trusted.Payload.TrialStartDate,
		DaysRemaining:  daysRemaining,
		LicenseKey:     trusted.Payload.LicenseKey,
		Errors:         issues,
		ValidatedAt:    m.now(),
	}
	m.cache.set(*result, m.now())
	return result, nil
}

// startNewTrial initializes fresh trial state: the only path that creates
// trial data, reached on genuinely new installs and on any detected device
// mismatch.
func (m *Manager) startNewTrial(ctx context.Context, deviceIdentity string) (*Result, error) {
	payload := Payload{
		TrialStartDate:    m.today(),
		DeviceFingerprint: deviceIdentity,
		Version:           config.PayloadVersion,
	}
	signed := NewSignedData(payload)

	if err := m.store.WriteAll(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to persist new trial: %w", err)
	}

	result := &Result{
		Status:         StatusTrial,
		IntegrityScore: 100,
		TrialStartDate: payload.TrialStartDate,
		DaysRemaining:  intPtr(config.TrialDurationDays),
		ValidatedAt:    m.now(),
	}
	m.cache.set(*result, m.now())
	m.logInfo(ctx, "trial_started", "new trial initialized",
		slog.String("trial_start", payload.TrialStartDate),
	)
	return result, nil
}

// QuickValidation returns the cached result when younger than maxAge and
// falls back to a full validation otherwise. Frequent permission checks use
// this to avoid touching all three storage locations each time.
func (m *Manager) QuickValidation(ctx context.Context, maxAge time.Duration) (*Result, error) {
	if cached, ok := m.cache.get(m.now(), maxAge); ok {
		m.metrics.recordCache(ctx, true)
		return cached, nil
	}
	m.metrics.recordCache(ctx, false)
	return m.FullValidation(ctx)
}

// Refresh forces a full re-validation. Called on app foreground.
func (m *Manager) Refresh(ctx context.Context) (*Result, error) {
	return m.FullValidation(ctx)
}

// QuickRefresh re-validates through the cache with the configured TTL.
func (m *Manager) QuickRefresh(ctx context.Context) (*Result, error) {
	return m.QuickValidation(ctx, m.cfg.CacheTTL)
}

// Activate validates the key against the live device and, on success,
// persists a fresh signed record carrying the key. The original trial start
// date is preserved so activation never fabricates a new trial window.
func (m *Manager) Activate(ctx context.Context, key string) ActivationResult {
	if !m.limiter.Allow() {
		m.metrics.addRateLimitHit(ctx)
		m.logWarn(ctx, "activation", "activation throttled")
		return ActivationResult{Success: false, Error: "too many activation attempts, please try again later"}
	}

	liveIdentity, err := m.identity.DeviceIdentity()
	if err != nil {
		return ActivationResult{Success: false, Error: "device identity unavailable"}
	}

	if !keycode.Validate(key, liveIdentity) {
		// Normal invalid input, not a security event.
		m.metrics.recordActivation(ctx, false)
		m.logInfo(ctx, "activation", "invalid license key",
			slog.String("license_key", MaskLicenseKey(key)),
		)
		return ActivationResult{Success: false, Error: "invalid license key"}
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	// Preserve the original trial start for audit purposes; fall back to
	// today only when no usable record exists.
	trialStart := m.today()
	if trusted := m.store.MostTrusted(m.store.ReadAll(ctx)); trusted != nil {
		if _, err := trusted.Payload.TrialStart(); err == nil {
			trialStart = trusted.Payload.TrialStartDate
		}
	}

	raw, _ := keycode.Normalize(key)
	payload := Payload{
		TrialStartDate:    trialStart,
		DeviceFingerprint: liveIdentity,
		LicenseKey:        keycode.Format(raw),
		Version:           config.PayloadVersion,
	}

	if err := m.store.WriteAll(ctx, NewSignedData(payload)); err != nil {
		m.metrics.recordActivation(ctx, false)
		m.logError(ctx, "activation", "failed to persist activation",
			slog.String("error", err.Error()),
		)
		return ActivationResult{Success: false, Error: "could not save license activation"}
	}

	// Force the next permission check through a full validation.
	m.cache.clear()
	m.metrics.recordActivation(ctx, true)
	m.logInfo(ctx, "activation", "license activated",
		slog.String("license_key", MaskLicenseKey(payload.LicenseKey)),
		slog.String("trial_start", trialStart),
	)
	return ActivationResult{Success: true}
}

// CanPerformProtectedAction reports whether protected actions are allowed.
// Fail-open invariant: before any validation has run this returns true —
// core functionality is never blocked by an uninitialized or broken
// validation layer. This is a deliberate product decision, not a fallback.
func (m *Manager) CanPerformProtectedAction() bool {
	result := m.cache.peek()
	if result == nil {
		return true
	}
	return result.Status == StatusTrial || result.Status == StatusLicensed
}

// GetPermissionFlags derives the application permission flags from the
// current cached state. All three flags share one condition today.
func (m *Manager) GetPermissionFlags() PermissionFlags {
	allowed := m.CanPerformProtectedAction()
	return PermissionFlags{
		CanCreateBill:   allowed,
		CanEditBill:     allowed,
		CanEditSettings: allowed,
	}
}

// DisplayFingerprint returns the human-shareable device fingerprint used in
// support-channel key requests. Never part of any trust decision.
func (m *Manager) DisplayFingerprint() (string, error) {
	identity, err := m.identity.DeviceIdentity()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	return fingerprint.Display(identity), nil
}

// LastResult returns a copy of the most recent validation result, or nil
// before the first validation.
func (m *Manager) LastResult() *Result {
	return m.cache.peek()
}

// determineStatus decides licensed/trial/expired from the trusted record.
func (m *Manager) determineStatus(data *SignedData) (Status, *int) {
	if data.Payload.LicenseKey != "" &&
		keycode.Validate(data.Payload.LicenseKey, data.Payload.DeviceFingerprint) {
		// Permanent license: no remaining-days countdown.
		return StatusLicensed, nil
	}

	start, err := data.Payload.TrialStart()
	if err != nil {
		return StatusExpired, intPtr(0)
	}

	daysSinceStart := int(m.now().UTC().Sub(start).Hours() / 24)
	remaining := config.TrialDurationDays - daysSinceStart
	if remaining > 0 {
		return StatusTrial, intPtr(remaining)
	}
	return StatusExpired, intPtr(0)
}

// clockConsistent applies the clock plausibility heuristics: a future-dated
// trial start (clock set forward, trial taken, clock set back) or a start
// predating the product's release. Heuristics that raise the cost of naive
// clock manipulation, not proofs.
func (m *Manager) clockConsistent(p Payload) (string, bool) {
	start, err := p.TrialStart()
	if err != nil {
		return errClockUnparseable, false
	}
	if start.After(m.now().UTC().Add(config.MaxClockDrift)) {
		return errClockFuture, false
	}
	if start.Before(config.ProductLaunchDate) {
		return errClockTooOld, false
	}
	return "", true
}

func (m *Manager) today() string {
	return m.now().UTC().Format(dateLayout)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	return score
}
