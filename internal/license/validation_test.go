package license

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billcli/internal/config"
	"billcli/internal/keycode"
)

func TestFreshInstallStartsTrial(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()
	m := newTestManager(deviceA, a, b, c)

	result, err := m.FullValidation(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusTrial, result.Status)
	assert.Equal(t, 100, result.IntegrityScore)
	require.NotNil(t, result.DaysRemaining)
	assert.Equal(t, config.TrialDurationDays, *result.DaysRemaining)
	assert.Empty(t, result.Errors)
	assert.Equal(t, testTime.Format(dateLayout), result.TrialStartDate)

	// All three locations hold the fresh signed record
	for _, loc := range []*memLocation{a, b, c} {
		got := loc.get(t)
		require.NotNil(t, got)
		assert.True(t, Verify(*got, deviceA))
	}
}

func TestTrialExpiresAfterWindow(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()
	m := newTestManager(deviceA, a, b, c)

	_, err := m.FullValidation(ctx)
	require.NoError(t, err)

	advance(m, 15*24*time.Hour)

	result, err := m.FullValidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, result.Status)
	require.NotNil(t, result.DaysRemaining)
	assert.Equal(t, 0, *result.DaysRemaining)
}

func TestTrialCountsDown(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()
	m := newTestManager(deviceA, a, b, c)

	_, err := m.FullValidation(ctx)
	require.NoError(t, err)

	advance(m, 5*24*time.Hour)

	result, err := m.FullValidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusTrial, result.Status)
	require.NotNil(t, result.DaysRemaining)
	assert.Equal(t, config.TrialDurationDays-5, *result.DaysRemaining)
}

func TestDeviceCopyResetsTrial(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	// A valid record from device B, copied wholesale into all locations of a
	// machine whose live identity is device A.
	foreign := NewSignedData(Payload{
		TrialStartDate:    testTime.AddDate(0, 0, -10).Format(dateLayout),
		DeviceFingerprint: deviceB,
		Version:           config.PayloadVersion,
	})
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, foreign)
	}

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)

	// Not tampered, not licensed, and no inherited countdown: a fresh trial.
	assert.Equal(t, StatusTrial, result.Status)
	require.NotNil(t, result.DaysRemaining)
	assert.Equal(t, config.TrialDurationDays, *result.DaysRemaining)
	assert.Equal(t, testTime.Format(dateLayout), result.TrialStartDate)

	// The foreign record is replaced with one bound to the live device.
	for _, loc := range []*memLocation{a, b, c} {
		got := loc.get(t)
		require.NotNil(t, got)
		assert.Equal(t, deviceA, got.Payload.DeviceFingerprint)
		assert.True(t, Verify(*got, deviceA))
	}
}

func TestEditedRecordShortCircuitsToTampered(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	// Attacker overwrites the license key field in every location without
	// re-signing. The signature strings still agree, so consensus holds;
	// verification against the live device key is what catches the edit.
	genuine := NewSignedData(payloadFor(deviceA))
	edited := genuine
	edited.Payload.LicenseKey = "AAAA-BBBB-CCCC-DDDD"
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, edited)
	}

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusTampered, result.Status)
	assert.Less(t, result.IntegrityScore, config.TamperThreshold)
	assert.Equal(t, 60, result.IntegrityScore)
	assert.Contains(t, result.Errors, errSignatureFailed)

	// No repair on the tamper path: storage is left untouched.
	got := a.get(t)
	require.NotNil(t, got)
	assert.Equal(t, edited.Payload.LicenseKey, got.Payload.LicenseKey)
}

func TestTamperedStateBlocksProtectedActions(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	genuine := NewSignedData(payloadFor(deviceA))
	edited := genuine
	edited.Payload.LicenseKey = "AAAA-BBBB-CCCC-DDDD"
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, edited)
	}

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusTampered, result.Status)

	assert.False(t, m.CanPerformProtectedAction())
	flags := m.GetPermissionFlags()
	assert.False(t, flags.CanCreateBill)
	assert.False(t, flags.CanEditBill)
	assert.False(t, flags.CanEditSettings)
}

func TestMinorityOutlierIsRepaired(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	genuine := NewSignedData(payloadFor(deviceA))
	a.set(t, genuine)
	b.set(t, genuine)
	c.set(t, SignedData{Payload: genuine.Payload, Signature: "forged"})

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)

	// Majority wins; the status is unaffected, the score records the
	// disagreement, and the outlier is healed.
	assert.Equal(t, StatusTrial, result.Status)
	assert.Equal(t, 85, result.IntegrityScore)
	assert.Contains(t, result.Errors, "2/3 storage locations agree")

	got := c.get(t)
	require.NotNil(t, got)
	assert.Equal(t, genuine.Signature, got.Signature)
}

func TestMissingLocationIsRepaired(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	genuine := NewSignedData(payloadFor(deviceA))
	a.set(t, genuine)
	b.set(t, genuine)
	// c empty

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusTrial, result.Status)

	got := c.get(t)
	require.NotNil(t, got)
	assert.Equal(t, genuine.Signature, got.Signature)
}

func TestPackageMismatchReducesScore(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	genuine := NewSignedData(payloadFor(deviceA))
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, genuine)
	}

	m := newTestManager(deviceA, a, b, c)
	m.identity = &stubIdentity{identity: deviceA, packageOK: false}

	result, err := m.FullValidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusTrial, result.Status)
	assert.Equal(t, 70, result.IntegrityScore)
	assert.Contains(t, result.Errors, errPackageMismatch)
}

func TestVersionMismatchIsNonFatal(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	p := payloadFor(deviceA)
	p.Version = config.PayloadVersion + 1
	signed := NewSignedData(p)
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, signed)
	}

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusTrial, result.Status)
	assert.Equal(t, 90, result.IntegrityScore)
	assert.Contains(t, result.Errors, errVersionMismatch)
}

func TestClockConsistency(t *testing.T) {
	tests := []struct {
		name       string
		trialStart string
		wantError  string
	}{
		{
			name:       "future-dated start",
			trialStart: testTime.AddDate(0, 0, 3).Format(dateLayout),
			wantError:  errClockFuture,
		},
		{
			name:       "predates product launch",
			trialStart: "2019-06-01",
			wantError:  errClockTooOld,
		},
		{
			name:       "unparseable",
			trialStart: "yesterday",
			wantError:  errClockUnparseable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a, b, c := threeMemLocations()

			p := payloadFor(deviceA)
			p.TrialStartDate = tt.trialStart
			signed := NewSignedData(p)
			for _, loc := range []*memLocation{a, b, c} {
				loc.set(t, signed)
			}

			m := newTestManager(deviceA, a, b, c)
			result, err := m.FullValidation(ctx)
			require.NoError(t, err)

			assert.Equal(t, 80, result.IntegrityScore)
			assert.Contains(t, result.Errors, tt.wantError)
		})
	}
}

func TestWithinDriftToleranceAccepted(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	// Start date a few hours ahead of "now" stays within MaxClockDrift.
	p := payloadFor(deviceA)
	p.TrialStartDate = testTime.Format(dateLayout)
	signed := NewSignedData(p)
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, signed)
	}

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 100, result.IntegrityScore)
}

func TestIdentityUnavailable(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()
	m := newTestManager(deviceA, a, b, c)
	m.identity = &stubIdentity{err: assert.AnError, packageOK: true}

	_, err := m.FullValidation(ctx)
	assert.ErrorIs(t, err, ErrIdentityUnavailable)
}

func TestLicensedStatusFromStoredKey(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	key, err := keycode.Generate(deviceA)
	require.NoError(t, err)

	p := payloadFor(deviceA)
	p.LicenseKey = key
	signed := NewSignedData(p)
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, signed)
	}

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusLicensed, result.Status)
	assert.Nil(t, result.DaysRemaining, "permanent license has no countdown")
	assert.Equal(t, key, result.LicenseKey)
}

func TestLicensedSurvivesExpiredTrialWindow(t *testing.T) {
	ctx := context.Background()
	a, b, c := threeMemLocations()

	key, err := keycode.Generate(deviceA)
	require.NoError(t, err)

	p := Payload{
		TrialStartDate:    testTime.AddDate(0, 0, -60).Format(dateLayout),
		DeviceFingerprint: deviceA,
		LicenseKey:        key,
		Version:           config.PayloadVersion,
	}
	signed := NewSignedData(p)
	for _, loc := range []*memLocation{a, b, c} {
		loc.set(t, signed)
	}

	m := newTestManager(deviceA, a, b, c)
	result, err := m.FullValidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusLicensed, result.Status)
}
