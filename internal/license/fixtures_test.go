package license

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"billcli/internal/config"
	"billcli/internal/storage"
)

// Stable stand-in identities. Production identities are 64-char hex digests;
// the codec only cares about the first 12 characters differing.
const (
	deviceA = "a3f09c1d77e24b88ffeeddccbbaa99887766554433221100aabbccddeeff0011"
	deviceB = "b4e11d2e88f35c99ffeeddccbbaa99887766554433221100aabbccddeeff0011"
)

// testTime is "now" for deterministic trial arithmetic: well past the
// product launch date, mid-day so date truncation is exercised.
var testTime = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

// stubIdentity implements fingerprint.Provider with fixed answers.
type stubIdentity struct {
	identity  string
	err       error
	packageOK bool
}

func (s *stubIdentity) DeviceIdentity() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.identity, nil
}

func (s *stubIdentity) VerifyPackageIdentity() bool { return s.packageOK }

// memLocation is an in-memory storage.Location with injectable failures.
type memLocation struct {
	name      string
	mu        sync.Mutex
	blob      []byte
	failRead  bool
	failWrite bool
}

func (l *memLocation) Name() string { return l.name }

func (l *memLocation) Prepare(ctx context.Context) error { return nil }

func (l *memLocation) Read(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failRead {
		return nil, errors.New("injected read failure")
	}
	if l.blob == nil {
		return nil, nil
	}
	cp := make([]byte, len(l.blob))
	copy(cp, l.blob)
	return cp, nil
}

func (l *memLocation) Write(ctx context.Context, blob []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWrite {
		return errors.New("injected write failure")
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	l.blob = cp
	return nil
}

// set stores a signed record directly, bypassing the coordinator.
func (l *memLocation) set(t *testing.T, data SignedData) {
	t.Helper()
	blob, err := json.Marshal(data)
	require.NoError(t, err)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blob = blob
}

// get returns the stored record, or nil when empty.
func (l *memLocation) get(t *testing.T) *SignedData {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.blob == nil {
		return nil
	}
	var data SignedData
	require.NoError(t, json.Unmarshal(l.blob, &data))
	return &data
}

func threeMemLocations() (*memLocation, *memLocation, *memLocation) {
	return &memLocation{name: "prefs"}, &memLocation{name: "sqlite"}, &memLocation{name: "file"}
}

func testConfig() config.LicenseConfig {
	return config.LicenseConfig{
		CacheTTL:       5 * time.Minute,
		StorageTimeout: 5 * time.Second,
		// Effectively unlimited; throttle behavior has its own test.
		ActivationRate:  1000,
		ActivationBurst: 1000,
	}
}

// newTestManager wires a manager over in-memory locations with a frozen
// clock.
func newTestManager(identity string, locs ...storage.Location) *Manager {
	m := NewManager(testConfig(),
		&stubIdentity{identity: identity, packageOK: true},
		NewStorageManager(5*time.Second, locs...),
	)
	m.now = func() time.Time { return testTime }
	return m
}

// payloadFor builds a plausible in-window trial payload for an identity.
func payloadFor(identity string) Payload {
	return Payload{
		TrialStartDate:    testTime.AddDate(0, 0, -5).Format(dateLayout),
		DeviceFingerprint: identity,
		Version:           config.PayloadVersion,
	}
}

func advance(m *Manager, d time.Duration) {
	current := m.now()
	m.now = func() time.Time { return current.Add(d) }
}
