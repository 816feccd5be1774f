package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceIdentityStableAndCached(t *testing.T) {
	m := NewManager("")

	first, err := m.DeviceIdentity()
	require.NoError(t, err)
	require.Len(t, first, 64, "identity is a 256-bit hex digest")

	second, err := m.DeviceIdentity()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClearCacheRecomputesSameIdentity(t *testing.T) {
	m := NewManager("")

	first, err := m.DeviceIdentity()
	require.NoError(t, err)

	m.ClearCache()

	second, err := m.DeviceIdentity()
	require.NoError(t, err)
	assert.Equal(t, first, second, "identity must survive a cache clear on the same machine")
}

func TestInstallIDPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".install_id")
	m := NewManager(path)

	id, err := m.InstallID()
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Second call reads the persisted value rather than regenerating
	again, err := m.InstallID()
	require.NoError(t, err)
	assert.Equal(t, id, again)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), id)
}

func TestInstallIDUnconfigured(t *testing.T) {
	m := NewManager("")
	_, err := m.InstallID()
	assert.Error(t, err)
}

func TestVerifyPackageIdentityPassesOpenInTests(t *testing.T) {
	// go test binaries carry build info for this module; either way the check
	// must not block a dev build.
	m := NewManager("")
	assert.True(t, m.VerifyPackageIdentity())
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		want     string
	}{
		{
			name:     "full digest truncated to 16",
			identity: "a3f09c1d77e24b8800112233deadbeef5566",
			want:     "A3F0-9C1D-77E2-4B88",
		},
		{
			name:     "short identity grouped as-is",
			identity: "abcdef",
			want:     "ABCD-EF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Display(tt.identity))
		})
	}
}
