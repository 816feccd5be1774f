// Package fingerprint derives the stable per-installation device identity the
// license system binds signatures and activation keys to.
//
// The identity hashes the primary platform identifier (MAC address, hostname
// fallback) together with the application package id. The secondary install
// identifier is generated once per installation and only ever used as a
// cross-check: it changes on every reinstall, so including it in the hash
// would invalidate the fingerprint each time the app is reinstalled.
package fingerprint

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"

	"billcli/internal/config"
	"billcli/internal/digest"
)

// Provider supplies the live device identity and package check to the
// validation engine. Tests substitute a stub implementation.
type Provider interface {
	DeviceIdentity() (string, error)
	VerifyPackageIdentity() bool
}

// Manager computes and caches the device identity for the process lifetime.
type Manager struct {
	mu            sync.RWMutex
	identity      string
	installIDFile string
	log           *slog.Logger
}

// NewManager creates a fingerprint manager. installIDFile is where the
// secondary install identifier is persisted; empty disables it.
func NewManager(installIDFile string) *Manager {
	return &Manager{
		installIDFile: installIDFile,
		log:           slog.Default().With("component", "fingerprint"),
	}
}

// DeviceIdentity returns the canonical device identity string: the hash of
// the primary platform identifier combined with the package id. Cached after
// first computation.
func (m *Manager) DeviceIdentity() (string, error) {
	m.mu.RLock()
	if m.identity != "" {
		defer m.mu.RUnlock()
		return m.identity, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity != "" {
		return m.identity, nil
	}

	primary, err := primaryIdentifier()
	if err != nil {
		return "", fmt.Errorf("failed to derive device identity: %w", err)
	}

	m.identity = digest.HexString(primary + "|" + config.ExpectedPackageID)
	m.log.Debug("device identity derived",
		slog.String("action", "identity_derived"),
		slog.Int("primary_len", len(primary)),
	)
	return m.identity, nil
}

// ClearCache drops the cached identity. Test isolation hook.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = ""
}

// InstallID returns the secondary install-specific identifier, generating and
// persisting one on first use. It is a cross-check only and never part of the
// device identity hash.
func (m *Manager) InstallID() (string, error) {
	if m.installIDFile == "" {
		return "", fmt.Errorf("install id storage not configured")
	}

	if data, err := os.ReadFile(m.installIDFile); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.WriteFile(m.installIDFile, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist install id: %w", err)
	}
	m.log.Info("install id generated",
		slog.String("action", "install_id_created"),
	)
	return id, nil
}

// VerifyPackageIdentity compares the running binary's main module path with
// the expected package id. Builds without build info (go test, stripped dev
// builds) pass open: this is a documented escape hatch, not a security
// boundary.
func (m *Manager) VerifyPackageIdentity() bool {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Path == "" {
		return true
	}
	return info.Main.Path == config.ExpectedPackageID
}

// primaryIdentifier returns the most stable platform identifier available:
// the first MAC address of an up, non-loopback interface, falling back to any
// interface MAC, then to the hostname.
func primaryIdentifier() (string, error) {
	if mac, err := macAddress(); err == nil {
		return mac, nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("no MAC address and no hostname available: %w", err)
	}
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return "", fmt.Errorf("no stable platform identifier available")
	}
	return "host:" + hostname, nil
}

// macAddress retrieves the primary network interface MAC address.
func macAddress() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to get network interfaces: %w", err)
	}

	// Prefer up, non-loopback interfaces
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	// Fallback: any interface with a MAC address
	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	return "", fmt.Errorf("no valid MAC address found")
}

// Display renders a device identity for out-of-band sharing: the first 16 hex
// characters uppercased and dash-grouped in fours. Support channels use this
// to request activation keys; it carries no trust weight itself.
func Display(identity string) string {
	short := identity
	if len(short) > 16 {
		short = short[:16]
	}
	short = strings.ToUpper(short)

	var groups []string
	for i := 0; i < len(short); i += 4 {
		end := i + 4
		if end > len(short) {
			end = len(short)
		}
		groups = append(groups, short[i:end])
	}
	return strings.Join(groups, "-")
}
