package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// PrefsLocation stores the license blob inside a JSON key-value preference
// file shared with the rest of the application. Other preference keys are
// preserved on write.
type PrefsLocation struct {
	path string
	key  string
	mu   sync.Mutex
}

// NewPrefsLocation creates a preference-store location writing the given key
// in the preference file at path.
func NewPrefsLocation(path, key string) *PrefsLocation {
	return &PrefsLocation{path: path, key: key}
}

func (p *PrefsLocation) Name() string { return "prefs" }

func (p *PrefsLocation) Prepare(ctx context.Context) error { return nil }

func (p *PrefsLocation) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prefs, err := p.load()
	if err != nil {
		return nil, err
	}
	raw, ok := prefs[p.key]
	if !ok {
		return nil, nil
	}
	return raw, nil
}

func (p *PrefsLocation) Write(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prefs, err := p.load()
	if err != nil {
		// A corrupt preference file must not make the location permanently
		// unwritable; start over with just our key.
		prefs = map[string]json.RawMessage{}
	}
	prefs[p.key] = json.RawMessage(blob)

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return writeFileAtomic(p.path, data)
}

func (p *PrefsLocation) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preference file: %w", err)
	}

	var prefs map[string]json.RawMessage
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to parse preference file: %w", err)
	}
	if prefs == nil {
		prefs = map[string]json.RawMessage{}
	}
	return prefs, nil
}
