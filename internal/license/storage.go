package license

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"billcli/internal/storage"
)

// StorageManager reads and writes the signed license record across the three
// redundant locations and reconciles disagreements by majority vote. It owns
// no state beyond the locations it touches; consensus is recomputed on every
// read.
type StorageManager struct {
	// Fixed A→B→C order: prefs, sqlite, file. Tie-breaks and logs use it.
	locations []storage.Location
	timeout   time.Duration

	// Serializes read/reconcile cycles against writes so a repair from one
	// in-flight validation cannot overwrite a concurrent activation.
	mu sync.Mutex

	log *slog.Logger
}

// NewStorageManager builds the coordinator over the given locations.
func NewStorageManager(timeout time.Duration, locations ...storage.Location) *StorageManager {
	return &StorageManager{
		locations: locations,
		timeout:   timeout,
		log:       slog.Default().With("component", "license_storage"),
	}
}

// Prepare runs one-time setup on every location (the embedded database
// creates its table here). Individual failures degrade like read failures.
func (s *StorageManager) Prepare(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, loc := range s.locations {
		if err := loc.Prepare(ctx); err != nil {
			s.log.Warn("storage location prepare failed",
				slog.String("action", "storage_prepare"),
				slog.String("location", loc.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// ReadAll reads every location with independent failure isolation: a failed
// or missing location surfaces as a nil slot, never as an error. Reads run
// concurrently; slot order stays A→B→C regardless of completion order.
func (s *StorageManager) ReadAll(ctx context.Context) []*SignedData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAllLocked(ctx)
}

func (s *StorageManager) readAllLocked(ctx context.Context) []*SignedData {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records := make([]*SignedData, len(s.locations))
	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range s.locations {
		i, loc := i, loc
		g.Go(func() error {
			blob, err := loc.Read(gctx)
			if err != nil {
				s.log.Warn("storage location read failed",
					slog.String("action", "storage_read"),
					slog.String("location", loc.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if blob == nil {
				return nil
			}

			var data SignedData
			if err := json.Unmarshal(blob, &data); err != nil {
				s.log.Warn("storage location holds unparseable record",
					slog.String("action", "storage_read"),
					slog.String("location", loc.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			records[i] = &data
			return nil
		})
	}
	// Workers isolate their own failures, so this never returns an error.
	_ = g.Wait()
	return records
}

// CountMatching groups the non-nil records by signature and returns the size
// of the largest group: 0 when all locations are empty, 3 when fully
// consistent.
func (s *StorageManager) CountMatching(records []*SignedData) int {
	counts := map[string]int{}
	max := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		counts[r.Signature]++
		if counts[r.Signature] > max {
			max = counts[r.Signature]
		}
	}
	return max
}

// MostTrusted returns one member of the largest signature group, or nil when
// every location is empty. Ties break toward the first location in A→B→C
// order, so a two-location majority always beats a lone tampered outlier.
func (s *StorageManager) MostTrusted(records []*SignedData) *SignedData {
	counts := map[string]int{}
	max := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		counts[r.Signature]++
		if counts[r.Signature] > max {
			max = counts[r.Signature]
		}
	}
	if max == 0 {
		return nil
	}
	for _, r := range records {
		if r != nil && counts[r.Signature] == max {
			return r
		}
	}
	return nil
}

// WriteAll writes the record to every location concurrently. Partial failure
// is tolerated and logged; only total failure is an error, since losing all
// three locations means no license state can be tracked at all.
func (s *StorageManager) WriteAll(ctx context.Context, data SignedData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAllLocked(ctx, data)
}

func (s *StorageManager) writeAllLocked(ctx context.Context, data SignedData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]bool, len(s.locations))
	for i, loc := range s.locations {
		i, loc := i, loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loc.Write(ctx, blob); err != nil {
				s.log.Warn("storage location write failed",
					slog.String("action", "storage_write"),
					slog.String("location", loc.Name()),
					slog.String("error", err.Error()),
				)
				return
			}
			results[i] = true
		}()
	}
	wg.Wait()

	ok := 0
	for _, r := range results {
		if r {
			ok++
		}
	}
	if ok == 0 {
		return ErrAllLocationsFailed
	}
	if ok < len(s.locations) {
		s.log.Warn("partial storage write",
			slog.String("action", "storage_write"),
			slog.Int("succeeded", ok),
			slog.Int("total", len(s.locations)),
		)
	}
	return nil
}

// Repair rewrites every location with the trusted record, healing a minority
// or missing location opportunistically on the next successful validation.
func (s *StorageManager) Repair(ctx context.Context, trusted SignedData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("repairing storage locations",
		slog.String("action", "storage_repair"),
	)
	return s.writeAllLocked(ctx, trusted)
}

// Probe reports per-location availability for health checks: true means the
// location is readable (present or cleanly absent).
func (s *StorageManager) Probe(ctx context.Context) map[string]bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := make(map[string]bool, len(s.locations))
	for _, loc := range s.locations {
		_, err := loc.Read(ctx)
		out[loc.Name()] = err == nil
	}
	return out
}
