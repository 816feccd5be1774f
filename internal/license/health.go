package license

import (
	"context"
	"time"
)

// HealthStatus represents the overall health of the license subsystem.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthReport summarizes storage availability, consensus, and cache state
// for diagnostics. Consumed by the licstatus tool and support tooling; it
// carries no trust weight.
type HealthReport struct {
	Status         HealthStatus    `json:"status"`
	Locations      map[string]bool `json:"locations"`
	ConsensusCount int             `json:"consensus_count"`
	LastValidation *Result         `json:"last_validation,omitempty"`
	CacheHits      int64           `json:"cache_hits"`
	CacheMisses    int64           `json:"cache_misses"`
	CacheAge       time.Duration   `json:"cache_age"`
	CheckedAt      time.Time       `json:"checked_at"`
}

// HealthCheck probes each storage location, recomputes the consensus count,
// and reports cache statistics alongside the last validation result.
func (m *Manager) HealthCheck(ctx context.Context) HealthReport {
	locations := m.store.Probe(ctx)
	consensus := m.store.CountMatching(m.store.ReadAll(ctx))
	hits, misses, age, cached := m.cache.stats(m.now())

	report := HealthReport{
		Status:         HealthStatusHealthy,
		Locations:      locations,
		ConsensusCount: consensus,
		LastValidation: m.cache.peek(),
		CacheHits:      hits,
		CacheMisses:    misses,
		CheckedAt:      m.now(),
	}
	if cached {
		report.CacheAge = age
	}

	readable := 0
	for _, ok := range locations {
		if ok {
			readable++
		}
	}
	switch {
	case readable == 0:
		report.Status = HealthStatusUnhealthy
	case readable < len(locations) || (consensus > 0 && consensus < 3):
		report.Status = HealthStatusDegraded
	case report.LastValidation != nil && len(report.LastValidation.Errors) > 0:
		report.Status = HealthStatusDegraded
	}
	return report
}
