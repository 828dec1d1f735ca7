package usecase

import (
	"sync"
	"time"

	"MarketHub/internal/domain/models"
)

// healthTracker keeps rolling per-vendor health for the router. One
// success resets a vendor's error streak; models.UnhealthyAfter
// consecutive errors flip it unhealthy.
type healthTracker struct {
	mu        sync.Mutex
	primary   models.ProviderHealth
	secondary models.ProviderHealth
}

func newHealthTracker(primaryVendor, secondaryVendor string) *healthTracker {
	return &healthTracker{
		primary:   models.ProviderHealth{Vendor: primaryVendor, Healthy: true},
		secondary: models.ProviderHealth{Vendor: secondaryVendor, Healthy: true},
	}
}

func (h *healthTracker) recordSuccess(secondary bool, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if secondary {
		h.secondary.RecordSuccess(latency)
	} else {
		h.primary.RecordSuccess(latency)
	}
}

func (h *healthTracker) recordError(secondary bool, err error, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if secondary {
		h.secondary.RecordError(err, latency)
	} else {
		h.primary.RecordError(err, latency)
	}
}

func (h *healthTracker) snapshot() models.RouterHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return models.RouterHealth{
		Primary:        h.primary,
		Secondary:      h.secondary,
		PrimaryHealthy: h.primary.Healthy,
		CanFallback:    h.secondary.Healthy,
	}
}
