package models

import "time"

// UnhealthyAfter is the number of consecutive errors that flips a
// vendor to unhealthy.
const UnhealthyAfter = 3

// ProviderHealth is per-vendor rolling state. Mutated only by the
// hybrid router after each adapter call; never read by adapters.
type ProviderHealth struct {
	Vendor            string    `json:"vendor"`
	Healthy           bool      `json:"healthy"`
	LastSuccess       time.Time `json:"last_success"`
	LastError         string    `json:"last_error,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	ResponseTimeMs    int64     `json:"response_time_ms"`
}

// RecordSuccess resets the error streak and marks the vendor healthy.
func (h *ProviderHealth) RecordSuccess(latency time.Duration) {
	h.Healthy = true
	h.LastSuccess = time.Now()
	h.LastError = ""
	h.ConsecutiveErrors = 0
	h.ResponseTimeMs = latency.Milliseconds()
}

// RecordError increments the streak and flips Healthy at the threshold.
func (h *ProviderHealth) RecordError(err error, latency time.Duration) {
	h.ConsecutiveErrors++
	if err != nil {
		h.LastError = err.Error()
	}
	h.ResponseTimeMs = latency.Milliseconds()
	if h.ConsecutiveErrors >= UnhealthyAfter {
		h.Healthy = false
	}
}

// RouterHealth is the hybrid router's combined health view.
type RouterHealth struct {
	Primary        ProviderHealth `json:"primary"`
	Secondary      ProviderHealth `json:"secondary"`
	PrimaryHealthy bool           `json:"primary_healthy"`
	CanFallback    bool           `json:"can_fallback"`
}
