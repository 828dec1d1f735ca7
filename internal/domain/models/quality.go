package models

import "time"

// Source identifies which vendor produced an entity.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceHybrid    Source = "hybrid"
)

// QualityLevel is the coarse trust tier attached to every entity.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
)

// QualityFlags describes how trustworthy a fetched entity is.
// Computed fresh on every fetch; replaced, never mutated in place.
type QualityFlags struct {
	Source         Source       `json:"source"`
	Quality        QualityLevel `json:"quality"`
	Confidence     float64      `json:"confidence"` // 0-100
	IsStale        bool         `json:"is_stale"`
	HasWarnings    bool         `json:"has_warnings"`
	Warnings       []string     `json:"warnings,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
	FallbackReason string       `json:"fallback_reason,omitempty"`
}

// ValidationResult holds the outcome of validating a single entity.
type ValidationResult struct {
	IsValid    bool         `json:"is_valid"`
	Quality    QualityLevel `json:"quality"`
	Confidence float64      `json:"confidence"`
	Errors     []string     `json:"errors,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
	Info       []string     `json:"info,omitempty"`
}
