// Package iv converts vendor implied-volatility encodings into the
// internal decimal convention (0.35 == 35%).
package iv

// Encoding declares how a vendor reports implied volatility.
type Encoding string

const (
	EncodingDecimal Encoding = "decimal" // 0.35 means 35%
	EncodingPercent Encoding = "percent" // 35 means 35%
)

// MaxDecimal is the clamp ceiling: 1000% IV in decimal form. Values above
// it are treated as anomalous.
const MaxDecimal = 10.0

// FromPercent converts a percent-encoded IV to decimal.
func FromPercent(p float64) float64 { return p / 100 }

// ToPercent converts a decimal IV to percent.
func ToPercent(d float64) float64 { return d * 100 }

// Normalize converts a raw vendor value with its declared encoding into the
// internal decimal convention, clamped to [0, MaxDecimal]. The second return
// lists anomaly notes; an empty list means the value was taken as-is.
func Normalize(raw float64, enc Encoding) (float64, []string) {
	var notes []string

	v := raw
	if enc == EncodingPercent {
		v = FromPercent(raw)
	}

	// A "decimal" value far above the ceiling is almost always a
	// percent-encoded number that slipped through vendor metadata.
	if enc == EncodingDecimal && v > MaxDecimal && FromPercent(v) <= MaxDecimal {
		notes = append(notes, "iv reinterpreted as percent-encoded")
		v = FromPercent(v)
	}

	if v < 0 {
		notes = append(notes, "negative iv clamped to 0")
		v = 0
	}
	if v > MaxDecimal {
		notes = append(notes, "iv above 1000% clamped")
		v = MaxDecimal
	}
	return v, notes
}
