// Package quality scores fetched entities. The scores it produces are the
// single source of truth the hybrid router uses to decide whether a
// "successful" vendor response is actually usable.
package quality

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"MarketHub/internal/domain/models"
)

// Thresholds configures age cut-offs and the confidence floor.
type Thresholds struct {
	GoodAge       time.Duration // past this: staleness warning, 0.9 discount
	FairAge       time.Duration // past this: 0.75 discount
	AcceptableAge time.Duration // past this: hard stale error
	MinConfidence float64       // router rejection line
}

// DefaultThresholds returns production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GoodAge:       1 * time.Minute,
		FairAge:       5 * time.Minute,
		AcceptableAge: 15 * time.Minute,
		MinConfidence: 40,
	}
}

// Engine validates canonical entities and computes quality scores.
type Engine struct {
	t   Thresholds
	now func() time.Time
}

// NewEngine creates a quality engine. Zero threshold fields fall back to
// defaults.
func NewEngine(t Thresholds) *Engine {
	def := DefaultThresholds()
	if t.GoodAge <= 0 {
		t.GoodAge = def.GoodAge
	}
	if t.FairAge <= 0 {
		t.FairAge = def.FairAge
	}
	if t.AcceptableAge <= 0 {
		t.AcceptableAge = def.AcceptableAge
	}
	if t.MinConfidence <= 0 {
		t.MinConfidence = def.MinConfidence
	}
	return &Engine{t: t, now: time.Now}
}

// Thresholds returns the configured thresholds.
func (e *Engine) Thresholds() Thresholds { return e.t }

const staleMarker = "stale"

// ValidateContract runs structural, numeric and freshness checks over one
// option contract.
func (e *Engine) ValidateContract(c *models.OptionContract) models.ValidationResult {
	var errs, warns, info []string

	if c == nil {
		return poorResult([]string{"contract is nil"})
	}
	if c.Underlying == "" {
		errs = append(errs, "missing underlying symbol")
	}
	if c.Strike <= 0 {
		errs = append(errs, fmt.Sprintf("non-positive strike %v", c.Strike))
	}
	if _, err := time.Parse("2006-01-02", c.Expiration); err != nil {
		errs = append(errs, fmt.Sprintf("malformed expiration %q", c.Expiration))
	}
	if c.Type != models.OptionCall && c.Type != models.OptionPut {
		errs = append(errs, fmt.Sprintf("unknown option type %q", c.Type))
	}
	if c.DTE < 0 {
		errs = append(errs, "negative days to expiry")
	}
	if c.Quote.Bid > 0 && c.Quote.Ask > 0 && c.Quote.Bid > c.Quote.Ask {
		errs = append(errs, fmt.Sprintf("inverted market: bid %.2f > ask %.2f", c.Quote.Bid, c.Quote.Ask))
	}

	// Spread width relative to mid.
	if mid := c.Quote.Mid; mid > 0 && c.Quote.Ask > c.Quote.Bid {
		if (c.Quote.Ask-c.Quote.Bid)/mid > 0.20 {
			warns = append(warns, "spread wider than 20% of mid")
		}
	}

	// A contract that has traded (last print or priced IV) but shows no
	// volume or open interest is suspicious; a quiet contract is not.
	if c.Liquidity.Volume == 0 && c.Liquidity.OpenInterest == 0 &&
		(c.Quote.Last > 0 || c.Greeks.IV > 0) {
		warns = append(warns, "zero volume and open interest")
	}

	warns = append(warns, greekWarnings(c.Greeks)...)

	age, hasAge := e.age(c.Quality.UpdatedAt)
	switch {
	case hasAge && age > e.t.AcceptableAge:
		errs = append(errs, fmt.Sprintf("%s data: age %s exceeds acceptable %s", staleMarker, age.Round(time.Second), e.t.AcceptableAge))
	case hasAge && age > e.t.GoodAge:
		warns = append(warns, "moderately stale data")
	}

	return e.score(errs, warns, info, age, hasAge)
}

// ValidateChain aggregates per-contract validations and adds chain-only
// checks. Chain confidence is the minimum per-contract confidence, reduced
// further by chain-level warnings.
func (e *Engine) ValidateChain(ch *models.OptionChain) models.ValidationResult {
	var errs, warns, info []string

	if ch == nil {
		return poorResult([]string{"chain is nil"})
	}
	if ch.Underlying == "" {
		errs = append(errs, "missing underlying symbol")
	}
	if len(ch.Contracts) == 0 {
		errs = append(errs, "empty option chain")
	}
	if len(ch.Contracts) > 0 && !ch.HasBothSides() {
		warns = append(warns, "chain missing one side (calls or puts)")
	}
	if ch.UnderlyingPrice <= 0 {
		warns = append(warns, "non-positive underlying price")
	}
	if note := strikeContinuity(ch.Contracts); note != "" {
		info = append(info, note)
	}

	minConf := 100.0
	worst := models.QualityExcellent
	for i := range ch.Contracts {
		cr := e.ValidateContract(&ch.Contracts[i])
		if !cr.IsValid {
			errs = append(errs, fmt.Sprintf("contract %s/%.2f/%s invalid: %s",
				ch.Contracts[i].Expiration, ch.Contracts[i].Strike, ch.Contracts[i].Type,
				strings.Join(cr.Errors, "; ")))
		}
		if cr.Confidence < minConf {
			minConf = cr.Confidence
		}
		if worseQuality(cr.Quality, worst) {
			worst = cr.Quality
		}
	}

	if len(errs) > 0 {
		return models.ValidationResult{
			IsValid: false, Quality: models.QualityPoor, Confidence: 0,
			Errors: errs, Warnings: warns, Info: info,
		}
	}

	conf := math.Min(minConf, 100) - 10*float64(len(warns))
	conf = clampConfidence(conf)

	q := qualityFromWarnings(len(warns))
	if worseQuality(worst, q) {
		q = worst
	}
	if conf == 0 {
		q = models.QualityPoor
	}
	return models.ValidationResult{
		IsValid: true, Quality: q, Confidence: conf,
		Warnings: warns, Info: info,
	}
}

// ValidateIndexSnapshot checks an index snapshot and its candles.
func (e *Engine) ValidateIndexSnapshot(s *models.IndexSnapshot) models.ValidationResult {
	var errs, warns, info []string

	if s == nil {
		return poorResult([]string{"snapshot is nil"})
	}
	if s.Symbol == "" {
		errs = append(errs, "missing index symbol")
	}
	if s.Quote.Value <= 0 {
		warns = append(warns, "non-positive index value")
	}
	for label, tf := range s.Timeframes {
		for i := range tf.Candles {
			c := &tf.Candles[i]
			if c.High < c.Low {
				errs = append(errs, fmt.Sprintf("%s candle %d: high %.2f below low %.2f", label, i, c.High, c.Low))
				break
			}
			if c.Close < c.Low || c.Close > c.High {
				errs = append(errs, fmt.Sprintf("%s candle %d: close %.2f outside [low, high]", label, i, c.Close))
				break
			}
		}
	}

	age, hasAge := e.age(s.UpdatedAt)
	switch {
	case hasAge && age > e.t.AcceptableAge:
		errs = append(errs, fmt.Sprintf("%s data: age %s exceeds acceptable %s", staleMarker, age.Round(time.Second), e.t.AcceptableAge))
	case hasAge && age > e.t.GoodAge:
		warns = append(warns, "moderately stale data")
	}

	return e.score(errs, warns, info, age, hasAge)
}

// ValidateEquityQuote checks a single stock quote.
func (e *Engine) ValidateEquityQuote(q *models.EquityQuote) models.ValidationResult {
	var errs, warns, info []string

	if q == nil {
		return poorResult([]string{"quote is nil"})
	}
	if q.Symbol == "" {
		errs = append(errs, "missing symbol")
	}
	if q.Price <= 0 {
		errs = append(errs, fmt.Sprintf("non-positive price %v", q.Price))
	}
	if q.Bid > 0 && q.Ask > 0 && q.Bid > q.Ask {
		errs = append(errs, fmt.Sprintf("inverted market: bid %.2f > ask %.2f", q.Bid, q.Ask))
	}
	if q.Volume == 0 {
		warns = append(warns, "zero session volume")
	}

	age, hasAge := e.age(q.UpdatedAt)
	switch {
	case hasAge && age > e.t.AcceptableAge:
		errs = append(errs, fmt.Sprintf("%s data: age %s exceeds acceptable %s", staleMarker, age.Round(time.Second), e.t.AcceptableAge))
	case hasAge && age > e.t.GoodAge:
		warns = append(warns, "moderately stale data")
	}

	return e.score(errs, warns, info, age, hasAge)
}

// NewQualityFlags turns a validation result into the flags attached to the
// returned entity. Flags are computed fresh per fetch and never mutated.
func (e *Engine) NewQualityFlags(res models.ValidationResult, source models.Source, fallbackReason string) models.QualityFlags {
	q := res.Quality
	if res.Confidence == 0 {
		q = models.QualityPoor
	}
	return models.QualityFlags{
		Source:         source,
		Quality:        q,
		Confidence:     res.Confidence,
		IsStale:        containsStale(res.Errors),
		HasWarnings:    len(res.Warnings) > 0,
		Warnings:       res.Warnings,
		UpdatedAt:      e.now(),
		FallbackReason: fallbackReason,
	}
}

// score folds errors/warnings plus age discounting into a result.
func (e *Engine) score(errs, warns, info []string, age time.Duration, hasAge bool) models.ValidationResult {
	if len(errs) > 0 {
		return models.ValidationResult{
			IsValid: false, Quality: models.QualityPoor, Confidence: 0,
			Errors: errs, Warnings: warns, Info: info,
		}
	}

	conf := 100 - 10*float64(len(warns))
	if hasAge {
		switch {
		case age > e.t.FairAge:
			conf *= 0.75
		case age > e.t.GoodAge:
			conf *= 0.9
		}
	}
	conf = clampConfidence(conf)

	q := qualityFromWarnings(len(warns))
	if conf == 0 {
		q = models.QualityPoor
	}
	return models.ValidationResult{
		IsValid: true, Quality: q, Confidence: conf,
		Warnings: warns, Info: info,
	}
}

func (e *Engine) age(updatedAt time.Time) (time.Duration, bool) {
	if updatedAt.IsZero() {
		return 0, false
	}
	return e.now().Sub(updatedAt), true
}

func greekWarnings(g models.Greeks) []string {
	var warns []string
	if math.Abs(g.Delta) > 1.5 {
		warns = append(warns, fmt.Sprintf("delta %.2f out of typical range", g.Delta))
	}
	if g.Gamma < 0 || g.Gamma > 0.5 {
		warns = append(warns, fmt.Sprintf("gamma %.3f out of typical range", g.Gamma))
	}
	if math.Abs(g.Theta) > 2 {
		warns = append(warns, fmt.Sprintf("theta %.2f out of typical range", g.Theta))
	}
	if g.Vega < 0 || g.Vega > 1 {
		warns = append(warns, fmt.Sprintf("vega %.3f out of typical range", g.Vega))
	}
	if g.IV < 0 || g.IV > 10 {
		warns = append(warns, fmt.Sprintf("unusual iv %.2f", g.IV))
	}
	return warns
}

// strikeContinuity flags large holes in the strike ladder. Advisory only.
func strikeContinuity(contracts []models.OptionContract) string {
	strikes := make([]float64, 0, len(contracts))
	seen := make(map[float64]struct{}, len(contracts))
	for i := range contracts {
		s := contracts[i].Strike
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			strikes = append(strikes, s)
		}
	}
	if len(strikes) < 3 {
		return ""
	}
	sort.Float64s(strikes)
	gaps := make([]float64, 0, len(strikes)-1)
	for i := 1; i < len(strikes); i++ {
		gaps = append(gaps, strikes[i]-strikes[i-1])
	}
	sort.Float64s(gaps)
	median := gaps[len(gaps)/2]
	if median <= 0 {
		return ""
	}
	for _, g := range gaps {
		if g > 2.5*median {
			return fmt.Sprintf("strike ladder has a %.2f gap (median %.2f)", g, median)
		}
	}
	return ""
}

func qualityFromWarnings(n int) models.QualityLevel {
	switch {
	case n == 0:
		return models.QualityExcellent
	case n <= 3:
		return models.QualityGood
	default:
		return models.QualityFair
	}
}

func worseQuality(a, b models.QualityLevel) bool {
	return qualityRank(a) > qualityRank(b)
}

func qualityRank(q models.QualityLevel) int {
	switch q {
	case models.QualityExcellent:
		return 0
	case models.QualityGood:
		return 1
	case models.QualityFair:
		return 2
	default:
		return 3
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func poorResult(errs []string) models.ValidationResult {
	return models.ValidationResult{
		IsValid: false, Quality: models.QualityPoor, Confidence: 0, Errors: errs,
	}
}

func containsStale(errs []string) bool {
	for _, e := range errs {
		if strings.Contains(e, staleMarker) {
			return true
		}
	}
	return false
}
