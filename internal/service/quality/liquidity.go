package quality

import "MarketHub/internal/domain/models"

// DeriveLiquidity computes spread measures and the coarse liquidity tier
// from raw vendor fields. Used by adapters during normalization.
func DeriveLiquidity(volume, openInterest int64, bid, ask float64) models.Liquidity {
	l := models.Liquidity{Volume: volume, OpenInterest: openInterest}

	if ask > 0 && bid >= 0 && ask >= bid {
		l.SpreadPoints = ask - bid
		if mid := (bid + ask) / 2; mid > 0 {
			l.SpreadPercent = l.SpreadPoints / mid * 100
		}
	}

	switch {
	case volume >= 1000 && openInterest >= 5000 && l.SpreadPercent < 5:
		l.Tier = models.LiquidityHigh
	case volume >= 100 && openInterest >= 500 && l.SpreadPercent < 10:
		l.Tier = models.LiquidityMid
	case volume > 0 || openInterest > 0:
		l.Tier = models.LiquidityLow
	default:
		l.Tier = models.LiquidityNone
	}
	return l
}

// Mid returns the midpoint price, falling back to last when one side is
// missing.
func Mid(bid, ask, last float64) float64 {
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2
	}
	return last
}
