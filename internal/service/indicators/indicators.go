// Package indicators computes the technical indicators attached to
// index timeframes. All functions tolerate short candle histories and
// return zero values instead of failing.
package indicators

import "MarketHub/internal/domain/models"

// Compute derives the standard indicator set from a candle series
// ordered oldest to newest.
func Compute(candles []models.Candle) models.IndicatorSet {
	return models.IndicatorSet{
		SMA20: SMA(candles, 20),
		EMA9:  EMA(candles, 9),
		RSI14: RSI(candles, 14),
		ATR14: ATR(candles, 14),
	}
}

// SMA is the simple moving average of closes over the last period candles.
func SMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	var sum float64
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period)
}

// EMA is the exponential moving average of closes, seeded with the SMA of
// the first period candles.
func EMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	var seed float64
	for _, c := range candles[:period] {
		seed += c.Close
	}
	ema := seed / float64(period)
	k := 2.0 / float64(period+1)
	for _, c := range candles[period:] {
		ema = c.Close*k + ema*(1-k)
	}
	return ema
}

// RSI is Wilder's relative strength index over the last period moves.
func RSI(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := candles[i].Close - candles[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(candles); i++ {
		d := candles[i].Close - candles[i-1].Close
		var g, l float64
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR is Wilder's average true range.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		tr := candles[i].High - candles[i].Low
		if hc := abs(candles[i].High - candles[i-1].Close); hc > tr {
			tr = hc
		}
		if lc := abs(candles[i].Low - candles[i-1].Close); lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}
	var atr float64
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
