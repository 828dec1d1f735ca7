package indicators

import (
	"testing"

	"MarketHub/internal/domain/models"
)

func closes(vals ...float64) []models.Candle {
	out := make([]models.Candle, len(vals))
	for i, v := range vals {
		out[i] = models.Candle{Open: v, High: v + 1, Low: v - 1, Close: v}
	}
	return out
}

func rising(n int) []models.Candle {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	return closes(vals...)
}

func TestSMA(t *testing.T) {
	// Mean of closes 6..25.
	if got := SMA(rising(25), 20); got != 15.5 {
		t.Fatalf("unexpected sma %v", got)
	}
	if got := SMA(rising(5), 20); got != 0 {
		t.Fatalf("expected 0 on short history, got %v", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	flat := closes(5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5)
	if got := EMA(flat, 9); got != 5 {
		t.Fatalf("unexpected ema %v", got)
	}
}

func TestRSIExtremes(t *testing.T) {
	if got := RSI(rising(20), 14); got != 100 {
		t.Fatalf("expected 100 for all-gains series, got %v", got)
	}

	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = float64(40 - i)
	}
	if got := RSI(closes(vals...), 14); got != 0 {
		t.Fatalf("expected 0 for all-losses series, got %v", got)
	}

	if got := RSI(rising(10), 14); got != 0 {
		t.Fatalf("expected 0 on short history, got %v", got)
	}
}

func TestATRConstantRange(t *testing.T) {
	flat := closes(10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	if got := ATR(flat, 14); got != 2 {
		t.Fatalf("unexpected atr %v", got)
	}
}

func TestComputeShortHistory(t *testing.T) {
	set := Compute(rising(3))
	if set.SMA20 != 0 || set.EMA9 != 0 || set.RSI14 != 0 || set.ATR14 != 0 {
		t.Fatalf("expected zero values, got %+v", set)
	}
}
