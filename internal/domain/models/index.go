package models

import "time"

// IndexQuote is the headline quote for an index ticker.
type IndexQuote struct {
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PrevClose     float64 `json:"prev_close"`
}

// Candle is a single OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IndicatorSet holds derived technical indicators for one timeframe.
type IndicatorSet struct {
	SMA20 float64 `json:"sma_20"`
	EMA9  float64 `json:"ema_9"`
	RSI14 float64 `json:"rsi_14"`
	ATR14 float64 `json:"atr_14"`
}

// Timeframe bundles candles and indicators for one timeframe label.
type Timeframe struct {
	Label      string       `json:"label"`
	Candles    []Candle     `json:"candles"`
	Indicators IndicatorSet `json:"indicators"`
}

// IndexSnapshot is the canonical state of one index ticker.
type IndexSnapshot struct {
	Symbol     string                `json:"symbol"`
	Quote      IndexQuote            `json:"quote"`
	Timeframes map[string]*Timeframe `json:"timeframes,omitempty"`
	Quality    QualityFlags          `json:"quality"`
	UpdatedAt  time.Time             `json:"updated_at"`
}
