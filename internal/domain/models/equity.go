package models

import "time"

// EquityQuote is the canonical quote for a stock symbol.
type EquityQuote struct {
	Symbol        string       `json:"symbol"`
	Price         float64      `json:"price"`
	Change        float64      `json:"change"`
	ChangePercent float64      `json:"change_percent"`
	Bid           float64      `json:"bid"`
	Ask           float64      `json:"ask"`
	Volume        int64        `json:"volume"`
	Quality       QualityFlags `json:"quality"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Bar is an interval aggregate for an equity symbol.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	VWAP   float64   `json:"vwap,omitempty"`
}
