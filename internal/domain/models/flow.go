package models

import "time"

// FlowSentiment summarizes the direction of option order flow.
type FlowSentiment string

const (
	FlowBullish FlowSentiment = "bullish"
	FlowBearish FlowSentiment = "bearish"
	FlowNeutral FlowSentiment = "neutral"
)

// FlowData aggregates option order-flow activity for one underlying.
type FlowData struct {
	Underlying   string        `json:"underlying"`
	CallVolume   int64         `json:"call_volume"`
	PutVolume    int64         `json:"put_volume"`
	PutCallRatio float64       `json:"put_call_ratio"`
	CallPremium  float64       `json:"call_premium"`
	PutPremium   float64       `json:"put_premium"`
	NetPremium   float64       `json:"net_premium"`
	SweepCount   int           `json:"sweep_count"`
	BlockCount   int           `json:"block_count"`
	Sentiment    FlowSentiment `json:"sentiment"`
	Quality      QualityFlags  `json:"quality"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsZeroSignal reports whether the record carries no flow activity at all.
func (f *FlowData) IsZeroSignal() bool {
	return f == nil || (f.CallVolume == 0 && f.PutVolume == 0 && f.NetPremium == 0)
}

// FlowOptions narrows a flow request to a time window.
type FlowOptions struct {
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}
