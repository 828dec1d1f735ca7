package models

import "time"

// OptionType distinguishes call and put contracts.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// LiquidityTier is a coarse tradability classification derived from
// volume, open interest and spread width.
type LiquidityTier string

const (
	LiquidityHigh LiquidityTier = "high"
	LiquidityMid  LiquidityTier = "mid"
	LiquidityLow  LiquidityTier = "low"
	LiquidityNone LiquidityTier = "none"
)

// OptionQuote holds the bid/ask/last prices for a contract.
type OptionQuote struct {
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Mid     float64 `json:"mid"`
	Last    float64 `json:"last"`
	BidSize int64   `json:"bid_size"`
	AskSize int64   `json:"ask_size"`
}

// Greeks holds option sensitivities plus implied volatility.
// IV values use the internal decimal convention (0.35 == 35%).
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
	IV    float64 `json:"iv"`
	IVBid float64 `json:"iv_bid"`
	IVAsk float64 `json:"iv_ask"`
}

// Liquidity holds tradability measures for a contract.
type Liquidity struct {
	Volume        int64         `json:"volume"`
	OpenInterest  int64         `json:"open_interest"`
	SpreadPoints  float64       `json:"spread_points"`
	SpreadPercent float64       `json:"spread_percent"`
	Tier          LiquidityTier `json:"tier"`
}

// OptionContract is the canonical per-contract record. Created per fetch,
// immutable, superseded by the next fetch.
type OptionContract struct {
	Symbol     string     `json:"symbol"` // OCC option symbol
	Underlying string     `json:"underlying"`
	Strike     float64    `json:"strike"`
	Expiration string     `json:"expiration"` // YYYY-MM-DD
	Type       OptionType `json:"type"`
	DTE        int        `json:"dte"`

	Quote     OptionQuote  `json:"quote"`
	Greeks    Greeks       `json:"greeks"`
	Liquidity Liquidity    `json:"liquidity"`
	Flow      *FlowData    `json:"flow,omitempty"`
	Quality   QualityFlags `json:"quality"`
}

// OptionChain is the canonical chain for one underlying.
type OptionChain struct {
	Underlying      string           `json:"underlying"`
	UnderlyingPrice float64          `json:"underlying_price"`
	Contracts       []OptionContract `json:"contracts"`
	Quality         QualityFlags     `json:"quality"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasBothSides reports whether the chain contains at least one call and one put.
func (c *OptionChain) HasBothSides() bool {
	var call, put bool
	for i := range c.Contracts {
		switch c.Contracts[i].Type {
		case OptionCall:
			call = true
		case OptionPut:
			put = true
		}
		if call && put {
			return true
		}
	}
	return false
}

// ChainOptions narrows a chain request.
type ChainOptions struct {
	StrikeMin        float64 `json:"strike_min,omitempty"`
	StrikeMax        float64 `json:"strike_max,omitempty"`
	ExpirationMin    string  `json:"expiration_min,omitempty"` // YYYY-MM-DD
	ExpirationMax    string  `json:"expiration_max,omitempty"`
	Limit            int     `json:"limit,omitempty"`
	MinVolume        int64   `json:"min_volume,omitempty"`
	MinOpenInterest  int64   `json:"min_open_interest,omitempty"`
	MaxSpreadPercent float64 `json:"max_spread_percent,omitempty"`
}

// ExpirationOptions narrows an expirations request.
type ExpirationOptions struct {
	MinDate string `json:"min_date,omitempty"`
	MaxDate string `json:"max_date,omitempty"`
}
