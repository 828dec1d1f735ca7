package models

// HTTP request DTOs bound and validated by pkg/http.

// ChainRequest requests an option chain for one underlying.
type ChainRequest struct {
	Symbol           string  `query:"symbol" validate:"required,min=1,max=10"`
	StrikeMin        float64 `query:"strike_min" validate:"gte=0"`
	StrikeMax        float64 `query:"strike_max" validate:"gte=0"`
	ExpirationMin    string  `query:"expiration_min"`
	ExpirationMax    string  `query:"expiration_max"`
	Limit            int     `query:"limit" default:"50" validate:"gte=0,lte=500"`
	MinVolume        int64   `query:"min_volume" validate:"gte=0"`
	MinOpenInterest  int64   `query:"min_open_interest" validate:"gte=0"`
	MaxSpreadPercent float64 `query:"max_spread_percent" validate:"gte=0"`
}

// ContractRequest requests a single option contract.
type ContractRequest struct {
	Symbol     string  `query:"symbol" validate:"required"`
	Strike     float64 `query:"strike" validate:"required,gt=0"`
	Expiration string  `query:"expiration" validate:"required"`
	Type       string  `query:"type" default:"call" validate:"oneof=call put"`
}

// ExpirationsRequest requests expiration dates for one underlying.
type ExpirationsRequest struct {
	Symbol  string `query:"symbol" validate:"required"`
	MinDate string `query:"min_date"`
	MaxDate string `query:"max_date"`
}

// FlowRequest requests option order-flow data.
type FlowRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Start  string `query:"start"`
	End    string `query:"end"`
}

// IndicesRequest requests snapshots for one or more index tickers.
type IndicesRequest struct {
	Tickers string `query:"tickers" validate:"required"` // comma separated
}

// CandlesRequest requests candles for a ticker and timeframe.
type CandlesRequest struct {
	Ticker    string `query:"ticker" validate:"required"`
	Timeframe string `query:"timeframe" default:"5m"`
	From      string `query:"from"`
	To        string `query:"to"`
	Limit     int    `query:"limit" default:"200" validate:"gte=0,lte=5000"`
}

// QuoteRequest requests an equity quote.
type QuoteRequest struct {
	Symbol string `query:"symbol" validate:"required"`
}

// BarsRequest requests interval bars for an equity symbol.
type BarsRequest struct {
	Symbol   string `query:"symbol" validate:"required"`
	Interval string `query:"interval" default:"1m"`
	From     string `query:"from"`
	To       string `query:"to"`
	Limit    int    `query:"limit" default:"200" validate:"gte=0,lte=5000"`
}

// WatchlistRequest replaces the hub's tracked symbol list.
type WatchlistRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,dive,min=1,max=10"`
}
