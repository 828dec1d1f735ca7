package models

import (
	"fmt"
	"time"
)

// TickKind identifies the entity carried by a tick.
type TickKind string

const (
	TickChain  TickKind = "chain"
	TickOption TickKind = "option"
	TickIndex  TickKind = "index"
	TickEquity TickKind = "equity"
	TickFlow   TickKind = "flow"
)

// TickKey builds the entity identity used for coalescing and ordering.
func TickKey(kind TickKind, symbol string) string {
	return fmt.Sprintf("%s:%s", kind, symbol)
}

// MarketDataTick is one immutable published update for a single entity.
// Consumers must treat a tick as a full replacement, not a delta.
type MarketDataTick struct {
	Key        string       `json:"key"`
	Kind       TickKind     `json:"kind"`
	Symbol     string       `json:"symbol"`
	Data       interface{}  `json:"data"`
	Quality    QualityFlags `json:"quality"`
	ReceivedAt time.Time    `json:"received_at"`
}

// MarketDataSnapshot is the consolidated state across all tracked entities.
// Owned and mutated by the hub under its own lock.
type MarketDataSnapshot struct {
	Chains    map[string]*OptionChain   `json:"chains"`
	Indices   map[string]*IndexSnapshot `json:"indices"`
	Equities  map[string]*EquityQuote   `json:"equities"`
	Flows     map[string]*FlowData      `json:"flows"`
	Quality   QualityFlags              `json:"quality"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// NewMarketDataSnapshot returns an empty snapshot with all maps allocated.
func NewMarketDataSnapshot() *MarketDataSnapshot {
	return &MarketDataSnapshot{
		Chains:   make(map[string]*OptionChain),
		Indices:  make(map[string]*IndexSnapshot),
		Equities: make(map[string]*EquityQuote),
		Flows:    make(map[string]*FlowData),
	}
}

// Clone returns a shallow copy safe to hand to subscribers: map headers are
// copied, entity pointers are shared (entities themselves are immutable).
func (s *MarketDataSnapshot) Clone() *MarketDataSnapshot {
	out := &MarketDataSnapshot{
		Chains:    make(map[string]*OptionChain, len(s.Chains)),
		Indices:   make(map[string]*IndexSnapshot, len(s.Indices)),
		Equities:  make(map[string]*EquityQuote, len(s.Equities)),
		Flows:     make(map[string]*FlowData, len(s.Flows)),
		Quality:   s.Quality,
		UpdatedAt: s.UpdatedAt,
	}
	for k, v := range s.Chains {
		out.Chains[k] = v
	}
	for k, v := range s.Indices {
		out.Indices[k] = v
	}
	for k, v := range s.Equities {
		out.Equities[k] = v
	}
	for k, v := range s.Flows {
		out.Flows[k] = v
	}
	return out
}
