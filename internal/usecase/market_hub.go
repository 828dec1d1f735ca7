package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
	"MarketHub/pkg/logger"
)

// HubConfig controls the consolidation hub.
type HubConfig struct {
	Watchlist       []string
	IndexTickers    []string
	RefreshInterval time.Duration
	BatchWindow     time.Duration
	EnablePush      bool
}

// MarketHub consolidates polled and pushed vendor data into one snapshot
// and a stream of coalesced ticks. All snapshot mutation happens on a
// single mutex; subscriber callbacks receive immutable entities and a
// cloned snapshot, never the hub's own maps.
type MarketHub struct {
	provider repository.MarketDataProvider
	metrics  repository.Metrics
	log      *logger.Logger
	cfg      HubConfig
	batcher  *tickBatcher

	mu        sync.Mutex
	snapshot  *models.MarketDataSnapshot
	watchlist []string
	unsubs    map[string][]repository.Unsubscribe
	tickSubs  map[int]func(*models.MarketDataTick)
	snapSubs  map[int]func(*models.MarketDataSnapshot)
	nextSubID int
	running   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMarketHub creates the hub. Call Initialize to start it.
func NewMarketHub(provider repository.MarketDataProvider, metrics repository.Metrics, log *logger.Logger, cfg HubConfig) *MarketHub {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	h := &MarketHub{
		provider:  provider,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		snapshot:  models.NewMarketDataSnapshot(),
		watchlist: append([]string(nil), cfg.Watchlist...),
		unsubs:    make(map[string][]repository.Unsubscribe),
		tickSubs:  make(map[int]func(*models.MarketDataTick)),
		snapSubs:  make(map[int]func(*models.MarketDataSnapshot)),
	}
	h.batcher = newTickBatcher(cfg.BatchWindow, h.publishBatch)
	return h
}

// Initialize runs one full synchronous refresh, then starts the poll
// loop and, when enabled, push subscriptions. Safe to call once.
func (h *MarketHub) Initialize(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return errors.New("hub already initialized")
	}
	h.running = true
	h.mu.Unlock()

	h.refreshAll(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	if h.cfg.EnablePush {
		for _, sym := range h.currentWatchlist() {
			h.subscribeSymbol(sym)
		}
		for _, ticker := range h.cfg.IndexTickers {
			h.subscribeIndex(ticker)
		}
	}

	h.wg.Add(1)
	go h.pollLoop(runCtx)

	h.log.Info("market hub started",
		logger.Strings("watchlist", h.currentWatchlist()),
		logger.Strings("indices", h.cfg.IndexTickers),
		logger.Duration("refresh", h.cfg.RefreshInterval),
		logger.Bool("push", h.cfg.EnablePush))
	return nil
}

// Shutdown stops polling, tears down subscriptions and flushes the
// batcher.
func (h *MarketHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	unsubs := h.unsubs
	h.unsubs = make(map[string][]repository.Unsubscribe)
	h.tickSubs = make(map[int]func(*models.MarketDataTick))
	h.snapSubs = make(map[int]func(*models.MarketDataSnapshot))
	h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	for _, us := range unsubs {
		for _, u := range us {
			u()
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.batcher.stop()
	h.log.Info("market hub stopped")
	return nil
}

// Snapshot returns a copy of the consolidated state.
func (h *MarketHub) Snapshot() *models.MarketDataSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot.Clone()
}

// SubscribeTick registers a per-update callback. The callback must not
// block.
func (h *MarketHub) SubscribeTick(fn func(*models.MarketDataTick)) repository.Unsubscribe {
	h.mu.Lock()
	h.nextSubID++
	id := h.nextSubID
	h.tickSubs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.tickSubs, id)
			h.mu.Unlock()
		})
	}
}

// SubscribeSnapshot registers a callback fired with a fresh clone after
// every batch flush.
func (h *MarketHub) SubscribeSnapshot(fn func(*models.MarketDataSnapshot)) repository.Unsubscribe {
	h.mu.Lock()
	h.nextSubID++
	id := h.nextSubID
	h.snapSubs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.snapSubs, id)
			h.mu.Unlock()
		})
	}
}

// UpdateWatchlist diffs the new list against the current one: removed
// symbols are unsubscribed and dropped from the snapshot, added symbols
// are fetched and subscribed.
func (h *MarketHub) UpdateWatchlist(ctx context.Context, symbols []string) {
	h.mu.Lock()
	current := make(map[string]bool, len(h.watchlist))
	for _, s := range h.watchlist {
		current[s] = true
	}
	next := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		next[s] = true
	}

	var added, removed []string
	for s := range next {
		if !current[s] {
			added = append(added, s)
		}
	}
	for s := range current {
		if !next[s] {
			removed = append(removed, s)
		}
	}

	h.watchlist = append([]string(nil), symbols...)
	var toUnsub []repository.Unsubscribe
	for _, s := range removed {
		toUnsub = append(toUnsub, h.unsubs[s]...)
		delete(h.unsubs, s)
		delete(h.snapshot.Chains, s)
		delete(h.snapshot.Equities, s)
		delete(h.snapshot.Flows, s)
	}
	push := h.cfg.EnablePush && h.running
	h.mu.Unlock()

	for _, u := range toUnsub {
		u()
	}

	for _, s := range added {
		h.refreshSymbol(ctx, s)
		if push {
			h.subscribeSymbol(s)
		}
	}
	if len(added) > 0 || len(removed) > 0 {
		h.log.Info("watchlist updated",
			logger.Strings("added", added), logger.Strings("removed", removed))
	}
}

// Watchlist returns the tracked symbols.
func (h *MarketHub) Watchlist() []string {
	return h.currentWatchlist()
}

func (h *MarketHub) currentWatchlist() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.watchlist...)
}

func (h *MarketHub) pollLoop(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.refreshAll(ctx)
		}
	}
}

// refreshAll polls every tracked entity. A failing symbol never blocks
// the rest of the cycle.
func (h *MarketHub) refreshAll(ctx context.Context) {
	for _, sym := range h.currentWatchlist() {
		h.refreshSymbol(ctx, sym)
	}
	h.refreshIndices(ctx)
}

func (h *MarketHub) refreshSymbol(ctx context.Context, symbol string) {
	if ch, err := h.provider.GetOptionChain(ctx, symbol, nil); err != nil {
		h.recordError("chain")
		h.log.Warn("chain refresh failed", logger.String("symbol", symbol), logger.Error(err))
	} else {
		h.applyChain(ch, true)
	}

	if f, err := h.provider.GetFlowData(ctx, symbol, nil); err != nil {
		h.recordError("flow")
		h.log.Warn("flow refresh failed", logger.String("symbol", symbol), logger.Error(err))
	} else {
		h.applyFlow(f, true)
	}

	if q, err := h.provider.GetEquityQuote(ctx, symbol); err != nil {
		h.recordError("equity")
		h.log.Warn("equity refresh failed", logger.String("symbol", symbol), logger.Error(err))
	} else {
		h.applyEquity(q, true)
	}
}

func (h *MarketHub) refreshIndices(ctx context.Context) {
	if len(h.cfg.IndexTickers) == 0 {
		return
	}
	snaps, err := h.provider.GetIndexSnapshot(ctx, h.cfg.IndexTickers)
	if err != nil {
		h.recordError("index")
		h.log.Warn("index refresh failed", logger.Error(err))
		return
	}
	for _, s := range snaps {
		h.applyIndex(s, true)
	}
}

// --- entity application: update snapshot, emit tick ---
//
// direct marks polled data: it publishes immediately, bypassing the
// batcher. Pushed updates are batched so a bursty stream coalesces.

func (h *MarketHub) applyChain(ch *models.OptionChain, direct bool) {
	h.mu.Lock()
	h.snapshot.Chains[ch.Underlying] = ch
	h.mu.Unlock()
	h.emit(models.TickChain, ch.Underlying, ch, ch.Quality, direct)
}

func (h *MarketHub) applyFlow(f *models.FlowData, direct bool) {
	h.mu.Lock()
	h.snapshot.Flows[f.Underlying] = f
	h.mu.Unlock()
	h.emit(models.TickFlow, f.Underlying, f, f.Quality, direct)
}

func (h *MarketHub) applyEquity(q *models.EquityQuote, direct bool) {
	h.mu.Lock()
	h.snapshot.Equities[q.Symbol] = q
	h.mu.Unlock()
	h.emit(models.TickEquity, q.Symbol, q, q.Quality, direct)
}

func (h *MarketHub) applyIndex(s *models.IndexSnapshot, direct bool) {
	h.mu.Lock()
	h.snapshot.Indices[s.Symbol] = s
	h.mu.Unlock()
	h.emit(models.TickIndex, s.Symbol, s, s.Quality, direct)
}

func (h *MarketHub) emit(kind models.TickKind, symbol string, data interface{}, q models.QualityFlags, direct bool) {
	t := &models.MarketDataTick{
		Key:        models.TickKey(kind, symbol),
		Kind:       kind,
		Symbol:     symbol,
		Data:       data,
		Quality:    q,
		ReceivedAt: time.Now(),
	}
	if direct {
		h.publishBatch([]*models.MarketDataTick{t})
		return
	}
	h.batcher.enqueue(t)
}

// publishBatch fans one flushed batch out to tick subscribers, then
// recomputes aggregate quality and notifies snapshot subscribers.
func (h *MarketHub) publishBatch(batch []*models.MarketDataTick) {
	h.mu.Lock()
	tickFns := make([]func(*models.MarketDataTick), 0, len(h.tickSubs))
	for _, fn := range h.tickSubs {
		tickFns = append(tickFns, fn)
	}
	h.snapshot.Quality = h.aggregateQualityLocked()
	h.snapshot.UpdatedAt = time.Now()
	snapFns := make([]func(*models.MarketDataSnapshot), 0, len(h.snapSubs))
	for _, fn := range h.snapSubs {
		snapFns = append(snapFns, fn)
	}
	clone := h.snapshot.Clone()
	h.mu.Unlock()

	for _, t := range batch {
		if h.metrics != nil {
			h.metrics.RecordTickPublished(string(t.Kind))
		}
		for _, fn := range tickFns {
			fn(t)
		}
	}
	for _, fn := range snapFns {
		fn(clone)
	}
}

// aggregateQualityLocked folds per-entity flags into snapshot-level
// flags: mean confidence, union of warnings, stale when the mean drops
// below 50.
func (h *MarketHub) aggregateQualityLocked() models.QualityFlags {
	var sum float64
	var n int
	warnSet := make(map[string]struct{})

	fold := func(q models.QualityFlags) {
		sum += q.Confidence
		n++
		for _, w := range q.Warnings {
			warnSet[w] = struct{}{}
		}
	}
	for _, v := range h.snapshot.Chains {
		fold(v.Quality)
	}
	for _, v := range h.snapshot.Indices {
		fold(v.Quality)
	}
	for _, v := range h.snapshot.Equities {
		fold(v.Quality)
	}
	for _, v := range h.snapshot.Flows {
		fold(v.Quality)
	}

	out := models.QualityFlags{
		Source:    models.SourceHybrid,
		Quality:   models.QualityPoor,
		UpdatedAt: time.Now(),
	}
	if n == 0 {
		return out
	}
	avg := sum / float64(n)
	out.Confidence = avg
	out.IsStale = avg < 50
	switch {
	case avg >= 90:
		out.Quality = models.QualityExcellent
	case avg >= 70:
		out.Quality = models.QualityGood
	case avg >= 50:
		out.Quality = models.QualityFair
	}
	warns := make([]string, 0, len(warnSet))
	for w := range warnSet {
		warns = append(warns, w)
	}
	out.Warnings = warns
	out.HasWarnings = len(warns) > 0
	return out
}

// --- push wiring ---

func (h *MarketHub) subscribeSymbol(symbol string) {
	var subs []repository.Unsubscribe

	if u, err := h.provider.SubscribeToChain(symbol, func(ch *models.OptionChain) {
		h.applyChain(ch, false)
	}); err == nil {
		subs = append(subs, u)
	} else if !errors.Is(err, models.ErrStreamingUnsupported) {
		h.log.Warn("chain subscription failed", logger.String("symbol", symbol), logger.Error(err))
	}
	if u, err := h.provider.SubscribeToFlow(symbol, func(f *models.FlowData) {
		h.applyFlow(f, false)
	}); err == nil {
		subs = append(subs, u)
	} else if !errors.Is(err, models.ErrStreamingUnsupported) {
		h.log.Warn("flow subscription failed", logger.String("symbol", symbol), logger.Error(err))
	}
	if u, err := h.provider.SubscribeToEquity(symbol, func(q *models.EquityQuote) {
		h.applyEquity(q, false)
	}); err == nil {
		subs = append(subs, u)
	} else if !errors.Is(err, models.ErrStreamingUnsupported) {
		h.log.Warn("equity subscription failed", logger.String("symbol", symbol), logger.Error(err))
	}

	if len(subs) > 0 {
		h.mu.Lock()
		h.unsubs[symbol] = append(h.unsubs[symbol], subs...)
		h.mu.Unlock()
	}
}

func (h *MarketHub) subscribeIndex(ticker string) {
	u, err := h.provider.SubscribeToIndex(ticker, func(s *models.IndexSnapshot) {
		h.applyIndex(s, false)
	})
	if err != nil {
		if !errors.Is(err, models.ErrStreamingUnsupported) {
			h.log.Warn("index subscription failed", logger.String("ticker", ticker), logger.Error(err))
		}
		return
	}
	h.mu.Lock()
	h.unsubs[ticker] = append(h.unsubs[ticker], u)
	h.mu.Unlock()
}

func (h *MarketHub) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}
