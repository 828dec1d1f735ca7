// Package tradier is the primary vendor adapter. It owns fetching,
// short-TTL caching, normalization into canonical entities and quality
// scoring of everything it returns.
package tradier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
	reqcache "MarketHub/internal/service/cache"
	"MarketHub/internal/service/indicators"
	"MarketHub/internal/service/iv"
	"MarketHub/internal/service/quality"
	"MarketHub/pkg/logger"
	"MarketHub/pkg/util"
)

// Request-cache TTLs. Fast-moving entities are cached just long enough to
// absorb duplicate hub/API requests inside one poll cycle.
const (
	ttlQuote       = 2 * time.Second
	ttlChain       = 5 * time.Second
	ttlFlow        = 10 * time.Second
	ttlCandles     = 30 * time.Second
	ttlExpirations = time.Hour
)

// maxChainExpirations bounds how many expirations one unconstrained chain
// request fans out to.
const maxChainExpirations = 2

// Adapter implements repository.MarketDataProvider on top of the vendor
// REST API and event stream.
type Adapter struct {
	client  *Client
	stream  *Stream // nil when push streaming is disabled
	engine  *quality.Engine
	cache   *reqcache.TTLCache
	metrics repository.Metrics
	log     *logger.Logger
}

// NewAdapter wires the adapter. stream may be nil for fetch-only mode.
func NewAdapter(client *Client, stream *Stream, engine *quality.Engine, metrics repository.Metrics, log *logger.Logger) *Adapter {
	return &Adapter{
		client:  client,
		stream:  stream,
		engine:  engine,
		cache:   reqcache.NewTTLCache(),
		metrics: metrics,
		log:     log,
	}
}

// Name returns the vendor identifier.
func (a *Adapter) Name() string { return VendorName }

// GetOptionChain fetches, normalizes and scores the chain for underlying.
func (a *Adapter) GetOptionChain(ctx context.Context, underlying string, opts *models.ChainOptions) (*models.OptionChain, error) {
	key := reqcache.Key("chain", underlying, chainOptsKey(opts))
	if ch, ok := reqcache.GetTyped[*models.OptionChain](a.cache, key); ok {
		return ch, nil
	}

	start := time.Now()
	ch, err := a.fetchChain(ctx, underlying, opts)
	a.observe("chain", start, err)
	if err != nil {
		return nil, err
	}
	a.cache.Set(key, ch, ttlChain)
	return ch, nil
}

func (a *Adapter) fetchChain(ctx context.Context, underlying string, opts *models.ChainOptions) (*models.OptionChain, error) {
	expirations, err := a.expirations(ctx, underlying)
	if err != nil {
		return nil, err
	}
	expirations = selectExpirations(expirations, opts)

	now := time.Now()
	contracts := make([]models.OptionContract, 0, 64)
	for _, exp := range expirations {
		dtos, err := a.client.OptionChain(ctx, underlying, exp)
		if err != nil {
			return nil, err
		}
		for _, d := range dtos {
			contracts = append(contracts, a.normalizeContract(underlying, d, now))
		}
	}
	contracts = filterContracts(contracts, opts)

	ch := &models.OptionChain{
		Underlying: underlying,
		Contracts:  contracts,
		UpdatedAt:  now,
	}
	if price, err := a.underlyingPrice(ctx, underlying); err == nil {
		ch.UnderlyingPrice = price
	} else {
		a.log.Warn("underlying price unavailable",
			logger.String("underlying", underlying), logger.Error(err))
	}

	res := a.engine.ValidateChain(ch)
	ch.Quality = a.engine.NewQualityFlags(res, models.SourcePrimary, "")
	a.recordConfidence(underlying, ch.Quality.Confidence)
	return ch, nil
}

// GetOptionContract fetches one contract identified by strike, expiration
// and type.
func (a *Adapter) GetOptionContract(ctx context.Context, underlying string, strike float64, expiration string, typ models.OptionType) (*models.OptionContract, error) {
	key := reqcache.Key("contract", underlying, expiration, strike, typ)
	if c, ok := reqcache.GetTyped[*models.OptionContract](a.cache, key); ok {
		return c, nil
	}

	start := time.Now()
	dtos, err := a.client.OptionChain(ctx, underlying, expiration)
	a.observe("contract", start, err)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, d := range dtos {
		if models.OptionType(d.OptionType) == typ && math.Abs(d.Strike-strike) < 1e-6 {
			c := a.normalizeContract(underlying, d, now)
			a.cache.Set(key, &c, ttlChain)
			return &c, nil
		}
	}
	return nil, &models.DataProviderError{
		Vendor: VendorName,
		Code:   models.ErrCodeNotFound,
		Err:    fmt.Errorf("no %s %s %.2f contract for %s", expiration, typ, strike, underlying),
	}
}

// GetExpirations lists expiration dates, optionally windowed.
func (a *Adapter) GetExpirations(ctx context.Context, underlying string, opts *models.ExpirationOptions) ([]string, error) {
	all, err := a.expirations(ctx, underlying)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		return all, nil
	}
	out := make([]string, 0, len(all))
	for _, d := range all {
		if opts.MinDate != "" && d < opts.MinDate {
			continue
		}
		if opts.MaxDate != "" && d > opts.MaxDate {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// GetFlowData aggregates option order flow from the near-dated chain. The
// vendor has no dedicated flow endpoint; sweeps and blocks are inferred
// from unusual volume relative to open interest.
func (a *Adapter) GetFlowData(ctx context.Context, underlying string, opts *models.FlowOptions) (*models.FlowData, error) {
	key := reqcache.Key("flow", underlying)
	if f, ok := reqcache.GetTyped[*models.FlowData](a.cache, key); ok {
		return f, nil
	}

	start := time.Now()
	ch, err := a.fetchChain(ctx, underlying, nil)
	a.observe("flow", start, err)
	if err != nil {
		return nil, err
	}

	f := aggregateFlow(underlying, ch)
	a.cache.Set(key, f, ttlFlow)
	return f, nil
}

// GetIndexSnapshot fetches quotes plus default-timeframe candles and
// indicators for each ticker. A ticker whose candle fetch fails still gets
// a quote-only snapshot.
func (a *Adapter) GetIndexSnapshot(ctx context.Context, tickers []string) (map[string]*models.IndexSnapshot, error) {
	start := time.Now()
	quotes, err := a.client.Quotes(ctx, tickers)
	a.observe("indices", start, err)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, &models.DataProviderError{
			Vendor: VendorName,
			Code:   models.ErrCodeNotFound,
			Err:    fmt.Errorf("no quotes for %s", strings.Join(tickers, ",")),
		}
	}

	now := time.Now()
	tf := repository.DefaultTimeframe()
	out := make(map[string]*models.IndexSnapshot, len(quotes))
	for _, q := range quotes {
		snap := &models.IndexSnapshot{
			Symbol: q.Symbol,
			Quote: models.IndexQuote{
				Value:         q.Last,
				Change:        q.Change,
				ChangePercent: q.ChangePercentage,
				Open:          q.Open,
				High:          q.High,
				Low:           q.Low,
				PrevClose:     q.PrevClose,
			},
			Timeframes: make(map[string]*models.Timeframe),
			UpdatedAt:  now,
		}
		candles, err := a.GetCandles(ctx, q.Symbol, tf, now.Add(-6*time.Hour), now, 60)
		if err != nil {
			a.log.Warn("index candles unavailable",
				logger.String("ticker", q.Symbol), logger.Error(err))
		} else if len(candles) > 0 {
			snap.Timeframes[string(tf)] = &models.Timeframe{
				Label:      string(tf),
				Candles:    candles,
				Indicators: indicators.Compute(candles),
			}
		}

		res := a.engine.ValidateIndexSnapshot(snap)
		snap.Quality = a.engine.NewQualityFlags(res, models.SourcePrimary, "")
		a.recordConfidence(q.Symbol, snap.Quality.Confidence)
		out[q.Symbol] = snap
	}
	return out, nil
}

// GetIndicators computes the indicator set over recent candles.
func (a *Adapter) GetIndicators(ctx context.Context, ticker string, timeframe repository.Timeframe, lookback int) (*models.IndicatorSet, error) {
	if lookback <= 0 {
		lookback = 60
	}
	to := time.Now()
	from := to.Add(-time.Duration(lookback*2) * timeframeDuration(timeframe))
	candles, err := a.GetCandles(ctx, ticker, timeframe, from, to, lookback)
	if err != nil {
		return nil, err
	}
	set := indicators.Compute(candles)
	return &set, nil
}

// GetCandles fetches OHLCV bars. Daily uses the history endpoint, hourly
// is aggregated client-side from 15m bars.
func (a *Adapter) GetCandles(ctx context.Context, ticker string, timeframe repository.Timeframe, from, to time.Time, limit int) ([]models.Candle, error) {
	from, to = util.AlignFromTo(from, to, string(timeframe))
	key := reqcache.Key("candles", ticker, timeframe, from.Unix(), to.Unix(), limit)
	if cs, ok := reqcache.GetTyped[[]models.Candle](a.cache, key); ok {
		return cs, nil
	}

	start := time.Now()
	candles, err := a.fetchCandles(ctx, ticker, timeframe, from, to)
	a.observe("candles", start, err)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	a.cache.Set(key, candles, ttlCandles)
	return candles, nil
}

func (a *Adapter) fetchCandles(ctx context.Context, ticker string, timeframe repository.Timeframe, from, to time.Time) ([]models.Candle, error) {
	if timeframe == repository.TF1d {
		days, err := a.client.History(ctx, ticker, from, to)
		if err != nil {
			return nil, err
		}
		candles := make([]models.Candle, 0, len(days))
		for _, d := range days {
			t, ok := util.ParseDate(d.Date)
			if !ok {
				continue
			}
			candles = append(candles, models.Candle{
				Time: t, Open: d.Open, High: d.High, Low: d.Low,
				Close: d.Close, Volume: float64(d.Volume),
			})
		}
		return candles, nil
	}

	interval := vendorInterval(timeframe)
	points, err := a.client.TimeSales(ctx, ticker, interval, from, to)
	if err != nil {
		return nil, err
	}
	candles := make([]models.Candle, 0, len(points))
	for _, p := range points {
		candles = append(candles, models.Candle{
			Time: time.Unix(p.Timestamp, 0), Open: p.Open, High: p.High,
			Low: p.Low, Close: p.Close, Volume: float64(p.Volume),
		})
	}
	if timeframe == repository.TF1h {
		candles = aggregateCandles(candles, 4)
	}
	return candles, nil
}

// GetEquityQuote fetches one stock quote.
func (a *Adapter) GetEquityQuote(ctx context.Context, symbol string) (*models.EquityQuote, error) {
	key := reqcache.Key("equity", symbol)
	if q, ok := reqcache.GetTyped[*models.EquityQuote](a.cache, key); ok {
		return q, nil
	}

	start := time.Now()
	quotes, err := a.client.Quotes(ctx, []string{symbol})
	a.observe("quote", start, err)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, &models.DataProviderError{
			Vendor: VendorName,
			Code:   models.ErrCodeNotFound,
			Err:    fmt.Errorf("no quote for %s", symbol),
		}
	}

	q := a.normalizeEquity(quotes[0], time.Now())
	a.cache.Set(key, q, ttlQuote)
	return q, nil
}

// GetBars fetches interval bars for an equity, VWAP included when the
// vendor reports it.
func (a *Adapter) GetBars(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]models.Bar, error) {
	tf := repository.NormalizeTimeframe(interval)
	from, to = util.AlignFromTo(from, to, string(tf))
	key := reqcache.Key("bars", symbol, tf, from.Unix(), to.Unix(), limit)
	if bs, ok := reqcache.GetTyped[[]models.Bar](a.cache, key); ok {
		return bs, nil
	}

	start := time.Now()
	var bars []models.Bar
	var err error
	if tf == repository.TF1d {
		var days []historyDay
		days, err = a.client.History(ctx, symbol, from, to)
		for _, d := range days {
			t, ok := util.ParseDate(d.Date)
			if !ok {
				continue
			}
			bars = append(bars, models.Bar{
				Time: t, Open: d.Open, High: d.High, Low: d.Low,
				Close: d.Close, Volume: d.Volume,
			})
		}
	} else {
		var points []timesalePoint
		points, err = a.client.TimeSales(ctx, symbol, vendorInterval(tf), from, to)
		for _, p := range points {
			bars = append(bars, models.Bar{
				Time: time.Unix(p.Timestamp, 0), Open: p.Open, High: p.High,
				Low: p.Low, Close: p.Close, Volume: p.Volume, VWAP: p.VWAP,
			})
		}
	}
	a.observe("bars", start, err)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	a.cache.Set(key, bars, ttlCandles)
	return bars, nil
}

// --- push subscriptions ---

// SubscribeToChain refetches the chain on underlying activity, throttled.
func (a *Adapter) SubscribeToChain(underlying string, fn repository.ChainCallback) (repository.Unsubscribe, error) {
	if a.stream == nil {
		return nil, models.ErrStreamingUnsupported
	}
	th := newThrottle(2 * time.Second)
	return a.stream.watch(underlying, func(ev streamEvent) {
		if !th.allow() {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			ch, err := a.GetOptionChain(ctx, underlying, nil)
			if err != nil {
				a.log.Warn("push chain refresh failed",
					logger.String("underlying", underlying), logger.Error(err))
				return
			}
			fn(ch)
		}()
	})
}

// SubscribeToOption delivers quote updates for one contract.
func (a *Adapter) SubscribeToOption(underlying string, strike float64, expiration string, typ models.OptionType, fn repository.ContractCallback) (repository.Unsubscribe, error) {
	if a.stream == nil {
		return nil, models.ErrStreamingUnsupported
	}
	occ := occSymbol(underlying, expiration, typ, strike)
	return a.stream.watch(occ, func(ev streamEvent) {
		if ev.Type != "quote" && ev.Type != "trade" {
			return
		}
		now := time.Now()
		c := models.OptionContract{
			Symbol:     occ,
			Underlying: underlying,
			Strike:     strike,
			Expiration: expiration,
			Type:       typ,
			Quote: models.OptionQuote{
				Bid:  ev.Bid,
				Ask:  ev.Ask,
				Last: lastPrice(ev),
				Mid:  quality.Mid(ev.Bid, ev.Ask, lastPrice(ev)),
			},
			Liquidity: quality.DeriveLiquidity(ev.Volume, 0, ev.Bid, ev.Ask),
			Quality:   models.QualityFlags{UpdatedAt: now},
		}
		if dte, ok := util.DaysUntil(expiration, now); ok {
			c.DTE = dte
		}
		res := a.engine.ValidateContract(&c)
		c.Quality = a.engine.NewQualityFlags(res, models.SourcePrimary, "")
		fn(&c)
	})
}

// SubscribeToFlow recomputes flow on underlying activity, throttled.
func (a *Adapter) SubscribeToFlow(underlying string, fn repository.FlowCallback) (repository.Unsubscribe, error) {
	if a.stream == nil {
		return nil, models.ErrStreamingUnsupported
	}
	th := newThrottle(5 * time.Second)
	return a.stream.watch(underlying, func(ev streamEvent) {
		if !th.allow() {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			f, err := a.GetFlowData(ctx, underlying, nil)
			if err != nil {
				a.log.Warn("push flow refresh failed",
					logger.String("underlying", underlying), logger.Error(err))
				return
			}
			fn(f)
		}()
	})
}

// SubscribeToIndex delivers quote-only snapshot updates for an index.
func (a *Adapter) SubscribeToIndex(ticker string, fn repository.IndexCallback) (repository.Unsubscribe, error) {
	if a.stream == nil {
		return nil, models.ErrStreamingUnsupported
	}
	return a.stream.watch(ticker, func(ev streamEvent) {
		if ev.Type != "quote" && ev.Type != "trade" {
			return
		}
		snap := &models.IndexSnapshot{
			Symbol:    ticker,
			Quote:     models.IndexQuote{Value: lastPrice(ev)},
			UpdatedAt: time.Now(),
		}
		res := a.engine.ValidateIndexSnapshot(snap)
		snap.Quality = a.engine.NewQualityFlags(res, models.SourcePrimary, "")
		fn(snap)
	})
}

// SubscribeToTimeframe delivers fresh candles and indicators once per
// timeframe period.
func (a *Adapter) SubscribeToTimeframe(ticker string, timeframe repository.Timeframe, fn repository.TimeframeCallback) (repository.Unsubscribe, error) {
	if a.stream == nil {
		return nil, models.ErrStreamingUnsupported
	}
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		tk := time.NewTicker(timeframeDuration(timeframe))
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				to := time.Now()
				candles, err := a.GetCandles(ctx, ticker, timeframe, to.Add(-60*timeframeDuration(timeframe)), to, 60)
				cancel()
				if err != nil || len(candles) == 0 {
					continue
				}
				fn(ticker, &models.Timeframe{
					Label:      string(timeframe),
					Candles:    candles,
					Indicators: indicators.Compute(candles),
				})
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }, nil
}

// SubscribeToEquity delivers stock quote updates.
func (a *Adapter) SubscribeToEquity(symbol string, fn repository.EquityCallback) (repository.Unsubscribe, error) {
	if a.stream == nil {
		return nil, models.ErrStreamingUnsupported
	}
	return a.stream.watch(symbol, func(ev streamEvent) {
		if ev.Type != "quote" && ev.Type != "trade" {
			return
		}
		q := &models.EquityQuote{
			Symbol:    symbol,
			Price:     lastPrice(ev),
			Bid:       ev.Bid,
			Ask:       ev.Ask,
			Volume:    ev.Volume,
			UpdatedAt: time.Now(),
		}
		res := a.engine.ValidateEquityQuote(q)
		q.Quality = a.engine.NewQualityFlags(res, models.SourcePrimary, "")
		fn(q)
	})
}

// --- normalization helpers ---

func (a *Adapter) normalizeContract(underlying string, d optionDTO, now time.Time) models.OptionContract {
	c := models.OptionContract{
		Symbol:     d.Symbol,
		Underlying: underlying,
		Strike:     d.Strike,
		Expiration: d.ExpirationDate,
		Type:       models.OptionType(d.OptionType),
		Quote: models.OptionQuote{
			Bid:     d.Bid,
			Ask:     d.Ask,
			Last:    d.Last,
			Mid:     quality.Mid(d.Bid, d.Ask, d.Last),
			BidSize: d.BidSize,
			AskSize: d.AskSize,
		},
		Liquidity: quality.DeriveLiquidity(d.Volume, d.OpenInterest, d.Bid, d.Ask),
		Quality:   models.QualityFlags{UpdatedAt: now},
	}
	if dte, ok := util.DaysUntil(d.ExpirationDate, now); ok {
		c.DTE = dte
	}
	if d.Greeks != nil {
		midIV, notes := iv.Normalize(d.Greeks.MidIV, iv.EncodingDecimal)
		bidIV, _ := iv.Normalize(d.Greeks.BidIV, iv.EncodingDecimal)
		askIV, _ := iv.Normalize(d.Greeks.AskIV, iv.EncodingDecimal)
		for _, n := range notes {
			a.log.Debug("iv normalized", logger.String("symbol", d.Symbol), logger.String("note", n))
		}
		c.Greeks = models.Greeks{
			Delta: d.Greeks.Delta, Gamma: d.Greeks.Gamma,
			Theta: d.Greeks.Theta, Vega: d.Greeks.Vega, Rho: d.Greeks.Rho,
			IV: midIV, IVBid: bidIV, IVAsk: askIV,
		}
	}

	res := a.engine.ValidateContract(&c)
	c.Quality = a.engine.NewQualityFlags(res, models.SourcePrimary, "")
	return c
}

func (a *Adapter) normalizeEquity(d quoteDTO, now time.Time) *models.EquityQuote {
	q := &models.EquityQuote{
		Symbol:        d.Symbol,
		Price:         d.Last,
		Change:        d.Change,
		ChangePercent: d.ChangePercentage,
		Bid:           d.Bid,
		Ask:           d.Ask,
		Volume:        d.Volume,
		UpdatedAt:     now,
	}
	res := a.engine.ValidateEquityQuote(q)
	q.Quality = a.engine.NewQualityFlags(res, models.SourcePrimary, "")
	a.recordConfidence(d.Symbol, q.Quality.Confidence)
	return q
}

func (a *Adapter) expirations(ctx context.Context, underlying string) ([]string, error) {
	key := reqcache.Key("expirations", underlying)
	if exps, ok := reqcache.GetTyped[[]string](a.cache, key); ok {
		return exps, nil
	}
	start := time.Now()
	exps, err := a.client.Expirations(ctx, underlying)
	a.observe("expirations", start, err)
	if err != nil {
		return nil, err
	}
	sort.Strings(exps)
	a.cache.Set(key, exps, ttlExpirations)
	return exps, nil
}

func (a *Adapter) underlyingPrice(ctx context.Context, underlying string) (float64, error) {
	q, err := a.GetEquityQuote(ctx, underlying)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

func (a *Adapter) observe(op string, start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	a.metrics.RecordVendorRequest(VendorName, op, outcome)
	a.metrics.RecordLatency(VendorName+"_"+op, time.Since(start).Seconds())
}

func (a *Adapter) recordConfidence(symbol string, confidence float64) {
	if a.metrics != nil {
		a.metrics.RecordConfidence(symbol, confidence)
	}
}

// --- pure helpers ---

func chainOptsKey(opts *models.ChainOptions) string {
	if opts == nil {
		return "all"
	}
	return fmt.Sprintf("%v:%v:%s:%s:%d:%d:%d:%v",
		opts.StrikeMin, opts.StrikeMax, opts.ExpirationMin, opts.ExpirationMax,
		opts.Limit, opts.MinVolume, opts.MinOpenInterest, opts.MaxSpreadPercent)
}

// selectExpirations picks the requested expiration window, or the nearest
// few when the request has no window.
func selectExpirations(all []string, opts *models.ChainOptions) []string {
	if opts != nil && (opts.ExpirationMin != "" || opts.ExpirationMax != "") {
		out := make([]string, 0, len(all))
		for _, d := range all {
			if opts.ExpirationMin != "" && d < opts.ExpirationMin {
				continue
			}
			if opts.ExpirationMax != "" && d > opts.ExpirationMax {
				continue
			}
			out = append(out, d)
		}
		return out
	}
	if len(all) > maxChainExpirations {
		return all[:maxChainExpirations]
	}
	return all
}

func filterContracts(contracts []models.OptionContract, opts *models.ChainOptions) []models.OptionContract {
	if opts == nil {
		return contracts
	}
	out := contracts[:0]
	for _, c := range contracts {
		if opts.StrikeMin > 0 && c.Strike < opts.StrikeMin {
			continue
		}
		if opts.StrikeMax > 0 && c.Strike > opts.StrikeMax {
			continue
		}
		if opts.MinVolume > 0 && c.Liquidity.Volume < opts.MinVolume {
			continue
		}
		if opts.MinOpenInterest > 0 && c.Liquidity.OpenInterest < opts.MinOpenInterest {
			continue
		}
		if opts.MaxSpreadPercent > 0 && c.Liquidity.SpreadPercent > opts.MaxSpreadPercent {
			continue
		}
		out = append(out, c)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func aggregateFlow(underlying string, ch *models.OptionChain) *models.FlowData {
	f := &models.FlowData{
		Underlying: underlying,
		Sentiment:  models.FlowNeutral,
		Quality:    ch.Quality,
		UpdatedAt:  ch.UpdatedAt,
	}
	for i := range ch.Contracts {
		c := &ch.Contracts[i]
		premium := float64(c.Liquidity.Volume) * c.Quote.Mid * 100
		switch c.Type {
		case models.OptionCall:
			f.CallVolume += c.Liquidity.Volume
			f.CallPremium += premium
		case models.OptionPut:
			f.PutVolume += c.Liquidity.Volume
			f.PutPremium += premium
		}
		if c.Liquidity.Volume >= 1000 && c.Liquidity.Volume > 2*c.Liquidity.OpenInterest {
			f.SweepCount++
		}
		if c.Liquidity.Volume >= 5000 {
			f.BlockCount++
		}
	}
	f.NetPremium = f.CallPremium - f.PutPremium
	if f.CallVolume > 0 {
		f.PutCallRatio = float64(f.PutVolume) / float64(f.CallVolume)
	}
	switch {
	case f.NetPremium > 0 && f.PutCallRatio < 1:
		f.Sentiment = models.FlowBullish
	case f.NetPremium < 0 && f.PutCallRatio > 1:
		f.Sentiment = models.FlowBearish
	}
	return f
}

func aggregateCandles(candles []models.Candle, group int) []models.Candle {
	if group <= 1 || len(candles) == 0 {
		return candles
	}
	out := make([]models.Candle, 0, (len(candles)+group-1)/group)
	for i := 0; i < len(candles); i += group {
		end := i + group
		if end > len(candles) {
			end = len(candles)
		}
		agg := candles[i]
		for _, c := range candles[i+1 : end] {
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Close = c.Close
			agg.Volume += c.Volume
		}
		out = append(out, agg)
	}
	return out
}

func vendorInterval(tf repository.Timeframe) string {
	switch tf {
	case repository.TF1m:
		return "1min"
	case repository.TF15m, repository.TF1h:
		return "15min"
	default:
		return "5min"
	}
}

func timeframeDuration(tf repository.Timeframe) time.Duration {
	switch tf {
	case repository.TF1m:
		return time.Minute
	case repository.TF15m:
		return 15 * time.Minute
	case repository.TF1h:
		return time.Hour
	case repository.TF1d:
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

func lastPrice(ev streamEvent) float64 {
	if ev.Price > 0 {
		return ev.Price
	}
	return ev.Last
}

// occSymbol builds the OCC-style contract symbol, e.g. SPY251219C00450000.
func occSymbol(underlying, expiration string, typ models.OptionType, strike float64) string {
	cp := "C"
	if typ == models.OptionPut {
		cp = "P"
	}
	date := strings.ReplaceAll(expiration, "-", "")
	if t, ok := util.ParseDate(expiration); ok {
		date = t.Format("060102")
	}
	return fmt.Sprintf("%s%s%s%08d", strings.ToUpper(underlying), date, cp, int64(math.Round(strike*1000)))
}

type throttle struct {
	mu   sync.Mutex
	last time.Time
	min  time.Duration
}

func newThrottle(min time.Duration) *throttle {
	return &throttle{min: min}
}

func (t *throttle) allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.last) < t.min {
		return false
	}
	t.last = now
	return true
}
