// Package marketfeed is the secondary vendor adapter. The vendor is
// fetch-only: every subscription operation reports streaming as
// unsupported and the hybrid router knows to keep push traffic on the
// primary.
package marketfeed

import (
	"context"
	"fmt"
	"math"
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

const (
	ttlQuote       = 2 * time.Second
	ttlChain       = 5 * time.Second
	ttlCandles     = 30 * time.Second
	ttlExpirations = time.Hour
)

const maxChainExpirations = 2

// Adapter implements repository.MarketDataProvider over the chart API.
type Adapter struct {
	client  *Client
	engine  *quality.Engine
	cache   *reqcache.TTLCache
	metrics repository.Metrics
	log     *logger.Logger
}

// NewAdapter wires the fetch-only adapter.
func NewAdapter(client *Client, engine *quality.Engine, metrics repository.Metrics, log *logger.Logger) *Adapter {
	return &Adapter{
		client:  client,
		engine:  engine,
		cache:   reqcache.NewTTLCache(),
		metrics: metrics,
		log:     log,
	}
}

// Name returns the vendor identifier.
func (a *Adapter) Name() string { return VendorName }

// GetOptionChain fetches and scores the chain for underlying.
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
	first, err := a.client.Options(ctx, underlying, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dates := selectExpirationDates(first.ExpirationDates, opts)
	contracts := make([]models.OptionContract, 0, 64)

	fetched := make(map[int64]bool)
	for _, blk := range first.Options {
		fetched[blk.ExpirationDate] = true
	}
	for _, blk := range first.Options {
		if containsDate(dates, blk.ExpirationDate) {
			contracts = append(contracts, a.normalizeBlock(underlying, blk, now)...)
		}
	}
	for _, date := range dates {
		if fetched[date] {
			continue
		}
		res, err := a.client.Options(ctx, underlying, date)
		if err != nil {
			return nil, err
		}
		for _, blk := range res.Options {
			contracts = append(contracts, a.normalizeBlock(underlying, blk, now)...)
		}
	}
	contracts = filterContracts(contracts, opts)

	ch := &models.OptionChain{
		Underlying:      underlying,
		UnderlyingPrice: first.Quote.RegularMarketPrice,
		Contracts:       contracts,
		UpdatedAt:       now,
	}
	res := a.engine.ValidateChain(ch)
	ch.Quality = a.engine.NewQualityFlags(res, models.SourceSecondary, "")
	a.recordConfidence(underlying, ch.Quality.Confidence)
	return ch, nil
}

// GetOptionContract fetches one contract by strike, expiration and type.
func (a *Adapter) GetOptionContract(ctx context.Context, underlying string, strike float64, expiration string, typ models.OptionType) (*models.OptionContract, error) {
	exp, ok := util.ParseDate(expiration)
	if !ok {
		return nil, &models.DataProviderError{
			Vendor: VendorName,
			Code:   models.ErrCodeMalformed,
			Err:    fmt.Errorf("bad expiration %q", expiration),
		}
	}

	start := time.Now()
	res, err := a.client.Options(ctx, underlying, exp.Unix())
	a.observe("contract", start, err)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, blk := range res.Options {
		dtos := blk.Calls
		if typ == models.OptionPut {
			dtos = blk.Puts
		}
		for _, d := range dtos {
			if math.Abs(d.Strike-strike) < 1e-6 {
				c := a.normalizeContract(underlying, d, typ, now)
				return &c, nil
			}
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
	key := reqcache.Key("expirations", underlying)
	dates, ok := reqcache.GetTyped[[]string](a.cache, key)
	if !ok {
		start := time.Now()
		res, err := a.client.Options(ctx, underlying, 0)
		a.observe("expirations", start, err)
		if err != nil {
			return nil, err
		}
		dates = make([]string, 0, len(res.ExpirationDates))
		for _, d := range res.ExpirationDates {
			dates = append(dates, expirationString(d))
		}
		a.cache.Set(key, dates, ttlExpirations)
	}

	if opts == nil {
		return dates, nil
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
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

// GetFlowData is not available from this vendor.
func (a *Adapter) GetFlowData(ctx context.Context, underlying string, opts *models.FlowOptions) (*models.FlowData, error) {
	return nil, &models.DataProviderError{
		Vendor: VendorName,
		Code:   models.ErrCodeNotFound,
		Err:    fmt.Errorf("flow data not offered for %s", underlying),
	}
}

// GetIndexSnapshot fetches a chart per ticker. Tickers that fail are
// skipped; only an all-ticker failure is an error.
func (a *Adapter) GetIndexSnapshot(ctx context.Context, tickers []string) (map[string]*models.IndexSnapshot, error) {
	now := time.Now()
	tf := repository.DefaultTimeframe()
	out := make(map[string]*models.IndexSnapshot, len(tickers))
	var lastErr error

	for _, ticker := range tickers {
		start := time.Now()
		cr, err := a.client.Chart(ctx, ticker, chartInterval(tf), now.Add(-6*time.Hour), now)
		a.observe("indices", start, err)
		if err != nil {
			a.log.Warn("index chart unavailable",
				logger.String("ticker", ticker), logger.Error(err))
			lastErr = err
			continue
		}

		candles := candlesFromChart(cr)
		snap := &models.IndexSnapshot{
			Symbol: ticker,
			Quote: models.IndexQuote{
				Value:         cr.Meta.RegularMarketPrice,
				Change:        cr.Meta.RegularMarketPrice - cr.Meta.ChartPreviousClose,
				High:          cr.Meta.RegularMarketDayHigh,
				Low:           cr.Meta.RegularMarketDayLow,
				PrevClose:     cr.Meta.ChartPreviousClose,
			},
			Timeframes: make(map[string]*models.Timeframe),
			UpdatedAt:  now,
		}
		if cr.Meta.ChartPreviousClose > 0 {
			snap.Quote.ChangePercent = snap.Quote.Change / cr.Meta.ChartPreviousClose * 100
		}
		if len(candles) > 0 {
			snap.Quote.Open = candles[0].Open
			snap.Timeframes[string(tf)] = &models.Timeframe{
				Label:      string(tf),
				Candles:    candles,
				Indicators: indicators.Compute(candles),
			}
		}

		res := a.engine.ValidateIndexSnapshot(snap)
		snap.Quality = a.engine.NewQualityFlags(res, models.SourceSecondary, "")
		a.recordConfidence(ticker, snap.Quality.Confidence)
		out[ticker] = snap
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
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

// GetCandles fetches OHLCV bars for one ticker and timeframe.
func (a *Adapter) GetCandles(ctx context.Context, ticker string, timeframe repository.Timeframe, from, to time.Time, limit int) ([]models.Candle, error) {
	from, to = util.AlignFromTo(from, to, string(timeframe))
	key := reqcache.Key("candles", ticker, timeframe, from.Unix(), to.Unix(), limit)
	if cs, ok := reqcache.GetTyped[[]models.Candle](a.cache, key); ok {
		return cs, nil
	}

	start := time.Now()
	cr, err := a.client.Chart(ctx, ticker, chartInterval(timeframe), from, to)
	a.observe("candles", start, err)
	if err != nil {
		return nil, err
	}
	candles := candlesFromChart(cr)
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	a.cache.Set(key, candles, ttlCandles)
	return candles, nil
}

// GetEquityQuote fetches one stock quote from chart metadata.
func (a *Adapter) GetEquityQuote(ctx context.Context, symbol string) (*models.EquityQuote, error) {
	key := reqcache.Key("equity", symbol)
	if q, ok := reqcache.GetTyped[*models.EquityQuote](a.cache, key); ok {
		return q, nil
	}

	start := time.Now()
	now := time.Now()
	cr, err := a.client.Chart(ctx, symbol, "1m", now.Add(-15*time.Minute), now)
	a.observe("quote", start, err)
	if err != nil {
		return nil, err
	}

	q := &models.EquityQuote{
		Symbol:    symbol,
		Price:     cr.Meta.RegularMarketPrice,
		Change:    cr.Meta.RegularMarketPrice - cr.Meta.ChartPreviousClose,
		Volume:    cr.Meta.RegularMarketVolume,
		UpdatedAt: now,
	}
	if cr.Meta.ChartPreviousClose > 0 {
		q.ChangePercent = q.Change / cr.Meta.ChartPreviousClose * 100
	}
	res := a.engine.ValidateEquityQuote(q)
	q.Quality = a.engine.NewQualityFlags(res, models.SourceSecondary, "")
	a.recordConfidence(symbol, q.Quality.Confidence)
	a.cache.Set(key, q, ttlQuote)
	return q, nil
}

// GetBars fetches interval bars for an equity. The vendor reports no VWAP.
func (a *Adapter) GetBars(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]models.Bar, error) {
	tf := repository.NormalizeTimeframe(interval)
	candles, err := a.GetCandles(ctx, symbol, tf, from, to, limit)
	if err != nil {
		return nil, err
	}
	bars := make([]models.Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, models.Bar{
			Time: c.Time, Open: c.Open, High: c.High, Low: c.Low,
			Close: c.Close, Volume: int64(c.Volume),
		})
	}
	return bars, nil
}

// --- subscriptions: fetch-only vendor ---

func (a *Adapter) SubscribeToChain(string, repository.ChainCallback) (repository.Unsubscribe, error) {
	return nil, models.ErrStreamingUnsupported
}

func (a *Adapter) SubscribeToOption(string, float64, string, models.OptionType, repository.ContractCallback) (repository.Unsubscribe, error) {
	return nil, models.ErrStreamingUnsupported
}

func (a *Adapter) SubscribeToFlow(string, repository.FlowCallback) (repository.Unsubscribe, error) {
	return nil, models.ErrStreamingUnsupported
}

func (a *Adapter) SubscribeToIndex(string, repository.IndexCallback) (repository.Unsubscribe, error) {
	return nil, models.ErrStreamingUnsupported
}

func (a *Adapter) SubscribeToTimeframe(string, repository.Timeframe, repository.TimeframeCallback) (repository.Unsubscribe, error) {
	return nil, models.ErrStreamingUnsupported
}

func (a *Adapter) SubscribeToEquity(string, repository.EquityCallback) (repository.Unsubscribe, error) {
	return nil, models.ErrStreamingUnsupported
}

// --- normalization helpers ---

func (a *Adapter) normalizeBlock(underlying string, blk optionsBlock, now time.Time) []models.OptionContract {
	out := make([]models.OptionContract, 0, len(blk.Calls)+len(blk.Puts))
	for _, d := range blk.Calls {
		out = append(out, a.normalizeContract(underlying, d, models.OptionCall, now))
	}
	for _, d := range blk.Puts {
		out = append(out, a.normalizeContract(underlying, d, models.OptionPut, now))
	}
	return out
}

func (a *Adapter) normalizeContract(underlying string, d optionDTO, typ models.OptionType, now time.Time) models.OptionContract {
	impliedVol, notes := iv.Normalize(d.ImpliedVolatility, iv.EncodingPercent)
	for _, n := range notes {
		a.log.Debug("iv normalized", logger.String("symbol", d.ContractSymbol), logger.String("note", n))
	}

	c := models.OptionContract{
		Symbol:     d.ContractSymbol,
		Underlying: underlying,
		Strike:     d.Strike,
		Expiration: expirationString(d.Expiration),
		Type:       typ,
		Quote: models.OptionQuote{
			Bid:  d.Bid,
			Ask:  d.Ask,
			Last: d.LastPrice,
			Mid:  quality.Mid(d.Bid, d.Ask, d.LastPrice),
		},
		Greeks:    models.Greeks{IV: impliedVol},
		Liquidity: quality.DeriveLiquidity(d.Volume, d.OpenInterest, d.Bid, d.Ask),
		Quality:   models.QualityFlags{UpdatedAt: now},
	}
	if dte, ok := util.DaysUntil(c.Expiration, now); ok {
		c.DTE = dte
	}
	res := a.engine.ValidateContract(&c)
	c.Quality = a.engine.NewQualityFlags(res, models.SourceSecondary, "")
	return c
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

func expirationString(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(util.DateLayout)
}

func chainOptsKey(opts *models.ChainOptions) string {
	if opts == nil {
		return "all"
	}
	return fmt.Sprintf("%v:%v:%s:%s:%d:%d:%d:%v",
		opts.StrikeMin, opts.StrikeMax, opts.ExpirationMin, opts.ExpirationMax,
		opts.Limit, opts.MinVolume, opts.MinOpenInterest, opts.MaxSpreadPercent)
}

func selectExpirationDates(all []int64, opts *models.ChainOptions) []int64 {
	if opts != nil && (opts.ExpirationMin != "" || opts.ExpirationMax != "") {
		out := make([]int64, 0, len(all))
		for _, d := range all {
			s := expirationString(d)
			if opts.ExpirationMin != "" && s < opts.ExpirationMin {
				continue
			}
			if opts.ExpirationMax != "" && s > opts.ExpirationMax {
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

func containsDate(dates []int64, d int64) bool {
	for _, v := range dates {
		if v == d {
			return true
		}
	}
	return false
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

func candlesFromChart(cr *chartResult) []models.Candle {
	if len(cr.Indicators.Quote) == 0 {
		return nil
	}
	q := cr.Indicators.Quote[0]
	n := len(cr.Timestamp)
	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) {
			break
		}
		c := models.Candle{
			Time:  time.Unix(cr.Timestamp[i], 0),
			Open:  q.Open[i],
			High:  q.High[i],
			Low:   q.Low[i],
			Close: q.Close[i],
		}
		if i < len(q.Volume) {
			c.Volume = float64(q.Volume[i])
		}
		candles = append(candles, c)
	}
	return candles
}

func chartInterval(tf repository.Timeframe) string {
	switch tf {
	case repository.TF1m:
		return "1m"
	case repository.TF15m:
		return "15m"
	case repository.TF1h:
		return "60m"
	case repository.TF1d:
		return "1d"
	default:
		return "5m"
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
