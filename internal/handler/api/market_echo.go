// Package api exposes the consolidated market data over HTTP.
package api

import (
	"errors"
	"strings"
	"time"

	"MarketHub/internal/domain/models"
	domrepo "MarketHub/internal/domain/repository"
	"MarketHub/internal/usecase"
	xhttp "MarketHub/pkg/http"
	xlogger "MarketHub/pkg/logger"
	"MarketHub/pkg/util"

	"github.com/labstack/echo/v4"
)

// MarketHandler implements the Echo HTTP surface over the hybrid router
// and the hub.
type MarketHandler struct {
	logger *xlogger.Logger
	router *usecase.HybridRouter
	hub    *usecase.MarketHub
}

func NewMarketHandler(logger *xlogger.Logger, router *usecase.HybridRouter, hub *usecase.MarketHub) *MarketHandler {
	return &MarketHandler{logger: logger, router: router, hub: hub}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/chain", h.Chain)
	g.GET("/contract", h.Contract)
	g.GET("/expirations", h.Expirations)
	g.GET("/flow", h.Flow)
	g.GET("/indices", h.Indices)
	g.GET("/candles", h.Candles)
	g.GET("/quote", h.Quote)
	g.GET("/bars", h.Bars)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/health", h.Health)
	g.POST("/watchlist", h.Watchlist)
}

func (h *MarketHandler) Chain(c echo.Context) error {
	req := &models.ChainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ch, err := h.router.GetOptionChain(c.Request().Context(), strings.ToUpper(req.Symbol), &models.ChainOptions{
		StrikeMin:        req.StrikeMin,
		StrikeMax:        req.StrikeMax,
		ExpirationMin:    req.ExpirationMin,
		ExpirationMax:    req.ExpirationMax,
		Limit:            req.Limit,
		MinVolume:        req.MinVolume,
		MinOpenInterest:  req.MinOpenInterest,
		MaxSpreadPercent: req.MaxSpreadPercent,
	})
	if err != nil {
		return h.upstreamError(c, "chain", err)
	}
	return xhttp.SuccessResponse(c, ch)
}

func (h *MarketHandler) Contract(c echo.Context) error {
	req := &models.ContractRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	contract, err := h.router.GetOptionContract(c.Request().Context(),
		strings.ToUpper(req.Symbol), req.Strike, req.Expiration, models.OptionType(req.Type))
	if err != nil {
		return h.upstreamError(c, "contract", err)
	}
	return xhttp.SuccessResponse(c, contract)
}

func (h *MarketHandler) Expirations(c echo.Context) error {
	req := &models.ExpirationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	dates, err := h.router.GetExpirations(c.Request().Context(), strings.ToUpper(req.Symbol), &models.ExpirationOptions{
		MinDate: req.MinDate,
		MaxDate: req.MaxDate,
	})
	if err != nil {
		return h.upstreamError(c, "expirations", err)
	}
	return xhttp.SuccessResponse(c, dates)
}

func (h *MarketHandler) Flow(c echo.Context) error {
	req := &models.FlowRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	opts := &models.FlowOptions{}
	if t, ok := util.ParseTime(req.Start); ok {
		opts.StartTime = t
	}
	if t, ok := util.ParseTime(req.End); ok {
		opts.EndTime = t
	}
	flow, err := h.router.GetFlowData(c.Request().Context(), strings.ToUpper(req.Symbol), opts)
	if err != nil {
		return h.upstreamError(c, "flow", err)
	}
	return xhttp.SuccessResponse(c, flow)
}

func (h *MarketHandler) Indices(c echo.Context) error {
	req := &models.IndicesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tickers := splitTickers(req.Tickers)
	if len(tickers) == 0 {
		return xhttp.BadRequestResponse(c, "tickers must not be empty")
	}
	snaps, err := h.router.GetIndexSnapshot(c.Request().Context(), tickers)
	if err != nil {
		return h.upstreamError(c, "indices", err)
	}
	return xhttp.SuccessResponse(c, snaps)
}

func (h *MarketHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tf := domrepo.NormalizeTimeframe(req.Timeframe)
	to := util.ParseTimeDefault(req.To, time.Now())
	from := util.ParseTimeDefault(req.From, to.Add(-24*time.Hour))

	candles, err := h.router.GetCandles(c.Request().Context(), strings.ToUpper(req.Ticker), tf, from, to, req.Limit)
	if err != nil {
		return h.upstreamError(c, "candles", err)
	}
	return xhttp.SuccessResponse(c, candles)
}

func (h *MarketHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	quote, err := h.router.GetEquityQuote(c.Request().Context(), strings.ToUpper(req.Symbol))
	if err != nil {
		return h.upstreamError(c, "quote", err)
	}
	return xhttp.SuccessResponse(c, quote)
}

func (h *MarketHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := util.ParseTimeDefault(req.To, time.Now())
	from := util.ParseTimeDefault(req.From, to.Add(-24*time.Hour))

	bars, err := h.router.GetBars(c.Request().Context(), strings.ToUpper(req.Symbol), req.Interval, from, to, req.Limit)
	if err != nil {
		return h.upstreamError(c, "bars", err)
	}
	return xhttp.SuccessResponse(c, bars)
}

// Snapshot serves the hub's consolidated state.
func (h *MarketHandler) Snapshot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.hub.Snapshot())
}

// Health serves per-vendor router health.
func (h *MarketHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.router.Health())
}

// Watchlist replaces the hub's tracked symbols.
func (h *MarketHandler) Watchlist(c echo.Context) error {
	req := &models.WatchlistRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(s)))
	}
	h.hub.UpdateWatchlist(c.Request().Context(), symbols)
	return xhttp.SuccessResponse(c, map[string]interface{}{"watchlist": h.hub.Watchlist()})
}

// upstreamError maps provider failures onto HTTP statuses: both vendors
// down is a 502, a missing entity is a 404, anything else is a 500.
func (h *MarketHandler) upstreamError(c echo.Context, op string, err error) error {
	h.logger.Error(op+" failed", xlogger.Error(err))

	var all *models.AllProvidersFailedError
	if errors.As(err, &all) {
		return xhttp.BadGatewayResponse(c, all.Error())
	}
	var pe *models.DataProviderError
	if errors.As(err, &pe) && pe.Code == models.ErrCodeNotFound {
		return xhttp.NotFoundResponse(c, pe.Error())
	}
	return xhttp.AppErrorResponse(c, err)
}

func splitTickers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
