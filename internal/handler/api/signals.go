package api

import (
	"encoding/json"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/internal/usecase"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/cache"
	xhttp "SigFuse/pkg/http"
	xlogger "SigFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const recentCacheTTL = 5 * time.Second

// SignalsHandler exposes the read surface over the aggregator: current
// fused signal, signal history and transport health.
type SignalsHandler struct {
	logger *xlogger.Logger
	agg    *usecase.Aggregator
	client *bus.Client
	store  domrepo.SignalStore
	cache  cache.Service
}

func NewSignalsHandler(
	logger *xlogger.Logger,
	agg *usecase.Aggregator,
	client *bus.Client,
	store domrepo.SignalStore,
	c cache.Service,
) *SignalsHandler {
	return &SignalsHandler{
		logger: logger,
		agg:    agg,
		client: client,
		store:  store,
		cache:  c,
	}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/signals/latest", h.Latest)
	g.GET("/signals/recent", h.Recent)
}

// Healthz is a liveness probe. It does not touch downstream dependencies
// so that a degraded transport never makes the process look dead.
func (h *SignalsHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// StatusResponse reports transport health, the channel catalog,
// input-stream readiness and persistence health.
type StatusResponse struct {
	Transport bus.Status      `json:"transport"`
	Channels  []string        `json:"channels"`
	Inputs    map[string]bool `json:"inputs"`
	Store     string          `json:"store"`
}

func (h *SignalsHandler) Status(c echo.Context) error {
	res := StatusResponse{
		Transport: h.client.Status(),
		Channels:  bus.AllChannels(),
		Inputs:    h.agg.InputsReady(),
		Store:     "disabled",
	}

	if h.store != nil {
		res.Store = "ok"
		if err := h.store.Health(c.Request().Context()); err != nil {
			h.logger.Error("store health check failed", xlogger.Error(err))
			res.Store = "unhealthy"
		}
	}

	return xhttp.SuccessResponse(c, res)
}

// Latest recomputes the signal from the current aggregated state. Returns
// 404 until all required input streams have delivered at least one message.
func (h *SignalsHandler) Latest(c echo.Context) error {
	data := h.agg.AggregateData()
	if data == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("aggregated state is incomplete, no signal available yet"))
	}

	signal := h.agg.GenerateSignal(data)
	return xhttp.SuccessResponse(c, models.NewSignalPayload(signal))
}

// RecentSignalsRequest bounds the history query.
type RecentSignalsRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

func (h *SignalsHandler) Recent(c echo.Context) error {
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("signal persistence is disabled"))
	}

	req := &RecentSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	key := cache.GenerateKeyWithParams("signals_recent", req.Limit)

	if h.cache != nil {
		if raw, err := h.cache.Get(ctx, key); err == nil {
			return xhttp.SuccessResponse(c, json.RawMessage(raw))
		}
	}

	signals, err := h.store.Recent(ctx, req.Limit)
	if err != nil {
		h.logger.Error("recent signals query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load recent signals"))
	}

	payloads := make([]models.SignalPayload, 0, len(signals))
	for _, s := range signals {
		payloads = append(payloads, models.NewSignalPayload(s))
	}

	if h.cache != nil {
		if raw, err := json.Marshal(payloads); err == nil {
			_ = h.cache.Set(ctx, key, raw, recentCacheTTL)
		}
	}

	return xhttp.SuccessResponse(c, payloads)
}
