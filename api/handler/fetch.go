package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchgate/engine"
	"github.com/use-agent/fetchgate/mapper"
	"github.com/use-agent/fetchgate/metrics"
	"github.com/use-agent/fetchgate/models"
	"github.com/use-agent/fetchgate/normalize"
)

// Operation names used in logs and metrics.
const (
	OpGet      = "get"
	OpPost     = "post"
	OpPut      = "put"
	OpDelete   = "delete"
	OpDynamic  = "dynamic"
	OpStealthy = "stealthy"
)

type engineCall func(ctx context.Context, url string, opts engine.Options) (*engine.Response, error)

// Gateway holds what the fetch handlers share.
type Gateway struct {
	engine     engine.Engine
	metrics    *metrics.Metrics
	deadline   time.Duration
	normalizer normalize.Normalizer
}

// NewGateway creates a Gateway. m may be nil. A zero deadline leaves engine
// calls unbounded apart from the timeout forwarded in the options.
func NewGateway(eng engine.Engine, m *metrics.Metrics, deadline time.Duration) *Gateway {
	g := &Gateway{engine: eng, metrics: m, deadline: deadline}
	if m != nil {
		g.normalizer.OnSelectorError = func(kind string, _ error) { m.IncSelectorError(kind) }
	}
	return g
}

// FetcherGet returns a handler for POST /api/fetcher/get.
func (g *Gateway) FetcherGet() gin.HandlerFunc {
	return g.plain(OpGet, g.engine.Get)
}

// FetcherDelete returns a handler for POST /api/fetcher/delete.
func (g *Gateway) FetcherDelete() gin.HandlerFunc {
	return g.plain(OpDelete, g.engine.Delete)
}

// FetcherPost returns a handler for POST /api/fetcher/post.
func (g *Gateway) FetcherPost() gin.HandlerFunc {
	return g.withBody(OpPost, g.engine.Post)
}

// FetcherPut returns a handler for POST /api/fetcher/put.
func (g *Gateway) FetcherPut() gin.HandlerFunc {
	return g.withBody(OpPut, g.engine.Put)
}

// DynamicFetch returns a handler for POST /api/dynamic/fetch.
func (g *Gateway) DynamicFetch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DynamicFetchRequest
		if !bindJSON(c, &req) {
			return
		}
		req.Defaults()
		g.dispatch(c, OpDynamic, g.engine.FetchDynamic, req.URL, mapper.DynamicOptions(&req), req.CSSSelector, req.XPathSelector)
	}
}

// StealthyFetch returns a handler for POST /api/stealthy/fetch.
func (g *Gateway) StealthyFetch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StealthyFetchRequest
		if !bindJSON(c, &req) {
			return
		}
		req.Defaults()
		g.dispatch(c, OpStealthy, g.engine.FetchStealthy, req.URL, mapper.StealthyOptions(&req), req.CSSSelector, req.XPathSelector)
	}
}

func (g *Gateway) plain(op string, call engineCall) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FetcherGetRequest
		if !bindJSON(c, &req) {
			return
		}
		g.dispatch(c, op, call, req.URL, mapper.FetcherOptions(&req), req.CSSSelector, req.XPathSelector)
	}
}

func (g *Gateway) withBody(op string, call engineCall) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FetcherDataRequest
		if !bindJSON(c, &req) {
			return
		}
		g.dispatch(c, op, call, req.URL, mapper.FetcherDataOptions(&req), req.CSSSelector, req.XPathSelector)
	}
}

// dispatch invokes the engine and writes the normalized result. Any engine
// error becomes a 502 carrying the error text.
func (g *Gateway) dispatch(c *gin.Context, op string, call engineCall, url string, opts engine.Options, css, xpath string) {
	ctx := c.Request.Context()
	if g.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.deadline)
		defer cancel()
	}

	start := time.Now()
	resp, err := call(ctx, url, opts)
	elapsed := time.Since(start)
	if g.metrics != nil {
		g.metrics.RecordEngineCall(op, err, elapsed)
	}

	if err != nil {
		slog.Warn("engine call failed",
			"operation", op,
			"url", url,
			"request_id", c.GetString("request_id"),
			"elapsed", elapsed,
			"error", err,
		)
		respondError(c, models.EngineFailure(err))
		return
	}

	out := g.normalizer.Normalize(resp, css, xpath)
	slog.Debug("fetch completed",
		"operation", op,
		"url", url,
		"status", out.Status,
		"request_id", c.GetString("request_id"),
		"elapsed", elapsed,
	)
	c.JSON(http.StatusOK, out)
}
