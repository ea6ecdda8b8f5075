package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RodFetchFunc is the callback type that wraps the rod-based scraper.
// It is injected from main.go to avoid a circular import (engine/ -> scraper/).
type RodFetchFunc func(ctx context.Context, url string, opts Options, stealthy bool) (*Response, error)

// RodEngine is a browser-based engine that delegates to the rod scraper via a
// callback. The stealthy flag distinguishes the dynamic fetch mode ("rod")
// from the stealthy one ("rod-stealth").
type RodEngine struct {
	fetchFunc RodFetchFunc
	stealthy  bool
	name      string
}

// NewRodEngine creates a RodEngine.
//   - fetchFunc: callback that invokes the rod-based scraper (injected from main.go).
//   - stealthy: when true, anti-detection behaviours are requested on every fetch.
func NewRodEngine(fetchFunc RodFetchFunc, stealthy bool) *RodEngine {
	name := "rod"
	if stealthy {
		name = "rod-stealth"
	}
	return &RodEngine{
		fetchFunc: fetchFunc,
		stealthy:  stealthy,
		name:      name,
	}
}

// Name identifies the engine in logs and errors.
func (e *RodEngine) Name() string { return e.name }

// Fetch renders url in a browser page. The scraper's error text is returned
// unchanged because callers show it to clients verbatim.
func (e *RodEngine) Fetch(ctx context.Context, url string, opts Options) (*Response, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("%s: fetchFunc not configured", e.Name())
	}
	start := time.Now()
	resp, err := e.fetchFunc(ctx, url, opts, e.stealthy)
	if err != nil {
		slog.Debug("browser fetch failed",
			"engine", e.Name(),
			"url", url,
			"elapsed", time.Since(start),
			"error", err,
		)
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%s: no response", e.Name())
	}
	slog.Debug("browser fetch completed",
		"engine", e.Name(),
		"url", url,
		"status", resp.Status,
		"elapsed", time.Since(start),
	)
	return resp, nil
}
