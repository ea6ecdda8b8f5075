package engine

import (
	"context"
	"errors"
	"net/http"
)

// Engine is the fetch backend the gateway delegates to. The four plain
// methods speak HTTP directly; FetchDynamic and FetchStealthy drive a real
// browser.
type Engine interface {
	Get(ctx context.Context, url string, opts Options) (*Response, error)
	Post(ctx context.Context, url string, opts Options) (*Response, error)
	Put(ctx context.Context, url string, opts Options) (*Response, error)
	Delete(ctx context.Context, url string, opts Options) (*Response, error)
	FetchDynamic(ctx context.Context, url string, opts Options) (*Response, error)
	FetchStealthy(ctx context.Context, url string, opts Options) (*Response, error)
}

// Facade joins the plain HTTP engine and the two browser engines into one
// Engine.
type Facade struct {
	http     *HTTPEngine
	dynamic  *RodEngine
	stealthy *RodEngine
}

// New creates a Facade. A nil browser engine makes the matching operation
// fail instead of launching Chrome.
func New(httpEngine *HTTPEngine, dynamic, stealthy *RodEngine) *Facade {
	return &Facade{http: httpEngine, dynamic: dynamic, stealthy: stealthy}
}

func (f *Facade) Get(ctx context.Context, url string, opts Options) (*Response, error) {
	return f.http.Do(ctx, http.MethodGet, url, opts)
}

func (f *Facade) Post(ctx context.Context, url string, opts Options) (*Response, error) {
	return f.http.Do(ctx, http.MethodPost, url, opts)
}

func (f *Facade) Put(ctx context.Context, url string, opts Options) (*Response, error) {
	return f.http.Do(ctx, http.MethodPut, url, opts)
}

func (f *Facade) Delete(ctx context.Context, url string, opts Options) (*Response, error) {
	return f.http.Do(ctx, http.MethodDelete, url, opts)
}

func (f *Facade) FetchDynamic(ctx context.Context, url string, opts Options) (*Response, error) {
	if f.dynamic == nil {
		return nil, errors.New("dynamic fetch is not configured")
	}
	return f.dynamic.Fetch(ctx, url, opts)
}

func (f *Facade) FetchStealthy(ctx context.Context, url string, opts Options) (*Response, error) {
	if f.stealthy == nil {
		return nil, errors.New("stealthy fetch is not configured")
	}
	return f.stealthy.Fetch(ctx, url, opts)
}
