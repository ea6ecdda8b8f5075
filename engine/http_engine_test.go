package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/fetchgate/config"
)

// echo describes the request the test server received.
type echo struct {
	Method      string            `json:"method"`
	Query       map[string]string `json:"query"`
	Headers     map[string]string `json:"headers"`
	Cookies     map[string]string `json:"cookies"`
	ContentType string            `json:"content_type"`
	Body        string            `json:"body"`
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		e := echo{
			Method:      r.Method,
			Query:       map[string]string{},
			Headers:     map[string]string{},
			Cookies:     map[string]string{},
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(body),
		}
		for k := range r.URL.Query() {
			e.Query[k] = r.URL.Query().Get(k)
		}
		for k := range r.Header {
			e.Headers[k] = r.Header.Get(k)
		}
		for _, c := range r.Cookies() {
			e.Cookies[c.Name] = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "xyz"})
		w.Header().Set("X-Served-By", "echo")
		_ = json.NewEncoder(w).Encode(e)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "landed")
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doEcho(t *testing.T, e *HTTPEngine, method, url string, opts Options) (*Response, echo) {
	t.Helper()
	resp, err := e.Do(context.Background(), method, url, opts)
	require.NoError(t, err)

	var got echo
	require.NoError(t, json.Unmarshal(resp.Body.([]byte), &got))
	return resp, got
}

func TestHTTPEngine_GetWithOptions(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{})

	resp, got := doEcho(t, e, http.MethodGet, srv.URL+"/echo?keep=1", Options{
		OptParams:  map[string]string{"q": "go lang"},
		OptHeaders: map[string]string{"X-Custom": "yes", "User-Agent": "mine/1.0"},
		OptCookies: map[string]string{"pref": "dark"},
	})

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "OK", resp.Reason)
	assert.Equal(t, "GET", got.Method)
	assert.Equal(t, map[string]string{"keep": "1", "q": "go lang"}, got.Query)
	assert.Equal(t, "yes", got.Headers["X-Custom"])
	assert.Equal(t, "mine/1.0", got.Headers["User-Agent"], "caller headers override stealthy ones")
	assert.Equal(t, "https://www.google.com/search?q=127.0.0.1", got.Headers["Referer"])
	assert.Equal(t, map[string]string{"pref": "dark"}, got.Cookies)

	headers, ok := resp.Headers.(http.Header)
	require.True(t, ok)
	assert.Equal(t, "echo", headers.Get("X-Served-By"))

	cookies, ok := resp.Cookies.([]*http.Cookie)
	require.True(t, ok)
	require.Len(t, cookies, 1)
	assert.Equal(t, "xyz", cookies[0].Value)
}

func TestHTTPEngine_StealthyHeadersOff(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{})

	_, got := doEcho(t, e, http.MethodGet, srv.URL+"/echo", Options{OptStealthyHeaders: false})

	assert.NotContains(t, got.Headers, "Referer")
	assert.True(t, strings.HasPrefix(got.Headers["User-Agent"], "Go-http-client"))
}

func TestHTTPEngine_ImpersonateSelectsUserAgent(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{})

	_, got := doEcho(t, e, http.MethodGet, srv.URL+"/echo", Options{OptImpersonate: "firefox"})
	assert.Equal(t, firefoxUA, got.Headers["User-Agent"])
}

func TestHTTPEngine_JSONTakesPrecedenceOverData(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{})

	_, got := doEcho(t, e, http.MethodPost, srv.URL+"/echo", Options{
		OptData: map[string]string{"a": "1"},
		OptJSON: json.RawMessage(`{"b": 2}`),
	})

	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, "application/json", got.ContentType)
	assert.JSONEq(t, `{"b": 2}`, got.Body)
}

func TestHTTPEngine_FormData(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{})

	_, got := doEcho(t, e, http.MethodPut, srv.URL+"/echo", Options{
		OptData: map[string]string{"a": "1", "b": "x y"},
	})

	assert.Equal(t, "PUT", got.Method)
	assert.Equal(t, "application/x-www-form-urlencoded", got.ContentType)
	assert.Equal(t, "a=1&b=x+y", got.Body)
}

func TestHTTPEngine_Redirects(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{})

	resp, err := e.Do(context.Background(), http.MethodGet, srv.URL+"/redirect", Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, srv.URL+"/final", resp.URL)
	assert.Equal(t, "landed", resp.Text())

	resp, err = e.Do(context.Background(), http.MethodGet, srv.URL+"/redirect", Options{OptFollowRedirects: false})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "Found", resp.Reason)
	assert.Equal(t, srv.URL+"/redirect", resp.URL)
}

func TestHTTPEngine_RedirectLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewHTTPEngine(config.FetcherConfig{MaxRedirects: 3})
	_, err := e.Do(context.Background(), http.MethodGet, srv.URL+"/loop", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

func TestHTTPEngine_BodyLimit(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{MaxBodyBytes: 4})

	resp, err := e.Do(context.Background(), http.MethodGet, srv.URL+"/final", Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte("land"), resp.Body)
}

func TestHTTPEngine_ContextDeadline(t *testing.T) {
	srv := newEchoServer(t)
	e := NewHTTPEngine(config.FetcherConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Do(ctx, http.MethodGet, srv.URL+"/slow", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPEngine_RejectsBadInput(t *testing.T) {
	e := NewHTTPEngine(config.FetcherConfig{})
	cases := []struct {
		name string
		url  string
		opts Options
		want string
	}{
		{"relative url", "/path", Options{}, "not an absolute URL"},
		{"unknown profile", "https://example.com", Options{OptImpersonate: "netscape"}, `unsupported impersonate profile "netscape"`},
		{"unknown proxy scheme", "https://example.com", Options{OptProxy: "ftp://proxy:21"}, `unsupported proxy scheme "ftp"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Do(context.Background(), http.MethodGet, tc.url, tc.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestForceHTTP1(t *testing.T) {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	require.NoError(t, err)

	forceHTTP1(&spec)

	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			assert.Equal(t, []string{"http/1.1"}, alpn.AlpnProtocols)
			return
		}
	}
	t.Fatal("ALPN extension not found")
}

func TestFacade_BrowserNotConfigured(t *testing.T) {
	f := New(NewHTTPEngine(config.FetcherConfig{}), nil, nil)

	_, err := f.FetchDynamic(context.Background(), "https://example.com", Options{})
	assert.EqualError(t, err, "dynamic fetch is not configured")

	_, err = f.FetchStealthy(context.Background(), "https://example.com", Options{})
	assert.EqualError(t, err, "stealthy fetch is not configured")
}

func TestRodEngine_PassesStealthFlag(t *testing.T) {
	var gotStealthy []bool
	fetch := func(_ context.Context, url string, opts Options, stealthy bool) (*Response, error) {
		gotStealthy = append(gotStealthy, stealthy)
		return &Response{URL: url, Status: 200}, nil
	}

	f := New(nil, NewRodEngine(fetch, false), NewRodEngine(fetch, true))
	_, err := f.FetchDynamic(context.Background(), "https://example.com", Options{})
	require.NoError(t, err)
	_, err = f.FetchStealthy(context.Background(), "https://example.com", Options{})
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, gotStealthy)
	assert.Equal(t, "rod-stealth", NewRodEngine(fetch, true).Name())
}

func TestRodEngine_ErrorsAndNames(t *testing.T) {
	assert.Equal(t, "rod", NewRodEngine(nil, false).Name())

	_, err := NewRodEngine(nil, true).Fetch(context.Background(), "https://example.com", Options{})
	assert.EqualError(t, err, "rod-stealth: fetchFunc not configured")

	navErr := errors.New("Timeout 30000ms exceeded.")
	failing := func(context.Context, string, Options, bool) (*Response, error) { return nil, navErr }
	_, err = NewRodEngine(failing, false).Fetch(context.Background(), "https://example.com", Options{})
	assert.Equal(t, navErr, err)

	empty := func(context.Context, string, Options, bool) (*Response, error) { return nil, nil }
	_, err = NewRodEngine(empty, false).Fetch(context.Background(), "https://example.com", Options{})
	assert.EqualError(t, err, "rod: no response")
}
