package engine

import (
	"bytes"
	"context"
	stdtls "crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/fetchgate/config"
	"golang.org/x/net/proxy"
)

// Engine-side defaults for plain fetches. The gateway omits unset options so
// these apply.
const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultImpersonate     = "chrome"
	defaultFollowRedirects = true
	defaultVerify          = true
	defaultStealthyHeaders = true
)

// profiles maps impersonate names to utls ClientHello fingerprints.
// "golang" keeps Go's native TLS stack.
var profiles = map[string]tls.ClientHelloID{
	"chrome":     tls.HelloChrome_Auto,
	"chrome120":  tls.HelloChrome_120,
	"chrome131":  tls.HelloChrome_131,
	"edge":       tls.HelloEdge_Auto,
	"firefox":    tls.HelloFirefox_Auto,
	"firefox120": tls.HelloFirefox_120,
	"safari":     tls.HelloSafari_Auto,
	"ios":        tls.HelloIOS_Auto,
	"android":    tls.HelloAndroid_11_OkHttp,
	"randomized": tls.HelloRandomized,
	"golang":     tls.HelloGolang,
}

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	firefoxUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0"
	safariUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15"
)

// HTTPEngine performs plain HTTP requests with a browser-like TLS
// fingerprint (utls). A fresh transport is built per request because proxy,
// TLS verification and fingerprint are all per-request options.
type HTTPEngine struct {
	maxBody      int64
	maxRedirects int
}

// NewHTTPEngine creates an HTTPEngine.
func NewHTTPEngine(cfg config.FetcherConfig) *HTTPEngine {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	return &HTTPEngine{maxBody: cfg.MaxBodyBytes, maxRedirects: cfg.MaxRedirects}
}

// Do sends one request. Recognised options are the Opt* plain-fetch keys;
// when both OptJSON and OptData are set the JSON payload wins.
func (e *HTTPEngine) Do(ctx context.Context, method, rawURL string, opts Options) (*Response, error) {
	timeout := defaultHTTPTimeout
	if opts.Has(OptTimeout) {
		timeout = time.Duration(opts.Int(OptTimeout, 30)) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target, err := buildURL(rawURL, opts.StringMap(OptParams))
	if err != nil {
		return nil, fmt.Errorf("http_engine: invalid url: %w", err)
	}

	body, contentType, err := requestBody(opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	profile := strings.ToLower(opts.String(OptImpersonate, defaultImpersonate))
	if opts.Bool(OptStealthyHeaders, defaultStealthyHeaders) {
		applyStealthyHeaders(req, profile)
	}
	for k, v := range opts.StringMap(OptHeaders) {
		req.Header.Set(k, v)
	}
	for name, value := range opts.StringMap(OptCookies) {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	transport, err := newTransport(profile, opts.Bool(OptVerify, defaultVerify), opts.String(OptProxy, ""))
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport:     transport,
		CheckRedirect: e.redirectPolicy(opts.Bool(OptFollowRedirects, defaultFollowRedirects)),
	}
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody))
	if err != nil {
		return nil, fmt.Errorf("http_engine: read body: %w", err)
	}

	return &Response{
		URL:     resp.Request.URL.String(),
		Status:  resp.StatusCode,
		Reason:  reasonPhrase(resp),
		Headers: resp.Header,
		Cookies: resp.Cookies(),
		Body:    raw,
	}, nil
}

func (e *HTTPEngine) redirectPolicy(follow bool) func(*http.Request, []*http.Request) error {
	if !follow {
		return func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= e.maxRedirects {
			return fmt.Errorf("stopped after %d redirects", e.maxRedirects)
		}
		return nil
	}
}

func buildURL(rawURL string, params map[string]string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", rawURL)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func requestBody(opts Options) (io.Reader, string, error) {
	if v, ok := opts[OptJSON]; ok {
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http_engine: encode json payload: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	}
	if data := opts.StringMap(OptData); len(data) > 0 {
		form := url.Values{}
		for k, v := range data {
			form.Set(k, v)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}
	return nil, "", nil
}

// applyStealthyHeaders sets a realistic header set for the impersonated
// browser and a Google search Referer for the target host.
func applyStealthyHeaders(req *http.Request, profile string) {
	ua := chromeUA
	switch profile {
	case "firefox", "firefox120":
		ua = firefoxUA
	case "safari", "ios":
		ua = safariUA
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Referer", GoogleReferer(req.URL.Hostname()))
}

// GoogleReferer returns a Google search URL for host, used to make a visit
// look like it came from a search result.
func GoogleReferer(host string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(host)
}

// newTransport builds a transport for one request. Non-proxied HTTPS goes
// through utls with ALPN pinned to http/1.1, since Go's http.Transport cannot
// speak HTTP/2 over a utls connection. HTTP(S) proxies tunnel with CONNECT
// and fall back to Go's native TLS; SOCKS5 proxies keep the fingerprint.
func newTransport(profile string, verify bool, proxyRaw string) (*http.Transport, error) {
	helloID, ok := profiles[profile]
	if !ok {
		return nil, fmt.Errorf("http_engine: unsupported impersonate profile %q", profile)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	dial := dialer.DialContext

	transport := &http.Transport{
		ForceAttemptHTTP2:   false,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &stdtls.Config{InsecureSkipVerify: !verify},
	}

	if proxyRaw != "" {
		proxyURL, err := url.Parse(proxyRaw)
		if err != nil {
			return nil, fmt.Errorf("http_engine: invalid proxy: %w", err)
		}
		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(proxyURL, dialer)
			if err != nil {
				return nil, fmt.Errorf("http_engine: socks proxy: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, errors.New("http_engine: socks dialer does not support contexts")
			}
			dial = cd.DialContext
		default:
			return nil, fmt.Errorf("http_engine: unsupported proxy scheme %q", proxyURL.Scheme)
		}
	}
	transport.DialContext = dial

	if profile != "golang" {
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return handshake(ctx, conn, addr, helloID, verify)
		}
	}
	return transport, nil
}

func handshake(ctx context.Context, conn net.Conn, addr string, id tls.ClientHelloID, verify bool) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	spec, err := tls.UTLSIdToSpec(id)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: build tls spec: %w", err)
	}
	forceHTTP1(&spec)

	uconn := tls.UClient(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: !verify,
	}, tls.HelloCustom)
	if err := uconn.ApplyPreset(&spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
	}
	if err := uconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return uconn, nil
}

// forceHTTP1 rewrites the ALPN extension so the server never negotiates h2.
func forceHTTP1(spec *tls.ClientHelloSpec) {
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			return
		}
	}
}

// reasonPhrase extracts "OK" from "200 OK", falling back to the standard text.
func reasonPhrase(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
