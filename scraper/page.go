package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/fetchgate/engine"
	"github.com/ysmood/gson"
)

// defaultTimeoutMS applies when the caller sent no timeout option.
const defaultTimeoutMS = 30000

// Fetch loads target in a browser page and returns the rendered result.
// It matches engine.RodFetchFunc.
//
// Lifecycle (numbered steps match the inline comments in render):
//
//  1. Page overrides       – stealth scripts, UA, locale, headers (before navigation!)
//  2. Hijack mount         – block images/CSS/fonts/media (before navigation!)
//  3. Listeners            – document response + request idle, registered before Navigate
//  4. Navigate             – triggers page load
//  5. Wait                 – load event, network idle, challenge, selector, fixed delay
//  6. Extract              – HTML, final URL, cookies, status
func (s *Scraper) Fetch(ctx context.Context, target string, opts engine.Options, stealthy bool) (*engine.Response, error) {
	if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", target)
	}

	timeout := time.Duration(opts.Int(engine.OptTimeout, defaultTimeoutMS)) * time.Millisecond
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	proxyServer, err := browserProxy(opts.String(engine.OptProxy, ""))
	if err != nil {
		return nil, err
	}

	// Per-request CDP URL: drive the caller's own Chrome.
	if cdpURL := opts.String(engine.OptCDPURL, ""); cdpURL != "" {
		return s.fetchWithCDP(ctx, cdpURL, proxyServer, target, opts, stealthy)
	}

	inst, err := s.instanceFor(profile{
		headless:   opts.Bool(engine.OptHeadless, true),
		realChrome: opts.Bool(engine.OptRealChrome, false),
	})
	if err != nil {
		return nil, err
	}

	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, release, err := acquirePage(inst.pool, func() (*rod.Page, func(), error) {
		return isolatedPage(inst.browser, proxyServer)
	})
	if err != nil {
		return nil, err
	}
	defer release()

	return s.render(ctx, page, target, opts, stealthy)
}

// pageOpener opens a page together with the func that tears it down.
type pageOpener func() (*rod.Page, func(), error)

// acquirePage takes a slot from pool and fills it with a freshly opened
// page. Pages are never handed back for reuse: release tears the page down
// and returns an empty slot, so the pool only bounds concurrency.
func acquirePage(pool rod.Pool[rod.Page], open pageOpener) (*rod.Page, func(), error) {
	var teardown func()
	page, err := pool.Get(func() (*rod.Page, error) {
		p, td, err := open()
		teardown = td
		return p, err
	})
	if err != nil {
		pool.Put(nil)
		return nil, nil, fmt.Errorf("failed to acquire page from pool: %w", err)
	}
	release := func() {
		teardown()
		pool.Put(nil)
	}
	return page, release, nil
}

// render drives one navigation on page.
func (s *Scraper) render(ctx context.Context, page *rod.Page, target string, opts engine.Options, stealthy bool) (*engine.Response, error) {
	// ── 1. Page overrides ─────────────────────────────────────────────
	if stealthy {
		removeScripts := injectStealth(page, opts)
		defer removeScripts()
	}

	locale := opts.String(engine.OptLocale, "")
	if ua := opts.String(engine.OptUserAgent, ""); ua != "" {
		if err := (proto.NetworkSetUserAgentOverride{UserAgent: ua, AcceptLanguage: locale}).Call(page); err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	if locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: locale}).Call(page); err != nil {
			slog.Warn("locale override failed", "locale", locale, "error", err)
		}
	}
	if headers := extraHeaders(target, locale, opts); len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}).Call(page); err != nil {
			return nil, fmt.Errorf("failed to set extra headers: %w", err)
		}
	}

	// ── 2. Mount hijack router ────────────────────────────────────────
	hijacking := opts.Bool(engine.OptDisableResources, false)
	if hijacking {
		router := setupHijack(page)
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 3. Listeners BEFORE navigation ────────────────────────────────
	// NOTE: EachEvent(NetworkResponseReceived) and WaitRequestIdle both
	// conflict with HijackRequests on Chromium 145+. With resource blocking
	// on we fall back to the performance entry status and WaitDOMStable.
	var docResp *proto.NetworkResponse
	docDone := make(chan struct{})
	if !hijacking {
		wait := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
			if e.Type != proto.NetworkResourceTypeDocument || e.FrameID != page.FrameID {
				return false
			}
			docResp = e.Response
			return true
		})
		go func() {
			wait()
			close(docDone)
		}()
	}

	networkIdle := opts.Bool(engine.OptNetworkIdle, false)
	var waitIdle func()
	if networkIdle && !hijacking {
		waitIdle = p.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	}

	// ── 4. Navigate ───────────────────────────────────────────────────
	if err := p.Navigate(target); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	// ── 5. Wait strategy ──────────────────────────────────────────────
	if opts.Bool(engine.OptLoadDOM, true) {
		if err := p.WaitLoad(); err != nil {
			return nil, categorizeError(err, "waiting for page load failed")
		}
	}
	switch {
	case waitIdle != nil:
		waitIdle()
	case networkIdle:
		if stableErr := p.WaitDOMStable(500*time.Millisecond, 0.1); stableErr != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
				"error", stableErr,
			)
		}
	}

	if stealthy && opts.Bool(engine.OptSolveCloudflare, false) {
		if err := solveChallenge(ctx, p); err != nil {
			return nil, err
		}
	}

	if sel := opts.String(engine.OptWaitSelector, ""); sel != "" {
		state := opts.String(engine.OptWaitSelectorState, stateAttached)
		if err := waitForSelector(p, sel, state); err != nil {
			return nil, categorizeError(err, fmt.Sprintf("wait_selector %q (%s) failed", sel, state))
		}
	}

	if wait := opts.Int(engine.OptWait, 0); wait > 0 {
		if !sleepWithContext(ctx, time.Duration(wait)*time.Millisecond) {
			return nil, categorizeError(ctx.Err(), "wait interrupted")
		}
	}

	// ── 6. Extract ────────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = target
	}

	resp := &engine.Response{
		URL:     finalURL,
		Headers: map[string]string{},
		Cookies: pageCookies(p, finalURL),
		Body:    rawHTML,
	}

	var doc *proto.NetworkResponse
	select {
	case <-docDone:
		doc = docResp
	default:
	}
	if doc != nil {
		resp.Status = doc.Status
		resp.Reason = doc.StatusText
		resp.Headers = fromHeadersMap(doc.Headers)
	} else {
		resp.Status = navigationStatus(p)
	}
	if resp.Reason == "" {
		resp.Reason = http.StatusText(resp.Status)
	}
	return resp, nil
}

// extraHeaders merges caller headers with the Google Referer and the
// Accept-Language implied by locale. Caller headers win.
func extraHeaders(target, locale string, opts engine.Options) map[string]string {
	custom := opts.StringMap(engine.OptExtraHeaders)
	headers := make(map[string]string, len(custom)+2)
	if opts.Bool(engine.OptGoogleSearch, true) {
		if u, err := url.Parse(target); err == nil {
			headers["Referer"] = engine.GoogleReferer(u.Hostname())
		}
	}
	if locale != "" {
		headers["Accept-Language"] = locale
	}
	for k, v := range custom {
		headers[k] = v
	}
	return headers
}

// navigationStatus reads the HTTP status from the navigation timing entry.
// Returns 0 when the browser does not expose it.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// pageCookies returns the cookies visible to pageURL as name/value records.
func pageCookies(p *rod.Page, pageURL string) []map[string]any {
	cookies, err := p.Cookies([]string{pageURL})
	if err != nil {
		slog.Debug("failed to read page cookies", "error", err)
		return nil
	}
	out := make([]map[string]any, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, map[string]any{
			"name":     c.Name,
			"value":    c.Value,
			"domain":   c.Domain,
			"path":     c.Path,
			"secure":   c.Secure,
			"httpOnly": c.HTTPOnly,
		})
	}
	return out
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func fromHeadersMap(headers proto.NetworkHeaders) map[string]string {
	m := make(map[string]string, len(headers))
	for k, v := range headers {
		m[k] = v.Str()
	}
	return m
}

// browserProxy validates a proxy option and returns the server string for
// Chrome. Chrome takes credentials only through an auth challenge, which
// this engine does not answer, so credentialed proxies are rejected.
func browserProxy(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid proxy %q", raw)
	}
	if u.User != nil {
		return "", errors.New("proxy credentials are not supported by the browser engine")
	}
	switch u.Scheme {
	case "http", "https", "socks4", "socks5":
	default:
		return "", fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return u.Scheme + "://" + u.Host, nil
}

// isolatedPage opens a page in a fresh browser context, routed through
// proxyServer when it is set. Cookies, storage and cache live and die with
// the context. release closes the page and disposes the context.
func isolatedPage(browser *rod.Browser, proxyServer string) (*rod.Page, func(), error) {
	bc, err := proto.TargetCreateBrowserContext{ProxyServer: proxyServer}.Call(browser)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := browser.Page(proto.TargetCreateTarget{BrowserContextID: bc.BrowserContextID})
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bc.BrowserContextID}.Call(browser)
		return nil, nil, fmt.Errorf("failed to create page: %w", err)
	}
	release := func() {
		_ = page.Close()
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bc.BrowserContextID}.Call(browser)
	}
	return page, release, nil
}

// fetchWithCDP connects to a caller-provided CDP endpoint, renders target in
// a temporary page and disconnects. Cancelling the connection context drops
// the websocket without closing the remote browser.
func (s *Scraper) fetchWithCDP(ctx context.Context, cdpURL, proxyServer, target string, opts engine.Options, stealthy bool) (*engine.Response, error) {
	connCtx, disconnect := context.WithCancel(ctx)
	defer disconnect()

	browser := rod.New().Context(connCtx).ControlURL(cdpURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to CDP URL: %w", err)
	}

	page, release, err := isolatedPage(browser, proxyServer)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.render(ctx, page, target, opts, stealthy)
}

// categorizeError labels timeouts and cancellations so the message the
// caller sees names the cause.
func categorizeError(err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: timed out: %w", msg, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request canceled: %w", err)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
