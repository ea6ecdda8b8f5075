package models

import "encoding/json"

// FetcherGetRequest is the payload for POST /api/fetcher/get and
// POST /api/fetcher/delete.
//
// Optional fields are pointers so an absent or null value can be told apart
// from an explicit zero. Unset fields are never forwarded to the engine;
// the engine's own defaults (30s timeout, follow redirects, verify TLS,
// stealthy headers) apply instead.
type FetcherGetRequest struct {
	// URL is the target to fetch. Required.
	URL string `json:"url" binding:"required"`

	Headers map[string]string `json:"headers,omitempty"`
	Cookies map[string]string `json:"cookies,omitempty"`
	Params  map[string]string `json:"params,omitempty"`

	// Proxy is a proxy URL ("http://host:port", "socks5://host:port").
	Proxy string `json:"proxy,omitempty"`

	// Timeout is the request timeout in seconds. Engine default: 30.
	Timeout *int `json:"timeout,omitempty" binding:"omitempty,gte=0"`

	FollowRedirects *bool `json:"follow_redirects,omitempty"`
	Verify          *bool `json:"verify,omitempty"`

	// Impersonate names the TLS fingerprint profile (e.g. "chrome", "firefox").
	Impersonate string `json:"impersonate,omitempty"`

	StealthyHeaders *bool `json:"stealthy_headers,omitempty"`

	CSSSelector   string `json:"css_selector,omitempty"`
	XPathSelector string `json:"xpath_selector,omitempty"`
}

// FetcherDataRequest is the payload for POST /api/fetcher/post and
// POST /api/fetcher/put. When both Data and JSONData are supplied the engine
// sends the JSON payload and ignores Data.
type FetcherDataRequest struct {
	FetcherGetRequest

	// Data is sent as an application/x-www-form-urlencoded body.
	Data map[string]string `json:"data,omitempty"`

	// JSONData is any JSON value sent as an application/json body.
	// A literal null is treated as absent.
	JSONData json.RawMessage `json:"json_data,omitempty"`
}

// HasJSON reports whether a non-null JSON payload was supplied.
func (r *FetcherDataRequest) HasJSON() bool {
	return len(r.JSONData) > 0 && string(r.JSONData) != "null"
}

// DynamicFetchRequest is the payload for POST /api/dynamic/fetch.
//
// Call Defaults after binding: browser flags and the timeout are always
// forwarded to the engine, so their defaults are fixed here.
type DynamicFetchRequest struct {
	// URL is the page to open. Required.
	URL string `json:"url" binding:"required"`

	Headless         *bool `json:"headless,omitempty"`          // default: true
	DisableResources *bool `json:"disable_resources,omitempty"` // default: false
	NetworkIdle      *bool `json:"network_idle,omitempty"`      // default: false
	LoadDOM          *bool `json:"load_dom,omitempty"`          // default: true

	// Timeout is the overall page timeout in milliseconds. Default: 30000.
	Timeout *int `json:"timeout,omitempty" binding:"omitempty,gte=0"`

	// Wait is an extra fixed pause in milliseconds after the page settles.
	Wait *int `json:"wait,omitempty" binding:"omitempty,gte=0"`

	WaitSelector string `json:"wait_selector,omitempty"`

	// WaitSelectorState is one of attached, detached, visible, hidden.
	// Default: "attached".
	WaitSelectorState string `json:"wait_selector_state,omitempty" binding:"omitempty,selector_state"`

	Locale       string            `json:"locale,omitempty"`
	RealChrome   *bool             `json:"real_chrome,omitempty"` // default: false
	CDPURL       string            `json:"cdp_url,omitempty"`
	Proxy        string            `json:"proxy,omitempty"`
	ExtraHeaders map[string]string `json:"extra_headers,omitempty"`
	UserAgent    string            `json:"useragent,omitempty"`
	GoogleSearch *bool             `json:"google_search,omitempty"` // default: true

	CSSSelector   string `json:"css_selector,omitempty"`
	XPathSelector string `json:"xpath_selector,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *DynamicFetchRequest) Defaults() {
	setBool(&r.Headless, true)
	setBool(&r.DisableResources, false)
	setBool(&r.NetworkIdle, false)
	setBool(&r.LoadDOM, true)
	setBool(&r.RealChrome, false)
	setBool(&r.GoogleSearch, true)
	if r.Timeout == nil {
		t := 30000
		r.Timeout = &t
	}
	if r.WaitSelectorState == "" {
		r.WaitSelectorState = "attached"
	}
}

// StealthyFetchRequest is the payload for POST /api/stealthy/fetch.
type StealthyFetchRequest struct {
	DynamicFetchRequest

	AllowWebGL      *bool `json:"allow_webgl,omitempty"`      // default: true
	HideCanvas      *bool `json:"hide_canvas,omitempty"`      // default: false
	BlockWebRTC     *bool `json:"block_webrtc,omitempty"`     // default: false
	SolveCloudflare *bool `json:"solve_cloudflare,omitempty"` // default: false
}

// Defaults applies default values to unset fields.
func (r *StealthyFetchRequest) Defaults() {
	r.DynamicFetchRequest.Defaults()
	setBool(&r.AllowWebGL, true)
	setBool(&r.HideCanvas, false)
	setBool(&r.BlockWebRTC, false)
	setBool(&r.SolveCloudflare, false)
}

// SelectorStates lists the accepted wait_selector_state values.
var SelectorStates = []string{"attached", "detached", "visible", "hidden"}

func setBool(p **bool, v bool) {
	if *p == nil {
		b := v
		*p = &b
	}
}
