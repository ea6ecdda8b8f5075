package engine

// Options is the flattened option map handed to an engine operation.
// A key that is absent means "use the engine default"; the typed readers
// below return the supplied fallback in that case or when the stored value
// has an unexpected type.
type Options map[string]any

// Option keys understood by the plain HTTP engine.
const (
	OptHeaders         = "headers"
	OptCookies         = "cookies"
	OptParams          = "params"
	OptProxy           = "proxy"
	OptTimeout         = "timeout"
	OptFollowRedirects = "follow_redirects"
	OptVerify          = "verify"
	OptImpersonate     = "impersonate"
	OptStealthyHeaders = "stealthy_headers"
	OptData            = "data"
	OptJSON            = "json"
)

// Option keys understood by the browser engine.
const (
	OptHeadless          = "headless"
	OptDisableResources  = "disable_resources"
	OptNetworkIdle       = "network_idle"
	OptLoadDOM           = "load_dom"
	OptWait              = "wait"
	OptWaitSelector      = "wait_selector"
	OptWaitSelectorState = "wait_selector_state"
	OptLocale            = "locale"
	OptRealChrome        = "real_chrome"
	OptCDPURL            = "cdp_url"
	OptExtraHeaders      = "extra_headers"
	OptUserAgent         = "useragent"
	OptGoogleSearch      = "google_search"

	OptAllowWebGL      = "allow_webgl"
	OptHideCanvas      = "hide_canvas"
	OptBlockWebRTC     = "block_webrtc"
	OptSolveCloudflare = "solve_cloudflare"
)

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the string stored at key, or fallback.
func (o Options) String(key, fallback string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return fallback
}

// Bool returns the bool stored at key, or fallback.
func (o Options) Bool(key string, fallback bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return fallback
}

// Int returns the integer stored at key, or fallback.
func (o Options) Int(key string, fallback int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// StringMap returns the map stored at key, or nil.
func (o Options) StringMap(key string) map[string]string {
	if v, ok := o[key].(map[string]string); ok {
		return v
	}
	return nil
}
