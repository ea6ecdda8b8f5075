// Package mapper turns validated request payloads into engine option maps.
//
// Plain-fetch optional fields are omitted when unset so the engine's own
// defaults apply. Browser-fetch flags and the timeout carry gateway-side
// defaults and are always forwarded.
package mapper

import (
	"github.com/use-agent/fetchgate/engine"
	"github.com/use-agent/fetchgate/models"
)

// FetcherOptions maps a plain GET/DELETE request.
func FetcherOptions(req *models.FetcherGetRequest) engine.Options {
	opts := engine.Options{}
	putMap(opts, engine.OptHeaders, req.Headers)
	putMap(opts, engine.OptCookies, req.Cookies)
	putMap(opts, engine.OptParams, req.Params)
	putString(opts, engine.OptProxy, req.Proxy)
	putInt(opts, engine.OptTimeout, req.Timeout)
	putBool(opts, engine.OptFollowRedirects, req.FollowRedirects)
	putBool(opts, engine.OptVerify, req.Verify)
	putString(opts, engine.OptImpersonate, req.Impersonate)
	putBool(opts, engine.OptStealthyHeaders, req.StealthyHeaders)
	return opts
}

// FetcherDataOptions maps a plain POST/PUT request. Both payloads are
// forwarded when present; the HTTP engine sends JSON over form data.
func FetcherDataOptions(req *models.FetcherDataRequest) engine.Options {
	opts := FetcherOptions(&req.FetcherGetRequest)
	putMap(opts, engine.OptData, req.Data)
	if req.HasJSON() {
		opts[engine.OptJSON] = req.JSONData
	}
	return opts
}

// DynamicOptions maps a browser fetch request. Call req.Defaults first;
// nil flags are otherwise forwarded as their documented defaults.
func DynamicOptions(req *models.DynamicFetchRequest) engine.Options {
	opts := engine.Options{
		engine.OptHeadless:         boolOr(req.Headless, true),
		engine.OptDisableResources: boolOr(req.DisableResources, false),
		engine.OptNetworkIdle:      boolOr(req.NetworkIdle, false),
		engine.OptLoadDOM:          boolOr(req.LoadDOM, true),
		engine.OptRealChrome:       boolOr(req.RealChrome, false),
		engine.OptGoogleSearch:     boolOr(req.GoogleSearch, true),
		engine.OptTimeout:          intOr(req.Timeout, 30000),
	}
	putInt(opts, engine.OptWait, req.Wait)
	putString(opts, engine.OptWaitSelector, req.WaitSelector)
	putString(opts, engine.OptWaitSelectorState, req.WaitSelectorState)
	putString(opts, engine.OptLocale, req.Locale)
	putString(opts, engine.OptCDPURL, req.CDPURL)
	putString(opts, engine.OptProxy, req.Proxy)
	putMap(opts, engine.OptExtraHeaders, req.ExtraHeaders)
	putString(opts, engine.OptUserAgent, req.UserAgent)
	return opts
}

// StealthyOptions maps a stealthy browser fetch request: the dynamic
// options plus the four anti-detection flags.
func StealthyOptions(req *models.StealthyFetchRequest) engine.Options {
	opts := DynamicOptions(&req.DynamicFetchRequest)
	opts[engine.OptAllowWebGL] = boolOr(req.AllowWebGL, true)
	opts[engine.OptHideCanvas] = boolOr(req.HideCanvas, false)
	opts[engine.OptBlockWebRTC] = boolOr(req.BlockWebRTC, false)
	opts[engine.OptSolveCloudflare] = boolOr(req.SolveCloudflare, false)
	return opts
}

func putString(opts engine.Options, key, v string) {
	if v != "" {
		opts[key] = v
	}
}

func putMap(opts engine.Options, key string, v map[string]string) {
	if len(v) == 0 {
		return
	}
	cp := make(map[string]string, len(v))
	for k, val := range v {
		cp[k] = val
	}
	opts[key] = cp
}

func putBool(opts engine.Options, key string, v *bool) {
	if v != nil {
		opts[key] = *v
	}
}

func putInt(opts engine.Options, key string, v *int) {
	if v != nil {
		opts[key] = *v
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
