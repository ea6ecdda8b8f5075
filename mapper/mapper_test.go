package mapper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/fetchgate/engine"
	"github.com/use-agent/fetchgate/models"
	"pgregory.net/rapid"
)

func strMap() *rapid.Generator[map[string]string] {
	return rapid.MapOfN(rapid.StringMatching(`[A-Za-z-]{1,8}`), rapid.String(), 0, 3)
}

func fetcherRequest() *rapid.Generator[models.FetcherGetRequest] {
	return rapid.Custom(func(t *rapid.T) models.FetcherGetRequest {
		return models.FetcherGetRequest{
			URL:             "https://example.com",
			Headers:         strMap().Draw(t, "headers"),
			Cookies:         strMap().Draw(t, "cookies"),
			Params:          strMap().Draw(t, "params"),
			Proxy:           rapid.SampledFrom([]string{"", "http://127.0.0.1:8080"}).Draw(t, "proxy"),
			Timeout:         rapid.Ptr(rapid.IntRange(0, 120), true).Draw(t, "timeout"),
			FollowRedirects: rapid.Ptr(rapid.Bool(), true).Draw(t, "follow_redirects"),
			Verify:          rapid.Ptr(rapid.Bool(), true).Draw(t, "verify"),
			Impersonate:     rapid.SampledFrom([]string{"", "chrome", "firefox"}).Draw(t, "impersonate"),
			StealthyHeaders: rapid.Ptr(rapid.Bool(), true).Draw(t, "stealthy_headers"),
		}
	})
}

func dynamicRequest() *rapid.Generator[models.DynamicFetchRequest] {
	return rapid.Custom(func(t *rapid.T) models.DynamicFetchRequest {
		return models.DynamicFetchRequest{
			URL:               "https://example.com",
			Headless:          rapid.Ptr(rapid.Bool(), true).Draw(t, "headless"),
			DisableResources:  rapid.Ptr(rapid.Bool(), true).Draw(t, "disable_resources"),
			NetworkIdle:       rapid.Ptr(rapid.Bool(), true).Draw(t, "network_idle"),
			LoadDOM:           rapid.Ptr(rapid.Bool(), true).Draw(t, "load_dom"),
			Timeout:           rapid.Ptr(rapid.IntRange(0, 60000), true).Draw(t, "timeout"),
			Wait:              rapid.Ptr(rapid.IntRange(0, 5000), true).Draw(t, "wait"),
			WaitSelector:      rapid.SampledFrom([]string{"", "#x", "div.item"}).Draw(t, "wait_selector"),
			WaitSelectorState: rapid.SampledFrom(append([]string{""}, models.SelectorStates...)).Draw(t, "state"),
			Locale:            rapid.SampledFrom([]string{"", "en-US"}).Draw(t, "locale"),
			RealChrome:        rapid.Ptr(rapid.Bool(), true).Draw(t, "real_chrome"),
			ExtraHeaders:      strMap().Draw(t, "extra_headers"),
			UserAgent:         rapid.SampledFrom([]string{"", "bot/1.0"}).Draw(t, "useragent"),
			GoogleSearch:      rapid.Ptr(rapid.Bool(), true).Draw(t, "google_search"),
		}
	})
}

func TestFetcherOptions_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := fetcherRequest().Draw(t, "req")
		a := FetcherOptions(&req)
		b := FetcherOptions(&req)
		assert.Equal(t, a, b)
	})
}

func TestFetcherOptions_OmitsUnsetFields(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := fetcherRequest().Draw(t, "req")
		opts := FetcherOptions(&req)

		assertPresence(t, opts, engine.OptHeaders, len(req.Headers) > 0)
		assertPresence(t, opts, engine.OptCookies, len(req.Cookies) > 0)
		assertPresence(t, opts, engine.OptParams, len(req.Params) > 0)
		assertPresence(t, opts, engine.OptProxy, req.Proxy != "")
		assertPresence(t, opts, engine.OptTimeout, req.Timeout != nil)
		assertPresence(t, opts, engine.OptFollowRedirects, req.FollowRedirects != nil)
		assertPresence(t, opts, engine.OptVerify, req.Verify != nil)
		assertPresence(t, opts, engine.OptImpersonate, req.Impersonate != "")
		assertPresence(t, opts, engine.OptStealthyHeaders, req.StealthyHeaders != nil)
	})
}

func assertPresence(t *rapid.T, opts engine.Options, key string, want bool) {
	if opts.Has(key) != want {
		t.Fatalf("key %q present=%t, want %t (opts=%v)", key, opts.Has(key), want, opts)
	}
}

func TestFetcherOptions_MinimalRequestIsEmpty(t *testing.T) {
	opts := FetcherOptions(&models.FetcherGetRequest{URL: "https://example.com"})
	assert.Empty(t, opts)
}

func TestFetcherOptions_ExplicitFalseIsForwarded(t *testing.T) {
	no := false
	zero := 0
	opts := FetcherOptions(&models.FetcherGetRequest{
		URL:             "https://example.com",
		FollowRedirects: &no,
		Timeout:         &zero,
	})
	assert.Equal(t, engine.Options{
		engine.OptFollowRedirects: false,
		engine.OptTimeout:         0,
	}, opts)
}

func TestFetcherOptions_CopiesMaps(t *testing.T) {
	req := models.FetcherGetRequest{URL: "https://example.com", Headers: map[string]string{"A": "1"}}
	opts := FetcherOptions(&req)
	req.Headers["A"] = "2"
	assert.Equal(t, "1", opts.StringMap(engine.OptHeaders)["A"])
}

func TestFetcherDataOptions(t *testing.T) {
	req := models.FetcherDataRequest{
		FetcherGetRequest: models.FetcherGetRequest{URL: "https://example.com"},
		Data:              map[string]string{"q": "go"},
		JSONData:          json.RawMessage(`{"a":1}`),
	}
	opts := FetcherDataOptions(&req)

	assert.Equal(t, map[string]string{"q": "go"}, opts[engine.OptData])
	assert.JSONEq(t, `{"a":1}`, string(opts[engine.OptJSON].(json.RawMessage)))
}

func TestFetcherDataOptions_NullJSONIsAbsent(t *testing.T) {
	req := models.FetcherDataRequest{
		FetcherGetRequest: models.FetcherGetRequest{URL: "https://example.com"},
		JSONData:          json.RawMessage(`null`),
	}
	opts := FetcherDataOptions(&req)
	assert.False(t, opts.Has(engine.OptJSON))
	assert.False(t, opts.Has(engine.OptData))
}

var alwaysForwarded = []string{
	engine.OptHeadless,
	engine.OptDisableResources,
	engine.OptNetworkIdle,
	engine.OptLoadDOM,
	engine.OptRealChrome,
	engine.OptGoogleSearch,
	engine.OptTimeout,
}

func TestDynamicOptions_AlwaysForwardsFlags(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := dynamicRequest().Draw(t, "req")
		if rapid.Bool().Draw(t, "apply_defaults") {
			req.Defaults()
		}
		opts := DynamicOptions(&req)
		for _, key := range alwaysForwarded {
			if !opts.Has(key) {
				t.Fatalf("always-forwarded key %q missing", key)
			}
		}
		assertPresence(t, opts, engine.OptWait, req.Wait != nil)
		assertPresence(t, opts, engine.OptWaitSelector, req.WaitSelector != "")
		assertPresence(t, opts, engine.OptLocale, req.Locale != "")
		assertPresence(t, opts, engine.OptExtraHeaders, len(req.ExtraHeaders) > 0)
		assertPresence(t, opts, engine.OptUserAgent, req.UserAgent != "")
		assertPresence(t, opts, engine.OptCDPURL, false)
		assertPresence(t, opts, engine.OptProxy, false)
	})
}

func TestDynamicOptions_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := dynamicRequest().Draw(t, "req")
		req.Defaults()
		assert.Equal(t, DynamicOptions(&req), DynamicOptions(&req))
	})
}

func TestDynamicOptions_Defaults(t *testing.T) {
	req := models.DynamicFetchRequest{URL: "https://example.com", WaitSelector: "#x"}
	req.Defaults()

	assert.Equal(t, engine.Options{
		engine.OptHeadless:          true,
		engine.OptDisableResources:  false,
		engine.OptNetworkIdle:       false,
		engine.OptLoadDOM:           true,
		engine.OptRealChrome:        false,
		engine.OptGoogleSearch:      true,
		engine.OptTimeout:           30000,
		engine.OptWaitSelector:      "#x",
		engine.OptWaitSelectorState: "attached",
	}, DynamicOptions(&req))
}

func TestStealthyOptions_ComposesDynamic(t *testing.T) {
	yes := true
	req := models.StealthyFetchRequest{
		DynamicFetchRequest: models.DynamicFetchRequest{URL: "https://example.com", Locale: "fr-FR"},
		SolveCloudflare:     &yes,
	}
	req.Defaults()

	opts := StealthyOptions(&req)
	dynamic := DynamicOptions(&req.DynamicFetchRequest)

	for k, v := range dynamic {
		assert.Equal(t, v, opts[k], "key %q", k)
	}
	require.Len(t, opts, len(dynamic)+4)
	assert.Equal(t, true, opts[engine.OptAllowWebGL])
	assert.Equal(t, false, opts[engine.OptHideCanvas])
	assert.Equal(t, false, opts[engine.OptBlockWebRTC])
	assert.Equal(t, true, opts[engine.OptSolveCloudflare])
}
