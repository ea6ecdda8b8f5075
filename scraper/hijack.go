package scraper

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockedResources are the resource types dropped when disable_resources is
// set. Documents, scripts and XHR always pass so the page still renders.
var blockedResources = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeImage:              {},
	proto.NetworkResourceTypeStylesheet:         {},
	proto.NetworkResourceTypeFont:               {},
	proto.NetworkResourceTypeMedia:              {},
	proto.NetworkResourceTypeTextTrack:          {},
	proto.NetworkResourceTypePing:               {},
	proto.NetworkResourceTypeCSPViolationReport: {},
}

// setupHijack installs a request interceptor on the page that fails every
// request for a blocked resource type.
//
// Returns the running HijackRouter so the caller can defer router.Stop().
func setupHijack(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per-request whether to block or continue.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, blocked := blockedResources[ctx.Request.Type()]; blocked {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}
