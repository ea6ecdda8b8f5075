package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// challengeMaxWait bounds the solve loop when the request has no deadline.
const challengeMaxWait = 60 * time.Second

// challengeTitles are page title fragments shown while an interstitial runs.
var challengeTitles = []string{
	"just a moment",
	"checking your browser",
	"attention required",
	"please wait",
}

// challengeSelectors are elements present while an interstitial runs.
var challengeSelectors = []string{
	"#cf-challenge-running",
	"#challenge-running",
	"#challenge-stage",
	"#turnstile-wrapper",
	"#cf-spinner-please-wait",
	"#cf-spinner-redirecting",
}

const turnstileFrame = "challenges.cloudflare.com"

var errChallengeTimeout = errors.New("cloudflare challenge was not solved before the deadline")

// solveChallenge polls the page until no Cloudflare interstitial is
// detected, nudging Turnstile widgets along the way.
func solveChallenge(ctx context.Context, p *rod.Page) error {
	const pollInterval = time.Second

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, challengeMaxWait)
		defer cancel()
	}
	p = p.Context(ctx)

	for attempt := 1; ; attempt++ {
		title := evalStringOrEmpty(p, `() => document.title`)
		inTitle := hasChallengeTitle(title)
		selector := findChallengeSelector(p)

		slog.Debug("challenge detection",
			"attempt", attempt,
			"title", title,
			"challengeInTitle", inTitle,
			"challengeSelector", selector,
		)

		if !inTitle && selector == "" {
			if attempt > 1 {
				slog.Info("cloudflare challenge cleared", "attempts", attempt)
			}
			return nil
		}

		if selector == "#turnstile-wrapper" || hasTurnstileFrame(p) {
			if err := clickTurnstile(ctx, p); err != nil {
				slog.Debug("turnstile attempt failed", "error", err)
			}
		}

		if !sleepWithContext(ctx, pollInterval) {
			return errChallengeTimeout
		}
	}
}

func hasChallengeTitle(title string) bool {
	title = strings.ToLower(title)
	for _, t := range challengeTitles {
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

func findChallengeSelector(p *rod.Page) string {
	for _, selector := range challengeSelectors {
		if has, el, _ := p.Has(selector); has {
			_ = el.Release()
			return selector
		}
	}
	return ""
}

func hasTurnstileFrame(p *rod.Page) bool {
	has, el, _ := p.Has(`iframe[src*="` + turnstileFrame + `"]`)
	if has {
		_ = el.Release()
	}
	return has
}

// clickTurnstile clicks the Turnstile checkbox inside its iframe, falling
// back to keyboard focus (Tab, then Space) when the frame is not reachable.
func clickTurnstile(ctx context.Context, p *rod.Page) error {
	iframes, err := p.Elements("iframe")
	if err != nil {
		return err
	}
	defer func() {
		for _, iframe := range iframes {
			_ = iframe.Release()
		}
	}()

	for _, iframe := range iframes {
		src, err := iframe.Attribute("src")
		if err != nil || src == nil || !strings.Contains(*src, turnstileFrame) {
			continue
		}
		frame, err := iframe.Frame()
		if err != nil {
			continue
		}
		if has, box, _ := frame.Has(`input[type="checkbox"]`); has {
			clickErr := box.Click(proto.InputMouseButtonLeft, 1)
			_ = box.Release()
			if clickErr == nil {
				slog.Info("clicked turnstile checkbox")
				return nil
			}
		}
		// The widget often renders in a closed shadow root; click its centre.
		if clickErr := iframe.Click(proto.InputMouseButtonLeft, 1); clickErr == nil {
			slog.Info("clicked turnstile frame")
			return nil
		}
	}

	for range 10 {
		if err := p.Keyboard.Press(input.Tab); err != nil {
			return err
		}
		if !sleepWithContext(ctx, 150*time.Millisecond) {
			return ctx.Err()
		}
	}
	return p.Keyboard.Press(input.Space)
}
