package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
)

// Selector wait states accepted by wait_selector_state.
const (
	stateAttached = "attached"
	stateDetached = "detached"
	stateVisible  = "visible"
	stateHidden   = "hidden"
)

const hiddenJS = `(s) => {
	const el = document.querySelector(s);
	if (!el) return true;
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	return style.visibility === 'hidden' || style.display === 'none' || (rect.width === 0 && rect.height === 0);
}`

const detachedJS = `(s) => !document.querySelector(s)`

// waitForSelector blocks until the element matched by selector reaches
// state. The page's context bounds the wait.
func waitForSelector(p *rod.Page, selector, state string) error {
	switch state {
	case "", stateAttached:
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		return el.Release()
	case stateVisible:
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		defer func() { _ = el.Release() }()
		return el.WaitVisible()
	case stateHidden:
		return p.Wait(rod.Eval(hiddenJS, selector))
	case stateDetached:
		return p.Wait(rod.Eval(detachedJS, selector))
	default:
		return fmt.Errorf("unknown selector state %q", state)
	}
}

// sleepWithContext sleeps for d unless ctx ends first. It reports whether
// the full duration elapsed.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
