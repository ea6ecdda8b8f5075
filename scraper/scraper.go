package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/fetchgate/config"
)

// profile identifies one launched browser. Headless mode and the choice of
// binary are fixed at launch, so each combination gets its own process.
type profile struct {
	headless   bool
	realChrome bool
}

func (p profile) String() string {
	return fmt.Sprintf("headless=%t real_chrome=%t", p.headless, p.realChrome)
}

// instance is a launched browser together with the pool bounding how many
// pages it renders at once.
type instance struct {
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
}

// Scraper manages browser lifecycles for the dynamic and stealthy fetch
// modes. Browsers are launched on first use; every fetch runs in its own
// browser context.
// It is safe for concurrent use.
type Scraper struct {
	cfg config.BrowserConfig

	mu        sync.Mutex
	instances map[profile]*instance
	closed    bool

	activePages atomic.Int32
}

// NewScraper creates a Scraper. No browser is started until the first fetch.
func NewScraper(cfg config.BrowserConfig) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Scraper{
		cfg:       cfg,
		instances: make(map[profile]*instance),
	}
}

// ActivePages reports how many pages are currently serving requests.
func (s *Scraper) ActivePages() int {
	return int(s.activePages.Load())
}

// instanceFor returns the browser for p, launching it if needed.
func (s *Scraper) instanceFor(p profile) (*instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("browser engine is shut down")
	}
	if inst, ok := s.instances[p]; ok {
		return inst, nil
	}

	browser, err := s.launch(p)
	if err != nil {
		return nil, err
	}
	inst := &instance{
		browser: browser,
		pool:    rod.NewPagePool(s.cfg.MaxPages),
	}
	s.instances[p] = inst
	slog.Info("page pool created", "profile", p.String(), "maxPages", s.cfg.MaxPages)
	return inst, nil
}

func (s *Scraper) launch(p profile) (*rod.Browser, error) {
	l := launcher.New().
		Headless(p.headless).
		NoSandbox(s.cfg.NoSandbox)

	switch {
	case p.realChrome:
		bin, ok := launcher.LookPath()
		if !ok {
			return nil, errors.New("real_chrome requested but no installed Chrome was found")
		}
		l = l.Bin(bin)
	case s.cfg.Bin != "":
		l = l.Bin(s.cfg.Bin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	slog.Info("browser launched", "profile", p.String(), "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	return browser, nil
}

// Close kills the launched browsers, which also ends any page still in use.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for p, inst := range s.instances {
		slog.Info("scraper shutting down: closing browser", "profile", p.String())
		if err := inst.browser.Close(); err != nil {
			slog.Warn("failed to close browser", "profile", p.String(), "error", err)
		}
	}
	s.instances = map[profile]*instance{}
	slog.Info("scraper shutdown complete")
}
