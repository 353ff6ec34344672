package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// BrowserPool manages a pool of headless-browser contexts for rendered
// fetches. Allocation is round-robin; release is guaranteed on every exit
// path including timeout.
type BrowserPool struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	maxInstances     int
	currentIndex     int
	logger           arbor.ILogger
	userAgent        string
	initialized      bool
}

// BrowserPoolConfig holds configuration for the browser pool
type BrowserPoolConfig struct {
	MaxInstances   int
	UserAgent      string
	Headless       bool
	NoSandbox      bool
	RequestTimeout time.Duration
}

// NewBrowserPool creates an uninitialized browser pool
func NewBrowserPool(config BrowserPoolConfig, logger arbor.ILogger) *BrowserPool {
	return &BrowserPool{
		maxInstances: config.MaxInstances,
		userAgent:    config.UserAgent,
		logger:       logger,
	}
}

// Init starts the configured number of browser instances. Instances that fail
// startup are skipped; Init fails only when none could be created.
func (p *BrowserPool) Init(config BrowserPoolConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}
	if config.MaxInstances <= 0 {
		return fmt.Errorf("max instances must be greater than 0, got: %d", config.MaxInstances)
	}
	if config.UserAgent == "" {
		config.UserAgent = "HuntBot/1.0"
	}

	p.maxInstances = config.MaxInstances
	p.userAgent = config.UserAgent
	p.browsers = make([]context.Context, 0, p.maxInstances)
	p.browserCancels = make([]context.CancelFunc, 0, p.maxInstances)
	p.allocatorCancels = make([]context.CancelFunc, 0, p.maxInstances)
	p.currentIndex = 0

	p.logger.Info().
		Int("pool_size", p.maxInstances).
		Bool("headless", config.Headless).
		Msg("Initializing browser pool")

	successCount := 0
	var lastErr error
	for i := 0; i < p.maxInstances; i++ {
		if err := p.createInstance(i, config); err != nil {
			lastErr = err
			p.logger.Warn().
				Err(err).
				Int("browser_index", i).
				Msg("Failed to create browser instance")
			continue
		}
		successCount++
	}

	if successCount == 0 {
		p.cleanupInstances()
		return fmt.Errorf("failed to create any browser instances, last error: %w", lastErr)
	}
	if successCount < p.maxInstances {
		p.logger.Warn().
			Int("requested", p.maxInstances).
			Int("created", successCount).
			Msg("Created fewer browser instances than requested")
		p.maxInstances = successCount
	}

	p.initialized = true
	p.logger.Info().
		Int("browsers_created", len(p.browsers)).
		Msg("Browser pool initialized")

	return nil
}

// createInstance creates a single browser instance and adds it to the pool
func (p *BrowserPool) createInstance(index int, config BrowserPoolConfig) error {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testTimeout := 30 * time.Second
	if config.RequestTimeout > 0 {
		testTimeout = config.RequestTimeout
	}
	testCtx, testCancel := context.WithTimeout(browserCtx, testTimeout)
	defer testCancel()

	// Startup test confirms the instance can serve navigations
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed startup test: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)

	p.logger.Debug().Int("browser_index", index).Msg("Browser instance created")
	return nil
}

// acquire returns a browser context round-robin plus a release function. The
// release is currently bookkeeping only; the tab context is per-Render.
func (p *BrowserPool) acquire() (context.Context, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, fmt.Errorf("browser pool not initialized")
	}
	if len(p.browsers) == 0 {
		return nil, nil, fmt.Errorf("no browser instances available")
	}

	index := p.currentIndex % len(p.browsers)
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)
	browserCtx := p.browsers[index]

	release := func() {
		p.logger.Debug().Int("browser_index", index).Msg("Browser context released")
	}
	return browserCtx, release, nil
}

// Render navigates a pooled browser tab to url, waits for the page to settle
// (waitSelector when given, otherwise document readiness plus a short network
// quiet period), and returns the rendered HTML. The tab is torn down on every
// exit path.
func (p *BrowserPool) Render(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error) {
	browserCtx, release, err := p.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	// Fresh tab per render; cancel guarantees release even on timeout
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()

	// Stop early if the caller's context dies first
	go func() {
		select {
		case <-ctx.Done():
			runCancel()
		case <-runCtx.Done():
		}
	}()

	waitAction := chromedp.ActionFunc(func(c context.Context) error {
		// Readiness poll: document.readyState === "complete", then a short
		// settle window for late XHR-rendered listings
		var ready bool
		for i := 0; i < 50; i++ {
			if err := chromedp.Evaluate(`document.readyState === "complete"`, &ready).Do(c); err != nil {
				return err
			}
			if ready {
				break
			}
			select {
			case <-c.Done():
				return c.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		select {
		case <-c.Done():
			return c.Err()
		case <-time.After(500 * time.Millisecond):
		}
		return nil
	})
	if waitSelector != "" {
		waitAction = chromedp.ActionFunc(chromedp.WaitVisible(waitSelector).Do)
	}

	var html string
	err = chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		waitAction,
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

// Shutdown cleans up all browser instances in the pool
func (p *BrowserPool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	browserCount := len(p.browsers)
	p.logger.Info().Int("browser_count", browserCount).Msg("Shutting down browser pool")

	done := make(chan struct{})
	go func() {
		p.cleanupInstances()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		p.logger.Warn().Msg("Browser pool shutdown timed out, forcing cleanup")
		p.cleanupInstances()
	}

	p.initialized = false
	p.logger.Info().Int("browsers_shutdown", browserCount).Msg("Browser pool shut down")
	return nil
}

// cleanupInstances cleans up all browser instances (must be called with mutex held)
func (p *BrowserPool) cleanupInstances() {
	for _, cancel := range p.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range p.allocatorCancels {
		if cancel != nil {
			cancel()
		}
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.currentIndex = 0
}

// IsInitialized returns whether the browser pool has been initialized
func (p *BrowserPool) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}
