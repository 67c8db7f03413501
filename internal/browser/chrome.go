package browser

import (
	"context"
	"math/rand"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"hemnetscraper/logger"
	errs "hemnetscraper/pkg/errors"
)

// userAgents is rotated per fetch so consecutive page loads do not
// present an identical browser fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// ChromeFetcher renders pages in a headless browser so that script-built
// markup is present in the returned document. The allocator is shared;
// each fetch opens its own tab and closes it before returning.
type ChromeFetcher struct {
	allocCtx      context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	timeout       time.Duration
	log           *logger.Logger
}

// NewChromeFetcher starts a headless browser allocator. chromeBin
// overrides binary discovery when non-empty.
func NewChromeFetcher(chromeBin string, timeout time.Duration) *ChromeFetcher {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	log := logger.ForComponent("browser")
	if chromeBin != "" {
		log.Debug().Str("binary", chromeBin).Msg("Using browser binary")
	}

	return &ChromeFetcher{
		allocCtx:      silentCtx,
		cancelBrowser: cancelSilent,
		cancelAlloc:   cancelAlloc,
		timeout:       timeout,
		log:           log,
	}
}

// FetchHTML navigates a fresh tab to the URL and returns the rendered
// document. The tab and its timeout are released before returning.
func (f *ChromeFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	// Tear the tab down when the caller's context goes away.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	ua := userAgents[rand.Intn(len(userAgents))]

	var html string
	err := chromedp.Run(tabCtx,
		emulation.SetUserAgentOverride(ua),
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.NewFetchError(url, "browser navigation failed", err)
	}
	return html, nil
}

// Close shuts the shared browser and its allocator down.
func (f *ChromeFetcher) Close() error {
	f.cancelBrowser()
	f.cancelAlloc()
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
