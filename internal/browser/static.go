package browser

import (
	"bytes"
	"context"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"

	errs "hemnetscraper/pkg/errors"
)

var referers = []string{
	"https://www.google.com/",
	"https://www.google.se/",
	"https://www.bing.com/",
}

// StaticFetcher retrieves pages over plain HTTP with randomized browser
// headers. It only works while the site still ships its page state inside
// the server-rendered document.
type StaticFetcher struct {
	client *http.Client
}

// NewStaticFetcher creates an HTTP fetcher with the given request timeout.
func NewStaticFetcher(timeout time.Duration) *StaticFetcher {
	return &StaticFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// FetchHTML sends a GET request with browser-like headers, converts the
// response body to UTF-8 if needed, and returns it as a string.
func (f *StaticFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.NewFetchError(url, "failed to create request", err)
	}

	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "sv-SE,sv;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("upgrade-insecure-requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errs.NewFetchError(url, "request failed", err)
	}
	defer resp.Body.Close()

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		retryAfter := resp.Header.Get("Retry-After")
		return "", errs.NewFetchError(url, "rate limited; retry after "+retryAfter, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.NewFetchError(url, http.StatusText(resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.NewFetchError(url, "failed to read response body", err)
	}

	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if name == "utf-8" || name == "UTF-8" {
		return string(bodyBytes), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return "", errs.NewFetchError(url, "failed to convert body to UTF-8", err)
	}
	return buf.String(), nil
}
