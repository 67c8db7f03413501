package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeCrawlerFixture(hrefs ...string) (*mockFetcher, *mockStore) {
	fetcher := newMockFetcher()
	fetcher.pages["https://test/bostader"] = resultPageHTML(hrefs...)
	fetcher.pages["https://test/bostader?page=2"] = resultPageHTML()
	return fetcher, newMockStore()
}

func listingPage(id int64) string {
	return pageHTML(baseState(id), "")
}

func TestActiveCrawlerStoresNewListings(t *testing.T) {
	fetcher, st := activeCrawlerFixture("/bostad/x-1", "/bostad/x-2")
	fetcher.pages["https://test/bostad/x-1"] = listingPage(1)
	fetcher.pages["https://test/bostad/x-2"] = listingPage(2)

	pub := newMockPublisher()
	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 3,
	}, fetcher, st, nil, pub)

	err := c.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, st.listings)
	assert.Len(t, pub.published["listing"], 2)
	assert.Equal(t, 0, c.Telemetry().ErrorCount())
}

func TestActiveCrawlerEarlyTermination(t *testing.T) {
	fetcher, st := activeCrawlerFixture(
		"/bostad/x-1", "/bostad/x-2", "/bostad/x-3", "/bostad/x-4", "/bostad/x-5")
	for id := int64(1); id <= 5; id++ {
		fetcher.pages[fmt.Sprintf("https://test/bostad/x-%d", id)] = listingPage(id)
	}

	st.knownListings[2] = true
	st.knownListings[3] = true
	st.knownListings[4] = true

	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 3,
	}, fetcher, st, nil, nil)

	err := c.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []int64{1}, st.listings, "only the new listing before the known run is stored")
	assert.False(t, fetcher.fetchedURL("https://test/bostad/x-5"),
		"crawl must stop before the item after the threshold")
}

func TestActiveCrawlerErrorResetsKnownCounter(t *testing.T) {
	fetcher, st := activeCrawlerFixture(
		"/bostad/x-1", "/bostad/x-2", "/bostad/x-3", "/bostad/x-4")
	fetcher.pages["https://test/bostad/x-1"] = listingPage(1)
	fetcher.errs["https://test/bostad/x-2"] = &mockError{message: "timeout"}
	fetcher.pages["https://test/bostad/x-3"] = listingPage(3)
	fetcher.pages["https://test/bostad/x-4"] = listingPage(4)

	st.knownListings[1] = true
	st.knownListings[3] = true

	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 2,
	}, fetcher, st, nil, nil)

	err := c.Run(context.Background())
	assert.NoError(t, err)
	// known(1), error resets, known(3) does not reach the threshold again,
	// so listing 4 is still processed and stored.
	assert.Equal(t, []int64{4}, st.listings)
	assert.Equal(t, 1, c.Telemetry().ErrorCount())
}

func TestActiveCrawlerSkipsPagesWithoutData(t *testing.T) {
	fetcher, st := activeCrawlerFixture("/bostad/x-1", "/bostad/x-2")
	fetcher.pages["https://test/bostad/x-1"] = `<html><body>interstitial</body></html>`
	fetcher.pages["https://test/bostad/x-2"] = listingPage(2)

	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 3,
	}, fetcher, st, nil, nil)

	err := c.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []int64{2}, st.listings)
	assert.Equal(t, 0, c.Telemetry().ErrorCount(), "pages without embedded data are not exceptions")
}

func TestActiveCrawlerResultPageFailureContinues(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.errs["https://test/bostader"] = &mockError{message: "timeout"}
	fetcher.pages["https://test/bostader?page=2"] = resultPageHTML("/bostad/x-1")
	fetcher.pages["https://test/bostader?page=3"] = resultPageHTML()
	fetcher.pages["https://test/bostad/x-1"] = listingPage(1)

	st := newMockStore()
	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 3,
	}, fetcher, st, nil, nil)

	err := c.Run(context.Background())
	assert.NoError(t, err)
	assert.True(t, fetcher.fetchedURL("https://test/bostader?page=2"),
		"a failed result page yields zero URLs but the run moves on")
	assert.Equal(t, []int64{1}, st.listings)
	assert.Equal(t, 1, c.Telemetry().ErrorCount())
}

func TestActiveCrawlerEmptyResultPageStops(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.pages["https://test/bostader"] = resultPageHTML()
	st := newMockStore()

	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 3,
	}, fetcher, st, nil, nil)

	err := c.Run(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, st.listings)
	assert.False(t, fetcher.fetchedURL("https://test/bostader?page=2"))
}

func TestActiveCrawlerUsesKnownIDCache(t *testing.T) {
	fetcher, st := activeCrawlerFixture("/bostad/x-1")
	fetcher.pages["https://test/bostad/x-1"] = listingPage(1)

	cacheSvc := newMockCacheService()
	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 3,
		KnownIDTTL:     time.Hour,
	}, fetcher, st, cacheSvc, nil)

	err := c.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []int64{1}, st.listings)

	_, cacheErr := cacheSvc.Get("hemnet:listing:1")
	assert.NoError(t, cacheErr, "newly stored listings are remembered in the cache")

	// Second run: the cache answers the existence check, the store is
	// never consulted.
	st.knownListings = map[int64]bool{}
	err = c.Run(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, st.listings[1:], "cached listing must not be stored again")
}

func TestActiveCrawlerContextCancellation(t *testing.T) {
	fetcher, st := activeCrawlerFixture("/bostad/x-1")
	fetcher.pages["https://test/bostad/x-1"] = listingPage(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewActiveCrawler(CrawlConfig{
		BaseURL:        "https://test",
		MaxPages:       5,
		KnownThreshold: 3,
		DelayMin:       time.Millisecond,
		DelayMax:       2 * time.Millisecond,
	}, fetcher, st, nil, nil)

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.listings)
}
