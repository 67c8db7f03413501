package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"hemnetscraper/logger"
	"hemnetscraper/services/cache"
)

// CrawlConfig bounds one crawl: the page budget, the consecutive-known
// threshold that triggers early termination, and the politeness delay
// range (zero range disables delays).
type CrawlConfig struct {
	BaseURL        string
	MaxPages       int
	KnownThreshold int
	DelayMin       time.Duration
	DelayMax       time.Duration
	KnownIDTTL     time.Duration
}

// ActiveCrawler drives the page-by-page crawl of active listings. Results
// are ordered newest-first by the source, so a run of consecutively
// already-known listings signals that the remaining pages hold no new
// data and the crawl stops early.
type ActiveCrawler struct {
	cfg     CrawlConfig
	fetcher Fetcher
	store   Store
	cache   cache.CacheService
	pub     Publisher
	log     *logger.Logger
	tel     *Telemetry

	// now is swappable for published-date tests
	now func() time.Time
}

// NewActiveCrawler creates the active listing crawler. cacheSvc and pub
// are optional and may be nil.
func NewActiveCrawler(cfg CrawlConfig, fetcher Fetcher, store Store, cacheSvc cache.CacheService, pub Publisher) *ActiveCrawler {
	return &ActiveCrawler{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		cache:   cacheSvc,
		pub:     pub,
		log:     logger.ForScraper("active-listings"),
		now:     time.Now,
	}
}

// Name returns the crawler's name for logging and identification
func (c *ActiveCrawler) Name() string {
	return "active-listings"
}

// Telemetry returns the accumulator of the most recent run.
func (c *ActiveCrawler) Telemetry() *Telemetry {
	return c.tel
}

// Run crawls listing pages until the page budget is exhausted, a page
// comes back empty, or the consecutive-known threshold is reached.
// Failures on single items or pages never abort the run.
func (c *ActiveCrawler) Run(ctx context.Context) error {
	c.tel = NewTelemetry()
	defer c.tel.LogSummary(c.log)

	known := 0

	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := c.delay(ctx); err != nil {
			return err
		}

		urls, err := c.listingURLs(ctx, page)
		if err != nil {
			// A failed result page yields zero URLs but the run moves
			// on to the next page.
			c.log.Error().Int("page", page).Err(err).Msg("Failed to load result page")
			c.tel.RecordError(err)
			continue
		}
		if len(urls) == 0 {
			c.log.Info().Int("page", page).Msg("No listings on page, stopping")
			return nil
		}
		c.log.Info().Int("page", page).Int("listings", len(urls)).Msg("Processing page")

		for _, href := range urls {
			if err := ctx.Err(); err != nil {
				return err
			}

			listing, err := c.processListing(ctx, c.cfg.BaseURL+href)
			if err != nil {
				if isSkip(err) {
					c.log.Warn().Str("url", href).Err(err).Msg("No data for listing")
					continue
				}
				c.log.Error().Str("url", href).Err(err).Msg("Failed to process listing")
				c.tel.RecordError(err)
				known = 0
				continue
			}

			exists, err := c.listingExists(ctx, listing.HemnetID)
			if err != nil {
				c.log.Error().Int64("hemnet_id", listing.HemnetID).Err(err).Msg("Existence check failed")
				c.tel.RecordError(err)
				known = 0
				continue
			}

			if !exists {
				stored, err := c.store.UpsertListing(ctx, listing)
				if err != nil {
					c.log.Error().Int64("hemnet_id", listing.HemnetID).Err(err).Msg("Failed to store listing")
					c.tel.RecordError(err)
					known = 0
					continue
				}
				if stored {
					c.log.Info().Int64("hemnet_id", listing.HemnetID).Msg("Stored new listing")
					c.rememberKnown(listing.HemnetID)
					c.publish(listing)
					known = 0
					continue
				}
				// Natural-key conflict: someone stored it between the
				// existence check and the insert. Same as already known.
			}

			c.log.Info().Int64("hemnet_id", listing.HemnetID).Msg("Listing already stored")
			known++
			if known >= c.cfg.KnownThreshold {
				c.log.Info().
					Int("consecutive_known", known).
					Msg("Consecutive-known threshold reached, terminating early")
				return nil
			}
		}
	}

	return nil
}

// listingURLs fetches one result page and extracts its listing hrefs.
func (c *ActiveCrawler) listingURLs(ctx context.Context, page int) ([]string, error) {
	url := c.cfg.BaseURL + "/bostader"
	if page > 1 {
		url = fmt.Sprintf("%s?page=%d", url, page)
	}

	html, err := c.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}
	return ListingURLs(html, "/bostad")
}

// processListing renders one listing page and extracts the canonical
// record, recording null field observations.
func (c *ActiveCrawler) processListing(ctx context.Context, url string) (*Listing, error) {
	html, err := c.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	state, _, err := ExtractPageState(html)
	if err != nil {
		return nil, err
	}

	resolved, err := ResolveState(state, c.log)
	if err != nil {
		return nil, err
	}

	listing, err := ExtractListing(resolved, c.now())
	if err != nil {
		return nil, err
	}

	for _, field := range listing.NullFields() {
		c.tel.RecordNull(field)
	}
	return listing, nil
}

// listingExists consults the known-ID cache before the store.
func (c *ActiveCrawler) listingExists(ctx context.Context, hemnetID int64) (bool, error) {
	key := knownListingKey(hemnetID)
	if c.cache != nil {
		if _, err := c.cache.Get(key); err == nil {
			return true, nil
		}
	}

	exists, err := c.store.ListingExists(ctx, hemnetID)
	if err != nil {
		return false, err
	}
	if exists {
		c.rememberKnown(hemnetID)
	}
	return exists, nil
}

func (c *ActiveCrawler) rememberKnown(hemnetID int64) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(knownListingKey(hemnetID), []byte("1"), c.cfg.KnownIDTTL); err != nil {
		c.log.Debug().Err(err).Msg("Known-ID cache set failed")
	}
}

func (c *ActiveCrawler) publish(l *Listing) {
	if c.pub == nil {
		return
	}
	payload, err := json.Marshal(l)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to marshal listing for publishing")
		return
	}
	if err := c.pub.Publish("listing", payload); err != nil {
		c.log.Error().Int64("hemnet_id", l.HemnetID).Err(err).Msg("Failed to publish listing")
	}
}

// delay waits a random politeness interval inside the configured range.
func (c *ActiveCrawler) delay(ctx context.Context) error {
	return politenessDelay(ctx, c.cfg.DelayMin, c.cfg.DelayMax)
}

func politenessDelay(ctx context.Context, min, max time.Duration) error {
	if max <= 0 {
		return ctx.Err()
	}
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isSkip reports whether an error is a valid negative result rather than
// an exception worth recording.
func isSkip(err error) bool {
	return errors.Is(err, ErrNoPageData) ||
		errors.Is(err, ErrNoListing) ||
		errors.Is(err, ErrNoAskingPrice) ||
		errors.Is(err, ErrNoSale)
}

func knownListingKey(hemnetID int64) string {
	return "hemnet:listing:" + strconv.FormatInt(hemnetID, 10)
}
