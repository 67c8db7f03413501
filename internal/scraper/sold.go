package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"hemnetscraper/helpers"
	"hemnetscraper/logger"
)

// ErrNoSale signals a page without a usable sold-listing record. Valid
// negative result.
var ErrNoSale = errors.New("no sale record in page data")

const soldListingKeyPrefix = "SoldPropertyListing:"

// ExtractSale builds the canonical sale record for a sold listing page.
// All fields except the sale ID are optional; the formatted sale date
// string is always retained even when it cannot be parsed.
func ExtractSale(state map[string]RawRecord, saleID, url string) (*Sale, error) {
	if saleID == "" {
		return nil, ErrNoSale
	}
	raw, ok := state[soldListingKeyPrefix+saleID]
	if !ok {
		return nil, fmt.Errorf("%w: key %q not in state graph", ErrNoSale, soldListingKeyPrefix+saleID)
	}

	id, err := strconv.ParseInt(saleID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: sale id %q is not numeric", ErrNoSale, saleID)
	}

	s := &Sale{
		SaleHemnetID:  id,
		URL:           url,
		SaleDateRaw:   raw.getString("formattedSoldAt"),
		StreetAddress: raw.getString("streetAddress"),
		Area:          raw.getString("area"),
	}

	s.Title = fmt.Sprintf("%s %s - %s",
		raw.getMap("housingForm").getString("name"),
		raw.getString("formattedLivingArea"),
		raw.getString("locationName"))

	if date, ok := ParseSwedishDate(s.SaleDateRaw); ok {
		s.SaleDate = &date
	}

	s.OriginalListingID = raw.getInt("listingId")
	s.FinalPrice = raw.getMap("sellingPrice").getInt("amount")
	s.AskingPrice = raw.getMap("askingPrice").getInt("amount")
	s.PriceChange = raw.getMap("priceChange").getInt("amount")
	s.PriceChangePct = raw.getFloat("priceChangePercentage")
	s.LivingArea = raw.getFloat("livingArea")
	s.LandArea = raw.getFloat("landArea")
	s.RunningCosts = raw.getMap("runningCosts").getInt("amount")
	s.NumberOfRooms = raw.getFloat("numberOfRooms")
	s.ConstructionYear = raw.getInt("legacyConstructionYear")

	if ref := raw.getMap("municipality").getString("__ref"); ref != "" {
		if tail, err := helpers.GetSplitPart(ref, ":", -1); err == nil {
			s.Municipality = tail
		}
	}
	s.BrokerAgency = refName(state, raw.getMap("brokerAgency"))

	return s, nil
}

// get-style accessors with lookup-or-zero semantics: absent, null or
// mistyped values yield the zero result instead of an error. Used for the
// sold listing record, whose fields are all optional.

func (r RawRecord) getString(key string) string {
	if r == nil {
		return ""
	}
	s, _ := r[key].(string)
	return s
}

func (r RawRecord) getMap(key string) RawRecord {
	if r == nil {
		return nil
	}
	m, _ := r[key].(map[string]any)
	return RawRecord(m)
}

func (r RawRecord) getInt(key string) *int64 {
	if r == nil {
		return nil
	}
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil
	}
	return &n
}

func (r RawRecord) getFloat(key string) *float64 {
	if r == nil {
		return nil
	}
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return nil
	}
	return &f
}

// SoldCrawler drives the page-by-page crawl of sold listings. The
// consecutive-known threshold is configured much higher than for active
// listings because sales stay on the result pages far longer.
type SoldCrawler struct {
	cfg     CrawlConfig
	fetcher Fetcher
	store   Store
	pub     Publisher
	log     *logger.Logger
	tel     *Telemetry
}

// NewSoldCrawler creates the sold listing crawler. pub may be nil.
func NewSoldCrawler(cfg CrawlConfig, fetcher Fetcher, store Store, pub Publisher) *SoldCrawler {
	return &SoldCrawler{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		pub:     pub,
		log:     logger.ForScraper("sold-listings"),
	}
}

// Name returns the crawler's name for logging and identification
func (c *SoldCrawler) Name() string {
	return "sold-listings"
}

// Telemetry returns the accumulator of the most recent run.
func (c *SoldCrawler) Telemetry() *Telemetry {
	return c.tel
}

// Run crawls sold listing pages with the same bounds and failure policy
// as the active crawler.
func (c *SoldCrawler) Run(ctx context.Context) error {
	c.tel = NewTelemetry()
	defer c.tel.LogSummary(c.log)

	known := 0

	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := politenessDelay(ctx, c.cfg.DelayMin, c.cfg.DelayMax); err != nil {
			return err
		}

		urls, err := c.saleURLs(ctx, page)
		if err != nil {
			// A failed result page yields zero URLs but the run moves
			// on to the next page.
			c.log.Error().Int("page", page).Err(err).Msg("Failed to load result page")
			c.tel.RecordError(err)
			continue
		}
		if len(urls) == 0 {
			c.log.Info().Int("page", page).Msg("No sold listings on page, stopping")
			return nil
		}
		c.log.Info().Int("page", page).Int("listings", len(urls)).Msg("Processing page")

		for _, href := range urls {
			if err := ctx.Err(); err != nil {
				return err
			}

			sale, err := c.processSale(ctx, c.cfg.BaseURL+href)
			if err != nil {
				if isSkip(err) {
					c.log.Warn().Str("url", href).Err(err).Msg("No data for sold listing")
					continue
				}
				c.log.Error().Str("url", href).Err(err).Msg("Failed to process sold listing")
				c.tel.RecordError(err)
				known = 0
				continue
			}

			stored, alreadyExists, err := c.store.UpsertSale(ctx, sale)
			if err != nil {
				c.log.Error().Int64("sale_hemnet_id", sale.SaleHemnetID).Err(err).Msg("Failed to store sale")
				c.tel.RecordError(err)
				known = 0
				continue
			}

			if alreadyExists {
				known++
				if known >= c.cfg.KnownThreshold {
					c.log.Info().
						Int("consecutive_known", known).
						Msg("Consecutive-known threshold reached, terminating early")
					return nil
				}
				continue
			}

			known = 0
			if stored {
				c.log.Info().Int64("sale_hemnet_id", sale.SaleHemnetID).Msg("Stored new sale")
				c.publish(sale)
			}
		}
	}

	return nil
}

func (c *SoldCrawler) saleURLs(ctx context.Context, page int) ([]string, error) {
	url := fmt.Sprintf("%s/salda/bostader?page=%d", c.cfg.BaseURL, page)

	html, err := c.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}
	return ListingURLs(html, "/salda")
}

func (c *SoldCrawler) processSale(ctx context.Context, url string) (*Sale, error) {
	html, err := c.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	state, saleID, err := ExtractPageState(html)
	if err != nil {
		return nil, err
	}

	return ExtractSale(state, saleID, url)
}

func (c *SoldCrawler) publish(s *Sale) {
	if c.pub == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to marshal sale for publishing")
		return
	}
	if err := c.pub.Publish("sale", payload); err != nil {
		c.log.Error().Int64("sale_hemnet_id", s.SaleHemnetID).Err(err).Msg("Failed to publish sale")
	}
}
