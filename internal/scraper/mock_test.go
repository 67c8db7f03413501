package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// mockFetcher serves canned documents by URL and records every fetch.
type mockFetcher struct {
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (f *mockFetcher) FetchHTML(_ context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	if err := f.errs[url]; err != nil {
		return "", err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", &mockError{message: "no page for " + url}
	}
	return html, nil
}

func (f *mockFetcher) fetchedURL(url string) bool {
	for _, u := range f.fetched {
		if u == url {
			return true
		}
	}
	return false
}

// mockStore implements Store in memory.
type mockStore struct {
	knownListings map[int64]bool
	knownSales    map[int64]bool
	listings      []int64
	sales         []int64
}

func newMockStore() *mockStore {
	return &mockStore{
		knownListings: make(map[int64]bool),
		knownSales:    make(map[int64]bool),
	}
}

func (m *mockStore) ListingExists(_ context.Context, hemnetID int64) (bool, error) {
	return m.knownListings[hemnetID], nil
}

func (m *mockStore) UpsertListing(_ context.Context, l *Listing) (bool, error) {
	if m.knownListings[l.HemnetID] {
		return false, nil
	}
	m.knownListings[l.HemnetID] = true
	m.listings = append(m.listings, l.HemnetID)
	return true, nil
}

func (m *mockStore) UpsertSale(_ context.Context, s *Sale) (bool, bool, error) {
	if m.knownSales[s.SaleHemnetID] {
		return false, true, nil
	}
	m.knownSales[s.SaleHemnetID] = true
	m.sales = append(m.sales, s.SaleHemnetID)
	return true, false, nil
}

func (m *mockStore) FindListingID(_ context.Context, hemnetID int64) (int64, bool, error) {
	if m.knownListings[hemnetID] {
		return hemnetID, true, nil
	}
	return 0, false, nil
}

// mockCacheService implements a simple in-memory cache for testing
type mockCacheService struct {
	cache map[string][]byte
}

func newMockCacheService() *mockCacheService {
	return &mockCacheService{cache: make(map[string][]byte)}
}

func (m *mockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *mockCacheService) Set(key string, value []byte, _ time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *mockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

// mockPublisher records published messages by key.
type mockPublisher struct {
	published map[string][][]byte
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{published: make(map[string][][]byte)}
}

func (p *mockPublisher) Publish(key string, message []byte) error {
	p.published[key] = append(p.published[key], message)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// baseListingRecord is a complete raw listing entry the way it comes out
// of the decoded page JSON, so all numbers are float64.
func baseListingRecord(id int64) RawRecord {
	return RawRecord{
		"id":                     float64(id),
		"streetAddress":          "Storgatan 1",
		"postCode":               "114 51",
		"tenure":                 map[string]any{"name": "Bostadsrätt"},
		"numberOfRooms":          float64(3),
		"askingPrice":            map[string]any{"amount": float64(4500000)},
		"livingArea":             float64(75),
		"squareMeterPrice":       map[string]any{"amount": float64(60000)},
		"fee":                    map[string]any{"amount": float64(3200)},
		"yearlyArrendeFee":       nil,
		"yearlyLeaseholdFee":     map[string]any{"formatted": "12 000 kr"},
		"runningCosts":           map[string]any{"amount": float64(8000)},
		"legacyConstructionYear": float64(1962),
		"supplementalArea":       nil,
		"landArea":               nil,
		"isForeclosure":          false,
		"isNewConstruction":      false,
		"isProject":              false,
		"isUpcoming":             false,
		"housingForm":            map[string]any{"name": "Lägenhet"},
		"energyClassification":   map[string]any{"classification": "C"},
		"housingCooperative":     map[string]any{"name": "Brf Eken"},
		"formattedFloor":         "3, trappa upp",
		"daysOnHemnet":           float64(5),
		"description":            "Ljus trea med balkong.",
		"closestWaterDistanceMeters": float64(250),
		"coastlineDistanceMeters":    nil,
		"relevantAmenities": []any{
			map[string]any{"title": "Balkong", "isAvailable": true},
			map[string]any{"title": "Hiss", "isAvailable": false},
		},
		"breadcrumbs": []any{
			map[string]any{"path": "/bostader?location_ids%5B%5D=17744", "trackingValue": "municipality"},
		},
	}
}

// baseState is the state graph of one active listing page.
func baseState(listingID int64) map[string]RawRecord {
	return map[string]RawRecord{
		"Location:17744":  {"id": float64(17744), "fullName": "Stockholms kommun"},
		"Location:898472": {"id": float64(898472), "fullName": "Östermalm"},
		"BrokerAgency:9":  {"id": float64(9), "name": "Mäklarhuset"},
		"Broker:7":        {"id": float64(7), "name": "Anna Svensson"},
		fmt.Sprintf("ActivePropertyListing:%d", listingID): baseListingRecord(listingID),
	}
}

// pageHTML embeds a state graph the way the site's server rendering does.
func pageHTML(state map[string]RawRecord, saleID string) string {
	doc := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"__APOLLO_STATE__": state,
				"saleId":           saleID,
			},
		},
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return `<html><head></head><body>
		<script id="__NEXT_DATA__" type="application/json">` + string(payload) + `</script>
	</body></html>`
}

// resultPageHTML builds a search result page holding the given hrefs.
func resultPageHTML(hrefs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div data-testid="result-list">`)
	for _, href := range hrefs {
		sb.WriteString(`<a href="` + href + `">listing</a>`)
	}
	sb.WriteString(`</div></body></html>`)
	return sb.String()
}
