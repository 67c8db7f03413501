package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	errs "hemnetscraper/pkg/errors"
)

func TestExtractPageState(t *testing.T) {
	html := pageHTML(baseState(55), "")

	state, saleID, err := ExtractPageState(html)
	assert.NoError(t, err)
	assert.Equal(t, "", saleID)
	assert.Len(t, state, 5)
	assert.Contains(t, state, "ActivePropertyListing:55")
}

func TestExtractPageStateSaleID(t *testing.T) {
	state := map[string]RawRecord{
		"SoldPropertyListing:4321": {"streetAddress": "Storgatan 1"},
	}
	html := pageHTML(state, "4321")

	_, saleID, err := ExtractPageState(html)
	assert.NoError(t, err)
	assert.Equal(t, "4321", saleID)
}

func TestExtractPageStateMissingScript(t *testing.T) {
	_, _, err := ExtractPageState(`<html><body><p>nothing here</p></body></html>`)
	assert.ErrorIs(t, err, ErrNoPageData)
}

func TestExtractPageStateBadJSON(t *testing.T) {
	html := `<html><body><script id="__NEXT_DATA__" type="application/json">{not json</script></body></html>`

	_, _, err := ExtractPageState(html)
	assert.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
}

func TestExtractPageStateEmptyGraph(t *testing.T) {
	html := `<html><body><script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{}}}</script></body></html>`

	_, _, err := ExtractPageState(html)
	assert.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
}

func TestListingURLs(t *testing.T) {
	html := resultPageHTML(
		"/bostad/lagenhet-3-rum-ostermalm-55",
		"/salda/lagenhet-4321",
		"/bostad/villa-sollentuna-56",
		"https://external.example.com/ad",
	)

	urls, err := ListingURLs(html, "/bostad")
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"/bostad/lagenhet-3-rum-ostermalm-55",
		"/bostad/villa-sollentuna-56",
	}, urls)

	urls, err = ListingURLs(html, "/salda")
	assert.NoError(t, err)
	assert.Equal(t, []string{"/salda/lagenhet-4321"}, urls)
}

func TestListingURLsNoResultList(t *testing.T) {
	urls, err := ListingURLs(`<html><body><a href="/bostad/1">stray</a></body></html>`, "/bostad")
	assert.NoError(t, err)
	assert.Empty(t, urls)
}
