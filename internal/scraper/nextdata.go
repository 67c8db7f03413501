package scraper

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "hemnetscraper/pkg/errors"
)

// ErrNoPageData signals that a rendered page carried no embedded state
// script. It is a valid negative result, not a failure.
var ErrNoPageData = errors.New("no embedded page data")

// nextData mirrors the server-rendered JSON document embedded in every
// page: {props: {pageProps: {__APOLLO_STATE__: {...}, saleId?: string}}}.
type nextData struct {
	Props struct {
		PageProps struct {
			ApolloState map[string]RawRecord `json:"__APOLLO_STATE__"`
			SaleID      string               `json:"saleId"`
		} `json:"pageProps"`
	} `json:"props"`
}

// ExtractPageState locates the embedded state script in a rendered
// document and returns the raw state graph plus the page's sale ID (empty
// for active listing pages). Returns ErrNoPageData when the script element
// is absent.
func ExtractPageState(html string) (map[string]RawRecord, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", errs.NewParsingError("page", "parse HTML", err)
	}

	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nil, "", ErrNoPageData
	}

	var data nextData
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, "", errs.NewParsingError("page", "decode embedded JSON", err)
	}

	state := data.Props.PageProps.ApolloState
	if len(state) == 0 {
		return nil, "", errs.NewParsingError("page", "embedded JSON has no state graph", nil)
	}

	return state, data.Props.PageProps.SaleID, nil
}

// ListingURLs extracts the listing hrefs from a result page: every anchor
// under the result list whose href starts with prefix. A missing result
// list yields no URLs, which the caller treats as the end of the crawl.
func ListingURLs(html, prefix string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.NewParsingError("page", "parse HTML", err)
	}

	var urls []string
	doc.Find(`div[data-testid="result-list"] a`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if ok && strings.HasPrefix(href, prefix) {
			urls = append(urls, href)
		}
	})
	return urls, nil
}
