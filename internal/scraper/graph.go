package scraper

import (
	"fmt"
	"strings"

	errs "hemnetscraper/pkg/errors"
	"hemnetscraper/logger"
)

// Type tags of the embedded state graph keys ("TypeName:id").
const (
	keyLocation     = "Location:"
	keyBrokerAgency = "BrokerAgency:"
	keyBroker       = "Broker:"
)

// listingKeyPrefixes are the key tags that carry the target listing
// record on an active listing page.
var listingKeyPrefixes = []string{
	"ActivePropertyListing:",
	"ProjectUnit:",
	"DeactivatedBeforeOpenHousePropertyListing:",
}

// ResolvedState holds the typed collections reconstructed from one page's
// state graph. Listing is nil when the page carried no listing-shaped
// entry, which is a valid negative result.
type ResolvedState struct {
	Locations []*Location
	Agencies  []BrokerAgency
	Broker    *Broker
	Listing   RawRecord
}

// refName resolves a {"__ref": "Type:ID"} object to the name field of the
// referenced graph entry. Returns "" when the reference cannot be
// followed.
func refName(state map[string]RawRecord, ref RawRecord) string {
	if ref == nil {
		return ""
	}
	key, _ := ref["__ref"].(string)
	target, ok := state[key]
	if !ok {
		return ""
	}
	name, _ := target["name"].(string)
	return name
}

// ResolveState groups the entries of a raw state graph into typed
// collections by their key tag. When more than one listing-shaped entry
// is present the last one encountered wins; that situation is logged
// because it likely indicates a data-quality problem on the page.
func ResolveState(state map[string]RawRecord, log *logger.Logger) (*ResolvedState, error) {
	resolved := &ResolvedState{}
	listingMatches := 0

	for key, record := range state {
		switch {
		case strings.HasPrefix(key, keyLocation):
			loc, err := locationFromRecord(key, record)
			if err != nil {
				return nil, err
			}
			resolved.Locations = append(resolved.Locations, loc)

		case strings.HasPrefix(key, keyBrokerAgency):
			id, name, err := idAndName(key, record, "name")
			if err != nil {
				return nil, err
			}
			resolved.Agencies = append(resolved.Agencies, BrokerAgency{HemnetID: id, Name: name})

		case strings.HasPrefix(key, keyBroker):
			id, name, err := idAndName(key, record, "name")
			if err != nil {
				return nil, err
			}
			resolved.Broker = &Broker{HemnetID: id, Name: name}

		case isListingKey(key):
			listingMatches++
			resolved.Listing = record
		}
	}

	if listingMatches > 1 {
		log.Warn().
			Int("matches", listingMatches).
			Msg("State graph contains more than one listing-shaped entry, keeping the last one")
	}

	return resolved, nil
}

func isListingKey(key string) bool {
	for _, prefix := range listingKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func locationFromRecord(key string, record RawRecord) (*Location, error) {
	id, name, err := idAndName(key, record, "fullName")
	if err != nil {
		return nil, err
	}
	return &Location{HemnetID: id, Name: name}, nil
}

// idAndName pulls the numeric id plus a display-name field out of a typed
// graph entry. A malformed entry aborts resolution of the whole page.
func idAndName(key string, record RawRecord, nameField string) (int64, string, error) {
	rawID, ok := record["id"]
	if !ok {
		return 0, "", errs.NewParsingError("state", fmt.Sprintf("entry %q has no id", key), nil)
	}
	id, err := toInt64(rawID)
	if err != nil {
		return 0, "", errs.NewParsingError("state", fmt.Sprintf("entry %q id", key), err)
	}
	name, _ := record[nameField].(string)
	return id, name, nil
}
