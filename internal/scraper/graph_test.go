package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hemnetscraper/logger"
	errs "hemnetscraper/pkg/errors"
)

func TestResolveStateGroupsByKeyTag(t *testing.T) {
	state := baseState(55)

	resolved, err := ResolveState(state, logger.ForScraper("test"))
	assert.NoError(t, err)

	assert.Len(t, resolved.Locations, 2)
	names := map[int64]string{}
	for _, loc := range resolved.Locations {
		names[loc.HemnetID] = loc.Name
	}
	assert.Equal(t, "Stockholms kommun", names[17744])
	assert.Equal(t, "Östermalm", names[898472])

	assert.Len(t, resolved.Agencies, 1)
	assert.Equal(t, BrokerAgency{HemnetID: 9, Name: "Mäklarhuset"}, resolved.Agencies[0])

	assert.NotNil(t, resolved.Broker)
	assert.Equal(t, int64(7), resolved.Broker.HemnetID)
	assert.Equal(t, "Anna Svensson", resolved.Broker.Name)

	assert.NotNil(t, resolved.Listing)
}

func TestResolveStateListingKeyVariants(t *testing.T) {
	for _, prefix := range []string{
		"ActivePropertyListing:",
		"ProjectUnit:",
		"DeactivatedBeforeOpenHousePropertyListing:",
	} {
		state := map[string]RawRecord{
			prefix + "55": baseListingRecord(55),
		}
		resolved, err := ResolveState(state, logger.ForScraper("test"))
		assert.NoError(t, err)
		assert.NotNil(t, resolved.Listing, "prefix %s", prefix)
	}
}

func TestResolveStateNoListing(t *testing.T) {
	state := map[string]RawRecord{
		"Location:1":   {"id": float64(1), "fullName": "Somewhere"},
		"ROOT_QUERY":   {"whatever": true},
		"Money:abc123": {"amount": float64(100)},
	}

	resolved, err := ResolveState(state, logger.ForScraper("test"))
	assert.NoError(t, err)
	assert.Nil(t, resolved.Listing)
	assert.Len(t, resolved.Locations, 1)
}

func TestResolveStateMalformedEntry(t *testing.T) {
	state := map[string]RawRecord{
		"Location:1": {"fullName": "No ID here"},
	}

	_, err := ResolveState(state, logger.ForScraper("test"))
	assert.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
}

func TestRefNameResolution(t *testing.T) {
	state := baseState(55)

	name := refName(state, RawRecord{"__ref": "BrokerAgency:9"})
	assert.Equal(t, "Mäklarhuset", name)

	assert.Equal(t, "", refName(state, nil))
	assert.Equal(t, "", refName(state, RawRecord{"__ref": "BrokerAgency:404"}))
}
