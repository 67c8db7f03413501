package scraper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hemnetscraper/helpers"
	errs "hemnetscraper/pkg/errors"
)

// ErrNoListing signals that a page's state graph held no listing-shaped
// entry. Valid negative result.
var ErrNoListing = errors.New("no listing record in state graph")

// ErrNoAskingPrice signals a listing without an asking price. Such
// records are skipped rather than stored partially.
var ErrNoAskingPrice = errors.New("listing has no asking price")

// ExtractListing normalizes the resolved page state into one canonical
// listing. Field absence policy: optional fields become nil, a missing
// required key or malformed value fails the whole record, and a null
// asking price returns ErrNoAskingPrice.
func ExtractListing(st *ResolvedState, now time.Time) (*Listing, error) {
	raw := st.Listing
	if raw == nil {
		return nil, ErrNoListing
	}

	l := &Listing{
		Locations:      st.Locations,
		BrokerAgencies: st.Agencies,
		Broker:         st.Broker,
	}

	rawID, err := raw.value("id")
	if err != nil {
		return nil, err
	}
	if l.HemnetID, err = toInt64(rawID); err != nil {
		return nil, errs.NewParsingError("listing", "field \"id\"", err)
	}

	if l.StreetAddress, err = raw.optString("streetAddress"); err != nil {
		return nil, err
	}
	if l.PostCode, err = raw.optString("postCode"); err != nil {
		return nil, err
	}
	if l.Tenure, err = raw.nestedString("tenure", "name"); err != nil {
		return nil, err
	}
	if l.NumberOfRooms, err = raw.optInt("numberOfRooms"); err != nil {
		return nil, err
	}

	asking, err := raw.amount("askingPrice")
	if err != nil {
		return nil, err
	}
	if asking == nil {
		return nil, ErrNoAskingPrice
	}
	l.AskingPrice = *asking

	if l.LivingArea, err = raw.optInt("livingArea"); err != nil {
		return nil, err
	}
	if l.SquareMeterPrice, err = squareMeterPrice(raw, l.AskingPrice, l.LivingArea); err != nil {
		return nil, err
	}

	if l.Fee, err = raw.amount("fee"); err != nil {
		return nil, err
	}
	if l.YearlyArrendeFee, err = raw.formattedAmount("yearlyArrendeFee"); err != nil {
		return nil, err
	}
	if l.YearlyLeaseholdFee, err = raw.formattedAmount("yearlyLeaseholdFee"); err != nil {
		return nil, err
	}
	if l.RunningCosts, err = raw.amount("runningCosts"); err != nil {
		return nil, err
	}
	if l.ConstructionYear, err = raw.optInt("legacyConstructionYear"); err != nil {
		return nil, err
	}
	if l.SupplementalArea, err = raw.optInt("supplementalArea"); err != nil {
		return nil, err
	}
	if l.LandArea, err = raw.optInt("landArea"); err != nil {
		return nil, err
	}

	if l.IsForeclosure, err = raw.boolField("isForeclosure"); err != nil {
		return nil, err
	}
	if l.IsNewConstruction, err = raw.boolField("isNewConstruction"); err != nil {
		return nil, err
	}
	if l.IsProject, err = raw.boolField("isProject"); err != nil {
		return nil, err
	}
	if l.IsUpcoming, err = raw.boolField("isUpcoming"); err != nil {
		return nil, err
	}

	if l.HousingForm, err = raw.nestedString("housingForm", "name"); err != nil {
		return nil, err
	}
	if l.EnergyClassification, err = energyClassification(raw); err != nil {
		return nil, err
	}
	if l.HousingCooperative, err = housingCooperative(raw); err != nil {
		return nil, err
	}

	floorRaw, err := raw.optString("formattedFloor")
	if err != nil {
		return nil, err
	}
	if l.Floor, err = parseFloor(floorRaw); err != nil {
		return nil, err
	}

	days, err := raw.value("daysOnHemnet")
	if err != nil {
		return nil, err
	}
	daysOnHemnet, err := toInt64(days)
	if err != nil {
		return nil, errs.NewParsingError("listing", "field \"daysOnHemnet\"", err)
	}
	l.PublishedDate = publishedDate(now, daysOnHemnet)

	if l.Description, err = raw.optString("description"); err != nil {
		return nil, err
	}
	if l.ClosestWaterDistance, err = raw.optInt("closestWaterDistanceMeters"); err != nil {
		return nil, err
	}
	if l.CoastlineDistance, err = raw.optInt("coastlineDistanceMeters"); err != nil {
		return nil, err
	}

	if l.RelevantAmenities, err = amenityMap(raw); err != nil {
		return nil, err
	}
	if err = annotateLocations(raw, l.Locations); err != nil {
		return nil, err
	}

	return l, nil
}

// squareMeterPrice applies the three exclusive branches: source figure,
// derived from asking price over living area, or null.
func squareMeterPrice(raw RawRecord, askingPrice int64, livingArea *int64) (*float64, error) {
	direct, err := raw.amount("squareMeterPrice")
	if err != nil {
		return nil, err
	}
	if direct != nil {
		v := float64(*direct)
		return &v, nil
	}
	if livingArea != nil {
		v := float64(askingPrice) / float64(*livingArea)
		return &v, nil
	}
	return nil, nil
}

func energyClassification(raw RawRecord) (*string, error) {
	m, err := raw.nested("energyClassification")
	if err != nil || m == nil {
		return nil, err
	}
	v, ok := m["classification"].(string)
	if !ok {
		return nil, errs.NewMissingFieldError("listing", "energyClassification.classification")
	}
	return &v, nil
}

func housingCooperative(raw RawRecord) (*HousingCooperative, error) {
	m, err := raw.nested("housingCooperative")
	if err != nil || m == nil {
		return nil, err
	}
	name, _ := m["name"].(string)
	return &HousingCooperative{Name: name}, nil
}

// parseFloor canonicalizes the short formatted floor string. The source
// shape is a leading integer optionally followed by ", trappa upp" style
// text; basements are negative ("-2").
func parseFloor(formatted *string) (*int64, error) {
	if formatted == nil {
		return nil, nil
	}
	runes := []rune(*formatted)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	prefix := strings.Trim(strings.TrimSpace(string(runes)), ",")
	n, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return nil, errs.NewParsingError("listing", fmt.Sprintf("floor %q", *formatted), err)
	}
	return &n, nil
}

// publishedDate derives the publish date from the days-on-market offset,
// at day granularity. The result drifts with the run's execution date and
// is approximate by nature.
func publishedDate(now time.Time, daysOnHemnet int64) time.Time {
	d := now.AddDate(0, 0, -int(daysOnHemnet))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// amenityMap flattens the raw amenity list into display name to
// availability. Duplicate names overwrite; an absent or null list yields
// an empty mapping.
func amenityMap(raw RawRecord) (map[string]bool, error) {
	v, ok := raw["relevantAmenities"]
	if !ok || v == nil {
		return map[string]bool{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errs.NewParsingError("listing", "field \"relevantAmenities\" is not a list", nil)
	}

	amenities := make(map[string]bool, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errs.NewParsingError("listing", "amenity entry is not an object", nil)
		}
		title, ok := m["title"].(string)
		if !ok {
			return nil, errs.NewMissingFieldError("listing", "relevantAmenities.title")
		}
		available, ok := m["isAvailable"].(bool)
		if !ok {
			return nil, errs.NewMissingFieldError("listing", "relevantAmenities.isAvailable")
		}
		amenities[title] = available
	}
	return amenities, nil
}

// annotateLocations classifies resolved locations by cross-referencing
// the breadcrumb trail: a breadcrumb whose path ends in "=<id>" assigns
// its tracking label to the location with that hemnet ID. Locations
// without a matching breadcrumb keep an empty type; later breadcrumbs
// overwrite earlier ones.
func annotateLocations(raw RawRecord, locations []*Location) error {
	v, err := raw.value("breadcrumbs")
	if err != nil {
		return err
	}
	crumbs, ok := v.([]any)
	if !ok {
		return errs.NewParsingError("listing", "field \"breadcrumbs\" is not a list", nil)
	}

	for _, item := range crumbs {
		m, ok := item.(map[string]any)
		if !ok {
			return errs.NewParsingError("listing", "breadcrumb entry is not an object", nil)
		}
		path, ok := m["path"].(string)
		if !ok {
			return errs.NewMissingFieldError("listing", "breadcrumbs.path")
		}
		tail, err := helpers.GetSplitPart(path, "=", -1)
		if err != nil {
			return errs.NewParsingError("listing", fmt.Sprintf("breadcrumb path %q", path), err)
		}
		id, err := strconv.ParseInt(tail, 10, 64)
		if err != nil {
			return errs.NewParsingError("listing", fmt.Sprintf("breadcrumb path %q", path), err)
		}
		label, _ := m["trackingValue"].(string)

		for _, loc := range locations {
			if loc.HemnetID == id {
				loc.Type = label
			}
		}
	}
	return nil
}
