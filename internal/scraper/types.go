package scraper

import (
	"context"
	"time"
)

// Location is an administrative area a listing belongs to. Type is filled
// in from the breadcrumb trail and stays empty when no breadcrumb matches.
type Location struct {
	HemnetID int64  `json:"hemnetId"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
}

// BrokerAgency is the agency marketing a listing.
type BrokerAgency struct {
	HemnetID int64  `json:"hemnetId"`
	Name     string `json:"name"`
}

// Broker is the individual broker assigned to a listing.
type Broker struct {
	HemnetID int64  `json:"hemnetId"`
	Name     string `json:"name"`
}

// HousingCooperative is the cooperative owning an apartment building.
type HousingCooperative struct {
	Name string `json:"name"`
}

// Listing is the denormalized record extracted from one active listing page.
// Pointer fields are null in the source when nil.
type Listing struct {
	HemnetID             int64               `json:"hemnet_id"`
	StreetAddress        *string             `json:"street_address"`
	PostCode             *string             `json:"post_code"`
	Tenure               string              `json:"tenure"`
	NumberOfRooms        *int64              `json:"number_of_rooms"`
	AskingPrice          int64               `json:"asking_price"`
	SquareMeterPrice     *float64            `json:"square_meter_price"`
	Fee                  *int64              `json:"fee"`
	YearlyArrendeFee     *int64              `json:"yearly_arrende_fee"`
	YearlyLeaseholdFee   *int64              `json:"yearly_leasehold_fee"`
	RunningCosts         *int64              `json:"running_costs"`
	ConstructionYear     *int64              `json:"construction_year"`
	LivingArea           *int64              `json:"living_area"`
	SupplementalArea     *int64              `json:"supplemental_area"`
	LandArea             *int64              `json:"land_area"`
	IsForeclosure        bool                `json:"is_foreclosure"`
	IsNewConstruction    bool                `json:"is_new_construction"`
	IsProject            bool                `json:"is_project"`
	IsUpcoming           bool                `json:"is_upcoming"`
	HousingForm          string              `json:"housing_form"`
	EnergyClassification *string             `json:"energy_classification"`
	HousingCooperative   *HousingCooperative `json:"housing_cooperative"`
	Floor                *int64              `json:"floor"`
	PublishedDate        time.Time           `json:"published_date"`
	Description          *string             `json:"description"`
	ClosestWaterDistance *int64              `json:"closest_water_distance_meters"`
	CoastlineDistance    *int64              `json:"coastline_distance_meters"`
	RelevantAmenities    map[string]bool     `json:"relevant_amenities"`
	Locations            []*Location         `json:"locations"`
	BrokerAgencies       []BrokerAgency      `json:"broker_agencies"`
	Broker               *Broker             `json:"broker"`
}

// NullFields returns the names of the nullable fields that are null,
// for end-of-run telemetry.
func (l *Listing) NullFields() []string {
	var fields []string
	add := func(name string, isNil bool) {
		if isNil {
			fields = append(fields, name)
		}
	}
	add("street_address", l.StreetAddress == nil)
	add("post_code", l.PostCode == nil)
	add("number_of_rooms", l.NumberOfRooms == nil)
	add("square_meter_price", l.SquareMeterPrice == nil)
	add("fee", l.Fee == nil)
	add("yearly_arrende_fee", l.YearlyArrendeFee == nil)
	add("yearly_leasehold_fee", l.YearlyLeaseholdFee == nil)
	add("running_costs", l.RunningCosts == nil)
	add("construction_year", l.ConstructionYear == nil)
	add("living_area", l.LivingArea == nil)
	add("supplemental_area", l.SupplementalArea == nil)
	add("land_area", l.LandArea == nil)
	add("energy_classification", l.EnergyClassification == nil)
	add("housing_cooperative", l.HousingCooperative == nil)
	add("floor", l.Floor == nil)
	add("description", l.Description == nil)
	add("closest_water_distance_meters", l.ClosestWaterDistance == nil)
	add("coastline_distance_meters", l.CoastlineDistance == nil)
	add("broker", l.Broker == nil)
	return fields
}

// Sale is the record extracted from one sold listing page. SaleDateRaw
// keeps the original formatted string as the audit trail when parsing
// the date fails.
type Sale struct {
	SaleHemnetID      int64      `json:"sale_hemnet_id"`
	OriginalListingID *int64     `json:"original_hemnet_id"`
	URL               string     `json:"url"`
	Title             string     `json:"title"`
	FinalPrice        *int64     `json:"final_price"`
	AskingPrice       *int64     `json:"asking_price"`
	PriceChange       *int64     `json:"price_change"`
	PriceChangePct    *float64   `json:"price_change_percentage"`
	SaleDate          *time.Time `json:"sale_date"`
	SaleDateRaw       string     `json:"sale_date_str"`
	LivingArea        *float64   `json:"living_area"`
	LandArea          *float64   `json:"land_area"`
	StreetAddress     string     `json:"street_address"`
	Area              string     `json:"area"`
	Municipality      string     `json:"municipality"`
	RunningCosts      *int64     `json:"running_costs"`
	NumberOfRooms     *float64   `json:"number_of_rooms"`
	ConstructionYear  *int64     `json:"construction_year"`
	BrokerAgency      string     `json:"broker_agency"`
}

// Fetcher renders a URL in a browser (or plain HTTP) session and returns
// the document text. One page scope per call; implementations must release
// all per-call resources before returning.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Store is the relational storage collaborator. Upserts are insert-if-absent
// keyed by the natural Hemnet IDs.
type Store interface {
	// ListingExists reports whether a listing with the hemnet ID is stored.
	ListingExists(ctx context.Context, hemnetID int64) (bool, error)

	// UpsertListing stores a listing; stored is false when the natural key
	// already existed.
	UpsertListing(ctx context.Context, l *Listing) (stored bool, err error)

	// UpsertSale stores a sale at most once per sale hemnet ID.
	UpsertSale(ctx context.Context, s *Sale) (stored bool, alreadyExists bool, err error)

	// FindListingID resolves the internal row ID for an original listing
	// hemnet ID; ok is false when no such listing is stored.
	FindListingID(ctx context.Context, hemnetID int64) (id int64, ok bool, err error)
}

// Publisher announces newly stored records. A nil Publisher is valid.
type Publisher interface {
	Publish(key string, message []byte) error
	Close() error
}
