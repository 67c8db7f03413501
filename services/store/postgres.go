package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"hemnetscraper/internal/scraper"
	"hemnetscraper/logger"
	errs "hemnetscraper/pkg/errors"
)

// PostgresStore persists listings and sales keyed by their natural
// hemnet IDs. One transaction per logical write unit; no transaction
// spans more than one listing.
type PostgresStore struct {
	db  *sql.DB
	log *logger.Logger
}

var _ scraper.Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection, waits for the database to come up,
// and bootstraps the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.NewStorageError("postgres", "open", err)
	}

	// The database container may still be starting
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, errs.NewStorageError("postgres", "ping failed after retries", err)
	}

	s := &PostgresStore{db: db, log: logger.ForComponent("store")}
	if err := s.migrate(); err != nil {
		return nil, errs.NewStorageError("postgres", "migrate", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tenure_types (
			tenure_id SERIAL PRIMARY KEY,
			name      TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS housing_form_types (
			housing_form_id SERIAL PRIMARY KEY,
			name            TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS energy_classifications (
			energy_classification_id SERIAL PRIMARY KEY,
			classification           TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS housing_cooperatives (
			housing_cooperative_id SERIAL PRIMARY KEY,
			name                   TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS brokers (
			broker_id        SERIAL PRIMARY KEY,
			broker_hemnet_id BIGINT UNIQUE NOT NULL,
			name             TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS broker_agencies (
			agency_id        SERIAL PRIMARY KEY,
			agency_hemnet_id BIGINT UNIQUE NOT NULL,
			name             TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS broker_agency_relationships (
			broker_id INT NOT NULL REFERENCES brokers(broker_id),
			agency_id INT NOT NULL REFERENCES broker_agencies(agency_id),
			PRIMARY KEY (broker_id, agency_id)
		);

		CREATE TABLE IF NOT EXISTS locations (
			location_id        SERIAL PRIMARY KEY,
			location_hemnet_id BIGINT UNIQUE NOT NULL,
			location_name      TEXT NOT NULL,
			type               TEXT
		);

		CREATE TABLE IF NOT EXISTS amenities (
			amenity_id   SERIAL PRIMARY KEY,
			amenity_name TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS listings (
			listing_id                    SERIAL PRIMARY KEY,
			listing_hemnet_id             BIGINT UNIQUE NOT NULL,
			url                           TEXT NOT NULL,
			street_address                TEXT,
			postcode                      TEXT,
			tenure_id                     INT REFERENCES tenure_types(tenure_id),
			number_of_rooms               BIGINT,
			asking_price                  BIGINT NOT NULL,
			squaremeter_price             DOUBLE PRECISION,
			fee                           BIGINT,
			yearly_arrende_fee            BIGINT,
			yearly_leasehold_fee          BIGINT,
			running_costs                 BIGINT,
			construction_year             BIGINT,
			living_area                   BIGINT,
			supplemental_area             BIGINT,
			land_area                     BIGINT,
			is_foreclosure                BOOLEAN NOT NULL DEFAULT FALSE,
			is_new_construction           BOOLEAN NOT NULL DEFAULT FALSE,
			is_project                    BOOLEAN NOT NULL DEFAULT FALSE,
			is_upcoming                   BOOLEAN NOT NULL DEFAULT FALSE,
			housing_form_id               INT REFERENCES housing_form_types(housing_form_id),
			housing_cooperative_id        INT REFERENCES housing_cooperatives(housing_cooperative_id),
			energy_classification_id      INT REFERENCES energy_classifications(energy_classification_id),
			floor                         BIGINT,
			published_date                DATE,
			broker_id                     INT REFERENCES brokers(broker_id),
			closest_water_distance_meters BIGINT,
			coastline_distance_meters     BIGINT,
			description                   TEXT,
			status                        TEXT NOT NULL DEFAULT 'active',
			created_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS listing_agencies (
			listing_id INT NOT NULL REFERENCES listings(listing_id),
			agency_id  INT NOT NULL REFERENCES broker_agencies(agency_id),
			PRIMARY KEY (listing_id, agency_id)
		);

		CREATE TABLE IF NOT EXISTS listing_locations (
			listing_id  INT NOT NULL REFERENCES listings(listing_id),
			location_id INT NOT NULL REFERENCES locations(location_id),
			PRIMARY KEY (listing_id, location_id)
		);

		CREATE TABLE IF NOT EXISTS listing_amenities (
			listing_id INT NOT NULL REFERENCES listings(listing_id),
			amenity_id INT NOT NULL REFERENCES amenities(amenity_id),
			PRIMARY KEY (listing_id, amenity_id)
		);

		CREATE TABLE IF NOT EXISTS property_sales (
			sale_id                 SERIAL PRIMARY KEY,
			sale_hemnet_id          BIGINT UNIQUE NOT NULL,
			listing_id              INT REFERENCES listings(listing_id),
			listing_hemnet_id       BIGINT,
			final_price             BIGINT,
			asking_price            BIGINT,
			price_change            BIGINT,
			price_change_percentage DOUBLE PRECISION,
			sale_date               DATE,
			sale_date_str           TEXT,
			broker_agency           TEXT,
			living_area             DOUBLE PRECISION,
			land_area               DOUBLE PRECISION,
			number_of_rooms         DOUBLE PRECISION,
			construction_year       BIGINT,
			street_address          TEXT,
			area                    TEXT,
			municipality            TEXT,
			running_costs           BIGINT,
			url                     TEXT,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_status       ON listings(status);
		CREATE INDEX IF NOT EXISTS idx_listings_published    ON listings(published_date);
		CREATE INDEX IF NOT EXISTS idx_sales_sale_date       ON property_sales(sale_date);
	`)
	return err
}

// ListingExists reports whether a listing with the hemnet ID is stored.
func (s *PostgresStore) ListingExists(ctx context.Context, hemnetID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM listings WHERE listing_hemnet_id = $1", hemnetID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.NewStorageError("postgres", "listing existence check", err)
	}
	return true, nil
}

// UpsertListing stores one listing and its companion rows in a single
// transaction. A natural-key conflict is not an error: stored is false
// and no fields change.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *scraper.Listing) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errs.NewStorageError("postgres", "begin", err)
	}
	defer tx.Rollback()

	tenureID, err := s.lookupOrCreate(ctx, tx, "tenure_types", "tenure_id", "name", l.Tenure)
	if err != nil {
		return false, err
	}
	housingFormID, err := s.lookupOrCreate(ctx, tx, "housing_form_types", "housing_form_id", "name", l.HousingForm)
	if err != nil {
		return false, err
	}

	var energyID *int64
	if l.EnergyClassification != nil {
		id, err := s.lookupOrCreate(ctx, tx, "energy_classifications", "energy_classification_id", "classification", *l.EnergyClassification)
		if err != nil {
			return false, err
		}
		energyID = &id
	}

	var coopID *int64
	if l.HousingCooperative != nil && l.HousingCooperative.Name != "" {
		id, err := s.lookupOrCreate(ctx, tx, "housing_cooperatives", "housing_cooperative_id", "name", l.HousingCooperative.Name)
		if err != nil {
			return false, err
		}
		coopID = &id
	}

	var brokerID *int64
	if l.Broker != nil {
		id, err := s.entityOrCreate(ctx, tx, "brokers", "broker_id", "broker_hemnet_id", l.Broker.HemnetID, l.Broker.Name)
		if err != nil {
			return false, err
		}
		brokerID = &id
	}

	var listingID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO listings (
			listing_hemnet_id, url, street_address, postcode, tenure_id,
			number_of_rooms, asking_price, squaremeter_price, fee,
			yearly_arrende_fee, yearly_leasehold_fee, running_costs,
			construction_year, living_area, supplemental_area, land_area,
			is_foreclosure, is_new_construction, is_project, is_upcoming,
			housing_form_id, housing_cooperative_id, energy_classification_id,
			floor, published_date, broker_id,
			closest_water_distance_meters, coastline_distance_meters, description
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29
		)
		ON CONFLICT (listing_hemnet_id) DO NOTHING
		RETURNING listing_id
	`,
		l.HemnetID,
		fmt.Sprintf("https://www.hemnet.se/bostad/%d", l.HemnetID),
		l.StreetAddress, l.PostCode, tenureID,
		l.NumberOfRooms, l.AskingPrice, l.SquareMeterPrice, l.Fee,
		l.YearlyArrendeFee, l.YearlyLeaseholdFee, l.RunningCosts,
		l.ConstructionYear, l.LivingArea, l.SupplementalArea, l.LandArea,
		l.IsForeclosure, l.IsNewConstruction, l.IsProject, l.IsUpcoming,
		housingFormID, coopID, energyID,
		l.Floor, l.PublishedDate, brokerID,
		l.ClosestWaterDistance, l.CoastlineDistance, l.Description,
	).Scan(&listingID)
	if errors.Is(err, sql.ErrNoRows) {
		// Natural key already present; keep the lookup rows.
		if err := tx.Commit(); err != nil {
			return false, errs.NewStorageError("postgres", "commit", err)
		}
		return false, nil
	}
	if err != nil {
		return false, errs.NewStorageError("postgres", "insert listing", err)
	}

	for _, agency := range l.BrokerAgencies {
		agencyID, err := s.entityOrCreate(ctx, tx, "broker_agencies", "agency_id", "agency_hemnet_id", agency.HemnetID, agency.Name)
		if err != nil {
			return false, err
		}
		if brokerID != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO broker_agency_relationships (broker_id, agency_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING
			`, *brokerID, agencyID); err != nil {
				return false, errs.NewStorageError("postgres", "insert broker agency relationship", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listing_agencies (listing_id, agency_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, listingID, agencyID); err != nil {
			return false, errs.NewStorageError("postgres", "insert listing agency", err)
		}
	}

	for _, loc := range l.Locations {
		locationID, err := s.locationOrCreate(ctx, tx, loc)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listing_locations (listing_id, location_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, listingID, locationID); err != nil {
			return false, errs.NewStorageError("postgres", "insert listing location", err)
		}
	}

	for name, available := range l.RelevantAmenities {
		if !available {
			continue
		}
		amenityID, err := s.lookupOrCreate(ctx, tx, "amenities", "amenity_id", "amenity_name", name)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listing_amenities (listing_id, amenity_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, listingID, amenityID); err != nil {
			return false, errs.NewStorageError("postgres", "insert listing amenity", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, errs.NewStorageError("postgres", "commit", err)
	}
	return true, nil
}

// UpsertSale stores one sale at most once per sale hemnet ID. When the
// sale links back to a stored listing, that listing is marked sold.
func (s *PostgresStore) UpsertSale(ctx context.Context, sale *scraper.Sale) (bool, bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM property_sales WHERE sale_hemnet_id = $1", sale.SaleHemnetID).Scan(&exists)
	if err == nil {
		return false, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, false, errs.NewStorageError("postgres", "sale existence check", err)
	}

	var listingID *int64
	if sale.OriginalListingID != nil {
		if id, ok, err := s.FindListingID(ctx, *sale.OriginalListingID); err != nil {
			return false, false, err
		} else if ok {
			listingID = &id
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, errs.NewStorageError("postgres", "begin", err)
	}
	defer tx.Rollback()

	var saleID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO property_sales (
			sale_hemnet_id, listing_id, listing_hemnet_id, final_price,
			asking_price, price_change, price_change_percentage, sale_date,
			sale_date_str, broker_agency, living_area, land_area,
			number_of_rooms, construction_year, street_address, area,
			municipality, running_costs, url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (sale_hemnet_id) DO NOTHING
		RETURNING sale_id
	`,
		sale.SaleHemnetID, listingID, sale.OriginalListingID, sale.FinalPrice,
		sale.AskingPrice, sale.PriceChange, sale.PriceChangePct, sale.SaleDate,
		sale.SaleDateRaw, sale.BrokerAgency, sale.LivingArea, sale.LandArea,
		sale.NumberOfRooms, sale.ConstructionYear, sale.StreetAddress, sale.Area,
		sale.Municipality, sale.RunningCosts, sale.URL,
	).Scan(&saleID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, true, nil
	}
	if err != nil {
		return false, false, errs.NewStorageError("postgres", "insert sale", err)
	}

	if listingID != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE listings SET status = 'sold' WHERE listing_id = $1", *listingID); err != nil {
			return false, false, errs.NewStorageError("postgres", "mark listing sold", err)
		}
		s.log.Info().Int64("listing_id", *listingID).Msg("Marked original listing as sold")
	}

	if err := tx.Commit(); err != nil {
		return false, false, errs.NewStorageError("postgres", "commit", err)
	}
	return true, false, nil
}

// FindListingID resolves the internal row ID for an original listing
// hemnet ID.
func (s *PostgresStore) FindListingID(ctx context.Context, hemnetID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT listing_id FROM listings WHERE listing_hemnet_id = $1", hemnetID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.NewStorageError("postgres", "find listing", err)
	}
	return id, true, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// lookupOrCreate returns the ID of a lookup value, creating the row on
// first sight.
func (s *PostgresStore) lookupOrCreate(ctx context.Context, tx *sql.Tx, table, idCol, nameCol, value string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", idCol, table, nameCol), value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, errs.NewStorageError("postgres", "lookup "+table, err)
	}

	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1) RETURNING %s", table, nameCol, idCol), value).Scan(&id)
	if err != nil {
		return 0, errs.NewStorageError("postgres", "create "+table, err)
	}
	return id, nil
}

// entityOrCreate returns the internal ID of a hemnet-keyed entity row
// (broker, agency), creating it on first sight.
func (s *PostgresStore) entityOrCreate(ctx context.Context, tx *sql.Tx, table, idCol, hemnetCol string, hemnetID int64, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", idCol, table, hemnetCol), hemnetID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, errs.NewStorageError("postgres", "lookup "+table, err)
	}

	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s, name) VALUES ($1, $2) RETURNING %s", table, hemnetCol, idCol),
		hemnetID, name).Scan(&id)
	if err != nil {
		return 0, errs.NewStorageError("postgres", "create "+table, err)
	}
	return id, nil
}

// locationOrCreate returns the internal ID of a location, creating it on
// first sight and refreshing its administrative type when the breadcrumb
// annotation produced one.
func (s *PostgresStore) locationOrCreate(ctx context.Context, tx *sql.Tx, loc *scraper.Location) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT location_id FROM locations WHERE location_hemnet_id = $1", loc.HemnetID).Scan(&id)
	if err == nil {
		if loc.Type != "" {
			if _, err := tx.ExecContext(ctx,
				"UPDATE locations SET type = $1 WHERE location_id = $2", loc.Type, id); err != nil {
				return 0, errs.NewStorageError("postgres", "update location type", err)
			}
		}
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, errs.NewStorageError("postgres", "lookup locations", err)
	}

	var locType *string
	if loc.Type != "" {
		locType = &loc.Type
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO locations (location_hemnet_id, location_name, type)
		VALUES ($1, $2, $3) RETURNING location_id
	`, loc.HemnetID, loc.Name, locType).Scan(&id)
	if err != nil {
		return 0, errs.NewStorageError("postgres", "create locations", err)
	}
	return id, nil
}
