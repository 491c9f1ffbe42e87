// Package business adapts the business profile repository (table
// vendors_google), which stores contact details, coordinates and review
// counts as flat columns.
package business

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/rubiojr/vendorscout/pkg/sources"
)

const (
	Type         = "business"
	Tag          = "google_database"
	DefaultLimit = 30
)

var table = sources.Table{
	Name: "vendors_google",
	Columns: []string{"id", "business_name", "description", "category", "subcategory", "phone",
		"address", "website_url", "place_id", "images", "latitude", "longitude", "rating",
		"reviews_count", "city", "state"},
	CategoryColumn:    "category",
	TextColumns:       []string{"business_name", "description"},
	SubcategoryColumn: "subcategory",
	CityColumn:        "city",
	StateColumn:       "state",
	OrderBy:           "id",
}

func init() {
	sources.RegisterFactory(Type, New)
}

type Adapter struct {
	name  string
	db    *sql.DB
	limit int
}

func New(name string, db *sql.DB, limit int) (sources.Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("business: nil database")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Adapter{name: name, db: db, limit: limit}, nil
}

func (a *Adapter) Name() string { return a.name }
func (a *Adapter) Tag() string  { return Tag }

func (a *Adapter) Search(ctx context.Context, q sources.Query) ([]sources.Result, error) {
	query, args := sources.BuildSelect(table, q, a.limit)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying business profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []sources.Result{}
	for rows.Next() {
		var (
			id                  int64
			name, category      string
			desc, subcat, phone sql.NullString
			address, url, place sql.NullString
			images, city, state sql.NullString
			lat, lng, rating    sql.NullFloat64
			reviews             sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &desc, &category, &subcat, &phone, &address, &url,
			&place, &images, &lat, &lng, &rating, &reviews, &city, &state); err != nil {
			return nil, fmt.Errorf("scanning business row: %w", err)
		}

		// Place ids and row ids get distinct prefixes so they never collide.
		externalID := "google_" + strconv.FormatInt(id, 10)
		if place.String != "" {
			externalID = "google_place_" + place.String
		}

		r := sources.Result{
			Title:       name,
			Description: desc.String,
			Phone:       sources.StringPtr(phone.String),
			Address:     sources.StringPtr(address.String),
			URL:         sources.StringPtr(url.String),
			ExternalID:  externalID,
			Images:      sources.DecodeImages(images.String),
			Category:    category,
			Subcategory: sources.StringPtr(subcat.String),
			City:        city.String,
			State:       state.String,
			SourceTag:   Tag,
		}
		if r.Address == nil {
			r.Address = sources.StringPtr(sources.JoinPlace(city.String, state.String))
		}
		if lat.Valid && lng.Valid {
			r.Latitude, r.Longitude = &lat.Float64, &lng.Float64
		}
		if rating.Valid && rating.Float64 > 0 {
			r.Rating = &sources.Rating{Value: rating.Float64, Count: int(reviews.Int64)}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
