// Package listings adapts the general vendor listings repository (table
// vendors). Contact details are stored as a JSON object.
package listings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/sources"
)

const (
	Type         = "listings"
	Tag          = "database"
	DefaultLimit = 20
)

var table = sources.Table{
	Name: "vendors",
	Columns: []string{"id", "business_name", "description", "category", "subcategory",
		"city", "state", "contact_info", "images", "rating", "review_count"},
	CategoryColumn:    "category",
	TextColumns:       []string{"business_name", "description", "category"},
	SubcategoryColumn: "subcategory",
	CityColumn:        "city",
	StateColumn:       "state",
	OrderBy:           "id",
}

func init() {
	sources.RegisterFactory(Type, New)
}

type contactInfo struct {
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Email   string `json:"email"`
}

type Adapter struct {
	name   string
	db     *sql.DB
	limit  int
	logger *log.Logger
}

func New(name string, db *sql.DB, limit int) (sources.Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("listings: nil database")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Adapter{name: name, db: db, limit: limit, logger: log.ForService("source:" + name)}, nil
}

func (a *Adapter) Name() string { return a.name }
func (a *Adapter) Tag() string  { return Tag }

func (a *Adapter) Search(ctx context.Context, q sources.Query) ([]sources.Result, error) {
	query, args := sources.BuildSelect(table, q, a.limit)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vendors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []sources.Result{}
	for rows.Next() {
		var (
			id                        int64
			name, category            string
			desc, subcat, city, state sql.NullString
			contact, images           sql.NullString
			rating                    sql.NullFloat64
			reviews                   sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &desc, &category, &subcat, &city, &state,
			&contact, &images, &rating, &reviews); err != nil {
			return nil, fmt.Errorf("scanning vendor row: %w", err)
		}

		var ci contactInfo
		if contact.String != "" {
			if err := json.Unmarshal([]byte(contact.String), &ci); err != nil {
				a.logger.Debugf("vendor %d has malformed contact_info: %v", id, err)
			}
		}

		place := sources.JoinPlace(city.String, state.String)
		description := desc.String
		if description == "" {
			description = category
			if place != "" {
				description += " in " + place
			}
		}

		r := sources.Result{
			Title:       name,
			Description: description,
			Phone:       sources.StringPtr(ci.Phone),
			Address:     sources.StringPtr(place),
			URL:         sources.StringPtr(ci.Website),
			ExternalID:  "vendor_" + strconv.FormatInt(id, 10),
			Images:      sources.DecodeImages(images.String),
			Category:    category,
			Subcategory: sources.StringPtr(subcat.String),
			City:        city.String,
			State:       state.String,
			SourceTag:   Tag,
		}
		if rating.Valid && rating.Float64 > 0 {
			r.Rating = &sources.Rating{Value: rating.Float64, Count: int(reviews.Int64)}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
