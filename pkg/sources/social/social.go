// Package social adapts the social profile repository (table
// instagram_vendors).
package social

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rubiojr/vendorscout/pkg/sources"
)

const (
	Type         = "social"
	Tag          = "instagram"
	DefaultLimit = 20
)

var table = sources.Table{
	Name: "instagram_vendors",
	Columns: []string{"id", "business_name", "instagram_handle", "bio", "category", "subcategory",
		"profile_image_url", "follower_count", "website_url", "phone", "city", "state", "location"},
	CategoryColumn:    "category",
	TextColumns:       []string{"business_name", "bio", "instagram_handle"},
	SubcategoryColumn: "subcategory",
	CityColumn:        "city",
	StateColumn:       "state",
	OrderBy:           "follower_count DESC, id",
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
		return nil, fmt.Errorf("social: nil database")
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
		return nil, fmt.Errorf("querying social profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []sources.Result{}
	for rows.Next() {
		var (
			id                    int64
			handle, category      string
			name, bio, subcat     sql.NullString
			image, website, phone sql.NullString
			city, state, location sql.NullString
			followers             sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &handle, &bio, &category, &subcat, &image,
			&followers, &website, &phone, &city, &state, &location); err != nil {
			return nil, fmt.Errorf("scanning social row: %w", err)
		}

		handle = strings.TrimPrefix(handle, "@")
		title := name.String
		if title == "" {
			title = "@" + handle
		}

		description := bio.String
		if description == "" {
			description = fmt.Sprintf("Wedding %s on Instagram with %d followers",
				strings.ReplaceAll(category, "-", " "), followers.Int64)
		}

		address := location.String
		if address == "" {
			address = sources.JoinPlace(city.String, state.String)
		}

		url := website.String
		if url == "" {
			url = "https://instagram.com/" + handle
		}

		images := []string{}
		if image.String != "" {
			images = append(images, image.String)
		}

		results = append(results, sources.Result{
			Title:       title,
			Description: description,
			Phone:       sources.StringPtr(phone.String),
			Address:     sources.StringPtr(address),
			URL:         sources.StringPtr(url),
			ExternalID:  "instagram_" + strconv.FormatInt(id, 10),
			Images:      images,
			Category:    category,
			Subcategory: sources.StringPtr(subcat.String),
			City:        city.String,
			State:       state.String,
			SourceTag:   Tag,
		})
	}
	return results, rows.Err()
}
