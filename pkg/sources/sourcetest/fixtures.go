// Package sourcetest seeds the vendor repositories for tests and demos.
package sourcetest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type Listing struct {
	Name, Description, Category, Subcategory string
	City, State                              string
	Phone, Website, Email                    string
	Images                                   []string
	Rating                                   float64
	Reviews                                  int
}

type Business struct {
	Name, Description, Category, Subcategory string
	Phone, Address, Website, PlaceID         string
	Images                                   []string
	Latitude, Longitude                      *float64
	Rating                                   float64
	Reviews                                  int
	City, State, PostalCode                  string
}

type Social struct {
	Name, Handle, Bio, Category, Subcategory string
	ProfileImage, Website, Phone             string
	Followers                                int
	City, State, Location                    string
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func imagesJSON(images []string) (any, error) {
	if len(images) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(images)
	return string(b), err
}

func InsertListing(ctx context.Context, db *sql.DB, l Listing) (int64, error) {
	contact, err := json.Marshal(map[string]string{"phone": l.Phone, "website": l.Website, "email": l.Email})
	if err != nil {
		return 0, err
	}
	images, err := imagesJSON(l.Images)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO vendors (business_name, description, category, subcategory, city, state, contact_info, images, rating, review_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Name, nullable(l.Description), l.Category, nullable(l.Subcategory), nullable(l.City), nullable(l.State),
		string(contact), images, l.Rating, l.Reviews)
	if err != nil {
		return 0, fmt.Errorf("inserting listing %s: %w", l.Name, err)
	}
	return res.LastInsertId()
}

func InsertBusiness(ctx context.Context, db *sql.DB, b Business) (int64, error) {
	images, err := imagesJSON(b.Images)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO vendors_google (business_name, description, category, subcategory, phone, address, website_url,
			place_id, images, latitude, longitude, rating, reviews_count, city, state, postal_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, nullable(b.Description), b.Category, nullable(b.Subcategory), nullable(b.Phone), nullable(b.Address),
		nullable(b.Website), nullable(b.PlaceID), images, b.Latitude, b.Longitude, b.Rating, b.Reviews,
		nullable(b.City), nullable(b.State), nullable(b.PostalCode))
	if err != nil {
		return 0, fmt.Errorf("inserting business %s: %w", b.Name, err)
	}
	return res.LastInsertId()
}

func InsertSocial(ctx context.Context, db *sql.DB, s Social) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO instagram_vendors (business_name, instagram_handle, bio, category, subcategory,
			profile_image_url, follower_count, website_url, phone, city, state, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(s.Name), s.Handle, nullable(s.Bio), s.Category, nullable(s.Subcategory),
		nullable(s.ProfileImage), s.Followers, nullable(s.Website), nullable(s.Phone),
		nullable(s.City), nullable(s.State), nullable(s.Location))
	if err != nil {
		return 0, fmt.Errorf("inserting social profile %s: %w", s.Handle, err)
	}
	return res.LastInsertId()
}
