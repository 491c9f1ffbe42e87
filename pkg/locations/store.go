package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is how last_updated is stored. It is fixed-width UTC so that
// lexical and chronological order agree.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = `location_code, name, canonical_name, type, parent_location_code,
	country_code, state_code, state_name, latitude, longitude, original_type, last_updated`

// Store is the SQLite-backed taxonomy.
type Store struct {
	db      *sql.DB
	country string
}

// NewStore returns a Store over db. country is the ISO code preferred when a
// state name exists in several countries.
func NewStore(db *sql.DB, country string) *Store {
	if country == "" {
		country = "US"
	}
	return &Store{db: db, country: strings.ToUpper(country)}
}

// UpsertBatch writes records in one transaction keyed on location code.
// Back-filled state fields on existing rows survive a refresh that carries
// none.
func (s *Store) UpsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO locations (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_code) DO UPDATE SET
			name = excluded.name,
			canonical_name = excluded.canonical_name,
			type = excluded.type,
			parent_location_code = excluded.parent_location_code,
			country_code = excluded.country_code,
			state_code = COALESCE(excluded.state_code, locations.state_code),
			state_name = COALESCE(excluded.state_name, locations.state_name),
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			original_type = excluded.original_type,
			last_updated = excluded.last_updated`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.Code, r.Name, nullString(r.CanonicalName), string(r.Type), r.ParentCode,
			r.CountryCode, r.StateCode, r.StateName, r.Latitude, r.Longitude,
			nullString(r.OriginalType), r.LastUpdated.UTC().Format(TimeLayout),
		)
		if err != nil {
			return fmt.Errorf("upserting location %d: %w", r.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	committed = true
	return nil
}

// BackfillStateCodes copies each state's code and name onto its child city
// rows. States without a StateCode are skipped. It returns the number of
// city rows updated.
func (s *Store) BackfillStateCodes(ctx context.Context, states []Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE locations SET state_code = ?, state_name = ?
		WHERE parent_location_code = ? AND type = 'city'`)
	if err != nil {
		return 0, fmt.Errorf("preparing backfill: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var updated int64
	for _, st := range states {
		if st.Type != TypeState || st.StateCode == nil {
			continue
		}
		res, err := stmt.ExecContext(ctx, *st.StateCode, st.Name, st.Code)
		if err != nil {
			return updated, fmt.Errorf("backfilling cities of %s: %w", st.Name, err)
		}
		n, _ := res.RowsAffected()
		updated += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing backfill: %w", err)
	}
	committed = true
	return updated, nil
}

// Get returns the record with the given code.
func (s *Store) Get(ctx context.Context, code int) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM locations WHERE location_code = ?`, code)
	return scanOne(row)
}

func (s *Store) StateByName(ctx context.Context, name string) (*Record, error) {
	name = strings.TrimSpace(name)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM locations
		WHERE type = 'state'
		  AND (name = ? COLLATE NOCASE OR state_code = ? COLLATE NOCASE)
		ORDER BY (country_code = ?) DESC, (name = ? COLLATE NOCASE) DESC, location_code
		LIMIT 1`, name, name, s.country, name)
	return scanOne(row)
}

func (s *Store) CityInState(ctx context.Context, stateCode int, name string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM locations
		WHERE type = 'city' AND parent_location_code = ? AND name = ? COLLATE NOCASE
		ORDER BY location_code
		LIMIT 1`, stateCode, strings.TrimSpace(name))
	return scanOne(row)
}

// Search returns states and cities whose name contains query, states first.
// Queries shorter than two characters return nothing.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM locations
		WHERE type IN ('state', 'city') AND name LIKE ? ESCAPE '\'
		ORDER BY type DESC, name COLLATE NOCASE, location_code
		LIMIT ?`, "%"+EscapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM locations").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting locations: %w", err)
	}
	return n, nil
}

// OldestUpdate returns the earliest last_updated, or the zero time when the
// store is empty.
func (s *Store) OldestUpdate(ctx context.Context) (time.Time, error) {
	var oldest sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MIN(last_updated) FROM locations").Scan(&oldest); err != nil {
		return time.Time{}, fmt.Errorf("reading oldest update: %w", err)
	}
	if !oldest.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, oldest.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last_updated %q: %w", oldest.String, err)
	}
	return t, nil
}

// Freshness reports whether the store needs a refresh at now.
func (s *Store) Freshness(ctx context.Context, now time.Time, threshold time.Duration) (Freshness, error) {
	oldest, err := s.OldestUpdate(ctx)
	if err != nil {
		return FreshnessUnknown, err
	}
	return FreshnessAt(oldest, now, threshold), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*Record, error) {
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r                    Record
		typ, lastUpdated     string
		canonical, origType  sql.NullString
		stateCode, stateName sql.NullString
		parent               sql.NullInt64
		lat, lng             sql.NullFloat64
	)
	err := sc.Scan(&r.Code, &r.Name, &canonical, &typ, &parent,
		&r.CountryCode, &stateCode, &stateName, &lat, &lng, &origType, &lastUpdated)
	if err != nil {
		return nil, err
	}

	r.Type = Type(typ)
	r.CanonicalName = canonical.String
	r.OriginalType = origType.String
	if parent.Valid {
		r.ParentCode = ptr(int(parent.Int64))
	}
	if stateCode.Valid {
		r.StateCode = ptr(stateCode.String)
	}
	if stateName.Valid {
		r.StateName = ptr(stateName.String)
	}
	if lat.Valid {
		r.Latitude = ptr(lat.Float64)
	}
	if lng.Valid {
		r.Longitude = ptr(lng.Float64)
	}
	if r.LastUpdated, err = time.Parse(TimeLayout, lastUpdated); err != nil {
		return nil, fmt.Errorf("parsing last_updated of %d: %w", r.Code, err)
	}
	return &r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// EscapeLike escapes LIKE wildcards using backslash as the escape character.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
