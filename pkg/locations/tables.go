package locations

import (
	"context"
	"strings"
)

// USCountryCode is the provider code for the United States.
const USCountryCode = 2840

var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

// StateCode returns the two-letter code for a US state name.
func StateCode(name string) (string, bool) {
	code, ok := stateCodes[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// StaticTable is an in-memory Lookup.
type StaticTable struct {
	states []Record
	cities map[int][]Record
}

// NewStaticTable indexes cities by parent code.
func NewStaticTable(records []Record) *StaticTable {
	t := &StaticTable{cities: make(map[int][]Record)}
	for _, r := range records {
		switch r.Type {
		case TypeState:
			t.states = append(t.states, r)
		case TypeCity:
			if r.ParentCode != nil {
				t.cities[*r.ParentCode] = append(t.cities[*r.ParentCode], r)
			}
		}
	}
	return t
}

func (t *StaticTable) StateByName(_ context.Context, name string) (*Record, error) {
	name = strings.TrimSpace(name)
	for _, s := range t.states {
		if strings.EqualFold(s.Name, name) || (s.StateCode != nil && strings.EqualFold(*s.StateCode, name)) {
			r := s
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *StaticTable) CityInState(_ context.Context, stateCode int, name string) (*Record, error) {
	name = strings.TrimSpace(name)
	for _, c := range t.cities[stateCode] {
		if strings.EqualFold(c.Name, name) {
			r := c
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func fallbackState(code int, name, abbr string) Record {
	return Record{
		Code: code, Name: name, Type: TypeState, ParentCode: ptr(USCountryCode),
		CountryCode: "US", StateCode: ptr(abbr), StateName: ptr(name),
	}
}

func fallbackCity(code int, name string, state Record) Record {
	return Record{
		Code: code, Name: name, Type: TypeCity, ParentCode: ptr(state.Code),
		CountryCode: "US", StateCode: state.StateCode, StateName: state.StateName,
	}
}

// Fallback returns the built-in table of major US states and cities. It is
// only consulted while the store is empty.
func Fallback() *StaticTable {
	ca := fallbackState(1003522, "California", "CA")
	tx := fallbackState(1003560, "Texas", "TX")
	fl := fallbackState(1003526, "Florida", "FL")
	ny := fallbackState(1003549, "New York", "NY")
	il := fallbackState(1003530, "Illinois", "IL")

	return NewStaticTable([]Record{
		ca, tx, fl, ny, il,
		fallbackCity(1003735, "Dallas", tx),
		fallbackCity(1003811, "Houston", tx),
		fallbackCity(1003550, "Austin", tx),
		fallbackCity(1003910, "Los Angeles", ca),
		fallbackCity(1004109, "San Francisco", ca),
		fallbackCity(1004102, "San Diego", ca),
		fallbackCity(1003937, "Miami", fl),
		fallbackCity(1004004, "Orlando", fl),
		fallbackCity(1004145, "Tampa", fl),
	})
}
