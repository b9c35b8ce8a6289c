package geounit

import (
	"errors"
	"fmt"

	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

const (
	TagGeoUnit keystore.Tag = "vtd"
	TagCousub  keystore.Tag = "cousub"
)

// Census summary levels kept from the geography file.
const (
	SumLevCousub = 60
	SumLevVTD    = 710
)

// Published table lengths from the PL 94-171 data dictionary.
const (
	LenP1 = 71
	LenP2 = 73
	LenP3 = 71
	LenP4 = 73
	LenH1 = 3
)

// GeoUnit is one Census Voting Tabulation District. The structs tags name
// the scalar columns of the summary output.
type GeoUnit struct {
	LogRecNo int    `json:"logrecno" structs:"logrecno"`
	State    int    `json:"state" structs:"state"`
	County   int    `json:"county" structs:"county"`
	Cousub   int    `json:"cousub" structs:"cousub"`
	CBSA     int    `json:"cbsa" structs:"cbsa"`
	MetDiv   int    `json:"metdiv" structs:"metdiv"`
	CSA      int    `json:"csa" structs:"csa"`
	VTD      int    `json:"vtd" structs:"vtd"`
	VTDI     string `json:"vtdi" structs:"vtdi"`
	Name     string `json:"name" structs:"name"`
	IntPtLat string `json:"intptlat" structs:"intptlat"`
	IntPtLon string `json:"intptlon" structs:"intptlon"`
	LSADC    string `json:"lsadc" structs:"lsadc"`

	CountyName   string `json:"county_name" structs:"county_name"`
	Town         string `json:"town,omitempty" structs:"town"`
	PartDistrict bool   `json:"part_district" structs:"part_district"`

	Mappings      []Mapping     `json:"mappings,omitempty" structs:"-"`
	PrecinctCodes []string      `json:"precinct_codes,omitempty" structs:"-"`
	Demographics  *Demographics `json:"demographics,omitempty" structs:"-"`
}

// Mapping is one Board of Elections district a GeoUnit falls in, as given
// by an equivalence file.
type Mapping struct {
	Ward int    `json:"ward,omitempty"`
	AD   int    `json:"ad,omitempty"`
	ED   int    `json:"ed"`
	Code string `json:"code"`
}

// Demographics holds the PL 94-171 count vectors of a GeoUnit.
type Demographics struct {
	P1 []int `json:"p1"`
	P2 []int `json:"p2"`
	P3 []int `json:"p3"`
	P4 []int `json:"p4"`
	H1 []int `json:"h1"`
}

// Validate checks every vector has its published length.
func (d Demographics) Validate() error {
	for _, c := range []struct {
		name string
		got  []int
		want int
	}{
		{"P1", d.P1, LenP1},
		{"P2", d.P2, LenP2},
		{"P3", d.P3, LenP3},
		{"P4", d.P4, LenP4},
		{"H1", d.H1, LenH1},
	} {
		if len(c.got) != c.want {
			return fmt.Errorf("table %s has %d cells, want %d", c.name, len(c.got), c.want)
		}
	}
	return nil
}

// Cousub is a Census county subdivision, used for town names.
type Cousub struct {
	LogRecNo int    `json:"logrecno"`
	State    int    `json:"state"`
	County   int    `json:"county"`
	Cousub   int    `json:"cousub"`
	Name     string `json:"name"`
}

var ErrIncomplete = errors.New("incomplete geographic record")

// Complete reports whether g carries the geographic fields a summary row
// needs.
func (g GeoUnit) Complete() error {
	switch {
	case g.State == 0 || g.County == 0:
		return fmt.Errorf("%w: logrecno %d has no state/county", ErrIncomplete, g.LogRecNo)
	case g.Name == "":
		return fmt.Errorf("%w: logrecno %d has no name", ErrIncomplete, g.LogRecNo)
	case g.IntPtLat == "" || g.IntPtLon == "":
		return fmt.Errorf("%w: logrecno %d has no internal point", ErrIncomplete, g.LogRecNo)
	}
	return nil
}

// GeoID10 is the state, county and VTD code concatenated.
func (g GeoUnit) GeoID10() string {
	return fmt.Sprintf("%02d%03d%06d", g.State, g.County, g.VTD)
}

// LookupAmbiguityError reports more than one record for a key that should
// be unique.
type LookupAmbiguityError struct {
	View    string
	Key     keystore.Key
	Matches int
}

func (e *LookupAmbiguityError) Error() string {
	return fmt.Sprintf("%s: %d records for key %v", e.View, e.Matches, []any(e.Key))
}
