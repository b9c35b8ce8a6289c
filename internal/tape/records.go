// Package tape reads Suffolk County election-night tape files. Each line
// carries a one-letter record type in its fifth column: I (information),
// R (office), C (candidate) or E (election district result).
package tape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/EmpoweredVote/precinct-data/internal/fixedwidth"
)

const (
	TypeInfo      = 'I'
	TypeOffice    = 'R'
	TypeCandidate = 'C'
	TypeResult    = 'E'
)

// RecordType returns the record type letter of line, or 0.
func RecordType(line string) byte {
	if len(line) < 5 {
		return 0
	}
	return line[4]
}

type Info struct {
	Text string
}

type Office struct {
	Title         string
	Standard      string
	DistrictType  string
	District      int
	OppToBallot   string
	NumEDs        int
	Eligible      int
	NumCandidates int
}

// DistrictLabel is the district number, or "" for at-large offices.
func (o Office) DistrictLabel() string {
	if o.District == 0 {
		return ""
	}
	return strconv.Itoa(o.District)
}

type Candidate struct {
	Name     string
	Standard string
	Party    string
	WriteIn  bool
	Total    int
	Row      string
}

// District is the per election district breakdown of one office.
type District struct {
	Town        string
	ED          int
	Status      string
	Eligible    int
	Whole       int
	CD          int
	SD          int
	AD          int
	LD          int
	TownCouncil string
	Blank       int
	Void        int
	Scattering  int
	Votes       []int
}

var (
	officeSpec = fixedwidth.Spec{
		{Name: "title", Start: 5, End: 45},
		{Name: "district_type", Start: 45, End: 46},
		{Name: "district", Start: 46, End: 50, Kind: fixedwidth.Int},
		{Name: "opp_to_ballot", Start: 50, End: 51},
		{Name: "num_eds", Start: 51, End: 55, Kind: fixedwidth.Int, Required: true},
		{Name: "eligible", Start: 55, End: 62, Kind: fixedwidth.Int, Required: true},
		{Name: "num_candidates", Start: 62, End: 64, Kind: fixedwidth.Int},
	}
	candidateSpec = fixedwidth.Spec{
		{Name: "name", Start: 5, End: 30},
		{Name: "party", Start: 30, End: 33},
		{Name: "write_in", Start: 33, End: 34},
		{Name: "total", Start: 34, End: 41, Kind: fixedwidth.Int, Required: true},
		{Name: "row", Start: 41, End: 44},
	}
	districtSpec = fixedwidth.Spec{
		{Name: "record_length", Start: 0, End: 4, Kind: fixedwidth.Int, Required: true},
		{Name: "town", Start: 5, End: 6},
		{Name: "ed", Start: 6, End: 9, Kind: fixedwidth.Int, Required: true},
		{Name: "status", Start: 9, End: 10},
		{Name: "eligible", Start: 10, End: 14, Kind: fixedwidth.Int, Required: true},
		{Name: "whole", Start: 14, End: 20, Kind: fixedwidth.Int},
		{Name: "cd", Start: 34, End: 35, Kind: fixedwidth.Int, Required: true},
		{Name: "sd", Start: 35, End: 36, Kind: fixedwidth.Int, Required: true},
		{Name: "ad", Start: 36, End: 38, Kind: fixedwidth.Int, Required: true},
		{Name: "ld", Start: 38, End: 40, Kind: fixedwidth.Int, Required: true},
		{Name: "town_council", Start: 40, End: 42},
		{Name: "blank", Start: 42, End: 46, Kind: fixedwidth.Int},
		{Name: "void", Start: 46, End: 49, Kind: fixedwidth.Int, Required: true},
		{Name: "scattering", Start: 49, End: 52, Kind: fixedwidth.Int},
	}
)

const (
	voteStart = 52
	voteWidth = 4
)

// Suffolk town codes.
var towns = map[string]string{
	"0": "Shelter Island",
	"1": "Brookhaven",
	"2": "Huntington",
	"3": "Islip",
	"4": "Babylon",
	"5": "Smithtown",
	"6": "Southampton",
	"7": "East Hampton",
	"8": "Southold",
	"9": "Riverhead",
}

var districtTypes = map[string]string{
	"U": "United States",
	"N": "New York State",
	"K": "Suffolk County",
}

// Office titles as printed on the tape, mapped to OpenElections names.
// Order matters: the first substring match wins.
var officeTitles = []struct{ match, std string }{
	{"President of The United States", "President"},
	{"United States Senator", "U.S. Senate"},
	{"Representative in Congress,", "U.S. House"},
	{"Member of Senate", "State Senate"},
	{"Member of Assembly", "State Assembly"},
	{"Justice of the Supreme Court", "Supreme Court"},
	{"District Court Judge", "District Court Judge"},
	{"County Legislator", "County Legislator"},
	{"Receiver of Taxes", "Receiver of Taxes"},
	{"Councilmember", "Councilmember"},
	{"Councilman", "Councilman"},
	{"Superintendent of Highways", "Superintendent of Highways"},
	{"Town Clerk", "Town Clerk"},
	{"Supervisor", "Supervisor"},
}

// StandardOffice maps a printed office title to its OpenElections name.
func StandardOffice(title string) string {
	for _, o := range officeTitles {
		if strings.Contains(title, o.match) {
			return o.std
		}
	}
	return strings.TrimSpace(title)
}

func ParseInfo(line string) Info {
	return Info{Text: strings.TrimRight(fixedwidth.Slice(line, 5, len(line)), " \r\n")}
}

func ParseOffice(line string) (Office, error) {
	rec, err := fixedwidth.ParseLine(line, officeSpec)
	if err != nil {
		return Office{}, err
	}
	dt, ok := districtTypes[rec.String("district_type")]
	if !ok {
		dt = "Unknown"
	}
	opp := "unknown"
	switch rec.String("opp_to_ballot") {
	case "Y":
		opp = "yes"
	case "N":
		opp = "no"
	}
	return Office{
		Title:         rec.String("title"),
		Standard:      StandardOffice(rec.String("title")),
		DistrictType:  dt,
		District:      rec.Int("district"),
		OppToBallot:   opp,
		NumEDs:        rec.Int("num_eds"),
		Eligible:      rec.Int("eligible"),
		NumCandidates: rec.Int("num_candidates"),
	}, nil
}

func ParseCandidate(line string) (Candidate, error) {
	rec, err := fixedwidth.ParseLine(line, candidateSpec)
	if err != nil {
		return Candidate{}, err
	}
	name := cases.Title(language.English).String(strings.ToLower(rec.String("name")))
	std := name
	// "Smith, Bob" reads as "Bob Smith".
	if last, first, ok := strings.Cut(name, ", "); ok {
		std = first + " " + last
	}
	return Candidate{
		Name:     name,
		Standard: std,
		Party:    rec.String("party"),
		WriteIn:  rec.String("write_in") == "S",
		Total:    rec.Int("total"),
		Row:      rec.String("row"),
	}, nil
}

var errRecordLength = errors.New("vote area is not a whole number of 4-character fields")

// ParseDistrict reads an E record. The number of trailing vote fields is
// (record length - 52) / 4.
func ParseDistrict(line string) (District, error) {
	rec, err := fixedwidth.ParseLine(line, districtSpec)
	if err != nil {
		return District{}, err
	}
	length := rec.Int("record_length")
	if length < voteStart || (length-voteStart)%voteWidth != 0 {
		return District{}, &fixedwidth.FormatError{Field: "record_length", Value: strconv.Itoa(length), Err: errRecordLength}
	}
	town, ok := towns[rec.String("town")]
	if !ok {
		return District{}, &fixedwidth.FormatError{Field: "town", Value: rec.String("town"), Err: errors.New("unknown town code")}
	}

	n := (length - voteStart) / voteWidth
	spec := make(fixedwidth.Spec, n)
	for i := range spec {
		start := voteStart + voteWidth*i
		spec[i] = fixedwidth.Field{Name: fmt.Sprintf("vote_%d", i+1), Start: start, End: start + voteWidth, Kind: fixedwidth.Int, Required: true}
	}
	votes, err := fixedwidth.ParseLine(line, spec)
	if err != nil {
		return District{}, err
	}

	d := District{
		Town:        town,
		ED:          rec.Int("ed"),
		Status:      rec.String("status"),
		Eligible:    rec.Int("eligible"),
		Whole:       rec.Int("whole"),
		CD:          rec.Int("cd"),
		SD:          rec.Int("sd"),
		AD:          rec.Int("ad"),
		LD:          rec.Int("ld"),
		TownCouncil: rec.String("town_council"),
		Blank:       rec.Int("blank"),
		Void:        rec.Int("void"),
		Scattering:  rec.Int("scattering"),
		Votes:       make([]int, n),
	}
	for i := range d.Votes {
		d.Votes[i] = votes.Int(spec[i].Name)
	}
	return d, nil
}
