package summary

import (
	"fmt"
	"strings"

	"github.com/fatih/structs"

	"github.com/EmpoweredVote/precinct-data/internal/geounit"
)

// Table is a Report flattened into a header and rows of cells. Cells are
// ints, bools or strings so the spreadsheet writer can keep numbers numeric.
type Table struct {
	Header []string
	Rows   [][]any
}

var censusTables = []struct {
	prefix string
	n      int
	cells  func(*geounit.Demographics) []int
}{
	{"P001", geounit.LenP1, func(d *geounit.Demographics) []int { return d.P1 }},
	{"P002", geounit.LenP2, func(d *geounit.Demographics) []int { return d.P2 }},
	{"P003", geounit.LenP3, func(d *geounit.Demographics) []int { return d.P3 }},
	{"P004", geounit.LenP4, func(d *geounit.Demographics) []int { return d.P4 }},
	{"H001", geounit.LenH1, func(d *geounit.Demographics) []int { return d.H1 }},
}

// geoColumns lists the scalar GeoUnit fields in declaration order, named by
// their structs tag.
func geoColumns(g geounit.GeoUnit) (names []string, values []any) {
	for _, f := range structs.Fields(g) {
		tag := f.Tag("structs")
		if tag == "-" || !f.IsExported() {
			continue
		}
		if tag == "" {
			tag = strings.ToLower(f.Name())
		}
		names = append(names, tag)
		values = append(values, f.Value())
	}
	return names, values
}

// Table flattens r. Registration, participation and vote columns are the
// union of keys across rows; a row without a key gets 0.
func (r *Report) Table() Table {
	regKeys := Keys(r.Rows, func(row Row) map[string]int { return row.Registration })
	partKeys := Keys(r.Rows, func(row Row) map[string]int { return row.Participation })
	voteKeys := Keys(r.Rows, func(row Row) map[string]int { return row.Votes })

	geoNames, _ := geoColumns(geounit.GeoUnit{})
	header := append([]string{}, geoNames...)
	header = append(header, "geoid10", "precinct_codes")
	for _, t := range censusTables {
		for i := 1; i <= t.n; i++ {
			header = append(header, fmt.Sprintf("%s%04d", t.prefix, i))
		}
	}
	for _, k := range regKeys {
		header = append(header, "reg_"+k)
	}
	for _, k := range partKeys {
		header = append(header, "part_"+k)
	}
	for _, k := range voteKeys {
		header = append(header, "votes "+k)
	}

	t := Table{Header: header, Rows: make([][]any, 0, len(r.Rows))}
	for _, row := range r.Rows {
		_, cells := geoColumns(row.GeoUnit)
		cells = append(cells, row.GeoUnit.GeoID10(), strings.Join(row.Precincts, ";"))
		d := row.GeoUnit.Demographics
		for _, ct := range censusTables {
			var vals []int
			if d != nil {
				vals = ct.cells(d)
			}
			for i := 0; i < ct.n; i++ {
				if i < len(vals) {
					cells = append(cells, vals[i])
				} else {
					cells = append(cells, "")
				}
			}
		}
		for _, k := range regKeys {
			cells = append(cells, row.Registration[k])
		}
		for _, k := range partKeys {
			cells = append(cells, row.Participation[k])
		}
		for _, k := range voteKeys {
			cells = append(cells, row.Votes[k])
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// Column returns the index of name in the header, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}
