// Package summary joins GeoUnits, Election Districts and Election Results
// on canonical precinct code into one wide row per GeoUnit.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/EmpoweredVote/precinct-data/internal/district"
	"github.com/EmpoweredVote/precinct-data/internal/fips"
	"github.com/EmpoweredVote/precinct-data/internal/geounit"
	"github.com/EmpoweredVote/precinct-data/internal/keystore"
	"github.com/EmpoweredVote/precinct-data/internal/result"
)

const component = "summary"

var ErrEmptySelector = errors.New("selector needs a county or a district type and number")

// Selector picks the Election Districts a summary covers: either every
// district in a county or every district inside one legislative district.
type Selector struct {
	County  string
	Chamber district.Chamber
	Number  int
}

func ForCounty(county string) Selector { return Selector{County: county} }

func ForDistrict(c district.Chamber, n int) Selector {
	return Selector{Chamber: c, Number: n}
}

func (s Selector) String() string {
	if s.County != "" {
		return "county " + s.County
	}
	return fmt.Sprintf("%s district %d", s.Chamber, s.Number)
}

// Row is one matched GeoUnit with the registration, participation and vote
// totals of every Election District it maps to.
type Row struct {
	GeoUnit       geounit.GeoUnit `json:"geounit"`
	Precincts     []string        `json:"precincts"`
	Registration  map[string]int  `json:"registration"`
	Participation map[string]int  `json:"participation"`
	Votes         map[string]int  `json:"votes"`
}

// Report is the output of Generate. Skipped is Incomplete plus Unmatched.
type Report struct {
	Selector   Selector `json:"selector"`
	Rows       []Row    `json:"rows"`
	Incomplete int      `json:"incomplete"`
	Unmatched  int      `json:"unmatched"`
	Skipped    int      `json:"skipped"`
}

type Engine struct {
	geo     *geounit.Repository
	eds     *district.Repository
	results *result.Repository
}

func NewEngine(geo *geounit.Repository, eds *district.Repository, results *result.Repository) *Engine {
	return &Engine{geo: geo, eds: eds, results: results}
}

type precinctKey struct {
	county, code string
}

// Generate builds the summary for sel. GeoUnits without the geographic
// fields a row needs are counted as incomplete, and GeoUnits whose precinct
// codes match no selected Election District are counted as unmatched; both
// are left out of the rows.
func (e *Engine) Generate(ctx context.Context, sel Selector) (*Report, error) {
	start := time.Now()
	log.Printf("[%s] generating summary for %s", component, sel)

	eds, err := e.resolve(ctx, sel)
	if err != nil {
		return nil, err
	}

	byPrecinct := map[precinctKey][]district.ElectionDistrict{}
	counties := mapset.NewThreadUnsafeSet[string]()
	for _, d := range eds {
		k := precinctKey{d.Value.County, d.Value.Code}
		byPrecinct[k] = append(byPrecinct[k], d.Value)
		counties.Add(d.Value.County)
	}

	codes := make([]int, 0, counties.Cardinality())
	for _, name := range counties.ToSlice() {
		code, err := fips.CountyCode(name)
		if err != nil {
			log.Printf("[%s] skip county: %v", component, err)
			continue
		}
		codes = append(codes, code)
	}
	slices.Sort(codes)

	report := &Report{Selector: sel, Rows: []Row{}}
	votes := map[precinctKey]map[string]int{}

	for _, code := range codes {
		countyName, _ := fips.CountyName(code)
		units, err := e.geo.ByCountyCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("load geounits for %s: %w", countyName, err)
		}
		for _, doc := range units {
			g := doc.Value
			if err := g.Complete(); err != nil {
				report.Incomplete++
				continue
			}
			row := Row{
				GeoUnit:       g,
				Registration:  map[string]int{},
				Participation: map[string]int{},
				Votes:         map[string]int{},
			}
			for _, pc := range mapset.NewThreadUnsafeSet(g.PrecinctCodes...).ToSlice() {
				k := precinctKey{countyName, pc}
				matched, ok := byPrecinct[k]
				if !ok {
					continue
				}
				row.Precincts = append(row.Precincts, pc)
				for _, d := range matched {
					addCounts(row.Registration, d.Registration)
					addCounts(row.Participation, d.Participation)
				}
				v, ok := votes[k]
				if !ok {
					v, err = e.precinctVotes(ctx, k)
					if err != nil {
						return nil, err
					}
					votes[k] = v
				}
				addCounts(row.Votes, v)
			}
			if len(row.Precincts) == 0 {
				report.Unmatched++
				continue
			}
			slices.Sort(row.Precincts)
			report.Rows = append(report.Rows, row)
		}
	}
	report.Skipped = report.Incomplete + report.Unmatched

	log.Printf("[%s] %s: %d rows, %d skipped (%d incomplete, %d unmatched) in %dms",
		component, sel, len(report.Rows), report.Skipped, report.Incomplete, report.Unmatched,
		time.Since(start).Milliseconds())
	return report, nil
}

func (e *Engine) resolve(ctx context.Context, sel Selector) ([]keystore.Doc[district.ElectionDistrict], error) {
	if sel.County != "" {
		name, ok := fips.Canonical(sel.County)
		if !ok {
			return nil, fmt.Errorf("unknown county %q", sel.County)
		}
		return e.eds.ByCounty(ctx, name)
	}
	if sel.Chamber == "" {
		return nil, ErrEmptySelector
	}
	return e.eds.ByDistrict(ctx, sel.Chamber, sel.Number)
}

func (e *Engine) precinctVotes(ctx context.Context, k precinctKey) (map[string]int, error) {
	docs, err := e.results.ByCountyPrecinct(ctx, k.county, k.code)
	if err != nil {
		return nil, fmt.Errorf("load results for %s %q: %w", k.county, k.code, err)
	}
	out := make(map[string]int, len(docs))
	for _, d := range docs {
		out[d.Value.VoteKey()] += d.Value.Votes
	}
	return out, nil
}

func addCounts(dst, src map[string]int) {
	for k, v := range src {
		dst[k] += v
	}
}

// Keys returns the sorted distinct keys of one count map across rows.
func Keys(rows []Row, pick func(Row) map[string]int) []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, r := range rows {
		for k := range pick(r) {
			set.Add(k)
		}
	}
	keys := set.ToSlice()
	slices.SortFunc(keys, func(a, b string) int { return strings.Compare(a, b) })
	return keys
}
