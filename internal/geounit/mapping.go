package geounit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
	"github.com/EmpoweredVote/precinct-data/internal/fips"
	"github.com/EmpoweredVote/precinct-data/internal/precinct"
)

var ErrUnknownEquivalence = errors.New("equivalence header names neither WARD nor AD")

// EquivalenceKind tells whether an equivalence file maps VTDs to wards or to
// assembly districts.
type EquivalenceKind string

const (
	KindWard EquivalenceKind = "WARD"
	KindAD   EquivalenceKind = "AD"
)

const equivalenceColumns = 7

type equivalenceRow struct {
	line                            int
	county, cousub, wardAD, ed, vtd int
}

// AttachPrecinctMapping reads one redistricting equivalence file and adds
// the canonical precinct code of every row to the GeoUnit it names. The file
// fails as a whole on an unknown header, a row without seven columns or a
// non-numeric key. Rows whose GeoUnit is missing or ambiguous are logged and
// skipped.
func (r *Repository) AttachPrecinctMapping(ctx context.Context, name string, src io.Reader) (batch.Stats, error) {
	start := time.Now()
	var stats batch.Stats

	kind, rows, err := readEquivalence(src)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", name, err)
	}

	towns := map[[2]int]string{}
	unimplemented := mapset.NewThreadUnsafeSet[string]()

	for _, row := range rows {
		stats.Processed++

		docs, err := r.Lookup(ctx, row.county, row.cousub, row.vtd)
		var amb *LookupAmbiguityError
		switch {
		case errors.As(err, &amb):
			batch.LogSkip(component, fmt.Sprintf("%s line %d", name, row.line), err)
			stats.Skipped++
			continue
		case err != nil:
			return stats, fmt.Errorf("%s line %d: %w", name, row.line, err)
		case len(docs) == 0:
			batch.LogSkip(component, fmt.Sprintf("%s line %d", name, row.line),
				fmt.Errorf("no VTD for county %d cousub %d vtd %d", row.county, row.cousub, row.vtd))
			stats.Skipped++
			continue
		}

		tk := [2]int{row.county, row.cousub}
		town, ok := towns[tk]
		if !ok {
			town, err = r.CousubName(ctx, row.county, row.cousub)
			if err != nil {
				batch.LogSkip(component, fmt.Sprintf("%s town lookup", name), err)
			}
			towns[tk] = town
		}

		countyName, err := fips.CountyName(row.county)
		if err != nil {
			return stats, fmt.Errorf("%s line %d: %w", name, row.line, err)
		}
		m := Mapping{ED: row.ed}
		unit := precinct.Unit{Town: town, ED: row.ed}
		if kind == KindWard {
			m.Ward = row.wardAD
			unit.Ward = strconv.Itoa(row.wardAD)
		} else {
			m.AD = row.wardAD
			unit.AD = row.wardAD
		}
		m.Code = precinct.CanonicalCode(countyName, unit)
		if !precinct.Implemented(m.Code) {
			unimplemented.Add(countyName)
		}

		doc := docs[0]
		g := doc.Value
		if !attach(&g, m, town) {
			stats.Unchanged++
			continue
		}
		if err := r.store.Update(ctx, doc.ID, g); err != nil {
			return stats, fmt.Errorf("%s line %d: %w", name, row.line, err)
		}
		stats.Updated++
	}

	if unimplemented.Cardinality() > 0 {
		counties := unimplemented.ToSlice()
		slices.Sort(counties)
		batch.LogSkip(component, name+" precinct codes", fmt.Errorf("no county rule for %s", strings.Join(counties, ", ")))
	}
	batch.LogStats(component, stats, time.Since(start))
	return stats, nil
}

// attach adds m to g, reporting whether g changed. Only implemented codes
// join the precinct code set.
func attach(g *GeoUnit, m Mapping, town string) bool {
	changed := false
	if g.Town == "" && town != "" {
		g.Town = town
		changed = true
	}
	if !slices.Contains(g.Mappings, m) {
		g.Mappings = append(g.Mappings, m)
		changed = true
	}
	if precinct.Implemented(m.Code) {
		codes := mapset.NewThreadUnsafeSet(g.PrecinctCodes...)
		if codes.Add(m.Code) {
			g.PrecinctCodes = append(g.PrecinctCodes, m.Code)
			changed = true
		}
	}
	part := len(g.PrecinctCodes) > 1
	if g.PartDistrict != part {
		g.PartDistrict = part
		changed = true
	}
	return changed
}

func readEquivalence(src io.Reader) (EquivalenceKind, []equivalenceRow, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return "", nil, err
	}
	if len(records) == 0 {
		return "", nil, errors.New("equivalence file is empty")
	}

	header := strings.ToUpper(strings.TrimPrefix(strings.Join(records[0], ","), "\ufeff"))
	var kind EquivalenceKind
	switch {
	case strings.Contains(header, "WARD"):
		kind = KindWard
	case strings.Contains(header, "AD"):
		kind = KindAD
	default:
		return "", nil, ErrUnknownEquivalence
	}

	rows := make([]equivalenceRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != equivalenceColumns {
			return "", nil, fmt.Errorf("line %d has %d columns, want %d", line, len(rec), equivalenceColumns)
		}
		var vals [5]int
		for j := range vals {
			raw := strings.TrimSpace(rec[2+j])
			n, err := strconv.Atoi(raw)
			if err != nil {
				return "", nil, fmt.Errorf("line %d column %d: invalid number %q", line, 3+j, raw)
			}
			vals[j] = n
		}
		rows = append(rows, equivalenceRow{
			line:   line,
			county: vals[0],
			cousub: vals[1],
			wardAD: vals[2],
			ed:     vals[3],
			vtd:    vals[4],
		})
	}
	return kind, rows, nil
}

// AttachPrecinctMappings runs AttachPrecinctMapping over every CSV under
// dir. A failed file is logged and counted; the remaining files still load.
func (r *Repository) AttachPrecinctMappings(ctx context.Context, dir string) (batch.Stats, error) {
	var total batch.Stats
	var errs []error

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.Contains(strings.ToLower(d.Name()), ".csv") {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			errs = append(errs, err)
			total.Failed++
			return nil
		}
		defer f.Close()

		stats, err := r.AttachPrecinctMapping(ctx, path, f)
		total.Add(stats)
		if err != nil {
			batch.LogError(component, "attach mappings", err)
			errs = append(errs, err)
			total.Failed++
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return total, errors.Join(errs...)
}
