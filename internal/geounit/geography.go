package geounit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
	"github.com/EmpoweredVote/precinct-data/internal/fips"
	"github.com/EmpoweredVote/precinct-data/internal/fixedwidth"
	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

// Byte ranges of the PL 94-171 geographic header record.
var (
	sumlevSpec = fixedwidth.Spec{
		{Name: "SUMLEV", Start: 8, End: 11, Kind: fixedwidth.Int, Required: true},
	}
	geoSpec = fixedwidth.Spec{
		{Name: "LOGRECNO", Start: 18, End: 25, Kind: fixedwidth.Int, Required: true},
		{Name: "STATE", Start: 27, End: 29, Kind: fixedwidth.Int, Required: true},
		{Name: "COUNTY", Start: 29, End: 32, Kind: fixedwidth.Int, Required: true},
		{Name: "COUSUB", Start: 36, End: 41, Kind: fixedwidth.Int},
		{Name: "CBSA", Start: 112, End: 117, Kind: fixedwidth.Int},
		{Name: "METDIV", Start: 119, End: 124, Kind: fixedwidth.Int},
		{Name: "CSA", Start: 124, End: 127, Kind: fixedwidth.Int},
		{Name: "VTD", Start: 161, End: 167, Kind: fixedwidth.Int},
		{Name: "VTDI", Start: 167, End: 168},
		{Name: "NAME", Start: 226, End: 316},
		{Name: "INTPTLAT", Start: 336, End: 347},
		{Name: "INTPTLON", Start: 347, End: 359},
		{Name: "LSADC", Start: 359, End: 361},
	}
)

// LoadGeography streams the geographic header file and upserts one GeoUnit
// per VTD-level line and one Cousub per county-subdivision line, keyed by
// LOGRECNO. Existing GeoUnits keep their precinct mappings and
// demographics; their Census fields are only rewritten when overwrite is
// set. A malformed required field aborts the file.
func (r *Repository) LoadGeography(ctx context.Context, src io.Reader, overwrite bool) (batch.Stats, error) {
	start := time.Now()
	var stats batch.Stats
	latin1 := charmap.ISO8859_1.NewDecoder()
	progress := batch.NewProgress(10000)
	defer progress.Done()

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if len(line) == 0 {
			continue
		}
		lvl, err := fixedwidth.ParseLine(line, sumlevSpec)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", lineNo, err)
		}
		sumlev := lvl.Int("SUMLEV")
		if sumlev != SumLevVTD && sumlev != SumLevCousub {
			continue
		}

		rec, err := fixedwidth.ParseLine(line, geoSpec)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", lineNo, err)
		}
		name, err := latin1.String(rec.String("NAME"))
		if err != nil {
			name = rec.String("NAME")
		}
		stats.Processed++
		progress.Tick()

		if sumlev == SumLevCousub {
			c := Cousub{
				LogRecNo: rec.Int("LOGRECNO"),
				State:    rec.Int("STATE"),
				County:   rec.Int("COUNTY"),
				Cousub:   rec.Int("COUSUB"),
				Name:     name,
			}
			if err := r.upsertCousub(ctx, c, overwrite, &stats); err != nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		g := GeoUnit{
			LogRecNo: rec.Int("LOGRECNO"),
			State:    rec.Int("STATE"),
			County:   rec.Int("COUNTY"),
			Cousub:   rec.Int("COUSUB"),
			CBSA:     rec.Int("CBSA"),
			MetDiv:   rec.Int("METDIV"),
			CSA:      rec.Int("CSA"),
			VTD:      rec.Int("VTD"),
			VTDI:     rec.String("VTDI"),
			Name:     name,
			IntPtLat: rec.String("INTPTLAT"),
			IntPtLon: rec.String("INTPTLON"),
			LSADC:    rec.String("LSADC"),
		}
		if g.State == fips.StateNY {
			g.CountyName, _ = fips.CountyName(g.County)
		}
		if err := r.upsertGeoUnit(ctx, g, overwrite, &stats); err != nil {
			return stats, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read geography: %w", err)
	}
	batch.LogStats(component, stats, time.Since(start))
	return stats, nil
}

func (r *Repository) upsertGeoUnit(ctx context.Context, g GeoUnit, overwrite bool, stats *batch.Stats) error {
	existing, err := r.ByLogRecNo(ctx, g.LogRecNo)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if _, err := r.store.Put(ctx, TagGeoUnit, g); err != nil {
			return err
		}
		stats.Inserted++
		return nil
	}
	if !overwrite {
		stats.Unchanged += len(existing)
		return nil
	}
	for _, doc := range existing {
		updated := g
		updated.Town = doc.Value.Town
		updated.Mappings = doc.Value.Mappings
		updated.PrecinctCodes = doc.Value.PrecinctCodes
		updated.PartDistrict = doc.Value.PartDistrict
		updated.Demographics = doc.Value.Demographics
		if err := r.store.Update(ctx, doc.ID, updated); err != nil {
			return err
		}
		stats.Updated++
	}
	return nil
}

func (r *Repository) upsertCousub(ctx context.Context, c Cousub, overwrite bool, stats *batch.Stats) error {
	existing, err := keystore.Find[Cousub](ctx, r.store, CousubByLogRecNo, keystore.K(c.LogRecNo))
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if _, err := r.store.Put(ctx, TagCousub, c); err != nil {
			return err
		}
		stats.Inserted++
		return nil
	}
	if !overwrite {
		stats.Unchanged += len(existing)
		return nil
	}
	for _, doc := range existing {
		if err := r.store.Update(ctx, doc.ID, c); err != nil {
			return err
		}
		stats.Updated++
	}
	return nil
}
