package geounit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
)

// Column ranges of the PL 94-171 data segments, after the five-column
// file header whose last column is LOGRECNO.
const (
	colLogRecNo = 4
	colFirst    = 5
	colSecond   = colFirst + LenP1
	colThird    = colSecond + LenP2
	colEnd      = colThird + LenH1
)

// AttachDemographics merges the P1/P2 tables of segment one and the
// P3/P4/H1 tables of segment two into the GeoUnit with the same LOGRECNO.
// GeoUnits absent from either file are counted as skipped.
func (r *Repository) AttachDemographics(ctx context.Context, segment1, segment2 io.Reader) (batch.Stats, error) {
	start := time.Now()
	var stats batch.Stats

	units, err := r.All(ctx)
	if err != nil {
		return stats, err
	}
	wanted := mapset.NewThreadUnsafeSetWithSize[int](len(units))
	for _, u := range units {
		wanted.Add(u.Value.LogRecNo)
	}

	cache := make(map[int]*Demographics, len(units))
	err = readSegment(segment1, wanted, &stats, func(logrecno int, cells []int) {
		d := entry(cache, logrecno)
		d.P1 = slices.Clone(cells[colFirst:colSecond])
		d.P2 = slices.Clone(cells[colSecond : colSecond+LenP2])
	}, colSecond+LenP2)
	if err != nil {
		return stats, fmt.Errorf("segment 1: %w", err)
	}
	err = readSegment(segment2, wanted, &stats, func(logrecno int, cells []int) {
		d := entry(cache, logrecno)
		d.P3 = slices.Clone(cells[colFirst : colFirst+LenP3])
		d.P4 = slices.Clone(cells[colFirst+LenP3 : colFirst+LenP3+LenP4])
		d.H1 = slices.Clone(cells[colFirst+LenP3+LenP4 : colEnd])
	}, colEnd)
	if err != nil {
		return stats, fmt.Errorf("segment 2: %w", err)
	}

	for _, doc := range units {
		g := doc.Value
		d, ok := cache[g.LogRecNo]
		if !ok {
			stats.Skipped++
			continue
		}
		if err := d.Validate(); err != nil {
			batch.LogSkip(component, fmt.Sprintf("demographics for logrecno %d", g.LogRecNo), err)
			stats.Skipped++
			continue
		}
		if g.Demographics != nil && equalDemographics(*g.Demographics, *d) {
			stats.Unchanged++
			continue
		}
		g.Demographics = d
		if err := r.store.Update(ctx, doc.ID, g); err != nil {
			return stats, err
		}
		stats.Updated++
	}

	batch.LogStats(component, stats, time.Since(start))
	return stats, nil
}

func entry(cache map[int]*Demographics, logrecno int) *Demographics {
	d, ok := cache[logrecno]
	if !ok {
		d = &Demographics{}
		cache[logrecno] = d
	}
	return d
}

// readSegment calls fn with the parsed integer cells of every line whose
// LOGRECNO is wanted. Cells before colFirst are left as zero.
func readSegment(src io.Reader, wanted mapset.Set[int], stats *batch.Stats, fn func(int, []int), width int) error {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	cells := make([]int, width)
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if len(rec) <= colLogRecNo {
			return fmt.Errorf("line %d has %d columns", line, len(rec))
		}
		logrecno, err := strconv.Atoi(strings.TrimSpace(rec[colLogRecNo]))
		if err != nil {
			return fmt.Errorf("line %d: invalid LOGRECNO %q", line, rec[colLogRecNo])
		}
		if !wanted.Contains(logrecno) {
			continue
		}
		stats.Processed++
		if len(rec) < width {
			batch.LogSkip(component, fmt.Sprintf("segment line %d", line), fmt.Errorf("%d columns, want %d", len(rec), width))
			stats.Failed++
			continue
		}
		ok := true
		for i := colFirst; i < width; i++ {
			n, err := strconv.Atoi(strings.TrimSpace(rec[i]))
			if err != nil {
				batch.LogSkip(component, fmt.Sprintf("segment line %d", line), fmt.Errorf("column %d: %w", i+1, err))
				ok = false
				break
			}
			cells[i] = n
		}
		if !ok {
			stats.Failed++
			continue
		}
		fn(logrecno, cells)
	}
}

func equalDemographics(a, b Demographics) bool {
	return slices.Equal(a.P1, b.P1) && slices.Equal(a.P2, b.P2) &&
		slices.Equal(a.P3, b.P3) && slices.Equal(a.P4, b.P4) && slices.Equal(a.H1, b.H1)
}
