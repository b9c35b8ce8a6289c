package tape

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
	"github.com/EmpoweredVote/precinct-data/internal/precinct"
)

const (
	component = "tape"
	county    = "Suffolk"
)

// Header is the first row Convert writes.
var Header = []string{"county", "precinct", "eligible_voters", "office", "district", "party", "candidate", "votes"}

var errNoOffice = errors.New("record before any office record")

// Convert rewrites a tape as an OpenElections precinct CSV: one row per
// candidate per election district, plus Scattering, Void and Blank rows
// when those counts are non-zero. A malformed record stops the conversion.
func Convert(src io.Reader, dst io.Writer) (batch.Stats, error) {
	start := time.Now()
	var stats batch.Stats

	w := csv.NewWriter(dst)
	if err := w.Write(Header); err != nil {
		return stats, err
	}

	var office *Office
	var candidates []Candidate

	sc := bufio.NewScanner(src)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		switch RecordType(line) {
		case TypeInfo:
			log.Printf("[%s] %s", component, ParseInfo(line).Text)
		case TypeOffice:
			o, err := ParseOffice(line)
			if err != nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			office = &o
			candidates = candidates[:0]
		case TypeCandidate:
			if office == nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, errNoOffice)
			}
			c, err := ParseCandidate(line)
			if err != nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			candidates = append(candidates, c)
		case TypeResult:
			if office == nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, errNoOffice)
			}
			d, err := ParseDistrict(line)
			if err != nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			n, err := writeDistrict(w, *office, candidates, d)
			if err != nil {
				return stats, err
			}
			stats.Inserted += n
		default:
			stats.Skipped++
			continue
		}
		stats.Processed++
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read tape: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return stats, err
	}
	batch.LogStats(component, stats, time.Since(start))
	return stats, nil
}

func writeDistrict(w *csv.Writer, o Office, candidates []Candidate, d District) (int, error) {
	code := precinct.CanonicalCode(county, precinct.Unit{Town: d.Town, ED: d.ED})
	row := func(party, candidate string, votes int) []string {
		return []string{county, code, strconv.Itoa(d.Eligible), o.Standard, o.DistrictLabel(), party, candidate, strconv.Itoa(votes)}
	}

	written := 0
	for i, v := range d.Votes {
		var party, name string
		if i < len(candidates) {
			party, name = candidates[i].Party, candidates[i].Standard
		}
		if err := w.Write(row(party, name, v)); err != nil {
			return written, err
		}
		written++
	}
	for _, extra := range []struct {
		name  string
		votes int
	}{{"Scattering", d.Scattering}, {"Void", d.Void}, {"Blank", d.Blank}} {
		if extra.votes <= 0 {
			continue
		}
		if err := w.Write(row("", extra.name, extra.votes)); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
