package result

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
)

const component = "result"

var ErrBadFilename = errors.New("filename does not match YYYYMMDD__state__election__county__precinct.csv")

var filenameRe = regexp.MustCompile(`(\d{8})__(\w{2})__(.*)__(\w+)__precinct\.csv`)

// FileInfo is what a result filename says about its rows.
type FileInfo struct {
	Date     time.Time
	State    string
	Election string
	County   string
}

// ParseFilename recovers the election date, state, election name and county
// from an OpenElections precinct filename.
func ParseFilename(path string) (FileInfo, error) {
	m := filenameRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrBadFilename, path)
	}
	date, err := time.Parse("20060102", m[1])
	if err != nil {
		return FileInfo{}, fmt.Errorf("%w: %s: %v", ErrBadFilename, path, err)
	}
	return FileInfo{
		Date:     date,
		State:    strings.ToUpper(m[2]),
		Election: title(strings.ReplaceAll(m[3], "__", " ")),
		County:   title(strings.ReplaceAll(m[4], "_", " ")),
	}, nil
}

func title(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// LoadResultFile opens path and loads it with LoadResult.
func (r *Repository) LoadResultFile(ctx context.Context, path string, overwrite bool) (batch.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return batch.Stats{}, err
	}
	defer f.Close()
	return r.LoadResult(ctx, path, f, overwrite)
}

// LoadResult upserts every row of one result file by its composite key.
// Existing rows are only rewritten when overwrite is set. A row whose
// county disagrees with the filename stops the file with a
// *ValidationError; rows already saved stay saved. Missing or malformed
// vote columns read as zero.
func (r *Repository) LoadResult(ctx context.Context, name string, src io.Reader, overwrite bool) (batch.Stats, error) {
	start := time.Now()
	var stats batch.Stats

	info, err := ParseFilename(name)
	if err != nil {
		return stats, err
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return stats, fmt.Errorf("%s: read header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["county"]; !ok {
		return stats, fmt.Errorf("%s: missing required column: county", name)
	}

	mismatches := 0
	for rowIdx := 2; ; rowIdx++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%s row %d: %w", name, rowIdx, err)
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		num := func(name string) int {
			n, err := strconv.Atoi(strings.ReplaceAll(get(name), ",", ""))
			if err != nil {
				return 0
			}
			return n
		}

		if county := get("county"); !strings.EqualFold(county, info.County) {
			return stats, &ValidationError{File: name, Row: rowIdx, Expected: info.County, Got: county}
		}
		stats.Processed++
		// e.g. "Total for Babylon" alongside "Babylon #: 154"
		if strings.Contains(get("precinct"), "Total") {
			stats.Skipped++
			continue
		}

		er := ElectionResult{
			Date:                     info.Date,
			State:                    info.State,
			Election:                 info.Election,
			County:                   info.County,
			Precinct:                 get("precinct"),
			Office:                   get("office"),
			District:                 get("district"),
			Party:                    get("party"),
			Candidate:                get("candidate"),
			Votes:                    num("votes"),
			PublicCounterVotes:       num("public_counter_votes"),
			EmergencyVotes:           num("emergency_votes"),
			AbsenteeMilitaryVotes:    num("absentee_military_votes"),
			FederalVotes:             num("federal_votes"),
			AffidavitVotes:           num("affidavit_votes"),
			ManuallyCountedEmergency: num("manually_counted_emergency"),
			SpecialPresidential:      num("special_presidential"),
		}
		if er.SubtallyMismatch() {
			mismatches++
		}
		if err := r.upsert(ctx, er, overwrite, &stats); err != nil {
			return stats, fmt.Errorf("%s row %d: %w", name, rowIdx, err)
		}
	}

	if mismatches > 0 {
		log.Printf("[%s] %s: %d rows where sub-tallies do not sum to votes", component, name, mismatches)
	}
	batch.LogStats(component, stats, time.Since(start))
	return stats, nil
}

func (r *Repository) upsert(ctx context.Context, er ElectionResult, overwrite bool, stats *batch.Stats) error {
	ids, err := r.store.Query(ctx, ByIdentity, er.Key())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if _, err := r.store.Put(ctx, TagElectionResult, er); err != nil {
			return err
		}
		stats.Inserted++
		return nil
	}
	if !overwrite {
		stats.Unchanged += len(ids)
		return nil
	}
	for _, id := range ids {
		if err := r.store.Update(ctx, id, er); err != nil {
			return err
		}
		stats.Updated++
	}
	return nil
}

// LoadFilesByPattern loads every file under root whose path matches
// pattern. A file that fails is logged and counted and the walk continues;
// the returned error joins every per-file failure.
func (r *Repository) LoadFilesByPattern(ctx context.Context, root, pattern string, overwrite bool) (batch.Stats, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return batch.Stats{}, fmt.Errorf("compile pattern: %w", err)
	}

	var total batch.Stats
	var errs []error
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !re.MatchString(path) {
			return nil
		}
		log.Printf("[%s] loading %s", component, path)
		stats, err := r.LoadResultFile(ctx, path, overwrite)
		total.Add(stats)
		if err != nil {
			batch.LogError(component, "load "+path, err)
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
