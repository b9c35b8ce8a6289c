package district

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
	"github.com/EmpoweredVote/precinct-data/internal/fips"
	"github.com/EmpoweredVote/precinct-data/internal/precinct"
)

// Columns of the statewide voter file, in file order.
var voterFields = []string{
	"LASTNAME", "FIRSTNAME", "MIDDLENAME", "NAMESUFFIX",
	"RADDNUMBER", "RHALFCODE", "RAPARTMENT", "RPREDIRECTION",
	"RSTREETNAME", "RPOSTDIRECTION", "RCITY", "RZIP5", "RZIP4",
	"MAILADD1", "MAILADD2", "MAILADD3", "MAILADD4", "DOB",
	"GENDER", "ENROLLMENT", "OTHERPARTY", "COUNTYCODE", "ED",
	"LD", "TOWNCITY", "WARD", "CD", "SD", "AD", "LASTVOTEDATE",
	"PREVYEARVOTED", "PREVCOUNTY", "PREVADDRESS", "PREVNAME",
	"COUNTYVRNUMBER", "REGDATE", "VRSOURCE", "IDREQUIRED",
	"IDMET", "STATUS", "REASONCODE", "INACT_DATE",
	"PURGE_DATE", "SBOEID", "VoterHistory",
}

var col = func() map[string]int {
	m := make(map[string]int, len(voterFields))
	for i, f := range voterFields {
		m[f] = i
	}
	return m
}()

type aggregateKey struct {
	County string
	Code   string
}

type aggregate struct {
	ED, LD, CD, SD, AD int
	TownCity, Ward     string
	Registration       map[string]int
	Participation      map[string]int
}

type aggregates map[aggregateKey]*aggregate

// get returns the aggregate for k, inserting an empty one first if needed.
func (a aggregates) get(k aggregateKey) *aggregate {
	agg, ok := a[k]
	if !ok {
		agg = &aggregate{
			Registration:  map[string]int{},
			Participation: map[string]int{},
		}
		a[k] = agg
	}
	return agg
}

// LoadVoterFile aggregates the Latin-1 voter file by (county, precinct
// code) in one pass and then upserts one ElectionDistrict per precinct.
// An existing district is rewritten only when overwrite is set. Malformed
// district numbers read as zero; a row with an unknown county is counted
// as failed and the scan goes on. Rows in counties without a precinct rule
// are skipped.
func (r *Repository) LoadVoterFile(ctx context.Context, src io.Reader, overwrite bool) (batch.Stats, error) {
	start := time.Now()
	var stats batch.Stats

	cache, elections, err := scanVoterFile(src, &stats)
	if err != nil {
		return stats, err
	}
	log.Printf("[%s] cached %d precincts from %d rows, %d elections", component, len(cache), stats.Processed, elections.Cardinality())

	keys := make([]aggregateKey, 0, len(cache))
	for k := range cache {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b aggregateKey) int {
		if c := strings.Compare(a.County, b.County); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})

	progress := batch.NewProgress(1000)
	for _, k := range keys {
		progress.Tick()
		agg := cache[k]
		ed := ElectionDistrict{
			County:        k.County,
			ED:            agg.ED,
			LD:            agg.LD,
			CD:            agg.CD,
			SD:            agg.SD,
			AD:            agg.AD,
			TownCity:      agg.TownCity,
			Ward:          agg.Ward,
			Code:          k.Code,
			Registration:  agg.Registration,
			Participation: agg.Participation,
		}
		if err := r.upsert(ctx, ed, overwrite, &stats); err != nil {
			progress.Done()
			return stats, fmt.Errorf("save %s %q: %w", k.County, k.Code, err)
		}
	}
	progress.Done()

	batch.LogStats(component, stats, time.Since(start))
	return stats, nil
}

func scanVoterFile(src io.Reader, stats *batch.Stats) (aggregates, mapset.Set[string], error) {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(src))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	cache := aggregates{}
	elections := mapset.NewThreadUnsafeSet[string]()
	unimplemented := mapset.NewThreadUnsafeSet[string]()
	progress := batch.NewProgress(100000)
	defer progress.Done()

	n := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		n++
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			batch.LogSkip(component, fmt.Sprintf("voter file record %d", n), err)
			stats.Failed++
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read voter file: %w", err)
		}
		progress.Tick()
		stats.Processed++

		get := func(name string) string {
			i := col[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		code, err := strconv.Atoi(get("COUNTYCODE"))
		if err != nil {
			batch.LogSkip(component, fmt.Sprintf("voter file record %d", n), fmt.Errorf("county code %q", get("COUNTYCODE")))
			stats.Failed++
			continue
		}
		county, err := fips.VoterFileCounty(code)
		if err != nil {
			batch.LogSkip(component, fmt.Sprintf("voter file record %d", n), err)
			stats.Failed++
			continue
		}

		unit := precinct.Unit{
			Town: get("TOWNCITY"),
			Ward: get("WARD"),
			AD:   atoi(get("AD")),
			ED:   atoi(get("ED")),
		}
		pc := precinct.CanonicalCode(county, unit)
		if !precinct.Implemented(pc) {
			if unimplemented.Add(county) {
				batch.LogSkip(component, county, errors.New("no precinct rule for county"))
			}
			stats.Skipped++
			continue
		}

		agg := cache.get(aggregateKey{County: county, Code: pc})
		agg.ED = unit.ED
		agg.LD = atoi(get("LD"))
		agg.CD = atoi(get("CD"))
		agg.SD = atoi(get("SD"))
		agg.AD = unit.AD
		agg.TownCity = unit.Town
		agg.Ward = unit.Ward
		agg.Registration[get("ENROLLMENT")]++
		for _, e := range strings.Split(get("VoterHistory"), ";") {
			if e = strings.TrimSpace(e); e == "" {
				continue
			}
			agg.Participation[e]++
			elections.Add(e)
		}
	}
	return cache, elections, nil
}

// atoi reads a non-critical number, treating anything malformed as zero.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
