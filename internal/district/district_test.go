package district

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/precinct-data/internal/testutil"
)

func voterRow(vals map[string]string) string {
	cells := make([]string, len(voterFields))
	for i, f := range voterFields {
		cells[i] = `"` + vals[f] + `"`
	}
	return strings.Join(cells, ",")
}

func suffolkVoter(enrollment, history string) map[string]string {
	return map[string]string{
		"LASTNAME":     "Smith",
		"COUNTYCODE":   "52",
		"TOWNCITY":     "BABYLON",
		"ED":           "001",
		"LD":           "15",
		"CD":           "02",
		"SD":           "08",
		"AD":           "11",
		"ENROLLMENT":   enrollment,
		"VoterHistory": history,
	}
}

func voterFile(rows ...map[string]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = voterRow(r)
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func newRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(testutil.NewStore(t, Views()...))
}

func TestLoadVoterFile(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	latin1Name := suffolkVoter("REP", "GE2016;")
	latin1Name["LASTNAME"] = "Ib\xe1\xf1ez"

	src := voterFile(
		suffolkVoter("DEM", "GE2016;PR2016"),
		latin1Name,
		map[string]string{"COUNTYCODE": "31", "ED": "1", "AD": "65", "ENROLLMENT": "BLK"},
		map[string]string{"COUNTYCODE": "31", "ED": "2", "AD": "x", "ENROLLMENT": "DEM"},
		map[string]string{"COUNTYCODE": "15", "ED": "3", "AD": "140", "ENROLLMENT": "DEM"},
		map[string]string{"COUNTYCODE": "xx"},
		map[string]string{"COUNTYCODE": "99"},
	)

	stats, err := repo.LoadVoterFile(ctx, strings.NewReader(src), false)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Processed)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Failed)

	docs, err := repo.Find(ctx, "Suffolk", "Babylon #:  01")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	ed := docs[0].Value
	assert.Equal(t, 1, ed.ED)
	assert.Equal(t, 15, ed.LD)
	assert.Equal(t, 2, ed.CD)
	assert.Equal(t, 8, ed.SD)
	assert.Equal(t, 11, ed.AD)
	assert.Equal(t, map[string]int{"DEM": 1, "REP": 1}, ed.Registration)
	assert.Equal(t, map[string]int{"GE2016": 2, "PR2016": 1}, ed.Participation)

	nyc, err := repo.ByCounty(ctx, "New York")
	require.NoError(t, err)
	require.Len(t, nyc, 2)
	assert.Equal(t, "001/65", nyc[0].Value.Code)
	assert.Equal(t, "002/00", nyc[1].Value.Code)
	assert.Equal(t, 0, nyc[1].Value.AD)

	erie, err := repo.ByCounty(ctx, "Erie")
	require.NoError(t, err)
	assert.Empty(t, erie)
}

func TestLoadVoterFileOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.LoadVoterFile(ctx, strings.NewReader(voterFile(suffolkVoter("DEM", ""))), false)
	require.NoError(t, err)

	changed := voterFile(suffolkVoter("DEM", ""), suffolkVoter("WOR", ""))

	stats, err := repo.LoadVoterFile(ctx, strings.NewReader(changed), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)
	docs, err := repo.Find(ctx, "Suffolk", "Babylon #:  01")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]int{"DEM": 1}, docs[0].Value.Registration)

	stats, err = repo.LoadVoterFile(ctx, strings.NewReader(changed), true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	docs, err = repo.Find(ctx, "Suffolk", "Babylon #:  01")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]int{"DEM": 1, "WOR": 1}, docs[0].Value.Registration)
	assert.Empty(t, docs[0].Value.Participation)
}

func TestByDistrict(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	_, err := repo.LoadVoterFile(ctx, strings.NewReader(voterFile(suffolkVoter("DEM", ""))), false)
	require.NoError(t, err)

	for _, tc := range []struct {
		chamber Chamber
		n       int
	}{{Assembly, 11}, {Senate, 8}, {Congress, 2}} {
		docs, err := repo.ByDistrict(ctx, tc.chamber, tc.n)
		require.NoError(t, err)
		assert.Len(t, docs, 1, string(tc.chamber))
	}

	none, err := repo.ByDistrict(ctx, Assembly, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseChamber(t *testing.T) {
	c, err := ParseChamber("State Senate")
	require.NoError(t, err)
	assert.Equal(t, Senate, c)

	c, err = ParseChamber("AD")
	require.NoError(t, err)
	assert.Equal(t, Assembly, c)

	_, err = ParseChamber("county legislature")
	require.Error(t, err)
}

func TestAggregatesGetOrInsert(t *testing.T) {
	a := aggregates{}
	k := aggregateKey{County: "Kings", Code: "001/41"}
	a.get(k).Registration["DEM"]++
	a.get(k).Registration["DEM"]++
	assert.Len(t, a, 1)
	assert.Equal(t, 2, a[k].Registration["DEM"])
}
