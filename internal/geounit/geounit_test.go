package geounit_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/precinct-data/internal/fixedwidth"
	"github.com/EmpoweredVote/precinct-data/internal/geounit"
	"github.com/EmpoweredVote/precinct-data/internal/testutil"
)

const (
	nassau    = 59
	oysterBay = 56000
)

func geoLine(sumlev string, logrecno, county, cousub, vtd int, name string) string {
	b := []byte(strings.Repeat(" ", 400))
	put := func(start int, s string) { copy(b[start:], s) }
	put(0, "PLST  NY")
	put(8, sumlev)
	put(18, fmt.Sprintf("%07d", logrecno))
	put(27, "36")
	if county > 0 {
		put(29, fmt.Sprintf("%03d", county))
	}
	if cousub > 0 {
		put(36, fmt.Sprintf("%05d", cousub))
	}
	if vtd > 0 {
		put(161, fmt.Sprintf("%06d", vtd))
		put(167, "A")
	}
	put(226, name)
	put(336, "+40.8000000")
	put(347, "-073.5000000")
	put(359, "00")
	return strings.TrimRight(string(b), " ")
}

func geoFile() string {
	return strings.Join([]string{
		geoLine("040", 1, 0, 0, 0, "New York"),
		geoLine("060", 2, nassau, oysterBay, 0, "Oyster Bay town"),
		geoLine("710", 3, nassau, oysterBay, 1, "Oyster Bay ED 1"),
		geoLine("710", 4, nassau, oysterBay, 2, "Oyster Bay ED 2"),
	}, "\n")
}

func newRepo(t *testing.T) *geounit.Repository {
	t.Helper()
	return geounit.NewRepository(testutil.NewStore(t, geounit.Views()...))
}

func loadedRepo(t *testing.T) *geounit.Repository {
	t.Helper()
	repo := newRepo(t)
	_, err := repo.LoadGeography(context.Background(), strings.NewReader(geoFile()), false)
	require.NoError(t, err)
	return repo
}

func TestLoadGeography(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	stats, err := repo.LoadGeography(ctx, strings.NewReader(geoFile()), false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 3, stats.Inserted)

	units, err := repo.ByCountyCode(ctx, nassau)
	require.NoError(t, err)
	require.Len(t, units, 2)
	g := units[0].Value
	assert.Equal(t, 3, g.LogRecNo)
	assert.Equal(t, 36, g.State)
	assert.Equal(t, oysterBay, g.Cousub)
	assert.Equal(t, 1, g.VTD)
	assert.Equal(t, "A", g.VTDI)
	assert.Equal(t, "Oyster Bay ED 1", g.Name)
	assert.Equal(t, "+40.8000000", g.IntPtLat)
	assert.Equal(t, "-073.5000000", g.IntPtLon)
	assert.Equal(t, "Nassau", g.CountyName)
	assert.Equal(t, "36059000001", g.GeoID10())
	require.NoError(t, g.Complete())

	town, err := repo.CousubName(ctx, nassau, oysterBay)
	require.NoError(t, err)
	assert.Equal(t, "Oyster Bay town", town)

	again, err := repo.LoadGeography(ctx, strings.NewReader(geoFile()), false)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Unchanged)
	assert.Equal(t, 0, again.Inserted)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoadGeographyMalformed(t *testing.T) {
	bad := geoLine("710", 3, nassau, oysterBay, 1, "x")
	bad = bad[:18] + "00x0003" + bad[25:]

	_, err := newRepo(t).LoadGeography(context.Background(), strings.NewReader(bad), false)
	require.Error(t, err)
	var fe *fixedwidth.FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "LOGRECNO", fe.Field)
}

const adHeader = "STATE,NAME,COUNTY,COUSUB,AD,ED,VTD08\n"

func TestAttachPrecinctMapping(t *testing.T) {
	ctx := context.Background()
	repo := loadedRepo(t)

	src := adHeader +
		"36,Oyster Bay,59,56000,9,16,1\n" +
		"36,Oyster Bay,59,56000,9,17,1\n" +
		"36,Oyster Bay,59,56000,13,1,2\n" +
		"36,Nowhere,59,56000,13,1,99\n"
	stats, err := repo.AttachPrecinctMapping(ctx, "nassau.csv", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 3, stats.Updated)
	assert.Equal(t, 1, stats.Skipped)

	units, err := repo.ByCountyCode(ctx, nassau)
	require.NoError(t, err)
	require.Len(t, units, 2)

	first := units[0].Value
	assert.Equal(t, []string{"OB  09  016", "OB  09  017"}, first.PrecinctCodes)
	assert.True(t, first.PartDistrict)
	assert.Equal(t, "Oyster Bay town", first.Town)
	require.Len(t, first.Mappings, 2)
	assert.Equal(t, 9, first.Mappings[0].AD)

	second := units[1].Value
	assert.Equal(t, []string{"OB  13  001"}, second.PrecinctCodes)
	assert.False(t, second.PartDistrict)

	// Re-running the same file leaves every unit as it was.
	rerun, err := repo.AttachPrecinctMapping(ctx, "nassau.csv", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 0, rerun.Updated)
	assert.Equal(t, 3, rerun.Unchanged)
}

func TestAttachPrecinctMappingWardFile(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	lines := strings.Join([]string{
		geoLine("060", 10, 1, 1000, 0, "Albany city"),
		geoLine("710", 11, 1, 1000, 7, "Albany Ward 1 ED 9"),
	}, "\n")
	_, err := repo.LoadGeography(ctx, strings.NewReader(lines), false)
	require.NoError(t, err)

	src := "STATE,NAME,COUNTY,COUSUB,WARD,ED,VTD08\n36,Albany,1,1000,1,9,7\n"
	_, err = repo.AttachPrecinctMapping(ctx, "albany.csv", strings.NewReader(src))
	require.NoError(t, err)

	units, err := repo.ByCountyCode(ctx, 1)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"ALBANY W1 ED9"}, units[0].Value.PrecinctCodes)
	assert.Equal(t, 1, units[0].Value.Mappings[0].Ward)
}

func TestAttachPrecinctMappingUnimplementedCounty(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	_, err := repo.LoadGeography(ctx, strings.NewReader(geoLine("710", 20, 29, 11000, 4, "Erie 4")), false)
	require.NoError(t, err)

	src := adHeader + "36,Erie,29,11000,140,4,4\n"
	stats, err := repo.AttachPrecinctMapping(ctx, "erie.csv", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	units, err := repo.ByCountyCode(ctx, 29)
	require.NoError(t, err)
	assert.Empty(t, units[0].Value.PrecinctCodes)
	require.Len(t, units[0].Value.Mappings, 1)
}

func TestAttachPrecinctMappingBadFiles(t *testing.T) {
	ctx := context.Background()
	repo := loadedRepo(t)

	_, err := repo.AttachPrecinctMapping(ctx, "x.csv", strings.NewReader("A,B,C\n1,2,3\n"))
	require.ErrorIs(t, err, geounit.ErrUnknownEquivalence)

	_, err = repo.AttachPrecinctMapping(ctx, "x.csv", strings.NewReader(adHeader+"36,x,59,56000,9,16\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")

	_, err = repo.AttachPrecinctMapping(ctx, "x.csv", strings.NewReader(adHeader+"36,x,59,56000,nine,16,1\n"))
	require.Error(t, err)
}

func TestAttachPrecinctMappingAmbiguous(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	dup := strings.Join([]string{
		geoLine("710", 3, nassau, oysterBay, 1, "a"),
		geoLine("710", 4, nassau, oysterBay, 1, "b"),
	}, "\n")
	_, err := repo.LoadGeography(ctx, strings.NewReader(dup), false)
	require.NoError(t, err)

	_, err = repo.Lookup(ctx, nassau, oysterBay, 1)
	var amb *geounit.LookupAmbiguityError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, 2, amb.Matches)

	stats, err := repo.AttachPrecinctMapping(ctx, "x.csv", strings.NewReader(adHeader+"36,x,59,56000,9,16,1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Updated)
}

func TestAttachPrecinctMappingsDir(t *testing.T) {
	ctx := context.Background()
	repo := loadedRepo(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_good.csv"), []byte(adHeader+"36,x,59,56000,9,16,1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_bad.csv"), []byte("nothing useful\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("skip me"), 0o644))

	stats, err := repo.AttachPrecinctMappings(ctx, dir)
	require.Error(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Updated)

	units, err := repo.ByCountyCode(ctx, nassau)
	require.NoError(t, err)
	assert.Equal(t, []string{"OB  09  016"}, units[0].Value.PrecinctCodes)
}

func segmentLine(logrecno, cells, base int) string {
	parts := []string{"PLST", "NY", "000", "01", fmt.Sprintf("%07d", logrecno)}
	for i := 0; i < cells; i++ {
		parts = append(parts, fmt.Sprint(base+i))
	}
	return strings.Join(parts, ",")
}

func TestAttachDemographics(t *testing.T) {
	ctx := context.Background()
	repo := loadedRepo(t)

	seg1 := strings.Join([]string{
		segmentLine(1, 144, 0),
		segmentLine(3, 144, 100),
	}, "\n")
	seg2 := segmentLine(3, 147, 1000)

	stats, err := repo.AttachDemographics(ctx, strings.NewReader(seg1), strings.NewReader(seg2))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Skipped)

	docs, err := repo.ByLogRecNo(ctx, 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	d := docs[0].Value.Demographics
	require.NotNil(t, d)
	require.NoError(t, d.Validate())
	assert.Equal(t, 100, d.P1[0])
	assert.Equal(t, 170, d.P1[70])
	assert.Equal(t, 171, d.P2[0])
	assert.Equal(t, 1000, d.P3[0])
	assert.Equal(t, 1071, d.P4[0])
	assert.Equal(t, []int{1144, 1145, 1146}, d.H1)

	// Unit 4 is absent from both segments; unit 3 is unchanged on rerun.
	again, err := repo.AttachDemographics(ctx, strings.NewReader(seg1), strings.NewReader(seg2))
	require.NoError(t, err)
	assert.Equal(t, 1, again.Unchanged)
}

func TestDemographicsValidate(t *testing.T) {
	err := geounit.Demographics{P1: make([]int, 70)}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P1")
}
