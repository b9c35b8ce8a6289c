package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/district"
	"github.com/EmpoweredVote/precinct-data/internal/keystore"
	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
	"github.com/EmpoweredVote/precinct-data/internal/runlog"
	"github.com/EmpoweredVote/precinct-data/internal/testutil"
)

const resultsHeader = "county,precinct,office,district,party,candidate,votes\n"

// voterLine builds one 45-column voter file record for Suffolk.
func voterLine(ed, enrollment string) string {
	cells := make([]string, 45)
	cells[0] = "Smith"
	cells[19] = enrollment
	cells[21] = "52"
	cells[22] = ed
	cells[24] = "BABYLON"
	cells[28] = "11"
	cells[44] = "GE2016"
	return `"` + strings.Join(cells, `","`) + `"` + "\r\n"
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	return pipeline.New(testutil.NewStore(t, pipeline.Views()...))
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestViewsAreUnique(t *testing.T) {
	_, err := keystore.New(testutil.NewDB(t), pipeline.Views()...)
	require.NoError(t, err)
}

func TestRunSkipsUnconfiguredSteps(t *testing.T) {
	p := newPipeline(t)
	steps, err := p.Run(context.Background(), pipeline.Options{})
	require.NoError(t, err)
	require.Len(t, steps, 5)
	for _, s := range steps {
		assert.True(t, s.Skipped, s.Step)
	}
	assert.Equal(t, pipeline.StepGeography, steps[0].Step)
	assert.Equal(t, pipeline.StepResults, steps[4].Step)
}

func TestRunVotersAndResults(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	dir := t.TempDir()

	voters := filepath.Join(dir, "voters.txt")
	writeFile(t, voters, voterLine("001", "DEM")+voterLine("001", "REP")+voterLine("002", "DEM"))
	results := filepath.Join(dir, "results")
	writeFile(t, filepath.Join(results, "2016", "20161108__ny__general__suffolk__precinct.csv"),
		resultsHeader+"Suffolk,Babylon #:  01,President,,DEM,Hillary Clinton,100\n")
	writeFile(t, filepath.Join(results, "2016", "notes.csv"), "ignored\n")

	opts := pipeline.Options{
		Sources: config.Sources{
			VoterFile:      voters,
			ResultsDir:     results,
			ResultsPattern: config.DefaultResultsPattern,
		},
		SkipUnchanged: true,
	}

	steps, err := p.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, steps[3].Stats.Inserted)
	assert.Equal(t, 1, steps[4].Stats.Inserted)

	eds, err := p.Districts.Find(ctx, "Suffolk", "Babylon #:  01")
	require.NoError(t, err)
	require.Len(t, eds, 1)
	assert.Equal(t, map[string]int{"DEM": 1, "REP": 1}, eds[0].Value.Registration)

	steps, err = p.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, steps[3].Stats.Unchanged)
	assert.Zero(t, steps[3].Stats.Processed)
	assert.Equal(t, 1, steps[4].Stats.Unchanged)

	history, err := p.Ledger.History(ctx, pipeline.StepResults)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRunStopsAfterGeographyFailure(t *testing.T) {
	p := newPipeline(t)
	steps, err := p.Run(context.Background(), pipeline.Options{
		Sources: config.Sources{
			GeoFile:   filepath.Join(t.TempDir(), "missing.pl"),
			VoterFile: "also-missing.txt",
		},
	})
	require.Error(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, pipeline.StepGeography, steps[0].Step)
}

func TestParseTag(t *testing.T) {
	tag, err := pipeline.ParseTag("ED")
	require.NoError(t, err)
	assert.Equal(t, district.TagElectionDistrict, tag)

	_, err = pipeline.ParseTag("nope")
	require.ErrorIs(t, err, pipeline.ErrUnknownTag)
}

func TestRunStep(t *testing.T) {
	p := newPipeline(t)

	_, err := p.RunStep(context.Background(), "bogus", pipeline.Options{})
	require.ErrorIs(t, err, pipeline.ErrUnknownStep)

	_, err = p.RunStep(context.Background(), pipeline.StepVoters, pipeline.Options{})
	require.ErrorIs(t, err, pipeline.ErrNoSource)

	voters := filepath.Join(t.TempDir(), "voters.txt")
	writeFile(t, voters, voterLine("003", "CON"))
	stats, err := p.RunStep(context.Background(), pipeline.StepVoters, pipeline.Options{
		Sources: config.Sources{VoterFile: voters},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
}

func TestDeleteTagReloadsOnSkipUnchanged(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	voters := filepath.Join(t.TempDir(), "voters.txt")
	writeFile(t, voters, voterLine("001", "DEM"))
	opts := pipeline.Options{Sources: config.Sources{VoterFile: voters}, SkipUnchanged: true}

	_, err := p.RunStep(ctx, pipeline.StepVoters, opts)
	require.NoError(t, err)

	n, err := p.DeleteTag(ctx, district.TagElectionDistrict)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stats, err := p.RunStep(ctx, pipeline.StepVoters, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Zero(t, stats.Unchanged)

	eds, err := p.Districts.ByCounty(ctx, "Suffolk")
	require.NoError(t, err)
	assert.Len(t, eds, 1)
}

// geoLine builds one Census geography header record for Suffolk.
func geoLine(sumlev string, logrecno, cousub, vtd int, name string) string {
	b := []byte(strings.Repeat(" ", 400))
	put := func(start int, s string) { copy(b[start:], s) }
	put(0, "PLST  NY")
	put(8, sumlev)
	put(18, fmt.Sprintf("%07d", logrecno))
	put(27, "36103")
	put(36, fmt.Sprintf("%05d", cousub))
	if vtd > 0 {
		put(161, fmt.Sprintf("%06d", vtd))
		put(167, "A")
	}
	put(226, name)
	put(336, "+40.7000000")
	put(347, "-073.3000000")
	put(359, "00")
	return strings.TrimRight(string(b), " ")
}

func TestGeographyInsertForgetsAttachSteps(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	geo := filepath.Join(t.TempDir(), "nygeo2010.pl")
	opts := pipeline.Options{Sources: config.Sources{GeoFile: geo}, SkipUnchanged: true}

	seedLedger := func() {
		require.NoError(t, p.Ledger.Record(ctx, runlog.Entry{Step: pipeline.StepMappings, Path: "suffolk.csv", Checksum: "x"}))
		require.NoError(t, p.Ledger.Record(ctx, runlog.Entry{Step: pipeline.StepDemographics, Path: "ny000012010.pl", Checksum: "y"}))
	}
	entries := func(step string) int {
		h, err := p.Ledger.History(ctx, step)
		require.NoError(t, err)
		return len(h)
	}

	writeFile(t, geo, geoLine("710", 1, 4000, 1, "Babylon 1")+"\n")
	seedLedger()
	stats, err := p.RunStep(ctx, pipeline.StepGeography, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Zero(t, entries(pipeline.StepMappings))
	assert.Zero(t, entries(pipeline.StepDemographics))

	seedLedger()
	stats, err = p.RunStep(ctx, pipeline.StepGeography, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 1, entries(pipeline.StepMappings))

	writeFile(t, geo, geoLine("710", 1, 4000, 1, "Babylon 1")+"\n"+geoLine("710", 2, 4000, 2, "Babylon 2")+"\n")
	stats, err = p.RunStep(ctx, pipeline.StepGeography, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Zero(t, entries(pipeline.StepMappings))
	assert.Zero(t, entries(pipeline.StepDemographics))

	units, err := p.GeoUnits.ByCountyCode(ctx, 103)
	require.NoError(t, err)
	assert.Len(t, units, 2)
	assert.Empty(t, units[1].Value.PrecinctCodes)
}
