// Package pipeline wires the repositories onto one store and runs the batch
// load steps in dependency order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/district"
	"github.com/EmpoweredVote/precinct-data/internal/geounit"
	"github.com/EmpoweredVote/precinct-data/internal/keystore"
	"github.com/EmpoweredVote/precinct-data/internal/result"
	"github.com/EmpoweredVote/precinct-data/internal/runlog"
	"github.com/EmpoweredVote/precinct-data/internal/summary"
)

const component = "pipeline"

// Step names, also used as ledger keys.
const (
	StepGeography    = "geography"
	StepMappings     = "mappings"
	StepDemographics = "demographics"
	StepVoters       = "voters"
	StepResults      = "results"
)

var (
	ErrUnknownTag  = errors.New("unknown document tag")
	ErrUnknownStep = errors.New("unknown pipeline step")
	ErrNoSource    = errors.New("no source configured")
)

// Tags maps the names accepted by delete-tag to document tags.
var Tags = map[string]keystore.Tag{
	"vtd":    geounit.TagGeoUnit,
	"cousub": geounit.TagCousub,
	"ed":     district.TagElectionDistrict,
	"er":     result.TagElectionResult,
	"run":    runlog.TagRun,
}

// tagSteps lists the steps whose loads write documents of each tag.
var tagSteps = map[keystore.Tag][]string{
	geounit.TagGeoUnit:           {StepGeography, StepMappings, StepDemographics},
	geounit.TagCousub:            {StepGeography, StepMappings},
	district.TagElectionDistrict: {StepVoters},
	result.TagElectionResult:     {StepResults},
}

func ParseTag(name string) (keystore.Tag, error) {
	t, ok := Tags[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTag, name)
	}
	return t, nil
}

// Views is every view the repositories query.
func Views() []keystore.View {
	var views []keystore.View
	views = append(views, geounit.Views()...)
	views = append(views, district.Views()...)
	views = append(views, result.Views()...)
	views = append(views, runlog.Views()...)
	return views
}

// NewStore builds the keystore over db with every view registered.
func NewStore(db *gorm.DB) (*keystore.Store, error) {
	return keystore.New(db, Views()...)
}

// Pipeline holds the repositories sharing one store.
type Pipeline struct {
	Store     *keystore.Store
	GeoUnits  *geounit.Repository
	Districts *district.Repository
	Results   *result.Repository
	Ledger    *runlog.Ledger
	Summary   *summary.Engine
}

func New(s *keystore.Store) *Pipeline {
	p := &Pipeline{
		Store:     s,
		GeoUnits:  geounit.NewRepository(s),
		Districts: district.NewRepository(s),
		Results:   result.NewRepository(s),
		Ledger:    runlog.NewLedger(s),
	}
	p.Summary = summary.NewEngine(p.GeoUnits, p.Districts, p.Results)
	return p
}

// Options control a Run.
type Options struct {
	Sources       config.Sources
	Overwrite     bool
	SkipUnchanged bool
}

// StepResult is the outcome of one step of a Run.
type StepResult struct {
	Step     string        `json:"step"`
	Stats    batch.Stats   `json:"stats"`
	Duration time.Duration `json:"duration"`
	Skipped  bool          `json:"skipped"`
	Err      error         `json:"-"`
}

type step struct {
	name   string
	source string
	run    func(context.Context, Options) (batch.Stats, error)
}

func (p *Pipeline) steps(o Options) []step {
	return []step{
		{StepGeography, o.Sources.GeoFile, p.runGeography},
		{StepMappings, o.Sources.EquivalenceDir, p.runMappings},
		{StepDemographics, o.Sources.CensusFile1, p.runDemographics},
		{StepVoters, o.Sources.VoterFile, p.runVoters},
		{StepResults, o.Sources.ResultsDir, p.runResults},
	}
}

// Run executes geography, mappings, demographics, voters and results in
// that order. A step with no configured source is skipped. A failed
// geography load stops the run since every later GeoUnit step depends on
// it; other failures are reported and the run continues.
func (p *Pipeline) Run(ctx context.Context, o Options) ([]StepResult, error) {
	var out []StepResult
	var errs []error
	for _, s := range p.steps(o) {
		if s.source == "" {
			log.Printf("[%s] %s: no source configured, skipping", component, s.name)
			out = append(out, StepResult{Step: s.name, Skipped: true})
			continue
		}
		log.Printf("[%s] %s: starting", component, s.name)
		start := time.Now()
		stats, err := s.run(ctx, o)
		res := StepResult{Step: s.name, Stats: stats, Duration: time.Since(start), Err: err}
		out = append(out, res)
		batch.LogStats(component+"/"+s.name, stats, res.Duration)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			if s.name == StepGeography {
				break
			}
		}
	}
	return out, errors.Join(errs...)
}

// RunStep runs a single named step with the sources in o.
func (p *Pipeline) RunStep(ctx context.Context, name string, o Options) (batch.Stats, error) {
	for _, s := range p.steps(o) {
		if s.name != name {
			continue
		}
		if s.source == "" {
			return batch.Stats{}, fmt.Errorf("%w: %s", ErrNoSource, name)
		}
		start := time.Now()
		stats, err := s.run(ctx, o)
		batch.LogStats(component+"/"+name, stats, time.Since(start))
		return stats, err
	}
	return batch.Stats{}, fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

// DeleteTag removes every document of tag and forgets the ledger entries
// of the steps that write it, so a later skip-unchanged run reloads them.
func (p *Pipeline) DeleteTag(ctx context.Context, tag keystore.Tag) (int64, error) {
	n, err := p.Store.DeleteByTag(ctx, tag)
	if err != nil {
		return n, err
	}
	if _, err := p.Ledger.Forget(ctx, tagSteps[tag]...); err != nil {
		return n, err
	}
	return n, nil
}

// runGeography loads the geography file. New GeoUnits carry no mappings or
// demographics yet, so inserting any invalidates those steps' ledger entries.
func (p *Pipeline) runGeography(ctx context.Context, o Options) (batch.Stats, error) {
	stats, err := p.Ledger.LoadFile(ctx, StepGeography, o.Sources.GeoFile, o.SkipUnchanged,
		func(ctx context.Context, src io.Reader) (batch.Stats, error) {
			return p.GeoUnits.LoadGeography(ctx, src, o.Overwrite)
		})
	if stats.Inserted > 0 {
		if _, ferr := p.Ledger.Forget(ctx, StepMappings, StepDemographics); ferr != nil {
			return stats, errors.Join(err, ferr)
		}
	}
	return stats, err
}

func (p *Pipeline) runVoters(ctx context.Context, o Options) (batch.Stats, error) {
	return p.Ledger.LoadFile(ctx, StepVoters, o.Sources.VoterFile, o.SkipUnchanged,
		func(ctx context.Context, src io.Reader) (batch.Stats, error) {
			return p.Districts.LoadVoterFile(ctx, src, o.Overwrite)
		})
}

func (p *Pipeline) runMappings(ctx context.Context, o Options) (batch.Stats, error) {
	return p.eachFile(ctx, StepMappings, o.Sources.EquivalenceDir, func(path string) bool {
		return strings.Contains(strings.ToLower(filepath.Base(path)), ".csv")
	}, o.SkipUnchanged, func(path string) runlog.LoadFunc {
		return func(ctx context.Context, src io.Reader) (batch.Stats, error) {
			return p.GeoUnits.AttachPrecinctMapping(ctx, path, src)
		}
	})
}

func (p *Pipeline) runResults(ctx context.Context, o Options) (batch.Stats, error) {
	pattern := o.Sources.ResultsPattern
	if pattern == "" {
		pattern = config.DefaultResultsPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return batch.Stats{}, fmt.Errorf("compile results pattern: %w", err)
	}
	return p.eachFile(ctx, StepResults, o.Sources.ResultsDir, re.MatchString, o.SkipUnchanged,
		func(path string) runlog.LoadFunc {
			return func(ctx context.Context, src io.Reader) (batch.Stats, error) {
				return p.Results.LoadResult(ctx, path, src, o.Overwrite)
			}
		})
}

// eachFile loads every matching file under root through the ledger. A
// failed file is counted and the walk continues.
func (p *Pipeline) eachFile(ctx context.Context, name, root string, match func(string) bool, skip bool, loader func(string) runlog.LoadFunc) (batch.Stats, error) {
	var total batch.Stats
	var errs []error
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !match(path) {
			return nil
		}
		stats, err := p.Ledger.LoadFile(ctx, name, path, skip, loader(path))
		total.Add(stats)
		if err != nil {
			batch.LogError(component, name+" "+path, err)
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

// runDemographics reads both Census segment files together. They are only
// skipped when neither changed since the last load.
func (p *Pipeline) runDemographics(ctx context.Context, o Options) (batch.Stats, error) {
	paths := []string{o.Sources.CensusFile1, o.Sources.CensusFile2}
	if paths[1] == "" {
		return batch.Stats{}, errors.New("census segment 2 file not configured")
	}

	entries := make([]runlog.Entry, len(paths))
	unchanged := true
	for i, path := range paths {
		sum, size, err := runlog.ChecksumFile(path)
		if err != nil {
			return batch.Stats{}, err
		}
		entries[i] = runlog.Entry{Step: StepDemographics, Path: path, Checksum: sum, Size: size}
		if o.SkipUnchanged && unchanged {
			same, err := p.Ledger.Unchanged(ctx, StepDemographics, path, sum)
			if err != nil {
				return batch.Stats{}, err
			}
			unchanged = same
		}
	}
	if o.SkipUnchanged && unchanged {
		log.Printf("[%s] %s: census segments unchanged since last load, skipping", component, StepDemographics)
		return batch.Stats{Unchanged: 1}, nil
	}

	seg1, err := os.Open(paths[0])
	if err != nil {
		return batch.Stats{}, err
	}
	defer seg1.Close()
	seg2, err := os.Open(paths[1])
	if err != nil {
		return batch.Stats{}, err
	}
	defer seg2.Close()

	stats, err := p.GeoUnits.AttachDemographics(ctx, seg1, seg2)
	if err != nil {
		return stats, err
	}
	for _, e := range entries {
		e.Stats = stats
		if err := p.Ledger.Record(ctx, e); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
