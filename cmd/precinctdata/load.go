package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
)

// stepCommand builds a command that runs one pipeline step. set applies
// positional arguments and flags over the configured sources.
func stepCommand(opts *rootOptions, use, short, step string, args cobra.PositionalArgs, set func(*config.Sources, []string)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withPipeline(cmd.Context(), func(ctx context.Context, cfg config.Config, p *pipeline.Pipeline) error {
				src := cfg.Sources
				set(&src, args)
				stats, err := p.RunStep(ctx, step, opts.options(src))
				fmt.Fprintln(cmd.OutOrStdout(), stats)
				return err
			})
		},
	}
}

func newLoadGeographyCommand(opts *rootOptions) *cobra.Command {
	return stepCommand(opts, "load-geography [geo-file]", "Load Census geography header records", pipeline.StepGeography,
		cobra.MaximumNArgs(1), func(s *config.Sources, a []string) {
			if len(a) == 1 {
				s.GeoFile = a[0]
			}
		})
}

func newAttachMappingsCommand(opts *rootOptions) *cobra.Command {
	return stepCommand(opts, "attach-mappings [dir]", "Attach precinct mappings from equivalence CSVs", pipeline.StepMappings,
		cobra.MaximumNArgs(1), func(s *config.Sources, a []string) {
			if len(a) == 1 {
				s.EquivalenceDir = a[0]
			}
		})
}

func newAttachDemographicsCommand(opts *rootOptions) *cobra.Command {
	return stepCommand(opts, "attach-demographics [segment1 segment2]", "Attach Census PL 94-171 tables", pipeline.StepDemographics,
		func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or both segment files, got %d", len(args))
			}
			return nil
		}, func(s *config.Sources, a []string) {
			if len(a) == 2 {
				s.CensusFile1, s.CensusFile2 = a[0], a[1]
			}
		})
}

func newLoadVotersCommand(opts *rootOptions) *cobra.Command {
	return stepCommand(opts, "load-voters [voter-file]", "Aggregate the voter file into Election Districts", pipeline.StepVoters,
		cobra.MaximumNArgs(1), func(s *config.Sources, a []string) {
			if len(a) == 1 {
				s.VoterFile = a[0]
			}
		})
}

func newLoadResultsCommand(opts *rootOptions) *cobra.Command {
	var pattern string
	cmd := stepCommand(opts, "load-results [dir]", "Load precinct election result CSVs", pipeline.StepResults,
		cobra.MaximumNArgs(1), func(s *config.Sources, a []string) {
			if len(a) == 1 {
				s.ResultsDir = a[0]
			}
			if pattern != "" {
				s.ResultsPattern = pattern
			}
		})
	cmd.Flags().StringVar(&pattern, "pattern", "", "regexp matched against result file paths")
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every configured load step in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withPipeline(cmd.Context(), func(ctx context.Context, cfg config.Config, p *pipeline.Pipeline) error {
				steps, err := p.Run(ctx, opts.options(cfg.Sources))
				for _, s := range steps {
					if s.Skipped {
						fmt.Fprintf(cmd.OutOrStdout(), "%-13s skipped\n", s.Step)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-13s %s (%s)\n", s.Step, s.Stats, s.Duration.Round(time.Millisecond))
				}
				if err != nil {
					log.Printf("[precinctdata] run finished with errors")
				}
				return err
			})
		},
	}
}
