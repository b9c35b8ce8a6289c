package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/district"
	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
	"github.com/EmpoweredVote/precinct-data/internal/summary"
)

func newSummarizeCommand(opts *rootOptions) *cobra.Command {
	var (
		county  string
		chamber string
		number  int
		out     string
		fmtFlag string
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Write one summary row per matched GeoUnit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(county, chamber, number)
			if err != nil {
				return err
			}
			format, err := outputFormat(fmtFlag, out)
			if err != nil {
				return err
			}
			return opts.withPipeline(cmd.Context(), func(ctx context.Context, _ config.Config, p *pipeline.Pipeline) error {
				report, err := p.Summary.Generate(ctx, sel)
				if err != nil {
					return err
				}
				var w io.Writer = cmd.OutOrStdout()
				if out != "" && out != "-" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("create %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}
				if err := summary.Write(w, report, format); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d rows, %d skipped (%d incomplete, %d unmatched)\n",
					len(report.Rows), report.Skipped, report.Incomplete, report.Unmatched)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&county, "county", "", "summarize every Election District in this county")
	flags.StringVar(&chamber, "district-type", "", "assembly, senate or congress")
	flags.IntVar(&number, "district", 0, "district number for --district-type")
	flags.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	flags.StringVar(&fmtFlag, "format", "", "csv, xlsx or json (default from --out extension, else csv)")
	return cmd
}

func selector(county, chamber string, number int) (summary.Selector, error) {
	switch {
	case county != "" && chamber != "":
		return summary.Selector{}, errors.New("use either --county or --district-type, not both")
	case county != "":
		return summary.ForCounty(county), nil
	case chamber != "":
		c, err := district.ParseChamber(chamber)
		if err != nil {
			return summary.Selector{}, err
		}
		if number <= 0 {
			return summary.Selector{}, errors.New("--district must be a positive number")
		}
		return summary.ForDistrict(c, number), nil
	default:
		return summary.Selector{}, summary.ErrEmptySelector
	}
}

func outputFormat(flag, out string) (summary.Format, error) {
	if flag != "" {
		return summary.ParseFormat(flag)
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), "."); ext != "" {
		return summary.ParseFormat(ext)
	}
	return summary.FormatCSV, nil
}
