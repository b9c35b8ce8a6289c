package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
	"github.com/EmpoweredVote/precinct-data/internal/tape"
)

func newInitDBCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the document and view tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withPipeline(cmd.Context(), func(context.Context, config.Config, *pipeline.Pipeline) error {
				fmt.Fprintln(cmd.OutOrStdout(), "database ready")
				return nil
			})
		},
	}
}

func newDeleteTagCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-tag <vtd|cousub|ed|er|run>",
		Short: "Delete every document of one record type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := pipeline.ParseTag(args[0])
			if err != nil {
				return err
			}
			return opts.withPipeline(cmd.Context(), func(ctx context.Context, _ config.Config, p *pipeline.Pipeline) error {
				n, err := p.DeleteTag(ctx, tag)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s documents\n", n, tag)
				return nil
			})
		},
	}
}

func newReindexCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild every view from the stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withPipeline(cmd.Context(), func(ctx context.Context, _ config.Config, p *pipeline.Pipeline) error {
				n, err := p.Store.Reindex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d view entries\n", n)
				return nil
			})
		},
	}
}

func newConvertTapeCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "convert-tape <tape-file>",
		Short: "Convert a Suffolk election night tape to precinct result CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			stats, err := tape.Convert(in, w)
			fmt.Fprintln(cmd.ErrOrStderr(), stats)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV (default stdout)")
	return cmd
}
