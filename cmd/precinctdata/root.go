package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/db"
	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
)

type rootOptions struct {
	configPath    string
	dbPath        string
	overwrite     bool
	skipUnchanged bool
}

func (o *rootOptions) config() (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return cfg, err
		}
	} else {
		cfg = config.LoadFromEnv()
	}
	if o.dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = o.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// withPipeline opens the configured store, migrates it and hands fn a
// pipeline over it. The database is closed when fn returns.
func (o *rootOptions) withPipeline(ctx context.Context, fn func(context.Context, config.Config, *pipeline.Pipeline) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(conn); err != nil {
			log.Printf("[precinctdata] close database: %v", err)
		}
	}()

	store, err := pipeline.NewStore(conn)
	if err != nil {
		return err
	}
	if err := store.AutoMigrate(); err != nil {
		return err
	}
	return fn(ctx, cfg, pipeline.New(store))
}

func (o *rootOptions) options(src config.Sources) pipeline.Options {
	return pipeline.Options{Sources: src, Overwrite: o.overwrite, SkipUnchanged: o.skipUnchanged}
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "precinctdata",
		Short:        "Reconcile NY Census VTDs, Election Districts and election results",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "pipeline YAML config (environment variables override it)")
	flags.StringVar(&opts.dbPath, "db", "", "sqlite database file, overriding the configured database")
	flags.BoolVar(&opts.overwrite, "overwrite", false, "rewrite records that already exist")
	flags.BoolVar(&opts.skipUnchanged, "skip-unchanged", false, "skip source files whose checksum matches the last load")

	root.AddCommand(
		newInitDBCommand(opts),
		newLoadGeographyCommand(opts),
		newAttachMappingsCommand(opts),
		newAttachDemographicsCommand(opts),
		newLoadVotersCommand(opts),
		newLoadResultsCommand(opts),
		newRunCommand(opts),
		newSummarizeCommand(opts),
		newConvertTapeCommand(),
		newDeleteTagCommand(opts),
		newReindexCommand(opts),
	)
	return root
}
