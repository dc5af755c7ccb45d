package main

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/cbattlegear/forkalytics/internal/enrich"
	"github.com/cbattlegear/forkalytics/internal/ingest"
	"github.com/cbattlegear/forkalytics/internal/jobs"
	"github.com/cbattlegear/forkalytics/internal/rollup"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/config"
	"github.com/cbattlegear/forkalytics/pkg/database"
	"github.com/cbattlegear/forkalytics/pkg/llm"
	"github.com/cbattlegear/forkalytics/pkg/logging"
	"github.com/cbattlegear/forkalytics/pkg/version"
)

// NewRootCmd returns the root command for forkctl, the operational CLI.
// Every subcommand reads its database and instance configuration from the
// same environment variables as the service.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "forkctl",
		Short:         "Forkalytics operational CLI",
		Long:          "Run rollup and enrichment jobs, backfill history, and manage the schema outside the service scheduler.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newSentimentCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newTopicsCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newReprocessCmd())
	rootCmd.AddCommand(newBackfillCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "forkctl %s (%s)\n", version.Version, version.GitCommit)
			return nil
		},
	}
}

// app bundles the shared wiring behind the subcommands.
type app struct {
	logger      logging.Logger
	db          *sql.DB
	store       *store.Store
	engine      *ingest.Engine
	runner      *jobs.Runner
	instanceURL string
	accessToken string
}

// newApp connects to the database and builds the job surface. The caller
// owns Close.
func newApp() (*app, error) {
	logger := logging.NewLoggerWithService("forkctl")
	config.LoadEnv(logger)

	databaseURL := config.RequireEnv("DATABASE_URL")
	instanceURL := config.RequireEnv("INSTANCE_URL")

	instanceID := config.GetEnv("INSTANCE_ID", "")
	if instanceID == "" {
		u, err := url.Parse(instanceURL)
		if err != nil || u.Hostname() == "" {
			return nil, fmt.Errorf("INSTANCE_URL is not a valid URL: %q", instanceURL)
		}
		instanceID = u.Hostname()
	}

	dbConfig := database.DefaultConfig()
	dbConfig.URL = databaseURL
	db, err := database.Connect(dbConfig, logger)
	if err != nil {
		return nil, err
	}

	st := store.New(db, instanceID, logger)
	engine := ingest.NewEngine(db, st, logger, nil)

	var provider llm.Provider
	llmConfig := llm.LoadConfig()
	if llmConfig.Enabled() {
		provider, err = llm.NewProvider(llmConfig)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	sentiment := enrich.NewSentimentAnalyzer(db, st, logger)
	rollupEngine := rollup.NewEngine(st, logger)
	topics := enrich.NewTopicExtractor(st, provider, llmConfig.Model, logger)
	summary := enrich.NewSummaryGenerator(st, provider, llmConfig.Model, logger)

	return &app{
		logger:      logger,
		db:          db,
		store:       st,
		engine:      engine,
		runner:      jobs.NewRunner(sentiment, rollupEngine, topics, summary, logger),
		instanceURL: instanceURL,
		accessToken: config.GetEnv("ACCESS_TOKEN", ""),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.store.Migrate(cmd.Context())
		},
	}
}
