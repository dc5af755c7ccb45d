package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbattlegear/forkalytics/internal/backfill"
	"github.com/cbattlegear/forkalytics/internal/mastodon"
)

func newBackfillCmd() *cobra.Command {
	var startFlag, endFlag string
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Load historical posts through the REST API",
		Long:  "Pages the public timeline from newest to oldest and applies every post created in [start, end) through the upsert pipeline. Safe to re-run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(startFlag, endFlag)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client := mastodon.NewClient(a.instanceURL, a.accessToken, a.logger)
			applied, err := backfill.New(client, a.engine, a.logger).Run(cmd.Context(), start, end)
			if err != nil {
				return fmt.Errorf("backfill aborted after %d posts: %w", applied, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d posts\n", applied)
			return nil
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "range start (YYYY-MM-DD or RFC3339), inclusive")
	cmd.Flags().StringVar(&endFlag, "end", "", "range end, exclusive (default: now)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}
