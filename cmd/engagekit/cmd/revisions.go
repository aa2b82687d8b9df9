package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/apptentive/engagekit/internal/targeting"
	"github.com/apptentive/engagekit/internal/types"
)

var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "Inspect and prune stored manifest revisions",
}

var revisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List revisions of a source, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRevisionsList,
}

var revisionsShowCmd = &cobra.Command{
	Use:   "show REVISION_ID",
	Short: "Print a stored manifest document",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevisionsShow,
}

var revisionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete revisions older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runRevisionsPrune,
}

func init() {
	rootCmd.AddCommand(revisionsCmd)
	revisionsCmd.AddCommand(revisionsListCmd, revisionsShowCmd, revisionsPruneCmd)
	revisionsListCmd.Flags().String("source", targeting.SourceServer, "manifest source (server or override)")
	revisionsListCmd.Flags().Int("limit", 20, "maximum revisions to list")
	revisionsPruneCmd.Flags().Duration("older-than", 0, "retention period (default store.retention)")
}

func runRevisionsList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := context.Background()

	database, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	revs, err := store.List(ctx, source, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REVISION\tINSTALLED AT\tINTERACTIONS\tCHECKSUM")
	for _, r := range revs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.12s\n", r.ID, r.InstalledAt.Format(time.RFC3339), r.Interactions, r.Checksum)
	}
	return w.Flush()
}

func runRevisionsShow(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	id, err := types.ParseRevisionID(args[0])
	if err != nil {
		return fmt.Errorf("invalid revision id %q: %w", args[0], err)
	}
	ctx := context.Background()

	database, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	rev, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(rev.Document))
	return nil
}

func runRevisionsPrune(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	olderThan := cfg.Store.Retention
	if cmd.Flags().Changed("older-than") {
		olderThan, _ = cmd.Flags().GetDuration("older-than")
	}
	ctx := context.Background()

	database, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	deleted, err := store.Prune(ctx, olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d revisions older than %s\n", deleted, olderThan)
	return nil
}
