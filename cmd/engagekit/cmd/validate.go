package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apptentive/engagekit/internal/targeting"
)

var validateCmd = &cobra.Command{
	Use:   "validate MANIFEST...",
	Short: "Decode manifests and report errors",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("save", "", "store valid manifests as revisions of this source (server or override)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	source, _ := cmd.Flags().GetString("save")

	out := cmd.OutOrStdout()
	ctx := context.Background()

	var save func(doc []byte) error
	if source != "" {
		database, store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		save = func(doc []byte) error {
			rev, err := store.Save(ctx, source, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  saved revision %s\n", rev.ID)
			return nil
		}
	}

	failed := 0
	for _, path := range args {
		m, doc, err := readManifest(path)
		if err == nil {
			_, err = targeting.BuildIndex(m)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: invalid\n  %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d interactions, %d events)\n", path, len(m.Interactions), len(m.Targets))

		if save != nil {
			if err := save(doc); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d manifests invalid", failed, len(args))
	}
	return nil
}
