package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apptentive/engagekit/internal/criteria"
	"github.com/apptentive/engagekit/internal/state"
	"github.com/apptentive/engagekit/internal/targeting"
)

var engageCmd = &cobra.Command{
	Use:   "engage EVENT",
	Short: "Select the interaction shown for an engaged event",
	Long: `Loads a manifest (and optional override) and a YAML state snapshot, engages
EVENT and prints the selected interaction. With --trace every criteria
evaluation is printed as an indented trace.`,
	Args: cobra.ExactArgs(1),
	RunE: runEngage,
}

func init() {
	rootCmd.AddCommand(engageCmd)
	engageCmd.Flags().String("manifest", "", "manifest JSON file (default engine.manifest_path)")
	engageCmd.Flags().String("override", "", "override manifest JSON file (default engine.override_path)")
	engageCmd.Flags().String("state", "", "YAML state snapshot")
	engageCmd.Flags().Bool("trace", false, "print the criteria evaluation trace")
	engageCmd.Flags().Bool("local", false, "treat EVENT as a local event name (local#app#EVENT)")
	engageCmd.Flags().String("interaction-type", "", "treat EVENT as emitted by an interaction of this type")
}

func runEngage(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	manifestPath := stringFlag(cmd, "manifest", cfg.Engine.ManifestPath)
	if manifestPath == "" {
		return fmt.Errorf("--manifest required")
	}
	overridePath := stringFlag(cmd, "override", cfg.Engine.OverridePath)
	statePath, _ := cmd.Flags().GetString("state")
	local, _ := cmd.Flags().GetBool("local")
	interactionType, _ := cmd.Flags().GetString("interaction-type")
	trace := cfg.Engine.Trace
	if cmd.Flags().Changed("trace") {
		trace, _ = cmd.Flags().GetBool("trace")
	}

	out := cmd.OutOrStdout()
	evalOpts := []criteria.Option{criteria.WithLogger(logger)}
	if trace {
		evalOpts = append(evalOpts, criteria.WithTrace(func(line string) {
			fmt.Fprintln(out, line)
		}))
	}

	targeter := targeting.New(
		targeting.WithLogger(logger.With("component", "targeting")),
		targeting.WithEvaluator(criteria.NewEvaluator(evalOpts...)),
	)

	m, _, err := readManifest(manifestPath)
	if err != nil {
		return err
	}
	if err := targeter.Load(m); err != nil {
		return err
	}
	if overridePath != "" {
		override, _, err := readManifest(overridePath)
		if err != nil {
			return err
		}
		if err := targeter.SetOverride(override); err != nil {
			return err
		}
	}

	snap, err := readSnapshot(statePath)
	if err != nil {
		return err
	}
	root := state.NewRoot(snap, state.WithLogger(logger))

	event := eventName(args[0], local, interactionType)
	id, ok := targeter.Engage(event, root)
	if !ok {
		fmt.Fprintf(out, "no interaction for %s (source %s)\n", event, targeter.Source())
		return nil
	}

	fmt.Fprintf(out, "interaction: %s (source %s)\n", id, targeter.Source())
	if desc, ok := targeter.Interaction(id); ok {
		body, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode interaction: %w", err)
		}
		fmt.Fprintln(out, string(body))
	}
	return nil
}
