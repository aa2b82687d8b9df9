package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/apptentive/engagekit/internal/core/db"
	"github.com/apptentive/engagekit/internal/criteria"
	"github.com/apptentive/engagekit/internal/state"
	"github.com/apptentive/engagekit/internal/targeting"
	"github.com/apptentive/engagekit/internal/types"
)

const shutdownTimeout = 5 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Hot-reload the override manifest and re-engage events on change",
	Long: `Installs the server manifest, then watches the override manifest file.
Every change is applied to the targeter and the events given with --event are
engaged again against the state snapshot. With a database configured, every
installed manifest is recorded as a revision and old revisions are pruned on
store.prune_schedule.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("manifest", "", "server manifest JSON file (default engine.manifest_path)")
	watchCmd.Flags().String("override", "", "override manifest JSON file to watch (default engine.override_path)")
	watchCmd.Flags().String("state", "", "YAML state snapshot")
	watchCmd.Flags().StringSlice("event", nil, "event to engage after every reload (repeatable)")
	watchCmd.Flags().Bool("local", false, "treat --event values as local event names")
	watchCmd.Flags().String("interaction-type", "", "treat --event values as emitted by an interaction of this type")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	overridePath := stringFlag(cmd, "override", cfg.Engine.OverridePath)
	if overridePath == "" {
		return fmt.Errorf("--override required")
	}
	manifestPath := stringFlag(cmd, "manifest", cfg.Engine.ManifestPath)
	statePath, _ := cmd.Flags().GetString("state")
	eventArgs, _ := cmd.Flags().GetStringSlice("event")
	local, _ := cmd.Flags().GetBool("local")
	interactionType, _ := cmd.Flags().GetString("interaction-type")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := targeting.NewMetrics(reg, cfg.Metrics.Namespace)

	evalOpts := []criteria.Option{criteria.WithLogger(logger.With("component", "criteria"))}
	if cfg.Engine.Trace {
		evalOpts = append(evalOpts, criteria.WithTrace(func(line string) {
			logger.Debug("trace", "line", line)
		}))
	}
	targeter := targeting.New(
		targeting.WithLogger(logger.With("component", "targeting")),
		targeting.WithEvaluator(criteria.NewEvaluator(evalOpts...)),
		targeting.WithMetrics(metrics),
	)

	var store *db.ManifestStore
	if cfg.Store.DBURL != "" {
		database, s, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		store = s

		scheduler := db.NewPruneScheduler(store, cfg.Store.PruneSchedule, cfg.Store.Retention, logger)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	if manifestPath != "" {
		m, doc, err := readManifest(manifestPath)
		if err != nil {
			return err
		}
		if err := targeter.Load(m); err != nil {
			return err
		}
		recordRevision(ctx, store, targeting.SourceServer, doc, logger)
	}

	snap, err := readSnapshot(statePath)
	if err != nil {
		return err
	}
	root := state.NewRoot(snap, state.WithLogger(logger.With("component", "state")))

	events := make([]types.EventName, len(eventArgs))
	for i, arg := range eventArgs {
		events[i] = eventName(arg, local, interactionType)
	}

	watcher, err := targeting.NewOverrideWatcher(overridePath, targeter,
		targeting.WithDebounce(cfg.Engine.WatchDebounce),
		targeting.WithReloadHook(overrideReloadHook(ctx, cmd.OutOrStdout(), store, targeter, root, events, logger)),
		targeting.WithWatcherLogger(logger.With("component", "override_watcher")),
	)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return watcher.Run(ctx)
}

// overrideReloadHook records the installed override document and engages
// events again after every successful reload.
func overrideReloadHook(ctx context.Context, out io.Writer, store *db.ManifestStore, targeter *targeting.Targeter,
	root criteria.StateProvider, events []types.EventName, logger *slog.Logger) func(doc []byte, err error) {
	return func(doc []byte, err error) {
		if err != nil {
			fmt.Fprintf(out, "override rejected: %v\n", err)
			return
		}
		if doc != nil {
			recordRevision(ctx, store, targeting.SourceOverride, doc, logger)
		}
		engageAll(out, targeter, root, events)
	}
}

// recordRevision stores doc when a store is configured. Storage failures are
// logged; they never block targeting.
func recordRevision(ctx context.Context, store *db.ManifestStore, source string, doc []byte, logger *slog.Logger) {
	if store == nil {
		return
	}
	if _, err := store.Save(ctx, source, doc); err != nil {
		logger.Warn("failed to record manifest revision", "source", source, "error", err)
	}
}

func engageAll(out io.Writer, targeter *targeting.Targeter, root criteria.StateProvider, events []types.EventName) {
	for _, event := range events {
		if id, ok := targeter.Engage(event, root); ok {
			fmt.Fprintf(out, "%s -> %s (source %s)\n", event, id, targeter.Source())
		} else {
			fmt.Fprintf(out, "%s -> none (source %s)\n", event, targeter.Source())
		}
	}
}
