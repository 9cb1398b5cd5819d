// Command feedctl operates the article store from a shell: one-shot
// refreshes, listings, the status report and feed diagnostics. It reads the
// same environment as the API and the worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rss-digest/internal/bootstrap"
	"rss-digest/internal/config"
	"rss-digest/internal/handler/http/respond"
	"rss-digest/internal/observability/logging"
)

var version = "dev"

// app carries what every subcommand needs.
type app struct {
	logger  *slog.Logger
	jsonOut bool
}

// engine wires the store and, when load is set, restores the persisted
// snapshot. The caller closes it.
func (a *app) engine(ctx context.Context, load bool) (*bootstrap.Engine, error) {
	cfg := config.LoadAppConfig(a.logger, nil)
	e, err := bootstrap.NewEngine(ctx, a.logger, cfg, nil)
	if err != nil {
		return nil, err
	}
	if !load {
		return e, nil
	}
	if err := e.Service.Load(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func newRootCmd() *cobra.Command {
	a := &app{logger: logging.NewTextLogger()}

	var verbose bool
	root := &cobra.Command{
		Use:           "feedctl",
		Short:         "Operate the RSS digest article store",
		Long:          "feedctl refreshes, lists and inspects the article store and probes the configured feeds.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				a.logger = logging.New(cmd.ErrOrStderr(), "text", slog.LevelDebug)
			}
			slog.SetDefault(a.logger)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of a table")

	root.AddCommand(
		newRefreshCmd(a),
		newListCmd(a),
		newStatusCmd(a),
		newCategoriesCmd(a),
		newDiagnoseCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "feedctl:", respond.SanitizeError(err))
		stop()
		os.Exit(1)
	}
}
