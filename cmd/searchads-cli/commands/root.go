package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"searchads-client/internal/components/configutil"
	"searchads-client/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configName string
	verbose    bool

	config   Config
	otelDone func(context.Context) error
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config", "searchads.json5", "The config file to look for, searched upwards from the working directory.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug information.")
}

var rootCmd = &cobra.Command{
	Use:   "searchads-cli",
	Short: "searchads-cli logs into Apple Search Ads and runs report and keyword queries.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configutil.ReadRecursively[Config](configName)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
		config = cfg

		telemetry.InitSlog(verbose || config.Telemetry.Verbose)
		tel, err := telemetry.Setup(cmd.Context(), "searchads-cli", config.Telemetry)
		if err != nil {
			slog.Warn("failed to setup otel, continuing without it", "err", err)
			return nil
		}
		otelDone = tel.Shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if otelDone == nil {
			return
		}
		err := otelDone(context.Background())
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
