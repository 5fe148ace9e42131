package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FrenchMajesty/brand-identifier/internal/config"
	"github.com/FrenchMajesty/brand-identifier/internal/logging"
	"github.com/FrenchMajesty/brand-identifier/internal/retry"
	"github.com/FrenchMajesty/brand-identifier/internal/ui"
	"github.com/FrenchMajesty/brand-identifier/pkg/adapters/brandapi"
	"github.com/FrenchMajesty/brand-identifier/pkg/submission"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries global flags and what PersistentPreRunE builds from them
type app struct {
	// Global flags
	configPath string
	envFile    string
	endpoint   string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "brandid",
		Short: "Identify the brand of a product from its description",
		Long: `brandid sends a product description to the brand identifier service
and shows the brand it finds.

Run without arguments to start the interactive form.

Examples:
  brandid classify "Great Value Hazelnut Milk Chocolate, 100 g"
  brandid batch descriptions.txt --concurrency 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The form owns the terminal, so it only logs to a file
			return a.setup(cmd == cmd.Root())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runInteractive,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "Env file with BRANDID_* settings (skipped when missing)")
	rootCmd.PersistentFlags().StringVar(&a.endpoint, "endpoint", "", "Brand API base URL (or set BRANDID_ENDPOINT)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(newClassifyCmd(a), newBatchCmd(a))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger
func (a *app) setup(interactive bool) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	if a.endpoint != "" {
		cfg.Endpoint = a.endpoint
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --endpoint: %w", err)
		}
	}
	a.cfg = cfg

	if interactive {
		a.logger, err = logging.NewInteractive(cfg.Logging, a.verbose)
	} else {
		a.logger, err = logging.New(cfg.Logging, a.verbose)
	}
	if err != nil {
		return err
	}

	a.logger.Debug("configuration loaded",
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Int("max_retries", cfg.MaxRetries))
	return nil
}

// newClient builds the brand API client from configuration
func (a *app) newClient() *brandapi.Client {
	opts := []brandapi.Option{
		brandapi.WithTimeout(a.cfg.RequestTimeout),
		brandapi.WithRetryConfig(retry.DefaultConfig().WithMaxRetries(a.cfg.MaxRetries)),
		brandapi.WithLogger(a.logger),
	}
	if a.cfg.DumpRequests {
		opts = append(opts, brandapi.WithDumpRequests(a.cfg.DumpDir))
	}
	return brandapi.NewClient(a.cfg.Endpoint, opts...)
}

func (a *app) newController() (*submission.Controller, error) {
	return submission.NewController(submission.Config{
		Classifier: a.newClient(),
		Schedule:   a.cfg.Hints.Stages(),
		Logger:     a.logger,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runInteractive launches the terminal form
func (a *app) runInteractive(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	controller, err := a.newController()
	if err != nil {
		return err
	}
	defer controller.Close()

	return ui.Run(ctx, controller)
}
