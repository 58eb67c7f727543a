package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/config"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/tui"
	"github.com/impresso/impresso-essentials-go/internal/utils"
	"github.com/impresso/impresso-essentials-go/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logFile   string
	assumeYes bool
	log       *utils.Logger

	// Dependencies for testing
	newStore = storage.NewStore
	confirm  = func(title, description string) (bool, error) {
		return tui.Confirm(title, description, false)
	}
	runEditor = tui.Run
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "impresso",
	Short: "Maintain the impresso data partitions",
	Long: `impresso computes and publishes the versioned manifests of the impresso
data stages and maintains the archives stored in the S3 partitions: timestamp
metadata, provider-level key migration and prefix removal.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.impresso/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file instead of the console")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.PersistentFlags().IntP("workers", "j", config.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Duration("timeout", config.DefaultTimeout, "Wait limit for the response of a storage request")
	rootCmd.PersistentFlags().String("endpoint", "", "S3 endpoint (host[:port] or URL)")

	// Bind flags to viper
	_ = viper.BindPFlag("concurrency.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("concurrency.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("storage.endpoint", rootCmd.PersistentFlags().Lookup("endpoint"))

	// Add subcommands
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(setTimestampCmd)
	rootCmd.AddCommand(addProviderCmd)
	rootCmd.AddCommand(deletePrefixCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads the application config and builds the logger. The returned
// function releases the log file, if any.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	release := func() {}
	if logFile != "" {
		var closer io.Closer
		log, closer, err = utils.NewFileLogger(logFile, level, verbose)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		release = func() { _ = closer.Close() }
	} else {
		log = utils.NewLogger(utils.LoggerOptions{
			Level:   level,
			Format:  cfg.Logging.Format,
			Verbose: verbose,
		})
	}
	return cfg, release, nil
}

// openStore creates the configured object store
func openStore(cfg *config.Config) (domain.ObjectStore, error) {
	store, err := newStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			log.OrNop().Info().Msg("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// confirmAction asks before a destructive action unless --yes was given
func confirmAction(title, description string) error {
	if assumeYes {
		return nil
	}
	ok, err := confirm(title, description)
	if err != nil {
		return fmt.Errorf("confirmation failed (use --yes in non-interactive runs): %w", err)
	}
	if !ok {
		return errAborted
	}
	return nil
}

var errAborted = errors.New("aborted by user")

// showProgress reports whether progress bars should be drawn
func showProgress() bool {
	return !verbose && logFile == ""
}

func workers(cfg *config.Config) int {
	if cfg.Concurrency.Workers < 1 {
		return config.DefaultWorkers
	}
	return cfg.Concurrency.Workers
}

func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}
