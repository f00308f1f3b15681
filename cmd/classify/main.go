// Package main provides a command line front end to the classification pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toricodesthings/doc-classification-service/internal/classifier"
	"github.com/toricodesthings/doc-classification-service/internal/config"
	"github.com/toricodesthings/doc-classification-service/internal/logger"
	"github.com/toricodesthings/doc-classification-service/internal/runner"
	"github.com/toricodesthings/doc-classification-service/internal/types"
)

var (
	batchMode  bool
	saveOutput bool
	outputDir  string
	outputJSON bool
	workers    int
	noColor    bool
	verbose    bool
)

// errFailed makes main exit non-zero without printing anything else.
var errFailed = errors.New("classification failed")

var rootCmd = &cobra.Command{
	Use:   "classify <image-or-directory>",
	Short: "Classify document images with the configured external program",
	Long: `classify runs the configured classification program on one image, or on
every supported image in a directory when --batch is given, and prints the
document type and recognised text for each.

Configuration is read from the environment and an optional .env file.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runClassify,
}

func init() {
	rootCmd.Flags().BoolVarP(&batchMode, "batch", "b", false, "treat the path as a directory and classify every image in it")
	rootCmd.Flags().BoolVarP(&saveOutput, "save", "s", false, "write a result file per image")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for result files (default DEFAULT_OUTPUT_DIR)")
	rootCmd.Flags().BoolVar(&outputJSON, "json", false, "print the response as JSON")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel workers for batches (default BATCH_WORKERS)")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg := config.Load()
	if workers > 0 {
		cfg.BatchWorkers = workers
		if int64(workers) > cfg.MaxConcurrentProcesses {
			cfg.MaxConcurrentProcesses = int64(workers)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := zap.NewNop()
	if verbose || cfg.DebugMode {
		log = logger.New("debug", "console")
	}
	defer func() { _ = log.Sync() }()

	ui := NewUI(outputJSON, noColor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc := classifier.New(cfg, runner.New(cfg, log), classifier.WithLogger(log))
	resp, err := proc.Process(ctx, &types.ClassificationRequest{
		ImagePath:  args[0],
		BatchMode:  batchMode,
		SaveOutput: saveOutput,
		OutputDir:  outputDir,
	})
	if err != nil {
		if outputJSON {
			_ = ui.JSON(resp)
			return errFailed
		}
		return err
	}

	if err := ui.Response(resp); err != nil {
		return err
	}
	if !resp.Success || resp.FailureCount > 0 {
		return errFailed
	}
	return nil
}
