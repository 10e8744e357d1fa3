package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/archivum/archivum/internal/config"
	"github.com/archivum/archivum/internal/scanner"
	"github.com/archivum/archivum/internal/types"
)

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	name       string
	sourceType string
	output     string
	configPath string
	threads    int
	batchSize  int
	cacheFile  string
	noProgress bool
	noProjects bool
	noExif     bool
	excludes   []string
}

// newScanCmd creates the scan subcommand.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{
		output:     "./archivum-out",
		sourceType: string(types.SourceDisk),
	}

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a directory tree into a catalog output tree",
		Long: `Walks the tree at <path>, hashes every file, extracts metadata, detects
code projects, and writes a batched JSON output tree under --output.
The result is uploaded to a catalog server with the upload command.

Per-file errors (unreadable files, permission problems) are recorded in
summary.json and do not stop the scan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Source name (defaults to the scanned path)")
	cmd.Flags().StringVar(&opts.sourceType, "type", opts.sourceType, "Source type: DISK, PARTITION, CLOUD, NETWORK, ARCHIVE")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "Output tree root directory")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (default .archivum.yaml)")
	cmd.Flags().IntVarP(&opts.threads, "threads", "t", 0, "Hash worker count (overrides config)")
	cmd.Flags().IntVarP(&opts.batchSize, "batch-size", "b", 0, "Files per output batch (overrides config)")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to hash cache file (enables caching)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVar(&opts.noProjects, "no-projects", false, "Skip code project detection")
	cmd.Flags().BoolVar(&opts.noExif, "no-exif", false, "Skip image EXIF extraction")
	cmd.Flags().StringSliceVarP(&opts.excludes, "exclude", "e", nil, "Glob patterns to exclude (adds to config)")

	return cmd
}

// drainErrors consumes non-fatal errors and writes them to stderr. Clears
// the progress bar line before printing to avoid visual collision.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

func runScan(path string, opts *scanOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	// CLI flags override environment and file.
	if opts.threads > 0 {
		cfg.HashThreads = opts.threads
	}
	if opts.batchSize > 0 {
		cfg.BatchSize = opts.batchSize
	}
	if opts.noExif {
		cfg.ExtractExif = false
	}
	cfg.ExcludePatterns = append(cfg.ExcludePatterns, opts.excludes...)
	if err := cfg.Validate(); err != nil {
		return err
	}

	sourceType, err := parseSourceType(opts.sourceType)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 100)
	go drainErrors(errCh)
	defer close(errCh)

	s := scanner.New(scanner.Options{
		RootPath:       path,
		SourceName:     opts.name,
		SourceType:     sourceType,
		OutputDir:      opts.output,
		Config:         cfg,
		CacheFile:      opts.cacheFile,
		ShowProgress:   !opts.noProgress,
		DetectProjects: !opts.noProjects,
		Version:        version,
		ErrCh:          errCh,
	})
	if err := s.Run(ctx); err != nil {
		return err
	}

	summary := s.Summary()
	fmt.Fprintf(os.Stderr, "scan complete: %d files, %d batches, %d skipped → %s\n",
		summary.TotalFiles, summary.TotalBatches, summary.SkippedFiles,
		opts.output+"/"+s.Source().ID)
	return nil
}
