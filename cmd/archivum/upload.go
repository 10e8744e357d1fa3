package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/archivum/archivum/internal/uploader"
)

// uploadOptions holds CLI flags for the upload command.
type uploadOptions struct {
	serverURL string
	timeout   int
	verbose   bool
}

// newUploadCmd creates the upload subcommand.
func newUploadCmd() *cobra.Command {
	opts := &uploadOptions{
		serverURL: "http://127.0.0.1:8080",
		timeout:   int(uploader.DefaultTimeout / time.Second),
	}

	cmd := &cobra.Command{
		Use:   "upload <outputDir>",
		Short: "Upload a scan output tree to the catalog server",
		Long: `Replays the output tree at <outputDir> (the <outputRoot>/<sourceId>
directory produced by scan) against the catalog server: source first,
then every batch in order, detected projects, and finally completion.

Uploads are idempotent per source; a failed run can be retried from the
start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runUpload(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.serverURL, "server-url", "s", opts.serverURL, "Catalog server base URL")
	cmd.Flags().IntVar(&opts.timeout, "timeout", opts.timeout, "Per-request timeout in seconds")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show individual upload steps")

	return cmd
}

func runUpload(dir string, opts *uploadOptions) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("output dir %s is not an existing directory", dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u := uploader.New(opts.serverURL, time.Duration(opts.timeout)*time.Second, opts.verbose)
	serverID, err := u.Run(ctx, dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "upload complete: source %s\n", serverID)
	return nil
}
