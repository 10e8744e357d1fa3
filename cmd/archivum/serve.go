package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/archivum/archivum/internal/config"
	"github.com/archivum/archivum/internal/dedup"
	"github.com/archivum/archivum/internal/ingest"
	"github.com/archivum/archivum/internal/server"
	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/tree"
	"github.com/archivum/archivum/internal/zone"
)

// serveOptions holds CLI flags for the serve command.
type serveOptions struct {
	listen     string
	dbPath     string
	configPath string
}

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog server",
		Long: `Serves the catalog HTTP API backed by a SQLite database: source and
file ingest, duplicate review, folder zones, and the virtual folder tree.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (default .archivum.yaml)")

	return cmd
}

func runServe(opts *serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}
	if opts.dbPath != "" {
		cfg.Server.DB = opts.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	st, err := store.Open(cfg.Server.DB)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := dedup.New(st, log)
	ing := ingest.New(st, engine, log)
	zones := zone.NewResolver(st)
	trees := tree.New(st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(st, ing, engine, zones, trees, log)
	return srv.ListenAndServe(ctx, cfg.Server.Listen)
}
