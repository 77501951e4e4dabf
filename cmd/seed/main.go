// Command seed bulk loads the canonical lot CSV into the configured
// database backend (SQL or Supabase).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	supabase "github.com/nedpals/supabase-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/config"
	"github.com/iliyamo/lot-map/internal/database"
	"github.com/iliyamo/lot-map/internal/logging"
	"github.com/iliyamo/lot-map/internal/normalize"
	"github.com/iliyamo/lot-map/internal/repository"
	"github.com/iliyamo/lot-map/internal/seed"
)

var (
	csvPath      string
	batchSize    int
	concurrency  int
	backend      string
	numberFormat string
	verbose      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the lot CSV into the database backend",
	Long: `Reads the canonical lot CSV with the same rules as the live CSV store
(identifier derivation, status and number normalization, first row wins on
duplicate ids) and upserts it in batches keyed by id.  Running it twice is
harmless.

Connection settings come from the environment (.env is honored):
  sql       DB_DRIVER, DB_USER, DB_PASS, DB_HOST, DB_PORT, DB_NAME, SQLITE_PATH
  supabase  SUPABASE_URL, SUPABASE_KEY, SUPABASE_TABLE`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level, "console")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runSeed,
}

func init() {
	rootCmd.Flags().StringVar(&csvPath, "csv", "", "canonical CSV file (defaults to CSV_PATH)")
	rootCmd.Flags().IntVar(&batchSize, "batch", seed.DefaultBatchSize, "rows per upsert")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 2, "batches in flight")
	rootCmd.Flags().StringVar(&backend, "backend", config.BackendSQL, "target backend: sql or supabase")
	rootCmd.Flags().StringVar(&numberFormat, "number-format", "", "thousands or decimal (defaults to NUMBER_FORMAT)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func runSeed(cmd *cobra.Command, args []string) error {
	// the target backend comes from the flag, not STORE_BACKEND
	if err := os.Setenv("STORE_BACKEND", backend); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	format := cfg.NumberFormat
	if numberFormat != "" {
		if format, err = normalize.ParseNumberFormat(numberFormat); err != nil {
			return err
		}
	}
	path := csvPath
	if path == "" {
		path = cfg.CSVPath
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	dst, closeFn, err := openTarget(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := seed.Run(ctx, f, dst, seed.Options{
		BatchSize:   batchSize,
		Concurrency: concurrency,
		Format:      format,
	}, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "upserted %d lots in %d batches into %s\n", res.Lots, res.Batches, cfg.StoreBackend)
	return nil
}

func openTarget(cfg config.Config) (repository.BulkUpserter, func(), error) {
	clock := repository.LocalClock(cfg.Location)
	switch cfg.StoreBackend {
	case config.BackendSQL:
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLStore(db, clock), func() { _ = db.Close() }, nil
	case config.BackendSupabase:
		client := supabase.CreateClient(cfg.Supabase.URL, cfg.Supabase.Key)
		return repository.NewSupabaseStore(client, cfg.Supabase.Table, clock), func() {}, nil
	}
	return nil, nil, fmt.Errorf("backend %q does not accept bulk loads", cfg.StoreBackend)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
