package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/internal/repository"
	"github.com/noah-isme/kumon-analytics/internal/service"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	"github.com/noah-isme/kumon-analytics/pkg/database"
	"github.com/noah-isme/kumon-analytics/pkg/logger"
)

// cli carries what every subcommand needs once the root pre-run has
// resolved configuration and opened the store.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
	store  service.TabularStore
	close  func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &cli{}
	var (
		verbose bool
		driver  string
		dir     string
	)

	root := &cobra.Command{
		Use:           "kumonctl",
		Short:         "Normalize the raw student log and export reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logr, err := logger.NewCLI(verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			app.logger = logr

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if driver != "" {
				cfg.Store.Driver = driver
			}
			if dir != "" {
				cfg.Store.Dir = dir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			app.cfg = cfg
			return app.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
			if app.close != nil {
				return app.close()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&driver, "store", "", "Store driver: csv or postgres (default from STORE_DRIVER)")
	root.PersistentFlags().StringVar(&dir, "dir", "", "Table directory for the csv store (default from STORE_DIR)")

	root.AddCommand(newNormalizeCmd(app))
	root.AddCommand(newExportCmd(app))
	return root
}

func (a *cli) open(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.StoreDriverCSV:
		repo, err := repository.NewCSVDirRepository(a.cfg.Store.Dir)
		if err != nil {
			return fmt.Errorf("open csv store: %w", err)
		}
		a.store = repo
		a.logger.Debug("using csv store", zap.String("dir", a.cfg.Store.Dir))
		return nil
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(a.cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.store = repository.NewSheetRepository(db)
		a.close = db.Close
		return nil
	default:
		return fmt.Errorf("store %q is not usable from the command line; choose csv or postgres", a.cfg.Store.Driver)
	}
}
