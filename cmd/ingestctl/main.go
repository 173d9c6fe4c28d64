package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/api"
	"github.com/dharsanguruparan/IngestDrop/internal/config"
	"github.com/dharsanguruparan/IngestDrop/internal/database"
	"github.com/dharsanguruparan/IngestDrop/internal/processing"
	"github.com/dharsanguruparan/IngestDrop/internal/service"
	"github.com/dharsanguruparan/IngestDrop/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ingestctl: %v\n", err)
		os.Exit(1)
	}
}

// app holds what PersistentPreRunE loaded for the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "ingestctl",
		Short: "Contact ingestion development CLI",
		Long: `ingestctl applies database migrations, dry-runs the ingestion pipeline over a local CSV file,
and serves the API with an in-process worker pool and in-memory stores for local development.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Log, "ingestctl")
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}
	cmd.AddCommand(
		newMigrateCmd(a),
		newCheckCmd(a),
		newServeLocalCmd(a),
		newRunCmd(),
	)
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Migrate(a.cfg.Database.URL); err != nil {
				return err
			}
			a.logger.Info("migrations applied")
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var existing []string
	cmd := &cobra.Command{
		Use:   "check <file.csv>",
		Short: "Parse a CSV file and report the issues ingestion would raise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := processing.OptionsFromConfig(a.cfg.Pipeline)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			report, err := checkFile(args[0], data, a.cfg.Upload.MaxFileBytes, opts, existing)
			if err != nil {
				return err
			}
			return report.write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&existing, "existing", nil, "Emails to treat as already promoted contacts")
	return cmd
}

func newServeLocalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-local",
		Short: "Serve the API with in-memory stores and an in-process worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := processing.OptionsFromConfig(a.cfg.Pipeline)
			if err != nil {
				return err
			}
			store := storage.NewMemoryStore()
			objects := storage.NewMemoryObjects()
			pipeline := processing.NewPipeline(store, objects, opts, a.logger)
			pool := processing.NewPool(pipeline, store, a.cfg.Pipeline.LocalWorkers, a.cfg.Pipeline.LocalQueue, a.logger)
			pool.Start(ctx)

			jobs := service.NewJobs(store, objects, pool, a.cfg.Upload.MaxFileBytes, a.logger)
			review := service.NewReview(store, a.logger)
			srv := api.New(a.cfg.Server, a.cfg.Upload.MaxFileBytes, jobs, review, a.logger)
			err = srv.Run(ctx)
			pool.Wait()
			return err
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("api", "./cmd/api"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			return runCommand(cmd.Context(), "go", goArgs...)
		},
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
