package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/app"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "cmgctl",
		Short:         "Administer the CMG construction control service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./configs/config.yaml)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			db, err := app.InitDatabase(cfg.Database, false)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := db.AutoMigrate(entity.All()...); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("Schema up to date", zap.Int("tables", len(entity.All())))
			return nil
		},
	}

	var outDir string
	exportCmd := &cobra.Command{
		Use:   "export-progress <swo-id>",
		Short: "Write the progress workbook of an SWO to disk",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), configPath, args[0], outDir)
		},
	}
	exportCmd.Flags().StringVar(&outDir, "out", ".", "Output directory")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the cmgctl version",
		Run:   func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(migrateCmd, exportCmd, versionCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, workflow.ErrRecordNotFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func load(configPath string) (*config.Config, *zap.Logger, error) {
	_ = godotenv.Load()
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := app.InitLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runExport(ctx context.Context, configPath, swoID, outDir string) error {
	cfg, logger, err := load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := app.InitDatabase(cfg.Database, false)
	if err != nil {
		return err
	}
	defer closeDB(db)

	// offline use: no redis, no blob store
	svc := service.NewServices(service.Deps{
		Stores:   service.StoresFrom(repository.NewRepositories(db)),
		Bus:      sse.NewLocalBus(0),
		Logger:   logger,
		Location: cfg.Location(),
	}, nil, cfg, nil, nil, nil)

	f, name, err := svc.Export.ProgressWorkbook(ctx, swoID)
	if err != nil {
		return err
	}
	defer f.Close()

	path := filepath.Join(outDir, name)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	logger.Info("Progress exported", zap.String("swo_id", swoID), zap.String("file", path))
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
