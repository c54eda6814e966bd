package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"sheetbridge/core/config"
	"sheetbridge/core/database"
	"sheetbridge/core/logger"
	"sheetbridge/core/remote"
	"sheetbridge/feature/sheets"
	"sheetbridge/feature/sheets/batch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// applyCmd executes a file of mutation intents as a one-shot run.
var applyCmd = &cobra.Command{
	Use:   "apply <intents.json>",
	Short: "Compile and execute a file of mutation intents",
	Long: `Reads a JSON array of mutation intents from a file, compiles them
into ordered batches, executes them against the remote, and prints the
execution report as JSON. Exits non-zero if any batch failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	RootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read intents file: %w", err)
	}
	var intents []batch.Intent
	if err := json.Unmarshal(data, &intents); err != nil {
		return fmt.Errorf("failed to parse intents file: %w", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Journal is optional for one-shot runs too.
	var db *gorm.DB
	if conn, err := database.Connect(cfg.Database); err != nil {
		l.Warn("Optional journal database connection failed", zap.Error(err))
	} else {
		db = conn
	}

	client := remote.NewClient(cfg.Remote)
	svc, err := sheets.BuildService(client, nil, db, l,
		cfg.Sheets, cfg.Quota, cfg.Cache, cfg.Remote, cfg.Storage.Bucket)
	if err != nil {
		return fmt.Errorf("failed to build sheets service: %w", err)
	}

	report, err := svc.Apply(ctx, intents)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d batches failed",
			report.Failed, report.Succeeded+report.Failed+report.Skipped)
	}
	return nil
}
