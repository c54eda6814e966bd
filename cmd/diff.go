package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"sheetbridge/core/config"
	"sheetbridge/core/logger"
	"sheetbridge/core/remote"
	"sheetbridge/core/storage"
	"sheetbridge/feature/sheets"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var noBaseline bool

// diffCmd performs a one-shot diff of a resource against its archived baseline.
var diffCmd = &cobra.Command{
	Use:   "diff <resource-id>",
	Short: "Diff a resource against its archived baseline",
	Long: `Captures a fresh snapshot of the resource, compares it against the
archived baseline, prints the change-set as JSON, and stores the fresh
snapshot as the new baseline.

Examples:
  # Diff against the stored baseline
  sheetbridge diff 1A2b3C

  # Full capture without touching the archive (every unit reported as added)
  sheetbridge diff 1A2b3C --no-baseline`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&noBaseline, "no-baseline", false, "Skip the archive: do not load or store a baseline")
	RootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	resourceID := args[0]

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var store storage.Client
	if !noBaseline {
		store, err = storage.NewClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
	}

	client := remote.NewClient(cfg.Remote)
	svc, err := sheets.BuildService(client, store, nil, l,
		cfg.Sheets, cfg.Quota, cfg.Cache, cfg.Remote, cfg.Storage.Bucket)
	if err != nil {
		return fmt.Errorf("failed to build sheets service: %w", err)
	}
	if err := svc.EnsureArchive(ctx); err != nil {
		return fmt.Errorf("failed to prepare snapshot bucket: %w", err)
	}

	set, snap, err := svc.Diff(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	l.Info("Diff completed",
		zap.String("resource_id", resourceID),
		zap.Int("units", len(snap.Units)),
		zap.Int("changes", len(set)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}
