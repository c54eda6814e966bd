package sheets

import (
	"context"

	"sheetbridge/core/cache"
	"sheetbridge/core/events"
	"sheetbridge/core/gate"
	"sheetbridge/core/quota"
	"sheetbridge/core/remote"
	"sheetbridge/core/storage"
	"sheetbridge/feature/sheets/batch"
	"sheetbridge/feature/sheets/diff"
	"sheetbridge/feature/sheets/journal"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the feature facade: it applies mutation intents through the
// batch compiler and detects drift through the diff engine, persisting the
// resulting snapshot as the next baseline.
type Service struct {
	compiler *batch.Compiler
	engine   *diff.Engine
	archive  *diff.Archive  // nil disables baseline persistence
	journal  *journal.Store // nil disables history
	logger   *zap.Logger
}

// NewService creates a service from pre-wired components.
func NewService(compiler *batch.Compiler, engine *diff.Engine, archive *diff.Archive, jnl *journal.Store, logger *zap.Logger) *Service {
	return &Service{
		compiler: compiler,
		engine:   engine,
		archive:  archive,
		journal:  jnl,
		logger:   logger,
	}
}

// BuildService wires the full pipeline from configuration. The gate, quota
// guard and artifact cache are created once here and shared between the
// compiler and the engine, so batch writes and diff reads count against the
// same limits. store and db are optional; passing nil disables baseline
// persistence and the journal respectively.
func BuildService(
	client remote.Client,
	store storage.Client,
	db *gorm.DB,
	logger *zap.Logger,
	cfg Config,
	quotaCfg quota.Config,
	cacheCfg cache.Config,
	remoteCfg remote.Config,
	bucket string,
) (*Service, error) {
	sink := events.NewZapSink(logger)
	g := gate.New(cfg.GateLimit())
	guard := quota.New(quotaCfg, sink)
	artifacts := cache.New(cacheCfg)

	var jnl *journal.Store
	if db != nil {
		var err error
		jnl, err = journal.NewStore(db)
		if err != nil {
			return nil, err
		}
	}

	var archive *diff.Archive
	if store != nil {
		archive = diff.NewArchive(store, bucket, cfg.SnapshotPrefix)
	}

	compiler := batch.NewCompiler(client, g, guard, artifacts, jnl, sink, batch.Config{
		BatchCap:    remoteCfg.BatchCap,
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.Backoff(),
	})
	engine := diff.NewEngine(client, g, guard, artifacts, sink, diff.Config{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.Backoff(),
	})

	return NewService(compiler, engine, archive, jnl, logger), nil
}

// EnsureArchive creates the snapshot bucket if an archive is attached.
func (s *Service) EnsureArchive(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	return s.archive.EnsureBucket(ctx)
}

// Apply compiles and executes the submitted intents.
func (s *Service) Apply(ctx context.Context, intents []batch.Intent) (*batch.ExecutionReport, error) {
	return s.compiler.Compile(ctx, intents)
}

// Diff compares the resource's current state against its archived baseline
// and, on success, stores the fresh snapshot as the new baseline. The first
// diff of a resource has no baseline and reports every unit as added.
func (s *Service) Diff(ctx context.Context, resourceID string) (diff.ChangeSet, *diff.Snapshot, error) {
	var baseline *diff.Snapshot
	if s.archive != nil {
		var err error
		baseline, err = s.archive.Load(ctx, resourceID)
		if err != nil {
			return nil, nil, err
		}
	}

	set, snap, err := s.engine.Diff(ctx, resourceID, baseline)
	if err != nil {
		return nil, nil, err
	}

	if s.archive != nil {
		// A failed save must not discard the computed change-set; the next
		// run simply diffs against the stale baseline again.
		if err := s.archive.Save(ctx, snap); err != nil {
			s.logger.Warn("Failed to persist snapshot baseline",
				zap.String("resource_id", resourceID), zap.Error(err))
		}
	}
	return set, snap, nil
}

// History returns the journal entries for one resource, newest first. It
// returns an empty slice when no journal is attached.
func (s *Service) History(ctx context.Context, resourceID string, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.ForResource(ctx, resourceID, limit)
}
