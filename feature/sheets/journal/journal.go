package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one executed batch, keyed by its content fingerprint. The
// journal answers "what did we actually apply, when, and after how many
// attempts". It is an audit trail, not a replay gate.
type Entry struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Fingerprint string    `gorm:"size:64;uniqueIndex" json:"fingerprint"`
	ResourceID  string    `gorm:"size:128;index" json:"resource_id"`
	Seq         int       `json:"seq"`
	OpCount     int       `json:"op_count"`
	Attempts    int       `json:"attempts"`
	Status      string    `gorm:"size:16" json:"status"`
	AppliedAt   time.Time `json:"applied_at"`
}

// TableName sets the journal table name.
func (Entry) TableName() string { return "applied_batches" }

// Store persists journal entries.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store and migrates the journal table.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal table: %w", err)
	}
	return &Store{db: db}, nil
}

// Record upserts an entry by fingerprint. Re-running an identical batch
// refreshes its row instead of duplicating it.
func (s *Store) Record(ctx context.Context, e Entry) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"resource_id", "seq", "op_count", "attempts", "status", "applied_at",
		}),
	}).Create(&e)

	if result.Error != nil {
		return fmt.Errorf("failed to record journal entry: %w", result.Error)
	}
	return nil
}

// ForResource returns the journal entries for one resource, newest first.
func (s *Store) ForResource(ctx context.Context, resourceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []Entry
	result := s.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("applied_at DESC").
		Limit(limit).
		Find(&entries)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to query journal: %w", result.Error)
	}
	return entries, nil
}
