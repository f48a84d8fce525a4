package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/labelsync/internal/domain/integration"
)

// LedgerEntryModel is the GORM model for ledger rows
type LedgerEntryModel struct {
	ID         uint      `gorm:"primaryKey"`
	StoreCode  string    `gorm:"size:32;not null;uniqueIndex:idx_ledger_store_document"`
	DocumentID string    `gorm:"size:255;not null;uniqueIndex:idx_ledger_store_document"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// PendingEntryModel is the GORM model for pending queue rows.
// Payload holds the record as JSON; ID preserves insertion order.
type PendingEntryModel struct {
	ID        uint      `gorm:"primaryKey"`
	StoreCode string    `gorm:"size:32;not null;index"`
	SKU       string    `gorm:"size:64;index"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PendingEntryModel) TableName() string {
	return "pending_entries"
}

// GormLedger implements Ledger on a SQL table
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger creates a SQL ledger. Call AutoMigrate first.
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// Ensure GormLedger implements Ledger
var _ integration.Ledger = (*GormLedger)(nil)

// Has reports whether id is ledgered for the store
func (l *GormLedger) Has(ctx context.Context, storeCode, id string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&LedgerEntryModel{}).
		Where("store_code = ? AND document_id = ?", storeCode, id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return count > 0, nil
}

// Insert adds id, ignoring duplicates
func (l *GormLedger) Insert(ctx context.Context, storeCode, id string) error {
	entry := &LedgerEntryModel{StoreCode: storeCode, DocumentID: id, CreatedAt: time.Now()}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Remove deletes id if present
func (l *GormLedger) Remove(ctx context.Context, storeCode, id string) error {
	err := l.db.WithContext(ctx).
		Where("store_code = ? AND document_id = ?", storeCode, id).
		Delete(&LedgerEntryModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove ledger entry: %w", err)
	}
	return nil
}

// List returns the store's ledger in byte-wise sorted order regardless of database collation
func (l *GormLedger) List(ctx context.Context, storeCode string) ([]string, error) {
	var ids []string
	err := l.db.WithContext(ctx).
		Model(&LedgerEntryModel{}).
		Where("store_code = ?", storeCode).
		Pluck("document_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// GormPendingQueue implements PendingQueue on a SQL table
type GormPendingQueue struct {
	db *gorm.DB
}

// NewGormPendingQueue creates a SQL pending queue. Call AutoMigrate first.
func NewGormPendingQueue(db *gorm.DB) *GormPendingQueue {
	return &GormPendingQueue{db: db}
}

// Ensure GormPendingQueue implements PendingQueue
var _ integration.PendingQueue = (*GormPendingQueue)(nil)

func toPendingModels(storeCode string, entries []integration.Record) ([]PendingEntryModel, error) {
	now := time.Now()
	models := make([]PendingEntryModel, 0, len(entries))
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pending entry: %w", err)
		}
		models = append(models, PendingEntryModel{
			StoreCode: storeCode,
			SKU:       e.SKU(),
			Payload:   string(payload),
			CreatedAt: now,
		})
	}
	return models, nil
}

// Append adds entries in order
func (q *GormPendingQueue) Append(ctx context.Context, storeCode string, entries ...integration.Record) error {
	if len(entries) == 0 {
		return nil
	}
	models, err := toPendingModels(storeCode, entries)
	if err != nil {
		return err
	}
	if err := q.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("failed to append pending entries: %w", err)
	}
	return nil
}

// List returns the store's entries in insertion order
func (q *GormPendingQueue) List(ctx context.Context, storeCode string) ([]integration.Record, error) {
	var models []PendingEntryModel
	err := q.db.WithContext(ctx).
		Where("store_code = ?", storeCode).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}

	entries := make([]integration.Record, 0, len(models))
	for _, m := range models {
		var rec integration.Record
		if err := json.Unmarshal([]byte(m.Payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode pending entry %d: %w", m.ID, err)
		}
		entries = append(entries, rec)
	}
	return entries, nil
}

// Replace swaps the store's queue for entries in one transaction
func (q *GormPendingQueue) Replace(ctx context.Context, storeCode string, entries []integration.Record) error {
	models, err := toPendingModels(storeCode, entries)
	if err != nil {
		return err
	}
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_code = ?", storeCode).Delete(&PendingEntryModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear pending entries: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.Create(&models).Error; err != nil {
			return fmt.Errorf("failed to write pending entries: %w", err)
		}
		return nil
	})
}
