package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the kv_entries table.
type Entry struct {
	Key       string    `gorm:"type:varchar(191);primaryKey"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time  `gorm:"not null"`
}

func (Entry) TableName() string { return "kv_entries" }

type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) AutoMigrate() error {
	return g.db.AutoMigrate(&Entry{})
}

func (g *Gorm) Get(ctx context.Context, key string) (string, error) {
	var e Entry
	// key is reserved in MySQL; clause.Eq lets the dialect quote it
	err := g.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("kv get: %w", err)
	}
	if e.ExpiresAt != nil && !time.Now().UTC().Before(*e.ExpiresAt) {
		return "", ErrNotFound
	}
	return e.Value, nil
}

func (g *Gorm) Set(ctx context.Context, key, value string) error {
	return g.upsert(ctx, Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()})
}

// SetWithTTL stores an expiry time; expired rows read as missing and are
// overwritten by the next Set.
func (g *Gorm) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	return g.upsert(ctx, Entry{Key: key, Value: value, ExpiresAt: &exp, UpdatedAt: now})
}

func (g *Gorm) upsert(ctx context.Context, e Entry) error {
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (g *Gorm) Delete(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Delete(&Entry{Key: key}).Error; err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}
