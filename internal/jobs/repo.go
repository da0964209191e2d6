package jobs

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(&AnalysisJob{})
}

func (r *Repo) GetByID(ctx context.Context, id string) (*AnalysisJob, error) {
	var j AnalysisJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// GetForUser hides other users' jobs behind gorm.ErrRecordNotFound.
func (r *Repo) GetForUser(ctx context.Context, username, id string) (*AnalysisJob, error) {
	var j AnalysisJob
	if err := r.db.WithContext(ctx).
		Where("id = ? AND username = ?", id, username).
		First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ListByUser returns a user's jobs newest first.
func (r *Repo) ListByUser(ctx context.Context, username string, limit int) ([]AnalysisJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []AnalysisJob
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRunning moves a queued job to running. It reports false when the job
// was not queued, so redelivered messages do not run twice.
func (r *Repo) MarkRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&AnalysisJob{}).
		Where("id = ? AND status = ?", id, StatusQueued).
		Update("status", StatusRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) MarkSucceeded(ctx context.Context, id, result string) error {
	return r.db.WithContext(ctx).Model(&AnalysisJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": StatusSucceeded,
			"result": result,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.db.WithContext(ctx).Model(&AnalysisJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": StatusFailed,
			"error":  errMsg,
			"result": nil,
		}).Error
}

// Requeue puts a failed job back to queued for another attempt.
func (r *Repo) Requeue(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&AnalysisJob{}).
		Where("id = ? AND status = ?", id, StatusFailed).
		Updates(map[string]any{
			"status": StatusQueued,
			"error":  nil,
		}).Error
}

func (r *Repo) getByIdempotencyKey(ctx context.Context, username, key string) (*AnalysisJob, error) {
	var j AnalysisJob
	if err := r.db.WithContext(ctx).
		Where("username = ? AND idempotency_key = ?", username, key).
		First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateOrGetExisting creates job, or returns the job already stored under the
// same (username, idempotency key). created is false in the second case.
func (r *Repo) CreateOrGetExisting(ctx context.Context, job *AnalysisJob) (*AnalysisJob, bool, error) {
	if job.IdempotencyKey != nil && *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
	}
	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}
	if job.IdempotencyKey == nil {
		return nil, false, err
	}

	existing, getErr := r.getByIdempotencyKey(ctx, job.Username, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
