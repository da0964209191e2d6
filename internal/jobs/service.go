package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

type Service struct {
	repo     *Repo
	pub      Publisher
	provider string
	model    string
	locale   string
	log      *logger.Logger
}

// NewService records jobs against provider/model; the worker resolves them
// through its registry.
func NewService(repo *Repo, pub Publisher, provider, model, locale string, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		pub:      pub,
		provider: provider,
		model:    model,
		locale:   locale,
		log:      logger.OrNop(log).With("component", "jobs"),
	}
}

type EnqueueInput struct {
	Username       string
	Entity         content.Analyzable
	Profile        profile.Profile
	IdempotencyKey string
}

// Enqueue stores a queued job and publishes its id. Repeating a request with
// the same idempotency key returns the first job without publishing again.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (*AnalysisJob, bool, error) {
	entity, err := json.Marshal(in.Entity)
	if err != nil {
		return nil, false, fmt.Errorf("encode entity: %w", err)
	}
	prof, err := json.Marshal(in.Profile)
	if err != nil {
		return nil, false, fmt.Errorf("encode profile: %w", err)
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}

	job := &AnalysisJob{
		ID:       id,
		Username: in.Username,
		Kind:     in.Entity.Kind(),
		EntityID: in.Entity.EntityID(),
		Entity:   entity,
		Profile:  prof,
		Locale:   s.locale,
		Provider: s.provider,
		Model:    s.model,
		Status:   StatusQueued,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		job.IdempotencyKey = &key
	}

	stored, created, err := s.repo.CreateOrGetExisting(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return stored, false, nil
	}

	if err := s.pub.PublishJob(ctx, stored.ID); err != nil {
		_ = s.repo.MarkFailed(ctx, stored.ID, "publish failed: "+err.Error())
		s.log.Error("publish job failed", "job", stored.ID, "err", err)
		return nil, false, fmt.Errorf("publish job: %w", err)
	}
	s.log.Info("job queued", "job", stored.ID, "kind", stored.Kind, "entity", stored.EntityID, "username", stored.Username)
	return stored, true, nil
}

func (s *Service) Get(ctx context.Context, username, id string) (*AnalysisJob, error) {
	return s.repo.GetForUser(ctx, username, id)
}

func (s *Service) List(ctx context.Context, username string, limit int) ([]AnalysisJob, error) {
	return s.repo.ListByUser(ctx, username, limit)
}
