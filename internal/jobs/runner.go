package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hanzhi-dmd/companion/internal/ai"
	"github.com/hanzhi-dmd/companion/internal/consult"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

// Runner executes one job at a time; cmd/worker runs several in parallel.
type Runner struct {
	repo     *Repo
	registry *ai.Registry
	log      *logger.Logger
}

func NewRunner(repo *Repo, registry *ai.Registry, log *logger.Logger) *Runner {
	return &Runner{repo: repo, registry: registry, log: logger.OrNop(log).With("component", "jobs.runner")}
}

// Handle runs the job with id. A job that is no longer queued is skipped
// without error. Errors mark the job failed and are returned so the
// delivery can be dead-lettered.
func (r *Runner) Handle(ctx context.Context, id string) error {
	start := time.Now()

	claimed, err := r.repo.MarkRunning(ctx, id)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if !claimed {
		r.log.Info("job not queued, skipping", "job", id)
		return nil
	}

	j, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	analysis, err := r.analyze(ctx, j)
	if err != nil {
		_ = r.repo.MarkFailed(ctx, id, err.Error())
		r.log.Warn("job failed", "job", id, "cost", time.Since(start), "err", err)
		return err
	}
	if err := r.repo.MarkSucceeded(ctx, id, analysis); err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}

	if total := time.Since(start); total > 2*time.Second {
		r.log.Info("job_timing", "job", id, "total", total)
	}
	return nil
}

func (r *Runner) analyze(ctx context.Context, j *AnalysisJob) (string, error) {
	entity, err := content.Decode(j.Kind, j.Entity)
	if err != nil {
		return "", err
	}
	var p profile.Profile
	if err := json.Unmarshal(j.Profile, &p); err != nil {
		return "", fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	provider, err := r.registry.Get(ctx, j.Provider, j.Model)
	if err != nil {
		return "", err
	}
	engine := consult.NewEngine(provider, consult.NewAssembler(consult.ParseLocale(j.Locale)), r.log)
	return engine.Analyze(ctx, entity, p), nil
}
