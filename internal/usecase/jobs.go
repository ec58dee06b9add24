package usecase

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/talentsift/talentsift/internal/domain"
	"github.com/talentsift/talentsift/pkg/textx"
)

// JobService creates and reads jobs. Creation embeds the description
// best-effort so that ranking is ready before the first resume batch; if the
// embedding provider is down the job is still created and the first pipeline
// run backfills the vector.
type JobService struct {
	Jobs  domain.JobRepository
	AI    domain.AIClient
	Index domain.VectorIndex
}

func NewJobService(jobs domain.JobRepository, aiClient domain.AIClient, index domain.VectorIndex) *JobService {
	return &JobService{Jobs: jobs, AI: aiClient, Index: index}
}

// Create validates and stores a job, then tries to embed and index it.
func (s *JobService) Create(ctx context.Context, title, description string) (domain.Job, error) {
	title = strings.TrimSpace(title)
	description = textx.SanitizeText(description)
	if title == "" || description == "" {
		return domain.Job{}, fmt.Errorf("%w: title and description are required", domain.ErrInvalidArgument)
	}
	job := domain.Job{Title: title, Description: description}
	id, err := s.Jobs.Create(ctx, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=jobs.create: %w", err)
	}
	job.ID = id

	text := textx.JoinNonEmpty("\n", title, description)
	vecs, err := s.AI.Embed(ctx, []string{text})
	if err != nil {
		slog.Warn("job embedding deferred", slog.String("job_id", id), slog.Any("error", err))
		return s.Jobs.Get(ctx, id)
	}
	if err := s.Jobs.SetEmbedding(ctx, id, vecs[0]); err != nil {
		slog.Warn("job embedding store failed", slog.String("job_id", id), slog.Any("error", err))
		return s.Jobs.Get(ctx, id)
	}
	if err := s.Index.Upsert(ctx, jobPointPrefix+id, vecs[0], map[string]any{
		"kind":   "job",
		"job_id": id,
	}); err != nil {
		slog.Warn("job index upsert failed", slog.String("job_id", id), slog.Any("error", err))
	}
	return s.Jobs.Get(ctx, id)
}

// Get returns one job by id.
func (s *JobService) Get(ctx context.Context, id string) (domain.Job, error) {
	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=jobs.get: %w", err)
	}
	return job, nil
}
