package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/talentsift/talentsift/internal/domain"
)

// CandidateRepo persists and loads candidates from PostgreSQL.
type CandidateRepo struct{ Pool PgxPool }

// NewCandidateRepo constructs a CandidateRepo with the given pool.
func NewCandidateRepo(p PgxPool) *CandidateRepo { return &CandidateRepo{Pool: p} }

// Create inserts a new candidate and returns its id.
func (r *CandidateRepo) Create(ctx domain.Context, c domain.Candidate) (string, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.Create")
	defer span.End()
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO candidates (id, job_id, name, email, skills, experience, education, score, embedding, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.Pool.Exec(ctx, q, id, c.JobID, c.Name, c.Email, c.Skills, c.Experience, c.Education, c.Score, c.Embedding, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=candidate.create: %w", err)
	}
	return id, nil
}

const candidateColumns = `id, job_id, name, email, skills, experience, education, score, embedding, created_at`

func scanCandidate(row pgx.Row) (domain.Candidate, error) {
	var c domain.Candidate
	err := row.Scan(&c.ID, &c.JobID, &c.Name, &c.Email, &c.Skills, &c.Experience, &c.Education, &c.Score, &c.Embedding, &c.CreatedAt)
	return c, err
}

// Get loads a candidate by id.
func (r *CandidateRepo) Get(ctx domain.Context, id string) (domain.Candidate, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.Get")
	defer span.End()
	row := r.Pool.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id=$1`, id)
	c, err := scanCandidate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", domain.ErrNotFound)
		}
		return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", err)
	}
	return c, nil
}

// ListByJob returns all candidates of a job ordered by creation time.
func (r *CandidateRepo) ListByJob(ctx domain.Context, jobID string) ([]domain.Candidate, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.ListByJob")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE job_id=$1 ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("op=candidate.list_by_job: %w", err)
	}
	defer rows.Close()
	var out []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("op=candidate.list_by_job: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=candidate.list_by_job: %w", err)
	}
	return out, nil
}

// SetEmbedding attaches the resume embedding to a candidate.
func (r *CandidateRepo) SetEmbedding(ctx domain.Context, id string, embedding []float32) error {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.SetEmbedding")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE candidates SET embedding=$2 WHERE id=$1`, id, embedding)
	if err != nil {
		return fmt.Errorf("op=candidate.set_embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=candidate.set_embedding: %w", domain.ErrNotFound)
	}
	return nil
}

// UpdateScore persists the latest ranking similarity for a candidate.
// Scores are on the canonical [0,1] scale.
func (r *CandidateRepo) UpdateScore(ctx domain.Context, id string, score float64) error {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.UpdateScore")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE candidates SET score=$2 WHERE id=$1`, id, score)
	if err != nil {
		return fmt.Errorf("op=candidate.update_score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=candidate.update_score: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a candidate. Owned resume and portfolio rows go with it via
// ON DELETE CASCADE; vector index points are the caller's responsibility.
func (r *CandidateRepo) Delete(ctx domain.Context, id string) error {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.Delete")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM candidates WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("op=candidate.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=candidate.delete: %w", domain.ErrNotFound)
	}
	return nil
}
