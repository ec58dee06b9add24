package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/talentsift/talentsift/internal/domain"
)

// ResumeRepo persists and loads resumes from PostgreSQL. The structured
// extraction is stored as JSONB in parsed_data.
type ResumeRepo struct{ Pool PgxPool }

// NewResumeRepo constructs a ResumeRepo with the given pool.
func NewResumeRepo(p PgxPool) *ResumeRepo { return &ResumeRepo{Pool: p} }

// Create inserts a new resume and returns its id.
func (r *ResumeRepo) Create(ctx domain.Context, res domain.Resume) (string, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.Create")
	defer span.End()
	id := res.ID
	if id == "" {
		id = uuid.New().String()
	}
	parsed, err := json.Marshal(res.Parsed)
	if err != nil {
		return "", fmt.Errorf("op=resume.create: %w", err)
	}
	uploadedAt := res.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	q := `INSERT INTO resumes (id, candidate_id, file_url, parsed_text, parsed_data, uploaded_at) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, res.CandidateID, res.FileURL, res.ParsedText, parsed, uploadedAt); err != nil {
		return "", fmt.Errorf("op=resume.create: %w", err)
	}
	return id, nil
}

func scanResume(row pgx.Row) (domain.Resume, error) {
	var res domain.Resume
	var parsed []byte
	if err := row.Scan(&res.ID, &res.CandidateID, &res.FileURL, &res.ParsedText, &parsed, &res.UploadedAt); err != nil {
		return domain.Resume{}, err
	}
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &res.Parsed); err != nil {
			return domain.Resume{}, err
		}
	}
	return res, nil
}

const resumeColumns = `id, candidate_id, file_url, parsed_text, parsed_data, uploaded_at`

// Get loads a resume by id.
func (r *ResumeRepo) Get(ctx domain.Context, id string) (domain.Resume, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.Get")
	defer span.End()
	row := r.Pool.QueryRow(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id=$1`, id)
	res, err := scanResume(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Resume{}, fmt.Errorf("op=resume.get: %w", domain.ErrNotFound)
		}
		return domain.Resume{}, fmt.Errorf("op=resume.get: %w", err)
	}
	return res, nil
}

// LatestByCandidate returns the most recently uploaded resume of a candidate.
func (r *ResumeRepo) LatestByCandidate(ctx domain.Context, candidateID string) (domain.Resume, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.LatestByCandidate")
	defer span.End()
	row := r.Pool.QueryRow(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE candidate_id=$1 ORDER BY uploaded_at DESC, id LIMIT 1`, candidateID)
	res, err := scanResume(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Resume{}, fmt.Errorf("op=resume.latest: %w", domain.ErrNotFound)
		}
		return domain.Resume{}, fmt.Errorf("op=resume.latest: %w", err)
	}
	return res, nil
}

// ListByCandidate returns all resumes of a candidate, newest first.
func (r *ResumeRepo) ListByCandidate(ctx domain.Context, candidateID string) ([]domain.Resume, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.ListByCandidate")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE candidate_id=$1 ORDER BY uploaded_at DESC, id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("op=resume.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Resume
	for rows.Next() {
		res, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("op=resume.list: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=resume.list: %w", err)
	}
	return out, nil
}
