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

// PortfolioRepo persists portfolio records, one per candidate. The full
// analysis result is stored as JSONB in analysis_data; the scalar columns are
// a projection of it for querying.
type PortfolioRepo struct{ Pool PgxPool }

// NewPortfolioRepo constructs a PortfolioRepo with the given pool.
func NewPortfolioRepo(p PgxPool) *PortfolioRepo { return &PortfolioRepo{Pool: p} }

// Upsert creates or replaces the portfolio row keyed by candidate id and
// returns the row id. Link updates leave any existing analysis untouched.
func (r *PortfolioRepo) Upsert(ctx domain.Context, p domain.Portfolio) (string, error) {
	tracer := otel.Tracer("repo.portfolios")
	ctx, span := tracer.Start(ctx, "portfolios.Upsert")
	defer span.End()
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO portfolios (id, candidate_id, github_url, linkedin_url, website_url)
	VALUES ($1,$2,$3,$4,$5)
	ON CONFLICT (candidate_id)
	DO UPDATE SET github_url=EXCLUDED.github_url, linkedin_url=EXCLUDED.linkedin_url, website_url=EXCLUDED.website_url
	RETURNING id`
	row := r.Pool.QueryRow(ctx, q, id, p.CandidateID, p.GitHubURL, p.LinkedInURL, p.WebsiteURL)
	var got string
	if err := row.Scan(&got); err != nil {
		return "", fmt.Errorf("op=portfolio.upsert: %w", err)
	}
	return got, nil
}

// GetByCandidate loads the portfolio of a candidate.
func (r *PortfolioRepo) GetByCandidate(ctx domain.Context, candidateID string) (domain.Portfolio, error) {
	tracer := otel.Tracer("repo.portfolios")
	ctx, span := tracer.Start(ctx, "portfolios.GetByCandidate")
	defer span.End()
	q := `SELECT id, candidate_id, COALESCE(github_url,''), COALESCE(linkedin_url,''), COALESCE(website_url,''), analysis_data, analyzed_at
	FROM portfolios WHERE candidate_id=$1`
	row := r.Pool.QueryRow(ctx, q, candidateID)
	var p domain.Portfolio
	var analysis []byte
	if err := row.Scan(&p.ID, &p.CandidateID, &p.GitHubURL, &p.LinkedInURL, &p.WebsiteURL, &analysis, &p.AnalyzedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Portfolio{}, fmt.Errorf("op=portfolio.get: %w", domain.ErrNotFound)
		}
		return domain.Portfolio{}, fmt.Errorf("op=portfolio.get: %w", err)
	}
	if len(analysis) > 0 {
		var a domain.PortfolioAnalysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return domain.Portfolio{}, fmt.Errorf("op=portfolio.get: %w", err)
		}
		p.Analysis = &a
	}
	return p, nil
}

// SaveAnalysis stores a completed analysis and stamps analyzed_at in one
// statement. It never runs for a candidate without a portfolio row, so a
// missing row is reported as not found rather than upserted silently.
func (r *PortfolioRepo) SaveAnalysis(ctx domain.Context, candidateID string, a domain.PortfolioAnalysis, analyzedAt time.Time) error {
	tracer := otel.Tracer("repo.portfolios")
	ctx, span := tracer.Start(ctx, "portfolios.SaveAnalysis")
	defer span.End()
	blob, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("op=portfolio.save_analysis: %w", err)
	}
	q := `UPDATE portfolios SET
	overall_score=$2, resume_alignment=$3, recommendation=$4, technical_level=$5, summary=$6,
	strengths=$7, weaknesses=$8, concerns=$9, standout_qualities=$10, analysis_data=$11, analyzed_at=$12
	WHERE candidate_id=$1`
	tag, err := r.Pool.Exec(ctx, q, candidateID,
		a.OverallScore, a.ResumeAlignment, string(a.Recommendation), a.TechnicalLevel, a.Summary,
		a.Strengths, a.Weaknesses, a.Concerns, a.StandoutQualities, blob, analyzedAt.UTC())
	if err != nil {
		return fmt.Errorf("op=portfolio.save_analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=portfolio.save_analysis: %w", domain.ErrNotFound)
	}
	return nil
}
