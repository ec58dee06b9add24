package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"log/slog"

	"github.com/talentsift/talentsift/internal/adapter/observability"
	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/domain"
)

const (
	defaultTopK = 20
	maxTopK     = 100

	resumePointPrefix = "resume-"
	jobPointPrefix    = "job-"
)

// RankOptions controls one ranking invocation.
type RankOptions struct {
	// TopK bounds the result size; zero means defaultTopK, values above
	// maxTopK are capped.
	TopK int
	// MinScore filters out candidates whose similarity falls below it;
	// filtered entries are excluded entirely, not deprioritized.
	MinScore float64
	// PersistScores writes each candidate's similarity back to the row.
	PersistScores bool
}

// RankedCandidate is one row of a ranking result, best first.
type RankedCandidate struct {
	Candidate      domain.Candidate      `json:"candidate"`
	Similarity     float64               `json:"similarity"`
	PortfolioScore *float64              `json:"portfolio_score,omitempty"`
	BlendedScore   float64               `json:"blended_score"`
	ResumeID       string                `json:"resume_id"`
	HasPortfolio   bool                  `json:"has_portfolio"`
	Recommendation domain.Recommendation `json:"recommendation,omitempty"`
}

// RankService scores a job's candidates by semantic similarity between the
// job embedding and each candidate's resume vectors, blended with the
// portfolio analysis where one has completed.
type RankService struct {
	Jobs       domain.JobRepository
	Candidates domain.CandidateRepository
	Resumes    domain.ResumeRepository
	Portfolios domain.PortfolioRepository
	Index      domain.VectorIndex
	Weights    config.RankWeights
}

// NewRankService constructs a RankService with the given blend weights.
func NewRankService(jobs domain.JobRepository, cands domain.CandidateRepository, resumes domain.ResumeRepository, portfolios domain.PortfolioRepository, index domain.VectorIndex, weights config.RankWeights) *RankService {
	return &RankService{Jobs: jobs, Candidates: cands, Resumes: resumes, Portfolios: portfolios, Index: index, Weights: weights}
}

// Rank returns the job's candidates ordered by blended score descending, ties
// broken by candidate id ascending. Ranking reads the stored vectors only; it
// never re-embeds, so ranking the same unchanged job twice yields identical
// output.
func (s *RankService) Rank(ctx context.Context, jobID string, opts RankOptions) ([]RankedCandidate, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	if opts.MinScore < 0 || opts.MinScore > 1 {
		return nil, fmt.Errorf("%w: min_score must be within [0,1]", domain.ErrInvalidArgument)
	}

	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("op=rank.job: %w", err)
	}
	if len(job.Embedding) == 0 {
		return nil, fmt.Errorf("%w: job %s has no embedding yet", domain.ErrConflict, jobID)
	}

	// Over-fetch: multiple resumes can collapse onto one candidate, and
	// matches from other jobs are filtered out below.
	matches, err := s.Index.Query(ctx, job.Embedding, maxTopK)
	if err != nil {
		return nil, fmt.Errorf("op=rank.query: %w", err)
	}

	type hit struct {
		resumeID   string
		similarity float64
	}
	best := make(map[string]hit) // candidate id -> best resume hit
	for _, m := range matches {
		resumeID, ok := strings.CutPrefix(m.ID, resumePointPrefix)
		if !ok {
			continue
		}
		if mj, _ := m.Payload["job_id"].(string); mj != jobID {
			continue
		}
		candID, _ := m.Payload["candidate_id"].(string)
		if candID == "" {
			continue
		}
		sim := clamp01(m.Score)
		if prev, ok := best[candID]; !ok || sim > prev.similarity {
			best[candID] = hit{resumeID: resumeID, similarity: sim}
		}
	}

	ranked := make([]RankedCandidate, 0, len(best))
	for candID, h := range best {
		cand, err := s.Candidates.Get(ctx, candID)
		if err != nil {
			// A stale index point for a deleted candidate is skipped, any
			// other failure aborts the run.
			if isNotFound(err) {
				slog.Warn("stale vector point skipped", slog.String("candidate_id", candID))
				continue
			}
			return nil, fmt.Errorf("op=rank.candidate: %w", err)
		}

		rc := RankedCandidate{
			Candidate:    cand,
			Similarity:   h.similarity,
			BlendedScore: h.similarity,
			ResumeID:     h.resumeID,
		}
		portfolio, err := s.Portfolios.GetByCandidate(ctx, candID)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("op=rank.portfolio: %w", err)
		}
		if err == nil && portfolio.AnalyzedAt != nil && portfolio.Analysis != nil {
			ps := clamp01(portfolio.Analysis.OverallScore / 10)
			rc.PortfolioScore = &ps
			rc.HasPortfolio = true
			rc.Recommendation = portfolio.Analysis.Recommendation
			rc.BlendedScore = clamp01(s.Weights.Similarity*h.similarity + s.Weights.Portfolio*ps)
		}
		if rc.Similarity < opts.MinScore {
			continue
		}
		ranked = append(ranked, rc)
		observability.SimilarityHistogram.Observe(h.similarity)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].BlendedScore != ranked[j].BlendedScore {
			return ranked[i].BlendedScore > ranked[j].BlendedScore
		}
		return ranked[i].Candidate.ID < ranked[j].Candidate.ID
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	if opts.PersistScores {
		for _, rc := range ranked {
			if err := s.Candidates.UpdateScore(ctx, rc.Candidate.ID, rc.Similarity); err != nil {
				slog.Warn("score persist failed",
					slog.String("candidate_id", rc.Candidate.ID),
					slog.Any("error", err))
			}
		}
	}
	return ranked, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
