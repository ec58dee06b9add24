package usecase

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/talentsift/talentsift/internal/domain"
)

// CandidateDetail is the read model for one candidate: the row itself plus
// the portfolio record when one exists.
type CandidateDetail struct {
	Candidate domain.Candidate  `json:"candidate"`
	Portfolio *domain.Portfolio `json:"portfolio,omitempty"`
}

// CandidateService reads and deletes candidates along with their derived
// state in the vector index.
type CandidateService struct {
	Candidates domain.CandidateRepository
	Resumes    domain.ResumeRepository
	Portfolios domain.PortfolioRepository
	Index      domain.VectorIndex
}

func NewCandidateService(cands domain.CandidateRepository, resumes domain.ResumeRepository, portfolios domain.PortfolioRepository, index domain.VectorIndex) *CandidateService {
	return &CandidateService{Candidates: cands, Resumes: resumes, Portfolios: portfolios, Index: index}
}

// Get returns the candidate and, when present, their portfolio.
func (s *CandidateService) Get(ctx context.Context, id string) (CandidateDetail, error) {
	cand, err := s.Candidates.Get(ctx, id)
	if err != nil {
		return CandidateDetail{}, fmt.Errorf("op=candidates.get: %w", err)
	}
	detail := CandidateDetail{Candidate: cand}
	portfolio, err := s.Portfolios.GetByCandidate(ctx, id)
	switch {
	case err == nil:
		detail.Portfolio = &portfolio
	case isNotFound(err):
		// No portfolio links ever surfaced for this candidate.
	default:
		return CandidateDetail{}, fmt.Errorf("op=candidates.portfolio: %w", err)
	}
	return detail, nil
}

// Delete removes the candidate row and every vector point derived from their
// resumes. Index deletes are best-effort: a failed point delete is logged and
// the row delete proceeds, since ranking skips points whose candidate row is
// gone.
func (s *CandidateService) Delete(ctx context.Context, id string) error {
	if _, err := s.Candidates.Get(ctx, id); err != nil {
		return fmt.Errorf("op=candidates.delete: %w", err)
	}
	resumes, err := s.Resumes.ListByCandidate(ctx, id)
	if err != nil {
		return fmt.Errorf("op=candidates.resumes: %w", err)
	}
	for _, res := range resumes {
		if err := s.Index.Delete(ctx, resumePointPrefix+res.ID); err != nil {
			slog.Warn("vector point delete failed",
				slog.String("candidate_id", id),
				slog.String("resume_id", res.ID),
				slog.Any("error", err))
		}
	}
	if err := s.Candidates.Delete(ctx, id); err != nil {
		return fmt.Errorf("op=candidates.delete: %w", err)
	}
	return nil
}
