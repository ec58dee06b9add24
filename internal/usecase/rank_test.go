package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/domain"
)

func newRankFixture() (*RankService, *mockJobRepo, *mockCandidateRepo, *mockPortfolioRepo, *mockVectorIndex) {
	jobs := &mockJobRepo{}
	cands := &mockCandidateRepo{}
	resumes := &mockResumeRepo{}
	portfolios := &mockPortfolioRepo{}
	index := &mockVectorIndex{}
	svc := NewRankService(jobs, cands, resumes, portfolios, index, config.DefaultRankWeights())
	return svc, jobs, cands, portfolios, index
}

func jobWithEmbedding(id string) domain.Job {
	return domain.Job{ID: id, Title: "Backend Engineer", Embedding: []float32{0.1, 0.2, 0.3}}
}

func resumeMatch(resumeID, jobID, candID string, score float64) domain.Match {
	return domain.Match{
		ID:    "resume-" + resumeID,
		Score: score,
		Payload: map[string]any{
			"kind":         "resume",
			"id":           resumeID,
			"job_id":       jobID,
			"candidate_id": candID,
		},
	}
}

func TestRankOrdersByBlendedScore(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 0.90),
		resumeMatch("r2", "job-1", "cand-b", 0.70),
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a", JobID: "job-1"}, nil)
	cands.On("Get", mock.Anything, "cand-b").Return(domain.Candidate{ID: "cand-b", JobID: "job-1"}, nil)
	portfolios.On("GetByCandidate", mock.Anything, "cand-a").Return(domain.Portfolio{}, domain.ErrNotFound)
	analyzedAt := time.Now()
	portfolios.On("GetByCandidate", mock.Anything, "cand-b").Return(domain.Portfolio{
		CandidateID: "cand-b",
		Analysis:    &domain.PortfolioAnalysis{OverallScore: 9},
		AnalyzedAt:  &analyzedAt,
	}, nil)

	ranked, err := svc.Rank(context.Background(), "job-1", RankOptions{})
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// cand-a rides similarity alone; cand-b blends 0.6*0.70 + 0.4*0.90.
	assert.Equal(t, "cand-a", ranked[0].Candidate.ID)
	assert.InDelta(t, 0.90, ranked[0].BlendedScore, 1e-9)
	assert.False(t, ranked[0].HasPortfolio)
	assert.Equal(t, "cand-b", ranked[1].Candidate.ID)
	assert.InDelta(t, 0.78, ranked[1].BlendedScore, 1e-9)
	require.NotNil(t, ranked[1].PortfolioScore)
	assert.InDelta(t, 0.90, *ranked[1].PortfolioScore, 1e-9)
}

func TestRankIsDeterministic(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 0.8),
		resumeMatch("r2", "job-1", "cand-b", 0.6),
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	cands.On("Get", mock.Anything, "cand-b").Return(domain.Candidate{ID: "cand-b"}, nil)
	portfolios.On("GetByCandidate", mock.Anything, mock.Anything).Return(domain.Portfolio{}, domain.ErrNotFound)

	first, err := svc.Rank(context.Background(), "job-1", RankOptions{})
	require.NoError(t, err)

	svc2, jobs2, cands2, portfolios2, index2 := newRankFixture()
	jobs2.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index2.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 0.8),
		resumeMatch("r2", "job-1", "cand-b", 0.6),
	}, nil)
	cands2.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	cands2.On("Get", mock.Anything, "cand-b").Return(domain.Candidate{ID: "cand-b"}, nil)
	portfolios2.On("GetByCandidate", mock.Anything, mock.Anything).Return(domain.Portfolio{}, domain.ErrNotFound)

	second, err := svc2.Rank(context.Background(), "job-1", RankOptions{})
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Candidate.ID, second[i].Candidate.ID)
		assert.Equal(t, first[i].BlendedScore, second[i].BlendedScore)
	}
}

func TestRankClampsScoresIntoUnitRange(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 1.3),
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	analyzedAt := time.Now()
	portfolios.On("GetByCandidate", mock.Anything, "cand-a").Return(domain.Portfolio{
		Analysis:   &domain.PortfolioAnalysis{OverallScore: 10},
		AnalyzedAt: &analyzedAt,
	}, nil)

	ranked, err := svc.Rank(context.Background(), "job-1", RankOptions{})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.LessOrEqual(t, ranked[0].Similarity, 1.0)
	assert.LessOrEqual(t, ranked[0].BlendedScore, 1.0)
}

func TestRankBreaksTiesByCandidateID(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r2", "job-1", "cand-b", 0.75),
		resumeMatch("r1", "job-1", "cand-a", 0.75),
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	cands.On("Get", mock.Anything, "cand-b").Return(domain.Candidate{ID: "cand-b"}, nil)
	portfolios.On("GetByCandidate", mock.Anything, mock.Anything).Return(domain.Portfolio{}, domain.ErrNotFound)

	ranked, err := svc.Rank(context.Background(), "job-1", RankOptions{})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "cand-a", ranked[0].Candidate.ID)
	assert.Equal(t, "cand-b", ranked[1].Candidate.ID)
}

func TestRankFiltersByMinScoreAndOtherJobs(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 0.9),
		resumeMatch("r2", "job-1", "cand-b", 0.3),
		resumeMatch("r3", "job-other", "cand-c", 0.95),
		{ID: "job-job-1", Score: 0.99, Payload: map[string]any{"kind": "job", "job_id": "job-1"}},
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	cands.On("Get", mock.Anything, "cand-b").Return(domain.Candidate{ID: "cand-b"}, nil)
	portfolios.On("GetByCandidate", mock.Anything, mock.Anything).Return(domain.Portfolio{}, domain.ErrNotFound)

	ranked, err := svc.Rank(context.Background(), "job-1", RankOptions{MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "cand-a", ranked[0].Candidate.ID)
	cands.AssertNotCalled(t, "Get", mock.Anything, "cand-c")
}

func TestRankKeepsBestResumePerCandidate(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 0.6),
		resumeMatch("r2", "job-1", "cand-a", 0.8),
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	portfolios.On("GetByCandidate", mock.Anything, "cand-a").Return(domain.Portfolio{}, domain.ErrNotFound)

	ranked, err := svc.Rank(context.Background(), "job-1", RankOptions{})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "r2", ranked[0].ResumeID)
	assert.InDelta(t, 0.8, ranked[0].Similarity, 1e-9)
}

func TestRankPersistsSimilarityNotBlend(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 0.7),
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	analyzedAt := time.Now()
	portfolios.On("GetByCandidate", mock.Anything, "cand-a").Return(domain.Portfolio{
		Analysis:   &domain.PortfolioAnalysis{OverallScore: 9},
		AnalyzedAt: &analyzedAt,
	}, nil)
	cands.On("UpdateScore", mock.Anything, "cand-a", 0.7).Return(nil)

	_, err := svc.Rank(context.Background(), "job-1", RankOptions{PersistScores: true})
	require.NoError(t, err)
	cands.AssertCalled(t, "UpdateScore", mock.Anything, "cand-a", 0.7)
}

func TestRankIgnoresUnanalyzedPortfolio(t *testing.T) {
	t.Parallel()
	svc, jobs, cands, portfolios, index := newRankFixture()

	jobs.On("Get", mock.Anything, "job-1").Return(jobWithEmbedding("job-1"), nil)
	index.On("Query", mock.Anything, mock.Anything, maxTopK).Return([]domain.Match{
		resumeMatch("r1", "job-1", "cand-a", 0.7),
	}, nil)
	cands.On("Get", mock.Anything, "cand-a").Return(domain.Candidate{ID: "cand-a"}, nil)
	// Links stored, but no analysis has completed yet.
	portfolios.On("GetByCandidate", mock.Anything, "cand-a").Return(domain.Portfolio{
		CandidateID: "cand-a",
		GitHubURL:   "https://github.com/someone",
	}, nil)

	ranked, err := svc.Rank(context.Background(), "job-1", RankOptions{})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.False(t, ranked[0].HasPortfolio)
	assert.InDelta(t, 0.7, ranked[0].BlendedScore, 1e-9)
}

func TestRankRejectsBadInput(t *testing.T) {
	t.Parallel()

	svc, jobs, _, _, _ := newRankFixture()
	_, err := svc.Rank(context.Background(), "job-1", RankOptions{MinScore: 1.5})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	jobs.On("Get", mock.Anything, "job-1").Return(domain.Job{ID: "job-1"}, nil)
	_, err = svc.Rank(context.Background(), "job-1", RankOptions{})
	require.ErrorIs(t, err, domain.ErrConflict)
}
