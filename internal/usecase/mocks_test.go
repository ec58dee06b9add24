package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/talentsift/talentsift/internal/domain"
)

type mockJobRepo struct{ mock.Mock }

func (m *mockJobRepo) Create(ctx context.Context, j domain.Job) (string, error) {
	args := m.Called(ctx, j)
	return args.String(0), args.Error(1)
}

func (m *mockJobRepo) Get(ctx context.Context, id string) (domain.Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *mockJobRepo) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

type mockCandidateRepo struct{ mock.Mock }

func (m *mockCandidateRepo) Create(ctx context.Context, c domain.Candidate) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *mockCandidateRepo) Get(ctx context.Context, id string) (domain.Candidate, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Candidate), args.Error(1)
}

func (m *mockCandidateRepo) ListByJob(ctx context.Context, jobID string) ([]domain.Candidate, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]domain.Candidate), args.Error(1)
}

func (m *mockCandidateRepo) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

func (m *mockCandidateRepo) UpdateScore(ctx context.Context, id string, score float64) error {
	args := m.Called(ctx, id, score)
	return args.Error(0)
}

func (m *mockCandidateRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockResumeRepo struct{ mock.Mock }

func (m *mockResumeRepo) Create(ctx context.Context, r domain.Resume) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

func (m *mockResumeRepo) Get(ctx context.Context, id string) (domain.Resume, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Resume), args.Error(1)
}

func (m *mockResumeRepo) LatestByCandidate(ctx context.Context, candidateID string) (domain.Resume, error) {
	args := m.Called(ctx, candidateID)
	return args.Get(0).(domain.Resume), args.Error(1)
}

func (m *mockResumeRepo) ListByCandidate(ctx context.Context, candidateID string) ([]domain.Resume, error) {
	args := m.Called(ctx, candidateID)
	return args.Get(0).([]domain.Resume), args.Error(1)
}

type mockPortfolioRepo struct{ mock.Mock }

func (m *mockPortfolioRepo) Upsert(ctx context.Context, p domain.Portfolio) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *mockPortfolioRepo) GetByCandidate(ctx context.Context, candidateID string) (domain.Portfolio, error) {
	args := m.Called(ctx, candidateID)
	return args.Get(0).(domain.Portfolio), args.Error(1)
}

func (m *mockPortfolioRepo) SaveAnalysis(ctx context.Context, candidateID string, a domain.PortfolioAnalysis, analyzedAt time.Time) error {
	args := m.Called(ctx, candidateID, a, analyzedAt)
	return args.Error(0)
}

type mockAIClient struct{ mock.Mock }

func (m *mockAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if v := args.Get(0); v != nil {
		return v.([][]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAIClient) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt, maxTokens)
	return args.String(0), args.Error(1)
}

type mockVectorIndex struct{ mock.Mock }

func (m *mockVectorIndex) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	args := m.Called(ctx, id, vector, payload)
	return args.Error(0)
}

func (m *mockVectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	args := m.Called(ctx, vector, topK)
	if v := args.Get(0); v != nil {
		return v.([]domain.Match), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVectorIndex) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockGitHubClient struct{ mock.Mock }

func (m *mockGitHubClient) ListRepos(ctx context.Context, user string) ([]domain.GitHubRepo, error) {
	args := m.Called(ctx, user)
	if v := args.Get(0); v != nil {
		return v.([]domain.GitHubRepo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGitHubClient) Languages(ctx context.Context, fullName string) (map[string]int64, error) {
	args := m.Called(ctx, fullName)
	if v := args.Get(0); v != nil {
		return v.(map[string]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGitHubClient) Readme(ctx context.Context, fullName string) (string, error) {
	args := m.Called(ctx, fullName)
	return args.String(0), args.Error(1)
}

func (m *mockGitHubClient) CommitActivity(ctx context.Context, fullName string) ([]domain.WeeklyCommits, error) {
	args := m.Called(ctx, fullName)
	if v := args.Get(0); v != nil {
		return v.([]domain.WeeklyCommits), args.Error(1)
	}
	return nil, args.Error(1)
}
