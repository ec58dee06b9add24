package httpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/domain"
	"github.com/talentsift/talentsift/internal/usecase"
)

// In-memory fakes backing the handler tests. They implement just enough of
// the repository ports for the endpoints under test.

type fakeJobs struct {
	mu   sync.Mutex
	rows map[string]domain.Job
	seq  int
}

func newFakeJobs() *fakeJobs { return &fakeJobs{rows: map[string]domain.Job{}} }

func (f *fakeJobs) Create(_ context.Context, j domain.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	j.ID = fmt.Sprintf("job-%d", f.seq)
	j.CreatedAt = time.Now().UTC()
	f.rows[j.ID] = j
	return j.ID, nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) SetEmbedding(_ context.Context, id string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Embedding = embedding
	f.rows[id] = j
	return nil
}

type fakeCandidates struct {
	mu   sync.Mutex
	rows map[string]domain.Candidate
	seq  int
}

func newFakeCandidates() *fakeCandidates { return &fakeCandidates{rows: map[string]domain.Candidate{}} }

func (f *fakeCandidates) Create(_ context.Context, c domain.Candidate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c.ID = fmt.Sprintf("cand-%d", f.seq)
	f.rows[c.ID] = c
	return c.ID, nil
}

func (f *fakeCandidates) Get(_ context.Context, id string) (domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return domain.Candidate{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCandidates) ListByJob(_ context.Context, jobID string) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Candidate
	for _, c := range f.rows {
		if c.JobID == jobID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCandidates) SetEmbedding(_ context.Context, id string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Embedding = embedding
	f.rows[id] = c
	return nil
}

func (f *fakeCandidates) UpdateScore(_ context.Context, id string, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Score = score
	f.rows[id] = c
	return nil
}

func (f *fakeCandidates) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeResumes struct {
	mu   sync.Mutex
	rows map[string]domain.Resume
	seq  int
}

func newFakeResumes() *fakeResumes { return &fakeResumes{rows: map[string]domain.Resume{}} }

func (f *fakeResumes) Create(_ context.Context, r domain.Resume) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	r.ID = fmt.Sprintf("res-%d", f.seq)
	r.UploadedAt = time.Now().UTC()
	f.rows[r.ID] = r
	return r.ID, nil
}

func (f *fakeResumes) Get(_ context.Context, id string) (domain.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return domain.Resume{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeResumes) LatestByCandidate(_ context.Context, candidateID string) (domain.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest domain.Resume
	found := false
	for _, r := range f.rows {
		if r.CandidateID == candidateID && (!found || r.UploadedAt.After(latest.UploadedAt)) {
			latest, found = r, true
		}
	}
	if !found {
		return domain.Resume{}, domain.ErrNotFound
	}
	return latest, nil
}

func (f *fakeResumes) ListByCandidate(_ context.Context, candidateID string) ([]domain.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Resume
	for _, r := range f.rows {
		if r.CandidateID == candidateID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePortfolios struct {
	mu   sync.Mutex
	rows map[string]domain.Portfolio
	seq  int
}

func newFakePortfolios() *fakePortfolios { return &fakePortfolios{rows: map[string]domain.Portfolio{}} }

func (f *fakePortfolios) Upsert(_ context.Context, p domain.Portfolio) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.rows[p.CandidateID]; ok {
		p.ID = prev.ID
		p.Analysis = prev.Analysis
		p.AnalyzedAt = prev.AnalyzedAt
	} else {
		f.seq++
		p.ID = fmt.Sprintf("pf-%d", f.seq)
	}
	f.rows[p.CandidateID] = p
	return p.ID, nil
}

func (f *fakePortfolios) GetByCandidate(_ context.Context, candidateID string) (domain.Portfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[candidateID]
	if !ok {
		return domain.Portfolio{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePortfolios) SaveAnalysis(_ context.Context, candidateID string, a domain.PortfolioAnalysis, analyzedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[candidateID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Analysis = &a
	p.AnalyzedAt = &analyzedAt
	f.rows[candidateID] = p
	return nil
}

type fakeAI struct {
	chatResponse string
	embedDim     int
}

func (f *fakeAI) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := f.embedDim
	if dim == 0 {
		dim = 3
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, dim)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func (f *fakeAI) ChatJSON(_ context.Context, _, _ string, _ int) (string, error) {
	if f.chatResponse == "" {
		return `{"name": "Test Person", "email": "test@example.com", "skills": ["Go"], "experience": "", "education": "", "github": "", "linkedin": "", "website": ""}`, nil
	}
	return f.chatResponse, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	points  map[string][]float32
	payload map[string]map[string]any
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: map[string][]float32{}, payload: map[string]map[string]any{}}
}

func (f *fakeIndex) Upsert(_ context.Context, id string, vector []float32, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[id] = vector
	f.payload[id] = payload
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) ([]domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Match
	for id, p := range f.payload {
		if len(out) >= topK {
			break
		}
		out = append(out, domain.Match{ID: id, Score: 0.9, Payload: p})
	}
	return out, nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, id)
	delete(f.payload, id)
	return nil
}

type testEnv struct {
	srv        *Server
	jobs       *fakeJobs
	candidates *fakeCandidates
	resumes    *fakeResumes
	portfolios *fakePortfolios
	index      *fakeIndex
}

func newTestEnv() *testEnv {
	cfg := config.Config{AppEnv: "test", MaxUploadMB: 10}
	jobs := newFakeJobs()
	cands := newFakeCandidates()
	resumes := newFakeResumes()
	portfolios := newFakePortfolios()
	index := newFakeIndex()
	aicl := &fakeAI{}

	status := usecase.NewStatusTracker(time.Hour)
	structure := usecase.NewStructureService(aicl, "gpt-4o-mini", 0)
	ranker := usecase.NewRankService(jobs, cands, resumes, portfolios, index, config.DefaultRankWeights())
	ingest := &usecase.IngestService{
		Jobs:       jobs,
		Candidates: cands,
		Resumes:    resumes,
		Portfolios: portfolios,
		AI:         aicl,
		Index:      index,
		Structure:  &structure,
		Portfolio:  usecase.NewPortfolioService(aicl, nil, portfolios, 5),
		Ranker:     ranker,
		Status:     status,
	}
	srv := NewServer(cfg,
		usecase.NewJobService(jobs, aicl, index),
		usecase.NewCandidateService(cands, resumes, portfolios, index),
		ranker, ingest, status, nil, nil)
	return &testEnv{srv: srv, jobs: jobs, candidates: cands, resumes: resumes, portfolios: portfolios, index: index}
}
