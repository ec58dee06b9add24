// Package domain holds the core entities, ports, and error taxonomy of the
// candidate ranking pipeline. It stays free of adapter concerns; adapters and
// usecases depend on this package, never the other way around.
package domain

import (
	"context"
	"errors"
	"time"
)

// Context aliases context.Context so repository implementations read in
// domain terms.
type Context = context.Context

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrEmbedding       = errors.New("embedding failed")
	ErrIndex           = errors.New("vector index failed")
	ErrParse           = errors.New("resume parse failed")
	ErrAnalysis        = errors.New("portfolio analysis failed")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrInternal        = errors.New("internal error")
)

// Job is a position candidates are ranked against. The embedding is nil until
// the description has been embedded; it is attached by job creation or by the
// first pipeline run for the job.
type Job struct {
	ID          string
	Title       string
	Description string
	Embedding   []float32
	CreatedAt   time.Time
}

// Candidate is one applicant for a job. Score is the latest persisted semantic
// similarity on the canonical [0,1] scale; it is a write-through cache of the
// ranking output and is only updated when a ranking run asks for persistence.
type Candidate struct {
	ID         string
	JobID      string
	Name       string
	Email      string
	Skills     []string
	Experience string
	Education  string
	Score      float64
	Embedding  []float32
	CreatedAt  time.Time
}

// ParsedResume is the structured extraction of a raw resume text.
// Name and Email are always populated: the structuring service substitutes
// placeholders when the model cannot find them.
type ParsedResume struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone,omitempty"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience"`
	Education  string   `json:"education"`
	GitHub     string   `json:"github,omitempty"`
	LinkedIn   string   `json:"linkedin,omitempty"`
	Website    string   `json:"website,omitempty"`
}

// Resume stores one uploaded resume for a candidate. A candidate may own
// several (upload history); the latest is the one with the greatest UploadedAt.
type Resume struct {
	ID          string
	CandidateID string
	FileURL     string
	ParsedText  string
	Parsed      ParsedResume
	UploadedAt  time.Time
}

// Recommendation is the coarse hiring signal derived from the portfolio score.
type Recommendation string

const (
	RecommendStrongHire Recommendation = "strong_hire"
	RecommendInterview  Recommendation = "interview"
	RecommendMaybe      Recommendation = "maybe"
	RecommendPass       Recommendation = "pass"
)

// RecommendationForScore maps an overall portfolio score on the 0-10 scale to
// a recommendation. Thresholds are inclusive upward and keep the mapping
// monotonic regardless of what the model suggested.
func RecommendationForScore(score float64) Recommendation {
	switch {
	case score >= 9:
		return RecommendStrongHire
	case score >= 7:
		return RecommendInterview
	case score >= 5:
		return RecommendMaybe
	default:
		return RecommendPass
	}
}

// Impressiveness grades a single repository.
type Impressiveness string

const (
	ImpressivenessExceptional Impressiveness = "exceptional"
	ImpressivenessStrong      Impressiveness = "strong"
	ImpressivenessSolid       Impressiveness = "solid"
	ImpressivenessBasic       Impressiveness = "basic"
)

// RepoVerdict is the per-repository output of the deep analysis phase.
// Scores are on the 0-10 scale.
type RepoVerdict struct {
	Repo              string         `json:"repo"`
	QualityScore      float64        `json:"quality_score"`
	RelevanceScore    float64        `json:"relevance_score"`
	Impressiveness    Impressiveness `json:"impressiveness"`
	ResumeMatch       string         `json:"resume_match"`
	Technologies      []string       `json:"technologies"`
	Strengths         []string       `json:"strengths"`
	Concerns          []string       `json:"concerns"`
	ValidatesClaims   []string       `json:"validates_claims"`
	ContradictsClaims []string       `json:"contradicts_claims"`
}

// PortfolioAnalysis is the synthesized verdict over a candidate's public
// portfolio. OverallScore and ResumeAlignment are on the 0-10 scale; the
// ranking engine converts to [0,1] at its boundary.
type PortfolioAnalysis struct {
	CandidateID       string         `json:"candidate_id"`
	OverallScore      float64        `json:"overall_score"`
	Recommendation    Recommendation `json:"recommendation"`
	Summary           string         `json:"summary"`
	TopProjects       []RepoVerdict  `json:"top_projects"`
	Strengths         []string       `json:"strengths"`
	Weaknesses        []string       `json:"weaknesses"`
	Concerns          []string       `json:"concerns"`
	StandoutQualities []string       `json:"standout_qualities"`
	ResumeAlignment   float64        `json:"resume_alignment"`
	TechnicalLevel    string         `json:"technical_level"`
}

// Portfolio is the persisted portfolio record for a candidate. Exactly one
// exists per candidate (upsert by candidate id). AnalyzedAt is nil until a
// synthesis has completed; a failed analysis never writes a partial result.
type Portfolio struct {
	ID          string
	CandidateID string
	GitHubURL   string
	LinkedInURL string
	WebsiteURL  string
	Analysis    *PortfolioAnalysis
	AnalyzedAt  *time.Time
}

// Repositories (ports)

type JobRepository interface {
	Create(ctx context.Context, j Job) (string, error)
	Get(ctx context.Context, id string) (Job, error)
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
}

type CandidateRepository interface {
	Create(ctx context.Context, c Candidate) (string, error)
	Get(ctx context.Context, id string) (Candidate, error)
	ListByJob(ctx context.Context, jobID string) ([]Candidate, error)
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	UpdateScore(ctx context.Context, id string, score float64) error
	Delete(ctx context.Context, id string) error
}

type ResumeRepository interface {
	Create(ctx context.Context, r Resume) (string, error)
	Get(ctx context.Context, id string) (Resume, error)
	LatestByCandidate(ctx context.Context, candidateID string) (Resume, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]Resume, error)
}

type PortfolioRepository interface {
	// Upsert creates or replaces the portfolio row keyed by candidate id.
	Upsert(ctx context.Context, p Portfolio) (string, error)
	GetByCandidate(ctx context.Context, candidateID string) (Portfolio, error)
	// SaveAnalysis atomically stores a completed analysis and stamps
	// analyzed_at. It must not be called with a partial result.
	SaveAnalysis(ctx context.Context, candidateID string, a PortfolioAnalysis, analyzedAt time.Time) error
}

// AIClient (port)

type AIClient interface {
	// Embed returns one embedding vector per input text, all of the same
	// dimension. Implementations reject empty input before any network call.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// ChatJSON sends a prompt pair and returns raw model text that is
	// expected, but not guaranteed, to be JSON.
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// VectorIndex (port)

// Match is one nearest-neighbor hit. Score semantics follow the provider's
// cosine normalization; the ranking engine clamps into [0,1].
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

type VectorIndex interface {
	// Upsert overwrites any existing point with the same id. Ids encode the
	// entity kind ("resume-<id>", "job-<id>") because consumers parse the
	// prefix to recover the entity type.
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error
	// Query returns at most topK matches ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	// Delete removes a point; deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// GitHubClient (port)

// GitHubRepo mirrors the fields of the repository list endpoint that the
// discovery phase filters on.
type GitHubRepo struct {
	Name        string
	FullName    string
	Description string
	Language    string
	Stars       int
	Fork        bool
	Archived    bool
	Disabled    bool
	PushedAt    time.Time
	Topics      []string
	HTMLURL     string
}

// WeeklyCommits is one week of the 52-week commit activity series.
type WeeklyCommits struct {
	Week  time.Time
	Total int
}

type GitHubClient interface {
	ListRepos(ctx context.Context, user string) ([]GitHubRepo, error)
	Languages(ctx context.Context, fullName string) (map[string]int64, error)
	Readme(ctx context.Context, fullName string) (string, error)
	CommitActivity(ctx context.Context, fullName string) ([]WeeklyCommits, error)
}
