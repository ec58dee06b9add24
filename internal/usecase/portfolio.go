package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/talentsift/talentsift/internal/adapter/ai"
	"github.com/talentsift/talentsift/internal/adapter/observability"
	"github.com/talentsift/talentsift/internal/domain"
	"github.com/talentsift/talentsift/pkg/textx"
)

const (
	defaultMaxRepos = 5
	// readmeRuneBudget bounds how much README text reaches the per-repo
	// prompt; token budgeting happens on the resume side.
	readmeRuneBudget = 4000
)

// PortfolioService runs the multi-phase portfolio analysis for one candidate:
// profile context, repository discovery, per-repo deep analysis, and a final
// synthesis. Phases run strictly sequentially because each consumes the
// previous one's output; only cross-candidate fan-out is parallel (owned by
// the ingest pipeline).
type PortfolioService struct {
	AI         domain.AIClient
	GitHub     domain.GitHubClient
	Portfolios domain.PortfolioRepository
	MaxRepos   int
	now        func() time.Time
}

// NewPortfolioService constructs a PortfolioService.
func NewPortfolioService(aiClient domain.AIClient, gh domain.GitHubClient, portfolios domain.PortfolioRepository, maxRepos int) *PortfolioService {
	if maxRepos <= 0 {
		maxRepos = defaultMaxRepos
	}
	return &PortfolioService{AI: aiClient, GitHub: gh, Portfolios: portfolios, MaxRepos: maxRepos, now: time.Now}
}

// GitHubUsername extracts the username from a github.com profile URL. It
// returns "" for anything it cannot parse; callers must skip the analyzer
// entirely in that case.
func GitHubUsername(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return parts[0]
}

// Analyze runs all four phases and returns the synthesized result. It does
// not persist anything: AnalyzeAndStore owns the write so that a synthesis
// failure never leaves a partial analysis behind.
func (s *PortfolioService) Analyze(ctx context.Context, cand domain.Candidate, resume domain.Resume) (domain.PortfolioAnalysis, error) {
	username := GitHubUsername(resume.Parsed.GitHub)
	if username == "" {
		return domain.PortfolioAnalysis{}, fmt.Errorf("%w: candidate has no github url", domain.ErrInvalidArgument)
	}

	// Phase 1: context gathering.
	profile := buildProfile(cand, resume)

	// Phase 2: repository discovery.
	repos, err := s.GitHub.ListRepos(ctx, username)
	if err != nil {
		return domain.PortfolioAnalysis{}, fmt.Errorf("%w: list repos for %s: %v", domain.ErrAnalysis, username, err)
	}
	selected := selectRepos(repos, cand.Skills, s.MaxRepos)
	slog.Info("portfolio repos selected",
		slog.String("candidate_id", cand.ID),
		slog.String("github_user", username),
		slog.Int("total", len(repos)),
		slog.Int("selected", len(selected)))

	// Phase 3: deep analysis. One repo failing is skipped, not fatal.
	verdicts := make([]domain.RepoVerdict, 0, len(selected))
	for _, repo := range selected {
		v, err := s.analyzeRepo(ctx, profile, repo)
		if err != nil {
			slog.Warn("repo analysis skipped",
				slog.String("candidate_id", cand.ID),
				slog.String("repo", repo.FullName),
				slog.Any("error", err))
			continue
		}
		verdicts = append(verdicts, v)
	}

	// Phase 4: final synthesis. Failure here propagates; the caller leaves
	// the portfolio unanalyzed.
	analysis, err := s.synthesize(ctx, cand.ID, profile, verdicts)
	if err != nil {
		return domain.PortfolioAnalysis{}, err
	}
	return analysis, nil
}

// AnalyzeAndStore runs Analyze and persists the completed result. analyzed_at
// is only stamped on success.
func (s *PortfolioService) AnalyzeAndStore(ctx context.Context, cand domain.Candidate, resume domain.Resume) error {
	analysis, err := s.Analyze(ctx, cand, resume)
	if err != nil {
		return err
	}
	if err := s.Portfolios.SaveAnalysis(ctx, cand.ID, analysis, s.now().UTC()); err != nil {
		return fmt.Errorf("op=portfolio.store: %w", err)
	}
	observability.PortfolioScoreHistogram.Observe(analysis.OverallScore)
	return nil
}

// buildProfile derives the candidate profile summary consumed by later
// phases. Pure formatting, no model call.
func buildProfile(cand domain.Candidate, resume domain.Resume) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate: %s\n", cand.Name)
	if len(cand.Skills) > 0 {
		fmt.Fprintf(&b, "Claimed skills: %s\n", strings.Join(cand.Skills, ", "))
	}
	if exp := strings.TrimSpace(cand.Experience); exp != "" {
		fmt.Fprintf(&b, "Experience:\n%s\n", textx.TruncateRunes(exp, 2000))
	}
	if edu := strings.TrimSpace(cand.Education); edu != "" {
		fmt.Fprintf(&b, "Education:\n%s\n", textx.TruncateRunes(edu, 500))
	}
	if txt := strings.TrimSpace(resume.ParsedText); txt != "" {
		fmt.Fprintf(&b, "Resume excerpt:\n%s\n", textx.TruncateRunes(txt, 2000))
	}
	return b.String()
}

// selectRepos filters out forks, archived, and disabled repositories and
// ranks the rest by lightweight signals before any model call: stars, push
// recency, and language overlap with the claimed skills.
func selectRepos(repos []domain.GitHubRepo, skills []string, maxRepos int) []domain.GitHubRepo {
	skillSet := make(map[string]bool, len(skills))
	for _, sk := range skills {
		skillSet[strings.ToLower(strings.TrimSpace(sk))] = true
	}
	type scored struct {
		repo  domain.GitHubRepo
		score float64
	}
	candidates := make([]scored, 0, len(repos))
	now := time.Now()
	for _, r := range repos {
		if r.Fork || r.Archived || r.Disabled {
			continue
		}
		sc := float64(r.Stars)
		// Push within the last year earns up to 12 points, one per month.
		if age := now.Sub(r.PushedAt); age >= 0 && age < 365*24*time.Hour {
			sc += 12 - age.Hours()/(30*24)
		}
		if skillSet[strings.ToLower(r.Language)] {
			sc += 10
		}
		for _, topic := range r.Topics {
			if skillSet[strings.ToLower(topic)] {
				sc += 2
			}
		}
		candidates = append(candidates, scored{repo: r, score: sc})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > maxRepos {
		candidates = candidates[:maxRepos]
	}
	out := make([]domain.GitHubRepo, len(candidates))
	for i, c := range candidates {
		out[i] = c.repo
	}
	return out
}

const repoSystemPrompt = `You are a senior engineer reviewing a candidate's public repository against their resume claims.
Respond with a single JSON object and nothing else:
{"quality_score": number 0-10, "relevance_score": number 0-10, "impressiveness": "exceptional"|"strong"|"solid"|"basic", "resume_match": string, "technologies": [string], "strengths": [string], "concerns": [string], "validates_claims": [string], "contradicts_claims": [string]}
validates_claims lists resume claims this repository supports; contradicts_claims lists claims it undermines.`

func (s *PortfolioService) analyzeRepo(ctx context.Context, profile string, repo domain.GitHubRepo) (domain.RepoVerdict, error) {
	langs, err := s.GitHub.Languages(ctx, repo.FullName)
	if err != nil {
		return domain.RepoVerdict{}, fmt.Errorf("languages: %w", err)
	}
	readme, err := s.GitHub.Readme(ctx, repo.FullName)
	if err != nil {
		return domain.RepoVerdict{}, fmt.Errorf("readme: %w", err)
	}
	activity, err := s.GitHub.CommitActivity(ctx, repo.FullName)
	if err != nil {
		// Commit stats are supplementary; log and analyze without them.
		slog.Debug("commit activity fetch failed", slog.String("repo", repo.FullName), slog.Any("error", err))
	}
	commits := 0
	for _, w := range activity {
		commits += w.Total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRepository: %s\n", profile, repo.FullName)
	if repo.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", repo.Description)
	}
	fmt.Fprintf(&b, "Stars: %d, last push: %s, commits last 52 weeks: %d\n", repo.Stars, repo.PushedAt.Format("2006-01-02"), commits)
	if len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", formatLanguages(langs))
	}
	if readme != "" {
		fmt.Fprintf(&b, "README:\n%s\n", textx.TruncateRunes(readme, readmeRuneBudget))
	}

	raw, err := s.AI.ChatJSON(ctx, repoSystemPrompt, b.String(), 1200)
	if err != nil {
		return domain.RepoVerdict{}, fmt.Errorf("chat: %w", err)
	}
	var v domain.RepoVerdict
	if err := ai.DecodeLoose(raw, &v); err != nil {
		return domain.RepoVerdict{}, err
	}
	v.Repo = repo.FullName
	v.QualityScore = clampScore10(v.QualityScore)
	v.RelevanceScore = clampScore10(v.RelevanceScore)
	return v, nil
}

func formatLanguages(langs map[string]int64) string {
	type kv struct {
		name  string
		bytes int64
	}
	sorted := make([]kv, 0, len(langs))
	var total int64
	for name, n := range langs {
		sorted = append(sorted, kv{name, n})
		total += n
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].bytes != sorted[j].bytes {
			return sorted[i].bytes > sorted[j].bytes
		}
		return sorted[i].name < sorted[j].name
	})
	parts := make([]string, 0, len(sorted))
	for _, s := range sorted {
		pct := 0.0
		if total > 0 {
			pct = float64(s.bytes) / float64(total) * 100
		}
		parts = append(parts, fmt.Sprintf("%s %.0f%%", s.name, pct))
	}
	return strings.Join(parts, ", ")
}

const synthesisSystemPrompt = `You are synthesizing a final hiring signal from a candidate profile and per-repository review verdicts.
Respond with a single JSON object and nothing else:
{"overall_score": number 0-10, "summary": string, "top_projects": [string], "strengths": [string], "weaknesses": [string], "concerns": [string], "standout_qualities": [string], "resume_alignment": number 0-10, "technical_level": string}
top_projects lists the full names of the most impressive reviewed repositories, best first.`

// synthesisPayload is the model-facing shape of the final phase; the
// recommendation is derived from the score here rather than trusted from the
// model, keeping it monotonic.
type synthesisPayload struct {
	OverallScore      float64  `json:"overall_score"`
	Summary           string   `json:"summary"`
	TopProjects       []string `json:"top_projects"`
	Strengths         []string `json:"strengths"`
	Weaknesses        []string `json:"weaknesses"`
	Concerns          []string `json:"concerns"`
	StandoutQualities []string `json:"standout_qualities"`
	ResumeAlignment   float64  `json:"resume_alignment"`
	TechnicalLevel    string   `json:"technical_level"`
}

func (s *PortfolioService) synthesize(ctx context.Context, candidateID, profile string, verdicts []domain.RepoVerdict) (domain.PortfolioAnalysis, error) {
	verdictJSON, err := json.Marshal(verdicts)
	if err != nil {
		return domain.PortfolioAnalysis{}, fmt.Errorf("%w: marshal verdicts: %v", domain.ErrAnalysis, err)
	}
	user := fmt.Sprintf("%s\nRepository verdicts (JSON):\n%s", profile, verdictJSON)
	raw, err := s.AI.ChatJSON(ctx, synthesisSystemPrompt, user, 1500)
	if err != nil {
		return domain.PortfolioAnalysis{}, fmt.Errorf("%w: synthesis chat: %v", domain.ErrAnalysis, err)
	}
	var payload synthesisPayload
	if err := ai.DecodeLoose(raw, &payload); err != nil {
		return domain.PortfolioAnalysis{}, fmt.Errorf("%w: synthesis decode: %v", domain.ErrAnalysis, err)
	}

	overall := clampScore10(payload.OverallScore)
	analysis := domain.PortfolioAnalysis{
		CandidateID:       candidateID,
		OverallScore:      overall,
		Recommendation:    domain.RecommendationForScore(overall),
		Summary:           payload.Summary,
		TopProjects:       orderTopProjects(verdicts, payload.TopProjects),
		Strengths:         payload.Strengths,
		Weaknesses:        payload.Weaknesses,
		Concerns:          payload.Concerns,
		StandoutQualities: payload.StandoutQualities,
		ResumeAlignment:   clampScore10(payload.ResumeAlignment),
		TechnicalLevel:    payload.TechnicalLevel,
	}
	return analysis, nil
}

// orderTopProjects resolves the model's top_projects name list against the
// actual verdicts; names that match no verdict are dropped (a repo that
// failed deep analysis can never surface here). When the model names
// nothing usable, verdicts fall back to quality+relevance order.
func orderTopProjects(verdicts []domain.RepoVerdict, names []string) []domain.RepoVerdict {
	byName := make(map[string]domain.RepoVerdict, len(verdicts))
	for _, v := range verdicts {
		byName[strings.ToLower(v.Repo)] = v
	}
	out := make([]domain.RepoVerdict, 0, len(verdicts))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if v, ok := byName[key]; ok && !seen[key] {
			out = append(out, v)
			seen[key] = true
		}
	}
	if len(out) > 0 {
		return out
	}
	rest := make([]domain.RepoVerdict, len(verdicts))
	copy(rest, verdicts)
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].QualityScore+rest[i].RelevanceScore > rest[j].QualityScore+rest[j].RelevanceScore
	})
	if len(rest) > 3 {
		rest = rest[:3]
	}
	return rest
}

func clampScore10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
