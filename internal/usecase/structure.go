package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/talentsift/talentsift/internal/adapter/ai"
	"github.com/talentsift/talentsift/internal/adapter/ai/tokencount"
	"github.com/talentsift/talentsift/internal/domain"
	"github.com/talentsift/talentsift/pkg/textx"
)

// fallbackName is substituted when the model cannot find a candidate name.
const fallbackName = "Unknown Candidate"

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

const structureSystemPrompt = `You are a resume parser. Extract structured data from the resume text you are given.
Respond with a single JSON object and nothing else, using exactly these keys:
{"name": string, "email": string, "phone": string, "skills": [string], "experience": string, "education": string, "github": string, "linkedin": string, "website": string}
Use an empty string for anything you cannot find. List every skill the resume plausibly demonstrates, including tools and frameworks mentioned in passing; prefer including a borderline skill over omitting it.`

// StructureService turns raw resume text into a domain.ParsedResume via one
// LLM extraction call. It guarantees a non-empty name and a syntactically
// valid, unique email so a candidate row can always be created from its
// output.
type StructureService struct {
	AI          domain.AIClient
	Model       string
	TokenBudget int
}

// NewStructureService constructs a StructureService.
func NewStructureService(aiClient domain.AIClient, model string, tokenBudget int) StructureService {
	return StructureService{AI: aiClient, Model: model, TokenBudget: tokenBudget}
}

// Structure extracts a ParsedResume from resumeText. A response that is not
// JSON after the single sanitize pass fails with ErrParse; the caller must
// not create a Candidate from a failed call.
func (s StructureService) Structure(ctx context.Context, resumeText string) (domain.ParsedResume, error) {
	text := textx.SanitizeText(resumeText)
	if text == "" {
		return domain.ParsedResume{}, fmt.Errorf("%w: empty resume text", domain.ErrInvalidArgument)
	}
	if s.TokenBudget > 0 {
		if n, err := tokencount.DefaultCounter.CountTokens(text, s.Model); err == nil && n > s.TokenBudget {
			slog.Debug("resume text over token budget, truncating",
				slog.Int("tokens", n), slog.Int("budget", s.TokenBudget))
		}
		text = tokencount.DefaultCounter.Truncate(text, s.Model, s.TokenBudget)
	}
	raw, err := s.AI.ChatJSON(ctx, structureSystemPrompt, text, 1500)
	if err != nil {
		return domain.ParsedResume{}, fmt.Errorf("op=structure: %w", err)
	}
	var parsed domain.ParsedResume
	if err := ai.DecodeLoose(raw, &parsed); err != nil {
		return domain.ParsedResume{}, fmt.Errorf("op=structure: %w", err)
	}
	normalizeParsed(&parsed)
	return parsed, nil
}

func normalizeParsed(p *domain.ParsedResume) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = fallbackName
	}
	p.Email = strings.TrimSpace(p.Email)
	if !emailRe.MatchString(p.Email) {
		p.Email = placeholderEmail()
	}
	skills := make([]string, 0, len(p.Skills))
	for _, sk := range p.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}
	p.Skills = skills
	p.GitHub = strings.TrimSpace(p.GitHub)
	p.LinkedIn = strings.TrimSpace(p.LinkedIn)
	p.Website = strings.TrimSpace(p.Website)
}

// placeholderEmail generates a unique, syntactically valid address for
// resumes with no discoverable email. ULIDs keep it collision-free across
// calls; the .invalid TLD guarantees nothing is ever delivered to it.
func placeholderEmail() string {
	return fmt.Sprintf("candidate-%s@placeholder.invalid", strings.ToLower(ulid.Make().String()))
}
