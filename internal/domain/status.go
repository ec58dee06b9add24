package domain

import "time"

// Stage is one discrete step of the upload-to-rank pipeline, reported to
// polling clients for progress display.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageUploading            Stage = "uploading"
	StageParsingResumes       Stage = "parsing_resumes"
	StageCreatingCandidates   Stage = "creating_candidates"
	StageGeneratingEmbeddings Stage = "generating_embeddings"
	StageSemanticMatching     Stage = "semantic_matching"
	StagePortfolioAnalysis    Stage = "portfolio_analysis"
	StageComplete             Stage = "complete"
	StageError                Stage = "error"
)

var stageOrder = map[Stage]int{
	StageIdle:                 0,
	StageUploading:            1,
	StageParsingResumes:       2,
	StageCreatingCandidates:   3,
	StageGeneratingEmbeddings: 4,
	StageSemanticMatching:     5,
	StagePortfolioAnalysis:    6,
	StageComplete:             7,
}

// Ordinal returns the stage's position in the forward sequence. StageError
// has no ordinal; it is reachable from anywhere.
func (s Stage) Ordinal() (int, bool) {
	n, ok := stageOrder[s]
	return n, ok
}

// Terminal reports whether the stage ends a pipeline run.
func (s Stage) Terminal() bool { return s == StageComplete || s == StageError }

// ProcessingStatus is the progress snapshot for one pipeline run, keyed by
// job id. It lives only in process memory; an absent key reads as StageIdle.
// Analyzed, Skipped, and Errors carry the per-item outcomes of the run so a
// polling client sees counts and reasons, not just the terminal stage.
type ProcessingStatus struct {
	Stage       Stage      `json:"stage"`
	Message     string     `json:"message,omitempty"`
	Current     int        `json:"current"`
	Total       int        `json:"total"`
	Analyzed    int        `json:"analyzed"`
	Skipped     int        `json:"skipped"`
	Errors      []string   `json:"errors,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}
