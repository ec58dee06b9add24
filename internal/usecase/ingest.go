package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/talentsift/talentsift/internal/adapter/observability"
	"github.com/talentsift/talentsift/internal/domain"
	"github.com/talentsift/talentsift/pkg/textx"
)

// ResumeUpload is one extracted resume ready for processing. Text has already
// been pulled out of the uploaded file by the transport layer.
type ResumeUpload struct {
	FileName string
	Text     string
}

// BatchReport summarizes one pipeline run. Skipped counts every item that
// did not make it to analysis and Errors carries one reason per such item;
// a failed item never aborts its siblings.
type BatchReport struct {
	Analyzed int      `json:"analyzed"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// IngestService drives the resume processing pipeline for a job: structuring,
// candidate creation, embedding, indexing, semantic matching, then portfolio
// analysis. One run is in flight per job at a time, enforced by the status
// tracker.
type IngestService struct {
	Jobs       domain.JobRepository
	Candidates domain.CandidateRepository
	Resumes    domain.ResumeRepository
	Portfolios domain.PortfolioRepository
	AI         domain.AIClient
	Index      domain.VectorIndex

	Structure *StructureService
	Portfolio *PortfolioService
	Ranker    *RankService
	Status    *StatusTracker

	// PortfolioConcurrency caps concurrent portfolio analyses within one run.
	PortfolioConcurrency int
	// RunTimeout bounds the background run; zero means no bound.
	RunTimeout time.Duration
}

// Start validates the request and kicks off the pipeline in the background.
// The returned error covers only the synchronous part: unknown job, empty
// batch, or a run already in flight. Progress after that is observable
// through the status tracker.
func (s *IngestService) Start(ctx context.Context, jobID string, uploads []ResumeUpload) error {
	if len(uploads) == 0 {
		return fmt.Errorf("%w: no resumes in batch", domain.ErrInvalidArgument)
	}
	if _, err := s.Jobs.Get(ctx, jobID); err != nil {
		return fmt.Errorf("op=ingest.job: %w", err)
	}
	if err := s.Status.Start(jobID, len(uploads)); err != nil {
		return fmt.Errorf("op=ingest.start: %w", err)
	}

	go func() {
		runCtx := context.Background()
		if s.RunTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, s.RunTimeout)
			defer cancel()
		}
		s.run(runCtx, jobID, uploads)
	}()
	return nil
}

// run executes the whole pipeline for one batch. It owns the terminal status
// transition; every exit path ends in Complete or Fail.
func (s *IngestService) run(ctx context.Context, jobID string, uploads []ResumeUpload) BatchReport {
	observability.StartPipelineRun()
	report := BatchReport{}
	outcome := "succeeded"
	defer func() { observability.CompletePipelineRun(outcome) }()

	if err := s.ensureJobIndexed(ctx, jobID); err != nil {
		slog.Error("pipeline aborted", slog.String("job_id", jobID), slog.Any("error", err))
		s.Status.Fail(jobID, fmt.Sprintf("preparing job: %v", err))
		outcome = "failed"
		return report
	}

	total := len(uploads)
	var analyzed []domain.Candidate
	for i, upload := range uploads {
		cand, _, err := s.processItem(ctx, jobID, upload, i+1, total)
		if err == nil {
			report.Analyzed++
			analyzed = append(analyzed, cand)
			observability.ObserveItem("analyzed")
			continue
		}
		// Every non-analyzed item counts as skipped and carries its reason,
		// whether the resume was rejected up front or failed mid-chain.
		report.Skipped++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", upload.FileName, err))
		if errors.Is(err, domain.ErrInvalidArgument) {
			observability.ObserveItem("skipped")
			slog.Info("resume skipped",
				slog.String("job_id", jobID),
				slog.String("file", upload.FileName),
				slog.Any("reason", err))
		} else {
			observability.ObserveItem("error")
			slog.Error("resume failed",
				slog.String("job_id", jobID),
				slog.String("file", upload.FileName),
				slog.Any("error", err))
		}
	}

	s.Status.SetReport(jobID, report.Analyzed, report.Skipped, report.Errors)
	if report.Analyzed == 0 {
		msg := "no resumes could be processed"
		if len(report.Errors) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, report.Errors[0])
		}
		s.Status.Fail(jobID, msg)
		outcome = "failed"
		return report
	}

	s.Status.Advance(jobID, domain.StageSemanticMatching, "matching candidates against the job", total, total)
	if _, err := s.Ranker.Rank(ctx, jobID, RankOptions{TopK: maxTopK, PersistScores: true}); err != nil {
		slog.Error("semantic matching failed", slog.String("job_id", jobID), slog.Any("error", err))
		s.Status.Fail(jobID, fmt.Sprintf("semantic matching: %v", err))
		outcome = "failed"
		return report
	}

	s.Status.Advance(jobID, domain.StagePortfolioAnalysis, "analyzing candidate portfolios", total, total)
	s.analyzePortfolios(ctx, jobID, analyzed)

	s.Status.Complete(jobID, fmt.Sprintf("processed %d resumes (%d analyzed, %d skipped)",
		total, report.Analyzed, report.Skipped))
	return report
}

// ensureJobIndexed embeds the job description and upserts its vector if the
// job has never been embedded. Re-runs reuse the stored vector.
func (s *IngestService) ensureJobIndexed(ctx context.Context, jobID string) error {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if len(job.Embedding) == 0 {
		text := textx.JoinNonEmpty("\n", job.Title, job.Description)
		vecs, err := s.AI.Embed(ctx, []string{text})
		if err != nil {
			return fmt.Errorf("embed job: %w", err)
		}
		job.Embedding = vecs[0]
		if err := s.Jobs.SetEmbedding(ctx, jobID, job.Embedding); err != nil {
			return fmt.Errorf("store job embedding: %w", err)
		}
	}
	return s.Index.Upsert(ctx, jobPointPrefix+jobID, job.Embedding, map[string]any{
		"kind":   "job",
		"job_id": jobID,
	})
}

// processItem runs the full per-resume chain: structure, create, embed,
// index. Each item moves through all stages before the next item starts;
// the tracker keeps the displayed stage monotonic across items.
func (s *IngestService) processItem(ctx context.Context, jobID string, upload ResumeUpload, current, total int) (domain.Candidate, domain.Resume, error) {
	s.Status.Advance(jobID, domain.StageParsingResumes,
		fmt.Sprintf("parsing %s", upload.FileName), current, total)
	parsed, err := s.Structure.Structure(ctx, upload.Text)
	if err != nil {
		return domain.Candidate{}, domain.Resume{}, fmt.Errorf("structure: %w", err)
	}

	s.Status.Advance(jobID, domain.StageCreatingCandidates,
		fmt.Sprintf("creating candidate for %s", upload.FileName), current, total)
	cand := domain.Candidate{
		JobID:      jobID,
		Name:       parsed.Name,
		Email:      parsed.Email,
		Skills:     parsed.Skills,
		Experience: parsed.Experience,
		Education:  parsed.Education,
	}
	candID, err := s.Candidates.Create(ctx, cand)
	if err != nil {
		return domain.Candidate{}, domain.Resume{}, fmt.Errorf("create candidate: %w", err)
	}
	cand.ID = candID

	res := domain.Resume{
		CandidateID: candID,
		FileURL:     upload.FileName,
		ParsedText:  textx.SanitizeText(upload.Text),
		Parsed:      parsed,
	}
	resID, err := s.Resumes.Create(ctx, res)
	if err != nil {
		s.discardCandidate(ctx, candID)
		return domain.Candidate{}, domain.Resume{}, fmt.Errorf("create resume: %w", err)
	}
	res.ID = resID

	if parsed.GitHub != "" || parsed.LinkedIn != "" || parsed.Website != "" {
		_, err := s.Portfolios.Upsert(ctx, domain.Portfolio{
			CandidateID: candID,
			GitHubURL:   parsed.GitHub,
			LinkedInURL: parsed.LinkedIn,
			WebsiteURL:  parsed.Website,
		})
		if err != nil {
			// Portfolio links are supplementary; the candidate still ranks.
			slog.Warn("portfolio upsert failed",
				slog.String("candidate_id", candID), slog.Any("error", err))
		}
	}

	s.Status.Advance(jobID, domain.StageGeneratingEmbeddings,
		fmt.Sprintf("embedding %s", upload.FileName), current, total)
	vecs, err := s.AI.Embed(ctx, []string{res.ParsedText})
	if err != nil {
		s.discardCandidate(ctx, candID)
		return domain.Candidate{}, domain.Resume{}, fmt.Errorf("embed resume: %w", err)
	}
	if err := s.Candidates.SetEmbedding(ctx, candID, vecs[0]); err != nil {
		s.discardCandidate(ctx, candID)
		return domain.Candidate{}, domain.Resume{}, fmt.Errorf("store embedding: %w", err)
	}
	if err := s.Index.Upsert(ctx, resumePointPrefix+resID, vecs[0], map[string]any{
		"kind":         "resume",
		"id":           resID,
		"job_id":       jobID,
		"candidate_id": candID,
	}); err != nil {
		s.discardCandidate(ctx, candID)
		return domain.Candidate{}, domain.Resume{}, fmt.Errorf("index resume: %w", err)
	}
	return cand, res, nil
}

// discardCandidate undoes a partially processed item so a failed resume
// leaves no visible candidate row. The row cascade also removes its resume.
func (s *IngestService) discardCandidate(ctx context.Context, candID string) {
	if err := s.Candidates.Delete(ctx, candID); err != nil {
		slog.Warn("candidate cleanup failed",
			slog.String("candidate_id", candID), slog.Any("error", err))
	}
}

// analyzePortfolios fans out over candidates with a GitHub link. Individual
// failures are logged; they never fail the batch.
func (s *IngestService) analyzePortfolios(ctx context.Context, jobID string, cands []domain.Candidate) {
	limit := s.PortfolioConcurrency
	if limit <= 0 {
		limit = 3
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, cand := range cands {
		g.Go(func() error {
			res, err := s.Resumes.LatestByCandidate(gctx, cand.ID)
			if err != nil {
				slog.Warn("portfolio analysis skipped",
					slog.String("candidate_id", cand.ID), slog.Any("error", err))
				return nil
			}
			if GitHubUsername(res.Parsed.GitHub) == "" {
				return nil
			}
			if err := s.Portfolio.AnalyzeAndStore(gctx, cand, res); err != nil {
				slog.Warn("portfolio analysis failed",
					slog.String("job_id", jobID),
					slog.String("candidate_id", cand.ID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
