package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/domain"
	"github.com/talentsift/talentsift/internal/usecase"
	"github.com/talentsift/talentsift/pkg/textx"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Jobs        *usecase.JobService
	Candidates  *usecase.CandidateService
	Ranker      *usecase.RankService
	Ingest      *usecase.IngestService
	Status      *usecase.StatusTracker
	DBCheck     func(ctx context.Context) error
	QdrantCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, jobs *usecase.JobService, cands *usecase.CandidateService, ranker *usecase.RankService, ingest *usecase.IngestService, status *usecase.StatusTracker, dbCheck, qdrantCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Jobs: jobs, Candidates: cands, Ranker: ranker, Ingest: ingest, Status: status, DBCheck: dbCheck, QdrantCheck: qdrantCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type createJobRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=10"`
}

type jobResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Embedded    bool   `json:"embedded"`
	CreatedAt   string `json:"created_at"`
}

func toJobResponse(j domain.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		Title:       j.Title,
		Description: j.Description,
		Embedded:    len(j.Embedding) > 0,
		CreatedAt:   j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateJobHandler handles POST /v1/jobs.
func (s *Server) CreateJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createJobRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		job, err := s.Jobs.Create(r.Context(), req.Title, req.Description)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, toJobResponse(job))
	}
}

// GetJobHandler handles GET /v1/jobs/{id}.
func (s *Server) GetJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := s.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(job))
	}
}

// UploadResumesHandler handles POST /v1/jobs/{id}/resumes: a multipart batch
// of plain-text resumes. It validates synchronously, then responds 202 while
// the pipeline runs in the background.
func (s *Server) UploadResumesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code:    "PAYLOAD_TOO_LARGE",
					Message: fmt.Sprintf("upload exceeds %d MB", s.Cfg.MaxUploadMB),
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: parse multipart: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		files := r.MultipartForm.File["resumes"]
		if len(files) == 0 {
			writeError(w, r, fmt.Errorf("%w: at least one file under field 'resumes' is required", domain.ErrInvalidArgument), nil)
			return
		}

		uploads := make([]usecase.ResumeUpload, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				writeError(w, r, fmt.Errorf("%w: open %s: %v", domain.ErrInvalidArgument, fh.Filename, err), nil)
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				writeError(w, r, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidArgument, fh.Filename, err), nil)
				return
			}
			if mt := mimetype.Detect(data); !allowedMIME(mt.String()) {
				writeError(w, r, fmt.Errorf("%w: %s is %s, only plain text resumes are accepted", domain.ErrInvalidArgument, fh.Filename, mt.String()), map[string]any{"file": fh.Filename})
				return
			}
			uploads = append(uploads, usecase.ResumeUpload{
				FileName: fh.Filename,
				Text:     textx.SanitizeText(string(data)),
			})
		}

		if err := s.Ingest.Start(r.Context(), jobID, uploads); err != nil {
			writeError(w, r, err, nil)
			return
		}
		LoggerFrom(r).Info("resume batch accepted",
			slog.String("job_id", jobID), slog.Int("count", len(uploads)))
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id":   jobID,
			"accepted": len(uploads),
		})
	}
}

// allowedMIME accepts any text MIME; detectors classify markdown-ish resumes
// inconsistently across text subtypes.
func allowedMIME(m string) bool {
	return strings.HasPrefix(strings.ToLower(m), "text/")
}

// StatusHandler handles GET /v1/jobs/{id}/status.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		if _, err := s.Jobs.Get(r.Context(), jobID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, s.Status.Get(jobID))
	}
}

// RankHandler handles GET /v1/jobs/{id}/rank.
func (s *Server) RankHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := rankOptionsFromQuery(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		ranked, err := s.Ranker.Rank(r.Context(), chi.URLParam(r, "id"), opts)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":     chi.URLParam(r, "id"),
			"count":      len(ranked),
			"candidates": ranked,
		})
	}
}

func rankOptionsFromQuery(r *http.Request) (usecase.RankOptions, error) {
	var opts usecase.RankOptions
	q := r.URL.Query()
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("%w: top_k must be a positive integer", domain.ErrInvalidArgument)
		}
		opts.TopK = n
	}
	if v := q.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: min_score must be a number", domain.ErrInvalidArgument)
		}
		opts.MinScore = f
	}
	if v := q.Get("persist"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%w: persist must be a boolean", domain.ErrInvalidArgument)
		}
		opts.PersistScores = b
	}
	return opts, nil
}

// GetCandidateHandler handles GET /v1/candidates/{id}.
func (s *Server) GetCandidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := s.Candidates.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// DeleteCandidateHandler handles DELETE /v1/candidates/{id}.
func (s *Server) DeleteCandidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Candidates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthHandler reports process liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyHandler reports readiness of the dependencies the API cannot serve
// without. The AI providers are deliberately excluded: their outages degrade
// pipelines, not reads.
func (s *Server) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]func(context.Context) error{
			"db":     s.DBCheck,
			"qdrant": s.QdrantCheck,
		}
		failures := map[string]string{}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(r.Context()); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failures})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return fmt.Errorf("%w: content-type must be application/json", domain.ErrInvalidArgument)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrInvalidArgument, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
	}
	if err := jsonUnmarshalStrict(body, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
