// Command server starts the candidate ranking HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	ai "github.com/talentsift/talentsift/internal/adapter/ai"
	github "github.com/talentsift/talentsift/internal/adapter/github"
	httpserver "github.com/talentsift/talentsift/internal/adapter/httpserver"
	"github.com/talentsift/talentsift/internal/adapter/observability"
	"github.com/talentsift/talentsift/internal/adapter/repo/postgres"
	qdrantcli "github.com/talentsift/talentsift/internal/adapter/vector/qdrant"
	"github.com/talentsift/talentsift/internal/app"
	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobRepo := postgres.NewJobRepo(pool)
	candRepo := postgres.NewCandidateRepo(pool)
	resumeRepo := postgres.NewResumeRepo(pool)
	portfolioRepo := postgres.NewPortfolioRepo(pool)

	aicl := ai.NewEmbedCache(ai.New(cfg), cfg.EmbedCacheSize)
	qcli := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection, cfg.VectorTimeout)
	ghcli := github.New(cfg.GitHubBaseURL, cfg.GitHubToken, cfg.GitHubTimeout)

	// Idempotent collection bootstrap; a down Qdrant delays it to the first
	// pipeline run rather than blocking startup.
	if err := qcli.EnsureCollection(ctx, cfg.EmbeddingDim, "Cosine"); err != nil {
		slog.Warn("qdrant collection bootstrap failed", slog.Any("error", err))
	}

	weights := config.DefaultRankWeights()
	if cfg.RankWeightsPath != "" {
		weights, err = config.LoadRankWeights(cfg.RankWeightsPath)
		if err != nil {
			slog.Error("rank weights load failed", slog.String("path", cfg.RankWeightsPath), slog.Any("error", err))
			os.Exit(1)
		}
	}

	statusTracker := usecase.NewStatusTracker(cfg.StatusTTL)
	structureSvc := usecase.NewStructureService(aicl, cfg.LLMModel, cfg.PromptTokenBudget)
	portfolioSvc := usecase.NewPortfolioService(aicl, ghcli, portfolioRepo, cfg.MaxReposPerCandidate)
	rankSvc := usecase.NewRankService(jobRepo, candRepo, resumeRepo, portfolioRepo, qcli, weights)
	jobSvc := usecase.NewJobService(jobRepo, aicl, qcli)
	candSvc := usecase.NewCandidateService(candRepo, resumeRepo, portfolioRepo, qcli)
	ingestSvc := &usecase.IngestService{
		Jobs:                 jobRepo,
		Candidates:           candRepo,
		Resumes:              resumeRepo,
		Portfolios:           portfolioRepo,
		AI:                   aicl,
		Index:                qcli,
		Structure:            &structureSvc,
		Portfolio:            portfolioSvc,
		Ranker:               rankSvc,
		Status:               statusTracker,
		PortfolioConcurrency: cfg.PortfolioConcurrency,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go statusTracker.RunJanitor(janitorCtx, 5*time.Minute)

	dbCheck, qdrantCheck := app.BuildReadinessChecks(pool, qcli)
	srv := httpserver.NewServer(cfg, jobSvc, candSvc, rankSvc, ingestSvc, statusTracker, dbCheck, qdrantCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.Any("error", err))
	}
	slog.Info("server stopped")
}
