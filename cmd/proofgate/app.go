package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apisrv "github.com/compose-network/proofgate/server/api"
	apimw "github.com/compose-network/proofgate/server/api/middleware"

	"github.com/compose-network/proofgate/internal/config"
	"github.com/compose-network/proofgate/metrics"
	"github.com/compose-network/proofgate/x/proofgate/artifacts"
	"github.com/compose-network/proofgate/x/proofgate/claimchain"
	"github.com/compose-network/proofgate/x/proofgate/consumers"
	"github.com/compose-network/proofgate/x/proofgate/coordinator"
	"github.com/compose-network/proofgate/x/proofgate/httpapi"
	"github.com/compose-network/proofgate/x/proofgate/leaderboard"
	"github.com/compose-network/proofgate/x/proofgate/prover"
	"github.com/compose-network/proofgate/x/proofgate/queue"
)

// App wires together the proof coordinator, its task queues and
// consumers, and the edge HTTP server.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	coord         *coordinator.Coordinator
	proofConsumer *consumers.ProofConsumer
	claimConsumer *consumers.ClaimConsumer
	board         *leaderboard.Board
	apiServer     *apisrv.Server

	cancel context.CancelFunc
}

// NewApp constructs an App and all of its components.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}

	if err := app.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

func (a *App) initialize(ctx context.Context) error {
	store, err := newArtifactStore(a.cfg.Artifacts)
	if err != nil {
		return err
	}

	proverClient, err := prover.NewHTTPClient(a.cfg.Prover.BaseURL, &http.Client{Timeout: a.cfg.Prover.Timeout}, a.log)
	if err != nil {
		return fmt.Errorf("failed to create prover client: %w", err)
	}

	proofQueue := queue.NewMemoryQueue(queue.Config{Concurrency: 1})
	claimQueue := queue.NewMemoryQueue(queue.Config{Concurrency: a.cfg.Claim.QueueConcurrency})

	coordMetrics := metrics.NewCoordinatorMetrics()
	coordCfg := coordinator.Config{
		MaxTapeBytes:              a.cfg.Coordinator.MaxTapeBytes,
		MaxJobWallTime:            a.cfg.Coordinator.MaxJobWallTime,
		MaxCompletedJobs:          a.cfg.Coordinator.MaxCompletedJobs,
		CompletedJobRetention:     a.cfg.Coordinator.CompletedJobRetention,
		PrunePageSize:             a.cfg.Coordinator.PrunePageSize,
		PollInterval:              a.cfg.Coordinator.PollInterval,
		SegmentLimitPo2Default:    a.cfg.Coordinator.SegmentLimitPo2Default,
		MaxProverRecoveryAttempts: a.cfg.Coordinator.MaxProverRecoveryAttempts,
		ProverExpectedImageID:     a.cfg.Coordinator.ExpectedImageID,
		ExpectedRulesDigest:       a.cfg.Coordinator.ExpectedRulesDigest,
		ExpectedRuleset:           a.cfg.Coordinator.ExpectedRuleset,
	}

	a.coord = coordinator.New(coordCfg, coordinator.Dependencies{
		Store:      coordinator.NewMemoryStore(),
		Artifacts:  store,
		ProofQueue: proofQueue,
		ClaimQueue: claimQueue,
		Prover:     proverClient,
	}, a.log, coordMetrics)

	a.proofConsumer = consumers.NewProofConsumer(a.coord, proofQueue, store, proverClient, coordMetrics, a.log)

	a.board = leaderboard.NewBoard()

	submitter := claimchain.NewLoggingSubmitter(a.log, a.board)
	a.claimConsumer = consumers.NewClaimConsumer(a.coord, claimQueue, submitter, a.log)

	if err := a.initializeAPIServer(store, proverClient); err != nil {
		return err
	}

	return nil
}

// handleLiveness answers the ambient process-liveness probe.
func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func newArtifactStore(cfg config.ArtifactsConfig) (artifacts.Store, error) {
	switch cfg.Backend {
	case "fs":
		return artifacts.NewFSStore(cfg.FSRoot), nil
	default:
		return artifacts.NewMemoryStore(), nil
	}
}

func (a *App) initializeAPIServer(store artifacts.Store, proverClient prover.Client) error {
	apiCfg := apisrv.Config{
		ListenAddr:        a.cfg.API.ListenAddr,
		ReadHeaderTimeout: a.cfg.API.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.API.ReadTimeout,
		WriteTimeout:      a.cfg.API.WriteTimeout,
		IdleTimeout:       a.cfg.API.IdleTimeout,
		MaxHeaderBytes:    a.cfg.API.MaxHeaderBytes,
	}
	s := apisrv.NewServer(apiCfg, a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log))

	// Process liveness, distinct from the domain /api/health
	// compatibility report the proof-gateway handler serves.
	s.Router.HandleFunc("/health", handleLiveness).Methods(http.MethodGet)

	handler := httpapi.NewHandler(a.coord, store, proverClient, a.board, httpapi.Config{
		MaxTapeBytes:        a.cfg.Coordinator.MaxTapeBytes,
		ExpectedImageID:     a.cfg.Coordinator.ExpectedImageID,
		ExpectedRulesDigest: a.cfg.Coordinator.ExpectedRulesDigest,
		ExpectedRuleset:     a.cfg.Coordinator.ExpectedRuleset,
	}, a.log)
	handler.RegisterRoutes(s.Router)

	if a.cfg.Metrics.Enabled {
		s.Router.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	a.apiServer = s
	return nil
}

// Run starts all components and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.proofConsumer.Run(runCtx)
	go a.claimConsumer.Run(runCtx)

	go func() {
		if err := a.apiServer.Start(runCtx); err != nil {
			a.log.Error().Err(err).Msg("API server error")
		}
	}()

	return a.runWithGracefulShutdown(runCtx)
}

func (a *App) runWithGracefulShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info().Msg("proofgate started successfully")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	}

	if a.cancel != nil {
		a.cancel()
	}

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.log.Info().Msg("initiating graceful shutdown")

	a.coord.Stop()

	a.log.Info().Msg("graceful shutdown complete")
	return nil
}
