package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"snapci/internal/artifact"
	"snapci/internal/config"
	"snapci/internal/journal"
	"snapci/internal/secrets"
	"snapci/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default snapci.yaml in cwd)")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "server"})

	srv, err := newServer(*cfgPath, logger)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}
	defer srv.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.workerLoop(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/workflows/{name}/dispatches", srv.handleDispatch)
	r.Get("/runs", srv.handleListRuns)
	r.Get("/runs/{id}", srv.handleGetRun)
	r.Get("/runs/{id}/artifacts", srv.handleListArtifacts)
	r.Get("/runs/{id}/artifacts/{bundle}/*", srv.handleDownloadArtifact)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              srv.cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", srv.cfg.ListenAddr, "workflows", srv.cfg.WorkflowsDir)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", "err", err)
	}
}

// server owns the long-lived collaborators; per-run state is built in
// the worker loop.
type server struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	backend artifact.Backend
	secrets *secrets.Store
	journal *journal.Journal
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	logger  *log.Logger
}

func newServer(cfgPath string, logger *log.Logger) (*server, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	var backend artifact.Backend
	if cfg.Artifacts.Backend == "s3" {
		backend, err = artifact.NewS3Store(cfg.Artifacts.S3)
	} else {
		backend = artifact.NewLocalStore(cfg.ArtifactsDir())
	}
	if err != nil {
		return nil, err
	}

	secretStore := secrets.NewStore()
	if err := secretStore.LoadDotenv(cfg.DotenvPath); err != nil {
		return nil, err
	}

	jnl, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	pub, priv, err := journal.EnsureKeyPair(cfg.KeysDir())
	if err != nil {
		return nil, errors.Wrap(err, "journal keys")
	}

	return &server{
		cfg:     cfg,
		store:   st,
		backend: backend,
		secrets: secretStore,
		journal: jnl,
		privKey: priv,
		pubKey:  pub,
		logger:  logger,
	}, nil
}
