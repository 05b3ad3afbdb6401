package main

import (
	"context"
	"os"
	"time"

	"snapci/internal/artifact"
	"snapci/internal/core"
	"snapci/internal/secrets"
	"snapci/internal/storage"
	"snapci/internal/summary"
)

// workerLoop claims queued runs one at a time and executes them. A
// single worker keeps the workspace exclusively owned by the active run.
func (s *server) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("worker stopping")
			return
		case <-ticker.C:
			run, err := s.store.AcquireQueued(ctx, string(core.StatusProvisioning))
			if err != nil {
				s.logger.Error("acquire run", "err", err)
				continue
			}
			if run == nil {
				continue
			}
			s.executeRun(ctx, run.ID, run.Workflow)
		}
	}
}

func (s *server) executeRun(ctx context.Context, runID, workflowName string) {
	wf, _, err := s.findWorkflow(workflowName)
	if err != nil {
		s.logger.Error("workflow unavailable", "workflow", workflowName, "run", runID, "err", err)
		_ = s.store.SetStatus(ctx, runID, string(core.StatusFailed), "workflow unavailable: "+err.Error())
		return
	}

	masker := secrets.NewMasker()
	for _, job := range wf.Jobs {
		for _, step := range job.Steps {
			for _, name := range step.SecretRefs() {
				if v, ok := s.secrets.Get(name); ok {
					masker.Add(v)
				}
			}
		}
	}

	runner := &core.Runner{
		Planner:     core.NewPlanner(s.secrets),
		Executor:    core.NewExecutor(core.BuildBaseEnv(os.Environ(), wf), masker),
		Logs:        storage.NewLogStorage(s.cfg.LogsDir()),
		Publisher:   artifact.NewPublisher(s.backend),
		Journal:     s.journal,
		JournalPriv: s.privKey,
		JournalPub:  s.pubKey,
		Store:       s.store,
		Workspace:   s.cfg.WorkspaceDir(),
		StepTimeout: s.cfg.StepTimeout,
		Log:         s.logger,
	}

	if s.cfg.Summary.Enabled {
		key, _ := s.secrets.Get("GEMINI_API_KEY")
		if sum, err := summary.New(ctx, key, s.cfg.Summary.Model); err == nil {
			runner.Summarizer = sum
		} else {
			s.logger.Warn("summarizer disabled", "err", err)
		}
	}

	if _, err := runner.Run(ctx, wf, runID); err != nil {
		s.logger.Error("run failed", "run", runID, "err", err)
	}
}
