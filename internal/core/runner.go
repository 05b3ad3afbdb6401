package core

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapci/internal/artifact"
	"snapci/internal/journal"
	"snapci/internal/storage"
	"snapci/internal/store"
	"snapci/pkg/utils"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Status is a run's position in its lifecycle.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusProvisioning Status = "provisioning"
	StatusExecuting    Status = "executing"
	StatusPublishing   Status = "publishing"
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
)

// StepResult is the outcome of one planned step.
type StepResult struct {
	Name    string
	Phase   Phase
	Status  string // succeeded, failed, skipped
	LogPath string
	Err     error
}

// RunResult is the full outcome of one run.
type RunResult struct {
	ID         string
	Workflow   string
	Status     Status
	Steps      []StepResult
	Bundles    []artifact.Bundle
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Summarizer produces a short human-readable digest of a finished run.
// Summarization is best-effort and never affects the run's status.
type Summarizer interface {
	Summarize(ctx context.Context, workflow string, status string, logs string) (string, error)
}

// Runner walks a workflow through queued → provisioning → executing →
// publishing → {succeeded, failed}. Steps are strictly sequential; the
// first failure is terminal, except that upload steps still run so
// partial output is captured for debugging.
type Runner struct {
	Planner   *Planner
	Executor  *Executor
	Logs      *storage.LogStorage
	Publisher *artifact.Publisher

	// Optional collaborators. A nil Journal or Store simply skips that
	// concern; the CLI one-shot path runs without history.
	Journal     *journal.Journal
	JournalPriv ed25519.PrivateKey
	JournalPub  ed25519.PublicKey
	Store       *store.SQLiteStore
	Summarizer  Summarizer

	Workspace   string
	Source      string // optional directory the checkout step copies in
	StepTimeout time.Duration
	Log         *log.Logger
}

// BuildBaseEnv returns environ stripped of every variable the workflow
// references as a secret. The planner re-injects those values into the
// single run step, so no other step's process ever sees them.
func BuildBaseEnv(environ []string, wf *Workflow) []string {
	referenced := make(map[string]bool)
	for _, job := range wf.Jobs {
		for _, s := range job.Steps {
			for _, name := range s.SecretRefs() {
				referenced[name] = true
			}
		}
	}
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if !referenced[name] {
			out = append(out, kv)
		}
	}
	return out
}

// Run executes the workflow. runID may be empty for one-shot local runs.
func (r *Runner) Run(ctx context.Context, wf *Workflow, runID string) (*RunResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	res := &RunResult{
		ID:        runID,
		Workflow:  wf.Name,
		Status:    StatusQueued,
		StartedAt: time.Now().UTC(),
	}
	logger := r.Log.With("run", runID, "workflow", wf.Name)

	if r.Store != nil {
		existing, err := r.Store.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if err := r.Store.CreateRun(ctx, runID, wf.Name, string(StatusQueued)); err != nil {
				return nil, err
			}
		}
	}

	for _, job := range wf.Jobs {
		planned, err := r.Planner.Plan(job)
		if err != nil {
			// Unresolvable secrets and the like: fail before running anything.
			r.setStatus(ctx, logger, res, StatusFailed, err)
			res.FinishedAt = time.Now().UTC()
			return res, err
		}
		r.runJob(ctx, logger, res, planned)
		if res.Err != nil {
			break
		}
	}

	final := StatusSucceeded
	if res.Err != nil {
		final = StatusFailed
	}
	r.setStatus(ctx, logger, res, final, res.Err)
	res.FinishedAt = time.Now().UTC()

	r.summarize(ctx, logger, res)
	return res, res.Err
}

func (r *Runner) runJob(ctx context.Context, logger *log.Logger, res *RunResult, planned []PlannedStep) {
	for _, step := range planned {
		if res.Err != nil && !step.Always {
			r.recordStep(ctx, res, StepResult{Name: step.Name, Phase: step.Phase, Status: "skipped"})
			continue
		}
		r.enterPhase(ctx, logger, res, step.Phase)

		var sr StepResult
		switch step.Kind {
		case KindWorkspace:
			sr = r.runCheckout(step)
		case KindCommand:
			sr = r.runCommand(ctx, logger, res.ID, step)
		case KindUpload:
			sr = r.runUpload(ctx, logger, res, step)
		}
		sr.Name = step.Name
		sr.Phase = step.Phase

		r.journalStep(logger, res.ID, sr)
		r.recordStep(ctx, res, sr)

		if sr.Err != nil {
			logger.Error("step failed", "step", step.Name, "err", sr.Err)
			if res.Err == nil {
				res.Err = sr.Err
			}
			continue
		}
		logger.Info("step completed", "step", step.Name)
	}
}

// runCheckout prepares a clean, exclusively-owned workspace, copying the
// source directory in when one is configured.
func (r *Runner) runCheckout(step PlannedStep) StepResult {
	if err := os.RemoveAll(r.Workspace); err != nil {
		return StepResult{Status: "failed", Err: errors.Wrap(err, "clean workspace")}
	}
	if err := os.MkdirAll(r.Workspace, 0o755); err != nil {
		return StepResult{Status: "failed", Err: errors.Wrap(err, "create workspace")}
	}
	if r.Source != "" {
		if err := copyDir(r.Source, r.Workspace); err != nil {
			return StepResult{Status: "failed", Err: errors.Wrap(err, "copy source")}
		}
	}
	return StepResult{Status: "succeeded"}
}

func (r *Runner) runCommand(ctx context.Context, logger *log.Logger, runID string, step PlannedStep) StepResult {
	logger.Info("running", "step", step.Name, "command", step.Command)
	output, err := r.Executor.RunCommand(ctx, step.Command, r.Workspace, step.Env, r.StepTimeout)

	sr := StepResult{Status: "succeeded", Err: err}
	if err != nil {
		sr.Status = "failed"
		sr.Err = errors.Wrapf(err, "step %q", step.Name)
	}
	logPath, logErr := r.Logs.SaveLog(runID, step.Name, output)
	if logErr != nil {
		logger.Warn("cannot save step log", "step", step.Name, "err", logErr)
		return sr
	}
	sr.LogPath = logPath
	return sr
}

func (r *Runner) runUpload(ctx context.Context, logger *log.Logger, res *RunResult, step PlannedStep) StepResult {
	bundle, err := r.Publisher.Publish(ctx, res.ID, step.Upload.Bundle, step.Upload.Glob, r.Workspace)
	if err != nil {
		return StepResult{Status: "failed", Err: errors.Wrapf(err, "publish %q", step.Upload.Bundle)}
	}
	if len(bundle.Files) == 0 {
		logger.Warn("no files matched, publishing empty bundle",
			"bundle", step.Upload.Bundle, "glob", step.Upload.Glob)
	}
	res.Bundles = append(res.Bundles, *bundle)

	var sb strings.Builder
	fmt.Fprintf(&sb, "bundle %s (%d files)\n", bundle.Name, len(bundle.Files))
	for _, f := range bundle.Files {
		fmt.Fprintf(&sb, "%s  %d  %s\n", f.Name, f.Size, f.SHA256)
	}
	logPath, logErr := r.Logs.SaveLog(res.ID, step.Name, sb.String())
	if logErr != nil {
		logger.Warn("cannot save upload log", "step", step.Name, "err", logErr)
		return StepResult{Status: "succeeded"}
	}
	return StepResult{Status: "succeeded", LogPath: logPath}
}

// journalStep appends one hash-chained entry. Journal failures are
// logged, never fatal to the run.
func (r *Runner) journalStep(logger *log.Logger, runID string, sr StepResult) {
	if r.Journal == nil || sr.LogPath == "" {
		return
	}
	logHash, err := utils.HashFile(sr.LogPath)
	if err != nil {
		logger.Warn("cannot hash step log", "err", err)
		return
	}
	entry, err := journal.NewEntry(
		r.Journal.NextIndex(), runID, sr.Name, string(sr.Phase),
		sr.LogPath, logHash, r.Journal.LastHash())
	if err != nil {
		logger.Warn("cannot create journal entry", "err", err)
		return
	}
	if err := r.Journal.Append(entry, r.JournalPriv, r.JournalPub); err != nil {
		logger.Warn("cannot append journal entry", "err", err)
	}
}

// recordStep appends the result and persists it under a run-global
// index, so jobs executed later in the workflow never overwrite the
// history of earlier ones.
func (r *Runner) recordStep(ctx context.Context, res *RunResult, sr StepResult) {
	idx := len(res.Steps)
	res.Steps = append(res.Steps, sr)
	if r.Store == nil {
		return
	}
	if err := r.Store.RecordStep(ctx, store.StepRecord{
		RunID:   res.ID,
		Idx:     idx,
		Name:    sr.Name,
		Phase:   string(sr.Phase),
		Status:  sr.Status,
		LogPath: sr.LogPath,
	}); err != nil {
		r.Log.Warn("cannot record step", "run", res.ID, "err", err)
	}
}

// enterPhase moves the run's visible status forward when a step of a new
// phase starts. Phases never move backwards, and a failed run stays
// failed.
func (r *Runner) enterPhase(ctx context.Context, logger *log.Logger, res *RunResult, phase Phase) {
	var next Status
	switch phase {
	case PhaseCheckout, PhaseProvision:
		next = StatusProvisioning
	case PhaseExecute:
		next = StatusExecuting
	case PhasePublish:
		next = StatusPublishing
	default:
		return
	}
	if res.Status == next {
		return
	}
	r.setStatus(ctx, logger, res, next, nil)
}

func (r *Runner) setStatus(ctx context.Context, logger *log.Logger, res *RunResult, status Status, cause error) {
	res.Status = status
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	logger.Info("status", "status", status)
	if r.Store != nil {
		if err := r.Store.SetStatus(ctx, res.ID, string(status), msg); err != nil {
			logger.Warn("cannot persist status", "err", err)
		}
	}
}

// summarize asks the configured summarizer for a digest of the run and
// stores it as one more log file.
func (r *Runner) summarize(ctx context.Context, logger *log.Logger, res *RunResult) {
	if r.Summarizer == nil {
		return
	}
	var sb strings.Builder
	for _, sr := range res.Steps {
		if sr.LogPath == "" {
			continue
		}
		data, err := os.ReadFile(sr.LogPath)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "## %s (%s)\n%s\n", sr.Name, sr.Status, truncate(string(data), 4000))
	}
	summary, err := r.Summarizer.Summarize(ctx, res.Workflow, string(res.Status), sb.String())
	if err != nil {
		logger.Warn("summary unavailable", "err", err)
		return
	}
	if path, err := r.Logs.SaveLog(res.ID, "summary", summary); err == nil {
		logger.Info("run summary saved", "path", path)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
