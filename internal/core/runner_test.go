package core

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapci/internal/artifact"
	"snapci/internal/journal"
	"snapci/internal/secrets"
	"snapci/internal/storage"
	"snapci/internal/store"
)

const e2eWorkflow = `
name: snap-e2e
on: workflow_dispatch
jobs:
  - name: snapshot
    steps:
      - uses: checkout
      - name: agent
        run: mkdir -p screenshots && printf lobby > screenshots/lobby.png && printf room > screenshots/room1.png && echo "key=$GEMINI_API_KEY"
        env:
          GEMINI_API_KEY: ${{ secrets.GEMINI_API_KEY }}
      - name: upload snapshots
        uses: upload-artifact
        with:
          name: hotel-snapshots
          path: screenshots/*.png
`

const testSecret = "sk-test-0123456789"

type testEnv struct {
	runner  *Runner
	backend *artifact.LocalStore
}

func newTestRunner(t *testing.T, wf *Workflow) *testEnv {
	t.Helper()
	base := t.TempDir()

	jnl, err := journal.Open(filepath.Join(base, "journal.jsonl"))
	require.NoError(t, err)
	pub, priv, err := journal.GenerateKeyPair()
	require.NoError(t, err)

	secretStore := secrets.NewStoreFromMap(map[string]string{"GEMINI_API_KEY": testSecret})
	masker := secrets.NewMasker()
	masker.Add(testSecret)

	backend := artifact.NewLocalStore(filepath.Join(base, "artifacts"))
	r := &Runner{
		Planner:     NewPlanner(secretStore),
		Executor:    NewExecutor(BuildBaseEnv(os.Environ(), wf), masker),
		Logs:        storage.NewLogStorage(filepath.Join(base, "logs")),
		Publisher:   artifact.NewPublisher(backend),
		Journal:     jnl,
		JournalPriv: priv,
		JournalPub:  pub,
		Workspace:   filepath.Join(base, "workspace"),
		StepTimeout: time.Minute,
		Log:         log.New(io.Discard),
	}
	return &testEnv{runner: r, backend: backend}
}

func TestRunnerEndToEnd(t *testing.T) {
	wf, err := ParseWorkflow([]byte(e2eWorkflow))
	require.NoError(t, err)

	env := newTestRunner(t, wf)
	res, err := env.runner.Run(context.Background(), wf, "")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	require.Len(t, res.Bundles, 1)

	b := res.Bundles[0]
	assert.Equal(t, "hotel-snapshots", b.Name)
	var names []string
	for _, f := range b.Files {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"screenshots/lobby.png", "screenshots/room1.png"}, names)

	// The bundle is retrievable from the backend.
	stored, err := env.backend.List(context.Background(), res.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	rc, err := env.backend.Open(context.Background(), res.ID, "hotel-snapshots", "screenshots/lobby.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "lobby", string(data))
}

func TestRunnerMasksSecretInStepLog(t *testing.T) {
	wf, err := ParseWorkflow([]byte(e2eWorkflow))
	require.NoError(t, err)

	env := newTestRunner(t, wf)
	res, err := env.runner.Run(context.Background(), wf, "")
	require.NoError(t, err)

	var agentLog string
	for _, sr := range res.Steps {
		if sr.Name == "agent" {
			agentLog = sr.LogPath
		}
	}
	require.NotEmpty(t, agentLog)
	data, err := os.ReadFile(agentLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "key=***")
	assert.NotContains(t, string(data), testSecret)
}

func TestRunnerJournalsSteps(t *testing.T) {
	wf, err := ParseWorkflow([]byte(e2eWorkflow))
	require.NoError(t, err)

	env := newTestRunner(t, wf)
	res, err := env.runner.Run(context.Background(), wf, "")
	require.NoError(t, err)

	entries := env.runner.Journal.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, res.ID, entries[0].RunID)
	assert.NoError(t, env.runner.Journal.Verify())

	// Editing a saved log afterwards must be detectable.
	require.NoError(t, os.WriteFile(entries[0].LogPath, []byte("doctored"), 0o644))
	assert.Error(t, env.runner.Journal.Verify())
}

const failingWorkflow = `
name: snap-fail
on: workflow_dispatch
jobs:
  - name: snapshot
    steps:
      - uses: checkout
      - name: agent
        run: mkdir -p screenshots && printf partial > screenshots/partial.png && exit 3
      - name: upload snapshots
        uses: upload-artifact
        with:
          name: hotel-snapshots
          path: screenshots/*.png
`

func TestRunnerPublishesPartialOutputOnFailure(t *testing.T) {
	wf, err := ParseWorkflow([]byte(failingWorkflow))
	require.NoError(t, err)

	env := newTestRunner(t, wf)
	res, err := env.runner.Run(context.Background(), wf, "")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	// The upload step still ran and captured what the task produced.
	require.Len(t, res.Bundles, 1)
	require.Len(t, res.Bundles[0].Files, 1)
	assert.Equal(t, "screenshots/partial.png", res.Bundles[0].Files[0].Name)
}

const multiJobWorkflow = `
name: snap-multi
on: workflow_dispatch
jobs:
  - name: first
    steps:
      - uses: checkout
      - name: first-task
        run: "true"
  - name: second
    steps:
      - name: second-task
        run: "true"
`

func TestRunnerKeepsHistoryAcrossJobs(t *testing.T) {
	wf, err := ParseWorkflow([]byte(multiJobWorkflow))
	require.NoError(t, err)

	env := newTestRunner(t, wf)
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	env.runner.Store = st

	res, err := env.runner.Run(context.Background(), wf, "")
	require.NoError(t, err)
	require.Len(t, res.Steps, 3)

	// Every job's steps survive in the store, under run-global indexes.
	recorded, err := st.ListSteps(context.Background(), res.ID)
	require.NoError(t, err)
	require.Len(t, recorded, 3)
	var names []string
	for i, rec := range recorded {
		assert.Equal(t, i, rec.Idx)
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"checkout", "first-task", "second-task"}, names)
}

const brokenSetupWorkflow = `
name: snap-broken-setup
on: workflow_dispatch
jobs:
  - name: snapshot
    steps:
      - uses: checkout
      - uses: setup
        with:
          python: "-no-such-version"
      - name: agent
        run: echo should not run
      - uses: upload-artifact
        with:
          name: hotel-snapshots
          path: screenshots/*.png
`

func TestRunnerSkipsStepsAfterFailure(t *testing.T) {
	wf, err := ParseWorkflow([]byte(brokenSetupWorkflow))
	require.NoError(t, err)

	env := newTestRunner(t, wf)
	res, err := env.runner.Run(context.Background(), wf, "")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	byName := make(map[string]string)
	for _, sr := range res.Steps {
		byName[sr.Name] = sr.Status
	}
	assert.Equal(t, "failed", byName["setup (1)"])
	assert.Equal(t, "skipped", byName["agent"])
	// The upload step is exempt from skipping.
	assert.Equal(t, "succeeded", byName["upload hotel-snapshots"])
}

const emptyGlobWorkflow = `
name: snap-empty
on: workflow_dispatch
jobs:
  - name: snapshot
    steps:
      - uses: checkout
      - run: "true"
      - uses: upload-artifact
        with:
          name: hotel-snapshots
          path: screenshots/*.png
`

func TestRunnerPublishesEmptyBundle(t *testing.T) {
	wf, err := ParseWorkflow([]byte(emptyGlobWorkflow))
	require.NoError(t, err)

	env := newTestRunner(t, wf)
	res, err := env.runner.Run(context.Background(), wf, "")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	require.Len(t, res.Bundles, 1)
	assert.Empty(t, res.Bundles[0].Files)
}
