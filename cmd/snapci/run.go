package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"snapci/internal/core"
	"snapci/internal/journal"
	"snapci/internal/secrets"
	"snapci/internal/storage"
	"snapci/internal/store"
	"snapci/internal/summary"
)

var runSource string

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Execute a workflow locally (manual dispatch)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		wf, err := core.LoadWorkflow(args[0])
		if err != nil {
			return err
		}

		secretStore := secrets.NewStore()
		if err := secretStore.LoadDotenv(cfg.DotenvPath); err != nil {
			return err
		}
		masker := secrets.NewMasker()
		registerSecrets(wf, secretStore, masker)
		logger.SetOutput(masker.Writer(os.Stderr))

		jnl, err := journal.Open(cfg.JournalPath())
		if err != nil {
			return errors.Wrap(err, "open journal")
		}
		pub, priv, err := journal.EnsureKeyPair(cfg.KeysDir())
		if err != nil {
			return errors.Wrap(err, "journal keys")
		}

		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer st.Close()

		backend, err := newBackend(cfg)
		if err != nil {
			return err
		}

		runner := &core.Runner{
			Planner:     core.NewPlanner(secretStore),
			Executor:    core.NewExecutor(core.BuildBaseEnv(os.Environ(), wf), masker),
			Logs:        storage.NewLogStorage(cfg.LogsDir()),
			Publisher:   newPublisher(backend),
			Journal:     jnl,
			JournalPriv: priv,
			JournalPub:  pub,
			Store:       st,
			Workspace:   cfg.WorkspaceDir(),
			Source:      runSource,
			StepTimeout: cfg.StepTimeout,
			Log:         logger,
		}

		if cfg.Summary.Enabled {
			key, _ := secretStore.Get("GEMINI_API_KEY")
			sum, err := summary.New(ctx, key, cfg.Summary.Model)
			if err != nil {
				logger.Warn("summarizer disabled", "err", err)
			} else {
				runner.Summarizer = sum
			}
		}

		res, err := runner.Run(ctx, wf, "")
		if err != nil {
			if res != nil {
				return errors.Wrapf(err, "run %s", res.ID)
			}
			return err
		}
		logger.Info("run finished", "run", res.ID, "status", res.Status, "bundles", len(res.Bundles))
		return nil
	},
}

// registerSecrets adds every secret value the workflow references to the
// masker, so neither step logs nor runner output can leak them.
func registerSecrets(wf *core.Workflow, st *secrets.Store, masker *secrets.Masker) {
	for _, job := range wf.Jobs {
		for _, step := range job.Steps {
			for _, name := range step.SecretRefs() {
				if v, ok := st.Get(name); ok {
					masker.Add(v)
				}
			}
		}
	}
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "directory copied into the workspace by the checkout step")
	rootCmd.AddCommand(runCmd)
}
