package core

import (
	"fmt"

	"snapci/internal/secrets"

	"github.com/pkg/errors"
)

// Phase tags a planned step with the run state it executes under.
type Phase string

const (
	PhaseCheckout  Phase = "checkout"
	PhaseProvision Phase = "provision"
	PhaseExecute   Phase = "execute"
	PhasePublish   Phase = "publish"
)

// Kind says how the runner carries a planned step out.
type Kind string

const (
	KindWorkspace Kind = "workspace" // prepare the workspace directory
	KindCommand   Kind = "command"   // shell command via the executor
	KindUpload    Kind = "upload"    // artifact publish
)

// PlannedStep is one fully resolved unit of execution. Env holds the
// step's extra environment with secret references already resolved;
// only execute-phase steps ever carry secret values.
type PlannedStep struct {
	Name    string
	Phase   Phase
	Kind    Kind
	Command string
	Env     map[string]string
	Upload  *UploadSpec
	Always  bool // run even after an earlier step failed
}

// UploadSpec names an artifact bundle and the workspace glob it collects.
type UploadSpec struct {
	Bundle string
	Glob   string
}

// Planner expands a validated job into the ordered steps the runner
// walks through. Order is fixed: checkout, provisioning, the single task
// command, uploads. Upload steps are marked Always so partial output is
// still captured when the task fails.
type Planner struct {
	Secrets *secrets.Store
}

func NewPlanner(store *secrets.Store) *Planner {
	return &Planner{Secrets: store}
}

// Plan resolves a job's steps. Unresolvable secret references are an
// error here, before anything has run, rather than an undefined failure
// deep inside the external program.
func (p *Planner) Plan(job Job) ([]PlannedStep, error) {
	planned := make([]PlannedStep, 0, len(job.Steps)+2)
	for i, s := range job.Steps {
		switch {
		case s.Uses == ActionCheckout:
			planned = append(planned, PlannedStep{
				Name:  stepName(s, "checkout"),
				Phase: PhaseCheckout,
				Kind:  KindWorkspace,
			})
		case s.Uses == ActionSetup:
			for n, cmd := range provisionCommands(s.With) {
				planned = append(planned, PlannedStep{
					Name:    fmt.Sprintf("%s (%d)", stepName(s, "setup"), n+1),
					Phase:   PhaseProvision,
					Kind:    KindCommand,
					Command: cmd,
				})
			}
		case s.Run != "":
			env, err := p.resolveEnv(s)
			if err != nil {
				return nil, errors.Wrapf(err, "step %d", i)
			}
			planned = append(planned, PlannedStep{
				Name:    stepName(s, "run"),
				Phase:   PhaseExecute,
				Kind:    KindCommand,
				Command: s.Run,
				Env:     env,
			})
		case s.Uses == ActionUpload:
			planned = append(planned, PlannedStep{
				Name:   stepName(s, "upload "+s.With.Name),
				Phase:  PhasePublish,
				Kind:   KindUpload,
				Upload: &UploadSpec{Bundle: s.With.Name, Glob: s.With.Path},
				Always: true,
			})
		}
	}
	return planned, nil
}

// resolveEnv materializes a step's env bindings, swapping secret
// references for their values from the store.
func (p *Planner) resolveEnv(s Step) (map[string]string, error) {
	if len(s.Env) == 0 {
		return nil, nil
	}
	refs := s.SecretRefs()
	env := make(map[string]string, len(s.Env))
	for k, v := range s.Env {
		if name, ok := refs[k]; ok {
			val, found := p.Secrets.Get(name)
			if !found {
				return nil, errors.Errorf("secret %s is not set", name)
			}
			env[k] = val
			continue
		}
		env[k] = v
	}
	return env, nil
}

func stepName(s Step, fallback string) string {
	if s.Name != "" {
		return s.Name
	}
	return fallback
}
