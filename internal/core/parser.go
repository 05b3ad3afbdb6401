package core

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseWorkflow parses YAML content into a validated Workflow.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, errors.Wrap(err, "unmarshal workflow")
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// LoadWorkflow reads a workflow file and returns a validated Workflow.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read workflow %s", path)
	}
	return ParseWorkflow(data)
}

// Validate checks the structural rules a workflow must satisfy before it
// can be planned. Everything here fails the document, not the run.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return errors.New("workflow: name is required")
	}
	if !w.On.WorkflowDispatch {
		return errors.New("workflow: only the workflow_dispatch trigger is supported")
	}
	if len(w.Jobs) == 0 {
		return errors.New("workflow: at least one job is required")
	}
	for _, job := range w.Jobs {
		if err := job.validate(); err != nil {
			return errors.Wrapf(err, "job %q", job.Name)
		}
	}
	return nil
}

func (j Job) validate() error {
	if j.Name == "" {
		return errors.New("name is required")
	}
	if len(j.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	taskSteps := 0
	for i, s := range j.Steps {
		switch {
		case s.Run != "" && s.Uses != "":
			return errors.Errorf("step %d: run and uses are mutually exclusive", i)
		case s.Run != "":
			taskSteps++
		case s.Uses == ActionCheckout:
			// no inputs
		case s.Uses == ActionSetup:
			if s.With.Python == "" {
				return errors.Errorf("step %d: setup requires with.python", i)
			}
		case s.Uses == ActionUpload:
			if s.With.Name == "" || s.With.Path == "" {
				return errors.Errorf("step %d: upload-artifact requires with.name and with.path", i)
			}
		case s.Uses != "":
			return errors.Errorf("step %d: unknown action %q", i, s.Uses)
		default:
			return errors.Errorf("step %d: either run or uses is required", i)
		}
		// Secrets may only reach the task-executor step's process.
		if s.Run == "" && len(s.SecretRefs()) > 0 {
			return errors.Errorf("step %d: secret references are only allowed on the run step", i)
		}
	}
	if taskSteps != 1 {
		return errors.Errorf("expected exactly one run step, found %d", taskSteps)
	}
	return nil
}
