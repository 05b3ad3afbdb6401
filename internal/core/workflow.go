package core

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Workflow is the top-level document loaded from a workflow YAML file.
type Workflow struct {
	Name string  `yaml:"name"` // workflow name, used for dispatch lookup
	On   Trigger `yaml:"on"`   // trigger condition; only manual dispatch is supported
	Jobs []Job   `yaml:"jobs"` // ordered list of jobs, executed sequentially
}

// Trigger describes when a workflow may start. The only supported trigger
// is workflow_dispatch (explicit human action); scheduled or push-style
// triggers are rejected at parse time.
type Trigger struct {
	WorkflowDispatch bool
}

// UnmarshalYAML accepts the common spellings:
//
//	on: workflow_dispatch
//	on: [workflow_dispatch]
//	on:
//	  workflow_dispatch: {}
func (t *Trigger) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		t.WorkflowDispatch = s == "workflow_dispatch"
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		for _, s := range list {
			if s == "workflow_dispatch" {
				t.WorkflowDispatch = true
			}
		}
	case yaml.MappingNode:
		var m map[string]yaml.Node
		if err := node.Decode(&m); err != nil {
			return err
		}
		_, t.WorkflowDispatch = m["workflow_dispatch"]
	default:
		return fmt.Errorf("unsupported trigger node kind %d", node.Kind)
	}
	return nil
}

// Job is a unit of work inside a workflow.
type Job struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one ordered unit of work inside a job. Exactly one of Uses or
// Run is set: Uses references a built-in action, Run is an inline shell
// command (the job's task-executor step).
type Step struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses"`
	Run  string            `yaml:"run"`
	With With              `yaml:"with"`
	Env  map[string]string `yaml:"env"`
}

// Built-in actions a step may reference with uses.
const (
	ActionCheckout = "checkout"
	ActionSetup    = "setup"
	ActionUpload   = "upload-artifact"
)

// With holds the named inputs of a uses step. Which fields are meaningful
// depends on the action: setup reads Python/Packages/Browsers,
// upload-artifact reads Name/Path.
type With struct {
	Python   string   `yaml:"python"`   // interpreter version tag, e.g. "3.12"
	Packages []string `yaml:"packages"` // pip packages, pinnable as name==version
	Browsers []string `yaml:"browsers"` // browser engines for the automation library
	Name     string   `yaml:"name"`     // artifact bundle name
	Path     string   `yaml:"path"`     // glob relative to the workspace
}

var secretRef = regexp.MustCompile(`^\$\{\{\s*secrets\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}$`)

// SecretRefs returns env keys whose value references a secret, mapped to
// the secret name. Plain env values are not included.
func (s Step) SecretRefs() map[string]string {
	refs := make(map[string]string)
	for k, v := range s.Env {
		if m := secretRef.FindStringSubmatch(v); m != nil {
			refs[k] = m[1]
		}
	}
	return refs
}

// TaskStep returns the index of the job's single run step, or -1.
func (j Job) TaskStep() int {
	for i, s := range j.Steps {
		if s.Run != "" {
			return i
		}
	}
	return -1
}
