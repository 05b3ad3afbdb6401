package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWorkflow = `
name: hotel-agent
on: workflow_dispatch
jobs:
  - name: snapshot
    steps:
      - uses: checkout
      - uses: setup
        with:
          python: "3.12"
          packages: [playwright==1.49.1]
          browsers: [chromium]
      - run: python3 agent.py
        env:
          GEMINI_API_KEY: ${{ secrets.GEMINI_API_KEY }}
      - uses: upload-artifact
        with:
          name: hotel-snapshots
          path: screenshots/*.png
`

func TestParseWorkflow(t *testing.T) {
	wf, err := ParseWorkflow([]byte(validWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "hotel-agent", wf.Name)
	assert.True(t, wf.On.WorkflowDispatch)
	require.Len(t, wf.Jobs, 1)
	require.Len(t, wf.Jobs[0].Steps, 4)
	assert.Equal(t, 2, wf.Jobs[0].TaskStep())
	assert.Equal(t, map[string]string{"GEMINI_API_KEY": "GEMINI_API_KEY"},
		wf.Jobs[0].Steps[2].SecretRefs())
}

func TestParseTriggerSpellings(t *testing.T) {
	tcs := map[string]struct {
		on      string
		allowed bool
	}{
		"scalar":   {on: "on: workflow_dispatch", allowed: true},
		"sequence": {on: "on: [workflow_dispatch]", allowed: true},
		"mapping":  {on: "on:\n  workflow_dispatch: {}", allowed: true},
		"push":     {on: "on: push", allowed: false},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			doc := "name: w\n" + tc.on + `
jobs:
  - name: j
    steps:
      - run: "true"
`
			_, err := ParseWorkflow([]byte(doc))
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, "workflow_dispatch")
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tcs := map[string]struct {
		doc     string
		wantErr string
	}{
		"no jobs": {
			doc:     "name: w\non: workflow_dispatch\njobs: []\n",
			wantErr: "at least one job",
		},
		"no run step": {
			doc: `
name: w
on: workflow_dispatch
jobs:
  - name: j
    steps:
      - uses: checkout
`,
			wantErr: "exactly one run step",
		},
		"two run steps": {
			doc: `
name: w
on: workflow_dispatch
jobs:
  - name: j
    steps:
      - run: "true"
      - run: "false"
`,
			wantErr: "exactly one run step",
		},
		"run and uses together": {
			doc: `
name: w
on: workflow_dispatch
jobs:
  - name: j
    steps:
      - uses: checkout
        run: "true"
`,
			wantErr: "mutually exclusive",
		},
		"unknown action": {
			doc: `
name: w
on: workflow_dispatch
jobs:
  - name: j
    steps:
      - uses: teleport
      - run: "true"
`,
			wantErr: "unknown action",
		},
		"setup without python": {
			doc: `
name: w
on: workflow_dispatch
jobs:
  - name: j
    steps:
      - uses: setup
      - run: "true"
`,
			wantErr: "setup requires with.python",
		},
		"upload without inputs": {
			doc: `
name: w
on: workflow_dispatch
jobs:
  - name: j
    steps:
      - run: "true"
      - uses: upload-artifact
`,
			wantErr: "upload-artifact requires",
		},
		"secret on non-run step": {
			doc: `
name: w
on: workflow_dispatch
jobs:
  - name: j
    steps:
      - uses: checkout
        env:
          TOKEN: ${{ secrets.TOKEN }}
      - run: "true"
`,
			wantErr: "only allowed on the run step",
		},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWorkflow([]byte(tc.doc))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
