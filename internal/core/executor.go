package core

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"snapci/internal/secrets"
)

// Executor runs planned shell commands in the workspace.
type Executor struct {
	// BaseEnv is the environment every command starts from. The runner
	// builds it without any secret values; step env is layered on top,
	// so a secret reaches exactly the one process that referenced it.
	BaseEnv []string
	Masker  *secrets.Masker
}

func NewExecutor(baseEnv []string, masker *secrets.Masker) *Executor {
	return &Executor{BaseEnv: baseEnv, Masker: masker}
}

// RunCommand executes a single command via the shell and returns its
// combined, secret-masked output.
func (e *Executor) RunCommand(ctx context.Context, command, dir string, env map[string]string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = append(append([]string{}, e.BaseEnv...), flatten(env)...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.String()
	if e.Masker != nil {
		output = e.Masker.Redact(output)
	}
	return output, err
}

func flatten(env map[string]string) []string {
	kv := make([]string, 0, len(env))
	for k, v := range env {
		kv = append(kv, k+"="+v)
	}
	return kv
}
