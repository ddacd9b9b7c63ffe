package upload

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// Runner executes one transfer command.
type Runner interface {
	Run(ctx context.Context, argv []string) error
}

// ExecRunner runs commands as child processes, passing their output through.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}
