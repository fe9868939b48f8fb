//go:build unix && !linux

package process

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

func killByName(ctx context.Context, name string) error {
	err := exec.CommandContext(ctx, "pkill", "-KILL", "-x", name).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return errors.WithMessage(ErrNoProcess, name)
	}
	return errors.WithMessage(err, "pkill")
}
