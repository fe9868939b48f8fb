//go:build windows

package process

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

func killByName(ctx context.Context, name string) error {
	out, err := exec.CommandContext(ctx, "taskkill", "/F", "/IM", name).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "taskkill: %s", out)
	}
	return nil
}
