// Package process runs, signals and spawns the proxy's executables.
package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"proxyup/internal/logger"
)

// ErrNoProcess is returned by KillByName when nothing matched the name.
var ErrNoProcess = errors.New("no matching process")

// Controller abstracts process management to ease testing.
type Controller interface {
	// Output runs name with args in dir and returns its standard output.
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	// KillByName terminates every running process whose name is name.
	KillByName(ctx context.Context, name string) error
	// SpawnDetached starts name in dir without waiting for it and returns its pid.
	SpawnDetached(dir, name string, args ...string) (int, error)
}

// SystemController manages processes on the local OS.
type SystemController struct {
	logger logger.Logger
}

// NewSystemController returns a Controller backed by the host OS.
func NewSystemController(log logger.Logger) *SystemController {
	return &SystemController{logger: log}
}

// Resolve locates an executable, preferring dir over PATH. The returned
// error wraps exec.ErrNotFound when neither has it.
func Resolve(dir, name string) (string, error) {
	if dir != "" && !filepath.IsAbs(name) {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs, nil
			}
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.WithMessagef(err, "resolve %s", name)
	}
	return path, nil
}

func (c *SystemController) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	path, err := Resolve(dir, name)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	c.debug(ctx, "running command", logger.String("path", path), logger.Any("args", args))

	out, err := cmd.Output()
	if err != nil {
		return out, errors.WithMessagef(err, "run %s", path)
	}
	return out, nil
}

func (c *SystemController) KillByName(ctx context.Context, name string) error {
	c.debug(ctx, "terminating processes", logger.String("name", name))
	return killByName(ctx, name)
}

func (c *SystemController) SpawnDetached(dir, name string, args ...string) (int, error) {
	path, err := Resolve(dir, name)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return 0, errors.WithMessagef(err, "start %s", path)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, errors.WithMessagef(err, "release %s", path)
	}

	c.debug(context.Background(), "spawned detached process", logger.String("path", path), logger.Int("pid", pid))
	return pid, nil
}

func (c *SystemController) debug(ctx context.Context, msg string, fields ...logger.Field) {
	if c.logger != nil {
		c.logger.DebugContext(ctx, msg, fields...)
	}
}
