//go:build linux

package process

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// commLen is the kernel's task name limit minus the trailing NUL.
const commLen = 15

var procRoot = "/proc"

func killByName(ctx context.Context, name string) error {
	pids, err := findByName(procRoot, name)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return errors.WithMessage(ErrNoProcess, name)
	}

	var firstErr error
	for _, pid := range pids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH && firstErr == nil {
			firstErr = errors.Wrapf(err, "signal pid %d", pid)
		}
	}
	return firstErr
}

// findByName scans root for processes whose comm matches name the way
// pkill does, truncating long names to the kernel limit.
func findByName(root, name string) ([]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", root)
	}

	want := name
	if len(want) > commLen {
		want = want[:commLen]
	}
	self := os.Getpid()

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(root, entry.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimRight(string(comm), "\n") == want {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}
