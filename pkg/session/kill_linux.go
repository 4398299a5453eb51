//go:build linux

package session

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// killByExecutable sends SIGKILL to every process whose executable is bin.
func killByExecutable(ctx context.Context, bin string) error {
	target, err := filepath.EvalSymlinks(bin)
	if err != nil {
		target = bin
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return err
	}

	self := os.Getpid()
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == self {
			continue
		}
		exe, err := os.Readlink(filepath.Join("/proc", e.Name(), "exe"))
		if err != nil || exe != target {
			continue
		}
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	return nil
}
