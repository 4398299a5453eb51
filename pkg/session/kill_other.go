//go:build !linux

package session

import "context"

// killByExecutable is a no-op where the process table cannot be read
// without extra tooling; the launcher already kills the process it started.
func killByExecutable(ctx context.Context, bin string) error {
	return nil
}
