//go:build !windows

package spawn

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"
)

// Signal forwards sig to the guest's process group so that children the
// guest launched receive it as well. A guest that already exited is not an
// error.
func (g *Guest) Signal(sig syscall.Signal) error {
	if g.cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-g.cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal guest process group: %w", err)
	}
	return nil
}

// Stop asks the guest to exit with SIGTERM and escalates to SIGKILL once
// the grace period lapses.
func (g *Guest) Stop(ctx context.Context) (Status, error) {
	return g.terminate(ctx, false)
}

// Kill forcibly terminates the guest without a grace period.
func (g *Guest) Kill(ctx context.Context) (Status, error) {
	return g.terminate(ctx, true)
}

func (g *Guest) terminate(ctx context.Context, force bool) (Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.cmd.Process == nil {
		return Status{}, nil
	}

	if !force {
		// Attempt a graceful shutdown first.
		if err := syscall.Kill(-g.cmd.Process.Pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			return Status{}, fmt.Errorf("signal guest process group: %w", err)
		}

		select {
		case <-g.done:
			return g.status, nil
		case <-time.After(g.grace):
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}

	if err := syscall.Kill(-g.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return Status{}, fmt.Errorf("kill guest process group: %w", err)
	}
	select {
	case <-g.done:
		return g.status, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}
