//go:build windows

package spawn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/Paintersrp/proclet/internal/signals"
)

// Signal delivers sig to the direct child. Windows has no process groups in
// the Unix sense, so only interrupt and kill can be expressed.
func (g *Guest) Signal(sig syscall.Signal) error {
	if g.cmd.Process == nil {
		return nil
	}
	switch sig {
	case syscall.SIGINT:
		return g.cmd.Process.Signal(os.Interrupt)
	case syscall.SIGKILL, syscall.SIGTERM:
		if err := g.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("forward %s to guest: %w", signals.Name(sig), signals.ErrUnsupported)
	}
}

// Stop asks the guest to exit with an interrupt and escalates to a forced
// kill once the grace period lapses.
func (g *Guest) Stop(ctx context.Context) (Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.cmd.Process == nil {
		return Status{}, nil
	}
	// Attempt a graceful shutdown first.
	_ = g.cmd.Process.Signal(os.Interrupt)

	select {
	case <-g.done:
		return g.status, nil
	case <-time.After(g.grace):
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}

	return g.Kill(ctx)
}

// Kill forcibly terminates the guest.
func (g *Guest) Kill(ctx context.Context) (Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.cmd.Process == nil {
		return Status{}, nil
	}
	if err := g.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return Status{}, fmt.Errorf("kill guest: %w", err)
	}
	select {
	case <-g.done:
		return g.status, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}
