package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/proclet/internal/api"
	"github.com/Paintersrp/proclet/internal/cliutil"
	"github.com/Paintersrp/proclet/internal/config"
	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/journal"
)

// osExit is swapped out by tests that assert exit-code propagation.
var osExit = os.Exit

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var configPath string
	warnings := &warningFlags{}

	root := &cobra.Command{
		Use:   "proclet",
		Short: "Process host with signal relay, warning policy, and guest supervision",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return warnings.validate()
		},
	}

	root.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Path to the manifest (default: proclet.yaml, proclet.yml)")

	root.PersistentFlags().BoolVar(&warnings.noWarnings, "no-warnings", false, "Silence warning output")
	root.PersistentFlags().BoolVar(&warnings.noDeprecation, "no-deprecation", false, "Silence deprecation warnings")
	root.PersistentFlags().BoolVar(&warnings.throwDeprecation, "throw-deprecation", false, "Turn deprecation warnings into errors")
	root.PersistentFlags().BoolVar(&warnings.traceDeprecation, "trace-deprecation", false, "Print origin traces with deprecation warnings")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	ctx := &context{configPath: &configPath, warnings: warnings, retention: eventRetentionFromEnv()}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newScriptCmd(ctx))
	root.AddCommand(newKillCmd())
	root.AddCommand(newEnvCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))
	root.AddCommand(newWatchCmd(ctx))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint. Unlike most cobra programs it does not
// wrap the root context with signal.NotifyContext: registering SIGINT or
// SIGTERM with the Go runtime suppresses their default actions for the
// whole process, and unrelayed signals keeping their default action is
// part of the host contract. Commands that want ctrl-C cancellation and
// are not hosting anything install their own handler.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var usage *usageError
		if errors.As(err, &usage) {
			osExit(int(exitcode.InvalidArgument))
			return
		}
		osExit(int(exitcode.UncaughtFailure))
	}
}

// usageError marks unusable command-line input so Execute can exit with
// the invalid-argument code instead of the generic failure code.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// context carries flag bindings plus the host handles a running command
// publishes for the control API.
type context struct {
	configPath *string
	warnings   *warningFlags
	retention  int

	mu    sync.RWMutex
	proc  *host.Proc
	ring  *journal.Ring
	guest *api.GuestReport
}

func (c *context) loadManifest() (*config.Manifest, string, error) {
	return cliutil.ResolveManifest(*c.configPath)
}

func (c *context) setHost(p *host.Proc, ring *journal.Ring) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proc = p
	c.ring = ring
}

func (c *context) clearHost(p *host.Proc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc == p {
		c.proc = nil
		c.ring = nil
		c.guest = nil
	}
}

func (c *context) currentProc() *host.Proc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.proc
}

func (c *context) journalRing() *journal.Ring {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ring
}

func (c *context) setGuest(report api.GuestReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guest = &report
}

func (c *context) currentGuest() *api.GuestReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.guest == nil {
		return nil
	}
	report := *c.guest
	return &report
}

// warningFlags mirrors the warning-policy switches shared by every
// command that boots a host.
type warningFlags struct {
	noWarnings       bool
	noDeprecation    bool
	throwDeprecation bool
	traceDeprecation bool
}

// validate rejects contradictory deprecation switches.
func (f *warningFlags) validate() error {
	set := 0
	for _, on := range []bool{f.noDeprecation, f.throwDeprecation, f.traceDeprecation} {
		if on {
			set++
		}
	}
	if set > 1 {
		return usageErrorf("--no-deprecation, --throw-deprecation, and --trace-deprecation are mutually exclusive")
	}
	return nil
}

// apply layers the flags over the manifest-derived policy. Flags win.
func (f *warningFlags) apply(base host.WarningPolicy) host.WarningPolicy {
	policy := base
	if f.noWarnings {
		policy.NoWarnings = true
	}
	switch {
	case f.noDeprecation:
		policy.Deprecation = host.DeprecationSuppress
	case f.throwDeprecation:
		policy.Deprecation = host.DeprecationThrow
	case f.traceDeprecation:
		policy.Deprecation = host.DeprecationTrace
	}
	return policy
}

func eventRetentionFromEnv() int {
	if value := os.Getenv("PROCLET_EVENT_RETENTION"); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
