package cli

import (
	stdcontext "context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/proclet/internal/config"
	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/guest/lua"
	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/ipc"
	"github.com/Paintersrp/proclet/internal/metrics"
	"github.com/Paintersrp/proclet/internal/signals"
)

type scriptOptions struct {
	apiAddr      string
	journalPath  string
	envOverrides []string
}

func newScriptCmd(ctx *context) *cobra.Command {
	opts := &scriptOptions{}
	cmd := &cobra.Command{
		Use:   "script <program.lua>",
		Short: "Run a Lua guest program on the host loop",
		Long: "Script boots a host and hands its control surface to a Lua program: " +
			"proc.on registers signal and lifecycle listeners, proc.send talks to a " +
			"supervising host over the inherited channel, and proc.exit ends the run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runScript(cmd, ctx, opts, args[0])
			if err != nil {
				return err
			}
			if code != exitcode.OK {
				osExit(int(code))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.apiAddr, "api", config.DefaultListen, "Enable the HTTP control API on this address")
	flags.StringVar(&opts.journalPath, "journal", "", "Append journal entries to this file")
	flags.StringArrayVarP(&opts.envOverrides, "env", "e", nil, "Extra KEY=VALUE entries for the boot environment")
	return cmd
}

func runScript(cmd *cobra.Command, ctx *context, opts *scriptOptions, path string) (exitcode.Code, error) {
	m, source, err := ctx.loadManifest()
	if err != nil {
		return exitcode.OK, err
	}

	policy := ctx.warnings.apply(m.Warnings.Policy())
	env, err := effectiveEnv(m, opts.envOverrides)
	if err != nil {
		return exitcode.OK, err
	}

	proc := host.New(
		host.WithEnv(env),
		host.WithStdin(cmd.InOrStdin()),
		host.WithStdout(cmd.OutOrStdout()),
		host.WithStderr(cmd.ErrOrStderr()),
		host.WithWarningPolicy(policy),
	)

	journalPath := m.Journal.Path
	if cmd.Flags().Changed("journal") {
		journalPath = opts.journalPath
	}
	obs, err := ctx.attachObservers(cmd, proc, journalPath)
	if err != nil {
		return exitcode.OK, err
	}
	defer obs.Close()

	// A host started by `proclet run` hands its guest an IPC channel
	// through the environment; adopt it so the script can proc.send.
	if channel, err := ipc.FromEnv(); err == nil {
		proc.AttachChannel(channel)
	} else if !errors.Is(err, ipc.ErrNoInheritedChannel) {
		return exitcode.OK, err
	}

	if source != "" {
		watcher, err := config.Watch(source, func(next *config.Manifest) {
			reloaded := ctx.warnings.apply(next.Warnings.Policy())
			proc.SetWarningPolicy(reloaded)
			obs.rec.PolicyReload(reloaded.NoWarnings, reloaded.Deprecation.String())
		}, func(err error) {
			fmt.Fprintf(cmd.ErrOrStderr(), "manifest reload: %v\n", err)
		})
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "manifest watch unavailable: %v\n", err)
		} else {
			defer watcher.Close()
		}
	}

	for _, name := range m.Signals.Relay {
		if _, err := proc.OnSignal(name, func(delivery signals.Delivery) {
			obs.rec.Signal(delivery.Name)
			metrics.AddSignalRelayed(delivery.Name)
		}); err != nil {
			return exitcode.OK, fmt.Errorf("relay %s: %w", name, err)
		}
	}

	runCtx, cancelRun := stdcontext.WithCancel(stdcontext.Background())
	defer cancelRun()
	if m.API.Enabled || cmd.Flags().Changed("api") {
		addr := m.API.Listen
		if cmd.Flags().Changed("api") || addr == "" {
			addr = opts.apiAddr
		}
		stop, err := startControlAPI(runCtx, cmd, NewControlAPI(ctx), addr)
		if err != nil {
			return exitcode.OK, err
		}
		defer func() {
			if err := stop(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "control api: %v\n", err)
			}
		}()
	}

	return lua.Run(cmd.Context(), proc, path), nil
}
