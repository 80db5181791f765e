package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/proclet/internal/api"
	"github.com/Paintersrp/proclet/internal/cliutil"
	"github.com/Paintersrp/proclet/internal/config"
	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/ipc"
	"github.com/Paintersrp/proclet/internal/journal"
	"github.com/Paintersrp/proclet/internal/metrics"
	"github.com/Paintersrp/proclet/internal/signals"
	"github.com/Paintersrp/proclet/internal/spawn"
)

type runOptions struct {
	apiAddr      string
	journalPath  string
	envOverrides []string
	workdir      string
	grace        time.Duration
	noRestart    bool
	jsonLogs     bool
}

func newRunCmd(ctx *context) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Supervise a command under the process host",
		Long: "Run boots a host around a child command: manifest signals are relayed, " +
			"warnings follow the configured policy, the journal records the lifecycle, " +
			"and the host exits with the guest's code.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runGuest(cmd, ctx, opts, args)
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
	flags.SetInterspersed(false)
	flags.StringVar(&opts.apiAddr, "api", config.DefaultListen, "Enable the HTTP control API on this address")
	flags.StringVar(&opts.journalPath, "journal", "", "Append journal entries to this file")
	flags.StringArrayVarP(&opts.envOverrides, "env", "e", nil, "Extra KEY=VALUE entries for the boot environment")
	flags.StringVar(&opts.workdir, "workdir", "", "Working directory for the guest")
	flags.DurationVar(&opts.grace, "grace", 0, "Wait between the polite stop and the forced kill")
	flags.BoolVar(&opts.noRestart, "no-restart", false, "Ignore the manifest restart policy")
	flags.BoolVar(&opts.jsonLogs, "json-logs", false, "Capture guest output and print it as JSON records")
	return cmd
}

func runGuest(cmd *cobra.Command, ctx *context, opts *runOptions, args []string) (exitcode.Code, error) {
	m, source, err := ctx.loadManifest()
	if err != nil {
		return exitcode.OK, err
	}

	command := args
	if len(command) == 0 && m.Guest != nil {
		command = m.Guest.Command
	}
	if len(command) == 0 {
		return exitcode.OK, usageErrorf("no command to run: pass one after -- or set guest.command in the manifest")
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

	var guestChannel *os.File
	if m.IPC.Enabled {
		channel, theirs, err := ipc.Pair(ipc.WithMaxMessageSize(m.IPC.MaxMessageSize.Bytes))
		if err != nil {
			return exitcode.OK, fmt.Errorf("ipc channel: %w", err)
		}
		proc.AttachChannel(channel)
		guestChannel = theirs
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

	spec := spawn.Spec{
		Command: command,
		Dir:     guestWorkdir(m.Guest, opts.workdir),
		Env:     env.Environ(),
		Stdin:   cmd.InOrStdin(),
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
		Capture: opts.jsonLogs || (m.Guest != nil && m.Guest.Capture),
		Channel: guestChannel,
		Grace:   guestGrace(cmd, m.Guest, opts.grace),
	}

	driver := &guestDriver{
		proc:    proc,
		ctx:     ctx,
		rec:     obs.rec,
		spec:    spec,
		backoff: restartBackoff(m.Guest, opts.noRestart),
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}
	if spec.Capture {
		driver.encoder = json.NewEncoder(cmd.OutOrStdout())
	}

	forward := m.Signals.ForwardEnabled()
	for _, name := range m.Signals.Relay {
		if _, err := proc.OnSignal(name, func(delivery signals.Delivery) {
			obs.rec.Signal(delivery.Name)
			metrics.AddSignalRelayed(delivery.Name)
			if forward {
				driver.signalGuest(delivery.Name)
			}
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

	release := proc.Loop().Hold()
	driverCtx, cancelDriver := stdcontext.WithCancel(stdcontext.Background())
	defer cancelDriver()
	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		defer release()
		driver.run(driverCtx)
	}()

	code := proc.Run(cmd.Context())
	cancelDriver()
	<-driverDone
	return code, nil
}

func guestWorkdir(spec *config.GuestSpec, flag string) string {
	if flag != "" {
		return flag
	}
	if spec != nil {
		return spec.Workdir
	}
	return ""
}

func guestGrace(cmd *cobra.Command, spec *config.GuestSpec, flag time.Duration) time.Duration {
	if cmd.Flags().Changed("grace") {
		return flag
	}
	if spec != nil {
		return spec.Grace.Duration
	}
	return 0
}

// restartBackoff translates the manifest restart block. No block, or
// --no-restart, disables relaunching entirely.
func restartBackoff(spec *config.GuestSpec, noRestart bool) *spawn.Backoff {
	if noRestart || spec == nil || spec.Restart == nil {
		return spawn.NewBackoff(spawn.Policy{})
	}
	policy := spawn.Policy{MaxRetries: spec.Restart.MaxRetries}
	if b := spec.Restart.Backoff; b != nil {
		policy.Min = b.Min.Duration
		policy.Max = b.Max.Duration
		policy.Factor = b.Factor
	}
	return spawn.NewBackoff(policy)
}

// guestDriver launches the guest, relaunches it per policy, and reports
// each lifetime into the journal and metrics. It runs off-loop; the host
// loop is held open by the caller for as long as the driver lives.
type guestDriver struct {
	proc    *host.Proc
	ctx     *context
	rec     *journal.Recorder
	spec    spawn.Spec
	backoff *spawn.Backoff
	stdout  io.Writer
	stderr  io.Writer
	encoder *json.Encoder

	mu      sync.Mutex
	current *spawn.Guest
}

func (d *guestDriver) run(ctx stdcontext.Context) {
	for {
		guest, err := spawn.Start(stdcontext.Background(), d.spec)
		if err != nil {
			fmt.Fprintf(d.stderr, "start guest: %v\n", err)
			d.proc.RequestExit(exitcode.FatalError)
			return
		}
		d.setCurrent(guest)
		d.ctx.setGuest(api.GuestReport{
			PID:       guest.PID(),
			Command:   d.spec.Command,
			StartedAt: guest.StartedAt(),
			Restarts:  d.backoff.Restarts(),
		})
		d.rec.GuestStart(guest.PID(), d.spec.Command)

		// The guest half of the IPC pair lives in the child now; the
		// host copy must close so channel EOF tracks the guest.
		// Restarted guests run without a channel.
		if d.spec.Channel != nil {
			d.spec.Channel.Close()
			d.spec.Channel = nil
		}

		logsDone := make(chan struct{})
		go func() {
			defer close(logsDone)
			if !d.spec.Capture {
				return
			}
			for log := range guest.Logs() {
				cliutil.EncodeLogEvent(d.encoder, d.stderr, guest.PID(), log)
			}
		}()

		waitCh := make(chan spawn.Status, 1)
		go func() {
			status, _ := guest.Wait(stdcontext.Background())
			waitCh <- status
		}()

		var status spawn.Status
		select {
		case status = <-waitCh:
		case <-ctx.Done():
			// Host is exiting; take the guest down and stop driving.
			status, _ = guest.Stop(stdcontext.Background())
			<-logsDone
			d.finish(guest, status)
			return
		}
		<-logsDone
		d.finish(guest, status)

		if status.Code == exitcode.OK {
			d.proc.RequestExit(exitcode.OK)
			return
		}
		if !d.backoff.Allow() {
			d.proc.RequestExit(status.Code)
			return
		}
		metrics.IncrementGuestRestart()
		fmt.Fprintf(d.stderr, "guest exited with %s; restarting (attempt %d)\n",
			describeStatus(status), d.backoff.Restarts()+1)
		if err := d.backoff.Sleep(ctx); err != nil {
			d.proc.RequestExit(status.Code)
			return
		}
	}
}

func (d *guestDriver) finish(guest *spawn.Guest, status spawn.Status) {
	d.setCurrent(nil)
	d.rec.GuestExit(guest.PID(), int(status.Code), status.Signal)
	metrics.ObserveGuestExit(int(status.Code), status.Signal)
}

func (d *guestDriver) setCurrent(guest *spawn.Guest) {
	d.mu.Lock()
	d.current = guest
	d.mu.Unlock()
}

// signalGuest forwards a relayed signal to the live guest, if any.
func (d *guestDriver) signalGuest(name string) {
	d.mu.Lock()
	guest := d.current
	d.mu.Unlock()
	if guest == nil {
		return
	}
	sig, _, err := signals.Lookup(name)
	if err != nil {
		return
	}
	if err := guest.Signal(sig); err != nil {
		fmt.Fprintf(d.stderr, "forward %s: %v\n", name, err)
	}
}

func describeStatus(status spawn.Status) string {
	if status.Signal != "" {
		return fmt.Sprintf("signal %s", status.Signal)
	}
	return fmt.Sprintf("code %d", status.Code)
}
