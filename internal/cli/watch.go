package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/proclet/internal/api"
	"github.com/Paintersrp/proclet/internal/config"
	"github.com/Paintersrp/proclet/internal/journal"
	"github.com/Paintersrp/proclet/internal/tui"
)

// watchEventDepth is how many entries each poll asks the API for. The
// poller deduplicates, so it only has to cover a poll interval's worth
// of activity.
const watchEventDepth = 200

// watchUI abstracts the terminal UI so tests can drive the command
// without a live tty.
type watchUI interface {
	Run(ctx stdcontext.Context) error
	Stop()
	EntrySink() chan<- journal.Entry
	CloseEntries()
	Done() <-chan struct{}
}

var newUI = func() watchUI { return tui.New() }

func newWatchCmd(ctx *context) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a host's journal in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return errors.New("watch requires an interactive terminal; query the events API directly for scripting")
			}

			target := addr
			if !cmd.Flags().Changed("addr") {
				if m, _, err := ctx.loadManifest(); err == nil && m.API.Enabled && m.API.Listen != "" {
					target = m.API.Listen
				}
			}

			// Watch observes a host over HTTP rather than hosting
			// anything itself, so taking over SIGINT here is fine.
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ui := newUI()

			pollCtx, cancelPoll := stdcontext.WithCancel(runCtx)
			defer cancelPoll()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer ui.CloseEntries()
				pollEvents(pollCtx, ui.EntrySink(), target, interval, cmd.ErrOrStderr())
			}()

			err := ui.Run(runCtx)
			cancelPoll()
			wg.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultListen, "Control API address to follow")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Poll interval")
	return cmd
}

// pollEvents tails the events endpoint and feeds unseen entries to sink.
// Journal timestamps are monotonic per host, so anything at or before
// the newest delivered entry has already been shown.
func pollEvents(ctx stdcontext.Context, sink chan<- journal.Entry, addr string, interval time.Duration, stderr io.Writer) {
	if interval <= 0 {
		interval = time.Second
	}
	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://%s/api/v1/events?n=%d", addr, watchEventDepth)

	var last time.Time
	var lastErr string
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		entries, err := fetchEvents(ctx, client, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if msg := err.Error(); msg != lastErr {
				fmt.Fprintf(stderr, "watch: %v\n", err)
				lastErr = msg
			}
		} else {
			lastErr = ""
			for _, entry := range entries {
				if !entry.Time.After(last) {
					continue
				}
				select {
				case sink <- entry:
					last = entry.Time
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func fetchEvents(ctx stdcontext.Context, client *http.Client, url string) ([]journal.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events endpoint returned %s", resp.Status)
	}
	var report api.EventsReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return report.Events, nil
}

// supportsInteractiveOutput reports whether the command's stdout is a
// real terminal.
func supportsInteractiveOutput(cmd *cobra.Command) bool {
	type fdWriter interface{ Fd() uintptr }
	out, ok := cmd.OutOrStdout().(fdWriter)
	if !ok {
		return false
	}
	return term.IsTerminal(int(out.Fd()))
}
