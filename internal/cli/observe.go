package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	apihttp "github.com/Paintersrp/proclet/internal/api/http"
	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/journal"
	"github.com/Paintersrp/proclet/internal/metrics"
)

var newAPIServer = apihttp.NewServer

// hostObservers bundles the journal and metrics plumbing a command
// attaches to its host.
type hostObservers struct {
	ctx  *context
	proc *host.Proc
	ring *journal.Ring
	rec  *journal.Recorder
	file *journal.FileJournal

	detachMetrics func()
}

// attachObservers wires a ring journal, the optional file journal, and the
// metrics collectors to p, then publishes the host through the shared CLI
// context so the control API can see it.
func (c *context) attachObservers(cmd *cobra.Command, p *host.Proc, journalPath string) (*hostObservers, error) {
	ring := journal.NewRing(c.retention)
	writer := journal.Writer(ring)

	var file *journal.FileJournal
	if journalPath != "" {
		f, err := journal.OpenFile(journalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		file = f
		writer = journal.MultiWriter(ring, f)
	}

	stderr := cmd.ErrOrStderr()
	rec := journal.NewRecorder(writer, func(err error) {
		fmt.Fprintf(stderr, "journal: %v\n", err)
	})
	rec.Attach(p)

	obs := &hostObservers{
		ctx:           c,
		proc:          p,
		ring:          ring,
		rec:           rec,
		file:          file,
		detachMetrics: metrics.Attach(p),
	}
	c.setHost(p, ring)
	return obs, nil
}

// Close detaches in reverse attachment order.
func (o *hostObservers) Close() {
	o.ctx.clearHost(o.proc)
	o.detachMetrics()
	o.rec.Detach()
	if o.file != nil {
		o.file.Close()
	}
}

// startControlAPI launches the HTTP control server and waits briefly for
// it to come up. The returned stop function shuts it down and reports any
// terminal serve error.
func startControlAPI(runCtx stdcontext.Context, cmd *cobra.Command, ctrl *ControlAPI, addr string) (func() error, error) {
	server, err := newAPIServer(apihttp.Config{Addr: addr, Controller: ctrl})
	if err != nil {
		return nil, err
	}
	serverCtx, cancel := stdcontext.WithCancel(runCtx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(serverCtx)
	}()
	readyTimer := time.NewTimer(200 * time.Millisecond)
	defer readyTimer.Stop()
	select {
	case err := <-errCh:
		cancel()
		return nil, err
	case <-readyTimer.C:
	case <-runCtx.Done():
		cancel()
		err := <-errCh
		if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return nil, err
		}
		return nil, runCtx.Err()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on %s\n", server.Addr())
	return func() error {
		cancel()
		err := <-errCh
		if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, nil
}
