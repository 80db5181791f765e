package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LineWriter writes entries as line-delimited JSON. Each entry is marshaled
// into a buffer first so the underlying writer sees exactly one Write call
// per entry, which keeps appends to O_APPEND files atomic.
type LineWriter struct{ w io.Writer }

var _ Writer = LineWriter{}

// NewLineWriter creates a journal writer on top of w.
func NewLineWriter(w io.Writer) LineWriter {
	return LineWriter{w}
}

func (l LineWriter) Write(e Entry) error {
	buf := bytes.Buffer{}
	buf.Grow(512)

	if err := json.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	if _, err := l.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// ErrLockedElsewhere is returned when the journal file is already held by
// another host instance.
var ErrLockedElsewhere = errors.New("journal file already locked elsewhere")

// FileJournal appends entries to a file guarded by a file lock (flock), so
// that only one host writes a given journal. Close releases the lock.
//
// Readers do not need the lock: every entry lands in a single atomic append,
// so a concurrent tail always observes whole lines.
type FileJournal struct {
	LineWriter
	f *os.File
	l *flock.Flock
}

// OpenFile opens or creates the journal at path and acquires its lock,
// failing fast when it is held elsewhere.
func OpenFile(path string) (*FileJournal, error) {
	return openFile(nil, path)
}

// OpenFileWait is OpenFile but retries the lock until ctx expires.
func OpenFileWait(ctx context.Context, path string) (*FileJournal, error) {
	return openFile(ctx, path)
}

func openFile(ctx context.Context, path string) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_SYNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}

	l := flock.New(path)

	var locked bool
	if ctx != nil {
		locked, err = l.TryLockContext(ctx, 25*time.Millisecond)
	} else {
		locked, err = l.TryLock()
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire journal lock: %w", err)
	}
	if !locked {
		f.Close()
		return nil, ErrLockedElsewhere
	}

	return &FileJournal{
		LineWriter: LineWriter{f},
		f:          f,
		l:          l,
	}, nil
}

// Close closes the file and releases the lock.
func (f *FileJournal) Close() error {
	f.f.Close()
	return f.l.Unlock()
}

type multiWriter struct {
	writers []Writer
}

// MultiWriter fans entries out to every writer, returning the first error
// encountered while still attempting the rest.
func MultiWriter(ws ...Writer) Writer {
	return &multiWriter{writers: ws}
}

func (m *multiWriter) Write(e Entry) error {
	var firstErr error
	for _, w := range m.writers {
		if err := w.Write(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HumanWriter renders entries as single text lines for interactive output.
type HumanWriter struct{ w io.Writer }

var _ Writer = HumanWriter{}

// NewHumanWriter creates a human-readable journal writer on top of w.
func NewHumanWriter(w io.Writer) HumanWriter {
	return HumanWriter{w}
}

func (h HumanWriter) Write(e Entry) error {
	ts := e.Time.Local().Format("15:04:05.000")
	if e.Data == nil {
		_, err := fmt.Fprintf(h.w, "%s %s\n", ts, e.Kind)
		return err
	}

	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	_, err = fmt.Fprintf(h.w, "%s %-19s %s\n", ts, e.Kind, data)
	return err
}
