// Package ipc implements the parent/child message channel as
// newline-delimited JSON over an inherited descriptor. The parent
// creates a Pair and passes the child end through PROCLET_CHANNEL_FD;
// the child reopens it with FromEnv. Messages are opaque JSON values;
// handle passing over the channel is rejected.
package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// EnvChannelFD names the environment variable carrying the inherited
// channel descriptor number.
const EnvChannelFD = "PROCLET_CHANNEL_FD"

// DefaultMaxMessageSize bounds one encoded message.
const DefaultMaxMessageSize = 1 << 20

var (
	// ErrNotConnected reports use of a closed channel.
	ErrNotConnected = errors.New("ipc channel not connected")
	// ErrHandlePassing reports an attempt to send an OS handle.
	ErrHandlePassing = errors.New("handle passing over the channel is not supported")
	// ErrTooLarge reports a message over the channel's size limit.
	ErrTooLarge = errors.New("message exceeds channel size limit")
	// ErrNoInheritedChannel reports that the process was not spawned
	// with a channel.
	ErrNoInheritedChannel = errors.New("no inherited ipc channel")
)

// Channel is one end of the message pipe. Safe for concurrent sends.
type Channel struct {
	file    *os.File
	maxSize int64

	mu        sync.Mutex
	connected bool

	deliver   func(json.RawMessage)
	closed    func()
	closeOnce sync.Once
}

// Option configures a channel.
type Option func(*Channel)

// WithMaxMessageSize bounds encoded message size; n <= 0 keeps the
// default.
func WithMaxMessageSize(n int64) Option {
	return func(c *Channel) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// New wraps an open descriptor as a channel end.
func New(file *os.File, opts ...Option) *Channel {
	c := &Channel{file: file, maxSize: DefaultMaxMessageSize, connected: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromEnv reopens the descriptor inherited from a spawning parent.
// Returns ErrNoInheritedChannel when the process was started without
// one.
func FromEnv(opts ...Option) (*Channel, error) {
	raw := os.Getenv(EnvChannelFD)
	if raw == "" {
		return nil, ErrNoInheritedChannel
	}
	fd, err := strconv.Atoi(raw)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("parse %s=%q: invalid descriptor", EnvChannelFD, raw)
	}
	file := os.NewFile(uintptr(fd), "ipc-channel")
	if file == nil {
		return nil, fmt.Errorf("descriptor %d is not open", fd)
	}
	return New(file, opts...), nil
}

// Start begins reading inbound messages. deliver receives each decoded
// line; closed fires exactly once when the peer goes away or Close is
// called. Both run on the channel's reader goroutine.
func (c *Channel) Start(deliver func(json.RawMessage), closed func()) {
	c.deliver = deliver
	c.closed = closed
	go c.read()
}

func (c *Channel) read() {
	scanner := bufio.NewScanner(c.file)
	scanner.Buffer(make([]byte, 64*1024), int(c.maxSize))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		if c.deliver != nil {
			c.deliver(raw)
		}
	}
	c.teardown()
}

// Send encodes v and writes it as one line.
func (c *Channel) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if int64(len(payload)) > c.maxSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	if _, err := c.file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// SendHandle mirrors the two-argument send shape of the protocol. A
// nil handle degrades to Send; an actual handle is rejected.
func (c *Channel) SendHandle(v any, handle *os.File) error {
	if handle == nil {
		return c.Send(v)
	}
	return ErrHandlePassing
}

// Connected reports whether the channel is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close disconnects the channel. Idempotent; the closed callback fires
// once.
func (c *Channel) Close() error {
	c.teardown()
	return nil
}

func (c *Channel) teardown() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasConnected {
		c.file.Close()
	}
	c.closeOnce.Do(func() {
		if c.closed != nil {
			c.closed()
		}
	})
}
