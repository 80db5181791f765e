package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/signals"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// ByteSize wraps a byte count parsed from human-readable units ("1MiB").
type ByteSize struct {
	Bytes    int64
	explicit bool
}

// UnmarshalText parses a size string, accepting empty strings.
func (b *ByteSize) UnmarshalText(text []byte) error {
	b.explicit = true
	if len(text) == 0 {
		b.Bytes = 0
		return nil
	}
	n, err := units.RAMInBytes(string(text))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", string(text), err)
	}
	b.Bytes = n
	return nil
}

// MarshalText renders the size with binary suffixes.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(units.BytesSize(float64(b.Bytes))), nil
}

// IsSet reports whether the size was explicitly provided or non-zero.
func (b ByteSize) IsSet() bool {
	return b.explicit || b.Bytes != 0
}

// Manifest mirrors the proclet.yaml document structure.
type Manifest struct {
	Version  string       `yaml:"version"`
	Host     HostSpec     `yaml:"host"`
	Env      EnvSpec      `yaml:"env"`
	Warnings WarningsSpec `yaml:"warnings"`
	Signals  SignalsSpec  `yaml:"signals"`
	IPC      IPCSpec      `yaml:"ipc"`
	Journal  JournalSpec  `yaml:"journal"`
	API      APISpec      `yaml:"api"`
	Guest    *GuestSpec   `yaml:"guest"`
}

// HostSpec labels the host and pins its working directory.
type HostSpec struct {
	Name    string `yaml:"name"`
	Workdir string `yaml:"workdir"`
}

// EnvSpec adjusts the environment snapshot at boot. FromFile entries are
// merged first, so inline Set entries win on conflict.
type EnvSpec struct {
	Set      map[string]string `yaml:"set"`
	Unset    []string          `yaml:"unset"`
	FromFile string            `yaml:"fromFile"`
}

// WarningsSpec configures warning rendering and the deprecation mode.
type WarningsSpec struct {
	Disable     bool   `yaml:"disable"`
	Deprecation string `yaml:"deprecation"`
}

// Policy converts the spec into a host warning policy. Validate must have
// accepted the manifest first.
func (w WarningsSpec) Policy() host.WarningPolicy {
	mode, _ := host.ParseDeprecationMode(w.Deprecation)
	return host.WarningPolicy{NoWarnings: w.Disable, Deprecation: mode}
}

// SignalsSpec lists signals to relay at boot. Forward defaults to true and
// controls whether relayed signals are passed on to a supervised guest.
type SignalsSpec struct {
	Relay   []string `yaml:"relay"`
	Forward *bool    `yaml:"forward"`
}

// ForwardEnabled reports the forward setting with its default applied.
func (s SignalsSpec) ForwardEnabled() bool {
	return s.Forward == nil || *s.Forward
}

// IPCSpec configures the inherited message channel.
type IPCSpec struct {
	Enabled        bool     `yaml:"enabled"`
	MaxMessageSize ByteSize `yaml:"maxMessageSize"`
}

// JournalSpec points the event journal at a file.
type JournalSpec struct {
	Path string `yaml:"path"`
}

// APISpec configures the status listener.
type APISpec struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// GuestSpec describes the supervised child process.
type GuestSpec struct {
	Command []string     `yaml:"command"`
	Workdir string       `yaml:"workdir"`
	Grace   Duration     `yaml:"grace"`
	Capture bool         `yaml:"capture"`
	Restart *RestartSpec `yaml:"restart"`
}

// RestartSpec bounds guest relaunches.
type RestartSpec struct {
	MaxRetries int          `yaml:"maxRetries"`
	Backoff    *BackoffSpec `yaml:"backoff"`
}

// BackoffSpec shapes the delay between relaunches.
type BackoffSpec struct {
	Min    Duration `yaml:"min"`
	Max    Duration `yaml:"max"`
	Factor float64  `yaml:"factor"`
}

const defaultMaxMessageSize = 1 << 20

// DefaultListen is used when the API is enabled without an address.
const DefaultListen = "127.0.0.1:7171"

// ApplyDefaults fills unset fields with their documented defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = "1"
	}
	if m.IPC.Enabled && !m.IPC.MaxMessageSize.IsSet() {
		m.IPC.MaxMessageSize.Bytes = defaultMaxMessageSize
	}
	if m.API.Enabled && m.API.Listen == "" {
		m.API.Listen = DefaultListen
	}
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

// Validate enforces semantic invariants beyond the document schema.
func (m *Manifest) Validate() error {
	if m.Version != "1" {
		return fmt.Errorf("%s: must be %q", fieldPath("version"), "1")
	}

	if _, err := host.ParseDeprecationMode(m.Warnings.Deprecation); err != nil {
		return fmt.Errorf("%s: %w", fieldPath("warnings", "deprecation"), err)
	}

	for i, name := range m.Signals.Relay {
		field := fieldPath("signals", fmt.Sprintf("relay[%d]", i))
		sig, canonical, err := signals.Lookup(name)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if sig == 0 {
			return fmt.Errorf("%s: signal 0 is an existence probe and cannot be relayed", field)
		}
		if signals.Unblockable(sig) {
			return fmt.Errorf("%s: %s cannot be relayed", field, canonical)
		}
	}

	if m.IPC.Enabled && m.IPC.MaxMessageSize.Bytes <= 0 {
		return fmt.Errorf("%s: must be positive", fieldPath("ipc", "maxMessageSize"))
	}

	if m.API.Enabled {
		if _, _, err := net.SplitHostPort(m.API.Listen); err != nil {
			return fmt.Errorf("%s: %w", fieldPath("api", "listen"), err)
		}
	}

	if m.Guest != nil {
		if err := m.Guest.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (g *GuestSpec) validate() error {
	if len(g.Command) == 0 {
		return fmt.Errorf("%s: is required", fieldPath("guest", "command"))
	}
	if g.Grace.IsSet() && g.Grace.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("guest", "grace"))
	}

	r := g.Restart
	if r == nil {
		return nil
	}
	if r.MaxRetries < -1 {
		return fmt.Errorf("%s: must be -1 or greater", fieldPath("guest", "restart", "maxRetries"))
	}
	b := r.Backoff
	if b == nil {
		return nil
	}
	if b.Min.IsSet() && b.Min.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("guest", "restart", "backoff", "min"))
	}
	if b.Max.IsSet() && b.Max.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("guest", "restart", "backoff", "max"))
	}
	if b.Min.Duration > 0 && b.Max.Duration > 0 && b.Max.Duration < b.Min.Duration {
		return fmt.Errorf("%s: must not be below %s",
			fieldPath("guest", "restart", "backoff", "max"),
			fieldPath("guest", "restart", "backoff", "min"))
	}
	if b.Factor < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("guest", "restart", "backoff", "factor"))
	}
	return nil
}
