package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Paintersrp/proclet/internal/spawn"
)

// LogRecord represents a structured guest log line ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	PID       int       `json:"pid"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
}

// NewLogRecord converts a captured guest log line into a structured
// record. Messages pass through secret redaction before encoding.
func NewLogRecord(pid int, log spawn.Log) LogRecord {
	level := inferLogLevel(log.Message)
	if level == "" {
		level = "info"
	}
	source := log.Source
	if source == "" {
		source = spawn.LogSourceStdout
	}
	return LogRecord{
		PID:     pid,
		Level:   level,
		Message: RedactSecrets(log.Message),
		Source:  source,
	}
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// EncodeLogEvent encodes a guest log line to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, pid int, log spawn.Log) {
	if enc == nil {
		return
	}
	record := NewLogRecord(pid, log)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}
