package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrEmptyKey reports an environment write with an empty variable name.
var ErrEmptyKey = errors.New("empty environment key")

// Env is the process environment snapshot. It is captured once at
// construction; later changes to the ambient environment are not
// reflected. Mutations are visible to subsequent reads and to children
// launched through the spawner, and every written value is coerced to
// its string rendering first.
type Env struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewEnv snapshots the ambient process environment.
func NewEnv() *Env {
	return NewEnvFrom(os.Environ())
}

// NewEnvFrom builds a snapshot from KEY=VALUE pairs. Malformed entries
// without a separator are dropped, matching what the platform would do.
func NewEnvFrom(pairs []string) *Env {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	return &Env{vars: vars}
}

// Lookup returns the value for key and whether it is present.
func (e *Env) Lookup(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	value, ok := e.vars[key]
	return value, ok
}

// Get returns the value for key, or "" when absent.
func (e *Env) Get(key string) string {
	value, _ := e.Lookup(key)
	return value
}

// Set writes key to the string rendering of value. A nil value renders
// as "null"; non-strings render through their natural textual form.
func (e *Env) Set(key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	rendered := coerceEnvValue(value)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[key] = rendered
	return nil
}

// Delete removes key from the snapshot. Deleting an absent key is a
// no-op.
func (e *Env) Delete(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, key)
}

// Keys returns the variable names, sorted.
func (e *Env) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]string, 0, len(e.vars))
	for key := range e.vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Environ renders the snapshot as sorted KEY=VALUE pairs in the form
// the spawner and os/exec expect.
func (e *Env) Environ() []string {
	e.mu.RLock()
	pairs := make([]string, 0, len(e.vars))
	for key, value := range e.vars {
		pairs = append(pairs, key+"="+value)
	}
	e.mu.RUnlock()
	sort.Strings(pairs)
	return pairs
}

// Len reports the number of variables.
func (e *Env) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vars)
}

// Clone returns an independent copy of the snapshot.
func (e *Env) Clone() *Env {
	e.mu.RLock()
	defer e.mu.RUnlock()
	vars := make(map[string]string, len(e.vars))
	for key, value := range e.vars {
		vars[key] = value
	}
	return &Env{vars: vars}
}

func coerceEnvValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		rendered, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(rendered)
	}
}
