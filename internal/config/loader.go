package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a host manifest from the provided path. The document is
// checked against the embedded schema, decoded strictly, expanded against
// the ambient environment, and semantically validated.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	if raw != nil {
		if err := validateAgainstSchema(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc Manifest
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	manifestDir := filepath.Dir(absPath)
	doc.Host.Workdir = resolveWorkdir(manifestDir, os.ExpandEnv(doc.Host.Workdir))
	if doc.Guest != nil {
		doc.Guest.Workdir = resolveWorkdir(doc.Host.Workdir, os.ExpandEnv(doc.Guest.Workdir))
	}
	if doc.Journal.Path != "" {
		expanded := os.ExpandEnv(doc.Journal.Path)
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Clean(filepath.Join(doc.Host.Workdir, expanded))
		}
		doc.Journal.Path = expanded
	}
	doc.API.Listen = os.ExpandEnv(doc.API.Listen)

	if len(doc.Env.Set) > 0 {
		expanded := make(map[string]string, len(doc.Env.Set))
		for k, v := range doc.Env.Set {
			expanded[k] = os.ExpandEnv(v)
		}
		doc.Env.Set = expanded
	}

	if doc.Env.FromFile != "" {
		expanded := os.ExpandEnv(doc.Env.FromFile)
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Clean(filepath.Join(doc.Host.Workdir, expanded))
		}
		doc.Env.FromFile = expanded

		fileEnv, err := loadEnvFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fieldPath("env", "fromFile"), err)
		}
		if len(fileEnv) > 0 {
			merged := make(map[string]string, len(fileEnv)+len(doc.Env.Set))
			for k, v := range fileEnv {
				merged[k] = v
			}
			// Inline entries win over file entries.
			for k, v := range doc.Env.Set {
				merged[k] = v
			}
			doc.Env.Set = merged
		}
	}

	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

func resolveWorkdir(base, workdir string) string {
	if workdir == "" {
		return base
	}
	if filepath.IsAbs(workdir) {
		return filepath.Clean(workdir)
	}
	return filepath.Clean(filepath.Join(base, workdir))
}

func loadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	values := make(map[string]string)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if strings.HasPrefix(raw, "export ") {
			raw = strings.TrimSpace(raw[len("export "):])
		}
		sep := strings.IndexRune(raw, '=')
		if sep <= 0 {
			return nil, fmt.Errorf("load env file %q: invalid line %d", path, lineNo)
		}
		key := strings.TrimSpace(raw[:sep])
		if key == "" {
			return nil, fmt.Errorf("load env file %q: invalid key on line %d", path, lineNo)
		}
		value := strings.TrimSpace(raw[sep+1:])
		if strings.HasPrefix(value, "\"") {
			unquoted, err := strconv.Unquote(value)
			if err != nil {
				return nil, fmt.Errorf("load env file %q: unmatched quote on line %d", path, lineNo)
			}
			value = unquoted
		}
		values[key] = os.ExpandEnv(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	return values, nil
}
