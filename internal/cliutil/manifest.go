package cliutil

import (
	"fmt"
	"os"

	"github.com/Paintersrp/proclet/internal/config"
)

// DefaultManifestNames are probed in order when no --config flag is given.
var DefaultManifestNames = []string{"proclet.yaml", "proclet.yml"}

// ResolveManifest loads the manifest at path. An empty path probes the
// default names in the working directory; when none exists the returned
// manifest carries only defaults and the source path is empty.
func ResolveManifest(path string) (*config.Manifest, string, error) {
	if path != "" {
		m, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return m, path, nil
	}
	for _, name := range DefaultManifestNames {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		m, err := config.Load(name)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", name, err)
		}
		return m, name, nil
	}
	m := &config.Manifest{}
	m.ApplyDefaults()
	return m, "", nil
}
