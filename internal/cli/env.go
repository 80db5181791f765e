package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Paintersrp/proclet/internal/cliutil"
	"github.com/Paintersrp/proclet/internal/config"
	"github.com/Paintersrp/proclet/internal/host"
)

func newEnvCmd(ctx *context) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and edit the boot environment",
		Long: "Without a subcommand, env prints the snapshot a host would boot with: " +
			"the inherited environment after manifest set and unset entries apply. " +
			"Values under secret-looking keys are redacted unless --show-secrets is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			env, err := effectiveEnv(m, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range env.Keys() {
				value := env.Get(key)
				if !showSecrets {
					value = cliutil.RedactValue(key, value)
				}
				fmt.Fprintf(out, "%s=%s\n", key, value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secret-looking values instead of redacting them")
	cmd.AddCommand(newEnvGetCmd(ctx))
	cmd.AddCommand(newEnvSetCmd(ctx))
	cmd.AddCommand(newEnvUnsetCmd(ctx))
	return cmd
}

func newEnvGetCmd(ctx *context) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one value from the boot environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			env, err := effectiveEnv(m, nil)
			if err != nil {
				return err
			}
			value, ok := env.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%s is not set", args[0])
			}
			if !showSecrets {
				value = cliutil.RedactValue(args[0], value)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secret-looking values instead of redacting them")
	return cmd
}

func newEnvSetCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist an environment entry in the manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.manifestForEdit()
			if err := editManifest(path, func(root *yaml.Node) error {
				return setEnvEntry(root, args[0], args[1])
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set %s in %s\n", args[0], path)
			return nil
		},
	}
}

func newEnvUnsetCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Persist an environment removal in the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.manifestForEdit()
			if err := editManifest(path, func(root *yaml.Node) error {
				return unsetEnvEntry(root, args[0])
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unset %s in %s\n", args[0], path)
			return nil
		},
	}
}

// effectiveEnv builds the boot snapshot: the inherited environment with
// manifest adjustments and -e overrides layered on top, in that order.
func effectiveEnv(m *config.Manifest, overrides []string) (*host.Env, error) {
	env := host.NewEnvFrom(os.Environ())
	for key, value := range m.Env.Set {
		if err := env.Set(key, value); err != nil {
			return nil, fmt.Errorf("env.set.%s: %w", key, err)
		}
	}
	for _, key := range m.Env.Unset {
		env.Delete(key)
	}
	for _, pair := range overrides {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, usageErrorf("invalid env override %q, want KEY=VALUE", pair)
		}
		if err := env.Set(key, value); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// manifestForEdit returns the file set/unset should rewrite: the explicit
// --config path, an existing default manifest, or a fresh default one.
func (c *context) manifestForEdit() string {
	if *c.configPath != "" {
		return *c.configPath
	}
	for _, name := range cliutil.DefaultManifestNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return cliutil.DefaultManifestNames[0]
}

// editManifest rewrites the manifest at path through edit, operating on
// the YAML node tree so unrelated structure and comments survive. The
// edited document must still validate before it replaces the file.
func editManifest(path string, edit func(*yaml.Node) error) error {
	doc := &yaml.Node{}
	mode := os.FileMode(0o644)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if info, statErr := os.Stat(path); statErr == nil {
			mode = info.Mode().Perm()
		}
		if err := yaml.Unmarshal(raw, doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return err
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
		version := mappingValue(doc.Content[0], "version", yaml.ScalarNode, "!!str")
		version.SetString("1")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: manifest root is not a mapping", path)
	}

	if err := edit(root); err != nil {
		return err
	}

	var m config.Manifest
	if err := doc.Decode(&m); err != nil {
		return fmt.Errorf("edited manifest is invalid: %w", err)
	}
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("edited manifest is invalid: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), mode)
}

func setEnvEntry(root *yaml.Node, key, value string) error {
	envNode, err := ensureMapping(root, "env")
	if err != nil {
		return err
	}
	setNode, err := ensureMapping(envNode, "set")
	if err != nil {
		return fmt.Errorf("env.%w", err)
	}
	entry := mappingValue(setNode, key, yaml.ScalarNode, "!!str")
	if entry.Kind != yaml.ScalarNode {
		return fmt.Errorf("env.set.%s is not a scalar", key)
	}
	entry.SetString(value)
	removeFromUnsetList(envNode, key)
	return nil
}

func unsetEnvEntry(root *yaml.Node, key string) error {
	envNode, err := ensureMapping(root, "env")
	if err != nil {
		return err
	}
	setNode, err := ensureMapping(envNode, "set")
	if err != nil {
		return fmt.Errorf("env.%w", err)
	}
	removeMappingKey(setNode, key)

	unsetNode, err := ensureSequence(envNode, "unset")
	if err != nil {
		return fmt.Errorf("env.%w", err)
	}
	for _, item := range unsetNode.Content {
		if item.Value == key {
			return nil
		}
	}
	unsetNode.Content = append(unsetNode.Content, &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Value: key,
	})
	return nil
}

// mappingValue returns the value node for key, appending a new entry of
// the given kind when absent.
func mappingValue(mapping *yaml.Node, key string, kind yaml.Kind, tag string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valueNode := &yaml.Node{Kind: kind, Tag: tag}
	mapping.Content = append(mapping.Content, keyNode, valueNode)
	return valueNode
}

func ensureMapping(mapping *yaml.Node, key string) (*yaml.Node, error) {
	node := mappingValue(mapping, key, yaml.MappingNode, "!!map")
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*node = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s is not a mapping", key)
	}
	return node, nil
}

func ensureSequence(mapping *yaml.Node, key string) (*yaml.Node, error) {
	node := mappingValue(mapping, key, yaml.SequenceNode, "!!seq")
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*node = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s is not a sequence", key)
	}
	return node, nil
}

func removeMappingKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			return true
		}
	}
	return false
}

func removeFromUnsetList(envNode *yaml.Node, key string) {
	for i := 0; i+1 < len(envNode.Content); i += 2 {
		if envNode.Content[i].Value != "unset" {
			continue
		}
		list := envNode.Content[i+1]
		if list.Kind != yaml.SequenceNode {
			return
		}
		for j, item := range list.Content {
			if item.Value == key {
				list.Content = append(list.Content[:j], list.Content[j+1:]...)
				return
			}
		}
		return
	}
}
