package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and inspect the manifest",
	}
	cmd.AddCommand(newConfigValidateCmd(ctx))
	cmd.AddCommand(newConfigShowCmd(ctx))
	return cmd
}

func newConfigValidateCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the manifest against the schema and semantic rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, source, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			if source == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No manifest found; built-in defaults are in effect.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s)\n", source)
			return nil
		},
	}
}

func newConfigShowCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective manifest with defaults applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, source, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			rendered, err := yaml.Marshal(m)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if source == "" {
				fmt.Fprintln(out, "# built-in defaults (no manifest found)")
			} else {
				fmt.Fprintf(out, "# %s\n", source)
			}
			out.Write(rendered)
			return nil
		},
	}
}
