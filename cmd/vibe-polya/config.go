package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// defaults are the thresholds used when neither a flag nor the config file
// sets a key.
var defaults = map[string]any{
	"assembly":        "GRCh38",
	"trim":            3,
	"strand_specific": false,
	"min_at":          4,
	"max_diff":        []int{1, 5},
	"max_diff_link":   2,
	"min_bridge_size": 1,
	"max_dist":        5000,
	"link":            false,
	"workers":         0,
	"extended_bridge": false,
	"blat_filter":     false,
	"blat.path":       "blat",
	"track.rgb":       "0,0,255",
}

func setDefaults() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

func newConfigCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-polya configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.vibe-polya.yaml.

Keys match the call flags with underscores (min_at, max_diff, strand_specific)
and can also be set from the environment as VIBE_POLYA_<KEY>.`,
		Example: `  vibe-polya config                  # show the config file values
  vibe-polya config --all            # include defaults
  vibe-polya config set min_at 5     # require longer tails
  vibe-polya config set max_diff 1,4
  vibe-polya config get track.rgb`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout(), all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include default values")

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			setDefaults()
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(w io.Writer, all bool) error {
	if all {
		setDefaults()
	}
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(w, "# No configuration set. Config file: ~/.vibe-polya.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(w, string(out))
	return nil
}

func runConfigSet(w io.Writer, key, value string) error {
	v, err := parseConfigValue(key, value)
	if err != nil {
		return usageError{err}
	}
	viper.Set(key, v)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".vibe-polya.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

// parseConfigValue converts value to the type of key's default. Unknown keys
// keep booleans and strings.
func parseConfigValue(key, value string) (any, error) {
	switch defaults[key].(type) {
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s needs an integer, got %q", key, value)
		}
		return n, nil
	case []int:
		var ns []int
		for _, part := range strings.Split(value, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("%s needs comma-separated integers, got %q", key, value)
			}
			ns = append(ns, n)
		}
		return ns, nil
	}

	switch value {
	case "true", "yes", "on":
		return true, nil
	case "false", "no", "off":
		return false, nil
	}
	return value, nil
}

func runConfigGet(w io.Writer, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(w, val)
	return nil
}
