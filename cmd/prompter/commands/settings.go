package commands

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/koscakluka/ema-prompter/core/settings"
	"github.com/spf13/cobra"
)

var flagSettingsLocal bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change backend settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change settings",
	Long: `Change one or more settings, for example:

  prompter settings set vad_long_ms=2000 sentence_mode=false

The backend is updated unless --local is given, in which case the settings
block of the config file is changed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSettingsSet,
}

var settingsSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := settings.SchemaJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	settingsSetCmd.Flags().BoolVar(&flagSettingsLocal, "local", false, "change the config file instead of the backend")

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSchemaCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	config, err := getConfig()
	if err != nil {
		return err
	}

	values, err := settings.NewClient(config.BackendURL).Get(cmd.Context())
	if err != nil {
		return err
	}
	return printYAML(cmd, values)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	config, err := getConfig()
	if err != nil {
		return err
	}

	if flagSettingsLocal {
		values, err := applyAssignments(config.Settings, args)
		if err != nil {
			return err
		}
		if err := values.Validate(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" {
			path = defaultConfigPath()
		}
		config.Settings = values
		if err := SaveConfig(path, config); err != nil {
			return err
		}
		return printYAML(cmd, values)
	}

	client := settings.NewClient(config.BackendURL)
	current, err := client.Get(cmd.Context())
	if err != nil {
		return err
	}
	values, err := applyAssignments(current, args)
	if err != nil {
		return err
	}
	if err := client.Update(cmd.Context(), values); err != nil {
		return err
	}
	return printYAML(cmd, values)
}

// applyAssignments sets each key=value pair on base, values are parsed as
// YAML scalars.
func applyAssignments(base settings.Settings, assignments []string) (settings.Settings, error) {
	var doc strings.Builder
	for _, assignment := range assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return base, fmt.Errorf("expected key=value, got %q", assignment)
		}
		fmt.Fprintf(&doc, "%s: %s\n", strings.TrimSpace(key), strings.TrimSpace(value))
	}

	values := base
	if err := yaml.UnmarshalWithOptions([]byte(doc.String()), &values, yaml.DisallowUnknownField()); err != nil {
		return base, fmt.Errorf("parse settings: %w", err)
	}
	return values, nil
}

func printYAML(cmd *cobra.Command, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
