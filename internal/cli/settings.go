package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change client preferences",
	Long: `Show and change the preferences stored in RUMI_PREFERENCES_FILE.

Values are parsed as YAML scalars. The generation parameters
(temperature, conversation_history_depth, max_tokens_*, max_quotes_retrieved)
are mirrored to the server with push and pull.

Examples:
  rumi settings
  rumi settings get typing_speed
  rumi settings set typing_speed 20
  rumi settings set dark_mode true
  rumi settings push
  rumi settings pull`,
	RunE: runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all preferences",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one preference",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send generation parameters to the server",
	Args:  cobra.NoArgs,
	RunE:  runSettingsPush,
}

var settingsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Copy the server's generation parameters into local preferences",
	Args:  cobra.NoArgs,
	RunE:  runSettingsPull,
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsPushCmd)
	settingsCmd.AddCommand(settingsPullCmd)
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Preferences (%s):\n\n", store.Path())
	for _, key := range store.Keys() {
		v, err := store.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-28s %v\n", key, v)
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	v, err := store.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if err := store.Set(args[0], args[1]); err != nil {
		return err
	}
	v, _ := store.Get(args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], v)
	return nil
}

func runSettingsPush(cmd *cobra.Command, args []string) error {
	if err := store.PushGeneration(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Generation parameters saved to server.")
	return nil
}

func runSettingsPull(cmd *cobra.Command, args []string) error {
	prefs, err := store.PullGeneration(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Generation parameters loaded from server:")
	for key, v := range prefs.GenerationConfig() {
		fmt.Fprintf(out, "  %-28s %v\n", key, v)
	}
	return nil
}
