package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/raphaelgruber/askrumi/internal/client"
	"github.com/spf13/cobra"
)

var behaviorFile string

var behaviorCmd = &cobra.Command{
	Use:   "behavior",
	Short: "Show or replace the server's behavior configuration",
	Long: `Show or replace the behavior configuration used by the API server:
generation parameters, prompt templates, quote formatting and
post-processing rules.

The file must be valid JSON; it is not otherwise validated. A file that
does not parse is never sent.

Examples:
  rumi behavior get > behavior.json
  rumi behavior set --file behavior.json
  cat behavior.json | rumi behavior set --file -`,
	RunE: runBehaviorGet,
}

var behaviorGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the behavior configuration as JSON",
	Args:  cobra.NoArgs,
	RunE:  runBehaviorGet,
}

var behaviorSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the behavior configuration from a JSON file",
	Args:  cobra.NoArgs,
	RunE:  runBehaviorSet,
}

func init() {
	behaviorSetCmd.Flags().StringVarP(&behaviorFile, "file", "f", "", "JSON file to upload (- for stdin)")
	_ = behaviorSetCmd.MarkFlagRequired("file")
	behaviorCmd.AddCommand(behaviorGetCmd)
	behaviorCmd.AddCommand(behaviorSetCmd)
}

func runBehaviorGet(cmd *cobra.Command, args []string) error {
	return printConfig(cmd, store.PullBehaviorConfig)
}

func runBehaviorSet(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, behaviorFile)
	if err != nil {
		return err
	}
	if err := store.PushBehaviorJSON(cmd.Context(), raw); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Behavior settings saved.")
	return nil
}

func printConfig(cmd *cobra.Command, pull func(context.Context) (client.ConfigObject, error)) error {
	cfg, err := pull(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
