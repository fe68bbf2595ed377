package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keywordsFile string

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Show or replace emotion, theme and empathy keywords",
	Long: `Show or replace the keyword lists the server uses to detect emotions,
themes and empathy triggers.

Examples:
  rumi keywords get > keywords.json
  rumi keywords set --file keywords.json`,
	RunE: runKeywordsGet,
}

var keywordsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the keyword configuration as JSON",
	Args:  cobra.NoArgs,
	RunE:  runKeywordsGet,
}

var keywordsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the keyword configuration from a JSON file",
	Args:  cobra.NoArgs,
	RunE:  runKeywordsSet,
}

func init() {
	keywordsSetCmd.Flags().StringVarP(&keywordsFile, "file", "f", "", "JSON file to upload (- for stdin)")
	_ = keywordsSetCmd.MarkFlagRequired("file")
	keywordsCmd.AddCommand(keywordsGetCmd)
	keywordsCmd.AddCommand(keywordsSetCmd)
}

func runKeywordsGet(cmd *cobra.Command, args []string) error {
	return printConfig(cmd, store.PullEmotionKeywords)
}

func runKeywordsSet(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, keywordsFile)
	if err != nil {
		return err
	}
	if err := store.PushEmotionKeywordsJSON(cmd.Context(), raw); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Emotion keywords saved.")
	return nil
}
