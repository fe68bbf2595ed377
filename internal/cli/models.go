package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/askrumi/internal/settings"
	"github.com/spf13/cobra"
)

var (
	modelsSelectDefault bool
	modelsDownloadWait  bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List, select, download or test models",
	Long: `Manage the models served by the Ask Rumi API.

Subcommands:
  list      List models (default)
  select    Use a model for chat
  download  Queue a model download on the server
  test      Run the server's smoke test for a model

Examples:
  rumi models
  rumi models select phi3-mini --default
  rumi models download phi3-mini --wait
  rumi models test gemma3:270m`,
	RunE: runModelsList,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models",
	Args:  cobra.NoArgs,
	RunE:  runModelsList,
}

var modelsSelectCmd = &cobra.Command{
	Use:   "select <model>",
	Short: "Use a model for chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsSelect,
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <model>",
	Short: "Queue a model download",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDownload,
}

var modelsTestCmd = &cobra.Command{
	Use:   "test <model>",
	Short: "Run the smoke test for a model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsTest,
}

func init() {
	modelsSelectCmd.Flags().BoolVar(&modelsSelectDefault, "default", false, "also save as the default model")
	modelsDownloadCmd.Flags().BoolVarP(&modelsDownloadWait, "wait", "w", false, "show progress until the download finishes")

	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsSelectCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsTestCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	if err := ctrl.RefreshModels(cmd.Context()); err != nil {
		return err
	}
	state := ctrl.State()
	out := cmd.OutOrStdout()

	if len(state.Models) == 0 {
		fmt.Fprintln(out, "No models found.")
		return nil
	}

	fmt.Fprintf(out, "Models (%d):\n\n", len(state.Models))
	for _, m := range state.Models {
		marker := " "
		if m.Name == state.Model {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s [%s] %.1f GB, %s\n", marker, m.Name, m.Status, m.SizeGB, m.Provider)
		if verbose {
			if m.DisplayName != "" && m.DisplayName != m.Name {
				fmt.Fprintf(out, "    %s\n", m.DisplayName)
			}
			if m.Description != "" {
				fmt.Fprintf(out, "    %s\n", m.Description)
			}
			if len(m.Capabilities) > 0 {
				fmt.Fprintf(out, "    Capabilities: %s\n", strings.Join(m.Capabilities, ", "))
			}
		}
	}
	return nil
}

// runModelsSelect only lasts for this process unless --default persists it.
func runModelsSelect(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := ctrl.SelectModel(name); err != nil {
		return err
	}
	if modelsSelectDefault {
		if err := ctrl.UpdatePreferences(func(p *settings.Preferences) { p.DefaultModel = name }); err != nil {
			return fmt.Errorf("save default model: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default model: %s\n", name)
	}
	return nil
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	name := args[0]
	ticket, err := ctrl.DownloadModel(cmd.Context(), name)
	if err != nil {
		return err
	}
	if ticket.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), ticket.Message)
	}
	if !modelsDownloadWait {
		return nil
	}
	return RunDownloadProgress(cmd.Context(), apiClient, name)
}

func runModelsTest(cmd *cobra.Command, args []string) error {
	result, err := ctrl.TestModel(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !result.TestPassed {
		return fmt.Errorf("model %s failed its test: %s", args[0], result.Message)
	}
	return nil
}
