package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show the API server's host information",
	Args:  cobra.NoArgs,
	RunE:  runSystem,
}

func runSystem(cmd *cobra.Command, args []string) error {
	if err := ctrl.RefreshSystem(cmd.Context()); err != nil {
		return err
	}
	info := ctrl.State().System
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "System (%s)\n", cfg.APIURL)
	fmt.Fprintf(out, "═══════════════════════════════════════\n")
	fmt.Fprintf(out, "Platform:  %s\n", info.Platform)
	fmt.Fprintf(out, "Python:    %s\n", info.PythonVersion)
	fmt.Fprintf(out, "PyTorch:   %s\n", info.TorchVersion)
	fmt.Fprintf(out, "CPU cores: %d\n", info.CPUCount)
	fmt.Fprintf(out, "Memory:    %.1f GB total, %.1f GB available\n", info.MemoryTotal, info.MemoryAvailable)
	return nil
}
