package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/raphaelgruber/askrumi/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Check server health and show request timings",
	Long: `Call the health endpoint and print its report together with the
client's request statistics for this process.

Examples:
  rumi stats
  rumi stats -v`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	health, err := apiClient.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	fmt.Fprintf(out, "Server Health (%s)\n", cfg.APIURL)
	fmt.Fprintf(out, "═══════════════════════════════════════\n")
	keys := make([]string, 0, len(health))
	for k := range health {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%-18s %v\n", k+":", health[k])
	}
	fmt.Fprintln(out)

	printClientStats(out, collector.Snapshot())
	return nil
}

// printClientStats displays per-endpoint timing statistics.
func printClientStats(out io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(out, "Client Statistics (this process)\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(out, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	for _, op := range snap.Operations {
		fmt.Fprintf(out, "\n%s:\n", op.Name)
		printOpStats(out, op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(out io.Writer, op metrics.OperationSnapshot) {
	fmt.Fprintf(out, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Fprintf(out, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.AvgInferenceMs != nil {
		fmt.Fprintf(out, "  Server inference: avg %.1fms\n", *op.AvgInferenceMs)
	}
}
