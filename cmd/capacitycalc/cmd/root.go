package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/armadaproject/queuecapacity/internal/capacity/report"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "capacitycalc",
		Short:        "capacitycalc computes the capacity of every queue of hierarchical queue trees.",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		computeCmd(),
		validateCmd(),
	)
	return cmd
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Glob pattern specifying the queue tree configurations, e.g. config/**/*.yaml.")
	_ = cmd.MarkFlagRequired("config")
}

func addOutputFlag(flags *pflag.FlagSet) {
	flags.StringP("output", "o", report.FormatTable, "Output format, one of table or yaml.")
}
