package cmd

import (
	"github.com/spf13/cobra"

	"github.com/armadaproject/queuecapacity/internal/capacitycalc"
	"github.com/armadaproject/queuecapacity/internal/common/app"
	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
)

func computeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the effective resources and capacities of every queue.",
		Long: `Compute the effective resources and capacities of every queue, for every node label partition,
and print them together with any configuration warnings.

With --watch, configurations are recomputed every time they change and metrics are served until interrupted.`,
		RunE: runCompute,
	}
	addConfigFlags(cmd)
	addOutputFlag(cmd.Flags())
	cmd.Flags().Bool("watch", false, "Recompute whenever a configuration changes.")
	return cmd
}

func runCompute(cmd *cobra.Command, args []string) error {
	configPattern, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	outputFormat, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}

	opts := capacitycalc.Options{
		ConfigPattern:    configPattern,
		OutputFormat:     outputFormat,
		Out:              cmd.OutOrStdout(),
		ConfigureLogging: true,
	}
	if watch {
		return capacitycalc.Watch(app.CreateContextWithShutdown(), opts)
	}
	return capacitycalc.Compute(calccontext.Background(), opts)
}
