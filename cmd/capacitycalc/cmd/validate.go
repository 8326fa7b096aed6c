package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armadaproject/queuecapacity/internal/capacitycalc"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that queue tree configurations can be loaded, without computing them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPattern, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			filePaths, err := capacitycalc.ConfigFilesFromPattern(configPattern)
			if err != nil {
				return err
			}
			for _, filePath := range filePaths {
				c, err := capacitycalc.LoadConfigurationFile(filePath)
				if err != nil {
					return err
				}
				tree, err := capacitycalc.NewTree(filePath, c, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d queues, resources %s\n", filePath, tree.Hierarchy.Len(), tree.Factory.SummaryString())
			}
			return nil
		},
	}
	addConfigFlags(cmd)
	return cmd
}
