package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLabelsCmd creates the labels command, which prints the active
// class table with the indices the model reports.
func NewLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the active class table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			fc, err := newFetchClient(cfg, log)
			if err != nil {
				return err
			}
			labels, err := resolveLabels(cmd.Context(), cfg, fc)
			if err != nil {
				return err
			}
			for i, name := range labels.Labels() {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", i, name)
			}
			return nil
		},
	}
}
