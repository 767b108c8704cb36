package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>...",
		Short: "Print the display name for each facility id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range args {
				fmt.Fprintf(out, "%s\t%s\n", id, reg.Resolve(id))
			}
			return nil
		},
	}
}

func newFacilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "facilities",
		Short: "List registered facilities in id order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range reg.Entries() {
				fmt.Fprintf(out, "%s\t%s\n", e.ID, e.Name)
			}
			fmt.Fprintf(out, "# endpoint: %s\n# fallback label: %s\n", cfg.Endpoint, reg.FallbackLabel())
			return nil
		},
	}
}
