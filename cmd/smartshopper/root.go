package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "smartshopper",
		Short:         "Compare marketplace offers and their review sentiment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFlag != "" {
				return os.Setenv("SMART_SHOPPER_CONFIG", configFlag)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "YAML configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(newSearchCommand(&verbose))
	return rootCmd
}
