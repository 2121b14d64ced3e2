package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Print the selectable state names",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		bundle, err := loadBundle(cmd.Context(), cfg, newOpener(cfg))
		if err != nil {
			return err
		}
		return printStates(cmd.OutOrStdout(), bundle.StateNames)
	},
}

func printStates(w io.Writer, names []string) error {
	for _, name := range names {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statesCmd)
}
