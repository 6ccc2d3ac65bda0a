package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run the initial sync and report collection sizes",
	Args:  cobra.NoArgs,
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Got %d matches.\n", len(a.store.Matches().Read()))
	fmt.Fprintf(out, "Got %d topics.\n", len(a.store.Topics().Read()))
	fmt.Fprintf(out, "Ready: %v\n", a.store.Ready().Read())
	return nil
}
