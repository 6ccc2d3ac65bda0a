package main

import (
	"fmt"
	"time"

	pumped "github.com/pumped-fn/pumped-spatial"
	"github.com/pumped-fn/pumped-spatial/extensions"
	"github.com/spf13/cobra"
)

var graphLoad bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the store's dependency tree",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().BoolVar(
		&graphLoad,
		"load",
		false,
		"run the initial sync first and print its execution history",
	)
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, extensions.RenderGraph(a.store.Scope()))

	if !graphLoad {
		return nil
	}
	if err := a.load(cmd.Context()); err != nil {
		return err
	}

	tree := a.store.Scope().GetExecutionTree()
	for _, root := range tree.GetRoots() {
		fmt.Fprintln(out, describe(root))
		for _, child := range tree.GetChildren(root.ID) {
			fmt.Fprintln(out, "  "+describe(child))
		}
	}
	return nil
}

func describe(n *pumped.ExecutionNode) string {
	name, _ := pumped.FlowName().GetFromExecution(n)
	status, _ := pumped.Status().GetFromExecution(n)
	start, _ := pumped.StartTime().GetFromExecution(n)
	end, _ := pumped.EndTime().GetFromExecution(n)
	return fmt.Sprintf("%s %s %s (%s)", n.ID[:8], name, status, end.Sub(start).Round(time.Microsecond))
}
