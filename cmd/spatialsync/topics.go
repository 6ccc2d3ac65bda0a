package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pumped-fn/pumped-spatial/spatial"
	"github.com/spf13/cobra"
)

var topicsCmd = &cobra.Command{
	Use:   "topics [filter]",
	Short: "Load and list thematic topics, optionally fuzzy-filtered",
	RunE:  runTopics,
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}

func runTopics(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(cmd.Context()); err != nil {
		return err
	}

	topics := spatial.FilterTopics(a.store.Topics().Read(), strings.Join(args, " "))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tGROUP")
	for _, t := range topics {
		fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Group)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d topics.\n", len(topics), len(a.store.Topics().Read()))
	return nil
}
