package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/idprecon/internal/checker"
	"github.com/khanhnv2901/idprecon/internal/report"
)

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List every check the scanner runs, grouped by phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeCheckCatalog(cmd.OutOrStdout())
	},
}

func writeCheckCatalog(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPHASE\tNAME\tCREATES ACCOUNTS")
	for _, c := range checker.Catalog() {
		side := "no"
		if c.SideEffects {
			side = colorWarn("yes")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.ID, int(c.Phase), c.Name, side)
		fmt.Fprintf(tw, "\t\t  %s\t\n", c.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nReport formats: %s, %s, %s\n", report.FormatJSON, report.FormatText, report.FormatYAML)
	return nil
}
