package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/idprecon/internal/discovery"
)

var variationsCmd = &cobra.Command{
	Use:   "variations <keyword>",
	Short: "Print the connection names generated for a keyword",
	Long: `Print the connection name variations Phase 2 probes for --connections-keyword.
Names longer than the platform limit are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyword := strings.TrimSpace(args[0])
		if keyword == "" {
			return &InvalidSettingError{Name: "keyword", Err: fmt.Errorf("must not be empty")}
		}

		names := discovery.Variations(keyword)
		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d variations for %q\n", colorInfo("i"), len(names), keyword)
		return nil
	},
}
