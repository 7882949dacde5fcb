package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var releaseOnly bool

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the versions known to the manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer p.Close()

		m, err := p.resolver.FetchManifest(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range m.IDs(releaseOnly) {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.Flags().BoolVar(&releaseOnly, "release-only", false, "Only list releases")
}
