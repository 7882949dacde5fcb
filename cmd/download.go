package cmd

import (
	"github.com/spf13/cobra"

	"limeal.fr/gamepipe/pkg/game/launcher"
)

var downloadCmd = &cobra.Command{
	Use:   "download <version>",
	Short: "Download and verify a minecraft version without launching it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd.Context(), firstNonEmpty(metricsAddr, cfg.MetricsAddr))
		if err != nil {
			return err
		}
		defer p.Close()

		l := launcher.New(p.resolver, p.downloader, p.layout, launcher.WithLogger(logger))
		d, err := l.Install(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		logger.Info("version installed", "version", d.ID, "root", p.layout.RootDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while running")
}
