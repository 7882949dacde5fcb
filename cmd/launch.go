package cmd

import (
	"github.com/spf13/cobra"

	"limeal.fr/gamepipe/pkg/game/launcher"
	"limeal.fr/gamepipe/pkg/game/profile"
)

var (
	xmx         int
	xms         int
	javaPath    string
	username    string
	playerUUID  string
	accessToken string
	userType    string
	metricsAddr string
)

var launchCmd = &cobra.Command{
	Use:   "launch <version>",
	Short: "Download and launch a minecraft version",
	Long: `Download and launch a minecraft version.

Arguments:
  <version>  The version id to launch (e.g. "1.20.1", "latest-release").

Every missing or corrupted file is downloaded and verified before the game
starts. Without an access token the game runs in offline mode.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := credentials()
		if err != nil {
			return err
		}

		p, err := newPipeline(cmd.Context(), firstNonEmpty(metricsAddr, cfg.MetricsAddr))
		if err != nil {
			return err
		}
		defer p.Close()

		opts := []launcher.Option{
			launcher.WithLogger(logger),
			launcher.WithMemory(profile.Memory{Xmx: xmx, Xms: xms}),
			launcher.WithLauncherInfo(cfg.LauncherName, cfg.LauncherVersion),
		}
		if java := firstNonEmpty(javaPath, cfg.JavaPath); java != "" {
			opts = append(opts, launcher.WithJavaPath(java))
		}

		l := launcher.New(p.resolver, p.downloader, p.layout, opts...)
		code, err := l.LaunchVersion(cmd.Context(), args[0], creds)
		if err != nil {
			return err
		}
		exitCode = code
		return nil
	},
}

func credentials() (profile.Credentials, error) {
	if accessToken == "" && playerUUID == "" {
		return profile.Offline(username)
	}
	return profile.NewCredentials(username, playerUUID, accessToken, profile.UserType(userType))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().IntVarP(&xmx, "xmx", "x", 4, "The maximum memory to use for the game, in GB")
	launchCmd.Flags().IntVarP(&xms, "xms", "s", 2, "The initial memory to use for the game, in GB")
	launchCmd.Flags().StringVarP(&javaPath, "java", "j", "", "The path to the java executable")
	launchCmd.Flags().StringVarP(&username, "username", "u", "Player", "The player name")
	launchCmd.Flags().StringVar(&playerUUID, "uuid", "", "The player uuid (default: derived from the username)")
	launchCmd.Flags().StringVar(&accessToken, "access-token", "", "The session access token")
	launchCmd.Flags().StringVar(&userType, "user-type", string(profile.MOJANG), "The account type (msa, mojang, legacy)")
	launchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while running")
}
