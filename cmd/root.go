package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"limeal.fr/gamepipe/pkg/config"
)

var (
	debug   bool
	rootDir string

	cfg    config.Config
	logger = slog.Default()

	// exitCode is the status Execute exits with after a successful run,
	// set by launch to the game's own exit code.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "gamepipe",
	Short: "gamepipe downloads, verifies and launches minecraft versions",
	Long: `gamepipe resolves a minecraft version from the official manifest, downloads
its client, libraries, natives and assets with SHA-1 verification, and
launches the game with the right JVM and game arguments.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if rootDir != "" {
			loaded.RootDir = rootDir
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "The game root directory (default: the per-OS minecraft folder)")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
	os.Exit(exitCode)
}
