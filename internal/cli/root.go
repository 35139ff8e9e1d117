// Package cli wires the linguacast commands: serve, check, version.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/linguacast/linguacast/internal/dotenv"
)

func Execute() error {
	if err := dotenv.Load(".env"); err != nil {
		return err
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "linguacast",
		Short:         "linguacast relays one speaker's live speech to translated listeners",
		Long:          "linguacast runs a websocket relay that carries a speaker's speech through transcription, translation, and synthesis tiers and fans the result out to every listener in the session, each in their own language.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a linguacast.toml config file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newCheckCmd(&configPath),
		newVersionCmd(),
	)
	return rootCmd
}
