package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tincan-labs/tincan/internal/ui"
	"github.com/tincan-labs/tincan/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "tincan",
	Short:   "Two-person voice and video calls over WebRTC, straight from the terminal",
	Long:    `Tincan is a command-line tool for direct two-person audio and video calls using WebRTC technology. Media flows peer to peer; the signaling server only introduces the two participants and relays session descriptions until the connection is up. Tincan ships its own signaling server, so a single binary covers both ends of the wire.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
