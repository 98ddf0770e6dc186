package main

import (
	"log"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	envFile      string
	settingsFile string
	debug        bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "avatar-client",
		Short: "Talk to an AI avatar and get an evaluation of the conversation",
		Long: `avatar-client joins a real-time room with an AI avatar agent, keeps a live
transcript of the conversation, and shows an evaluation report once you leave.

Run "connect" for an interactive session in the terminal, or "serve" to drive
sessions from a browser through the local HTTP and websocket API.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "Env file to load (defaults to $ENV_FILE or .env)")
	cmd.PersistentFlags().StringVar(&opts.settingsFile, "settings", "", "YAML settings file (defaults to $SETTINGS_FILE)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if opts.debug {
			log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		}
	}

	// Add subcommands
	cmd.AddCommand(newConnectCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newEvaluateCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
