package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smsverify",
	Short: "Phone number verification over SMS",
	Long: `smsverify issues one-time SMS challenges for phone numbers and confirms
the codes users send back. Without a subcommand it starts the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
