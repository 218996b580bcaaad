// Package cli implements tsapictl, the operator-facing command line
// client for a running tsapi server: submit/status/delete/login plus a
// folder-watching background service built on a cobra root command, a
// viper-backed config file, and a kardianos/service wrapper.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tsapictl",
	Short: "tsapi command line client",
	Long:  `Submit, inspect and cancel transcription jobs on a tsapi server, or run a folder watcher that submits them automatically.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.tsapictl.yaml)")
	cobra.OnInitialize(InitConfig)
}
