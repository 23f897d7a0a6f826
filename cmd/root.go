package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:     "wrenchd",
	Short:   "wrenchd - vehicle repair shop backend",
	Long:    `A single-binary repair shop backend with SQLite, REST APIs and realtime order notifications.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate("wrenchd version {{.Version}}\n")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
