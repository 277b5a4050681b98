package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sqlock/sqlock/cmd/bench"
	"github.com/sqlock/sqlock/cmd/lock"
	"github.com/sqlock/sqlock/cmd/serve"
	"github.com/sqlock/sqlock/cmd/util"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "sqlock",
		Short: "distributed lock service for SQLite on shared filesystems",
		Long: fmt.Sprintf(`sqlock (v%s)

A distributed lock service that serializes writers of SQLite databases
living on shared network filesystems, using lease-based locks with
conditional writes for mutual exclusion.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sqlock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sqlock v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
