package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/cKV/cmd/kv"
	"github.com/ValentinKolb/cKV/cmd/serve"
)

const (
	Version = "1.2.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ckv",
		Short: "cached key-value store",
		Long: fmt.Sprintf(`cKV (v%s)

An in-memory key-value store with LRU-bounded capacity, per-key TTL,
namespace isolation, and crash-recoverable persistence via a
write-ahead log, exposed as an HTTP service.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
