package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/kvs/cmd/kv"
	"github.com/ValentinKolb/kvs/cmd/serve"
	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvs",
		Short: "persistent key-value store",
		Long: fmt.Sprintf(`kvs (v%s)

A persistent key-value store written in Go. Data is kept in an append-only log
that is compacted in the background, the server answers set, get and rm requests
of remote clients on a thread pool.`, Version),
		SilenceErrors: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvs v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// Errors are printed to stderr and exit the process with status 1.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
