package kv

import (
	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value store operations on a kvs server",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(rmCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// arguments are valid, a failing request should not print the usage
	cmd.SilenceUsage = true

	// Create the KV store client
	rpcStore, err = client.NewRPCStore(
		*util.GetClientConfig(),
		t,
		s,
	)

	return err
}
