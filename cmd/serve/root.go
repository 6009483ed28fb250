package serve

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cmdUtil "github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/lib/db/engines/kvs"
	"github.com/ValentinKolb/kvs/lib/db/engines/leveldb"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/lstore"
	"github.com/ValentinKolb/kvs/lib/threadpool"
	"github.com/ValentinKolb/kvs/rpc/common"
	"github.com/ValentinKolb/kvs/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the kvs server",
		Long: `Start the kvs server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KVS_<flag> (e.g. KVS_POOL_SIZE=16).

A data directory remembers the engine that created it, starting the server with another engine fails.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:4000", cmdUtil.WrapString("The address on which the server will listen (e.g. 127.0.0.1:4000, /tmp/kvs.sock, ...)"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, string(db.ImplKvs), cmdUtil.WrapString("The storage engine (kvs, leveldb)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("The directory the engine stores its data in"))

	key = "compaction-threshold"
	ServeCmd.PersistentFlags().Int64(key, kvs.DefaultOptions().CompactionThreshold, cmdUtil.WrapString("(kvs engine) Number of stale bytes in the log that trigger a compaction"))

	key = "sync-writes"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Sync every write to disk before it is acknowledged"))

	key = "strict-recovery"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("(kvs engine) Refuse to start when the log has a torn or corrupt record instead of truncating it"))

	key = "pool"
	ServeCmd.PersistentFlags().String(key, string(threadpool.KindSharedQueue), cmdUtil.WrapString("The thread pool that handles the connections (naive, shared-queue, work-stealing)"))

	key = "pool-size"
	ServeCmd.PersistentFlags().Int(key, runtime.GOMAXPROCS(0), cmdUtil.WrapString("Number of threads of the pool"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read and write timeout of a connection in seconds"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("If set, metrics are served in the prometheus format on http://<metrics-endpoint>/metrics"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Engine = viper.GetString("engine")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.CompactionThreshold = viper.GetInt64("compaction-threshold")
	serveCmdConfig.SyncWrites = viper.GetBool("sync-writes")
	serveCmdConfig.StrictRecovery = viper.GetBool("strict-recovery")
	serveCmdConfig.PoolKind = viper.GetString("pool")
	serveCmdConfig.PoolSize = viper.GetInt("pool-size")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// validate
	if _, err := db.ParseImplementation(serveCmdConfig.Engine); err != nil {
		return err
	}
	if _, err := threadpool.ParseKind(serveCmdConfig.PoolKind); err != nil {
		return err
	}
	if serveCmdConfig.PoolSize < 1 {
		return threadpool.ErrInvalidSize
	}
	if serveCmdConfig.CompactionThreshold < 0 {
		return fmt.Errorf("compaction threshold must not be negative")
	}

	// from here on errors are runtime errors, not usage errors
	cmd.SilenceUsage = true
	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the kvs server and blocks until it is stopped by a signal
func run(_ *cobra.Command, _ []string) error {
	config := *serveCmdConfig

	s, err := openStore(config)
	if err != nil {
		return err
	}

	pool, err := threadpool.New(threadpool.Kind(config.PoolKind), config.PoolSize)
	if err != nil {
		_ = s.Close()
		return err
	}

	// close everything in reverse order, the store last so answered requests are on disk
	shutdown := func() error {
		pool.Close()
		return s.Close()
	}

	ser, err := cmdUtil.GetSerializer()
	if err != nil {
		return errors.Join(err, shutdown())
	}
	t, err := cmdUtil.GetServerTransport(pool)
	if err != nil {
		return errors.Join(err, shutdown())
	}

	serv := server.NewRPCServer(config, t, ser, s)
	addr, err := serv.Listen()
	if err != nil {
		return errors.Join(err, shutdown())
	}
	Logger.Infof("kvs server listening on %s (engine %s)", addr, config.Engine)

	// stop on SIGINT/SIGTERM
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	served := make(chan error, 1)
	go func() {
		served <- serv.Serve()
	}()

	select {
	case sig := <-sigs:
		Logger.Infof("Received %s, shutting down", sig)
		err = serv.Close()
		if serveErr := <-served; serveErr != nil {
			err = errors.Join(err, serveErr)
		}
	case err = <-served:
		_ = serv.Close()
	}

	if closeErr := shutdown(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	Logger.Infof("kvs server stopped")
	return err
}

// openStore opens the local store with the configured engine
func openStore(config common.ServerConfig) (store.IStore, error) {
	impl, err := db.ParseImplementation(config.Engine)
	if err != nil {
		return nil, err
	}

	var factory store.DBFactory
	switch impl {
	case db.ImplKvs:
		opts := &kvs.DBOptions{
			CompactionThreshold: config.CompactionThreshold,
			SyncWrites:          config.SyncWrites,
			StrictRecovery:      config.StrictRecovery,
		}
		factory = func(dir string) (db.KVDB, error) {
			return kvs.Open(dir, opts)
		}
	case db.ImplLevelDB:
		opts := &leveldb.DBOptions{SyncWrites: config.SyncWrites}
		factory = func(dir string) (db.KVDB, error) {
			return leveldb.Open(dir, opts)
		}
	}

	return lstore.NewLocalStore(config.DataDir, impl, factory)
}
