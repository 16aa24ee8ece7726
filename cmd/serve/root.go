package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	cmdUtil "github.com/ValentinKolb/cKV/cmd/util"
	"github.com/ValentinKolb/cKV/lib/db"
	"github.com/ValentinKolb/cKV/lib/db/engines/linden"
	"github.com/ValentinKolb/cKV/lib/store/cstore"
	"github.com/ValentinKolb/cKV/rpc/common"
	"github.com/ValentinKolb/cKV/rpc/server"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the cKV server",
		Long:    `Start the cKV server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is CKV_<flag> (e.g. CKV_STORE_CAPACITY=500)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. 0.0.0.0:8080)"))

	key = "store-capacity"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Maximum number of entries held in memory; the least recently used entry is evicted when a new key is inserted at capacity"))

	key = "log-file"
	ServeCmd.PersistentFlags().String(key, "data/wal.log", cmdUtil.WrapString("Path of the write-ahead log file; the parent directory is created on startup"))

	key = "compaction-interval"
	ServeCmd.PersistentFlags().Int(key, 300, cmdUtil.WrapString("Seconds between compactor wake-ups; the log is rewritten when it holds more than max-log-size records"))

	key = "max-log-size"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Record count above which the periodic compactor rewrites the write-ahead log"))

	key = "cleanup-interval"
	ServeCmd.PersistentFlags().Int(key, 60, cmdUtil.WrapString("Seconds between expiry sweeps that physically remove entries whose TTL has elapsed"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// initConfig loads .env files and enables reading ENV variables.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ckv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.StoreCapacity = viper.GetInt("store-capacity")
	serveCmdConfig.LogFile = viper.GetString("log-file")
	serveCmdConfig.CompactionIntervalSec = viper.GetInt("compaction-interval")
	serveCmdConfig.MaxLogSize = viper.GetInt("max-log-size")
	serveCmdConfig.CleanupIntervalSec = viper.GetInt("cleanup-interval")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the cKV server
func run(_ *cobra.Command, _ []string) error {

	// create the logger
	logger, err := common.NewLogger(serveCmdConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	fmt.Println(serveCmdConfig.String())

	// create the store with its cache engine and write-ahead log
	st, err := cstore.NewCachedStore(
		func() db.KVCache { return linden.NewLindenCache(serveCmdConfig.StoreCapacity) },
		&cstore.Options{
			LogFile:            serveCmdConfig.LogFile,
			CompactionInterval: time.Duration(serveCmdConfig.CompactionIntervalSec) * time.Second,
			MaxLogSize:         serveCmdConfig.MaxLogSize,
			CleanupInterval:    time.Duration(serveCmdConfig.CleanupIntervalSec) * time.Second,
		},
		logger.Named("store"),
	)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	apiServer := server.NewAPIServer(*serveCmdConfig, st, logger.Named("http"))

	// serve until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Serve()
	}()

	select {
	case err := <-errCh:
		st.Close()
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-errCh

	return st.Close()
}
