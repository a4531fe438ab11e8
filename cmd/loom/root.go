package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/config"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/adapters/file"
	"github.com/aretw0/loom/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/loom/pkg/adapters/redis"
	"github.com/aretw0/loom/pkg/observability"
	"github.com/aretw0/loom/pkg/persistence/middleware"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v      = viper.New()
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom is the typed core of a dataflow editor",
	Long: `Loom checks and edits dataflow documents: blueprints made of operators
whose typed ports are connected under type, stream and generic rules.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, path)
		if err != nil {
			return err
		}
		cfg = loaded

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = logging.NewWithFormat(os.Stderr, level, cfg.LogFormat)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./loom.yaml if present)")
	flags.String("library", ".", "Directory holding the operator library")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("store", config.StoreMemory, "Document store: memory, file or redis")
	flags.String("store-dir", "documents", "Directory of the file store")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis store")

	bind("library", "library")
	bind("log_level", "log-level")
	bind("log_format", "log-format")
	bind("store.kind", "store")
	bind("store.dir", "store-dir")
	bind("store.redis.addr", "redis-addr")
}

func bind(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// openStore builds the configured document store, wrapped in the
// redaction and encryption middlewares when configured. The locker is nil
// unless the store is shared between processes.
func openStore(sc config.StoreConfig) (ports.DocumentStore, ports.DistributedLocker, func(), error) {
	var (
		store     ports.DocumentStore
		locker    ports.DistributedLocker
		closeFunc = func() {}
	)
	switch sc.Kind {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(sc.Dir)
	case config.StoreRedis:
		rc := sc.Redis
		rs := redisAdapter.New(rc.Addr, rc.Password, rc.DB,
			redisAdapter.WithPrefix(rc.Prefix+"doc:"),
			redisAdapter.WithTTL(rc.TTL),
		)
		store, locker = rs, redisAdapter.NewLocker(rs.Client(), rc.Prefix)
		closeFunc = func() { _ = rs.Close() }
	default:
		return nil, nil, nil, fmt.Errorf("unknown store kind %q", sc.Kind)
	}

	var mws []middleware.Middleware
	if len(sc.Redact) > 0 {
		mw, err := middleware.NewRedactionMiddleware(sc.Redact)
		if err != nil {
			closeFunc()
			return nil, nil, nil, err
		}
		mws = append(mws, mw)
	}
	if sc.Encryption.Key != "" {
		active, fallbacks, err := sc.Encryption.Keys()
		if err != nil {
			closeFunc()
			return nil, nil, nil, err
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallbacks})
		if err != nil {
			closeFunc()
			return nil, nil, nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), locker, closeFunc, nil
}

// openWorkspace builds a Workspace from the loaded configuration.
func openWorkspace(metrics *observability.Metrics) (*loom.Workspace, func(), error) {
	store, locker, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	opts := []loom.Option{
		loom.WithStore(store),
		loom.WithLogger(logger),
		loom.WithMetrics(metrics),
	}
	if locker != nil {
		opts = append(opts, loom.WithLocker(locker, cfg.Store.Redis.LockTTL))
	}

	ws, err := loom.New(cfg.Library, opts...)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	return ws, func() {
		ws.Close()
		closeStore()
	}, nil
}
