package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	cache "github.com/kenshin579/echo-record-cache"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "userserver",
		Short: "Serve users from a record cache in front of a backing store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := cache.LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &config)
			if err := config.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), config)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.String("policy", "", "cache policy: cache-aside, read-through, write-around, write-through, write-back")
	flags.String("addr", "", "listen address")
	flags.String("store", "", "backing store: memory, redis, redis-cluster, bolt")
	flags.String("redis-addr", "", "redis address")
	flags.StringSlice("redis-addrs", nil, "redis cluster addresses")
	flags.String("bolt-path", "", "bbolt database file")
	flags.Duration("flush-interval", 0, "write-back flush interval")
	flags.Duration("latency", 0, "simulated memory store latency")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	return cmd
}

// applyFlags overrides file values with the flags set on the command line.
func applyFlags(cmd *cobra.Command, config *cache.FileConfig) {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		config.Policy, _ = flags.GetString("policy")
	}
	if flags.Changed("addr") {
		config.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("store") {
		config.Store.Kind, _ = flags.GetString("store")
	}
	if flags.Changed("redis-addr") {
		config.Store.RedisAddr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("redis-addrs") {
		config.Store.RedisAddrs, _ = flags.GetStringSlice("redis-addrs")
	}
	if flags.Changed("bolt-path") {
		config.Store.BoltPath, _ = flags.GetString("bolt-path")
	}
	if flags.Changed("flush-interval") {
		config.FlushInterval, _ = flags.GetDuration("flush-interval")
	}
	if flags.Changed("latency") {
		config.Store.Latency, _ = flags.GetDuration("latency")
	}
	if flags.Changed("log-level") {
		config.LogLevel, _ = flags.GetString("log-level")
	}
}

type closer func() error

func openStore(ctx context.Context, config cache.StoreConfig) (cache.Store[cache.User], closer, error) {
	noop := func() error { return nil }

	switch config.Kind {
	case cache.StoreMemory:
		return cache.NewMemoryStoreWithConfig(cache.MemoryStoreConfig[cache.User]{
			Seed:    cache.SeedUsers(),
			Latency: config.Latency,
		}), noop, nil
	case cache.StoreRedis:
		store := cache.NewRedisStoreWithConfig[cache.User](redis.Options{Addr: config.RedisAddr})
		return store, store.Close, seed(ctx, store)
	case cache.StoreRedisCluster:
		addrs := config.RedisAddrs
		if len(addrs) == 0 {
			addrs = []string{config.RedisAddr}
		}
		store := cache.NewRedisClusterStoreWithConfig[cache.User](redis.ClusterOptions{Addrs: addrs})
		return store, store.Close, seed(ctx, store)
	case cache.StoreBolt:
		store, err := cache.OpenBoltStore[cache.User](config.BoltPath, cache.DefaultBoltStoreConfig)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, seed(ctx, store)
	}
	return nil, noop, errors.Newf("unknown store kind %q", config.Kind)
}

// seed writes the sample users into an empty store.
func seed(ctx context.Context, store cache.Store[cache.User]) error {
	keys, err := store.ListKeys(ctx)
	if err != nil {
		return errors.Wrap(err, "seed")
	}
	if len(keys) > 0 {
		return nil
	}
	for key, user := range cache.SeedUsers() {
		if err := store.Put(ctx, key, user); err != nil {
			return errors.Wrapf(err, "seed %s", key)
		}
	}
	return nil
}

func run(ctx context.Context, config cache.FileConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(cache.ParseLogLevel(config.LogLevel))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	store, closeStore, err := openStore(ctx, config.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			e.Logger.Errorf("close store: %v", err)
		}
	}()

	engineConfig, err := config.EngineConfig(cache.NewLogger("record-cache", cache.ParseLogLevel(config.LogLevel)))
	if err != nil {
		return err
	}
	engine, err := cache.NewEngineWithConfig[cache.User](store, engineConfig)
	if err != nil {
		return err
	}

	handler := cache.NewHandlerWithConfig(engine, cache.HandlerConfig[cache.User]{
		FromQuery: cache.UserFromQuery,
	})
	handler.Register(e.Group("/api/users"))
	handler.RegisterHealth(e)

	go func() {
		e.Logger.Infof("server starting on %s, policy %s, store %s", config.Addr, engine.Policy(), config.Store.Kind)
		if err := e.Start(config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Errorf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Errorf("shutdown: %v", err)
	}
	// pending write-back records are persisted before the store closes
	return engine.Close(shutdownCtx)
}
