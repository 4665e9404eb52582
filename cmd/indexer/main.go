package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"callIndexer/internal/chain"
	"callIndexer/internal/config"
	"callIndexer/internal/decoder"
	"callIndexer/internal/httpapi"
	"callIndexer/internal/indexer"
	"callIndexer/internal/notify"
	"callIndexer/internal/storage"
	"callIndexer/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Soroban call registry event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll contract events and index them",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "Soroban RPC URL")
	runCmd.Flags().StringSlice("contract", nil, "contract ids to index (comma-separated)")
	runCmd.Flags().Duration("poll-interval", 5*time.Second, "poll interval")
	runCmd.Flags().Uint("page-size", 100, "events per getEvents page")
	runCmd.Flags().Int("max-pages", 10, "pages fetched per cycle")
	runCmd.Flags().Uint32("start-ledger", 0, "first ledger when no checkpoint exists, 0 means chain head")
	runCmd.Flags().Duration("rpc-timeout", 30*time.Second, "timeout per RPC call")
	runCmd.Flags().Int("max-retries", 2, "maximum retry attempts per RPC call")
	runCmd.Flags().Duration("retry-backoff", 250*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("redis-addr", "", "Redis address for notifications, empty logs them instead")
	runCmd.Flags().String("redis-password", "", "Redis password")
	runCmd.Flags().Int("redis-db", 0, "Redis database")
	runCmd.Flags().String("redis-channel", "call-notifications", "Redis pub/sub channel")
	runCmd.Flags().Int("notify-queue-size", 256, "buffered notifications before dropping")
	runCmd.Flags().Int("creator-cache", 4096, "cached call creators")
	runCmd.Flags().String("http-addr", ":8090", "ops HTTP listen address, empty disables")
	addStoreFlags(runCmd.Flags())

	root.AddCommand(runCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print checkpoint and event log summary",
		RunE:  runStatus,
	}

	statusCmd.Flags().StringSlice("contract", nil, "contract ids (comma-separated)")
	addStoreFlags(statusCmd.Flags())

	root.AddCommand(statusCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode captured raw events into parsed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw events JSONL")
	decodeCmd.Flags().String("out", "./data/parsed_events.jsonl", "output parsed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(flags *pflag.FlagSet) {
	flags.String("pg-dsn", "", "Postgres DSN, empty uses the JSONL store")
	flags.String("store-path", "./data/events.jsonl", "JSONL event log path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	contracts, err := indexer.ParseContractIDs(cfg.ContractIDs)
	if err != nil {
		return err
	}
	if len(contracts) == 0 {
		return fmt.Errorf("contract list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	sender, closeSender, err := newSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()

	queue := notify.NewQueue(sender, cfg.NotifyQueueSize, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queue.Close(closeCtx); err != nil {
			logger.Warn("notification queue not drained", zap.Error(err))
		}
	}()

	directory, err := notify.NewStoreDirectory(store, cfg.CreatorCache)
	if err != nil {
		return err
	}
	router := notify.NewRouter(queue, directory, logger)

	poller := indexer.NewPoller(indexer.PollConfig{
		ContractIDs:  contracts,
		Interval:     cfg.PollInterval,
		PageSize:     cfg.PageSize,
		MaxPages:     cfg.MaxPages,
		StartLedger:  cfg.StartLedger,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, decoder.New(logger), store, router, logger)

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: httpapi.NewRouter(httpapi.Deps{
				Status: func(ctx context.Context) (indexer.Status, error) {
					return indexer.QueryStatus(ctx, store, contracts)
				},
				Logger: logger,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Strings("contracts", contracts),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Uint("page_size", cfg.PageSize),
		zap.Int("max_pages", cfg.MaxPages),
		zap.Uint32("start_ledger", cfg.StartLedger),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	return poller.Run(ctx)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	contracts, err := indexer.ParseContractIDs(cfg.ContractIDs)
	if err != nil {
		return err
	}
	if len(contracts) == 0 {
		return fmt.Errorf("contract list is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := indexer.QueryStatus(ctx, store, contracts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	return postgres.EnsureSchema(ctx, pool, logger)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.PGDSN == "" {
		store, err := storage.NewJsonlStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open jsonl store: %w", err)
		}
		return store, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, store.Pool(), logger); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newSender(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Sender, func(), error) {
	if cfg.RedisAddr == "" {
		return notify.NewLogSender(logger.Named("notify")), func() {}, nil
	}
	client, err := notify.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return notify.NewRedisSender(client, cfg.RedisChannel), func() { _ = client.Close() }, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
