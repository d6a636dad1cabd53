package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/batch"
	"github.com/feral-file/prize-indexer/internal/cache"
	"github.com/feral-file/prize-indexer/internal/config"
	"github.com/feral-file/prize-indexer/internal/indexer"
	"github.com/feral-file/prize-indexer/internal/logger"
	"github.com/feral-file/prize-indexer/internal/metadata"
	"github.com/feral-file/prize-indexer/internal/providers/catalog"
	"github.com/feral-file/prize-indexer/internal/providers/ethereum"
	"github.com/feral-file/prize-indexer/internal/providers/explorer"
	"github.com/feral-file/prize-indexer/internal/report"
	"github.com/feral-file/prize-indexer/internal/store"
)

var (
	configFile string
	envPath    string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := &cobra.Command{
		Use:           "prize-indexer",
		Short:         "Track the NFT prizes held by prize pool strategies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&envPath, "env", "config/", "Path to environment files")
	root.AddCommand(newAddCommand(), newUpdateCommand())

	err := root.ExecuteContext(ctx)
	if err != nil {
		logger.Error(err, zap.Strings("args", os.Args[1:]))
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	logger.Flush(2 * time.Second)
	if err != nil {
		os.Exit(1)
	}
}

func newAddCommand() *cobra.Command {
	var poolID string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a pool and record its initial NFT inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(func(c *config.Config) error { return c.ValidateAdd() })
			if err != nil {
				return err
			}

			app, err := build(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			pool, err := app.indexer.Register(cmd.Context(), poolID)
			if err != nil {
				return err
			}

			fmt.Printf("Added pool %s with %d collections\n", pool.ID, len(pool.InitialInventory))
			return nil
		},
	}
	cmd.Flags().StringVarP(&poolID, "id", "i", "", "Pool id in the catalogue")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newUpdateCommand() *cobra.Command {
	var poolID string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Render a report of awarded and remaining prizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(func(c *config.Config) error { return c.ValidateUpdate() })
			if err != nil {
				return err
			}

			app, err := build(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer app.Close()

			path, err := app.indexer.Update(cmd.Context(), poolID)
			if err != nil {
				return err
			}

			fmt.Printf("Saved to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&poolID, "id", "i", "", "Only report this pool")

	return cmd
}

// setup loads and validates the configuration and initializes the logger
func setup(validate func(*config.Config) error) (*config.Config, error) {
	config.ChdirRepoRoot()
	cfg, err := config.Load(configFile, envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "prize-indexer",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

type application struct {
	indexer *indexer.Indexer
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires the indexer. Reporting dependencies are only built when withReport is set.
func build(ctx context.Context, cfg *config.Config, withReport bool) (*application, error) {
	app := &application{}

	httpClient := adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout, cfg.Metadata.RetryMaxElapsed)
	jsonAdapter := adapter.NewJSON()
	fs := adapter.NewFileSystem()
	clock := adapter.NewClock()

	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}

	schema, err := ethereum.DefaultSchema()
	if err != nil {
		ethClient.Close()
		return nil, err
	}

	chainClient := ethereum.NewClient(ethClient, schema, cfg.Chain.LogStepSize)
	app.closers = append(app.closers, chainClient.Close)

	explorerClient := explorer.NewClient(httpClient, jsonAdapter, cfg.Explorer.APIURL, cfg.Explorer.APIKey, cfg.Explorer.RateLimit)

	var logSource ethereum.LogSource = chainClient
	if cfg.Chain.LogSource == config.LogSourceExplorer {
		logSource = explorerClient
	}

	var (
		loader    indexer.MetadataLoader
		remaining indexer.RemainingQuerier
		sink      report.Sink
	)

	if withReport {
		metadataCache, err := buildCache(ctx, cfg, app, fs, jsonAdapter)
		if err != nil {
			app.Close()
			return nil, err
		}

		resolver := metadata.NewResolver(chainClient, httpClient, jsonAdapter, metadata.Config{
			IPFSGateways:    cfg.Metadata.IPFSGateways,
			ArweaveGateways: cfg.Metadata.ArweaveGateways,
		})
		loader, err = metadata.NewLoader(resolver, metadataCache, cfg.Metadata.Concurrency)
		if err != nil {
			app.Close()
			return nil, err
		}

		batcher, err := buildBatcher(cfg, ethClient)
		if err != nil {
			app.Close()
			return nil, err
		}
		remaining = batch.NewAggregator(batcher, schema, cfg.Chain.BatchSize)

		sink, err = report.NewHTMLSink(cfg.Paths.OutputDir, cfg.Report.Template, fs)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	app.indexer = indexer.New(
		store.NewFilePoolStore(cfg.Paths.PoolsFile, fs, jsonAdapter),
		catalog.NewClient(httpClient, cfg.Catalog.URL),
		explorerClient,
		logSource,
		schema,
		loader,
		remaining,
		sink,
		clock,
	)

	return app, nil
}

func buildCache(ctx context.Context, cfg *config.Config, app *application, fs adapter.FileSystem, jsonAdapter adapter.JSON) (cache.Cache, error) {
	var durable cache.Cache

	switch cfg.Cache.Backend {
	case config.CacheBackendPostgres:
		db, err := store.OpenPostgres(cfg.Database.DSN(),
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})

		if err := cache.Migrate(ctx, db); err != nil {
			return nil, err
		}
		durable = cache.NewPostgresCache(db, jsonAdapter)
	default:
		durable = cache.NewFileCache(cfg.Cache.Dir, fs, jsonAdapter)
	}

	if cfg.Cache.MemorySize <= 0 {
		return durable, nil
	}
	return cache.NewMemoryCache(cfg.Cache.MemorySize, durable)
}

func buildBatcher(cfg *config.Config, ethClient adapter.EthClient) (batch.Batcher, error) {
	if cfg.Chain.BatchMode == config.BatchModeRPC {
		return ethereum.NewRPCBatcher(ethClient), nil
	}

	if !common.IsHexAddress(cfg.Chain.MulticallAddress) {
		return nil, fmt.Errorf("invalid multicall address: %q", cfg.Chain.MulticallAddress)
	}
	return ethereum.NewMulticallBatcher(ethClient, common.HexToAddress(cfg.Chain.MulticallAddress))
}
