package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/config"
	"github.com/USCbiostats/annoq-api-v2/internal/db"
	dbElastic "github.com/USCbiostats/annoq-api-v2/internal/db/elastic"
	dbLocal "github.com/USCbiostats/annoq-api-v2/internal/db/local"
	"github.com/USCbiostats/annoq-api-v2/internal/db/objectstore"
	dbRedis "github.com/USCbiostats/annoq-api-v2/internal/db/redis"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	"github.com/USCbiostats/annoq-api-v2/internal/metrics"
	"github.com/USCbiostats/annoq-api-v2/internal/repository/genecache"
	"github.com/USCbiostats/annoq-api-v2/internal/repository/genetable"
	snprepo "github.com/USCbiostats/annoq-api-v2/internal/repository/snp"
	"github.com/USCbiostats/annoq-api-v2/internal/transport/annotation"
	exportuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/export"
	healthuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/health"
	queryuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/query"
	snpuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/snp"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	reg     *attribute.Registry
	engine  db.Engine
	genes   gene.Locator
	snps    *snpuc.Service
	exports *exportuc.Service
	health  *healthuc.Service
	closers []func()
}

// newApp builds the composition root from configuration.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	// Register metrics explicitly (no init())
	metrics.RegisterMetrics()

	reg, err := attribute.LoadFile(cfg.Attributes.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	a.reg = reg
	mapper := attribute.NewMapper(reg, logger)

	engine, err := openEngine(ctx, cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)

	// Pass nil interface (not typed nil pointer!) when no cache is configured.
	var cachePinger healthuc.Pinger
	genes, cache, err := buildGeneLocator(ctx, cfg.Gene, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cache != nil {
		cachePinger = cache
		a.closers = append(a.closers, cache.Close)
	}
	a.genes = genes

	conv := snprepo.NewConverter(mapper)
	pager := snprepo.NewPager(engine, cfg.Search.Index, conv, cfg.Limits.MaxPageWindow, logger)
	streamer := snprepo.NewStreamer(engine, conv, snprepo.StreamConfig{
		Index:          cfg.Search.Index,
		BatchSize:      cfg.Limits.StreamBatchSize,
		MaxRecords:     cfg.Limits.MaxExportRecords,
		KeepAlive:      cfg.Limits.SnapshotKeepAlive,
		BatchKeepAlive: cfg.Limits.BatchKeepAlive,
	}, logger)

	a.snps = snpuc.New(
		queryuc.NewBuilder(mapper, genes, logger),
		queryuc.NewAggregationBuilder(reg, logger),
		pager,
		streamer,
		mapper,
		cfg.Limits.MaxFields,
		logger,
	)

	// Same nil-interface rule for the optional artifact store.
	var artifacts exportuc.ArtifactStore
	if m := cfg.Export.MinIO; m.Endpoint != "" {
		store, err := objectstore.NewStore(objectstore.Config{
			Endpoint:      m.Endpoint,
			AccessKey:     m.AccessKey,
			SecretKey:     m.SecretKey,
			UseSSL:        m.UseSSL,
			Region:        m.Region,
			Bucket:        m.Bucket,
			Prefix:        m.Prefix,
			PresignExpiry: m.PresignExpiry,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create artifact store: %w", err)
		}
		artifacts = store
	}
	a.exports = exportuc.New(a.snps, artifacts, exportuc.Config{
		Dir:  cfg.Export.Dir,
		Gzip: cfg.Export.Gzip,
	}, logger)

	a.health = healthuc.New(engine, cachePinger, healthuc.WithAttributeCount(reg.Len()))
	return a, nil
}

// Limits returns the request limits derived from configuration.
func (a *app) Limits() request.Limits {
	return request.Limits{
		MaxFields:       a.cfg.Limits.MaxFields,
		MaxPageWindow:   a.cfg.Limits.MaxPageWindow,
		DefaultPageSize: a.cfg.Limits.DefaultPageSize,
	}
}

// Close releases every backend connection in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openEngine(ctx context.Context, cfg config.Config, reg *attribute.Registry, logger *zap.Logger) (db.Engine, error) {
	switch cfg.Search.Driver {
	case config.DriverLocal:
		schema, err := snprepo.Schema(cfg.Search.Index, reg)
		if err != nil {
			return nil, fmt.Errorf("build index schema: %w", err)
		}
		engine, err := dbLocal.Open(dbLocal.Config{Path: cfg.Search.LocalPath, Schema: schema})
		if err != nil {
			return nil, fmt.Errorf("open local index: %w", err)
		}
		logger.Info("Opened local index",
			zap.String("path", cfg.Search.LocalPath),
			zap.Int("fields", len(engine.Schema().Fields)),
		)
		logger.Debug("Local index schema", zap.Stringer("schema", engine.Schema()))
		return engine, nil
	case config.DriverElastic:
		engine, err := dbElastic.NewStore(dbElastic.Config{
			Addrs:          cfg.Search.Addrs,
			Username:       cfg.Search.Username,
			Password:       cfg.Search.Password,
			APIKey:         cfg.Search.APIKey,
			MaxRetries:     cfg.Search.MaxRetries,
			RequestTimeout: time.Duration(cfg.Search.RequestTimeoutSec) * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create elasticsearch client: %w", err)
		}
		if err := waitForReady(ctx, engine, time.Duration(cfg.Search.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("search engine not ready: %w", err)
		}
		logger.Info("Connected to search engine", zap.Strings("addrs", cfg.Search.Addrs))
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown search driver %q", cfg.Search.Driver)
	}
}

// waitForReady pings until the engine answers or the timeout elapses.
func waitForReady(ctx context.Context, p db.Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout after %s: %w", timeout, err)
		case <-ticker.C:
		}
	}
}

// buildGeneLocator assembles table -> API -> Redis cache. Every layer is optional;
// with no source the locator is nil and gene queries report the lookup as unavailable.
func buildGeneLocator(ctx context.Context, cfg config.GeneConfig, logger *zap.Logger) (gene.Locator, *dbRedis.Store, error) {
	var chain gene.Chain
	if cfg.TablePath != "" {
		table, err := genetable.LoadFile(cfg.TablePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("load gene table: %w", err)
		}
		chain = append(chain, table)
	}
	if cfg.APIURL != "" {
		client, err := annotation.NewClient(&annotation.Config{
			BaseURL:    cfg.APIURL,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create annotation client: %w", err)
		}
		chain = append(chain, client)
	}
	if len(chain) == 0 {
		logger.Warn("No gene locator configured; gene product queries will be unavailable")
		return nil, nil, nil
	}

	var locator gene.Locator = chain
	if len(cfg.Cache.Addrs) == 0 {
		return locator, nil, nil
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:       cfg.Cache.Addrs,
		Password:    cfg.Cache.Password,
		ClientName:  "annoq-gene-cache",
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create gene cache: %w", err)
	}
	// Lookups fall through to the chain while the cache is down; /health reports degraded.
	if err := store.WaitForReady(ctx, timeout); err != nil {
		logger.Warn("Gene cache not ready", zap.Strings("addrs", cfg.Cache.Addrs), zap.Error(err))
	}
	return genecache.New(locator, store, cfg.Cache.TTL, metrics.GeneCacheTotal, logger), store, nil
}
