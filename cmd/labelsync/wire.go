package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	appintegration "github.com/erp/labelsync/internal/application/integration"
	"github.com/erp/labelsync/internal/infrastructure/archive"
	"github.com/erp/labelsync/internal/infrastructure/config"
	"github.com/erp/labelsync/internal/infrastructure/feed"
	"github.com/erp/labelsync/internal/infrastructure/httpclient"
	"github.com/erp/labelsync/internal/infrastructure/keymap"
	"github.com/erp/labelsync/internal/infrastructure/labelplatform"
	"github.com/erp/labelsync/internal/infrastructure/logger"
	"github.com/erp/labelsync/internal/infrastructure/statestore"
	"github.com/erp/labelsync/internal/infrastructure/telemetry"
)

// app holds the wired pipeline and everything that must be closed with it
type app struct {
	pipeline *appintegration.Pipeline
	state    *statestore.Backend
	meters   *telemetry.MeterProvider
}

func (a *app) close(ctx context.Context, log *zap.Logger) {
	if err := a.state.Close(); err != nil {
		log.Error("Error closing state backend", zap.Error(err))
	}
	if err := a.meters.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
}

func newRequestClient(cfg *config.Config, log *zap.Logger) *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:            cfg.Retry.Timeout,
		InsecureSkipVerify: cfg.Retry.InsecureSkipVerify,
		Retry:              httpclient.RetryPolicy{Attempts: cfg.Retry.Attempts, Wait: cfg.Retry.Wait},
	}, httpclient.WithLogger(log))
}

// newFeedClient builds the vendor feed client. Without a token url the
// client secret is used as a static bearer token.
func newFeedClient(cfg *config.Config, hc *httpclient.Client, log *zap.Logger) (*feed.Client, error) {
	var tokens httpclient.TokenSource = httpclient.StaticToken(cfg.Feed.ClientSecret)
	if cfg.Feed.TokenURL != "" {
		tokens = httpclient.NewClientCredentialsSource(hc, cfg.Feed.TokenURL, cfg.Feed.ClientID, cfg.Feed.ClientSecret, cfg.Feed.TokenTTL)
	}
	return feed.NewClient(feed.Config{
		BaseURL:       cfg.Feed.BaseURL,
		APIKey:        cfg.Feed.APIKey,
		ChannelID:     cfg.Feed.ChannelID,
		CountryCode:   cfg.Feed.CountryCode,
		Language:      cfg.Feed.Language,
		DownloadDelay: cfg.Feed.DownloadDelay,
	}, hc, tokens, log.Named("feed"))
}

func buildApp(ctx context.Context, cfg *config.Config, version string, log *zap.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	keyMaps, err := keymap.Load(cfg.Keymap.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load key maps: %w", err)
	}

	hc := newRequestClient(cfg, log.Named("http"))
	feedClient, err := newFeedClient(cfg, hc, log)
	if err != nil {
		return nil, err
	}

	platformTokens := httpclient.NewPasswordLoginSource(hc, cfg.Platform.LoginURL, cfg.Platform.Username, cfg.Platform.Password, cfg.Platform.TokenTTL)
	platform, err := labelplatform.NewAdapter(labelplatform.Config{
		ArticlesURL:    cfg.Platform.ArticlesURL,
		IntegrationURL: cfg.Platform.IntegrationURL,
		CustomerCode:   cfg.Platform.CustomerCode,
		ClientID:       cfg.Platform.ClientID,
		ClientSecret:   cfg.Platform.ClientSecret,
		ListPageSize:   cfg.Platform.ListPageSize,
	}, hc, platformTokens, log.Named("platform"))
	if err != nil {
		return nil, err
	}

	state, err := statestore.Open(ctx, statestore.Config{
		DSN:        cfg.State.DSN,
		LedgerDir:  cfg.State.LedgerDir,
		PendingDir: cfg.State.PendingDir,
		KeyPrefix:  cfg.State.KeyPrefix,
		Database: statestore.DatabaseConfig{
			MaxOpenConns:    cfg.State.MaxOpenConns,
			MaxIdleConns:    cfg.State.MaxIdleConns,
			ConnMaxLifetime: cfg.State.ConnMaxLifetime,
			LogLevel:        cfg.State.LogLevel,
		},
	}, log.Named("state"))
	if err != nil {
		return nil, err
	}

	docArchive, err := archive.New(ctx, archive.Config{
		Backend: cfg.Archive.Backend,
		Dir:     cfg.Archive.Dir,
		S3: archive.S3Config{
			Bucket:          cfg.Archive.S3.Bucket,
			Region:          cfg.Archive.S3.Region,
			Endpoint:        cfg.Archive.S3.Endpoint,
			AccessKeyID:     cfg.Archive.S3.AccessKeyID,
			SecretAccessKey: cfg.Archive.S3.SecretAccessKey,
			Prefix:          cfg.Archive.S3.Prefix,
			UsePathStyle:    cfg.Archive.S3.UsePathStyle,
		},
	}, log.Named("archive"))
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		_ = state.Close()
		return nil, err
	}
	syncMetrics, err := telemetry.NewSyncMetrics(meters.Meter("labelsync/pipeline"))
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	pipeline, err := appintegration.NewPipeline(appintegration.PipelineDeps{
		Feed:    feedClient,
		Decoder: feed.GzipJSONDecoder{},
		Catalog: platform,
		Target:  platform,
		Ledger:  state.Ledger,
		Pending: state.Pending,
		Archive: docArchive,
		KeyMaps: keyMaps,
	}, appintegration.PipelineConfig{
		CustomerCode:      cfg.Platform.CustomerCode,
		Location:          loc,
		ChunkSize:         cfg.Delivery.ChunkSize,
		LookupConcurrency: cfg.Platform.LookupConcurrency,
	}, log.Named("pipeline"),
		appintegration.WithMetrics(syncMetrics),
		appintegration.WithRunContext(runContext),
	)
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	return &app{pipeline: pipeline, state: state, meters: meters}, nil
}

// runContext carries the run id and store on both the context and the logger
func runContext(ctx context.Context, log *zap.Logger, runID, storeCode string) (context.Context, *zap.Logger) {
	ctx, log = logger.WithRunID(ctx, log, runID)
	return logger.WithStore(ctx, log, storeCode)
}
