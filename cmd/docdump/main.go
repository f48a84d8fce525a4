// Command docdump downloads named vendor documents for one store and writes
// their decoded JSON next to each other for inspection.
//
// Usage:
//
//	docdump -store 02 -out dump ITM_0001.json.gz PRM_0002.json.gz
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/archive"
	"github.com/erp/labelsync/internal/infrastructure/config"
	"github.com/erp/labelsync/internal/infrastructure/feed"
	"github.com/erp/labelsync/internal/infrastructure/httpclient"
	"github.com/erp/labelsync/internal/infrastructure/logger"
)

func main() {
	var (
		configFile string
		storeCode  string
		outDir     string
	)
	flag.StringVar(&configFile, "config", "", "Path to config file (default: config.toml in . or /app)")
	flag.StringVar(&storeCode, "store", "", "Store code the documents belong to (required)")
	flag.StringVar(&outDir, "out", "dump", "Output directory")
	flag.Parse()

	names := flag.Args()
	if storeCode == "" || len(names) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: docdump -store <code> [-out dir] <document>...")
		os.Exit(2)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: logger.DefaultTimeFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dump(ctx, cfg, log, storeCode, outDir, names); err != nil {
		log.Error("docdump failed", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func dump(ctx context.Context, cfg *config.Config, log *zap.Logger, storeCode, outDir string, names []string) error {
	stores, err := cfg.DomainStores()
	if err != nil {
		return err
	}
	var store integration.Store
	for _, s := range stores {
		if s.Code == storeCode {
			store = s
		}
	}
	if store.Code == "" {
		return fmt.Errorf("store %s is not configured", storeCode)
	}

	hc := httpclient.New(httpclient.Config{
		Timeout:            cfg.Retry.Timeout,
		InsecureSkipVerify: cfg.Retry.InsecureSkipVerify,
		Retry:              httpclient.RetryPolicy{Attempts: cfg.Retry.Attempts, Wait: cfg.Retry.Wait},
	}, httpclient.WithLogger(log))
	var tokens httpclient.TokenSource = httpclient.StaticToken(cfg.Feed.ClientSecret)
	if cfg.Feed.TokenURL != "" {
		tokens = httpclient.NewClientCredentialsSource(hc, cfg.Feed.TokenURL, cfg.Feed.ClientID, cfg.Feed.ClientSecret, cfg.Feed.TokenTTL)
	}
	client, err := feed.NewClient(feed.Config{
		BaseURL:       cfg.Feed.BaseURL,
		APIKey:        cfg.Feed.APIKey,
		ChannelID:     cfg.Feed.ChannelID,
		CountryCode:   cfg.Feed.CountryCode,
		Language:      cfg.Feed.Language,
		DownloadDelay: cfg.Feed.DownloadDelay,
	}, hc, tokens, log)
	if err != nil {
		return err
	}

	return dumpDocuments(ctx, client, feed.GzipJSONDecoder{}, archive.NewLocalArchive(outDir), store, names, log)
}

// dumpDocuments writes each named document as {out}/{store}/{name without .json.gz}.json.
// A failing document is logged and the rest are still written.
func dumpDocuments(ctx context.Context, source integration.DocumentFeed, decoder integration.Decoder, out integration.Archive, store integration.Store, names []string, log *zap.Logger) error {
	var errs []error
	for _, name := range names {
		ref := integration.DocumentRef{Name: name}
		ref.FileType = ref.NameFileType()

		data, err := source.Download(ctx, store, ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			log.Error("Download failed", zap.String("document", name), zap.Error(err))
			continue
		}
		payload, err := decoder.Decode(ref, data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			log.Error("Decode failed", zap.String("document", name), zap.Error(err))
			continue
		}
		id := strings.TrimSuffix(name, ".json.gz") + ".json"
		if err := out.Save(ctx, store.Code, id, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.Info("Document written", zap.String("document", name), zap.String("file", id))
	}
	return errors.Join(errs...)
}
