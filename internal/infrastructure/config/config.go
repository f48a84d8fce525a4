package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/erp/labelsync/internal/domain/integration"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Timezone  string `validate:"required"`
	Keymap    KeymapConfig
	Feed      FeedConfig
	Platform  PlatformConfig
	Delivery  DeliveryConfig
	State     StateConfig
	Archive   ArchiveConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Retry     RetryConfig
	Stores    []StoreConfig `validate:"dive"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"omitempty,oneof=debug info warn warning error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// KeymapConfig points at the field and type key map files
type KeymapConfig struct {
	Dir string `validate:"required"`
}

// FeedConfig holds the vendor document feed settings
type FeedConfig struct {
	BaseURL       string `validate:"omitempty,url"`
	TokenURL      string `validate:"omitempty,url"`
	ClientID      string
	ClientSecret  string
	APIKey        string
	ChannelID     string
	CountryCode   string
	Language      string
	DownloadDelay time.Duration
	TokenTTL      time.Duration
}

// PlatformConfig holds the label platform settings
type PlatformConfig struct {
	ArticlesURL       string `validate:"omitempty,url"`
	IntegrationURL    string `validate:"omitempty,url"`
	LoginURL          string `validate:"omitempty,url"`
	Username          string
	Password          string
	CustomerCode      string
	ClientID          string
	ClientSecret      string
	ListPageSize      int `validate:"gte=1"`
	LookupConcurrency int `validate:"gte=1"`
	TokenTTL          time.Duration
}

// DeliveryConfig holds batch sender settings
type DeliveryConfig struct {
	ChunkSize int `validate:"gte=1"`
}

// StateConfig selects the ledger and pending queue backend
type StateConfig struct {
	// DSN is empty or file:// for flat files, or memory://, sqlite:, postgres://, redis://
	DSN             string
	LedgerDir       string
	PendingDir      string
	KeyPrefix       string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// ArchiveConfig selects where decoded reference copies are kept
type ArchiveConfig struct {
	Backend string `validate:"oneof=local s3 none"`
	Dir     string
	S3      S3Config
}

// S3Config holds S3 archive settings
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// SchedulerConfig holds the run loop settings
type SchedulerConfig struct {
	Enabled         bool
	Interval        time.Duration `validate:"gt=0"`
	RunTimeout      time.Duration
	PromoSwitchHour int `validate:"gte=0,lte=23"`
	PromoSwitch     bool
}

// HTTPConfig holds the ops HTTP server settings
type HTTPConfig struct {
	Enabled      bool
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry metrics settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
}

// RetryConfig holds the request client retry policy
type RetryConfig struct {
	Attempts           int           `validate:"gte=1"`
	Wait               time.Duration `validate:"gte=0"`
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// StoreConfig is one [[stores]] entry
type StoreConfig struct {
	Code          string   `mapstructure:"code" validate:"required"`
	VendorStoreID string   `mapstructure:"vendor_store_id" validate:"required"`
	DepartmentID  string   `mapstructure:"department_id" validate:"required"`
	Source        string   `mapstructure:"source" validate:"required"`
	Kinds         []string `mapstructure:"kinds"`
}

// ToStore converts the entry into the domain store it describes
func (s StoreConfig) ToStore() (integration.Store, error) {
	tags := s.Kinds
	if len(tags) == 0 {
		tags = []string{string(integration.DocumentKindItem), string(integration.DocumentKindPromotion)}
	}
	kinds, err := integration.ParseDocumentKinds(tags)
	if err != nil {
		return integration.Store{}, fmt.Errorf("store %s: %w", s.Code, err)
	}
	store := integration.Store{
		Code:          s.Code,
		VendorStoreID: s.VendorStoreID,
		DepartmentID:  s.DepartmentID,
		Source:        s.Source,
		Kinds:         kinds,
	}
	if err := store.Validate(); err != nil {
		return integration.Store{}, fmt.Errorf("store %s: %w", s.Code, err)
	}
	return store, nil
}

// Location loads the configured time zone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DomainStores converts every configured store
func (c *Config) DomainStores() ([]integration.Store, error) {
	stores := make([]integration.Store, 0, len(c.Stores))
	for _, sc := range c.Stores {
		s, err := sc.ToStore()
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, nil
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with LABELSYNC_ prefix (e.g., LABELSYNC_FEED_API_KEY)
// 2. configFile, or config.toml found in . or /app when configFile is empty
// 3. Built-in defaults
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars only
	}

	v.SetEnvPrefix("LABELSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Timezone: v.GetString("timezone"),
		Keymap: KeymapConfig{
			Dir: v.GetString("keymap.dir"),
		},
		Feed: FeedConfig{
			BaseURL:       v.GetString("feed.base_url"),
			TokenURL:      v.GetString("feed.token_url"),
			ClientID:      v.GetString("feed.client_id"),
			ClientSecret:  v.GetString("feed.client_secret"),
			APIKey:        v.GetString("feed.api_key"),
			ChannelID:     v.GetString("feed.channel_id"),
			CountryCode:   v.GetString("feed.country_code"),
			Language:      v.GetString("feed.language"),
			DownloadDelay: v.GetDuration("feed.download_delay"),
			TokenTTL:      v.GetDuration("feed.token_ttl"),
		},
		Platform: PlatformConfig{
			ArticlesURL:       v.GetString("platform.articles_url"),
			IntegrationURL:    v.GetString("platform.integration_url"),
			LoginURL:          v.GetString("platform.login_url"),
			Username:          v.GetString("platform.username"),
			Password:          v.GetString("platform.password"),
			CustomerCode:      v.GetString("platform.customer_code"),
			ClientID:          v.GetString("platform.client_id"),
			ClientSecret:      v.GetString("platform.client_secret"),
			ListPageSize:      v.GetInt("platform.list_page_size"),
			LookupConcurrency: v.GetInt("platform.lookup_concurrency"),
			TokenTTL:          v.GetDuration("platform.token_ttl"),
		},
		Delivery: DeliveryConfig{
			ChunkSize: v.GetInt("delivery.chunk_size"),
		},
		State: StateConfig{
			DSN:             v.GetString("state.dsn"),
			LedgerDir:       v.GetString("state.ledger_dir"),
			PendingDir:      v.GetString("state.pending_dir"),
			KeyPrefix:       v.GetString("state.key_prefix"),
			MaxOpenConns:    v.GetInt("state.max_open_conns"),
			MaxIdleConns:    v.GetInt("state.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("state.conn_max_lifetime"),
			LogLevel:        v.GetString("state.log_level"),
		},
		Archive: ArchiveConfig{
			Backend: v.GetString("archive.backend"),
			Dir:     v.GetString("archive.dir"),
			S3: S3Config{
				Bucket:          v.GetString("archive.s3.bucket"),
				Region:          v.GetString("archive.s3.region"),
				Endpoint:        v.GetString("archive.s3.endpoint"),
				AccessKeyID:     v.GetString("archive.s3.access_key_id"),
				SecretAccessKey: v.GetString("archive.s3.secret_access_key"),
				Prefix:          v.GetString("archive.s3.prefix"),
				UsePathStyle:    v.GetBool("archive.s3.use_path_style"),
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:         v.GetBool("scheduler.enabled"),
			Interval:        v.GetDuration("scheduler.interval"),
			RunTimeout:      v.GetDuration("scheduler.run_timeout"),
			PromoSwitchHour: v.GetInt("scheduler.promo_switch_hour"),
			PromoSwitch:     v.GetBool("scheduler.promo_switch"),
		},
		HTTP: HTTPConfig{
			Enabled:      v.GetBool("http.enabled"),
			Addr:         v.GetString("http.addr"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
		Retry: RetryConfig{
			Attempts:           v.GetInt("retry.attempts"),
			Wait:               v.GetDuration("retry.wait"),
			Timeout:            v.GetDuration("retry.timeout"),
			InsecureSkipVerify: v.GetBool("retry.insecure_skip_verify"),
		},
	}

	if err := v.UnmarshalKey("stores", &cfg.Stores); err != nil {
		return nil, fmt.Errorf("error decoding stores: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "labelsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Mexico_City"
	}
	if cfg.Keymap.Dir == "" {
		cfg.Keymap.Dir = "keymap"
	}
	if cfg.Feed.DownloadDelay == 0 {
		cfg.Feed.DownloadDelay = time.Second
	}
	if cfg.Feed.TokenTTL == 0 {
		cfg.Feed.TokenTTL = 30 * time.Minute
	}
	if cfg.Platform.ListPageSize == 0 {
		cfg.Platform.ListPageSize = 1000
	}
	if cfg.Platform.LookupConcurrency == 0 {
		cfg.Platform.LookupConcurrency = 4
	}
	if cfg.Platform.TokenTTL == 0 {
		cfg.Platform.TokenTTL = 30 * time.Minute
	}
	if cfg.Delivery.ChunkSize == 0 {
		cfg.Delivery.ChunkSize = 1000
	}
	if cfg.State.LedgerDir == "" {
		cfg.State.LedgerDir = "historical_files"
	}
	if cfg.State.PendingDir == "" {
		cfg.State.PendingDir = "current_files"
	}
	if cfg.State.KeyPrefix == "" {
		cfg.State.KeyPrefix = "labelsync:"
	}
	if cfg.State.LogLevel == "" {
		cfg.State.LogLevel = "warn"
	}
	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = "local"
	}
	if cfg.Archive.Dir == "" {
		cfg.Archive.Dir = "current_files"
	}
	if cfg.Archive.S3.Region == "" {
		cfg.Archive.S3.Region = "us-east-1"
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 15 * time.Minute
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 30 * time.Minute
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.Wait == 0 {
		cfg.Retry.Wait = 5 * time.Second
	}
	if cfg.Retry.Timeout == 0 {
		cfg.Retry.Timeout = 60 * time.Second
	}
}

var structValidator = validator.New()

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Stores))
	for _, s := range c.Stores {
		if _, dup := seen[s.Code]; dup {
			return fmt.Errorf("stores: duplicate store code %q", s.Code)
		}
		seen[s.Code] = struct{}{}
		if _, err := s.ToStore(); err != nil {
			return fmt.Errorf("stores: %w", err)
		}
	}

	if c.Archive.Backend == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required when archive.backend is s3")
	}
	if c.State.MaxIdleConns > 0 && c.State.MaxOpenConns > 0 && c.State.MaxIdleConns > c.State.MaxOpenConns {
		return fmt.Errorf("state.max_idle_conns (%d) cannot exceed state.max_open_conns (%d)",
			c.State.MaxIdleConns, c.State.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Feed.APIKey == "" {
			return fmt.Errorf("feed.api_key is required in production")
		}
		if c.Platform.ClientSecret == "" {
			return fmt.Errorf("platform.client_secret is required in production")
		}
		if c.Retry.InsecureSkipVerify {
			return fmt.Errorf("retry.insecure_skip_verify must be false in production")
		}
		if strings.HasPrefix(c.State.DSN, "memory") {
			return fmt.Errorf("state.dsn cannot use the memory backend in production")
		}
	}
	return nil
}
