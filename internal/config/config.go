package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Job names accepted by Validate.
const (
	JobExtract    = "extract"
	JobThresholds = "thresholds"
	JobPricing    = "pricing"
	JobImport     = "import"
	JobReview     = "review"
	JobServe      = "serve"
	JobMigrate    = "migrate"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Stripe    StripeConfig    `yaml:"stripe" mapstructure:"stripe"`
	Resend    ResendConfig    `yaml:"resend" mapstructure:"resend"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Blob      BlobConfig      `yaml:"blob" mapstructure:"blob"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	CacheTTL  string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// MaxAttempts bounds retries of transient API failures per extraction.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StripeConfig holds payment processor credentials and tier prices.
type StripeConfig struct {
	SecretKey     string      `yaml:"secret_key" mapstructure:"secret_key"`
	WebhookSecret string      `yaml:"webhook_secret" mapstructure:"webhook_secret"`
	BaseURL       string      `yaml:"base_url" mapstructure:"base_url"`
	SuccessURL    string      `yaml:"success_url" mapstructure:"success_url"`
	CancelURL     string      `yaml:"cancel_url" mapstructure:"cancel_url"`
	Prices        PriceConfig `yaml:"prices" mapstructure:"prices"`
}

// PriceConfig maps each tier to its current price id.
type PriceConfig struct {
	Featured     string `yaml:"featured" mapstructure:"featured"`
	Verified     string `yaml:"verified" mapstructure:"verified"`
	ResponseOnly string `yaml:"response_only" mapstructure:"response_only"`
}

// ResendConfig holds e-mail API settings.
type ResendConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	From    string `yaml:"from" mapstructure:"from"`
	ReplyTo string `yaml:"reply_to" mapstructure:"reply_to"`
}

// NotifyConfig configures owner e-mail content and operator alerts.
type NotifyConfig struct {
	SiteURL string `yaml:"site_url" mapstructure:"site_url"`
	// OpsURLs are shoutrrr service URLs that receive end-of-batch alerts.
	OpsURLs []string `yaml:"ops_urls" mapstructure:"ops_urls"`
}

// BlobConfig configures facility photo storage. An empty bucket disables
// photo cleanup.
type BlobConfig struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
}

// FetchConfig configures inspection document retrieval.
type FetchConfig struct {
	MinInterval      time.Duration   `yaml:"min_interval" mapstructure:"min_interval"`
	Backoff          []time.Duration `yaml:"backoff" mapstructure:"backoff"`
	MinContentLength int             `yaml:"min_content_length" mapstructure:"min_content_length"`
}

// PipelineConfig configures the batch driver.
type PipelineConfig struct {
	FacilityDelay time.Duration `yaml:"facility_delay" mapstructure:"facility_delay"`
}

// PricingConfig configures the grandfathered-rate job.
type PricingConfig struct {
	ReminderMonth int           `yaml:"reminder_month" mapstructure:"reminder_month"`
	MigrateMonth  int           `yaml:"migrate_month" mapstructure:"migrate_month"`
	PriceCacheTTL time.Duration `yaml:"price_cache_ttl" mapstructure:"price_cache_ttl"`
}

// RegistryConfig points at a jurisdictions file. Empty uses the built-in
// registry.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MetricsConfig configures batch metrics push.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAREAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "careaudit.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-6")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("firecrawl.timeout_secs", 90)
	v.SetDefault("resend.base_url", "https://api.resend.com")
	v.SetDefault("resend.from", "CareAudit <noreply@careaudit.org>")
	v.SetDefault("notify.site_url", "https://careaudit.org")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("fetch.min_interval", 1500*time.Millisecond)
	v.SetDefault("fetch.backoff", []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second})
	v.SetDefault("fetch.min_content_length", 100)
	v.SetDefault("pipeline.facility_delay", 3*time.Second)
	v.SetDefault("pricing.reminder_month", 11)
	v.SetDefault("pricing.migrate_month", 12)
	v.SetDefault("pricing.price_cache_ttl", time.Hour)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that everything job needs is configured. It runs before
// any processing so a misconfigured job fails at startup.
func (c *Config) Validate(job string) error {
	var missing []string
	need := func(ok bool, key string) {
		if !ok {
			missing = append(missing, key+" is required")
		}
	}

	switch c.Store.Driver {
	case "postgres":
		need(c.Store.DatabaseURL != "", "store.database_url")
	case "sqlite":
		need(c.Store.SQLitePath != "", "store.sqlite_path")
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	switch job {
	case JobExtract:
		need(c.Anthropic.Key != "", "anthropic.key")
		need(c.Firecrawl.Key != "", "firecrawl.key")
		need(len(c.Fetch.Backoff) > 0, "fetch.backoff")
	case JobThresholds, JobPricing:
		need(c.Stripe.SecretKey != "", "stripe.secret_key")
		c.needPrices(need)
	case JobServe:
		need(c.Stripe.SecretKey != "", "stripe.secret_key")
		need(c.Stripe.WebhookSecret != "", "stripe.webhook_secret")
		c.needPrices(need)
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case JobImport, JobReview, JobMigrate:
	default:
		return eris.Errorf("config: unknown mode %q", job)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s: %s", job, strings.Join(missing, "; "))
	}
	return nil
}

func (c *Config) needPrices(need func(bool, string)) {
	need(c.Stripe.Prices.Featured != "", "stripe.prices.featured")
	need(c.Stripe.Prices.Verified != "", "stripe.prices.verified")
	need(c.Stripe.Prices.ResponseOnly != "", "stripe.prices.response_only")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
