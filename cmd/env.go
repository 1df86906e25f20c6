package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/billing"
	"github.com/sells-group/careaudit-cli/internal/blob"
	"github.com/sells-group/careaudit-cli/internal/metrics"
	"github.com/sells-group/careaudit-cli/internal/notify"
	"github.com/sells-group/careaudit-cli/internal/registry"
	"github.com/sells-group/careaudit-cli/internal/store"
	"github.com/sells-group/careaudit-cli/internal/tier"
	"github.com/sells-group/careaudit-cli/pkg/resend"
	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

// env holds the clients shared by the job commands. Fields a job does not
// need stay nil.
type env struct {
	Store    store.Store
	Registry *registry.Registry
	Notifier notify.Notifier
	Billing  *billing.Synchronizer
	Tiers    *tier.Engine
	Alerter  *notify.OpsAlerter
	Metrics  *metrics.Metrics
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// setup validates the configuration for job and opens the store. Any error
// here happens before processing starts and is fatal.
func setup(ctx context.Context, job string) (*env, error) {
	if err := cfg.Validate(job); err != nil {
		return nil, err
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "ping store")
	}

	m, err := metrics.New()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	alerter, err := notify.NewOpsAlerter(cfg.Notify.OpsURLs, 10*time.Second)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &env{Store: st, Registry: reg, Alerter: alerter, Metrics: m}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initNotifier returns the owner e-mail dispatcher, or nil when no Resend
// key is configured.
func initNotifier() (notify.Notifier, error) {
	if cfg.Resend.Key == "" {
		zap.L().Warn("resend.key not set, owner notifications disabled")
		return nil, nil
	}
	renderer, err := notify.NewRenderer(cfg.Notify.SiteURL)
	if err != nil {
		return nil, err
	}
	client := resend.NewClient(cfg.Resend.Key, resend.WithBaseURL(cfg.Resend.BaseURL))
	return notify.NewDispatcher(client, renderer, cfg.Resend.From, cfg.Resend.ReplyTo), nil
}

// initPhotos returns the photo store, or nil when no bucket is configured.
func initPhotos(ctx context.Context) (blob.Store, error) {
	if cfg.Blob.Bucket == "" {
		return nil, nil
	}
	s3, err := blob.NewS3(ctx, blob.Config{
		Bucket:    cfg.Blob.Bucket,
		Region:    cfg.Blob.Region,
		Endpoint:  cfg.Blob.Endpoint,
		PathStyle: cfg.Blob.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return s3, nil
}

// withBilling adds the notifier, billing synchronizer and tier engine.
// Without a Stripe key the synchronizer stays nil and the engine records
// downgrades with tier.ErrBillingDisabled.
func (e *env) withBilling(ctx context.Context) error {
	n, err := initNotifier()
	if err != nil {
		return err
	}
	photos, err := initPhotos(ctx)
	if err != nil {
		return err
	}

	e.Notifier = n
	if cfg.Stripe.SecretKey == "" {
		zap.L().Warn("stripe.secret_key not set, tier changes will not reach billing")
		e.Tiers = tier.NewEngine(e.Store, nil, n)
		return nil
	}

	sc := stripe.NewClient(cfg.Stripe.SecretKey, stripe.NewBackends(cfg.Stripe.BaseURL))
	e.Billing = billing.New(e.Store, sc, billing.Options{
		Prices: billing.Prices{
			Featured:     cfg.Stripe.Prices.Featured,
			Verified:     cfg.Stripe.Prices.Verified,
			ResponseOnly: cfg.Stripe.Prices.ResponseOnly,
		},
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
		Notifier:      n,
		Photos:        photos,
		PriceCache:    billing.NewPriceCache(sc, cfg.Pricing.PriceCacheTTL),
		ReminderMonth: cfg.Pricing.ReminderMonth,
		MigrateMonth:  cfg.Pricing.MigrateMonth,
	})
	e.Tiers = tier.NewEngine(e.Store, e.Billing, n)
	return nil
}

// pushMetrics sends the job's metrics to the Pushgateway when configured.
func (e *env) pushMetrics(ctx context.Context, job, jurisdiction string) {
	if err := e.Metrics.Push(ctx, cfg.Metrics.PushgatewayURL, job, jurisdiction); err != nil {
		zap.L().Warn("metrics push failed", zap.Error(err))
	}
}
