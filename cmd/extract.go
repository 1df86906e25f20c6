package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/careaudit-cli/internal/config"
	"github.com/sells-group/careaudit-cli/internal/document"
	"github.com/sells-group/careaudit-cli/internal/escalation"
	"github.com/sells-group/careaudit-cli/internal/extract"
	"github.com/sells-group/careaudit-cli/internal/pipeline"
	"github.com/sells-group/careaudit-cli/pkg/anthropic"
	"github.com/sells-group/careaudit-cli/pkg/firecrawl"
)

var (
	extractState   string
	extractLimit   int
	extractOffset  int
	extractAfter   string
	extractRefresh bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch and extract inspection reports for facilities lacking validated data",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := normalizeState(extractState)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := setup(ctx, config.JobExtract)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.Registry.Get(state); err != nil {
			return err
		}
		if err := e.withBilling(ctx); err != nil {
			return err
		}

		fc := firecrawl.NewClient(cfg.Firecrawl.Key,
			firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL),
			firecrawl.WithHTTPClient(httpClient(time.Duration(cfg.Firecrawl.TimeoutSecs)*time.Second)),
		)
		ai := anthropic.NewClient(cfg.Anthropic.Key)

		p := pipeline.New(pipeline.Deps{
			Store:   e.Store,
			Locator: document.NewResolver(e.Registry),
			Fetcher: document.NewFetcher(fc, document.Options{
				MinInterval:      cfg.Fetch.MinInterval,
				Backoff:          cfg.Fetch.Backoff,
				MinContentLength: cfg.Fetch.MinContentLength,
			}),
			Extractor: extract.New(ai, extract.Config{
				Model:       cfg.Anthropic.Model,
				MaxTokens:   cfg.Anthropic.MaxTokens,
				CacheTTL:    cfg.Anthropic.CacheTTL,
				MaxAttempts: cfg.Anthropic.MaxAttempts,
			}),
			Tiers:       e.Tiers,
			Escalations: escalation.New(e.Store),
			Alerter:     e.Alerter,
			Metrics:     e.Metrics,
		})

		_, err = p.Run(ctx, pipeline.Options{
			Jurisdiction:  state,
			Limit:         extractLimit,
			Offset:        extractOffset,
			After:         extractAfter,
			Refresh:       extractRefresh,
			FacilityDelay: cfg.Pipeline.FacilityDelay,
		})
		e.pushMetrics(cmd.Context(), pipeline.JobExtract, state)
		return err
	},
}

func init() {
	addStateFlag(extractCmd, &extractState)
	extractCmd.Flags().IntVar(&extractLimit, "limit", 0, "max facilities to process (0 = no limit)")
	extractCmd.Flags().IntVar(&extractOffset, "offset", 0, "skip this many selected facilities")
	extractCmd.Flags().StringVar(&extractAfter, "after", "", "resume after this facility id")
	extractCmd.Flags().BoolVar(&extractRefresh, "refresh", false, "re-process facilities that already have validated data")
	rootCmd.AddCommand(extractCmd)
}
