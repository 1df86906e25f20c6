// Package api serves the checkout, payment webhook and owner self-service
// endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/billing"
	"github.com/sells-group/careaudit-cli/internal/metrics"
	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/store"
	"github.com/sells-group/careaudit-cli/internal/tier"
	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

// maxWebhookBody caps the webhook payload read from the request.
const maxWebhookBody = 65536

// Billing is the subset of the billing synchronizer the server calls.
type Billing interface {
	CreateCheckout(ctx context.Context, facilityID string, t model.Tier) (*stripe.CheckoutSession, error)
	HandleEvent(ctx context.Context, ev *stripe.Event) error
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Owners is the store subset behind owner self-service.
type Owners interface {
	FacilityByToken(ctx context.Context, token string) (*model.Facility, error)
	UpdateEnhancements(ctx context.Context, facilityID string, e store.Enhancements) error
}

// Options configures a Server.
type Options struct {
	Billing Billing
	Store   Pinger
	// Owners enables the onboarding and facility response endpoints.
	Owners         Owners
	WebhookSecret  string
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	opts Options
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	if reg := s.opts.Metrics.Registry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Post("/checkout", s.handleCheckout)
		if s.opts.Owners != nil {
			r.Get("/onboard/{token}", s.handleGetOnboard)
			r.Post("/onboard/{token}", s.handleOnboard)
			r.Get("/facility-response/{token}", s.handleGetResponse)
			r.Post("/facility-response/{token}", s.handleResponse)
		}
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store != nil {
		if err := s.opts.Store.Ping(r.Context()); err != nil {
			zap.L().Warn("api: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkoutRequest struct {
	FacilityID string `json:"facility_id"`
	Tier       string `json:"tier"`
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FacilityID == "" {
		writeError(w, http.StatusBadRequest, "facility_id is required")
		return
	}
	t, ok := model.ParseTier(req.Tier)
	if !ok || t == model.TierNone {
		writeError(w, http.StatusBadRequest, "unknown tier")
		return
	}

	session, err := s.opts.Billing.CreateCheckout(r.Context(), req.FacilityID, t)
	if err != nil {
		status, msg := checkoutStatus(err)
		if status == http.StatusInternalServerError {
			zap.L().Error("api: create checkout failed",
				zap.String("facility_id", req.FacilityID),
				zap.String("tier", string(t)),
				zap.Error(err),
			)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{ID: session.ID, URL: session.URL})
}

// checkoutStatus maps a checkout error to an HTTP status and a message safe
// to show the caller.
func checkoutStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "facility not found"
	case errors.Is(err, tier.ErrNoInspectionData):
		return http.StatusBadRequest, "no inspection data is available for this facility yet"
	case errors.Is(err, tier.ErrOverViolationCeiling):
		return http.StatusBadRequest, "this facility has more than 3 violations and is not eligible for this tier"
	case errors.Is(err, tier.ErrResponseOnlyRequiresViolations):
		return http.StatusBadRequest, "facility response is only available to facilities with more than 3 violations"
	case errors.Is(err, tier.ErrUnknownTier):
		return http.StatusBadRequest, "unknown tier"
	default:
		return http.StatusInternalServerError, "checkout could not be created"
	}
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "read body")
		return
	}
	ev, err := stripe.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), s.opts.WebhookSecret)
	if err != nil {
		zap.L().Warn("api: webhook rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	err = s.opts.Billing.HandleEvent(r.Context(), ev)
	s.opts.Metrics.ObserveWebhook(ev.Type, err)
	if err != nil {
		var syncErr *billing.SyncError
		zap.L().Error("api: webhook handling failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Bool("sync_error", errors.As(err, &syncErr)),
			zap.Error(err),
		)
		// A non-2xx response makes the processor redeliver the event.
		writeError(w, http.StatusInternalServerError, "event not processed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
