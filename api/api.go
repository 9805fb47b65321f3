// Package api exposes the courier engine and webhook dispatcher over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/courier/cron"
	"github.com/xraph/courier/engine"
	"github.com/xraph/courier/webhook"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// API wires the HTTP handlers for jobs, subscriptions, events,
// deliveries and, with WithScheduler, recurring schedules.
type API struct {
	eng        *engine.Engine
	dispatcher *webhook.Dispatcher
	scheduler  *cron.Scheduler
	logger     *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithScheduler exposes s under /v1/schedules.
func WithScheduler(s *cron.Scheduler) Option {
	return func(a *API) { a.scheduler = s }
}

// New creates an API over an engine and a webhook dispatcher.
func New(eng *engine.Engine, dispatcher *webhook.Dispatcher, opts ...Option) *API {
	a := &API{eng: eng, dispatcher: dispatcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(a.logRequests)
	r.Use(chimw.Recoverer)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all courier routes into r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		a.registerJobRoutes(r)
		a.registerSubscriptionRoutes(r)
		a.registerEventRoutes(r)
		a.registerScheduleRoutes(r)
		r.Get("/stats", a.stats)
	})
}

func (a *API) registerJobRoutes(r chi.Router) {
	r.Post("/jobs", a.submitJob)
	r.Get("/jobs", a.listJobs)
	r.Get("/jobs/{id}", a.getJob)
	r.Get("/jobs/{id}/result", a.getJobResult)
}

func (a *API) registerSubscriptionRoutes(r chi.Router) {
	r.Get("/subscriptions", a.listSubscriptions)
	r.Get("/subscriptions/{id}", a.getSubscription)
	r.Put("/subscriptions/{id}", a.putSubscription)
	r.Delete("/subscriptions/{id}", a.deleteSubscription)
	r.Get("/subscriptions/{id}/stats", a.subscriptionStats)
}

func (a *API) registerEventRoutes(r chi.Router) {
	r.Post("/events/{event}", a.triggerEvent)
	r.Get("/deliveries", a.listDeliveries)
	r.Get("/deliveries/stats", a.deliveryStats)
	r.Get("/deliveries/{id}", a.getDelivery)
}

// logRequests logs one line per request.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
