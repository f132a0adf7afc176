// Package api exposes the lineage, composition, compliance and bottling
// operations over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/h2-custody/internal/bottling"
	"github.com/sells-group/h2-custody/internal/compliance"
	"github.com/sells-group/h2-custody/internal/composition"
	"github.com/sells-group/h2-custody/internal/config"
	"github.com/sells-group/h2-custody/internal/provenance"
	"github.com/sells-group/h2-custody/internal/store"
)

// Services are the operations served by the API.
type Services struct {
	Provenance  *provenance.Service
	Composition *composition.Aggregator
	Compliance  *compliance.Evaluator
	Bottling    *bottling.Service
	Ping        func(ctx context.Context) error
}

// NewServices wires every service on top of one store.
func NewServices(st store.Store, cfg *config.Config) *Services {
	prov := provenance.NewService(st,
		provenance.WithMaxDepth(cfg.Graph.MaxDepth),
		provenance.WithMaxNodes(cfg.Graph.MaxNodes),
	)
	return &Services{
		Provenance:  prov,
		Composition: composition.NewAggregator(st),
		Compliance:  compliance.NewEvaluator(prov, st, compliance.WithAdditionalityMonths(cfg.Compliance.AdditionalityMonths)),
		Bottling:    bottling.NewService(st, st, nil),
		Ping:        st.Ping,
	}
}

// Server is the HTTP surface.
type Server struct {
	svc *Services
	cfg config.ServerConfig
}

// NewServer creates a Server.
func NewServer(svc *Services, cfg config.ServerConfig) *Server {
	return &Server{svc: svc, cfg: cfg}
}

// Router returns the chi router with middleware and routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.cfg.RateLimit > 0 {
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)))
	}

	r.Get("/health", s.health)
	r.Route("/process-steps/{id}", func(r chi.Router) {
		r.Get("/graph", s.graph)
		r.Get("/provenance", s.provenance)
		r.Get("/composition", s.composition)
		r.Get("/red-compliance", s.redCompliance)
	})
	r.Post("/bottlings", s.bottle)
	return r
}

// rateLimit rejects requests with 429 once the shared token bucket is empty.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
