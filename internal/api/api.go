package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"capitalfriends/pkg/capfriends"
)

// CommentaryDefaults fill in the model settings a commentary request omits.
type CommentaryDefaults struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Option customizes the router.
type Option func(*handler)

// WithCommentaryDefaults sets the server-side AI settings.
func WithCommentaryDefaults(d CommentaryDefaults) Option {
	return func(h *handler) {
		h.commentary = d
	}
}

// NewRouter builds the HTTP API router.
func NewRouter(core *capfriends.Core, opts ...Option) http.Handler {
	logger := slog.Default()
	if core != nil {
		logger = core.Logger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(requestLogger(logger))
	r.Use(panicRecoverer(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	h := &handler{core: core}
	for _, opt := range opts {
		opt(h)
	}

	r.Get("/api/health", h.health)

	r.Route("/api/portfolios", func(r chi.Router) {
		r.Get("/", h.listPortfolios)
		r.Post("/", h.createPortfolio)
		r.Route("/{portfolioID}", func(r chi.Router) {
			r.Get("/", h.getPortfolio)
			r.Put("/", h.updatePortfolio)
			r.Get("/holdings", h.getHoldings)
			r.Get("/transactions", h.listTransactions)
			r.Get("/plan", h.getPlan)
			r.Post("/plan", h.getPlan)
			r.Post("/commentary", h.planCommentary)
			r.Get("/targets", h.getTargets)
			r.Put("/targets/{fundCode}", h.setTarget)
		})
	})

	// Ledger
	r.Post("/api/transactions", h.recordTransaction)
	r.Get("/api/transactions/{id}", h.getTransaction)
	r.Patch("/api/transactions/{id}", h.amendTransaction)
	r.Delete("/api/transactions/{id}", h.retractTransaction)

	// Signals
	r.Get("/api/signals", h.getSignals)
	r.Post("/api/signals", h.getSignals)

	// Fund reference and prices
	r.Get("/api/funds", h.listFunds)
	r.Get("/api/funds/{fundCode}", h.getFund)
	r.Put("/api/funds/{fundCode}", h.upsertFund)
	r.Post("/api/prices", h.recordPrice)
	r.Get("/api/prices/{fundCode}", h.priceHistory)

	r.Get("/api/operation-logs", h.getOperationLogs)
	r.Get("/api/storage", h.getStorageInfo)

	return r
}

type handler struct {
	core       *capfriends.Core
	commentary CommentaryDefaults
}
