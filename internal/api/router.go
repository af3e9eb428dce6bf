package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/docchat/internal/api/handlers"
	"github.com/nikhilbhutani/docchat/internal/api/middleware"
	"github.com/nikhilbhutani/docchat/internal/auth"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
)

// Engine answers queries and lists past ones; *rag.Engine implements it.
type Engine interface {
	handlers.Answerer
	handlers.HistoryLister
}

// Deps are the services the HTTP surface is built from. Queue may be nil,
// in which case asynchronous processing is rejected.
type Deps struct {
	Auth           *auth.JWTMiddleware
	Ingester       handlers.Ingester
	Engine         Engine
	Documents      *document.Service
	Queue          handlers.Enqueuer
	LLM            llm.Gateway
	EmbeddingModel string
	Checks         map[string]handlers.Pinger
	Metrics        http.Handler
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{mux: chi.NewRouter(), deps: deps}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	d := rt.deps

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(d.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	fnH := handlers.NewFunctionsHandler(d.Ingester, d.Engine, d.Documents, d.Queue)
	docH := handlers.NewDocumentHandler(d.Documents)
	chatH := handlers.NewChatHandler(d.Engine)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Auth.Authenticate)
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Limit)
		}

		// Callable operations
		r.Route("/functions", func(r chi.Router) {
			r.Post("/processDocument", fnH.ProcessDocument)
			r.Post("/chatQuery", fnH.ChatQuery)
			r.Post("/deleteDocument", fnH.DeleteDocument)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Register)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
		})

		r.Get("/chats", chatH.List)

		if d.LLM != nil {
			llmH := handlers.NewLLMHandler(d.LLM, d.EmbeddingModel)
			r.Get("/models", llmH.Models)
		}
	})

	return r
}
