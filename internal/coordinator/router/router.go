// Package router wires the coordinator API routes and the middleware chain:
// request-id propagation, metrics, API key auth, and per-key rate limiting.
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/coordinator/handler"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/metrics"
)

// Deps carries the router's collaborators. Validator, Limiter, Metrics, and
// Health may be nil; the corresponding middleware or routes are skipped.
type Deps struct {
	Handler   *handler.Handler
	Validator *apikey.Validator
	Limiter   *ratelimit.Limiter
	Metrics   *metrics.Metrics
	Health    *health.Checker
}

// New builds the coordinator's HTTP handler. Health endpoints bypass auth
// and rate limiting; everything under /api/v1 runs the full chain.
func New(deps Deps) http.Handler {
	api := http.NewServeMux()
	h := deps.Handler

	api.HandleFunc("POST /api/v1/repositories", h.UpsertRepository)
	api.HandleFunc("GET /api/v1/repositories", h.ListRepositories)
	api.HandleFunc("GET /api/v1/repositories/{name}", h.GetRepository)
	api.HandleFunc("POST /api/v1/repositories/{name}/content", h.IngestContent)
	api.HandleFunc("GET /api/v1/repositories/{name}/content/{id}", h.GetContent)
	api.HandleFunc("POST /api/v1/repositories/{name}/events", h.AddTimelineEvents)
	api.HandleFunc("GET /api/v1/repositories/{name}/events", h.ListTimelineEvents)
	api.HandleFunc("GET /api/v1/repositories/{name}/indexes", h.ListIndexes)
	api.HandleFunc("GET /api/v1/repositories/{name}/indexes/{index}", h.GetIndex)

	api.HandleFunc("POST /api/v1/extractors", h.RecordExtractors)
	api.HandleFunc("GET /api/v1/extractors", h.ListExtractors)
	api.HandleFunc("GET /api/v1/extractors/{name}", h.GetExtractor)
	api.HandleFunc("POST /api/v1/indexes", h.RegisterIndex)
	api.HandleFunc("GET /api/v1/attributes", h.QueryAttributes)
	api.HandleFunc("POST /api/v1/attributes", h.UpsertAttributes)
	api.HandleFunc("POST /api/v1/chunks", h.CreateChunks)
	api.HandleFunc("GET /api/v1/chunks/{id}", h.GetChunk)

	api.HandleFunc("GET /api/v1/work", h.ListUnallocatedWork)
	api.HandleFunc("GET /api/v1/work/{id}", h.GetWork)
	api.HandleFunc("POST /api/v1/work/assignments", h.AssignWork)
	api.HandleFunc("POST /api/v1/work/{id}/state", h.TransitionWork)
	api.HandleFunc("GET /api/v1/executors/{id}/work", h.ListExecutorWork)
	api.HandleFunc("POST /api/v1/executors/{id}/heartbeat", h.Heartbeat)
	api.HandleFunc("POST /api/v1/content/{id}/bindings/{binding}/processed", h.MarkContentProcessed)

	api.HandleFunc("POST /api/v1/admin/keys", h.CreateAPIKey)
	api.HandleFunc("GET /api/v1/admin/keys", h.ListAPIKeys)
	api.HandleFunc("POST /api/v1/admin/keys/revoke", h.RevokeAPIKey)

	var chained http.Handler = api
	chained = RateLimitMiddleware(deps.Limiter)(chained)
	chained = AuthMiddleware(deps.Validator)(chained)
	chained = MetricsMiddleware(deps.Metrics)(chained)
	chained = RequestIDMiddleware(chained)

	root := http.NewServeMux()
	root.Handle("/api/v1/", chained)
	if deps.Health != nil {
		root.Handle("GET /health/live", deps.Health.LiveHandler())
		root.Handle("GET /health/ready", deps.Health.ReadyHandler())
	}
	return root
}
