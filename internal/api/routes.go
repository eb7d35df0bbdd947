package api

import (
	"net/http"

	"audittracker/internal/audit"
	"audittracker/internal/health"
	"audittracker/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AuditService  *audit.Service
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
	CORSOrigins   []string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.AuditService, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Module catalog is public so forms can render before sign-in
	mux.HandleFunc("GET /v1/modules", handler.ListModules)

	// Audit endpoints - auth required
	auth := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/audits", auth(http.HandlerFunc(handler.SubmitAudit)))
	mux.Handle("GET /v1/audits/{jobId}", auth(http.HandlerFunc(handler.GetAudit)))
	mux.Handle("DELETE /v1/audits/{jobId}", auth(http.HandlerFunc(handler.CancelAudit)))
	mux.Handle("POST /v1/audits/{jobId}/track", auth(http.HandlerFunc(handler.TrackAudit)))
	mux.Handle("GET /v1/reports", auth(http.HandlerFunc(handler.ListReports)))
	mux.Handle("GET /v1/reports/{jobId}", auth(http.HandlerFunc(handler.GetReport)))
	mux.Handle("DELETE /v1/reports/{jobId}", auth(http.HandlerFunc(handler.DeleteReport)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware(cfg.CORSOrigins)(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
