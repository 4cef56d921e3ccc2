package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/audit"
	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/internal/document"
	"github.com/brightpath/stagegate/internal/observability"
	"github.com/brightpath/stagegate/internal/progression"
	"github.com/brightpath/stagegate/internal/realtime"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Engine    *progression.Engine
	Documents *document.Service
	AuditLog  audit.Store
	Hub       *realtime.Hub
	Readiness observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// API middleware; the websocket route skips the handler timeout so
// connections can outlive it.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Config.Observability.Tracing.Enabled {
		r.Use(observability.TracingMiddleware)
	}

	// Public routes.
	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Readiness))
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	h := &handlers{
		engine:    deps.Engine,
		documents: deps.Documents,
		auditLog:  deps.AuditLog,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(ActorContext)

		// Long-lived socket: no handler timeout, no response wrapping that
		// would break the connection hijack.
		r.Get("/ws", realtime.Handler(deps.Hub, deps.Config.Realtime, deps.Logger))

		r.Group(func(r chi.Router) {
			r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
			r.Use(RequestLogging(deps.Logger))
			if deps.Metrics != nil {
				r.Use(deps.Metrics.MetricsMiddleware)
			}

			r.Post("/participants", h.startProgress)
			r.Get("/participants/{progressId}", h.getProgress)
			r.Get("/participants/{progressId}/evaluation", h.getEvaluation)
			r.Post("/participants/{progressId}/advance", h.advance)

			r.Post("/documents", h.uploadDocument)
			r.Get("/documents", h.listDocuments)
			r.Get("/documents/{documentId}", h.getDocument)
			r.Post("/documents/{documentId}/decision", h.decideDocument)

			r.Get("/audit/{table}/{recordId}", h.listAuditTrail)
		})
	})

	return r
}
