package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router standard library http.ServeMux behind a thin registration wrapper.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes wires the full API surface. Everything except /health goes
// through the auth middleware; the websocket endpoint authenticates via its
// token query parameter through the same middleware.
func (r *Router) RegisterRoutes(
	auth *AuthMiddleware,
	system *SystemHandler,
	sales *SalesHandler,
	installations *InstallationsHandler,
	search *SearchHandler,
	notifications *NotificationsHandler,
	docs *DocsHandler,
	hub *LiveHub,
) {
	r.mux.HandleFunc("/health", system.Health)

	r.Handle("/kpi/summary", auth.Wrap(http.HandlerFunc(system.KPISummary)))

	r.Handle("/sales/", auth.Wrap(sales))

	r.Handle("/installations", auth.Wrap(installations))
	r.Handle("/installations/", auth.Wrap(installations))
	r.Handle("/technicians", auth.Wrap(installations))

	r.Handle("/search/", auth.Wrap(search))

	r.Handle("/notifications", auth.Wrap(notifications))
	r.Handle("/notifications/", auth.Wrap(notifications))

	r.Handle("/docs/", auth.Wrap(docs))

	r.Handle("/ws/live", auth.Wrap(http.HandlerFunc(hub.ServeLive)))
}
