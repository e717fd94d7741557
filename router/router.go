package router

import (
	"encoding/json"
	"net/http"

	viewHandler "aeriegateway/internal/view"
	"aeriegateway/internal/view/service"
	"aeriegateway/middleware"
	"aeriegateway/socket"
)

type Dependencies struct {
	Views      *service.ViewService
	Hub        *socket.Hub
	Auth       *middleware.Authenticator
	Limiter    *middleware.RateLimiter
	Metrics    http.Handler
	CORSOrigin string
	Version    string
}

func Setup(d Dependencies) http.Handler {
	mux := http.NewServeMux()

	protected := func(h http.HandlerFunc) http.Handler {
		return d.Auth.Middleware(d.Limiter.Middleware(h))
	}

	// WebSocket view feed
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, _ := middleware.UsernameFromContext(r.Context())
		socket.ServeWs(d.Hub, w, r, username)
	})
	mux.Handle("GET /ws", d.Auth.Middleware(wsHandler))

	// REST API
	views := viewHandler.NewViewHandler(d.Views)
	mux.Handle("GET /views", protected(views.ListViews))
	mux.Handle("GET /view/latest", protected(views.LatestView))
	mux.Handle("GET /view/{id}", protected(views.GetView))
	mux.Handle("POST /view", protected(views.CreateView))
	mux.Handle("PUT /view/{id}", protected(views.UpdateView))
	mux.Handle("DELETE /view/{id}", protected(views.DeleteView))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": d.Version})
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	return middleware.CORSMiddleware(d.CORSOrigin)(middleware.SecurityHeadersMiddleware(mux))
}
