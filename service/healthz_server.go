package service

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// HealthzServer answers liveness probes while the watch loop is between runs.
type HealthzServer struct {
	ctx    context.Context
	server *http.Server
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Handle)

	h.ctx = ctx
	h.server = &http.Server{
		Addr:    addr,
		Handler: cors.AllowAll().Handler(mux),
	}
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	return h.server.Shutdown(h.ctx)
}

// Handle reports the process alive. Run outcomes are not reflected here; a
// failing suite is a healthy process.
func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Debug("health check", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
