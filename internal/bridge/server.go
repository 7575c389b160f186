package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentsnap/internal/metrics"
)

// Router mounts the bridge endpoints: /ws for peers, /healthz and /metrics.
func Router(h *Hub) http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", h.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "peers": h.Peers()})
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

// Server runs the bridge on an address.
type Server struct {
	Addr string
	Hub  *Hub

	srv *http.Server
}

// Serve listens on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           Router(s.Hub),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("bridge listening")
		errc <- s.srv.Serve(ln)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ListenAndServe listens on s.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
