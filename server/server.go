// Package server exposes the pool operator over HTTP: member registration and
// lookup, challenge distribution, contribution intake, mining-event queries,
// the on-demand balance commit path and the chain webhook.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/regolith-labs/ore-pool-sub000/pool"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server is the HTTP edge over one Operator.
type Server struct {
	op           *pool.Operator
	webhookToken string
	limiters     *limiterRegistry
	log          log15.Logger
}

// New builds the edge. webhookToken guards /webhook/mine-event; the webhook
// sender must present it verbatim in the Authorization header.
func New(op *pool.Operator, webhookToken string) *Server {
	return &Server{
		op:           op,
		webhookToken: webhookToken,
		limiters:     newLimiterRegistry(),
		log:          log15.New("module", "server"),
	}
}

// Handler assembles the route table with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/address", s.handleAddress).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/member/{authority}", s.handleMember).Methods(http.MethodGet)
	r.HandleFunc("/challenge/{authority}", s.handleChallenge).Methods(http.MethodGet)
	r.HandleFunc("/contribute", s.handleContribute).Methods(http.MethodPost)
	r.HandleFunc("/event/{authority}", s.handleEvent).Methods(http.MethodGet)
	r.HandleFunc("/commit-balance", s.handleCommitBalance).Methods(http.MethodPost)
	r.HandleFunc("/webhook/mine-event", s.handleWebhook).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Accept", "Content-Type"},
	})
	return s.withRequestLog(c.Handler(r))
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return ctx.Err()
}
