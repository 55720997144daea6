package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	headerContentType = "Content-Type"
	applicationJson   = "application/json"

	DefaultMaxBodySize  int64 = 4 * 1024
	DefaultWriteTimeout       = 2 * time.Minute
)

var allowedCORSHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", headerContentType}

type (
	// Registrar registers new HTTP handlers for given router.
	Registrar interface {
		Register(r *mux.Router)
	}

	// RegistrarFunc type is an adapter to allow the use of ordinary function as Registrar.
	RegistrarFunc func(r *mux.Router)

	ServerConfig struct {
		Addr        string
		MaxBodySize int64
		// Remote calls are retried so handlers may take long time
		// to complete, must be longer than the worst case of the executor.
		WriteTimeout time.Duration
	}
)

/*
NewRESTServer returns HTTP server with handlers of the "registrars" mounted
under "/api/v1" prefix. When "metrics" is not nil request metrics are
collected into it and exposed on "/metrics" path.
*/
func NewRESTServer(cfg ServerConfig, metrics *prometheus.Registry, log *slog.Logger, registrars ...Registrar) *http.Server {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	var reg prometheus.Registerer
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)
	if metrics != nil {
		reg = metrics
		r.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	apiV1Router := r.PathPrefix("/api/v1").Subrouter()
	apiV1Router.Use(handlers.CORS(handlers.AllowedHeaders(allowedCORSHeaders)), instrumentHTTP(reg, log))

	for _, registrar := range registrars {
		registrar.Register(apiV1Router)
	}

	return &http.Server{
		Addr:              cfg.Addr,
		ReadTimeout:       3 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       30 * time.Second,
		Handler:           http.MaxBytesHandler(r, cfg.MaxBodySize),
	}
}

func (f RegistrarFunc) Register(r *mux.Router) {
	f(r)
}
