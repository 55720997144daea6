package rpc

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fruitslash/scorekeeper/logger"
)

/*
instrumentHTTP returns http middleware which instruments the incoming handler with two metrics:
  - number of calls: how many times the endpoint has been called;
  - request duration: how long it took to serve the request.
*/
func instrumentHTTP(reg prometheus.Registerer, log *slog.Logger) func(next http.Handler) http.Handler {
	if reg == nil {
		return passthroughMW
	}
	labels := []string{"route", "code"}
	callCnt, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scorekeeper",
		Subsystem: "rest_api",
		Name:      "calls_total",
		Help:      "How many times the endpoint has been called",
	}, labels))
	if err != nil {
		log.Error("creating calls counter", logger.Error(err))
		return passthroughMW
	}
	callDur, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scorekeeper",
		Subsystem: "rest_api",
		Name:      "duration_seconds",
		Help:      "How long it took to serve the request",
		// remote calls with retries make it possible for requests to take minutes
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, labels))
	if err != nil {
		log.Error("creating duration histogram", logger.Error(err))
		return passthroughMW
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			path := "unknown"
			if route := mux.CurrentRoute(req); route != nil {
				if tmpl, err := route.GetPathTemplate(); err != nil {
					log.WarnContext(req.Context(), "reading route path", logger.Error(err))
				} else {
					path = tmpl
				}
			}

			start := time.Now()
			rsp := newStatusResponseWriter(w)
			next.ServeHTTP(rsp, req)

			code := strconv.Itoa(rsp.statusCode)
			callCnt.WithLabelValues(path, code).Inc()
			callDur.WithLabelValues(path, code).Observe(time.Since(start).Seconds())
		})
	}
}

/*
register registers collector "c", when equal collector has been registered
already the existing one is returned.
*/
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

/*
passthroughMW is NOP middleware.
*/
func passthroughMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		next.ServeHTTP(w, req)
	})
}

/*
statusResponseWriter is a http.ResponseWriter wrapper which allows to capture
status code of the response.
*/
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func newStatusResponseWriter(w http.ResponseWriter) *statusResponseWriter {
	return &statusResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (mw *statusResponseWriter) WriteHeader(statusCode int) {
	mw.ResponseWriter.WriteHeader(statusCode)

	if !mw.headerWritten {
		mw.statusCode = statusCode
		mw.headerWritten = true
	}
}

func (mw *statusResponseWriter) Write(b []byte) (int, error) {
	mw.headerWritten = true
	return mw.ResponseWriter.Write(b)
}

func (mw *statusResponseWriter) Unwrap() http.ResponseWriter {
	return mw.ResponseWriter
}
