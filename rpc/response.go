package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fruitslash/scorekeeper/crypto"
	"github.com/fruitslash/scorekeeper/executor"
	"github.com/fruitslash/scorekeeper/logger"
	"github.com/fruitslash/scorekeeper/scoreboard"
)

type (
	ErrorResponse struct {
		Message string `json:"message"`
	}

	ResponseWriter struct {
		Log *slog.Logger
	}
)

var errInvalidScore = errors.New("score must be greater than zero")

func (rw *ResponseWriter) logError(ctx context.Context, msg string, err error) {
	if rw.Log != nil {
		rw.Log.WarnContext(ctx, msg, logger.Error(err))
	}
}

func (rw *ResponseWriter) WriteResponse(w http.ResponseWriter, r *http.Request, data any) {
	w.Header().Set(headerContentType, applicationJson)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rw.logError(r.Context(), "failed to encode response data as json", err)
	}
}

/*
WriteErrorResponse maps error to HTTP status: missing identity is 401,
failure of the remote process is 502 and remote timeout is 504.
*/
func (rw *ResponseWriter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var aggErr *executor.AggregateError
	switch {
	case errors.Is(err, crypto.ErrSigningUnavailable):
		rw.ErrorResponse(w, r, http.StatusUnauthorized, err)
	case errors.Is(err, scoreboard.ErrMalformedResponse):
		rw.ErrorResponse(w, r, http.StatusBadGateway, err)
	case errors.Is(err, executor.ErrTimeout):
		rw.ErrorResponse(w, r, http.StatusGatewayTimeout, err)
	case errors.As(err, &aggErr):
		rw.ErrorResponse(w, r, http.StatusBadGateway, err)
	case errors.Is(err, context.Canceled):
		// client went away, nobody is listening
		rw.logError(r.Context(), "request cancelled", err)
	default:
		rw.ErrorResponse(w, r, http.StatusInternalServerError, err)
		rw.logError(r.Context(), "internal error", err)
	}
}

func (rw *ResponseWriter) InvalidParamResponse(w http.ResponseWriter, r *http.Request, name string, err error) {
	rw.ErrorResponse(w, r, http.StatusBadRequest, fmt.Errorf("invalid parameter %q: %w", name, err))
}

func (rw *ResponseWriter) ErrorResponse(w http.ResponseWriter, r *http.Request, code int, err error) {
	w.Header().Set(headerContentType, applicationJson)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()}); err != nil {
		rw.logError(r.Context(), "failed to encode error response as json", err)
	}
}
