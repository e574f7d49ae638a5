package http

import (
	"encoding/json"
	"net/http"

	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/platform/logger"
	pnet "alertrecon/internal/platform/net"
)

// Envelope is the standard response wrapper for all JSON endpoints
type Envelope struct {
	Status    int        `json:"status"`
	Data      any        `json:"data,omitempty"`
	Error     *perr.Wire `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// Response is the terminal value a handler produces
type Response struct {
	status int
	data   any
	err    error
}

// OK wraps data in a 200 response
func OK(data any) Response { return Response{status: http.StatusOK, data: data} }

// Created wraps data in a 201 response
func Created(data any) Response { return Response{status: http.StatusCreated, data: data} }

// Accepted wraps data in a 202 response
func Accepted(data any) Response { return Response{status: http.StatusAccepted, data: data} }

// NoContent produces an empty 204 response
func NoContent() Response { return Response{status: http.StatusNoContent} }

// Error produces an error response, status derived from the error code
func Error(err error) Response { return Response{err: err} }

// write renders the response onto w
func (resp Response) write(w http.ResponseWriter, r *http.Request) {
	reqID := pnet.RequestID(r.Context())

	if resp.err != nil {
		status, wire := perr.HTTP(resp.err)
		if status >= http.StatusInternalServerError {
			logger.C(r.Context()).Error().Err(resp.err).Int("status", status).Msg("request failed")
			// do not leak internals on 5xx
			wire.Message = "internal error"
		}
		writeJSON(w, status, Envelope{Status: status, Error: &wire, RequestID: reqID})
		return
	}

	if resp.status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, resp.status, Envelope{Status: resp.status, Data: resp.data, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Handle adapts a Response-returning func into a Handler
func Handle(fn func(w http.ResponseWriter, r *http.Request) Response) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r).write(w, r)
	}
}
