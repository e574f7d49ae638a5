package http

import (
	"net/http"

	"alertrecon/internal/platform/net/http/bind"
)

// JSONHandler binds the request body into Req, runs fn, and renders the Response
func JSONHandler[Req any](fn func(r *http.Request, req Req) Response) Handler {
	return Handle(func(w http.ResponseWriter, r *http.Request) Response {
		var req Req
		if err := bind.ParseJSON(r, &req); err != nil {
			return Error(err)
		}
		return fn(r, req)
	})
}

// JSONHandlerNoBody runs fn and renders the Response, no body binding
func JSONHandlerNoBody(fn func(r *http.Request) Response) Handler {
	return Handle(func(w http.ResponseWriter, r *http.Request) Response {
		return fn(r)
	})
}
