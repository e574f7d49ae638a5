// Package api mounts the engine's HTTP surface: status, metrics, manual
// trigger, rematch and runtime knobs
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	perr "alertrecon/internal/platform/errors"
	phttp "alertrecon/internal/platform/net/http"
	engsvc "alertrecon/internal/services/engine/service"
)

// Options for Mount
type Options struct {
	Engine *engsvc.Service
}

// Mount registers all routes on r
func Mount(r phttp.Router, opt Options) {
	eng := opt.Engine

	r.Get("/healthz", phttp.Handle(func(w http.ResponseWriter, r *http.Request) phttp.Response {
		return phttp.OK(map[string]string{"status": "ok"})
	}))

	r.Get("/status", phttp.Handle(func(w http.ResponseWriter, r *http.Request) phttp.Response {
		return phttp.OK(eng.Status())
	}))

	r.Get("/metrics", phttp.Handle(func(w http.ResponseWriter, r *http.Request) phttp.Response {
		recent, _ := strconv.Atoi(r.URL.Query().Get("recent"))
		return phttp.OK(eng.Metrics(recent))
	}))

	r.Post("/trigger", phttp.Handle(func(w http.ResponseWriter, r *http.Request) phttp.Response {
		res := eng.TriggerCycle()
		if !res.Triggered {
			return phttp.Error(perr.Conflictf("%s", res.Reason))
		}
		return phttp.Accepted(res)
	}))

	r.Post("/rematch/{emailID}", phttp.Handle(func(w http.ResponseWriter, r *http.Request) phttp.Response {
		id, err := strconv.ParseInt(chi.URLParam(r, "emailID"), 10, 64)
		if err != nil {
			return phttp.Error(perr.InvalidArgf("emailID must be an integer"))
		}
		skip, _ := strconv.ParseBool(r.URL.Query().Get("skip_actions"))
		res, err := eng.Rematch(r.Context(), id, skip)
		if err != nil {
			return phttp.Error(err)
		}
		return phttp.OK(res)
	}))

	r.Post("/cleanup", phttp.Handle(func(w http.ResponseWriter, r *http.Request) phttp.Response {
		audits, emails, err := eng.Cleanup(r.Context())
		if err != nil {
			return phttp.Error(err)
		}
		return phttp.OK(map[string]int64{"audits_deleted": audits, "emails_deleted": emails})
	}))

	r.Put("/config", phttp.JSONHandler(func(r *http.Request, req knobsRequest) phttp.Response {
		if req.IntervalSeconds != nil {
			eng.SetInterval(time.Duration(*req.IntervalSeconds) * time.Second)
		}
		if req.ActionsEnabled != nil {
			eng.SetActionsEnabled(*req.ActionsEnabled)
		}
		return phttp.OK(eng.Status())
	}))
}

// knobsRequest carries the runtime-adjustable knobs. Both fields optional;
// changes apply at the next cycle boundary
type knobsRequest struct {
	IntervalSeconds *int  `json:"interval_seconds" validate:"omitempty,gte=60,lte=86400"`
	ActionsEnabled  *bool `json:"actions_enabled"`
}
