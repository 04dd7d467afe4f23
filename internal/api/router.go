// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the handler set to the HTTP routes.
type Router struct {
	handlers      *Handlers
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. Passing a nil middleware config applies
// the defaults.
func NewRouter(handlers *Handlers, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handlers:      handlers,
		chiMiddleware: NewChiMiddleware(mwConfig),
	}
}

// Setup configures all HTTP routes using the Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is handled

	// Health endpoint stays outside rate limiting for monitoring.
	r.Get("/healthz", router.handlers.Health)

	r.Route("/api/slots", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(Instrument())

		r.Get("/", router.handlers.ListSlots)
		r.Post("/", router.handlers.CreateSlot)

		// Static segments are registered alongside {id}; Chi matches
		// them with higher priority.
		r.Get("/active", router.handlers.GetActiveSlot)
		r.Put("/active", router.handlers.SetActiveSlot)
		r.Post("/import", router.handlers.ImportSlot)
		r.Post("/autosave", router.handlers.AutoSave) // creates and activates a slot

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", router.handlers.GetSlot)
			r.Put("/", router.handlers.UpdateSlot)
			r.Delete("/", router.handlers.DeleteSlot)

			r.Get("/data", router.handlers.LoadData)
			r.Put("/data", router.handlers.SaveData)

			r.Get("/export", router.handlers.ExportSlot)
			r.Post("/autosave", router.handlers.AutoSave)
			r.Post("/sync", router.handlers.SyncSlot)
		})
	})

	r.Route("/api/encounters", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(Instrument())

		r.Get("/", router.handlers.GetEncounters)
		r.Delete("/cache", router.handlers.ClearEncounterCache)
	})

	// Observability
	r.Handle("/metrics", promhttp.Handler())

	return r
}
