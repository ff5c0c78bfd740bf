// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gateway compiles and dispatches per-table CRUD handler bundles.

Three pieces cooperate:

  - Factory: turns an immutable [catalog.Table] into a Bundle — a chi
    sub-router whose handlers close over the descriptor.
  - CodeCache: the process-local code plane, table name → Bundle, with
    single-flight build deduplication.
  - Dispatcher: resolves /api/{table}/... to a Bundle (code plane first,
    control plane + introspection on miss), schedules drift checks, and
    forwards the request.
*/
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/controlplane"
	"github.com/taibuivan/tablegate/internal/dataplane"
	"github.com/taibuivan/tablegate/internal/platform/apperr"
	"github.com/taibuivan/tablegate/internal/platform/metrics"
	"github.com/taibuivan/tablegate/internal/platform/respond"
	"github.com/taibuivan/tablegate/internal/platform/task"
	"github.com/taibuivan/tablegate/internal/sqlgen"
)

// Deps are the collaborators shared by every compiled handler.
type Deps struct {
	Runner  sqlgen.Runner
	Control controlplane.Store
	Data    dataplane.Cache
	Tasks   *task.Runner
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// CacheHost is the synthetic origin embedded in data-plane cache URLs.
	CacheHost string

	// CacheTTL mirrors the data plane's entry lifetime; it is advertised on
	// fresh responses via Cache-Control max-age.
	CacheTTL time.Duration
}

// Bundle is the compiled CRUD surface of one table: a router whose handlers
// capture the descriptor, plus the introspection token the descriptor was
// built under. Bundles are immutable; drift produces a replacement.
type Bundle struct {
	Table *catalog.Table
	Token string

	router chi.Router
}

// Router returns the bundle's HTTP surface, rooted at the table path.
func (bundle *Bundle) Router() chi.Router {
	return bundle.router
}

// Factory builds handler bundles from table descriptors.
type Factory struct {
	deps Deps
}

// NewFactory constructs a bundle factory over the shared collaborators.
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// Build compiles the full CRUD route set for one table.
func (factory *Factory) Build(table *catalog.Table) *Bundle {
	handler := &tableHandler{table: table, deps: factory.deps}

	router := chi.NewRouter()
	router.Get("/", handler.list)
	router.Post("/", handler.create)
	router.Put("/", handler.bulkReplace)
	router.Patch("/", handler.bulkPatch)
	router.Delete("/", handler.bulkDelete)
	router.Get("/{id}", handler.read)
	router.Put("/{id}", handler.replace)
	router.Patch("/{id}", handler.patch)
	router.Delete("/{id}", handler.remove)
	router.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, apperr.NotFound("Record"))
	})

	return &Bundle{
		Table:  table,
		Token:  table.Token,
		router: router,
	}
}
