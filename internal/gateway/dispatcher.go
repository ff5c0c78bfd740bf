// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/controlplane"
	"github.com/taibuivan/tablegate/internal/platform/apperr"
	"github.com/taibuivan/tablegate/internal/platform/ctxutil"
	"github.com/taibuivan/tablegate/internal/platform/metrics"
	"github.com/taibuivan/tablegate/internal/platform/respond"
	"github.com/taibuivan/tablegate/internal/platform/task"
	"github.com/taibuivan/tablegate/pkg/ident"
)

// Dispatcher resolves /api/{table}/... requests to handler bundles and
// coordinates the three cache planes.
type Dispatcher struct {
	introspector catalog.Introspector
	cache        *CodeCache
	control      controlplane.Store
	factory      *Factory
	tasks        *task.Runner
	metrics      *metrics.Metrics
	logger       *slog.Logger
	options      catalog.Options
}

// NewDispatcher wires the dispatcher over its collaborators. The catalog
// options carry the descriptor conventions (schema, primary-key name,
// soft-delete candidates) every built table follows.
func NewDispatcher(
	introspector catalog.Introspector,
	cache *CodeCache,
	control controlplane.Store,
	factory *Factory,
	tasks *task.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
	options catalog.Options,
) *Dispatcher {
	return &Dispatcher{
		introspector: introspector,
		cache:        cache,
		control:      control,
		factory:      factory,
		tasks:        tasks,
		metrics:      m,
		logger:       logger,
		options:      options,
	}
}

// Handle is the entry point registered for /api/{table} and /api/{table}/*.
//
// Resolution order: code plane (unless bypassed), then control plane +
// introspection with a single-flight rebuild. A code-plane hit schedules a
// detached drift check; the hit itself is served against the possibly stale
// bundle — one stale response is the deliberate price for p50 latency.
func (d *Dispatcher) Handle(writer http.ResponseWriter, request *http.Request) {
	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

	table := ident.Normalize(chi.URLParam(request, "table"))
	if !ident.Valid(table) {
		respond.Error(recorder, request, apperr.NotFound("Table"))
		d.observe(table, request.Method, recorder.status, started)
		return
	}

	bundle := d.lookup(request.Context(), table)
	if bundle == nil {
		resolved, err := d.resolve(table)
		if err != nil {
			respond.Error(recorder, request, err)
			d.observe(table, request.Method, recorder.status, started)
			return
		}
		bundle = resolved
	}

	d.forward(recorder, request, bundle)
	d.observe(table, request.Method, recorder.status, started)
}

// lookup consults the code plane. On a hit it schedules the drift check and
// returns the bundle; bypassed requests always miss.
func (d *Dispatcher) lookup(ctx context.Context, table string) *Bundle {
	if ctxutil.CacheBypassed(ctx) {
		d.metrics.CacheEvent(metrics.PlaneCode, metrics.EventBypass)
		return nil
	}

	bundle, ok := d.cache.Get(table)
	if !ok {
		d.metrics.CacheEvent(metrics.PlaneCode, metrics.EventMiss)
		return nil
	}

	d.metrics.CacheEvent(metrics.PlaneCode, metrics.EventHit)
	d.scheduleDriftCheck(table, bundle.Token)
	return bundle
}

// resolve rebuilds the bundle for a table: introspection token first, then
// cached column metadata from the control plane when its version matches,
// fresh column introspection otherwise. Concurrent resolves of the same
// table share one build, which runs under a detached context — the winner
// of the race builds for every coalesced request, so its own request's
// cancellation must not fail the others.
func (d *Dispatcher) resolve(table string) (*Bundle, error) {
	bundle, err := d.cache.Build(table, func() (*Bundle, error) {
		ctx, cancel := d.tasks.Detach()
		defer cancel()
		return d.build(ctx, table)
	})
	if err != nil {
		d.metrics.BundleBuild("failed")
		return nil, err
	}
	return bundle, nil
}

// build performs one bundle construction. It is only ever invoked inside
// the code cache's single-flight group.
func (d *Dispatcher) build(ctx context.Context, table string) (*Bundle, error) {
	token, err := d.introspector.TableToken(ctx, table)
	if err != nil {
		if errors.Is(err, catalog.ErrTableNotFound) {
			return nil, apperr.NotFound("Table")
		}
		return nil, apperr.Internal(err)
	}

	columns, reused := d.cachedColumns(ctx, table, token)
	if !reused {
		columns, err = d.introspector.TableColumns(ctx, table)
		if err != nil {
			if errors.Is(err, catalog.ErrTableNotFound) {
				return nil, apperr.NotFound("Table")
			}
			return nil, apperr.Internal(err)
		}

		payload := &catalog.SchemaPayload{Version: token, Columns: columns}
		if err := d.control.PutSchema(ctx, table, payload); err != nil {
			d.logger.Warn("controlplane_put_schema_failed",
				slog.String("table", table),
				slog.Any("error", err),
			)
			d.metrics.CacheEvent(metrics.PlaneControl, metrics.EventError)
		}
	}

	descriptor := catalog.Build(table, columns, token, d.options)
	d.metrics.BundleBuild("built")
	return d.factory.Build(descriptor), nil
}

// cachedColumns tries the control plane's schema payload; it is usable only
// when its stored version equals the current introspection token.
func (d *Dispatcher) cachedColumns(ctx context.Context, table, token string) ([]catalog.Column, bool) {
	payload, ok, err := d.control.GetSchema(ctx, table)
	if err != nil {
		d.logger.Warn("controlplane_get_schema_failed",
			slog.String("table", table),
			slog.Any("error", err),
		)
		d.metrics.CacheEvent(metrics.PlaneControl, metrics.EventError)
		return nil, false
	}
	if !ok || payload.Version != token {
		d.metrics.CacheEvent(metrics.PlaneControl, metrics.EventMiss)
		return nil, false
	}

	d.metrics.CacheEvent(metrics.PlaneControl, metrics.EventHit)
	return payload.Columns, true
}

// scheduleDriftCheck re-reads the introspection token on a detached context
// after the response went out. A confirmed mismatch (or a dropped table)
// purges the code-plane entry and the control-plane schema payload; the
// next request rebuilds. Transient introspection failures are swallowed so
// a database hiccup cannot purge working routers.
func (d *Dispatcher) scheduleDriftCheck(table, cachedToken string) {
	d.tasks.Go("drift:"+table, func(ctx context.Context) {
		token, err := d.introspector.TableToken(ctx, table)
		if err != nil && !errors.Is(err, catalog.ErrTableNotFound) {
			d.logger.Warn("drift_check_failed",
				slog.String("table", table),
				slog.Any("error", err),
			)
			return
		}
		if err == nil && token == cachedToken {
			return
		}

		d.cache.Drop(table)
		if err := d.control.DeleteSchema(ctx, table); err != nil {
			d.logger.Warn("controlplane_delete_schema_failed",
				slog.String("table", table),
				slog.Any("error", err),
			)
		}
		d.metrics.CacheEvent(metrics.PlaneCode, metrics.EventPurge)
		d.logger.Info("schema_drift_purged",
			slog.String("table", table),
			slog.String("cached_token", cachedToken),
			slog.String("current_token", token),
		)
	})
}

// forward hands the request to the bundle's router, rewriting the chi route
// path to the portion after /api/{table} the way chi's Mount does.
func (d *Dispatcher) forward(writer http.ResponseWriter, request *http.Request, bundle *Bundle) {
	routePath := "/"
	if rctx := chi.RouteContext(request.Context()); rctx != nil {
		if tail := rctx.URLParam("*"); tail != "" {
			routePath += tail
		}
		rctx.RoutePath = routePath
	}
	bundle.Router().ServeHTTP(writer, request)
}

// observe records the request in the metrics registry.
func (d *Dispatcher) observe(table, method string, status int, started time.Time) {
	d.metrics.ObserveRequest(table, method, status, time.Since(started).Seconds())
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}
