// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apidoc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/controlplane"
	"github.com/taibuivan/tablegate/internal/platform/apperr"
	"github.com/taibuivan/tablegate/internal/platform/ctxutil"
	"github.com/taibuivan/tablegate/internal/platform/metrics"
	"github.com/taibuivan/tablegate/internal/platform/respond"
	"github.com/taibuivan/tablegate/internal/platform/task"
)

// Handler serves /openapi.json and /docs.
type Handler struct {
	introspector catalog.Introspector
	control      controlplane.Store
	tasks        *task.Runner
	metrics      *metrics.Metrics
	logger       *slog.Logger
	options      catalog.Options
}

// NewHandler wires the documentation endpoints over the introspector and
// the control plane's document cache.
func NewHandler(
	introspector catalog.Introspector,
	control controlplane.Store,
	tasks *task.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
	options catalog.Options,
) *Handler {
	return &Handler{
		introspector: introspector,
		control:      control,
		tasks:        tasks,
		metrics:      m,
		logger:       logger,
		options:      options,
	}
}

// OpenAPI handles GET /openapi.json.
//
// The cheap introspection pass (tokens only) decides freshness: when the
// digest of all per-table tokens matches the cached document's version, the
// cached spec is served immediately and regeneration runs detached (SWR).
// Otherwise the full schema is introspected and the document rebuilt before
// responding.
func (h *Handler) OpenAPI(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	tokens, err := h.introspector.AllTokens(ctx)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(fmt.Errorf("apidoc: read schema tokens: %w", err)))
		return
	}
	version := GlobalVersion(tokens)
	origin := requestOrigin(request)

	if !ctxutil.CacheBypassed(ctx) {
		cached, ok, err := h.control.GetOpenAPI(ctx)
		if err != nil {
			h.logger.Warn("controlplane_get_openapi_failed", slog.Any("error", err))
			h.metrics.CacheEvent(metrics.PlaneControl, metrics.EventError)
		}
		if ok && cached.Version == version {
			h.metrics.CacheEvent(metrics.PlaneControl, metrics.EventHit)
			respond.Raw(writer, http.StatusOK, cached.Spec)

			h.tasks.Go("openapi-regen", func(ctx context.Context) {
				if _, err := h.regenerate(ctx, origin, version); err != nil {
					h.logger.Warn("openapi_regeneration_failed", slog.Any("error", err))
				} else {
					h.metrics.CacheEvent(metrics.PlaneControl, metrics.EventRefresh)
				}
			})
			return
		}
		h.metrics.CacheEvent(metrics.PlaneControl, metrics.EventMiss)
	}

	spec, err := h.regenerate(ctx, origin, version)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}
	respond.Raw(writer, http.StatusOK, spec)
}

// regenerate introspects the whole schema, assembles the document, and
// persists it in the control plane under the given global version.
func (h *Handler) regenerate(ctx context.Context, origin, version string) ([]byte, error) {
	grouped, err := h.introspector.AllColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("apidoc: introspect schema: %w", err)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make([]*catalog.Table, 0, len(names))
	for _, name := range names {
		tables = append(tables, catalog.Build(name, grouped[name], "", h.options))
	}

	raw, err := json.Marshal(BuildDocument(tables, origin, version))
	if err != nil {
		return nil, fmt.Errorf("apidoc: encode document: %w", err)
	}

	payload := &controlplane.OpenAPIPayload{
		Spec:     raw,
		Version:  version,
		CachedAt: time.Now().UnixMilli(),
	}
	if err := h.control.PutOpenAPI(ctx, payload); err != nil {
		h.logger.Warn("controlplane_put_openapi_failed", slog.Any("error", err))
		h.metrics.CacheEvent(metrics.PlaneControl, metrics.EventError)
	}

	return raw, nil
}

// requestOrigin reconstructs the externally visible origin for the
// document's servers entry, honoring the forwarded-proto header set by
// TLS-terminating proxies.
func requestOrigin(request *http.Request) string {
	scheme := "http"
	if request.TLS != nil {
		scheme = "https"
	}
	if forwarded := request.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + request.Host
}
