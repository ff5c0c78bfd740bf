// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/dataplane"
	"github.com/taibuivan/tablegate/internal/params"
	"github.com/taibuivan/tablegate/internal/platform/apperr"
	"github.com/taibuivan/tablegate/internal/platform/ctxutil"
	"github.com/taibuivan/tablegate/internal/platform/dberr"
	"github.com/taibuivan/tablegate/internal/platform/metrics"
	"github.com/taibuivan/tablegate/internal/platform/respond"
	requestutil "github.com/taibuivan/tablegate/internal/platform/request"
	"github.com/taibuivan/tablegate/internal/sqlgen"
)

// tableHandler implements the CRUD surface of one table. Every method runs
// with the request-scoped context and the immutable captured descriptor.
type tableHandler struct {
	table *catalog.Table
	deps  Deps
}

// # Reads

// list handles GET / — filter, sort, paginate, project.
func (h *tableHandler) list(writer http.ResponseWriter, request *http.Request) {
	query := params.ParseList(request.URL.Query(), h.table)
	h.serveRead(writer, request, query, false)
}

// read handles GET /{id} — single row by primary key, honoring projection.
func (h *tableHandler) read(writer http.ResponseWriter, request *http.Request) {
	if h.table.PrimaryKey == "" {
		respond.Error(writer, request, apperr.NotFound("Record"))
		return
	}

	parsed := params.ParseList(request.URL.Query(), h.table)
	query := &params.ListQuery{
		Filters: []params.Filter{params.PKFilter(h.table, requestutil.Param(request, "id"))},
		Select:  parsed.Select,
	}
	h.serveRead(writer, request, query, true)
}

// serveRead is the shared read path: data-plane lookup with SWR on hit,
// database with cache write-behind on miss, direct database on bypass.
func (h *tableHandler) serveRead(writer http.ResponseWriter, request *http.Request, query *params.ListQuery, single bool) {
	ctx := request.Context()

	if ctxutil.CacheBypassed(ctx) {
		h.deps.Metrics.CacheEvent(metrics.PlaneData, metrics.EventBypass)
		h.respondFresh(writer, request, query, single, "")
		return
	}

	version := h.currentVersion(ctx)
	cacheURL := dataplane.URL(h.deps.CacheHost, version, h.table.Name, query.Fingerprint())

	body, hit, err := h.deps.Data.Match(ctx, cacheURL)
	if err != nil {
		ctxutil.GetLogger(ctx).Warn("dataplane_match_failed",
			slog.String("table", h.table.Name),
			slog.Any("error", err),
		)
		h.deps.Metrics.CacheEvent(metrics.PlaneData, metrics.EventError)
	}

	if hit {
		h.deps.Metrics.CacheEvent(metrics.PlaneData, metrics.EventHit)
		respond.Raw(writer, http.StatusOK, body)
		h.scheduleRevalidate(cacheURL, query, single)
		return
	}

	h.deps.Metrics.CacheEvent(metrics.PlaneData, metrics.EventMiss)
	h.respondFresh(writer, request, query, single, cacheURL)
}

// respondFresh serves a read from the database. A non-empty cacheURL stores
// the body in the data plane after the response is on the wire.
func (h *tableHandler) respondFresh(writer http.ResponseWriter, request *http.Request, query *params.ListQuery, single bool, cacheURL string) {
	rows, err := h.deps.Runner.Query(request.Context(), sqlgen.Select(h.table, query))
	if err != nil {
		respond.Error(writer, request, dberr.Wrap(err, "select "+h.table.Name))
		return
	}

	body, err := h.encodeReadBody(rows, single)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if cacheURL != "" {
		writer.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(h.deps.CacheTTL.Seconds())))
	}
	respond.Raw(writer, http.StatusOK, body)

	if cacheURL != "" {
		h.storeBody(cacheURL, body)
	}
}

// encodeReadBody renders a read result: the row array for lists, the first
// row for /{id} reads. A single read with no row is a not-found error.
func (h *tableHandler) encodeReadBody(rows []sqlgen.Row, single bool) ([]byte, error) {
	var payload any = rows
	if single {
		if len(rows) == 0 {
			return nil, dberr.ErrNotFound
		}
		payload = rows[0]
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("gateway: encode read body: %w", err))
	}
	return body, nil
}

// currentVersion reads the table's data version from the control plane,
// initializing it to the bundle's build-time token when absent. Control
// plane failures fall back to the build-time token.
func (h *tableHandler) currentVersion(ctx context.Context) string {
	version, ok, err := h.deps.Control.GetVersion(ctx, h.table.Name)
	if err != nil {
		ctxutil.GetLogger(ctx).Warn("controlplane_get_version_failed",
			slog.String("table", h.table.Name),
			slog.Any("error", err),
		)
		h.deps.Metrics.CacheEvent(metrics.PlaneControl, metrics.EventError)
		return h.table.Token
	}
	if ok {
		return version
	}

	version = h.table.Token
	if err := h.deps.Control.SetVersion(ctx, h.table.Name, version); err != nil {
		ctxutil.GetLogger(ctx).Warn("controlplane_init_version_failed",
			slog.String("table", h.table.Name),
			slog.Any("error", err),
		)
		h.deps.Metrics.CacheEvent(metrics.PlaneControl, metrics.EventError)
	}
	return version
}

// scheduleRevalidate is the stale-while-revalidate write-behind: re-run the
// query on a detached context and overwrite the served cache entry.
func (h *tableHandler) scheduleRevalidate(cacheURL string, query *params.ListQuery, single bool) {
	h.deps.Tasks.Go("swr:"+h.table.Name, func(ctx context.Context) {
		rows, err := h.deps.Runner.Query(ctx, sqlgen.Select(h.table, query))
		if err != nil {
			h.deps.Logger.Warn("swr_requery_failed",
				slog.String("table", h.table.Name),
				slog.Any("error", err),
			)
			return
		}

		body, err := h.encodeReadBody(rows, single)
		if err != nil {
			// Single-row entry whose row vanished; let the TTL retire it.
			return
		}

		if err := h.deps.Data.Put(ctx, cacheURL, body); err != nil {
			h.deps.Logger.Warn("swr_put_failed",
				slog.String("table", h.table.Name),
				slog.Any("error", err),
			)
			h.deps.Metrics.CacheEvent(metrics.PlaneData, metrics.EventError)
			return
		}
		h.deps.Metrics.CacheEvent(metrics.PlaneData, metrics.EventRefresh)
	})
}

// storeBody writes a freshly computed response body into the data plane
// without delaying the response.
func (h *tableHandler) storeBody(cacheURL string, body []byte) {
	h.deps.Tasks.Go("store:"+h.table.Name, func(ctx context.Context) {
		if err := h.deps.Data.Put(ctx, cacheURL, body); err != nil {
			h.deps.Logger.Warn("dataplane_put_failed",
				slog.String("table", h.table.Name),
				slog.Any("error", err),
			)
			h.deps.Metrics.CacheEvent(metrics.PlaneData, metrics.EventError)
		}
	})
}

// # Writes

// create handles POST / — insert with optional upsert clause.
func (h *tableHandler) create(writer http.ResponseWriter, request *http.Request) {
	body, err := requestutil.DecodeObject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	parsed := params.ParseInsert(request.URL.Query(), h.table)
	rows, err := h.deps.Runner.Query(request.Context(), sqlgen.Insert(h.table, body, parsed))
	if err != nil {
		respond.Error(writer, request, dberr.Wrap(err, "insert "+h.table.Name))
		return
	}

	h.bumpVersion(request.Context())

	// ON CONFLICT DO NOTHING produces zero rows when the conflict fired.
	if len(rows) == 0 {
		respond.NoContent(writer)
		return
	}
	respond.Created(writer, rows[0])
}

// replace handles PUT /{id} — full replace with required-field validation.
func (h *tableHandler) replace(writer http.ResponseWriter, request *http.Request) {
	if h.table.PrimaryKey == "" {
		respond.Error(writer, request, apperr.NotFound("Record"))
		return
	}
	body, parsed, err := h.decodeReplaceBody(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	parsed.Filters = []params.Filter{params.PKFilter(h.table, requestutil.Param(request, "id"))}
	h.executeUpdate(writer, request, body, parsed, true)
}

// patch handles PATCH /{id} — partial update.
func (h *tableHandler) patch(writer http.ResponseWriter, request *http.Request) {
	if h.table.PrimaryKey == "" {
		respond.Error(writer, request, apperr.NotFound("Record"))
		return
	}
	body, err := requestutil.DecodeObject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	parsed := params.ParseUpdate(request.URL.Query(), h.table)
	parsed.Filters = []params.Filter{params.PKFilter(h.table, requestutil.Param(request, "id"))}
	h.executeUpdate(writer, request, body, parsed, true)
}

// bulkReplace handles PUT / — full replace of every row the filters select.
func (h *tableHandler) bulkReplace(writer http.ResponseWriter, request *http.Request) {
	body, parsed, err := h.decodeReplaceBody(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	h.executeUpdate(writer, request, body, parsed, false)
}

// bulkPatch handles PATCH / — partial update of every row the filters select.
func (h *tableHandler) bulkPatch(writer http.ResponseWriter, request *http.Request) {
	body, err := requestutil.DecodeObject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	h.executeUpdate(writer, request, body, params.ParseUpdate(request.URL.Query(), h.table), false)
}

// remove handles DELETE /{id} — soft or hard delete by primary key.
func (h *tableHandler) remove(writer http.ResponseWriter, request *http.Request) {
	if h.table.PrimaryKey == "" {
		respond.Error(writer, request, apperr.NotFound("Record"))
		return
	}
	parsed := params.ParseDelete(request.URL.Query(), h.table)
	parsed.Filters = []params.Filter{params.PKFilter(h.table, requestutil.Param(request, "id"))}
	h.executeDelete(writer, request, parsed, true)
}

// bulkDelete handles DELETE / — soft or hard delete of filtered rows.
func (h *tableHandler) bulkDelete(writer http.ResponseWriter, request *http.Request) {
	h.executeDelete(writer, request, params.ParseDelete(request.URL.Query(), h.table), false)
}

// decodeReplaceBody decodes a PUT body and enforces the full-replace rule:
// every non-nullable, non-primary-key column must be present. Validation
// failures happen before any SQL is issued.
func (h *tableHandler) decodeReplaceBody(request *http.Request) (map[string]any, *params.Update, error) {
	body, err := requestutil.DecodeObject(request)
	if err != nil {
		return nil, nil, err
	}
	if missing := h.table.MissingRequired(body); len(missing) > 0 {
		return nil, nil, apperr.MissingRequired(missing)
	}
	return body, params.ParseUpdate(request.URL.Query(), h.table), nil
}

// executeUpdate runs a synthesized update and shapes the response. An empty
// effective SET clause short-circuits without SQL or a version bump.
func (h *tableHandler) executeUpdate(writer http.ResponseWriter, request *http.Request, body map[string]any, parsed *params.Update, byID bool) {
	stmt, ok := sqlgen.Update(h.table, body, parsed)
	if !ok {
		if byID {
			respond.Error(writer, request, apperr.NotFound("Record"))
		} else {
			respond.NoContent(writer)
		}
		return
	}

	rows, err := h.deps.Runner.Query(request.Context(), stmt)
	if err != nil {
		respond.Error(writer, request, dberr.Wrap(err, "update "+h.table.Name))
		return
	}

	h.bumpVersion(request.Context())
	h.respondMutation(writer, request, rows, parsed.Returning, byID)
}

// executeDelete runs a synthesized delete (or its soft-delete rewrite) and
// shapes the response.
func (h *tableHandler) executeDelete(writer http.ResponseWriter, request *http.Request, parsed *params.Delete, byID bool) {
	rows, err := h.deps.Runner.Query(request.Context(), sqlgen.Delete(h.table, parsed))
	if err != nil {
		respond.Error(writer, request, dberr.Wrap(err, "delete "+h.table.Name))
		return
	}

	h.bumpVersion(request.Context())
	h.respondMutation(writer, request, rows, parsed.Returning, byID)
}

// respondMutation applies the shared update/delete response policy:
// by-id with no match is 404; returning with matches is 200 with the row
// (by-id) or array (bulk); everything else is 204.
func (h *tableHandler) respondMutation(writer http.ResponseWriter, request *http.Request, rows []sqlgen.Row, returning []string, byID bool) {
	if byID && len(rows) == 0 {
		respond.Error(writer, request, apperr.NotFound("Record"))
		return
	}
	if len(returning) == 0 || len(rows) == 0 {
		respond.NoContent(writer)
		return
	}
	if byID {
		respond.OK(writer, rows[0])
		return
	}
	respond.OK(writer, rows)
}

// bumpVersion rotates the control-plane version token after a successful
// mutation, before the response is written. Every data-plane URL minted for
// the table from now on embeds the new token, so pre-write entries become
// unreachable. Control-plane failures are logged and swallowed.
func (h *tableHandler) bumpVersion(ctx context.Context) {
	if _, err := h.deps.Control.BumpVersion(ctx, h.table.Name); err != nil {
		ctxutil.GetLogger(ctx).Warn("version_bump_failed",
			slog.String("table", h.table.Name),
			slog.Any("error", err),
		)
		h.deps.Metrics.CacheEvent(metrics.PlaneControl, metrics.EventError)
		return
	}
	h.deps.Metrics.VersionBump(h.table.Name)
}
