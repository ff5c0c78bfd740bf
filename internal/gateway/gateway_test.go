// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/controlplane"
	"github.com/taibuivan/tablegate/internal/gateway"
	"github.com/taibuivan/tablegate/internal/platform/metrics"
	"github.com/taibuivan/tablegate/internal/platform/middleware"
	"github.com/taibuivan/tablegate/internal/platform/task"
	"github.com/taibuivan/tablegate/internal/sqlgen"
)

// # Fakes

// fakeIntrospector serves catalog metadata from in-memory maps and counts
// calls so tests can assert which cache plane answered.
type fakeIntrospector struct {
	mu          sync.Mutex
	tokens      map[string]string
	columns     map[string][]catalog.Column
	tokenCalls  int
	columnCalls int
}

func (f *fakeIntrospector) TableToken(ctx context.Context, table string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	token, ok := f.tokens[table]
	if !ok {
		return "", catalog.ErrTableNotFound
	}
	return token, nil
}

func (f *fakeIntrospector) TableColumns(ctx context.Context, table string) ([]catalog.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columnCalls++
	columns, ok := f.columns[table]
	if !ok {
		return nil, catalog.ErrTableNotFound
	}
	return columns, nil
}

func (f *fakeIntrospector) AllColumns(context.Context) (map[string][]catalog.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.columns, nil
}

func (f *fakeIntrospector) AllTokens(context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens, nil
}

func (f *fakeIntrospector) setToken(table, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[table] = token
}

func (f *fakeIntrospector) calls() (tokens, columns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls, f.columnCalls
}

// fakeRunner records every synthesized statement and plays back scripted rows.
type fakeRunner struct {
	mu         sync.Mutex
	rows       []sqlgen.Row
	err        error
	statements []sqlgen.Statement
}

func (f *fakeRunner) Query(_ context.Context, stmt sqlgen.Statement) ([]sqlgen.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, stmt)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeRunner) setRows(rows []sqlgen.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

func (f *fakeRunner) issued() []sqlgen.Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sqlgen.Statement(nil), f.statements...)
}

// memoryCache is an in-process data plane for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Match(_ context.Context, cacheURL string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[cacheURL]
	return body, ok, nil
}

func (c *memoryCache) Put(_ context.Context, cacheURL string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheURL] = body
	return nil
}

func (c *memoryCache) get(cacheURL string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[cacheURL]
	return body, ok
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// # Harness

const cacheHost = "https://cache.tablegate.local"

type harness struct {
	introspector *fakeIntrospector
	runner       *fakeRunner
	control      *controlplane.MemoryStore
	data         *memoryCache
	cache        *gateway.CodeCache
	tasks        *task.Runner
	router       http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		introspector: &fakeIntrospector{
			tokens: map[string]string{"users": "t1"},
			columns: map[string][]catalog.Column{
				"users": {
					{Name: "id", DataType: "integer", Nullable: false},
					{Name: "name", DataType: "text", Nullable: false},
					{Name: "email", DataType: "text", Nullable: false},
					{Name: "age", DataType: "integer", Nullable: true},
				},
			},
		},
		runner:  &fakeRunner{},
		control: controlplane.NewMemoryStore(),
		data:    newMemoryCache(),
		cache:   gateway.NewCodeCache(),
		tasks:   task.NewRunner(logger, time.Second),
	}

	options := catalog.Options{
		Schema:               "public",
		PrimaryKey:           "id",
		SoftDeleteCandidates: []string{"deleted_at", "is_deleted"},
	}

	factory := gateway.NewFactory(gateway.Deps{
		Runner:    h.runner,
		Control:   h.control,
		Data:      h.data,
		Tasks:     h.tasks,
		Metrics:   metrics.New(),
		Logger:    logger,
		CacheHost: cacheHost,
		CacheTTL:  60 * time.Second,
	})

	dispatcher := gateway.NewDispatcher(
		h.introspector, h.cache, h.control, factory, h.tasks, metrics.New(), logger, options,
	)

	router := chi.NewRouter()
	router.Use(middleware.CacheBypass())
	router.HandleFunc("/api/{table}", dispatcher.Handle)
	router.HandleFunc("/api/{table}/*", dispatcher.Handle)
	h.router = router

	return h
}

func (h *harness) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &value))
	return value
}

// # Dispatch

func TestDispatcher_UnknownTable(t *testing.T) {
	h := newHarness(t)

	recorder := h.do(t, http.MethodGet, "/api/orders", "", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.JSONEq(t, `{"error":"Table not found"}`, recorder.Body.String())
	assert.Empty(t, h.runner.issued(), "no SQL for unknown tables")
}

func TestDispatcher_InvalidTableName(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"bad-name", "1users", "users%3Bdrop"} {
		recorder := h.do(t, http.MethodGet, "/api/"+name, "", nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code, name)
	}

	tokens, _ := h.introspector.calls()
	assert.Zero(t, tokens, "invalid names never reach introspection")
}

/*
TestDispatcher_UnroutedPathIsJSON404: paths below a known table that match no
route still answer in the API's error shape, never a text/plain 404.
*/
func TestDispatcher_UnroutedPathIsJSON404(t *testing.T) {
	h := newHarness(t)

	recorder := h.do(t, http.MethodGet, "/api/users/1/extra", "", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Record not found"}`, recorder.Body.String())
	assert.Empty(t, h.runner.issued(), "no SQL for unrouted paths")
}

/*
TestDispatcher_BuildSurvivesRequestCancellation: the single-flight build is
shared by every coalesced request, so it runs detached from the request that
happened to win the race. A client that disconnects mid-build must not poison
the bundle for everyone else.
*/
func TestDispatcher_BuildSurvivesRequestCancellation(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{{"id": int64(1), "name": "ada"}})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	request := httptest.NewRequest(http.MethodGet, "/api/users", nil).WithContext(cancelled)
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, request)
	h.tasks.Wait()

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, h.cache.Len(), "the built bundle stays for later requests")
}

func TestDispatcher_BundleIsReused(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{})

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users", "", nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users", "", nil).Code)
	h.tasks.Wait()

	_, columns := h.introspector.calls()
	assert.Equal(t, 1, columns, "second request must reuse the compiled bundle")
	assert.Equal(t, 1, h.cache.Len())
}

func TestDispatcher_RebuildReusesControlPlaneSchema(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{})

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users", "", nil).Code)
	h.tasks.Wait()

	// A new process shares the control plane but starts with a cold code
	// plane. Its first build should skip column introspection because the
	// stored schema payload matches the current token.
	_, columnsBefore := h.introspector.calls()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	options := catalog.Options{Schema: "public", PrimaryKey: "id"}
	factory := gateway.NewFactory(gateway.Deps{
		Runner: h.runner, Control: h.control, Data: h.data, Tasks: h.tasks,
		Logger: logger, CacheHost: cacheHost, CacheTTL: time.Minute,
	})
	dispatcher := gateway.NewDispatcher(
		h.introspector, gateway.NewCodeCache(), h.control, factory, h.tasks, nil, logger, options,
	)
	router := chi.NewRouter()
	router.HandleFunc("/api/{table}", dispatcher.Handle)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	h.tasks.Wait()

	require.Equal(t, http.StatusOK, recorder.Code)
	_, columnsAfter := h.introspector.calls()
	assert.Equal(t, columnsBefore, columnsAfter)
}

func TestDispatcher_DriftPurgesBundle(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{})

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users", "", nil).Code)
	h.tasks.Wait()
	require.Equal(t, 1, h.cache.Len())

	// The table definition changes under the cached bundle.
	h.introspector.setToken("users", "t2")

	// The hit is served against the stale bundle; the detached check purges.
	recorder := h.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	h.tasks.Wait()

	assert.Zero(t, h.cache.Len(), "drift must purge the code plane")
	_, ok, err := h.control.GetSchema(context.Background(), "users")
	require.NoError(t, err)
	assert.False(t, ok, "drift must purge the control-plane schema payload")
}

func TestDispatcher_DroppedTablePurgesBundle(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{})

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users", "", nil).Code)
	h.tasks.Wait()

	h.introspector.mu.Lock()
	delete(h.introspector.tokens, "users")
	h.introspector.mu.Unlock()

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users", "", nil).Code)
	h.tasks.Wait()

	assert.Zero(t, h.cache.Len())
}

// # Reads

func TestList_MissServesFreshAndStores(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{{"id": int64(1), "name": "Ann"}})

	recorder := h.do(t, http.MethodGet, "/api/users", "", nil)
	h.tasks.Wait()

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "max-age=60", recorder.Header().Get("Cache-Control"))

	rows := decodeBody[[]map[string]any](t, recorder)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann", rows[0]["name"])

	// Version was initialized to the build token, so the entry lives under it.
	body, ok := h.data.get(cacheHost + "/t1/users/list")
	require.True(t, ok, "fresh body must be stored in the data plane")
	assert.JSONEq(t, recorder.Body.String(), string(body))
}

func TestList_HitServesCachedAndRevalidates(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{{"id": int64(2), "name": "Bob"}})

	stale := []byte(`[{"id":1,"name":"Ann"}]`)
	key := cacheHost + "/t1/users/list"
	require.NoError(t, h.data.Put(context.Background(), key, stale))

	recorder := h.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, string(stale), recorder.Body.String(), "hit serves the cached body verbatim")

	// The stale-while-revalidate pass overwrites the entry with fresh rows.
	h.tasks.Wait()
	body, ok := h.data.get(key)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":2,"name":"Bob"}]`, string(body))
}

func TestList_BypassSkipsAllPlanes(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{{"id": int64(1)}})

	stale := []byte(`[{"id":99}]`)
	require.NoError(t, h.data.Put(context.Background(), cacheHost+"/t1/users/list", stale))

	recorder := h.do(t, http.MethodGet, "/api/users", "", map[string]string{
		"X-Cache-Control": "no-cache",
	})
	h.tasks.Wait()

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `[{"id":1}]`, recorder.Body.String(), "bypass must not serve the cached body")
	assert.Empty(t, recorder.Header().Get("Cache-Control"))

	// The bypassed response is not written back.
	body, _ := h.data.get(cacheHost + "/t1/users/list")
	assert.Equal(t, stale, body)
}

func TestList_FilterReachesSQL(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{})

	recorder := h.do(t, http.MethodGet, "/api/users?age__gte=18&order_by=-name&limit=5", "", nil)
	h.tasks.Wait()

	require.Equal(t, http.StatusOK, recorder.Code)
	statements := h.runner.issued()
	require.NotEmpty(t, statements)
	assert.Equal(t,
		`SELECT * FROM "public"."users" WHERE "age" >= $1 ORDER BY "name" DESC LIMIT $2`,
		statements[0].SQL)
}

func TestRead_ByID(t *testing.T) {
	h := newHarness(t)

	t.Run("found", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{{"id": int64(7), "name": "Ann"}})
		recorder := h.do(t, http.MethodGet, "/api/users/7", "", map[string]string{
			"X-Cache-Control": "no-cache",
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		row := decodeBody[map[string]any](t, recorder)
		assert.Equal(t, "Ann", row["name"])
	})

	t.Run("absent_row_is_404", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{})
		recorder := h.do(t, http.MethodGet, "/api/users/999", "", map[string]string{
			"X-Cache-Control": "no-cache",
		})
		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.JSONEq(t, `{"error":"Record not found"}`, recorder.Body.String())
	})

	h.tasks.Wait()
}

// # Writes

func TestCreate(t *testing.T) {
	h := newHarness(t)

	t.Run("returns_created_row", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{{"id": int64(1), "name": "Ann", "email": "ann@x"}})

		recorder := h.do(t, http.MethodPost, "/api/users", `{"name":"Ann","email":"ann@x"}`, nil)
		require.Equal(t, http.StatusCreated, recorder.Code)

		row := decodeBody[map[string]any](t, recorder)
		assert.Equal(t, "Ann", row["name"])

		// A successful write rotates the version token.
		token, ok, err := h.control.GetVersion(context.Background(), "users")
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEqual(t, "t1", token)
	})

	t.Run("conflict_do_nothing_is_204", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{})

		recorder := h.do(t, http.MethodPost,
			"/api/users?on_conflict=email&on_conflict_action=nothing",
			`{"name":"Ann","email":"ann@x"}`, nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})

	t.Run("malformed_body_is_400", func(t *testing.T) {
		issued := len(h.runner.issued())
		recorder := h.do(t, http.MethodPost, "/api/users", `{"name":`, nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Len(t, h.runner.issued(), issued, "malformed bodies never reach SQL")
	})

	h.tasks.Wait()
}

func TestReplace_MissingRequiredFields(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{{"id": int64(1)}})

	// Warm the bundle.
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users/1", "", map[string]string{
		"X-Cache-Control": "no-cache",
	}).Code)
	issued := len(h.runner.issued())

	recorder := h.do(t, http.MethodPut, "/api/users/1", `{"name":"Ann"}`, nil)
	h.tasks.Wait()

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.JSONEq(t,
		`{"error":"Missing required fields","missingFields":["email"]}`,
		recorder.Body.String())
	assert.Len(t, h.runner.issued(), issued, "validation failures never reach SQL")

	_, ok, err := h.control.GetVersion(context.Background(), "users")
	require.NoError(t, err)
	assert.False(t, ok, "failed validation must not bump the version")
}

func TestReplace_FullBody(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{{"id": int64(1), "name": "New", "email": "new@x"}})

	recorder := h.do(t, http.MethodPut, "/api/users/1?returning=id,name",
		`{"name":"New","email":"new@x","age":30}`, nil)
	h.tasks.Wait()

	require.Equal(t, http.StatusOK, recorder.Code)
	row := decodeBody[map[string]any](t, recorder)
	assert.Equal(t, "New", row["name"])

	statements := h.runner.issued()
	require.Len(t, statements, 1)
	assert.Equal(t,
		`UPDATE "public"."users" SET "name" = $1, "email" = $2, "age" = $3 WHERE "id" = $4 RETURNING "id", "name"`,
		statements[0].SQL)
}

func TestPatch_EmptyEffectiveSet(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{})

	t.Run("by_id_is_404", func(t *testing.T) {
		recorder := h.do(t, http.MethodPatch, "/api/users/1", `{"unknown":"x"}`, nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("bulk_is_204", func(t *testing.T) {
		recorder := h.do(t, http.MethodPatch, "/api/users?age__gte=90", `{"unknown":"x"}`, nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})

	h.tasks.Wait()
	assert.Empty(t, h.runner.issued(), "empty effective sets never reach SQL")

	_, ok, err := h.control.GetVersion(context.Background(), "users")
	require.NoError(t, err)
	assert.False(t, ok, "no-op updates must not bump the version")
}

func TestPatch_ByID(t *testing.T) {
	h := newHarness(t)

	t.Run("no_match_is_404", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{})
		recorder := h.do(t, http.MethodPatch, "/api/users/999", `{"age":31}`, nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("match_without_returning_is_204", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{{"id": int64(1), "age": int64(31)}})
		recorder := h.do(t, http.MethodPatch, "/api/users/1", `{"age":31}`, nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})

	t.Run("match_with_returning_is_200", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{{"id": int64(1), "age": int64(31)}})
		recorder := h.do(t, http.MethodPatch, "/api/users/1?returning=id,age", `{"age":31}`, nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		row := decodeBody[map[string]any](t, recorder)
		assert.EqualValues(t, 31, row["age"])
	})

	h.tasks.Wait()
}

func TestBulkPatch_ReturnsArray(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{
		{"id": int64(1), "age": int64(0)},
		{"id": int64(2), "age": int64(0)},
	})

	recorder := h.do(t, http.MethodPatch, "/api/users?age__isnull=true&returning=id,age", `{"age":0}`, nil)
	h.tasks.Wait()

	require.Equal(t, http.StatusOK, recorder.Code)
	rows := decodeBody[[]map[string]any](t, recorder)
	assert.Len(t, rows, 2)
}

func TestDelete(t *testing.T) {
	h := newHarness(t)

	t.Run("by_id_no_match_is_404", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{})
		recorder := h.do(t, http.MethodDelete, "/api/users/999", "", nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("by_id_match_is_204", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{{"id": int64(1)}})
		recorder := h.do(t, http.MethodDelete, "/api/users/1", "", nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})

	t.Run("bulk_no_match_is_204", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{})
		recorder := h.do(t, http.MethodDelete, "/api/users?age__lt=0", "", nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})

	t.Run("hard_delete_issues_delete_sql", func(t *testing.T) {
		h.runner.setRows([]sqlgen.Row{{"id": int64(1)}})
		recorder := h.do(t, http.MethodDelete, "/api/users/1?hard_delete=true", "", nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)

		statements := h.runner.issued()
		assert.Contains(t, statements[len(statements)-1].SQL, `DELETE FROM "public"."users"`)
	})

	h.tasks.Wait()
}

func TestWrite_InvalidatesReadCache(t *testing.T) {
	h := newHarness(t)
	h.runner.setRows([]sqlgen.Row{{"id": int64(1), "name": "Ann", "email": "ann@x"}})

	// Read once to populate the data plane under the initial version.
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/users", "", nil).Code)
	h.tasks.Wait()
	_, ok := h.data.get(cacheHost + "/t1/users/list")
	require.True(t, ok)

	// A write rotates the version token.
	require.Equal(t, http.StatusCreated,
		h.do(t, http.MethodPost, "/api/users", `{"name":"Bob","email":"bob@x"}`, nil).Code)

	token, ok, err := h.control.GetVersion(context.Background(), "users")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, "t1", token)

	// The next read misses: its URL embeds the new token.
	recorder := h.do(t, http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	h.tasks.Wait()

	_, ok = h.data.get(cacheHost + "/" + token + "/users/list")
	assert.True(t, ok, "fresh entry must live under the bumped version")
}

// # Code plane

func TestCodeCache_SingleFlightBuild(t *testing.T) {
	cache := gateway.NewCodeCache()

	var builds int
	var mu sync.Mutex
	build := func() (*gateway.Bundle, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return &gateway.Bundle{Token: "t1"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bundle, err := cache.Build("users", build)
			assert.NoError(t, err)
			assert.NotNil(t, bundle)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, builds, "concurrent builds must collapse into one")
	assert.Equal(t, 1, cache.Len())
}
