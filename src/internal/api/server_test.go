package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/cli"
	"logseqbridge/src/internal/service/logging"
)

type fakeCLI struct {
	mu        sync.Mutex
	calls     [][]string
	result    domain.CommandResult
	err       error
	appendErr error
	panics    bool
}

func (f *fakeCLI) Execute(_ context.Context, command string, args ...string) (domain.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{command}, args...))
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func (f *fakeCLI) Append(_ context.Context, content, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, []string{"append", content, "-a", token})
	return f.appendErr
}

func (f *fakeCLI) recorded() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

type fakeJournal struct {
	content string
	token   string
	result  domain.JournalResult
	err     error
}

func (f *fakeJournal) AppendToJournal(_ context.Context, content, token string) (domain.JournalResult, error) {
	f.content, f.token = content, token
	return f.result, f.err
}

func okResult(stdout string) domain.CommandResult {
	stderr, code := "", 0
	return domain.CommandResult{Success: true, Stdout: &stdout, Stderr: &stderr, ReturnCode: &code}
}

func newTestApi(t *testing.T, c Commander, j Journal, token string, debug bool) (*Api, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(logging.NewPrivacyHandler(slog.NewTextHandler(&buf, nil), debug))
	ctx := &domain.Context{
		Config: domain.Config{Version: domain.Version, Host: "127.0.0.1", Port: 0, APIToken: token, Debug: debug},
		Logger: logger,
	}
	if c == nil {
		c = &fakeCLI{result: okResult("")}
	}
	if j == nil {
		j = &fakeJournal{result: domain.JournalResult{Success: true}}
	}
	return Create(ctx, c, j), &buf
}

func do(t *testing.T, a *Api, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestHealthIsIdempotent(t *testing.T) {
	a, _ := newTestApi(t, nil, nil, "", false)
	do(t, a, http.MethodGet, "/nope", "")
	do(t, a, http.MethodPost, "/query", "{bad")

	for i := 0; i < 3; i++ {
		rec := do(t, a, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy","message":"Logseq HTTP Server is running"}`, rec.Body.String())
	}
}

func TestVersion(t *testing.T) {
	a, _ := newTestApi(t, nil, nil, "", false)
	rec := do(t, a, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"0.1.0"}`, rec.Body.String())
}

func TestListScenario(t *testing.T) {
	dir := t.TempDir()
	bin := writeScript(t, dir, "logseq", `printf '%s' '[{"name":"g1"}]'`)
	var buf bytes.Buffer
	executor := cli.New(domain.Config{Binary: bin, WorkDir: dir, CommandTimeout: 5 * time.Second}, slog.New(slog.NewTextHandler(&buf, nil)))
	a, _ := newTestApi(t, executor, nil, "", false)

	rec := do(t, a, http.MethodGet, "/list", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"stdout":"[{\"name\":\"g1\"}]","stderr":"","returncode":0,"data":[{"name":"g1"}]}`, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "{\n  \"success\": true,\n  \"stdout\""), rec.Body.String())
}

func TestShowInvokesExecutor(t *testing.T) {
	f := &fakeCLI{result: okResult("graph info")}
	a, _ := newTestApi(t, f, nil, "", false)

	rec := do(t, a, http.MethodGet, "/show?graph=My+Graph", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [][]string{{"show", "My Graph"}}, f.calls)
	assert.Equal(t, true, decode(t, rec)["success"])
}

func TestShowMirrorsReturnCode(t *testing.T) {
	stdout, stderr, code := "", "no such graph", 1
	f := &fakeCLI{
		result: domain.CommandResult{Stdout: &stdout, Stderr: &stderr, ReturnCode: &code, Error: "no such graph"},
		err:    &domain.UpstreamError{Kind: domain.UpstreamFailure, Message: "no such graph"},
	}
	a, _ := newTestApi(t, f, nil, "", false)

	rec := do(t, a, http.MethodGet, "/show?graph=g", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(1), body["returncode"])
	assert.Equal(t, "no such graph", body["error"])
}

func TestShowMissingGraph(t *testing.T) {
	f := &fakeCLI{}
	a, _ := newTestApi(t, f, nil, "", false)

	rec := do(t, a, http.MethodGet, "/show", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Missing required parameter: graph"}`, rec.Body.String())
	assert.Empty(t, f.calls)
}

func TestSearchBuildsDatalog(t *testing.T) {
	f := &fakeCLI{result: okResult("[]")}
	a, _ := newTestApi(t, f, nil, "", false)

	rec := do(t, a, http.MethodGet, `/search?q=Say+%22Hi%22&graph=g1`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.calls, 1)

	call := f.calls[0]
	require.Len(t, call, 4)
	assert.Equal(t, "query", call[0])
	assert.Equal(t, []string{"-g", "g1"}, call[2:])
	assert.Contains(t, call[1], `?name "say \"hi\""`)
	assert.Contains(t, call[1], `?title "Say \"Hi\""`)
}

func TestSearchValidation(t *testing.T) {
	a, _ := newTestApi(t, nil, nil, "", false)

	rec := do(t, a, http.MethodGet, "/search?graph=g1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required parameter: q", decode(t, rec)["error"])

	rec = do(t, a, http.MethodGet, "/search?q=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: graph", decode(t, rec)["error"])
}

func TestQuery(t *testing.T) {
	f := &fakeCLI{result: okResult("[]")}
	a, _ := newTestApi(t, f, nil, "", false)

	rec := do(t, a, http.MethodPost, "/query", `{"graph":"g1","query":"[:find ?b :where [?b :block/name]]"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [][]string{{"query", "[:find ?b :where [?b :block/name]]", "-g", "g1"}}, f.calls)
}

func TestQueryMissingFields(t *testing.T) {
	a, _ := newTestApi(t, nil, nil, "", false)

	rec := do(t, a, http.MethodPost, "/query", `{"graph":"g1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Missing required field: query"}`, rec.Body.String())

	rec = do(t, a, http.MethodPost, "/query", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: graph", decode(t, rec)["error"])
}

func TestInvalidJSONBody(t *testing.T) {
	f := &fakeCLI{}
	a, _ := newTestApi(t, f, nil, "tok", false)

	for _, body := range []string{"{bad", `[]`, `{"graph": 5}`, `{} {}`} {
		rec := do(t, a, http.MethodPost, "/query", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Invalid JSON in request body", decode(t, rec)["error"])
	}
	assert.Empty(t, f.calls)
}

func TestInvalidJSONOnUnknownPath(t *testing.T) {
	a, _ := newTestApi(t, nil, nil, "", false)

	rec := do(t, a, http.MethodPost, "/nope", "{bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON in request body", decode(t, rec)["error"])

	rec = do(t, a, http.MethodPost, "/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOversizedBody(t *testing.T) {
	f := &fakeCLI{}
	a, _ := newTestApi(t, f, nil, "tok", false)

	body := `{"content":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := do(t, a, http.MethodPost, "/append", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "Request body too large")
	assert.Empty(t, f.recorded())
}

func TestAppendEndpointsRequireToken(t *testing.T) {
	for _, path := range []string{"/append-to-journal", "/append"} {
		f := &fakeCLI{}
		j := &fakeJournal{}
		a, _ := newTestApi(t, f, j, "", false)

		rec := do(t, a, http.MethodPost, path, `{"content":"hello"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, decode(t, rec)["error"], "Missing API token")
		assert.Empty(t, f.calls)
		assert.Empty(t, j.content)
	}
}

func TestAppendEndpointsRequireContent(t *testing.T) {
	for _, path := range []string{"/append-to-journal", "/append"} {
		a, _ := newTestApi(t, nil, nil, "tok", false)
		rec := do(t, a, http.MethodPost, path, `{"token":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Missing required field: content", decode(t, rec)["error"])
	}
}

func TestAppendToJournal(t *testing.T) {
	j := &fakeJournal{result: domain.JournalResult{Success: true, Data: json.RawMessage(`{"uuid":"u1"}`)}}
	a, _ := newTestApi(t, nil, j, "server-token", false)

	rec := do(t, a, http.MethodPost, "/append-to-journal", `{"content":"note"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Content appended to journal successfully","data":{"uuid":"u1"}}`, rec.Body.String())
	assert.Equal(t, "note", j.content)
	assert.Equal(t, "server-token", j.token)

	do(t, a, http.MethodPost, "/append-to-journal", `{"content":"note","token":"body-token"}`)
	assert.Equal(t, "body-token", j.token)
}

func TestAppendToJournalFailure(t *testing.T) {
	msg := "Cannot connect to Logseq. Make sure Logseq is running with HTTP API Server enabled."
	j := &fakeJournal{
		result: domain.JournalResult{Error: msg},
		err:    &domain.UpstreamError{Kind: domain.UpstreamUnavailable, Message: msg},
	}
	a, _ := newTestApi(t, nil, j, "tok", false)

	rec := do(t, a, http.MethodPost, "/append-to-journal", `{"content":"note"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"`+msg+`"}`, rec.Body.String())
}

func TestAppend(t *testing.T) {
	f := &fakeCLI{}
	a, _ := newTestApi(t, f, nil, "", false)

	rec := do(t, a, http.MethodPost, "/append", `{"content":"note","token":"t1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Content appended successfully"}`, rec.Body.String())
	assert.Equal(t, [][]string{{"append", "note", "-a", "t1"}}, f.calls)

	f.appendErr = &domain.UpstreamError{Kind: domain.UpstreamFailure, Message: "not running"}
	rec = do(t, a, http.MethodPost, "/append", `{"content":"note","token":"t1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "not running", decode(t, rec)["error"])
}

func TestOptionsPreflight(t *testing.T) {
	for _, path := range []string{"/query", "/anything/at/all"} {
		a, _ := newTestApi(t, nil, nil, "", false)
		rec := do(t, a, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestUnknownEndpoint(t *testing.T) {
	a, _ := newTestApi(t, nil, nil, "", false)

	rec := do(t, a, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Unknown endpoint: /nope"}`, rec.Body.String())

	rec = do(t, a, http.MethodGet, "/query", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Unknown endpoint: /query", decode(t, rec)["error"])

	rec = do(t, a, http.MethodPost, "/list", "{}")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSHeadersOnEveryResponse(t *testing.T) {
	a, _ := newTestApi(t, nil, nil, "", false)
	for _, rec := range []*httptest.ResponseRecorder{
		do(t, a, http.MethodGet, "/health", ""),
		do(t, a, http.MethodGet, "/show", ""),
		do(t, a, http.MethodPost, "/query", "{bad"),
		do(t, a, http.MethodGet, "/missing", ""),
	} {
		h := rec.Header()
		assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", h.Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "application/json", h.Get("Content-Type"))
		assert.NotEmpty(t, h.Get(RequestIDHeader))
	}
}

func TestPanicIsRecovered(t *testing.T) {
	a, _ := newTestApi(t, &fakeCLI{panics: true}, nil, "", false)

	rec := do(t, a, http.MethodGet, "/list", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = do(t, a, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// The outbound lock was released by the panicking call.
	rec = do(t, a, http.MethodGet, "/list", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTimeoutWithinBound(t *testing.T) {
	dir := t.TempDir()
	bin := writeScript(t, dir, "logseq", `exec sleep 10`)
	executor := cli.New(domain.Config{Binary: bin, WorkDir: dir, CommandTimeout: 300 * time.Millisecond}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	a, _ := newTestApi(t, executor, nil, "", false)

	start := time.Now()
	rec := do(t, a, http.MethodGet, "/list", "")
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "timed out")
}

func TestPrivacyOfQueryText(t *testing.T) {
	dir := t.TempDir()
	bin := writeScript(t, dir, "logseq", `echo '[]'`)
	jet := writeScript(t, dir, "jet", `cat`)
	cfg := domain.Config{Binary: bin, Converter: jet, WorkDir: dir, CommandTimeout: 5 * time.Second}

	for _, debug := range []bool{false, true} {
		var buf bytes.Buffer
		logger := slog.New(logging.NewPrivacyHandler(slog.NewTextHandler(&buf, nil), debug))
		a, _ := newTestApi(t, cli.New(cfg, logger), nil, "", debug)
		a.logger = logger
		a.handler = a.routes()

		do(t, a, http.MethodGet, "/search?q=zebra-secret&graph=g1", "")
		do(t, a, http.MethodPost, "/query", `{"graph":"g1","query":"[:find ?giraffe-secret]"}`)
		do(t, a, http.MethodGet, "/health", "")

		out := buf.String()
		assert.Contains(t, out, "GET /health")
		if debug {
			assert.Contains(t, out, "zebra-secret")
			assert.Contains(t, out, "giraffe-secret")
		} else {
			assert.NotContains(t, out, "zebra-secret")
			assert.NotContains(t, out, "giraffe-secret")
		}
	}
}

func TestResponsesDoNotEscapeHTML(t *testing.T) {
	f := &fakeCLI{result: okResult("<b>&</b>")}
	a, _ := newTestApi(t, f, nil, "", false)

	rec := do(t, a, http.MethodGet, "/list", "")
	assert.Contains(t, rec.Body.String(), `"stdout": "<b>&</b>"`)
}
