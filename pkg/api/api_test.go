package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/infixcalc/pkg/store"
)

const sampleBatch = `
description: sample
expressions:
  - id: area
    expression: (2+3)*4
    expect: "20"
  - 1/3
  - id: dz
    expression: 10/0
    expect: DivideByZero
`

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s := store.New()
	return New(s, zerolog.Nop()), s
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	return resp.StatusCode, out
}

func errorStatus(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return e["status"].(string)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateEvaluation(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := doRequest(t, srv, http.MethodPost, "/v1/evaluations", `{"expression":"(2+3)*4"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "evaluations/eval-1", body["name"])
	assert.Equal(t, "SUCCEEDED", body["state"])
	assert.Equal(t, "20", body["result"])
	assert.NotContains(t, body, "error")

	code, body = doRequest(t, srv, http.MethodGet, "/v1/evaluations/eval-1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "(2+3)*4", body["expression"])
}

func TestCreateEvaluationFailures(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := doRequest(t, srv, http.MethodPost, "/v1/evaluations", `{"expression":"10/0"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FAILED", body["state"])
	assert.NotContains(t, body, "result")
	e := body["error"].(map[string]any)
	assert.Equal(t, "DivideByZero", e["tag"])
	assert.Equal(t, "cannot divide by zero!", e["message"])

	code, body = doRequest(t, srv, http.MethodPost, "/v1/evaluations", `{"expression":"1+x"}`)
	require.Equal(t, http.StatusOK, code)
	e = body["error"].(map[string]any)
	assert.Equal(t, "MalformedExpression", e["tag"])
	assert.Equal(t, float64(2), e["pos"])
}

func TestCreateEvaluationInvalidRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := doRequest(t, srv, http.MethodPost, "/v1/evaluations", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", errorStatus(t, body))

	code, body = doRequest(t, srv, http.MethodPost, "/v1/evaluations", `{"expression":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", errorStatus(t, body))
}

func TestListEvaluations(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, e := range []string{"1+1", "2*3", "1/0"} {
		code, _ := doRequest(t, srv, http.MethodPost, "/v1/evaluations", `{"expression":"`+e+`"}`)
		require.Equal(t, http.StatusOK, code)
	}

	code, body := doRequest(t, srv, http.MethodGet, "/v1/evaluations", "")
	require.Equal(t, http.StatusOK, code)
	items := body["evaluations"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, "1+1", items[0].(map[string]any)["expression"])
	assert.Equal(t, "1/0", items[2].(map[string]any)["expression"])
}

func TestGetEvaluationNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := doRequest(t, srv, http.MethodGet, "/v1/evaluations/eval-42", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", errorStatus(t, body))
}

func batchBody(t *testing.T, source string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"sourceContents": source})
	require.NoError(t, err)
	return string(b)
}

func TestBatchLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := doRequest(t, srv, http.MethodPost, "/v1/batches?batchId=sample", batchBody(t, sampleBatch))
	require.Equal(t, http.StatusOK, code, "body: %v", body)
	assert.Equal(t, "batches/sample", body["name"])
	assert.Equal(t, "sample", body["description"])
	assert.Equal(t, "SUCCEEDED", body["state"])
	assert.NotEmpty(t, body["endTime"])
	evs := body["evaluations"].([]any)
	require.Len(t, evs, 3)
	first := evs[0].(map[string]any)
	assert.Equal(t, "area", first["entryId"])
	assert.Equal(t, "20", first["result"])
	assert.Equal(t, true, first["matched"])
	assert.Equal(t, "0.33", evs[1].(map[string]any)["result"])

	code, _ = doRequest(t, srv, http.MethodPost, "/v1/batches?batchId=sample", batchBody(t, sampleBatch))
	assert.Equal(t, http.StatusConflict, code)

	code, body = doRequest(t, srv, http.MethodGet, "/v1/batches/sample", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SUCCEEDED", body["state"])

	code, body = doRequest(t, srv, http.MethodGet, "/v1/batches", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["batches"].([]any), 1)

	code, body = doRequest(t, srv, http.MethodGet, "/v1/batches/sample/evaluations", "")
	require.Equal(t, http.StatusOK, code)
	items := body["evaluations"].([]any)
	require.Len(t, items, 3)
	evName := items[2].(map[string]any)["name"].(string)
	assert.True(t, strings.HasPrefix(evName, "batches/sample/evaluations/"))

	code, body = doRequest(t, srv, http.MethodGet, "/v1/"+evName, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FAILED", body["state"])

	// Batch evaluations are not listed as standalone evaluations.
	_, body = doRequest(t, srv, http.MethodGet, "/v1/evaluations", "")
	assert.Empty(t, body["evaluations"])

	code, _ = doRequest(t, srv, http.MethodDelete, "/v1/batches/sample", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = doRequest(t, srv, http.MethodGet, "/v1/batches/sample", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = doRequest(t, srv, http.MethodGet, "/v1/batches/sample/evaluations", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = doRequest(t, srv, http.MethodDelete, "/v1/batches/sample", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBatchWithMismatchFails(t *testing.T) {
	srv, _ := newTestServer(t)
	src := "expressions:\n  - expression: 1+1\n    expect: \"3\"\n"
	code, body := doRequest(t, srv, http.MethodPost, "/v1/batches?batchId=wrong", batchBody(t, src))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FAILED", body["state"])
	ev := body["evaluations"].([]any)[0].(map[string]any)
	assert.Equal(t, false, ev["matched"])
}

func TestCreateBatchInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing batchId", "/v1/batches", batchBody(t, sampleBatch)},
		{"invalid batchId", "/v1/batches?batchId=Bad", batchBody(t, sampleBatch)},
		{"missing source", "/v1/batches?batchId=x", `{}`},
		{"invalid source", "/v1/batches?batchId=x", batchBody(t, "expressions: 1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := doRequest(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "INVALID_ARGUMENT", errorStatus(t, body))
		})
	}
}

func TestRunBatchCancelledReleasesID(t *testing.T) {
	srv, s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := srv.RunBatch(ctx, "retry", "", sampleBatch)
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.GetBatch("batches/retry")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, s.ListEvaluations("batches/retry"))

	b, evs, err := srv.RunBatch(context.Background(), "retry", "", sampleBatch)
	require.NoError(t, err)
	assert.Equal(t, store.BatchSucceeded, b.State)
	require.NotNil(t, b.EndTime)
	assert.Len(t, evs, 3)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"good.yaml":   sampleBatch,
		"Upper.yml":   "expressions: [2^3]",
		"broken.yaml": "expressions: 1",
		"1bad.json":   `{"expressions": ["1"]}`,
		"notes.txt":   "ignored",
		"other.json":  `{"expressions": ["8-3-2"]}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	srv, s := newTestServer(t)
	require.NoError(t, srv.LoadDir(dir))

	var names []string
	for _, b := range s.ListBatches() {
		names = append(names, b.Name)
	}
	assert.ElementsMatch(t, []string{"batches/good", "batches/upper", "batches/other"}, names)

	evs := s.ListEvaluations("batches/other")
	require.Len(t, evs, 1)
	assert.Equal(t, "3", evs[0].Result)

	assert.Error(t, srv.LoadDir(filepath.Join(dir, "missing")))
}
