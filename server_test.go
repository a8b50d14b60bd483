package issuesheet

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exportRecorder struct {
	mu    sync.Mutex
	repos []string
	err   error
}

func (e *exportRecorder) newExporter(_ context.Context, repo string) (*Exporter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.repos = append(e.repos, repo)
	return &Exporter{
		Reader: &fakeReader{issues: []Issue{buildIssue("1"), buildIssue("2")}},
		Writer: &fakeWriter{err: e.err},
	}, nil
}

func (e *exportRecorder) exported() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.repos...)
}

func newTestServer(t *testing.T, rec *exportRecorder, secret string) *Server {
	t.Helper()
	runner := &Runner{NewExporter: rec.newExporter}
	runner.SetLogger(discardLogger())
	s := &Server{
		Runner: runner,
		Jobs: &Jobs{Exports: []Job{
			{Repository: testRepo, SheetURL: testSheet},
			{Repository: testRepo, Types: "issue,pr", SheetURL: testSheet, DeltaUpdate: true},
			{Repository: "org/other", Types: "issue", SheetURL: testSheet},
		}},
		WebhookSecret: secret,
	}
	s.SetLogger(discardLogger())
	s.Init()
	return s
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func TestServerExport(t *testing.T) {
	t.Parallel()

	rec := &exportRecorder{}
	s := newTestServer(t, rec, "")

	w, body := do(t, s, httptest.NewRequest(http.MethodPost, "/export?repository=ORG/repo", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{testRepo, testRepo}, rec.exported())

	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.EqualValues(t, 2, results[0].(map[string]any)["count"])
}

func TestServerExportAll(t *testing.T) {
	t.Parallel()

	rec := &exportRecorder{}
	s := newTestServer(t, rec, "")

	w, _ := do(t, s, httptest.NewRequest(http.MethodPost, "/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{testRepo, testRepo, "org/other"}, rec.exported())
}

func TestServerExportErrors(t *testing.T) {
	t.Parallel()

	rec := &exportRecorder{err: errors.New("sheet is protected")}
	s := newTestServer(t, rec, "")

	w, body := do(t, s, httptest.NewRequest(http.MethodPost, "/export?repository=org/none", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, body["error"], "org/none")

	w, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/export", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w, body = do(t, s, httptest.NewRequest(http.MethodPost, "/export?repository=org/other", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, body["error"], "sheet is protected")
	assert.Len(t, body["results"], 1)
}

func TestServerJobs(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &exportRecorder{}, "")
	w, body := do(t, s, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"org/other", testRepo}, body["repositories"])
	assert.Len(t, body["exports"], 3)
}

func webhookRequest(event, payload string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	return req
}

func sign(req *http.Request, secret, payload string) {
	mac256 := hmac.New(sha256.New, []byte(secret))
	mac256.Write([]byte(payload))
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac256.Sum(nil)))
	mac1 := hmac.New(sha1.New, []byte(secret))
	mac1.Write([]byte(payload))
	req.Header.Set("X-Hub-Signature", "sha1="+hex.EncodeToString(mac1.Sum(nil)))
}

const (
	issuesPayload = `{"action":"opened","issue":{"number":7},"repository":{"full_name":"org/repo"}}`
	prPayload     = `{"action":"closed","number":8,"pull_request":{"number":8},"repository":{"full_name":"org/other"}}`
)

func TestServerWebhookIssues(t *testing.T) {
	t.Parallel()

	rec := &exportRecorder{}
	s := newTestServer(t, rec, "")

	w, body := do(t, s, webhookRequest("issues", issuesPayload))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.EqualValues(t, 2, body["jobs"])

	s.Wait()
	assert.Equal(t, []string{testRepo, testRepo}, rec.exported())
}

func TestServerWebhookPullRequestSkipsIssueJobs(t *testing.T) {
	t.Parallel()

	rec := &exportRecorder{}
	s := newTestServer(t, rec, "")

	w, body := do(t, s, webhookRequest("pull_request", prPayload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no export configured", body["message"])

	s.Wait()
	assert.Empty(t, rec.exported())
}

func TestServerWebhookIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	rec := &exportRecorder{}
	s := newTestServer(t, rec, "")

	w, body := do(t, s, webhookRequest("ping", `{"zen":"Keep it logically awesome."}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["msg"], "ignoring event")
	assert.Empty(t, rec.exported())
}

func TestServerWebhookSecret(t *testing.T) {
	t.Parallel()

	rec := &exportRecorder{}
	s := newTestServer(t, rec, "s3cret")

	w, _ := do(t, s, webhookRequest("issues", issuesPayload))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := webhookRequest("issues", issuesPayload)
	sign(req, "wrong", issuesPayload)
	w, _ = do(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = webhookRequest("issues", issuesPayload)
	sign(req, "s3cret", issuesPayload)
	w, _ = do(t, s, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	s.Wait()
	assert.Equal(t, []string{testRepo, testRepo}, rec.exported())
}
