package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapdocs/internal/database"
	"snapdocs/internal/database/databasetest"
	"snapdocs/internal/model"
	"snapdocs/internal/queue"
	"snapdocs/internal/webhook"
)

const testSecret = "It's a Secret to Everybody"

type fakeQueue struct {
	mu    sync.Mutex
	names []string
	err   error
	stats map[string]queue.Counts
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, _ any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.names = append(q.names, name)
	return "job-42", nil
}

func (q *fakeQueue) Stats(context.Context) (map[string]queue.Counts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats, q.err
}

func (q *fakeQueue) jobNames() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.names...)
}

func (q *fakeQueue) fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

type fakeSyncer struct {
	mu        sync.Mutex
	stale     bool
	triggered []string
}

func (s *fakeSyncer) Stale(database.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

func (s *fakeSyncer) TriggerIfStale(_ context.Context, user database.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stale {
		return false
	}
	s.triggered = append(s.triggered, user.ID)
	return true
}

func (s *fakeSyncer) triggeredUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.triggered...)
}

type testServer struct {
	server *httptest.Server
	store  *databasetest.Store
	queue  *fakeQueue
	syncer *fakeSyncer
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ts := &testServer{
		store:  databasetest.New(),
		queue:  &fakeQueue{},
		syncer: &fakeSyncer{},
	}
	router := NewRouter(Dependencies{
		DB:       ts.store,
		Verifier: webhook.NewVerifier(testSecret, logger),
		Events:   webhook.NewRouter(ts.store, ts.queue, logger),
		Syncer:   ts.syncer,
		Queue:    ts.queue,
	}, logger)
	ts.server = httptest.NewServer(router)
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func openedBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"action": "opened",
		"number": 7,
		"pull_request": map[string]any{
			"id":     9001,
			"number": 7,
			"title":  "Add widget cache",
			"user":   map[string]any{"login": "octocat", "id": 1},
			"head":   map[string]any{"sha": "abc123", "ref": "feature/cache"},
			"base":   map[string]any{"ref": "main"},
		},
		"repository": map[string]any{
			"id":        42,
			"name":      "widgets",
			"full_name": "acme/widgets",
			"owner":     map[string]any{"login": "acme"},
		},
		"installation": map[string]any{"id": 555},
	})
	require.NoError(t, err)
	return body
}

func TestHealthCheck(t *testing.T) {
	ts := setupServer(t)
	resp, body := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupServer(t)
	resp, err := http.Get(ts.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGithubWebhook(t *testing.T) {
	t.Run("valid delivery is routed", func(t *testing.T) {
		ts := setupServer(t)
		_, err := ts.store.UpsertRepository(context.Background(), database.UpsertRepositoryParams{Owner: "acme", Name: "widgets", InstallationID: 555})
		require.NoError(t, err)

		payload := openedBody(t)
		resp, body := ts.do(t, http.MethodPost, "/webhooks/github", payload, map[string]string{
			headerSignature: webhook.Sign([]byte(testSecret), payload),
			headerEvent:     "pull_request",
			headerDelivery:  "delivery-1",
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "PR synced and summary queued", body["message"])
		assert.Equal(t, []string{model.JobGenerateSummary}, ts.queue.jobNames())

		_, prs, _ := ts.store.Snapshot()
		require.Len(t, prs, 1)
		assert.Equal(t, model.StateOpen, prs[0].State)
	})

	t.Run("invalid signature is rejected with 200", func(t *testing.T) {
		ts := setupServer(t)
		payload := openedBody(t)

		resp, body := ts.do(t, http.MethodPost, "/webhooks/github", payload, map[string]string{
			headerSignature: webhook.Sign([]byte("wrong secret"), payload),
			headerEvent:     "pull_request",
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "invalid signature", body["message"])
		assert.Empty(t, ts.queue.jobNames())
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		ts := setupServer(t)
		resp, body := ts.do(t, http.MethodPost, "/webhooks/github", openedBody(t), map[string]string{headerEvent: "pull_request"})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "invalid signature", body["message"])
	})

	t.Run("delivery without a pull request object answers 200", func(t *testing.T) {
		ts := setupServer(t)
		payload := []byte(`{"action":"opened","number":1,"repository":{"id":42,"name":"widgets","full_name":"acme/widgets","owner":{"login":"acme"}}}`)

		resp, body := ts.do(t, http.MethodPost, "/webhooks/github", payload, map[string]string{
			headerSignature: webhook.Sign([]byte(testSecret), payload),
			headerEvent:     "pull_request",
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "invalid payload", body["message"])
		assert.Empty(t, ts.queue.jobNames())
	})

	t.Run("internal errors still answer 200", func(t *testing.T) {
		ts := setupServer(t)
		ts.store.Fail = func(string) error { return errors.New("connection reset") }
		payload := openedBody(t)

		resp, body := ts.do(t, http.MethodPost, "/webhooks/github", payload, map[string]string{
			headerSignature: webhook.Sign([]byte(testSecret), payload),
			headerEvent:     "pull_request",
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "internal error", body["message"])
	})
}

func TestUsers(t *testing.T) {
	t.Run("upsert then link installation queues a sync", func(t *testing.T) {
		ts := setupServer(t)

		resp, body := ts.do(t, http.MethodPut, "/v1/users/user-1", []byte(`{"email":"dev@acme.test"}`), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "dev@acme.test", body["email"])

		resp, _ = ts.do(t, http.MethodPut, "/v1/users/user-1/installation", []byte(`{"installationId":555}`), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{model.JobSyncRepositories}, ts.queue.jobNames())

		user, err := ts.store.GetUser(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(555), user.InstallationID.Int64)

		resp, _ = ts.do(t, http.MethodDelete, "/v1/users/user-1/installation", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		user, err = ts.store.GetUser(context.Background(), "user-1")
		require.NoError(t, err)
		assert.False(t, user.InstallationID.Valid)
	})

	t.Run("bad bodies are rejected", func(t *testing.T) {
		ts := setupServer(t)
		resp, _ := ts.do(t, http.MethodPut, "/v1/users/user-1", []byte(`{}`), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = ts.do(t, http.MethodPut, "/v1/users/user-1/installation", []byte(`{"installationId":0}`), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown user is 404", func(t *testing.T) {
		ts := setupServer(t)
		for _, path := range []string{"/v1/users/ghost/repositories", "/v1/users/ghost/stats", "/v1/users/ghost/sync-status"} {
			resp, _ := ts.do(t, http.MethodGet, path, nil, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		}
		resp, _ := ts.do(t, http.MethodPut, "/v1/users/ghost/installation", []byte(`{"installationId":1}`), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestReadsTriggerStaleSync(t *testing.T) {
	ts := setupServer(t)
	ts.syncer.stale = true
	ts.store.PutUser(database.User{ID: "user-1", InstallationID: database.Int8(555)})
	repo, err := ts.store.UpsertRepository(context.Background(), database.UpsertRepositoryParams{
		Owner: "acme", Name: "widgets", InstallationID: 555, UserID: database.Text("user-1"),
	})
	require.NoError(t, err)
	_, err = ts.store.UpsertPullRequest(context.Background(), database.UpsertPullRequestParams{
		RepositoryID: repo.ID, Number: 7, Title: "Add widget cache", State: model.StateOpen,
	})
	require.NoError(t, err)

	resp, body := ts.do(t, http.MethodGet, "/v1/users/user-1/repositories", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["syncQueued"])
	assert.Len(t, body["repositories"], 1)

	resp, body = ts.do(t, http.MethodGet, "/v1/users/user-1/pull-requests?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["pullRequests"], 1)

	resp, body = ts.do(t, http.MethodGet, "/v1/users/user-1/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["totalRepos"])
	assert.Equal(t, float64(1), body["totalPrs"])
	assert.Equal(t, float64(0), body["totalDocs"])

	resp, body = ts.do(t, http.MethodGet, "/v1/users/user-1/sync-status", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["isStale"])
	assert.Nil(t, body["lastSyncAt"])

	assert.Equal(t, []string{"user-1", "user-1", "user-1", "user-1"}, ts.syncer.triggeredUsers())
}

func TestListPullRequests_InvalidLimit(t *testing.T) {
	ts := setupServer(t)
	for _, limit := range []string{"0", "101", "abc"} {
		resp, body := ts.do(t, http.MethodGet, "/v1/users/user-1/pull-requests?limit="+limit, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.True(t, strings.HasPrefix(body["error"].(string), "Invalid 'limit'"))
	}
}

func TestTriggerSync(t *testing.T) {
	ts := setupServer(t)
	ts.store.PutUser(database.User{ID: "user-1", InstallationID: database.Int8(555)})
	ts.store.PutUser(database.User{ID: "user-2", LastSyncAt: database.Timestamptz(time.Now())})

	resp, body := ts.do(t, http.MethodPost, "/v1/users/user-1/sync", nil, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "job-42", body["jobId"])

	resp, _ = ts.do(t, http.MethodPost, "/v1/users/user-2/sync", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	ts.queue.fail(errors.New("queue unavailable"))
	resp, _ = ts.do(t, http.MethodPost, "/v1/users/user-1/sync", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestQueueStats(t *testing.T) {
	ts := setupServer(t)
	ts.queue.stats = map[string]queue.Counts{
		model.QueueSyncRepositories: {Waiting: 2, Completed: 5},
		model.QueueGenerateDocs:     {Active: 1, Failed: 3},
	}

	resp, body := ts.do(t, http.MethodGet, "/v1/queues/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	syncCounts := body[model.QueueSyncRepositories].(map[string]any)
	assert.Equal(t, float64(2), syncCounts["waiting"])
	docs := body[model.QueueGenerateDocs].(map[string]any)
	assert.Equal(t, float64(3), docs["failed"])
}
