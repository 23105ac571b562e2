// internal/github/client_test.go
package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "snapdocs/internal/errors"
	"snapdocs/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// setupTestClient creates a httptest server and a static-token client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// No token: we are not authenticating to the real GitHub.
	client, err := NewClient(Options{BaseURL: server.URL + "/api/v3"}, testLogger())
	require.NoError(t, err)
	return client
}

const pullsPath = "/api/v3/repos/acme/widgets/pulls"

func TestClient_ListOpenPullRequests_Retry(t *testing.T) {
	okBody := `[{"number": 7, "title": "Add cache", "state": "open", "user": {"login": "octocat"}, "head": {"sha": "abc123"}}]`

	t.Run("succeeds on first try", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			assert.Equal(t, pullsPath, r.URL.Path)
			assert.Equal(t, "open", r.URL.Query().Get("state"))
			fmt.Fprintln(w, okBody)
		}))

		prs, err := client.ListOpenPullRequests(context.Background(), "acme", "widgets", 0)

		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
		assert.Equal(t, []model.RemotePullRequest{{Number: 7, Title: "Add cache", Author: "octocat", State: "open", HeadSHA: "abc123"}}, prs)
	})

	t.Run("retries on 503 server error and succeeds", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable) // Fail first time
				return
			}
			fmt.Fprintln(w, okBody)
		}))

		_, err := client.ListOpenPullRequests(context.Background(), "acme", "widgets", 0)

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount), "should have made two requests")
	})

	t.Run("waits for rate limit reset", func(t *testing.T) {
		var requestCount int32
		resetTime := time.Now().Add(time.Second)
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.Header().Set("X-RateLimit-Limit", "5000")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprintln(w, `{"message": "API rate limit exceeded for installation ID 1."}`)
				return
			}
			fmt.Fprintln(w, okBody)
		}))

		startTime := time.Now()
		_, err := client.ListOpenPullRequests(context.Background(), "acme", "widgets", 0)
		elapsed := time.Since(startTime)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, baseBackoff, "client should wait for rate limit reset")
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("fails after max retries on persistent server error", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := client.ListOpenPullRequests(context.Background(), "acme", "widgets", 0)

		require.Error(t, err)
		var ghErr *github.ErrorResponse
		require.ErrorAs(t, err, &ghErr)
		assert.Equal(t, http.StatusInternalServerError, ghErr.Response.StatusCode)
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&requestCount))
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"message": "Not Found"}`)
		}))

		_, err := client.ListOpenPullRequests(context.Background(), "acme", "widgets", 0)

		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})
}

func TestClient_GetPullRequestFiles(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pullsPath+"/7/files", r.URL.Path)
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintln(w, `[{"filename": "docs/README.md", "status": "modified", "additions": 1, "deletions": 1, "patch": "@@ -1 +1 @@"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s%s/7/files?page=2>; rel="next"`, r.Host, pullsPath))
		fmt.Fprintln(w, `[{"filename": "src/cache.go", "status": "added", "additions": 40, "deletions": 0, "patch": "@@ -0,0 +1,40 @@"}]`)
	}))

	files, err := client.GetPullRequestFiles(context.Background(), "acme", "widgets", 7, 0)

	require.NoError(t, err)
	assert.Equal(t, []model.PullRequestFile{
		{Path: "src/cache.go", Status: "added", Additions: 40, Patch: "@@ -0,0 +1,40 @@"},
		{Path: "docs/README.md", Status: "modified", Additions: 1, Deletions: 1, Patch: "@@ -1 +1 @@"},
	}, files)
}

func TestClient_UpsertComment(t *testing.T) {
	commentsPath := "/api/v3/repos/acme/widgets/issues/7/comments"

	t.Run("creates a comment when none carries the marker", func(t *testing.T) {
		var created string
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == commentsPath:
				fmt.Fprintln(w, `[{"id": 1, "body": "LGTM"}]`)
			case r.Method == http.MethodPost && r.URL.Path == commentsPath:
				var c github.IssueComment
				require.NoError(t, json.NewDecoder(r.Body).Decode(&c))
				created = c.GetBody()
				w.WriteHeader(http.StatusCreated)
				fmt.Fprintln(w, `{"id": 2}`)
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusTeapot)
			}
		}))

		err := client.UpsertComment(context.Background(), "acme", "widgets", 7, "## Summary", 0)

		require.NoError(t, err)
		assert.Equal(t, CommentMarker+"\n## Summary", created)
	})

	t.Run("edits the marked comment", func(t *testing.T) {
		var edited int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == commentsPath:
				fmt.Fprintf(w, `[{"id": 1, "body": "LGTM"}, {"id": 99, "body": %q}]`+"\n", CommentMarker+"\nold")
			case r.Method == http.MethodPatch && r.URL.Path == "/api/v3/repos/acme/widgets/issues/comments/99":
				atomic.AddInt32(&edited, 1)
				body, _ := io.ReadAll(r.Body)
				assert.Contains(t, string(body), "new summary")
				fmt.Fprintln(w, `{"id": 99}`)
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusTeapot)
			}
		}))

		err := client.UpsertComment(context.Background(), "acme", "widgets", 7, CommentMarker+"\nnew summary", 0)

		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&edited))
	})
}

func testPrivateKey(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func TestClient_InstallationCredentials(t *testing.T) {
	var tokenRequests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/app/installations/555/access_tokens":
			atomic.AddInt32(&tokenRequests, 1)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"token": "ghs_installation", "expires_at": %q}`+"\n", time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
		case "/api/v3/installation/repositories":
			assert.Contains(t, r.Header.Get("Authorization"), "ghs_installation")
			fmt.Fprintln(w, `{"total_count": 2, "repositories": [
				{"id": 1, "name": "widgets", "full_name": "acme/widgets", "owner": {"login": "acme"}, "private": true, "default_branch": "main"},
				{"id": 2, "full_name": "acme/gadgets"}
			]}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{AppID: 42, PrivateKey: testPrivateKey(t), BaseURL: server.URL + "/api/v3"}, testLogger())
	require.NoError(t, err)

	t.Run("lists repositories with the installation token", func(t *testing.T) {
		repos, err := client.ListInstallationRepositories(context.Background(), 555)
		require.NoError(t, err)
		assert.Equal(t, []model.RemoteRepository{
			{GithubRepoID: 1, Owner: "acme", Name: "widgets", FullName: "acme/widgets", Private: true, DefaultBranch: "main"},
			{GithubRepoID: 2, Owner: "acme", Name: "gadgets", FullName: "acme/gadgets"},
		}, repos)

		_, err = client.ListInstallationRepositories(context.Background(), 555)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&tokenRequests), "installation token is cached")
	})

	t.Run("requires an installation id", func(t *testing.T) {
		_, err := client.ListInstallationRepositories(context.Background(), 0)
		assert.Error(t, err)
	})
}

func TestNewClient_InvalidKey(t *testing.T) {
	_, err := NewClient(Options{AppID: 42, PrivateKey: []byte("not a key")}, testLogger())
	assert.Error(t, err)
}

func TestSplitFullName(t *testing.T) {
	owner, name, err := splitFullName("acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", name)

	for _, bad := range []string{"", "acme", "acme/", "/widgets", "a/b/c"} {
		_, _, err := splitFullName(bad)
		var formatErr *custom_errors.ErrInvalidRepoFormat
		assert.ErrorAs(t, err, &formatErr, bad)
	}
}
