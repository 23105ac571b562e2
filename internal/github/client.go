// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "snapdocs/internal/errors"
	"snapdocs/internal/model"
)

// CommentMarker identifies the summary comment so later runs edit it in place.
const CommentMarker = "<!-- snapdocs:summary -->"

const (
	maxRetries       = 3
	baseBackoff      = 200 * time.Millisecond
	maxBackoff       = 5 * time.Second
	maxRateLimitWait = time.Minute
	perPage          = 100
)

// Options selects how the client authenticates. App credentials take precedence
// over a static token.
type Options struct {
	AppID      int64
	PrivateKey []byte
	Token      string
	// BaseURL is the API root of a GitHub Enterprise Server, e.g. https://ghe.example.com/api/v3.
	BaseURL string
}

// Client is a wrapper around the go-github client that resolves one
// authenticated client per installation.
type Client struct {
	apps    *ghinstallation.AppsTransport
	static  *github.Client
	baseURL string
	logger  *slog.Logger

	mu            sync.Mutex
	installations map[int64]*github.Client
}

// NewClient creates and configures a new Client instance.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	c := &Client{
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		logger:        logger,
		installations: map[int64]*github.Client{},
	}

	if opts.AppID != 0 && len(opts.PrivateKey) > 0 {
		atr, err := ghinstallation.NewAppsTransport(http.DefaultTransport, opts.AppID, opts.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("creating GitHub App transport: %w", err)
		}
		if c.baseURL != "" {
			atr.BaseURL = c.baseURL
		}
		c.apps = atr
		return c, nil
	}

	httpClient := http.DefaultClient
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	gh, err := c.wrap(httpClient)
	if err != nil {
		return nil, err
	}
	c.static = gh
	return c, nil
}

func (c *Client) wrap(httpClient *http.Client) (*github.Client, error) {
	gh := github.NewClient(httpClient)
	if c.baseURL == "" {
		return gh, nil
	}
	return gh.WithEnterpriseURLs(c.baseURL, c.baseURL)
}

// forInstallation returns the client authenticated as installationID. Without
// App credentials every installation shares the static-token client.
func (c *Client) forInstallation(installationID int64) (*github.Client, error) {
	if c.apps == nil {
		return c.static, nil
	}
	if installationID == 0 {
		return nil, errors.New("installation id is required with GitHub App credentials")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gh, ok := c.installations[installationID]; ok {
		return gh, nil
	}
	itr := ghinstallation.NewFromAppsTransport(c.apps, installationID)
	if c.baseURL != "" {
		itr.BaseURL = c.baseURL
	}
	gh, err := c.wrap(&http.Client{Transport: itr})
	if err != nil {
		return nil, err
	}
	c.installations[installationID] = gh
	return gh, nil
}

// ListInstallationRepositories lists every repository the installation can access.
func (c *Client) ListInstallationRepositories(ctx context.Context, installationID int64) ([]model.RemoteRepository, error) {
	gh, err := c.forInstallation(installationID)
	if err != nil {
		return nil, err
	}

	var out []model.RemoteRepository
	add := func(repos []*github.Repository) {
		for _, r := range repos {
			rr, err := toRemoteRepository(r)
			if err != nil {
				c.logger.Warn("Skipping repository with unexpected name", "error", err)
				continue
			}
			out = append(out, rr)
		}
	}

	if c.apps == nil {
		opts := &github.RepositoryListByAuthenticatedUserOptions{ListOptions: github.ListOptions{PerPage: perPage}}
		for {
			c.logger.Debug("Fetching user repositories page", "page", opts.Page)
			repos, resp, err := withRetry(ctx, c.logger, "list_user_repos", func() ([]*github.Repository, *github.Response, error) {
				return gh.Repositories.ListByAuthenticatedUser(ctx, opts)
			})
			if err != nil {
				return nil, err
			}
			add(repos)
			if resp.NextPage == 0 {
				return out, nil
			}
			opts.Page = resp.NextPage
		}
	}

	opts := &github.ListOptions{PerPage: perPage}
	for {
		c.logger.Debug("Fetching installation repositories page", "installation_id", installationID, "page", opts.Page)
		list, resp, err := withRetry(ctx, c.logger, "list_installation_repos", func() (*github.ListRepositories, *github.Response, error) {
			return gh.Apps.ListRepos(ctx, opts)
		})
		if err != nil {
			return nil, err
		}
		add(list.Repositories)
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListOpenPullRequests fetches all open pull requests of a repository.
func (c *Client) ListOpenPullRequests(ctx context.Context, owner, name string, installationID int64) ([]model.RemotePullRequest, error) {
	gh, err := c.forInstallation(installationID)
	if err != nil {
		return nil, err
	}

	var out []model.RemotePullRequest
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		c.logger.Debug("Fetching pull requests page", "owner", owner, "repo", name, "page", opts.Page)
		prs, resp, err := withRetry(ctx, c.logger, "list_pull_requests", func() ([]*github.PullRequest, *github.Response, error) {
			return gh.PullRequests.List(ctx, owner, name, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, pr := range prs {
			out = append(out, toRemotePullRequest(pr))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetPullRequestFiles fetches the changed files of a pull request with their patches.
func (c *Client) GetPullRequestFiles(ctx context.Context, owner, name string, number int, installationID int64) ([]model.PullRequestFile, error) {
	gh, err := c.forInstallation(installationID)
	if err != nil {
		return nil, err
	}

	var out []model.PullRequestFile
	opts := &github.ListOptions{PerPage: perPage}
	for {
		files, resp, err := withRetry(ctx, c.logger, "list_pull_request_files", func() ([]*github.CommitFile, *github.Response, error) {
			return gh.PullRequests.ListFiles(ctx, owner, name, number, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			out = append(out, toPullRequestFile(f))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// UpsertComment edits the issue comment carrying CommentMarker, or creates one.
// The marker is prepended to body when missing.
func (c *Client) UpsertComment(ctx context.Context, owner, name string, number int, body string, installationID int64) error {
	gh, err := c.forInstallation(installationID)
	if err != nil {
		return err
	}
	if !strings.Contains(body, CommentMarker) {
		body = CommentMarker + "\n" + body
	}

	existing, err := c.findMarkedComment(ctx, gh, owner, name, number)
	if err != nil {
		return err
	}

	comment := &github.IssueComment{Body: github.String(body)}
	if existing != nil {
		_, _, err = withRetry(ctx, c.logger, "edit_comment", func() (*github.IssueComment, *github.Response, error) {
			return gh.Issues.EditComment(ctx, owner, name, existing.GetID(), comment)
		})
		return err
	}
	_, _, err = withRetry(ctx, c.logger, "create_comment", func() (*github.IssueComment, *github.Response, error) {
		return gh.Issues.CreateComment(ctx, owner, name, number, comment)
	})
	return err
}

func (c *Client) findMarkedComment(ctx context.Context, gh *github.Client, owner, name string, number int) (*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := withRetry(ctx, c.logger, "list_comments", func() ([]*github.IssueComment, *github.Response, error) {
			return gh.Issues.ListComments(ctx, owner, name, number, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, cm := range comments {
			if strings.Contains(cm.GetBody(), CommentMarker) {
				return cm, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// withRetry retries fn on rate limiting and 5xx responses, at most maxRetries
// requests in total.
func withRetry[T any](ctx context.Context, logger *slog.Logger, op string, fn func() (T, *github.Response, error)) (T, *github.Response, error) {
	var (
		result T
		resp   *github.Response
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, resp, err = fn()
		if err == nil {
			return result, resp, nil
		}
		wait, retryable := retryDelay(err, attempt)
		if !retryable || attempt >= maxRetries {
			return result, resp, err
		}

		logger.Warn("GitHub request failed, retrying",
			"operation", op,
			"attempt", attempt,
			"max_retries", maxRetries,
			"backoff", wait.String(),
			"error", err)

		select {
		case <-ctx.Done():
			return result, resp, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryDelay(err error, attempt int) (time.Duration, bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time)
		if wait > maxRateLimitWait {
			return 0, false
		}
		return max(wait, baseBackoff), true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		wait := abuseErr.GetRetryAfter()
		if wait > maxRateLimitWait {
			return 0, false
		}
		return max(wait, baseBackoff), true
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode >= http.StatusInternalServerError {
		return min(baseBackoff<<(attempt-1), maxBackoff), true
	}
	return 0, false
}

// toRemoteRepository translates a github.Repository object to our internal model.
func toRemoteRepository(r *github.Repository) (model.RemoteRepository, error) {
	owner, name := r.GetOwner().GetLogin(), r.GetName()
	if owner == "" || name == "" {
		var err error
		owner, name, err = splitFullName(r.GetFullName())
		if err != nil {
			return model.RemoteRepository{}, err
		}
	}
	return model.RemoteRepository{
		GithubRepoID:  r.GetID(),
		Owner:         owner,
		Name:          name,
		FullName:      r.GetFullName(),
		Private:       r.GetPrivate(),
		DefaultBranch: r.GetDefaultBranch(),
	}, nil
}

func splitFullName(full string) (string, string, error) {
	parts := strings.Split(full, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: full}
	}
	return parts[0], parts[1], nil
}

// toRemotePullRequest translates a github.PullRequest object to our internal model.
func toRemotePullRequest(pr *github.PullRequest) model.RemotePullRequest {
	return model.RemotePullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Author:  pr.GetUser().GetLogin(),
		State:   pr.GetState(),
		HeadSHA: pr.GetHead().GetSHA(),
	}
}

func toPullRequestFile(f *github.CommitFile) model.PullRequestFile {
	return model.PullRequestFile{
		Path:      f.GetFilename(),
		Status:    f.GetStatus(),
		Additions: f.GetAdditions(),
		Deletions: f.GetDeletions(),
		Patch:     f.GetPatch(),
	}
}
