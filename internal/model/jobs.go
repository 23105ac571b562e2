package model

import (
	"fmt"
	"time"
)

// Queue and job names.
const (
	QueueSyncRepositories = "syncRepositories"
	QueueGenerateDocs     = "generateDocs"

	JobSyncRepositories = "syncRepositories"
	JobGenerateSummary  = "generateSummary"
	JobGenerateDocs     = "generateDocs"
)

// QueueFor returns the logical queue a job name is carried on.
// generateSummary shares the generateDocs queue.
func QueueFor(jobName string) (string, error) {
	switch jobName {
	case JobSyncRepositories:
		return QueueSyncRepositories, nil
	case JobGenerateSummary, JobGenerateDocs:
		return QueueGenerateDocs, nil
	default:
		return "", fmt.Errorf("unknown job name %q", jobName)
	}
}

// SyncRepositoriesPayload triggers a full reconciliation for one user.
type SyncRepositoriesPayload struct {
	UserID string `json:"userId"`
}

func (p SyncRepositoriesPayload) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	return nil
}

// GenerateSummaryPayload carries identifiers only; the handler re-fetches state.
type GenerateSummaryPayload struct {
	PullRequestID  int64  `json:"prId"`
	Owner          string `json:"owner"`
	RepoName       string `json:"repoName"`
	Number         int    `json:"number"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	InstallationID int64  `json:"installationId"`
}

func (p GenerateSummaryPayload) Validate() error {
	switch {
	case p.PullRequestID <= 0:
		return fmt.Errorf("prId is required")
	case p.Owner == "" || p.RepoName == "":
		return fmt.Errorf("owner and repoName are required")
	case p.Number <= 0:
		return fmt.Errorf("number must be positive")
	}
	return nil
}

// GenerateDocsPayload is a denormalized snapshot of the merge webhook.
type GenerateDocsPayload struct {
	Repository   RepositorySnapshot   `json:"repository"`
	Installation InstallationSnapshot `json:"installation"`
	PullRequest  PullRequestSnapshot  `json:"pullRequest"`
	Timestamp    time.Time            `json:"timestamp"`
}

func (p GenerateDocsPayload) Validate() error {
	switch {
	case p.Repository.Owner == "" || p.Repository.Name == "":
		return fmt.Errorf("repository owner and name are required")
	case p.PullRequest.Number <= 0:
		return fmt.Errorf("pullRequest.number must be positive")
	}
	return nil
}

type RepositorySnapshot struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	FullName string `json:"full_name"`
}

type InstallationSnapshot struct {
	ID int64 `json:"id"`
}

type PullRequestSnapshot struct {
	ID       int64      `json:"id"`
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	Body     string     `json:"body,omitempty"`
	HTMLURL  string     `json:"html_url,omitempty"`
	Merged   bool       `json:"merged"`
	MergedAt *time.Time `json:"merged_at,omitempty"`
	Author   string     `json:"author"`
	AuthorID int64      `json:"author_id,omitempty"`
	SHA      string     `json:"sha"`
	Ref      string     `json:"ref,omitempty"`
	BaseRef  string     `json:"base_ref,omitempty"`
}
