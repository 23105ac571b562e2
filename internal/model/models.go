// internal/model/models.go
package model

import (
	"time"
)

// PullRequest states. Reconciliation only ever writes StateOpen.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateMerged = "merged"
)

// RemoteRepository is a repository as listed by the source provider for an installation.
type RemoteRepository struct {
	GithubRepoID  int64
	Owner         string
	Name          string
	FullName      string
	Private       bool
	DefaultBranch string
}

// RemotePullRequest is a pull request as listed by the source provider.
type RemotePullRequest struct {
	Number  int
	Title   string
	Author  string
	State   string
	HeadSHA string
}

// PullRequestFile is one changed file of a pull request.
type PullRequestFile struct {
	Path      string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// FileStats aggregates the changed files of a pull request.
type FileStats struct {
	TotalFiles   int      `json:"totalFiles"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	Added        int      `json:"added"`
	Modified     int      `json:"modified"`
	Removed      int      `json:"removed"`
	Renamed      int      `json:"renamed"`
	TouchedAreas []string `json:"touchedAreas"`
}

// Risk levels reported by a PR summary.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// SummaryResult is the structured result persisted alongside a Documentation summary.
type SummaryResult struct {
	Summary         string     `json:"summary"`
	KeyChanges      []string   `json:"keyChanges"`
	FilesChanged    int        `json:"filesChanged"`
	BreakingChanges bool       `json:"breakingChanges"`
	RiskLevel       string     `json:"riskLevel"`
	FileStats       *FileStats `json:"fileStats,omitempty"`
	GeneratedAt     time.Time  `json:"generatedAt"`
}
