package webhook

import (
	"encoding/json"
	"time"

	"github.com/google/go-github/v62/github"

	custom_errors "snapdocs/internal/errors"
)

// EventPullRequest is the only event type the router acts on.
const EventPullRequest = "pull_request"

// PullRequest actions.
const (
	ActionOpened   = "opened"
	ActionReopened = "reopened"
	ActionClosed   = "closed"
)

// PullRequestEvent is a validated pull_request delivery.
type PullRequestEvent struct {
	Action         string
	Owner          string
	RepoName       string
	RepoFullName   string
	RepoID         int64
	InstallationID int64

	Number   int
	ID       int64
	Title    string
	Body     string
	HTMLURL  string
	Author   string
	AuthorID int64
	HeadSHA  string
	HeadRef  string
	BaseRef  string
	Merged   bool
	MergedAt *time.Time
}

// ParsePullRequestEvent decodes a pull_request payload and checks the fields the
// router depends on.
func ParsePullRequestEvent(body []byte) (*PullRequestEvent, error) {
	parsed, err := github.ParseWebHook(EventPullRequest, body)
	if err != nil {
		return nil, &custom_errors.ErrInvalidPayload{Kind: EventPullRequest, Reason: err.Error()}
	}
	ev, ok := parsed.(*github.PullRequestEvent)
	if !ok {
		return nil, &custom_errors.ErrInvalidPayload{Kind: EventPullRequest, Reason: "unexpected event type"}
	}

	repo := ev.GetRepo()
	pr := ev.GetPullRequest()
	if pr == nil {
		return nil, &custom_errors.ErrInvalidPayload{Kind: EventPullRequest, Reason: "missing pull_request object"}
	}
	out := &PullRequestEvent{
		Action:         ev.GetAction(),
		Owner:          repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		RepoID:         repo.GetID(),
		InstallationID: ev.GetInstallation().GetID(),
		Number:         pr.GetNumber(),
		ID:             pr.GetID(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		HTMLURL:        pr.GetHTMLURL(),
		Author:         pr.GetUser().GetLogin(),
		AuthorID:       pr.GetUser().GetID(),
		HeadSHA:        pr.GetHead().GetSHA(),
		HeadRef:        pr.GetHead().GetRef(),
		BaseRef:        pr.GetBase().GetRef(),
		Merged:         pr.GetMerged(),
	}
	if out.Number == 0 {
		out.Number = ev.GetNumber()
	}
	if mergedAt := pr.GetMergedAt(); !mergedAt.IsZero() {
		t := mergedAt.Time
		out.MergedAt = &t
	}

	switch {
	case out.Action == "":
		return nil, &custom_errors.ErrInvalidPayload{Kind: EventPullRequest, Reason: "missing action"}
	case out.Owner == "" || out.RepoName == "":
		return nil, &custom_errors.ErrInvalidPayload{Kind: EventPullRequest, Reason: "missing repository owner or name"}
	case out.Number <= 0:
		return nil, &custom_errors.ErrInvalidPayload{Kind: EventPullRequest, Reason: "missing pull request number"}
	}
	return out, nil
}

// peekAction extracts the action of any delivery without validating the rest.
func peekAction(body []byte) string {
	var envelope struct {
		Action string `json:"action"`
	}
	_ = json.Unmarshal(body, &envelope)
	return envelope.Action
}
