// Package docs turns pull request diffs into generated documentation and summaries.
package docs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"snapdocs/internal/aiguard"
	"snapdocs/internal/database"
	custom_errors "snapdocs/internal/errors"
	"snapdocs/internal/model"
)

// Store is the slice of database.Querier the orchestrator uses.
type Store interface {
	GetRepositoryByOwnerAndName(ctx context.Context, arg database.GetRepositoryByOwnerAndNameParams) (database.Repository, error)
	GetPullRequest(ctx context.Context, id int64) (database.PullRequest, error)
	UpsertPullRequest(ctx context.Context, arg database.UpsertPullRequestParams) (database.PullRequest, error)
	UpsertDocumentation(ctx context.Context, arg database.UpsertDocumentationParams) (database.Documentation, error)
}

// SourceProvider fetches diffs and posts comments.
type SourceProvider interface {
	GetPullRequestFiles(ctx context.Context, owner, name string, number int, installationID int64) ([]model.PullRequestFile, error)
	UpsertComment(ctx context.Context, owner, name string, number int, body string, installationID int64) error
}

// Service generates documentation for merged pull requests and summaries for
// opened ones. Every write is an upsert, so a retried job converges.
type Service struct {
	store      Store
	provider   SourceProvider
	ai         aiguard.Generator
	diffBudget int
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(store Store, provider SourceProvider, ai aiguard.Generator, diffBudget int, logger *slog.Logger) *Service {
	if diffBudget <= 0 {
		diffBudget = DefaultDiffBudget
	}
	return &Service{
		store:      store,
		provider:   provider,
		ai:         ai,
		diffBudget: diffBudget,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GenerateDocs documents a merged pull request. A repository that was never
// synced is skipped without error.
func (s *Service) GenerateDocs(ctx context.Context, p model.GenerateDocsPayload) error {
	repoRef, pr := p.Repository, p.PullRequest
	logger := s.logger.With("owner", repoRef.Owner, "repo", repoRef.Name, "number", pr.Number)
	start := time.Now()
	logger.Info("Generating documentation")

	repo, err := s.store.GetRepositoryByOwnerAndName(ctx, database.GetRepositoryByOwnerAndNameParams{
		Owner: repoRef.Owner,
		Name:  repoRef.Name,
	})
	if errors.Is(database.NotFound(err), custom_errors.ErrNotFound) {
		logger.Warn("Repository not synced, skipping documentation")
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up repository: %w", err)
	}

	installationID := p.Installation.ID
	if installationID == 0 {
		installationID = repo.InstallationID
	}
	files, err := s.provider.GetPullRequestFiles(ctx, repoRef.Owner, repoRef.Name, pr.Number, installationID)
	if err != nil {
		return fmt.Errorf("fetching pull request files: %w", err)
	}

	fullName := repoRef.FullName
	if fullName == "" {
		fullName = repoRef.Owner + "/" + repoRef.Name
	}
	markdown, err := s.ai.Generate(ctx, documentationPrompt(PullRequestMeta{
		Repo:   fullName,
		Number: pr.Number,
		Author: pr.Author,
		Title:  pr.Title,
	}, FormatDiff(files)))
	if err != nil {
		return fmt.Errorf("generating documentation: %w", err)
	}

	mergedAt := s.now()
	if pr.MergedAt != nil {
		mergedAt = *pr.MergedAt
	}
	row, err := s.store.UpsertPullRequest(ctx, database.UpsertPullRequestParams{
		RepositoryID: repo.ID,
		Number:       int32(pr.Number),
		Title:        pr.Title,
		Author:       pr.Author,
		State:        model.StateMerged,
		HeadSha:      pr.SHA,
		MergedAt:     database.Timestamptz(mergedAt),
	})
	if err != nil {
		return fmt.Errorf("upserting merged pull request: %w", err)
	}

	result := ExtractDocumentationSummary(markdown)
	result.FilesChanged = len(files)
	result.GeneratedAt = s.now()
	if err := s.saveDocumentation(ctx, row.ID, markdown, result); err != nil {
		return err
	}

	logger.Info("Documentation generated", "pr_id", row.ID, "duration", time.Since(start).String())
	return nil
}

// GenerateSummary summarizes an opened pull request and posts the summary as a
// comment. A pull request deleted since the job was queued is skipped.
func (s *Service) GenerateSummary(ctx context.Context, p model.GenerateSummaryPayload) error {
	logger := s.logger.With("owner", p.Owner, "repo", p.RepoName, "number", p.Number, "pr_id", p.PullRequestID)
	logger.Info("Generating pull request summary")

	row, err := s.store.GetPullRequest(ctx, p.PullRequestID)
	if err != nil {
		if errors.Is(database.NotFound(err), custom_errors.ErrNotFound) {
			logger.Info("Pull request no longer stored, skipping summary")
			return nil
		}
		return fmt.Errorf("loading pull request: %w", err)
	}
	if row.State == model.StateMerged {
		logger.Info("Pull request already merged, skipping summary")
		return nil
	}

	files, err := s.provider.GetPullRequestFiles(ctx, p.Owner, p.RepoName, p.Number, p.InstallationID)
	if err != nil {
		return fmt.Errorf("fetching pull request files: %w", err)
	}
	stats := ComputeFileStats(files)
	diff := TruncateDiff(FormatDiff(files), s.diffBudget)

	raw, err := s.ai.Generate(ctx, summaryPrompt(PullRequestMeta{
		Repo:   p.Owner + "/" + p.RepoName,
		Number: p.Number,
		Author: p.Author,
		Title:  p.Title,
	}, stats, diff))
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}

	result, ok := ParseSummary(raw, stats)
	if !ok {
		logger.Warn("Model response was not valid summary JSON, using fallback")
	}
	result.GeneratedAt = s.now()

	if err := s.saveDocumentation(ctx, p.PullRequestID, result.Summary, result); err != nil {
		if custom_errors.IsForeignKeyViolation(err) {
			logger.Info("Pull request deleted during summary generation, discarding result")
			return nil
		}
		return err
	}

	if err := s.provider.UpsertComment(ctx, p.Owner, p.RepoName, p.Number, RenderComment(result), p.InstallationID); err != nil {
		logger.Warn("Failed to post summary comment", "error", err)
	}

	logger.Info("Pull request summary generated", "risk_level", result.RiskLevel, "fallback", !ok)
	return nil
}

func (s *Service) saveDocumentation(ctx context.Context, prID int64, summary string, result model.SummaryResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding documentation result: %w", err)
	}
	if _, err := s.store.UpsertDocumentation(ctx, database.UpsertDocumentationParams{
		PullRequestID: prID,
		Summary:       summary,
		Result:        payload,
	}); err != nil {
		return fmt.Errorf("upserting documentation: %w", err)
	}
	return nil
}
