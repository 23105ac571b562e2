// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"snapdocs/internal/database"
	custom_errors "snapdocs/internal/errors"
	"snapdocs/internal/model"
)

// DefaultStaleThreshold is how old a user's last sync may be before reads trigger a new one.
const DefaultStaleThreshold = 30 * time.Minute

// SourceProvider lists what the provider currently knows about an installation.
type SourceProvider interface {
	ListInstallationRepositories(ctx context.Context, installationID int64) ([]model.RemoteRepository, error)
	ListOpenPullRequests(ctx context.Context, owner, name string, installationID int64) ([]model.RemotePullRequest, error)
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}

// TxBeginner starts a transaction; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Syncer reconciles repositories and open pull requests from the provider into the store.
type Syncer struct {
	store     database.Querier
	dbpool    TxBeginner
	provider  SourceProvider
	queue     Enqueuer
	logger    *slog.Logger
	threshold time.Duration
	now       func() time.Time
}

// NewSyncer creates a new Syncer instance. When dbpool is non-nil each
// repository is reconciled in its own transaction.
func NewSyncer(store database.Querier, dbpool TxBeginner, provider SourceProvider, queue Enqueuer, threshold time.Duration, logger *slog.Logger) *Syncer {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &Syncer{
		store:     store,
		dbpool:    dbpool,
		provider:  provider,
		queue:     queue,
		logger:    logger,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// connectedUser loads a user and reports whether it has a linked installation.
// A missing user is treated like one without a credential.
func (s *Syncer) connectedUser(ctx context.Context, userID string) (database.User, bool, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(database.NotFound(err), custom_errors.ErrNotFound) {
		return database.User{}, false, nil
	}
	if err != nil {
		return database.User{}, false, fmt.Errorf("loading user: %w", err)
	}
	return user, user.InstallationID.Valid, nil
}

// SyncRepositories mirrors every repository the user's installation can access,
// together with its open pull requests, one repository at a time. A failing
// repository is logged and skipped; the user's last sync is stamped once all
// repositories were attempted.
func (s *Syncer) SyncRepositories(ctx context.Context, userID string) error {
	logger := s.logger.With("user_id", userID)

	user, ok, err := s.connectedUser(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("User has no linked installation, skipping repository sync")
		return nil
	}
	installationID := user.InstallationID.Int64
	logger = logger.With("installation_id", installationID)

	remotes, err := s.provider.ListInstallationRepositories(ctx, installationID)
	if err != nil {
		return fmt.Errorf("listing installation repositories: %w", err)
	}
	logger.Info("Starting repository sync", "repositories", len(remotes))

	var synced, failed, prs int
	for _, remote := range remotes {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.inTx(ctx, func(q database.Querier) (int, error) {
			return s.syncRepo(ctx, q, userID, installationID, remote)
		})
		if err != nil {
			failed++
			s.logRepoError(logger, remote.Owner, remote.Name, err)
			continue
		}
		synced++
		prs += n
	}

	if err := s.store.UpdateUserLastSync(ctx, userID); err != nil {
		return fmt.Errorf("stamping user last sync: %w", err)
	}
	logger.Info("Repository sync finished", "synced", synced, "failed", failed, "pull_requests", prs)
	return nil
}

// SyncPullRequests refreshes the open pull requests of the user's stored
// repositories without listing the installation again.
func (s *Syncer) SyncPullRequests(ctx context.Context, userID string) error {
	logger := s.logger.With("user_id", userID)

	if _, ok, err := s.connectedUser(ctx, userID); err != nil {
		return err
	} else if !ok {
		logger.Info("User has no linked installation, skipping pull request sync")
		return nil
	}

	repos, err := s.store.ListRepositoriesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing stored repositories: %w", err)
	}

	var failed int
	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := s.inTx(ctx, func(q database.Querier) (int, error) {
			return s.syncOpenPullRequests(ctx, q, repo)
		})
		if err != nil {
			failed++
			s.logRepoError(logger, repo.Owner, repo.Name, err)
		}
	}

	if err := s.store.UpdateUserLastSync(ctx, userID); err != nil {
		return fmt.Errorf("stamping user last sync: %w", err)
	}
	logger.Info("Pull request sync finished", "repositories", len(repos), "failed", failed)
	return nil
}

// inTx runs fn against a transaction-scoped querier when a pool is
// configured, or against the store directly otherwise.
func (s *Syncer) inTx(ctx context.Context, fn func(q database.Querier) (int, error)) (int, error) {
	if s.dbpool == nil {
		return fn(s.store)
	}
	tx, err := s.dbpool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	n, err := fn(database.New(tx))
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

// syncRepo upserts one repository and its open pull requests, then stamps its last sync.
func (s *Syncer) syncRepo(ctx context.Context, q database.Querier, userID string, installationID int64, remote model.RemoteRepository) (int, error) {
	repo, err := q.UpsertRepository(ctx, database.UpsertRepositoryParams{
		Owner:          remote.Owner,
		Name:           remote.Name,
		InstallationID: installationID,
		UserID:         database.Text(userID),
	})
	if err != nil {
		return 0, fmt.Errorf("upserting repository: %w", err)
	}
	return s.syncOpenPullRequests(ctx, q, repo)
}

// syncOpenPullRequests writes the provider's open pull requests for repo.
// Pull requests closed or merged upstream are left untouched.
func (s *Syncer) syncOpenPullRequests(ctx context.Context, q database.Querier, repo database.Repository) (int, error) {
	remotes, err := s.provider.ListOpenPullRequests(ctx, repo.Owner, repo.Name, repo.InstallationID)
	if err != nil {
		return 0, fmt.Errorf("listing open pull requests: %w", err)
	}
	for _, pr := range remotes {
		if _, err := q.UpsertPullRequest(ctx, database.UpsertPullRequestParams{
			RepositoryID: repo.ID,
			Number:       int32(pr.Number),
			Title:        pr.Title,
			Author:       pr.Author,
			State:        model.StateOpen,
			HeadSha:      pr.HeadSHA,
		}); err != nil {
			return 0, fmt.Errorf("upserting pull request #%d: %w", pr.Number, err)
		}
	}
	if err := q.UpdateRepositoryLastSync(ctx, repo.ID); err != nil {
		return 0, fmt.Errorf("stamping repository last sync: %w", err)
	}
	s.logger.Debug("Repository reconciled", "owner", repo.Owner, "repo", repo.Name, "open_pull_requests", len(remotes))
	return len(remotes), nil
}

func (s *Syncer) logRepoError(logger *slog.Logger, owner, name string, err error) {
	if custom_errors.IsUniqueViolation(err) {
		logger.Warn("Repository conflicts with an existing row, skipping", "owner", owner, "repo", name, "error", err)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	logger.Error("Failed to sync repository", "owner", owner, "repo", name, "error", err)
}

// IsStale reports whether a sync stamped at lastSyncAt is older than threshold.
// A user that never synced is stale.
func IsStale(lastSyncAt pgtype.Timestamptz, now time.Time, threshold time.Duration) bool {
	if !lastSyncAt.Valid {
		return true
	}
	return now.Sub(lastSyncAt.Time) > threshold
}

// Stale reports whether the user's last sync is older than the configured threshold.
func (s *Syncer) Stale(user database.User) bool {
	return IsStale(user.LastSyncAt, s.now(), s.threshold)
}

// TriggerIfStale enqueues a background repository sync when the user's data is
// stale. It never fails the caller: enqueue errors are logged and reported as
// false.
func (s *Syncer) TriggerIfStale(ctx context.Context, user database.User) bool {
	if !user.InstallationID.Valid || !s.Stale(user) {
		return false
	}
	jobID, err := s.queue.Enqueue(ctx, model.JobSyncRepositories, model.SyncRepositoriesPayload{UserID: user.ID})
	if err != nil {
		s.logger.Error("Failed to enqueue background sync", "user_id", user.ID, "error", err)
		return false
	}
	s.logger.Info("Data stale, background sync queued", "user_id", user.ID, "job_id", jobID)
	return true
}
