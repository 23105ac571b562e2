// Package databasetest provides an in-memory database.Querier that honours the
// schema's natural-key uniqueness so upsert semantics can be asserted in unit tests.
package databasetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"snapdocs/internal/database"
	"snapdocs/internal/model"
)

type prKey struct {
	repoID int64
	number int32
}

// Store is a concurrency-safe in-memory database.Querier.
type Store struct {
	mu sync.Mutex

	nextID int64
	users  map[string]database.User
	repos  map[int64]database.Repository
	prs    map[int64]database.PullRequest
	docs   map[int64]database.Documentation // keyed by pull request id

	// Fail, when set, is consulted before every call; a non-nil error is returned as is.
	Fail func(method string) error
}

var _ database.Querier = (*Store)(nil)

func New() *Store {
	return &Store{
		users: map[string]database.User{},
		repos: map[int64]database.Repository{},
		prs:   map[int64]database.PullRequest{},
		docs:  map[int64]database.Documentation{},
	}
}

func now() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
}

func (s *Store) fail(method string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(method)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Snapshot returns copies of all rows, sorted by id, for state comparisons.
func (s *Store) Snapshot() ([]database.Repository, []database.PullRequest, []database.Documentation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var repos []database.Repository
	for _, r := range s.repos {
		repos = append(repos, r)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	var prs []database.PullRequest
	for _, p := range s.prs {
		prs = append(prs, p)
	}
	sort.Slice(prs, func(i, j int) bool { return prs[i].ID < prs[j].ID })
	var docs []database.Documentation
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return repos, prs, docs
}

func (s *Store) findRepo(owner, name string) (database.Repository, bool) {
	for _, r := range s.repos {
		if r.Owner == owner && r.Name == name {
			return r, true
		}
	}
	return database.Repository{}, false
}

func (s *Store) findPR(k prKey) (database.PullRequest, bool) {
	for _, p := range s.prs {
		if p.RepositoryID == k.repoID && p.Number == k.number {
			return p, true
		}
	}
	return database.PullRequest{}, false
}

func (s *Store) UpsertUser(_ context.Context, arg database.UpsertUserParams) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertUser"); err != nil {
		return database.User{}, err
	}
	u, ok := s.users[arg.ID]
	if !ok {
		u = database.User{ID: arg.ID, CreatedAt: now()}
	}
	u.Email = arg.Email
	u.UpdatedAt = now()
	s.users[arg.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetUser"); err != nil {
		return database.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// PutUser stores a user row verbatim.
func (s *Store) PutUser(u database.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) SetUserInstallation(_ context.Context, arg database.SetUserInstallationParams) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetUserInstallation"); err != nil {
		return database.User{}, err
	}
	u, ok := s.users[arg.ID]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	u.InstallationID = arg.InstallationID
	u.UpdatedAt = now()
	s.users[arg.ID] = u
	return u, nil
}

func (s *Store) ListConnectedUsers(_ context.Context) ([]database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListConnectedUsers"); err != nil {
		return nil, err
	}
	var out []database.User
	for _, u := range s.users {
		if u.InstallationID.Valid {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateUserLastSync(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateUserLastSync"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	u.LastSyncAt = now()
	s.users[id] = u
	return nil
}

func (s *Store) UpsertRepository(_ context.Context, arg database.UpsertRepositoryParams) (database.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertRepository"); err != nil {
		return database.Repository{}, err
	}
	r, ok := s.findRepo(arg.Owner, arg.Name)
	if !ok {
		r = database.Repository{ID: s.id(), Owner: arg.Owner, Name: arg.Name, CreatedAt: now()}
	}
	r.InstallationID = arg.InstallationID
	r.UserID = arg.UserID
	r.UpdatedAt = now()
	s.repos[r.ID] = r
	return r, nil
}

func (s *Store) GetRepositoryByOwnerAndName(_ context.Context, arg database.GetRepositoryByOwnerAndNameParams) (database.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetRepositoryByOwnerAndName"); err != nil {
		return database.Repository{}, err
	}
	r, ok := s.findRepo(arg.Owner, arg.Name)
	if !ok {
		return database.Repository{}, pgx.ErrNoRows
	}
	return r, nil
}

func (s *Store) ListRepositoriesByUser(_ context.Context, userID string) ([]database.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListRepositoriesByUser"); err != nil {
		return nil, err
	}
	var out []database.Repository
	for _, r := range s.repos {
		if r.UserID.Valid && r.UserID.String == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) UpdateRepositoryLastSync(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateRepositoryLastSync"); err != nil {
		return err
	}
	r, ok := s.repos[id]
	if !ok {
		return nil
	}
	r.LastSyncAt = now()
	s.repos[id] = r
	return nil
}

func (s *Store) UpsertPullRequest(_ context.Context, arg database.UpsertPullRequestParams) (database.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertPullRequest"); err != nil {
		return database.PullRequest{}, err
	}
	p, ok := s.findPR(prKey{arg.RepositoryID, arg.Number})
	if !ok {
		p = database.PullRequest{ID: s.id(), RepositoryID: arg.RepositoryID, Number: arg.Number, CreatedAt: now()}
	}
	p.Title = arg.Title
	p.Author = arg.Author
	if p.State != model.StateMerged {
		p.State = arg.State
	}
	p.HeadSha = arg.HeadSha
	if arg.MergedAt.Valid || !ok {
		p.MergedAt = arg.MergedAt
	}
	p.UpdatedAt = now()
	s.prs[p.ID] = p
	return p, nil
}

func (s *Store) GetPullRequest(_ context.Context, id int64) (database.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetPullRequest"); err != nil {
		return database.PullRequest{}, err
	}
	p, ok := s.prs[id]
	if !ok {
		return database.PullRequest{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *Store) MarkPullRequestMerged(_ context.Context, arg database.MarkPullRequestMergedParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("MarkPullRequestMerged"); err != nil {
		return 0, err
	}
	r, ok := s.findRepo(arg.Owner, arg.Name)
	if !ok {
		return 0, nil
	}
	p, ok := s.findPR(prKey{r.ID, arg.Number})
	if !ok {
		return 0, nil
	}
	p.State = model.StateMerged
	p.MergedAt = arg.MergedAt
	p.UpdatedAt = now()
	s.prs[p.ID] = p
	return 1, nil
}

func (s *Store) DeletePullRequest(_ context.Context, arg database.DeletePullRequestParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeletePullRequest"); err != nil {
		return 0, err
	}
	r, ok := s.findRepo(arg.Owner, arg.Name)
	if !ok {
		return 0, nil
	}
	p, ok := s.findPR(prKey{r.ID, arg.Number})
	if !ok {
		return 0, nil
	}
	delete(s.prs, p.ID)
	delete(s.docs, p.ID)
	return 1, nil
}

func (s *Store) ListPullRequestsByUser(_ context.Context, arg database.ListPullRequestsByUserParams) ([]database.ListPullRequestsByUserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListPullRequestsByUser"); err != nil {
		return nil, err
	}
	var out []database.ListPullRequestsByUserRow
	for _, p := range s.prs {
		r := s.repos[p.RepositoryID]
		if !r.UserID.Valid || r.UserID.String != arg.UserID {
			continue
		}
		d, hasDocs := s.docs[p.ID]
		out = append(out, database.ListPullRequestsByUserRow{
			ID: p.ID, Number: p.Number, Title: p.Title, Author: p.Author, State: p.State,
			MergedAt: p.MergedAt, Owner: r.Owner, RepoName: r.Name, HasDocs: hasDocs, DocsSummary: d.Summary,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if arg.Limit > 0 && len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (s *Store) GetUserStats(_ context.Context, userID string) (database.GetUserStatsRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetUserStats"); err != nil {
		return database.GetUserStatsRow{}, err
	}
	var row database.GetUserStatsRow
	owned := map[int64]bool{}
	for _, r := range s.repos {
		if r.UserID.Valid && r.UserID.String == userID {
			owned[r.ID] = true
			row.TotalRepos++
		}
	}
	for _, p := range s.prs {
		if owned[p.RepositoryID] {
			row.TotalPrs++
			if _, ok := s.docs[p.ID]; ok {
				row.TotalDocs++
			}
		}
	}
	return row, nil
}

func (s *Store) UpsertDocumentation(_ context.Context, arg database.UpsertDocumentationParams) (database.Documentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertDocumentation"); err != nil {
		return database.Documentation{}, err
	}
	if _, ok := s.prs[arg.PullRequestID]; !ok {
		return database.Documentation{}, &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	}
	d, ok := s.docs[arg.PullRequestID]
	if !ok {
		d = database.Documentation{ID: s.id(), PullRequestID: arg.PullRequestID}
	}
	d.Summary = arg.Summary
	d.Result = arg.Result
	d.GeneratedAt = now()
	s.docs[arg.PullRequestID] = d
	return d, nil
}

func (s *Store) GetDocumentationByPullRequest(_ context.Context, pullRequestID int64) (database.Documentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetDocumentationByPullRequest"); err != nil {
		return database.Documentation{}, err
	}
	d, ok := s.docs[pullRequestID]
	if !ok {
		return database.Documentation{}, pgx.ErrNoRows
	}
	return d, nil
}
