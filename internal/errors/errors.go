// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by the store when a row keyed by natural identity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRepoFormat is returned when a repository string is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrInvalidPayload is returned when a webhook or job payload fails boundary validation.
type ErrInvalidPayload struct {
	Kind   string
	Reason string
}

func (e *ErrInvalidPayload) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, e.Reason)
}

// IsUniqueViolation reports whether err is a Postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a Postgres foreign_key_violation (23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
