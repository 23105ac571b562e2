package database

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	custom_errors "snapdocs/internal/errors"
)

// Timestamptz wraps t as a valid timestamptz; the zero time maps to NULL.
func Timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// Int8 wraps v as a valid int8; zero maps to NULL.
func Int8(v int64) pgtype.Int8 {
	if v == 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}

// Text wraps s as a valid text; the empty string maps to NULL.
func Text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// NotFound translates pgx.ErrNoRows into custom_errors.ErrNotFound.
func NotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return custom_errors.ErrNotFound
	}
	return err
}
