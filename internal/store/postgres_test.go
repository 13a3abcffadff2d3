package store_test

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	insertQuery = regexp.QuoteMeta("INSERT INTO short_links")
	selectQuery = regexp.QuoteMeta("FROM short_links")
	linkColumns = []string{"code", "original_url", "is_custom_alias", "ttl_seconds", "created_at"}
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})

	return mock
}

func TestPostgresStore_Insert(t *testing.T) {
	t.Run("inserts link", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)

		mock.ExpectExec(insertQuery).
			WithArgs("abc123", "https://example.com", false, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := s.Insert(context.Background(), newLink("abc123"))

		require.NoError(t, err)
	})

	t.Run("maps unique violation to ErrDuplicateCode", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)

		mock.ExpectExec(insertQuery).
			WithArgs("abc123", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "short_links_code_key"})

		err := s.Insert(context.Background(), newLink("abc123"))

		assert.ErrorIs(t, err, shortener.ErrDuplicateCode)
	})

	t.Run("refuses a ttl the column would wrap", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)
		ttl := 3_000_000_000
		link := newLink("abc123")
		link.TTLSeconds = &ttl

		err := s.Insert(context.Background(), link)

		assert.ErrorIs(t, err, shortener.ErrInvalidTTL)
	})

	t.Run("stores the largest ttl unchanged", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)
		ttl := shortener.MaxTTLSeconds
		link := newLink("abc123")
		link.TTLSeconds = &ttl

		mock.ExpectExec(insertQuery).
			WithArgs("abc123", pgxmock.AnyArg(), pgxmock.AnyArg(), pgtype.Int4{Int32: math.MaxInt32, Valid: true}, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.Insert(context.Background(), link))
	})

	t.Run("wraps other errors", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)
		connErr := errors.New("connection reset")

		mock.ExpectExec(insertQuery).
			WithArgs("abc123", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(connErr)

		err := s.Insert(context.Background(), newLink("abc123"))

		assert.ErrorIs(t, err, connErr)
		assert.NotErrorIs(t, err, shortener.ErrDuplicateCode)
	})
}

func TestPostgresStore_FindByCode(t *testing.T) {
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns link without ttl", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)

		mock.ExpectQuery(selectQuery).
			WithArgs("abc123").
			WillReturnRows(pgxmock.NewRows(linkColumns).
				AddRow("abc123", "https://example.com", false, nil, createdAt))

		got, err := s.FindByCode(context.Background(), "abc123")

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("abc123"), got.Code)
		assert.Equal(t, "https://example.com", got.OriginalURL)
		assert.False(t, got.IsCustomAlias)
		assert.Nil(t, got.TTLSeconds)
		assert.Equal(t, createdAt, got.CreatedAt)
	})

	t.Run("returns link with ttl", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)

		mock.ExpectQuery(selectQuery).
			WithArgs("myalias").
			WillReturnRows(pgxmock.NewRows(linkColumns).
				AddRow("myalias", "https://example.com", true, int64(3600), createdAt))

		got, err := s.FindByCode(context.Background(), "myalias")

		require.NoError(t, err)
		assert.True(t, got.IsCustomAlias)
		require.NotNil(t, got.TTLSeconds)
		assert.Equal(t, 3600, *got.TTLSeconds)
	})

	t.Run("returns ErrNotFound when no row", func(t *testing.T) {
		mock := newMockPool(t)
		s := store.NewPostgresStore(mock)

		mock.ExpectQuery(selectQuery).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		got, err := s.FindByCode(context.Background(), "missing")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})
}
