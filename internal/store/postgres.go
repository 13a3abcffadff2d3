package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/serroba/shortlink/internal/shortener"
)

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
// Uniqueness of code is enforced by the short_links_code_key constraint.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a new PostgreSQL-backed link store.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Insert(ctx context.Context, link *shortener.ShortLink) error {
	query := `
		INSERT INTO short_links (code, original_url, is_custom_alias, ttl_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	ttl, err := nullableTTL(link.TTLSeconds)
	if err != nil {
		return fmt.Errorf("insert short link %s: %w", link.Code, err)
	}

	_, err = p.db.Exec(ctx, query,
		string(link.Code),
		link.OriginalURL,
		link.IsCustomAlias,
		ttl,
		link.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return shortener.ErrDuplicateCode
		}

		return fmt.Errorf("insert short link %s: %w", link.Code, err)
	}

	return nil
}

func (p *PostgresStore) FindByCode(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	query := `
		SELECT code, original_url, is_custom_alias, ttl_seconds, created_at
		FROM short_links
		WHERE code = $1
	`

	var link shortener.ShortLink

	var (
		storedCode string
		ttl        pgtype.Int4
	)

	err := p.db.QueryRow(ctx, query, string(code)).Scan(
		&storedCode,
		&link.OriginalURL,
		&link.IsCustomAlias,
		&ttl,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, fmt.Errorf("find short link %s: %w", code, err)
	}

	link.Code = shortener.Code(storedCode)

	if ttl.Valid {
		seconds := int(ttl.Int32)
		link.TTLSeconds = &seconds
	}

	return &link, nil
}

// nullableTTL maps the TTL onto the INTEGER column, refusing values it would wrap.
func nullableTTL(ttl *int) (pgtype.Int4, error) {
	if ttl == nil {
		return pgtype.Int4{}, nil
	}

	if *ttl < math.MinInt32 || *ttl > math.MaxInt32 {
		return pgtype.Int4{}, fmt.Errorf("%w: %d seconds does not fit ttl_seconds", shortener.ErrInvalidTTL, *ttl)
	}

	return pgtype.Int4{Int32: int32(*ttl), Valid: true}, nil
}

// Compile-time check.
var _ shortener.Repository = (*PostgresStore)(nil)
