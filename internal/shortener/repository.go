package shortener

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Repository when no link has the requested code.
	ErrNotFound = errors.New("short link not found")

	// ErrDuplicateCode is returned by Repository.Insert when the code is already taken.
	// Allocator converts it into a retry or ErrAliasConflict.
	ErrDuplicateCode = errors.New("duplicate short code")

	// ErrAliasConflict means the requested custom alias is already in use.
	ErrAliasConflict = errors.New("custom alias already in use")

	// ErrInvalidTTL means the requested TTL is outside 1..MaxTTLSeconds.
	ErrInvalidTTL = errors.New("ttl out of range")

	// ErrGenerationExhausted means every generated code collided within the attempt budget.
	ErrGenerationExhausted = errors.New("failed to generate unique short code")
)

// Repository is the storage collaborator for short links.
// Implementations must enforce uniqueness of Code on Insert.
type Repository interface {
	FindByCode(ctx context.Context, code Code) (*ShortLink, error)
	Insert(ctx context.Context, link *ShortLink) error
}
