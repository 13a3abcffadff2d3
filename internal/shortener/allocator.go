package shortener

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultMaxAttempts is the number of codes drawn before giving up.
const DefaultMaxAttempts = 5

// Request describes a link to create.
type Request struct {
	OriginalURL string
	Alias       string // empty means generate a code
	TTLSeconds  *int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxAttempts overrides the generation attempt budget.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithClock sets the clock used to stamp CreatedAt.
func WithClock(clock clockwork.Clock) Option {
	return func(a *Allocator) {
		a.clock = clock
	}
}

// WithLogger sets the logger used for collision diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// Allocator produces unique short codes, either from a custom alias or by drawing
// from a CodeGenerator, and persists new links through the Repository.
//
// The repository's uniqueness constraint is authoritative. Lookups before insert
// only avoid wasted writes; a duplicate reported by Insert is handled the same way
// as a collision found by the lookup.
type Allocator struct {
	store        Repository
	generateCode CodeGenerator
	maxAttempts  int
	clock        clockwork.Clock
	logger       *zap.Logger
}

// NewAllocator creates a new allocator.
func NewAllocator(store Repository, generator CodeGenerator, opts ...Option) *Allocator {
	a := &Allocator{
		store:        store,
		generateCode: generator,
		maxAttempts:  DefaultMaxAttempts,
		clock:        clockwork.NewRealClock(),
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// claim is run once a code passes the lookup. It returns ErrDuplicateCode when
// the code was taken in the meantime.
type claim func(ctx context.Context, code Code) error

// Allocate returns a code that is free at the time of the call without storing it.
// An empty alias requests a generated code.
func (a *Allocator) Allocate(ctx context.Context, alias string) (Code, error) {
	if alias != "" {
		return a.claimAlias(ctx, Code(alias), nil)
	}

	return a.draw(ctx, nil)
}

// Shorten allocates a code for the request and inserts the new link.
// The link is inserted at most once and always under the returned code.
func (a *Allocator) Shorten(ctx context.Context, req Request) (*ShortLink, error) {
	if ttl := req.TTLSeconds; ttl != nil && (*ttl < 1 || *ttl > MaxTTLSeconds) {
		return nil, fmt.Errorf("%w: %d seconds", ErrInvalidTTL, *ttl)
	}

	link := &ShortLink{
		OriginalURL:   req.OriginalURL,
		IsCustomAlias: req.Alias != "",
		TTLSeconds:    req.TTLSeconds,
		CreatedAt:     a.clock.Now().UTC(),
	}

	insert := func(ctx context.Context, code Code) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		link.Code = code

		return a.store.Insert(ctx, link)
	}

	var err error
	if link.IsCustomAlias {
		_, err = a.claimAlias(ctx, Code(req.Alias), insert)
	} else {
		_, err = a.draw(ctx, insert)
	}

	if err != nil {
		return nil, err
	}

	return link, nil
}

func (a *Allocator) claimAlias(ctx context.Context, alias Code, commit claim) (Code, error) {
	taken, err := a.taken(ctx, alias)
	if err != nil {
		return "", err
	}

	if taken {
		return "", ErrAliasConflict
	}

	if commit == nil {
		return alias, nil
	}

	if err = commit(ctx, alias); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return "", ErrAliasConflict
		}

		return "", err
	}

	return alias, nil
}

func (a *Allocator) draw(ctx context.Context, commit claim) (Code, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := Code(a.generateCode())

		taken, err := a.taken(ctx, code)
		if err != nil {
			return "", err
		}

		if taken {
			a.logger.Debug("generated code collided", zap.String("code", string(code)), zap.Int("attempt", attempt))

			continue
		}

		if commit == nil {
			return code, nil
		}

		err = commit(ctx, code)
		if errors.Is(err, ErrDuplicateCode) {
			a.logger.Debug("generated code lost insert race", zap.String("code", string(code)), zap.Int("attempt", attempt))

			continue
		}

		if err != nil {
			return "", err
		}

		return code, nil
	}

	a.logger.Warn("code generation exhausted", zap.Int("attempts", a.maxAttempts))

	return "", fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, a.maxAttempts)
}

func (a *Allocator) taken(ctx context.Context, code Code) (bool, error) {
	_, err := a.store.FindByCode(ctx, code)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return false, fmt.Errorf("check code %q: %w", code, err)
}
