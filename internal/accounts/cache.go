package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlas-auth/atlas-auth/internal/shared"
)

// CachedRepository wraps a Repository with a Redis cache for FindByID, the
// lookup the auth middleware performs on every request. Writes invalidate the
// cached entry; cache failures fall through to the underlying store.
type CachedRepository struct {
	inner  Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type cachedUser struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"password_hash"`
	Role              string     `json:"role"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewCachedRepository constructs a CachedRepository.
func NewCachedRepository(inner Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	return &CachedRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedRepository) key(id string) string {
	return "accounts:user:" + id
}

// FindByID returns the cached user when present, falling back to the store.
func (c *CachedRepository) FindByID(ctx context.Context, id string) (*User, error) {
	payload, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == nil {
		var cached cachedUser
		if err := json.Unmarshal(payload, &cached); err == nil {
			if role, roleErr := shared.ParseRole(cached.Role); roleErr == nil {
				return &User{
					ID:                cached.ID,
					Name:              cached.Name,
					Email:             cached.Email,
					PasswordHash:      cached.PasswordHash,
					Role:              role,
					PasswordChangedAt: cached.PasswordChangedAt,
					CreatedAt:         cached.CreatedAt,
					UpdatedAt:         cached.UpdatedAt,
				}, nil
			}
		}
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.Warn("user cache read", slog.Any("error", err))
	}

	user, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, user)
	return user, nil
}

// FindByEmail always hits the store; email lookups happen only on the public
// login/register/recover paths where staleness is unacceptable.
func (c *CachedRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return c.inner.FindByEmail(ctx, email)
}

// Create inserts through to the store.
func (c *CachedRepository) Create(ctx context.Context, user *User) error {
	return c.inner.Create(ctx, user)
}

// UpdateProfile writes through and drops the cached entry.
func (c *CachedRepository) UpdateProfile(ctx context.Context, id, name, email string) (*User, error) {
	user, err := c.inner.UpdateProfile(ctx, id, name, email)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return user, nil
}

// UpdatePassword writes through and drops the cached entry so stale
// password-changed-at values never mask a token invalidation.
func (c *CachedRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	if err := c.inner.UpdatePassword(ctx, id, passwordHash, changedAt); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedRepository) store(ctx context.Context, user *User) {
	payload, err := json.Marshal(cachedUser{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		PasswordHash:      user.PasswordHash,
		Role:              string(user.Role),
		PasswordChangedAt: user.PasswordChangedAt,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(user.ID), payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("user cache write", slog.Any("error", err))
	}
}

func (c *CachedRepository) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil && c.logger != nil {
		c.logger.Warn("user cache invalidate", slog.Any("error", err))
	}
}

var _ Repository = (*CachedRepository)(nil)
