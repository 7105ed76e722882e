package data

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

const (
	inviteKeyPrefix     = "invite:"
	inviteUsedKeyPrefix = "invite:used:"
	sessionKeyPrefix    = "session:"

	// usedMarkerTTL keeps the "already used" distinction around long
	// enough to answer retries with the right error.
	usedMarkerTTL = time.Hour
)

// consumeInviteScript atomically spends an invite: fetch, delete, and
// leave a used marker so a replay is told "used", not "invalid".
var consumeInviteScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  if redis.call('EXISTS', KEYS[2]) == 1 then
    return 'USED'
  end
  return false
end
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[2], '1', 'EX', ARGV[1])
return v
`)

// InviteRepo stores invites in Redis with TTL-based expiry
type InviteRepo struct {
	client *redis.Client
}

// NewInviteRepo creates a new invite repository
func NewInviteRepo(client *redis.Client) *InviteRepo {
	return &InviteRepo{client: client}
}

// Create stores an invite token until its expiry
func (r *InviteRepo) Create(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("invite expiry is in the past")
	}
	err := r.client.Set(ctx, inviteKeyPrefix+token, expiresAt.Format(time.RFC3339Nano), ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store invite: %w", err)
	}
	return nil
}

// Consume atomically spends an invite
func (r *InviteRepo) Consume(ctx context.Context, token string) (time.Time, error) {
	result, err := consumeInviteScript.Run(ctx, r.client,
		[]string{inviteKeyPrefix + token, inviteUsedKeyPrefix + token},
		int(usedMarkerTTL.Seconds()),
	).Result()
	if err == redis.Nil {
		return time.Time{}, apperrors.New(apperrors.ErrInviteInvalid)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to consume invite: %w", err)
	}

	value, ok := result.(string)
	if !ok {
		return time.Time{}, apperrors.New(apperrors.ErrInviteInvalid)
	}
	if value == "USED" {
		return time.Time{}, apperrors.New(apperrors.ErrInviteUsed)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt invite record: %w", err)
	}
	return expiresAt, nil
}

// SessionRepo stores sessions in Redis with TTL-based expiry
type SessionRepo struct {
	client *redis.Client
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(client *redis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

// Create stores a session token for the given lifetime
func (r *SessionRepo) Create(ctx context.Context, token string, ttl time.Duration) error {
	err := r.client.Set(ctx, sessionKeyPrefix+token, time.Now().UTC().Format(time.RFC3339Nano), ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Exists reports whether the session token is live
func (r *SessionRepo) Exists(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

// Delete revokes a session token
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
