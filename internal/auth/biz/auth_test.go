package biz

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInviteRepo struct {
	invites map[string]time.Time
	used    map[string]bool
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{
		invites: make(map[string]time.Time),
		used:    make(map[string]bool),
	}
}

func (r *fakeInviteRepo) Create(_ context.Context, token string, expiresAt time.Time) error {
	r.invites[token] = expiresAt
	return nil
}

func (r *fakeInviteRepo) Consume(_ context.Context, token string) (time.Time, error) {
	if r.used[token] {
		return time.Time{}, apperrors.New(apperrors.ErrInviteUsed)
	}
	expiresAt, ok := r.invites[token]
	if !ok {
		return time.Time{}, apperrors.New(apperrors.ErrInviteInvalid)
	}
	delete(r.invites, token)
	r.used[token] = true
	return expiresAt, nil
}

type fakeSessionRepo struct {
	sessions map[string]bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]bool)}
}

func (r *fakeSessionRepo) Create(_ context.Context, token string, _ time.Duration) error {
	r.sessions[token] = true
	return nil
}

func (r *fakeSessionRepo) Exists(_ context.Context, token string) (bool, error) {
	return r.sessions[token], nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, token string) error {
	delete(r.sessions, token)
	return nil
}

func newAuthUseCase() (*AuthUseCase, *fakeInviteRepo, *fakeSessionRepo) {
	invites := newFakeInviteRepo()
	sessions := newFakeSessionRepo()
	return NewAuthUseCase(invites, sessions, zap.NewNop()), invites, sessions
}

func TestInviteRedemptionFlow(t *testing.T) {
	uc, _, _ := newAuthUseCase()
	ctx := context.Background()

	invite, err := uc.CreateInvite(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, invite)

	session, err := uc.RedeemInvite(ctx, invite)
	require.NoError(t, err)
	assert.True(t, uc.Authenticated(ctx, session))
}

func TestInviteSingleUse(t *testing.T) {
	uc, _, _ := newAuthUseCase()
	ctx := context.Background()

	invite, err := uc.CreateInvite(ctx)
	require.NoError(t, err)

	_, err = uc.RedeemInvite(ctx, invite)
	require.NoError(t, err)

	_, err = uc.RedeemInvite(ctx, invite)
	assert.True(t, apperrors.Is(err, apperrors.ErrInviteUsed))
}

func TestInviteUnknownToken(t *testing.T) {
	uc, _, _ := newAuthUseCase()

	_, err := uc.RedeemInvite(context.Background(), "never-issued")
	assert.True(t, apperrors.Is(err, apperrors.ErrInviteInvalid))

	_, err = uc.RedeemInvite(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInviteInvalid))
}

func TestInviteExpired(t *testing.T) {
	uc, invites, sessions := newAuthUseCase()
	ctx := context.Background()

	invites.invites["stale"] = time.Now().UTC().Add(-time.Minute)

	_, err := uc.RedeemInvite(ctx, "stale")
	assert.True(t, apperrors.Is(err, apperrors.ErrInviteExpired))
	assert.Empty(t, sessions.sessions, "no session may be minted from an expired invite")
}

func TestLogoutRevokesSession(t *testing.T) {
	uc, _, _ := newAuthUseCase()
	ctx := context.Background()

	invite, err := uc.CreateInvite(ctx)
	require.NoError(t, err)
	session, err := uc.RedeemInvite(ctx, invite)
	require.NoError(t, err)

	require.NoError(t, uc.Logout(ctx, session))
	assert.False(t, uc.Authenticated(ctx, session))

	// Logging out again, or with no cookie at all, is harmless.
	assert.NoError(t, uc.Logout(ctx, session))
	assert.NoError(t, uc.Logout(ctx, ""))
}

func TestAuthenticatedEmptyToken(t *testing.T) {
	uc, _, _ := newAuthUseCase()
	assert.False(t, uc.Authenticated(context.Background(), ""))
}
