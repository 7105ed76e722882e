package biz

import (
	"context"
	"time"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Token lifetimes. Invites are short-lived and single-use; a session is
// a long-lived device credential.
const (
	InviteTTL  = 5 * time.Minute
	SessionTTL = 30 * 24 * time.Hour
)

// InviteRepo stores single-use invite tokens
type InviteRepo interface {
	Create(ctx context.Context, token string, expiresAt time.Time) error
	// Consume atomically marks the invite used. It distinguishes a
	// token that was never issued from one already spent.
	Consume(ctx context.Context, token string) (expiresAt time.Time, err error)
}

// SessionRepo stores device session tokens
type SessionRepo interface {
	Create(ctx context.Context, token string, ttl time.Duration) error
	Exists(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
}

// AuthUseCase contains business logic for invite and session auth
type AuthUseCase struct {
	invites  InviteRepo
	sessions SessionRepo
	logger   *zap.Logger
}

// NewAuthUseCase creates a new auth use case
func NewAuthUseCase(invites InviteRepo, sessions SessionRepo, logger *zap.Logger) *AuthUseCase {
	return &AuthUseCase{
		invites:  invites,
		sessions: sessions,
		logger:   logger,
	}
}

// CreateInvite mints a new invite token valid for InviteTTL.
func (uc *AuthUseCase) CreateInvite(ctx context.Context) (string, error) {
	token := uuid.New().String()
	if err := uc.invites.Create(ctx, token, time.Now().UTC().Add(InviteTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// RedeemInvite spends an invite and returns a fresh session token. Each
// invite admits exactly one device.
func (uc *AuthUseCase) RedeemInvite(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperrors.New(apperrors.ErrInviteInvalid, "token required")
	}

	expiresAt, err := uc.invites.Consume(ctx, token)
	if err != nil {
		return "", err
	}
	if time.Now().UTC().After(expiresAt) {
		return "", apperrors.New(apperrors.ErrInviteExpired)
	}

	sessionToken := uuid.New().String()
	if err := uc.sessions.Create(ctx, sessionToken, SessionTTL); err != nil {
		return "", err
	}

	uc.logger.Info("invite redeemed, session created")
	return sessionToken, nil
}

// Authenticated reports whether the session token is live.
func (uc *AuthUseCase) Authenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	ok, err := uc.sessions.Exists(ctx, token)
	if err != nil {
		uc.logger.Warn("session lookup failed", zap.Error(err))
		return false
	}
	return ok
}

// Logout revokes a session token. Revoking an unknown token is fine.
func (uc *AuthUseCase) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return uc.sessions.Delete(ctx, token)
}
