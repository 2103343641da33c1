// Package services contains server-side business logic. This file implements
// SessionService: registration, login, the per-request authentication state
// machine, token refresh, and logout-driven revocation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"filevault/internal/common"
	"filevault/internal/server/auth"
	"filevault/internal/server/config"
	"filevault/internal/server/models"
	"filevault/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService turns raw credentials (passwords or signed tokens) into
// verified identities, and issues and revokes session tokens.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

// NewSessionService constructs a SessionService using repositories, the
// token codec, and server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, cfg *config.Config) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		codec:       codec,
		accessTTL:   cfg.AccessTokenValidityDuration,
		refreshTTL:  cfg.RefreshTokenValidityDuration,
	}
}

// Register creates a new user and issues the initial token pair. A taken
// name or email returns common.ErrAlreadyExists.
func (s *SessionService) Register(ctx context.Context, name, email, password string) (*models.User, *TokenPair, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash}

	repo := s.repomanager.Users(s.db)
	user, err = repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, nil, common.ErrAlreadyExists
		}
		return nil, nil, fmt.Errorf("error creating user: %w", err)
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies the email/password pair and, on success, returns a new
// token pair. Unlike every other auth path, login deliberately distinguishes
// an unknown user (ErrUserNotFound) from a wrong password
// (ErrBadCredentials) for usability.
func (s *SessionService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrUserNotFound
		}
		return nil, nil, common.ErrInternal
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, nil, common.ErrBadCredentials
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Authenticate runs the per-request state machine over an opaque credential
// string extracted by the transport:
//
//  1. verify signature, structure, and expiry (codec)
//  2. check the token kind matches what the call site expects
//  3. consult the revocation ledger
//  4. look up the subject in the credential store
//
// The terminal states are a verified user or one of ErrInvalidToken,
// ErrTokenExpired, ErrWrongTokenKind, ErrTokenRevoked, ErrUserNotFound.
func (s *SessionService) Authenticate(ctx context.Context, raw string, kind auth.TokenKind) (*models.User, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != kind {
		return nil, common.ErrWrongTokenKind
	}

	revoked, err := s.repomanager.Revocations(s.db).IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, common.ErrInternal
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, common.ErrInternal
	}

	return user, nil
}

// Refresh authenticates the presented refresh token and issues a new
// access+refresh pair. The presented refresh token is not revoked here and
// stays valid until its own expiry — a known rotation gap carried from the
// original design rather than silently fixed.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if _, err := s.Authenticate(ctx, refreshToken, auth.TokenKindRefresh); err != nil {
		return nil, err
	}

	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	return s.issuePair(userID)
}

// Logout revokes the jti of every presented token that still verifies, with
// reason "logout". Tokens that are missing, malformed, or already expired
// are skipped: logging out twice, or with a dead token, is a success.
func (s *SessionService) Logout(ctx context.Context, rawTokens ...string) error {
	repo := s.repomanager.Revocations(s.db)

	for _, raw := range rawTokens {
		if raw == "" {
			continue
		}
		claims, err := s.codec.Verify(raw)
		if err != nil {
			// invalid or expired: already as good as logged out
			continue
		}
		userID, err := claims.UserID()
		if err != nil {
			continue
		}
		entry := &models.RevocationEntry{
			JTI:       claims.ID,
			UserID:    userID,
			TokenType: string(claims.TokenType),
			ExpiresAt: claims.ExpiresAt.Time,
			Reason:    "logout",
		}
		if err := repo.Revoke(ctx, entry); err != nil {
			return fmt.Errorf("error revoking token: %w", err)
		}
	}
	return nil
}

// PurgeExpiredRevocations deletes ledger entries whose tokens have expired
// on their own and reports how many were removed. Expired tokens fail
// verification before the ledger is consulted, so the sweep only reclaims
// space.
func (s *SessionService) PurgeExpiredRevocations(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Revocations(s.db).DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("error purging expired revocations: %w", err)
	}
	return n, nil
}

func (s *SessionService) issuePair(userID int64) (*TokenPair, error) {
	access, _, err := s.codec.Issue(userID, auth.TokenKindAccess, s.accessTTL)
	if err != nil {
		return nil, common.ErrInternal
	}
	refresh, _, err := s.codec.Issue(userID, auth.TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return nil, common.ErrInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
