package query

import (
	"context"
	"errors"
	"time"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/utils"
)

// AuthQueryService handles login, token refresh and Basic credential checks. There's
// no CommandService for auth because these operations don't mutate application state.
type AuthQueryService struct {
	store    repository.Store
	users    *UserQueryService
	tokenTTL time.Duration
}

func NewAuthQueryService(store repository.Store, users *UserQueryService, tokenTTL time.Duration) *AuthQueryService {
	return &AuthQueryService{store: store, users: users, tokenTTL: tokenTTL}
}

var _ middleware.BasicAuthenticator = (*AuthQueryService)(nil)

func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (string, error) {
	p, err := s.Authenticate(ctx, cmd.Username, cmd.Password)
	if err != nil {
		return "", err
	}
	return middleware.IssueToken(*p, s.tokenTTL)
}

// RefreshToken issues a fresh token for a still-valid one, re-reading the user so a
// removed principal cannot keep refreshing.
func (s *AuthQueryService) RefreshToken(ctx context.Context, cmd cqrs.RefreshTokenCommand) (string, error) {
	claims, err := middleware.ParseToken(cmd.Token)
	if err != nil {
		return "", apperrors.ErrInvalidToken
	}
	user, err := s.store.Users().FindByID(ctx, claims.UserID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return "", apperrors.ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return middleware.IssueToken(middleware.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, s.tokenTTL)
}

// Authenticate checks a username and password against the stored bcrypt hash.
func (s *AuthQueryService) Authenticate(ctx context.Context, username, password string) (*middleware.Principal, error) {
	user, err := s.store.Users().FindByUsername(ctx, username)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	userID, err := s.users.GetUserIDByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	return &middleware.Principal{UserID: userID, Username: user.Username, Role: user.Role}, nil
}
