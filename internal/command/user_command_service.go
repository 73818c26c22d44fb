package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
)

// UserCommandService registers users. A new user and their default accounts are
// written in one unit of work.
type UserCommandService struct {
	txm       repository.TxManager
	accounts  *AccountCommandService
	readRepo  *repository.UserReadRepository
	publisher EventPublisher
}

func NewUserCommandService(
	txm repository.TxManager,
	accounts *AccountCommandService,
	readRepo *repository.UserReadRepository,
	publisher EventPublisher,
) *UserCommandService {
	return &UserCommandService{
		txm:       txm,
		accounts:  accounts,
		readRepo:  readRepo,
		publisher: publisher,
	}
}

func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.UserView, error) {
	role := cmd.Role
	if role == "" {
		role = models.RoleUser
	}
	if len(cmd.Password) > utils.MaxPasswordBytes {
		return nil, apperrors.ErrPasswordTooLong
	}
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     cmd.Username,
		PasswordHash: passwordHash,
		Role:         role,
	}
	var accounts []models.Account
	err = s.txm.WithinTx(ctx, func(tx repository.Store) error {
		_, err := tx.Users().FindByUsername(ctx, cmd.Username)
		switch {
		case err == nil:
			return apperrors.ErrUserAlreadyExists
		case !errors.Is(err, apperrors.ErrUserNotFound):
			return err
		}
		// The store rejects a concurrent duplicate on Save or commit.
		if err := tx.Users().Save(ctx, user); err != nil {
			return err
		}
		accounts, err = s.accounts.CreateDefaultAccounts(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	accountIDs := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		accountIDs = append(accountIDs, a.ID)
	}
	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserCreated, events.UserCreatedEvent{
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		AccountIDs: accountIDs,
	}); err != nil {
		slog.Error("failed to publish event", "type", events.UserCreated, "error", err)
	}
	slog.Info("user created", "user_id", user.ID, "role", user.Role, "accounts", len(accounts))
	return models.NewUserView(user, accounts), nil
}

// EnsureAdmin creates the bootstrap administrator unless a user with that name exists.
func (s *UserCommandService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.CreateUser(ctx, cqrs.CreateUserCommand{
		Username: username,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return nil
	}
	return err
}

// HandleAccountEvent is the Redis stream subscriber handler. Events that change an
// owner's account set or currencies drop that owner's cached UserView.
func (s *UserCommandService) HandleAccountEvent(ctx context.Context, event events.Event) error {
	slog.Debug("received account event", "type", event.Type, "id", event.ID)
	switch event.Type {
	case events.AccountCreated:
		var data events.AccountCreatedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		s.readRepo.InvalidateUserView(ctx, data.OwnerID)
	case events.AccountCurrencyChanged:
		var data events.AccountCurrencyChangedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		s.readRepo.InvalidateUserView(ctx, data.OwnerID)
	}
	return nil
}
