package command

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/models"
)

// EventPublisher appends domain events to a stream. *events.Publisher and
// events.NopPublisher implement it.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// AccountCommandService mutates accounts. Every mutation is a read-modify-write on a
// locked row inside a unit of work; cache invalidation and events follow the commit.
//
// The *In methods run inside a unit of work owned by the caller, which lets the
// transfer and signup flows compose them atomically.
type AccountCommandService struct {
	txm          repository.TxManager
	readRepo     *repository.AccountReadRepository
	userReadRepo *repository.UserReadRepository
	publisher    EventPublisher
}

func NewAccountCommandService(
	txm repository.TxManager,
	readRepo *repository.AccountReadRepository,
	userReadRepo *repository.UserReadRepository,
	publisher EventPublisher,
) *AccountCommandService {
	return &AccountCommandService{
		txm:          txm,
		readRepo:     readRepo,
		userReadRepo: userReadRepo,
		publisher:    publisher,
	}
}

// CreateDefaultAccounts opens one account per supported currency for userID, each
// holding models.DefaultAccountBalance.
func (s *AccountCommandService) CreateDefaultAccounts(ctx context.Context, tx repository.Store, userID int64) ([]models.Account, error) {
	accounts := make([]models.Account, 0, len(models.SupportedCurrencies))
	for _, currency := range models.SupportedCurrencies {
		account := models.Account{
			OwnerID:  userID,
			Currency: currency,
			Amount:   models.DefaultAccountBalance,
		}
		if err := tx.Accounts().Save(ctx, &account); err != nil {
			return nil, fmt.Errorf("failed to provision %s account: %w", currency, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.AccountView, error) {
	if cmd.InitialBalance < 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	account := models.Account{
		OwnerID:  cmd.OwnerID,
		Currency: models.DefaultCurrency,
		Amount:   cmd.InitialBalance,
	}
	err := s.txm.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().FindByID(ctx, cmd.OwnerID); err != nil {
			return err
		}
		return tx.Accounts().Save(ctx, &account)
	})
	if err != nil {
		return nil, err
	}

	s.userReadRepo.InvalidateUserView(ctx, account.OwnerID)
	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountID: account.ID,
		OwnerID:   account.OwnerID,
		Currency:  string(account.Currency),
		Amount:    account.Amount,
	})
	return models.NewAccountView(&account), nil
}

// ChangeAccountCurrency relabels an account without converting or checking its
// balance. Balances in the old currency are silently reinterpreted, which can break
// the currency match of pending transfers.
func (s *AccountCommandService) ChangeAccountCurrency(ctx context.Context, cmd cqrs.ChangeAccountCurrencyCommand) (*models.AccountView, error) {
	if !cmd.Currency.Valid() {
		return nil, apperrors.ErrUnsupportedCurrency
	}

	var (
		account     *models.Account
		oldCurrency models.Currency
	)
	err := s.txm.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		account, err = tx.Accounts().FindByID(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		oldCurrency = account.Currency
		account.Currency = cmd.Currency
		return tx.Accounts().Save(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	slog.Warn("account currency overridden without conversion",
		"account_id", account.ID,
		"owner_id", account.OwnerID,
		"old_currency", oldCurrency,
		"new_currency", account.Currency,
		"amount", account.Amount,
	)
	s.readRepo.InvalidateAccountView(ctx, account.ID)
	s.userReadRepo.InvalidateUserView(ctx, account.OwnerID)
	s.publish(ctx, events.AccountCurrencyChanged, events.AccountCurrencyChangedEvent{
		AccountID:   account.ID,
		OwnerID:     account.OwnerID,
		OldCurrency: string(oldCurrency),
		NewCurrency: string(account.Currency),
		Amount:      account.Amount,
	})
	return models.NewAccountView(account), nil
}

// ValidateCurrencyIn checks that both accounts exist and share a currency. Both rows
// are locked in ascending id order first, so two transfers running in opposite
// directions between the same pair cannot deadlock.
func (s *AccountCommandService) ValidateCurrencyIn(ctx context.Context, tx repository.Store, sourceID, destinationID int64) error {
	if err := tx.Accounts().Lock(ctx, sourceID, destinationID); err != nil {
		return err
	}
	source, err := tx.Accounts().FindByID(ctx, sourceID)
	if err != nil {
		return err
	}
	destination, err := tx.Accounts().FindByID(ctx, destinationID)
	if err != nil {
		return err
	}
	if source.Currency != destination.Currency {
		return apperrors.ErrCurrencyMismatch
	}
	return nil
}

func (s *AccountCommandService) DepositIn(ctx context.Context, tx repository.Store, userID, accountID, amount int64) (*models.Account, error) {
	if amount < 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	account, err := tx.Accounts().FindByOwnerAndID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if amount > math.MaxInt64-account.Amount {
		return nil, apperrors.ErrBalanceOverflow
	}
	account.Amount += amount
	if err := tx.Accounts().Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountCommandService) WithdrawIn(ctx context.Context, tx repository.Store, userID, accountID, amount int64) (*models.Account, error) {
	if amount < 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	account, err := tx.Accounts().FindByOwnerAndID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if account.Amount < amount {
		return nil, &apperrors.InsufficientFundsError{Amount: amount, Currency: string(account.Currency)}
	}
	account.Amount -= amount
	if err := tx.Accounts().Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountCommandService) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (*models.AccountView, error) {
	var account *models.Account
	err := s.txm.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		account, err = s.DepositIn(ctx, tx, cmd.UserID, cmd.AccountID, cmd.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterBalanceChange(ctx, account, cmd.Amount)
	return models.NewAccountView(account), nil
}

func (s *AccountCommandService) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*models.AccountView, error) {
	var account *models.Account
	err := s.txm.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		account, err = s.WithdrawIn(ctx, tx, cmd.UserID, cmd.AccountID, cmd.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterBalanceChange(ctx, account, -cmd.Amount)
	return models.NewAccountView(account), nil
}

func (s *AccountCommandService) afterBalanceChange(ctx context.Context, account *models.Account, change int64) {
	s.readRepo.InvalidateAccountView(ctx, account.ID)
	s.publish(ctx, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  account.ID,
		OwnerID:    account.OwnerID,
		Currency:   string(account.Currency),
		NewBalance: account.Amount,
		Change:     change,
	})
}

func (s *AccountCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, eventType, data); err != nil {
		slog.Error("failed to publish event", "type", eventType, "error", err)
	}
}
