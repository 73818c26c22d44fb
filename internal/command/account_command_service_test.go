package command

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/models"
)

func TestDepositWithdraw_RoundTrip(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	userID, ids := svc.mustCreateUser(t, "alice")
	usd := ids[models.USD]

	before := svc.balance(t, usd)
	if _, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: userID, AccountID: usd, Amount: 250}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	view, err := svc.accounts.Withdraw(ctx, cqrs.WithdrawCommand{UserID: userID, AccountID: usd, Amount: 250})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if view.Amount != before {
		t.Errorf("expected balance %d after round trip, got %d", before, view.Amount)
	}
}

func TestDepositWithdraw_Errors(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	alice, aliceIDs := svc.mustCreateUser(t, "alice")
	bob, _ := svc.mustCreateUser(t, "bob")
	usd := aliceIDs[models.USD]

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "negative deposit",
			run: func() error {
				_, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: alice, AccountID: usd, Amount: -1})
				return err
			},
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name: "negative withdrawal",
			run: func() error {
				_, err := svc.accounts.Withdraw(ctx, cqrs.WithdrawCommand{UserID: alice, AccountID: usd, Amount: -1})
				return err
			},
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name: "deposit into account of another user",
			run: func() error {
				_, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: bob, AccountID: usd, Amount: 10})
				return err
			},
			wantErr: apperrors.ErrAccountNotFound,
		},
		{
			name: "withdraw from unknown account",
			run: func() error {
				_, err := svc.accounts.Withdraw(ctx, cqrs.WithdrawCommand{UserID: alice, AccountID: 9999, Amount: 1})
				return err
			},
			wantErr: apperrors.ErrAccountNotFound,
		},
		{
			name: "overdraft",
			run: func() error {
				_, err := svc.accounts.Withdraw(ctx, cqrs.WithdrawCommand{UserID: alice, AccountID: usd, Amount: 2})
				return err
			},
			wantErr: apperrors.ErrInsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("[%s] expected %v, got %v", tt.name, tt.wantErr, err)
			}
			if got := svc.balance(t, usd); got != models.DefaultAccountBalance {
				t.Errorf("[%s] balance changed to %d", tt.name, got)
			}
		})
	}
}

func TestWithdraw_InsufficientFundsMessage(t *testing.T) {
	svc := newTestServices(t)
	userID, ids := svc.mustCreateUser(t, "alice")

	_, err := svc.accounts.Withdraw(context.Background(), cqrs.WithdrawCommand{UserID: userID, AccountID: ids[models.EUR], Amount: 1000})
	var insufficient *apperrors.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if insufficient.Error() != "cannot withdraw 1000 EUR" {
		t.Errorf("unexpected message %q", insufficient.Error())
	}
}

func TestDeposit_OverflowIsRejected(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	userID, ids := svc.mustCreateUser(t, "alice")
	usd := ids[models.USD]

	_, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: userID, AccountID: usd, Amount: math.MaxInt64})
	if !errors.Is(err, apperrors.ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
	if got := svc.balance(t, usd); got != 1 {
		t.Errorf("expected balance 1 after rejected deposit, got %d", got)
	}

	// Filling up to the exact maximum is still allowed.
	view, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: userID, AccountID: usd, Amount: math.MaxInt64 - 1})
	if err != nil {
		t.Fatalf("deposit to the maximum: %v", err)
	}
	if view.Amount != math.MaxInt64 {
		t.Errorf("expected %d, got %d", int64(math.MaxInt64), view.Amount)
	}
	if _, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: userID, AccountID: usd, Amount: 1}); !errors.Is(err, apperrors.ErrBalanceOverflow) {
		t.Errorf("expected ErrBalanceOverflow on a full account, got %v", err)
	}
}

func TestDeposit_ZeroAmountIsAllowed(t *testing.T) {
	svc := newTestServices(t)
	userID, ids := svc.mustCreateUser(t, "alice")

	view, err := svc.accounts.Deposit(context.Background(), cqrs.DepositCommand{UserID: userID, AccountID: ids[models.USD], Amount: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Amount != 1 {
		t.Errorf("expected 1, got %d", view.Amount)
	}
}

func TestWithdraw_ConcurrentCallersNeverOverdraw(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	userID, ids := svc.mustCreateUser(t, "alice")
	usd := ids[models.USD]
	if _, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: userID, AccountID: usd, Amount: 99}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	const (
		callers = 50
		amount  = int64(7)
		balance = int64(100)
	)
	var (
		wg           sync.WaitGroup
		successes    atomic.Int64
		insufficient atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.accounts.Withdraw(ctx, cqrs.WithdrawCommand{UserID: userID, AccountID: usd, Amount: amount})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, apperrors.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got, want := successes.Load(), balance/amount; got != want {
		t.Errorf("expected %d successful withdrawals, got %d", want, got)
	}
	if successes.Load()+insufficient.Load() != callers {
		t.Errorf("expected every caller to get a result")
	}
	if got, want := svc.balance(t, usd), balance-successes.Load()*amount; got != want {
		t.Errorf("expected final balance %d, got %d", want, got)
	}
}

func TestDepositWithdraw_ConcurrentNoLostUpdates(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	userID, ids := svc.mustCreateUser(t, "alice")
	usd := ids[models.USD]

	const rounds = 100
	var (
		wg        sync.WaitGroup
		withdrawn atomic.Int64
	)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.accounts.Deposit(ctx, cqrs.DepositCommand{UserID: userID, AccountID: usd, Amount: 3}); err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := svc.accounts.Withdraw(ctx, cqrs.WithdrawCommand{UserID: userID, AccountID: usd, Amount: 1})
			switch {
			case err == nil:
				withdrawn.Add(1)
			case !errors.Is(err, apperrors.ErrInsufficientFunds):
				t.Errorf("withdraw: %v", err)
			}
		}()
	}
	wg.Wait()

	if got, want := svc.balance(t, usd), 1+3*rounds-withdrawn.Load(); got != want {
		t.Errorf("expected balance %d, got %d", want, got)
	}
}

func TestCreateAccount(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	userID, _ := svc.mustCreateUser(t, "alice")

	view, err := svc.accounts.CreateAccount(ctx, cqrs.CreateAccountCommand{OwnerID: userID, InitialBalance: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Currency != models.DefaultCurrency || view.Amount != 1000 || view.OwnerID != userID {
		t.Errorf("unexpected account %+v", view)
	}

	if _, err := svc.accounts.CreateAccount(ctx, cqrs.CreateAccountCommand{OwnerID: userID, InitialBalance: -1}); !errors.Is(err, apperrors.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.accounts.CreateAccount(ctx, cqrs.CreateAccountCommand{OwnerID: 404, InitialBalance: 0}); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestChangeAccountCurrency(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	_, ids := svc.mustCreateUser(t, "alice")

	view, err := svc.accounts.ChangeAccountCurrency(ctx, cqrs.ChangeAccountCurrencyCommand{AccountID: ids[models.USD], Currency: models.RUB})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Currency != models.RUB || view.Amount != 1 {
		t.Errorf("expected RUB with unchanged balance, got %+v", view)
	}

	if _, err := svc.accounts.ChangeAccountCurrency(ctx, cqrs.ChangeAccountCurrencyCommand{AccountID: ids[models.EUR], Currency: "GBP"}); !errors.Is(err, apperrors.ErrUnsupportedCurrency) {
		t.Errorf("expected ErrUnsupportedCurrency, got %v", err)
	}
	if _, err := svc.accounts.ChangeAccountCurrency(ctx, cqrs.ChangeAccountCurrencyCommand{AccountID: 9999, Currency: models.EUR}); !errors.Is(err, apperrors.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	found := false
	for _, typ := range svc.publisher.types() {
		if typ == events.AccountCurrencyChanged {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s event, got %v", events.AccountCurrencyChanged, svc.publisher.types())
	}
}

func TestBalanceChange_PublishesEvent(t *testing.T) {
	svc := newTestServices(t)
	userID, ids := svc.mustCreateUser(t, "alice")

	if _, err := svc.accounts.Deposit(context.Background(), cqrs.DepositCommand{UserID: userID, AccountID: ids[models.USD], Amount: 5}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	svc.publisher.mu.Lock()
	defer svc.publisher.mu.Unlock()
	last := svc.publisher.events[len(svc.publisher.events)-1]
	data, ok := last.data.(events.BalanceUpdatedEvent)
	if !ok || last.stream != events.AccountEventsStream {
		t.Fatalf("unexpected event %+v", last)
	}
	if data.NewBalance != 6 || data.Change != 5 || data.OwnerID != userID {
		t.Errorf("unexpected payload %+v", data)
	}
}
