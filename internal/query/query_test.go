package query

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
)

func TestMain(m *testing.M) {
	middleware.MustInitJWTSecret("query-test-secret")
	os.Exit(m.Run())
}

type fixture struct {
	store    *repository.MemoryStore
	accounts *AccountQueryService
	users    *UserQueryService
	auth     *AuthQueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	users := NewUserQueryService(repository.NewUserReadRepository(store, nil, 0), store)
	return &fixture{
		store:    store,
		accounts: NewAccountQueryService(repository.NewAccountReadRepository(store, nil, 0)),
		users:    users,
		auth:     NewAuthQueryService(store, users, time.Hour),
	}
}

func (f *fixture) addUser(t *testing.T, username, password, role string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Username: username, PasswordHash: hash, Role: role}
	if err := f.store.Users().Save(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

func (f *fixture) addAccount(t *testing.T, owner int64, currency models.Currency, amount int64) int64 {
	t.Helper()
	a := &models.Account{OwnerID: owner, Currency: currency, Amount: amount}
	if err := f.store.Accounts().Save(context.Background(), a); err != nil {
		t.Fatalf("save account: %v", err)
	}
	return a.ID
}

func TestGetAccount_ScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", "password123", models.RoleUser)
	bob := f.addUser(t, "bob", "password123", models.RoleUser)
	id := f.addAccount(t, alice.ID, models.EUR, 250)

	view, err := f.accounts.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: id, RequestingUserID: alice.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Amount != 250 || view.Currency != models.EUR {
		t.Errorf("unexpected view %+v", view)
	}

	_, err = f.accounts.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: id, RequestingUserID: bob.ID})
	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound for a foreign account, got %v", err)
	}
	_, err = f.accounts.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: 9999, RequestingUserID: alice.ID})
	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound for a missing account, got %v", err)
	}
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", "password123", models.RoleUser)
	usd := f.addAccount(t, alice.ID, models.USD, 1)
	rub := f.addAccount(t, alice.ID, models.RUB, 1)
	f.addAccount(t, alice.ID+1, models.EUR, 1)

	list, err := f.accounts.ListAccounts(context.Background(), cqrs.ListAccountsQuery{UserID: alice.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []models.AccountSummary{{AccountID: usd, Currency: models.USD}, {AccountID: rub, Currency: models.RUB}}
	if len(list) != len(want) {
		t.Fatalf("expected %d accounts, got %+v", len(want), list)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("[%d] expected %+v got %+v", i, want[i], list[i])
		}
	}
}

func TestUserQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", "password123", models.RoleAdmin)
	f.addAccount(t, alice.ID, models.USD, 1)

	view, err := f.users.GetUser(ctx, cqrs.GetUserQuery{UserID: alice.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Username != "alice" || view.Role != models.RoleAdmin || len(view.Accounts) != 1 {
		t.Errorf("unexpected view %+v", view)
	}

	if id, err := f.users.GetUserIDByUsername(ctx, "alice"); err != nil || id != alice.ID {
		t.Errorf("expected id %d, got %d (%v)", alice.ID, id, err)
	}
	if _, err := f.users.GetUserIDByUsername(ctx, "nobody"); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	list, err := f.users.ListUsers(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("expected one user, got %+v (%v)", list, err)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", "password123", models.RoleUser)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid credentials", username: "alice", password: "password123"},
		{name: "wrong password", username: "alice", password: "nope", wantErr: apperrors.ErrInvalidCredentials},
		{name: "unknown user", username: "mallory", password: "password123", wantErr: apperrors.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.auth.Authenticate(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("[%s] expected %v got %v", tt.name, tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("[%s] unexpected error: %v", tt.name, err)
			}
			if p.UserID != alice.ID || p.Role != models.RoleUser {
				t.Errorf("[%s] unexpected principal %+v", tt.name, p)
			}
		})
	}
}

func TestLoginAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", "password123", models.RoleAdmin)

	token, err := f.auth.Login(ctx, cqrs.LoginCommand{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := middleware.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != alice.ID || claims.Role != models.RoleAdmin || claims.Subject != "alice" {
		t.Errorf("unexpected claims %+v", claims)
	}

	refreshed, err := f.auth.RefreshToken(ctx, cqrs.RefreshTokenCommand{Token: token})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := middleware.ParseToken(refreshed); err != nil {
		t.Errorf("refreshed token invalid: %v", err)
	}

	if _, err := f.auth.Login(ctx, cqrs.LoginCommand{Username: "alice", Password: "wrong"}); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.auth.RefreshToken(ctx, cqrs.RefreshTokenCommand{Token: "garbage"}); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	ghost, err := middleware.IssueToken(middleware.Principal{UserID: 4242, Username: "ghost", Role: models.RoleUser}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.auth.RefreshToken(ctx, cqrs.RefreshTokenCommand{Token: ghost}); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for an unknown user, got %v", err)
	}
}
