package cqrs

import "github.com/eaglebank/ledger/shared/models"

type CreateUserCommand struct {
	Username string
	Password string
	Role     string
}

// CreateAccountCommand opens an account outside signup provisioning.
type CreateAccountCommand struct {
	OwnerID        int64
	InitialBalance int64
}

type ChangeAccountCurrencyCommand struct {
	AccountID int64
	Currency  models.Currency
}

type DepositCommand struct {
	UserID    int64
	AccountID int64
	Amount    int64
}

type WithdrawCommand struct {
	UserID    int64
	AccountID int64
	Amount    int64
}

// TransferCommand moves Amount from an account of InitiatingUserID to an account of
// DestinationUserID.
type TransferCommand struct {
	InitiatingUserID     int64
	SourceAccountID      int64
	DestinationAccountID int64
	DestinationUserID    int64
	Amount               int64
}

type LoginCommand struct {
	Username string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}
