package events

import "time"

// Event types
const (
	UserCreated = "user.created"

	AccountCreated         = "account.created"
	AccountCurrencyChanged = "account.currency_changed"
	BalanceUpdated         = "balance.updated"
	TransferCompleted      = "transfer.completed"
)

// Stream names
const (
	UserEventsStream    = "user.events"
	AccountEventsStream = "account.events"
)

// Base event structure
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// User events
type UserCreatedEvent struct {
	UserID     int64   `json:"userId"`
	Username   string  `json:"username"`
	Role       string  `json:"role"`
	AccountIDs []int64 `json:"accountIds"`
}

// Account events
type AccountCreatedEvent struct {
	AccountID int64  `json:"accountId"`
	OwnerID   int64  `json:"ownerId"`
	Currency  string `json:"currency"`
	Amount    int64  `json:"amount"`
}

type AccountCurrencyChangedEvent struct {
	AccountID   int64  `json:"accountId"`
	OwnerID     int64  `json:"ownerId"`
	OldCurrency string `json:"oldCurrency"`
	NewCurrency string `json:"newCurrency"`
	Amount      int64  `json:"amount"`
}

// BalanceUpdatedEvent is emitted for deposits and withdrawals. Change is signed.
type BalanceUpdatedEvent struct {
	AccountID  int64  `json:"accountId"`
	OwnerID    int64  `json:"ownerId"`
	Currency   string `json:"currency"`
	NewBalance int64  `json:"newBalance"`
	Change     int64  `json:"change"`
}

type TransferCompletedEvent struct {
	SourceAccountID      int64  `json:"sourceAccountId"`
	SourceUserID         int64  `json:"sourceUserId"`
	DestinationAccountID int64  `json:"destinationAccountId"`
	DestinationUserID    int64  `json:"destinationUserId"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`
}
