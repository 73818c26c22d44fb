package models

import "time"

// AccountView is the read-optimised projection of an account.
// OwnerID is populated for ownership checks but never serialised to the API response.
type AccountView struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"-"`
	Amount    int64     `json:"amount"`
	Currency  Currency  `json:"currency"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

// AccountSummary is the short form of an account used in account and user listings.
type AccountSummary struct {
	AccountID int64    `json:"accountId"`
	Currency  Currency `json:"currency"`
}

// UserView is the read-optimised projection of a user.
// It never exposes PasswordHash.
type UserView struct {
	ID       int64            `json:"id"`
	Username string           `json:"username"`
	Role     string           `json:"role"`
	Accounts []AccountSummary `json:"accounts"`
}

// UserListItem is one row of the user listing.
type UserListItem struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// TransferResult carries both sides of a committed transfer.
type TransferResult struct {
	Source      AccountView `json:"source"`
	Destination AccountView `json:"destination"`
	Amount      int64       `json:"amount"`
}

func NewAccountView(a *Account) *AccountView {
	return &AccountView{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		Amount:    a.Amount,
		Currency:  a.Currency,
		UpdatedAt: a.UpdatedAt,
	}
}

func NewUserView(u *User, accounts []Account) *UserView {
	summaries := make([]AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		summaries = append(summaries, AccountSummary{AccountID: a.ID, Currency: a.Currency})
	}
	return &UserView{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		Accounts: summaries,
	}
}
