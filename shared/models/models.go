package models

import "time"

// Currency is the ISO code an account is denominated in.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	RUB Currency = "RUB"
)

// SupportedCurrencies lists every currency a new user gets a default account in,
// in provisioning order.
var SupportedCurrencies = []Currency{USD, EUR, RUB}

// DefaultCurrency is used for accounts created outside signup provisioning.
const DefaultCurrency = USD

// DefaultAccountBalance is the opening balance of each provisioned account.
const DefaultAccountBalance int64 = 1

func (c Currency) Valid() bool {
	for _, sc := range SupportedCurrencies {
		if c == sc {
			return true
		}
	}
	return false
}

const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdTimestamp"`
}

// Account holds a non-negative balance in minor units of a single currency.
type Account struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"-"`
	Currency  Currency  `json:"currency"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}
