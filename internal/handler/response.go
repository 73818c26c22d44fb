package handler

import (
	"time"

	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
)

// AccountResponse is the API form of an account. Amount stays in minor units;
// DisplayAmount renders it with two decimals.
type AccountResponse struct {
	ID            int64           `json:"id"`
	Amount        int64           `json:"amount"`
	DisplayAmount string          `json:"displayAmount"`
	Currency      models.Currency `json:"currency"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

func newAccountResponse(v *models.AccountView) AccountResponse {
	return AccountResponse{
		ID:            v.ID,
		Amount:        v.Amount,
		DisplayAmount: utils.FormatMinorUnits(v.Amount),
		Currency:      v.Currency,
		UpdatedAt:     v.UpdatedAt,
	}
}

type TransferResponse struct {
	Source      AccountResponse `json:"source"`
	Destination AccountResponse `json:"destination"`
	Amount      int64           `json:"amount"`
}

type ListAccountsResponse struct {
	Accounts []models.AccountSummary `json:"accounts"`
}

type ListUsersResponse struct {
	Users []models.UserListItem `json:"users"`
}
