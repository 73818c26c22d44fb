package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/gin-gonic/gin"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	Deposit(context.Context, cqrs.DepositCommand) (*models.AccountView, error)
	Withdraw(context.Context, cqrs.WithdrawCommand) (*models.AccountView, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountSummary, error)
}

// AccountHandler serves the caller's own accounts.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

// BalanceChangeRequest carries a deposit or withdrawal amount in minor units.
// A pointer lets an explicit zero through "required".
type BalanceChangeRequest struct {
	Amount *int64 `json:"amount" validate:"required"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	accounts, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{UserID: userID})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: accounts})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{
		AccountID:        accountID,
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(view))
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req BalanceChangeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.Deposit(c.Request.Context(), cqrs.DepositCommand{
		UserID:    userID,
		AccountID: accountID,
		Amount:    *req.Amount,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(view))
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req BalanceChangeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.Withdraw(c.Request.Context(), cqrs.WithdrawCommand{
		UserID:    userID,
		AccountID: accountID,
		Amount:    *req.Amount,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(view))
}
