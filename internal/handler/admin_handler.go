package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/gin-gonic/gin"
)

// AdminAccountCommander defines the administrative account operations.
type AdminAccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.AccountView, error)
	ChangeAccountCurrency(context.Context, cqrs.ChangeAccountCurrencyCommand) (*models.AccountView, error)
}

// AdminHandler serves the /v1/admin routes. Role checks happen in middleware.
type AdminHandler struct {
	commands AdminAccountCommander
}

type CreateAccountRequest struct {
	OwnerID        int64  `json:"ownerId" validate:"required,gt=0"`
	InitialBalance *int64 `json:"initialBalance" validate:"required"`
}

type ChangeCurrencyRequest struct {
	Currency string `json:"currency" validate:"required,currency"`
}

func NewAdminHandler(commands AdminAccountCommander) *AdminHandler {
	return &AdminHandler{commands: commands}
}

func (h *AdminHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		OwnerID:        req.OwnerID,
		InitialBalance: *req.InitialBalance,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAccountResponse(view))
}

func (h *AdminHandler) ChangeAccountCurrency(c *gin.Context) {
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}

	var req ChangeCurrencyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.ChangeAccountCurrency(c.Request.Context(), cqrs.ChangeAccountCurrencyCommand{
		AccountID: accountID,
		Currency:  models.Currency(req.Currency),
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(view))
}
