package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/gin-gonic/gin"
)

// TransferCommander defines the write-side operation used by TransferHandler.
type TransferCommander interface {
	Transfer(context.Context, cqrs.TransferCommand) (*models.TransferResult, error)
}

type TransferHandler struct {
	commands TransferCommander
}

type TransferRequest struct {
	FromAccountID int64  `json:"fromAccountId" validate:"required,gt=0"`
	ToAccountID   int64  `json:"toAccountId" validate:"required,gt=0"`
	ToUserID      int64  `json:"toUserId" validate:"required,gt=0"`
	Amount        *int64 `json:"amount" validate:"required"`
}

func NewTransferHandler(commands TransferCommander) *TransferHandler {
	return &TransferHandler{commands: commands}
}

func (h *TransferHandler) Transfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferCommand{
		InitiatingUserID:     userID,
		SourceAccountID:      req.FromAccountID,
		DestinationAccountID: req.ToAccountID,
		DestinationUserID:    req.ToUserID,
		Amount:               *req.Amount,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}

	// The destination belongs to another user whenever ToUserID differs, so only
	// the source side is returned with a balance.
	resp := TransferResponse{
		Source:      newAccountResponse(&result.Source),
		Destination: AccountResponse{ID: result.Destination.ID, Currency: result.Destination.Currency},
		Amount:      result.Amount,
	}
	if result.Destination.OwnerID == userID {
		resp.Destination = newAccountResponse(&result.Destination)
	}
	c.JSON(http.StatusOK, resp)
}
