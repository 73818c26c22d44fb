package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/utils"
	"github.com/gin-gonic/gin"
)

// respondWithDomainError maps a core error to its HTTP status. Unknown errors are
// logged and reported as 500 without detail.
func respondWithDomainError(c *gin.Context, err error) {
	var insufficient *apperrors.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, insufficient.Error())
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, apperrors.ErrCurrencyMismatch):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Account currencies do not match")
	case errors.Is(err, apperrors.ErrBalanceOverflow):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Deposit would exceed the maximum balance")
	case errors.Is(err, apperrors.ErrPasswordTooLong):
		middleware.RespondWithError(c, http.StatusBadRequest, "Password must be at most 72 bytes")
	case errors.Is(err, apperrors.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, "Amount must not be negative")
	case errors.Is(err, apperrors.ErrUnsupportedCurrency):
		middleware.RespondWithError(c, http.StatusBadRequest, "Unsupported currency")
	case errors.Is(err, apperrors.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, apperrors.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		middleware.RespondWithError(c, http.StatusConflict, "User already exists")
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, apperrors.ErrInvalidToken):
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
	default:
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(middleware.RequestIDKey),
			"error", err,
		)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// pathID reads a positive numeric path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+name)
	}
	return id, ok
}

// bindAndValidate decodes the JSON body into req and runs struct validation,
// answering 400 on failure.
func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}
