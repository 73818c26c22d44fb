package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/gin-gonic/gin"
)

// AuthQuerier issues tokens. Bad credentials and bad tokens surface as
// apperrors.ErrInvalidCredentials and apperrors.ErrInvalidToken.
type AuthQuerier interface {
	Login(context.Context, cqrs.LoginCommand) (string, error)
	RefreshToken(context.Context, cqrs.RefreshTokenCommand) (string, error)
}

type AuthHandler struct {
	queries AuthQuerier
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// AuthResponse is returned by both login and refresh.
type AuthResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
}

func NewAuthHandler(queries AuthQuerier) *AuthHandler {
	return &AuthHandler{queries: queries}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.respondWithToken(c, func(ctx context.Context) (string, error) {
		return h.queries.Login(ctx, cqrs.LoginCommand{Username: req.Username, Password: req.Password})
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.respondWithToken(c, func(ctx context.Context) (string, error) {
		return h.queries.RefreshToken(ctx, cqrs.RefreshTokenCommand{Token: req.Token})
	})
}

func (h *AuthHandler) respondWithToken(c *gin.Context, issue func(context.Context) (string, error)) {
	token, err := issue(c.Request.Context())
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token, TokenType: "Bearer"})
}
