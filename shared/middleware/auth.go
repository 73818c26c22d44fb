package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserID   = "userId"
	ctxUsername = "username"
	ctxRole     = "role"
)

var jwtSecretVal atomic.Pointer[[]byte]

// MustInitJWTSecret installs the HMAC key used to sign and verify tokens.
func MustInitJWTSecret(secret string) {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	key := []byte(secret)
	jwtSecretVal.Store(&key)
}

func jwtSecret() []byte {
	key := jwtSecretVal.Load()
	if key == nil {
		panic("JWT secret used before MustInitJWTSecret")
	}
	return *key
}

type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID   int64
	Username string
	Role     string
}

// BasicAuthenticator verifies HTTP Basic credentials.
type BasicAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Principal, error)
}

// IssueToken signs a token for p that expires after ttl.
func IssueToken(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   p.UserID,
		Username: p.Username,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthMiddleware accepts a Bearer token or, when basic is non-nil, HTTP Basic credentials.
func AuthMiddleware(basic BasicAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		scheme, _, _ := strings.Cut(authHeader, " ")
		switch {
		case scheme == "Bearer":
			claims, err := ParseToken(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer")))
			if err != nil {
				RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
				c.Abort()
				return
			}
			setPrincipal(c, Principal{UserID: claims.UserID, Username: claims.Username, Role: claims.Role})
		case scheme == "Basic" && basic != nil:
			username, password, ok := c.Request.BasicAuth()
			if !ok {
				RespondWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
				c.Abort()
				return
			}
			p, err := basic.Authenticate(c.Request.Context(), username, password)
			if err != nil {
				c.Header("WWW-Authenticate", `Basic realm="ledger"`)
				RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
				c.Abort()
				return
			}
			setPrincipal(c, *p)
		default:
			RespondWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role differs from role. It must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, _ := GetRole(c); got != role {
			RespondWithError(c, http.StatusForbidden, "Insufficient privileges")
			c.Abort()
			return
		}
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set(ctxUserID, p.UserID)
	c.Set(ctxUsername, p.Username)
	c.Set(ctxRole, p.Role)
}

func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

func GetRole(c *gin.Context) (string, bool) {
	role := c.GetString(ctxRole)
	return role, role != ""
}
