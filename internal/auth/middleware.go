package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/repairhub/internal/config"
	"github.com/mrlokans/repairhub/internal/database/users"
	"github.com/mrlokans/repairhub/internal/entities"
)

// Context keys for identity data
const (
	ContextKeyUser     = "auth_user"
	ContextKeyAuthType = "auth_type"
)

// AuthType indicates which channel carried the access token.
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeCookie AuthType = "cookie"
	AuthTypeBearer AuthType = "bearer"
)

// Middleware resolves the request identity from the access token and gates
// routes on it. Per request the terminal state is either anonymous or an
// identified account: missing, expired and invalid tokens all resolve to
// anonymous, as does a valid token whose account no longer exists.
type Middleware struct {
	service *Service
	tokens  *TokenService
}

// NewMiddleware creates the identity-resolution middleware.
func NewMiddleware(service *Service, tokens *TokenService) *Middleware {
	return &Middleware{service: service, tokens: tokens}
}

// Handler returns the gin middleware that resolves the current account for
// every request. It never rejects by itself; the Require* gates do that.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyAuthType, AuthTypeNone)

		token, authType := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil || claims == nil {
			// Expired or invalid token: anonymous, never an error
			c.Next()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			c.Next()
			return
		}

		// Re-resolve against the store to catch accounts deleted after
		// token issuance. Fail closed: vanished account means anonymous.
		user, err := m.service.GetUserByID(userID)
		if err != nil {
			if !errors.Is(err, users.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
				return
			}
			c.Next()
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyAuthType, authType)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests: API flows get 401 with a bearer
// hint, browser flows are redirected to the login page.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}

		if isAPIRequest(c) {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		c.Redirect(http.StatusSeeOther, "/auth/login?next="+c.Request.URL.Path)
		c.Abort()
	}
}

// RequireAdmin rejects requests whose resolved account is not an
// administrator. Stacks on top of RequireAuth.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			if isAPIRequest(c) {
				c.Header("WWW-Authenticate", "Bearer")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "authentication required",
				})
				return
			}
			c.Redirect(http.StatusSeeOther, "/auth/login?next="+c.Request.URL.Path)
			c.Abort()
			return
		}
		if !user.IsAdmin {
			if isAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "admin access required",
				})
				return
			}
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// extractToken pulls the access token from whichever channel is present.
// The bearer header wins over the cookie when both are supplied.
func extractToken(c *gin.Context) (string, AuthType) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], AuthTypeBearer
		}
	}

	if cookie, err := c.Cookie(config.AccessTokenCookie); err == nil && cookie != "" {
		return cookie, AuthTypeCookie
	}

	return "", AuthTypeNone
}

// isAPIRequest distinguishes API clients from browsers for the shape of
// rejection responses.
func isAPIRequest(c *gin.Context) bool {
	if c.GetHeader("Authorization") != "" {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(c.Request.URL.Path, "/account/") ||
		c.Request.URL.Path == "/auth/me"
}

// CurrentUser returns the account resolved for this request, or nil for
// anonymous requests.
func CurrentUser(c *gin.Context) *entities.User {
	if v, exists := c.Get(ContextKeyUser); exists {
		if user, ok := v.(*entities.User); ok {
			return user
		}
	}
	return nil
}

// GetUserID returns the resolved account ID, or 0 for anonymous requests.
func GetUserID(c *gin.Context) uint {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

// GetAuthType reports which channel authenticated the request.
func GetAuthType(c *gin.Context) AuthType {
	if v, exists := c.Get(ContextKeyAuthType); exists {
		if t, ok := v.(AuthType); ok {
			return t
		}
	}
	return AuthTypeNone
}

// IsAuthenticated reports whether an account was resolved for this request.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUser(c) != nil
}
