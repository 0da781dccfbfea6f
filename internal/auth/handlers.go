package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/repairhub/internal/config"
	"github.com/mrlokans/repairhub/internal/logger"
)

// isLocalPath validates that a redirect path is local to prevent open
// redirect attacks.
func isLocalPath(path string) bool {
	if path == "" {
		return false
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}
	// Protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "://") {
		return false
	}
	if strings.Contains(path, "\\") {
		return false
	}
	return true
}

// sanitizeRedirectPath returns a safe redirect path, defaulting to "/".
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/"
}

// AuthAuditor records authentication attempts. Satisfied by the audit
// service.
type AuthAuditor interface {
	LogAuth(userID uint, action, ipAddr string, success bool)
}

// Controller handles authentication HTTP endpoints: the server-rendered
// login/register pages with their form handlers (cookie mode) and the JSON
// API (bearer mode).
type Controller struct {
	service     *Service
	tokens      *TokenService
	rateLimiter *RateLimiter
	config      config.Auth
	auditor     AuthAuditor
}

// NewController creates a new authentication controller.
func NewController(service *Service, tokens *TokenService, cfg config.Auth) *Controller {
	rateLimiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     cfg.MaxLoginAttempts,
		WindowDuration:  cfg.RateLimitWindow,
		LockoutDuration: cfg.LockoutDuration,
	})

	return &Controller{
		service:     service,
		tokens:      tokens,
		rateLimiter: rateLimiter,
		config:      cfg,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *Controller) RegisterRoutes(router *gin.Engine, mw *Middleware) {
	// Browser flows
	router.GET("/auth/login", ac.LoginPage)
	router.POST("/auth/login", ac.Login)
	router.GET("/auth/register", ac.RegisterPage)
	router.POST("/auth/register", ac.RegisterForm)
	router.GET("/auth/logout", ac.Logout)

	// API flows
	router.POST("/auth/token", ac.Token)
	router.POST("/auth/api/register", ac.RegisterAPI)
	router.GET("/auth/me", mw.RequireAuth(), ac.Me)
}

// SetAuditor enables audit logging of authentication attempts.
func (ac *Controller) SetAuditor(a AuthAuditor) {
	ac.auditor = a
}

// logAuth records an authentication attempt when auditing is enabled.
func (ac *Controller) logAuth(userID uint, action, ipAddr string, success bool) {
	if ac.auditor != nil {
		ac.auditor.LogAuth(userID, action, ipAddr, success)
	}
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *Controller) Stop() {
	if ac.rateLimiter != nil {
		ac.rateLimiter.Stop()
	}
}

// LoginPage renders the login form.
func (ac *Controller) LoginPage(c *gin.Context) {
	if IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "login", gin.H{
		"Title":     "Login",
		"Next":      sanitizeRedirectPath(c.Query("next")),
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
		"Success":   c.Query("success"),
	})
}

// Login handles the login form submission. On success the access token is
// bound to an HTTP-only cookie and the browser is redirected: admins to the
// admin panel, everyone else to the requested page or home.
func (ac *Controller) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	next := sanitizeRedirectPath(c.PostForm("next"))
	clientIP := c.ClientIP()

	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, username); !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.HTML(http.StatusTooManyRequests, "login", gin.H{
			"Title":     "Login",
			"Next":      next,
			"Username":  username,
			"CSRFToken": GetCSRFToken(c),
			"Error":     "Too many login attempts. Please try again later.",
		})
		return
	}

	user, err := ac.service.Authenticate(username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			ac.rateLimiter.RecordFailure(clientIP, username)
			ac.logAuth(0, "login", clientIP, false)
			c.HTML(http.StatusUnauthorized, "login", gin.H{
				"Title":     "Login",
				"Next":      next,
				"Username":  username,
				"CSRFToken": GetCSRFToken(c),
				"Error":     "Invalid username or password",
			})
			return
		}

		logger.Get().Error().Err(err).Msg("login failed")
		c.HTML(http.StatusInternalServerError, "login", gin.H{
			"Title":     "Login",
			"Next":      next,
			"Username":  username,
			"CSRFToken": GetCSRFToken(c),
			"Error":     "Something went wrong. Please try again.",
		})
		return
	}

	ac.rateLimiter.RecordSuccess(clientIP, username)
	ac.logAuth(user.ID, "login", clientIP, true)

	token, err := ac.tokens.Issue(user, 0)
	if err != nil {
		logger.Get().Error().Err(err).Msg("token issuance failed")
		c.HTML(http.StatusInternalServerError, "login", gin.H{
			"Title":     "Login",
			"CSRFToken": GetCSRFToken(c),
			"Error":     "Something went wrong. Please try again.",
		})
		return
	}

	ac.setTokenCookie(c, token)

	if user.IsAdmin {
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	}
	if next != "/" {
		c.Redirect(http.StatusSeeOther, next)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Logout clears the access token cookie and redirects home.
//
// The token itself is not revoked: sessions are stateless, so a copy of the
// token stays valid until its expiry.
func (ac *Controller) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(config.AccessTokenCookie, "", -1, "/", "", ac.config.SecureCookies, true)
	c.Redirect(http.StatusSeeOther, "/")
}

// RegisterPage renders the registration form.
func (ac *Controller) RegisterPage(c *gin.Context) {
	if IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "register", gin.H{
		"Title":     "Register",
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// RegisterForm handles the registration form submission.
func (ac *Controller) RegisterForm(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")

	_, err := ac.service.Register(username, email, password)
	if err != nil {
		status, msg := registrationFailure(err)
		c.HTML(status, "register", gin.H{
			"Title":     "Register",
			"Username":  username,
			"Email":     email,
			"CSRFToken": GetCSRFToken(c),
			"Error":     msg,
		})
		return
	}

	c.Redirect(http.StatusSeeOther, "/auth/login?success=Registration+complete.+You+can+log+in+now.")
}

// Token is the API login endpoint. It accepts an OAuth2 password-style form
// and returns the access token as JSON; no cookie is involved.
func (ac *Controller) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	clientIP := c.ClientIP()

	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, username); !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
		return
	}

	user, err := ac.service.Authenticate(username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			ac.rateLimiter.RecordFailure(clientIP, username)
			ac.logAuth(0, "token", clientIP, false)
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		logger.Get().Error().Err(err).Msg("token endpoint failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ac.rateLimiter.RecordSuccess(clientIP, username)
	ac.logAuth(user.ID, "token", clientIP, true)

	token, err := ac.tokens.Issue(user, 0)
	if err != nil {
		logger.Get().Error().Err(err).Msg("token issuance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// registerRequest is the JSON payload for API registration.
type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterAPI handles registration for API clients.
func (ac *Controller) RegisterAPI(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}

	user, err := ac.service.Register(req.Username, req.Email, req.Password)
	if err != nil {
		status, msg := registrationFailure(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Me returns the account resolved for the current request.
func (ac *Controller) Me(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c))
}

// setTokenCookie binds the access token to an HTTP-only, SameSite=Lax
// cookie whose lifetime equals the token's validity window.
func (ac *Controller) setTokenCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		config.AccessTokenCookie,
		token,
		int(ac.tokens.TTL().Seconds()),
		"/",
		"",
		ac.config.SecureCookies,
		true, // HTTP-only
	)
}

// registrationFailure maps a registration error to a response status and a
// user-facing message. Validation problems are the caller's fault; anything
// else is reported generically.
func registrationFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrUsernameRequired),
		errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrUsernameInvalid),
		errors.Is(err, ErrEmailInvalid),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrPasswordTooLong):
		return http.StatusBadRequest, err.Error()
	default:
		logger.Get().Error().Err(err).Msg("registration failed")
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}
