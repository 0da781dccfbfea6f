package auth

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/repairhub/internal/config"
	"github.com/mrlokans/repairhub/internal/database/users"
	"github.com/mrlokans/repairhub/internal/entities"
)

const testPageTemplates = `
{{define "login"}}<form>{{if .Error}}<p class="error">{{.Error}}</p>{{end}}</form>{{end}}
{{define "register"}}<form>{{if .Error}}<p class="error">{{.Error}}</p>{{end}}</form>{{end}}
`

// setupIntegration builds a router wired the way the app wires it: identity
// middleware everywhere, auth controller routes, and an admin-gated page.
func setupIntegration(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&entities.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := users.NewRepository(db)
	cfg := config.Auth{
		BcryptCost:       bcrypt.MinCost,
		TokenTTL:         24 * time.Hour,
		MaxLoginAttempts: 100, // Keep rate limiting out of the way here
		SecureCookies:    false,
	}
	svc := NewService(repo, cfg)
	tokens, err := NewTokenService(testSecret, "HS256", cfg.TokenTTL)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	mw := NewMiddleware(svc, tokens)
	controller := NewController(svc, tokens, cfg)
	t.Cleanup(controller.Stop)

	// Seed the demo accounts
	seed := func(username, email, password string, admin bool) {
		hash, err := HashPassword(password, bcrypt.MinCost)
		if err != nil {
			t.Fatalf("HashPassword failed: %v", err)
		}
		if err := repo.Create(&entities.User{
			Username: username, Email: email, PasswordHash: hash, IsAdmin: admin,
		}); err != nil {
			t.Fatalf("seed %s failed: %v", username, err)
		}
	}
	seed("admin", "admin@ex.com", "admin", true)
	seed("user", "user@ex.com", "user", false)

	router := gin.New()
	router.SetHTMLTemplate(template.Must(template.New("").Parse(testPageTemplates)))
	router.Use(mw.Handler())
	controller.RegisterRoutes(router, mw)
	router.GET("/admin", mw.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "admin panel")
	})

	return router
}

func postLoginForm(router *gin.Engine, username, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func tokenCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == config.AccessTokenCookie {
			return cookie
		}
	}
	t.Fatal("no access token cookie in response")
	return nil
}

func TestLogin_AdminFlow(t *testing.T) {
	router := setupIntegration(t)

	w := postLoginForm(router, "admin", "admin")

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin" {
		t.Errorf("admin should land on the admin panel, got %q", loc)
	}

	cookie := tokenCookie(t, w)
	if !cookie.HttpOnly {
		t.Error("access token cookie must be HTTP-only")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie SameSite = %v, want Lax", cookie.SameSite)
	}
	if cookie.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Errorf("cookie max-age = %d, want 24h in seconds", cookie.MaxAge)
	}

	// The cookie admits the admin to the gated page
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Errorf("admin page with admin cookie: status = %d, want 200", w2.Code)
	}
}

func TestLogin_RegularUserRedirectsHome(t *testing.T) {
	router := setupIntegration(t)

	w := postLoginForm(router, "user", "user")

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("location = %q, want /", loc)
	}
}

func TestAdminPage_Gating(t *testing.T) {
	router := setupIntegration(t)

	t.Run("no cookie redirects to login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", w.Code)
		}
		if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "/auth/login") {
			t.Errorf("location = %q, want the login page", loc)
		}
	})

	t.Run("non-admin cookie is forbidden", func(t *testing.T) {
		login := postLoginForm(router, "user", "user")
		cookie := tokenCookie(t, login)

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})
}

func TestLogin_InvalidCredentials(t *testing.T) {
	router := setupIntegration(t)

	for _, tc := range []struct{ username, password string }{
		{"admin", "wrong"},
		{"ghost", "admin"},
	} {
		w := postLoginForm(router, tc.username, tc.password)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.username, w.Code)
		}
		if !strings.Contains(w.Body.String(), "Invalid username or password") {
			t.Errorf("%s: expected the generic credentials message", tc.username)
		}
		if len(w.Result().Cookies()) != 0 {
			t.Errorf("%s: no cookie may be set on failure", tc.username)
		}
	}
}

func TestTokenEndpoint_BearerFlow(t *testing.T) {
	router := setupIntegration(t)

	form := url.Values{"username": {"user"}, "password": {"user"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON response: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("bearer mode must not set cookies")
	}

	// The token works in the Authorization header
	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	meW := httptest.NewRecorder()
	router.ServeHTTP(meW, meReq)

	if meW.Code != http.StatusOK {
		t.Fatalf("/auth/me status = %d, want 200", meW.Code)
	}
	if !strings.Contains(meW.Body.String(), `"username":"user"`) {
		t.Errorf("unexpected /auth/me body: %s", meW.Body.String())
	}
	if strings.Contains(meW.Body.String(), "password") {
		t.Error("password material leaked into /auth/me")
	}
}

func TestTokenEndpoint_InvalidCredentials(t *testing.T) {
	router := setupIntegration(t)

	form := url.Values{"username": {"user"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Error("expected a WWW-Authenticate: Bearer hint")
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	router := setupIntegration(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	cookie := tokenCookie(t, w)
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Error("logout must clear the access token cookie")
	}
}

func TestRegisterForm_Flow(t *testing.T) {
	router := setupIntegration(t)

	form := url.Values{
		"username": {"newuser"},
		"email":    {"new@example.com"},
		"password": {"password123"},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303: %s", w.Code, w.Body.String())
	}

	// The fresh account can log in
	login := postLoginForm(router, "newuser", "password123")
	if login.Code != http.StatusSeeOther {
		t.Errorf("fresh account login: status = %d, want 303", login.Code)
	}

	// Duplicate registration is rejected with a clear message
	req2 := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(form.Encode()))
	req2.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	if w2.Code != http.StatusBadRequest {
		t.Errorf("duplicate registration: status = %d, want 400", w2.Code)
	}
}

func TestLogin_RateLimiting(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&entities.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := users.NewRepository(db)
	cfg := config.Auth{
		BcryptCost:       bcrypt.MinCost,
		TokenTTL:         time.Hour,
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}
	svc := NewService(repo, cfg)
	tokens, err := NewTokenService(testSecret, "HS256", cfg.TokenTTL)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	mw := NewMiddleware(svc, tokens)
	controller := NewController(svc, tokens, cfg)
	t.Cleanup(controller.Stop)

	router := gin.New()
	router.SetHTMLTemplate(template.Must(template.New("").Parse(testPageTemplates)))
	router.Use(mw.Handler())
	controller.RegisterRoutes(router, mw)

	for i := 0; i < 3; i++ {
		postLoginForm(router, "victim", "wrong")
	}

	w := postLoginForm(router, "victim", "wrong")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 after lockout", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}
