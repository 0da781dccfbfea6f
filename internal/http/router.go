package http

import (
	"html/template"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/repairhub/internal/auth"
	"github.com/mrlokans/repairhub/internal/entities"
	"github.com/mrlokans/repairhub/internal/logger"
)

// templateFuncs are helpers available to every page template.
var templateFuncs = template.FuncMap{
	"statusLabel": statusLabel,
	"formatTime": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("2006-01-02 15:04")
		case *time.Time:
			if t != nil {
				return t.Format("2006-01-02 15:04")
			}
		}
		return ""
	},
}

// statusLabel renders a repair status for humans.
func statusLabel(status entities.RepairStatus) string {
	switch status {
	case entities.RepairStatusNew:
		return "New"
	case entities.RepairStatusInProgress:
		return "In progress"
	case entities.RepairStatusDone:
		return "Done"
	case entities.RepairStatusRejected:
		return "Rejected"
	}
	return string(status)
}

// RequestLogger logs every request through the process logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Get().Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger())
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF protects browser form flows; bearer clients bypass it
	if cfg.CSRFSecret != "" {
		router.Use(auth.CSRFMiddleware([]byte(cfg.CSRFSecret), cfg.SecureCookies, cfg.Tokens))
	}

	// Resolve the request identity everywhere
	router.Use(cfg.AuthMiddleware.Handler())

	// Load HTML templates with helper functions
	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseGlob(cfg.TemplatesPath + "/*.html"))
	router.SetHTMLTemplate(tmpl)

	// Serve static assets and uploaded photos
	router.Static("/static", cfg.StaticPath)
	if cfg.Uploads != nil {
		router.Static(cfg.Uploads.PublicPath(), cfg.Uploads.Dir())
	}

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Authentication routes
	cfg.AuthController.RegisterRoutes(router, cfg.AuthMiddleware)

	// Server-rendered pages
	pages := NewPagesController(cfg.Repairs)
	router.GET("/", pages.Home)
	router.GET("/requests", cfg.AuthMiddleware.RequireAuth(), pages.MyRequests)
	router.GET("/requests/new", cfg.AuthMiddleware.RequireAuth(), pages.NewRequest)
	router.GET("/help", pages.Help)
	router.GET("/contacts", pages.Contacts)
	router.GET("/faq", pages.FAQ)

	// Authenticated repair request API
	account := NewAccountController(cfg.Repairs, cfg.Uploads, cfg.Auditor)
	account.RegisterRoutes(router, cfg.AuthMiddleware)

	// Admin panel
	admin := NewAdminController(cfg.Repairs, cfg.Links, cfg.Notifier, cfg.Auditor)
	admin.RegisterRoutes(router, cfg.AuthMiddleware)

	return router
}
