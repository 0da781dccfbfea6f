package http

import (
	"github.com/mrlokans/repairhub/internal/audit"
	"github.com/mrlokans/repairhub/internal/auth"
	"github.com/mrlokans/repairhub/internal/database"
	"github.com/mrlokans/repairhub/internal/database/repairs"
	telegramstore "github.com/mrlokans/repairhub/internal/database/telegram"
	"github.com/mrlokans/repairhub/internal/database/users"
	"github.com/mrlokans/repairhub/internal/entities"
	"github.com/mrlokans/repairhub/internal/uploads"
)

// StatusNotifier enqueues a notification about a repair status change.
// Satisfied by the task queue client.
type StatusNotifier interface {
	NotifyStatusChange(userID, requestID uint, status entities.RepairStatus) error
}

// RouterConfig contains all dependencies and configuration needed to create
// the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Users    *users.Repository
	Repairs  *repairs.Repository
	Links    *telegramstore.Repository

	// Authentication
	AuthService    *auth.Service
	Tokens         *auth.TokenService
	AuthMiddleware *auth.Middleware
	AuthController *auth.Controller
	CSRFSecret     string
	SecureCookies  bool

	// Photo storage (optional; uploads are rejected when nil)
	Uploads *uploads.Store

	// Notification queue (optional; status changes are silent when nil)
	Notifier StatusNotifier

	// Audit trail (optional)
	Auditor *audit.Service

	// UI paths
	TemplatesPath string
	StaticPath    string

	// Application info
	Version string
}
