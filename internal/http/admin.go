package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/repairhub/internal/audit"
	"github.com/mrlokans/repairhub/internal/auth"
	"github.com/mrlokans/repairhub/internal/database/repairs"
	telegramstore "github.com/mrlokans/repairhub/internal/database/telegram"
	"github.com/mrlokans/repairhub/internal/entities"
	"github.com/mrlokans/repairhub/internal/logger"
)

// AdminController serves the admin panel: the full request list, status
// transitions and bot pairing codes.
type AdminController struct {
	repairs  *repairs.Repository
	links    *telegramstore.Repository
	notifier StatusNotifier
	auditor  *audit.Service
}

func NewAdminController(repo *repairs.Repository, links *telegramstore.Repository, notifier StatusNotifier, auditor *audit.Service) *AdminController {
	return &AdminController{
		repairs:  repo,
		links:    links,
		notifier: notifier,
		auditor:  auditor,
	}
}

// RegisterRoutes mounts the admin endpoints behind the admin gate.
func (ad *AdminController) RegisterRoutes(router *gin.Engine, mw *auth.Middleware) {
	admin := router.Group("/admin", mw.RequireAdmin())
	admin.GET("", ad.Panel)
	admin.GET("/repairs", ad.ListRepairs)
	admin.GET("/repair/:id", ad.RepairDetail)
	admin.POST("/repair/:id/status", ad.SetStatus)
	admin.POST("/bot/code", ad.GenerateBotCode)
}

// Panel renders the admin panel with every repair request.
func (ad *AdminController) Panel(c *gin.Context) {
	requests, err := ad.repairs.ListAll()
	if err != nil {
		c.String(http.StatusInternalServerError, "Error loading repair requests")
		return
	}

	c.HTML(http.StatusOK, "admin", gin.H{
		"Title":     "Admin panel",
		"User":      auth.CurrentUser(c),
		"Requests":  requests,
		"Statuses":  allStatuses(),
		"CSRFToken": auth.GetCSRFToken(c),
	})
}

// ListRepairs returns every repair request as JSON.
func (ad *AdminController) ListRepairs(c *gin.Context) {
	requests, err := ad.repairs.ListAll()
	if err != nil {
		respondInternalError(c, err, "list all repairs")
		return
	}
	c.JSON(http.StatusOK, requests)
}

// RepairDetail renders a single repair request.
func (ad *AdminController) RepairDetail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	request, err := ad.repairs.GetByID(id)
	if err != nil {
		if errors.Is(err, repairs.ErrNotFound) {
			c.String(http.StatusNotFound, "Repair request not found")
			return
		}
		c.String(http.StatusInternalServerError, "Error loading repair request")
		return
	}

	c.HTML(http.StatusOK, "repair_detail", gin.H{
		"Title":     "Repair request",
		"User":      auth.CurrentUser(c),
		"Request":   request,
		"Statuses":  allStatuses(),
		"CSRFToken": auth.GetCSRFToken(c),
	})
}

// SetStatus transitions a repair request and queues a notification to its
// owner. A failed enqueue is logged but never fails the transition.
func (ad *AdminController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	status := entities.RepairStatus(c.PostForm("status"))
	if status == "" {
		var body struct {
			Status entities.RepairStatus `json:"status"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			status = body.Status
		}
	}
	if !entities.ValidRepairStatus(status) {
		respondBadRequest(c, "invalid status")
		return
	}

	previous, err := ad.repairs.GetByID(id)
	if err != nil {
		if errors.Is(err, repairs.ErrNotFound) {
			respondNotFound(c, "repair request")
			return
		}
		respondInternalError(c, err, "load repair request")
		return
	}

	request, err := ad.repairs.UpdateStatus(id, status)
	if ad.auditor != nil {
		ad.auditor.LogStatusChange(auth.GetUserID(c), id, previous.Status, status, err)
	}
	if err != nil {
		if errors.Is(err, repairs.ErrNotFound) {
			respondNotFound(c, "repair request")
			return
		}
		respondInternalError(c, err, "update status")
		return
	}

	if ad.notifier != nil {
		if err := ad.notifier.NotifyStatusChange(request.UserID, request.ID, status); err != nil {
			logger.Get().Error().Err(err).
				Uint("request_id", request.ID).
				Msg("Failed to enqueue status notification")
		}
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, request)
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

// GenerateBotCode creates a fresh pairing code for the current account.
func (ad *AdminController) GenerateBotCode(c *gin.Context) {
	link, err := ad.links.GeneratePairingCode(auth.GetUserID(c))
	if err != nil {
		if errors.Is(err, telegramstore.ErrAlreadyBound) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "account is already linked to a chat"})
			return
		}
		respondInternalError(c, err, "generate pairing code")
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": link.Code})
}

// allStatuses lists the statuses an admin can assign, in lifecycle order.
func allStatuses() []entities.RepairStatus {
	return []entities.RepairStatus{
		entities.RepairStatusNew,
		entities.RepairStatusInProgress,
		entities.RepairStatusDone,
		entities.RepairStatusRejected,
	}
}
