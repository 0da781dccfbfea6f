package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/repairhub/internal/audit"
	"github.com/mrlokans/repairhub/internal/auth"
	"github.com/mrlokans/repairhub/internal/database/repairs"
	"github.com/mrlokans/repairhub/internal/entities"
	"github.com/mrlokans/repairhub/internal/logger"
	"github.com/mrlokans/repairhub/internal/uploads"
)

// requiredTimeLayouts are the timestamp formats accepted for the desired
// completion time: the HTML datetime-local input and RFC 3339 from API
// clients.
var requiredTimeLayouts = []string{
	"2006-01-02T15:04",
	time.RFC3339,
}

// AccountController exposes the authenticated repair request operations.
// Every handler is owner-scoped: a user can only ever see or touch their
// own requests.
type AccountController struct {
	repairs *repairs.Repository
	uploads *uploads.Store
	auditor *audit.Service
}

func NewAccountController(repo *repairs.Repository, store *uploads.Store, auditor *audit.Service) *AccountController {
	return &AccountController{
		repairs: repo,
		uploads: store,
		auditor: auditor,
	}
}

// RegisterRoutes mounts the account endpoints behind the auth gate.
func (ac *AccountController) RegisterRoutes(router *gin.Engine, mw *auth.Middleware) {
	account := router.Group("/account", mw.RequireAuth())
	account.GET("/user/me", ac.Me)
	account.GET("/repairs", ac.ListRepairs)
	account.POST("/repair/add", ac.AddRepair)
	account.GET("/repair/:id", ac.GetRepair)
	account.PUT("/repair/:id", ac.UpdateRepair)
	account.DELETE("/repair/:id", ac.DeleteRepair)
}

// Me returns the current account.
func (ac *AccountController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c))
}

// ListRepairs returns the current user's repair requests, newest first.
func (ac *AccountController) ListRepairs(c *gin.Context) {
	requests, err := ac.repairs.ListByUser(auth.GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list repairs")
		return
	}
	c.JSON(http.StatusOK, requests)
}

// AddRepair creates a repair request from a multipart form: a description,
// an optional desired completion time and an optional photo. Browser form
// posts are redirected back to the request list; API callers get the created
// request as JSON.
func (ac *AccountController) AddRepair(c *gin.Context) {
	description := strings.TrimSpace(c.PostForm("description"))
	if description == "" {
		ac.addRepairFailure(c, http.StatusBadRequest, "description is required")
		return
	}

	requiredTime, err := parseRequiredTime(c.PostForm("required_time"))
	if err != nil {
		ac.addRepairFailure(c, http.StatusBadRequest, "invalid required_time")
		return
	}

	var photoURL string
	if file, err := c.FormFile("photo"); err == nil && file != nil {
		if ac.uploads == nil {
			ac.addRepairFailure(c, http.StatusBadRequest, "photo uploads are disabled")
			return
		}
		photoURL, err = ac.uploads.Save(file)
		if err != nil {
			switch {
			case errors.Is(err, uploads.ErrTooLarge):
				ac.addRepairFailure(c, http.StatusRequestEntityTooLarge, "photo is too large")
			case errors.Is(err, uploads.ErrUnsupportedType):
				ac.addRepairFailure(c, http.StatusBadRequest, "photo must be an image")
			default:
				respondInternalError(c, err, "store photo")
			}
			return
		}
	}

	request := entities.RepairRequest{
		UserID:       auth.GetUserID(c),
		Description:  description,
		PhotoURL:     photoURL,
		RequiredTime: requiredTime,
	}
	if err := ac.repairs.Create(&request); err != nil {
		respondInternalError(c, err, "create repair")
		return
	}
	if ac.auditor != nil {
		ac.auditor.LogRepairCreate(request.UserID, request.ID, request.Description)
	}

	if wantsJSON(c) {
		respondCreated(c, request)
		return
	}
	c.Redirect(http.StatusSeeOther, "/requests")
}

// GetRepair returns one of the current user's requests. Requests owned by
// someone else are indistinguishable from missing ones.
func (ac *AccountController) GetRepair(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	request, err := ac.repairs.GetByIDForUser(id, auth.GetUserID(c))
	if err != nil {
		if errors.Is(err, repairs.ErrNotFound) {
			respondNotFound(c, "repair request")
			return
		}
		respondInternalError(c, err, "get repair")
		return
	}
	c.JSON(http.StatusOK, request)
}

// updateRepairRequest is the JSON payload for editing a request.
type updateRepairRequest struct {
	Description  *string `json:"description"`
	RequiredTime *string `json:"required_time"`
}

// UpdateRepair edits the description or desired completion time of one of
// the current user's requests.
func (ac *AccountController) UpdateRepair(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	request, err := ac.repairs.GetByIDForUser(id, auth.GetUserID(c))
	if err != nil {
		if errors.Is(err, repairs.ErrNotFound) {
			respondNotFound(c, "repair request")
			return
		}
		respondInternalError(c, err, "get repair")
		return
	}

	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			respondBadRequest(c, "description cannot be empty")
			return
		}
		request.Description = description
	}
	if req.RequiredTime != nil {
		requiredTime, err := parseRequiredTime(*req.RequiredTime)
		if err != nil {
			respondBadRequest(c, "invalid required_time")
			return
		}
		request.RequiredTime = requiredTime
	}

	if err := ac.repairs.Save(request); err != nil {
		respondInternalError(c, err, "update repair")
		return
	}
	c.JSON(http.StatusOK, request)
}

// DeleteRepair removes one of the current user's requests along with its
// stored photo.
func (ac *AccountController) DeleteRepair(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID := auth.GetUserID(c)
	request, err := ac.repairs.GetByIDForUser(id, userID)
	if err != nil {
		if errors.Is(err, repairs.ErrNotFound) {
			respondNotFound(c, "repair request")
			return
		}
		respondInternalError(c, err, "get repair")
		return
	}

	if err := ac.repairs.Delete(id, userID); err != nil {
		if errors.Is(err, repairs.ErrNotFound) {
			respondNotFound(c, "repair request")
			return
		}
		respondInternalError(c, err, "delete repair")
		return
	}

	if ac.uploads != nil && request.PhotoURL != "" {
		if err := ac.uploads.Remove(request.PhotoURL); err != nil {
			logger.Get().Warn().Err(err).Str("photo", request.PhotoURL).Msg("Failed to remove photo")
		}
	}
	if ac.auditor != nil {
		ac.auditor.LogRepairDelete(userID, id)
	}

	respondSuccess(c, "repair request deleted")
}

// addRepairFailure reports a rejected submission: JSON for API callers, a
// redirect back to the form for browsers.
func (ac *AccountController) addRepairFailure(c *gin.Context, status int, message string) {
	if wantsJSON(c) {
		c.JSON(status, ErrorResponse{Error: message})
		return
	}
	c.Redirect(http.StatusSeeOther, "/requests/new?error="+strings.ReplaceAll(message, " ", "+"))
}

// parseRequiredTime parses an optional desired completion time.
func parseRequiredTime(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range requiredTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("unrecognized timestamp format")
}
