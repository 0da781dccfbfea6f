package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/repairhub/internal/auth"
	"github.com/mrlokans/repairhub/internal/database/repairs"
	"github.com/mrlokans/repairhub/internal/entities"
)

// PagesController serves the server-rendered pages of the site.
type PagesController struct {
	repairs *repairs.Repository
}

func NewPagesController(repo *repairs.Repository) *PagesController {
	return &PagesController{repairs: repo}
}

// Home renders the landing page. Logged-in users see their open requests
// alongside the submission form.
func (pc *PagesController) Home(c *gin.Context) {
	user := auth.CurrentUser(c)

	var requests []entities.RepairRequest
	if user != nil {
		var err error
		requests, err = pc.repairs.ListByUser(user.ID)
		if err != nil {
			c.String(http.StatusInternalServerError, "Error loading repair requests")
			return
		}
	}

	c.HTML(http.StatusOK, "index", gin.H{
		"Title":     "Repair requests",
		"User":      user,
		"Requests":  requests,
		"CSRFToken": auth.GetCSRFToken(c),
	})
}

// MyRequests renders the list of the current user's repair requests.
func (pc *PagesController) MyRequests(c *gin.Context) {
	user := auth.CurrentUser(c)

	requests, err := pc.repairs.ListByUser(user.ID)
	if err != nil {
		c.String(http.StatusInternalServerError, "Error loading repair requests")
		return
	}

	c.HTML(http.StatusOK, "requests", gin.H{
		"Title":     "My requests",
		"User":      user,
		"Requests":  requests,
		"CSRFToken": auth.GetCSRFToken(c),
	})
}

// NewRequest renders the repair submission form.
func (pc *PagesController) NewRequest(c *gin.Context) {
	c.HTML(http.StatusOK, "create_request", gin.H{
		"Title":     "New repair request",
		"User":      auth.CurrentUser(c),
		"CSRFToken": auth.GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// Help renders the static help page.
func (pc *PagesController) Help(c *gin.Context) {
	c.HTML(http.StatusOK, "help", gin.H{
		"Title": "Help",
		"User":  auth.CurrentUser(c),
	})
}

// Contacts renders the static contacts page.
func (pc *PagesController) Contacts(c *gin.Context) {
	c.HTML(http.StatusOK, "contacts", gin.H{
		"Title": "Contacts",
		"User":  auth.CurrentUser(c),
	})
}

// FAQ renders the static FAQ page.
func (pc *PagesController) FAQ(c *gin.Context) {
	c.HTML(http.StatusOK, "faq", gin.H{
		"Title": "FAQ",
		"User":  auth.CurrentUser(c),
	})
}
