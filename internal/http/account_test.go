package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/repairhub/internal/entities"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)

// repairForm builds a multipart repair submission.
func repairForm(t *testing.T, description, requiredTime string, photo []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("description", description))
	if requiredTime != "" {
		require.NoError(t, writer.WriteField("required_time", requiredTime))
	}
	if photo != nil {
		part, err := writer.CreateFormFile("photo", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestAccountMe(t *testing.T) {
	app := setupTestApp(t)

	w := app.do(t, app.user, httptest.NewRequest(http.MethodGet, "/account/user/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"user"`)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestAccountEndpoints_RequireAuth(t *testing.T) {
	app := setupTestApp(t)

	w := app.do(t, nil, httptest.NewRequest(http.MethodGet, "/account/repairs", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestAddRepair_WithPhoto(t *testing.T) {
	app := setupTestApp(t)

	body, contentType := repairForm(t, "Broken kettle", "2026-09-15T10:00", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/account/repair/add", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	w := app.do(t, app.user, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created entities.RepairRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Broken kettle", created.Description)
	assert.Equal(t, entities.RepairStatusNew, created.Status)
	assert.Equal(t, app.user.ID, created.UserID)
	require.NotNil(t, created.RequiredTime)
	assert.True(t, strings.HasPrefix(created.PhotoURL, "/uploads/"))

	// The photo landed on disk
	stored := filepath.Join(app.uploads.Dir(), filepath.Base(created.PhotoURL))
	_, err := os.Stat(stored)
	assert.NoError(t, err)
}

func TestAddRepair_WithoutPhoto(t *testing.T) {
	app := setupTestApp(t)

	body, contentType := repairForm(t, "Squeaky door", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/account/repair/add", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	w := app.do(t, app.user, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created entities.RepairRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Empty(t, created.PhotoURL)
	assert.Nil(t, created.RequiredTime)
}

func TestAddRepair_Validation(t *testing.T) {
	app := setupTestApp(t)

	tests := []struct {
		name         string
		description  string
		requiredTime string
		photo        []byte
		wantStatus   int
	}{
		{"empty description", "   ", "", nil, http.StatusBadRequest},
		{"bad timestamp", "desc", "next tuesday", nil, http.StatusBadRequest},
		{"non-image photo", "desc", "", []byte("plain text, definitely no image"), http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := repairForm(t, tc.description, tc.requiredTime, tc.photo)
			req := httptest.NewRequest(http.MethodPost, "/account/repair/add", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Accept", "application/json")

			w := app.do(t, app.user, req)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestAddRepair_BrowserRedirects(t *testing.T) {
	app := setupTestApp(t)

	body, contentType := repairForm(t, "Leaky tap", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/account/repair/add", body)
	req.Header.Set("Content-Type", contentType)

	// Simulate a cookie-carrying browser instead of a bearer API client
	token, err := app.tokens.Issue(app.user, 0)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/requests", w.Header().Get("Location"))
}

func TestRepairs_OwnerScoped(t *testing.T) {
	app := setupTestApp(t)

	mine := &entities.RepairRequest{UserID: app.user.ID, Description: "Mine"}
	require.NoError(t, app.repairs.Create(mine))
	theirs := &entities.RepairRequest{UserID: app.admin.ID, Description: "Theirs"}
	require.NoError(t, app.repairs.Create(theirs))

	// Listing only shows my own
	w := app.do(t, app.user, httptest.NewRequest(http.MethodGet, "/account/repairs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed []entities.RepairRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Mine", listed[0].Description)

	// Someone else's request is a 404, same as a missing one
	w = app.do(t, app.user, httptest.NewRequest(http.MethodGet, "/account/repair/"+itoa(theirs.ID), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, app.user, httptest.NewRequest(http.MethodGet, "/account/repair/99999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// My own is visible
	w = app.do(t, app.user, httptest.NewRequest(http.MethodGet, "/account/repair/"+itoa(mine.ID), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateRepair(t *testing.T) {
	app := setupTestApp(t)

	mine := &entities.RepairRequest{UserID: app.user.ID, Description: "Old text"}
	require.NoError(t, app.repairs.Create(mine))

	payload := `{"description":"New text","required_time":"2026-10-01T09:00"}`
	req := httptest.NewRequest(http.MethodPut, "/account/repair/"+itoa(mine.ID), strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := app.do(t, app.user, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, err := app.repairs.GetByID(mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "New text", updated.Description)
	require.NotNil(t, updated.RequiredTime)

	// Blank description is rejected
	req = httptest.NewRequest(http.MethodPut, "/account/repair/"+itoa(mine.ID), strings.NewReader(`{"description":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	w = app.do(t, app.user, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Another user cannot touch somebody else's request
	req = httptest.NewRequest(http.MethodPut, "/account/repair/"+itoa(mine.ID), strings.NewReader(`{"description":"hijack"}`))
	req.Header.Set("Content-Type", "application/json")
	w = app.do(t, app.admin, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRepair_RemovesPhoto(t *testing.T) {
	app := setupTestApp(t)

	body, contentType := repairForm(t, "With photo", "", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/account/repair/add", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	w := app.do(t, app.user, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created entities.RepairRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	stored := filepath.Join(app.uploads.Dir(), filepath.Base(created.PhotoURL))

	w = app.do(t, app.user, httptest.NewRequest(http.MethodDelete, "/account/repair/"+itoa(created.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)

	_, err := app.repairs.GetByID(created.ID)
	assert.Error(t, err)
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err), "photo should be deleted with the request")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
