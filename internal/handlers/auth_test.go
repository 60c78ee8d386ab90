// internal/handlers/auth_test.go

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relieflink-backend/internal/models"
	"relieflink-backend/internal/store"
	"relieflink-backend/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.NewMemoryStore()
	handler := NewAuthHandler(s, auth.NewJWTManager("test-secret", time.Hour))

	router := gin.New()
	router.POST("/register", handler.Register)
	return router, s
}

func postRegister(t *testing.T, router *gin.Engine, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRegister_DefaultsToCitizen(t *testing.T) {
	router, _ := newAuthRouter(t)

	recorder := postRegister(t, router, map[string]string{
		"email":     "dan@example.com",
		"password":  "mat-khau-123",
		"ho_va_ten": "Nguyễn Văn An",
	})

	require.Equal(t, http.StatusCreated, recorder.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleCitizen, resp.User.Role)
}

func TestRegister_AcceptsVolunteerRole(t *testing.T) {
	router, _ := newAuthRouter(t)

	recorder := postRegister(t, router, map[string]string{
		"email":     "tnv@example.com",
		"password":  "mat-khau-123",
		"ho_va_ten": "Trần Thị Bình",
		"vai_tro":   string(models.RoleVolunteer),
	})

	require.Equal(t, http.StatusCreated, recorder.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleVolunteer, resp.User.Role)
}

func TestRegister_NeverGrantsAdmin(t *testing.T) {
	router, s := newAuthRouter(t)

	recorder := postRegister(t, router, map[string]string{
		"email":     "ke-xau@example.com",
		"password":  "mat-khau-123",
		"ho_va_ten": "Lê Văn Cường",
		"vai_tro":   string(models.RoleAdmin),
	})

	require.Equal(t, http.StatusCreated, recorder.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleCitizen, resp.User.Role)

	stored, err := s.GetUserByEmail(context.Background(), "ke-xau@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCitizen, stored.Role)
}

func TestRegister_RejectsUnknownRole(t *testing.T) {
	router, _ := newAuthRouter(t)

	recorder := postRegister(t, router, map[string]string{
		"email":     "la@example.com",
		"password":  "mat-khau-123",
		"ho_va_ten": "Phạm Thị Dung",
		"vai_tro":   "sieu_nhan",
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
