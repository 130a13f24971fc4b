package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"board-service/internal/access"
	"board-service/internal/models"
)

type stubValidator struct {
	subject access.Subject
	err     error
}

func (s stubValidator) Validate(string) (access.Subject, error) {
	return s.subject, s.err
}

type recordingUsers struct {
	users []models.User
	err   error
}

func (r *recordingUsers) UpsertUser(_ context.Context, user models.User) error {
	r.users = append(r.users, user)
	return r.err
}

func setupRouter(validator TokenValidator, users UserRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(validator, users))
	r.GET("/me", func(c *gin.Context) {
		subject, ok := SubjectFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": subject.UserID, "user_id": c.GetString(UserIDKey)})
	})
	return r
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	router := setupRouter(stubValidator{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"missing authorization"}`, rec.Body.String())
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	router := setupRouter(stubValidator{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	router := setupRouter(stubValidator{err: errors.New("bad")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
}

func TestAuthMiddlewareStoresSubjectAndRecordsUser(t *testing.T) {
	subject := access.Subject{UserID: "u-1", Username: "alice", Roles: []string{models.RoleAdministrator}}
	users := &recordingUsers{}
	router := setupRouter(stubValidator{subject: subject}, users)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":"u-1","user_id":"u-1"}`, rec.Body.String())
	require.Equal(t, []models.User{{ID: "u-1", Username: "alice", Role: models.RoleAdministrator}}, users.users)
}

func TestAuthMiddlewareFailsWhenUserCannotBeRecorded(t *testing.T) {
	router := setupRouter(stubValidator{subject: access.Subject{UserID: "u-1", Username: "alice"}}, &recordingUsers{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
