package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"board-service/internal/access"
	"board-service/internal/models"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey  = "userID"
	SubjectKey = "subject"
)

// TokenValidator turns a bearer token into the calling subject.
type TokenValidator interface {
	Validate(token string) (access.Subject, error)
}

// UserRecorder keeps the local user projection current.
type UserRecorder interface {
	UpsertUser(ctx context.Context, user models.User) error
}

// AuthMiddleware validates the Authorization bearer token and records the caller.
func AuthMiddleware(validator TokenValidator, users UserRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		subject, err := validator.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if users != nil {
			role := ""
			if subject.IsAdministrator() {
				role = models.RoleAdministrator
			}
			err := users.UpsertUser(c.Request.Context(), models.User{ID: subject.UserID, Username: subject.Username, Role: role})
			if err != nil {
				zap.L().Error("record user failed", zap.String("user_id", subject.UserID), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to record user"})
				return
			}
		}

		c.Set(UserIDKey, subject.UserID)
		c.Set(SubjectKey, subject)
		c.Next()
	}
}

// SubjectFromContext returns the subject stored by AuthMiddleware.
func SubjectFromContext(c *gin.Context) (access.Subject, bool) {
	val, ok := c.Get(SubjectKey)
	if !ok {
		return access.Subject{}, false
	}
	subject, ok := val.(access.Subject)
	return subject, ok
}
