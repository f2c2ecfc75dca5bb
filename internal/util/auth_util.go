package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"daylight-matching-api/internal/middleware"
	"daylight-matching-api/internal/response"
)

// AuthData holds the caller identity stored by middleware.Auth
type AuthData struct {
	UserID uuid.UUID
	Role   string
	Token  string
}

// IsOperator reports whether the caller may run matching and overrides
func (a AuthData) IsOperator() bool {
	return a.Role == middleware.RoleAdmin || a.Role == middleware.RoleOperator
}

// ExtractAuthData extracts the caller from the gin context. On failure it has already written
// a 401 response.
func ExtractAuthData(c *gin.Context) (AuthData, bool) {
	userID, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User ID not found in context")
		return AuthData{}, false
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid user ID format")
		return AuthData{}, false
	}

	data := AuthData{UserID: userUUID}
	data.Role = c.GetString(middleware.ContextRole)
	data.Token = c.GetString(middleware.ContextToken)
	return data, true
}

// ParseUUIDParam parses a path parameter. On failure it has already written a 400 response.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
