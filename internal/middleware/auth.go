package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"daylight-matching-api/internal/response"
)

// Context keys set by Auth
const (
	ContextUserID = "user_id"
	ContextRole   = "user_role"
	ContextToken  = "jwtToken"
)

// Roles allowed to operate matching
const (
	RoleAdmin    = "ADMIN"
	RoleOperator = "OPERATOR"
)

// Auth validates an HS256 bearer token issued by the platform's auth service and stores the
// caller's id and role in the gin context.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid authorization header format")
			return
		}
		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid token claims")
			return
		}

		userID, err := uuid.Parse(subject(claims))
		if err != nil {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid user ID in token")
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role(claims))
		c.Set(ContextToken, tokenString)
		c.Next()
	}
}

// subject supports user_id, sub and uid claim formats
func subject(claims jwt.MapClaims) string {
	for _, key := range []string{"user_id", "sub", "uid"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func role(claims jwt.MapClaims) string {
	if r, ok := claims["role"].(string); ok {
		return strings.ToUpper(r)
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, candidate := range []string{RoleAdmin, RoleOperator} {
			for _, r := range roles {
				if s, ok := r.(string); ok && strings.EqualFold(s, candidate) {
					return candidate
				}
			}
		}
	}
	return ""
}

// RequireRole rejects callers whose token role is not one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := c.GetString(ContextRole)
		for _, r := range roles {
			if current == r {
				c.Next()
				return
			}
		}
		response.SendError(c, http.StatusForbidden, response.ErrCodeForbidden, "Operator role required")
	}
}

// InternalAPIKey guards service-to-service routes with the shared X-Internal-API-Key header
func InternalAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Internal-API-Key")
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid internal API key")
			return
		}
		c.Next()
	}
}
