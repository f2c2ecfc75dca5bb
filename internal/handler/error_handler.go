package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"daylight-matching-api/internal/response"
)

// retryAfterSeconds is advertised on retryable conflicts
const retryAfterSeconds = "1"

// handleServiceError maps service layer errors to appropriate HTTP responses
func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.SendError(c, http.StatusNotFound, response.ErrCodeNotFound, "Resource not found")
		return
	}

	var appErr *response.AppError
	if errors.As(err, &appErr) {
		status := mapErrorCodeToHTTPStatus(appErr.Code)
		fields := []zap.Field{
			zap.String("code", appErr.Code),
			zap.String("message", appErr.Message),
			zap.String("details", appErr.Details),
			zap.String("path", c.FullPath()),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("Service error", fields...)
		} else {
			logger.Debug("Request rejected", fields...)
		}

		if appErr.Retryable() {
			c.Header("Retry-After", retryAfterSeconds)
		}
		if status >= http.StatusInternalServerError && appErr.Code == response.ErrCodeInternal {
			// internal details stay in the log
			response.SendError(c, status, appErr.Code, appErr.Message)
			return
		}
		response.SendAppError(c, status, appErr)
		return
	}

	logger.Error("Unhandled service error", zap.String("type", fmt.Sprintf("%T", err)), zap.Error(err))
	response.SendError(c, http.StatusInternalServerError, response.ErrCodeInternal, "Internal server error")
}

// mapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func mapErrorCodeToHTTPStatus(code string) int {
	switch code {
	case response.ErrCodeNotFound:
		return http.StatusNotFound
	case response.ErrCodeAlreadyExists, response.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	case response.ErrCodeValidation, response.ErrCodeConfiguration:
		return http.StatusBadRequest
	case response.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case response.ErrCodeForbidden:
		return http.StatusForbidden
	case response.ErrCodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case response.ErrCodeMatchingTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
