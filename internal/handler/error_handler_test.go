package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"daylight-matching-api/internal/response"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{response.ErrCodeValidation, http.StatusBadRequest},
		{response.ErrCodeConfiguration, http.StatusBadRequest},
		{response.ErrCodeUnauthorized, http.StatusUnauthorized},
		{response.ErrCodeForbidden, http.StatusForbidden},
		{response.ErrCodeNotFound, http.StatusNotFound},
		{response.ErrCodeAlreadyExists, http.StatusConflict},
		{response.ErrCodeConcurrencyConflict, http.StatusConflict},
		{response.ErrCodeInvariantViolation, http.StatusUnprocessableEntity},
		{response.ErrCodeMatchingTimeout, http.StatusGatewayTimeout},
		{response.ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatus     int
		wantCode       string
		wantDetails    string
		wantRetryAfter string
	}{
		{
			name:       "실패: 레코드 없음은 404",
			err:        gorm.ErrRecordNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   response.ErrCodeNotFound,
		},
		{
			name:        "실패: 불변식 위반은 상세 정보와 함께 422",
			err:         response.NewInvariantViolationError("User already assigned", "group 2"),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    response.ErrCodeInvariantViolation,
			wantDetails: "group 2",
		},
		{
			name:           "실패: 동시성 충돌은 Retry-After 포함",
			err:            response.NewConcurrencyConflictError("Another matching operation is in progress", ""),
			wantStatus:     http.StatusConflict,
			wantCode:       response.ErrCodeConcurrencyConflict,
			wantRetryAfter: "1",
		},
		{
			name:       "실패: 감싼 AppError 도 매핑",
			err:        fmt.Errorf("run: %w", response.NewAppError(response.ErrCodeMatchingTimeout, "Matching timed out", "")),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   response.ErrCodeMatchingTimeout,
		},
		{
			name:       "실패: 내부 오류 상세는 숨김",
			err:        response.NewInternalError("Failed to load participants", "dial tcp: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   response.ErrCodeInternal,
		},
		{
			name:       "실패: 알 수 없는 오류는 500",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   response.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) {
				handleServiceError(c, zap.NewNop(), tt.err)
			})

			w := performRequest(r, http.MethodGet, "/", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantRetryAfter, w.Header().Get("Retry-After"))
			detail := decodeError(t, w)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Equal(t, tt.wantDetails, detail.Details)
		})
	}
}

func TestHandleServiceError_NilLogger(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		handleServiceError(c, nil, errors.New("boom"))
	})

	w := performRequest(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
