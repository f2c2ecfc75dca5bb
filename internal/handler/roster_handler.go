package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/response"
	"daylight-matching-api/internal/service"
	"daylight-matching-api/internal/util"
)

// RosterHandler serves the internal roster intake used by the payment and persona subsystems
type RosterHandler struct {
	rosterService service.RosterService
	logger        *zap.Logger
}

func NewRosterHandler(rosterService service.RosterService, logger *zap.Logger) *RosterHandler {
	return &RosterHandler{
		rosterService: rosterService,
		logger:        logger,
	}
}

// UpsertParticipants godoc
// @Summary      참가자 명단 동기화 (내부용)
// @Description  결제 상태와 성향 스냅샷을 함께 등록하거나 갱신합니다. 매칭 이후에는 스냅샷 점수를 바꿀 수 없습니다
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        X-Internal-API-Key header string true "내부 API 키"
// @Param        request body dto.UpsertParticipantsRequest true "명단"
// @Success      200 {object} response.SuccessResponse{data=dto.UpsertParticipantsResponse} "동기화 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 요청"
// @Failure      422 {object} response.ErrorResponse "매칭 이후 스냅샷 변경"
// @Router       /internal/events/{eventId}/participants [put]
func (h *RosterHandler) UpsertParticipants(c *gin.Context) {
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}
	var req dto.UpsertParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	result, err := h.rosterService.UpsertParticipants(c.Request.Context(), eventID, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, result)
}

// UpdatePaymentStatus godoc
// @Summary      결제 상태 변경 (내부용)
// @Description  참가자의 결제 상태를 변경합니다. 이미 배정된 자리는 유지됩니다
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        userId path string true "User ID (UUID)"
// @Param        X-Internal-API-Key header string true "내부 API 키"
// @Param        request body dto.UpdatePaymentStatusRequest true "결제 상태"
// @Success      200 {object} response.SuccessResponse{data=dto.RosterParticipantResponse} "변경 성공"
// @Failure      404 {object} response.ErrorResponse "참가자 없음"
// @Router       /internal/events/{eventId}/participants/{userId}/status [patch]
func (h *RosterHandler) UpdatePaymentStatus(c *gin.Context) {
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}
	userID, ok := util.ParseUUIDParam(c, "userId")
	if !ok {
		return
	}
	var req dto.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	participant, err := h.rosterService.UpdatePaymentStatus(c.Request.Context(), eventID, userID, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, participant)
}
