package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/response"
	"daylight-matching-api/internal/service"
	"daylight-matching-api/internal/util"
)

type MatchingHandler struct {
	matchingService service.MatchingService
	logger          *zap.Logger
}

func NewMatchingHandler(matchingService service.MatchingService, logger *zap.Logger) *MatchingHandler {
	return &MatchingHandler{
		matchingService: matchingService,
		logger:          logger,
	}
}

// bindConfig binds an optional formation config body; an empty body means defaults
func bindConfig(c *gin.Context) (*dto.MatchingConfigRequest, bool) {
	var req dto.MatchingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, true
		}
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return nil, false
	}
	return &req, true
}

// PreviewGroups godoc
// @Summary      매칭 미리보기
// @Description  현재 결제 완료 참가자로 그룹을 구성해 보여줍니다. 결과는 저장되지 않습니다
// @Tags         matching
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        request body dto.MatchingConfigRequest false "매칭 설정 (생략 시 기본값)"
// @Success      200 {object} response.SuccessResponse{data=dto.MatchingPreviewResponse} "미리보기 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 설정"
// @Failure      403 {object} response.ErrorResponse "권한 없음"
// @Failure      504 {object} response.ErrorResponse "시간 초과"
// @Router       /events/{eventId}/matching/preview [post]
// @Security     BearerAuth
func (h *MatchingHandler) PreviewGroups(c *gin.Context) {
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}
	req, ok := bindConfig(c)
	if !ok {
		return
	}

	preview, err := h.matchingService.PreviewGroups(c.Request.Context(), eventID, req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, preview)
}

// RunMatching godoc
// @Summary      매칭 실행
// @Description  그룹을 구성하고 새 매칭 시도로 저장합니다. 기존 그룹은 대체됩니다
// @Description  일부 참가자가 매칭되지 않아도 성공이며 statistics 와 warnings 에 보고됩니다
// @Tags         matching
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        request body dto.MatchingConfigRequest false "매칭 설정 (생략 시 기본값)"
// @Success      201 {object} response.SuccessResponse{data=dto.MatchingResultResponse} "매칭 저장 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 설정"
// @Failure      409 {object} response.ErrorResponse "다른 매칭 작업 진행 중"
// @Failure      422 {object} response.ErrorResponse "확정된 그룹 존재"
// @Failure      504 {object} response.ErrorResponse "시간 초과"
// @Router       /events/{eventId}/matching/run [post]
// @Security     BearerAuth
func (h *MatchingHandler) RunMatching(c *gin.Context) {
	auth, ok := util.ExtractAuthData(c)
	if !ok {
		return
	}
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}
	req, ok := bindConfig(c)
	if !ok {
		return
	}

	result, err := h.matchingService.RunMatching(c.Request.Context(), eventID, auth.UserID, req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, result)
}

// GetGroups godoc
// @Summary      그룹 목록 조회
// @Description  이벤트의 현재 그룹을 그룹 번호 순으로 조회합니다
// @Tags         matching
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=[]dto.MatchingGroupResponse} "조회 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 Event ID"
// @Router       /events/{eventId}/matching/groups [get]
// @Security     BearerAuth
func (h *MatchingHandler) GetGroups(c *gin.Context) {
	auth, ok := util.ExtractAuthData(c)
	if !ok {
		return
	}
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}

	groups, err := h.matchingService.GetGroups(c.Request.Context(), eventID, auth.UserID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, groups)
}

// GetUnassigned godoc
// @Summary      미배정 참가자 조회
// @Description  결제 완료했지만 그룹에 배정되지 않은 참가자를 조회합니다
// @Tags         matching
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.UnassignedParticipantsResponse} "조회 성공"
// @Router       /events/{eventId}/matching/unassigned [get]
// @Security     BearerAuth
func (h *MatchingHandler) GetUnassigned(c *gin.Context) {
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}

	resp, err := h.matchingService.GetUnassigned(c.Request.Context(), eventID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, resp)
}

// GetHistory godoc
// @Summary      매칭 이력 조회
// @Description  매칭 시도를 시도 번호 순으로 조회합니다
// @Tags         matching
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=[]dto.MatchingAttemptResponse} "조회 성공"
// @Router       /events/{eventId}/matching/history [get]
// @Security     BearerAuth
func (h *MatchingHandler) GetHistory(c *gin.Context) {
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}

	history, err := h.matchingService.GetAttemptHistory(c.Request.Context(), eventID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, history)
}

// GetMyGroup godoc
// @Summary      내 그룹 조회
// @Description  호출한 참가자가 배정된 그룹을 조회합니다. 본인은 isYou 로 표시됩니다
// @Tags         matching
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.MatchingGroupResponse} "조회 성공"
// @Failure      404 {object} response.ErrorResponse "아직 배정되지 않음"
// @Router       /events/{eventId}/matching/my-group [get]
// @Security     BearerAuth
func (h *MatchingHandler) GetMyGroup(c *gin.Context) {
	auth, ok := util.ExtractAuthData(c)
	if !ok {
		return
	}
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return
	}

	group, err := h.matchingService.GetMyGroup(c.Request.Context(), eventID, auth.UserID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, group)
}
