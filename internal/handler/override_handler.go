package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/response"
	"daylight-matching-api/internal/service"
	"daylight-matching-api/internal/util"
)

type OverrideHandler struct {
	overrideService service.OverrideService
	logger          *zap.Logger
}

func NewOverrideHandler(overrideService service.OverrideService, logger *zap.Logger) *OverrideHandler {
	return &OverrideHandler{
		overrideService: overrideService,
		logger:          logger,
	}
}

// callerRequest extracts the caller and the event id shared by every override route
func callerRequest(c *gin.Context) (util.AuthData, uuid.UUID, bool) {
	auth, ok := util.ExtractAuthData(c)
	if !ok {
		return util.AuthData{}, uuid.Nil, false
	}
	eventID, ok := util.ParseUUIDParam(c, "eventId")
	if !ok {
		return util.AuthData{}, uuid.Nil, false
	}
	return auth, eventID, true
}

// AssignUser godoc
// @Summary      참가자 수동 배정
// @Description  그룹에 배정되지 않은 결제 완료 참가자를 그룹에 배정합니다
// @Tags         matching-overrides
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        request body dto.AssignUserToGroupPayload true "배정 요청"
// @Success      200 {object} response.SuccessResponse{data=dto.MatchingGroupResponse} "배정 성공"
// @Failure      404 {object} response.ErrorResponse "참가자 또는 그룹 없음"
// @Failure      409 {object} response.ErrorResponse "다른 변경 진행 중"
// @Failure      422 {object} response.ErrorResponse "이미 배정된 참가자 또는 확정된 그룹"
// @Router       /events/{eventId}/matching/assign [post]
// @Security     BearerAuth
func (h *OverrideHandler) AssignUser(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}
	var req dto.AssignUserToGroupPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	group, err := h.overrideService.AssignUserToGroup(c.Request.Context(), eventID, auth.UserID, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, group)
}

// MoveUser godoc
// @Summary      참가자 그룹 이동
// @Description  참가자를 다른 그룹으로 이동합니다. 두 그룹의 점수가 함께 다시 계산됩니다
// @Tags         matching-overrides
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        request body dto.MoveUserPayload true "이동 요청"
// @Success      200 {object} response.SuccessResponse{data=dto.MoveUserResponse} "이동 성공"
// @Failure      404 {object} response.ErrorResponse "그룹 또는 멤버 없음"
// @Failure      422 {object} response.ErrorResponse "확정 또는 취소된 그룹"
// @Router       /events/{eventId}/matching/move [post]
// @Security     BearerAuth
func (h *OverrideHandler) MoveUser(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}
	var req dto.MoveUserPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	result, err := h.overrideService.MoveUser(c.Request.Context(), eventID, auth.UserID, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, result)
}

// RemoveUser godoc
// @Summary      참가자 그룹에서 제외
// @Description  참가자를 그룹에서 제외합니다. 마지막 멤버가 빠진 그룹은 빈 그룹으로 남습니다
// @Tags         matching-overrides
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        request body dto.RemoveUserPayload true "제외 요청"
// @Success      200 {object} response.SuccessResponse{data=dto.MatchingGroupResponse} "제외 성공"
// @Failure      404 {object} response.ErrorResponse "그룹 또는 멤버 없음"
// @Router       /events/{eventId}/matching/remove [post]
// @Security     BearerAuth
func (h *OverrideHandler) RemoveUser(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}
	var req dto.RemoveUserPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	group, err := h.overrideService.RemoveUserFromGroup(c.Request.Context(), eventID, auth.UserID, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, group)
}

// CreateGroup godoc
// @Summary      빈 그룹 생성
// @Description  운영자가 관리하는 빈 그룹을 만듭니다. groupNumber 를 생략하면 다음 번호가 배정됩니다
// @Tags         matching-overrides
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        request body dto.CreateGroupPayload true "그룹 생성 요청"
// @Success      201 {object} response.SuccessResponse{data=dto.MatchingGroupResponse} "생성 성공"
// @Failure      422 {object} response.ErrorResponse "이미 사용 중인 그룹 번호"
// @Router       /events/{eventId}/matching/groups [post]
// @Security     BearerAuth
func (h *OverrideHandler) CreateGroup(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}
	var req dto.CreateGroupPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	group, err := h.overrideService.CreateGroup(c.Request.Context(), eventID, auth.UserID, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, group)
}

// BulkAssign godoc
// @Summary      참가자 일괄 배정
// @Description  여러 참가자를 한 그룹에 배정합니다. 한 명이라도 실패하면 아무도 배정되지 않습니다
// @Tags         matching-overrides
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        request body dto.BulkAssignPayload true "일괄 배정 요청"
// @Success      200 {object} response.SuccessResponse{data=dto.BulkAssignResponse} "배정 성공"
// @Failure      404 {object} response.ErrorResponse "참가자 또는 그룹 없음"
// @Failure      422 {object} response.ErrorResponse "이미 배정된 참가자 포함"
// @Router       /events/{eventId}/matching/bulk-assign [post]
// @Security     BearerAuth
func (h *OverrideHandler) BulkAssign(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}
	var req dto.BulkAssignPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	result, err := h.overrideService.BulkAssign(c.Request.Context(), eventID, auth.UserID, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, result)
}

// ConfirmGroup godoc
// @Summary      그룹 확정
// @Description  그룹 구성을 확정하고 배정 알림을 보냅니다. 확정된 그룹은 더 이상 변경할 수 없습니다
// @Tags         matching-overrides
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        groupId path string true "Group ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.MatchingGroupResponse} "확정 성공"
// @Failure      404 {object} response.ErrorResponse "그룹 없음"
// @Failure      422 {object} response.ErrorResponse "빈 그룹 또는 취소된 그룹"
// @Router       /events/{eventId}/matching/groups/{groupId}/confirm [post]
// @Security     BearerAuth
func (h *OverrideHandler) ConfirmGroup(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}
	groupID, ok := util.ParseUUIDParam(c, "groupId")
	if !ok {
		return
	}

	group, err := h.overrideService.ConfirmGroup(c.Request.Context(), eventID, auth.UserID, groupID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, group)
}

// CancelGroup godoc
// @Summary      그룹 취소
// @Description  확정되지 않은 그룹을 취소하고 멤버를 미배정 상태로 되돌립니다
// @Tags         matching-overrides
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Param        groupId path string true "Group ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.MatchingGroupResponse} "취소 성공"
// @Failure      422 {object} response.ErrorResponse "확정된 그룹"
// @Router       /events/{eventId}/matching/groups/{groupId}/cancel [post]
// @Security     BearerAuth
func (h *OverrideHandler) CancelGroup(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}
	groupID, ok := util.ParseUUIDParam(c, "groupId")
	if !ok {
		return
	}

	group, err := h.overrideService.CancelGroup(c.Request.Context(), eventID, auth.UserID, groupID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, group)
}

// ConfirmMyGroup godoc
// @Summary      내 자리 확인
// @Description  참가자가 배정된 그룹을 확인했음을 기록합니다
// @Tags         matching
// @Produce      json
// @Param        eventId path string true "Event ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.MatchingGroupResponse} "확인 성공"
// @Failure      404 {object} response.ErrorResponse "아직 배정되지 않음"
// @Router       /events/{eventId}/matching/my-group/confirm [post]
// @Security     BearerAuth
func (h *OverrideHandler) ConfirmMyGroup(c *gin.Context) {
	auth, eventID, ok := callerRequest(c)
	if !ok {
		return
	}

	group, err := h.overrideService.ConfirmMembership(c.Request.Context(), eventID, auth.UserID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, group)
}
