package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/middleware"
	"daylight-matching-api/internal/response"
)

func setupOverrideRouter(svc *MockOverrideService, caller uuid.UUID) *gin.Engine {
	h := NewOverrideHandler(svc, zap.NewNop())
	r := gin.New()
	events := r.Group("/events/:eventId/matching", withCaller(caller, middleware.RoleOperator))
	events.POST("/assign", h.AssignUser)
	events.POST("/move", h.MoveUser)
	events.POST("/remove", h.RemoveUser)
	events.POST("/groups", h.CreateGroup)
	events.POST("/bulk-assign", h.BulkAssign)
	events.POST("/groups/:groupId/confirm", h.ConfirmGroup)
	events.POST("/groups/:groupId/cancel", h.CancelGroup)
	events.POST("/my-group/confirm", h.ConfirmMyGroup)
	return r
}

func TestOverrideHandler_AssignUser(t *testing.T) {
	eventID := uuid.New()
	operatorID := uuid.New()
	userID := uuid.New()
	path := "/events/" + eventID.String() + "/matching/assign"

	tests := []struct {
		name       string
		body       interface{}
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "성공: 배정",
			body:       map[string]interface{}{"userId": userID, "groupNumber": 2, "note": "friend"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "실패: 그룹 번호 누락",
			body:       map[string]interface{}{"userId": userID},
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrCodeValidation,
		},
		{
			name:       "실패: 잘못된 userId",
			body:       map[string]interface{}{"userId": "nope", "groupNumber": 1},
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrCodeValidation,
		},
		{
			name:       "실패: 이미 배정된 참가자는 422",
			body:       map[string]interface{}{"userId": userID, "groupNumber": 1},
			serviceErr: response.NewInvariantViolationError("User is already assigned to a group", "group 3"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   response.ErrCodeInvariantViolation,
		},
		{
			name:       "실패: 없는 그룹은 404",
			body:       map[string]interface{}{"userId": userID, "groupNumber": 9},
			serviceErr: response.NewNotFoundError("Group not found", ""),
			wantStatus: http.StatusNotFound,
			wantCode:   response.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockOverrideService{
				AssignUserToGroupFunc: func(ctx context.Context, id, opID uuid.UUID, req *dto.AssignUserToGroupPayload) (*dto.MatchingGroupResponse, error) {
					assert.Equal(t, eventID, id)
					assert.Equal(t, operatorID, opID)
					assert.Equal(t, userID, req.UserID)
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &dto.MatchingGroupResponse{GroupNumber: req.GroupNumber, HasManualChanges: true}, nil
				},
			}

			w := performRequest(setupOverrideRouter(svc, operatorID), http.MethodPost, path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
				return
			}
			var got dto.MatchingGroupResponse
			decodeData(t, w, &got)
			assert.Equal(t, 2, got.GroupNumber)
			assert.True(t, got.HasManualChanges)
		})
	}
}

func TestOverrideHandler_MoveUser(t *testing.T) {
	eventID := uuid.New()
	from, to := uuid.New(), uuid.New()
	path := "/events/" + eventID.String() + "/matching/move"

	t.Run("성공: 두 그룹 반환", func(t *testing.T) {
		svc := &MockOverrideService{
			MoveUserFunc: func(ctx context.Context, id, opID uuid.UUID, req *dto.MoveUserPayload) (*dto.MoveUserResponse, error) {
				assert.Equal(t, from, req.FromGroupID)
				assert.Equal(t, to, req.ToGroupID)
				return &dto.MoveUserResponse{
					From: dto.MatchingGroupResponse{GroupNumber: 1},
					To:   dto.MatchingGroupResponse{GroupNumber: 2},
				}, nil
			},
		}
		body := map[string]interface{}{"userId": uuid.New(), "fromGroupId": from, "toGroupId": to}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, path, body)

		assert.Equal(t, http.StatusOK, w.Code)
		var got dto.MoveUserResponse
		decodeData(t, w, &got)
		assert.Equal(t, 1, got.From.GroupNumber)
		assert.Equal(t, 2, got.To.GroupNumber)
	})

	t.Run("실패: 대상 그룹 누락", func(t *testing.T) {
		body := map[string]interface{}{"userId": uuid.New(), "fromGroupId": from}

		w := performRequest(setupOverrideRouter(&MockOverrideService{}, uuid.New()), http.MethodPost, path, body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("실패: 확정된 그룹은 422", func(t *testing.T) {
		svc := &MockOverrideService{
			MoveUserFunc: func(ctx context.Context, id, opID uuid.UUID, req *dto.MoveUserPayload) (*dto.MoveUserResponse, error) {
				return nil, response.NewInvariantViolationError("Group is confirmed", "")
			},
		}
		body := map[string]interface{}{"userId": uuid.New(), "fromGroupId": from, "toGroupId": to}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, path, body)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOverrideHandler_RemoveAndCreate(t *testing.T) {
	eventID := uuid.New()
	base := "/events/" + eventID.String() + "/matching"

	t.Run("성공: 제외", func(t *testing.T) {
		groupID := uuid.New()
		svc := &MockOverrideService{
			RemoveUserFromGroupFunc: func(ctx context.Context, id, opID uuid.UUID, req *dto.RemoveUserPayload) (*dto.MatchingGroupResponse, error) {
				assert.Equal(t, groupID, req.GroupID)
				assert.Equal(t, "left early", req.Reason)
				return &dto.MatchingGroupResponse{IsEmpty: true}, nil
			},
		}
		body := map[string]interface{}{"userId": uuid.New(), "groupId": groupID, "reason": "left early"}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, base+"/remove", body)

		assert.Equal(t, http.StatusOK, w.Code)
		var got dto.MatchingGroupResponse
		decodeData(t, w, &got)
		assert.True(t, got.IsEmpty)
	})

	t.Run("성공: 빈 그룹 생성은 201", func(t *testing.T) {
		svc := &MockOverrideService{
			CreateGroupFunc: func(ctx context.Context, id, opID uuid.UUID, req *dto.CreateGroupPayload) (*dto.MatchingGroupResponse, error) {
				assert.Equal(t, 0, req.GroupNumber)
				return &dto.MatchingGroupResponse{GroupNumber: 3, IsEmpty: true}, nil
			},
		}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, base+"/groups", map[string]interface{}{})

		assert.Equal(t, http.StatusCreated, w.Code)
		var got dto.MatchingGroupResponse
		decodeData(t, w, &got)
		assert.Equal(t, 3, got.GroupNumber)
	})

	t.Run("실패: 음수 그룹 번호", func(t *testing.T) {
		w := performRequest(setupOverrideRouter(&MockOverrideService{}, uuid.New()), http.MethodPost, base+"/groups",
			map[string]interface{}{"groupNumber": -1})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOverrideHandler_BulkAssign(t *testing.T) {
	eventID := uuid.New()
	path := "/events/" + eventID.String() + "/matching/bulk-assign"
	target := uuid.New()

	t.Run("성공: 일괄 배정", func(t *testing.T) {
		users := []uuid.UUID{uuid.New(), uuid.New()}
		svc := &MockOverrideService{
			BulkAssignFunc: func(ctx context.Context, id, opID uuid.UUID, req *dto.BulkAssignPayload) (*dto.BulkAssignResponse, error) {
				assert.Equal(t, users, req.UserIDs)
				return &dto.BulkAssignResponse{AssignedCount: len(req.UserIDs)}, nil
			},
		}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, path,
			map[string]interface{}{"targetGroupId": target, "userIds": users})

		assert.Equal(t, http.StatusOK, w.Code)
		var got dto.BulkAssignResponse
		decodeData(t, w, &got)
		assert.Equal(t, 2, got.AssignedCount)
	})

	t.Run("실패: 빈 목록", func(t *testing.T) {
		w := performRequest(setupOverrideRouter(&MockOverrideService{}, uuid.New()), http.MethodPost, path,
			map[string]interface{}{"targetGroupId": target, "userIds": []uuid.UUID{}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("실패: 한 명이라도 배정되어 있으면 422", func(t *testing.T) {
		svc := &MockOverrideService{
			BulkAssignFunc: func(ctx context.Context, id, opID uuid.UUID, req *dto.BulkAssignPayload) (*dto.BulkAssignResponse, error) {
				return nil, response.NewInvariantViolationError("User is already assigned to a group", req.UserIDs[0].String())
			},
		}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, path,
			map[string]interface{}{"targetGroupId": target, "userIds": []uuid.UUID{uuid.New()}})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NotEmpty(t, decodeError(t, w).Details)
	})
}

func TestOverrideHandler_GroupLifecycle(t *testing.T) {
	eventID := uuid.New()
	groupID := uuid.New()
	base := "/events/" + eventID.String() + "/matching/groups/"

	t.Run("성공: 확정", func(t *testing.T) {
		svc := &MockOverrideService{
			ConfirmGroupFunc: func(ctx context.Context, id, opID, gid uuid.UUID) (*dto.MatchingGroupResponse, error) {
				assert.Equal(t, groupID, gid)
				return &dto.MatchingGroupResponse{Status: "CONFIRMED"}, nil
			},
		}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, base+groupID.String()+"/confirm", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var got dto.MatchingGroupResponse
		decodeData(t, w, &got)
		assert.Equal(t, "CONFIRMED", got.Status)
	})

	t.Run("실패: 잘못된 그룹 ID", func(t *testing.T) {
		w := performRequest(setupOverrideRouter(&MockOverrideService{}, uuid.New()), http.MethodPost, base+"abc/confirm", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("실패: 확정된 그룹 취소는 422", func(t *testing.T) {
		svc := &MockOverrideService{
			CancelGroupFunc: func(ctx context.Context, id, opID, gid uuid.UUID) (*dto.MatchingGroupResponse, error) {
				return nil, response.NewInvariantViolationError("Confirmed groups cannot be cancelled", "")
			},
		}

		w := performRequest(setupOverrideRouter(svc, uuid.New()), http.MethodPost, base+groupID.String()+"/cancel", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOverrideHandler_ConfirmMyGroup(t *testing.T) {
	eventID := uuid.New()
	callerID := uuid.New()

	svc := &MockOverrideService{
		ConfirmMembershipFunc: func(ctx context.Context, id, userID uuid.UUID) (*dto.MatchingGroupResponse, error) {
			assert.Equal(t, callerID, userID)
			return &dto.MatchingGroupResponse{Members: []dto.MatchingMemberResponse{{UserID: userID, IsConfirmed: true, IsYou: true}}}, nil
		},
	}

	w := performRequest(setupOverrideRouter(svc, callerID), http.MethodPost, "/events/"+eventID.String()+"/matching/my-group/confirm", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got dto.MatchingGroupResponse
	decodeData(t, w, &got)
	require.Len(t, got.Members, 1)
	assert.True(t, got.Members[0].IsConfirmed)
}
