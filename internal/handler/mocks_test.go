package handler

import (
	"context"

	"github.com/google/uuid"

	"daylight-matching-api/internal/dto"
)

// MockMatchingService is a mock implementation of MatchingService
type MockMatchingService struct {
	PreviewGroupsFunc     func(ctx context.Context, eventID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingPreviewResponse, error)
	RunMatchingFunc       func(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingResultResponse, error)
	GetGroupsFunc         func(ctx context.Context, eventID, viewerID uuid.UUID) ([]dto.MatchingGroupResponse, error)
	GetMyGroupFunc        func(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error)
	GetUnassignedFunc     func(ctx context.Context, eventID uuid.UUID) (*dto.UnassignedParticipantsResponse, error)
	GetAttemptHistoryFunc func(ctx context.Context, eventID uuid.UUID) ([]dto.MatchingAttemptResponse, error)
}

func (m *MockMatchingService) PreviewGroups(ctx context.Context, eventID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingPreviewResponse, error) {
	if m.PreviewGroupsFunc != nil {
		return m.PreviewGroupsFunc(ctx, eventID, req)
	}
	return &dto.MatchingPreviewResponse{EventID: eventID}, nil
}

func (m *MockMatchingService) RunMatching(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingResultResponse, error) {
	if m.RunMatchingFunc != nil {
		return m.RunMatchingFunc(ctx, eventID, operatorID, req)
	}
	return &dto.MatchingResultResponse{}, nil
}

func (m *MockMatchingService) GetGroups(ctx context.Context, eventID, viewerID uuid.UUID) ([]dto.MatchingGroupResponse, error) {
	if m.GetGroupsFunc != nil {
		return m.GetGroupsFunc(ctx, eventID, viewerID)
	}
	return []dto.MatchingGroupResponse{}, nil
}

func (m *MockMatchingService) GetMyGroup(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	if m.GetMyGroupFunc != nil {
		return m.GetMyGroupFunc(ctx, eventID, userID)
	}
	return &dto.MatchingGroupResponse{}, nil
}

func (m *MockMatchingService) GetUnassigned(ctx context.Context, eventID uuid.UUID) (*dto.UnassignedParticipantsResponse, error) {
	if m.GetUnassignedFunc != nil {
		return m.GetUnassignedFunc(ctx, eventID)
	}
	return &dto.UnassignedParticipantsResponse{EventID: eventID}, nil
}

func (m *MockMatchingService) GetAttemptHistory(ctx context.Context, eventID uuid.UUID) ([]dto.MatchingAttemptResponse, error) {
	if m.GetAttemptHistoryFunc != nil {
		return m.GetAttemptHistoryFunc(ctx, eventID)
	}
	return []dto.MatchingAttemptResponse{}, nil
}

// MockOverrideService is a mock implementation of OverrideService
type MockOverrideService struct {
	AssignUserToGroupFunc   func(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.AssignUserToGroupPayload) (*dto.MatchingGroupResponse, error)
	MoveUserFunc            func(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MoveUserPayload) (*dto.MoveUserResponse, error)
	RemoveUserFromGroupFunc func(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.RemoveUserPayload) (*dto.MatchingGroupResponse, error)
	CreateGroupFunc         func(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.CreateGroupPayload) (*dto.MatchingGroupResponse, error)
	BulkAssignFunc          func(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.BulkAssignPayload) (*dto.BulkAssignResponse, error)
	ConfirmGroupFunc        func(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error)
	CancelGroupFunc         func(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error)
	ConfirmMembershipFunc   func(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error)
}

func (m *MockOverrideService) AssignUserToGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.AssignUserToGroupPayload) (*dto.MatchingGroupResponse, error) {
	if m.AssignUserToGroupFunc != nil {
		return m.AssignUserToGroupFunc(ctx, eventID, operatorID, req)
	}
	return &dto.MatchingGroupResponse{}, nil
}

func (m *MockOverrideService) MoveUser(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MoveUserPayload) (*dto.MoveUserResponse, error) {
	if m.MoveUserFunc != nil {
		return m.MoveUserFunc(ctx, eventID, operatorID, req)
	}
	return &dto.MoveUserResponse{}, nil
}

func (m *MockOverrideService) RemoveUserFromGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.RemoveUserPayload) (*dto.MatchingGroupResponse, error) {
	if m.RemoveUserFromGroupFunc != nil {
		return m.RemoveUserFromGroupFunc(ctx, eventID, operatorID, req)
	}
	return &dto.MatchingGroupResponse{}, nil
}

func (m *MockOverrideService) CreateGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.CreateGroupPayload) (*dto.MatchingGroupResponse, error) {
	if m.CreateGroupFunc != nil {
		return m.CreateGroupFunc(ctx, eventID, operatorID, req)
	}
	return &dto.MatchingGroupResponse{}, nil
}

func (m *MockOverrideService) BulkAssign(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.BulkAssignPayload) (*dto.BulkAssignResponse, error) {
	if m.BulkAssignFunc != nil {
		return m.BulkAssignFunc(ctx, eventID, operatorID, req)
	}
	return &dto.BulkAssignResponse{}, nil
}

func (m *MockOverrideService) ConfirmGroup(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	if m.ConfirmGroupFunc != nil {
		return m.ConfirmGroupFunc(ctx, eventID, operatorID, groupID)
	}
	return &dto.MatchingGroupResponse{}, nil
}

func (m *MockOverrideService) CancelGroup(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	if m.CancelGroupFunc != nil {
		return m.CancelGroupFunc(ctx, eventID, operatorID, groupID)
	}
	return &dto.MatchingGroupResponse{}, nil
}

func (m *MockOverrideService) ConfirmMembership(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	if m.ConfirmMembershipFunc != nil {
		return m.ConfirmMembershipFunc(ctx, eventID, userID)
	}
	return &dto.MatchingGroupResponse{}, nil
}

// MockRosterService is a mock implementation of RosterService
type MockRosterService struct {
	UpsertParticipantsFunc  func(ctx context.Context, eventID uuid.UUID, req *dto.UpsertParticipantsRequest) (*dto.UpsertParticipantsResponse, error)
	UpdatePaymentStatusFunc func(ctx context.Context, eventID, userID uuid.UUID, req *dto.UpdatePaymentStatusRequest) (*dto.RosterParticipantResponse, error)
}

func (m *MockRosterService) UpsertParticipants(ctx context.Context, eventID uuid.UUID, req *dto.UpsertParticipantsRequest) (*dto.UpsertParticipantsResponse, error) {
	if m.UpsertParticipantsFunc != nil {
		return m.UpsertParticipantsFunc(ctx, eventID, req)
	}
	return &dto.UpsertParticipantsResponse{}, nil
}

func (m *MockRosterService) UpdatePaymentStatus(ctx context.Context, eventID, userID uuid.UUID, req *dto.UpdatePaymentStatusRequest) (*dto.RosterParticipantResponse, error) {
	if m.UpdatePaymentStatusFunc != nil {
		return m.UpdatePaymentStatusFunc(ctx, eventID, userID, req)
	}
	return &dto.RosterParticipantResponse{}, nil
}
