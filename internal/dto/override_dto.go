package dto

import (
	"github.com/google/uuid"
)

// AssignUserToGroupPayload assigns an ungrouped participant to a live group
// @Description transactionId is optional; when given it must match the roster entry
type AssignUserToGroupPayload struct {
	UserID        uuid.UUID `json:"userId" binding:"required" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	TransactionID string    `json:"transactionId,omitempty" example:"TX-20240315-0001"`
	GroupNumber   int       `json:"groupNumber" binding:"required,min=1" example:"2"`
	Note          string    `json:"note,omitempty" binding:"max=500" example:"requested to sit with a friend"`
}

// MoveUserPayload moves a member between two groups atomically
type MoveUserPayload struct {
	UserID      uuid.UUID `json:"userId" binding:"required"`
	FromGroupID uuid.UUID `json:"fromGroupId" binding:"required"`
	ToGroupID   uuid.UUID `json:"toGroupId" binding:"required"`
	Note        string    `json:"note,omitempty" binding:"max=500"`
}

// RemoveUserPayload soft-removes a member from a group
type RemoveUserPayload struct {
	UserID  uuid.UUID `json:"userId" binding:"required"`
	GroupID uuid.UUID `json:"groupId" binding:"required"`
	Reason  string    `json:"reason,omitempty" binding:"max=500" example:"left early"`
}

// CreateGroupPayload creates an empty operator-managed group
// @Description groupNumber 0 or omitted takes the next free number
type CreateGroupPayload struct {
	GroupNumber int    `json:"groupNumber,omitempty" binding:"min=0" example:"7"`
	TableNumber *int   `json:"tableNumber,omitempty" example:"12"`
	VenueName   string `json:"venueName,omitempty" binding:"max=255" example:"Rooftop"`
	Note        string `json:"note,omitempty" binding:"max=500"`
}

// BulkAssignPayload assigns several participants to one group, all or nothing
// @Description Duplicate userIds are removed. If any participant cannot be assigned, none are
type BulkAssignPayload struct {
	TargetGroupID uuid.UUID   `json:"targetGroupId" binding:"required"`
	UserIDs       []uuid.UUID `json:"userIds" binding:"required,min=1,max=100"`
	Note          string      `json:"note,omitempty" binding:"max=500"`
}

// MoveUserResponse returns both affected groups
type MoveUserResponse struct {
	From MatchingGroupResponse `json:"from"`
	To   MatchingGroupResponse `json:"to"`
}

// BulkAssignResponse returns the target group after assignment
type BulkAssignResponse struct {
	AssignedCount int                   `json:"assignedCount" example:"5"`
	Group         MatchingGroupResponse `json:"group"`
}
