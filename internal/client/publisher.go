package client

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GroupAssignment is the downstream view of one committed group
type GroupAssignment struct {
	EventID       uuid.UUID   `json:"eventId"`
	GroupID       uuid.UUID   `json:"groupId"`
	GroupNumber   int         `json:"groupNumber"`
	AttemptNumber int         `json:"attemptNumber"`
	TableNumber   *int        `json:"tableNumber,omitempty"`
	VenueName     string      `json:"venueName,omitempty"`
	MemberIDs     []uuid.UUID `json:"memberIds"`
	AssignedBy    *uuid.UUID  `json:"assignedBy,omitempty"`
	OccurredAt    time.Time   `json:"occurredAt"`
}

// AssignmentPublisher informs downstream collaborators (group chat, notifications) of final
// group assignments. Implementations degrade gracefully: delivery failures are logged and
// returned, but callers treat them as fire-and-forget.
type AssignmentPublisher interface {
	PublishAssignments(ctx context.Context, eventID uuid.UUID, assignments []GroupAssignment) error
}

// MultiPublisher fans assignments out to every configured sink
type MultiPublisher struct {
	sinks  []AssignmentPublisher
	logger *zap.Logger
}

// NewMultiPublisher creates a publisher over the non-nil sinks
func NewMultiPublisher(logger *zap.Logger, sinks ...AssignmentPublisher) *MultiPublisher {
	kept := make([]AssignmentPublisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiPublisher{sinks: kept, logger: logger}
}

// PublishAssignments delivers to every sink and returns the first failure
func (p *MultiPublisher) PublishAssignments(ctx context.Context, eventID uuid.UUID, assignments []GroupAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	var firstErr error
	for _, s := range p.sinks {
		if err := s.PublishAssignments(ctx, eventID, assignments); err != nil {
			p.logger.Warn("Assignment sink failed",
				zap.String("event_id", eventID.String()),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NoOpPublisher discards assignments
type NoOpPublisher struct{}

func (NoOpPublisher) PublishAssignments(ctx context.Context, eventID uuid.UUID, assignments []GroupAssignment) error {
	return nil
}
