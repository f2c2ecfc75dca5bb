package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"daylight-matching-api/internal/client"
	"daylight-matching-api/internal/database"
	"daylight-matching-api/internal/domain"
	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/lock"
	"daylight-matching-api/internal/matching"
	"daylight-matching-api/internal/repository"
	"daylight-matching-api/internal/response"
)

// Override operation names, used as metric labels
const (
	opAssign            = "assign"
	opMove              = "move"
	opRemove            = "remove"
	opCreateGroup       = "create_group"
	opBulkAssign        = "bulk_assign"
	opConfirmGroup      = "confirm_group"
	opCancelGroup       = "cancel_group"
	opConfirmMembership = "confirm_membership"
)

// OverrideService defines the interface for manual corrections to formed groups
type OverrideService interface {
	AssignUserToGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.AssignUserToGroupPayload) (*dto.MatchingGroupResponse, error)
	MoveUser(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MoveUserPayload) (*dto.MoveUserResponse, error)
	RemoveUserFromGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.RemoveUserPayload) (*dto.MatchingGroupResponse, error)
	CreateGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.CreateGroupPayload) (*dto.MatchingGroupResponse, error)
	BulkAssign(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.BulkAssignPayload) (*dto.BulkAssignResponse, error)
	ConfirmGroup(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error)
	CancelGroup(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error)
	ConfirmMembership(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error)
}

// overrideServiceImpl is the implementation of OverrideService
type overrideServiceImpl struct {
	deps   Dependencies
	opts   Options
	scorer *matching.Scorer
	now    func() time.Time
}

// NewOverrideService creates a new instance of OverrideService. scorer is used for groups that
// have no attempt scoring to follow.
func NewOverrideService(deps Dependencies, opts Options, scorer *matching.Scorer) OverrideService {
	if deps.Publisher == nil {
		deps.Publisher = client.NoOpPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &overrideServiceImpl{
		deps:   deps,
		opts:   opts,
		scorer: scorer,
		now:    time.Now,
	}
}

// txRepos are the repositories bound to one override transaction
type txRepos struct {
	participants repository.ParticipantRepository
	groups       repository.GroupRepository
	attempts     repository.AttemptRepository
}

// withEventLock serializes overrides with each other and with runs on the same event, then
// applies fn in one transaction
func (s *overrideServiceImpl) withEventLock(ctx context.Context, eventID uuid.UUID, op string, fn func(r txRepos) error) error {
	release, err := s.deps.Locker.Acquire(ctx, lock.EventKey(eventID.String()), s.opts.LockTTL, s.opts.LockWait)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.deps.Metrics.IncrementLockConflict(op)
			s.deps.Metrics.RecordOverride(op, err)
			return response.NewConcurrencyConflictError("Another matching change is in progress for this event", "")
		}
		return response.NewInternalError("Failed to acquire event lock", err.Error())
	}
	defer release()

	err = s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acquired, err := database.TryAdvisoryXactLock(tx, advisoryNamespace, eventID.String())
		if err != nil {
			return err
		}
		if !acquired {
			return response.NewConcurrencyConflictError("Another matching change is in progress for this event", "")
		}
		return fn(txRepos{
			participants: s.deps.Participants.WithTx(tx),
			groups:       s.deps.Groups.WithTx(tx),
		})
	})
	s.deps.Metrics.RecordOverride(op, err)
	if err == nil {
		return nil
	}

	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	s.deps.Logger.Error("Override failed",
		zap.String("operation", op),
		zap.String("event_id", eventID.String()),
		zap.Error(err),
	)
	return response.NewInternalError("Failed to apply change", err.Error())
}

// eligibleParticipant checks that userID is a PAID participant with a snapshot
func eligibleParticipant(ctx context.Context, r txRepos, eventID, userID uuid.UUID, transactionID string) (*domain.EventParticipant, error) {
	p, err := r.participants.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Participant not found", userID.String())
		}
		return nil, err
	}
	if transactionID != "" && transactionID != p.TransactionID {
		return nil, response.NewNotFoundError("Transaction not found for participant", transactionID)
	}
	if !p.IsPaid() {
		return nil, response.NewNotFoundError("Participant is not eligible for matching",
			fmt.Sprintf("%s has payment status %s", userID, p.PaymentStatus))
	}
	if _, err := r.participants.FindSnapshot(ctx, eventID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Participant has no personality snapshot", userID.String())
		}
		return nil, err
	}
	return p, nil
}

func findGroup(ctx context.Context, r txRepos, eventID, groupID uuid.UUID) (*domain.MatchingGroup, error) {
	g, err := r.groups.FindByID(ctx, eventID, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Group not found", groupID.String())
		}
		return nil, err
	}
	return g, nil
}

func requireOpen(g *domain.MatchingGroup) error {
	if !g.AcceptsChanges() {
		return response.NewInvariantViolationError("Group does not accept changes",
			fmt.Sprintf("group %d is %s", g.GroupNumber, g.Status))
	}
	return nil
}

// requireUnseated rejects users that already hold an active seat at the event
func requireUnseated(ctx context.Context, r txRepos, eventID uuid.UUID, userIDs []uuid.UUID) error {
	seats, err := r.groups.FindActiveMemberships(ctx, eventID, userIDs)
	if err != nil {
		return err
	}
	if len(seats) > 0 {
		return response.NewInvariantViolationError("User is already assigned to a group",
			fmt.Sprintf("%s is an active member of group %s", seats[0].UserID, seats[0].GroupID))
	}
	return nil
}

func seatFor(g *domain.MatchingGroup, p *domain.EventParticipant, origin domain.AssignmentOrigin) domain.GroupMember {
	m := domain.GroupMember{
		GroupID:       g.ID,
		EventID:       g.EventID,
		UserID:        p.UserID,
		TransactionID: p.TransactionID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
	}
	m.SetOrigin(origin)
	return m
}

// scorerFor returns the scorer the group's attempt was formed with. Operator-created groups
// and attempts without a readable config use the service defaults.
func (s *overrideServiceImpl) scorerFor(ctx context.Context, r txRepos, g *domain.MatchingGroup) (*matching.Scorer, error) {
	if g.AttemptNumber == 0 {
		return s.scorer, nil
	}
	attempt, err := r.attempts.FindByNumber(ctx, g.EventID, g.AttemptNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.scorer, nil
		}
		return nil, err
	}

	var cfg matching.FormationConfig
	if len(attempt.Config) == 0 || json.Unmarshal(attempt.Config, &cfg) != nil {
		return s.scorer, nil
	}
	scorer, err := matching.NewScorer(cfg.Scoring)
	if err != nil {
		s.deps.Logger.Warn("Stored attempt scoring is invalid, using defaults",
			zap.String("event_id", g.EventID.String()),
			zap.Int("attempt_number", g.AttemptNumber),
			zap.Error(err),
		)
		return s.scorer, nil
	}
	return scorer, nil
}

// rescore brings the group's score maps in line with members. Pairs between members that
// stay keep their stored score; pairs of departed members are dropped; only members without
// an id (joining) are scored. Members and the group aggregates are persisted.
func (s *overrideServiceImpl) rescore(ctx context.Context, r txRepos, g *domain.MatchingGroup, members []domain.GroupMember) error {
	present := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		present[m.UserID] = struct{}{}
	}

	scores := make(map[uuid.UUID]map[uuid.UUID]float64, len(members))
	joining := make([]uuid.UUID, 0, 1)
	for _, m := range members {
		peers, err := m.Scores()
		if err != nil {
			return err
		}
		for id := range peers {
			if _, ok := present[id]; !ok {
				delete(peers, id)
			}
		}
		scores[m.UserID] = peers
		if m.ID == uuid.Nil {
			joining = append(joining, m.UserID)
		}
	}

	if len(joining) > 0 {
		if err := s.scoreJoining(ctx, r, g, scores, joining); err != nil {
			return err
		}
	}

	for i := range members {
		if err := members[i].SetScores(scores[members[i].UserID]); err != nil {
			return err
		}
		var err error
		if members[i].ID == uuid.Nil {
			err = r.groups.AddMember(ctx, &members[i])
		} else {
			err = r.groups.SaveMember(ctx, &members[i])
		}
		if err != nil {
			return err
		}
	}

	g.AverageMatchScore, g.MinMatchScore = matching.Aggregate(scores)
	g.GroupSize = len(members)
	g.IsEmpty = len(members) == 0
	g.Members = members
	return r.groups.Update(ctx, g)
}

// scoreJoining fills in both directions of every pair that involves a joining member
func (s *overrideServiceImpl) scoreJoining(ctx context.Context, r txRepos, g *domain.MatchingGroup, scores map[uuid.UUID]map[uuid.UUID]float64, joining []uuid.UUID) error {
	ids := make([]uuid.UUID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	snapshots, err := r.participants.FindSnapshots(ctx, g.EventID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := snapshots[id]; !ok {
			return response.NewNotFoundError("Participant has no personality snapshot", id.String())
		}
	}

	scorer, err := s.scorerFor(ctx, r, g)
	if err != nil {
		return err
	}
	for _, id := range joining {
		traits := snapshots[id].Traits()
		for _, other := range ids {
			if other == id {
				continue
			}
			score := scorer.Score(traits, snapshots[other].Traits())
			scores[id][other] = score
			scores[other][id] = score
		}
	}
	return nil
}

// AssignUserToGroup seats an ungrouped participant at a live group
func (s *overrideServiceImpl) AssignUserToGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.AssignUserToGroupPayload) (*dto.MatchingGroupResponse, error) {
	var group *domain.MatchingGroup
	err := s.withEventLock(ctx, eventID, opAssign, func(r txRepos) error {
		p, err := eligibleParticipant(ctx, r, eventID, req.UserID, req.TransactionID)
		if err != nil {
			return err
		}
		if err := requireUnseated(ctx, r, eventID, []uuid.UUID{req.UserID}); err != nil {
			return err
		}

		group, err = r.groups.FindLiveByNumber(ctx, eventID, req.GroupNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFoundError("Group not found", fmt.Sprintf("group number %d", req.GroupNumber))
			}
			return err
		}
		if err := requireOpen(group); err != nil {
			return err
		}

		now := s.now()
		members := append(group.ActiveMembers(), seatFor(group, p, domain.ManualOrigin{By: operatorID, At: now, Note: req.Note}))
		group.MarkModified(operatorID, now)
		return s.rescore(ctx, r, group, members)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("User assigned to group",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.Int("group_number", group.GroupNumber),
		zap.String("operator_id", operatorID.String()),
	)
	resp := toGroupResponse(group, uuid.Nil)
	return &resp, nil
}

// MoveUser moves a member between two open groups in one transaction
func (s *overrideServiceImpl) MoveUser(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MoveUserPayload) (*dto.MoveUserResponse, error) {
	if req.FromGroupID == req.ToGroupID {
		return nil, response.NewValidationError("Source and target group must differ", "")
	}

	var from, to *domain.MatchingGroup
	err := s.withEventLock(ctx, eventID, opMove, func(r txRepos) error {
		var err error
		if from, err = findGroup(ctx, r, eventID, req.FromGroupID); err != nil {
			return err
		}
		if to, err = findGroup(ctx, r, eventID, req.ToGroupID); err != nil {
			return err
		}
		if err := requireOpen(from); err != nil {
			return err
		}
		if err := requireOpen(to); err != nil {
			return err
		}

		remaining, moved, ok := splitMember(from.ActiveMembers(), req.UserID)
		if !ok {
			return response.NewNotFoundError("User is not a member of the source group", req.UserID.String())
		}
		p, err := r.participants.FindByEventAndUser(ctx, eventID, req.UserID)
		if err != nil {
			return err
		}

		now := s.now()
		moved.Release(&operatorID, now, fmt.Sprintf("moved to group %d", to.GroupNumber))
		if err := r.groups.SaveMember(ctx, &moved); err != nil {
			return err
		}

		from.MarkModified(operatorID, now)
		if err := s.rescore(ctx, r, from, remaining); err != nil {
			return err
		}

		joined := append(to.ActiveMembers(), seatFor(to, p, domain.ManualOrigin{By: operatorID, At: now, Note: req.Note}))
		to.MarkModified(operatorID, now)
		return s.rescore(ctx, r, to, joined)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("User moved between groups",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.Int("from_group", from.GroupNumber),
		zap.Int("to_group", to.GroupNumber),
	)
	return &dto.MoveUserResponse{
		From: toGroupResponse(from, uuid.Nil),
		To:   toGroupResponse(to, uuid.Nil),
	}, nil
}

// RemoveUserFromGroup soft-removes a member; an emptied group stays and is flagged empty
func (s *overrideServiceImpl) RemoveUserFromGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.RemoveUserPayload) (*dto.MatchingGroupResponse, error) {
	var group *domain.MatchingGroup
	err := s.withEventLock(ctx, eventID, opRemove, func(r txRepos) error {
		var err error
		if group, err = findGroup(ctx, r, eventID, req.GroupID); err != nil {
			return err
		}
		if err := requireOpen(group); err != nil {
			return err
		}

		remaining, removed, ok := splitMember(group.ActiveMembers(), req.UserID)
		if !ok {
			return response.NewNotFoundError("User is not a member of the group", req.UserID.String())
		}

		now := s.now()
		reason := req.Reason
		if reason == "" {
			reason = "removed by operator"
		}
		removed.Release(&operatorID, now, reason)
		if err := r.groups.SaveMember(ctx, &removed); err != nil {
			return err
		}

		group.MarkModified(operatorID, now)
		return s.rescore(ctx, r, group, remaining)
	})
	if err != nil {
		return nil, err
	}

	resp := toGroupResponse(group, uuid.Nil)
	return &resp, nil
}

// CreateGroup adds an empty operator-managed group
func (s *overrideServiceImpl) CreateGroup(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.CreateGroupPayload) (*dto.MatchingGroupResponse, error) {
	var group *domain.MatchingGroup
	err := s.withEventLock(ctx, eventID, opCreateGroup, func(r txRepos) error {
		live, err := r.groups.FindLiveByEvent(ctx, eventID)
		if err != nil {
			return err
		}

		number := req.GroupNumber
		if number == 0 {
			for _, g := range live {
				if g.GroupNumber > number {
					number = g.GroupNumber
				}
			}
			number++
		}
		for _, g := range live {
			if g.GroupNumber == number {
				return response.NewInvariantViolationError("Group number is already in use",
					fmt.Sprintf("group %d exists with status %s", number, g.Status))
			}
		}

		group = &domain.MatchingGroup{
			EventID:     eventID,
			GroupNumber: number,
			Status:      domain.MatchingStatusPending,
			TableNumber: req.TableNumber,
			VenueName:   req.VenueName,
			Note:        req.Note,
			IsEmpty:     true,
			Members:     []domain.GroupMember{},
		}
		group.MarkModified(operatorID, s.now())
		return r.groups.Create(ctx, group)
	})
	if err != nil {
		return nil, err
	}

	resp := toGroupResponse(group, uuid.Nil)
	return &resp, nil
}

// BulkAssign seats several participants at one group; any failure rejects the whole batch
func (s *overrideServiceImpl) BulkAssign(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.BulkAssignPayload) (*dto.BulkAssignResponse, error) {
	userIDs := removeDuplicateUUIDs(req.UserIDs)

	var group *domain.MatchingGroup
	err := s.withEventLock(ctx, eventID, opBulkAssign, func(r txRepos) error {
		var err error
		if group, err = findGroup(ctx, r, eventID, req.TargetGroupID); err != nil {
			return err
		}
		if err := requireOpen(group); err != nil {
			return err
		}

		participants := make([]*domain.EventParticipant, 0, len(userIDs))
		for _, id := range userIDs {
			p, err := eligibleParticipant(ctx, r, eventID, id, "")
			if err != nil {
				return err
			}
			participants = append(participants, p)
		}
		if err := requireUnseated(ctx, r, eventID, userIDs); err != nil {
			return err
		}

		now := s.now()
		members := group.ActiveMembers()
		for _, p := range participants {
			members = append(members, seatFor(group, p, domain.ManualOrigin{By: operatorID, At: now, Note: req.Note}))
		}
		group.MarkModified(operatorID, now)
		return s.rescore(ctx, r, group, members)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("Bulk assignment applied",
		zap.String("event_id", eventID.String()),
		zap.Int("group_number", group.GroupNumber),
		zap.Int("assigned", len(userIDs)),
	)
	return &dto.BulkAssignResponse{
		AssignedCount: len(userIDs),
		Group:         toGroupResponse(group, uuid.Nil),
	}, nil
}

// ConfirmGroup locks a group's membership and publishes the final assignment
func (s *overrideServiceImpl) ConfirmGroup(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	var group *domain.MatchingGroup
	changed := false
	err := s.withEventLock(ctx, eventID, opConfirmGroup, func(r txRepos) error {
		var err error
		if group, err = findGroup(ctx, r, eventID, groupID); err != nil {
			return err
		}
		switch group.Status {
		case domain.MatchingStatusConfirmed:
			return nil
		case domain.MatchingStatusCancelled:
			return requireOpen(group)
		}
		if len(group.ActiveMembers()) == 0 {
			return response.NewInvariantViolationError("Cannot confirm an empty group", fmt.Sprintf("group %d", group.GroupNumber))
		}

		now := s.now()
		group.Status = domain.MatchingStatusConfirmed
		group.LastModifiedBy = &operatorID
		group.LastModifiedAt = &now
		changed = true
		return r.groups.Update(ctx, group)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		go s.publish(context.Background(), eventID, assignmentsOf([]*domain.MatchingGroup{group}, &operatorID, s.now()))
	}
	resp := toGroupResponse(group, uuid.Nil)
	return &resp, nil
}

// CancelGroup cancels an unconfirmed group and releases its members
func (s *overrideServiceImpl) CancelGroup(ctx context.Context, eventID, operatorID, groupID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	var group *domain.MatchingGroup
	err := s.withEventLock(ctx, eventID, opCancelGroup, func(r txRepos) error {
		var err error
		if group, err = findGroup(ctx, r, eventID, groupID); err != nil {
			return err
		}
		switch group.Status {
		case domain.MatchingStatusCancelled:
			return nil
		case domain.MatchingStatusConfirmed:
			return requireOpen(group)
		}

		now := s.now()
		if err := r.groups.ReleaseMembers(ctx, group.ID, &operatorID, now, "group cancelled"); err != nil {
			return err
		}
		group.Status = domain.MatchingStatusCancelled
		group.GroupSize = 0
		group.IsEmpty = true
		group.Members = nil
		group.MarkModified(operatorID, now)
		return r.groups.Update(ctx, group)
	})
	if err != nil {
		return nil, err
	}

	resp := toGroupResponse(group, uuid.Nil)
	return &resp, nil
}

// ConfirmMembership records that a participant acknowledged their seat
func (s *overrideServiceImpl) ConfirmMembership(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	var group *domain.MatchingGroup
	err := s.withEventLock(ctx, eventID, opConfirmMembership, func(r txRepos) error {
		seat, err := r.groups.FindActiveMembership(ctx, eventID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFoundError("You have not been assigned to a group yet", "")
			}
			return err
		}
		if !seat.IsConfirmed {
			now := s.now()
			seat.IsConfirmed = true
			seat.ConfirmedAt = &now
			if err := r.groups.SaveMember(ctx, seat); err != nil {
				return err
			}
		}
		group, err = r.groups.FindByID(ctx, eventID, seat.GroupID)
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toGroupResponse(group, userID)
	return &resp, nil
}

func (s *overrideServiceImpl) publish(ctx context.Context, eventID uuid.UUID, assignments []client.GroupAssignment) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.deps.Publisher.PublishAssignments(ctx, eventID, assignments); err != nil {
		s.deps.Logger.Warn("Failed to publish confirmed group",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}
}

// splitMember separates userID's seat from the rest
func splitMember(members []domain.GroupMember, userID uuid.UUID) (rest []domain.GroupMember, found domain.GroupMember, ok bool) {
	rest = make([]domain.GroupMember, 0, len(members))
	for _, m := range members {
		if m.UserID == userID {
			found, ok = m, true
			continue
		}
		rest = append(rest, m)
	}
	return rest, found, ok
}
