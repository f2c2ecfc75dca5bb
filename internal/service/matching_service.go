package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"daylight-matching-api/internal/client"
	"daylight-matching-api/internal/database"
	"daylight-matching-api/internal/domain"
	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/lock"
	"daylight-matching-api/internal/matching"
	"daylight-matching-api/internal/metrics"
	"daylight-matching-api/internal/repository"
	"daylight-matching-api/internal/response"
)

const (
	advisoryNamespace = "matching"
	publishTimeout    = 10 * time.Second

	reasonNotGrouped      = "NOT_GROUPED"
	reasonMissingSnapshot = "MISSING_SNAPSHOT"
)

// MatchingService defines the interface for group formation and the matching views
type MatchingService interface {
	PreviewGroups(ctx context.Context, eventID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingPreviewResponse, error)
	RunMatching(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingResultResponse, error)
	GetGroups(ctx context.Context, eventID, viewerID uuid.UUID) ([]dto.MatchingGroupResponse, error)
	GetMyGroup(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error)
	GetUnassigned(ctx context.Context, eventID uuid.UUID) (*dto.UnassignedParticipantsResponse, error)
	GetAttemptHistory(ctx context.Context, eventID uuid.UUID) ([]dto.MatchingAttemptResponse, error)
}

// Options carries the runtime knobs shared by the matching and override services
type Options struct {
	Defaults   matching.FormationConfig
	RunTimeout time.Duration
	LockTTL    time.Duration
	LockWait   time.Duration
}

// Dependencies groups the collaborators of the matching services
type Dependencies struct {
	DB           *gorm.DB
	Participants repository.ParticipantRepository
	Groups       repository.GroupRepository
	Attempts     repository.AttemptRepository
	Locker       lock.Locker
	Publisher    client.AssignmentPublisher
	Archiver     client.AttemptArchiver
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// matchingServiceImpl is the implementation of MatchingService
type matchingServiceImpl struct {
	deps   Dependencies
	opts   Options
	engine *matching.Engine
	now    func() time.Time
}

// NewMatchingService creates a new instance of MatchingService
func NewMatchingService(deps Dependencies, opts Options) MatchingService {
	if deps.Publisher == nil {
		deps.Publisher = client.NoOpPublisher{}
	}
	if deps.Archiver == nil {
		deps.Archiver = client.NoOpArchiver{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &matchingServiceImpl{
		deps:   deps,
		opts:   opts,
		engine: matching.NewEngine(),
		now:    time.Now,
	}
}

// formationConfig merges the request into the defaults and validates the result.
// Without an explicit seed the event id seeds the rng so previews of the same roster repeat.
func (s *matchingServiceImpl) formationConfig(eventID uuid.UUID, req *dto.MatchingConfigRequest) (matching.FormationConfig, error) {
	cfg := req.Apply(s.opts.Defaults)
	if cfg.RNGSeed == nil {
		seed := matching.SeedFor(eventID)
		cfg.RNGSeed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return cfg, response.NewConfigurationError("Invalid matching configuration", err.Error())
	}
	return cfg, nil
}

func (s *matchingServiceImpl) loadCandidates(ctx context.Context, eventID uuid.UUID) ([]matching.Candidate, error) {
	eligible, err := s.deps.Participants.FindEligible(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return candidatesOf(eligible), nil
}

// PreviewGroups runs the full algorithm without writing anything or taking the event lock
func (s *matchingServiceImpl) PreviewGroups(ctx context.Context, eventID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingPreviewResponse, error) {
	cfg, err := s.formationConfig(eventID, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	candidates, err := s.loadCandidates(runCtx, eventID)
	if err != nil {
		return nil, mapRunError(err, "Failed to load participants")
	}

	result, err := s.engine.Form(runCtx, candidates, cfg)
	if err != nil {
		return nil, mapRunError(err, "Failed to form groups")
	}

	s.deps.Metrics.IncrementPreview()
	resp := toPreviewResponse(eventID, cfg, result)
	return &resp, nil
}

// RunMatching forms groups and commits them as the event's next attempt
func (s *matchingServiceImpl) RunMatching(ctx context.Context, eventID, operatorID uuid.UUID, req *dto.MatchingConfigRequest) (*dto.MatchingResultResponse, error) {
	cfg, err := s.formationConfig(eventID, req)
	if err != nil {
		return nil, err
	}

	release, err := s.deps.Locker.Acquire(ctx, lock.EventKey(eventID.String()), s.opts.LockTTL, 0)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.deps.Metrics.IncrementLockConflict("run")
			return nil, response.NewConcurrencyConflictError("A matching operation is already in progress for this event", "")
		}
		return nil, response.NewInternalError("Failed to acquire event lock", err.Error())
	}
	defer release()

	start := s.now()
	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	candidates, err := s.loadCandidates(runCtx, eventID)
	if err != nil {
		return nil, s.runFailed(ctx, eventID, operatorID, cfg, 0, start, err, "Failed to load participants")
	}

	result, err := s.engine.Form(runCtx, candidates, cfg)
	if err != nil {
		return nil, s.runFailed(ctx, eventID, operatorID, cfg, len(candidates), start, err, "Failed to form groups")
	}

	status := domain.MatchingStatus(matching.StatusFor(result))
	var attempt *domain.MatchingAttempt
	var groups []*domain.MatchingGroup

	err = s.deps.DB.WithContext(runCtx).Transaction(func(tx *gorm.DB) error {
		acquired, err := database.TryAdvisoryXactLock(tx, advisoryNamespace, eventID.String())
		if err != nil {
			return err
		}
		if !acquired {
			return response.NewConcurrencyConflictError("A matching operation is already in progress for this event", "")
		}

		groupRepo := s.deps.Groups.WithTx(tx)
		attemptRepo := s.deps.Attempts.WithTx(tx)

		live, err := groupRepo.FindLiveByEvent(runCtx, eventID)
		if err != nil {
			return err
		}
		for _, g := range live {
			if g.Status == domain.MatchingStatusConfirmed {
				return response.NewInvariantViolationError(
					"Confirmed groups exist for this event",
					fmt.Sprintf("group %d is confirmed; cancel it before re-running matching", g.GroupNumber))
			}
		}

		number, err := attemptRepo.NextAttemptNumber(runCtx, eventID)
		if err != nil {
			return err
		}

		if _, err := groupRepo.SupersedeLive(runCtx, eventID, &operatorID, s.now(), fmt.Sprintf("superseded by attempt %d", number)); err != nil {
			return err
		}

		attempt, err = newAttempt(eventID, number, status, cfg, result, &operatorID)
		if err != nil {
			return err
		}
		if err := attemptRepo.Create(runCtx, attempt); err != nil {
			return err
		}

		groups = make([]*domain.MatchingGroup, 0, len(result.Groups))
		for _, fg := range result.Groups {
			g, err := newGroup(eventID, number, status, fg)
			if err != nil {
				return err
			}
			if err := groupRepo.Create(runCtx, g); err != nil {
				return err
			}
			groups = append(groups, g)
		}
		return nil
	})
	if err != nil {
		return nil, s.runFailed(ctx, eventID, operatorID, cfg, len(candidates), start, err, "Failed to save matching result")
	}

	elapsed := s.now().Sub(start)
	s.deps.Metrics.RecordMatchingRun(string(status), elapsed, len(result.UnmatchedUsers))
	s.deps.Logger.Info("Matching run committed",
		zap.String("event_id", eventID.String()),
		zap.Int("attempt_number", attempt.AttemptNumber),
		zap.String("status", string(status)),
		zap.Int("groups", len(groups)),
		zap.Int("unmatched", len(result.UnmatchedUsers)),
		zap.Float64("lowest_threshold", result.Statistics.LowestThreshold),
		zap.Duration("elapsed", elapsed),
	)

	resp := &dto.MatchingResultResponse{
		MatchingPreviewResponse: toPreviewResponse(eventID, cfg, result),
		AttemptID:               attempt.ID,
		AttemptNumber:           attempt.AttemptNumber,
	}
	resp.Status = string(status)
	resp.Groups = make([]dto.MatchingGroupResponse, 0, len(groups))
	for _, g := range groups {
		resp.Groups = append(resp.Groups, toGroupResponse(g, uuid.Nil))
	}

	resp.ArchiveKey = s.archive(ctx, attempt, resp)

	if len(groups) > 0 {
		go s.publish(context.Background(), eventID, assignmentsOf(groups, &operatorID, s.now()))
	}
	return resp, nil
}

// runFailed maps a failed run to an API error. A run that exceeded its time budget is
// recorded as a NO_MATCH attempt so the ledger shows it; live groups are left untouched.
func (s *matchingServiceImpl) runFailed(ctx context.Context, eventID, operatorID uuid.UUID, cfg matching.FormationConfig, total int, start time.Time, err error, message string) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		var appErr *response.AppError
		if !errors.As(err, &appErr) {
			s.deps.Logger.Error(message, zap.String("event_id", eventID.String()), zap.Error(err))
		}
		return mapRunError(err, message)
	}

	elapsed := s.now().Sub(start)
	s.deps.Metrics.RecordMatchingRun(string(domain.MatchingStatusNoMatch), elapsed, total)
	s.deps.Logger.Warn("Matching run timed out",
		zap.String("event_id", eventID.String()),
		zap.Int("participants", total),
		zap.Duration("budget", s.opts.RunTimeout),
	)

	recordErr := s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attemptRepo := s.deps.Attempts.WithTx(tx)
		number, err := attemptRepo.NextAttemptNumber(ctx, eventID)
		if err != nil {
			return err
		}
		attempt, err := newAttempt(eventID, number, domain.MatchingStatusNoMatch, cfg, &matching.Result{
			ThresholdBreakdown: []matching.ThresholdBreakdown{},
			Warnings:           []string{fmt.Sprintf("matching exceeded the %s time budget", s.opts.RunTimeout)},
			Statistics:         matching.Statistics{TotalParticipants: total, UnmatchedCount: total, ExecutionTimeMs: elapsed.Milliseconds()},
		}, &operatorID)
		if err != nil {
			return err
		}
		attempt.TimedOut = true
		return attemptRepo.Create(ctx, attempt)
	})
	if recordErr != nil {
		s.deps.Logger.Error("Failed to record timed out attempt", zap.String("event_id", eventID.String()), zap.Error(recordErr))
	}

	return response.NewAppError(response.ErrCodeMatchingTimeout, "Matching did not finish in time",
		fmt.Sprintf("exceeded %s with %d participants", s.opts.RunTimeout, total))
}

// archive stores the committed result outside the database; failures are logged only
func (s *matchingServiceImpl) archive(ctx context.Context, attempt *domain.MatchingAttempt, resp *dto.MatchingResultResponse) string {
	key, err := s.deps.Archiver.ArchiveAttempt(ctx, attempt.EventID, attempt.AttemptNumber, resp)
	if err != nil {
		s.deps.Logger.Warn("Failed to archive matching attempt",
			zap.String("event_id", attempt.EventID.String()),
			zap.Int("attempt_number", attempt.AttemptNumber),
			zap.Error(err),
		)
		return ""
	}
	if key == "" {
		return ""
	}
	if err := s.deps.Attempts.SetArchiveKey(ctx, attempt.ID, key); err != nil {
		s.deps.Logger.Warn("Failed to record archive key", zap.String("key", key), zap.Error(err))
	}
	attempt.ArchiveKey = key
	return key
}

func (s *matchingServiceImpl) publish(ctx context.Context, eventID uuid.UUID, assignments []client.GroupAssignment) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.deps.Publisher.PublishAssignments(ctx, eventID, assignments); err != nil {
		s.deps.Logger.Warn("Failed to publish group assignments",
			zap.String("event_id", eventID.String()),
			zap.Int("groups", len(assignments)),
			zap.Error(err),
		)
	}
}

// GetGroups returns the live groups of the event
func (s *matchingServiceImpl) GetGroups(ctx context.Context, eventID, viewerID uuid.UUID) ([]dto.MatchingGroupResponse, error) {
	groups, err := s.deps.Groups.FindLiveByEvent(ctx, eventID)
	if err != nil {
		return nil, response.NewInternalError("Failed to fetch groups", err.Error())
	}
	resp := make([]dto.MatchingGroupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, toGroupResponse(g, viewerID))
	}
	return resp, nil
}

// GetMyGroup returns the caller's current group
func (s *matchingServiceImpl) GetMyGroup(ctx context.Context, eventID, userID uuid.UUID) (*dto.MatchingGroupResponse, error) {
	member, err := s.deps.Groups.FindActiveMembership(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("You have not been assigned to a group yet", "")
		}
		return nil, response.NewInternalError("Failed to fetch membership", err.Error())
	}
	group, err := s.deps.Groups.FindByID(ctx, eventID, member.GroupID)
	if err != nil {
		return nil, response.NewInternalError("Failed to fetch group", err.Error())
	}
	resp := toGroupResponse(group, userID)
	return &resp, nil
}

// GetUnassigned lists paid participants without an active seat, including those the engine
// could not consider because their snapshot is missing
func (s *matchingServiceImpl) GetUnassigned(ctx context.Context, eventID uuid.UUID) (*dto.UnassignedParticipantsResponse, error) {
	roster, err := s.deps.Participants.FindByEvent(ctx, eventID)
	if err != nil {
		return nil, response.NewInternalError("Failed to fetch participants", err.Error())
	}

	paid := make([]*domain.EventParticipant, 0, len(roster))
	paidIDs := make([]uuid.UUID, 0, len(roster))
	for _, p := range roster {
		if p.IsPaid() {
			paid = append(paid, p)
			paidIDs = append(paidIDs, p.UserID)
		}
	}

	snapshots, err := s.deps.Participants.FindSnapshots(ctx, eventID, paidIDs)
	if err != nil {
		return nil, response.NewInternalError("Failed to fetch snapshots", err.Error())
	}
	seatedIDs, err := s.deps.Groups.ListActiveMemberIDs(ctx, eventID)
	if err != nil {
		return nil, response.NewInternalError("Failed to fetch memberships", err.Error())
	}
	seated := make(map[uuid.UUID]struct{}, len(seatedIDs))
	for _, id := range seatedIDs {
		seated[id] = struct{}{}
	}

	resp := &dto.UnassignedParticipantsResponse{
		EventID:      eventID,
		TotalPaid:    len(paid),
		Participants: []dto.UnassignedParticipant{},
	}
	for _, p := range paid {
		if _, ok := seated[p.UserID]; ok {
			resp.TotalAssigned++
			continue
		}
		_, hasSnapshot := snapshots[p.UserID]
		reason := reasonNotGrouped
		if !hasSnapshot {
			reason = reasonMissingSnapshot
			resp.MissingSnapshot++
		}
		resp.Participants = append(resp.Participants, dto.UnassignedParticipant{
			UserID:        p.UserID,
			TransactionID: p.TransactionID,
			DisplayName:   p.DisplayName,
			Email:         p.Email,
			HasSnapshot:   hasSnapshot,
			Reason:        reason,
		})
	}
	return resp, nil
}

// GetAttemptHistory returns the ledger by attempt number ascending
func (s *matchingServiceImpl) GetAttemptHistory(ctx context.Context, eventID uuid.UUID) ([]dto.MatchingAttemptResponse, error) {
	attempts, err := s.deps.Attempts.FindByEvent(ctx, eventID)
	if err != nil {
		return nil, response.NewInternalError("Failed to fetch matching history", err.Error())
	}
	resp := make([]dto.MatchingAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, toAttemptResponse(a))
	}
	return resp, nil
}

func mapRunError(err error, message string) error {
	var appErr *response.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, matching.ErrInvalidConfig):
		return response.NewConfigurationError("Invalid matching configuration", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return response.NewAppError(response.ErrCodeMatchingTimeout, "Matching did not finish in time", err.Error())
	default:
		return response.NewInternalError(message, err.Error())
	}
}

func newAttempt(eventID uuid.UUID, number int, status domain.MatchingStatus, cfg matching.FormationConfig, r *matching.Result, by *uuid.UUID) (*domain.MatchingAttempt, error) {
	unmatched := make([]uuid.UUID, 0, len(r.UnmatchedUsers))
	for _, c := range r.UnmatchedUsers {
		unmatched = append(unmatched, c.UserID)
	}

	columns := make([]datatypes.JSON, 4)
	for i, v := range []interface{}{cfg, r.ThresholdBreakdown, r.Warnings, unmatched} {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode attempt: %w", err)
		}
		columns[i] = datatypes.JSON(data)
	}

	stats := r.Statistics
	return &domain.MatchingAttempt{
		EventID:            eventID,
		AttemptNumber:      number,
		Status:             status,
		TotalParticipants:  stats.TotalParticipants,
		MatchedCount:       stats.MatchedCount,
		UnmatchedCount:     stats.UnmatchedCount,
		GroupsFormed:       stats.TotalGroups,
		AverageMatchScore:  stats.AverageMatchScore,
		HighestThreshold:   stats.HighestThreshold,
		LowestThreshold:    stats.LowestThreshold,
		ExecutionTimeMs:    stats.ExecutionTimeMs,
		Config:             columns[0],
		ThresholdBreakdown: columns[1],
		Warnings:           columns[2],
		UnmatchedUserIDs:   columns[3],
		TriggeredBy:        by,
	}, nil
}

// newGroup builds a committed group; it carries the attempt status (MATCHED or PARTIALLY_MATCHED)
func newGroup(eventID uuid.UUID, attemptNumber int, status domain.MatchingStatus, fg matching.FormedGroup) (*domain.MatchingGroup, error) {
	g := &domain.MatchingGroup{
		EventID:           eventID,
		AttemptNumber:     attemptNumber,
		GroupNumber:       fg.GroupNumber,
		Status:            status,
		AverageMatchScore: fg.AverageMatchScore,
		MinMatchScore:     fg.MinMatchScore,
		GroupSize:         len(fg.Members),
		ThresholdUsed:     fg.ThresholdUsed,
		Members:           make([]domain.GroupMember, 0, len(fg.Members)),
	}
	for _, c := range fg.Members {
		m := domain.GroupMember{
			EventID:       eventID,
			UserID:        c.UserID,
			TransactionID: c.TransactionID,
			DisplayName:   c.DisplayName,
			Email:         c.Email,
		}
		m.SetOrigin(domain.AlgorithmicOrigin{})
		if err := m.SetScores(fg.MatchScores[c.UserID]); err != nil {
			return nil, fmt.Errorf("encode scores: %w", err)
		}
		g.Members = append(g.Members, m)
	}
	return g, nil
}

func assignmentsOf(groups []*domain.MatchingGroup, by *uuid.UUID, at time.Time) []client.GroupAssignment {
	out := make([]client.GroupAssignment, 0, len(groups))
	for _, g := range groups {
		active := g.ActiveMembers()
		ids := make([]uuid.UUID, 0, len(active))
		for _, m := range active {
			ids = append(ids, m.UserID)
		}
		out = append(out, client.GroupAssignment{
			EventID:       g.EventID,
			GroupID:       g.ID,
			GroupNumber:   g.GroupNumber,
			AttemptNumber: g.AttemptNumber,
			TableNumber:   g.TableNumber,
			VenueName:     g.VenueName,
			MemberIDs:     ids,
			AssignedBy:    by,
			OccurredAt:    at,
		})
	}
	return out
}
