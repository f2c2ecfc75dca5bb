package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"daylight-matching-api/internal/client"
	"daylight-matching-api/internal/domain"
	"daylight-matching-api/internal/repository"
)

// MockParticipantRepository is a mock implementation of ParticipantRepository
type MockParticipantRepository struct {
	FindByEventFunc        func(ctx context.Context, eventID uuid.UUID) ([]*domain.EventParticipant, error)
	FindByEventAndUserFunc func(ctx context.Context, eventID, userID uuid.UUID) (*domain.EventParticipant, error)
	FindEligibleFunc       func(ctx context.Context, eventID uuid.UUID) ([]domain.EligibleParticipant, error)
	FindSnapshotFunc       func(ctx context.Context, eventID, userID uuid.UUID) (*domain.PersonalitySnapshot, error)
	FindSnapshotsFunc      func(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]*domain.PersonalitySnapshot, error)
	CreateParticipantFunc  func(ctx context.Context, participant *domain.EventParticipant) error
	SaveParticipantFunc    func(ctx context.Context, participant *domain.EventParticipant) error
	CreateSnapshotFunc     func(ctx context.Context, snapshot *domain.PersonalitySnapshot) error
	SaveSnapshotFunc       func(ctx context.Context, snapshot *domain.PersonalitySnapshot) error
}

func (m *MockParticipantRepository) WithTx(tx *gorm.DB) repository.ParticipantRepository {
	return m
}

func (m *MockParticipantRepository) FindByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.EventParticipant, error) {
	if m.FindByEventFunc != nil {
		return m.FindByEventFunc(ctx, eventID)
	}
	return []*domain.EventParticipant{}, nil
}

func (m *MockParticipantRepository) FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.EventParticipant, error) {
	if m.FindByEventAndUserFunc != nil {
		return m.FindByEventAndUserFunc(ctx, eventID, userID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockParticipantRepository) FindEligible(ctx context.Context, eventID uuid.UUID) ([]domain.EligibleParticipant, error) {
	if m.FindEligibleFunc != nil {
		return m.FindEligibleFunc(ctx, eventID)
	}
	return []domain.EligibleParticipant{}, nil
}

func (m *MockParticipantRepository) FindSnapshot(ctx context.Context, eventID, userID uuid.UUID) (*domain.PersonalitySnapshot, error) {
	if m.FindSnapshotFunc != nil {
		return m.FindSnapshotFunc(ctx, eventID, userID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockParticipantRepository) FindSnapshots(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]*domain.PersonalitySnapshot, error) {
	if m.FindSnapshotsFunc != nil {
		return m.FindSnapshotsFunc(ctx, eventID, userIDs)
	}
	return map[uuid.UUID]*domain.PersonalitySnapshot{}, nil
}

func (m *MockParticipantRepository) CreateParticipant(ctx context.Context, participant *domain.EventParticipant) error {
	if m.CreateParticipantFunc != nil {
		return m.CreateParticipantFunc(ctx, participant)
	}
	return nil
}

func (m *MockParticipantRepository) SaveParticipant(ctx context.Context, participant *domain.EventParticipant) error {
	if m.SaveParticipantFunc != nil {
		return m.SaveParticipantFunc(ctx, participant)
	}
	return nil
}

func (m *MockParticipantRepository) CreateSnapshot(ctx context.Context, snapshot *domain.PersonalitySnapshot) error {
	if m.CreateSnapshotFunc != nil {
		return m.CreateSnapshotFunc(ctx, snapshot)
	}
	return nil
}

func (m *MockParticipantRepository) SaveSnapshot(ctx context.Context, snapshot *domain.PersonalitySnapshot) error {
	if m.SaveSnapshotFunc != nil {
		return m.SaveSnapshotFunc(ctx, snapshot)
	}
	return nil
}

// MockGroupRepository is a mock implementation of GroupRepository
type MockGroupRepository struct {
	FindLiveByEventFunc      func(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingGroup, error)
	FindByIDFunc             func(ctx context.Context, eventID, groupID uuid.UUID) (*domain.MatchingGroup, error)
	FindActiveMembershipFunc func(ctx context.Context, eventID, userID uuid.UUID) (*domain.GroupMember, error)
	ListActiveMemberIDsFunc  func(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

func (m *MockGroupRepository) WithTx(tx *gorm.DB) repository.GroupRepository {
	return m
}

func (m *MockGroupRepository) FindLiveByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingGroup, error) {
	if m.FindLiveByEventFunc != nil {
		return m.FindLiveByEventFunc(ctx, eventID)
	}
	return []*domain.MatchingGroup{}, nil
}

func (m *MockGroupRepository) FindByID(ctx context.Context, eventID, groupID uuid.UUID) (*domain.MatchingGroup, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, eventID, groupID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) FindLiveByNumber(ctx context.Context, eventID uuid.UUID, groupNumber int) (*domain.MatchingGroup, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) FindActiveMembership(ctx context.Context, eventID, userID uuid.UUID) (*domain.GroupMember, error) {
	if m.FindActiveMembershipFunc != nil {
		return m.FindActiveMembershipFunc(ctx, eventID, userID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) FindActiveMemberships(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) ([]*domain.GroupMember, error) {
	return []*domain.GroupMember{}, nil
}

func (m *MockGroupRepository) ListActiveMemberIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	if m.ListActiveMemberIDsFunc != nil {
		return m.ListActiveMemberIDsFunc(ctx, eventID)
	}
	return []uuid.UUID{}, nil
}

func (m *MockGroupRepository) Create(ctx context.Context, group *domain.MatchingGroup) error {
	return nil
}

func (m *MockGroupRepository) Update(ctx context.Context, group *domain.MatchingGroup) error {
	return nil
}

func (m *MockGroupRepository) AddMember(ctx context.Context, member *domain.GroupMember) error {
	return nil
}

func (m *MockGroupRepository) SaveMember(ctx context.Context, member *domain.GroupMember) error {
	return nil
}

func (m *MockGroupRepository) ReleaseMembers(ctx context.Context, groupID uuid.UUID, by *uuid.UUID, at time.Time, reason string) error {
	return nil
}

func (m *MockGroupRepository) SupersedeLive(ctx context.Context, eventID uuid.UUID, by *uuid.UUID, at time.Time, reason string) (int64, error) {
	return 0, nil
}

// MockAttemptRepository is a mock implementation of AttemptRepository
type MockAttemptRepository struct {
	FindByEventFunc  func(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingAttempt, error)
	CountByEventFunc func(ctx context.Context, eventID uuid.UUID) (int64, error)
}

func (m *MockAttemptRepository) WithTx(tx *gorm.DB) repository.AttemptRepository {
	return m
}

func (m *MockAttemptRepository) NextAttemptNumber(ctx context.Context, eventID uuid.UUID) (int, error) {
	return 1, nil
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *domain.MatchingAttempt) error {
	return nil
}

func (m *MockAttemptRepository) SetArchiveKey(ctx context.Context, attemptID uuid.UUID, key string) error {
	return nil
}

func (m *MockAttemptRepository) FindByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingAttempt, error) {
	if m.FindByEventFunc != nil {
		return m.FindByEventFunc(ctx, eventID)
	}
	return []*domain.MatchingAttempt{}, nil
}

func (m *MockAttemptRepository) FindByNumber(ctx context.Context, eventID uuid.UUID, attemptNumber int) (*domain.MatchingAttempt, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockAttemptRepository) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	if m.CountByEventFunc != nil {
		return m.CountByEventFunc(ctx, eventID)
	}
	return 0, nil
}

// recordingPublisher captures published assignments
type recordingPublisher struct {
	mu        sync.Mutex
	published chan []client.GroupAssignment
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(chan []client.GroupAssignment, 8)}
}

func (p *recordingPublisher) PublishAssignments(ctx context.Context, eventID uuid.UUID, assignments []client.GroupAssignment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published <- assignments
	return nil
}
