package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"daylight-matching-api/internal/domain"
)

// ParticipantRepository defines data access for the event roster and personality snapshots
type ParticipantRepository interface {
	WithTx(tx *gorm.DB) ParticipantRepository
	FindByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.EventParticipant, error)
	FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.EventParticipant, error)
	FindEligible(ctx context.Context, eventID uuid.UUID) ([]domain.EligibleParticipant, error)
	FindSnapshot(ctx context.Context, eventID, userID uuid.UUID) (*domain.PersonalitySnapshot, error)
	FindSnapshots(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]*domain.PersonalitySnapshot, error)
	CreateParticipant(ctx context.Context, participant *domain.EventParticipant) error
	SaveParticipant(ctx context.Context, participant *domain.EventParticipant) error
	CreateSnapshot(ctx context.Context, snapshot *domain.PersonalitySnapshot) error
	SaveSnapshot(ctx context.Context, snapshot *domain.PersonalitySnapshot) error
}

// participantRepositoryImpl is the GORM implementation of ParticipantRepository
type participantRepositoryImpl struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new instance of ParticipantRepository
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepositoryImpl{db: db}
}

// WithTx returns a repository bound to tx
func (r *participantRepositoryImpl) WithTx(tx *gorm.DB) ParticipantRepository {
	return &participantRepositoryImpl{db: tx}
}

// FindByEvent returns the full roster ordered by registration time
func (r *participantRepositoryImpl) FindByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.EventParticipant, error) {
	var participants []*domain.EventParticipant
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

// FindByEventAndUser finds one roster row
func (r *participantRepositoryImpl) FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.EventParticipant, error) {
	var participant domain.EventParticipant
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&participant).Error; err != nil {
		return nil, err
	}
	return &participant, nil
}

// FindEligible returns PAID participants that have a snapshot. Paid participants without a
// snapshot are left out; the unassigned view reports them separately.
func (r *participantRepositoryImpl) FindEligible(ctx context.Context, eventID uuid.UUID) ([]domain.EligibleParticipant, error) {
	var paid []domain.EventParticipant
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND payment_status = ?", eventID, domain.PaymentStatusPaid).
		Order("created_at ASC").
		Find(&paid).Error; err != nil {
		return nil, err
	}
	if len(paid) == 0 {
		return []domain.EligibleParticipant{}, nil
	}

	userIDs := make([]uuid.UUID, len(paid))
	for i, p := range paid {
		userIDs[i] = p.UserID
	}
	snapshots, err := r.FindSnapshots(ctx, eventID, userIDs)
	if err != nil {
		return nil, err
	}

	eligible := make([]domain.EligibleParticipant, 0, len(paid))
	for _, p := range paid {
		s, ok := snapshots[p.UserID]
		if !ok {
			continue
		}
		eligible = append(eligible, domain.EligibleParticipant{EventParticipant: p, Snapshot: *s})
	}
	return eligible, nil
}

// FindSnapshot finds the snapshot for one participant
func (r *participantRepositoryImpl) FindSnapshot(ctx context.Context, eventID, userID uuid.UUID) (*domain.PersonalitySnapshot, error) {
	var snapshot domain.PersonalitySnapshot
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// FindSnapshots returns snapshots keyed by user id; users without one are absent
func (r *participantRepositoryImpl) FindSnapshots(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]*domain.PersonalitySnapshot, error) {
	result := make(map[uuid.UUID]*domain.PersonalitySnapshot, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var snapshots []*domain.PersonalitySnapshot
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id IN ?", eventID, userIDs).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	for _, s := range snapshots {
		result[s.UserID] = s
	}
	return result, nil
}

// CreateParticipant inserts a roster row
func (r *participantRepositoryImpl) CreateParticipant(ctx context.Context, participant *domain.EventParticipant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

// SaveParticipant updates a roster row
func (r *participantRepositoryImpl) SaveParticipant(ctx context.Context, participant *domain.EventParticipant) error {
	return r.db.WithContext(ctx).Save(participant).Error
}

// CreateSnapshot inserts a snapshot
func (r *participantRepositoryImpl) CreateSnapshot(ctx context.Context, snapshot *domain.PersonalitySnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// SaveSnapshot updates a snapshot
func (r *participantRepositoryImpl) SaveSnapshot(ctx context.Context, snapshot *domain.PersonalitySnapshot) error {
	return r.db.WithContext(ctx).Save(snapshot).Error
}
