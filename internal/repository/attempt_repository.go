package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"daylight-matching-api/internal/domain"
)

// AttemptRepository defines data access for the append-only matching attempt ledger
type AttemptRepository interface {
	WithTx(tx *gorm.DB) AttemptRepository
	NextAttemptNumber(ctx context.Context, eventID uuid.UUID) (int, error)
	Create(ctx context.Context, attempt *domain.MatchingAttempt) error
	SetArchiveKey(ctx context.Context, attemptID uuid.UUID, key string) error
	FindByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingAttempt, error)
	FindByNumber(ctx context.Context, eventID uuid.UUID, attemptNumber int) (*domain.MatchingAttempt, error)
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

// attemptRepositoryImpl is the GORM implementation of AttemptRepository
type attemptRepositoryImpl struct {
	db *gorm.DB
}

// NewAttemptRepository creates a new instance of AttemptRepository
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepositoryImpl{db: db}
}

// WithTx returns a repository bound to tx
func (r *attemptRepositoryImpl) WithTx(tx *gorm.DB) AttemptRepository {
	return &attemptRepositoryImpl{db: tx}
}

// NextAttemptNumber returns one past the highest attempt number recorded for the event
func (r *attemptRepositoryImpl) NextAttemptNumber(ctx context.Context, eventID uuid.UUID) (int, error) {
	var last int
	if err := r.db.WithContext(ctx).
		Model(&domain.MatchingAttempt{}).
		Where("event_id = ?", eventID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&last).Error; err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Create appends an attempt
func (r *attemptRepositoryImpl) Create(ctx context.Context, attempt *domain.MatchingAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

// SetArchiveKey records where the attempt snapshot was archived
func (r *attemptRepositoryImpl) SetArchiveKey(ctx context.Context, attemptID uuid.UUID, key string) error {
	return r.db.WithContext(ctx).
		Model(&domain.MatchingAttempt{}).
		Where("id = ?", attemptID).
		Update("archive_key", key).Error
}

// FindByEvent returns the event's attempts by attempt number ascending
func (r *attemptRepositoryImpl) FindByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingAttempt, error) {
	var attempts []*domain.MatchingAttempt
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("attempt_number ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// FindByNumber finds one attempt of the event
func (r *attemptRepositoryImpl) FindByNumber(ctx context.Context, eventID uuid.UUID, attemptNumber int) (*domain.MatchingAttempt, error) {
	var attempt domain.MatchingAttempt
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND attempt_number = ?", eventID, attemptNumber).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// CountByEvent counts the event's attempts
func (r *attemptRepositoryImpl) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.MatchingAttempt{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
