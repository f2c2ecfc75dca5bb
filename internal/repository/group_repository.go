package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"daylight-matching-api/internal/domain"
)

// GroupRepository defines data access for matching groups and their members
type GroupRepository interface {
	WithTx(tx *gorm.DB) GroupRepository
	FindLiveByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingGroup, error)
	FindByID(ctx context.Context, eventID, groupID uuid.UUID) (*domain.MatchingGroup, error)
	FindLiveByNumber(ctx context.Context, eventID uuid.UUID, groupNumber int) (*domain.MatchingGroup, error)
	FindActiveMembership(ctx context.Context, eventID, userID uuid.UUID) (*domain.GroupMember, error)
	FindActiveMemberships(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) ([]*domain.GroupMember, error)
	ListActiveMemberIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, group *domain.MatchingGroup) error
	Update(ctx context.Context, group *domain.MatchingGroup) error
	AddMember(ctx context.Context, member *domain.GroupMember) error
	SaveMember(ctx context.Context, member *domain.GroupMember) error
	ReleaseMembers(ctx context.Context, groupID uuid.UUID, by *uuid.UUID, at time.Time, reason string) error
	SupersedeLive(ctx context.Context, eventID uuid.UUID, by *uuid.UUID, at time.Time, reason string) (int64, error)
}

// groupRepositoryImpl is the GORM implementation of GroupRepository
type groupRepositoryImpl struct {
	db *gorm.DB
}

// NewGroupRepository creates a new instance of GroupRepository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepositoryImpl{db: db}
}

// WithTx returns a repository bound to tx
func (r *groupRepositoryImpl) WithTx(tx *gorm.DB) GroupRepository {
	return &groupRepositoryImpl{db: tx}
}

func activeMembers(db *gorm.DB) *gorm.DB {
	return db.Where("removed_at IS NULL").Order("created_at ASC")
}

// FindLiveByEvent returns non-cancelled groups with their active members, by group number
func (r *groupRepositoryImpl) FindLiveByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.MatchingGroup, error) {
	var groups []*domain.MatchingGroup
	if err := r.db.WithContext(ctx).
		Preload("Members", activeMembers).
		Where("event_id = ? AND status <> ?", eventID, domain.MatchingStatusCancelled).
		Order("group_number ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// FindByID finds a group of the event with its active members
func (r *groupRepositoryImpl) FindByID(ctx context.Context, eventID, groupID uuid.UUID) (*domain.MatchingGroup, error) {
	var group domain.MatchingGroup
	if err := r.db.WithContext(ctx).
		Preload("Members", activeMembers).
		Where("id = ? AND event_id = ?", groupID, eventID).
		First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindLiveByNumber finds the non-cancelled group holding groupNumber
func (r *groupRepositoryImpl) FindLiveByNumber(ctx context.Context, eventID uuid.UUID, groupNumber int) (*domain.MatchingGroup, error) {
	var group domain.MatchingGroup
	if err := r.db.WithContext(ctx).
		Preload("Members", activeMembers).
		Where("event_id = ? AND group_number = ? AND status <> ?", eventID, groupNumber, domain.MatchingStatusCancelled).
		First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindActiveMembership finds the user's current seat for the event
func (r *groupRepositoryImpl) FindActiveMembership(ctx context.Context, eventID, userID uuid.UUID) (*domain.GroupMember, error) {
	var member domain.GroupMember
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND removed_at IS NULL", eventID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// FindActiveMemberships returns the current seats held by any of userIDs
func (r *groupRepositoryImpl) FindActiveMemberships(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) ([]*domain.GroupMember, error) {
	if len(userIDs) == 0 {
		return []*domain.GroupMember{}, nil
	}

	var members []*domain.GroupMember
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id IN ? AND removed_at IS NULL", eventID, userIDs).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListActiveMemberIDs returns every user currently seated at the event
func (r *groupRepositoryImpl) ListActiveMemberIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&domain.GroupMember{}).
		Where("event_id = ? AND removed_at IS NULL", eventID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Create inserts a group together with its members
func (r *groupRepositoryImpl) Create(ctx context.Context, group *domain.MatchingGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// Update saves the group row only; members are written through AddMember and SaveMember
func (r *groupRepositoryImpl) Update(ctx context.Context, group *domain.MatchingGroup) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(group).Error
}

// AddMember inserts a member row
func (r *groupRepositoryImpl) AddMember(ctx context.Context, member *domain.GroupMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// SaveMember updates a member row
func (r *groupRepositoryImpl) SaveMember(ctx context.Context, member *domain.GroupMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}

// ReleaseMembers soft-removes every active member of a group
func (r *groupRepositoryImpl) ReleaseMembers(ctx context.Context, groupID uuid.UUID, by *uuid.UUID, at time.Time, reason string) error {
	return r.db.WithContext(ctx).
		Model(&domain.GroupMember{}).
		Where("group_id = ? AND removed_at IS NULL", groupID).
		Updates(map[string]interface{}{
			"removed_at":     at,
			"removed_by":     nullableUUID(by),
			"removal_reason": reason,
			"updated_at":     at,
		}).Error
}

// SupersedeLive cancels every live group of the event and releases its active members.
// It returns the number of groups cancelled.
func (r *groupRepositoryImpl) SupersedeLive(ctx context.Context, eventID uuid.UUID, by *uuid.UUID, at time.Time, reason string) (int64, error) {
	db := r.db.WithContext(ctx)

	if err := db.Model(&domain.GroupMember{}).
		Where("event_id = ? AND removed_at IS NULL", eventID).
		Updates(map[string]interface{}{
			"removed_at":     at,
			"removed_by":     nullableUUID(by),
			"removal_reason": reason,
			"updated_at":     at,
		}).Error; err != nil {
		return 0, err
	}

	result := db.Model(&domain.MatchingGroup{}).
		Where("event_id = ? AND status <> ?", eventID, domain.MatchingStatusCancelled).
		Updates(map[string]interface{}{
			"status":     domain.MatchingStatusCancelled,
			"updated_at": at,
		})
	return result.RowsAffected, result.Error
}

func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
