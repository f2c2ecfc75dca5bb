package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchingStatus is shared by groups and attempts
type MatchingStatus string

const (
	MatchingStatusPending          MatchingStatus = "PENDING"
	MatchingStatusMatched          MatchingStatus = "MATCHED"
	MatchingStatusPartiallyMatched MatchingStatus = "PARTIALLY_MATCHED"
	MatchingStatusNoMatch          MatchingStatus = "NO_MATCH"
	MatchingStatusConfirmed        MatchingStatus = "CONFIRMED"
	MatchingStatusCancelled        MatchingStatus = "CANCELLED"
)

// MatchingGroup is one formed table for an event
type MatchingGroup struct {
	BaseModel
	EventID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_matching_groups_event_id;uniqueIndex:uq_matching_groups_event_number,where:status <> 'CANCELLED'" json:"event_id"`
	AttemptNumber     int            `gorm:"not null;default:0" json:"attempt_number"`
	GroupNumber       int            `gorm:"not null;uniqueIndex:uq_matching_groups_event_number,where:status <> 'CANCELLED'" json:"group_number"`
	Status            MatchingStatus `gorm:"type:varchar(30);not null;default:'PENDING';index:idx_matching_groups_status" json:"status"`
	AverageMatchScore float64        `gorm:"not null;default:0" json:"average_match_score"`
	MinMatchScore     float64        `gorm:"not null;default:0" json:"min_match_score"`
	GroupSize         int            `gorm:"not null;default:0" json:"group_size"`
	ThresholdUsed     float64        `gorm:"not null;default:0" json:"threshold_used"`
	TableNumber       *int           `json:"table_number,omitempty"`
	VenueName         string         `gorm:"type:varchar(255)" json:"venue_name,omitempty"`
	HasManualChanges  bool           `gorm:"default:false" json:"has_manual_changes"`
	IsEmpty           bool           `gorm:"default:false" json:"is_empty"`
	Note              string         `gorm:"type:text" json:"note,omitempty"`
	LastModifiedBy    *uuid.UUID     `gorm:"type:uuid" json:"last_modified_by,omitempty"`
	LastModifiedAt    *time.Time     `gorm:"type:timestamp" json:"last_modified_at,omitempty"`
	Members           []GroupMember  `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

// TableName specifies the table name for MatchingGroup
func (MatchingGroup) TableName() string {
	return "matching_groups"
}

// IsLive reports whether the group still counts for the event
func (g MatchingGroup) IsLive() bool {
	return g.Status != MatchingStatusCancelled
}

// AcceptsChanges reports whether membership may still change
func (g MatchingGroup) AcceptsChanges() bool {
	return g.Status != MatchingStatusCancelled && g.Status != MatchingStatusConfirmed
}

// ActiveMembers returns members that have not been removed
func (g MatchingGroup) ActiveMembers() []GroupMember {
	active := make([]GroupMember, 0, len(g.Members))
	for _, m := range g.Members {
		if m.IsActive() {
			active = append(active, m)
		}
	}
	return active
}

// MarkModified stamps the operator audit fields
func (g *MatchingGroup) MarkModified(by uuid.UUID, at time.Time) {
	g.HasManualChanges = true
	g.LastModifiedBy = &by
	g.LastModifiedAt = &at
}

// GroupMember joins a participant to a group
type GroupMember struct {
	BaseModel
	GroupID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_group_members_group_id" json:"group_id"`
	EventID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_group_members_event_user_active,where:removed_at IS NULL" json:"event_id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index:idx_group_members_user_id;uniqueIndex:uq_group_members_event_user_active,where:removed_at IS NULL" json:"user_id"`
	TransactionID      string         `gorm:"type:varchar(100);not null" json:"transaction_id"`
	DisplayName        string         `gorm:"type:varchar(255)" json:"display_name"`
	Email              string         `gorm:"type:varchar(255)" json:"email"`
	MatchScores        datatypes.JSON `json:"match_scores"`
	IsConfirmed        bool           `gorm:"default:false" json:"is_confirmed"`
	ConfirmedAt        *time.Time     `gorm:"type:timestamp" json:"confirmed_at,omitempty"`
	IsManuallyAssigned bool           `gorm:"default:false" json:"is_manually_assigned"`
	AssignedBy         *uuid.UUID     `gorm:"type:uuid" json:"assigned_by,omitempty"`
	AssignedAt         *time.Time     `gorm:"type:timestamp" json:"assigned_at,omitempty"`
	AssignmentNote     string         `gorm:"type:text" json:"assignment_note,omitempty"`
	RemovedAt          *time.Time     `gorm:"type:timestamp;index:idx_group_members_removed_at" json:"removed_at,omitempty"`
	RemovedBy          *uuid.UUID     `gorm:"type:uuid" json:"removed_by,omitempty"`
	RemovalReason      string         `gorm:"type:text" json:"removal_reason,omitempty"`
}

// TableName specifies the table name for GroupMember
func (GroupMember) TableName() string {
	return "matching_group_members"
}

// IsActive reports whether the member still sits at the group's table
func (m GroupMember) IsActive() bool {
	return m.RemovedAt == nil
}

// Release soft-removes the member
func (m *GroupMember) Release(by *uuid.UUID, at time.Time, reason string) {
	m.RemovedAt = &at
	m.RemovedBy = by
	m.RemovalReason = reason
}

// Scores decodes the peer score map
func (m GroupMember) Scores() (map[uuid.UUID]float64, error) {
	out := map[uuid.UUID]float64{}
	if len(m.MatchScores) == 0 {
		return out, nil
	}
	err := json.Unmarshal(m.MatchScores, &out)
	return out, err
}

// SetScores encodes the peer score map
func (m *GroupMember) SetScores(scores map[uuid.UUID]float64) error {
	if scores == nil {
		scores = map[uuid.UUID]float64{}
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	m.MatchScores = datatypes.JSON(data)
	return nil
}

// AssignmentOrigin records how a member was placed: AlgorithmicOrigin or ManualOrigin
type AssignmentOrigin interface {
	isAssignmentOrigin()
}

// AlgorithmicOrigin marks a member placed by a formation run
type AlgorithmicOrigin struct{}

// ManualOrigin marks a member placed by an operator
type ManualOrigin struct {
	By   uuid.UUID
	At   time.Time
	Note string
}

func (AlgorithmicOrigin) isAssignmentOrigin() {}
func (ManualOrigin) isAssignmentOrigin()      {}

// Origin returns the assignment variant stored in the nullable audit columns
func (m GroupMember) Origin() AssignmentOrigin {
	if !m.IsManuallyAssigned || m.AssignedBy == nil || m.AssignedAt == nil {
		return AlgorithmicOrigin{}
	}
	return ManualOrigin{By: *m.AssignedBy, At: *m.AssignedAt, Note: m.AssignmentNote}
}

// SetOrigin writes the assignment variant into the audit columns
func (m *GroupMember) SetOrigin(origin AssignmentOrigin) {
	switch o := origin.(type) {
	case ManualOrigin:
		by, at := o.By, o.At
		m.IsManuallyAssigned = true
		m.AssignedBy = &by
		m.AssignedAt = &at
		m.AssignmentNote = o.Note
	default:
		m.IsManuallyAssigned = false
		m.AssignedBy = nil
		m.AssignedAt = nil
		m.AssignmentNote = ""
	}
}
