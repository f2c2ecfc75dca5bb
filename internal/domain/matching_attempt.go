package domain

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchingAttempt is an append-only record of one committed formation run
type MatchingAttempt struct {
	BaseModel
	EventID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_matching_attempts_event_number" json:"event_id"`
	AttemptNumber      int            `gorm:"not null;uniqueIndex:uq_matching_attempts_event_number" json:"attempt_number"`
	Status             MatchingStatus `gorm:"type:varchar(30);not null" json:"status"`
	TotalParticipants  int            `gorm:"not null;default:0" json:"total_participants"`
	MatchedCount       int            `gorm:"not null;default:0" json:"matched_count"`
	UnmatchedCount     int            `gorm:"not null;default:0" json:"unmatched_count"`
	GroupsFormed       int            `gorm:"not null;default:0" json:"groups_formed"`
	AverageMatchScore  float64        `gorm:"not null;default:0" json:"average_match_score"`
	HighestThreshold   float64        `gorm:"not null;default:0" json:"highest_threshold"`
	LowestThreshold    float64        `gorm:"not null;default:0" json:"lowest_threshold"`
	ExecutionTimeMs    int64          `gorm:"not null;default:0" json:"execution_time_ms"`
	Config             datatypes.JSON `json:"config"`
	ThresholdBreakdown datatypes.JSON `json:"threshold_breakdown"`
	Warnings           datatypes.JSON `json:"warnings"`
	UnmatchedUserIDs   datatypes.JSON `json:"unmatched_user_ids"`
	TimedOut           bool           `gorm:"default:false" json:"timed_out"`
	TriggeredBy        *uuid.UUID     `gorm:"type:uuid" json:"triggered_by,omitempty"`
	ArchiveKey         string         `gorm:"type:varchar(512)" json:"archive_key,omitempty"`
}

// TableName specifies the table name for MatchingAttempt
func (MatchingAttempt) TableName() string {
	return "matching_attempts"
}
