package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"daylight-matching-api/internal/matching"
)

// PaymentStatus mirrors the payment subsystem's transaction state
type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPending, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// EventParticipant is one registration on an event roster
type EventParticipant struct {
	BaseModel
	EventID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_event_participants_event_id;uniqueIndex:uq_event_participants_event_user" json:"event_id"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uq_event_participants_event_user" json:"user_id"`
	TransactionID string        `gorm:"type:varchar(100);not null" json:"transaction_id"`
	DisplayName   string        `gorm:"type:varchar(255)" json:"display_name"`
	Email         string        `gorm:"type:varchar(255)" json:"email"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_event_participants_status" json:"payment_status"`
}

// TableName specifies the table name for EventParticipant
func (EventParticipant) TableName() string {
	return "event_participants"
}

// IsPaid reports whether the registration counts towards matching
func (p EventParticipant) IsPaid() bool {
	return p.PaymentStatus == PaymentStatusPaid
}

// PersonalitySnapshot is the trait vector captured when a participant finished the persona test
type PersonalitySnapshot struct {
	BaseModel
	EventID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_personality_snapshots_event_user" json:"event_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_personality_snapshots_event_user" json:"user_id"`
	TransactionID  string         `gorm:"type:varchar(100);not null" json:"transaction_id"`
	EnergyScore    float64        `gorm:"not null" json:"energy_score"`
	OpennessScore  float64        `gorm:"not null" json:"openness_score"`
	StructureScore float64        `gorm:"not null" json:"structure_score"`
	AffectScore    float64        `gorm:"not null" json:"affect_score"`
	ComfortScore   float64        `gorm:"not null" json:"comfort_score"`
	LifestyleScore float64        `gorm:"not null" json:"lifestyle_score"`
	RawScores      datatypes.JSON `json:"raw_scores"`
	CapturedAt     time.Time      `gorm:"type:timestamp;not null" json:"captured_at"`
}

// TableName specifies the table name for PersonalitySnapshot
func (PersonalitySnapshot) TableName() string {
	return "personality_snapshots"
}

// Traits returns the engine input vector
func (s PersonalitySnapshot) Traits() matching.Traits {
	return matching.Traits{
		Energy:    s.EnergyScore,
		Openness:  s.OpennessScore,
		Structure: s.StructureScore,
		Affect:    s.AffectScore,
		Comfort:   s.ComfortScore,
		Lifestyle: s.LifestyleScore,
	}
}

// SameScores reports whether two snapshots carry identical derived scores
func (s PersonalitySnapshot) SameScores(o PersonalitySnapshot) bool {
	return s.Traits() == o.Traits()
}

// RawScoreMap decodes the raw sub-scores keyed E,O,S,A,L,C
func (s PersonalitySnapshot) RawScoreMap() (map[string]float64, error) {
	out := map[string]float64{}
	if len(s.RawScores) == 0 {
		return out, nil
	}
	err := json.Unmarshal(s.RawScores, &out)
	return out, err
}

// EligibleParticipant is a PAID roster row joined with its snapshot
type EligibleParticipant struct {
	EventParticipant
	Snapshot PersonalitySnapshot
}

// Candidate converts the row into engine input
func (e EligibleParticipant) Candidate() matching.Candidate {
	return matching.Candidate{
		UserID:        e.UserID,
		TransactionID: e.TransactionID,
		DisplayName:   e.DisplayName,
		Email:         e.Email,
		Traits:        e.Snapshot.Traits(),
	}
}
