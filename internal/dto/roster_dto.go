package dto

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotInput is the normalized trait vector from the persona quiz (each 0..100)
type SnapshotInput struct {
	Energy     float64            `json:"energy" binding:"min=0,max=100" example:"62.5"`
	Openness   float64            `json:"openness" binding:"min=0,max=100" example:"48"`
	Structure  float64            `json:"structure" binding:"min=0,max=100" example:"71"`
	Affect     float64            `json:"affect" binding:"min=0,max=100" example:"55"`
	Comfort    float64            `json:"comfort" binding:"min=0,max=100" example:"40"`
	Lifestyle  float64            `json:"lifestyle" binding:"min=0,max=100" example:"66"`
	RawScores  map[string]float64 `json:"rawScores,omitempty"`
	CapturedAt *time.Time         `json:"capturedAt,omitempty"`
}

// RosterParticipantInput is one roster entry pushed by the payment subsystem
type RosterParticipantInput struct {
	UserID        uuid.UUID      `json:"userId" binding:"required"`
	TransactionID string         `json:"transactionId" binding:"required,max=100" example:"TX-20240315-0001"`
	DisplayName   string         `json:"displayName,omitempty" binding:"max=255"`
	Email         string         `json:"email,omitempty" binding:"omitempty,email"`
	PaymentStatus string         `json:"paymentStatus" binding:"required,oneof=PAID PENDING REFUNDED CANCELLED" example:"PAID"`
	Snapshot      *SnapshotInput `json:"snapshot,omitempty"`
}

// UpsertParticipantsRequest syncs roster rows and snapshots for an event
type UpsertParticipantsRequest struct {
	Participants []RosterParticipantInput `json:"participants" binding:"required,min=1,max=1000,dive"`
}

// UpsertParticipantsResponse summarizes a roster sync
type UpsertParticipantsResponse struct {
	Created          int `json:"created"`
	Updated          int `json:"updated"`
	SnapshotsStored  int `json:"snapshotsStored"`
	SnapshotsSkipped int `json:"snapshotsSkipped"`
}

// UpdatePaymentStatusRequest changes one participant's payment status
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required,oneof=PAID PENDING REFUNDED CANCELLED" example:"REFUNDED"`
}

// RosterParticipantResponse is a roster row
type RosterParticipantResponse struct {
	EventID       uuid.UUID `json:"eventId"`
	UserID        uuid.UUID `json:"userId"`
	TransactionID string    `json:"transactionId"`
	DisplayName   string    `json:"displayName,omitempty"`
	Email         string    `json:"email,omitempty"`
	PaymentStatus string    `json:"paymentStatus"`
	HasSnapshot   bool      `json:"hasSnapshot"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
