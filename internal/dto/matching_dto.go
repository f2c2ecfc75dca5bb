package dto

import (
	"time"

	"github.com/google/uuid"

	"daylight-matching-api/internal/matching"
)

// MatchingConfigRequest overrides the configured formation defaults for one preview or run
// @Description All fields are optional; omitted fields fall back to the service defaults
// @Description rngSeed makes the seed order reproducible. Without it the event id is used as seed
type MatchingConfigRequest struct {
	TargetGroupSize         *int                    `json:"targetGroupSize,omitempty" example:"6"`
	MinGroupSize            *int                    `json:"minGroupSize,omitempty" example:"2"`
	MinGroupScore           *float64                `json:"minGroupScore,omitempty" example:"70"`
	ThresholdStepDown       *float64                `json:"thresholdStepDown,omitempty" example:"10"`
	MinThreshold            *float64                `json:"minThreshold,omitempty" example:"50"`
	MaxAttemptsPerThreshold *int                    `json:"maxAttemptsPerThreshold,omitempty" example:"3"`
	RNGSeed                 *int64                  `json:"rngSeed,omitempty" example:"42"`
	AcceptableThreshold     *float64                `json:"acceptableThreshold,omitempty" example:"60"`
	MaxUnmatchedPercent     *float64                `json:"maxUnmatchedPercent,omitempty" example:"10"`
	ExpectedTableCount      *int                    `json:"expectedTableCount,omitempty" example:"5"`
	Scoring                 *matching.ScoringConfig `json:"scoring,omitempty"`
}

// Apply returns base with every set field of the request applied
func (r *MatchingConfigRequest) Apply(base matching.FormationConfig) matching.FormationConfig {
	if r == nil {
		return base
	}
	cfg := base
	if r.TargetGroupSize != nil {
		cfg.TargetGroupSize = *r.TargetGroupSize
	}
	if r.MinGroupSize != nil {
		cfg.MinGroupSize = *r.MinGroupSize
	}
	if r.MinGroupScore != nil {
		cfg.MinGroupScore = *r.MinGroupScore
	}
	if r.ThresholdStepDown != nil {
		cfg.ThresholdStepDown = *r.ThresholdStepDown
	}
	if r.MinThreshold != nil {
		cfg.MinThreshold = *r.MinThreshold
	}
	if r.MaxAttemptsPerThreshold != nil {
		cfg.MaxAttemptsPerThreshold = *r.MaxAttemptsPerThreshold
	}
	if r.RNGSeed != nil {
		seed := *r.RNGSeed
		cfg.RNGSeed = &seed
	}
	if r.AcceptableThreshold != nil {
		cfg.AcceptableThreshold = *r.AcceptableThreshold
	}
	if r.MaxUnmatchedPercent != nil {
		cfg.MaxUnmatchedPercent = *r.MaxUnmatchedPercent
	}
	if r.ExpectedTableCount != nil {
		cfg.ExpectedTableCount = *r.ExpectedTableCount
	}
	if r.Scoring != nil {
		cfg.Scoring = *r.Scoring
	}
	return cfg
}

// MatchingMemberResponse is one seat in a group
// @Description matchScores maps every other member's userId to the pairwise score
// @Description isYou is true when the member is the caller
type MatchingMemberResponse struct {
	UserID             uuid.UUID             `json:"userId" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	TransactionID      string                `json:"transactionId" example:"TX-20240315-0001"`
	DisplayName        string                `json:"displayName,omitempty" example:"Jiwoo"`
	Email              string                `json:"email,omitempty" example:"jiwoo@example.com"`
	MatchScores        map[uuid.UUID]float64 `json:"matchScores"`
	IsConfirmed        bool                  `json:"isConfirmed"`
	ConfirmedAt        *time.Time            `json:"confirmedAt,omitempty"`
	IsManuallyAssigned bool                  `json:"isManuallyAssigned"`
	AssignedBy         *uuid.UUID            `json:"assignedBy,omitempty"`
	AssignedAt         *time.Time            `json:"assignedAt,omitempty"`
	AssignmentNote     string                `json:"assignmentNote,omitempty"`
	IsYou              bool                  `json:"isYou"`
}

// MatchingGroupResponse is a formed or persisted group
// @Description id is omitted for preview groups, which are never persisted
type MatchingGroupResponse struct {
	ID                *uuid.UUID               `json:"id,omitempty" example:"f47ac10b-58cc-4372-a567-0e02b2c3d479"`
	EventID           uuid.UUID                `json:"eventId"`
	GroupNumber       int                      `json:"groupNumber" example:"1"`
	AttemptNumber     int                      `json:"attemptNumber" example:"2"`
	Status            string                   `json:"status" example:"MATCHED"`
	AverageMatchScore float64                  `json:"averageMatchScore" example:"78.4"`
	MinMatchScore     float64                  `json:"minMatchScore" example:"71.2"`
	GroupSize         int                      `json:"groupSize" example:"6"`
	ThresholdUsed     float64                  `json:"thresholdUsed" example:"70"`
	TableNumber       *int                     `json:"tableNumber,omitempty" example:"3"`
	VenueName         string                   `json:"venueName,omitempty"`
	HasManualChanges  bool                     `json:"hasManualChanges"`
	IsEmpty           bool                     `json:"isEmpty"`
	Note              string                   `json:"note,omitempty"`
	LastModifiedBy    *uuid.UUID               `json:"lastModifiedBy,omitempty"`
	LastModifiedAt    *time.Time               `json:"lastModifiedAt,omitempty"`
	Members           []MatchingMemberResponse `json:"members"`
}

// UnmatchedUserResponse is a participant the engine could not place
type UnmatchedUserResponse struct {
	UserID        uuid.UUID `json:"userId"`
	TransactionID string    `json:"transactionId"`
	DisplayName   string    `json:"displayName,omitempty"`
	Email         string    `json:"email,omitempty"`
}

// MatchingPreviewResponse is the read-only outcome of a formation run
// @Description Unmatched participants are a normal outcome, reported with statistics and warnings
type MatchingPreviewResponse struct {
	EventID            uuid.UUID                     `json:"eventId"`
	Status             string                        `json:"status" example:"PARTIALLY_MATCHED"`
	Groups             []MatchingGroupResponse       `json:"groups"`
	UnmatchedUsers     []UnmatchedUserResponse       `json:"unmatchedUsers"`
	ThresholdBreakdown []matching.ThresholdBreakdown `json:"thresholdBreakdown"`
	Statistics         matching.Statistics           `json:"statistics"`
	Warnings           []string                      `json:"warnings"`
	Config             matching.FormationConfig      `json:"config"`
}

// MatchingResultResponse is the outcome of a committed run
type MatchingResultResponse struct {
	MatchingPreviewResponse
	AttemptID     uuid.UUID `json:"attemptId"`
	AttemptNumber int       `json:"attemptNumber" example:"2"`
	ArchiveKey    string    `json:"archiveKey,omitempty"`
}

// UnassignedParticipant is a PAID participant without a seat
// @Description reason is NOT_GROUPED or MISSING_SNAPSHOT
type UnassignedParticipant struct {
	UserID        uuid.UUID `json:"userId"`
	TransactionID string    `json:"transactionId"`
	DisplayName   string    `json:"displayName,omitempty"`
	Email         string    `json:"email,omitempty"`
	HasSnapshot   bool      `json:"hasSnapshot"`
	Reason        string    `json:"reason" example:"NOT_GROUPED"`
}

// UnassignedParticipantsResponse lists paid participants without an active seat
type UnassignedParticipantsResponse struct {
	EventID         uuid.UUID               `json:"eventId"`
	TotalPaid       int                     `json:"totalPaid" example:"30"`
	TotalAssigned   int                     `json:"totalAssigned" example:"26"`
	MissingSnapshot int                     `json:"missingSnapshot" example:"1"`
	Participants    []UnassignedParticipant `json:"participants"`
}

// MatchingAttemptResponse is one ledger entry
type MatchingAttemptResponse struct {
	ID                 uuid.UUID                     `json:"id"`
	EventID            uuid.UUID                     `json:"eventId"`
	AttemptNumber      int                           `json:"attemptNumber" example:"1"`
	Status             string                        `json:"status" example:"MATCHED"`
	TotalParticipants  int                           `json:"totalParticipants"`
	MatchedCount       int                           `json:"matchedCount"`
	UnmatchedCount     int                           `json:"unmatchedCount"`
	GroupsFormed       int                           `json:"groupsFormed"`
	AverageMatchScore  float64                       `json:"averageMatchScore"`
	HighestThreshold   float64                       `json:"highestThreshold"`
	LowestThreshold    float64                       `json:"lowestThreshold"`
	ExecutionTimeMs    int64                         `json:"executionTimeMs"`
	TimedOut           bool                          `json:"timedOut"`
	Config             *matching.FormationConfig     `json:"config,omitempty"`
	ThresholdBreakdown []matching.ThresholdBreakdown `json:"thresholdBreakdown"`
	Warnings           []string                      `json:"warnings"`
	UnmatchedUserIDs   []uuid.UUID                   `json:"unmatchedUserIds"`
	TriggeredBy        *uuid.UUID                    `json:"triggeredBy,omitempty"`
	ArchiveKey         string                        `json:"archiveKey,omitempty"`
	CreatedAt          time.Time                     `json:"createdAt"`
}
