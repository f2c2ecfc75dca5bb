package service

import (
	"encoding/json"

	"github.com/google/uuid"

	"daylight-matching-api/internal/domain"
	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/matching"
)

// toGroupResponse converts a persisted group; viewer marks the caller's seat with isYou
func toGroupResponse(g *domain.MatchingGroup, viewer uuid.UUID) dto.MatchingGroupResponse {
	id := g.ID
	resp := dto.MatchingGroupResponse{
		ID:                &id,
		EventID:           g.EventID,
		GroupNumber:       g.GroupNumber,
		AttemptNumber:     g.AttemptNumber,
		Status:            string(g.Status),
		AverageMatchScore: g.AverageMatchScore,
		MinMatchScore:     g.MinMatchScore,
		GroupSize:         g.GroupSize,
		ThresholdUsed:     g.ThresholdUsed,
		TableNumber:       g.TableNumber,
		VenueName:         g.VenueName,
		HasManualChanges:  g.HasManualChanges,
		IsEmpty:           g.IsEmpty,
		Note:              g.Note,
		LastModifiedBy:    g.LastModifiedBy,
		LastModifiedAt:    g.LastModifiedAt,
		Members:           make([]dto.MatchingMemberResponse, 0, len(g.Members)),
	}
	for _, m := range g.ActiveMembers() {
		scores, err := m.Scores()
		if err != nil {
			scores = map[uuid.UUID]float64{}
		}
		resp.Members = append(resp.Members, dto.MatchingMemberResponse{
			UserID:             m.UserID,
			TransactionID:      m.TransactionID,
			DisplayName:        m.DisplayName,
			Email:              m.Email,
			MatchScores:        scores,
			IsConfirmed:        m.IsConfirmed,
			ConfirmedAt:        m.ConfirmedAt,
			IsManuallyAssigned: m.IsManuallyAssigned,
			AssignedBy:         m.AssignedBy,
			AssignedAt:         m.AssignedAt,
			AssignmentNote:     m.AssignmentNote,
			IsYou:              viewer != uuid.Nil && m.UserID == viewer,
		})
	}
	return resp
}

// toFormedGroupResponse converts an engine group; id is left empty until persisted
func toFormedGroupResponse(eventID uuid.UUID, attemptNumber int, status domain.MatchingStatus, g matching.FormedGroup) dto.MatchingGroupResponse {
	resp := dto.MatchingGroupResponse{
		EventID:           eventID,
		GroupNumber:       g.GroupNumber,
		AttemptNumber:     attemptNumber,
		Status:            string(status),
		AverageMatchScore: g.AverageMatchScore,
		MinMatchScore:     g.MinMatchScore,
		GroupSize:         len(g.Members),
		ThresholdUsed:     g.ThresholdUsed,
		Members:           make([]dto.MatchingMemberResponse, 0, len(g.Members)),
	}
	for _, c := range g.Members {
		resp.Members = append(resp.Members, dto.MatchingMemberResponse{
			UserID:        c.UserID,
			TransactionID: c.TransactionID,
			DisplayName:   c.DisplayName,
			Email:         c.Email,
			MatchScores:   g.MatchScores[c.UserID],
		})
	}
	return resp
}

func toUnmatchedResponses(candidates []matching.Candidate) []dto.UnmatchedUserResponse {
	out := make([]dto.UnmatchedUserResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, dto.UnmatchedUserResponse{
			UserID:        c.UserID,
			TransactionID: c.TransactionID,
			DisplayName:   c.DisplayName,
			Email:         c.Email,
		})
	}
	return out
}

func toPreviewResponse(eventID uuid.UUID, cfg matching.FormationConfig, r *matching.Result) dto.MatchingPreviewResponse {
	groups := make([]dto.MatchingGroupResponse, 0, len(r.Groups))
	for _, g := range r.Groups {
		groups = append(groups, toFormedGroupResponse(eventID, 0, domain.MatchingStatusPending, g))
	}
	return dto.MatchingPreviewResponse{
		EventID:            eventID,
		Status:             matching.StatusFor(r),
		Groups:             groups,
		UnmatchedUsers:     toUnmatchedResponses(r.UnmatchedUsers),
		ThresholdBreakdown: r.ThresholdBreakdown,
		Statistics:         r.Statistics,
		Warnings:           r.Warnings,
		Config:             cfg,
	}
}

func toAttemptResponse(a *domain.MatchingAttempt) dto.MatchingAttemptResponse {
	resp := dto.MatchingAttemptResponse{
		ID:                 a.ID,
		EventID:            a.EventID,
		AttemptNumber:      a.AttemptNumber,
		Status:             string(a.Status),
		TotalParticipants:  a.TotalParticipants,
		MatchedCount:       a.MatchedCount,
		UnmatchedCount:     a.UnmatchedCount,
		GroupsFormed:       a.GroupsFormed,
		AverageMatchScore:  a.AverageMatchScore,
		HighestThreshold:   a.HighestThreshold,
		LowestThreshold:    a.LowestThreshold,
		ExecutionTimeMs:    a.ExecutionTimeMs,
		TimedOut:           a.TimedOut,
		ThresholdBreakdown: []matching.ThresholdBreakdown{},
		Warnings:           []string{},
		UnmatchedUserIDs:   []uuid.UUID{},
		TriggeredBy:        a.TriggeredBy,
		ArchiveKey:         a.ArchiveKey,
		CreatedAt:          a.CreatedAt,
	}

	var cfg matching.FormationConfig
	if len(a.Config) > 0 && json.Unmarshal(a.Config, &cfg) == nil {
		resp.Config = &cfg
	}
	if len(a.ThresholdBreakdown) > 0 {
		_ = json.Unmarshal(a.ThresholdBreakdown, &resp.ThresholdBreakdown)
	}
	if len(a.Warnings) > 0 {
		_ = json.Unmarshal(a.Warnings, &resp.Warnings)
	}
	if len(a.UnmatchedUserIDs) > 0 {
		_ = json.Unmarshal(a.UnmatchedUserIDs, &resp.UnmatchedUserIDs)
	}
	return resp
}

func toRosterResponse(p *domain.EventParticipant, hasSnapshot bool) dto.RosterParticipantResponse {
	return dto.RosterParticipantResponse{
		EventID:       p.EventID,
		UserID:        p.UserID,
		TransactionID: p.TransactionID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		PaymentStatus: string(p.PaymentStatus),
		HasSnapshot:   hasSnapshot,
		UpdatedAt:     p.UpdatedAt,
	}
}

func candidatesOf(eligible []domain.EligibleParticipant) []matching.Candidate {
	out := make([]matching.Candidate, len(eligible))
	for i, e := range eligible {
		out[i] = e.Candidate()
	}
	return out
}

// removeDuplicateUUIDs removes duplicate UUIDs from a slice while preserving order
func removeDuplicateUUIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	return result
}
