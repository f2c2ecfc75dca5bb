package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"daylight-matching-api/internal/domain"
	"daylight-matching-api/internal/dto"
	"daylight-matching-api/internal/repository"
	"daylight-matching-api/internal/response"
)

// RosterService defines the interface for roster and snapshot intake from the payment and
// persona subsystems
type RosterService interface {
	UpsertParticipants(ctx context.Context, eventID uuid.UUID, req *dto.UpsertParticipantsRequest) (*dto.UpsertParticipantsResponse, error)
	UpdatePaymentStatus(ctx context.Context, eventID, userID uuid.UUID, req *dto.UpdatePaymentStatusRequest) (*dto.RosterParticipantResponse, error)
}

// rosterServiceImpl is the implementation of RosterService
type rosterServiceImpl struct {
	db           *gorm.DB
	participants repository.ParticipantRepository
	attempts     repository.AttemptRepository
	logger       *zap.Logger
	now          func() time.Time
}

// NewRosterService creates a new instance of RosterService
func NewRosterService(db *gorm.DB, participants repository.ParticipantRepository, attempts repository.AttemptRepository, logger *zap.Logger) RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rosterServiceImpl{
		db:           db,
		participants: participants,
		attempts:     attempts,
		logger:       logger,
		now:          time.Now,
	}
}

// UpsertParticipants creates or updates roster rows and their snapshots in one transaction.
// Once the event has any matching attempt, snapshot scores are frozen: resending identical
// scores is accepted, changed scores reject the whole batch.
func (s *rosterServiceImpl) UpsertParticipants(ctx context.Context, eventID uuid.UUID, req *dto.UpsertParticipantsRequest) (*dto.UpsertParticipantsResponse, error) {
	resp := &dto.UpsertParticipantsResponse{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participants := s.participants.WithTx(tx)

		attempts, err := s.attempts.WithTx(tx).CountByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		frozen := attempts > 0

		for _, in := range req.Participants {
			status := domain.PaymentStatus(in.PaymentStatus)
			if !status.Valid() {
				return response.NewValidationError("Invalid payment status", in.PaymentStatus)
			}

			existing, err := participants.FindByEventAndUser(ctx, eventID, in.UserID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := participants.CreateParticipant(ctx, &domain.EventParticipant{
					EventID:       eventID,
					UserID:        in.UserID,
					TransactionID: in.TransactionID,
					DisplayName:   in.DisplayName,
					Email:         in.Email,
					PaymentStatus: status,
				}); err != nil {
					return err
				}
				resp.Created++
			case err != nil:
				return err
			default:
				existing.TransactionID = in.TransactionID
				existing.DisplayName = in.DisplayName
				existing.Email = in.Email
				existing.PaymentStatus = status
				if err := participants.SaveParticipant(ctx, existing); err != nil {
					return err
				}
				resp.Updated++
			}

			if in.Snapshot == nil {
				continue
			}
			stored, err := s.storeSnapshot(ctx, participants, eventID, in, frozen)
			if err != nil {
				return err
			}
			if stored {
				resp.SnapshotsStored++
			} else {
				resp.SnapshotsSkipped++
			}
		}
		return nil
	})
	if err != nil {
		var appErr *response.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, response.NewInternalError("Failed to save participants", err.Error())
	}

	s.logger.Info("Roster synchronized",
		zap.String("event_id", eventID.String()),
		zap.Int("created", resp.Created),
		zap.Int("updated", resp.Updated),
		zap.Int("snapshots", resp.SnapshotsStored),
	)
	return resp, nil
}

// storeSnapshot reports stored=false when an identical snapshot already exists
func (s *rosterServiceImpl) storeSnapshot(ctx context.Context, participants repository.ParticipantRepository, eventID uuid.UUID, in dto.RosterParticipantInput, frozen bool) (bool, error) {
	incoming, err := snapshotFrom(eventID, in, s.now())
	if err != nil {
		return false, err
	}

	existing, err := participants.FindSnapshot(ctx, eventID, in.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, participants.CreateSnapshot(ctx, incoming)
	}
	if err != nil {
		return false, err
	}

	if existing.SameScores(*incoming) {
		return false, nil
	}
	if frozen {
		return false, response.NewInvariantViolationError("Personality snapshot is frozen after matching has run",
			fmt.Sprintf("scores for %s differ from the stored snapshot", in.UserID))
	}

	incoming.ID = existing.ID
	incoming.CreatedAt = existing.CreatedAt
	return true, participants.SaveSnapshot(ctx, incoming)
}

func snapshotFrom(eventID uuid.UUID, in dto.RosterParticipantInput, now time.Time) (*domain.PersonalitySnapshot, error) {
	in.Snapshot = normalizeSnapshot(in.Snapshot)
	raw, err := json.Marshal(in.Snapshot.RawScores)
	if err != nil {
		return nil, err
	}
	captured := now
	if in.Snapshot.CapturedAt != nil {
		captured = *in.Snapshot.CapturedAt
	}
	return &domain.PersonalitySnapshot{
		EventID:        eventID,
		UserID:         in.UserID,
		TransactionID:  in.TransactionID,
		EnergyScore:    in.Snapshot.Energy,
		OpennessScore:  in.Snapshot.Openness,
		StructureScore: in.Snapshot.Structure,
		AffectScore:    in.Snapshot.Affect,
		ComfortScore:   in.Snapshot.Comfort,
		LifestyleScore: in.Snapshot.Lifestyle,
		RawScores:      datatypes.JSON(raw),
		CapturedAt:     captured,
	}, nil
}

func normalizeSnapshot(in *dto.SnapshotInput) *dto.SnapshotInput {
	out := *in
	if out.RawScores == nil {
		out.RawScores = map[string]float64{}
	}
	return &out
}

// UpdatePaymentStatus changes one participant's payment status. Seats already held are kept;
// the next run only considers PAID participants.
func (s *rosterServiceImpl) UpdatePaymentStatus(ctx context.Context, eventID, userID uuid.UUID, req *dto.UpdatePaymentStatusRequest) (*dto.RosterParticipantResponse, error) {
	status := domain.PaymentStatus(req.PaymentStatus)
	if !status.Valid() {
		return nil, response.NewValidationError("Invalid payment status", req.PaymentStatus)
	}

	p, err := s.participants.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Participant not found", userID.String())
		}
		return nil, response.NewInternalError("Failed to fetch participant", err.Error())
	}

	p.PaymentStatus = status
	if err := s.participants.SaveParticipant(ctx, p); err != nil {
		return nil, response.NewInternalError("Failed to update payment status", err.Error())
	}

	_, snapErr := s.participants.FindSnapshot(ctx, eventID, userID)
	resp := toRosterResponse(p, snapErr == nil)
	return &resp, nil
}
