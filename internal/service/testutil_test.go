package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"daylight-matching-api/internal/client"
	"daylight-matching-api/internal/database"
	"daylight-matching-api/internal/domain"
	"daylight-matching-api/internal/lock"
	"daylight-matching-api/internal/matching"
	"daylight-matching-api/internal/repository"
	"daylight-matching-api/internal/response"
)

// testEnv wires the services against an in-memory database
type testEnv struct {
	db           *gorm.DB
	participants repository.ParticipantRepository
	groups       repository.GroupRepository
	attempts     repository.AttemptRepository
	locker       *lock.LocalLocker
	archiver     *client.MockArchiver
	publisher    *recordingPublisher
	opts         Options
	matching     MatchingService
	overrides    OverrideService
	roster       RosterService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db, zap.NewNop()))
	return db
}

func testOptions() Options {
	return Options{
		Defaults:   matching.DefaultFormationConfig(),
		RunTimeout: 5 * time.Second,
		LockTTL:    30 * time.Second,
		LockWait:   20 * time.Millisecond,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	env := &testEnv{
		db:           db,
		participants: repository.NewParticipantRepository(db),
		groups:       repository.NewGroupRepository(db),
		attempts:     repository.NewAttemptRepository(db),
		locker:       lock.NewLocalLocker(),
		archiver:     client.NewMockArchiver(),
		publisher:    newRecordingPublisher(),
		opts:         testOptions(),
	}
	env.rebuild(t)
	return env
}

// rebuild recreates the services after env.opts or a repository changed
func (e *testEnv) rebuild(t *testing.T) {
	t.Helper()
	deps := e.deps()
	scorer, err := matching.NewScorer(e.opts.Defaults.Scoring)
	require.NoError(t, err)
	e.matching = NewMatchingService(deps, e.opts)
	e.overrides = NewOverrideService(deps, e.opts, scorer)
	e.roster = NewRosterService(e.db, e.participants, e.attempts, zap.NewNop())
}

func (e *testEnv) deps() Dependencies {
	return Dependencies{
		DB:           e.db,
		Participants: e.participants,
		Groups:       e.groups,
		Attempts:     e.attempts,
		Locker:       e.locker,
		Publisher:    e.publisher,
		Archiver:     e.archiver,
		Logger:       zap.NewNop(),
	}
}

// addParticipant stores a PAID participant whose six traits all equal value
func (e *testEnv) addParticipant(t *testing.T, eventID uuid.UUID, value float64) uuid.UUID {
	t.Helper()
	return e.addParticipantWith(t, eventID, domain.PaymentStatusPaid, &value)
}

// addParticipantWith stores a participant; a nil value leaves the snapshot missing
func (e *testEnv) addParticipantWith(t *testing.T, eventID uuid.UUID, status domain.PaymentStatus, value *float64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	txID := "TX-" + userID.String()[:8]
	require.NoError(t, e.participants.CreateParticipant(ctx, &domain.EventParticipant{
		EventID:       eventID,
		UserID:        userID,
		TransactionID: txID,
		DisplayName:   "guest " + userID.String()[:4],
		PaymentStatus: status,
	}))
	if value != nil {
		v := *value
		require.NoError(t, e.participants.CreateSnapshot(ctx, &domain.PersonalitySnapshot{
			EventID:        eventID,
			UserID:         userID,
			TransactionID:  txID,
			EnergyScore:    v,
			OpennessScore:  v,
			StructureScore: v,
			AffectScore:    v,
			ComfortScore:   v,
			LifestyleScore: v,
			CapturedAt:     time.Now(),
		}))
	}
	return userID
}

// seedClusters stores size participants at each trait value
func (e *testEnv) seedClusters(t *testing.T, eventID uuid.UUID, size int, values ...float64) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, size*len(values))
	for _, v := range values {
		for i := 0; i < size; i++ {
			ids = append(ids, e.addParticipant(t, eventID, v))
		}
	}
	return ids
}

// liveGroups returns the persisted live groups ordered by number
func (e *testEnv) liveGroups(t *testing.T, eventID uuid.UUID) []*domain.MatchingGroup {
	t.Helper()
	groups, err := e.groups.FindLiveByEvent(context.Background(), eventID)
	require.NoError(t, err)
	return groups
}

// seatOf returns the group number holding userID, or 0
func (e *testEnv) seatOf(t *testing.T, eventID, userID uuid.UUID) int {
	t.Helper()
	for _, g := range e.liveGroups(t, eventID) {
		for _, m := range g.ActiveMembers() {
			if m.UserID == userID {
				return g.GroupNumber
			}
		}
	}
	return 0
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*response.AppError)
	require.True(t, ok, "expected *response.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Error())
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

// addParticipantTraits stores a PAID participant with the given trait vector
func (e *testEnv) addParticipantTraits(t *testing.T, eventID uuid.UUID, traits matching.Traits) uuid.UUID {
	t.Helper()
	userID := e.addParticipantWith(t, eventID, domain.PaymentStatusPaid, nil)
	require.NoError(t, e.participants.CreateSnapshot(context.Background(), &domain.PersonalitySnapshot{
		EventID:        eventID,
		UserID:         userID,
		TransactionID:  "TX-" + userID.String()[:8],
		EnergyScore:    traits.Energy,
		OpennessScore:  traits.Openness,
		StructureScore: traits.Structure,
		AffectScore:    traits.Affect,
		ComfortScore:   traits.Comfort,
		LifestyleScore: traits.Lifestyle,
		CapturedAt:     time.Now(),
	}))
	return userID
}
