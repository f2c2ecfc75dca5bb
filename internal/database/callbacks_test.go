package database

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"daylight-matching-api/internal/domain"
)

type queryRecord struct {
	operation string
	table     string
	err       error
}

// mockMetricsRecorder is a mock implementation of MetricsRecorder for testing
type mockMetricsRecorder struct {
	mu        sync.Mutex
	queries   []queryRecord
	statsCall int
}

func (m *mockMetricsRecorder) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, queryRecord{operation: operation, table: table, err: err})
}

func (m *mockMetricsRecorder) UpdateDBStats(stats interface{}) {
	if _, ok := stats.(sql.DBStats); ok {
		m.mu.Lock()
		m.statsCall++
		m.mu.Unlock()
	}
}

func (m *mockMetricsRecorder) reset() {
	m.mu.Lock()
	m.queries = nil
	m.mu.Unlock()
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db, zap.NewNop()))
	return db
}

func TestRegisterMetricsCallbacks_CRUD(t *testing.T) {
	db := setupTestDB(t)
	recorder := &mockMetricsRecorder{}
	require.NoError(t, RegisterMetricsCallbacks(db, recorder))

	p := &domain.EventParticipant{
		EventID:       uuid.New(),
		UserID:        uuid.New(),
		TransactionID: "tx-1",
		PaymentStatus: domain.PaymentStatusPaid,
	}
	require.NoError(t, db.Create(p).Error)

	var found domain.EventParticipant
	require.NoError(t, db.First(&found, "id = ?", p.ID).Error)
	require.NoError(t, db.Model(&found).Update("display_name", "민지").Error)
	require.NoError(t, db.Delete(&found).Error)

	require.Len(t, recorder.queries, 4)
	for i, op := range []string{"insert", "select", "update", "delete"} {
		assert.Equal(t, op, recorder.queries[i].operation)
		assert.Equal(t, "event_participants", recorder.queries[i].table)
		assert.NoError(t, recorder.queries[i].err)
	}
}

func TestRegisterMetricsCallbacks_RecordsErrors(t *testing.T) {
	db := setupTestDB(t)
	recorder := &mockMetricsRecorder{}
	require.NoError(t, RegisterMetricsCallbacks(db, recorder))

	var missing domain.MatchingGroup
	err := db.First(&missing, "id = ?", uuid.New()).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.Len(t, recorder.queries, 1)
	assert.Equal(t, "select", recorder.queries[0].operation)
	assert.Equal(t, "matching_groups", recorder.queries[0].table)
	assert.Error(t, recorder.queries[0].err)

	recorder.reset()
	eventID, userID := uuid.New(), uuid.New()
	first := &domain.EventParticipant{EventID: eventID, UserID: userID, TransactionID: "a"}
	require.NoError(t, db.Create(first).Error)
	dup := &domain.EventParticipant{EventID: eventID, UserID: userID, TransactionID: "b"}
	require.Error(t, db.Create(dup).Error)

	require.Len(t, recorder.queries, 2)
	assert.Error(t, recorder.queries[1].err)
}

func TestRegisterMetricsCallbacks_Raw(t *testing.T) {
	db := setupTestDB(t)
	recorder := &mockMetricsRecorder{}
	require.NoError(t, RegisterMetricsCallbacks(db, recorder))

	var count int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM matching_attempts").Scan(&count).Error)

	require.NotEmpty(t, recorder.queries)
	assert.Contains(t, []string{"raw", "row"}, recorder.queries[0].operation)
}

func TestStartDBStatsCollector(t *testing.T) {
	db := setupTestDB(t)
	recorder := &mockMetricsRecorder{}

	done := StartDBStatsCollector(db, recorder, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	close(done)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Greater(t, recorder.statsCall, 0)
}

func TestTryAdvisoryXactLock_NonPostgres(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		ok, err := TryAdvisoryXactLock(tx, "matching", uuid.NewString())
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestLockKey(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, LockKey("matching", id), LockKey("matching", id))
	assert.NotEqual(t, LockKey("matching", id), LockKey("override", id))
}

func TestAutoMigrate_MembershipExclusivity(t *testing.T) {
	db := setupTestDB(t)
	eventID, userID := uuid.New(), uuid.New()

	active := &domain.GroupMember{GroupID: uuid.New(), EventID: eventID, UserID: userID, TransactionID: "t"}
	require.NoError(t, db.Create(active).Error)

	second := &domain.GroupMember{GroupID: uuid.New(), EventID: eventID, UserID: userID, TransactionID: "t"}
	require.Error(t, db.Create(second).Error, "two active memberships must be rejected")

	now := time.Now()
	require.NoError(t, db.Model(active).Update("removed_at", now).Error)
	third := &domain.GroupMember{GroupID: uuid.New(), EventID: eventID, UserID: userID, TransactionID: "t"}
	require.NoError(t, db.Create(third).Error, "released membership must not block a new one")
}
