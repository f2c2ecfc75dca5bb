package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockArchiver implements AttemptArchiver in memory for tests and local runs without S3
type MockArchiver struct {
	mu      sync.Mutex
	Objects map[string][]byte

	// Optional function override for custom test behavior
	ArchiveAttemptFunc func(ctx context.Context, eventID uuid.UUID, attemptNumber int, payload interface{}) (string, error)
}

// NewMockArchiver creates a new mock archiver
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{Objects: map[string][]byte{}}
}

// ArchiveAttempt stores the JSON payload under a deterministic key
func (m *MockArchiver) ArchiveAttempt(ctx context.Context, eventID uuid.UUID, attemptNumber int, payload interface{}) (string, error) {
	if m.ArchiveAttemptFunc != nil {
		return m.ArchiveAttemptFunc(ctx, eventID, attemptNumber, payload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("mock/%s/attempt-%04d.json", eventID, attemptNumber)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return key, nil
}

// Count returns the number of stored objects
func (m *MockArchiver) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
