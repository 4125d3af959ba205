package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

// MemoryTranscriptRepository is an in-memory TranscriptRepository for
// development runs without MongoDB
type MemoryTranscriptRepository struct {
	mu     sync.RWMutex
	byUser map[string][]*entities.TranscriptRecord // user_id -> records
}

var _ repositories.TranscriptRepository = (*MemoryTranscriptRepository)(nil)

// NewMemoryTranscriptRepository creates a new in-memory transcript repository
func NewMemoryTranscriptRepository() *MemoryTranscriptRepository {
	return &MemoryTranscriptRepository{
		byUser: make(map[string][]*entities.TranscriptRecord),
	}
}

// Create implements TranscriptRepository interface
func (m *MemoryTranscriptRepository) Create(ctx context.Context, record *entities.TranscriptRecord) error {
	if record == nil {
		return errors.New("transcript cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	recordCopy := *record
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[record.UserID] = append(m.byUser[record.UserID], &recordCopy)
	return nil
}

// ListByUserID implements TranscriptRepository interface, most recent first
func (m *MemoryTranscriptRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.TranscriptRecord, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.byUser[userID]
	result := make([]*entities.TranscriptRecord, len(records))
	for i, r := range records {
		recordCopy := *r
		result[i] = &recordCopy
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
