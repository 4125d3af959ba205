package adapters

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

// MemoryArtifactRepository keeps recorded audio in process memory
type MemoryArtifactRepository struct {
	mu        sync.RWMutex
	urlPrefix string
	artifacts map[string]*entities.AudioArtifact // id -> artifact
	urls      map[string]string                  // url -> id
}

var _ repositories.ArtifactRepository = (*MemoryArtifactRepository)(nil)

// NewMemoryArtifactRepository creates an in-memory repository serving artifacts under urlPrefix
func NewMemoryArtifactRepository(urlPrefix string) *MemoryArtifactRepository {
	return &MemoryArtifactRepository{
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		artifacts: make(map[string]*entities.AudioArtifact),
		urls:      make(map[string]string),
	}
}

// Put implements ArtifactRepository interface
func (m *MemoryArtifactRepository) Put(ctx context.Context, artifact *entities.AudioArtifact) error {
	if artifact == nil || len(artifact.Data) == 0 {
		return errors.New("artifact has no audio")
	}

	artifact.ID = uuid.New().String()
	artifact.URL = m.urlPrefix + "/" + artifact.ID
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	// Store a copy so later changes by the caller don't leak in
	stored := *artifact
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[stored.ID] = &stored
	m.urls[stored.URL] = stored.ID
	return nil
}

// Get implements ArtifactRepository interface
func (m *MemoryArtifactRepository) Get(ctx context.Context, id string) (*entities.AudioArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	artifact, exists := m.artifacts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	artifactCopy := *artifact
	return &artifactCopy, nil
}

// Release implements ArtifactRepository interface
func (m *MemoryArtifactRepository) Release(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.urls[url]
	if !exists {
		return nil
	}
	delete(m.urls, url)
	delete(m.artifacts, id)
	return nil
}

// ReleaseOlderThan implements ArtifactRepository interface
func (m *MemoryArtifactRepository) ReleaseOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for id, artifact := range m.artifacts {
		if artifact.CreatedAt.Before(cutoff) {
			delete(m.urls, artifact.URL)
			delete(m.artifacts, id)
			released++
		}
	}
	return released, nil
}

// Len returns the number of stored artifacts
func (m *MemoryArtifactRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.artifacts)
}
