package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

func TestMemoryArtifactRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryArtifactRepository("/api/v1/artifacts/")

	art := &entities.AudioArtifact{SessionID: "s1", ContentType: "audio/wav", Data: []byte{1, 2, 3}}
	if err := repo.Put(ctx, art); err != nil {
		t.Fatalf("Failed to put artifact: %v", err)
	}
	if art.ID == "" || art.URL != "/api/v1/artifacts/"+art.ID {
		t.Errorf("Unexpected ID/URL %s %s", art.ID, art.URL)
	}

	got, err := repo.Get(ctx, art.ID)
	if err != nil {
		t.Fatalf("Failed to get artifact: %v", err)
	}
	if got.Size() != 3 {
		t.Errorf("Expected 3 bytes, got %d", got.Size())
	}

	if err := repo.Release(ctx, art.URL); err != nil {
		t.Fatalf("Failed to release: %v", err)
	}
	if _, err := repo.Get(ctx, art.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := repo.Release(ctx, art.URL); err != nil {
		t.Errorf("Expected second release to be a no-op, got %v", err)
	}

	if err := repo.Put(ctx, &entities.AudioArtifact{}); err == nil {
		t.Error("Expected error for empty artifact")
	}
}

func TestMemoryArtifactRepository_ReleaseOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryArtifactRepository("/a")

	old := &entities.AudioArtifact{Data: []byte{1}, CreatedAt: time.Now().Add(-2 * time.Hour)}
	fresh := &entities.AudioArtifact{Data: []byte{1}}
	repo.Put(ctx, old)
	repo.Put(ctx, fresh)

	n, err := repo.ReleaseOlderThan(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to release: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 released, got %d", n)
	}
	if repo.Len() != 1 {
		t.Errorf("Expected 1 artifact left, got %d", repo.Len())
	}
}

func TestMemoryTranscriptRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTranscriptRepository()

	first := entities.NewTranscriptRecord("s1", "u1", "en", "first", 80)
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := entities.NewTranscriptRecord("s2", "u1", "ta", "second", 90)
	for _, r := range []*entities.TranscriptRecord{first, second} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Failed to create: %v", err)
		}
	}

	records, err := repo.ListByUserID(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 1 || records[0].Text != "second" {
		t.Errorf("Expected only the most recent record, got %+v", records)
	}

	if err := repo.Create(ctx, entities.NewTranscriptRecord("s3", "u1", "en", "", 50)); err == nil {
		t.Error("Expected validation error for empty text")
	}
}
