package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/fraudshield/voicedesk/adapters"
	"github.com/fraudshield/voicedesk/domain/entities"
)

func TestArtifactCleanupReleasesExpired(t *testing.T) {
	repo := adapters.NewMemoryArtifactRepository("/api/v1/artifacts")
	ctx := context.Background()

	old := &entities.AudioArtifact{SessionID: "s1", ContentType: "audio/wav", Data: []byte{1}, CreatedAt: time.Now().Add(-2 * time.Hour)}
	fresh := &entities.AudioArtifact{SessionID: "s2", ContentType: "audio/wav", Data: []byte{2}, CreatedAt: time.Now()}
	for _, art := range []*entities.AudioArtifact{old, fresh} {
		if err := repo.Put(ctx, art); err != nil {
			t.Fatalf("Failed to store artifact: %v", err)
		}
	}

	svc := NewArtifactCleanupService(repo, time.Hour, time.Minute, nil, zaptest.NewLogger(t))
	if n := svc.RunOnce(ctx); n != 1 {
		t.Errorf("Expected 1 artifact released, got %d", n)
	}
	if _, err := repo.Get(ctx, old.ID); err == nil {
		t.Error("Expected the expired artifact to be gone")
	}
	if _, err := repo.Get(ctx, fresh.ID); err != nil {
		t.Errorf("Expected the fresh artifact to remain, got %v", err)
	}
}

func TestArtifactCleanupLoopStops(t *testing.T) {
	repo := adapters.NewMemoryArtifactRepository("/api/v1/artifacts")
	old := &entities.AudioArtifact{SessionID: "s1", ContentType: "audio/wav", Data: []byte{1}, CreatedAt: time.Now().Add(-time.Hour)}
	if err := repo.Put(context.Background(), old); err != nil {
		t.Fatalf("Failed to store artifact: %v", err)
	}

	svc := NewArtifactCleanupService(repo, time.Minute, 5*time.Millisecond, nil, zaptest.NewLogger(t))
	svc.Start()

	deadline := time.Now().Add(2 * time.Second)
	for repo.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	svc.Stop()
	svc.Stop()

	if repo.Len() != 0 {
		t.Errorf("Expected the loop to release the expired artifact, %d left", repo.Len())
	}
}
