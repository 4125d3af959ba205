package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/metrics"
)

const cleanupTimeout = time.Minute

// ArtifactCleanupService releases recorded audio that outlived its TTL,
// covering sessions that never closed cleanly
type ArtifactCleanupService struct {
	artifacts repositories.ArtifactRepository
	ttl       time.Duration
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewArtifactCleanupService creates a new artifact cleanup service
func NewArtifactCleanupService(
	artifacts repositories.ArtifactRepository,
	ttl, interval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ArtifactCleanupService {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &ArtifactCleanupService{
		artifacts: artifacts,
		ttl:       ttl,
		interval:  interval,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *ArtifactCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Artifact cleanup service started",
		zap.Duration("ttl", s.ttl),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service and waits for a running pass
func (s *ArtifactCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("Artifact cleanup service stopped")
	})
}

func (s *ArtifactCleanupService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce releases every artifact older than the TTL and returns how many
func (s *ArtifactCleanupService) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.ttl)
	released, err := s.artifacts.ReleaseOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to release expired artifacts", zap.Error(err))
		return 0
	}

	if released > 0 {
		s.metrics.ArtifactsReleased.Add(float64(released))
		s.logger.Info("Released expired artifacts",
			zap.Int("count", released),
			zap.Time("cutoff", cutoff))
	}
	return released
}
