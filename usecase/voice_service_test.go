package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/fraudshield/voicedesk/adapters"
	"github.com/fraudshield/voicedesk/adapters/stt"
	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/voice"
)

type stubMicrophone struct {
	mu     sync.Mutex
	frames chan []byte
}

func (m *stubMicrophone) RequestPermission(ctx context.Context) error {
	return nil
}

func (m *stubMicrophone) Open(ctx context.Context, format repositories.AudioFormat) (repositories.AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = make(chan []byte, 16)
	return &stubStream{frames: m.frames}, nil
}

func (m *stubMicrophone) send(frame []byte) {
	m.mu.Lock()
	frames := m.frames
	m.mu.Unlock()
	frames <- frame
}

type stubStream struct {
	once   sync.Once
	frames chan []byte
}

func (s *stubStream) Frames() <-chan []byte {
	return s.frames
}

func (s *stubStream) Close() error {
	s.once.Do(func() { close(s.frames) })
	return nil
}

func TestVoiceServiceRecordsCompletedCapture(t *testing.T) {
	logger := zaptest.NewLogger(t)
	repo := adapters.NewMemoryTranscriptRepository()
	transcripts := NewTranscriptService(repo, logger)
	recognizer := stt.NewMockSpeechRecognizer(logger).WithPhrase("en-IN", "fake bank officer called")

	svc := NewVoiceService(voice.Config{FinalizeTimeout: time.Second}, recognizer,
		adapters.NewMemoryArtifactRepository("/api/v1/artifacts"), transcripts, nil, logger)

	mic := &stubMicrophone{}
	session, err := svc.OpenSession("citizen-9", Devices{Microphone: mic})
	if err != nil {
		t.Fatalf("Failed to open session: %v", err)
	}
	defer session.Close()
	go func() {
		for range session.Updates() {
		}
	}()

	ctx := context.Background()
	if err := session.StartCapture(ctx, "en"); err != nil {
		t.Fatalf("Failed to start capture: %v", err)
	}
	// two words worth of audio
	mic.send(make([]byte, 16000))

	deadline := time.Now().Add(2 * time.Second)
	for session.Snapshot().Interim == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	result, err := session.StopCapture(ctx)
	if err != nil {
		t.Fatalf("Failed to stop capture: %v", err)
	}
	if result.Text != "fake bank" {
		t.Errorf("Expected 'fake bank', got %q", result.Text)
	}
	if result.ArtifactURL == "" {
		t.Error("Expected the recording to be stored")
	}

	records, err := transcripts.List(ctx, "citizen-9", 10)
	if err != nil {
		t.Fatalf("Failed to list transcripts: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 transcript record, got %d", len(records))
	}
	if records[0].Text != "fake bank" || records[0].SessionID != session.ID() {
		t.Errorf("Unexpected record %+v", records[0])
	}
}

func TestVoiceServiceRequiresMicrophone(t *testing.T) {
	logger := zaptest.NewLogger(t)
	svc := NewVoiceService(voice.Config{}, stt.NewMockSpeechRecognizer(logger), nil, nil, nil, logger)

	if _, err := svc.OpenSession("citizen-1", Devices{}); err == nil {
		t.Error("Expected error without a microphone")
	}
}
