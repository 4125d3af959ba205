package voice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

type fakeMicrophone struct {
	mu           sync.Mutex
	permErr      error
	openErr      error
	permRequests int
	streams      []*fakeAudioStream
}

func (m *fakeMicrophone) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permRequests++
	return m.permErr
}

func (m *fakeMicrophone) Open(ctx context.Context, format repositories.AudioFormat) (repositories.AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	s := &fakeAudioStream{frames: make(chan []byte, 64)}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMicrophone) lastStream() *fakeAudioStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

type fakeAudioStream struct {
	mu     sync.Mutex
	frames chan []byte
	closes int
}

func (s *fakeAudioStream) Frames() <-chan []byte {
	return s.frames
}

func (s *fakeAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closes == 1 {
		close(s.frames)
	}
	return nil
}

func (s *fakeAudioStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeRecognizer struct {
	mu       sync.Mutex
	startErr error
	configs  []repositories.RecognitionConfig
	streams  []*fakeRecognition
	// lateEvents are delivered after Stop, before the results channel closes
	lateEvents []repositories.RecognitionEvent
	// holdOnStop keeps the results channel open after Stop
	holdOnStop bool
}

func (r *fakeRecognizer) Start(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognitionStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, config)
	if r.startErr != nil {
		return nil, r.startErr
	}
	s := &fakeRecognition{
		results:    make(chan repositories.RecognitionEvent, 16),
		lateEvents: r.lateEvents,
		holdOnStop: r.holdOnStop,
	}
	r.streams = append(r.streams, s)
	return s, nil
}

func (r *fakeRecognizer) starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

func (r *fakeRecognizer) lastStream() *fakeRecognition {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.streams) == 0 {
		return nil
	}
	return r.streams[len(r.streams)-1]
}

type fakeRecognition struct {
	mu         sync.Mutex
	results    chan repositories.RecognitionEvent
	lateEvents []repositories.RecognitionEvent
	holdOnStop bool
	frames     int
	stops      int
}

func (r *fakeRecognition) Write(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stops > 0 {
		return fmt.Errorf("recognition stopped")
	}
	r.frames++
	return nil
}

func (r *fakeRecognition) Results() <-chan repositories.RecognitionEvent {
	return r.results
}

func (r *fakeRecognition) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	if r.stops == 1 && !r.holdOnStop {
		for _, ev := range r.lateEvents {
			r.results <- ev
		}
		close(r.results)
	}
	return nil
}

func (r *fakeRecognition) emit(ev repositories.RecognitionEvent) {
	r.results <- ev
}

func (r *fakeRecognition) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

type fakeRecorder struct {
	mu     sync.Mutex
	data   []byte
	stops  int
	writes int
}

func (r *fakeRecorder) Write(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.data = append(r.data, frame...)
	return nil
}

func (r *fakeRecorder) Stop() ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return r.data, "audio/wav", nil
}

func (r *fakeRecorder) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

type recorderFactory struct {
	mu        sync.Mutex
	recorders []*fakeRecorder
	// seed is written into every new recorder so captures produce audio
	seed []byte
}

func (f *recorderFactory) New(format repositories.AudioFormat) repositories.AudioRecorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeRecorder{data: append([]byte(nil), f.seed...)}
	f.recorders = append(f.recorders, r)
	return r
}

func (f *recorderFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorders)
}

func (f *recorderFactory) last() *fakeRecorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recorders) == 0 {
		return nil
	}
	return f.recorders[len(f.recorders)-1]
}

type fakeSynthesizer struct {
	mu       sync.Mutex
	voices   []repositories.Voice
	speakErr error
	calls    []string
	spoken   []repositories.Utterance
	pending  []chan error
}

func (s *fakeSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return s.voices, nil
}

func (s *fakeSynthesizer) Speak(ctx context.Context, u repositories.Utterance) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "speak:"+u.Text)
	if s.speakErr != nil {
		return nil, s.speakErr
	}
	s.spoken = append(s.spoken, u)
	done := make(chan error, 1)
	s.pending = append(s.pending, done)
	return done, nil
}

func (s *fakeSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "cancel")
}

// finish completes the most recent utterance
func (s *fakeSynthesizer) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := s.pending[len(s.pending)-1]
	done <- err
	close(done)
}

func (s *fakeSynthesizer) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakePlayer struct {
	mu     sync.Mutex
	played []string
	stops  int
}

func (p *fakePlayer) Play(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, url)
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

type fakeArtifacts struct {
	mu       sync.Mutex
	seq      int
	stored   map[string]*entities.AudioArtifact
	released []string
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{stored: make(map[string]*entities.AudioArtifact)}
}

func (a *fakeArtifacts) Put(ctx context.Context, art *entities.AudioArtifact) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	art.ID = fmt.Sprintf("artifact-%d", a.seq)
	art.URL = "/api/v1/artifacts/" + art.ID
	a.stored[art.ID] = art
	return nil
}

func (a *fakeArtifacts) Get(ctx context.Context, id string) (*entities.AudioArtifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	art, ok := a.stored[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return art, nil
}

func (a *fakeArtifacts) Release(ctx context.Context, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = append(a.released, url)
	return nil
}

func (a *fakeArtifacts) ReleaseOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (a *fakeArtifacts) releasedURLs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.released...)
}

type testRig struct {
	session     *Session
	mic         *fakeMicrophone
	recognizer  *fakeRecognizer
	recorders   *recorderFactory
	synth       *fakeSynthesizer
	player      *fakePlayer
	artifacts   *fakeArtifacts
	mu          sync.Mutex
	completions []TranscriptionResult
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		mic:        &fakeMicrophone{},
		recognizer: &fakeRecognizer{},
		recorders:  &recorderFactory{seed: []byte{1, 0, 2, 0}},
		synth: &fakeSynthesizer{voices: []repositories.Voice{
			{ID: "en-voice", Name: "English", Locale: "en-IN"},
			{ID: "hi-voice", Name: "Hindi", Locale: "hi-IN"},
		}},
		player:    &fakePlayer{},
		artifacts: newFakeArtifacts(),
	}
	return rig
}

// start builds the session with its updates drained; call after adjusting the fakes
func (r *testRig) start(t *testing.T) *Session {
	t.Helper()
	session := r.build(t)
	go drain(session.Updates())
	return session
}

// build creates the session and leaves its updates to the caller
func (r *testRig) build(t *testing.T) *Session {
	t.Helper()
	session, err := NewSession(Config{
		FinalizeTimeout: 500 * time.Millisecond,
		LevelInterval:   5 * time.Millisecond,
	}, Dependencies{
		Microphone:  r.mic,
		Recognizer:  r.recognizer,
		Synthesizer: r.synth,
		Player:      r.player,
		Artifacts:   r.artifacts,
		NewRecorder: r.recorders.New,
		OnTranscriptionComplete: func(ctx context.Context, result TranscriptionResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completions = append(r.completions, result)
		},
	}, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	r.session = session
	t.Cleanup(session.Close)
	return session
}

func (r *testRig) completionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completions)
}

func drain(updates <-chan Update) {
	for range updates {
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func final(text string, confidence float64) repositories.RecognitionSegment {
	return repositories.RecognitionSegment{Text: text, Confidence: confidence, IsFinal: true}
}

func interim(text string) repositories.RecognitionSegment {
	return repositories.RecognitionSegment{Text: text}
}
