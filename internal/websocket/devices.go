package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

const (
	// Frames buffered between the read pump and the session's audio pump.
	frameBufferSize = 64

	// Extra time the browser gets to report the end of an utterance.
	speechEndGrace = 5 * time.Second
)

// browserMicrophone is the user's microphone on the far side of the connection
type browserMicrophone struct {
	client *Client

	mu      sync.Mutex
	pending chan *PermissionResultMessage
	stream  *browserStream
}

var _ repositories.Microphone = (*browserMicrophone)(nil)

// RequestPermission prompts the browser and waits for its permission_result
func (m *browserMicrophone) RequestPermission(ctx context.Context) error {
	reply := make(chan *PermissionResultMessage, 1)
	m.mu.Lock()
	m.pending = reply
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		if m.pending == reply {
			m.pending = nil
		}
		m.mu.Unlock()
	}()

	if !m.client.writeJSON(newBase(MessageTypePermissionRequest)) {
		return errConnectionClosed
	}

	select {
	case res := <-reply:
		if res.Granted {
			return nil
		}
		return &repositories.MicrophoneError{Name: res.ErrorName, Message: res.ErrorMessage}
	case <-ctx.Done():
		return fmt.Errorf("waiting for microphone permission: %w", ctx.Err())
	case <-m.client.done:
		return errConnectionClosed
	}
}

func (m *browserMicrophone) resolvePermission(res *PermissionResultMessage) {
	m.mu.Lock()
	reply := m.pending
	m.pending = nil
	m.mu.Unlock()

	if reply == nil {
		m.client.logger.Warn("Permission result without a pending request",
			zap.Bool("granted", res.Granted))
		return
	}
	reply <- res
}

// Open asks the browser to start streaming frames in format
func (m *browserMicrophone) Open(ctx context.Context, format repositories.AudioFormat) (repositories.AudioStream, error) {
	stream := &browserStream{
		mic:    m,
		frames: make(chan []byte, frameBufferSize),
	}

	m.mu.Lock()
	prev := m.stream
	m.stream = stream
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	ok := m.client.writeJSON(&CaptureStartMessage{
		BaseMessage: newBase(MessageTypeCaptureStart),
		SampleRate:  format.SampleRate,
		Channels:    format.Channels,
		Encoding:    format.Encoding,
	})
	if !ok {
		stream.Close()
		return nil, errConnectionClosed
	}
	return stream, nil
}

// pushFrame routes a binary message to the open capture
func (m *browserMicrophone) pushFrame(frame []byte) {
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()

	if stream == nil {
		m.client.logger.Debug("Audio frame without an open capture", zap.Int("size", len(frame)))
		return
	}
	stream.push(frame)
}

func (m *browserMicrophone) detach(s *browserStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == s {
		m.stream = nil
	}
}

type browserStream struct {
	mic *browserMicrophone

	mu      sync.Mutex
	closed  bool
	dropped int
	frames  chan []byte
}

func (s *browserStream) Frames() <-chan []byte {
	return s.frames
}

func (s *browserStream) push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- frame:
	default:
		s.dropped++
		if s.dropped == 1 || s.dropped%100 == 0 {
			s.mic.client.logger.Warn("Dropping audio frames, recognizer is not keeping up",
				zap.Int("dropped", s.dropped))
		}
	}
}

// Close ends the capture and tells the browser to stop streaming
func (s *browserStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.frames)
	s.mu.Unlock()

	s.mic.detach(s)
	s.mic.client.writeJSON(newBase(MessageTypeCaptureStop))
	return nil
}

// browserSynthesizer renders utterances with a server-side engine and
// streams the audio to the browser for playback
type browserSynthesizer struct {
	client *Client
	engine repositories.TextToSpeech

	mu      sync.Mutex
	current *utterance
}

var _ repositories.SpeechSynthesizer = (*browserSynthesizer)(nil)

type utterance struct {
	id     string
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
	timer  *time.Timer
}

func (u *utterance) finish(err error) {
	u.once.Do(func() {
		u.cancel()
		if u.timer != nil {
			u.timer.Stop()
		}
		u.done <- err
		close(u.done)
	})
}

func (s *browserSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	if s.engine == nil {
		return nil, errors.New("no speech engine configured")
	}
	return s.engine.Voices(ctx)
}

// Speak starts streaming an utterance. The returned channel resolves when the
// browser reports the end of playback, or on Cancel.
func (s *browserSynthesizer) Speak(ctx context.Context, u repositories.Utterance) (<-chan error, error) {
	if s.engine == nil {
		return nil, errors.New("no speech engine configured")
	}
	s.Cancel()

	// audio outlives the request that asked for it
	audioCtx, cancel := context.WithCancel(s.client.ctx)
	chunks, err := s.engine.ConvertTextToSpeech(audioCtx, u.Text, u.VoiceSettings)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	utt := &utterance{id: u.ID, cancel: cancel, done: make(chan error, 1)}
	s.mu.Lock()
	s.current = utt
	s.mu.Unlock()

	format := s.engine.Format()
	s.client.writeJSON(&SpeakingStartMessage{
		BaseMessage: newBase(MessageTypeSpeakingStart),
		UtteranceID: u.ID,
		Voice:       u.Voice,
		SampleRate:  format.SampleRate,
		Channels:    format.Channels,
		Encoding:    format.Encoding,
	})

	go s.stream(audioCtx, utt, chunks, format)
	return utt.done, nil
}

func (s *browserSynthesizer) stream(ctx context.Context, utt *utterance, chunks <-chan []byte, format repositories.AudioFormat) {
	total := 0
	for chunk := range chunks {
		if ctx.Err() != nil {
			// drain so the engine can finish
			continue
		}
		if s.client.write(WriteData{Type: websocket.BinaryMessage, Payload: chunk}) {
			total += len(chunk)
		}
	}
	if ctx.Err() != nil {
		return
	}

	s.client.writeJSON(&UtteranceMessage{
		BaseMessage: newBase(MessageTypeSpeakingEnd),
		UtteranceID: utt.id,
	})

	// the browser normally reports speech_ended; don't wait forever if it doesn't
	wait := audioDuration(total, format) + speechEndGrace
	s.mu.Lock()
	if s.current == utt {
		utt.timer = time.AfterFunc(wait, func() {
			s.end(utt.id, nil)
		})
	}
	s.mu.Unlock()

	s.client.logger.Debug("Utterance streamed",
		zap.String("utteranceID", utt.id),
		zap.Int("bytes", total))
}

// Cancel stops the current utterance and tells the browser to stop playing it
func (s *browserSynthesizer) Cancel() {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()
	if cur == nil {
		return
	}

	cur.finish(context.Canceled)
	s.client.writeJSON(&UtteranceMessage{
		BaseMessage: newBase(MessageTypeSpeakingCancel),
		UtteranceID: cur.id,
	})
}

func (s *browserSynthesizer) speechEnded(utteranceID, errMessage string) {
	var err error
	if errMessage != "" {
		err = fmt.Errorf("browser playback failed: %s", errMessage)
	}
	s.end(utteranceID, err)
}

func (s *browserSynthesizer) end(utteranceID string, err error) {
	s.mu.Lock()
	cur := s.current
	if cur == nil || cur.id != utteranceID {
		s.mu.Unlock()
		s.client.logger.Debug("Ignoring end of stale utterance", zap.String("utteranceID", utteranceID))
		return
	}
	s.current = nil
	s.mu.Unlock()

	cur.finish(err)
}

func audioDuration(bytes int, format repositories.AudioFormat) time.Duration {
	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	if format.SampleRate <= 0 {
		return 0
	}
	// 16-bit samples
	seconds := float64(bytes) / float64(format.SampleRate*channels*2)
	return time.Duration(seconds * float64(time.Second))
}

// browserPlayer plays recorded artifacts through the browser
type browserPlayer struct {
	client *Client
}

var _ repositories.AudioPlayer = (*browserPlayer)(nil)

func (p *browserPlayer) Play(ctx context.Context, url string) error {
	if !p.client.writeJSON(&PlaybackStartMessage{BaseMessage: newBase(MessageTypePlaybackStart), URL: url}) {
		return errConnectionClosed
	}
	return nil
}

func (p *browserPlayer) Stop() error {
	if !p.client.writeJSON(newBase(MessageTypePlaybackStop)) {
		return errConnectionClosed
	}
	return nil
}
