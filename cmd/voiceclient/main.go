// Command voiceclient drives a voice session from the terminal. It obtains a
// development token, streams a WAV file as microphone input and prints the
// updates the server sends back.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/internal/audio"
)

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

type serverMessage struct {
	Type        string `json:"type"`
	State       string `json:"state"`
	Prompt      string `json:"prompt"`
	Transcript  string `json:"transcript"`
	Interim     string `json:"interim"`
	Confidence  int    `json:"confidence"`
	ArtifactURL string `json:"artifact_url"`
	Code        string `json:"error_code"`
	Message     string `json:"message"`
	Notice      *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"notice"`
}

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	userID := flag.String("user", "", "user id to request a token for")
	language := flag.String("language", "en", "capture language")
	wavPath := flag.String("wav", "sample_audio.wav", "16-bit PCM WAV file to stream")
	frameDuration := flag.Duration("frame", 100*time.Millisecond, "audio per frame")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	wavData, err := os.ReadFile(*wavPath)
	if err != nil {
		logger.Fatal("Failed to read audio file", zap.String("path", *wavPath), zap.Error(err))
	}
	pcm, info, err := audio.DecodeWAV(wavData)
	if err != nil {
		logger.Fatal("Failed to decode audio file", zap.Error(err))
	}
	logger.Info("Loaded audio",
		zap.Uint32("sampleRate", info.SampleRate),
		zap.Uint16("channels", info.Channels),
		zap.Float64("duration", info.Duration))

	token, err := requestToken(*host, *userID)
	if err != nil {
		logger.Fatal("Failed to get token", zap.Error(err))
	}
	logger.Info("Authenticated", zap.String("userID", token.UserID))

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token.Token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		logger.Fatal("Failed to dial", zap.String("url", u.String()), zap.Error(err))
	}
	defer c.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	frameSize := int(info.SampleRate) * int(info.Channels) * 2 * int(*frameDuration/time.Millisecond) / 1000
	if frameSize <= 0 {
		frameSize = 3200
	}

	s := &streamer{conn: c, pcm: pcm, frameSize: frameSize, pace: *frameDuration, logger: logger}
	done := make(chan struct{})
	go s.readLoop(done)

	if err := s.sendJSON(map[string]string{"type": "start_capture", "language": *language}); err != nil {
		logger.Fatal("Failed to start capture", zap.Error(err))
	}

	select {
	case <-done:
	case <-interrupt:
		logger.Info("Interrupted")
		s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func requestToken(host, userID string) (*tokenResponse, error) {
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post("http://"+host+"/api/v1/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed: %s", string(data))
	}

	var token tokenResponse
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

type streamer struct {
	conn      *websocket.Conn
	pcm       []byte
	frameSize int
	pace      time.Duration
	logger    *zap.Logger

	// gorilla connections allow one concurrent writer
	mu sync.Mutex
}

func (s *streamer) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *streamer) sendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

// stream sends the audio in real time, then asks the server to stop
func (s *streamer) stream() {
	for start := 0; start < len(s.pcm); start += s.frameSize {
		end := start + s.frameSize
		if end > len(s.pcm) {
			end = len(s.pcm)
		}
		if err := s.write(websocket.BinaryMessage, s.pcm[start:end]); err != nil {
			s.logger.Error("Failed to send frame", zap.Error(err))
			return
		}
		time.Sleep(s.pace)
	}
	s.logger.Info("Finished streaming audio", zap.Int("bytes", len(s.pcm)))
	if err := s.sendJSON(map[string]string{"type": "stop_capture"}); err != nil {
		s.logger.Error("Failed to stop capture", zap.Error(err))
	}
}

func (s *streamer) readLoop(done chan struct{}) {
	defer close(done)

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Info("Connection closed", zap.Error(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg serverMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("Undecodable message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "permission_request":
			s.sendJSON(map[string]interface{}{"type": "permission_result", "granted": true})
		case "capture_start":
			s.logger.Info("Capture started")
			go s.stream()
		case "state":
			s.logger.Info("State", zap.String("state", msg.State), zap.String("prompt", msg.Prompt))
		case "transcript":
			s.logger.Info("Transcript",
				zap.String("final", msg.Transcript),
				zap.String("interim", msg.Interim),
				zap.Int("confidence", msg.Confidence))
		case "notice":
			if msg.Notice != nil {
				s.logger.Warn("Notice", zap.String("kind", msg.Notice.Kind), zap.String("message", msg.Notice.Message))
			}
		case "artifact":
			s.logger.Info("Recording available", zap.String("url", msg.ArtifactURL))
		case "completed":
			s.logger.Info("Transcription complete", zap.String("text", msg.Transcript))
			s.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case "error":
			s.logger.Error("Server error", zap.String("code", msg.Code), zap.String("message", msg.Message))
		case "level", "pong", "capture_stop":
		default:
			s.logger.Debug("Message", zap.String("type", msg.Type))
		}
	}
}
