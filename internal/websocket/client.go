package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/internal/voice"
	"github.com/fraudshield/voicedesk/usecase"
)

const (
	// How long the browser has to answer a permission prompt.
	permissionTimeout = 60 * time.Second

	// Upper bound for any other command.
	commandTimeout = 30 * time.Second
)

var errConnectionClosed = errors.New("websocket connection closed")

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and one voice session.
type Client struct {
	id  string
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. It is never closed; done ends
	// the write pump instead.
	send chan WriteData

	// Commands that drive the session, run in order off the read pump.
	commands chan interface{}

	done     chan struct{}
	doneOnce sync.Once

	// ctx is cancelled when the connection goes away
	ctx    context.Context
	cancel context.CancelFunc

	userID  string
	session *voice.Session

	microphone  *browserMicrophone
	synthesizer *browserSynthesizer
	player      *browserPlayer

	logger *zap.Logger
}

func (c *Client) devices() usecase.Devices {
	return usecase.Devices{
		Microphone:  c.microphone,
		Synthesizer: c.synthesizer,
		Player:      c.player,
	}
}

// shutdown stops the write pump and unblocks every pending write
func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		close(c.commands)
		c.hub.unregisterClient(c)
		c.shutdown()
		c.session.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.microphone.pushFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the send queue to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// write queues a message, waiting for room unless the connection is gone
func (c *Client) write(data WriteData) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

// tryWrite queues a message only if there is room right now
func (c *Client) tryWrite(data WriteData) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) writeJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return false
	}
	return c.write(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) writeError(code, message, details string) {
	c.writeJSON(CreateErrorMessage(code, message, details))
}

// processMessage handles a text message from the browser. Replies to device
// requests are resolved here; everything that drives the session is queued.
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.writeError("invalid_message", err.Error(), "")
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		c.writeJSON(CreatePongMessage(m.Data))
	case *PermissionResultMessage:
		c.microphone.resolvePermission(m)
	case *SpeechEndedMessage:
		c.synthesizer.speechEnded(m.UtteranceID, m.Error)
	case *BaseMessage:
		if m.Type == MessageTypePlaybackEnded {
			c.session.PlaybackEnded()
			return
		}
		c.enqueue(m)
	default:
		c.enqueue(m)
	}
}

func (c *Client) enqueue(msg interface{}) {
	select {
	case c.commands <- msg:
	default:
		c.logger.Warn("Command queue full, dropping command")
		c.writeError("busy", "Too many requests, please wait.", "")
	}
}

// runCommands executes session commands one at a time, in arrival order
func (c *Client) runCommands() {
	for msg := range c.commands {
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg interface{}) {
	timeout := commandTimeout
	if base, ok := msg.(*BaseMessage); ok && base.Type == MessageTypeRequestPermission {
		timeout = permissionTimeout
	}
	if _, ok := msg.(*StartCaptureMessage); ok {
		// may prompt for permission first
		timeout = permissionTimeout
	}
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	switch m := msg.(type) {
	case *StartCaptureMessage:
		c.report(string(m.Type), c.session.StartCapture(ctx, m.Language))

	case *SpeakMessage:
		c.report(string(m.Type), c.session.Speak(ctx, m.Text, m.Language))

	case *PlaySampleMessage:
		c.report(string(m.Type), c.session.PlaySample(ctx, m.Language))

	case *SelectLanguageMessage:
		profile := c.session.SelectLanguage(m.Language)
		c.logger.Debug("Language selected", zap.String("language", profile.Code))

	case *BaseMessage:
		switch m.Type {
		case MessageTypeRequestPermission:
			c.report(string(m.Type), c.session.RequestPermission(ctx))
		case MessageTypeStopCapture:
			_, err := c.session.StopCapture(ctx)
			c.report(string(m.Type), err)
		case MessageTypePlayRecording:
			c.report(string(m.Type), c.session.PlayRecordedAudio(ctx))
		case MessageTypeDownloadRecording:
			c.download(ctx)
		case MessageTypeClear:
			c.session.Clear(ctx)
		default:
			c.logger.Warn("Unhandled command", zap.String("type", string(m.Type)))
		}

	default:
		c.logger.Warn("Unhandled command type")
	}
}

func (c *Client) download(ctx context.Context) {
	dl, err := c.session.DownloadRecordedAudio(ctx)
	if err != nil {
		c.report(string(MessageTypeDownloadRecording), err)
		return
	}
	c.writeJSON(&DownloadMessage{
		BaseMessage: newBase(MessageTypeDownload),
		URL:         dl.URL + "?download=1",
		FileName:    dl.FileName,
		ContentType: dl.ContentType,
	})
}

// report sends operational errors back to the browser. Classified errors
// already reached it as notices.
func (c *Client) report(command string, err error) {
	if err == nil {
		return
	}
	var voiceErr *voice.Error
	if errors.As(err, &voiceErr) {
		return
	}
	c.logger.Debug("Command failed",
		zap.String("command", command),
		zap.Error(err))
	c.writeError(errorCode(err), err.Error(), command)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, voice.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, voice.ErrAlreadyRecording):
		return "already_recording"
	case errors.Is(err, voice.ErrNotRecording):
		return "not_recording"
	case errors.Is(err, voice.ErrPermissionPending):
		return "permission_pending"
	case errors.Is(err, voice.ErrNoRecording):
		return "no_recording"
	case errors.Is(err, voice.ErrNothingToSpeak):
		return "nothing_to_speak"
	case errors.Is(err, voice.ErrPlaybackUnavailable):
		return "playback_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "command_failed"
}

// forwardUpdates relays session updates until the session closes. Level
// updates are dropped rather than queued behind a slow connection.
func (c *Client) forwardUpdates() {
	for u := range c.session.Updates() {
		payload, err := json.Marshal(NewUpdateMessage(u))
		if err != nil {
			c.logger.Error("Failed to encode update", zap.Error(err))
			continue
		}
		data := WriteData{Type: websocket.TextMessage, Payload: payload}
		if u.Type == voice.UpdateLevel {
			c.tryWrite(data)
			continue
		}
		// after disconnect writes fail fast; keep draining until Close ends the stream
		c.write(data)
	}
}
