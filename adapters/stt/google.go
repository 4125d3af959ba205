package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

// drainTimeout bounds how long a stopped stream waits for Google's last results
const drainTimeout = 10 * time.Second

// GoogleSpeechRecognizer implements SpeechRecognizer with Google Cloud streaming recognition
type GoogleSpeechRecognizer struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechRecognizer = (*GoogleSpeechRecognizer)(nil)

// NewGoogleSpeechRecognizer creates a recognizer using application default credentials
func NewGoogleSpeechRecognizer(ctx context.Context, logger *zap.Logger) (*GoogleSpeechRecognizer, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechRecognizer{client: client, logger: logger}, nil
}

// Close releases the underlying client
func (g *GoogleSpeechRecognizer) Close() error {
	return g.client.Close()
}

// Start opens a continuous recognition stream with interim results
func (g *GoogleSpeechRecognizer) Start(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognitionStream, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	// The stream outlives the request that started it
	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := g.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", recognitionErrorFrom(err))
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(config.SampleRate),
					LanguageCode:               config.Language,
					EnableAutomaticPunctuation: true,
					MaxAlternatives:            1,
				},
				InterimResults:  config.InterimResults,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		stream.CloseSend()
		cancel()
		return nil, fmt.Errorf("failed to send streaming config: %w", recognitionErrorFrom(err))
	}

	g.logger.Info("Started streaming recognition",
		zap.String("language", config.Language),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	s := &googleRecognitionStream{
		stream:  stream,
		ctx:     streamCtx,
		cancel:  cancel,
		results: make(chan repositories.RecognitionEvent, 32),
		logger:  g.logger,
	}
	go s.receiveResults()
	return s, nil
}

type googleRecognitionStream struct {
	stream speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	sendMu  sync.Mutex
	stopped bool

	results   chan repositories.RecognitionEvent
	committed []repositories.RecognitionSegment
}

func (s *googleRecognitionStream) Write(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.stopped {
		return fmt.Errorf("recognition stream stopped")
	}
	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: frame,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (s *googleRecognitionStream) Results() <-chan repositories.RecognitionEvent {
	return s.results
}

// Stop half-closes the stream so Google flushes its last results. Results
// closes once they arrive, or after drainTimeout.
func (s *googleRecognitionStream) Stop() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	time.AfterFunc(drainTimeout, s.cancel)
	if err := s.stream.CloseSend(); err != nil {
		s.cancel()
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (s *googleRecognitionStream) isStopped() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stopped
}

func (s *googleRecognitionStream) receiveResults() {
	defer close(s.results)
	defer s.cancel()

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			recErr := recognitionErrorFrom(err)
			if s.isStopped() && recErr.Code == repositories.RecognitionErrorAborted {
				return
			}
			s.logger.Warn("Streaming recognition failed",
				zap.String("code", string(recErr.Code)),
				zap.Error(err))
			s.send(repositories.RecognitionEvent{Err: recErr})
			return
		}
		if resp.Error != nil && resp.Error.Code != int32(codes.OK) {
			s.send(repositories.RecognitionEvent{
				Err: recognitionErrorFrom(status.ErrorProto(resp.Error)),
			})
			return
		}
		if len(resp.Results) == 0 {
			continue
		}
		if !s.send(s.apply(resp.Results)) {
			return
		}
	}
}

// send gives up once the stream is cancelled, so a reader that went away
// cannot pin the receive goroutine.
func (s *googleRecognitionStream) send(ev repositories.RecognitionEvent) bool {
	select {
	case s.results <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// apply turns one response into a cumulative event. Google never repeats a
// final result, so finals are committed and later results are indexed after them.
func (s *googleRecognitionStream) apply(results []*speechpb.StreamingRecognitionResult) repositories.RecognitionEvent {
	first := len(s.committed)
	var pending []repositories.RecognitionSegment

	for _, result := range results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		segment := repositories.RecognitionSegment{
			Text:       best.Transcript,
			Confidence: float64(best.Confidence),
			IsFinal:    result.IsFinal,
		}
		if result.IsFinal {
			s.committed = append(s.committed, segment)
			continue
		}
		if segment.Confidence == 0 {
			segment.Confidence = float64(result.Stability)
		}
		pending = append(pending, segment)
	}

	all := make([]repositories.RecognitionSegment, 0, len(s.committed)+len(pending))
	all = append(all, s.committed...)
	all = append(all, pending...)
	return repositories.RecognitionEvent{ResultIndex: first, Results: all}
}

// recognitionErrorFrom maps a gRPC failure onto the recognizer error codes
func recognitionErrorFrom(err error) *repositories.RecognitionError {
	var recErr *repositories.RecognitionError
	if errors.As(err, &recErr) {
		return recErr
	}
	if errors.Is(err, context.Canceled) {
		return &repositories.RecognitionError{Code: repositories.RecognitionErrorAborted, Message: err.Error()}
	}

	st, _ := status.FromError(err)
	code := repositories.RecognitionErrorCode(strings.ToLower(st.Code().String()))
	switch st.Code() {
	case codes.Canceled:
		code = repositories.RecognitionErrorAborted
	case codes.Unavailable, codes.DeadlineExceeded:
		code = repositories.RecognitionErrorNetwork
	case codes.Unauthenticated, codes.PermissionDenied, codes.ResourceExhausted:
		code = repositories.RecognitionErrorServiceNotAllowed
	case codes.InvalidArgument:
		if strings.Contains(strings.ToLower(st.Message()), "language") {
			code = repositories.RecognitionErrorLanguageUnsupported
		}
	}
	return &repositories.RecognitionError{Code: code, Message: st.Message()}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16", "pcm_s16le":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
