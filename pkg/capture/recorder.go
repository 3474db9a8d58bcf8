package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the recorder lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

// Artifact is a finished recording.
type Artifact struct {
	Data       []byte
	MimeType   string
	Duration   time.Duration
	PreviewRef string
}

// ErrRecorderClosed is returned by Start after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// session is one recording run. Its goroutine owns the chunk drain; done
// receives the artifact (or nil on capture error) and then closes.
type session struct {
	done     chan *Artifact
	stopOnce sync.Once
	stream   MediaStream
}

func (s *session) requestStop() {
	s.stopOnce.Do(s.stream.StopCapture)
}

// Recorder drives chunked capture through an explicit state machine:
// idle -> recording -> stopped, with failures returning to idle.
type Recorder struct {
	provider    DeviceProvider
	caps        CapabilityProvider
	previews    PreviewStore
	constraints Constraints
	tick        time.Duration
	logger      *zap.Logger

	// startMu serializes Start calls end to end. Stream acquisition happens
	// outside mu (it can block on device prompts), so without this two
	// concurrent Starts could both acquire a stream and the loser's stream
	// would leak with no session to stop it.
	startMu sync.Mutex

	mu         sync.Mutex
	state      State
	closed     bool
	session    *session
	artifact   *Artifact
	previewRef string
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithConstraints overrides the default capture constraints.
func WithConstraints(c Constraints) RecorderOption {
	return func(r *Recorder) { r.constraints = c }
}

// WithTickInterval overrides the 1s capture tick. Tests use a short tick.
func WithTickInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.tick = d }
}

// WithRecorderLogger sets the recorder logger.
func WithRecorderLogger(l *zap.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder creates an idle recorder.
func NewRecorder(provider DeviceProvider, caps CapabilityProvider, previews PreviewStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		provider:    provider,
		caps:        caps,
		previews:    previews,
		constraints: DefaultConstraints(),
		tick:        time.Second,
		state:       StateIdle,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Artifact returns the last finished recording, nil before the first stop or
// after a new Start cleared it.
func (r *Recorder) Artifact() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact
}

// Done returns the active session's completion channel. It receives the
// artifact when finalization completes (nil on capture error) and then
// closes. Returns a closed channel when no session is active.
func (r *Recorder) Done() <-chan *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return r.session.done
	}
	ch := make(chan *Artifact)
	close(ch)
	return ch
}

// Start begins a new recording with a hard duration ceiling. Any previous
// session is stopped and its stream released first, the prior artifact is
// cleared and its preview revoked, so at most one live stream ever exists.
// On acquisition failure the recorder stays idle and the error carries a
// classified user-facing message via FailureMessage.
func (r *Recorder) Start(ctx context.Context, maxDuration time.Duration) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	if prev := r.session; prev != nil {
		prev.requestStop()
		r.mu.Unlock()
		<-prev.done // wait for the previous session to finish cleanup
		r.mu.Lock()
	}
	// Clear the prior artifact and revoke its preview before the new
	// recording takes over. The active session's preview is never revoked
	// underneath it.
	r.artifact = nil
	if r.previewRef != "" && r.previews != nil {
		r.previews.Revoke(r.previewRef)
		r.previewRef = ""
	}
	constraints := r.constraints
	r.mu.Unlock()

	stream, err := r.provider.GetUserMedia(ctx, constraints)
	if err != nil {
		r.logger.Warn("stream acquisition failed", zap.Error(err))
		return err
	}
	mimeType := NegotiateMimeType(r.caps)
	chunks, err := stream.StartCapture(ctx, mimeType, r.tick)
	if err != nil {
		stream.Close()
		r.logger.Warn("capture start failed", zap.Error(err))
		return err
	}

	sess := &session{
		done:   make(chan *Artifact, 1),
		stream: stream,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sess.requestStop()
		stream.Close()
		return ErrRecorderClosed
	}
	r.session = sess
	r.state = StateRecording
	r.mu.Unlock()

	go r.run(sess, chunks, mimeType, maxDuration)
	return nil
}

// run drains chunks until the stream closes its channel, enforcing the
// duration ceiling with a ticker. Exactly one stop is issued however the
// session ends.
func (r *Recorder) run(sess *session, chunks <-chan Chunk, mimeType string, maxDuration time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	var buf bytes.Buffer
	var elapsed time.Duration
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				r.finalize(sess, buf.Bytes(), mimeType, time.Since(start))
				return
			}
			buf.Write(chunk.Data)
		case <-ticker.C:
			elapsed += r.tick
			if maxDuration > 0 && elapsed >= maxDuration {
				sess.requestStop() // hard ceiling; chunks keep draining until close
			}
		}
	}
}

// finalize runs after the capture channel closes: the encoder has delivered
// every chunk it will ever produce.
func (r *Recorder) finalize(sess *session, data []byte, mimeType string, duration time.Duration) {
	captureErr := sess.stream.Err()
	sess.stream.Close()

	if captureErr != nil {
		r.logger.Warn("capture failed", zap.Error(captureErr))
		r.mu.Lock()
		if r.session == sess {
			r.session = nil
			r.state = StateIdle
		}
		r.mu.Unlock()
		sess.done <- nil
		close(sess.done)
		return
	}

	artifact := &Artifact{
		Data:     data,
		MimeType: mimeType,
		Duration: duration,
	}
	if r.previews != nil {
		if ref, err := r.previews.Create(data, mimeType); err == nil {
			artifact.PreviewRef = ref
		} else {
			r.logger.Warn("preview creation failed", zap.Error(err))
		}
	}

	r.mu.Lock()
	if r.session == sess {
		r.session = nil
		r.state = StateStopped
		r.artifact = artifact
		r.previewRef = artifact.PreviewRef
	}
	r.mu.Unlock()
	sess.done <- artifact
	close(sess.done)
}

// Stop requests finalization of the active session. Idempotent; stopping
// while idle is a no-op. It returns immediately, receive from Done to wait
// for the artifact.
func (r *Recorder) Stop() {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess != nil {
		sess.requestStop()
	}
}

// Close tears the recorder down: the active session is stopped and its
// tracks released. The last preview is left intact so a finished recording
// stays playable after teardown.
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	sess := r.session
	r.mu.Unlock()
	if sess != nil {
		sess.requestStop()
		<-sess.done
	}
}
