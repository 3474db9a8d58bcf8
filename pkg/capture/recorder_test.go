package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStream struct {
	out        chan Chunk
	stopOnce   sync.Once
	stopCalls  atomic.Int32
	closed     atomic.Bool
	captureErr error
	provider   *fakeProvider
}

func newFakeStream(p *fakeProvider) *fakeStream {
	return &fakeStream{out: make(chan Chunk, 64), provider: p}
}

func (s *fakeStream) StartCapture(_ context.Context, _ string, _ time.Duration) (<-chan Chunk, error) {
	return s.out, nil
}

func (s *fakeStream) Emit(data []byte) {
	s.out <- Chunk{Data: data, At: time.Now()}
}

func (s *fakeStream) StopCapture() {
	s.stopCalls.Add(1)
	s.stopOnce.Do(func() { close(s.out) })
}

func (s *fakeStream) FailCapture(err error) {
	s.captureErr = err
	s.stopOnce.Do(func() { close(s.out) })
}

func (s *fakeStream) Err() error { return s.captureErr }

func (s *fakeStream) Close() {
	if s.closed.CompareAndSwap(false, true) && s.provider != nil {
		s.provider.live.Add(-1)
	}
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	delay   time.Duration
	streams []*fakeStream
	live    atomic.Int32
	maxLive atomic.Int32
	calls   atomic.Int32
}

func (p *fakeProvider) GetUserMedia(_ context.Context, _ Constraints) (MediaStream, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	s := newFakeStream(p)
	n := p.live.Add(1)
	for {
		max := p.maxLive.Load()
		if n <= max || p.maxLive.CompareAndSwap(max, n) {
			break
		}
	}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()
	return s, nil
}

func (p *fakeProvider) lastStream() *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return nil
	}
	return p.streams[len(p.streams)-1]
}

type fakePreviewStore struct {
	mu      sync.Mutex
	seq     int
	created []string
	revoked []string
}

func (s *fakePreviewStore) Create(_ []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ref := "preview-" + string(rune('0'+s.seq))
	s.created = append(s.created, ref)
	return ref, nil
}

func (s *fakePreviewStore) Revoke(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = append(s.revoked, ref)
}

func allSupported() CapabilityProvider {
	return CapabilityFunc(func(string) bool { return true })
}

func TestRecorderStartStopProducesArtifact(t *testing.T) {
	provider := &fakeProvider{}
	previews := &fakePreviewStore{}
	r := NewRecorder(provider, allSupported(), previews, WithTickInterval(10*time.Millisecond))
	defer r.Close()

	if err := r.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := r.State(); got != StateRecording {
		t.Fatalf("state = %s, want recording", got)
	}

	stream := provider.lastStream()
	stream.Emit([]byte("aaa"))
	stream.Emit([]byte("bbb"))
	done := r.Done()
	r.Stop()

	artifact := <-done
	if artifact == nil {
		t.Fatal("artifact is nil")
	}
	if string(artifact.Data) != "aaabbb" {
		t.Fatalf("data = %q", artifact.Data)
	}
	if artifact.MimeType != "video/webm;codecs=vp9,opus" {
		t.Fatalf("mime = %q", artifact.MimeType)
	}
	if artifact.PreviewRef == "" {
		t.Fatal("no preview reference")
	}
	if got := r.State(); got != StateStopped {
		t.Fatalf("state = %s, want stopped", got)
	}
	if !stream.closed.Load() {
		t.Fatal("stream tracks not released after finalization")
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	provider := &fakeProvider{}
	r := NewRecorder(provider, allSupported(), nil)
	r.Stop()
	if provider.calls.Load() != 0 {
		t.Fatal("stop acquired a stream")
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	select {
	case _, ok := <-r.Done():
		if ok {
			t.Fatal("idle Done delivered a value")
		}
	case <-time.After(time.Second):
		t.Fatal("idle Done not closed")
	}
}

func TestAutoStopAtMaxDuration(t *testing.T) {
	provider := &fakeProvider{}
	tick := 10 * time.Millisecond
	r := NewRecorder(provider, allSupported(), &fakePreviewStore{}, WithTickInterval(tick))
	defer r.Close()

	start := time.Now()
	if err := r.Start(context.Background(), 5*tick); err != nil {
		t.Fatalf("start: %v", err)
	}
	stream := provider.lastStream()
	stream.Emit([]byte("x"))

	select {
	case artifact := <-r.Done():
		if artifact == nil {
			t.Fatal("auto-stop produced nil artifact")
		}
		if elapsed := time.Since(start); elapsed < 5*tick {
			t.Fatalf("stopped after %v, ceiling is %v", elapsed, 5*tick)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("auto-stop never fired")
	}
	if n := stream.stopCalls.Load(); n != 1 {
		t.Fatalf("stop issued %d times, want exactly 1", n)
	}
}

func TestAtMostOneLiveStreamAcrossRestarts(t *testing.T) {
	provider := &fakeProvider{}
	r := NewRecorder(provider, allSupported(), &fakePreviewStore{}, WithTickInterval(10*time.Millisecond))
	defer r.Close()

	for i := 0; i < 3; i++ {
		if err := r.Start(context.Background(), time.Minute); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		provider.lastStream().Emit([]byte("x"))
	}
	done := r.Done()
	r.Stop()
	<-done

	if max := provider.maxLive.Load(); max > 1 {
		t.Fatalf("observed %d concurrent live streams, want at most 1", max)
	}
}

func TestConcurrentStartsKeepOneLiveStream(t *testing.T) {
	provider := &fakeProvider{delay: 5 * time.Millisecond}
	r := NewRecorder(provider, allSupported(), &fakePreviewStore{}, WithTickInterval(10*time.Millisecond))
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Start(context.Background(), time.Minute); err != nil {
				t.Errorf("start: %v", err)
			}
		}()
	}
	wg.Wait()

	provider.lastStream().Emit([]byte("x"))
	done := r.Done()
	r.Stop()
	<-done

	if max := provider.maxLive.Load(); max > 1 {
		t.Fatalf("observed %d concurrent live streams, want at most 1", max)
	}
	if live := provider.live.Load(); live != 0 {
		t.Fatalf("%d streams still live after stop, want 0", live)
	}
}

func TestPreviewRevokedOnlyWhenReplaced(t *testing.T) {
	provider := &fakeProvider{}
	previews := &fakePreviewStore{}
	r := NewRecorder(provider, allSupported(), previews, WithTickInterval(10*time.Millisecond))

	record := func() *Artifact {
		t.Helper()
		if err := r.Start(context.Background(), time.Minute); err != nil {
			t.Fatalf("start: %v", err)
		}
		provider.lastStream().Emit([]byte("x"))
		done := r.Done()
		r.Stop()
		a := <-done
		if a == nil {
			t.Fatal("nil artifact")
		}
		return a
	}

	first := record()
	if len(previews.revoked) != 0 {
		t.Fatalf("revoked %v before any replacement", previews.revoked)
	}

	second := record()
	if len(previews.revoked) != 1 || previews.revoked[0] != first.PreviewRef {
		t.Fatalf("revoked = %v, want exactly the first preview %q", previews.revoked, first.PreviewRef)
	}

	r.Close()
	for _, ref := range previews.revoked {
		if ref == second.PreviewRef {
			t.Fatal("Close revoked the active preview")
		}
	}
}

func TestStartFailureLeavesIdleWithClassifiedMessage(t *testing.T) {
	provider := &fakeProvider{err: ErrNoDevice}
	r := NewRecorder(provider, allSupported(), nil)

	err := r.Start(context.Background(), time.Minute)
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
	if FailureMessage(err) != MsgNoDevice {
		t.Fatalf("message = %q", FailureMessage(err))
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestCaptureErrorReturnsToIdle(t *testing.T) {
	provider := &fakeProvider{}
	r := NewRecorder(provider, allSupported(), &fakePreviewStore{}, WithTickInterval(10*time.Millisecond))
	defer r.Close()

	if err := r.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	stream := provider.lastStream()
	done := r.Done()
	stream.FailCapture(errors.New("encoder died"))

	if artifact := <-done; artifact != nil {
		t.Fatalf("artifact = %v, want nil on capture error", artifact)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle after capture error", got)
	}
	if !stream.closed.Load() {
		t.Fatal("stream not released after capture error")
	}
}

func TestStartAfterCloseFails(t *testing.T) {
	r := NewRecorder(&fakeProvider{}, allSupported(), nil)
	r.Close()
	if err := r.Start(context.Background(), time.Minute); !errors.Is(err, ErrRecorderClosed) {
		t.Fatalf("err = %v, want ErrRecorderClosed", err)
	}
}
