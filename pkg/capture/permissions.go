package capture

import (
	"context"
	"sync"
)

// PermissionState is the tri-state outcome of a device permission check.
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// PermissionResult is the outcome of a check or request.
type PermissionResult struct {
	State   PermissionState
	Message string
}

// PermissionGateway probes and requests access to capture devices. It caches
// the last observed state.
type PermissionGateway struct {
	provider DeviceProvider

	mu   sync.RWMutex
	last PermissionResult
}

// NewPermissionGateway creates a gateway and runs one automatic check so the
// cached state is populated before the first explicit call.
func NewPermissionGateway(provider DeviceProvider) *PermissionGateway {
	g := &PermissionGateway{
		provider: provider,
		last:     PermissionResult{State: PermissionUnknown},
	}
	g.Check(context.Background())
	return g
}

// State returns the last observed permission state.
func (g *PermissionGateway) State() PermissionResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}

// Check acquires a probe stream and releases it immediately. No live stream
// survives a Check, whatever the outcome.
func (g *PermissionGateway) Check(ctx context.Context) PermissionResult {
	stream, err := g.provider.GetUserMedia(ctx, DefaultConstraints())
	var result PermissionResult
	if err != nil {
		result = PermissionResult{State: PermissionDenied, Message: FailureMessage(err)}
	} else {
		stream.Close()
		result = PermissionResult{State: PermissionGranted}
	}
	g.mu.Lock()
	g.last = result
	g.mu.Unlock()
	return result
}

// Request acquires and returns a live stream. The caller owns the stream and
// must Close it. On failure the stream is nil and the message classifies the
// cause.
func (g *PermissionGateway) Request(ctx context.Context) (stream MediaStream, granted bool, message string) {
	s, err := g.provider.GetUserMedia(ctx, DefaultConstraints())
	if err != nil {
		result := PermissionResult{State: PermissionDenied, Message: FailureMessage(err)}
		g.mu.Lock()
		g.last = result
		g.mu.Unlock()
		return nil, false, result.Message
	}
	g.mu.Lock()
	g.last = PermissionResult{State: PermissionGranted}
	g.mu.Unlock()
	return s, true, ""
}
