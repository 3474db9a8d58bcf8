package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/prepview/backend/pkg/capture"
)

// fileDeviceProvider simulates a camera by replaying a media file. A missing
// file behaves like missing hardware.
type fileDeviceProvider struct {
	path string
}

func (p *fileDeviceProvider) GetUserMedia(_ context.Context, _ capture.Constraints) (capture.MediaStream, error) {
	if p.path == "" {
		return nil, capture.ErrNoDevice
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, capture.ErrNoDevice
	}
	return &fileStream{data: data}, nil
}

// fileStream emits the file in fixed-size chunks, one per timeslice, looping
// until capture stops.
type fileStream struct {
	data     []byte
	out      chan capture.Chunk
	cancel   context.CancelFunc
	stopOnce sync.Once
}

const chunkSize = 64 * 1024

func (s *fileStream) StartCapture(ctx context.Context, _ string, timeslice time.Duration) (<-chan capture.Chunk, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.out = make(chan capture.Chunk, 16)
	go func() {
		defer close(s.out)
		ticker := time.NewTicker(timeslice)
		defer ticker.Stop()
		offset := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				end := offset + chunkSize
				if end > len(s.data) {
					end = len(s.data)
				}
				chunk := capture.Chunk{Data: s.data[offset:end], At: time.Now()}
				select {
				case s.out <- chunk:
				case <-ctx.Done():
					return
				}
				offset = end
				if offset >= len(s.data) {
					offset = 0 // loop the clip like a live camera
				}
			}
		}
	}()
	return s.out, nil
}

func (s *fileStream) StopCapture() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

func (s *fileStream) Err() error { return nil }

func (s *fileStream) Close() { s.StopCapture() }
