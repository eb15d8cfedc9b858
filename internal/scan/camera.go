package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrPreempted is returned by a scan whose camera was taken over by a newer session.
var ErrPreempted = errors.New("camera taken over by another scan")

// Frame is one captured video frame in whatever encoding the camera produces.
type Frame []byte

// Camera opens video streams. Implemented by the host platform.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers frames until closed.
type Stream interface {
	// NextFrame blocks until a frame is available, the stream is closed or ctx ends.
	NextFrame(ctx context.Context) (Frame, error)
	Close() error
}

// CameraManager gives at most one scan at a time ownership of the camera.
type CameraManager struct {
	camera Camera
	logger *zap.Logger

	mu     sync.Mutex
	active *Lease
}

// NewCameraManager wraps camera.
func NewCameraManager(camera Camera, logger *zap.Logger) *CameraManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CameraManager{camera: camera, logger: logger}
}

// Acquire stops any stream owned by a previous scan, then opens a new one.
func (m *CameraManager) Acquire(ctx context.Context) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.logger.Info("stopping previous scan stream")
		m.active.preempt()
		m.active = nil
	}

	stream, err := m.camera.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}

	lease := &Lease{manager: m, stream: stream, preempted: make(chan struct{})}
	m.active = lease
	return lease, nil
}

// Active reports whether some scan currently owns the camera.
func (m *CameraManager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Lease is one scan's ownership of an open stream.
type Lease struct {
	manager *CameraManager
	stream  Stream

	once      sync.Once
	preempted chan struct{}
}

// Stream returns the leased stream.
func (l *Lease) Stream() Stream { return l.stream }

// Preempted is closed when another scan took the camera.
func (l *Lease) Preempted() <-chan struct{} { return l.preempted }

// Release closes the stream. Safe to call more than once.
func (l *Lease) Release() {
	l.manager.mu.Lock()
	if l.manager.active == l {
		l.manager.active = nil
	}
	l.manager.mu.Unlock()
	l.close()
}

func (l *Lease) preempt() {
	l.once.Do(func() {
		close(l.preempted)
		if err := l.stream.Close(); err != nil {
			l.manager.logger.Warn("failed to close preempted stream", zap.Error(err))
		}
	})
}

func (l *Lease) close() {
	l.once.Do(func() {
		if err := l.stream.Close(); err != nil {
			l.manager.logger.Warn("failed to close stream", zap.Error(err))
		}
	})
}
