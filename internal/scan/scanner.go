package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Decoder extracts QR text from a frame. found is false when the frame holds no code.
type Decoder interface {
	Decode(frame Frame) (text string, found bool, err error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(Frame) (string, bool, error)

func (f DecoderFunc) Decode(frame Frame) (string, bool, error) { return f(frame) }

// TextDecoder treats every frame as already-decoded text, which is what
// keyboard-wedge hardware scanners deliver.
var TextDecoder = DecoderFunc(func(f Frame) (string, bool, error) {
	if len(f) == 0 {
		return "", false, nil
	}
	return string(f), true, nil
})

// Scanner runs the per-frame capture loop.
type Scanner struct {
	cameras       *CameraManager
	decoder       Decoder
	frameInterval time.Duration
	logger        *zap.Logger
}

// NewScanner builds a scanner. frameInterval throttles capture; zero polls as fast as frames arrive.
func NewScanner(cameras *CameraManager, decoder Decoder, frameInterval time.Duration, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cameras: cameras, decoder: decoder, frameInterval: frameInterval, logger: logger}
}

// Run scans into sess until every chunk is collected and returns the assembled
// payload. It stops on cancellation, on a fatal chunk conflict, when the stream
// ends, or when a newer scan takes the camera; the stream is released on every
// path and no frame is processed once ctx is done.
func (s *Scanner) Run(ctx context.Context, sess *Session, onProgress func(Progress)) (string, error) {
	lease, err := s.cameras.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	var tick <-chan time.Time
	if s.frameInterval > 0 {
		t := time.NewTicker(s.frameInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-lease.Preempted():
				return "", ErrPreempted
			case <-tick:
			}
		}

		frame, err := lease.Stream().NextFrame(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		select {
		case <-lease.Preempted():
			return "", ErrPreempted
		default:
		}
		if err != nil {
			return "", fmt.Errorf("failed to read frame: %w", err)
		}

		text, found, err := s.decoder.Decode(frame)
		if err != nil {
			s.logger.Debug("frame decode failed", zap.Error(err))
			continue
		}
		if !found {
			continue
		}

		outcome, err := sess.Add(text)
		if err != nil {
			if IsFatal(err) {
				s.logger.Error("scan session aborted", zap.Error(err))
				return "", err
			}
			s.logger.Warn("unreadable backup chunk", zap.Error(err))
			continue
		}
		if outcome != OutcomeAccepted {
			continue
		}

		p := sess.Progress()
		s.logger.Info("chunk collected", zap.Int("received", p.Received), zap.Int("total", p.Total))
		if onProgress != nil {
			onProgress(p)
		}
		if p.Complete {
			return sess.Payload()
		}
	}
}

// IsStreamEnd reports whether err came from a stream that ran out of frames.
func IsStreamEnd(err error) bool {
	return errors.Is(err, ErrStreamEnded)
}

// ErrStreamEnded is returned by streams that have no more frames.
var ErrStreamEnded = errors.New("stream ended")
