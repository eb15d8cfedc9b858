package scan

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"
)

// LineCamera is a Camera over a line-oriented reader: each line is one frame.
// Hardware scanners in keyboard mode produce exactly that on stdin.
type LineCamera struct {
	r io.Reader

	mu     sync.Mutex
	opened bool
}

// NewLineCamera reads frames from r. Only one stream can be opened.
func NewLineCamera(r io.Reader) *LineCamera {
	return &LineCamera{r: r}
}

// Open starts reading r in the background. A read blocked on r does not
// hold up NextFrame or Close; the reader goroutine exits at the next line
// or at end of input.
func (c *LineCamera) Open(context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil, ErrStreamEnded
	}
	c.opened = true

	s := &lineStream{frames: make(chan Frame), done: make(chan struct{})}
	go s.read(c.r)
	return s, nil
}

type lineStream struct {
	frames chan Frame
	err    error // set before frames is closed

	once sync.Once
	done chan struct{}
}

func (s *lineStream) read(r io.Reader) {
	defer close(s.frames)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for sc.Scan() {
		select {
		case s.frames <- Frame(bytes.Clone(sc.Bytes())):
		case <-s.done:
			return
		}
	}
	s.err = sc.Err()
}

func (s *lineStream) NextFrame(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrStreamEnded
	case f, ok := <-s.frames:
		if !ok {
			if s.err != nil {
				return nil, s.err
			}
			return nil, ErrStreamEnded
		}
		return f, nil
	}
}

func (s *lineStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
