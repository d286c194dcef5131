package capture

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
)

// FeedCamera is a Camera whose frames are pushed by a client connection.
// Only one stream can be open at a time; pushed frames replace the previous
// one so a slow scan loop always sees the newest frame.
type FeedCamera struct {
	mu     sync.Mutex
	active *feedStream
}

// NewFeedCamera creates a feed camera with no open stream
func NewFeedCamera() *FeedCamera {
	return &FeedCamera{}
}

// Acquire opens the single stream of the feed
func (c *FeedCamera) Acquire(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && !c.active.closed.Load() {
		return nil, ErrCameraBusy
	}
	c.active = &feedStream{}
	return c.active, nil
}

// Active reports whether a stream is open
func (c *FeedCamera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && !c.active.closed.Load()
}

// Push stores img as the latest frame and returns its sequence number.
// The feed takes ownership of img.
func (c *FeedCamera) Push(img image.Image) (uint64, error) {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil || s.closed.Load() {
		return 0, ErrNoStream
	}

	rgba := analyzer.ToRGBA(img)
	if rgba == nil {
		return 0, fmt.Errorf("empty frame")
	}
	return s.push(rgba), nil
}

// PushEncoded decodes a JPEG, PNG or WebP frame and pushes it
func (c *FeedCamera) PushEncoded(data []byte) (uint64, error) {
	if !c.Active() {
		return 0, ErrNoStream
	}
	img, err := DecodeFrame(data)
	if err != nil {
		return 0, err
	}
	return c.Push(img)
}

type feedStream struct {
	latest atomic.Pointer[Frame]
	seq    atomic.Uint64
	closed atomic.Bool
}

func (s *feedStream) push(img *image.RGBA) uint64 {
	seq := s.seq.Add(1)
	s.latest.Store(&Frame{Image: img, Seq: seq, CapturedAt: time.Now()})
	return seq
}

func (s *feedStream) LatestFrame() (Frame, bool) {
	if s.closed.Load() {
		return Frame{}, false
	}
	f := s.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

func (s *feedStream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.latest.Store(nil)
	}
	return nil
}
