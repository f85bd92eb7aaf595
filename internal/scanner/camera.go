package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"time"
)

// Camera is an optical source the scanner acquires exclusively while in
// CameraActive.
type Camera interface {
	// Open acquires the device. It returns ErrPermissionDenied when the
	// operator may not use it and ErrCameraUnavailable when it cannot start.
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames from an acquired camera. Close releases the device.
type Stream interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// cameraSession owns one acquired stream and its decode loop.
type cameraSession struct {
	stream Stream
	cancel context.CancelFunc
	once   sync.Once
}

// release stops the decode loop and releases the camera. Safe on nil and
// safe to call more than once.
func (cs *cameraSession) release() {
	if cs == nil {
		return
	}
	cs.once.Do(func() {
		cs.cancel()
		cs.stream.Close()
	})
}

func (s *Scanner) decodeLoop(ctx context.Context, sess *cameraSession, gen uint64) {
	defer sess.release()

	for {
		frame, err := sess.stream.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) || errors.Is(err, io.EOF) {
				s.failAcquisition(gen, err)
				return
			}
			s.reportError(gen, err)
			continue
		}

		res, err := DecodeFrame(s.opts.Decoder, frame, s.opts.Viewport)
		if errors.Is(err, ErrNoCode) {
			continue
		}
		if err != nil {
			s.reportError(gen, err)
			continue
		}

		s.emitCamera(gen, res)
		return
	}
}

// reportError passes a non-fatal camera error to OnScanError unless the
// session has been left.
func (s *Scanner) reportError(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen || s.state != CameraActive {
		s.mu.Unlock()
		return
	}
	s.cbMu.Lock()
	s.mu.Unlock()
	defer s.cbMu.Unlock()

	if s.opts.OnScanError != nil {
		s.opts.OnScanError(err)
	}
}

// emitCamera closes the scanner and delivers the first decoded code.
func (s *Scanner) emitCamera(gen uint64, res *Result) {
	s.mu.Lock()
	if s.gen != gen || s.state != CameraActive {
		s.mu.Unlock()
		return
	}
	sess := s.leave(Closed)
	s.mu.Unlock()

	sess.release()
	res.Source = ModeCamera
	s.deliver(res.Text, res)
}

// SnapshotCamera polls a still-image URL, as exposed by most IP cameras.
type SnapshotCamera struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
}

// Open fetches one frame to verify access before the stream is handed out,
// so a denied camera fails immediately instead of silently producing nothing.
func (c *SnapshotCamera) Open(ctx context.Context) (Stream, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("%w: no snapshot url", ErrCameraUnavailable)
	}
	st := &snapshotStream{cam: c}
	first, err := st.fetch(ctx)
	if err != nil {
		return nil, err
	}
	st.pending = first
	return st, nil
}

type snapshotStream struct {
	cam     *SnapshotCamera
	pending image.Image

	mu     sync.Mutex
	closed bool
}

func (st *snapshotStream) Next(ctx context.Context) (image.Image, error) {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil, io.EOF
	}
	if st.pending != nil {
		img := st.pending
		st.pending = nil
		st.mu.Unlock()
		return img, nil
	}
	st.mu.Unlock()

	interval := st.cam.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return st.fetch(ctx)
}

func (st *snapshotStream) fetch(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.cam.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	client := st.cam.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrPermissionDenied
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: snapshot returned status %d", ErrCameraUnavailable, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return img, nil
}

func (st *snapshotStream) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closed = true
	st.pending = nil
	return nil
}
