package scanner

import (
	"context"
	"errors"
	"image"
)

// StillCamera is a camera without a live feed. Frames reach the scanner
// through Capture, e.g. photos uploaded from a phone.
type StillCamera struct{}

// Open implements Camera.
func (StillCamera) Open(context.Context) (Stream, error) {
	return idleStream{}, nil
}

type idleStream struct{}

func (idleStream) Next(ctx context.Context) (image.Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (idleStream) Close() error { return nil }

// Capture decodes a single still frame while CameraActive. A decoded code is
// delivered exactly like one found by the decode loop and Capture returns
// once the callbacks have run. A frame without a code returns ErrNoCode and
// the scanner stays in CameraActive.
func (s *Scanner) Capture(img image.Image) error {
	s.mu.Lock()
	if s.state != CameraActive {
		s.mu.Unlock()
		return ErrWrongState
	}
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	gen := s.gen
	s.mu.Unlock()

	if s.opts.Decoder == nil {
		return ErrCameraUnavailable
	}
	res, err := DecodeFrame(s.opts.Decoder, img, s.opts.Viewport)
	if err != nil {
		if !errors.Is(err, ErrNoCode) {
			s.reportError(gen, err)
		}
		return err
	}

	s.mu.Lock()
	if s.gen != gen || s.state != CameraActive {
		s.mu.Unlock()
		return ErrWrongState
	}
	s.mu.Unlock()

	s.emitCamera(gen, res)
	return nil
}
