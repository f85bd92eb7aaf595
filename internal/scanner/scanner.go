// Package scanner acquires one decoded code at a time, either from a camera
// through an optical decoder or from a keyboard-wedge device, and reports it
// through a single callback regardless of source.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// State is the scanner's position in its lifecycle.
type State int

// Scanner states.
const (
	Closed State = iota
	ModeSelect
	CameraActive
	DeviceActive
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case ModeSelect:
		return "mode_select"
	case CameraActive:
		return "camera"
	case DeviceActive:
		return "device"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode is an acquisition source.
type Mode string

// Acquisition modes.
const (
	ModeCamera Mode = "camera"
	ModeDevice Mode = "device"
)

var (
	// ErrPermissionDenied is returned by cameras the operator may not use.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrCameraUnavailable is returned when a camera cannot be initialised.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNoCode is returned by decoders for frames with nothing decodable.
	ErrNoCode = errors.New("no code found in frame")
	// ErrEmptyInput is returned when device input is blank.
	ErrEmptyInput = errors.New("input is empty")
	// ErrWrongState is returned when an operation does not apply to the
	// current state.
	ErrWrongState = errors.New("operation not valid in current scanner state")
)

// Result is one successful acquisition.
type Result struct {
	Text   string
	Format string
	Source Mode
}

// Callbacks receive the scanner's outcomes. Callbacks run on the goroutine
// that produced the outcome and must not call Close or Back on the same
// Scanner from OnScanError.
type Callbacks struct {
	// OnScanSuccess fires exactly once per successful acquisition.
	OnScanSuccess func(code string, raw *Result)
	// OnScanError reports non-fatal camera problems. It may fire many times.
	OnScanError func(err error)
	// OnClose fires whenever the scanner reaches Closed.
	OnClose func()
}

// Options configure a Scanner.
type Options struct {
	Camera  Camera
	Decoder Decoder
	// Viewport is the centred fraction of each frame searched for a code.
	Viewport float64
	Callbacks
}

// Scanner is the dual-mode acquisition state machine. It is safe for
// concurrent use.
type Scanner struct {
	opts Options

	mu      sync.Mutex
	state   State
	err     error
	input   []rune
	session *cameraSession
	// gen increases every time an active state is left, so work started in
	// an earlier state can tell it is stale.
	gen uint64

	// cbMu is held while OnScanError runs so Close and Back can wait it out.
	cbMu sync.Mutex
}

// New creates a closed scanner.
func New(opts Options) *Scanner {
	if opts.Viewport <= 0 || opts.Viewport > 1 {
		opts.Viewport = 1
	}
	return &Scanner{opts: opts}
}

// State returns the current state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the blocking acquisition error shown while CameraActive, if any.
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Open opens the scanner. With an empty mode it waits in ModeSelect;
// otherwise it enters that mode directly.
func (s *Scanner) Open(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	if s.state != Closed {
		s.mu.Unlock()
		return ErrWrongState
	}
	s.state = ModeSelect
	s.err = nil
	s.input = nil
	s.mu.Unlock()

	switch mode {
	case "":
		return nil
	case ModeCamera:
		return s.SelectCamera(ctx)
	case ModeDevice:
		return s.SelectDevice()
	default:
		return fmt.Errorf("unknown scan mode %q", mode)
	}
}

// SelectDevice moves from ModeSelect to DeviceActive.
func (s *Scanner) SelectDevice() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ModeSelect {
		return ErrWrongState
	}
	s.state = DeviceActive
	s.input = nil
	s.err = nil
	return nil
}

// SelectCamera moves from ModeSelect to CameraActive, acquires the camera
// and starts the decode loop. Acquisition failures are kept as the blocking
// error (see Err) and returned; the scanner stays in CameraActive until the
// user goes Back or closes it.
func (s *Scanner) SelectCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ModeSelect {
		s.mu.Unlock()
		return ErrWrongState
	}
	s.state = CameraActive
	s.err = nil
	gen := s.gen
	cam := s.opts.Camera
	s.mu.Unlock()

	if cam == nil || s.opts.Decoder == nil {
		return s.failAcquisition(gen, fmt.Errorf("%w: no camera configured", ErrCameraUnavailable))
	}

	stream, err := cam.Open(ctx)
	if err != nil {
		return s.failAcquisition(gen, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sess := &cameraSession{stream: stream, cancel: cancel}

	s.mu.Lock()
	if s.gen != gen || s.state != CameraActive {
		// Closed or backed out while the camera was starting.
		s.mu.Unlock()
		sess.release()
		return ErrWrongState
	}
	s.session = sess
	s.mu.Unlock()

	go s.decodeLoop(loopCtx, sess, gen)
	return nil
}

func (s *Scanner) failAcquisition(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.state == CameraActive {
		s.err = err
	}
	slog.Warn("camera acquisition failed", "error", err)
	return err
}

// Back returns from an active state to ModeSelect, releasing the camera and
// clearing any typed input.
func (s *Scanner) Back() error {
	s.mu.Lock()
	if s.state != CameraActive && s.state != DeviceActive {
		s.mu.Unlock()
		return ErrWrongState
	}
	sess := s.leave(ModeSelect)
	s.mu.Unlock()

	sess.release()
	s.waitCallbacks()
	return nil
}

// Close closes the scanner from any state. The camera is released and all
// input cleared before Close returns; no acquisition callback fires
// afterwards. Closing a closed scanner is a no-op.
func (s *Scanner) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	sess := s.leave(Closed)
	s.mu.Unlock()

	sess.release()
	s.waitCallbacks()
	if s.opts.OnClose != nil {
		s.opts.OnClose()
	}
}

// leave switches to next and detaches the camera session. Callers hold mu.
func (s *Scanner) leave(next State) *cameraSession {
	s.gen++
	s.state = next
	s.err = nil
	s.input = nil
	sess := s.session
	s.session = nil
	return sess
}

// waitCallbacks blocks until an in-flight OnScanError has returned.
func (s *Scanner) waitCallbacks() {
	s.cbMu.Lock()
	s.cbMu.Unlock()
}

// Input returns the current device input buffer.
func (s *Scanner) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.input)
}

// SetInput replaces the device input buffer, as manual typing does.
func (s *Scanner) SetInput(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != DeviceActive {
		return ErrWrongState
	}
	s.input = []rune(text)
	return nil
}

// CanSubmit reports whether the device input would be accepted.
func (s *Scanner) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == DeviceActive && NormalizeCode(string(s.input)) != ""
}

// Key feeds one keystroke from a keyboard-wedge device. Enter submits the
// buffer; whitespace-only buffers are ignored on Enter.
func (s *Scanner) Key(r rune) error {
	if r == '\n' || r == '\r' {
		err := s.Submit()
		if errors.Is(err, ErrEmptyInput) {
			return nil
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != DeviceActive {
		return ErrWrongState
	}
	s.input = append(s.input, r)
	return nil
}

// Submit accepts the device input buffer, trimmed. Blank input is rejected
// with ErrEmptyInput and leaves the scanner in DeviceActive.
func (s *Scanner) Submit() error {
	s.mu.Lock()
	if s.state != DeviceActive {
		s.mu.Unlock()
		return ErrWrongState
	}
	code := NormalizeCode(string(s.input))
	if code == "" {
		s.input = nil
		s.mu.Unlock()
		return ErrEmptyInput
	}
	s.leave(Closed)
	s.mu.Unlock()

	s.deliver(code, &Result{Text: code, Source: ModeDevice})
	return nil
}

// Feed reads keystrokes from r until one code is accepted, r is exhausted
// (io.EOF) or the scanner leaves DeviceActive (ErrWrongState). Only runes up
// to and including the accepting Enter are consumed.
func (s *Scanner) Feed(r io.RuneReader) error {
	for {
		if s.State() != DeviceActive {
			return ErrWrongState
		}
		ch, _, err := r.ReadRune()
		if err != nil {
			return err
		}
		if err := s.Key(ch); err != nil {
			return err
		}
		if (ch == '\n' || ch == '\r') && s.State() == Closed {
			return nil
		}
	}
}

// deliver runs the success and close callbacks. The scanner is already
// Closed when it is called.
func (s *Scanner) deliver(code string, raw *Result) {
	if s.opts.OnScanSuccess != nil {
		s.opts.OnScanSuccess(code, raw)
	}
	if s.opts.OnClose != nil {
		s.opts.OnClose()
	}
}

// NormalizeCode trims surrounding whitespace from a scanned or typed code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}
