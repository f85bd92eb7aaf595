package web

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/branch"
	"github.com/erazemk/scanpoint/internal/scanner"
	"github.com/erazemk/scanpoint/internal/store"
	"github.com/erazemk/scanpoint/internal/transfer"
)

// Workspace is the state one portal session works in. Nothing in it is
// shared with other sessions.
type Workspace struct {
	Warehouse *transfer.Workflow
	Branch    *branch.Workflow

	WarehouseScanner *Panel
	BranchScanner    *Panel

	expires time.Time

	mu    sync.Mutex
	flash string
}

// Flash sets a one-off message for the next page render.
func (w *Workspace) Flash(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flash = msg
}

// TakeFlash returns and clears the pending message.
func (w *Workspace) TakeFlash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := w.flash
	w.flash = ""
	return msg
}

// Panel is a scanner as shown on a page: the state machine plus the
// inline hint shown under it.
type Panel struct {
	Scanner *scanner.Scanner

	mu       sync.Mutex
	hint     string
	mode     scanner.Mode
	lastCode string
}

func newPanel(decoder scanner.Decoder, viewport float64, cb scanner.Callbacks) *Panel {
	p := &Panel{}
	onSuccess := cb.OnScanSuccess
	cb.OnScanSuccess = func(code string, raw *scanner.Result) {
		p.mu.Lock()
		p.lastCode = code
		p.mu.Unlock()
		if onSuccess != nil {
			onSuccess(code, raw)
		}
	}
	p.Scanner = scanner.New(scanner.Options{
		Camera:    scanner.StillCamera{},
		Decoder:   decoder,
		Viewport:  viewport,
		Callbacks: cb,
	})
	return p
}

// LastCode returns the most recently acquired code.
func (p *Panel) LastCode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCode
}

// Hint returns the message shown inside the scanner panel.
func (p *Panel) Hint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hint
}

func (p *Panel) setHint(h string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hint = h
}

// Act applies a panel button: open, camera, device, back or close.
func (p *Panel) Act(ctx context.Context, action string) error {
	p.setHint("")
	s := p.Scanner
	switch action {
	case "open":
		if s.State() != scanner.Closed {
			return nil
		}
		return s.Open(ctx, "")
	case "camera":
		p.rememberMode(scanner.ModeCamera)
		err := s.SelectCamera(ctx)
		if err != nil && !errors.Is(err, scanner.ErrWrongState) {
			p.setHint(acquisitionMessage(err))
		}
		return err
	case "device":
		p.rememberMode(scanner.ModeDevice)
		return s.SelectDevice()
	case "back":
		return s.Back()
	case "close":
		s.Close()
		return nil
	default:
		return errors.New("unknown scanner action")
	}
}

func (p *Panel) rememberMode(m scanner.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m
}

// Reopen opens the scanner again in the last used mode, as after a failed
// lookup where the operator is expected to retry.
func (p *Panel) Reopen(ctx context.Context) {
	p.mu.Lock()
	mode := p.mode
	p.mu.Unlock()
	if p.Scanner.State() == scanner.Closed {
		p.Scanner.Open(ctx, mode)
	}
}

// SubmitCode accepts typed input in device mode. Blank input is rejected
// inline.
func (p *Panel) SubmitCode(code string) error {
	p.setHint("")
	if err := p.Scanner.SetInput(code); err != nil {
		return err
	}
	err := p.Scanner.Submit()
	if errors.Is(err, scanner.ErrEmptyInput) {
		p.setHint("Enter or scan a code first.")
	}
	return err
}

// SubmitPhoto decodes an uploaded photo in camera mode. A photo without a
// readable code keeps the camera open with a hint.
func (p *Panel) SubmitPhoto(img image.Image) error {
	p.setHint("")
	err := p.Scanner.Capture(img)
	switch {
	case errors.Is(err, scanner.ErrNoCode):
		p.setHint("No code found in the photo. Move closer and try again.")
	case err != nil && !errors.Is(err, scanner.ErrWrongState):
		p.setHint(acquisitionMessage(err))
	}
	return err
}

func acquisitionMessage(err error) string {
	switch {
	case errors.Is(err, scanner.ErrPermissionDenied):
		return "Camera access was denied. Allow camera access or use a scanner device."
	case errors.Is(err, scanner.ErrCameraUnavailable):
		return "The camera could not be started. Use a scanner device instead."
	default:
		return err.Error()
	}
}

// Workspaces holds one Workspace per session.
type Workspaces struct {
	client   *backend.Client
	branchID string
	decoder  scanner.Decoder
	viewport float64

	mu     sync.Mutex
	spaces map[string]*Workspace
}

// NewWorkspaces creates an empty set of workspaces. Each workspace talks to
// the backend with its own session's token.
func NewWorkspaces(client *backend.Client, branchID string, decoder scanner.Decoder, viewport float64) *Workspaces {
	return &Workspaces{
		client:   client,
		branchID: branchID,
		decoder:  decoder,
		viewport: viewport,
		spaces:   make(map[string]*Workspace),
	}
}

// Get returns the session's workspace, creating it on first use.
func (ws *Workspaces) Get(sess *store.Session) *Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if w, ok := ws.spaces[sess.ID]; ok {
		return w
	}

	client := ws.client.WithTokens(backend.StaticToken(sess.BackendToken))
	warehouse := transfer.New(client)
	br := branch.New(client, ws.branchID)

	// Lookups outlive the request that triggered them; the client timeout
	// bounds them.
	lookupCtx := context.Background()
	w := &Workspace{
		expires:          sess.ExpiresAt,
		Warehouse:        warehouse,
		Branch:           br,
		WarehouseScanner: newPanel(ws.decoder, ws.viewport, warehouse.Lookup().ScannerCallbacks(lookupCtx)),
		BranchScanner:    newPanel(ws.decoder, ws.viewport, br.ScannerCallbacks()),
	}
	ws.spaces[sess.ID] = w
	return w
}

// Drop discards a session's workspace, closing its scanners.
func (ws *Workspaces) Drop(sessionID string) {
	ws.mu.Lock()
	w, ok := ws.spaces[sessionID]
	delete(ws.spaces, sessionID)
	ws.mu.Unlock()

	if ok {
		w.close()
	}
}

func (w *Workspace) close() {
	w.WarehouseScanner.Scanner.Close()
	w.BranchScanner.Scanner.Close()
	w.Warehouse.Reset()
	w.Branch.Reset()
}

// DropExpired discards workspaces whose session expired before now and
// returns how many were dropped.
func (ws *Workspaces) DropExpired(now time.Time) int {
	ws.mu.Lock()
	var expired []*Workspace
	for id, w := range ws.spaces {
		if !w.expires.IsZero() && !w.expires.After(now) {
			expired = append(expired, w)
			delete(ws.spaces, id)
		}
	}
	ws.mu.Unlock()

	for _, w := range expired {
		w.close()
	}
	return len(expired)
}

// Len returns the number of live workspaces.
func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.spaces)
}
