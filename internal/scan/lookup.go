// Package scan resolves scanned codes against the backend on behalf of a
// workflow, reporting exactly one outcome per code.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/scanner"
)

// ErrEmptyCode is reported for a blank code.
var ErrEmptyCode = errors.New("scanned code is empty")

// Resolver resolves a code against entities of one scan type.
type Resolver interface {
	Lookup(ctx context.Context, code string, scanType model.ScanType) (model.ScanResolution, error)
}

// Handlers receive the outcome of each resolved code.
type Handlers struct {
	OnSuccess func(found *model.Found)
	OnError   func(err error)
}

// Lookup ties a scanner to the backend lookup for a fixed scan type.
type Lookup struct {
	resolver Resolver
	scanType model.ScanType
	handlers Handlers

	mu      sync.Mutex
	open    bool
	loading bool
	data    model.ScanResolution
	err     error
}

// New creates a closed Lookup resolving codes as scanType.
func New(resolver Resolver, scanType model.ScanType, handlers Handlers) *Lookup {
	return &Lookup{resolver: resolver, scanType: scanType, handlers: handlers}
}

// ScanType returns the entity class codes are resolved against.
func (l *Lookup) ScanType() model.ScanType {
	return l.scanType
}

// Open shows the scanner and clears the previous error.
func (l *Lookup) Open() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
	l.err = nil
}

// Close hides the scanner.
func (l *Lookup) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = false
}

func (l *Lookup) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *Lookup) IsLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// ScannedData returns the last resolution, found or not.
func (l *Lookup) ScannedData() model.ScanResolution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.data
}

// Err returns the last resolution error.
func (l *Lookup) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// HandleScanSuccess resolves code and reports the outcome through the
// handlers: OnSuccess for a found entity, OnError for a not-found code or a
// failed call. The scanner is closed on both resolutions and stays open on a
// failed call so the operator can try again. The returned error is the one
// passed to OnError.
func (l *Lookup) HandleScanSuccess(ctx context.Context, code string) error {
	code = scanner.NormalizeCode(code)
	if code == "" {
		return l.fail(ErrEmptyCode)
	}

	l.mu.Lock()
	l.loading = true
	l.err = nil
	l.mu.Unlock()

	res, err := l.resolve(ctx, code)
	if err != nil {
		slog.Warn("barcode lookup failed", "code", code, "scan_type", l.scanType, "error", err)
		return l.fail(err)
	}

	switch r := res.(type) {
	case *model.Found:
		l.mu.Lock()
		l.data = r
		l.open = false
		l.mu.Unlock()
		if l.handlers.OnSuccess != nil {
			l.handlers.OnSuccess(r)
		}
		return nil

	case *model.NotFound:
		l.mu.Lock()
		l.data = r
		l.open = false
		l.mu.Unlock()
		return l.fail(errors.New(r.Message))

	default:
		return l.fail(fmt.Errorf("unexpected lookup result %T", res))
	}
}

// resolve calls the resolver and clears the loading flag on every path.
func (l *Lookup) resolve(ctx context.Context, code string) (res model.ScanResolution, err error) {
	defer func() {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
	}()

	res, err = l.resolver.Lookup(ctx, code, l.scanType)
	if err == nil {
		return res, nil
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return nil, err
	}
	return nil, fmt.Errorf("lookup failed: %w", err)
}

// HandleScanError reports an acquisition problem. Decode noise is dropped.
func (l *Lookup) HandleScanError(err error) {
	if err == nil || errors.Is(err, scanner.ErrNoCode) {
		return
	}
	l.fail(err)
}

func (l *Lookup) fail(err error) error {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	if l.handlers.OnError != nil {
		l.handlers.OnError(err)
	}
	return err
}

// ScannerCallbacks adapts l to a scanner, resolving every acquired code
// with ctx.
func (l *Lookup) ScannerCallbacks(ctx context.Context) scanner.Callbacks {
	return scanner.Callbacks{
		OnScanSuccess: func(code string, _ *scanner.Result) {
			l.HandleScanSuccess(ctx, code)
		},
		OnScanError: l.HandleScanError,
	}
}
