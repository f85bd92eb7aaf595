package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/scanner"
)

type fakeResolver struct {
	res   model.ScanResolution
	err   error
	calls int
	codes []string
	types []model.ScanType
	// during runs inside Lookup, while the call is in flight.
	during func()
}

func (f *fakeResolver) Lookup(ctx context.Context, code string, scanType model.ScanType) (model.ScanResolution, error) {
	f.calls++
	f.codes = append(f.codes, code)
	f.types = append(f.types, scanType)
	if f.during != nil {
		f.during()
	}
	return f.res, f.err
}

type outcomes struct {
	found []*model.Found
	errs  []error
}

func (o *outcomes) handlers() Handlers {
	return Handlers{
		OnSuccess: func(f *model.Found) { o.found = append(o.found, f) },
		OnError:   func(err error) { o.errs = append(o.errs, err) },
	}
}

func (o *outcomes) total() int {
	return len(o.found) + len(o.errs)
}

func TestFoundClosesAndReportsSuccess(t *testing.T) {
	found := &model.Found{Code: "SN-1", ItemType: model.ScanTypeSerializedItem, Item: &model.SerializedItem{ID: "i1"}}
	r := &fakeResolver{res: found}
	var o outcomes
	l := New(r, model.ScanTypeSerializedItem, o.handlers())

	var loadingDuring bool
	r.during = func() { loadingDuring = l.IsLoading() }

	l.Open()
	if err := l.HandleScanSuccess(context.Background(), "  SN-1 "); err != nil {
		t.Fatalf("HandleScanSuccess: %v", err)
	}

	if !loadingDuring {
		t.Error("expected loading while the lookup is in flight")
	}
	if l.IsLoading() {
		t.Error("loading must be cleared")
	}
	if l.IsOpen() {
		t.Error("expected scanner closed after found")
	}
	if len(o.found) != 1 || o.total() != 1 {
		t.Fatalf("expected exactly one success, got %+v", o)
	}
	if l.ScannedData() != found {
		t.Error("expected result stored")
	}
	if r.codes[0] != "SN-1" || r.types[0] != model.ScanTypeSerializedItem {
		t.Errorf("unexpected lookup call %q %q", r.codes[0], r.types[0])
	}
}

func TestNotFoundClosesAndReportsError(t *testing.T) {
	r := &fakeResolver{res: &model.NotFound{Code: "X", Message: "No serialized item found for code X"}}
	var o outcomes
	l := New(r, model.ScanTypeSerializedItem, o.handlers())

	l.Open()
	err := l.HandleScanSuccess(context.Background(), "X")
	if err == nil || err.Error() != "No serialized item found for code X" {
		t.Fatalf("expected not-found message, got %v", err)
	}
	if l.IsOpen() {
		t.Error("expected scanner closed after not-found")
	}
	if l.IsLoading() {
		t.Error("loading must be cleared")
	}
	if len(o.errs) != 1 || o.total() != 1 {
		t.Fatalf("expected exactly one error, got %+v", o)
	}
	if _, ok := l.ScannedData().(*model.NotFound); !ok {
		t.Errorf("expected NotFound stored, got %T", l.ScannedData())
	}
}

func TestTransportFailureStaysOpen(t *testing.T) {
	r := &fakeResolver{err: errors.New("connection refused")}
	var o outcomes
	l := New(r, model.ScanTypeProduct, o.handlers())

	l.Open()
	err := l.HandleScanSuccess(context.Background(), "P-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !l.IsOpen() {
		t.Error("scanner must stay open after a failed call")
	}
	if l.IsLoading() {
		t.Error("loading must be cleared")
	}
	if len(o.errs) != 1 || o.total() != 1 {
		t.Fatalf("expected exactly one error, got %+v", o)
	}
	if r.calls != 1 {
		t.Errorf("expected no retries, got %d calls", r.calls)
	}
	if !errors.Is(l.Err(), err) {
		t.Errorf("expected Err to hold the failure, got %v", l.Err())
	}
}

func TestBackendMessageVerbatim(t *testing.T) {
	r := &fakeResolver{err: &backend.APIError{Status: 502, Message: "upstream timeout"}}
	var o outcomes
	l := New(r, model.ScanTypeProduct, o.handlers())

	err := l.HandleScanSuccess(context.Background(), "P-1")
	if err == nil || err.Error() != "upstream timeout" {
		t.Fatalf("expected verbatim backend message, got %v", err)
	}
}

func TestEmptyCodeNotLookedUp(t *testing.T) {
	r := &fakeResolver{}
	var o outcomes
	l := New(r, model.ScanTypeProduct, o.handlers())

	if err := l.HandleScanSuccess(context.Background(), "   "); !errors.Is(err, ErrEmptyCode) {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}
	if r.calls != 0 {
		t.Error("blank codes must not reach the backend")
	}
	if o.total() != 1 {
		t.Errorf("expected one outcome, got %+v", o)
	}
}

func TestScanErrorFiltersNoise(t *testing.T) {
	var o outcomes
	l := New(&fakeResolver{}, model.ScanTypeProduct, o.handlers())

	l.HandleScanError(scanner.ErrNoCode)
	l.HandleScanError(nil)
	if len(o.errs) != 0 {
		t.Fatalf("decode noise must be dropped, got %v", o.errs)
	}

	l.HandleScanError(scanner.ErrPermissionDenied)
	if len(o.errs) != 1 || !errors.Is(l.Err(), scanner.ErrPermissionDenied) {
		t.Fatalf("expected permission error reported, got %v", o.errs)
	}
}

func TestOpenClearsError(t *testing.T) {
	r := &fakeResolver{err: errors.New("boom")}
	l := New(r, model.ScanTypeProduct, Handlers{})
	l.HandleScanSuccess(context.Background(), "A")
	if l.Err() == nil {
		t.Fatal("expected error")
	}
	l.Open()
	if l.Err() != nil {
		t.Error("expected Open to clear the error")
	}
}

func TestScannerCallbacksBridge(t *testing.T) {
	found := &model.Found{Code: "SN-9", ItemType: model.ScanTypeSerializedItem, Item: &model.SerializedItem{ID: "i9"}}
	r := &fakeResolver{res: found}
	var o outcomes
	l := New(r, model.ScanTypeSerializedItem, o.handlers())

	s := scanner.New(scanner.Options{Callbacks: l.ScannerCallbacks(context.Background())})
	l.Open()
	s.Open(context.Background(), scanner.ModeDevice)
	s.SetInput("SN-9")
	if err := s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(o.found) != 1 || o.found[0] != found {
		t.Fatalf("expected the scan to resolve, got %+v", o)
	}
	if l.IsOpen() {
		t.Error("expected lookup closed")
	}
}
