// Package branch implements the retailer-branch checkout and check-in forms.
// Unlike the warehouse workflow no item is loaded: the serial number is taken
// as typed or scanned and validated by the backend on submit.
package branch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/scanner"
	"github.com/erazemk/scanpoint/internal/validation"
)

var (
	ErrBusy       = errors.New("another request for this form is still running")
	ErrUnknownTab = errors.New("unknown tab")
	ErrStale      = errors.New("response no longer applies")
)

// Tab is one of the two branch forms.
type Tab string

const (
	TabCheckout Tab = "checkout"
	TabCheckin  Tab = "checkin"
)

// Backend is the part of the CRM backend the workflow uses.
type Backend interface {
	BranchCheckout(ctx context.Context, branchID string, req backend.BranchCheckoutRequest) (string, error)
	BranchCheckin(ctx context.Context, branchID string, req backend.BranchCheckinRequest) (string, error)
}

// CheckoutForm is a sale-style dispatch to a customer.
type CheckoutForm struct {
	SerialNumber  string
	CustomerName  string
	CustomerPhone string
	Notes         string
}

// CheckinForm records an item received at the branch.
type CheckinForm struct {
	SerialNumber string
	Notes        string
}

// Status is the outcome shown under one form.
type Status struct {
	Busy    bool
	Message string
	Err     error
}

// View is a snapshot of both tabs.
type View struct {
	Tab            Tab
	Checkout       CheckoutForm
	Checkin        CheckinForm
	CheckoutStatus Status
	CheckinStatus  Status
}

// Workflow holds one operator's branch forms.
type Workflow struct {
	backend  Backend
	branchID string

	mu             sync.Mutex
	tab            Tab
	checkout       CheckoutForm
	checkin        CheckinForm
	checkoutStatus Status
	checkinStatus  Status
	gen            uint64
}

// New creates a workflow for the given branch with the checkout tab active.
func New(b Backend, branchID string) *Workflow {
	return &Workflow{backend: b, branchID: branchID, tab: TabCheckout}
}

// BranchID returns the branch the forms submit to.
func (w *Workflow) BranchID() string {
	return w.branchID
}

func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return View{
		Tab:            w.tab,
		Checkout:       w.checkout,
		Checkin:        w.checkin,
		CheckoutStatus: w.checkoutStatus,
		CheckinStatus:  w.checkinStatus,
	}
}

// SetTab switches the active tab. Form contents of both tabs are kept.
func (w *Workflow) SetTab(tab Tab) error {
	if tab != TabCheckout && tab != TabCheckin {
		return ErrUnknownTab
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tab = tab
	return nil
}

func (w *Workflow) SetCheckoutForm(f CheckoutForm) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkout = f
}

func (w *Workflow) SetCheckinForm(f CheckinForm) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkin = f
}

// ScanInto puts a scanned code into the serial number of the active tab.
// No lookup is made.
func (w *Workflow) ScanInto(code string) {
	code = scanner.NormalizeCode(code)
	if code == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.tab {
	case TabCheckin:
		w.checkin.SerialNumber = code
	default:
		w.checkout.SerialNumber = code
	}
}

// ScannerCallbacks feeds acquired codes into the active tab.
func (w *Workflow) ScannerCallbacks() scanner.Callbacks {
	return scanner.Callbacks{
		OnScanSuccess: func(code string, _ *scanner.Result) { w.ScanInto(code) },
	}
}

func validateCheckout(f CheckoutForm) error {
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "serial_number", f.SerialNumber)
	validation.RequireField(&ve, "customer_name", f.CustomerName)
	validation.ValidateMaxLength(&ve, "customer_name", f.CustomerName, 200)
	validation.ValidateMaxLength(&ve, "customer_phone", f.CustomerPhone, 50)
	validation.ValidateMaxLength(&ve, "notes", f.Notes, 1000)
	return ve.Err()
}

func validateCheckin(f CheckinForm) error {
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "serial_number", f.SerialNumber)
	validation.ValidateMaxLength(&ve, "notes", f.Notes, 1000)
	return ve.Err()
}

// Checkout submits the checkout form. Missing serial number or customer
// name fail before any request is made. The form is cleared on success.
func (w *Workflow) Checkout(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.checkoutStatus.Busy {
		w.mu.Unlock()
		return "", ErrBusy
	}
	form := w.checkout
	if err := validateCheckout(form); err != nil {
		w.checkoutStatus = Status{Err: err}
		w.mu.Unlock()
		return "", err
	}
	w.checkoutStatus = Status{Busy: true}
	gen := w.gen
	w.mu.Unlock()

	msg, err := w.backend.BranchCheckout(ctx, w.branchID, backend.BranchCheckoutRequest{
		SerialNumber:  scanner.NormalizeCode(form.SerialNumber),
		CustomerName:  form.CustomerName,
		CustomerPhone: form.CustomerPhone,
		Notes:         form.Notes,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return "", ErrStale
	}
	if err != nil {
		w.checkoutStatus = Status{Err: err}
		return "", err
	}
	if msg == "" {
		msg = "Item " + form.SerialNumber + " checked out to " + form.CustomerName
	}
	w.checkout = CheckoutForm{}
	w.checkoutStatus = Status{Message: msg}
	slog.Info("branch checkout", "branch", w.branchID, "serial", form.SerialNumber)
	return msg, nil
}

// Checkin submits the check-in form. The serial number is required. The
// form is cleared on success.
func (w *Workflow) Checkin(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.checkinStatus.Busy {
		w.mu.Unlock()
		return "", ErrBusy
	}
	form := w.checkin
	if err := validateCheckin(form); err != nil {
		w.checkinStatus = Status{Err: err}
		w.mu.Unlock()
		return "", err
	}
	w.checkinStatus = Status{Busy: true}
	gen := w.gen
	w.mu.Unlock()

	msg, err := w.backend.BranchCheckin(ctx, w.branchID, backend.BranchCheckinRequest{
		SerialNumber: scanner.NormalizeCode(form.SerialNumber),
		Notes:        form.Notes,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return "", ErrStale
	}
	if err != nil {
		w.checkinStatus = Status{Err: err}
		return "", err
	}
	if msg == "" {
		msg = "Item " + form.SerialNumber + " checked in"
	}
	w.checkin = CheckinForm{}
	w.checkinStatus = Status{Message: msg}
	slog.Info("branch checkin", "branch", w.branchID, "serial", form.SerialNumber)
	return msg, nil
}

// Reset clears both forms and returns to the checkout tab.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.tab = TabCheckout
	w.checkout = CheckoutForm{}
	w.checkin = CheckinForm{}
	w.checkoutStatus = Status{}
	w.checkinStatus = Status{}
}
