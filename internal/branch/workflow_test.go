package branch

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/validation"
)

type fakeBackend struct {
	checkouts []backend.BranchCheckoutRequest
	checkins  []backend.BranchCheckinRequest
	branches  []string
	msg       string
	err       error
}

func (f *fakeBackend) BranchCheckout(ctx context.Context, branchID string, req backend.BranchCheckoutRequest) (string, error) {
	f.branches = append(f.branches, branchID)
	f.checkouts = append(f.checkouts, req)
	return f.msg, f.err
}

func (f *fakeBackend) BranchCheckin(ctx context.Context, branchID string, req backend.BranchCheckinRequest) (string, error) {
	f.branches = append(f.branches, branchID)
	f.checkins = append(f.checkins, req)
	return f.msg, f.err
}

func TestCheckoutRequiresCustomerName(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, "br-1")
	w.SetCheckoutForm(CheckoutForm{SerialNumber: "SN-1", CustomerName: "  "})

	_, err := w.Checkout(context.Background())
	var ve *validation.ValidationErrors
	if !errors.As(err, &ve) || !ve.Has("customer_name") {
		t.Fatalf("expected customer_name error, got %v", err)
	}
	if len(fb.checkouts) != 0 {
		t.Fatal("no request may be made for an invalid form")
	}
	if w.View().Checkout.SerialNumber != "SN-1" {
		t.Error("form must be kept after a validation failure")
	}
}

func TestCheckoutRequiresSerial(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, "br-1")
	w.SetCheckoutForm(CheckoutForm{CustomerName: "Ana"})

	_, err := w.Checkout(context.Background())
	var ve *validation.ValidationErrors
	if !errors.As(err, &ve) || !ve.Has("serial_number") || ve.Has("customer_phone") {
		t.Fatalf("expected serial_number error only, got %v", err)
	}
	if len(fb.checkouts) != 0 {
		t.Fatal("no request may be made for an invalid form")
	}
}

func TestCheckoutClearsFormOnSuccess(t *testing.T) {
	fb := &fakeBackend{msg: "Sold to Ana"}
	w := New(fb, "br-1")
	w.SetCheckoutForm(CheckoutForm{SerialNumber: " SN-1 ", CustomerName: "Ana", Notes: "cash"})

	msg, err := w.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if msg != "Sold to Ana" {
		t.Errorf("expected backend message, got %q", msg)
	}
	if fb.branches[0] != "br-1" || fb.checkouts[0].SerialNumber != "SN-1" || fb.checkouts[0].CustomerPhone != "" {
		t.Errorf("unexpected request %s %+v", fb.branches[0], fb.checkouts[0])
	}
	v := w.View()
	if v.Checkout != (CheckoutForm{}) {
		t.Errorf("expected form cleared, got %+v", v.Checkout)
	}
	if v.CheckoutStatus.Message != "Sold to Ana" || v.CheckoutStatus.Busy {
		t.Errorf("unexpected status %+v", v.CheckoutStatus)
	}
}

func TestCheckinFailureKeepsForms(t *testing.T) {
	fb := &fakeBackend{err: &backend.APIError{Status: 400, Message: "Serial number not found at this branch"}}
	w := New(fb, "br-1")
	w.SetCheckoutForm(CheckoutForm{SerialNumber: "SN-A", CustomerName: "Ana"})
	w.SetTab(TabCheckin)
	w.SetCheckinForm(CheckinForm{SerialNumber: "SN-B"})

	_, err := w.Checkin(context.Background())
	if err == nil || err.Error() != "Serial number not found at this branch" {
		t.Fatalf("expected verbatim backend error, got %v", err)
	}

	v := w.View()
	if v.Checkin.SerialNumber != "SN-B" {
		t.Error("check-in form must be kept on failure")
	}
	if v.Checkout.SerialNumber != "SN-A" || v.CheckoutStatus.Err != nil {
		t.Error("checkout tab must not be affected")
	}
	if v.CheckinStatus.Busy {
		t.Error("busy flag must be cleared")
	}
}

func TestScanFillsActiveTab(t *testing.T) {
	w := New(&fakeBackend{}, "br-1")

	w.ScanInto(" SN-1 ")
	w.SetTab(TabCheckin)
	w.ScanInto("SN-2")
	w.ScanInto("   ")

	v := w.View()
	if v.Checkout.SerialNumber != "SN-1" {
		t.Errorf("expected checkout serial SN-1, got %q", v.Checkout.SerialNumber)
	}
	if v.Checkin.SerialNumber != "SN-2" {
		t.Errorf("expected checkin serial SN-2, got %q", v.Checkin.SerialNumber)
	}
}

func TestSetTabRejectsUnknown(t *testing.T) {
	w := New(&fakeBackend{}, "br-1")
	if err := w.SetTab("returns"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("expected ErrUnknownTab, got %v", err)
	}
	if w.View().Tab != TabCheckout {
		t.Error("tab must not change")
	}
}

func TestCheckinDefaultMessage(t *testing.T) {
	fb := &fakeBackend{}
	w := New(fb, "br-1")
	w.SetCheckinForm(CheckinForm{SerialNumber: "SN-9"})

	msg, err := w.Checkin(context.Background())
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	if msg != "Item SN-9 checked in" {
		t.Errorf("unexpected message %q", msg)
	}
	if w.View().Checkin != (CheckinForm{}) {
		t.Error("expected form cleared")
	}
}
