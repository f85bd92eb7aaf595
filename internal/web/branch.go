package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/scanpoint/internal/branch"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/store"
)

const branchPath = "/branch"

type branchData struct {
	PageData
	BranchID string
	View     branch.View
	Scanner  scannerData
}

// BranchPage handles GET /branch.
func (s *Server) BranchPage(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	v := ws.Branch.View()
	if s.backendSignedOut(w, r, v.CheckoutStatus.Err) || s.backendSignedOut(w, r, v.CheckinStatus.Err) {
		return
	}

	s.Templates.Render(w, "branch.html", &branchData{
		PageData: PageData{Title: "Branch", Session: sess, Error: ws.TakeFlash()},
		BranchID: ws.Branch.BranchID(),
		View:     v,
		Scanner:  panelData(branchPath, ws.BranchScanner, false),
	})
}

// BranchTabSubmit handles POST /branch/tab.
func (s *Server) BranchTabSubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	if err := ws.Branch.SetTab(branch.Tab(r.FormValue("tab"))); err != nil {
		ws.Flash(err.Error())
	}
	s.back(w, r, branchPath)
}

// BranchScannerSubmit handles POST /branch/scanner.
func (s *Server) BranchScannerSubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	saveBranchForms(r, ws.Branch)
	action := r.FormValue("action")
	if err := ws.BranchScanner.Act(r.Context(), action); err != nil {
		slog.Debug("scanner action failed", "action", action, "error", err)
	}
	s.back(w, r, branchPath)
}

// BranchScanSubmit handles POST /branch/scan. The acquired code fills the
// active tab's serial number without a lookup.
func (s *Server) BranchScanSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	if submitScan(w, r, ws.BranchScanner) {
		s.record(r.Context(), sess, model.ActionScan, ws.BranchScanner.LastCode(), nil)
	}
	s.back(w, r, branchPath)
}

// saveBranchForms keeps whatever the operator has typed so far when the
// form posted carries it.
func saveBranchForms(r *http.Request, wf *branch.Workflow) {
	if err := r.ParseForm(); err != nil {
		return
	}
	switch branch.Tab(r.PostFormValue("form")) {
	case branch.TabCheckout:
		wf.SetCheckoutForm(branch.CheckoutForm{
			SerialNumber:  r.PostFormValue("serial_number"),
			CustomerName:  r.PostFormValue("customer_name"),
			CustomerPhone: r.PostFormValue("customer_phone"),
			Notes:         r.PostFormValue("notes"),
		})
	case branch.TabCheckin:
		wf.SetCheckinForm(branch.CheckinForm{
			SerialNumber: r.PostFormValue("serial_number"),
			Notes:        r.PostFormValue("notes"),
		})
	}
}

// BranchCheckoutSubmit handles POST /branch/checkout.
func (s *Server) BranchCheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	form := branch.CheckoutForm{
		SerialNumber:  r.FormValue("serial_number"),
		CustomerName:  r.FormValue("customer_name"),
		CustomerPhone: r.FormValue("customer_phone"),
		Notes:         r.FormValue("notes"),
	}
	ws.Branch.SetCheckoutForm(form)

	_, err := ws.Branch.Checkout(r.Context())
	s.branchOutcome(r.Context(), sess, ws, model.ActionBranchCheckout, form.SerialNumber, model.LocationCustomer, err)
	s.back(w, r, branchPath)
}

// BranchCheckinSubmit handles POST /branch/checkin.
func (s *Server) BranchCheckinSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	form := branch.CheckinForm{
		SerialNumber: r.FormValue("serial_number"),
		Notes:        r.FormValue("notes"),
	}
	ws.Branch.SetCheckinForm(form)

	_, err := ws.Branch.Checkin(r.Context())
	s.branchOutcome(r.Context(), sess, ws, model.ActionBranchCheckin, form.SerialNumber, model.LocationRetail, err)
	s.back(w, r, branchPath)
}

func (s *Server) branchOutcome(ctx context.Context, sess *store.Session, ws *Workspace, action, serial string, loc model.Location, err error) {
	switch {
	case errors.Is(err, branch.ErrStale):
	case errors.Is(err, branch.ErrBusy):
		ws.Flash(err.Error())
	default:
		s.record(ctx, sess, action, serial, err)
		if err == nil {
			s.Hub.ItemMoved(action, serial, string(loc), sess.Username)
		}
	}
}
