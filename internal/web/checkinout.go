package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/scanpoint/internal/export"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/transfer"
)

const checkInOutPath = "/checkinout"

type checkInOutData struct {
	PageData
	View    transfer.View
	Scanner scannerData
}

// CheckInOutPage handles GET /checkinout.
func (s *Server) CheckInOutPage(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	v := ws.Warehouse.View()
	if s.backendSignedOut(w, r, v.Err) {
		return
	}

	data := &checkInOutData{
		PageData: PageData{Title: "Check in / out", Session: sess, Error: ws.TakeFlash()},
		View:     v,
		Scanner:  panelData(checkInOutPath, ws.WarehouseScanner, ws.Warehouse.Lookup().IsLoading()),
	}
	if v.Err != nil && data.Error == "" {
		data.Error = v.Err.Error()
	}
	data.Success = v.Message
	s.Templates.Render(w, "checkinout.html", data)
}

func (s *Server) back(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// WarehouseScannerSubmit handles POST /checkinout/scanner.
func (s *Server) WarehouseScannerSubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	action := r.FormValue("action")

	switch action {
	case "open":
		ws.Warehouse.Lookup().Open()
	case "close":
		ws.Warehouse.Lookup().Close()
	}
	if err := ws.WarehouseScanner.Act(r.Context(), action); err != nil {
		slog.Debug("scanner action failed", "action", action, "error", err)
	}
	s.back(w, r, checkInOutPath)
}

// WarehouseScanSubmit handles POST /checkinout/scan. An acquired code is
// looked up as a serialized item and, when found, replaces the loaded item.
func (s *Server) WarehouseScanSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	panel := ws.WarehouseScanner
	lookup := ws.Warehouse.Lookup()

	if !submitScan(w, r, panel) {
		s.back(w, r, checkInOutPath)
		return
	}

	err := lookup.Err()
	s.record(r.Context(), sess, model.ActionScan, panel.LastCode(), err)
	if lookup.IsOpen() {
		// The lookup itself failed; keep the scanner up for another try.
		panel.Reopen(r.Context())
	}
	s.back(w, r, checkInOutPath)
}

// DestinationSubmit handles POST /checkinout/destination.
func (s *Server) DestinationSubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	if err := applyCheckoutForm(ws.Warehouse, r); err != nil {
		ws.Flash(err.Error())
	}
	s.back(w, r, checkInOutPath)
}

// OrdersSubmit handles POST /checkinout/orders, fetching pending orders
// when the operator asks to bind the checkout to one.
func (s *Server) OrdersSubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	ws.Warehouse.SetDestination(model.LocationCustomer)
	ws.Warehouse.SetNotes(r.FormValue("notes"))
	force := r.FormValue("refresh") == "1"
	if err := ws.Warehouse.LoadPendingOrders(r.Context(), force); err != nil && !errors.Is(err, transfer.ErrStale) {
		slog.Warn("failed to load pending orders", "error", err)
	}
	s.back(w, r, checkInOutPath)
}

// OrderSelectSubmit handles POST /checkinout/order.
func (s *Server) OrderSelectSubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	if err := selectOrder(ws.Warehouse, r.FormValue("order_id"), r.FormValue("order_line_id")); err != nil {
		ws.Flash(err.Error())
	}
	s.back(w, r, checkInOutPath)
}

// applyCheckoutForm copies the posted checkout form into wf. The order
// fields still on the page are ignored unless the destination is a
// customer; the workflow has already dropped the order in that case.
func applyCheckoutForm(wf *transfer.Workflow, r *http.Request) error {
	dest := model.Location(r.FormValue("destination"))
	wf.SetDestination(dest)
	wf.SetNotes(r.FormValue("notes"))
	if dest != model.LocationCustomer || !r.Form.Has("order_id") {
		return nil
	}
	return selectOrder(wf, r.FormValue("order_id"), r.FormValue("order_line_id"))
}

// selectOrder applies a posted order and line. A line posted together with
// a newly chosen order may belong to the previous one; then it is dropped.
func selectOrder(wf *transfer.Workflow, orderID, lineID string) error {
	prev := wf.View().OrderID
	if err := wf.SelectOrder(orderID); err != nil {
		return err
	}
	if orderID == "" {
		return nil
	}
	err := wf.SelectOrderLine(lineID)
	if errors.Is(err, transfer.ErrUnknownLine) && orderID != prev {
		return nil
	}
	return err
}

// CheckoutSubmit handles POST /checkinout/checkout.
func (s *Server) CheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	wf := ws.Warehouse

	if err := applyCheckoutForm(wf, r); err != nil {
		ws.Flash(err.Error())
		s.back(w, r, checkInOutPath)
		return
	}

	item := wf.Item()
	err := wf.Checkout(r.Context())
	switch {
	case errors.Is(err, transfer.ErrStale):
	case errors.Is(err, transfer.ErrNoItem), errors.Is(err, transfer.ErrInTransit), errors.Is(err, transfer.ErrBusy):
		ws.Flash(err.Error())
	default:
		s.record(r.Context(), sess, model.ActionCheckout, item.SerialNumber, err)
		if err == nil {
			s.Hub.ItemMoved(model.ActionCheckout, item.SerialNumber, string(model.LocationInTransit), sess.Username)
		}
	}
	s.back(w, r, checkInOutPath)
}

// CheckinSubmit handles POST /checkinout/checkin.
func (s *Server) CheckinSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	ws := s.Workspaces.Get(sess)
	wf := ws.Warehouse

	arrival := model.Location(r.FormValue("new_location"))
	wf.SetArrival(arrival)
	wf.SetCheckinNotes(r.FormValue("notes"))

	item := wf.Item()
	err := wf.Checkin(r.Context())
	switch {
	case errors.Is(err, transfer.ErrStale):
	case errors.Is(err, transfer.ErrNoItem), errors.Is(err, transfer.ErrNotInTransit), errors.Is(err, transfer.ErrBusy):
		ws.Flash(err.Error())
	default:
		s.record(r.Context(), sess, model.ActionCheckin, item.SerialNumber, err)
		if err == nil {
			s.Hub.ItemMoved(model.ActionCheckin, item.SerialNumber, string(arrival), sess.Username)
		}
	}
	s.back(w, r, checkInOutPath)
}

// HistorySubmit handles POST /checkinout/history, showing or hiding the
// loaded item's location history.
func (s *Server) HistorySubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	err := ws.Warehouse.ToggleHistory(r.Context())
	if errors.Is(err, transfer.ErrNoItem) || errors.Is(err, transfer.ErrBusy) {
		ws.Flash(err.Error())
	}
	s.back(w, r, checkInOutPath)
}

// HistoryExport handles GET /checkinout/history.xlsx.
func (s *Server) HistoryExport(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	wf := ws.Warehouse

	item := wf.Item()
	if item == nil {
		http.Error(w, "no item loaded", http.StatusNotFound)
		return
	}
	if wf.History() == nil {
		if err := wf.ToggleHistory(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(item)+`"`)
	if err := export.WriteHistory(w, item, wf.History()); err != nil {
		slog.Error("failed to export history", "item", item.ID, "error", err)
	}
}

// ResetSubmit handles POST /checkinout/reset.
func (s *Server) ResetSubmit(w http.ResponseWriter, r *http.Request) {
	ws := s.Workspaces.Get(GetSession(r.Context()))
	ws.WarehouseScanner.Scanner.Close()
	ws.Warehouse.Lookup().Close()
	ws.Warehouse.Reset()
	s.back(w, r, checkInOutPath)
}
