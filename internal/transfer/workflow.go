// Package transfer drives a scanned serialized item through warehouse
// checkout and check-in, optionally binding checkouts to customer orders.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/scan"
	"github.com/erazemk/scanpoint/internal/validation"
)

var (
	ErrNoItem       = errors.New("no item loaded")
	ErrInTransit    = errors.New("item is in transit and can only be checked in")
	ErrNotInTransit = errors.New("item is not in transit and can only be checked out")
	ErrBusy         = errors.New("another request for this action is still running")
	ErrNotCustomer  = errors.New("orders can only be selected for customer checkouts")
	ErrUnknownOrder = errors.New("unknown order")
	ErrUnknownLine  = errors.New("unknown order line")
	// ErrStale is returned when a response arrives for state that has since
	// been reset or replaced. The response is dropped.
	ErrStale = errors.New("response no longer applies")
)

// Backend is the part of the CRM backend the workflow uses.
type Backend interface {
	scan.Resolver
	PendingOrders(ctx context.Context) ([]model.PendingOrder, error)
	Checkout(ctx context.Context, itemID string, req backend.CheckoutRequest) (*model.CheckoutResult, error)
	Checkin(ctx context.Context, itemID string, req backend.CheckinRequest) (*model.CheckinResult, error)
	LocationHistory(ctx context.Context, itemID string) ([]model.LocationHistoryEntry, error)
}

// Actions are the mutations currently offered for the loaded item.
type Actions struct {
	Checkout bool
	Checkin  bool
}

// View is a snapshot of the workflow for rendering.
type View struct {
	Item    *model.SerializedItem
	Product *model.Product
	Actions Actions

	Destination  model.Location
	Notes        string
	OrderID      string
	OrderLineID  string
	Orders       []model.PendingOrder
	OrdersLoaded bool

	Arrival      model.Location
	CheckinNotes string

	History     []model.LocationHistoryEntry
	ShowHistory bool

	Message            string
	FulfillmentMessage string
	Err                error

	CheckingOut    bool
	CheckingIn     bool
	LoadingHistory bool
	LoadingOrders  bool
}

// SelectedOrder returns the selected pending order, or nil.
func (v View) SelectedOrder() *model.PendingOrder {
	for i := range v.Orders {
		if v.Orders[i].ID == v.OrderID {
			return &v.Orders[i]
		}
	}
	return nil
}

// Workflow holds one operator's warehouse transfer state.
type Workflow struct {
	backend Backend
	lookup  *scan.Lookup

	mu   sync.Mutex
	item *model.SerializedItem

	destination  model.Location
	notes        string
	orderID      string
	lineID       string
	orders       []model.PendingOrder
	ordersLoaded bool

	arrival      model.Location
	checkinNotes string

	history     []model.LocationHistoryEntry
	showHistory bool

	message            string
	fulfillmentMessage string
	err                error

	checkingOut    bool
	checkingIn     bool
	loadingHistory bool
	loadingOrders  bool

	// gen is bumped by Reset; responses for an older gen are dropped.
	gen uint64
}

// New creates an empty workflow.
func New(b Backend) *Workflow {
	w := &Workflow{
		backend:     b,
		destination: model.LocationCustomer,
		arrival:     model.LocationWarehouse,
	}
	w.lookup = scan.New(b, model.ScanTypeSerializedItem, scan.Handlers{
		OnSuccess: w.setItem,
		OnError:   w.setError,
	})
	return w
}

// Lookup returns the scan orchestration feeding this workflow.
func (w *Workflow) Lookup() *scan.Lookup {
	return w.lookup
}

// ScanItem resolves code and, when it is a serialized item, loads it in
// place of the current one.
func (w *Workflow) ScanItem(ctx context.Context, code string) error {
	return w.lookup.HandleScanSuccess(ctx, code)
}

func (w *Workflow) setItem(found *model.Found) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if found.Item == nil {
		w.err = fmt.Errorf("code %s is not a serialized item", found.Code)
		return
	}
	item := *found.Item
	w.item = &item
	w.history = nil
	w.showHistory = false
	w.message = ""
	w.fulfillmentMessage = ""
	w.err = nil
	w.notes = ""
	w.checkinNotes = ""
	w.orderID = ""
	w.lineID = ""
}

func (w *Workflow) setError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
	w.message = ""
	w.fulfillmentMessage = ""
}

// Item returns a copy of the loaded item, or nil.
func (w *Workflow) Item() *model.SerializedItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.item == nil {
		return nil
	}
	item := *w.item
	return &item
}

// Actions returns which mutation is offered: checkout for an item that is
// not in transit, check-in for one that is, never both.
func (w *Workflow) Actions() Actions {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.actions()
}

func (w *Workflow) actions() Actions {
	if w.item == nil {
		return Actions{}
	}
	if w.item.InTransit() {
		return Actions{Checkin: true}
	}
	return Actions{Checkout: true}
}

// View returns a snapshot of the workflow.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		Actions:            w.actions(),
		Destination:        w.destination,
		Notes:              w.notes,
		OrderID:            w.orderID,
		OrderLineID:        w.lineID,
		Orders:             w.orders,
		OrdersLoaded:       w.ordersLoaded,
		Arrival:            w.arrival,
		CheckinNotes:       w.checkinNotes,
		History:            w.history,
		ShowHistory:        w.showHistory,
		Message:            w.message,
		FulfillmentMessage: w.fulfillmentMessage,
		Err:                w.err,
		CheckingOut:        w.checkingOut,
		CheckingIn:         w.checkingIn,
		LoadingHistory:     w.loadingHistory,
		LoadingOrders:      w.loadingOrders,
	}
	if w.item != nil {
		item := *w.item
		v.Item = &item
		v.Product = item.Product
	}
	return v
}

// SetDestination sets the checkout destination. Any destination other than
// customer clears the selected order and line.
func (w *Workflow) SetDestination(loc model.Location) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destination = loc
	if loc != model.LocationCustomer {
		w.orderID = ""
		w.lineID = ""
	}
}

func (w *Workflow) SetNotes(notes string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notes = notes
}

func (w *Workflow) SetArrival(loc model.Location) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.arrival = loc
}

func (w *Workflow) SetCheckinNotes(notes string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkinNotes = notes
}

// LoadPendingOrders fetches orders awaiting fulfilment. They are fetched
// once; pass force to refresh.
func (w *Workflow) LoadPendingOrders(ctx context.Context, force bool) error {
	w.mu.Lock()
	if w.ordersLoaded && !force {
		w.mu.Unlock()
		return nil
	}
	if w.loadingOrders {
		w.mu.Unlock()
		return ErrBusy
	}
	w.loadingOrders = true
	gen := w.gen
	w.mu.Unlock()

	orders, err := w.backend.PendingOrders(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrStale
	}
	w.loadingOrders = false
	if err != nil {
		w.err = err
		return err
	}
	w.orders = orders
	w.ordersLoaded = true
	return nil
}

// SelectOrder binds the next checkout to a pending order. An empty id
// clears the selection. Changing the order clears the line.
func (w *Workflow) SelectOrder(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == "" {
		w.orderID = ""
		w.lineID = ""
		return nil
	}
	if w.destination != model.LocationCustomer {
		return ErrNotCustomer
	}
	if w.order(id) == nil {
		return ErrUnknownOrder
	}
	if id != w.orderID {
		w.lineID = ""
	}
	w.orderID = id
	return nil
}

// SelectOrderLine picks the line of the selected order the item fulfils.
func (w *Workflow) SelectOrderLine(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == "" {
		w.lineID = ""
		return nil
	}
	order := w.order(w.orderID)
	if order == nil || order.Line(id) == nil {
		return ErrUnknownLine
	}
	w.lineID = id
	return nil
}

func (w *Workflow) order(id string) *model.PendingOrder {
	for i := range w.orders {
		if w.orders[i].ID == id {
			return &w.orders[i]
		}
	}
	return nil
}

// Checkout moves the loaded item out to the selected destination. On
// success the item is shown in transit and the notes and order selection
// are cleared; on failure nothing but the error changes.
func (w *Workflow) Checkout(ctx context.Context) error {
	w.mu.Lock()
	if w.item == nil {
		w.mu.Unlock()
		return ErrNoItem
	}
	if w.item.InTransit() {
		w.mu.Unlock()
		return ErrInTransit
	}
	if w.checkingOut {
		w.mu.Unlock()
		return ErrBusy
	}

	var ve validation.ValidationErrors
	validation.RequireField(&ve, "destination", string(w.destination))
	validation.ValidateEnum(&ve, "destination", string(w.destination), model.LocationStrings(model.CheckoutDestinations))
	validation.ValidateMaxLength(&ve, "notes", w.notes, 1000)
	if err := ve.Err(); err != nil {
		w.err = err
		w.mu.Unlock()
		return err
	}

	itemID := w.item.ID
	req := backend.CheckoutRequest{Destination: w.destination, Notes: w.notes}
	if w.destination == model.LocationCustomer {
		req.OrderLineID = w.lineID
	}
	w.checkingOut = true
	w.err = nil
	gen := w.gen
	w.mu.Unlock()

	res, err := w.backend.Checkout(ctx, itemID, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrStale
	}
	w.checkingOut = false
	if w.item == nil || w.item.ID != itemID {
		return ErrStale
	}
	if err != nil {
		w.err = err
		w.message = ""
		w.fulfillmentMessage = ""
		return err
	}

	w.item.Status = model.ItemStatusInTransit
	w.item.CurrentLocation = model.LocationInTransit
	w.message = res.Message
	if w.message == "" {
		w.message = fmt.Sprintf("Item %s checked out to %s", w.item.SerialNumber, req.Destination)
	}
	w.fulfillmentMessage = fulfillmentMessage(res.Fulfillment)
	w.notes = ""
	w.orderID = ""
	w.lineID = ""
	if res.Fulfillment != nil {
		// Assigned counts changed; fetch again next time.
		w.ordersLoaded = false
	}

	slog.Info("item checked out", "item", itemID, "destination", req.Destination, "order_line", req.OrderLineID)
	return nil
}

func fulfillmentMessage(f *model.Fulfillment) string {
	if f == nil {
		return ""
	}
	msg := fmt.Sprintf("Assigned to order %s: %d of %d units", f.OrderNumber, f.UnitsAssigned, f.UnitsOrdered)
	if f.FullyAssigned {
		msg += ", line fully assigned"
	}
	return msg
}

// Checkin records the in-transit item arriving at the selected location.
// On success the item takes the backend's status and the submitted location.
func (w *Workflow) Checkin(ctx context.Context) error {
	w.mu.Lock()
	if w.item == nil {
		w.mu.Unlock()
		return ErrNoItem
	}
	if !w.item.InTransit() {
		w.mu.Unlock()
		return ErrNotInTransit
	}
	if w.checkingIn {
		w.mu.Unlock()
		return ErrBusy
	}

	var ve validation.ValidationErrors
	validation.RequireField(&ve, "new_location", string(w.arrival))
	validation.ValidateEnum(&ve, "new_location", string(w.arrival), model.LocationStrings(model.ArrivalLocations))
	validation.ValidateMaxLength(&ve, "notes", w.checkinNotes, 1000)
	if err := ve.Err(); err != nil {
		w.err = err
		w.mu.Unlock()
		return err
	}

	itemID := w.item.ID
	req := backend.CheckinRequest{NewLocation: w.arrival, Notes: w.checkinNotes}
	w.checkingIn = true
	w.err = nil
	gen := w.gen
	w.mu.Unlock()

	res, err := w.backend.Checkin(ctx, itemID, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrStale
	}
	w.checkingIn = false
	if w.item == nil || w.item.ID != itemID {
		return ErrStale
	}
	if err != nil {
		w.err = err
		w.message = ""
		w.fulfillmentMessage = ""
		return err
	}

	if res.Item.Status != "" {
		w.item.Status = res.Item.Status
	}
	w.item.CurrentLocation = req.NewLocation
	w.message = res.Message
	if w.message == "" {
		w.message = fmt.Sprintf("Item %s checked in at %s", w.item.SerialNumber, req.NewLocation)
	}
	w.fulfillmentMessage = ""
	w.checkinNotes = ""

	slog.Info("item checked in", "item", itemID, "location", req.NewLocation, "status", w.item.Status)
	return nil
}

// ToggleHistory hides the history when shown, otherwise fetches it for the
// loaded item and shows it. An empty history is shown as such.
func (w *Workflow) ToggleHistory(ctx context.Context) error {
	w.mu.Lock()
	if w.item == nil {
		w.mu.Unlock()
		return ErrNoItem
	}
	if w.showHistory {
		w.showHistory = false
		w.mu.Unlock()
		return nil
	}
	if w.loadingHistory {
		w.mu.Unlock()
		return ErrBusy
	}
	w.loadingHistory = true
	itemID := w.item.ID
	gen := w.gen
	w.mu.Unlock()

	entries, err := w.backend.LocationHistory(ctx, itemID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrStale
	}
	w.loadingHistory = false
	if w.item == nil || w.item.ID != itemID {
		return ErrStale
	}
	if err != nil {
		w.err = err
		return err
	}
	if entries == nil {
		entries = []model.LocationHistoryEntry{}
	}
	w.history = entries
	w.showHistory = true
	return nil
}

// History returns the loaded history of the current item, if any.
func (w *Workflow) History() []model.LocationHistoryEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history
}

// Reset drops the loaded item and all form state. Responses still in
// flight are discarded when they arrive.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.gen++
	w.item = nil
	w.destination = model.LocationCustomer
	w.notes = ""
	w.orderID = ""
	w.lineID = ""
	w.orders = nil
	w.ordersLoaded = false
	w.arrival = model.LocationWarehouse
	w.checkinNotes = ""
	w.history = nil
	w.showHistory = false
	w.message = ""
	w.fulfillmentMessage = ""
	w.err = nil
	w.checkingOut = false
	w.checkingIn = false
	w.loadingHistory = false
	w.loadingOrders = false
}
