package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/erazemk/scanpoint/internal/export"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/scanner"
	"github.com/erazemk/scanpoint/internal/transfer"
)

type warehouseMode struct {
	wf  *transfer.Workflow
	out io.Writer
}

func (m *warehouseMode) callbacks(ctx context.Context) scanner.Callbacks {
	return m.wf.Lookup().ScannerCallbacks(ctx)
}

func (m *warehouseMode) prepare() {
	m.wf.Lookup().Open()
}

func (m *warehouseMode) help() string {
	return `Warehouse station. Scan a serial number to load an item.
  :out <destination> [notes]   check the item out (customer, technician, manufacturer, ...)
  :orders                      list pending customer orders
  :order <order> [line]        bind the next customer checkout to an order line
  :in <location> [notes]       check an in-transit item in
  :history                     show or hide the item's location history
  :export <file.xlsx>          write the location history to a workbook
  :camera                      scan with the configured camera
  :reset                       clear the loaded item
  :quit                        leave
`
}

// command runs a command. Errors the workflow keeps in its view are left
// for show.
func (m *warehouseMode) command(ctx context.Context, name string, args []string) error {
	err := m.do(ctx, name, args)
	if err != nil && errors.Is(m.wf.View().Err, err) {
		return nil
	}
	return err
}

func (m *warehouseMode) do(ctx context.Context, name string, args []string) error {
	wf := m.wf
	switch name {
	case "out":
		if len(args) == 0 {
			return errors.New("usage: :out <destination> [notes]")
		}
		wf.SetDestination(model.Location(args[0]))
		wf.SetNotes(strings.Join(args[1:], " "))
		return wf.Checkout(ctx)

	case "orders":
		return wf.LoadPendingOrders(ctx, true)

	case "order":
		if len(args) == 0 {
			return errors.New("usage: :order <order> [line]")
		}
		wf.SetDestination(model.LocationCustomer)
		if err := wf.LoadPendingOrders(ctx, false); err != nil {
			return err
		}
		orderID := findOrder(wf.View().Orders, args[0])
		if err := wf.SelectOrder(orderID); err != nil {
			return err
		}
		if len(args) > 1 {
			return wf.SelectOrderLine(args[1])
		}
		return nil

	case "in":
		if len(args) == 0 {
			return errors.New("usage: :in <location> [notes]")
		}
		wf.SetArrival(model.Location(args[0]))
		wf.SetCheckinNotes(strings.Join(args[1:], " "))
		return wf.Checkin(ctx)

	case "history":
		return wf.ToggleHistory(ctx)

	case "export":
		if len(args) != 1 {
			return errors.New("usage: :export <file.xlsx>")
		}
		return m.export(ctx, args[0])

	case "reset":
		wf.Reset()
		return nil

	default:
		return errUnknownCommand
	}
}

// findOrder accepts an order number or id.
func findOrder(orders []model.PendingOrder, ref string) string {
	for _, o := range orders {
		if o.OrderNumber == ref {
			return o.ID
		}
	}
	return ref
}

func (m *warehouseMode) export(ctx context.Context, path string) error {
	item := m.wf.Item()
	if item == nil {
		return transfer.ErrNoItem
	}
	if m.wf.History() == nil {
		if err := m.wf.ToggleHistory(ctx); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.WriteHistory(f, item, m.wf.History()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	fmt.Fprintf(m.out, "history written to %s\n", path)
	return nil
}

func (m *warehouseMode) show() {
	v := m.wf.View()
	out := m.out

	if v.Err != nil {
		fmt.Fprintf(out, "error: %v\n", v.Err)
	}
	if v.Message != "" {
		fmt.Fprintln(out, v.Message)
	}
	if v.FulfillmentMessage != "" {
		fmt.Fprintln(out, v.FulfillmentMessage)
	}
	if v.Item == nil {
		return
	}

	product := ""
	if v.Product != nil {
		product = " " + v.Product.Name
	}
	fmt.Fprintf(out, "[%s]%s  status: %s  location: %s\n", v.Item.SerialNumber, product, v.Item.Status, v.Item.CurrentLocation)
	switch {
	case v.Actions.Checkout:
		fmt.Fprintf(out, "  ready to check out (:out), destination %s\n", v.Destination)
	case v.Actions.Checkin:
		fmt.Fprintln(out, "  in transit, check in with :in <location>")
	}

	if v.OrdersLoaded && v.Destination == model.LocationCustomer {
		if len(v.Orders) == 0 {
			fmt.Fprintln(out, "  no pending orders")
		}
		for _, o := range v.Orders {
			mark := " "
			if o.ID == v.OrderID {
				mark = "*"
			}
			fmt.Fprintf(out, " %s order %s %s\n", mark, o.OrderNumber, o.CustomerName)
			for _, l := range o.Lines {
				lmark := " "
				if o.ID == v.OrderID && l.ID == v.OrderLineID {
					lmark = "*"
				}
				fmt.Fprintf(out, "   %s %s %s: %d/%d (%s%%)\n", lmark, l.ID, l.ProductName, l.UnitsAssigned, l.Quantity, l.Progress())
			}
		}
	}

	if v.ShowHistory {
		if len(v.History) == 0 {
			fmt.Fprintln(out, "  no location history")
		}
		for _, e := range v.History {
			fmt.Fprintf(out, "  %s  %s -> %s  %s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.FromLocation, e.ToLocation, e.Actor, e.Notes)
		}
	}
}
