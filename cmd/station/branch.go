package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/erazemk/scanpoint/internal/branch"
	"github.com/erazemk/scanpoint/internal/scanner"
)

type branchMode struct {
	wf  *branch.Workflow
	out io.Writer
}

func (m *branchMode) callbacks(context.Context) scanner.Callbacks {
	return m.wf.ScannerCallbacks()
}

func (m *branchMode) prepare() {}

func (m *branchMode) help() string {
	return `Branch station. Scanned codes fill the serial number of the active form.
  :tab checkout|checkin   switch form
  :customer <name>        customer name (checkout)
  :phone <number>         customer phone (checkout)
  :notes <text>           notes for the active form
  :submit                 send the active form
  :camera                 scan with the configured camera
  :quit                   leave
`
}

func (m *branchMode) command(ctx context.Context, name string, args []string) error {
	wf := m.wf
	v := wf.View()
	text := strings.Join(args, " ")

	switch name {
	case "tab":
		if len(args) != 1 {
			return errors.New("usage: :tab checkout|checkin")
		}
		return wf.SetTab(branch.Tab(args[0]))

	case "customer":
		f := v.Checkout
		f.CustomerName = text
		wf.SetCheckoutForm(f)
		return nil

	case "phone":
		f := v.Checkout
		f.CustomerPhone = text
		wf.SetCheckoutForm(f)
		return nil

	case "notes":
		if v.Tab == branch.TabCheckin {
			f := v.Checkin
			f.Notes = text
			wf.SetCheckinForm(f)
			return nil
		}
		f := v.Checkout
		f.Notes = text
		wf.SetCheckoutForm(f)
		return nil

	case "submit":
		var err error
		if v.Tab == branch.TabCheckin {
			_, err = wf.Checkin(ctx)
		} else {
			_, err = wf.Checkout(ctx)
		}
		// The outcome is part of the form status shown next.
		if errors.Is(err, branch.ErrBusy) {
			return err
		}
		return nil

	default:
		return errUnknownCommand
	}
}

func (m *branchMode) show() {
	v := m.wf.View()
	out := m.out

	status := v.CheckoutStatus
	if v.Tab == branch.TabCheckin {
		status = v.CheckinStatus
		fmt.Fprintf(out, "[check in] serial: %s  notes: %s\n", v.Checkin.SerialNumber, v.Checkin.Notes)
	} else {
		fmt.Fprintf(out, "[check out] serial: %s  customer: %s  phone: %s  notes: %s\n",
			v.Checkout.SerialNumber, v.Checkout.CustomerName, v.Checkout.CustomerPhone, v.Checkout.Notes)
	}
	if status.Err != nil {
		fmt.Fprintf(out, "error: %v\n", status.Err)
	}
	if status.Message != "" {
		fmt.Fprintln(out, status.Message)
	}
}
