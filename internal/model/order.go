package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingOrder is a customer order still awaiting physical fulfilment.
type PendingOrder struct {
	ID           string      `json:"id"`
	OrderNumber  string      `json:"order_number"`
	CustomerName string      `json:"customer_name,omitempty"`
	CreatedAt    *time.Time  `json:"created_at,omitempty"`
	Lines        []OrderLine `json:"lines"`
}

// OrderLine is a single product line of a pending order.
type OrderLine struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id,omitempty"`
	ProductName   string          `json:"product_name,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitsAssigned int             `json:"units_assigned"`
	FullyAssigned bool            `json:"fully_assigned"`
	Percentage    decimal.Decimal `json:"percentage"`
}

// Remaining returns how many units of the line still need a serialized item.
func (l OrderLine) Remaining() int {
	if l.FullyAssigned || l.UnitsAssigned >= l.Quantity {
		return 0
	}
	return l.Quantity - l.UnitsAssigned
}

// Progress returns the assigned share of the line in percent. The backend
// value is used when present, otherwise it is derived from the counts.
func (l OrderLine) Progress() decimal.Decimal {
	if !l.Percentage.IsZero() || l.Quantity <= 0 {
		return l.Percentage
	}
	return decimal.NewFromInt(int64(l.UnitsAssigned)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(l.Quantity))).
		Round(1)
}

// Line returns the line with the given ID, or nil.
func (o *PendingOrder) Line(id string) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i]
		}
	}
	return nil
}

// Fulfillment summarises the order line a checkout was bound to.
type Fulfillment struct {
	OrderNumber   string `json:"order_number"`
	UnitsAssigned int    `json:"units_assigned"`
	UnitsOrdered  int    `json:"units_ordered"`
	FullyAssigned bool   `json:"fully_assigned"`
}

// CheckoutResult is the backend's answer to an item checkout.
type CheckoutResult struct {
	Status      string       `json:"status"`
	Message     string       `json:"message,omitempty"`
	Fulfillment *Fulfillment `json:"fulfillment,omitempty"`
}

// CheckinResult is the backend's answer to an item check-in.
type CheckinResult struct {
	Item    SerializedItem `json:"serialized_item"`
	Message string         `json:"message,omitempty"`
}
