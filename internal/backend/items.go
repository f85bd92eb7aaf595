package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/erazemk/scanpoint/internal/model"
)

// CheckoutRequest moves a serialized item out towards a destination.
type CheckoutRequest struct {
	Destination model.Location `json:"destination"`
	Notes       string         `json:"notes"`
	OrderLineID string         `json:"order_line_id,omitempty"`
}

// CheckinRequest records an in-transit item arriving somewhere.
type CheckinRequest struct {
	NewLocation model.Location `json:"new_location"`
	Notes       string         `json:"notes"`
}

// PendingOrders lists orders awaiting physical fulfilment.
func (c *Client) PendingOrders(ctx context.Context) ([]model.PendingOrder, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/orders/pending-fulfillment", nil, &raw); err != nil {
		return nil, err
	}
	orders, err := decodeList[model.PendingOrder](raw)
	if err != nil {
		return nil, fmt.Errorf("decoding pending orders: %w", err)
	}
	return orders, nil
}

// Checkout submits a checkout of the item with the given ID.
func (c *Client) Checkout(ctx context.Context, itemID string, req CheckoutRequest) (*model.CheckoutResult, error) {
	var res model.CheckoutResult
	path := "/api/serialized-items/" + url.PathEscape(itemID) + "/checkout"
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Checkin submits a check-in of the item with the given ID.
func (c *Client) Checkin(ctx context.Context, itemID string, req CheckinRequest) (*model.CheckinResult, error) {
	var res model.CheckinResult
	path := "/api/serialized-items/" + url.PathEscape(itemID) + "/checkin"
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LocationHistory returns the item's past transitions, most recent first.
func (c *Client) LocationHistory(ctx context.Context, itemID string) ([]model.LocationHistoryEntry, error) {
	var raw json.RawMessage
	path := "/api/serialized-items/" + url.PathEscape(itemID) + "/location-history"
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	entries, err := decodeList[model.LocationHistoryEntry](raw)
	if err != nil {
		return nil, fmt.Errorf("decoding location history: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
