package backend

import (
	"context"
	"net/http"
	"net/url"
)

// BranchCheckoutRequest records a sale-style dispatch from a retail branch.
type BranchCheckoutRequest struct {
	SerialNumber  string `json:"serial_number"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// BranchCheckinRequest records receipt of an item at a retail branch.
type BranchCheckinRequest struct {
	SerialNumber string `json:"serial_number"`
	Notes        string `json:"notes,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// BranchCheckout submits a branch checkout and returns the confirmation message.
func (c *Client) BranchCheckout(ctx context.Context, branchID string, req BranchCheckoutRequest) (string, error) {
	var res messageResponse
	path := "/api/branches/" + url.PathEscape(branchID) + "/checkout"
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// BranchCheckin submits a branch check-in and returns the confirmation message.
func (c *Client) BranchCheckin(ctx context.Context, branchID string, req BranchCheckinRequest) (string, error) {
	var res messageResponse
	path := "/api/branches/" + url.PathEscape(branchID) + "/checkin"
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}
