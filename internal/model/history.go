package model

import "time"

// LocationHistoryEntry records one past location transition of an item.
type LocationHistoryEntry struct {
	FromLocation Location  `json:"from_location"`
	ToLocation   Location  `json:"to_location"`
	Timestamp    time.Time `json:"timestamp"`
	Reason       string    `json:"reason,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Actor        string    `json:"actor,omitempty"`
}

// Activity is a locally recorded scan or transfer performed from this portal.
type Activity struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	Outcome   string    `json:"outcome"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity actions.
const (
	ActionScan           = "scan"
	ActionCheckout       = "checkout"
	ActionCheckin        = "checkin"
	ActionBranchCheckout = "branch_checkout"
	ActionBranchCheckin  = "branch_checkin"
)

// Activity outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)
