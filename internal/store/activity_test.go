package store

import (
	"context"
	"testing"

	"github.com/erazemk/scanpoint/internal/db"
	"github.com/erazemk/scanpoint/internal/model"
)

func TestRecordAndListActivity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	entries := []model.Activity{
		{Username: "ana", Action: model.ActionScan, Subject: "SN-1", Outcome: model.OutcomeOK},
		{Username: "ana", Action: model.ActionCheckout, Subject: "SN-1", Outcome: model.OutcomeOK, Message: "checked out"},
		{Username: "bo", Action: model.ActionBranchCheckin, Subject: "SN-2", Outcome: model.OutcomeFailed, Message: "not at branch"},
	}
	for i := range entries {
		if err := RecordActivity(ctx, database, &entries[i]); err != nil {
			t.Fatalf("RecordActivity: %v", err)
		}
		if entries[i].ID == 0 {
			t.Error("expected id to be set")
		}
	}

	all, err := ListActivity(ctx, database, ActivityFilter{})
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Subject != "SN-2" {
		t.Errorf("expected newest first, got %q", all[0].Subject)
	}

	ana, _ := ListActivity(ctx, database, ActivityFilter{Username: "ana"})
	if len(ana) != 2 {
		t.Errorf("expected 2 entries for ana, got %d", len(ana))
	}

	checkouts, _ := ListActivity(ctx, database, ActivityFilter{Action: model.ActionCheckout})
	if len(checkouts) != 1 || checkouts[0].Message != "checked out" {
		t.Errorf("unexpected checkouts %+v", checkouts)
	}

	limited, _ := ListActivity(ctx, database, ActivityFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestRecordActivityRejectsUnknownAction(t *testing.T) {
	database := db.NewTestDB(t)
	err := RecordActivity(context.Background(), database, &model.Activity{Username: "ana", Action: "teleport", Subject: "x", Outcome: model.OutcomeOK})
	if err == nil {
		t.Error("expected error for unknown action")
	}
}
