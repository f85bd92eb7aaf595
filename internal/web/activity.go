package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/store"
)

type activityData struct {
	PageData
	Entries []model.Activity
	Action  string
	Actions []string
}

var activityActions = []string{
	model.ActionScan,
	model.ActionCheckout,
	model.ActionCheckin,
	model.ActionBranchCheckout,
	model.ActionBranchCheckin,
}

// ActivityPage handles GET /activity. Administrators see every operator's
// entries, everyone else only their own.
func (s *Server) ActivityPage(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())

	filter := store.ActivityFilter{Action: r.URL.Query().Get("action")}
	if sess.Role != model.RoleAdmin {
		filter.Username = sess.Username
	}

	entries, err := store.ListActivity(r.Context(), s.DB, filter)
	if err != nil {
		slog.Error("failed to list activity", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Templates.Render(w, "activity.html", &activityData{
		PageData: PageData{Title: "Activity", Session: sess},
		Entries:  entries,
		Action:   filter.Action,
		Actions:  activityActions,
	})
}
