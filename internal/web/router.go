package web

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/events"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/scanner"
	"github.com/erazemk/scanpoint/internal/store"
	webembed "github.com/erazemk/scanpoint/web"
)

// Options configure the portal.
type Options struct {
	DB         *sql.DB
	Backend    *backend.Client
	JWTSecret  string
	Sealer     *store.Sealer
	Hub        *events.Hub
	Decoder    scanner.Decoder
	Viewport   float64
	BranchID   string
	SessionTTL time.Duration
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB         *sql.DB
	Backend    *backend.Client
	Templates  *Templates
	JWTSecret  string
	Sealer     *store.Sealer
	Hub        *events.Hub
	Workspaces *Workspaces
	SessionTTL time.Duration
}

// NewRouter creates the portal router with all page routes registered.
func NewRouter(opts Options) (http.Handler, *Server, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, nil, err
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub()
	}
	if opts.Decoder == nil {
		opts.Decoder = scanner.NewZXingDecoder()
	}

	s := &Server{
		DB:         opts.DB,
		Backend:    opts.Backend,
		Templates:  templates,
		JWTSecret:  opts.JWTSecret,
		Sealer:     opts.Sealer,
		Hub:        opts.Hub,
		Workspaces: NewWorkspaces(opts.Backend, opts.BranchID, opts.Decoder, opts.Viewport),
		SessionTTL: opts.SessionTTL,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(s.JWTSecret, s.DB, s.Sealer)
	warehouse := func(h http.HandlerFunc) http.Handler {
		return cookieAuth(RequireAccess(model.CanUseWarehouse)(h))
	}
	branchOnly := func(h http.HandlerFunc) http.Handler {
		return cookieAuth(RequireAccess(model.CanUseBranch)(h))
	}

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	// Authenticated routes.
	mux.Handle("GET /{$}", cookieAuth(http.HandlerFunc(s.Home)))
	mux.Handle("GET /activity", cookieAuth(http.HandlerFunc(s.ActivityPage)))
	mux.Handle("GET /ws", cookieAuth(s.Hub))

	mux.Handle("GET /checkinout", warehouse(s.CheckInOutPage))
	mux.Handle("POST /checkinout/scanner", warehouse(s.WarehouseScannerSubmit))
	mux.Handle("POST /checkinout/scan", warehouse(s.WarehouseScanSubmit))
	mux.Handle("POST /checkinout/destination", warehouse(s.DestinationSubmit))
	mux.Handle("POST /checkinout/orders", warehouse(s.OrdersSubmit))
	mux.Handle("POST /checkinout/order", warehouse(s.OrderSelectSubmit))
	mux.Handle("POST /checkinout/checkout", warehouse(s.CheckoutSubmit))
	mux.Handle("POST /checkinout/checkin", warehouse(s.CheckinSubmit))
	mux.Handle("POST /checkinout/history", warehouse(s.HistorySubmit))
	mux.Handle("GET /checkinout/history.xlsx", warehouse(s.HistoryExport))
	mux.Handle("POST /checkinout/reset", warehouse(s.ResetSubmit))

	mux.Handle("GET /branch", branchOnly(s.BranchPage))
	mux.Handle("POST /branch/tab", branchOnly(s.BranchTabSubmit))
	mux.Handle("POST /branch/scanner", branchOnly(s.BranchScannerSubmit))
	mux.Handle("POST /branch/scan", branchOnly(s.BranchScanSubmit))
	mux.Handle("POST /branch/checkout", branchOnly(s.BranchCheckoutSubmit))
	mux.Handle("POST /branch/checkin", branchOnly(s.BranchCheckinSubmit))

	return mux, s, nil
}

// Home handles GET / by sending the user to the page their role works in.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	switch {
	case model.CanUseWarehouse(sess.Role):
		http.Redirect(w, r, "/checkinout", http.StatusSeeOther)
	case model.CanUseBranch(sess.Role):
		http.Redirect(w, r, "/branch", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/activity", http.StatusSeeOther)
	}
}
