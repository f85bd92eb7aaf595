package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/db"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/store"
)

// fakeCRM is an in-memory stand-in for the CRM backend.
type fakeCRM struct {
	mu        sync.Mutex
	location  model.Location
	checkouts []backend.CheckoutRequest
	branch    []backend.BranchCheckoutRequest
	logouts   int
}

var fakeUsers = map[string]string{
	"tech":   model.RoleTechnician,
	"shop":   model.RoleRetailer,
	"client": model.RoleClient,
	"admin":  model.RoleAdmin,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeCRM) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		role, ok := fakeUsers[req["username"]]
		if !ok || req["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "crm-" + req["username"],
			"user":         map[string]string{"id": "u-" + req["username"], "username": req["username"], "role": role},
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/barcode/lookup", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["code"] == "EXPIRED" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
			return
		}
		if req["code"] != "SN-1" {
			writeJSON(w, http.StatusOK, map[string]any{"found": false, "message": "No item found for code " + req["code"]})
			return
		}
		f.mu.Lock()
		loc := f.location
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"found":     true,
			"item_type": "serialized_item",
			"data": map[string]any{
				"id":               "it-1",
				"serial_number":    "SN-1",
				"status":           "in_stock",
				"current_location": loc,
				"product":          map[string]string{"id": "p-1", "name": "Inverter 5kW"},
			},
		})
	})
	mux.HandleFunc("POST /api/serialized-items/it-1/checkout", func(w http.ResponseWriter, r *http.Request) {
		var req backend.CheckoutRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.checkouts = append(f.checkouts, req)
		f.location = model.LocationInTransit
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "in_transit", "message": "Checked out"})
	})
	mux.HandleFunc("GET /api/orders/pending-fulfillment", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{
			"id":            "o-1",
			"order_number":  "ORD-1",
			"customer_name": "Novak",
			"lines": []map[string]any{
				{"id": "l-1", "product_name": "Inverter 5kW", "quantity": 2, "units_assigned": 0},
			},
		}})
	})
	mux.HandleFunc("GET /api/serialized-items/it-1/location-history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"from_location": "warehouse", "to_location": "in_transit", "timestamp": "2026-03-01T10:00:00Z", "actor": "tech"},
		})
	})
	mux.HandleFunc("POST /api/branches/br-1/checkout", func(w http.ResponseWriter, r *http.Request) {
		var req backend.BranchCheckoutRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.branch = append(f.branch, req)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Sold to " + req.CustomerName})
	})
	return mux
}

type testPortal struct {
	url    string
	crm    *fakeCRM
	server *Server
}

func setupPortal(t *testing.T) *testPortal {
	t.Helper()

	crm := &fakeCRM{location: model.LocationWarehouse}
	crmServer := httptest.NewServer(crm.handler())
	t.Cleanup(crmServer.Close)

	sealer, err := store.NewSealer(bytes.Repeat([]byte{3}, 32))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	handler, srv, err := NewRouter(Options{
		DB:        db.NewTestDB(t),
		Backend:   backend.New(crmServer.URL, 5*time.Second, nil),
		JWTSecret: "test-secret",
		Sealer:    sealer,
		BranchID:  "br-1",
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	portal := httptest.NewServer(handler)
	t.Cleanup(portal.Close)

	return &testPortal{url: portal.URL, crm: crm, server: srv}
}

// browser returns a client that keeps cookies and does not follow redirects.
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func post(t *testing.T, c *http.Client, u string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	resp.Body.Close()
	return resp
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.String()
}

func (p *testPortal) login(t *testing.T, username string) *http.Client {
	t.Helper()
	c := browser(t)
	resp := post(t, c, p.url+"/login", url.Values{"username": {username}, "password": {"secret"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("login as %s: status %d location %q", username, resp.StatusCode, resp.Header.Get("Location"))
	}
	return c
}

func TestUnauthenticatedRedirect(t *testing.T) {
	p := setupPortal(t)
	resp, _ := get(t, browser(t), p.url+"/checkinout")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Errorf("expected redirect to /login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	p := setupPortal(t)
	c := browser(t)
	resp, err := c.PostForm(p.url+"/login", url.Values{"username": {"tech"}, "password": {"nope"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected login page, got %d", resp.StatusCode)
	}
	if !strings.Contains(buf.String(), "Invalid credentials") {
		t.Error("expected backend message on the login page")
	}
}

func TestHomeRedirectsByRole(t *testing.T) {
	p := setupPortal(t)
	tests := []struct {
		user string
		want string
	}{
		{"tech", "/checkinout"},
		{"admin", "/checkinout"},
		{"shop", "/branch"},
		{"client", "/activity"},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			c := p.login(t, tt.user)
			resp, _ := get(t, c, p.url+"/")
			if loc := resp.Header.Get("Location"); loc != tt.want {
				t.Errorf("expected %s, got %q", tt.want, loc)
			}
		})
	}
}

func TestRoleAccess(t *testing.T) {
	p := setupPortal(t)

	shop := p.login(t, "shop")
	if resp, _ := get(t, shop, p.url+"/checkinout"); resp.StatusCode != http.StatusForbidden {
		t.Errorf("retailer on warehouse page: expected 403, got %d", resp.StatusCode)
	}
	if resp, _ := get(t, shop, p.url+"/branch"); resp.StatusCode != http.StatusOK {
		t.Errorf("retailer on branch page: expected 200, got %d", resp.StatusCode)
	}

	tech := p.login(t, "tech")
	if resp, _ := get(t, tech, p.url+"/branch"); resp.StatusCode != http.StatusForbidden {
		t.Errorf("technician on branch page: expected 403, got %d", resp.StatusCode)
	}
}

func TestScanAndCheckout(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")

	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/checkinout/scan", url.Values{"code": {"  SN-1 "}})

	_, body := get(t, c, p.url+"/checkinout")
	if !strings.Contains(body, "SN-1") || !strings.Contains(body, "Inverter 5kW") {
		t.Fatal("expected scanned item on the page")
	}
	if !strings.Contains(body, `action="/checkinout/checkout"`) {
		t.Error("expected checkout form for an item in the warehouse")
	}
	if strings.Contains(body, `action="/checkinout/checkin"`) {
		t.Error("check-in must not be offered for an item in the warehouse")
	}

	post(t, c, p.url+"/checkinout/checkout", url.Values{"destination": {"technician"}, "notes": {"roof job"}})

	p.crm.mu.Lock()
	checkouts := p.crm.checkouts
	p.crm.mu.Unlock()
	if len(checkouts) != 1 || checkouts[0].Destination != model.LocationTechnician || checkouts[0].Notes != "roof job" {
		t.Fatalf("unexpected checkouts %+v", checkouts)
	}

	_, body = get(t, c, p.url+"/checkinout")
	if !strings.Contains(body, "Checked out") {
		t.Error("expected backend success message")
	}
	if !strings.Contains(body, `action="/checkinout/checkin"`) {
		t.Error("expected check-in form for an item in transit")
	}

	entries, err := store.ListActivity(context.Background(), p.server.DB, store.ActivityFilter{})
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected scan and checkout activity, got %d", len(entries))
	}
	if entries[0].Action != model.ActionCheckout || entries[1].Action != model.ActionScan || entries[1].Subject != "SN-1" {
		t.Errorf("unexpected activity %+v", entries)
	}
}

func TestScanNotFound(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")

	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/checkinout/scan", url.Values{"code": {"SN-404"}})

	_, body := get(t, c, p.url+"/checkinout")
	if !strings.Contains(body, "No item found for code SN-404") {
		t.Error("expected not-found message")
	}
}

func TestBlankCodeKeepsScannerOpen(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")

	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/checkinout/scan", url.Values{"code": {"   "}})

	_, body := get(t, c, p.url+"/checkinout")
	if !strings.Contains(body, "Enter or scan a code first.") {
		t.Error("expected inline hint for blank input")
	}
	if !strings.Contains(body, `name="code"`) {
		t.Error("expected device input to stay open")
	}
}

func TestHistoryExport(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")

	if resp, _ := get(t, c, p.url+"/checkinout/history.xlsx"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without an item, got %d", resp.StatusCode)
	}

	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/checkinout/scan", url.Values{"code": {"SN-1"}})

	resp, body := get(t, c, p.url+"/checkinout/history.xlsx")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "history-SN-1.xlsx") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	f, err := excelize.OpenReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	actor, err := f.GetCellValue("History", "F5")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if actor != "tech" {
		t.Errorf("expected actor tech, got %q", actor)
	}
}

func TestBranchCheckout(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "shop")

	post(t, c, p.url+"/branch/checkout", url.Values{"serial_number": {"SN-9"}})
	_, body := get(t, c, p.url+"/branch")
	if !strings.Contains(body, "customer_name") {
		t.Fatal("expected checkout form")
	}
	p.crm.mu.Lock()
	calls := len(p.crm.branch)
	p.crm.mu.Unlock()
	if calls != 0 {
		t.Fatal("invalid form must not reach the backend")
	}

	post(t, c, p.url+"/branch/checkout", url.Values{"serial_number": {"SN-9"}, "customer_name": {"Ana"}})
	_, body = get(t, c, p.url+"/branch")
	if !strings.Contains(body, "Sold to Ana") {
		t.Error("expected backend message")
	}
	if strings.Contains(body, `value="SN-9"`) {
		t.Error("form must be cleared after success")
	}
}

func TestBranchScanFillsActiveTab(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "shop")

	post(t, c, p.url+"/branch/tab", url.Values{"tab": {"checkin"}})
	post(t, c, p.url+"/branch/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/branch/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/branch/scan", url.Values{"code": {"SN-77"}})

	_, body := get(t, c, p.url+"/branch")
	if !strings.Contains(body, `action="/branch/checkin"`) || !strings.Contains(body, `value="SN-77"`) {
		t.Error("expected scanned serial in the check-in form")
	}
}

func TestActivityScopedToUser(t *testing.T) {
	p := setupPortal(t)
	ctx := context.Background()
	for _, u := range []string{"tech", "shop"} {
		store.RecordActivity(ctx, p.server.DB, &model.Activity{Username: u, Action: model.ActionScan, Subject: "code-" + u, Outcome: model.OutcomeOK})
	}

	_, body := get(t, p.login(t, "tech"), p.url+"/activity")
	if !strings.Contains(body, "code-tech") || strings.Contains(body, "code-shop") {
		t.Error("non-admin must see only their own activity")
	}

	_, body = get(t, p.login(t, "admin"), p.url+"/activity")
	if !strings.Contains(body, "code-tech") || !strings.Contains(body, "code-shop") {
		t.Error("admin must see all activity")
	}
}

func TestLogout(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")
	get(t, c, p.url+"/checkinout")
	if p.server.Workspaces.Len() != 1 {
		t.Fatalf("expected one workspace, got %d", p.server.Workspaces.Len())
	}

	// Keep the old cookie to replay it after logout.
	u, _ := url.Parse(p.url)
	old := c.Jar.Cookies(u)

	resp := post(t, c, p.url+"/logout", nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Errorf("expected redirect to /login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if p.server.Workspaces.Len() != 0 {
		t.Error("expected workspace to be dropped")
	}
	p.crm.mu.Lock()
	logouts := p.crm.logouts
	p.crm.mu.Unlock()
	if logouts != 1 {
		t.Errorf("expected one backend logout, got %d", logouts)
	}

	replay := browser(t)
	replay.Jar.SetCookies(u, old)
	resp, _ = get(t, replay, p.url+"/checkinout")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Error("revoked token must not authenticate")
	}
}

func TestBackendRejectsSessionToken(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")

	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/checkinout/scan", url.Values{"code": {"EXPIRED"}})

	u, _ := url.Parse(p.url)
	old := c.Jar.Cookies(u)

	resp, _ := get(t, c, p.url+"/checkinout")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if p.server.Workspaces.Len() != 0 {
		t.Error("expected workspace to be dropped")
	}

	replay := browser(t)
	replay.Jar.SetCookies(u, old)
	if resp, _ := get(t, replay, p.url+"/checkinout"); resp.Header.Get("Location") != "/login" {
		t.Error("ended session must not authenticate")
	}
}

func TestCheckoutAwayFromCustomerDropsOrder(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")

	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/checkinout/scan", url.Values{"code": {"SN-1"}})
	post(t, c, p.url+"/checkinout/orders", url.Values{"notes": {""}})
	post(t, c, p.url+"/checkinout/order", url.Values{"order_id": {"o-1"}, "order_line_id": {"l-1"}})

	// The order select is still on the page and gets posted with the form.
	post(t, c, p.url+"/checkinout/destination", url.Values{
		"destination": {"technician"}, "order_id": {"o-1"}, "order_line_id": {"l-1"},
	})
	_, body := get(t, c, p.url+"/checkinout")
	if strings.Contains(body, "orders can only be selected") {
		t.Error("changing the destination must not report an order error")
	}

	post(t, c, p.url+"/checkinout/checkout", url.Values{
		"destination": {"technician"}, "order_id": {"o-1"}, "order_line_id": {"l-1"},
	})

	p.crm.mu.Lock()
	checkouts := p.crm.checkouts
	p.crm.mu.Unlock()
	if len(checkouts) != 1 {
		t.Fatalf("expected one checkout, got %d", len(checkouts))
	}
	if checkouts[0].Destination != model.LocationTechnician || checkouts[0].OrderLineID != "" {
		t.Errorf("unexpected checkout %+v", checkouts[0])
	}
}

func TestCustomerCheckoutBindsOrderLine(t *testing.T) {
	p := setupPortal(t)
	c := p.login(t, "tech")

	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"open"}})
	post(t, c, p.url+"/checkinout/scanner", url.Values{"action": {"device"}})
	post(t, c, p.url+"/checkinout/scan", url.Values{"code": {"SN-1"}})
	post(t, c, p.url+"/checkinout/orders", url.Values{"notes": {""}})
	post(t, c, p.url+"/checkinout/checkout", url.Values{
		"destination": {"customer"}, "order_id": {"o-1"}, "order_line_id": {"l-1"},
	})

	p.crm.mu.Lock()
	checkouts := p.crm.checkouts
	p.crm.mu.Unlock()
	if len(checkouts) != 1 || checkouts[0].OrderLineID != "l-1" {
		t.Fatalf("expected checkout bound to l-1, got %+v", checkouts)
	}
}
