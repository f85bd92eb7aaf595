package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/store"
	webembed "github.com/erazemk/scanpoint/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

var locationNames = map[model.Location]string{
	model.LocationWarehouse:    "Warehouse",
	model.LocationCustomer:     "Customer",
	model.LocationTechnician:   "Technician",
	model.LocationManufacturer: "Manufacturer",
	model.LocationRetail:       "Retail",
	model.LocationOutsourced:   "Outsourced",
	model.LocationDisposed:     "Disposed",
	model.LocationInTransit:    "In transit",
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleTechnician:
				return "Technician"
			case model.RoleRetailer:
				return "Retailer"
			case model.RoleManufacturer:
				return "Manufacturer"
			case model.RoleClient:
				return "Client"
			default:
				return role
			}
		},
		"locationName": func(l model.Location) string {
			if name, ok := locationNames[l]; ok {
				return name
			}
			return string(l)
		},
		"statusName": func(status string) string {
			return strings.ReplaceAll(status, "_", " ")
		},
		"checkoutDestinations": func() []model.Location { return model.CheckoutDestinations },
		"arrivalLocations":     func() []model.Location { return model.ArrivalLocations },
		"canUseWarehouse":      model.CanUseWarehouse,
		"canUseBranch":         model.CanUseBranch,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"errText": func(err error) string {
			if err == nil {
				return ""
			}
			return err.Error()
		},
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	scannerBytes, err := fs.ReadFile(tfs, "scanner.html")
	if err != nil {
		return nil, fmt.Errorf("reading scanner template: %w", err)
	}

	pages := []string{
		"login.html",
		"checkinout.html",
		"branch.html",
		"activity.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		for _, part := range []string{string(layoutBytes), string(scannerBytes), string(pageBytes)} {
			tmpl, err = tmpl.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("parsing template %s: %w", page, err)
			}
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	Session *store.Session
	Error   string
	Success string
}
