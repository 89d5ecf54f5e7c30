package prescriptions

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pharmaflow/pharmaflow/internal/sales/customers"
	"github.com/pharmaflow/pharmaflow/internal/shared"
	"github.com/pharmaflow/pharmaflow/internal/view"
)

// Handler wires HTTP endpoints for prescriptions, nested under a
// customer.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	customers *customers.Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, custService *customers.Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager) *Handler {
	return &Handler{logger: logger, service: service, customers: custService, templates: templates, csrf: csrf, sessions: sessions}
}

// MountRoutes registers prescription routes on the customers subrouter.
// The wildcard name matches the customer routes; chi requires a single
// param key per position.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/prescriptions", h.List)
	r.Get("/{id}/prescriptions/new", h.Form)
	r.Post("/{id}/prescriptions", h.Create)
	r.Get("/{id}/prescriptions/{prescriptionID}", h.Show)
}

type formData struct {
	Customer     customers.Customer
	Prescription Prescription
	Errors       map[string]string
	DateValue    string
	ExpiryValue  string
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByCustomer(r.Context(), customer.ID)
	if err != nil {
		h.logger.Error("list prescriptions failed", "error", err, "customer_id", customer.ID)
		http.Error(w, "Failed to load prescriptions", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/prescription_list.html", map[string]any{
		"Customer":      customer,
		"Prescriptions": list,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/prescription_form.html", formData{
		Customer: customer,
		Errors:   map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	p := Prescription{
		CustomerID:         customer.ID,
		PrescriptionNumber: r.PostFormValue("prescription_number"),
		DoctorName:         r.PostFormValue("doctor_name"),
		Notes:              r.PostFormValue("notes"),
	}
	dateValue := r.PostFormValue("prescription_date")
	if dateValue != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", dateValue, time.Local); err == nil {
			p.PrescriptionDate = parsed
		}
	}
	expiryValue := r.PostFormValue("expiry_date")
	if expiryValue != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", expiryValue, time.Local); err == nil {
			p.ExpiryDate = parsed
		}
	}
	if _, err := h.service.Create(r.Context(), p); err != nil {
		h.render(w, r, "pages/prescription_form.html", formData{
			Customer:     customer,
			Prescription: p,
			Errors:       map[string]string{"general": err.Error()},
			DateValue:    dateValue,
			ExpiryValue:  expiryValue,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/sales/customers/"+strconv.FormatInt(customer.ID, 10)+"/prescriptions", "success", "Ordonnance enregistrée")
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "prescriptionID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid prescription ID", http.StatusBadRequest)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil || p.CustomerID != customer.ID {
		http.Error(w, "Prescription not found", http.StatusNotFound)
		return
	}
	h.render(w, r, "pages/prescription_detail.html", map[string]any{
		"Customer":     customer,
		"Prescription": p,
	}, http.StatusOK)
}

func (h *Handler) loadCustomer(w http.ResponseWriter, r *http.Request) (customers.Customer, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid customer ID", http.StatusBadRequest)
		return customers.Customer{}, false
	}
	customer, err := h.customers.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Customer not found", http.StatusNotFound)
		return customers.Customer{}, false
	}
	return customer, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Ordonnances",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", "error", err, "template", template)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
