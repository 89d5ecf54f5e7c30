package customers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pharmaflow/pharmaflow/internal/shared"
	"github.com/pharmaflow/pharmaflow/internal/view"
)

// Handler wires HTTP endpoints for customer management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions}
}

// MountRoutes registers customer routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/new", h.Form)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Get("/{id}/edit", h.EditForm)
	r.Post("/{id}", h.Update)
	r.Get("/{id}/sales", h.SalesHistory)
}

type formData struct {
	Customer   Customer
	Errors     map[string]string
	BirthValue string
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := q.Get("search")
	page, _ := strconv.Atoi(q.Get("page"))
	custs, pagination, err := h.service.ListPage(r.Context(), search, page)
	if err != nil {
		h.logger.Error("list customers failed", "error", err)
		http.Error(w, "Failed to load customers", http.StatusInternalServerError)
		return
	}
	prevPage, nextPage := 0, 0
	if pagination.Page > 1 {
		prevPage = pagination.Page - 1
	}
	if pagination.Page < pagination.TotalPages {
		nextPage = pagination.Page + 1
	}
	h.render(w, r, "pages/customer_list.html", map[string]any{
		"Customers":  custs,
		"Search":     search,
		"Pagination": pagination,
		"PrevPage":   prevPage,
		"NextPage":   nextPage,
	}, http.StatusOK)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid customer ID", http.StatusBadRequest)
		return
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Customer not found", http.StatusNotFound)
		return
	}
	sales, err := h.service.RecentSales(r.Context(), id, 10)
	if err != nil {
		h.logger.Error("load customer sales failed", "error", err, "id", id)
	}
	totalSpent, err := h.service.TotalSpent(r.Context(), id)
	if err != nil {
		h.logger.Error("total spent failed", "error", err, "id", id)
	}
	h.render(w, r, "pages/customer_detail.html", map[string]any{
		"Customer":   customer,
		"Sales":      sales,
		"TotalSpent": totalSpent,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/customer_form.html", formData{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	customer, birthValue, err := parseCustomerForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	created, err := h.service.Create(r.Context(), customer)
	if err != nil {
		h.render(w, r, "pages/customer_form.html", formData{
			Customer:   customer,
			Errors:     map[string]string{"general": err.Error()},
			BirthValue: birthValue,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/sales/customers/"+strconv.FormatInt(created.ID, 10), "success", "Client créé")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid customer ID", http.StatusBadRequest)
		return
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Customer not found", http.StatusNotFound)
		return
	}
	birthValue := ""
	if customer.DateOfBirth != nil {
		birthValue = customer.DateOfBirth.Format("2006-01-02")
	}
	h.render(w, r, "pages/customer_form.html", formData{
		Customer:   customer,
		Errors:     map[string]string{},
		BirthValue: birthValue,
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid customer ID", http.StatusBadRequest)
		return
	}
	customer, birthValue, err := parseCustomerForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	customer.ID = id
	if err := h.service.Update(r.Context(), id, customer); err != nil {
		h.render(w, r, "pages/customer_form.html", formData{
			Customer:   customer,
			Errors:     map[string]string{"general": err.Error()},
			BirthValue: birthValue,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/sales/customers/"+strconv.FormatInt(id, 10), "success", "Client mis à jour")
}

func (h *Handler) SalesHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid customer ID", http.StatusBadRequest)
		return
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Customer not found", http.StatusNotFound)
		return
	}
	sales, err := h.service.RecentSales(r.Context(), id, 200)
	if err != nil {
		h.logger.Error("load customer sales failed", "error", err, "id", id)
		http.Error(w, "Failed to load sales", http.StatusInternalServerError)
		return
	}
	totalSales, err := h.service.TotalSpent(r.Context(), id)
	if err != nil {
		h.logger.Error("total spent failed", "error", err, "id", id)
	}
	h.render(w, r, "pages/customer_sales.html", map[string]any{
		"Customer":   customer,
		"Sales":      sales,
		"TotalSales": totalSales,
	}, http.StatusOK)
}

func parseCustomerForm(r *http.Request) (Customer, string, error) {
	if err := r.ParseForm(); err != nil {
		return Customer{}, "", err
	}
	creditLimit, _ := strconv.ParseFloat(r.PostFormValue("credit_limit"), 64)
	customer := Customer{
		FirstName:         r.PostFormValue("first_name"),
		LastName:          r.PostFormValue("last_name"),
		Phone:             r.PostFormValue("phone"),
		Email:             r.PostFormValue("email"),
		Address:           r.PostFormValue("address"),
		CustomerType:      CustomerType(r.PostFormValue("customer_type")),
		MedicalConditions: r.PostFormValue("medical_conditions"),
		CreditLimit:       creditLimit,
	}
	birthValue := r.PostFormValue("date_of_birth")
	if birthValue != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", birthValue, time.Local); err == nil {
			customer.DateOfBirth = &parsed
		}
	}
	return customer, birthValue, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Clients",
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
