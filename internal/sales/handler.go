package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pharmaflow/pharmaflow/internal/catalog/medications"
	"github.com/pharmaflow/pharmaflow/internal/observability"
	"github.com/pharmaflow/pharmaflow/internal/platform/httpx"
	"github.com/pharmaflow/pharmaflow/internal/sales/customers"
	"github.com/pharmaflow/pharmaflow/internal/sales/prescriptions"
	"github.com/pharmaflow/pharmaflow/internal/shared"
	"github.com/pharmaflow/pharmaflow/internal/view"
)

// Handler wires the point of sale, the finalization API and the sale
// history pages.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	medications   *medications.Service
	customers     *customers.Service
	prescriptions *prescriptions.Service
	templates     *view.Engine
	csrf          *shared.CSRFManager
	sessions      *shared.SessionManager
	metrics       *observability.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, medService *medications.Service, custService *customers.Service, presService *prescriptions.Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		medications:   medService,
		customers:     custService,
		prescriptions: presService,
		templates:     templates,
		csrf:          csrf,
		sessions:      sessions,
		metrics:       metrics,
	}
}

func (h *Handler) POSPage(w http.ResponseWriter, r *http.Request) {
	custs, err := h.customers.List(r.Context(), "")
	if err != nil {
		h.logger.Error("list customers failed", "error", err)
		http.Error(w, "Failed to load customers", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/pos.html", map[string]any{"Customers": custs}, http.StatusOK)
}

// SearchMedications powers the POS autocomplete. Only in-stock rows are
// returned, capped at ten.
func (h *Handler) SearchMedications(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	results, err := h.medications.Search(r.Context(), term)
	if err != nil {
		h.logger.Error("medication search failed", "error", err, "term", term)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"medications": results})
}

type createSaleResponse struct {
	Success    bool   `json:"success"`
	SaleID     int64  `json:"sale_id"`
	SaleNumber string `json:"sale_number"`
	Message    string `json:"message"`
}

// CreateSale finalizes a sale from the POS. Clients may pass an
// Idempotency-Key header so that a retried submit never double-sells.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "corps JSON invalide"})
		return
	}

	var actorID *int64
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if uid, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
			actorID = &uid
		}
	}

	sale, err := h.service.CreateSale(r.Context(), req, actorID, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Warn("create sale failed", "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			status = http.StatusConflict
		}
		httpx.JSON(w, status, map[string]any{"success": false, "message": userMessage(err)})
		return
	}

	h.metrics.ObserveSale(sale.Total)

	if req.PrescriptionID != nil {
		if err := h.prescriptions.MarkServed(r.Context(), *req.PrescriptionID, sale.ID); err != nil {
			h.logger.Warn("mark prescription served failed", "error", err, "prescription_id", *req.PrescriptionID)
		}
	}

	httpx.JSON(w, http.StatusOK, createSaleResponse{
		Success:    true,
		SaleID:     sale.ID,
		SaleNumber: sale.SaleNumber,
		Message:    "Vente " + sale.SaleNumber + " créée avec succès",
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search")}
	dateFilter := q.Get("date")
	if dateFilter != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", dateFilter, time.Local); err == nil {
			filters.Date = &parsed
		}
	}

	sales, revenue, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list sales failed", "error", err)
		http.Error(w, "Failed to load sales", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/sale_list.html", map[string]any{
		"Sales":      sales,
		"Search":     filters.Search,
		"DateFilter": dateFilter,
		"Count":      len(sales),
		"Revenue":    revenue,
	}, http.StatusOK)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sale, items, ok := h.loadSale(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/sale_detail.html", map[string]any{
		"Sale":         sale,
		"Items":        items,
		"CustomerName": sale.CustomerName,
	}, http.StatusOK)
}

func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	sale, items, ok := h.loadSale(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/invoice.html", map[string]any{
		"Sale":         sale,
		"Items":        items,
		"CustomerName": sale.CustomerName,
	}, http.StatusOK)
}

func (h *Handler) loadSale(w http.ResponseWriter, r *http.Request) (Sale, []SaleItem, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid sale ID", http.StatusBadRequest)
		return Sale{}, nil, false
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Sale not found", http.StatusNotFound)
		return Sale{}, nil, false
	}
	items, err := h.service.GetItems(r.Context(), id)
	if err != nil {
		h.logger.Error("load sale items failed", "error", err, "id", id)
		http.Error(w, "Failed to load sale", http.StatusInternalServerError)
		return Sale{}, nil, false
	}
	return sale, items, true
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return err.Error()
	case errors.Is(err, ErrUnknownMedication):
		return "Un des médicaments demandés n'existe pas"
	case errors.Is(err, ErrEmptySale):
		return "La vente doit contenir au moins un article"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return "Cette vente a déjà été enregistrée"
	default:
		return err.Error()
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Ventes",
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
