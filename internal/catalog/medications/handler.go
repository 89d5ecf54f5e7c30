package medications

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pharmaflow/pharmaflow/internal/catalog/categories"
	"github.com/pharmaflow/pharmaflow/internal/shared"
	"github.com/pharmaflow/pharmaflow/internal/stock"
	"github.com/pharmaflow/pharmaflow/internal/view"
)

// Handler wires HTTP endpoints for the medication catalog.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	categories *categories.Service
	stock      *stock.Service
	templates  *view.Engine
	csrf       *shared.CSRFManager
	sessions   *shared.SessionManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, catService *categories.Service, stockService *stock.Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		categories: catService,
		stock:      stockService,
		templates:  templates,
		csrf:       csrf,
		sessions:   sessions,
	}
}

// MountRoutes registers medication routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/new", h.Form)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Get("/{id}/edit", h.EditForm)
	r.Post("/{id}", h.Update)
	r.Post("/{id}/delete", h.Delete)
	r.Get("/{id}/movements/new", h.MovementForm)
	r.Post("/{id}/movements", h.CreateMovement)
}

type listPageData struct {
	Medications    []Medication
	Categories     []categories.Category
	Search         string
	CategoryFilter string
	StockFilter    string
	Pagination     shared.Pagination
	PrevPage       int
	NextPage       int
}

type formPageData struct {
	Medication    Medication
	Categories    []categories.Category
	Errors        map[string]string
	CategoryValue int64
	ExpiryValue   string
}

type detailPageData struct {
	Medication Medication
	Movements  []stock.Movement
}

type movementPageData struct {
	Medication Medication
	Errors     map[string]string
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Search:      q.Get("search"),
		StockFilter: q.Get("stock"),
	}
	if raw := q.Get("category"); raw != "" {
		filters.CategoryID, _ = strconv.ParseInt(raw, 10, 64)
	}

	page, _ := strconv.Atoi(q.Get("page"))

	meds, pagination, err := h.service.List(r.Context(), filters, page)
	if err != nil {
		h.logger.Error("list medications failed", "error", err)
		http.Error(w, "Failed to load medications", http.StatusInternalServerError)
		return
	}
	cats, err := h.categories.List(r.Context(), "")
	if err != nil {
		h.logger.Error("list categories failed", "error", err)
		http.Error(w, "Failed to load categories", http.StatusInternalServerError)
		return
	}

	data := listPageData{
		Medications:    meds,
		Categories:     cats,
		Search:         filters.Search,
		CategoryFilter: q.Get("category"),
		StockFilter:    filters.StockFilter,
		Pagination:     pagination,
	}
	if pagination.Page > 1 {
		data.PrevPage = pagination.Page - 1
	}
	if pagination.Page < pagination.TotalPages {
		data.NextPage = pagination.Page + 1
	}
	h.render(w, r, "pages/medication_list.html", data, http.StatusOK)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	med, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Medication not found", http.StatusNotFound)
		return
	}
	movements, err := h.stock.RecentMovements(r.Context(), id, 20)
	if err != nil {
		h.logger.Error("load movements failed", "error", err, "medication_id", id)
		movements = nil
	}
	h.render(w, r, "pages/medication_detail.html", detailPageData{Medication: med, Movements: movements}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.List(r.Context(), "")
	if err != nil {
		http.Error(w, "Failed to load categories", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/medication_form.html", formPageData{
		Categories: cats,
		Errors:     map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	med, catValue, expiryValue, err := h.parseForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if uid, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
			med.CreatedBy = &uid
		}
	}
	created, err := h.service.Create(r.Context(), med)
	if err != nil {
		h.renderForm(w, r, med, catValue, expiryValue, err)
		return
	}
	h.redirectWithFlash(w, r, "/catalog/medications/"+strconv.FormatInt(created.ID, 10), "success", "Médicament créé")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	med, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Medication not found", http.StatusNotFound)
		return
	}
	cats, err := h.categories.List(r.Context(), "")
	if err != nil {
		http.Error(w, "Failed to load categories", http.StatusInternalServerError)
		return
	}
	catValue := int64(0)
	if med.CategoryID != nil {
		catValue = *med.CategoryID
	}
	expiryValue := ""
	if !med.ExpiryDate.IsZero() {
		expiryValue = med.ExpiryDate.Format("2006-01-02")
	}
	h.render(w, r, "pages/medication_form.html", formPageData{
		Medication:    med,
		Categories:    cats,
		Errors:        map[string]string{},
		CategoryValue: catValue,
		ExpiryValue:   expiryValue,
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	med, catValue, expiryValue, err := h.parseForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	med.ID = id
	if err := h.service.Update(r.Context(), id, med); err != nil {
		h.renderForm(w, r, med, catValue, expiryValue, err)
		return
	}
	h.redirectWithFlash(w, r, "/catalog/medications/"+strconv.FormatInt(id, 10), "success", "Médicament mis à jour")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete medication failed", "error", err, "id", id)
		h.redirectWithFlash(w, r, "/catalog/medications", "error", userMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/catalog/medications", "success", "Médicament supprimé")
}

func (h *Handler) MovementForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	med, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Medication not found", http.StatusNotFound)
		return
	}
	h.render(w, r, "pages/movement_form.html", movementPageData{Medication: med, Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	quantity, _ := strconv.ParseInt(r.PostFormValue("quantity"), 10, 64)
	req := stock.MovementRequest{
		MedicationID: id,
		MovementType: stock.MovementType(r.PostFormValue("movement_type")),
		Quantity:     quantity,
		Reason:       r.PostFormValue("reason"),
		Reference:    r.PostFormValue("reference"),
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if uid, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
			req.CreatedBy = &uid
		}
	}
	if _, err := h.stock.Record(r.Context(), req); err != nil {
		med, getErr := h.service.Get(r.Context(), id)
		if getErr != nil {
			http.Error(w, "Medication not found", http.StatusNotFound)
			return
		}
		h.render(w, r, "pages/movement_form.html", movementPageData{
			Medication: med,
			Errors:     map[string]string{"general": userMessage(err)},
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/catalog/medications/"+strconv.FormatInt(id, 10), "success", "Mouvement enregistré")
}

func (h *Handler) parseForm(r *http.Request) (Medication, int64, string, error) {
	if err := r.ParseForm(); err != nil {
		return Medication{}, 0, "", err
	}
	purchasePrice, _ := strconv.ParseFloat(r.PostFormValue("purchase_price"), 64)
	sellingPrice, _ := strconv.ParseFloat(r.PostFormValue("selling_price"), 64)
	quantity, _ := strconv.ParseInt(r.PostFormValue("quantity"), 10, 64)
	minQuantity, _ := strconv.ParseInt(r.PostFormValue("min_quantity"), 10, 64)

	med := Medication{
		Name:                 r.PostFormValue("name"),
		DCI:                  r.PostFormValue("dci"),
		Barcode:              r.PostFormValue("barcode"),
		Form:                 r.PostFormValue("form"),
		Dosage:               r.PostFormValue("dosage"),
		PurchasePrice:        purchasePrice,
		SellingPrice:         sellingPrice,
		Quantity:             quantity,
		MinQuantity:          minQuantity,
		Location:             r.PostFormValue("location"),
		RequiresPrescription: r.PostFormValue("requires_prescription") == "on",
		Image:                r.PostFormValue("image"),
		Description:          r.PostFormValue("description"),
	}

	catValue := int64(0)
	if raw := r.PostFormValue("category_id"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			med.CategoryID = &parsed
			catValue = parsed
		}
	}
	expiryValue := r.PostFormValue("expiry_date")
	if expiryValue != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", expiryValue, time.Local); err == nil {
			med.ExpiryDate = parsed
		}
	}
	return med, catValue, expiryValue, nil
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, med Medication, catValue int64, expiryValue string, cause error) {
	cats, err := h.categories.List(r.Context(), "")
	if err != nil {
		http.Error(w, "Failed to load categories", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/medication_form.html", formPageData{
		Medication:    med,
		Categories:    cats,
		Errors:        map[string]string{"general": userMessage(cause)},
		CategoryValue: catValue,
		ExpiryValue:   expiryValue,
	}, http.StatusBadRequest)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrDuplicateName):
		return "Un médicament avec ce nom ou ce code-barres existe déjà"
	case errors.Is(err, shared.ErrInUse):
		return "Ce médicament apparaît dans des ventes et ne peut pas être supprimé"
	case errors.Is(err, shared.ErrNotFound):
		return "Médicament introuvable"
	case errors.Is(err, stock.ErrNegativeStock):
		return "Stock insuffisant pour ce mouvement"
	case errors.Is(err, stock.ErrInvalidQuantity):
		return "La quantité doit être strictement positive"
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
		Title:       "Médicaments",
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
