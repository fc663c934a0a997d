package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/artisouq/artisouq/internal/cart"
	"github.com/artisouq/artisouq/internal/platform/httpx"
	"github.com/artisouq/artisouq/internal/shared"
)

// Handler manages order HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes on the router. Tracking by order
// number is public; everything else expects a user identity, with the
// admin listing and mutations meant to sit behind the gateway's role
// checks.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.listMine)
	r.Get("/admin", h.listAll)
	r.Get("/track/{orderNumber}", h.track)
	r.Get("/{id}", h.get)
	r.Put("/{id}/status", h.updateStatus)
	r.Put("/{id}/payment", h.updatePayment)
}

type addressRequest struct {
	Street      string    `json:"street" validate:"required"`
	City        string    `json:"city" validate:"required"`
	State       string    `json:"state"`
	Country     string    `json:"country" validate:"required"`
	ZipCode     string    `json:"zipCode"`
	Phone       string    `json:"phone"`
	Coordinates *GeoPoint `json:"coordinates"`
}

type createOrderRequest struct {
	ShippingAddress addressRequest `json:"shippingAddress" validate:"required"`
	PaymentMethod   string         `json:"paymentMethod" validate:"required,oneof=cod knet card"`
	CustomerName    string         `json:"customerName"`
	Notes           string         `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=pending paid failed refunded"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	o, err := h.service.Create(r.Context(), CreateRequest{
		UserID:       user,
		CustomerName: req.CustomerName,
		ShippingAddress: Address{
			Street:      req.ShippingAddress.Street,
			City:        req.ShippingAddress.City,
			State:       req.ShippingAddress.State,
			Country:     req.ShippingAddress.Country,
			ZipCode:     req.ShippingAddress.ZipCode,
			Phone:       req.ShippingAddress.Phone,
			Coordinates: req.ShippingAddress.Coordinates,
		},
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": o})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	page, perPage, offset := shared.PageParams(r)
	items, total, err := h.service.ListMine(r.Context(), user, perPage, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	page, perPage, offset := shared.PageParams(r)
	status := Status(strings.TrimSpace(r.URL.Query().Get("status")))
	items, total, err := h.service.ListAll(r.Context(), status, perPage, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": o})
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Track(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": view})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}

	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status), req.Note, shared.ActorFromRequest(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": o})
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}

	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	o, err := h.service.UpdatePaymentStatus(r.Context(), id, PaymentStatus(req.PaymentStatus))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": o})
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor := shared.ActorFromRequest(r)
	if actor == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing user identity")
		return uuid.Nil, false
	}
	return *actor, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyFinal):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrBackwardTransition),
		errors.Is(err, ErrInvalidPayment),
		errors.Is(err, ErrInvalidPaymentState),
		errors.Is(err, ErrAddressIncomplete),
		errors.Is(err, ErrProductUnavailable),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, cart.ErrEmptyCart):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("orders handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
