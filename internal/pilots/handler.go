package pilots

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/artisouq/artisouq/internal/orders"
	"github.com/artisouq/artisouq/internal/platform/httpx"
	"github.com/artisouq/artisouq/internal/shared"
)

// Handler manages delivery HTTP endpoints: pilot roster CRUD plus the
// assignment and location routes couriers hit from the road.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers delivery routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pilots", h.list)
	r.Get("/pilots/available", h.listAvailable)
	r.Post("/pilots", h.create)
	r.Get("/pilots/{id}", h.get)
	r.Put("/pilots/{id}", h.update)
	r.Post("/assign/{orderID}", h.assign)
	r.Put("/location/{orderID}", h.reportLocation)
}

type createPilotRequest struct {
	Name          string `json:"name" validate:"required"`
	Phone         string `json:"phone" validate:"required"`
	Email         string `json:"email" validate:"omitempty,email"`
	VehicleType   string `json:"vehicleType"`
	VehicleNumber string `json:"vehicleNumber"`
}

type updatePilotRequest struct {
	Name          *string `json:"name"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email" validate:"omitempty,email"`
	VehicleType   *string `json:"vehicleType"`
	VehicleNumber *string `json:"vehicleNumber"`
	IsActive      *bool   `json:"isActive"`
}

type assignRequest struct {
	PilotID uuid.UUID `json:"pilotId" validate:"required"`
}

type locationRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage, offset := shared.PageParams(r)
	items, total, err := h.service.List(r.Context(), perPage, offset)
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

func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAvailable(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid pilot id")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPilotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Create(r.Context(), CreateRequest{
		Name:          req.Name,
		Phone:         req.Phone,
		Email:         req.Email,
		VehicleType:   req.VehicleType,
		VehicleNumber: req.VehicleNumber,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": p})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid pilot id")
		return
	}

	var req updatePilotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Update(r.Context(), id, UpdateRequest{
		Name:          req.Name,
		Phone:         req.Phone,
		Email:         req.Email,
		VehicleType:   req.VehicleType,
		VehicleNumber: req.VehicleNumber,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}

	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	o, err := h.service.Assign(r.Context(), orderID, req.PilotID, shared.ActorFromRequest(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": o})
}

func (h *Handler) reportLocation(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}

	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	o, err := h.service.ReportLocation(r.Context(), orderID, req.Lat, req.Lng)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": o})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, orders.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBusy), errors.Is(err, orders.ErrAlreadyFinal):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInactive),
		errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrPhoneRequired),
		errors.Is(err, orders.ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("delivery handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
