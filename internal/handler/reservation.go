package handler

import (
	"errors"   // for errors.As inspection of typed failures
	"net/http" // HTTP status codes
	"strconv"  // parsing path parameters
	"time"     // binding timestamps

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// ReservationHandler exposes the orchestrator over HTTP.  All methods
// assume JWT authentication has already run, so the request context
// carries the caller's bearer token for the orchestrator's outbound
// registry calls.
type ReservationHandler struct {
	Svc *service.ReservationService
}

// NewReservationHandler constructs a ReservationHandler.  The service must
// be non-nil.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

// reservationBody is the JSON payload accepted by create and update.  The
// wire names match the fields served back on Reservation.
type reservationBody struct {
	ParkingSpotID uint64    `json:"parkingSpotId"`
	VehicleID     uint64    `json:"vehicleId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Status        string    `json:"status"`
}

// List handles GET /reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	items, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get handles GET /reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Details handles GET /reservations/:id/details.  It returns the
// reservation together with the spot and vehicle fetched live from their
// registries.
func (h *ReservationHandler) Details(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	det, err := h.Svc.Details(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, det)
}

// ListBySpot handles GET /reservations/parking-spot/:parkingSpotId.
func (h *ReservationHandler) ListBySpot(c echo.Context) error {
	id, err := pathID(c, "parkingSpotId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid parking spot id"})
	}
	items, err := h.Svc.ListBySpot(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// ListByVehicle handles GET /reservations/vehicle/:vehicleId.
func (h *ReservationHandler) ListByVehicle(c echo.Context) error {
	id, err := pathID(c, "vehicleId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}
	items, err := h.Svc.ListByVehicle(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// ListByStatus handles GET /reservations/status/:status.
func (h *ReservationHandler) ListByStatus(c echo.Context) error {
	items, err := h.Svc.ListByStatus(c.Request().Context(), c.Param("status"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Create handles POST /reservations.  A status in the payload is rejected
// the same way update rejects it: new reservations always start ACTIVE.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body reservationBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Svc.Create(c.Request().Context(), service.CreateInput{
		ParkingSpotID: body.ParkingSpotID,
		VehicleID:     body.VehicleID,
		StartTime:     body.StartTime,
		EndTime:       body.EndTime,
		Status:        body.Status,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles PUT /reservations/:id.  Status changes are rejected
// here; they go through the complete and cancel endpoints.
func (h *ReservationHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body reservationBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Svc.Update(c.Request().Context(), id, service.UpdateInput{
		ParkingSpotID: body.ParkingSpotID,
		VehicleID:     body.VehicleID,
		StartTime:     body.StartTime,
		EndTime:       body.EndTime,
		Status:        body.Status,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Complete handles PATCH /reservations/:id/complete.
func (h *ReservationHandler) Complete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Svc.Complete(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles PATCH /reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /reservations/:id.  Local removal only; the spot
// registry is deliberately not called.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// writeError translates the shared error taxonomy into HTTP responses.
// Validation failures map to 400, missing entities to 404, rejected
// transitions to 409, rejected credentials to 401, unreachable registries
// to 502 and everything else to 500.  Error kinds are preserved in the
// message so callers can tell a missing spot from a missing reservation.
func writeError(c echo.Context, err error) error {
	var (
		ve *model.ValidationError
		nf *model.NotFoundError
		it *model.InvalidTransitionError
		su *model.SpotUnavailableError
		ue *model.UnauthorizedError
		re *model.RemoteUnavailableError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error()})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Error()})
	case errors.As(err, &it):
		return c.JSON(http.StatusConflict, echo.Map{"error": it.Error()})
	case errors.As(err, &su):
		return c.JSON(http.StatusConflict, echo.Map{"error": su.Error()})
	case errors.As(err, &ue):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": ue.Error()})
	case errors.As(err, &re):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": re.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
