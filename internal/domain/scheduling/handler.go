package scheduling

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/auth"
)

const maxAvailabilityDays = 92

type Handler struct {
	coord       *Coordinator
	pub         *Publisher
	horizonDays int
}

func NewHandler(coord *Coordinator, pub *Publisher, horizonDays int) *Handler {
	if horizonDays <= 0 {
		horizonDays = 28
	}
	return &Handler{coord: coord, pub: pub, horizonDays: horizonDays}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/availability", h.Availability)

	appts := api.Group("/appointments", auth.RequireAuth())
	appts.POST("", h.Book)
	appts.GET("", h.ListMine)
	appts.GET("/:id", h.Get)
	appts.PUT("/:id", h.Reassign)
	appts.DELETE("/:id", h.Cancel)

	admin := api.Group("/admin", auth.RequireRole("admin"))
	admin.POST("/publish", h.PublishAll)
	admin.POST("/doctors/:id/publish", h.Publish)
	admin.POST("/doctors/:id/prune", h.Prune)
	admin.POST("/slots/:id/reopen", h.Reopen)
	admin.POST("/sweep", h.Sweep)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseDateParam(c echo.Context, name string, def civil.Date) (civil.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+", want YYYY-MM-DD")
	}
	return d, nil
}

// Availability returns the doctor's open slots grouped by date. date selects a
// single day; otherwise from defaults to today and to to the end of the
// publishing horizon.
func (h *Handler) Availability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	today := h.coord.Today()
	from, err := parseDateParam(c, "date", civil.Date{})
	if err != nil {
		return err
	}
	to := from
	if !from.IsValid() {
		if from, err = parseDateParam(c, "from", today); err != nil {
			return err
		}
		if to, err = parseDateParam(c, "to", from.AddDays(h.horizonDays-1)); err != nil {
			return err
		}
	}
	if to.DaysSince(from) >= maxAvailabilityDays {
		return apperr.HTTPError(apperr.Validation("date range is limited to %d days", maxAvailabilityDays))
	}
	byDate, err := h.coord.Availability(c.Request().Context(), id, from, to)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, byDate)
}

type bookRequest struct {
	SlotID uuid.UUID `json:"slot_id"`
	OccupantRequest
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SlotID == uuid.Nil {
		return apperr.HTTPError(apperr.Validation("slot_id is required"))
	}
	ctx := c.Request().Context()
	s, err := h.coord.Book(ctx, req.SlotID, auth.UserIDFromContext(ctx), req.OccupantRequest)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

// ListMine returns the caller's appointments, optionally narrowed by status,
// doctor_id and date.
func (h *Handler) ListMine(c echo.Context) error {
	f := AppointmentFilter{Status: SlotStatus(c.QueryParam("status"))}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = id
	}
	date, err := parseDateParam(c, "date", civil.Date{})
	if err != nil {
		return err
	}
	f.Date = date

	ctx := c.Request().Context()
	appts, err := h.coord.ListForActor(ctx, auth.UserIDFromContext(ctx), f)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	appt, err := h.coord.Get(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Reassign(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req OccupantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	s, err := h.coord.ReassignOccupant(ctx, id, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	s, err := h.coord.Cancel(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

type horizonRequest struct {
	From civil.Date `json:"from"`
	Days int        `json:"days"`
}

func (h *Handler) bindHorizon(c echo.Context) (civil.Date, int, error) {
	var req horizonRequest
	if err := c.Bind(&req); err != nil {
		return civil.Date{}, 0, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.From.IsValid() {
		req.From = h.pub.Today()
	}
	if req.Days == 0 {
		req.Days = h.horizonDays
	}
	return req.From, req.Days, nil
}

func (h *Handler) Publish(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	from, days, err := h.bindHorizon(c)
	if err != nil {
		return err
	}
	res, err := h.pub.Publish(c.Request().Context(), id, from, days)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) PublishAll(c echo.Context) error {
	from, days, err := h.bindHorizon(c)
	if err != nil {
		return err
	}
	results, err := h.pub.PublishAll(c.Request().Context(), from, days)
	if err != nil && len(results) == 0 {
		return apperr.HTTPError(err)
	}
	body := map[string]interface{}{"results": results}
	if err != nil {
		body["error"] = err.Error()
	}
	return c.JSON(http.StatusOK, body)
}

func (h *Handler) Prune(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	from, days, err := h.bindHorizon(c)
	if err != nil {
		return err
	}
	removed, err := h.pub.PruneStale(c.Request().Context(), id, from, days)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) Reopen(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.pub.Reopen(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) Sweep(c echo.Context) error {
	n, err := h.pub.Sweep(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"completed": n})
}
