package heartrate

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/new_patient", h.RegisterPatient)
	api.POST("/heart_rate", h.SubmitReading)
	api.POST("/heart_rate/interval_average", h.AverageSince)
	api.GET("/status/:patient_id", h.LatestStatus)
	api.GET("/heart_rate/:patient_id", h.History)
	api.GET("/heart_rate/average/:patient_id", h.Average)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	payload, err := decodePayload(c)
	if err != nil {
		return toHTTPError(err)
	}
	p, err := h.svc.RegisterPatient(c.Request().Context(), payload)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":        "Valid patient data!",
		"patientId":      p.ID,
		"attendingEmail": p.AttendingEmail,
		"ageYears":       p.AgeYears,
	})
}

func (h *Handler) SubmitReading(c echo.Context) error {
	payload, err := decodePayload(c)
	if err != nil {
		return toHTTPError(err)
	}
	view, err := h.svc.SubmitReading(c.Request().Context(), payload)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) LatestStatus(c echo.Context) error {
	id, err := pathPatientID(c)
	if err != nil {
		return toHTTPError(err)
	}
	view, err := h.svc.LatestStatus(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) History(c echo.Context) error {
	id, err := pathPatientID(c)
	if err != nil {
		return toHTTPError(err)
	}
	heartRates, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, heartRates)
}

func (h *Handler) Average(c echo.Context) error {
	id, err := pathPatientID(c)
	if err != nil {
		return toHTTPError(err)
	}
	avg, err := h.svc.Average(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, avg)
}

func (h *Handler) AverageSince(c echo.Context) error {
	payload, err := decodePayload(c)
	if err != nil {
		return toHTTPError(err)
	}
	avg, err := h.svc.AverageSince(c.Request().Context(), payload)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, avg)
}

// decodePayload reads the request body as a JSON object, keeping numbers as
// json.Number so that validation sees the literal the client sent.
func decodePayload(c echo.Context) (map[string]any, error) {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, malformed(ReasonBadKeys)
	}
	return payload, nil
}

func pathPatientID(c echo.Context) (int64, error) {
	id := ValidatePatientID(c.Param("patient_id"))
	if !id.OK() {
		return 0, id.Err()
	}
	return id.Value, nil
}

func toHTTPError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
			"error": e.Reason,
			"kind":  string(e.Kind),
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
