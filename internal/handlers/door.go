package handlers

import (
	"context"
	"errors"
	"net/http"

	"retrolock/internal/service"

	"github.com/gin-gonic/gin"
)

// Response texts shared by the door endpoints.
const (
	statusOK      = "ok"
	msgResetDone  = "reset complete"
	stateKey      = "state"
	messageKey    = "message"
	errorKey      = "error"
	errInvalidReq = "Invalid request"
	errUnknown    = "Unknown state"
	errBusy       = "Actuator busy"
	errFault      = "Hardware fault"
	errCanceled   = "Request canceled"
	errInternal   = "Internal error"
	errReleased   = "Actuator unavailable"

	errUnauthorized = "Unauthorized"
)

// GPIORequest is the body of POST /gpio.
type GPIORequest struct {
	// Requested state. Allowed: on, off, open
	State *string `json:"state" example:"open"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Drive the door actuator
// @Description  "on" holds the door open, "off" releases it, "open" pulses it for the configured duration.
// @Tags         door
// @Accept       json
// @Produce      json
// @Param        body  body      GPIORequest  true  "Requested state"
// @Success      200   {object}  map[string]string  "message"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /gpio [post]
// @Security     BearerAuth
func (h *Handler) setGPIO(c *gin.Context) {
	var req GPIORequest
	if err := c.ShouldBindJSON(&req); err != nil || req.State == nil {
		c.JSON(http.StatusBadRequest, gin.H{errorKey: errInvalidReq})
		return
	}

	cmd, err := service.ParseCommand(*req.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{errorKey: errUnknown})
		return
	}

	res, err := h.services.Apply(c.Request.Context(), cmd)
	if err != nil {
		h.commandError(c, "gpio", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{messageKey: res.Message()})
}

// @Summary      Current door state
// @Tags         door
// @Produce      json
// @Success      200  {object}  map[string]string  "state: on|off"
// @Failure      401  {object}  map[string]string
// @Router       /status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st := h.services.State(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{stateKey: st.StateLabel()})
}

// @Summary      Reset the actuator
// @Description  Re-initializes the output line at its inactive level and marks the door closed.
// @Tags         door
// @Produce      json
// @Success      200  {object}  map[string]string  "message"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /reset [post]
// @Security     BearerAuth
func (h *Handler) reset(c *gin.Context) {
	if err := h.services.Reset(c.Request.Context()); err != nil {
		h.commandError(c, "reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{messageKey: msgResetDone})
}

// commandError maps door service errors to responses.
func (h *Handler) commandError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{errorKey: errBusy})
	case errors.Is(err, service.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{errorKey: errReleased})
	case errors.Is(err, service.ErrHardwareFault):
		h.log.Errorw("hardware_fault", "op", op, "err", err)
		h.onFault(err)
		c.JSON(http.StatusInternalServerError, gin.H{errorKey: errFault})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Infow("command_wait_aborted", "op", op, "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{errorKey: errCanceled})
	default:
		h.log.Errorw("command_failed", "op", op, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{errorKey: errInternal})
	}
}
