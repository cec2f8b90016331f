package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"retrolock/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid   = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid     = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errEventsLoad    = "failed to load events"
	errEventsOffline = "event log disabled"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      List actuator events
// @Description  Filter the audit history by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive.
// @Tags         events
// @Produce      json
// @Param        from  query   string  false  "Start of range"  example(2025-08-01)
// @Param        to    query   string  false  "End of range. Date-only treated as end of day."  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(SET_ON,SET_OFF,PULSE,RESET)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /events [get]
// @Security     BearerAuth
func (h *Handler) getEvents(c *gin.Context) {
	var (
		from      time.Time
		to        time.Time
		eventType = strings.ToUpper(strings.TrimSpace(c.Query("type")))
		err       error
	)
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{errorKey: errFromInvalid})
			return
		}
	}
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{errorKey: errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}

	events, err := h.services.List(c.Request.Context(), service.LogFilter{
		From: from,
		To:   to,
		Type: eventType,
	})
	switch {
	case err == nil:
	case service.IsInvalidFilter(err):
		c.JSON(http.StatusBadRequest, gin.H{errorKey: err.Error()})
		return
	case errors.Is(err, service.ErrEventLogDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{errorKey: errEventsOffline})
		return
	default:
		h.log.Errorw("events_list_failed", "err", err, "from", from, "to", to, "type", eventType)
		c.JSON(http.StatusInternalServerError, gin.H{errorKey: errEventsLoad})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
