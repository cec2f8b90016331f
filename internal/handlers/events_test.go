package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"retrolock/internal/models"
	"retrolock/internal/service"
)

func TestEventsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.ActuatorEvent{
		{EventID: "e1", OccurredAt: now, Type: "PULSE", Result: "PULSED", Description: "Door opened"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: "SET_ON", Result: "ACTIVATED", Engaged: true},
	}
	logs := &mockEventLog{resp: events}
	r, _ := newTestRouter(&service.Service{EventLog: logs})

	// invalid 'from' → 400
	w := doRequest(r, http.MethodGet, "/events?from=notatime", "", testSecret)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// invalid 'to' → 400
	w = doRequest(r, http.MethodGet, "/events?to=tomorrow", "", testSecret)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'to', got %d", w.Code)
	}

	// Valid range and type (lowercase type normalized before the service call)
	q := "/events?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=pulse"
	w = doRequest(r, http.MethodGet, q, "", testSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("events status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                    `json:"count"`
		Events []models.ActuatorEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "PULSE" {
		t.Fatalf("expected lastType PULSE, got %q", logs.lastType)
	}
	if !out.Events[1].Engaged {
		t.Fatalf("engaged flag lost: %+v", out.Events[1])
	}
}

func TestEventsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r, _ := newTestRouter(&service.Service{EventLog: logs})

	w := doRequest(r, http.MethodGet, "/events?from=2025-08-01&to=2025-08-31", "", testSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	wantFrom := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastFrom.Equal(wantFrom) || !logs.lastTo.Equal(wantTo) {
		t.Fatalf("range = [%v, %v]; want [%v, %v]", logs.lastFrom, logs.lastTo, wantFrom, wantTo)
	}
}

func TestEventsHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{name: "disabled", err: service.ErrEventLogDisabled, code: http.StatusServiceUnavailable},
		{name: "backend", err: errors.New("db down"), code: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestRouter(&service.Service{EventLog: &mockEventLog{err: tc.err}})
			w := doRequest(r, http.MethodGet, "/events", "", testSecret)
			if w.Code != tc.code {
				t.Fatalf("status=%d; want %d", w.Code, tc.code)
			}
		})
	}
}

func TestEventsHandler_InvertedRange(t *testing.T) {
	// the real service validates the range
	r, _ := newTestRouter(&service.Service{EventLog: service.NewEventLogService(nil)})

	w := doRequest(r, http.MethodGet, "/events?from=2025-02-01&to=2025-01-01", "", testSecret)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestEventsHandler_UnknownTypeRejected(t *testing.T) {
	r, _ := newTestRouter(&service.Service{EventLog: service.NewEventLogService(nil)})

	w := doRequest(r, http.MethodGet, "/events?type=start", "", testSecret)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body[errorKey] != `unknown event type "START"` {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestParseQueryTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{in: "2025-08-27T15:04:05Z", want: time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), ok: true},
		{in: "2025-08-27T17:04:05+02:00", want: time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), ok: true},
		{in: "2025-08-27 15:04:05", want: time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), ok: true},
		{in: "2025-08-27", want: time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC), ok: true},
		{in: "27/08/2025"},
	}
	for _, tc := range cases {
		got, err := parseQueryTime(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("parseQueryTime(%q) err=%v", tc.in, err)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("parseQueryTime(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
}
