package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/services"
)

const (
	timeLayout   = time.RFC3339
	maxJSONBytes = 1 << 20
)

type trackEventRequest struct {
	EventType models.EventType `json:"eventType"`
	EventData map[string]any   `json:"eventData"`
}

func (h *handler) trackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackEventRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, err)
		return
	}
	id, err := h.svc.Analytics.TrackEvent(r.Context(), userID(r.Context()), req.EventType, req.EventData)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, "event recorded", map[string]string{"id": id})
}

// queryEvents accepts eventType, startDate, endDate (RFC 3339) and limit.
func (h *handler) queryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.EventFilter{EventType: models.EventType(q.Get("eventType"))}

	var err error
	if f.StartDate, err = parseTime(q.Get("startDate")); err != nil {
		fail(w, common.Invalid("startDate: %v", err))
		return
	}
	if f.EndDate, err = parseTime(q.Get("endDate")); err != nil {
		fail(w, common.Invalid("endDate: %v", err))
		return
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			fail(w, common.Invalid("limit: %v", err))
			return
		}
	}

	evs, err := h.svc.Analytics.QueryEvents(r.Context(), userID(r.Context()), f)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, fmt.Sprintf("%d events", len(evs)), evs)
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Analytics.GenerateReport(r.Context(), userID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "analytics report", rep)
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// decodeJSON reads a JSON body. Numbers inside free-form maps stay
// json.Number so large integers survive.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return common.Invalid("request body: %v", err)
	}
	return nil
}

func optionalQuery(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}
