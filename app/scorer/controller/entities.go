package controller

import (
	"net/http"
	"strconv"

	"github.com/Sibikrish3000/realtime-fraud-engine/app/scorer/types"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/metrics"
	"github.com/gorilla/mux"
)

// HandleFeatures returns the current feature vector for an entity.
// Endpoint: GET /v1/entities/{id}/features?as_of=<unix_seconds>
func (c *Controller) HandleFeatures(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["id"]
	if entity == "" {
		writeError(w, http.StatusBadRequest, "missing entity id")
		return
	}
	if c.App.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "feature store disabled")
		return
	}

	asOf, ok := parseAsOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid as_of")
		return
	}

	fv, err := c.App.Store.GetFeatures(r.Context(), entity, asOf)
	if err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("get_features").Inc()
		writeError(w, http.StatusServiceUnavailable, "feature lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, types.FeaturesResponse{
		EntityID: entity,
		AsOf:     asOf,
		Features: fv,
	})
}

// HandleHistory returns an entity's raw events, newest first.
// Endpoint: GET /v1/entities/{id}/history?hours=<n>&as_of=<unix_seconds>
func (c *Controller) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["id"]
	if entity == "" {
		writeError(w, http.StatusBadRequest, "missing entity id")
		return
	}
	if c.App.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "feature store disabled")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		hours = n
	}

	asOf, ok := parseAsOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid as_of")
		return
	}

	events, err := c.App.Store.GetHistory(r.Context(), entity, hours, asOf)
	if err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("get_history").Inc()
		writeError(w, http.StatusServiceUnavailable, "history lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, types.HistoryResponse{
		EntityID: entity,
		AsOf:     asOf,
		Hours:    hours,
		Events:   events,
	})
}

// HandleErase removes every stored structure for an entity (right to
// erasure).
// Endpoint: DELETE /v1/entities/{id}
func (c *Controller) HandleErase(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["id"]
	if entity == "" {
		writeError(w, http.StatusBadRequest, "missing entity id")
		return
	}
	if c.App.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "feature store disabled")
		return
	}

	removed, err := c.App.Store.EraseEntity(r.Context(), entity)
	if err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("erase").Inc()
		writeError(w, http.StatusServiceUnavailable, "erase failed")
		return
	}

	writeJSON(w, http.StatusOK, types.EraseResponse{
		EntityID: entity,
		Removed:  removed,
	})
}

func parseAsOf(r *http.Request) (int64, bool) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return 0, true // store defaults to now
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
