package controller

import (
	"net/http"

	"github.com/Sibikrish3000/realtime-fraud-engine/app/scorer/types"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
)

// HandleHealth reports service and backing-store health. A down backing
// store shows up in the payload, never as a failed request: the service
// still scores with default features.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := types.HealthResponse{
		Status:      feature.StatusHealthy,
		ModelLoaded: c.App.Model != nil,
	}
	if c.App.Model == nil {
		resp.Status = feature.StatusUnhealthy
	}

	if c.App.Store != nil {
		resp.Store = c.App.Store.HealthCheck(ctx)
	} else {
		resp.Store = feature.HealthReport{
			Status: feature.StatusUnhealthy,
			Error:  "feature store disabled",
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
