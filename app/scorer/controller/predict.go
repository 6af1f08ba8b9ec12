package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/Sibikrish3000/realtime-fraud-engine/app/scorer/types"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/metrics"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/scorer"
	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
)

// featureLookupTimeout caps the store round trips inside one prediction.
// A slow store falls back to default features instead of eating the
// latency budget.
const featureLookupTimeout = 500 * time.Millisecond

// HandlePredict scores one transaction.
// Endpoint: POST /v1/predict
//
// Feature priority is override > store > default; a backing-store failure
// degrades to defaults and the transaction is still scored. The event is
// recorded back to the store afterwards unless the caller overrode
// features or shadow mode is on.
func (c *Controller) HandlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req types.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "missing entity_id")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.Timestamp < 0 {
		writeError(w, http.StatusBadRequest, "invalid timestamp")
		return
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}

	// Read behavioral features unless fully overridden. Failures degrade,
	// they never block the decision.
	var fv *feature.FeatureVector
	overridden := req.TransCount24h != nil && req.AvgSpend24h != nil
	if c.App.Store != nil && !overridden {
		lookupCtx, cancel := context.WithTimeout(r.Context(), featureLookupTimeout)
		got, err := c.App.Store.GetFeatures(lookupCtx, req.EntityID, ts)
		cancel()
		if err != nil {
			metrics.StoreFailuresTotal.WithLabelValues("get_features").Inc()
			c.App.Logger.Warn("Feature lookup failed, using defaults",
				zap.String("entity", req.EntityID),
				zap.Error(err))
		} else {
			fv = &got
		}
	}

	features := scorer.AssembleFeatures(req.Amount, fv, scorer.Overrides{
		TransCount24h: req.TransCount24h,
		AvgSpend24h:   req.AvgSpend24h,
	})

	probability := c.App.Model.Probability(features)
	decision := c.App.Model.Decide(probability)

	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	finalDecision := decision
	if c.App.ShadowMode {
		// Score for comparison, approve regardless.
		c.App.Logger.Info("shadow_prediction",
			zap.String("entity", req.EntityID),
			zap.Float64("amount", req.Amount),
			zap.Float64("probability", probability),
			zap.String("real_decision", string(decision)),
			zap.Float64("latency_ms", latencyMs))
		finalDecision = scorer.DecisionApprove
	}

	// Persist the event so velocity features accumulate for the next
	// prediction. Skipped for overridden requests (synthetic inputs must
	// not pollute real history) and in shadow mode.
	noOverrides := req.TransCount24h == nil && req.AvgSpend24h == nil
	if c.App.Store != nil && noOverrides && !c.App.ShadowMode {
		recordCtx, cancel := context.WithTimeout(r.Context(), featureLookupTimeout)
		err := c.App.Store.RecordEvent(recordCtx, req.EntityID, req.Amount, ts)
		cancel()
		if err != nil {
			metrics.StoreFailuresTotal.WithLabelValues("record_event").Inc()
			c.App.Logger.Warn("Failed to persist transaction",
				zap.String("entity", req.EntityID),
				zap.Error(err))
		}
	}

	if latencyMs > c.App.MaxLatencyMs {
		c.App.Logger.Warn("Latency exceeded target",
			zap.Float64("latency_ms", latencyMs),
			zap.Float64("target_ms", c.App.MaxLatencyMs))
	}

	metrics.PredictionsTotal.WithLabelValues(string(finalDecision)).Inc()
	metrics.PredictLatency.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, types.PredictResponse{
		Decision:    string(finalDecision),
		Probability: probability,
		RiskScore:   probability * 100,
		LatencyMs:   latencyMs,
		ShadowMode:  c.App.ShadowMode,
		Features:    features,
	})
}
