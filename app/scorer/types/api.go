package types

import (
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
)

// PredictRequest is one transaction to score. The optional override fields
// pin behavioral features instead of reading the store (what-if scoring,
// replays); overridden requests are never persisted back.
type PredictRequest struct {
	EntityID  string  `json:"entity_id"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp,omitempty"` // unix seconds; 0 = now

	TransCount24h *float64 `json:"trans_count_24h,omitempty"`
	AvgSpend24h   *float64 `json:"avg_spend_24h,omitempty"`
}

type PredictResponse struct {
	Decision    string             `json:"decision"`
	Probability float64            `json:"probability"`
	RiskScore   float64            `json:"risk_score"`
	LatencyMs   float64            `json:"latency_ms"`
	ShadowMode  bool               `json:"shadow_mode"`
	Features    map[string]float64 `json:"features"`
}

type HealthResponse struct {
	Status      string               `json:"status"`
	ModelLoaded bool                 `json:"model_loaded"`
	Store       feature.HealthReport `json:"store"`
}

type FeaturesResponse struct {
	EntityID string                `json:"entity_id"`
	AsOf     int64                 `json:"as_of"`
	Features feature.FeatureVector `json:"features"`
}

type HistoryResponse struct {
	EntityID string          `json:"entity_id"`
	AsOf     int64           `json:"as_of"`
	Hours    int             `json:"hours"`
	Events   []feature.Event `json:"events"`
}

type EraseResponse struct {
	EntityID string `json:"entity_id"`
	Removed  int    `json:"removed"`
}
