package scorer

import (
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
)

// Feature names shared between the model artifact, the online assembly
// below, and the offline training export.
const (
	FeatAmount        = "amt"
	FeatTransCount24h = "trans_count_24h"
	FeatAvgSpend24h   = "avg_spend_24h"
	FeatAmtToAvgRatio = "amt_to_avg_ratio_24h"
)

// Overrides lets a caller pin behavioral features instead of reading the
// store, for replays and what-if scoring. Nil fields fall through to the
// store value, then to the defaults.
type Overrides struct {
	TransCount24h *float64
	AvgSpend24h   *float64
}

// AssembleFeatures builds the model input for one transaction.
//
// Priority per feature: override > store > default. The defaults are the
// degraded-mode values used when the feature store is unreachable: zero
// velocity and a spend baseline equal to the transaction itself, which
// yields a neutral ratio of 1.0 and never blocks on missing history.
func AssembleFeatures(amount float64, fv *feature.FeatureVector, ov Overrides) map[string]float64 {
	count := 0.0
	avgSpend := amount

	if fv != nil {
		count = fv.CountInWindow
		if fv.AverageSpend > 0 {
			avgSpend = fv.AverageSpend
		}
	}
	if ov.TransCount24h != nil {
		count = *ov.TransCount24h
	}
	if ov.AvgSpend24h != nil {
		avgSpend = *ov.AvgSpend24h
	}

	ratio := 1.0
	if avgSpend > 0 {
		ratio = amount / avgSpend
	}

	return map[string]float64{
		FeatAmount:        amount,
		FeatTransCount24h: count,
		FeatAvgSpend24h:   avgSpend,
		FeatAmtToAvgRatio: ratio,
	}
}
