package feature

// Two keys per entity, independently expirable: the ordered event set and the
// scalar spend aggregate.

func txHistoryKey(entity string) string {
	return "user:" + entity + ":tx_history"
}

func avgSpendKey(entity string) string {
	return "user:" + entity + ":avg_spend"
}
