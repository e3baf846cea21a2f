package venue

// NormalizePrice maps a venue price quote onto a [0,1] probability. Values
// above 1 are percent quotes (Kalshi prices in cents) and are divided by
// 100 first; the result is clamped so nothing outside [0,1] ever reaches
// the evaluator.
func NormalizePrice(v float64) float64 {
	if v > 1 {
		v /= 100
	}

	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

// AskFromBid derives the ask of one side from the best bid of the opposite
// side of a binary book. The bid must already be normalized.
func AskFromBid(bid float64) float64 {
	ask := 1 - bid

	if ask < 0 {
		return 0
	}

	if ask > 1 {
		return 1
	}

	return ask
}
