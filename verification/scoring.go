package verification

import "math"

// WeightedSignal pairs a check's configured weight with its observed signal.
// Spam detection feeds confidences in [0, 1]; quality assessment feeds metric
// scores in [0, 100]. Both aggregate through the same path so rounding rules
// never diverge between the two strategies.
type WeightedSignal struct {
	Weight float64
	Signal float64
}

// WeightedScore computes Σ weight × signal clamped to [0, max]. Missing
// checks simply contribute zero; they never error.
func WeightedScore(signals map[string]WeightedSignal, max float64) float64 {
	var sum float64
	for _, s := range signals {
		sum += s.Weight * s.Signal
	}
	return math.Max(0, math.Min(max, sum))
}
