package guidance

import "math"

const zScoreEps = 1e-9

// Softmax converts composite scores to win probabilities using a
// temperature beta. Scores are shifted by the maximum before
// exponentiation so the result stays finite for any score vector.
func Softmax(scores []float64, beta float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	if beta < 0 {
		beta = 0
	}

	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	probs := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		probs[i] = math.Exp(beta * (s - max))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ZScores standardizes scores against the field mean and stdev. The
// stdev is floored so a flat field yields zeros instead of dividing by
// zero.
func ZScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(len(scores)))
	if stdev < zScoreEps {
		stdev = zScoreEps
	}

	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = (s - mean) / stdev
	}
	return out
}
