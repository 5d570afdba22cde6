package guidance

import (
	"math"
	"testing"
)

func TestSoftmaxNormalization(t *testing.T) {
	vectors := [][]float64{
		{10, 9.8, 9, 7},
		{0, 0, 0, 0},
		{-5, 3, 1e6, -1e6},
		{42},
	}
	for _, scores := range vectors {
		for _, beta := range []float64{0, 0.5, 1, 5} {
			probs := Softmax(scores, beta)
			sum := 0.0
			for _, p := range probs {
				if p < 0 || p > 1 {
					t.Fatalf("probability out of range: %f", p)
				}
				sum += p
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("softmax must normalize to 1, got %f for %v beta %f", sum, scores, beta)
			}
		}
	}
}

func TestSoftmaxLeaderMonotonicInBeta(t *testing.T) {
	scores := []float64{10, 9.8, 9, 7}
	prev := 0.0
	for _, beta := range []float64{0, 0.25, 0.5, 1, 2, 4, 8} {
		probs := Softmax(scores, beta)
		if probs[0] < prev {
			t.Fatalf("leader probability decreased from %f to %f at beta %f", prev, probs[0], beta)
		}
		prev = probs[0]
	}
}

func TestSoftmaxZeroBetaUniform(t *testing.T) {
	probs := Softmax([]float64{10, 5, 1}, 0)
	for _, p := range probs {
		if math.Abs(p-1.0/3) > 1e-9 {
			t.Fatalf("beta 0 must yield a uniform distribution, got %v", probs)
		}
	}
}

func TestSoftmaxNegativeBetaClamped(t *testing.T) {
	probs := Softmax([]float64{10, 5}, -3)
	if math.Abs(probs[0]-0.5) > 1e-9 {
		t.Fatalf("negative beta must clamp to 0, got %v", probs)
	}
}

func TestZScoresFlatField(t *testing.T) {
	for _, z := range ZScores([]float64{3, 3, 3, 3}) {
		if z != 0 {
			t.Fatalf("flat field must yield zero z-scores, got %f", z)
		}
	}
}

func TestZScoresStandardization(t *testing.T) {
	z := ZScores([]float64{1, 2, 3, 4, 5})
	mean := 0.0
	for _, v := range z {
		mean += v
	}
	if math.Abs(mean) > 1e-9 {
		t.Fatalf("z-scores must center on 0, mean %f", mean)
	}
	if z[4] <= z[0] {
		t.Fatalf("z-scores must preserve order")
	}
}
