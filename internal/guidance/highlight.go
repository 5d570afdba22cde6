package guidance

// HighlightCount returns how many of the top competitors to highlight.
// Inputs are rank-ordered (descending z-score). Selection starts at
// TopNBase and grows by one while any growth rule holds for the next
// candidate: a small z-gap to the current boundary, a form rating within
// eps of the leader, or insufficient cumulative probability coverage.
// The result is clamped to [TopNBase, TopNMax] and the field size.
func HighlightCount(ranked []*Ranked, probs, zscores []float64, cfg Config) int {
	n := cfg.TopNBase
	if n < 1 {
		n = 1
	}
	if n > len(ranked) {
		return len(ranked)
	}
	maxN := cfg.TopNMax
	if maxN > len(ranked) {
		maxN = len(ranked)
	}

	coverage := 0.0
	for i := 0; i < n && i < len(probs); i++ {
		coverage += probs[i]
	}

	leaderForm := ranked[0].FormRating
	for n < maxN {
		next := n // next candidate index, 0-based
		gapOK := zscores[next-1]-zscores[next] <= cfg.ZGapMax
		formOK := leaderForm-ranked[next].FormRating <= cfg.FormEloEps
		coverageOK := coverage < cfg.ProbCoverageMin
		if !gapOK && !formOK && !coverageOK {
			break
		}
		coverage += probs[next]
		n++
	}
	return n
}
