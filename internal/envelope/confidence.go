package envelope

// ScoreToTier converts a resolution score (0.0-1.0) to a confidence tier.
//
// Tier mapping:
//   - 0.95+ -> high (every reference type-bound)
//   - 0.70-0.94 -> medium (mostly type-bound, some inferred)
//   - 0.30-0.69 -> low (name-only matches dominate)
//   - <0.30 -> speculative (mostly unparseable sources)
func ScoreToTier(score float64) ConfidenceTier {
	switch {
	case score >= 0.95:
		return TierHigh
	case score >= 0.70:
		return TierMedium
	case score >= 0.30:
		return TierLow
	default:
		return TierSpeculative
	}
}

// ResolutionScore expresses binding statistics as a 0.0-1.0 score.
// exact counts references bound through a resolved declaration, heuristic
// counts name-only matches that could not be type-checked.
func ResolutionScore(exact, heuristic int) float64 {
	total := exact + heuristic
	if total == 0 {
		return 1.0
	}
	return float64(exact) / float64(total)
}

// TierForResolution maps binding statistics directly to a tier.
func TierForResolution(exact, heuristic int) ConfidenceTier {
	if heuristic == 0 {
		return TierHigh
	}
	return ScoreToTier(ResolutionScore(exact, heuristic))
}
