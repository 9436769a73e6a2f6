package policy

import "github.com/kestrelworks/steptrace/internal/belief"

// #region classify

// Classify maps a knowledge-matcher similarity score to a confidence level.
// Scores outside [0,1] are clamped, not rejected.
func Classify(similarity float32, cfg Config) belief.Level {
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	switch {
	case similarity >= cfg.HighThreshold:
		return belief.LevelHigh
	case similarity >= cfg.MediumThreshold:
		return belief.LevelMedium
	default:
		return belief.LevelLow
	}
}

// #endregion classify
