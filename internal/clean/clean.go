// Package clean validates and normalizes raw observation text before it
// reaches the update policy. Empty, truncated, or garbled model output is
// rejected here; rejection is a successful outcome, not an error.
package clean

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// #region config

// Config holds the validation thresholds.
type Config struct {
	MinLength      int     // shortest cleaned text worth matching
	MaxLength      int     // longest text accepted; longer input is truncated at a word boundary
	MinLetterRatio float64 // letters+spaces share below which text is considered garbled
}

// DefaultConfig returns the documented cleaner defaults.
func DefaultConfig() Config {
	return Config{
		MinLength:      6,
		MaxLength:      512,
		MinLetterRatio: 0.6,
	}
}

// #endregion config

// #region cleaner

// Cleaner applies the validation rules.
type Cleaner struct {
	cfg Config
}

// New creates a Cleaner with the given config; zero fields take defaults.
func New(cfg Config) *Cleaner {
	def := DefaultConfig()
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.MinLetterRatio <= 0 {
		cfg.MinLetterRatio = def.MinLetterRatio
	}
	return &Cleaner{cfg: cfg}
}

// Clean normalizes whitespace and validates the text. ok=false means reject.
func (c *Cleaner) Clean(raw string) (string, bool) {
	if !utf8.ValidString(raw) {
		return "", false
	}

	text := strings.Join(strings.Fields(raw), " ")
	if len(text) < c.cfg.MinLength {
		return "", false
	}
	if len(text) > c.cfg.MaxLength {
		text = truncateAtWord(text, c.cfg.MaxLength)
	}
	if letterRatio(text) < c.cfg.MinLetterRatio {
		return "", false
	}
	return text, true
}

// #endregion cleaner

// #region helpers

// letterRatio is the share of letters, digits, and spaces in the text.
// Garbled model output is dominated by punctuation and control runes.
func letterRatio(text string) float64 {
	var total, useful int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			useful++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(useful) / float64(total)
}

func truncateAtWord(text string, limit int) string {
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// #endregion helpers
