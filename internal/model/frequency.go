package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Frequency selects annual or quarterly statement history.
type Frequency string

const (
	FrequencyAnnual    Frequency = "annual"
	FrequencyQuarterly Frequency = "quarterly"
)

// ParseFrequency parses a case-insensitive frequency name. Empty means annual.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "annual":
		return FrequencyAnnual, nil
	case "quarterly":
		return FrequencyQuarterly, nil
	default:
		return "", eris.Errorf("model: invalid frequency %q (valid: annual, quarterly)", s)
	}
}
