package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

// salaryFigure matches one currency figure: optional symbol, grouped digits,
// optional decimals, optional k/K suffix.
var salaryFigure = regexp.MustCompile(`(?:[$€£]|USD|EUR|GBP|AUD|CAD)?\s*([0-9]{1,3}(?:[,.][0-9]{3})*|[0-9]+)(?:\.[0-9]+)?\s*([kK])?`)

// salaryRange matches "X - Y" style ranges around figures.
var salaryRange = regexp.MustCompile(`([$€£]?\s*[0-9][0-9,.]*\s*[kK]?)\s*(?:-|–|—|to)\s*([$€£]?\s*[0-9][0-9,.]*\s*[kK]?)`)

// ExtractSalary pulls a currency-agnostic (min, max) pair from salary text.
// Single figures become (v, v); "k" suffixes are expanded; the pair is
// ordered min <= max. Returns (nil, nil) when no figure is found.
func ExtractSalary(text string) (*float64, *float64) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if m := salaryRange.FindStringSubmatch(text); m != nil {
		lo, okLo := parseFigure(m[1])
		hi, okHi := parseFigure(m[2])
		if okLo && okHi {
			// Range shorthand like "80-110k" puts the suffix on one side only
			if hi >= 1000 && lo < 1000 {
				lo *= 1000
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			return &lo, &hi
		}
	}

	if m := salaryFigure.FindStringSubmatch(text); m != nil {
		if v, ok := parseFigure(m[0]); ok && v > 0 {
			return &v, &v
		}
	}

	return nil, nil
}

// parseFigure parses one figure with optional k-suffix expansion
func parseFigure(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "$€£ ")

	thousands := false
	if strings.HasSuffix(raw, "k") || strings.HasSuffix(raw, "K") {
		thousands = true
		raw = strings.TrimRight(raw, "kK")
		raw = strings.TrimSpace(raw)
	}

	raw = strings.ReplaceAll(raw, ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		value *= 1000
	}
	return value, true
}
