package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseCost converts a free-form cost value ("12 500 р.", "990₽") into a
// number. This is the single parsing boundary for cost fields; decision
// logic downstream only ever sees clean floats.
func ParseCost(raw string) (float64, error) {
	cleaned := cleanNumeric(raw, "р.", "руб", "₽", "$")
	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCost, raw)
	}
	cost, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCost, raw)
	}
	return cost, nil
}

// ParseMarkup converts a markup percentage ("20", "17.5 %") into a number.
func ParseMarkup(raw string) (float64, error) {
	cleaned := cleanNumeric(raw, "%")
	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMarkup, raw)
	}
	markup, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(markup) || math.IsInf(markup, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMarkup, raw)
	}
	return markup, nil
}

func cleanNumeric(raw string, drop ...string) string {
	s := strings.TrimSpace(raw)
	for _, d := range drop {
		s = strings.ReplaceAll(s, d, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	return s
}

// Price computes the sale price from a wholesale cost and a markup
// percentage: raw = cost + cost*markup/100, rounded to the nearest
// hundred. Rounding is half-away-from-zero; this is the rule every
// surviving catalog write path uses and is fixed here so repeated
// recomputation is stable.
func Price(cost, markup float64) (int64, error) {
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCost, cost)
	}
	if math.IsNaN(markup) || math.IsInf(markup, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMarkup, markup)
	}
	raw := cost + cost*markup/100
	return int64(math.Round(raw/100)) * 100, nil
}
