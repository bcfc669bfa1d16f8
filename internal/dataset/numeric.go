package dataset

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NumberFormat pins the separators used in numeric cells. Zero values
// auto-detect per value.
type NumberFormat struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// ParseNumber parses a numeric cell. Values that cannot be parsed return NaN,
// which downstream range checks treat as excluded.
func ParseNumber(s string, nf NumberFormat) float64 {
	if f, ok := parseNumeric(s, nf); ok {
		return f
	}
	return math.NaN()
}

func parseNumeric(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	if raw == "" {
		return 0, false
	}
	dec, thou := nf.DecimalSeparator, nf.ThousandsSeparator
	if dec == 0 {
		var ok bool
		if dec, thou, ok = detectSeparators(raw, thou); !ok {
			return 0, false
		}
	}
	var b strings.Builder
	for _, c := range raw {
		switch {
		case c == dec:
			b.WriteByte('.')
		case c == thou, thou == 0 && (c == ',' || c == '.' || c == ' '):
		default:
			b.WriteRune(c)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// detectSeparators guesses the decimal separator of a single value. When
// both '.' and ',' occur the later one is the decimal mark. A lone comma
// followed by exactly three digits ("4,500") could be either a grouped
// integer or a decimal, so ok is false for it.
func detectSeparators(raw string, thou rune) (dec, group rune, ok bool) {
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			return ',', '.', true
		}
		return '.', ',', true
	case cpos >= 0 && thou == 0:
		if strings.Count(raw, ",") == 1 && len(raw)-cpos-1 == 3 && allDigits(raw[cpos+1:]) {
			return 0, 0, false
		}
		return ',', thou, true
	case cpos >= 0 && thou != ',':
		return ',', thou, true
	default:
		return '.', thou, true
	}
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.*?)\s*\(([^)]+)\)\s*$`),  // Weight (kg)
	regexp.MustCompile(`^(.*?)\s*\[([^\]]+)\]\s*$`), // Temperature [°C]
}

// splitUnits strips a trailing unit annotation from a header name.
func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[2])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
