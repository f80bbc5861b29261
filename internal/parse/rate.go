package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rateRe = regexp.MustCompile(`^([+-]?\d+(?:[.,]\d+)?)\s*%?$`)

// Rate extracts a numeric percentage from the formatted occupancy-rate
// strings the backend embeds in zone details ("85.0%", "85 %", "85,5%").
// The returned value is the percentage itself, not a fraction.
func Rate(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty occupancy rate")
	}

	m := rateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse occupancy rate: %q", raw)
	}

	// Some locales format the decimal separator as a comma.
	num := strings.ReplaceAll(m[1], ",", ".")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse occupancy rate: %q", raw)
	}

	if v < 0 || v > 100 {
		return 0, fmt.Errorf("occupancy rate out of range: %q", raw)
	}
	return v, nil
}

// FormatRate renders a percentage the way the backend does, one decimal
// place with a trailing percent sign.
func FormatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
