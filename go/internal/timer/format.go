package timer

import (
	"fmt"
	"math"
	"strings"
)

// FormatSeconds renders a second count as zero-padded [hh:]mm:ss with an
// optional fractional part and a leading minus for negative values. The
// value is truncated, never rounded, so a countdown shows 00:00:01 until
// it actually reaches one second left.
func FormatSeconds(value float64, showHours, showMinutes bool, precision int) string {
	var b strings.Builder
	if value < 0 {
		b.WriteByte('-')
		value = -value
	}

	// Truncate at the displayed precision before splitting into fields so
	// the fields stay mutually consistent.
	scale := math.Pow(10, float64(precision))
	value = math.Floor(value*scale) / scale

	whole := math.Floor(value)
	frac := value - whole
	total := int64(whole)

	switch {
	case showHours:
		fmt.Fprintf(&b, "%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	case showMinutes:
		fmt.Fprintf(&b, "%02d:%02d", total/60, total%60)
	default:
		fmt.Fprintf(&b, "%02d", total)
	}

	if precision > 0 {
		fractionDigits := int64(math.Floor(frac*scale + 0.5))
		fmt.Fprintf(&b, ".%0*d", precision, fractionDigits)
	}
	return b.String()
}
