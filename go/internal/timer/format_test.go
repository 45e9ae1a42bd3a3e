package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSecondsHoursMinutesSeconds(t *testing.T) {
	assert.Equal(t, "01:02:05", FormatSeconds(3725.4, true, true, 0))
	assert.Equal(t, "00:00:00", FormatSeconds(0, true, true, 0))
	assert.Equal(t, "62:05", FormatSeconds(3725.4, false, true, 0))
	assert.Equal(t, "05", FormatSeconds(5.9, false, false, 0))
}

func TestFormatSecondsNegative(t *testing.T) {
	assert.Equal(t, "-00:00:03", FormatSeconds(-3.2, true, true, 0))
	assert.Equal(t, "-03", FormatSeconds(-3.0, false, false, 0))
}

func TestFormatSecondsTruncatesNotRounds(t *testing.T) {
	// 00:00:01.9 must display a whole second of 01, not round up to 02.
	assert.Equal(t, "00:01", FormatSeconds(1.97, false, true, 0))
	assert.Equal(t, "01.9", FormatSeconds(1.97, false, false, 1))
	assert.Equal(t, "10.4", FormatSeconds(10.46, false, false, 1))
}

func TestFormatSecondsFractionFieldPadding(t *testing.T) {
	assert.Equal(t, "07.05", FormatSeconds(7.051, false, false, 2))
}
