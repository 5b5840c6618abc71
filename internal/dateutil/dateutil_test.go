package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	at, err := Combine("2025-03-03", "08:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 3, 8, 30, 0, 0, time.UTC), at)

	_, err = Combine("2025-03-03", "8am", time.UTC)
	require.Error(t, err)

	_, err = Combine("03/03/2025", "08:30", time.UTC)
	require.Error(t, err)
}

func TestWeekday(t *testing.T) {
	day, err := Weekday("2025-03-03", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)

	day, err = Weekday("2025-03-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day)
}

func TestAddDays(t *testing.T) {
	next, err := AddDays("2025-03-03", 1, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", next)

	// Month boundary
	next, err = AddDays("2025-02-28", 1, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", next)

	prev, err := AddDays("2025-03-03", -30, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", prev)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2025-03-03", FormatDate(time.Date(2025, 3, 3, 23, 59, 0, 0, time.UTC)))
}
