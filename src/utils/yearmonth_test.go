package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reminder/src/utils"
)

func TestYearMonthOf(t *testing.T) {
	assert.Equal(t, 202405, utils.YearMonthOf(time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 202412, utils.YearMonthOf(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAddMonthsToYearMonth(t *testing.T) {
	assert.Equal(t, 202408, utils.AddMonthsToYearMonth(202405, 3))
	assert.Equal(t, 202501, utils.AddMonthsToYearMonth(202411, 2))
	assert.Equal(t, 202403, utils.AddMonthsToYearMonth(202412, 3))
	assert.Equal(t, 202405, utils.AddMonthsToYearMonth(202405, 0))
	assert.Equal(t, 202312, utils.AddMonthsToYearMonth(202401, -1))
}

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 0, utils.MonthsBetween(202405, 202405))
	assert.Equal(t, 3, utils.MonthsBetween(202411, 202502))
	assert.Equal(t, -2, utils.MonthsBetween(202403, 202401))
}

func TestMonthBoundaries(t *testing.T) {
	loc := time.UTC

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), utils.StartOfMonth(202402, loc))
	// Leap year February.
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, loc), utils.EndOfMonth(202402, loc))
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 0, loc), utils.EndOfMonth(202412, loc))
}
