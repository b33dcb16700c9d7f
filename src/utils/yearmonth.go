package utils

import "time"

// YearMonth values are encoded as YYYYMM integers, e.g. 202405 for May 2024.

func YearMonthOf(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

// AddMonthsToYearMonth returns ym advanced by n calendar months, handling
// year rollover.
func AddMonthsToYearMonth(ym, n int) int {
	months := ym/100*12 + ym%100 - 1 + n
	return months/12*100 + months%12 + 1
}

// MonthsBetween returns the signed month distance from ym1 to ym2.
func MonthsBetween(ym1, ym2 int) int {
	return (ym2/100-ym1/100)*12 + (ym2%100 - ym1%100)
}

// EndOfMonth returns 23:59:59 on the last day of the given YYYYMM month.
func EndOfMonth(ym int, loc *time.Location) time.Time {
	firstOfNext := time.Date(ym/100, time.Month(ym%100), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstOfNext.Add(-time.Second)
}

// StartOfMonth returns midnight on the first day of the given YYYYMM month.
func StartOfMonth(ym int, loc *time.Location) time.Time {
	return time.Date(ym/100, time.Month(ym%100), 1, 0, 0, 0, 0, loc)
}
