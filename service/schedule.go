package service

import (
	"fmt"
	"time"

	"interestbatch/models"
)

const referenceDateLayout = "2006-01-02"

// NextPostingDate returns the posting date that follows current for the given frequency.
// Unknown frequencies fall back to monthly. Month arithmetic normalises overflow,
// so Jan 31 plus one month is Mar 2 in a leap year and Mar 3 otherwise.
func NextPostingDate(current time.Time, frequency models.Frequency) time.Time {
	switch frequency {
	case models.FrequencyDaily:
		return current.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return current.AddDate(0, 0, 7)
	case models.FrequencyBiweekly:
		return current.AddDate(0, 0, 14)
	case models.FrequencyMonthly:
		return current.AddDate(0, 1, 0)
	case models.FrequencyQuarterly:
		return current.AddDate(0, 3, 0)
	case models.FrequencyBiannual:
		return current.AddDate(0, 6, 0)
	case models.FrequencyAnnual:
		return current.AddDate(1, 0, 0)
	default:
		return current.AddDate(0, 1, 0)
	}
}

// StartOfDay returns midnight UTC of the day containing t
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseReferenceDate parses a YYYY-MM-DD date as midnight UTC
func ParseReferenceDate(value string) (time.Time, error) {
	date, err := time.Parse(referenceDateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference date %q, expected YYYY-MM-DD", value)
	}
	return date, nil
}
