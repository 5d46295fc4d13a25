package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// DefaultWindow is used when no window is requested
const DefaultWindow = "7days"

// MaxWindowDays bounds explicit day counts
const MaxWindowDays = 365

var windowKeywords = map[string]int{
	"1day":   1,
	"3days":  3,
	"7days":  7,
	"30days": 30,
}

// ParseWindow turns a keyword (1day, 3days, 7days, 30days) or a day count
// (N, Nd or Ndays) into the window of N calendar days ending today
func ParseWindow(s string, now time.Time) (domain.TimeWindow, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = DefaultWindow
	}

	days, ok := windowKeywords[s]
	if !ok {
		trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(s, "days"), "day"), "d")
		n, err := strconv.Atoi(trimmed)
		if err != nil || n < 1 || n > MaxWindowDays {
			return domain.TimeWindow{}, fmt.Errorf("%w: window %q must be 1day, 3days, 7days, 30days or 1..%d days",
				domain.ErrInvalidRequest, s, MaxWindowDays)
		}
		days = n
	}

	return WindowOf(days, now), nil
}

// WindowOf returns the window of days calendar days ending on now's UTC day
func WindowOf(days int, now time.Time) domain.TimeWindow {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return domain.TimeWindow{
		Start: today.AddDate(0, 0, -(days - 1)),
		End:   now,
		Days:  days,
	}
}
