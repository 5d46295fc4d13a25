package domain

import (
	"time"
)

// TimeWindow is an inclusive range of UTC calendar days
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// StartDay returns the first day of the window (YYYY-MM-DD)
func (w TimeWindow) StartDay() string {
	return DayOf(w.Start)
}

// EndDay returns the last day of the window (YYYY-MM-DD)
func (w TimeWindow) EndDay() string {
	return DayOf(w.End)
}

// ClickScope selects either one URL or, with an empty Shortcode, a whole namespace
type ClickScope struct {
	NamespaceID string
	Shortcode   string
}

// IsNamespace reports whether the scope covers the whole namespace
func (s ClickScope) IsNamespace() bool {
	return s.Shortcode == ""
}

// DailyCount is the number of clicks on one day
type DailyCount struct {
	Day    string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// CountryStat is a country's click volume and tier within a window
type CountryStat struct {
	Country string `json:"country"`
	Clicks  int64  `json:"clicks"`
	Tier    string `json:"tier"`
}

// ClickReport is the analytics view of a URL or namespace over a window
type ClickReport struct {
	NamespaceID          string           `json:"namespace_id"`
	Shortcode            string           `json:"shortcode,omitempty"`
	Window               TimeWindow       `json:"window"`
	TotalClicks          int64            `json:"total_clicks"`
	UniqueIPs            int64            `json:"unique_ips"`
	DailyClicks          []DailyCount     `json:"daily_clicks"`
	CountryDistribution  map[string]int64 `json:"country_distribution"`
	ReferrerDistribution map[string]int64 `json:"referrer_distribution"`
	TopCountries         []CountryStat    `json:"top_countries"`
	TierCounts           map[string]int   `json:"tier_counts"`
}
