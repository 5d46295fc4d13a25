package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/repository"
)

// TopCountriesLimit bounds the top countries list of a report
const TopCountriesLimit = 10

// Reporter builds click reports from the store's rollups
type Reporter struct {
	store repository.ClickStore
}

// NewReporter creates a new Reporter
func NewReporter(store repository.ClickStore) *Reporter {
	return &Reporter{store: store}
}

// URLAnalytics reports on a single short URL
func (r *Reporter) URLAnalytics(ctx context.Context, namespaceID, shortcode string, window domain.TimeWindow) (*domain.ClickReport, error) {
	return r.report(ctx, domain.ClickScope{NamespaceID: namespaceID, Shortcode: shortcode}, window)
}

// NamespaceAnalytics reports on every short URL of a namespace
func (r *Reporter) NamespaceAnalytics(ctx context.Context, namespaceID string, window domain.TimeWindow) (*domain.ClickReport, error) {
	return r.report(ctx, domain.ClickScope{NamespaceID: namespaceID}, window)
}

func (r *Reporter) report(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (*domain.ClickReport, error) {
	daily, err := r.store.DailyClicks(ctx, scope, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily clicks: %w", err)
	}
	countries, err := r.store.CountryClicks(ctx, scope, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get country clicks: %w", err)
	}
	referrers, err := r.store.ReferrerClicks(ctx, scope, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get referrer clicks: %w", err)
	}
	unique, err := r.store.UniqueVisitors(ctx, scope, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count unique visitors: %w", err)
	}

	series, total := fillDays(daily, window)
	top, tiers := rankCountries(countries)

	return &domain.ClickReport{
		NamespaceID:          scope.NamespaceID,
		Shortcode:            scope.Shortcode,
		Window:               window,
		TotalClicks:          total,
		UniqueIPs:            unique,
		DailyClicks:          series,
		CountryDistribution:  countries,
		ReferrerDistribution: referrers,
		TopCountries:         top,
		TierCounts:           tiers,
	}, nil
}

// fillDays expands the sparse daily counts into one entry per window day
func fillDays(daily []domain.DailyCount, window domain.TimeWindow) ([]domain.DailyCount, int64) {
	byDay := make(map[string]int64, len(daily))
	for _, d := range daily {
		byDay[d.Day] += d.Clicks
	}

	series := make([]domain.DailyCount, 0, window.Days)
	var total int64
	for i := 0; i < window.Days; i++ {
		day := domain.DayOf(window.Start.AddDate(0, 0, i))
		clicks := byDay[day]
		total += clicks
		series = append(series, domain.DailyCount{Day: day, Clicks: clicks})
	}
	return series, total
}

// rankCountries orders countries by clicks and counts the countries per tier
func rankCountries(countries map[string]int64) ([]domain.CountryStat, map[string]int) {
	tiers := make(map[string]int, len(Tiers))
	for _, t := range Tiers {
		tiers[t] = 0
	}

	ranked := make([]domain.CountryStat, 0, len(countries))
	for country, clicks := range countries {
		tier := TierFor(clicks)
		tiers[tier]++
		ranked = append(ranked, domain.CountryStat{Country: country, Clicks: clicks, Tier: tier})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Clicks != ranked[j].Clicks {
			return ranked[i].Clicks > ranked[j].Clicks
		}
		return ranked[i].Country < ranked[j].Country
	})

	if len(ranked) > TopCountriesLimit {
		ranked = ranked[:TopCountriesLimit]
	}
	return ranked, tiers
}
