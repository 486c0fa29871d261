package analytics

import (
	"sort"
	"time"
)

type HourlyBucket struct {
	Hour      int `json:"hour"`
	Sessions  int `json:"sessions"`
	PageViews int `json:"page_views"`
}

type DeviceShare struct {
	Device     Device  `json:"device"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type PageStat struct {
	Path            string  `json:"path"`
	Views           int     `json:"views"`
	Clicks          int     `json:"clicks"`
	AverageDuration float64 `json:"average_duration_seconds"`
}

type ProductStat struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Views           int     `json:"views"`
	AverageDuration float64 `json:"average_duration_seconds"`
	// ConversionRate is the share of viewing sessions that reached checkout
	// after the view
	ConversionRate float64 `json:"conversion_rate"`
}

type Stats struct {
	TotalSessions          int            `json:"total_sessions"`
	TodaySessions          int            `json:"today_sessions"`
	TodayPageViews         int            `json:"today_page_views"`
	BounceRate             float64        `json:"bounce_rate"`
	AverageSessionDuration float64        `json:"average_session_duration_seconds"`
	HourlyTraffic          []HourlyBucket `json:"hourly_traffic"`
	DeviceBreakdown        []DeviceShare  `json:"device_breakdown"`
	PageStats              []PageStat     `json:"page_stats"`
	ProductStats           []ProductStat  `json:"product_stats"`
	ActiveVisitors         int            `json:"active_visitors"`
}

type durationAcc struct {
	total time.Duration
	n     int
}

func (a *durationAcc) add(d time.Duration) {
	a.total += d
	a.n++
}

func (a durationAcc) meanSeconds() float64 {
	if a.n == 0 {
		return 0
	}
	return (a.total / time.Duration(a.n)).Seconds()
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// GetAnalyticsStats recomputes every aggregate from the current snapshots
func (e *Engine) GetAnalyticsStats() Stats {
	now := e.now()
	sessions := e.snapshots()

	stats := Stats{
		TotalSessions: len(sessions),
		HourlyTraffic: make([]HourlyBucket, 24),
	}
	for h := range stats.HourlyTraffic {
		stats.HourlyTraffic[h].Hour = h
	}

	devices := map[Device]int{}
	var sessionDur durationAcc
	withPages, bounces := 0, 0

	type pageAcc struct {
		views, clicks int
		dur           durationAcc
	}
	pages := map[string]*pageAcc{}

	type productAcc struct {
		name      string
		views     int
		dur       durationAcc
		sessions  int
		converted int
	}
	products := map[string]*productAcc{}

	for _, s := range sessions {
		if s.IsActive {
			stats.ActiveVisitors++
		}
		if sameDay(now, s.StartTime) {
			stats.TodaySessions++
		}
		stats.HourlyTraffic[s.StartTime.In(now.Location()).Hour()].Sessions++
		devices[s.Device]++
		sessionDur.add(s.Duration(now))

		if len(s.PageViews) > 0 {
			withPages++
			if len(s.PageViews) == 1 {
				bounces++
			}
		}

		var checkoutTimes []time.Time
		for _, pv := range s.PageViews {
			if sameDay(now, pv.EnterTime) {
				stats.TodayPageViews++
			}
			stats.HourlyTraffic[pv.EnterTime.In(now.Location()).Hour()].PageViews++

			acc := pages[pv.Path]
			if acc == nil {
				acc = &pageAcc{}
				pages[pv.Path] = acc
			}
			acc.views++
			acc.clicks += pv.Clicks
			if pv.ExitTime != nil {
				acc.dur.add(pv.ExitTime.Sub(pv.EnterTime))
			}
			if e.isCheckout(pv.Path) {
				checkoutTimes = append(checkoutTimes, pv.EnterTime)
			}
		}

		// per product: did this session view it, and reach checkout afterwards
		seen := map[string]bool{}
		converted := map[string]bool{}
		for _, pv := range s.ProductViews {
			acc := products[pv.ProductID]
			if acc == nil {
				acc = &productAcc{}
				products[pv.ProductID] = acc
			}
			if pv.ProductName != "" {
				acc.name = pv.ProductName
			}
			acc.views++
			if pv.ExitTime != nil {
				acc.dur.add(pv.ExitTime.Sub(pv.EnterTime))
			}
			seen[pv.ProductID] = true
			for _, t := range checkoutTimes {
				if !t.Before(pv.EnterTime) {
					converted[pv.ProductID] = true
					break
				}
			}
		}
		for id := range seen {
			products[id].sessions++
			if converted[id] {
				products[id].converted++
			}
		}
	}

	stats.BounceRate = percent(bounces, withPages)
	stats.AverageSessionDuration = sessionDur.meanSeconds()

	for _, d := range []Device{DeviceMobile, DeviceTablet, DeviceDesktop} {
		stats.DeviceBreakdown = append(stats.DeviceBreakdown, DeviceShare{
			Device:     d,
			Count:      devices[d],
			Percentage: percent(devices[d], len(sessions)),
		})
	}

	stats.PageStats = make([]PageStat, 0, len(pages))
	for path, acc := range pages {
		stats.PageStats = append(stats.PageStats, PageStat{
			Path:            path,
			Views:           acc.views,
			Clicks:          acc.clicks,
			AverageDuration: acc.dur.meanSeconds(),
		})
	}
	sort.Slice(stats.PageStats, func(i, j int) bool {
		if stats.PageStats[i].Views != stats.PageStats[j].Views {
			return stats.PageStats[i].Views > stats.PageStats[j].Views
		}
		return stats.PageStats[i].Path < stats.PageStats[j].Path
	})

	stats.ProductStats = make([]ProductStat, 0, len(products))
	for id, acc := range products {
		stats.ProductStats = append(stats.ProductStats, ProductStat{
			ProductID:       id,
			ProductName:     acc.name,
			Views:           acc.views,
			AverageDuration: acc.dur.meanSeconds(),
			ConversionRate:  percent(acc.converted, acc.sessions),
		})
	}
	sort.Slice(stats.ProductStats, func(i, j int) bool {
		if stats.ProductStats[i].Views != stats.ProductStats[j].Views {
			return stats.ProductStats[i].Views > stats.ProductStats[j].Views
		}
		return stats.ProductStats[i].ProductID < stats.ProductStats[j].ProductID
	})

	return stats
}
