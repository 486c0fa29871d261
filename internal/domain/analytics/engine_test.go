package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine() (*Engine, *testClock) {
	clock := &testClock{now: time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)}
	e := NewEngine("")
	e.now = clock.Now
	return e, clock
}

func openViews(s *Session) (pages, products int) {
	for _, pv := range s.PageViews {
		if pv.ExitTime == nil {
			pages++
		}
	}
	for _, pv := range s.ProductViews {
		if pv.ExitTime == nil {
			products++
		}
	}
	return
}

// ============================================
// Device Tests
// ============================================

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		width    int
		expected Device
	}{
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", 1200, DeviceMobile},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Mobile/15E148", 0, DeviceTablet},
		{"android phone", "Mozilla/5.0 (Linux; Android 14) Mobile Safari/537.36", 0, DeviceMobile},
		{"android tablet", "Mozilla/5.0 (Linux; Android 14; SM-X700) Safari/537.36", 0, DeviceTablet},
		{"narrow desktop browser", "Mozilla/5.0 (Windows NT 10.0)", 600, DeviceMobile},
		{"medium viewport", "Mozilla/5.0 (Windows NT 10.0)", 900, DeviceTablet},
		{"wide viewport", "Mozilla/5.0 (Macintosh)", 1440, DeviceDesktop},
		{"nothing known", "", 0, DeviceDesktop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyDevice(tt.ua, tt.width))
		})
	}
}

// ============================================
// Session Lifecycle Tests
// ============================================

func TestEngine_PageViews_AtMostOneOpen(t *testing.T) {
	e, clock := newTestEngine()
	s := e.StartSession("", 1280, "user-1")

	for _, path := range []string{"/", "/perfumes", "/perfumes/oud", "/cart"} {
		require.NoError(t, e.TrackPageView(s.SessionID, path, ""))
		require.NoError(t, e.TrackProductView(s.SessionID, "p"+path, ""))
		clock.Advance(10 * time.Second)

		snap, err := e.Get(s.SessionID)
		require.NoError(t, err)
		pages, products := openViews(snap)
		assert.Equal(t, 1, pages)
		assert.Equal(t, 1, products)
	}

	snap, _ := e.Get(s.SessionID)
	require.Len(t, snap.PageViews, 4)
	assert.Equal(t, 10*time.Second, snap.PageViews[0].ExitTime.Sub(snap.PageViews[0].EnterTime))
	assert.Equal(t, DeviceDesktop, snap.Device)
	assert.Equal(t, "user-1", snap.UserID)
}

func TestEngine_TrackPageExit(t *testing.T) {
	e, clock := newTestEngine()
	s := e.StartSession("", 1280, "")
	require.NoError(t, e.TrackPageView(s.SessionID, "/perfumes", "Perfumes"))
	clock.Advance(5 * time.Second)

	require.NoError(t, e.TrackPageExit(s.SessionID, "/other"))
	snap, _ := e.Get(s.SessionID)
	assert.Nil(t, snap.PageViews[0].ExitTime)

	require.NoError(t, e.TrackPageExit(s.SessionID, "/perfumes"))
	snap, _ = e.Get(s.SessionID)
	require.NotNil(t, snap.PageViews[0].ExitTime)

	// exiting twice leaves the first exit time alone
	clock.Advance(5 * time.Second)
	require.NoError(t, e.TrackPageExit(s.SessionID, "/perfumes"))
	again, _ := e.Get(s.SessionID)
	assert.Equal(t, *snap.PageViews[0].ExitTime, *again.PageViews[0].ExitTime)
}

func TestEngine_TrackProductExit(t *testing.T) {
	e, clock := newTestEngine()
	s := e.StartSession("", 1280, "")
	require.NoError(t, e.TrackProductView(s.SessionID, "oud", "Oud Royal"))
	clock.Advance(30 * time.Second)

	require.NoError(t, e.TrackProductExit(s.SessionID, "oud"))

	snap, _ := e.Get(s.SessionID)
	require.NotNil(t, snap.ProductViews[0].ExitTime)
	assert.Equal(t, 30*time.Second, snap.ProductViews[0].ExitTime.Sub(snap.ProductViews[0].EnterTime))
}

func TestEngine_TrackClick(t *testing.T) {
	e, _ := newTestEngine()
	s := e.StartSession("", 1280, "")

	require.NoError(t, e.TrackClick(s.SessionID))
	require.NoError(t, e.TrackPageView(s.SessionID, "/", ""))
	require.NoError(t, e.TrackClick(s.SessionID))
	require.NoError(t, e.TrackClick(s.SessionID))

	snap, _ := e.Get(s.SessionID)
	assert.Equal(t, 3, snap.TotalClicks)
	assert.Equal(t, 2, snap.PageViews[0].Clicks)
}

func TestEngine_EndSession(t *testing.T) {
	e, clock := newTestEngine()
	s := e.StartSession("", 1280, "")
	require.NoError(t, e.TrackPageView(s.SessionID, "/", ""))
	require.NoError(t, e.TrackProductView(s.SessionID, "oud", ""))
	clock.Advance(2 * time.Minute)

	require.NoError(t, e.EndSession(s.SessionID))

	snap, _ := e.Get(s.SessionID)
	assert.False(t, snap.IsActive)
	require.NotNil(t, snap.EndTime)
	assert.Equal(t, 2*time.Minute, snap.TotalDuration)
	pages, products := openViews(snap)
	assert.Zero(t, pages)
	assert.Zero(t, products)

	assert.ErrorIs(t, e.TrackPageView(s.SessionID, "/x", ""), ErrSessionEnded)
	assert.ErrorIs(t, e.EndSession(s.SessionID), ErrSessionEnded)
}

func TestEngine_UnknownSessionAndValidation(t *testing.T) {
	e, _ := newTestEngine()

	assert.ErrorIs(t, e.TrackPageView("nope", "/", ""), ErrSessionNotFound)
	assert.ErrorIs(t, e.TrackClick("nope"), ErrSessionNotFound)
	assert.ErrorIs(t, e.EndSession("nope"), ErrSessionNotFound)

	s := e.StartSession("", 0, "")
	assert.ErrorIs(t, e.TrackPageView(s.SessionID, "", ""), ErrInvalidPath)
	assert.ErrorIs(t, e.TrackProductView(s.SessionID, "", ""), ErrInvalidProduct)
}

func TestEngine_ExpireIdle(t *testing.T) {
	e, clock := newTestEngine()
	idle := e.StartSession("", 1280, "")
	require.NoError(t, e.TrackPageView(idle.SessionID, "/", ""))
	lastSeen := clock.Now()
	clock.Advance(20 * time.Minute)
	busy := e.StartSession("", 1280, "")

	clock.Advance(15 * time.Minute)
	require.NoError(t, e.TrackPageView(busy.SessionID, "/", ""))

	assert.Equal(t, 1, e.ExpireIdle(30*time.Minute))
	assert.Equal(t, 0, e.ExpireIdle(30*time.Minute))

	snap, _ := e.Get(idle.SessionID)
	assert.False(t, snap.IsActive)
	assert.Equal(t, lastSeen, *snap.EndTime)
	assert.Equal(t, lastSeen, *snap.PageViews[0].ExitTime)

	other, _ := e.Get(busy.SessionID)
	assert.True(t, other.IsActive)
}

func TestEngine_PruneEnded(t *testing.T) {
	e, clock := newTestEngine()
	old := e.StartSession("", 1280, "")
	require.NoError(t, e.EndSession(old.SessionID))
	clock.Advance(48 * time.Hour)
	recent := e.StartSession("", 1280, "")
	require.NoError(t, e.EndSession(recent.SessionID))
	live := e.StartSession("", 1280, "")
	clock.Advance(time.Hour)

	assert.Equal(t, 1, e.PruneEnded(24*time.Hour))
	assert.Equal(t, 0, e.PruneEnded(24*time.Hour))

	_, err := e.Get(old.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = e.Get(recent.SessionID)
	assert.NoError(t, err)
	_, err = e.Get(live.SessionID)
	assert.NoError(t, err)
}

func TestEngine_GetReturnsIndependentCopy(t *testing.T) {
	e, _ := newTestEngine()
	s := e.StartSession("", 1280, "")
	require.NoError(t, e.TrackPageView(s.SessionID, "/", ""))

	snap, _ := e.Get(s.SessionID)
	snap.PageViews[0].Path = "/tampered"

	fresh, _ := e.Get(s.SessionID)
	assert.Equal(t, "/", fresh.PageViews[0].Path)
}

// ============================================
// Stats Tests
// ============================================

func TestEngine_GetAnalyticsStats(t *testing.T) {
	e, clock := newTestEngine()

	// bounce on mobile
	bounce := e.StartSession("iPhone Mobile", 390, "")
	require.NoError(t, e.TrackPageView(bounce.SessionID, "/", "Home"))
	clock.Advance(30 * time.Second)
	require.NoError(t, e.EndSession(bounce.SessionID))

	// buyer on desktop: views oud, then checks out
	buyer := e.StartSession("", 1440, "user-1")
	require.NoError(t, e.TrackPageView(buyer.SessionID, "/", "Home"))
	require.NoError(t, e.TrackClick(buyer.SessionID))
	clock.Advance(10 * time.Second)
	require.NoError(t, e.TrackPageView(buyer.SessionID, "/perfumes/oud", "Oud"))
	require.NoError(t, e.TrackProductView(buyer.SessionID, "oud", "Oud Royal"))
	clock.Advance(40 * time.Second)
	require.NoError(t, e.TrackProductExit(buyer.SessionID, "oud"))
	require.NoError(t, e.TrackPageView(buyer.SessionID, "/checkout", "Checkout"))
	clock.Advance(10 * time.Second)
	require.NoError(t, e.EndSession(buyer.SessionID))

	// browser on tablet: views oud and rose, still active
	browser := e.StartSession("iPad", 0, "")
	require.NoError(t, e.TrackPageView(browser.SessionID, "/perfumes/oud", "Oud"))
	require.NoError(t, e.TrackProductView(browser.SessionID, "oud", "Oud Royal"))
	clock.Advance(20 * time.Second)
	require.NoError(t, e.TrackPageView(browser.SessionID, "/perfumes/rose", "Rose"))
	require.NoError(t, e.TrackProductView(browser.SessionID, "rose", "Rose Noire"))
	clock.Advance(10 * time.Second)

	stats := e.GetAnalyticsStats()

	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 3, stats.TodaySessions)
	assert.Equal(t, 6, stats.TodayPageViews)
	assert.Equal(t, 1, stats.ActiveVisitors)
	assert.InDelta(t, 100.0/3, stats.BounceRate, 0.001)
	// 30s, 60s and 30s so far
	assert.InDelta(t, 40.0, stats.AverageSessionDuration, 0.001)

	require.Len(t, stats.HourlyTraffic, 24)
	assert.Equal(t, 3, stats.HourlyTraffic[9].Sessions)
	assert.Equal(t, 6, stats.HourlyTraffic[9].PageViews)

	require.Len(t, stats.DeviceBreakdown, 3)
	for _, d := range stats.DeviceBreakdown {
		assert.Equal(t, 1, d.Count)
		assert.InDelta(t, 100.0/3, d.Percentage, 0.001)
	}

	require.NotEmpty(t, stats.PageStats)
	assert.Equal(t, "/", stats.PageStats[0].Path)
	assert.Equal(t, 2, stats.PageStats[0].Views)
	assert.Equal(t, 1, stats.PageStats[0].Clicks)
	assert.InDelta(t, 20.0, stats.PageStats[0].AverageDuration, 0.001)

	require.Len(t, stats.ProductStats, 2)
	oud := stats.ProductStats[0]
	assert.Equal(t, "oud", oud.ProductID)
	assert.Equal(t, "Oud Royal", oud.ProductName)
	assert.Equal(t, 2, oud.Views)
	assert.InDelta(t, 30.0, oud.AverageDuration, 0.001)
	assert.InDelta(t, 50.0, oud.ConversionRate, 0.001)
	assert.Equal(t, 0.0, stats.ProductStats[1].ConversionRate)
}

func TestEngine_GetAnalyticsStats_Empty(t *testing.T) {
	e, _ := newTestEngine()

	stats := e.GetAnalyticsStats()

	assert.Zero(t, stats.TotalSessions)
	assert.Zero(t, stats.BounceRate)
	assert.Zero(t, stats.AverageSessionDuration)
	assert.Len(t, stats.HourlyTraffic, 24)
	assert.Empty(t, stats.PageStats)
}

func TestEngine_ConcurrentWritersAndReaders(t *testing.T) {
	e, _ := newTestEngine()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := e.StartSession("", 1280, "")
			for j := 0; j < 50; j++ {
				_ = e.TrackPageView(s.SessionID, "/p", "")
				_ = e.TrackClick(s.SessionID)
			}
			_ = e.EndSession(s.SessionID)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_ = e.GetAnalyticsStats()
		}
	}()
	wg.Wait()

	stats := e.GetAnalyticsStats()
	assert.Equal(t, 8, stats.TotalSessions)
	assert.Equal(t, 0, stats.ActiveVisitors)
	require.Len(t, stats.PageStats, 1)
	assert.Equal(t, 400, stats.PageStats[0].Views)
	assert.Equal(t, 400, stats.PageStats[0].Clicks)
}
