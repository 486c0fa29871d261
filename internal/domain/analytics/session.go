package analytics

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already ended")
	ErrInvalidPath     = errors.New("path is required")
	ErrInvalidProduct  = errors.New("product_id is required")
)

type Device string

const (
	DeviceMobile  Device = "Mobile"
	DeviceTablet  Device = "Tablet"
	DeviceDesktop Device = "Desktop"
)

// ClassifyDevice picks the device class from the user agent, falling back to
// the viewport width.
func ClassifyDevice(userAgent string, viewportWidth int) Device {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"),
		strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return DeviceTablet
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "mobile"), strings.Contains(ua, "android"):
		return DeviceMobile
	}
	switch {
	case viewportWidth > 0 && viewportWidth < 768:
		return DeviceMobile
	case viewportWidth > 0 && viewportWidth < 1024:
		return DeviceTablet
	}
	return DeviceDesktop
}

type PageView struct {
	Path      string     `json:"path"`
	Title     string     `json:"title,omitempty"`
	EnterTime time.Time  `json:"enter_time"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
	Clicks    int        `json:"clicks"`
}

type ProductView struct {
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name,omitempty"`
	EnterTime   time.Time  `json:"enter_time"`
	ExitTime    *time.Time `json:"exit_time,omitempty"`
}

type Session struct {
	SessionID     string        `json:"session_id"`
	UserID        string        `json:"user_id,omitempty"`
	Device        Device        `json:"device"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	LastSeen      time.Time     `json:"last_seen"`
	PageViews     []PageView    `json:"page_views"`
	ProductViews  []ProductView `json:"product_views"`
	TotalClicks   int           `json:"total_clicks"`
	IsActive      bool          `json:"is_active"`
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// Duration is the final duration of an ended session, or the time since start
func (s *Session) Duration(now time.Time) time.Duration {
	if !s.IsActive {
		return s.TotalDuration
	}
	return now.Sub(s.StartTime)
}

func (s *Session) clone() *Session {
	cp := *s
	cp.PageViews = make([]PageView, len(s.PageViews))
	for i, pv := range s.PageViews {
		cp.PageViews[i] = pv
		cp.PageViews[i].ExitTime = copyTime(pv.ExitTime)
	}
	cp.ProductViews = make([]ProductView, len(s.ProductViews))
	for i, pv := range s.ProductViews {
		cp.ProductViews[i] = pv
		cp.ProductViews[i].ExitTime = copyTime(pv.ExitTime)
	}
	cp.EndTime = copyTime(s.EndTime)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// openPage returns the open page view, if any. Only the last one can be open.
func (s *Session) openPage() *PageView {
	if n := len(s.PageViews); n > 0 && s.PageViews[n-1].ExitTime == nil {
		return &s.PageViews[n-1]
	}
	return nil
}

func (s *Session) openProduct() *ProductView {
	if n := len(s.ProductViews); n > 0 && s.ProductViews[n-1].ExitTime == nil {
		return &s.ProductViews[n-1]
	}
	return nil
}

// tracker owns the mutable state of one session. Every mutation publishes a
// fresh immutable copy that readers load without locking.
type tracker struct {
	mu       sync.Mutex
	state    Session
	snapshot atomic.Pointer[Session]
}

func newTracker(s Session) *tracker {
	t := &tracker{state: s}
	t.publish()
	return t
}

func (t *tracker) publish() {
	t.snapshot.Store(t.state.clone())
}

func (t *tracker) load() *Session {
	return t.snapshot.Load()
}

// update runs fn on the live state when the session is still active
func (t *tracker) update(fn func(s *Session)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.IsActive {
		return ErrSessionEnded
	}
	fn(&t.state)
	t.publish()
	return nil
}

// end closes open views and stops the session at the given time
func (s *Session) end(at time.Time) {
	if pv := s.openPage(); pv != nil {
		pv.ExitTime = &at
	}
	if pv := s.openProduct(); pv != nil {
		pv.ExitTime = &at
	}
	s.EndTime = &at
	s.IsActive = false
	s.TotalDuration = at.Sub(s.StartTime)
}
