package analytics

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultCheckoutPath = "/checkout"

// Engine records browsing sessions. Each session has a single writer; stats
// are computed from published snapshots and never block writers.
type Engine struct {
	sessions     sync.Map // sessionID -> *tracker
	checkoutPath string
	now          func() time.Time
}

func NewEngine(checkoutPath string) *Engine {
	if checkoutPath == "" {
		checkoutPath = DefaultCheckoutPath
	}
	return &Engine{checkoutPath: checkoutPath, now: time.Now}
}

func (e *Engine) tracker(sessionID string) (*tracker, error) {
	v, ok := e.sessions.Load(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v.(*tracker), nil
}

// StartSession opens a session. The device class is fixed here for the life
// of the session.
func (e *Engine) StartSession(userAgent string, viewportWidth int, userID string) *Session {
	now := e.now()
	t := newTracker(Session{
		SessionID:    uuid.New().String(),
		UserID:       userID,
		Device:       ClassifyDevice(userAgent, viewportWidth),
		StartTime:    now,
		LastSeen:     now,
		PageViews:    []PageView{},
		ProductViews: []ProductView{},
		IsActive:     true,
	})
	snap := t.load()
	e.sessions.Store(snap.SessionID, t)
	return snap
}

// Get returns the latest published snapshot of a session
func (e *Engine) Get(sessionID string) (*Session, error) {
	t, err := e.tracker(sessionID)
	if err != nil {
		return nil, err
	}
	return t.load().clone(), nil
}

func (e *Engine) mutate(sessionID string, fn func(s *Session, now time.Time)) error {
	t, err := e.tracker(sessionID)
	if err != nil {
		return err
	}
	now := e.now()
	return t.update(func(s *Session) {
		fn(s, now)
		s.LastSeen = now
	})
}

// TrackPageView closes the open page view, if any, and opens a new one
func (e *Engine) TrackPageView(sessionID, path, title string) error {
	if path == "" {
		return ErrInvalidPath
	}
	return e.mutate(sessionID, func(s *Session, now time.Time) {
		if pv := s.openPage(); pv != nil {
			pv.ExitTime = &now
		}
		s.PageViews = append(s.PageViews, PageView{Path: path, Title: title, EnterTime: now})
	})
}

// TrackPageExit stamps the exit of the open page view when its path matches
func (e *Engine) TrackPageExit(sessionID, path string) error {
	return e.mutate(sessionID, func(s *Session, now time.Time) {
		if pv := s.openPage(); pv != nil && pv.Path == path {
			pv.ExitTime = &now
		}
	})
}

func (e *Engine) TrackProductView(sessionID, productID, productName string) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	return e.mutate(sessionID, func(s *Session, now time.Time) {
		if pv := s.openProduct(); pv != nil {
			pv.ExitTime = &now
		}
		s.ProductViews = append(s.ProductViews, ProductView{ProductID: productID, ProductName: productName, EnterTime: now})
	})
}

func (e *Engine) TrackProductExit(sessionID, productID string) error {
	return e.mutate(sessionID, func(s *Session, now time.Time) {
		if pv := s.openProduct(); pv != nil && pv.ProductID == productID {
			pv.ExitTime = &now
		}
	})
}

// TrackClick counts a click for the session and its current page
func (e *Engine) TrackClick(sessionID string) error {
	return e.mutate(sessionID, func(s *Session, now time.Time) {
		s.TotalClicks++
		if pv := s.openPage(); pv != nil {
			pv.Clicks++
		}
	})
}

func (e *Engine) EndSession(sessionID string) error {
	t, err := e.tracker(sessionID)
	if err != nil {
		return err
	}
	now := e.now()
	return t.update(func(s *Session) {
		s.end(now)
		s.LastSeen = now
	})
}

// ExpireIdle ends sessions not seen for timeout. The end time is the last
// time the session was seen.
func (e *Engine) ExpireIdle(timeout time.Duration) int {
	now := e.now()
	expired := 0
	e.sessions.Range(func(_, v any) bool {
		t := v.(*tracker)
		snap := t.load()
		if !snap.IsActive || now.Sub(snap.LastSeen) < timeout {
			return true
		}
		// ErrSessionEnded means EndSession got there first
		_ = t.update(func(s *Session) {
			if now.Sub(s.LastSeen) >= timeout {
				s.end(s.LastSeen)
				expired++
			}
		})
		return true
	})
	return expired
}

// PruneEnded forgets sessions that ended at least retention ago. They stop
// counting toward stats.
func (e *Engine) PruneEnded(retention time.Duration) int {
	now := e.now()
	pruned := 0
	e.sessions.Range(func(k, v any) bool {
		snap := v.(*tracker).load()
		if snap.IsActive || snap.EndTime == nil || now.Sub(*snap.EndTime) < retention {
			return true
		}
		e.sessions.Delete(k)
		pruned++
		return true
	})
	return pruned
}

// snapshots returns the published state of every session
func (e *Engine) snapshots() []*Session {
	var result []*Session
	e.sessions.Range(func(_, v any) bool {
		result = append(result, v.(*tracker).load())
		return true
	})
	return result
}

func (e *Engine) isCheckout(path string) bool {
	return path == e.checkoutPath || strings.HasPrefix(path, e.checkoutPath+"/")
}
