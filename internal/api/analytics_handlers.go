package api

import (
	"log"
	"net/http"

	"github.com/example/parfum-commerce/internal/api/middleware"
)

// Tracking endpoints are fire-and-forget for the storefront: failures are
// logged and every call answers 204.

func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ViewportWidth int `json:"viewport_width"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	s := h.Analytics.StartSession(r.UserAgent(), req.ViewportWidth, middleware.GetUserID(r.Context()))
	respondJSON(w, http.StatusCreated, s)
}

type trackRequest struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

// track decodes the optional body and applies fn to the session
func (h *Handlers) track(action string, fn func(sessionID string, req trackRequest) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trackRequest
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}
		sessionID := r.PathValue("id")
		if err := fn(sessionID, req); err != nil {
			log.Printf("[Analytics] %s for session %s failed: %v", action, sessionID, err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) TrackPageView() http.HandlerFunc {
	return h.track("page view", func(id string, req trackRequest) error {
		return h.Analytics.TrackPageView(id, req.Path, req.Title)
	})
}

func (h *Handlers) TrackPageExit() http.HandlerFunc {
	return h.track("page exit", func(id string, req trackRequest) error {
		return h.Analytics.TrackPageExit(id, req.Path)
	})
}

func (h *Handlers) TrackProductView() http.HandlerFunc {
	return h.track("product view", func(id string, req trackRequest) error {
		return h.Analytics.TrackProductView(id, req.ProductID, req.ProductName)
	})
}

func (h *Handlers) TrackProductExit() http.HandlerFunc {
	return h.track("product exit", func(id string, req trackRequest) error {
		return h.Analytics.TrackProductExit(id, req.ProductID)
	})
}

func (h *Handlers) TrackClick() http.HandlerFunc {
	return h.track("click", func(id string, _ trackRequest) error {
		return h.Analytics.TrackClick(id)
	})
}

func (h *Handlers) EndSession() http.HandlerFunc {
	return h.track("end session", func(id string, _ trackRequest) error {
		return h.Analytics.EndSession(id)
	})
}
