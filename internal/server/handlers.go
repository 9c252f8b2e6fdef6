// internal/server/handlers.go
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"memcal/internal/database"
	"memcal/internal/feed"
	"memcal/internal/ics"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		s.logger.Printf("Error rendering index: %v", err)
	}
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "User-agent: *\nDisallow: /feed/\n")
}

type addFeedRequest struct {
	URL string `json:"url"`
}

type addFeedResponse struct {
	URL         string `json:"url"`
	ManageToken string `json:"manage_token"`
	ManageURL   string `json:"manage_url"`
}

// handleAddFeed creates a subscription. The body is either a form or a
// JSON object; JSON callers get the manage token back, browsers get
// redirected to the manage page.
func (s *Server) handleAddFeed(w http.ResponseWriter, r *http.Request) {
	var feedURL string
	isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
	if isJSON {
		var req addFeedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		feedURL = req.URL
	} else {
		feedURL = r.FormValue("url")
	}

	feedURL = strings.TrimSpace(feedURL)
	if parsed, err := url.Parse(feedURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		http.Error(w, "invalid feed url", http.StatusBadRequest)
		return
	}

	id, err := s.ids.NextID()
	if err != nil {
		s.logger.Printf("Error allocating feed id: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	secret := uuid.NewString()

	if err := s.db.CreateFeed(r.Context(), id, feedURL, secret); err != nil {
		s.logger.Printf("Error creating feed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.logger.Printf("Created feed %d for %s", id, feedURL)

	managePath := fmt.Sprintf("/feed/%d/%s", id, secret)
	if isJSON {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(addFeedResponse{
			URL:         fmt.Sprintf("/feed/%d", id),
			ManageToken: secret,
			ManageURL:   managePath,
		})
		return
	}
	http.Redirect(w, r, managePath, http.StatusSeeOther)
}

// handleCalendar serves the regenerated calendar document. A feed that
// has never synced is synced right here, synchronously; after the first
// success, reads keep serving the last good state even when later syncs
// fail.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupFeed(w, r)
	if !ok {
		return
	}
	if !s.ensureSynced(w, r, f) {
		return
	}

	cal, err := s.db.GetCalendar(r.Context(), f.ID)
	if err != nil {
		s.logger.Printf("Error loading calendar %d: %v", f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	events, err := s.db.GetEventsForFeed(r.Context(), f.ID)
	if err != nil {
		s.logger.Printf("Error loading events for feed %d: %v", f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	body, err := ics.GenerateDocument(feed.BuildDocument(cal, events))
	if err != nil {
		s.logger.Printf("Error generating document for feed %d: %v", f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write(body)
}

type managePageData struct {
	Feed     *database.Feed
	Calendar *database.Calendar
	Events   []database.Event
	Secret   string
}

func (s *Server) handleManagePage(w http.ResponseWriter, r *http.Request) {
	f, ok := s.authorizeFeed(w, r)
	if !ok {
		return
	}
	if !s.ensureSynced(w, r, f) {
		return
	}

	cal, err := s.db.GetCalendar(r.Context(), f.ID)
	if err != nil {
		s.logger.Printf("Error loading calendar %d: %v", f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	events, err := s.db.GetEventsForFeed(r.Context(), f.ID)
	if err != nil {
		s.logger.Printf("Error loading events for feed %d: %v", f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := managePageData{Feed: f, Calendar: cal, Events: events, Secret: r.PathValue("secret")}
	if err := s.templates.ExecuteTemplate(w, "feed.html", data); err != nil {
		s.logger.Printf("Error rendering manage page: %v", err)
	}
}

func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request) {
	f, ok := s.authorizeFeed(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteFeed(r.Context(), f.ID); err != nil {
		s.logger.Printf("Error deleting feed %d: %v", f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.logger.Printf("Deleted feed %d", f.ID)
	s.deleteDone(w, r, "/")
}

// handleFeedMethodOverride accepts browser form posts carrying
// _method=DELETE; anything else is a plain POST to a resource that only
// supports DELETE.
func (s *Server) handleFeedMethodOverride(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("_method") != "DELETE" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleDeleteFeed(w, r)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	f, ok := s.authorizeFeed(w, r)
	if !ok {
		return
	}
	eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	err = s.db.DeleteEvent(r.Context(), f.ID, eventID)
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Printf("Error deleting event %d from feed %d: %v", eventID, f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.logger.Printf("Deleted event %d from feed %d", eventID, f.ID)
	s.deleteDone(w, r, fmt.Sprintf("/feed/%d/%s", f.ID, r.PathValue("secret")))
}

func (s *Server) handleEventMethodOverride(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("_method") != "DELETE" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleDeleteEvent(w, r)
}

// lookupFeed resolves the {id} path segment. Unknown ids are 404s.
func (s *Server) lookupFeed(w http.ResponseWriter, r *http.Request) (*database.Feed, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	f, err := s.db.GetFeed(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		s.logger.Printf("Error loading feed %d: %v", id, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return f, true
}

// authorizeFeed resolves {id} and checks {secret} against the stored
// manage secret. A wrong secret on an existing feed is a 401.
func (s *Server) authorizeFeed(w http.ResponseWriter, r *http.Request) (*database.Feed, bool) {
	f, ok := s.lookupFeed(w, r)
	if !ok {
		return nil, false
	}
	secret := r.PathValue("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(f.ManageSecret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return f, true
}

// ensureSynced runs a synchronous first sync for a feed that has no
// stored calendar yet. Later sync failures do not block reads; only a
// feed with no good state at all gets a 500.
func (s *Server) ensureSynced(w http.ResponseWriter, r *http.Request, f *database.Feed) bool {
	_, err := s.db.GetCalendar(r.Context(), f.ID)
	if err == nil {
		return true
	}
	if !errors.Is(err, database.ErrNotFound) {
		s.logger.Printf("Error checking calendar %d: %v", f.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return false
	}

	if err := s.syncer.Sync(r.Context(), f); err != nil {
		s.logger.Printf("Error syncing feed %d on demand: %v", f.ID, err)
		http.Error(w, "feed synchronization failed", http.StatusInternalServerError)
		return false
	}
	return true
}

// deleteDone finishes a deletion: form posts go back to a page, real
// DELETE calls get 204.
func (s *Server) deleteDone(w http.ResponseWriter, r *http.Request, redirect string) {
	if r.Method == http.MethodPost {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
