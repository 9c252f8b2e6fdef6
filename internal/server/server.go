// internal/server/server.go
package server

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"memcal/internal/database"
	"memcal/internal/feed"
	"memcal/internal/idgen"
)

//go:embed web/templates
var templateContent embed.FS

type Server struct {
	db        *database.DB
	logger    *log.Logger
	syncer    *feed.Syncer
	ids       idgen.Generator
	templates *template.Template
}

func NewServer(db *database.DB, logger *log.Logger, syncer *feed.Syncer, ids idgen.Generator) (*Server, error) {
	s := &Server{
		db:     db,
		logger: logger,
		syncer: syncer,
		ids:    ids,
	}

	templates, err := template.New("").Funcs(s.templateFuncs()).ParseFS(templateContent, "web/templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// templateFuncs defines functions available to templates.
func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatEventTime": func(t time.Time) string {
			return t.Format("Monday, 2006-01-02 15:04")
		},
		// Property values arrive with iCalendar escaping; commas are
		// the one escape that shows up in locations in practice.
		"displayText": func(v string) string {
			return strings.ReplaceAll(v, `\,`, ",")
		},
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /robots.txt", s.handleRobots)

	mux.HandleFunc("POST /feed", s.handleAddFeed)
	mux.HandleFunc("GET /feed/{id}", s.handleCalendar)

	mux.HandleFunc("GET /feed/{id}/{secret}", s.handleManagePage)
	mux.HandleFunc("DELETE /feed/{id}/{secret}", s.handleDeleteFeed)
	mux.HandleFunc("POST /feed/{id}/{secret}", s.handleFeedMethodOverride)

	mux.HandleFunc("DELETE /feed/{id}/{eventID}/{secret}", s.handleDeleteEvent)
	mux.HandleFunc("POST /feed/{id}/{eventID}/{secret}", s.handleEventMethodOverride)

	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Printf("Starting server on %s", addr)
	return srv.ListenAndServe()
}
