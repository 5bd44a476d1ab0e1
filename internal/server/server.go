package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-flowmap/internal/api"
	"github.com/joeblew999/plat-flowmap/internal/api/stream"
	"github.com/joeblew999/plat-flowmap/internal/db"
	"github.com/joeblew999/plat-flowmap/internal/service"
	"github.com/joeblew999/plat-flowmap/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and fragment overrides
}

// Server is the flow map HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
}

// New creates a new flow map server.
func New(cfg Config) (*Server, error) {
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-flowmap API", "1.0.0")
	humaConfig.Info.Description = "Route composition API for origin-destination flow maps."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	settings, err := service.NewSettingsService(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	conn, err := db.Get(db.Config{
		DataDir:    cfg.DataDir,
		DBName:     "flowmap",
		Extensions: []string{"parquet"},
	})
	if err != nil {
		log.Printf("duckdb unavailable: %v", err)
		conn = nil
	}

	sources := service.NewSourceService(cfg.DataDir)
	services := &api.Services{
		Visual:   service.NewVisualService(settings, service.NewEventBus(), nil),
		Settings: settings,
		Dataset:  service.NewDatasetService(conn, sources),
		Source:   sources,
	}

	renderer, err := newRenderer(cfg.WebDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		db:       conn,
		services: services,
		renderer: renderer,
	}
	s.routes()
	return s, nil
}

// newRenderer prefers fragments under webDir and falls back to the embedded set.
func newRenderer(webDir string) (*templates.Renderer, error) {
	if webDir != "" {
		fragmentsDir := filepath.Join(webDir, "templates", "fragments")
		if r, err := templates.NewFromDir(fragmentsDir); err == nil {
			log.Printf("Loaded fragment templates from %s", fragmentsDir)
			return r, nil
		}
	}
	return templates.New()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the wired services.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataDir, s.db != nil).RegisterRoutes(s.humaAPI)
	stream.NewEventHandler(s.services.Visual, s.renderer).RegisterRoutes(s.humaAPI)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		s.mux.HandleFunc("/viewer", s.handleViewer)
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-flowmap",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.config.WebDir, "templates", "viewer.html"))
}
