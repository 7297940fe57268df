// Package server implements the HTTP surface of the instance manager: the
// JSON API, the static pages, and the session-based admin auth.
package server

import (
	"crypto/rand"
	"database/sql"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gorilla/sessions"
	"golang.org/x/time/rate"

	"ec2manager/internal/config"
	"ec2manager/internal/fleet"
	"ec2manager/internal/version"
)

const sessionName = "ec2manager-session"

// Server represents the HTTP server
type Server struct {
	config       *config.Config
	sessionStore *sessions.CookieStore
	fleet        *fleet.Service
	db           *sql.DB
	versionInfo  version.Info
	limiter      *rate.Limiter
}

// New creates a new server instance
func New(cfg *config.Config, fleetSvc *fleet.Service, db *sql.DB, versionInfo version.Info) (*Server, error) {
	sessionKey := []byte(cfg.SessionKey)
	if len(sessionKey) == 0 {
		// No configured key: sessions do not survive restarts, which is
		// acceptable for a single-admin tool.
		sessionKey = make([]byte, 32)
		if _, err := rand.Read(sessionKey); err != nil {
			return nil, err
		}
	}

	s := &Server{
		config:       cfg,
		sessionStore: sessions.NewCookieStore(sessionKey),
		fleet:        fleetSvc,
		db:           db,
		versionInfo:  versionInfo,
		// Start/stop calls reach the EC2 API; a broken frontend must not
		// be able to hammer it. 5 requests per second sustained.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}

	s.sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400, // 1 day
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return s, nil
}

// Routes builds the request multiplexer.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Pages. Only the icons directory is exposed, never the working tree.
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ec2", s.handleEC2)
	iconsDir := filepath.Join(s.config.StaticDir, "icons")
	mux.Handle("/icons/", http.StripPrefix("/icons/", http.FileServer(http.Dir(iconsDir))))

	// API routes
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/instances", s.handleListInstances)
	mux.HandleFunc("/api/instances/", s.AuthRequiredMiddleware(s.RateLimitMiddleware(s.routeInstanceActions)))
	mux.HandleFunc("/api/operations", s.handleListOperations)
	mux.HandleFunc("/api/operations/", s.handleOperationStatus)
	mux.HandleFunc("/api/system-vitals", s.handleSystemVitals)
	mux.HandleFunc("/api/system-vitals/history", s.handleVitalsHistory)

	// Session management
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.config.ListenAddr()
	log.Printf("EC2 Instance Manager running at http://%s", addr)
	log.Printf("Dashboard:   http://%s/", addr)
	log.Printf("EC2 Manager: http://%s/ec2", addr)
	return http.ListenAndServe(addr, s.Routes())
}
