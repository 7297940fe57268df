package server

import (
	"net/http"
	"path/filepath"
)

// handleIndex serves the dashboard page and redirects .html paths to clean
// URLs. It owns the catch-all route, so anything else under / is a 404.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		http.ServeFile(w, r, filepath.Join(s.config.StaticDir, "index.html"))
	case "/index.html":
		http.Redirect(w, r, "/", http.StatusFound)
	case "/ec2.html":
		http.Redirect(w, r, "/ec2", http.StatusFound)
	default:
		http.NotFound(w, r)
	}
}

// handleEC2 serves the manager page. The page polls instance state, so
// caching it would show stale controls after a deploy.
func (s *Server) handleEC2(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.ServeFile(w, r, filepath.Join(s.config.StaticDir, "ec2.html"))
}
