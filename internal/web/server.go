// Package web serves the static assets for the presentation surface.
// Rendering happens entirely on the surface side; the bridge only hands out
// files.
package web

import "net/http"

type Server struct {
	Dir string
}

func (s *Server) Handler() http.Handler {
	dir := s.Dir
	if dir == "" {
		dir = "web"
	}
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The surface reloads often during development; never cache.
		w.Header().Set("Cache-Control", "no-store")
		fs.ServeHTTP(w, r)
	})
}
