package api

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var indexHTML []byte

// ui serves the single-page annotation UI. All interaction goes through
// the JSON API; the page is static.
func (s *Server) ui(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}
