// Package static serves a site directory over HTTP.
package static

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
)

const indexPage = "/index.html"

// Handler serves files below a site root using the stock net/http file
// server, except that explicit requests for index.html are answered with the
// file itself instead of a redirect to the directory.
type Handler struct {
	root  http.Dir
	files http.Handler
}

// New returns a Handler rooted at dir.
func New(dir string) *Handler {
	root := http.Dir(dir)
	return &Handler{
		root:  root,
		files: http.FileServer(root),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, indexPage) {
		h.serveIndex(w, r)
		return
	}
	h.files.ServeHTTP(w, r)
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := h.root.Open(r.URL.Path)
	if err != nil {
		msg, code := toHTTPError(err)
		http.Error(w, msg, code)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		msg, code := toHTTPError(err)
		http.Error(w, msg, code)
		return
	}
	if info.IsDir() {
		h.files.ServeHTTP(w, r)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// toHTTPError mirrors the messages net/http's file server uses.
func toHTTPError(err error) (string, int) {
	if errors.Is(err, fs.ErrNotExist) {
		return "404 page not found", http.StatusNotFound
	}
	if errors.Is(err, fs.ErrPermission) {
		return "403 Forbidden", http.StatusForbidden
	}
	return "500 Internal Server Error", http.StatusInternalServerError
}
