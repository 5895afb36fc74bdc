package staticserver

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

const indexPage = "/index.html"

// fileHandler serves files and directory listings out of a root. Unlike
// http.FileServer it answers explicit /index.html requests with the page
// itself instead of redirecting to the directory.
type fileHandler struct {
	dir   http.Dir
	files http.Handler
}

func newFileHandler(root string) *fileHandler {
	dir := http.Dir(root)
	return &fileHandler{dir: dir, files: http.FileServer(dir)}
}

func (h *fileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, indexPage) && h.serveIndex(w, r) {
		return
	}
	h.files.ServeHTTP(w, r)
}

// serveIndex reports whether it wrote a response. A directory named
// index.html is left to the file server.
func (h *fileHandler) serveIndex(w http.ResponseWriter, r *http.Request) bool {
	f, err := h.dir.Open(path.Clean(r.URL.Path))
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			http.Error(w, "404 page not found", http.StatusNotFound)
		case errors.Is(err, fs.ErrPermission):
			http.Error(w, "403 Forbidden", http.StatusForbidden)
		default:
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		}
		return true
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
