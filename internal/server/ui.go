package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// uiFS holds the embedded dashboard. Set via SetUI before creating the server.
var uiFS fs.FS

// SetUI sets the embedded filesystem the dashboard is served from.
func SetUI(fsys fs.FS) {
	uiFS = fsys
}

const (
	indexPage    = "index.html"
	assetMaxAge  = "public, max-age=3600"
	indexNoCache = "no-cache"
)

// spaHandler serves the dashboard. Unknown /api paths get a JSON 404 so
// clients polling the API never receive the page. Any other unknown path
// falls back to index.html. The page is always revalidated since it names
// the assets; the assets themselves are cached for an hour.
func spaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "no such endpoint: "+r.Method+" "+r.URL.Path)
			return
		}
		if uiFS == nil {
			http.Error(w, "dashboard not embedded", http.StatusNotFound)
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = indexPage
		}
		if f, err := uiFS.Open(name); err != nil {
			name = indexPage
		} else {
			f.Close()
		}

		if name == indexPage {
			w.Header().Set("Cache-Control", indexNoCache)
		} else {
			w.Header().Set("Cache-Control", assetMaxAge)
		}
		http.ServeFileFS(w, r, uiFS, name)
	}
}
