// Package frontend renders the dashboard page and the summary fragment
// streamed to it, and serves the stylesheet.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticAssets embed.FS

// StaticHandler serves the embedded static directory. Mount it under
// /static/ with the prefix stripped.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticAssets, "static")
	if err != nil {
		panic(err)
	}
	files := http.FileServerFS(sub)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		files.ServeHTTP(w, r)
	})
}
