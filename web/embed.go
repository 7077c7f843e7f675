package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*
var TemplateFS embed.FS

// StaticHandler serves the stylesheet used by exported snapshots.
func StaticHandler() http.Handler {
	subFS, _ := fs.Sub(staticFS, "static")
	return http.FileServer(http.FS(subFS))
}

// Stylesheet returns the embedded snapshot stylesheet.
func Stylesheet() (string, error) {
	data, err := fs.ReadFile(staticFS, "static/console.css")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
