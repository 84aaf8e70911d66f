package web

import (
	"embed"
	"io/fs"
)

//go:embed ui
var uiFiles embed.FS

// Assets returns the widget page and its static files. The desktop shell
// serves the same tree through the Wails asset server.
func Assets() fs.FS {
	sub, err := fs.Sub(uiFiles, "ui")
	if err != nil {
		panic(err)
	}
	return sub
}

// IndexHTML returns the widget page.
func IndexHTML() ([]byte, error) {
	return fs.ReadFile(Assets(), "index.html")
}
