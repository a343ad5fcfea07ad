// Package web embeds the console UI assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:assets
var assetFS embed.FS

// Assets returns the embedded UI filesystem. The returned FS has assets/ as
// its root, so files are accessed directly (e.g. "index.html").
func Assets() (fs.FS, error) {
	return fs.Sub(assetFS, "assets")
}
