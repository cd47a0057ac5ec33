// Package util is a set of utility variables or methods
package util

import (
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var ImageExt = mapset.NewSet(".jpeg", ".jpg", ".png", ".gif", ".webp")

var VideoExt = mapset.NewSet(".mp4", ".webm", ".mov", ".m4v")

// SupportedExt is every extension the slideshow can display.
var SupportedExt = ImageExt.Union(VideoExt)

// Ext is the lowercased extension of name, ready to match against the sets
// above.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
