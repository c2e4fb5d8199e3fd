package codec

import (
	"path"
	"strings"
)

// Extension is the canonical outline file extension.
const Extension = ".bike"

// AltExtension replaces Extension on platforms that refuse unknown types.
const AltExtension = ".bike.html"

// FallbackTitle is used when no name can be derived.
const FallbackTitle = "Untitled"

// KnownExtensions are stripped from names before a title or filename is
// derived from them. Longer suffixes come first.
var KnownExtensions = []string{AltExtension, Extension, ".xhtml", ".html", ".opml", ".xml", ".txt"}

// TitleSource holds the candidate names a document title is derived from,
// in priority order.
type TitleSource struct {
	ExternalName string // name of the externally-owned file
	OwnedName    string // canonical name in the owned store
	DisplayName  string // name currently shown to the user
}

// Title returns the first usable candidate, or FallbackTitle.
func (s TitleSource) Title() string {
	if t := StripExtension(path.Base(s.ExternalName)); s.ExternalName != "" && t != "" {
		return t
	}
	if t := StripExtension(path.Base(s.OwnedName)); s.OwnedName != "" && t != "" {
		return t
	}
	if t := cleanDisplayName(s.DisplayName); t != "" {
		return t
	}
	return FallbackTitle
}

// StripExtension removes one recognized document extension, ignoring case.
func StripExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range KnownExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// cleanDisplayName drops the unsaved marker, a known extension and runs of
// whitespace from a displayed document name.
func cleanDisplayName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, "*• ")
	name = StripExtension(name)
	return strings.Join(strings.Fields(name), " ")
}
