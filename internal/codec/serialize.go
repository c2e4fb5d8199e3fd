package codec

import (
	"encoding/xml"
	"strings"

	"github.com/starford/outliner/internal/outline"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Serialize renders the document, titled from src, and verifies that the
// output parses back as well-formed XML.
func Serialize(doc *outline.Document, src TitleSource) (string, error) {
	if src.DisplayName == "" {
		src.DisplayName = doc.Title()
	}
	return SerializeItem(doc.Snapshot(), src.Title())
}

// SerializeItem renders a snapshot under the given title.
func SerializeItem(root outline.Item, title string) (string, error) {
	w := &writer{}
	w.raw(header)
	w.line(0, "<html>")
	w.line(1, "<head>")
	w.line(2, `<meta charset="utf-8"/>`)
	w.indent(2)
	w.raw("<title>")
	w.text(title)
	w.raw("</title>\n")
	w.line(1, "</head>")
	w.line(1, "<body>")
	if len(root.Children) == 0 {
		w.line(2, `<ul id="root"></ul>`)
	} else {
		w.line(2, `<ul id="root">`)
		for _, it := range root.Children {
			w.item(3, it)
		}
		w.line(2, "</ul>")
	}
	w.line(1, "</body>")
	w.line(0, "</html>")

	out := w.String()
	if err := wellFormed(out); err != nil {
		return out, &SerializeError{Err: err}
	}
	return out, nil
}

type writer struct {
	strings.Builder
}

func (w *writer) raw(s string) { w.WriteString(s) }

func (w *writer) indent(depth int) {
	for i := 0; i < depth; i++ {
		w.WriteString("  ")
	}
}

func (w *writer) line(depth int, s string) {
	w.indent(depth)
	w.WriteString(s)
	w.WriteByte('\n')
}

func (w *writer) text(s string) {
	_ = xml.EscapeText(w, []byte(s))
}

func (w *writer) item(depth int, it outline.Item) {
	w.indent(depth)
	w.raw(`<li id="`)
	w.text(string(it.ID))
	w.raw(`"`)
	if it.Kind != outline.KindPlain {
		w.raw(` data-type="` + it.Kind.String() + `"`)
	}
	if it.Kind == outline.KindTask && it.Done {
		w.raw(` data-done="true"`)
	}
	if it.Folded && len(it.Children) > 0 {
		w.raw(` data-folded="true"`)
	}
	w.raw(">")

	if it.Kind.HasBody() {
		w.raw("<p>")
		w.raw(Normalize(it.Kind, it.Body))
		w.raw("</p>")
	}
	if len(it.Children) == 0 {
		w.raw("</li>\n")
		return
	}
	w.raw("\n")
	w.line(depth+1, "<ul>")
	for _, c := range it.Children {
		w.item(depth+2, c)
	}
	w.line(depth+1, "</ul>")
	w.line(depth, "</li>")
}
