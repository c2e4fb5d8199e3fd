package codec

import (
	"encoding/xml"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/starford/outliner/internal/outline"
)

// inline maps accepted inline element names to their canonical form.
var inline = map[string]string{
	"em":     "em",
	"i":      "em",
	"strong": "strong",
	"b":      "strong",
	"code":   "code",
	"mark":   "mark",
	"a":      "a",
}

// decorationClasses mark render-time elements that are rebuilt from node
// state and never persisted.
var decorationClasses = []string{
	"task-checkbox",
	"fold-toggle",
	"drag-handle",
	"drop-indicator",
	"katex",
	"math-rendered",
}

// decorationElements are dropped with their content wherever they appear.
var decorationElements = []string{"input", "button", "svg", "script", "style"}

const checkboxGlyphs = "☐☑☒✓✔"

// placeholders are invisible characters editors insert into empty bodies.
var placeholders = strings.NewReplacer("\u200b", "", "\ufeff", "")

// Normalize strips presentation-only decoration from a body fragment.
// It is idempotent. Bodies of kinds without text are always empty.
func Normalize(kind outline.Kind, body string) string {
	if !kind.HasBody() || body == "" {
		return ""
	}
	out, text, marked, err := sanitize(body)
	if err != nil {
		// Not a fragment we can read; keep it as plain text.
		var b strings.Builder
		_ = xml.EscapeText(&b, []byte(body))
		out, text, marked = b.String(), body, false
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if kind == outline.KindTask {
		out = stripMarker(out, marked)
	}
	return out
}

// stripMarker removes leading checkbox glyphs from a task body together with
// the one space rendered after each of them. marked means a checkbox
// decoration element opened the fragment.
func stripMarker(out string, marked bool) string {
	if marked {
		out = strings.TrimPrefix(out, " ")
	}
	for {
		t := strings.TrimLeft(out, checkboxGlyphs)
		if t == out {
			return out
		}
		out = strings.TrimPrefix(t, " ")
	}
}

func isDecoration(start xml.StartElement) bool {
	if slices.Contains(decorationElements, start.Name.Local) {
		return true
	}
	for _, a := range start.Attr {
		if a.Name.Local != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Value) {
			if slices.Contains(decorationClasses, c) {
				return true
			}
		}
	}
	return false
}

// sanitize rewrites a fragment keeping only accepted inline elements.
// Unknown elements are unwrapped; their text survives. It returns the
// cleaned markup, its visible text and whether a decoration was dropped
// before any text.
func sanitize(fragment string) (string, string, bool, error) {
	d := newDecoder(strings.NewReader("<p>" + fragment + "</p>"))
	if _, err := d.Token(); err != nil {
		return "", "", false, err
	}

	var (
		out    strings.Builder
		text   strings.Builder
		stack  []string
		marked bool
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return "", "", false, io.ErrUnexpectedEOF
		}
		if err != nil {
			return "", "", false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if isDecoration(t) {
				if err := d.Skip(); err != nil {
					return "", "", false, err
				}
				if text.Len() == 0 {
					marked = true
				}
				continue
			}
			name := inline[t.Name.Local]
			stack = append(stack, name)
			if name == "" {
				continue
			}
			out.WriteString("<" + name)
			if name == "a" {
				for _, a := range t.Attr {
					if a.Name.Local == "href" {
						out.WriteString(` href="`)
						_ = xml.EscapeText(&out, []byte(a.Value))
						out.WriteString(`"`)
					}
				}
			}
			out.WriteString(">")
		case xml.EndElement:
			if len(stack) == 0 {
				// Closing the synthetic wrapper.
				return out.String(), text.String(), marked, nil
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if name != "" {
				out.WriteString("</" + name + ">")
			}
		case xml.CharData:
			s := placeholders.Replace(string(t))
			text.WriteString(s)
			_ = xml.EscapeText(&out, []byte(s))
		}
	}
}
