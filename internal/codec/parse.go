// Package codec reads and writes outlines in their XHTML list format.
//
// A document is an html root with a head/title and a body holding exactly
// one root list:
//
//	<ul id="root">
//	  <li id="..." data-type="task" data-done="true"><p>text</p><ul>...</ul></li>
//	</ul>
//
// Parse is tolerant (loose items are wrapped in a synthesized root list);
// Serialize is strict and re-parses its own output before returning it.
package codec

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/starford/outliner/internal/outline"
)

func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = true
	d.Entity = xml.HTMLEntity
	return d
}

// wellFormed consumes text and reports the first XML error. A document
// without any element is not well-formed.
func wellFormed(text string) error {
	d := newDecoder(strings.NewReader(text))
	sawElement := false
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			if !sawElement {
				return errors.New("no root element")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
}

// Parse reads an outline document. The returned document's title is the
// head/title text, if any.
func Parse(text string) (*outline.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: "empty input"}
	}
	if err := wellFormed(text); err != nil {
		return nil, &ParseError{Reason: "malformed xml", Err: err}
	}

	p := &parser{dec: newDecoder(strings.NewReader(text))}
	root, err := p.document()
	if err != nil {
		return nil, err
	}
	return outline.FromItem(p.title, root), nil
}

type parser struct {
	dec   *xml.Decoder
	title string
}

func (p *parser) document() (outline.Item, error) {
	var (
		root      outline.Item
		rootElem  string
		foundList bool
		loose     bool
	)
	for {
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return root, &ParseError{Reason: "malformed xml", Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if rootElem == "" {
			rootElem = start.Name.Local
		}
		switch start.Name.Local {
		case "title":
			var t struct {
				Text string `xml:",chardata"`
			}
			if err := p.dec.DecodeElement(&t, &start); err != nil {
				return root, &ParseError{Reason: "malformed title", Err: err}
			}
			p.title = strings.TrimSpace(t.Text)
		case "ul", "ol":
			if foundList {
				if err := p.dec.Skip(); err != nil {
					return root, &ParseError{Reason: "malformed xml", Err: err}
				}
				continue
			}
			foundList = true
			items, err := p.list()
			if err != nil {
				return root, err
			}
			root.Children = append(root.Children, items...)
		case "li":
			loose = true
			it, err := p.item(start)
			if err != nil {
				return root, err
			}
			root.Children = append(root.Children, it)
		}
	}

	if !foundList && !loose {
		switch rootElem {
		case "html", "body":
		default:
			return root, &ParseError{Reason: "no root list"}
		}
	}
	return root, nil
}

// list reads li children until the enclosing list closes.
func (p *parser) list() ([]outline.Item, error) {
	var items []outline.Item
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, &ParseError{Reason: "unterminated list", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "li" {
				if err := p.dec.Skip(); err != nil {
					return nil, &ParseError{Reason: "malformed list", Err: err}
				}
				continue
			}
			it, err := p.item(t)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		case xml.EndElement:
			return items, nil
		}
	}
}

// item reads one li element. Text found directly inside the li is used
// as the body when no p element is present.
func (p *parser) item(start xml.StartElement) (outline.Item, error) {
	var it outline.Item
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			it.ID = outline.NodeID(a.Value)
		case "data-type":
			it.Kind, _ = outline.ParseKind(a.Value)
		case "data-done":
			it.Done = a.Value == "true"
		case "data-folded":
			it.Folded = a.Value == "true"
		}
	}

	var (
		sawBody bool
		loose   strings.Builder
	)
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return it, &ParseError{Reason: "unterminated item", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "p" && !sawBody:
				var body struct {
					Inner string `xml:",innerxml"`
				}
				if err := p.dec.DecodeElement(&body, &t); err != nil {
					return it, &ParseError{Reason: "malformed body", Err: err}
				}
				it.Body = body.Inner
				sawBody = true
			case t.Name.Local == "ul" || t.Name.Local == "ol":
				kids, err := p.list()
				if err != nil {
					return it, err
				}
				it.Children = append(it.Children, kids...)
			default:
				if err := p.dec.Skip(); err != nil {
					return it, &ParseError{Reason: "malformed item", Err: err}
				}
			}
		case xml.CharData:
			loose.Write(t)
		case xml.EndElement:
			if !sawBody {
				var b strings.Builder
				_ = xml.EscapeText(&b, []byte(strings.TrimSpace(loose.String())))
				it.Body = b.String()
			}
			it.Body = Normalize(it.Kind, it.Body)
			return it, nil
		}
	}
}
