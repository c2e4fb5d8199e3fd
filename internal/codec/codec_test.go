package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/outline"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
  <head><meta charset="utf-8"/><title>Groceries</title></head>
  <body>
    <ul id="root">
      <li id="a" data-type="heading"><p>Shop</p>
        <ul>
          <li id="b" data-type="task" data-done="true"><p>Milk &amp; <strong>eggs</strong></p></li>
          <li id="c" data-type="hr"></li>
        </ul>
      </li>
      <li id="d" data-folded="true"><p>Folded</p><ul><li id="e"><p>hidden</p></li></ul></li>
      <li id="f" data-type="latex"><p>x^2</p></li>
    </ul>
  </body>
</html>`

func TestParseSample(t *testing.T) {
	doc, err := Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Title() != "Groceries" {
		t.Errorf("title = %q", doc.Title())
	}
	if doc.Len() != 6 {
		t.Errorf("len = %d, want 6", doc.Len())
	}
	b, _ := doc.Node("b")
	if b.Kind != outline.KindTask || !b.Done || b.Parent != "a" {
		t.Errorf("b = %+v", b)
	}
	if b.Body != "Milk &amp; <strong>eggs</strong>" {
		t.Errorf("b body = %q", b.Body)
	}
	c, _ := doc.Node("c")
	if c.Kind != outline.KindHR || c.Body != "" {
		t.Errorf("c = %+v", c)
	}
	d, _ := doc.Node("d")
	if !d.Folded {
		t.Error("d should be folded")
	}
	f, _ := doc.Node("f")
	if f.Kind != outline.KindLatex || f.Body != "x^2" {
		t.Errorf("f = %+v", f)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"whitespace": "  \n\t ",
		"malformed":  "<html><body><ul><li></ul></body></html>",
		"text only":  "just some words",
		"no list":    "<config><value>1</value></config>",
	}
	for name, input := range cases {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if !errors.Is(err, apperr.ErrParse) {
			t.Errorf("%s: error %v does not wrap ErrParse", name, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%s: error is not *ParseError", name)
		}
	}
}

func TestParseEmptyDocument(t *testing.T) {
	for _, input := range []string{
		`<html><head><title>x</title></head><body></body></html>`,
		`<html><body><ul id="root"></ul></body></html>`,
	} {
		doc, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if !doc.Empty() {
			t.Errorf("Parse(%q) has %d nodes", input, doc.Len())
		}
	}
}

func TestParseLooseItemsSynthesizesRoot(t *testing.T) {
	doc, err := Parse(`<body><li id="x"><p>one</p></li><li id="y">two</li></body>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	kids := doc.Children(outline.RootID)
	if len(kids) != 2 || kids[0] != "x" || kids[1] != "y" {
		t.Fatalf("children = %v", kids)
	}
	y, _ := doc.Node("y")
	if y.Body != "two" {
		t.Errorf("loose text body = %q", y.Body)
	}
}

func TestParseAssignsMissingAndDuplicateIDs(t *testing.T) {
	doc, err := Parse(`<html><body><ul><li><p>a</p></li><li id="k"><p>b</p></li><li id="k"><p>c</p></li></ul></body></html>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	kids := doc.Children(outline.RootID)
	if len(kids) != 3 {
		t.Fatalf("children = %v", kids)
	}
	seen := map[outline.NodeID]bool{}
	for _, id := range kids {
		if id == "" || seen[id] {
			t.Errorf("bad id %q in %v", id, kids)
		}
		seen[id] = true
	}
}

func TestParseUnknownTypeIsPlain(t *testing.T) {
	doc, err := Parse(`<ul><li id="q" data-type="quote"><p>hi</p></li></ul>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	q, _ := doc.Node("q")
	if q.Kind != outline.KindPlain {
		t.Errorf("kind = %v", q.Kind)
	}
}

func TestSerializeFormat(t *testing.T) {
	doc := outline.NewDocument("")
	a, _ := doc.AppendChild(outline.RootID, outline.KindTask)
	doc.SetDone(a, true)
	doc.SetBody(a, "buy <em>milk</em>")
	b, _ := doc.AppendChild(a, outline.KindPlain)
	doc.SetFolded(a, true)
	doc.AppendChild(outline.RootID, outline.KindHR)

	out, err := Serialize(doc, TitleSource{ExternalName: "/tmp/list.bike"})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<title>list</title>`,
		`<ul id="root">`,
		`<li id="` + string(a) + `" data-type="task" data-done="true" data-folded="true"><p>buy <em>milk</em></p>`,
		`<li id="` + string(b) + `"><p></p></li>`,
		`data-type="hr"></li>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSerializeEmptyDocument(t *testing.T) {
	out, err := Serialize(outline.NewDocument(""), TitleSource{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(out, `<title>Untitled</title>`) {
		t.Errorf("missing fallback title:\n%s", out)
	}
	doc, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !doc.Empty() {
		t.Error("expected empty document")
	}
}

func TestSerializeStripsDecorations(t *testing.T) {
	doc := outline.NewDocument("")
	a, _ := doc.AppendChild(outline.RootID, outline.KindTask)
	doc.SetBody(a, `<span class="task-checkbox">☐</span> <span class="selected" contenteditable="true">call <a href="tel:1" class="x">bob</a></span><span class="katex">rendered</span>`)
	c, _ := doc.AppendChild(outline.RootID, outline.KindPlain)
	doc.SetBody(c, "<br/>\u200b")

	out, err := Serialize(doc, TitleSource{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(out, `<p>call <a href="tel:1">bob</a></p>`) {
		t.Errorf("task body not normalized:\n%s", out)
	}
	if !strings.Contains(out, `<li id="`+string(c)+`"><p></p></li>`) {
		t.Errorf("placeholder body not collapsed:\n%s", out)
	}
	for _, bad := range []string{"katex", "task-checkbox", "contenteditable", "☐"} {
		if strings.Contains(out, bad) {
			t.Errorf("output still contains %q", bad)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		kind outline.Kind
		in   string
		want string
	}{
		{outline.KindPlain, "", ""},
		{outline.KindPlain, "  ", ""},
		{outline.KindPlain, " lead", " lead"},
		{outline.KindTask, " lead", " lead"},
		{outline.KindTask, "   indented", "   indented"},
		{outline.KindTask, "☑ done", "done"},
		{outline.KindTask, "☑  two", " two"},
		{outline.KindTask, "☐ ☑ twice", "twice"},
		{outline.KindTask, `<span class="task-checkbox">☐</span> boxed`, "boxed"},
		{outline.KindTask, `<span class="task-checkbox">☐</span>   wide`, "  wide"},
		{outline.KindPlain, `<span class="task-checkbox">☐</span> boxed`, " boxed"},
		{outline.KindPlain, "<b>bold</b> and <i>it</i>", "<strong>bold</strong> and <em>it</em>"},
		{outline.KindPlain, "<span>kept text</span>", "kept text"},
		{outline.KindPlain, "a < b", "a &lt; b"},
		{outline.KindHR, "anything", ""},
		{outline.KindPlain, "<mark>hi</mark> <code>x</code>", "<mark>hi</mark> <code>x</code>"},
	}
	for _, c := range cases {
		got := Normalize(c.kind, c.in)
		if got != c.want {
			t.Errorf("Normalize(%v, %q) = %q, want %q", c.kind, c.in, got, c.want)
		}
		if again := Normalize(c.kind, got); again != got {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", c.in, got, again)
		}
	}
}

func TestTitleSourcePriority(t *testing.T) {
	cases := []struct {
		src  TitleSource
		want string
	}{
		{TitleSource{ExternalName: "dir/Plan.bike", OwnedName: "outline.bike", DisplayName: "x"}, "Plan"},
		{TitleSource{OwnedName: "outline.bike", DisplayName: "x"}, "outline"},
		{TitleSource{DisplayName: "* My   notes.bike "}, "My notes"},
		{TitleSource{}, FallbackTitle},
		{TitleSource{ExternalName: ".bike"}, FallbackTitle},
	}
	for _, c := range cases {
		if got := c.src.Title(); got != c.want {
			t.Errorf("Title(%+v) = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestRoundTripSample(t *testing.T) {
	doc, err := Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Serialize(doc, TitleSource{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !Equivalent(doc.Snapshot(), again.Snapshot()) {
		t.Errorf("round trip diverged:\n%s", out)
	}
	if again.Title() != "Groceries" {
		t.Errorf("title = %q", again.Title())
	}
}

func TestRoundTripSingleChildScenario(t *testing.T) {
	doc, err := Parse(`<html><head><title>t</title></head><body><ul id="root"></ul></body></html>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, ok := doc.AppendChild(outline.RootID, outline.KindPlain)
	if !ok {
		t.Fatal("create failed")
	}
	out, err := Serialize(doc, TitleSource{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	kids := again.Children(outline.RootID)
	if len(kids) != 1 || kids[0] != id {
		t.Fatalf("children = %v", kids)
	}
	if !Equivalent(doc.Snapshot(), again.Snapshot()) {
		t.Error("not equivalent")
	}
}
