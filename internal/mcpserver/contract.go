package mcpserver

// FormatContract describes the outline file format that LLM consumers
// should follow when composing outline files or node bodies.
const FormatContract = `# Outline Format Contract

Outline files are XHTML documents. The canonical extension is ` + "`" + `.bike` + "`" + `;
platforms that refuse unknown types get ` + "`" + `.bike.html` + "`" + ` instead.

## Structure

` + "```" + `html
<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
  <head>
    <meta charset="utf-8"/>
    <title>Groceries</title>
  </head>
  <body>
    <ul id="root">
      <li id="01HZX3"><p>Plain item</p>
        <ul>
          <li id="01HZX4" data-type="task" data-done="true"><p>Milk &amp; <strong>eggs</strong></p></li>
        </ul>
      </li>
      <li id="01HZX5" data-type="hr"></li>
    </ul>
  </body>
</html>
` + "```" + `

## Rules

1. **One root list.** The first ` + "`" + `<ul>` + "`" + ` under ` + "`" + `<body>` + "`" + ` holds the top-level items.
   Further top-level lists are ignored.
2. **Items** are ` + "`" + `<li>` + "`" + ` elements with an ` + "`" + `id` + "`" + ` attribute. Missing or duplicate ids are
   replaced on import.
3. **Kinds** go in ` + "`" + `data-type` + "`" + `: heading, note, task, ordered, unordered, hr, latex.
   No attribute means a plain item. Unknown values load as plain.
4. **Task state** is ` + "`" + `data-done="true"` + "`" + ` and only counts on tasks.
5. **Folding** is ` + "`" + `data-folded="true"` + "`" + ` on items that have children.
6. **Bodies** are a single ` + "`" + `<p>` + "`" + ` holding text and the inline spans ` + "`" + `em` + "`" + `, ` + "`" + `strong` + "`" + `,
   ` + "`" + `code` + "`" + `, ` + "`" + `mark` + "`" + ` and ` + "`" + `a href` + "`" + `. Other markup is unwrapped to its text.
7. **Rules** (` + "`" + `hr` + "`" + `) have no body. Children found under a rule are moved up to
   follow it.
8. **Children** are a nested ` + "`" + `<ul>` + "`" + ` after the body.
9. **Encoding** is UTF-8. Escape ` + "`" + `&` + "`" + ` and ` + "`" + `<` + "`" + ` in text.

## Titles

The ` + "`" + `<title>` + "`" + ` is rewritten on save from the file name, so editing it by hand has no
lasting effect. An outline with no usable name is titled "Untitled".
`
