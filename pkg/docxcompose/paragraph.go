package docxcompose

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// maxBookmarkName is the longest bookmark name Word accepts.
const maxBookmarkName = 40

// Run is a span of text with one character style. At most one of Link,
// Anchor, FootnoteKey and Field is expected; Link and Anchor wrap the run
// in a hyperlink.
type Run struct {
	Text  string
	Style string // character style name
	// Link is an external URL.
	Link string
	// Anchor is the name of a bookmark in the document.
	Anchor string
	// FootnoteKey places a reference to the footnote with that key.
	FootnoteKey string
	// Field is a field instruction, e.g. "PAGE"; Text is its cached result.
	Field string
	// Break ends the run with a line break.
	Break bool
	// Tab starts the run with a tab.
	Tab bool
}

// ParagraphOptions control one paragraph.
type ParagraphOptions struct {
	Style           string // paragraph style name, "" for the default
	Bookmark        string
	Align           string // left, center, right or both
	KeepNext        bool
	PageBreakBefore bool
	IndentLeft      int // twips

	numbering *numberingRef
}

type numberingRef struct {
	numID, ilvl int
	indent      int
	hanging     int
}

// Paragraph appends a paragraph in the named style.
func (c *Composer) Paragraph(style string, runs ...Run) error {
	return c.AddParagraph(ParagraphOptions{Style: style}, runs...)
}

// AddParagraph appends a paragraph with full options.
func (c *Composer) AddParagraph(opts ParagraphOptions, runs ...Run) error {
	p, err := c.paragraphElement(opts, runs)
	if err != nil {
		return err
	}
	_, err = c.appendBlock(p)
	return err
}

// Heading appends a heading. Level 0 uses the "Title" style, levels 1-9 the
// built-in "heading N" styles. A non-empty bookmark makes the heading a
// link target.
func (c *Composer) Heading(level int, bookmark string, runs ...Run) error {
	if level < 0 || level > 9 {
		return fmt.Errorf("heading level %d out of range", level)
	}
	style := "Title"
	if level > 0 {
		style = "heading " + strconv.Itoa(level)
	}
	return c.AddParagraph(ParagraphOptions{Style: style, Bookmark: bookmark}, runs...)
}

// PageBreak appends a paragraph holding a page break.
func (c *Composer) PageBreak() error {
	_, err := c.appendBlock(tree.E("w:p", tree.E("w:r", tree.E("w:br", tree.A("w:type", "page")))))
	return err
}

// Caption appends a numbered caption such as "Figure 3: text". Each label
// keeps its own SEQ counter. style "" uses the built-in "caption" style
// when the template has one.
func (c *Composer) Caption(style, label string, runs ...Run) error {
	if c.closed {
		return ErrComposerClosed
	}
	if label == "" {
		return errors.New("caption label is empty")
	}
	if style == "" {
		if _, ok := c.optionalStyleID("caption"); ok {
			style = "caption"
		}
	}
	c.sequences[label]++
	all := []Run{
		{Text: label + " "},
		{Field: "SEQ " + label + ` \* ARABIC`, Text: strconv.Itoa(c.sequences[label])},
	}
	if len(runs) > 0 {
		all = append(all, Run{Text: ": "})
		all = append(all, runs...)
	}
	return c.Paragraph(style, all...)
}

func (c *Composer) paragraphElement(opts ParagraphOptions, runs []Run) (*tree.Element, error) {
	if c.closed {
		return nil, ErrComposerClosed
	}
	pPr := tree.E("w:pPr")
	if opts.Style != "" {
		id, err := c.styleID(opts.Style)
		if err != nil {
			return nil, err
		}
		pPr.Add(tree.Val("w:pStyle", id))
	}
	if opts.KeepNext {
		pPr.Add(tree.E("w:keepNext"))
	}
	if opts.PageBreakBefore {
		pPr.Add(tree.E("w:pageBreakBefore"))
	}
	indent, hanging := opts.IndentLeft, 0
	if n := opts.numbering; n != nil {
		pPr.Add(tree.E("w:numPr",
			tree.Val("w:ilvl", strconv.Itoa(n.ilvl)),
			tree.Val("w:numId", strconv.Itoa(n.numID)),
		))
		if n.indent > 0 {
			indent, hanging = n.indent, n.hanging
		}
	}
	if indent > 0 {
		ind := tree.E("w:ind", tree.A("w:left", strconv.Itoa(indent)))
		if hanging > 0 {
			ind.Set("w:hanging", strconv.Itoa(hanging))
		}
		pPr.Add(ind)
	}
	if opts.Align != "" {
		switch opts.Align {
		case "left", "center", "right", "both":
		default:
			return nil, fmt.Errorf("unknown paragraph alignment %q", opts.Align)
		}
		pPr.Add(tree.Val("w:jc", opts.Align))
	}

	p := tree.E("w:p")
	if len(pPr.Children) > 0 {
		p.Add(pPr)
	}

	items, err := c.runItems(runs)
	if err != nil {
		return nil, err
	}
	if opts.Bookmark != "" {
		start, end := c.bookmark(opts.Bookmark)
		p.Add(start)
		p.Add(items...)
		p.Add(end)
	} else {
		p.Add(items...)
	}
	return p, nil
}

// runItems converts runs to run, hyperlink and field elements for the part
// at the cursor.
func (c *Composer) runItems(runs []Run) ([]tree.Item, error) {
	var items []tree.Item
	for _, r := range runs {
		var rStyle string
		if r.Style != "" {
			id, err := c.styleID(r.Style)
			if err != nil {
				return nil, err
			}
			rStyle = id
		}

		switch {
		case r.Field != "":
			for _, el := range fieldRuns(rStyle, r.Field, r.Text) {
				items = append(items, el)
			}
		case r.FootnoteKey != "":
			if r.Text != "" {
				items = append(items, textRun(rStyle, r))
			}
			items = append(items, c.footnoteReference(r.FootnoteKey))
		case r.Link != "":
			if rStyle == "" {
				rStyle, _ = c.optionalStyleID("Hyperlink")
			}
			id, err := c.cursor.part.rels.Register(r.Link, RelTypeHyperlink, true)
			if err != nil {
				return nil, fmt.Errorf("hyperlink %q: %w", r.Link, err)
			}
			items = append(items, tree.E("w:hyperlink",
				tree.A("r:id", id), tree.A("w:history", "1"),
				textRun(rStyle, r),
			))
		case r.Anchor != "":
			if rStyle == "" {
				rStyle, _ = c.optionalStyleID("Hyperlink")
			}
			items = append(items, tree.E("w:hyperlink",
				tree.A("w:anchor", BookmarkName(r.Anchor)), tree.A("w:history", "1"),
				textRun(rStyle, r),
			))
		default:
			items = append(items, textRun(rStyle, r))
		}
	}
	return items, nil
}

func runProperties(rStyle string) *tree.Element {
	return tree.E("w:rPr", tree.Val("w:rStyle", rStyle))
}

// textRun emits a w:r; newlines become w:br and tabs w:tab.
func textRun(rStyle string, r Run) *tree.Element {
	run := tree.E("w:r")
	if rStyle != "" {
		run.Add(runProperties(rStyle))
	}
	if r.Tab {
		run.Add(tree.E("w:tab"))
	}
	for i, line := range strings.Split(r.Text, "\n") {
		if i > 0 {
			run.Add(tree.E("w:br"))
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				run.Add(tree.E("w:tab"))
			}
			if seg != "" {
				run.Add(textElement(seg))
			}
		}
	}
	if r.Break {
		run.Add(tree.E("w:br"))
	}
	return run
}

func textElement(s string) *tree.Element {
	t := tree.E("w:t", tree.T(s))
	if strings.TrimSpace(s) != s {
		t.Set("xml:space", "preserve")
	}
	return t
}

// fieldRuns emits a complex field: begin, instruction, separate, cached
// result, end.
func fieldRuns(rStyle, instr, result string) []*tree.Element {
	run := func(items ...tree.Item) *tree.Element {
		r := tree.E("w:r")
		if rStyle != "" {
			r.Add(runProperties(rStyle))
		}
		return r.Add(items...)
	}
	return []*tree.Element{
		run(tree.E("w:fldChar", tree.A("w:fldCharType", "begin"))),
		run(tree.E("w:instrText", tree.A("xml:space", "preserve"), tree.T(" "+instr+" "))),
		run(tree.E("w:fldChar", tree.A("w:fldCharType", "separate"))),
		run(textElement(result)),
		run(tree.E("w:fldChar", tree.A("w:fldCharType", "end"))),
	}
}

// BookmarkName turns a free-form name into a valid Word bookmark name:
// letters, digits and underscores, starting with a letter, at most 40
// characters.
func BookmarkName(name string) string {
	s := strings.ReplaceAll(slug.Make(name), "-", "_")
	if s == "" || !(s[0] >= 'a' && s[0] <= 'z') {
		s = "b_" + s
	}
	if len(s) > maxBookmarkName {
		s = strings.TrimRight(s[:maxBookmarkName], "_")
	}
	return s
}

// bookmark returns the start and end markers of a new bookmark. Names are
// made unique within the document.
func (c *Composer) bookmark(name string) (*tree.Element, *tree.Element) {
	base := BookmarkName(name)
	unique := base
	for n := 2; c.bookmarkNames[unique]; n++ {
		suffix := "_" + strconv.Itoa(n)
		cut := base
		if len(cut)+len(suffix) > maxBookmarkName {
			cut = cut[:maxBookmarkName-len(suffix)]
		}
		unique = cut + suffix
	}
	c.bookmarkNames[unique] = true

	id := strconv.Itoa(c.bookmarkID)
	c.bookmarkID++
	return tree.E("w:bookmarkStart", tree.A("w:id", id), tree.A("w:name", unique)),
		tree.E("w:bookmarkEnd", tree.A("w:id", id))
}
