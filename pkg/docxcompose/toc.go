package docxcompose

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// TableOfContents appends a table of contents covering heading levels 1 to
// depth. Word fills it in when the document is opened, since saving sets
// the settings flag asking readers to update fields.
func (c *Composer) TableOfContents(title string, depth int) error {
	if c.closed {
		return ErrComposerClosed
	}
	if depth <= 0 {
		depth = 3
	}
	if depth > 9 {
		return fmt.Errorf("table of contents depth %d out of range", depth)
	}

	content := tree.E("w:sdtContent")
	if title != "" {
		style, _ := c.optionalStyleID("TOC Heading")
		p := tree.E("w:p")
		if style != "" {
			p.Add(tree.E("w:pPr", tree.Val("w:pStyle", style)))
		}
		p.Add(textRun("", Run{Text: title}))
		content.Add(p)
	}

	instr := `TOC \o "1-` + strconv.Itoa(depth) + `" \h \z \u`
	field := tree.E("w:p")
	for _, r := range fieldRuns("", instr, "Update the table of contents to show its entries.") {
		field.Add(r)
	}
	content.Add(field)

	sdt := tree.E("w:sdt",
		tree.E("w:sdtPr",
			tree.E("w:docPartObj",
				tree.Val("w:docPartGallery", "Table of Contents"),
				tree.E("w:docPartUnique"),
			),
		),
		content,
	)
	if _, err := c.appendBlock(sdt); err != nil {
		return err
	}
	c.tocUsed = true
	return nil
}

// Section break kinds, as w:type values.
const (
	SectionNextPage   = "nextPage"
	SectionContinuous = "continuous"
	SectionEvenPage   = "evenPage"
	SectionOddPage    = "oddPage"
)

type sectionState struct {
	kind      string
	landscape bool
}

// SectionBreak ends the current section and starts a new one. kind is how
// the new section begins; landscape selects its orientation. Page size and
// margins otherwise follow the template.
func (c *Composer) SectionBreak(kind string, landscape bool) error {
	if c.closed {
		return ErrComposerClosed
	}
	switch kind {
	case SectionNextPage, SectionContinuous, SectionEvenPage, SectionOddPage:
	case "":
		kind = SectionNextPage
	default:
		return fmt.Errorf("unknown section break kind %q", kind)
	}
	if c.cursor != c.main {
		return fmt.Errorf("section breaks are only allowed in the document body")
	}

	sectPr := c.sectionProperties(c.section)
	if _, err := c.appendBlock(tree.E("w:p", tree.E("w:pPr", tree.R(sectPr)))); err != nil {
		return err
	}
	c.section = sectionState{kind: kind, landscape: landscape}
	return nil
}

// sectionProperties derives the w:sectPr of a section from the template's
// final section.
func (c *Composer) sectionProperties(s sectionState) *etree.Element {
	sectPr := c.tmpl.sectPr.Copy()
	pgSz := sectPr.SelectElement("w:pgSz")

	if s.kind != "" {
		if old := sectPr.SelectElement("w:type"); old != nil {
			sectPr.RemoveChild(old)
		}
		typ := etree.NewElement("w:type")
		typ.CreateAttr("w:val", s.kind)
		sectPr.InsertChildAt(pgSz.Index(), typ)
	}

	if s.landscape != c.tmpl.landscape() {
		w := pgSz.SelectAttrValue("w:w", "")
		h := pgSz.SelectAttrValue("w:h", "")
		pgSz.CreateAttr("w:w", h)
		pgSz.CreateAttr("w:h", w)
		if s.landscape {
			pgSz.CreateAttr("w:orient", "landscape")
		} else {
			pgSz.RemoveAttr("w:orient")
		}
	}
	return sectPr
}

func (t *StyleTemplate) landscape() bool {
	return t.geometry.Orientation == "landscape"
}

// settingsAfterUpdateFields are the w:settings children that follow
// w:updateFields in schema order.
var settingsAfterUpdateFields = map[string]bool{
	"hdrShapeDefaults":           true,
	"footnotePr":                 true,
	"endnotePr":                  true,
	"compat":                     true,
	"docVars":                    true,
	"rsids":                      true,
	"mathPr":                     true,
	"attachedSchema":             true,
	"themeFontLang":              true,
	"clrSchemeMapping":           true,
	"doNotIncludeSubdocsInStats": true,
	"doNotAutoCompressPictures":  true,
	"forceUpgrade":               true,
	"captions":                   true,
	"readModeInkLockDown":        true,
	"smartTagType":               true,
	"schemaLibrary":              true,
	"shapeDefaults":              true,
	"doNotEmbedSmartTags":        true,
	"decimalSymbol":              true,
	"listSeparator":              true,
}

// enableUpdateFields returns a copy of the settings part with
// w:updateFields switched on.
func enableUpdateFields(settings *etree.Document) (*etree.Document, error) {
	doc := settings.Copy()
	root := doc.Root()
	if root.FullTag() != "w:settings" {
		return nil, fmt.Errorf("unexpected root element %s", root.FullTag())
	}
	if el := root.SelectElement("w:updateFields"); el != nil {
		el.CreateAttr("w:val", "true")
		return doc, nil
	}

	at := len(root.Child)
	for i, tok := range root.Child {
		el, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		if el.Space != "w" || settingsAfterUpdateFields[el.Tag] {
			at = i
			break
		}
	}
	el := etree.NewElement("w:updateFields")
	el.CreateAttr("w:val", "true")
	root.InsertChildAt(at, el)
	return doc, nil
}
