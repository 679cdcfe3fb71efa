package docxcompose

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// StyleProps are the formatting options of a style created during a
// session. Zero values leave the property unset.
type StyleProps struct {
	BasedOn   string // name of the parent style
	Next      string // paragraph styles only
	Bold      bool
	Italic    bool
	Underline bool
	Font      string
	// Size in half-points, as OOXML stores it.
	Size        int
	Color       string
	SpaceBefore int
	SpaceAfter  int
	IndentLeft  int
	KeepNext    bool
}

// styleID resolves a style name against the session's styles and then the
// template's.
func (c *Composer) styleID(name string) (string, error) {
	if id, ok := c.sessionStyles[name]; ok {
		return id, nil
	}
	return c.tmpl.ResolveStyleID(name)
}

// optionalStyleID resolves one of Word's built-in style names that a
// template may legitimately lack; absence is reported, not an error.
func (c *Composer) optionalStyleID(name string) (string, bool) {
	id, err := c.styleID(name)
	if err != nil {
		return "", false
	}
	return id, true
}

// NewCharacterStyle adds a character style and returns its id. When a
// style of that name already exists its id is returned unchanged.
func (c *Composer) NewCharacterStyle(name string, props StyleProps) (string, error) {
	return c.newStyle("character", name, props)
}

// NewParagraphStyle adds a paragraph style and returns its id. When a style
// of that name already exists its id is returned unchanged.
func (c *Composer) NewParagraphStyle(name string, props StyleProps) (string, error) {
	return c.newStyle("paragraph", name, props)
}

func (c *Composer) newStyle(kind, name string, props StyleProps) (string, error) {
	if c.closed {
		return "", ErrComposerClosed
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("style name is empty")
	}
	if id, err := c.styleID(name); err == nil {
		return id, nil
	}

	style := tree.E("w:style", tree.A("w:type", kind), tree.A("w:customStyle", "1"))
	id := c.uniqueStyleID(name)
	style.Set("w:styleId", id)
	style.Add(tree.Val("w:name", name))

	if props.BasedOn != "" {
		parent, err := c.styleID(props.BasedOn)
		if err != nil {
			return "", err
		}
		style.Add(tree.Val("w:basedOn", parent))
	}
	if props.Next != "" && kind == "paragraph" {
		next, err := c.styleID(props.Next)
		if err != nil {
			return "", err
		}
		style.Add(tree.Val("w:next", next))
	}
	style.Add(tree.E("w:qFormat"))

	if kind == "paragraph" {
		pPr := tree.E("w:pPr")
		if props.KeepNext {
			pPr.Add(tree.E("w:keepNext"))
		}
		if props.SpaceBefore > 0 || props.SpaceAfter > 0 {
			pPr.Add(tree.E("w:spacing",
				tree.A("w:before", strconv.Itoa(props.SpaceBefore)),
				tree.A("w:after", strconv.Itoa(props.SpaceAfter))))
		}
		if props.IndentLeft > 0 {
			pPr.Add(tree.E("w:ind", tree.A("w:left", strconv.Itoa(props.IndentLeft))))
		}
		if len(pPr.Children) > 0 {
			style.Add(pPr)
		}
	}

	rPr := tree.E("w:rPr")
	if props.Font != "" {
		rPr.Add(tree.E("w:rFonts", tree.A("w:ascii", props.Font), tree.A("w:hAnsi", props.Font)))
	}
	if props.Bold {
		rPr.Add(tree.E("w:b"))
	}
	if props.Italic {
		rPr.Add(tree.E("w:i"))
	}
	if props.Color != "" {
		rPr.Add(tree.Val("w:color", strings.TrimPrefix(props.Color, "#")))
	}
	if props.Size > 0 {
		rPr.Add(tree.Val("w:sz", strconv.Itoa(props.Size)))
	}
	if props.Underline {
		rPr.Add(tree.Val("w:u", "single"))
	}
	if len(rPr.Children) > 0 {
		style.Add(rPr)
	}

	root := c.styles.Root()
	el, err := tree.NewBuilder(nil).WithScope(scopeOf(root)...).Build(style)
	if err != nil {
		return "", err
	}
	root.AddChild(el)
	c.sessionStyles[name] = id
	c.sessionIDs[id] = true
	c.log.Debug("style created", zap.String("name", name), zap.String("id", id), zap.String("type", kind))
	return id, nil
}

// uniqueStyleID derives a style id from a display name the way Word does,
// "my code block" -> "MyCodeBlock", and makes it unique.
func (c *Composer) uniqueStyleID(name string) string {
	title := cases.Title(language.English)
	var b strings.Builder
	for _, part := range strings.Split(slug.Make(name), "-") {
		b.WriteString(title.String(part))
	}
	base := b.String()
	if base == "" {
		base = "Style"
	}

	id := base
	for n := 2; c.tmpl.HasStyleID(id) || c.sessionIDs[id]; n++ {
		id = base + strconv.Itoa(n)
	}
	return id
}
