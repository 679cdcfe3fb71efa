package docxcompose

import (
	"errors"
	"fmt"
)

// ListKind distinguishes bullet from enumerated lists.
type ListKind int

const (
	BulletList ListKind = iota
	EnumeratedList
)

func (k ListKind) String() string {
	switch k {
	case BulletList:
		return "bullet"
	case EnumeratedList:
		return "enumerated"
	default:
		return "unknown"
	}
}

const (
	listIndentStep    = 720
	listIndentHanging = 360
)

// EnumeratedOptions describe a numbered list.
type EnumeratedOptions struct {
	// Start is the first number; 0 means 1.
	Start int
	// Format is one of arabic, loweralpha, upperalpha, lowerroman,
	// upperroman. Anything else numbers with arabic digits.
	Format string
	Prefix string
	Suffix string
	// Style is the paragraph style name of the items; "" picks the
	// template's "List Number" style when present.
	Style string
	// Continue resumes an enumerated list interrupted by other content,
	// e.g. a nested list: items keep counting under the same numbering.
	Continue *List
}

// List is a handle for emitting the items of one list node.
type List struct {
	c      *Composer
	kind   ListKind
	depth  int
	style  string
	numID  int
	ilvl   int
	indent int
	start  int
	items  int
}

// Kind returns the list kind.
func (l *List) Kind() ListKind { return l.kind }

// NumID returns the concrete numbering id the items reference.
func (l *List) NumID() int { return l.numID }

// Start returns the number of the list's first item.
func (l *List) Start() int { return l.start }

// Items returns how many items were emitted through this handle.
func (l *List) Items() int { return l.items }

// NewBulletList starts a bullet list at the given nesting depth. Bullets use
// the template's bullet numbering, indented per the levels it declares;
// depths past the deepest declared level reuse that level.
func (c *Composer) NewBulletList(depth int) (*List, error) {
	if c.closed {
		return nil, ErrComposerClosed
	}
	if depth < 0 {
		return nil, fmt.Errorf("invalid list depth %d", depth)
	}
	l := &List{c: c, kind: BulletList, depth: depth, start: 1}
	if _, ok := c.optionalStyleID("List Bullet"); ok {
		l.style = "List Bullet"
	} else if _, ok := c.optionalStyleID("List Paragraph"); ok {
		l.style = "List Paragraph"
	}

	if numID, ok := c.tmpl.BulletNumID(); ok {
		levels := c.tmpl.numberingLeftFor(numID)
		l.numID = numID
		l.ilvl = min(depth, len(levels)-1)
		return l, nil
	}

	if c.bulletNumID == 0 {
		id := c.numbering.NextListID()
		if err := c.numbering.DefineBullet(id); err != nil {
			return nil, err
		}
		c.bulletNumID = id
	}
	l.numID = c.bulletNumID
	l.indent = listIndentStep * (depth + 1)
	return l, nil
}

// NewEnumeratedList starts a numbered list at the given nesting depth.
// Every new list gets its own numbering id so independent lists restart
// and may mix formats; a list created with Continue shares the id of the
// list it resumes.
func (c *Composer) NewEnumeratedList(depth int, opts EnumeratedOptions) (*List, error) {
	if c.closed {
		return nil, ErrComposerClosed
	}
	if depth < 0 {
		return nil, fmt.Errorf("invalid list depth %d", depth)
	}
	l := &List{
		c:      c,
		kind:   EnumeratedList,
		depth:  depth,
		indent: listIndentStep * (depth + 1),
	}

	switch {
	case opts.Style != "":
		if _, err := c.styleID(opts.Style); err != nil {
			return nil, err
		}
		l.style = opts.Style
	default:
		if _, ok := c.optionalStyleID("List Number"); ok {
			l.style = "List Number"
		} else if _, ok := c.optionalStyleID("List Paragraph"); ok {
			l.style = "List Paragraph"
		}
	}

	if prev := opts.Continue; prev != nil {
		if prev.c != c {
			return nil, errNotOwned
		}
		if prev.kind != EnumeratedList {
			return nil, errors.New("only enumerated lists can be continued")
		}
		l.numID = prev.numID
		l.start = c.numbering.NextValue(prev.numID)
		return l, nil
	}

	l.start = opts.Start
	if l.start <= 0 {
		l.start = 1
	}
	l.numID = c.numbering.NextListID()
	if err := c.numbering.DefineEnumerated(l.numID, l.start, opts.Prefix+"%1"+opts.Suffix, opts.Format); err != nil {
		return nil, err
	}
	return l, nil
}

// ListItem appends one item of l.
func (c *Composer) ListItem(l *List, runs ...Run) error {
	if l == nil {
		return errors.New("nil list")
	}
	if l.c != c {
		return errNotOwned
	}
	opts := ParagraphOptions{
		Style: l.style,
		numbering: &numberingRef{
			numID:   l.numID,
			ilvl:    l.ilvl,
			indent:  l.indent,
			hanging: listIndentHanging,
		},
	}
	if err := c.AddParagraph(opts, runs...); err != nil {
		return err
	}
	c.numbering.MarkItem(l.numID)
	l.items++
	return nil
}
