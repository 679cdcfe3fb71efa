package docxcompose

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// FootnoteRegistry assigns footnote ids and collects footnote bodies. Ids
// continue after the largest id of the template and strictly increase.
type FootnoteRegistry struct {
	special []*etree.Element
	max     int
	keys    map[string]int
	order   []string
	notes   map[int]*etree.Element
	log     *zap.Logger
}

// NewFootnoteRegistry returns a registry preserving the template's special
// footnotes and allocating above maxExisting.
func NewFootnoteRegistry(special []*etree.Element, maxExisting int, log *zap.Logger) *FootnoteRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	if maxExisting < 0 {
		maxExisting = 0
	}
	return &FootnoteRegistry{
		special: special,
		max:     maxExisting,
		keys:    make(map[string]int),
		notes:   make(map[int]*etree.Element),
		log:     log,
	}
}

// Allocate returns the id of the footnote identified by key, assigning the
// next id on first use.
func (r *FootnoteRegistry) Allocate(key string) int {
	if id, ok := r.keys[key]; ok {
		return id
	}
	r.max++
	r.bind(key, r.max)
	return r.max
}

// AllocateID is Allocate with an explicit id for a new key. The id must be
// above every id handed out so far.
func (r *FootnoteRegistry) AllocateID(key string, requested int) (int, error) {
	if id, ok := r.keys[key]; ok {
		return id, nil
	}
	if requested <= r.max {
		return 0, fmt.Errorf("footnote id %d for %q is not above the current maximum %d", requested, key, r.max)
	}
	r.max = requested
	r.bind(key, requested)
	return requested, nil
}

func (r *FootnoteRegistry) bind(key string, id int) {
	r.keys[key] = id
	r.order = append(r.order, key)
	r.log.Debug("footnote allocated", zap.String("key", key), zap.Int("id", id))
}

// ID returns the id bound to key.
func (r *FootnoteRegistry) ID(key string) (int, bool) {
	id, ok := r.keys[key]
	return id, ok
}

// Append adds content to the body of footnote id.
func (r *FootnoteRegistry) Append(id int, content ...*etree.Element) {
	note := r.note(id)
	for _, el := range content {
		note.AddChild(el)
	}
}

// note returns the w:footnote element of id, creating it on first use.
func (r *FootnoteRegistry) note(id int) *etree.Element {
	if note, ok := r.notes[id]; ok {
		return note
	}
	note := etree.NewElement("w:footnote")
	note.CreateAttr("w:id", strconv.Itoa(id))
	r.notes[id] = note
	return note
}

// Len returns the number of footnotes allocated this session.
func (r *FootnoteRegistry) Len() int { return len(r.keys) }

// Undefined returns the keys that were referenced but never given a body.
func (r *FootnoteRegistry) Undefined() []string {
	var missing []string
	for _, key := range r.order {
		note, ok := r.notes[r.keys[key]]
		if !ok || len(note.ChildElements()) == 0 {
			missing = append(missing, key)
		}
	}
	return missing
}

// Document renders the footnotes part: the template's special footnotes
// first, then the session's in id order. base is the template part, or nil
// when the template has none, in which case the standard separators are
// synthesized.
func (r *FootnoteRegistry) Document(base *etree.Document) (*etree.Document, error) {
	var doc *etree.Document
	var root *etree.Element
	if base != nil {
		doc = base.Copy()
		root = doc.Root()
		for _, el := range root.SelectElements("w:footnote") {
			root.RemoveChild(el)
		}
		for _, el := range r.special {
			root.AddChild(el.Copy())
		}
	} else {
		root = newPartRoot("w:footnotes", footnoteScope...)
		doc = newXMLDocument(root)
		b := tree.NewBuilder(nil).WithScope(footnoteScope...)
		for i, typ := range []string{"separator", "continuationSeparator"} {
			el, err := b.Build(tree.E("w:footnote", tree.A("w:type", typ), tree.A("w:id", strconv.Itoa(i-1)),
				tree.E("w:p",
					tree.E("w:pPr", tree.E("w:spacing", tree.A("w:after", "0"), tree.A("w:line", "240"), tree.A("w:lineRule", "auto"))),
					tree.E("w:r", tree.E("w:"+typ)),
				),
			))
			if err != nil {
				return nil, err
			}
			root.AddChild(el)
		}
	}

	ids := make([]int, 0, len(r.notes))
	for id := range r.notes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		root.AddChild(r.notes[id].Copy())
	}
	return doc, nil
}

// footnoteScope is what a synthesized footnotes part declares on its root.
var footnoteScope = []string{"w", "r"}

// footnoteReference emits the in-text mark of footnote key, allocating its
// id on first use.
func (c *Composer) footnoteReference(key string) *tree.Element {
	id := c.footnotes.Allocate(key)
	rPr := tree.E("w:rPr", tree.Val("w:vertAlign", "superscript"))
	if style, ok := c.optionalStyleID("footnote reference"); ok {
		rPr = runProperties(style)
	}
	return tree.E("w:r", rPr, tree.E("w:footnoteReference", tree.A("w:id", strconv.Itoa(id))))
}

// FootnoteBody returns the body of footnote key, allocating its id on
// first use. Redirect the cursor into it with SetBody to add paragraphs,
// lists or tables to the note.
func (c *Composer) FootnoteBody(key string) (*Body, error) {
	if c.closed {
		return nil, ErrComposerClosed
	}
	if key == "" {
		return nil, errors.New("footnote key is empty")
	}
	id := c.footnotes.Allocate(key)
	return &Body{el: c.footnotes.note(id), part: c.fnPart}, nil
}

// Footnote sets the text of footnote key as one paragraph in the
// "footnote text" style (when the template has it).
func (c *Composer) Footnote(key string, runs ...Run) error {
	body, err := c.FootnoteBody(key)
	if err != nil {
		return err
	}
	prev := c.SetBody(body)
	defer c.SetBody(prev)

	style := ""
	if _, ok := c.optionalStyleID("footnote text"); ok {
		style = "footnote text"
	}
	return c.Paragraph(style, runs...)
}
