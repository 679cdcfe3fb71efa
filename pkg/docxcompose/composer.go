package docxcompose

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// partContext is what content emitted into one part needs: a builder that
// knows the part's declared prefixes and the part's relationships.
type partContext struct {
	name    string
	builder *tree.Builder
	rels    *RelationshipRegistry
	seeded  int
}

// Body is an insertion point: a block container (the document body, a
// table cell, a footnote) that content operations append to. Use
// Composer.SetBody to redirect the composer's cursor into it.
type Body struct {
	el   *etree.Element
	part *partContext
}

// Composer assembles one .docx from a style template and a stream of
// content operations. It is not safe for concurrent use; build documents
// in parallel with separate composers.
type Composer struct {
	tmpl   *StyleTemplate
	log    *zap.Logger
	cfg    Config
	now    func() time.Time
	closed bool

	scratch string

	document *etree.Document
	styles   *etree.Document
	main     *Body
	cursor   *Body
	docPart  *partContext
	fnPart   *partContext

	numbering *NumberingAllocator
	footnotes *FootnoteRegistry
	media     *MediaManager
	pkgRels   *RelationshipRegistry

	sessionStyles map[string]string
	sessionIDs    map[string]bool

	bulletNumID   int
	bookmarkID    int
	bookmarkNames map[string]bool
	drawingID     int
	sequences     map[string]int
	tocUsed       bool
	section       sectionState

	props Properties
}

// NewComposer opens the template at path and starts a composition session.
func NewComposer(path string, opts ...Option) (*Composer, error) {
	return DefaultEngine.NewComposer(path, opts...)
}

// NewComposerFromTemplate starts a session on an already loaded template.
// The scratch directory is created here and removed by Save or Close.
func NewComposerFromTemplate(tmpl *StyleTemplate, opts ...Option) (*Composer, error) {
	o := newComposerOptions(DefaultConfig())
	for _, opt := range opts {
		opt(o)
	}
	return newComposer(tmpl, o)
}

func newComposer(tmpl *StyleTemplate, o *composerOptions) (*Composer, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := o.logger
	if log == nil {
		log = loggerFromConfig(&o.cfg)
	}
	log = log.With(zap.String("template", tmpl.Name()))

	scratch, err := os.MkdirTemp(o.cfg.ScratchDir, "docxcompose-*")
	if err != nil {
		return nil, NewDocumentError("create scratch directory", o.cfg.ScratchDir, err)
	}
	c := &Composer{
		tmpl:          tmpl,
		log:           log,
		cfg:           o.cfg,
		now:           time.Now,
		scratch:       scratch,
		sessionStyles: make(map[string]string),
		sessionIDs:    make(map[string]bool),
		bookmarkNames: make(map[string]bool),
		sequences:     make(map[string]int),
		section:       sectionState{landscape: tmpl.landscape()},
	}
	if err := c.init(); err != nil {
		c.release()
		return nil, err
	}
	log.Info("template loaded",
		zap.String("scratch", scratch),
		zap.Int("styles", len(tmpl.styleList)),
		zap.Int("maxNumId", tmpl.MaxNumID()),
		zap.Int("media", tmpl.MediaCount()))
	return c, nil
}

func (c *Composer) init() error {
	t := c.tmpl
	if err := t.Extract(c.scratch); err != nil {
		return err
	}

	c.document = t.document.Copy()
	c.styles = t.styles.Copy()

	body := c.document.Root().SelectElement("w:body")
	for _, tok := range append([]etree.Token(nil), body.Child...) {
		body.RemoveChild(tok)
	}

	c.docPart = &partContext{
		name:    partDocument,
		builder: tree.NewBuilder(nil).WithScope(scopeOf(c.document.Root())...),
		rels:    NewRelationshipRegistry(t.documentRels, c.log),
		seeded:  len(t.documentRels),
	}
	c.main = &Body{el: body, part: c.docPart}
	c.cursor = c.main

	fnScope := footnoteScope
	if t.footnotes != nil {
		fnScope = scopeOf(t.footnotes.Root())
	}
	fnRels, err := c.partRelationships(relsPartFor(partFootnotes))
	if err != nil {
		return err
	}
	c.fnPart = &partContext{
		name:    partFootnotes,
		builder: tree.NewBuilder(nil).WithScope(fnScope...),
		rels:    NewRelationshipRegistry(fnRels, c.log),
		seeded:  len(fnRels),
	}

	c.pkgRels = NewRelationshipRegistry(t.packageRels, c.log)
	c.numbering = NewNumberingAllocator(t.nums, t.maxAbstractID, c.log)
	c.footnotes = NewFootnoteRegistry(t.SpecialFootnotes(), t.MaxFootnoteID(), c.log)
	c.media = NewMediaManager(c.scratch, t.Parts(), c.log)
	c.reserveCoverPageIDs()
	return nil
}

// reserveCoverPageIDs moves the bookmark and drawing counters past the ids
// the cover page brings into the body.
func (c *Composer) reserveCoverPageIDs() {
	cover := c.tmpl.coverPage
	if cover == nil || c.cfg.SkipCoverPage {
		return
	}
	for _, el := range cover.FindElements(".//w:bookmarkStart") {
		if id, err := strconv.Atoi(el.SelectAttrValue("w:id", "")); err == nil && id >= c.bookmarkID {
			c.bookmarkID = id + 1
		}
		if name := el.SelectAttrValue("w:name", ""); name != "" {
			c.bookmarkNames[name] = true
		}
	}
	for _, el := range cover.FindElements(".//wp:docPr") {
		if id, err := strconv.Atoi(el.SelectAttrValue("id", "")); err == nil && id > c.drawingID {
			c.drawingID = id
		}
	}
}

// partRelationships reads the relationships of a part from the template,
// or none when the part has no .rels.
func (c *Composer) partRelationships(relsPart string) ([]Relationship, error) {
	if !c.tmpl.pkg.Has(relsPart) {
		return nil, nil
	}
	doc, err := packagingXML(c.tmpl.pkg, relsPart)
	if err != nil {
		return nil, err
	}
	rels, err := parseRelationships(doc)
	if err != nil {
		return nil, &PackagingError{Part: relsPart, Cause: err}
	}
	return rels, nil
}

// Template returns the style template of the session.
func (c *Composer) Template() *StyleTemplate { return c.tmpl }

// MainBody returns the document body.
func (c *Composer) MainBody() *Body { return c.main }

// CurrentBody returns where content is currently appended.
func (c *Composer) CurrentBody() *Body { return c.cursor }

// SetBody redirects subsequent content into b and returns the previous
// insertion point so the caller can restore it. A nil b restores the
// document body.
func (c *Composer) SetBody(b *Body) *Body {
	prev := c.cursor
	if b == nil {
		b = c.main
	}
	c.cursor = b
	return prev
}

// appendBlock builds e for the current part and appends it at the cursor.
func (c *Composer) appendBlock(e *tree.Element) (*etree.Element, error) {
	if c.closed {
		return nil, ErrComposerClosed
	}
	el, err := c.cursor.part.builder.Build(e)
	if err != nil {
		return nil, err
	}
	c.cursor.el.AddChild(el)
	return el, nil
}

// Close ends the session without writing anything and removes the scratch
// directory. It is safe to call more than once.
func (c *Composer) Close() error {
	if c.closed {
		return nil
	}
	return c.release()
}

func (c *Composer) release() error {
	c.closed = true
	if c.scratch == "" {
		return nil
	}
	err := os.RemoveAll(c.scratch)
	if err != nil {
		c.log.Warn("failed to remove scratch directory", zap.String("dir", c.scratch), zap.Error(err))
	}
	c.scratch = ""
	return err
}

// Save writes the composed package to path and ends the session. The
// scratch directory is removed whatever the outcome; on failure no file is
// left at path.
func (c *Composer) Save(path string) error {
	if c.closed {
		return ErrComposerClosed
	}
	defer c.release()

	entries, err := c.render()
	if err != nil {
		return err
	}
	if err := c.writePackage(path, entries); err != nil {
		return err
	}
	c.log.Info("package saved", zap.String("path", path), zap.Int("parts", len(entries)))
	return nil
}

// packageEntry is one file of the output archive. Entries with nil data are
// copied from the scratch directory.
type packageEntry struct {
	name string
	data []byte
}

// render produces every output entry in archive order.
func (c *Composer) render() ([]packageEntry, error) {
	rebuilt := make(map[string][]byte)
	var created []string
	overrides := make(map[string]string)

	put := func(name string, doc *etree.Document) error {
		data, err := serializeXML(doc)
		if err != nil {
			return &PackagingError{Part: name, Cause: err}
		}
		if _, ok := rebuilt[name]; !ok && !c.tmpl.pkg.Has(name) {
			created = append(created, name)
		}
		rebuilt[name] = data
		return nil
	}

	// document properties
	if err := c.renderProperties(put, overrides); err != nil {
		return nil, err
	}

	// numbering
	numbering, err := c.numbering.Merge(c.tmpl.numbering)
	if err != nil {
		return nil, WithContext(err, "merge numbering", map[string]interface{}{"part": partNumbering})
	}
	if err := put(partNumbering, numbering); err != nil {
		return nil, err
	}

	// body: cover page, empty cells, final section properties
	body := c.main.el
	if !c.cfg.SkipCoverPage && c.tmpl.coverPage != nil {
		body.InsertChildAt(0, c.tmpl.coverPage.Copy())
	}
	if err := fillEmptyCells(body, c.docPart.builder); err != nil {
		return nil, &PackagingError{Part: partDocument, Cause: err}
	}
	body.AddChild(c.sectionProperties(c.section))
	if err := put(partDocument, c.document); err != nil {
		return nil, err
	}

	// footnotes
	if c.footnotes.Len() > 0 || c.tmpl.footnotes != nil {
		if missing := c.footnotes.Undefined(); len(missing) > 0 {
			return nil, &PackagingError{Part: partFootnotes, Cause: fmt.Errorf("footnotes referenced but never defined: %v", missing)}
		}
		if err := c.addFootnoteMarks(); err != nil {
			return nil, &PackagingError{Part: partFootnotes, Cause: err}
		}
		doc, err := c.footnotes.Document(c.tmpl.footnotes)
		if err != nil {
			return nil, &PackagingError{Part: partFootnotes, Cause: err}
		}
		if err := put(partFootnotes, doc); err != nil {
			return nil, err
		}
		if c.tmpl.footnotes == nil {
			if _, err := c.docPart.rels.Register("footnotes.xml", RelTypeFootnotes, false); err != nil {
				return nil, &PackagingError{Part: partDocumentRels, Cause: err}
			}
			overrides["/"+partFootnotes] = contentTypeFootnotes
		}
		if c.fnPart.rels.Len() > c.fnPart.seeded {
			doc, err := c.fnPart.rels.Document()
			if err != nil {
				return nil, &PackagingError{Part: relsPartFor(partFootnotes), Cause: err}
			}
			if err := put(relsPartFor(partFootnotes), doc); err != nil {
				return nil, err
			}
		}
	}

	// styles and settings
	if err := put(partStyles, c.styles); err != nil {
		return nil, err
	}
	if c.tocUsed && c.tmpl.settings != nil {
		settings, err := enableUpdateFields(c.tmpl.settings)
		if err != nil {
			return nil, &PackagingError{Part: partSettings, Cause: err}
		}
		if err := put(partSettings, settings); err != nil {
			return nil, err
		}
	}

	// relationships
	rels, err := c.docPart.rels.Document()
	if err != nil {
		return nil, &PackagingError{Part: partDocumentRels, Cause: err}
	}
	if err := put(partDocumentRels, rels); err != nil {
		return nil, err
	}
	if _, ok := c.pkgRels.ByType(RelTypeOfficeDoc); !ok {
		if _, err := c.pkgRels.Register(partDocument, RelTypeOfficeDoc, false); err != nil {
			return nil, &PackagingError{Part: partPackageRels, Cause: err}
		}
	}
	pkgRels, err := c.pkgRels.Document()
	if err != nil {
		return nil, &PackagingError{Part: partPackageRels, Cause: err}
	}
	if err := put(partPackageRels, pkgRels); err != nil {
		return nil, err
	}

	// assemble the entry list, manifest first
	var entries []packageEntry
	var names []string
	for _, name := range c.tmpl.Parts() {
		if name == partContentTypes {
			continue
		}
		entries = append(entries, packageEntry{name: name, data: rebuilt[name]})
		names = append(names, name)
	}
	for _, name := range created {
		entries = append(entries, packageEntry{name: name, data: rebuilt[name]})
		names = append(names, name)
	}
	for _, name := range c.media.Added() {
		entries = append(entries, packageEntry{name: name})
		names = append(names, name)
	}

	manifest, err := buildContentTypes(c.tmpl.contentTypes, names, overrides)
	if err != nil {
		return nil, err
	}
	data, err := serializeXML(manifest)
	if err != nil {
		return nil, &PackagingError{Part: partContentTypes, Cause: err}
	}
	return append([]packageEntry{{name: partContentTypes, data: data}}, entries...), nil
}

// writePackage writes entries to a temporary file next to path and renames
// it into place once complete.
func (c *Composer) writePackage(path string, entries []packageEntry) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".docxcompose-*.tmp")
	if err != nil {
		return NewDocumentError("save", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, e := range entries {
		if err = c.writeEntry(zw, e); err != nil {
			return NewDocumentError("save", path, WithContext(err, "write part", map[string]interface{}{"part": e.name}))
		}
	}
	if err = zw.Close(); err != nil {
		return NewDocumentError("save", path, err)
	}
	if err = tmp.Close(); err != nil {
		return NewDocumentError("save", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return NewDocumentError("save", path, err)
	}
	return nil
}

func (c *Composer) writeEntry(zw *zip.Writer, e packageEntry) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: c.now()})
	if err != nil {
		return err
	}
	if e.data != nil {
		_, err = w.Write(e.data)
		return err
	}

	src, err := scratchPath(c.scratch, e.name)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// fillEmptyCells gives every table cell below root a closing paragraph: a
// cell must contain at least one block and end with a paragraph.
func fillEmptyCells(root *etree.Element, b *tree.Builder) error {
	for _, tc := range root.FindElements(".//w:tc") {
		children := tc.ChildElements()
		if n := len(children); n > 0 && children[n-1].FullTag() == "w:p" {
			continue
		}
		p, err := b.Build(tree.E("w:p"))
		if err != nil {
			return err
		}
		tc.AddChild(p)
	}
	return nil
}

// addFootnoteMarks puts the footnote number in front of the first paragraph
// of every session footnote.
func (c *Composer) addFootnoteMarks() error {
	rPr := tree.E("w:rPr", tree.Val("w:vertAlign", "superscript"))
	if id, ok := c.optionalStyleID("footnote reference"); ok {
		rPr = tree.E("w:rPr", tree.Val("w:rStyle", id))
	}
	for _, note := range c.footnotes.notes {
		if err := fillEmptyCells(note, c.fnPart.builder); err != nil {
			return err
		}
		p := note.SelectElement("w:p")
		if p == nil {
			continue
		}
		marks, err := c.fnPart.builder.BuildAll(
			tree.E("w:r", rPr, tree.E("w:footnoteRef")),
			tree.E("w:r", tree.E("w:t", tree.A("xml:space", "preserve"), tree.T(" "))),
		)
		if err != nil {
			return err
		}
		at := 0
		if pPr := p.SelectElement("w:pPr"); pPr != nil {
			at = pPr.Index() + 1
		}
		for i, m := range marks {
			p.InsertChildAt(at+i, m)
		}
	}
	return nil
}

var errNotOwned = errors.New("handle belongs to another composer")
