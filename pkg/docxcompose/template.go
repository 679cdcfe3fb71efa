package docxcompose

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/cases"
)

const (
	// defaultCellMargin is Word's default left/right table cell margin in twips.
	defaultCellMargin = 108
	// cellMarginAllowance covers borders and rounding when sizing columns.
	cellMarginAllowance = 40
)

// StyleInfo describes one style declared by the template.
type StyleInfo struct {
	ID      string
	Name    string
	Type    string
	Aliases []string
	Default bool
}

// PageGeometry is the page setup of the template's final section, in twips.
type PageGeometry struct {
	Width, Height int
	Orientation   string
	Top, Right    int
	Bottom, Left  int
	Header        int
	Footer        int
	Gutter        int
}

// Size is a width and height in twips.
type Size struct {
	Width  int
	Height int
}

// StyleTemplate is a read-only snapshot of a .docx used as the style and
// layout source of a composition. It is safe to share between composers.
type StyleTemplate struct {
	name string
	pkg  *docxPackage

	document     *etree.Document
	styles       *etree.Document
	numbering    *etree.Document
	footnotes    *etree.Document
	settings     *etree.Document
	contentTypes *etree.Document
	packageRels  []Relationship
	documentRels []Relationship

	styleList []StyleInfo
	byID      map[string]int
	byName    map[string]string
	byAlias   map[string]string
	byFolded  map[string]string

	defaultParagraph string
	defaultCharacter string

	sectPr   *etree.Element
	geometry PageGeometry

	nums          map[int]int
	abstracts     map[int]*etree.Element
	maxNumID      int
	maxAbstractID int

	special       []*etree.Element
	maxFootnoteID int

	mediaCount int
	coverPage  *etree.Element
}

// LoadTemplateFile reads and indexes the template at path.
func LoadTemplateFile(path string) (*StyleTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewTemplateError(path, err)
	}
	return LoadTemplate(path, data)
}

// LoadTemplate indexes a template held in memory. name is used in errors
// and logs only.
func LoadTemplate(name string, data []byte) (*StyleTemplate, error) {
	pkg, err := openPackage(data)
	if err != nil {
		return nil, NewTemplateError(name, err)
	}

	t := &StyleTemplate{name: name, pkg: pkg}

	if t.contentTypes, err = packagingXML(pkg, partContentTypes); err != nil {
		return nil, err
	}
	relsDoc, err := packagingXML(pkg, partDocumentRels)
	if err != nil {
		return nil, err
	}
	if t.documentRels, err = parseRelationships(relsDoc); err != nil {
		return nil, &PackagingError{Part: partDocumentRels, Cause: err}
	}
	if pkg.Has(partPackageRels) {
		doc, err := packagingXML(pkg, partPackageRels)
		if err != nil {
			return nil, err
		}
		if t.packageRels, err = parseRelationships(doc); err != nil {
			return nil, &PackagingError{Part: partPackageRels, Cause: err}
		}
	}

	if t.document, err = requiredXML(pkg, partDocument); err != nil {
		return nil, err
	}
	if t.styles, err = requiredXML(pkg, partStyles); err != nil {
		return nil, err
	}
	if t.numbering, err = requiredXML(pkg, partNumbering); err != nil {
		return nil, err
	}
	if pkg.Has(partFootnotes) {
		if t.footnotes, err = requiredXML(pkg, partFootnotes); err != nil {
			return nil, err
		}
	}
	if pkg.Has(partSettings) {
		if t.settings, err = requiredXML(pkg, partSettings); err != nil {
			return nil, err
		}
	}

	if err := t.indexStyles(); err != nil {
		return nil, NewTemplateError(partStyles, err)
	}
	if err := t.indexBody(); err != nil {
		return nil, NewTemplateError(partDocument, err)
	}
	if err := t.indexNumbering(); err != nil {
		return nil, NewTemplateError(partNumbering, err)
	}
	if err := t.indexFootnotes(); err != nil {
		return nil, NewTemplateError(partFootnotes, err)
	}

	for _, n := range pkg.order {
		if strings.HasPrefix(n, mediaDir) {
			t.mediaCount++
		}
	}
	return t, nil
}

func requiredXML(pkg *docxPackage, part string) (*etree.Document, error) {
	if !pkg.Has(part) {
		return nil, NewTemplateError(part, errors.New("required part is missing"))
	}
	doc, err := pkg.XML(part)
	if err != nil {
		return nil, NewTemplateError(part, err)
	}
	return doc, nil
}

func packagingXML(pkg *docxPackage, part string) (*etree.Document, error) {
	if !pkg.Has(part) {
		return nil, &PackagingError{Part: part, Cause: errors.New("required part is missing")}
	}
	doc, err := pkg.XML(part)
	if err != nil {
		return nil, &PackagingError{Part: part, Cause: err}
	}
	return doc, nil
}

func (t *StyleTemplate) indexStyles() error {
	root := t.styles.Root()
	if root.Space != "w" || root.Tag != "styles" {
		return fmt.Errorf("unexpected root element %s", root.FullTag())
	}

	t.byID = make(map[string]int)
	t.byName = make(map[string]string)
	t.byAlias = make(map[string]string)
	t.byFolded = make(map[string]string)

	fold := cases.Fold()
	for _, el := range root.SelectElements("w:style") {
		info := StyleInfo{
			ID:      el.SelectAttrValue("w:styleId", ""),
			Type:    el.SelectAttrValue("w:type", "paragraph"),
			Default: onOff(el.SelectAttrValue("w:default", "")),
		}
		if info.ID == "" {
			continue
		}
		if n := el.SelectElement("w:name"); n != nil {
			info.Name = n.SelectAttrValue("w:val", "")
		}
		if a := el.SelectElement("w:aliases"); a != nil {
			for _, alias := range strings.Split(a.SelectAttrValue("w:val", ""), ",") {
				if alias = strings.TrimSpace(alias); alias != "" {
					info.Aliases = append(info.Aliases, alias)
				}
			}
		}

		t.byID[info.ID] = len(t.styleList)
		t.styleList = append(t.styleList, info)

		if info.Name != "" {
			if _, dup := t.byName[info.Name]; !dup {
				t.byName[info.Name] = info.ID
			}
			if k := fold.String(info.Name); t.byFolded[k] == "" {
				t.byFolded[k] = info.ID
			}
		}
		for _, alias := range info.Aliases {
			if _, dup := t.byAlias[alias]; !dup {
				t.byAlias[alias] = info.ID
			}
			if k := fold.String(alias); t.byFolded[k] == "" {
				t.byFolded[k] = info.ID
			}
		}

		if info.Default {
			switch info.Type {
			case "paragraph":
				t.defaultParagraph = info.ID
			case "character":
				t.defaultCharacter = info.ID
			}
		}
	}
	return nil
}

func (t *StyleTemplate) indexBody() error {
	body := t.document.Root().SelectElement("w:body")
	if body == nil {
		return errors.New("missing w:body")
	}

	children := body.ChildElements()
	if len(children) == 0 || children[len(children)-1].FullTag() != "w:sectPr" {
		return errors.New("missing final w:sectPr")
	}
	t.sectPr = children[len(children)-1].Copy()

	pgSz := t.sectPr.SelectElement("w:pgSz")
	if pgSz == nil {
		return errors.New("final section has no w:pgSz")
	}
	pgMar := t.sectPr.SelectElement("w:pgMar")
	if pgMar == nil {
		return errors.New("final section has no w:pgMar")
	}

	var err error
	g := &t.geometry
	if g.Width, err = twipsAttr(pgSz, "w:w", true); err != nil {
		return err
	}
	if g.Height, err = twipsAttr(pgSz, "w:h", true); err != nil {
		return err
	}
	g.Orientation = pgSz.SelectAttrValue("w:orient", "portrait")
	for _, m := range []struct {
		attr string
		dst  *int
	}{
		{"w:top", &g.Top}, {"w:right", &g.Right}, {"w:bottom", &g.Bottom}, {"w:left", &g.Left},
		{"w:header", &g.Header}, {"w:footer", &g.Footer}, {"w:gutter", &g.Gutter},
	} {
		if *m.dst, err = twipsAttr(pgMar, m.attr, false); err != nil {
			return err
		}
	}

	for _, el := range children {
		if el.FullTag() == "w:sdt" && docPartGallery(el) == "Cover Pages" {
			t.coverPage = el.Copy()
			break
		}
	}
	return nil
}

func (t *StyleTemplate) indexNumbering() error {
	root := t.numbering.Root()
	if root.Space != "w" || root.Tag != "numbering" {
		return fmt.Errorf("unexpected root element %s", root.FullTag())
	}

	t.nums = make(map[int]int)
	t.abstracts = make(map[int]*etree.Element)
	for _, el := range root.SelectElements("w:abstractNum") {
		id, err := intAttr(el, "w:abstractNumId")
		if err != nil {
			return err
		}
		t.abstracts[id] = el
		if id > t.maxAbstractID {
			t.maxAbstractID = id
		}
	}
	for _, el := range root.SelectElements("w:num") {
		id, err := intAttr(el, "w:numId")
		if err != nil {
			return err
		}
		ref := el.SelectElement("w:abstractNumId")
		if ref == nil {
			return fmt.Errorf("num %d has no w:abstractNumId", id)
		}
		abs, err := intAttr(ref, "w:val")
		if err != nil {
			return err
		}
		t.nums[id] = abs
		if id > t.maxNumID {
			t.maxNumID = id
		}
	}
	return nil
}

func (t *StyleTemplate) indexFootnotes() error {
	if t.footnotes == nil {
		return nil
	}
	for _, el := range t.footnotes.Root().SelectElements("w:footnote") {
		id, err := intAttr(el, "w:id")
		if err != nil {
			return err
		}
		if id > t.maxFootnoteID {
			t.maxFootnoteID = id
		}
		if typ := el.SelectAttr("w:type"); typ != nil && typ.Value != "normal" {
			t.special = append(t.special, el)
		}
	}
	return nil
}

// Name returns the name the template was loaded under.
func (t *StyleTemplate) Name() string { return t.name }

// Parts returns the package entry names in archive order.
func (t *StyleTemplate) Parts() []string { return t.pkg.Names() }

// Extract unpacks every template entry below dir. The caller owns dir and
// must remove it on failure as well.
func (t *StyleTemplate) Extract(dir string) error {
	if err := t.pkg.Extract(dir); err != nil {
		return NewTemplateError(t.name, err)
	}
	return nil
}

// Styles lists the declared styles in document order.
func (t *StyleTemplate) Styles() []StyleInfo {
	out := make([]StyleInfo, len(t.styleList))
	copy(out, t.styleList)
	return out
}

// ResolveStyleID maps a style name to its id. Aliases are consulted first,
// then declared names, then a case-insensitive match of either, so
// "Heading 1" finds Word's built-in "heading 1".
func (t *StyleTemplate) ResolveStyleID(name string) (string, error) {
	if id, ok := t.byAlias[name]; ok {
		return id, nil
	}
	if id, ok := t.byName[name]; ok {
		return id, nil
	}
	if id, ok := t.byFolded[cases.Fold().String(name)]; ok {
		return id, nil
	}
	return "", &StyleNotFoundError{Name: name}
}

// HasStyleID reports whether a style with the given id is declared.
func (t *StyleTemplate) HasStyleID(id string) bool {
	_, ok := t.byID[id]
	return ok
}

// DefaultParagraphStyle returns the id of the default paragraph style, or
// "" when the template declares none.
func (t *StyleTemplate) DefaultParagraphStyle() string { return t.defaultParagraph }

// DefaultCharacterStyle returns the id of the default character style.
func (t *StyleTemplate) DefaultCharacterStyle() string { return t.defaultCharacter }

// Geometry returns the page setup of the final section.
func (t *StyleTemplate) Geometry() PageGeometry { return t.geometry }

// PaperSize returns the page size in twips.
func (t *StyleTemplate) PaperSize() Size {
	return Size{Width: t.geometry.Width, Height: t.geometry.Height}
}

// ContentAreaSize returns the page size minus margins, in twips.
func (t *StyleTemplate) ContentAreaSize() Size {
	g := t.geometry
	return Size{
		Width:  g.Width - g.Left - g.Right - g.Gutter,
		Height: g.Height - g.Top - g.Bottom,
	}
}

// NumberingLeft returns the left indentation of every level declared by
// the numbering attached to the named paragraph style. Styles without
// numbering yield [0].
func (t *StyleTemplate) NumberingLeft(styleName string) []int {
	numID, ok := t.StyleNumID(styleName)
	if !ok {
		return []int{0}
	}
	return t.numberingLeftFor(numID)
}

func (t *StyleTemplate) numberingLeftFor(numID int) []int {
	abs := t.abstracts[t.nums[numID]]
	if abs == nil {
		return []int{0}
	}

	type level struct{ ilvl, left int }
	var levels []level
	for _, lvl := range abs.SelectElements("w:lvl") {
		ind := lvl.FindElement("w:pPr/w:ind")
		if ind == nil {
			continue
		}
		raw := ind.SelectAttrValue("w:left", ind.SelectAttrValue("w:start", ""))
		left, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		ilvl, _ := strconv.Atoi(lvl.SelectAttrValue("w:ilvl", "0"))
		levels = append(levels, level{ilvl, left})
	}
	if len(levels) == 0 {
		return []int{0}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ilvl < levels[j].ilvl })
	out := make([]int, len(levels))
	for i, l := range levels {
		out[i] = l.left
	}
	return out
}

// StyleNumID returns the concrete numbering id a paragraph style carries.
func (t *StyleTemplate) StyleNumID(styleName string) (int, bool) {
	id, err := t.ResolveStyleID(styleName)
	if err != nil {
		return 0, false
	}
	el := t.styleElement(id)
	if el == nil {
		return 0, false
	}
	numID := el.FindElement("w:pPr/w:numPr/w:numId")
	if numID == nil {
		return 0, false
	}
	n, err := intAttr(numID, "w:val")
	if err != nil {
		return 0, false
	}
	if _, ok := t.nums[n]; !ok {
		return 0, false
	}
	return n, true
}

// BulletNumID returns the template's bullet numbering: the one attached to
// the "List Bullet" style, else the first num whose first level is a bullet.
func (t *StyleTemplate) BulletNumID() (int, bool) {
	if id, ok := t.StyleNumID("List Bullet"); ok {
		return id, true
	}
	ids := make([]int, 0, len(t.nums))
	for id := range t.nums {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		abs := t.abstracts[t.nums[id]]
		if abs == nil {
			continue
		}
		for _, lvl := range abs.SelectElements("w:lvl") {
			if lvl.SelectAttrValue("w:ilvl", "0") != "0" {
				continue
			}
			if f := lvl.SelectElement("w:numFmt"); f != nil && f.SelectAttrValue("w:val", "") == "bullet" {
				return id, true
			}
		}
	}
	return 0, false
}

// TableCellMargin returns the left plus right cell margin of a table style
// plus a fixed allowance, in twips. Undeclared styles or margins fall back
// to Word's default margins.
func (t *StyleTemplate) TableCellMargin(styleName string) int {
	fallback := 2*defaultCellMargin + cellMarginAllowance
	if styleName == "" {
		return fallback
	}
	id, err := t.ResolveStyleID(styleName)
	if err != nil {
		return fallback
	}
	el := t.styleElement(id)
	if el == nil {
		return fallback
	}
	mar := el.FindElement("w:tblPr/w:tblCellMar")
	if mar == nil {
		return fallback
	}
	left, lok := marginWidth(mar, "w:left", "w:start")
	right, rok := marginWidth(mar, "w:right", "w:end")
	if !lok && !rok {
		return fallback
	}
	if !lok {
		left = defaultCellMargin
	}
	if !rok {
		right = defaultCellMargin
	}
	return left + right + cellMarginAllowance
}

// SpecialFootnotes returns copies of the footnotes whose type is present
// and not "normal" (separators and continuation notices).
func (t *StyleTemplate) SpecialFootnotes() []*etree.Element {
	out := make([]*etree.Element, len(t.special))
	for i, el := range t.special {
		out[i] = el.Copy()
	}
	return out
}

// MaxFootnoteID returns the largest footnote id in the template, or 0.
func (t *StyleTemplate) MaxFootnoteID() int { return t.maxFootnoteID }

// NumIDs returns the concrete numbering ids declared by the template.
func (t *StyleTemplate) NumIDs() []int {
	ids := make([]int, 0, len(t.nums))
	for id := range t.nums {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MaxNumID returns the largest concrete numbering id, or 0.
func (t *StyleTemplate) MaxNumID() int { return t.maxNumID }

// MediaCount returns the number of entries below word/media/.
func (t *StyleTemplate) MediaCount() int { return t.mediaCount }

// HasCoverPage reports whether the body starts with a cover page block.
func (t *StyleTemplate) HasCoverPage() bool { return t.coverPage != nil }

func (t *StyleTemplate) styleElement(id string) *etree.Element {
	for _, el := range t.styles.Root().SelectElements("w:style") {
		if el.SelectAttrValue("w:styleId", "") == id {
			return el
		}
	}
	return nil
}

func marginWidth(mar *etree.Element, tags ...string) (int, bool) {
	for _, tag := range tags {
		el := mar.SelectElement(tag)
		if el == nil {
			continue
		}
		if el.SelectAttrValue("w:type", "dxa") != "dxa" {
			continue
		}
		if w, err := strconv.Atoi(el.SelectAttrValue("w:w", "")); err == nil {
			return w, true
		}
	}
	return 0, false
}

func docPartGallery(sdt *etree.Element) string {
	g := sdt.FindElement("w:sdtPr/w:docPartObj/w:docPartGallery")
	if g == nil {
		return ""
	}
	return g.SelectAttrValue("w:val", "")
}

func intAttr(el *etree.Element, key string) (int, error) {
	raw := el.SelectAttrValue(key, "")
	if raw == "" {
		return 0, fmt.Errorf("%s: missing %s", el.FullTag(), key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid %s %q", el.FullTag(), key, raw)
	}
	return n, nil
}

func twipsAttr(el *etree.Element, key string, required bool) (int, error) {
	if el.SelectAttr(key) == nil && !required {
		return 0, nil
	}
	return intAttr(el, key)
}

func onOff(v string) bool {
	switch v {
	case "1", "true", "on":
		return true
	}
	return false
}
