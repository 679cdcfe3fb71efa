package docxcompose

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// numberFormats maps enumeration keywords to w:numFmt values.
var numberFormats = map[string]string{
	"arabic":     "decimal",
	"loweralpha": "lowerLetter",
	"upperalpha": "upperLetter",
	"lowerroman": "lowerRoman",
	"upperroman": "upperRoman",
}

// NumberFormat maps an enumeration keyword to the OOXML number format.
// Unknown keywords yield "decimal".
func NumberFormat(keyword string) string {
	if f, ok := numberFormats[keyword]; ok {
		return f
	}
	return "decimal"
}

// enumDef identifies an abstract definition by what it renders.
type enumDef struct {
	start  int
	prefix string
	format string
	bullet bool
}

type sessionNum struct {
	abstractID  int
	placeholder bool
}

// NumberingAllocator owns the numbering definitions of one composition:
// the template's, plus the ones synthesized for lists, which always get ids
// above every id the template uses.
type NumberingAllocator struct {
	template    map[int]int
	templateMax int
	maxNumID    int
	maxAbstract int

	abstracts   map[int]enumDef
	abstractIDs []int
	nums        map[int]sessionNum
	reserved    map[int]bool
	placeholder int

	emitted map[int]int
	starts  map[int]int

	log *zap.Logger
}

// NewNumberingAllocator seeds an allocator with the template's concrete
// ids (numId -> abstractNumId) and its largest abstract id.
func NewNumberingAllocator(templateNums map[int]int, maxAbstractID int, log *zap.Logger) *NumberingAllocator {
	if log == nil {
		log = zap.NewNop()
	}
	a := &NumberingAllocator{
		template:    make(map[int]int, len(templateNums)),
		maxAbstract: maxAbstractID,
		abstracts:   make(map[int]enumDef),
		nums:        make(map[int]sessionNum),
		reserved:    make(map[int]bool),
		placeholder: -1,
		emitted:     make(map[int]int),
		starts:      make(map[int]int),
		log:         log,
	}
	for id, abs := range templateNums {
		a.template[id] = abs
		if id > a.maxNumID {
			a.maxNumID = id
		}
	}
	a.templateMax = a.maxNumID
	return a
}

// MaxID returns the largest concrete id known to the allocator.
func (a *NumberingAllocator) MaxID() int { return a.maxNumID }

// NextListID returns a fresh concrete id above every id seen so far.
func (a *NumberingAllocator) NextListID() int {
	a.maxNumID++
	a.reserved[a.maxNumID] = true
	a.log.Debug("list id allocated", zap.Int("numId", a.maxNumID))
	return a.maxNumID
}

// DefineEnumerated binds listID to a new single-level abstract definition.
// prefixTemplate is the level text, e.g. "(%1)". Redefining an id with the
// same parameters is a no-op; binding it to different ones, to an id a
// placeholder already uses, or to any id up to the template's largest, is a
// NumberingConflictError.
func (a *NumberingAllocator) DefineEnumerated(listID, start int, prefixTemplate, numberFormat string) error {
	return a.define(listID, enumDef{start: start, prefix: prefixTemplate, format: NumberFormat(numberFormat)})
}

// DefineBullet binds listID to a bullet definition. It is used when the
// template provides no bullet numbering of its own.
func (a *NumberingAllocator) DefineBullet(listID int) error {
	return a.define(listID, enumDef{start: 1, prefix: "•", format: "bullet", bullet: true})
}

func (a *NumberingAllocator) define(listID int, def enumDef) error {
	if listID <= 0 {
		return fmt.Errorf("invalid numbering id %d", listID)
	}
	if abs, ok := a.template[listID]; ok {
		return &NumberingConflictError{NumID: listID, Existing: abs, Requested: a.maxAbstract + 1}
	}
	if listID <= a.templateMax {
		return &NumberingConflictError{NumID: listID, Existing: -1, Requested: a.maxAbstract + 1}
	}
	if n, ok := a.nums[listID]; ok {
		if !n.placeholder && a.abstracts[n.abstractID] == def {
			return nil
		}
		return &NumberingConflictError{NumID: listID, Existing: n.abstractID, Requested: a.maxAbstract + 1}
	}

	if listID > a.maxNumID+1 {
		a.BridgeGap(listID)
	}

	absID := a.newAbstract(def)
	a.nums[listID] = sessionNum{abstractID: absID}
	a.starts[listID] = def.start
	delete(a.reserved, listID)
	if listID > a.maxNumID {
		a.maxNumID = listID
	}
	a.log.Debug("numbering defined",
		zap.Int("numId", listID), zap.Int("abstractNumId", absID),
		zap.String("format", def.format), zap.Int("start", def.start))
	return nil
}

// BridgeGap makes every id between the current maximum and targetID
// resolve, by binding each skipped id to a shared decimal placeholder
// definition. targetID itself is left for the caller to define.
func (a *NumberingAllocator) BridgeGap(targetID int) {
	if targetID <= a.maxNumID+1 {
		return
	}
	if a.placeholder < 0 {
		a.placeholder = a.newAbstract(enumDef{start: 1, prefix: "%1.", format: "decimal"})
	}
	for id := a.maxNumID + 1; id < targetID; id++ {
		a.nums[id] = sessionNum{abstractID: a.placeholder, placeholder: true}
	}
	a.log.Debug("numbering gap bridged",
		zap.Int("from", a.maxNumID+1), zap.Int("to", targetID-1))
	a.maxNumID = targetID - 1
}

func (a *NumberingAllocator) newAbstract(def enumDef) int {
	a.maxAbstract++
	a.abstracts[a.maxAbstract] = def
	a.abstractIDs = append(a.abstractIDs, a.maxAbstract)
	return a.maxAbstract
}

// Resolves reports whether a concrete id is bound to a definition.
func (a *NumberingAllocator) Resolves(numID int) bool {
	if _, ok := a.template[numID]; ok {
		return true
	}
	_, ok := a.nums[numID]
	return ok
}

// SessionIDs returns the concrete ids created during this session.
func (a *NumberingAllocator) SessionIDs() []int {
	ids := make([]int, 0, len(a.nums))
	for id := range a.nums {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MarkItem records that one more item was emitted under numID.
func (a *NumberingAllocator) MarkItem(numID int) {
	a.emitted[numID]++
}

// NextValue returns the number the next item under numID will show: the
// definition's start plus the items already emitted. It is the start a
// continuation of an interrupted list resumes at.
func (a *NumberingAllocator) NextValue(numID int) int {
	start, ok := a.starts[numID]
	if !ok {
		start = 1
	}
	return start + a.emitted[numID]
}

// Merge writes the session definitions into a copy of the template's
// numbering part: abstract definitions follow the template's last
// w:abstractNum and concrete entries follow its last w:num, so every
// abstractNum still precedes every num.
func (a *NumberingAllocator) Merge(numbering *etree.Document) (*etree.Document, error) {
	doc := numbering.Copy()
	root := doc.Root()
	b := tree.NewBuilder(nil).WithScope(scopeOf(root)...)

	absAt := 0
	numAt := -1
	for i, tok := range root.Child {
		el, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		switch el.FullTag() {
		case "w:numPicBullet":
			if absAt <= i {
				absAt = i + 1
			}
		case "w:abstractNum":
			absAt = i + 1
		case "w:num":
			numAt = i + 1
		}
	}
	if numAt < 0 {
		numAt = absAt
		for i := absAt; i < len(root.Child); i++ {
			if el, ok := root.Child[i].(*etree.Element); ok && el.FullTag() == "w:numIdMacAtCleanup" {
				break
			}
			numAt = i + 1
		}
	}

	for _, id := range a.abstractIDs {
		el, err := b.Build(abstractNumElement(id, a.abstracts[id]))
		if err != nil {
			return nil, err
		}
		root.InsertChildAt(absAt, el)
		absAt++
		numAt++
	}
	for _, id := range a.SessionIDs() {
		el, err := b.Build(tree.E("w:num", tree.A("w:numId", strconv.Itoa(id)),
			tree.Val("w:abstractNumId", strconv.Itoa(a.nums[id].abstractID)),
		))
		if err != nil {
			return nil, err
		}
		root.InsertChildAt(numAt, el)
		numAt++
	}
	return doc, nil
}

func abstractNumElement(id int, def enumDef) *tree.Element {
	lvl := tree.E("w:lvl", tree.A("w:ilvl", "0"),
		tree.Val("w:start", strconv.Itoa(def.start)),
		tree.Val("w:numFmt", def.format),
		tree.Val("w:lvlText", def.prefix),
		tree.Val("w:lvlJc", "left"),
		tree.E("w:pPr", tree.E("w:ind", tree.A("w:left", "720"), tree.A("w:hanging", "360"))),
	)
	return tree.E("w:abstractNum", tree.A("w:abstractNumId", strconv.Itoa(id)),
		tree.Val("w:multiLevelType", "singleLevel"),
		lvl,
	)
}

// scopeOf lists the prefixes a part's root element binds to the URIs the
// builder would use, so fragments built for that part do not repeat them.
func scopeOf(root *etree.Element) []string {
	var prefixes []string
	for _, a := range root.Attr {
		if a.Space == "xmlns" && tree.DefaultNamespaces[a.Key] == a.Value {
			prefixes = append(prefixes, a.Key)
		}
	}
	return prefixes
}
