package docxcompose

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// TableSpec describes a table. Widths are relative weights, one per
// column; they are scaled to the text column width.
type TableSpec struct {
	Style  string // table style name, "" for none
	Widths []int
	Align  string // left, center or right
}

type tableCell struct {
	el      *etree.Element
	covered bool
	merged  bool
}

// Table is a handle on a table appended to the document. Rows are added
// with AddRow and cells filled by redirecting the composer into them.
type Table struct {
	c      *Composer
	el     *etree.Element
	part   *partContext
	widths []int
	rows   []*etree.Element
	cells  [][]tableCell
}

// Columns returns the number of columns.
func (t *Table) Columns() int { return len(t.widths) }

// Rows returns the number of rows added so far.
func (t *Table) Rows() int { return len(t.rows) }

// ColumnWidths returns the computed column widths in twips.
func (t *Table) ColumnWidths() []int {
	out := make([]int, len(t.widths))
	copy(out, t.widths)
	return out
}

// NewTable appends an empty table.
func (c *Composer) NewTable(spec TableSpec) (*Table, error) {
	if c.closed {
		return nil, ErrComposerClosed
	}
	if len(spec.Widths) == 0 {
		return nil, errors.New("table has no columns")
	}
	sum := 0
	for i, w := range spec.Widths {
		if w <= 0 {
			return nil, fmt.Errorf("column %d: width weight must be positive, got %d", i, w)
		}
		sum += w
	}

	tblPr := tree.E("w:tblPr")
	if spec.Style != "" {
		id, err := c.styleID(spec.Style)
		if err != nil {
			return nil, err
		}
		tblPr.Add(tree.Val("w:tblStyle", id))
	}

	n := len(spec.Widths)
	avail := c.tmpl.ContentAreaSize().Width - c.tmpl.TableCellMargin(spec.Style)*n
	if avail < n {
		avail = n
	}
	widths := make([]int, n)
	total := 0
	for i, w := range spec.Widths {
		widths[i] = avail * w / sum
		total += widths[i]
	}

	tblPr.Add(tree.E("w:tblW", tree.A("w:w", strconv.Itoa(total)), tree.A("w:type", "dxa")))
	if spec.Align != "" {
		switch spec.Align {
		case "left", "center", "right":
		default:
			return nil, fmt.Errorf("unknown table alignment %q", spec.Align)
		}
		tblPr.Add(tree.Val("w:jc", spec.Align))
	}
	tblPr.Add(tree.E("w:tblLayout", tree.A("w:type", "fixed")))
	tblPr.Add(tree.E("w:tblLook", tree.A("w:val", "04A0"),
		tree.A("w:firstRow", "1"), tree.A("w:lastRow", "0"),
		tree.A("w:firstColumn", "1"), tree.A("w:lastColumn", "0"),
		tree.A("w:noHBand", "0"), tree.A("w:noVBand", "1")))

	grid := tree.E("w:tblGrid")
	for _, w := range widths {
		grid.Add(tree.E("w:gridCol", tree.A("w:w", strconv.Itoa(w))))
	}

	el, err := c.appendBlock(tree.E("w:tbl", tblPr, grid))
	if err != nil {
		return nil, err
	}
	return &Table{c: c, el: el, part: c.cursor.part, widths: widths}, nil
}

// AddRow appends a row and returns its index. Header rows repeat on every
// page the table spans.
func (t *Table) AddRow(header bool) (int, error) {
	if t.c.closed {
		return 0, ErrComposerClosed
	}
	tr := tree.E("w:tr")
	if header {
		tr.Add(tree.E("w:trPr", tree.E("w:tblHeader")))
	}
	for _, w := range t.widths {
		tr.Add(tree.E("w:tc",
			tree.E("w:tcPr", tree.E("w:tcW", tree.A("w:w", strconv.Itoa(w)), tree.A("w:type", "dxa"))),
		))
	}
	el, err := t.part.builder.Build(tr)
	if err != nil {
		return 0, err
	}
	t.el.AddChild(el)

	row := make([]tableCell, len(t.widths))
	for i, tc := range el.SelectElements("w:tc") {
		row[i] = tableCell{el: tc}
	}
	t.rows = append(t.rows, el)
	t.cells = append(t.cells, row)
	return len(t.rows) - 1, nil
}

// Cell returns the body of a cell. Cells hidden by a span cannot be
// written to.
func (t *Table) Cell(row, col int) (*Body, error) {
	if err := t.checkCell(row, col); err != nil {
		return nil, err
	}
	cell := t.cells[row][col]
	if cell.covered {
		return nil, fmt.Errorf("cell (%d, %d) is covered by a span", row, col)
	}
	return &Body{el: cell.el, part: t.part}, nil
}

func (t *Table) checkCell(row, col int) error {
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range [0, %d)", row, len(t.rows))
	}
	if col < 0 || col >= len(t.widths) {
		return fmt.Errorf("column %d out of range [0, %d)", col, len(t.widths))
	}
	return nil
}

// Span merges the rowSpan x colSpan block of cells whose top-left cell is
// (row, col). The block must lie within existing rows and must not overlap
// another span. Content already written to cells other than the top-left
// one is dropped.
func (t *Table) Span(row, col, rowSpan, colSpan int) error {
	if rowSpan < 1 || colSpan < 1 {
		return fmt.Errorf("invalid span %dx%d", rowSpan, colSpan)
	}
	if err := t.checkCell(row, col); err != nil {
		return err
	}
	if err := t.checkCell(row+rowSpan-1, col+colSpan-1); err != nil {
		return fmt.Errorf("span exceeds table: %w", err)
	}
	if rowSpan == 1 && colSpan == 1 {
		return nil
	}
	for r := row; r < row+rowSpan; r++ {
		for cc := col; cc < col+colSpan; cc++ {
			if t.cells[r][cc].covered || t.cells[r][cc].merged {
				return fmt.Errorf("cell (%d, %d) already belongs to a span", r, cc)
			}
		}
	}

	width := 0
	for cc := col; cc < col+colSpan; cc++ {
		width += t.widths[cc]
	}

	for r := row; r < row+rowSpan; r++ {
		lead := t.cells[r][col].el
		if r > row {
			for _, tok := range append([]etree.Token(nil), lead.Child...) {
				if el, ok := tok.(*etree.Element); ok && el.FullTag() == "w:tcPr" {
					continue
				}
				lead.RemoveChild(tok)
			}
		}
		var props []*tree.Element
		if colSpan > 1 {
			props = append(props, tree.Val("w:gridSpan", strconv.Itoa(colSpan)))
		}
		if rowSpan > 1 {
			if r == row {
				props = append(props, tree.Val("w:vMerge", "restart"))
			} else {
				props = append(props, tree.E("w:vMerge"))
			}
		}
		if err := t.setCellProps(lead, width, props); err != nil {
			return err
		}

		for cc := col + 1; cc < col+colSpan; cc++ {
			t.rows[r].RemoveChild(t.cells[r][cc].el)
			t.cells[r][cc] = tableCell{covered: true}
		}
		t.cells[r][col].merged = true
		if r > row {
			t.cells[r][col].covered = true
		}
	}
	return nil
}

// setCellProps rewrites the width of a cell and appends span properties
// after it.
func (t *Table) setCellProps(tc *etree.Element, width int, props []*tree.Element) error {
	tcPr := tc.SelectElement("w:tcPr")
	tcW := tcPr.SelectElement("w:tcW")
	tcW.CreateAttr("w:w", strconv.Itoa(width))
	at := tcW.Index() + 1
	els, err := t.part.builder.BuildAll(props...)
	if err != nil {
		return err
	}
	for i, el := range els {
		tcPr.InsertChildAt(at+i, el)
	}
	return nil
}

// AdmonitionSpec describes a boxed note such as "Warning".
type AdmonitionSpec struct {
	Kind       string // note, warning, tip, ...
	Title      string // defaults to the title-cased kind
	Style      string // table style name
	TitleStyle string // paragraph style of the title
}

// Admonition appends a single-cell table holding a title paragraph and
// returns the cell body. Redirect the composer into it with SetBody to add
// the admonition's content.
func (c *Composer) Admonition(spec AdmonitionSpec) (*Body, error) {
	title := spec.Title
	if title == "" {
		title = cases.Title(language.English).String(spec.Kind)
	}
	t, err := c.NewTable(TableSpec{Style: spec.Style, Widths: []int{1}})
	if err != nil {
		return nil, err
	}
	if _, err := t.AddRow(false); err != nil {
		return nil, err
	}
	body, err := t.Cell(0, 0)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return body, nil
	}

	var runs []Run
	if spec.TitleStyle != "" {
		runs = []Run{{Text: title}}
	} else {
		runs = []Run{{Text: title, Style: c.strongStyle()}}
	}
	prev := c.SetBody(body)
	defer c.SetBody(prev)
	if err := c.Paragraph(spec.TitleStyle, runs...); err != nil {
		return nil, err
	}
	return body, nil
}

// strongStyle returns the name of a bold character style, creating one
// when the template has none.
func (c *Composer) strongStyle() string {
	if _, ok := c.optionalStyleID("Strong"); ok {
		return "Strong"
	}
	if _, err := c.NewCharacterStyle("Strong", StyleProps{Bold: true}); err != nil {
		return ""
	}
	return "Strong"
}

// ListTableSpec describes a two-column label/body table.
type ListTableSpec struct {
	Style      string // table style name
	LabelStyle string // character style of labels
	Widths     []int  // two weights; defaults depend on the list kind
}

// ListTable is a field list or option list: each row pairs a label with a
// body the caller fills.
type ListTable struct {
	c          *Composer
	t          *Table
	labelStyle string
	suffix     string
}

// FieldList appends a field list, rendered as "name:" labels.
func (c *Composer) FieldList(spec ListTableSpec) (*ListTable, error) {
	if len(spec.Widths) == 0 {
		spec.Widths = []int{1, 3}
	}
	if spec.LabelStyle == "" {
		spec.LabelStyle = c.strongStyle()
	}
	return c.listTable(spec, ":")
}

// OptionList appends an option list, e.g. command line options and their
// descriptions.
func (c *Composer) OptionList(spec ListTableSpec) (*ListTable, error) {
	if len(spec.Widths) == 0 {
		spec.Widths = []int{1, 2}
	}
	return c.listTable(spec, "")
}

func (c *Composer) listTable(spec ListTableSpec, suffix string) (*ListTable, error) {
	if len(spec.Widths) != 2 {
		return nil, fmt.Errorf("list table needs 2 column widths, got %d", len(spec.Widths))
	}
	if spec.LabelStyle != "" {
		if _, err := c.styleID(spec.LabelStyle); err != nil {
			return nil, err
		}
	}
	t, err := c.NewTable(TableSpec{Style: spec.Style, Widths: spec.Widths})
	if err != nil {
		return nil, err
	}
	return &ListTable{c: c, t: t, labelStyle: spec.LabelStyle, suffix: suffix}, nil
}

// Table returns the underlying table.
func (l *ListTable) Table() *Table { return l.t }

// AddRow writes label into a new row and returns the body cell.
func (l *ListTable) AddRow(label string) (*Body, error) {
	row, err := l.t.AddRow(false)
	if err != nil {
		return nil, err
	}
	labelCell, err := l.t.Cell(row, 0)
	if err != nil {
		return nil, err
	}
	prev := l.c.SetBody(labelCell)
	err = l.c.Paragraph("", Run{Text: label + l.suffix, Style: l.labelStyle})
	l.c.SetBody(prev)
	if err != nil {
		return nil, err
	}
	return l.t.Cell(row, 1)
}
