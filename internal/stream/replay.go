package stream

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose"
)

// Replayer drives a composer from decoded content blocks.
type Replayer struct {
	c       *docxcompose.Composer
	baseDir string
	log     *zap.Logger

	// last enumerated list seen at each depth, for "continue"
	enumerated map[int]*docxcompose.List
}

// NewReplayer returns a replayer writing into c. baseDir resolves relative
// picture paths.
func NewReplayer(c *docxcompose.Composer, baseDir string, log *zap.Logger) *Replayer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Replayer{
		c:          c,
		baseDir:    baseDir,
		log:        log,
		enumerated: make(map[int]*docxcompose.List),
	}
}

// Replay sets the document properties and emits every block in order.
func (r *Replayer) Replay(doc *Document) error {
	r.c.SetProperties(doc.Properties.toComposer())
	if err := r.blocks(doc.Content, "content"); err != nil {
		return err
	}
	r.log.Debug("content stream replayed", zap.Int("blocks", len(doc.Content)))
	return nil
}

func (r *Replayer) blocks(blocks []Block, where string) error {
	for i := range blocks {
		if err := r.block(&blocks[i]); err != nil {
			return docxcompose.WithContext(err, "replay block", map[string]interface{}{
				"at": fmt.Sprintf("%s[%d]", where, i),
			})
		}
	}
	return nil
}

// into runs fn with the composer's cursor moved to body.
func (r *Replayer) into(body *docxcompose.Body, fn func() error) error {
	prev := r.c.SetBody(body)
	defer r.c.SetBody(prev)
	return fn()
}

func (r *Replayer) block(b *Block) error {
	kind, err := b.kind()
	if err != nil {
		return err
	}
	c := r.c

	switch kind {
	case "heading":
		h := b.Heading
		return c.Heading(h.Level, h.Bookmark, runs(h.Text, h.Runs)...)

	case "paragraph":
		p := b.Paragraph
		return c.AddParagraph(docxcompose.ParagraphOptions{
			Style:           p.Style,
			Bookmark:        p.Bookmark,
			Align:           p.Align,
			KeepNext:        p.KeepNext,
			PageBreakBefore: p.PageBreakBefore,
			IndentLeft:      p.Indent,
		}, runs(p.Text, p.Runs)...)

	case "list":
		return r.list(b.List, 0)

	case "table":
		return r.table(b.Table)

	case "picture":
		p := b.Picture
		if p.Path == "" {
			return fmt.Errorf("picture without path")
		}
		err := c.Picture(resolve(r.baseDir, p.Path), docxcompose.PictureOptions{
			Width:       p.Width,
			Height:      p.Height,
			Description: p.Description,
			Style:       p.Style,
			Align:       p.Align,
		})
		if err != nil || p.Caption == "" {
			return err
		}
		return c.Caption("", "Figure", docxcompose.Run{Text: p.Caption})

	case "caption":
		cp := b.Caption
		return c.Caption(cp.Style, cp.Label, runs(cp.Text, nil)...)

	case "footnote":
		return r.footnote(b.Footnote)

	case "admonition":
		a := b.Admonition
		body, err := c.Admonition(docxcompose.AdmonitionSpec{
			Kind:       a.Kind,
			Title:      a.Title,
			Style:      a.Style,
			TitleStyle: a.TitleStyle,
		})
		if err != nil {
			return err
		}
		return r.into(body, func() error { return r.blocks(a.Content, "admonition") })

	case "field_list":
		lt, err := c.FieldList(listTableSpec(b.FieldList))
		if err != nil {
			return err
		}
		return r.listTableRows(lt, b.FieldList.Rows)

	case "option_list":
		lt, err := c.OptionList(listTableSpec(b.OptionList))
		if err != nil {
			return err
		}
		return r.listTableRows(lt, b.OptionList.Rows)

	case "toc":
		return c.TableOfContents(b.TOC.Title, b.TOC.Depth)

	case "page_break":
		return c.PageBreak()

	case "section_break":
		return c.SectionBreak(b.SectionBreak.Kind, b.SectionBreak.Landscape)
	}
	return fmt.Errorf("unhandled block %s", kind)
}

// list emits a list and its nested lists. An enumerated list interrupted
// by a nested list resumes under the same numbering.
func (r *Replayer) list(l *List, depth int) error {
	open := func(cont *docxcompose.List) (*docxcompose.List, error) {
		switch l.Kind {
		case "", "bullet":
			return r.c.NewBulletList(depth)
		case "enumerated":
			return r.c.NewEnumeratedList(depth, docxcompose.EnumeratedOptions{
				Start:    l.Start,
				Format:   l.Format,
				Prefix:   l.Prefix,
				Suffix:   l.Suffix,
				Style:    l.Style,
				Continue: cont,
			})
		default:
			return nil, fmt.Errorf("unknown list kind %q", l.Kind)
		}
	}

	var cont *docxcompose.List
	if l.Continue {
		cont = r.enumerated[depth]
		if cont == nil {
			return fmt.Errorf("nothing to continue at depth %d", depth)
		}
	}
	cur, err := open(cont)
	if err != nil {
		return err
	}

	for i, item := range l.Items {
		if err := r.c.ListItem(cur, runs(item.Text, item.Runs)...); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if item.Children == nil {
			continue
		}
		if err := r.list(item.Children, depth+1); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if cur.Kind() == docxcompose.EnumeratedList && i < len(l.Items)-1 {
			if cur, err = open(cur); err != nil {
				return err
			}
		}
	}
	if cur.Kind() == docxcompose.EnumeratedList {
		r.enumerated[depth] = cur
	}
	return nil
}

func (r *Replayer) table(t *Table) error {
	tbl, err := r.c.NewTable(docxcompose.TableSpec{Style: t.Style, Widths: t.Widths, Align: t.Align})
	if err != nil {
		return err
	}
	for i := range t.Rows {
		if _, err := tbl.AddRow(i < t.HeaderRows); err != nil {
			return err
		}
	}
	for _, s := range t.Spans {
		rows, cols := s.Rows, s.Cols
		if rows == 0 {
			rows = 1
		}
		if cols == 0 {
			cols = 1
		}
		if err := tbl.Span(s.Row, s.Col, rows, cols); err != nil {
			return err
		}
	}

	for i, row := range t.Rows {
		if len(row) > tbl.Columns() {
			return fmt.Errorf("row %d has %d cells for %d columns", i, len(row), tbl.Columns())
		}
		for j := range row {
			cell := &row[j]
			if cell.Text == "" && len(cell.Runs) == 0 && len(cell.Content) == 0 {
				continue
			}
			body, err := tbl.Cell(i, j)
			if err != nil {
				return err
			}
			err = r.into(body, func() error {
				if cell.Text != "" || len(cell.Runs) > 0 {
					if err := r.c.Paragraph(cell.Style, runs(cell.Text, cell.Runs)...); err != nil {
						return err
					}
				}
				return r.blocks(cell.Content, fmt.Sprintf("cell(%d,%d)", i, j))
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Replayer) footnote(f *Footnote) error {
	if f.Key == "" {
		return fmt.Errorf("footnote without key")
	}
	if f.Text != "" || len(f.Runs) > 0 || len(f.Content) == 0 {
		if err := r.c.Footnote(f.Key, runs(f.Text, f.Runs)...); err != nil {
			return err
		}
	}
	if len(f.Content) == 0 {
		return nil
	}
	body, err := r.c.FootnoteBody(f.Key)
	if err != nil {
		return err
	}
	return r.into(body, func() error { return r.blocks(f.Content, "footnote "+f.Key) })
}

func listTableSpec(lt *ListTable) docxcompose.ListTableSpec {
	return docxcompose.ListTableSpec{Style: lt.Style, LabelStyle: lt.LabelStyle, Widths: lt.Widths}
}

func (r *Replayer) listTableRows(lt *docxcompose.ListTable, rows []ListTableRow) error {
	for _, row := range rows {
		body, err := lt.AddRow(row.Name)
		if err != nil {
			return err
		}
		err = r.into(body, func() error {
			if row.Text != "" {
				if err := r.c.Paragraph("", docxcompose.Run{Text: row.Text}); err != nil {
					return err
				}
			}
			return r.blocks(row.Body, "row "+row.Name)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
