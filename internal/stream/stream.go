// Package stream decodes a YAML or JSON content stream and replays it onto a
// docxcompose.Composer. It is the reference producer used by the
// docxcompose command.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose"
)

// Document is a decoded content stream.
type Document struct {
	Properties Properties `yaml:"properties"`
	Content    []Block    `yaml:"content"`
}

// Properties mirror docxcompose.Properties.
type Properties struct {
	Title       string   `yaml:"title"`
	Subject     string   `yaml:"subject"`
	Creator     string   `yaml:"creator"`
	Company     string   `yaml:"company"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// Block is one content operation. Exactly one field is set.
type Block struct {
	Heading      *Heading      `yaml:"heading"`
	Paragraph    *Paragraph    `yaml:"paragraph"`
	List         *List         `yaml:"list"`
	Table        *Table        `yaml:"table"`
	Picture      *Picture      `yaml:"picture"`
	Caption      *Caption      `yaml:"caption"`
	Footnote     *Footnote     `yaml:"footnote"`
	Admonition   *Admonition   `yaml:"admonition"`
	FieldList    *ListTable    `yaml:"field_list"`
	OptionList   *ListTable    `yaml:"option_list"`
	TOC          *TOC          `yaml:"toc"`
	PageBreak    *struct{}     `yaml:"page_break"`
	SectionBreak *SectionBreak `yaml:"section_break"`
}

// Run is one stretch of text.
type Run struct {
	Text     string `yaml:"text"`
	Style    string `yaml:"style"`
	Link     string `yaml:"link"`
	Anchor   string `yaml:"anchor"`
	Footnote string `yaml:"footnote"`
	Field    string `yaml:"field"`
	Break    bool   `yaml:"break"`
	Tab      bool   `yaml:"tab"`
}

// Heading is a title (level 0) or section heading.
type Heading struct {
	Level    int    `yaml:"level"`
	Text     string `yaml:"text"`
	Runs     []Run  `yaml:"runs"`
	Bookmark string `yaml:"bookmark"`
}

// Paragraph is a body paragraph. Text is shorthand for a single plain run.
type Paragraph struct {
	Style           string `yaml:"style"`
	Align           string `yaml:"align"`
	Bookmark        string `yaml:"bookmark"`
	KeepNext        bool   `yaml:"keep_next"`
	PageBreakBefore bool   `yaml:"page_break_before"`
	Indent          int    `yaml:"indent"`
	Text            string `yaml:"text"`
	Runs            []Run  `yaml:"runs"`
}

// List is a bullet or enumerated list. Items may carry a nested list.
type List struct {
	Kind   string `yaml:"kind"`
	Format string `yaml:"format"`
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
	Start  int    `yaml:"start"`
	Style  string `yaml:"style"`
	// Continue resumes the previous enumerated list at the same depth.
	Continue bool   `yaml:"continue"`
	Items    []Item `yaml:"items"`
}

// Item is one list item.
type Item struct {
	Text     string `yaml:"text"`
	Runs     []Run  `yaml:"runs"`
	Children *List  `yaml:"children"`
}

// Table is a grid of cells. The first HeaderRows rows repeat on every page.
type Table struct {
	Style      string   `yaml:"style"`
	Widths     []int    `yaml:"widths"`
	Align      string   `yaml:"align"`
	HeaderRows int      `yaml:"header_rows"`
	Rows       [][]Cell `yaml:"rows"`
	Spans      []Span   `yaml:"spans"`
}

// Cell is the content of one table cell.
type Cell struct {
	Text    string  `yaml:"text"`
	Style   string  `yaml:"style"`
	Runs    []Run   `yaml:"runs"`
	Content []Block `yaml:"content"`
}

// Span merges a rectangle of cells into its top-left cell.
type Span struct {
	Row  int `yaml:"row"`
	Col  int `yaml:"col"`
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// Picture is an inline image. Width and Height are in EMU; relative paths
// are resolved against the stream's directory.
type Picture struct {
	Path        string `yaml:"path"`
	Width       int64  `yaml:"width"`
	Height      int64  `yaml:"height"`
	Description string `yaml:"description"`
	Style       string `yaml:"style"`
	Align       string `yaml:"align"`
	Caption     string `yaml:"caption"`
}

// Caption is a numbered caption paragraph.
type Caption struct {
	Style string `yaml:"style"`
	Label string `yaml:"label"`
	Text  string `yaml:"text"`
}

// Footnote defines the body of a footnote referenced by key.
type Footnote struct {
	Key     string  `yaml:"key"`
	Text    string  `yaml:"text"`
	Runs    []Run   `yaml:"runs"`
	Content []Block `yaml:"content"`
}

// Admonition is a boxed note, warning or similar.
type Admonition struct {
	Kind       string  `yaml:"kind"`
	Title      string  `yaml:"title"`
	Style      string  `yaml:"style"`
	TitleStyle string  `yaml:"title_style"`
	Content    []Block `yaml:"content"`
}

// ListTable is a field list or an option list.
type ListTable struct {
	Style      string         `yaml:"style"`
	LabelStyle string         `yaml:"label_style"`
	Widths     []int          `yaml:"widths"`
	Rows       []ListTableRow `yaml:"rows"`
}

// ListTableRow is one labelled row.
type ListTableRow struct {
	Name string  `yaml:"name"`
	Text string  `yaml:"text"`
	Body []Block `yaml:"body"`
}

// TOC is a table of contents.
type TOC struct {
	Title string `yaml:"title"`
	Depth int    `yaml:"depth"`
}

// SectionBreak starts a new section.
type SectionBreak struct {
	Kind      string `yaml:"kind"`
	Landscape bool   `yaml:"landscape"`
}

// Decode reads a content stream. JSON is accepted as the YAML subset it is.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("decode content stream: %w", err)
	}
	return &doc, nil
}

// Load decodes the content stream at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// kind names the operation a block holds, or returns an error when the
// block holds none or several.
func (b *Block) kind() (string, error) {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(b.Heading != nil, "heading")
	add(b.Paragraph != nil, "paragraph")
	add(b.List != nil, "list")
	add(b.Table != nil, "table")
	add(b.Picture != nil, "picture")
	add(b.Caption != nil, "caption")
	add(b.Footnote != nil, "footnote")
	add(b.Admonition != nil, "admonition")
	add(b.FieldList != nil, "field_list")
	add(b.OptionList != nil, "option_list")
	add(b.TOC != nil, "toc")
	add(b.PageBreak != nil, "page_break")
	add(b.SectionBreak != nil, "section_break")

	switch len(kinds) {
	case 0:
		return "", errors.New("empty content block")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("content block holds several operations: %v", kinds)
	}
}

func (p Properties) toComposer() docxcompose.Properties {
	return docxcompose.Properties{
		Title:       p.Title,
		Subject:     p.Subject,
		Creator:     p.Creator,
		Company:     p.Company,
		Category:    p.Category,
		Description: p.Description,
		Keywords:    p.Keywords,
	}
}

func runs(text string, rs []Run) []docxcompose.Run {
	out := make([]docxcompose.Run, 0, len(rs)+1)
	if text != "" {
		out = append(out, docxcompose.Run{Text: text})
	}
	for _, r := range rs {
		out = append(out, docxcompose.Run{
			Text:        r.Text,
			Style:       r.Style,
			Link:        r.Link,
			Anchor:      r.Anchor,
			FootnoteKey: r.Footnote,
			Field:       r.Field,
			Break:       r.Break,
			Tab:         r.Tab,
		})
	}
	return out
}

// resolve makes a picture path relative to the stream's directory.
func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
