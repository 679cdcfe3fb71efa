package docxcompose

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	nsW   = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`
	nsR   = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	xmlPI = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`
)

// fixture describes a synthetic template package.
type fixture struct {
	numCount  int
	footnotes bool
	settings  bool
	cover     bool
	media     bool
	landscape bool
	omit      map[string]bool
	extraRels int
	replace   map[string]string
}

type fixtureOption func(*fixture)

func withNums(n int) fixtureOption      { return func(f *fixture) { f.numCount = n } }
func withFootnotes() fixtureOption      { return func(f *fixture) { f.footnotes = true } }
func withSettings() fixtureOption       { return func(f *fixture) { f.settings = true } }
func withCoverPage() fixtureOption      { return func(f *fixture) { f.cover = true } }
func withMedia() fixtureOption          { return func(f *fixture) { f.media = true } }
func withLandscape() fixtureOption      { return func(f *fixture) { f.landscape = true } }
func withExtraRels(n int) fixtureOption { return func(f *fixture) { f.extraRels = n } }

func without(part string) fixtureOption {
	return func(f *fixture) { f.omit[part] = true }
}

func withPart(name, content string) fixtureOption {
	return func(f *fixture) { f.replace[name] = content }
}

// templateBytes builds a minimal but complete .docx template in memory.
func templateBytes(t *testing.T, opts ...fixtureOption) []byte {
	t.Helper()
	f := &fixture{numCount: 5, omit: map[string]bool{}, replace: map[string]string{}}
	for _, o := range opts {
		o(f)
	}

	parts := []struct{ name, content string }{
		{partContentTypes, f.contentTypes()},
		{partPackageRels, xmlPI + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="` + RelTypeOfficeDoc + `" Target="word/document.xml"/></Relationships>`},
		{partDocument, f.document()},
		{partDocumentRels, f.documentRels()},
		{partStyles, fixtureStyles},
		{partNumbering, f.numbering()},
	}
	if f.footnotes {
		parts = append(parts, struct{ name, content string }{partFootnotes, fixtureFootnotes})
	}
	if f.settings {
		parts = append(parts, struct{ name, content string }{partSettings, fixtureSettings})
	}
	if f.media {
		parts = append(parts, struct{ name, content string }{"word/media/image1.png", string(pngBytes(t, 4, 4))})
	}
	for name, content := range f.replace {
		found := false
		for i := range parts {
			if parts[i].name == name {
				parts[i].content = content
				found = true
			}
		}
		if !found {
			parts = append(parts, struct{ name, content string }{name, content})
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		if f.omit[p.name] {
			continue
		}
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// writeTemplate stores a template in a fresh directory and returns its path.
func writeTemplate(t *testing.T, opts ...fixtureOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.docx")
	require.NoError(t, os.WriteFile(path, templateBytes(t, opts...), 0o644))
	return path
}

func loadFixture(t *testing.T, opts ...fixtureOption) *StyleTemplate {
	t.Helper()
	tmpl, err := LoadTemplate("fixture.docx", templateBytes(t, opts...))
	require.NoError(t, err)
	return tmpl
}

// newTestComposer starts a session on a fixture template with scratch
// space below the test's temp dir.
func newTestComposer(t *testing.T, opts ...fixtureOption) *Composer {
	t.Helper()
	c, err := NewComposerFromTemplate(loadFixture(t, opts...),
		WithScratchDir(t.TempDir()),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (f *fixture) contentTypes() string {
	var b strings.Builder
	b.WriteString(xmlPI + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	b.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	b.WriteString(`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>`)
	if f.footnotes {
		b.WriteString(`<Override PartName="/word/footnotes.xml" ContentType="` + contentTypeFootnotes + `"/>`)
	}
	if f.settings {
		b.WriteString(`<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>`)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func (f *fixture) documentRels() string {
	var b strings.Builder
	b.WriteString(xmlPI + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	n := 0
	add := func(typ, target string) {
		n++
		mode := ""
		if typ == RelTypeHyperlink {
			mode = ` TargetMode="External"`
		}
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="%s"%s/>`, n, typ, target, mode)
	}
	add(RelTypeStyles, "styles.xml")
	add(RelTypeNumbering, "numbering.xml")
	if f.settings {
		add(RelTypeSettings, "settings.xml")
	}
	if f.footnotes {
		add(RelTypeFootnotes, "footnotes.xml")
	}
	if f.media {
		add(RelTypeImage, "media/image1.png")
	}
	for i := 0; i < f.extraRels; i++ {
		add(RelTypeHyperlink, fmt.Sprintf("https://template.example/%d", i))
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func (f *fixture) document() string {
	var b strings.Builder
	b.WriteString(xmlPI + `<w:document ` + nsW + ` ` + nsR + `><w:body>`)
	if f.cover {
		b.WriteString(`<w:sdt><w:sdtPr><w:docPartObj><w:docPartGallery w:val="Cover Pages"/><w:docPartUnique/></w:docPartObj></w:sdtPr>` +
			`<w:sdtContent><w:p><w:r><w:t>COVER</w:t></w:r></w:p></w:sdtContent></w:sdt>`)
	}
	b.WriteString(`<w:p><w:r><w:t>template body text</w:t></w:r></w:p>`)
	if f.landscape {
		b.WriteString(`<w:sectPr><w:pgSz w:w="15840" w:h="12240" w:orient="landscape"/>`)
	} else {
		b.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>`)
	}
	b.WriteString(`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/>`)
	b.WriteString(`</w:sectPr></w:body></w:document>`)
	return b.String()
}

func (f *fixture) numbering() string {
	var b strings.Builder
	b.WriteString(xmlPI + `<w:numbering ` + nsW + `>`)
	b.WriteString(`<w:abstractNum w:abstractNumId="0"><w:multiLevelType w:val="hybridMultilevel"/>` +
		`<w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/><w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:lvl>` +
		`<w:lvl w:ilvl="1"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="o"/><w:pPr><w:ind w:left="1440" w:hanging="360"/></w:pPr></w:lvl>` +
		`</w:abstractNum>`)
	b.WriteString(`<w:abstractNum w:abstractNumId="1"><w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%1."/></w:lvl></w:abstractNum>`)
	for i := 1; i <= f.numCount; i++ {
		abs := 1
		if i == 1 {
			abs = 0
		}
		fmt.Fprintf(&b, `<w:num w:numId="%d"><w:abstractNumId w:val="%d"/></w:num>`, i, abs)
	}
	b.WriteString(`</w:numbering>`)
	return b.String()
}

const fixtureStyles = xmlPI + `<w:styles ` + nsW + `>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="character" w:default="1" w:styleId="DefaultParagraphFont"><w:name w:val="Default Paragraph Font"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="BodyText"><w:name w:val="Body Text"/><w:aliases w:val="Text Body,Corps"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:pPr><w:numPr><w:numId w:val="1"/></w:numPr></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListNumber"><w:name w:val="List Number"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="FootnoteText"><w:name w:val="footnote text"/></w:style>` +
	`<w:style w:type="character" w:styleId="FootnoteReference"><w:name w:val="footnote reference"/></w:style>` +
	`<w:style w:type="character" w:styleId="Hyperlink"><w:name w:val="Hyperlink"/></w:style>` +
	`<w:style w:type="character" w:styleId="Literal"><w:name w:val="Literal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Caption"><w:name w:val="caption"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="TOCHeading"><w:name w:val="TOC Heading"/></w:style>` +
	`<w:style w:type="table" w:styleId="TableGrid"><w:name w:val="Table Grid"/>` +
	`<w:tblPr><w:tblCellMar><w:left w:w="100" w:type="dxa"/><w:right w:w="100" w:type="dxa"/></w:tblCellMar></w:tblPr></w:style>` +
	`<w:style w:type="table" w:styleId="Admonition"><w:name w:val="Admonition"/></w:style>` +
	`</w:styles>`

const fixtureFootnotes = xmlPI + `<w:footnotes ` + nsW + ` ` + nsR + `>` +
	`<w:footnote w:type="separator" w:id="-1"><w:p><w:r><w:separator/></w:r></w:p></w:footnote>` +
	`<w:footnote w:type="continuationSeparator" w:id="0"><w:p><w:r><w:continuationSeparator/></w:r></w:p></w:footnote>` +
	`<w:footnote w:id="1"><w:p><w:r><w:t>old template note</w:t></w:r></w:p></w:footnote>` +
	`</w:footnotes>`

const fixtureSettings = xmlPI + `<w:settings ` + nsW + `>` +
	`<w:zoom w:percent="100"/><w:defaultTabStop w:val="720"/><w:compat/><w:rsids/>` +
	`</w:settings>`

// pngBytes encodes a w x h PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// writePNG writes a w x h PNG into dir and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pngBytes(t, w, h), 0o644))
	return path
}

// savedPackage is an output archive opened for assertions.
type savedPackage struct {
	order []string
	files map[string][]byte
}

func saveAndOpen(t *testing.T, c *Composer) *savedPackage {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.docx")
	require.NoError(t, c.Save(out))
	return openSaved(t, out)
}

func openSaved(t *testing.T, path string) *savedPackage {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	p := &savedPackage{files: make(map[string][]byte)}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		p.order = append(p.order, f.Name)
		p.files[f.Name] = data
	}
	return p
}

func (p *savedPackage) has(name string) bool {
	_, ok := p.files[name]
	return ok
}

func (p *savedPackage) xml(t *testing.T, name string) *etree.Document {
	t.Helper()
	data, ok := p.files[name]
	require.True(t, ok, "part %s missing from output", name)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

// body returns the block-level children of the saved document body.
func (p *savedPackage) body(t *testing.T) []*etree.Element {
	t.Helper()
	return p.xml(t, partDocument).Root().SelectElement("w:body").ChildElements()
}

// relationships parses a saved .rels part.
func (p *savedPackage) relationships(t *testing.T, name string) []Relationship {
	t.Helper()
	rels, err := parseRelationships(p.xml(t, name))
	require.NoError(t, err)
	return rels
}

// paragraphText concatenates the w:t text below el.
func paragraphText(el *etree.Element) string {
	var b strings.Builder
	for _, t := range el.FindElements(".//w:t") {
		b.WriteString(t.Text())
	}
	return b.String()
}
