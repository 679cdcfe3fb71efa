package docxcompose

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// manifestCovers reports whether every entry of the package is covered by
// the saved [Content_Types].xml.
func manifestCovers(t *testing.T, out *savedPackage) {
	t.Helper()
	root := out.xml(t, partContentTypes).Root()
	defaults := map[string]bool{}
	for _, el := range root.SelectElements("Default") {
		defaults[strings.ToLower(el.SelectAttrValue("Extension", ""))] = true
	}
	overrides := map[string]bool{}
	for _, el := range root.SelectElements("Override") {
		overrides[el.SelectAttrValue("PartName", "")] = true
	}
	for _, name := range out.order {
		if name == partContentTypes {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
		assert.True(t, overrides["/"+name] || defaults[ext], "part %s not covered by the manifest", name)
	}
}

func TestSaveEmptyDocument(t *testing.T) {
	tmpl := loadFixture(t, withFootnotes(), withSettings(), withMedia())
	scratchParent := t.TempDir()
	c, err := NewComposerFromTemplate(tmpl, WithScratchDir(scratchParent), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	out := saveAndOpen(t, c)

	assert.Equal(t, partContentTypes, out.order[0], "manifest is the first entry")
	for _, name := range tmpl.Parts() {
		assert.True(t, out.has(name), "template part %s kept", name)
	}
	assert.True(t, out.has(partCoreProps))
	assert.True(t, out.has(partAppProps))
	manifestCovers(t, out)

	// the template body is replaced by the final section properties
	body := out.body(t)
	require.Len(t, body, 1)
	assert.Equal(t, "w:sectPr", body[0].FullTag())
	assert.NotNil(t, body[0].SelectElement("w:pgMar"))

	// unchanged parts are copied byte for byte
	assert.Equal(t, pngBytes(t, 4, 4), out.files["word/media/image1.png"])

	// the scratch directory is gone
	entries, err := os.ReadDir(scratchParent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveTwiceFails(t *testing.T) {
	c := newTestComposer(t)
	dir := t.TempDir()
	require.NoError(t, c.Save(filepath.Join(dir, "a.docx")))

	err := c.Save(filepath.Join(dir, "b.docx"))
	assert.ErrorIs(t, err, ErrComposerClosed)
	assert.ErrorIs(t, c.Paragraph("", Run{Text: "late"}), ErrComposerClosed)
	assert.NoError(t, c.Close())
}

func TestCloseRemovesScratch(t *testing.T) {
	parent := t.TempDir()
	c, err := NewComposerFromTemplate(loadFixture(t), WithScratchDir(parent), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, c.Close())
	entries, err = os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, c.Close())
}

func TestFailedSaveLeavesNoFile(t *testing.T) {
	parent := t.TempDir()
	c, err := NewComposerFromTemplate(loadFixture(t), WithScratchDir(parent), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, c.Paragraph("", Run{FootnoteKey: "undefined"}))

	outDir := t.TempDir()
	target := filepath.Join(outDir, "out.docx")
	require.Error(t, c.Save(target))

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temporary file left behind")
	entries, err = os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch removed on failure")
}

func TestSaveToMissingDirectory(t *testing.T) {
	c := newTestComposer(t)
	err := c.Save(filepath.Join(t.TempDir(), "missing", "out.docx"))
	require.Error(t, err)
	assert.True(t, IsDocumentError(err))
}

func TestMissingManifestFails(t *testing.T) {
	_, err := LoadTemplate("t.docx", templateBytes(t, without(partContentTypes)))
	require.Error(t, err)
	assert.True(t, IsPackagingError(err))
}

func TestCoverPage(t *testing.T) {
	t.Run("inserted", func(t *testing.T) {
		c := newTestComposer(t, withCoverPage())
		require.NoError(t, c.Paragraph("", Run{Text: "first"}))
		body := saveAndOpen(t, c).body(t)
		require.Len(t, body, 3)
		assert.Equal(t, "w:sdt", body[0].FullTag())
		assert.Equal(t, "COVER", paragraphText(body[0]))
		assert.Equal(t, "first", paragraphText(body[1]))
	})

	t.Run("disabled", func(t *testing.T) {
		c, err := NewComposerFromTemplate(loadFixture(t, withCoverPage()),
			WithScratchDir(t.TempDir()), WithCoverPage(false), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		require.NoError(t, c.Paragraph("", Run{Text: "first"}))
		body := saveAndOpen(t, c).body(t)
		require.Len(t, body, 2)
		assert.Equal(t, "first", paragraphText(body[0]))
	})

	t.Run("partial config keeps it", func(t *testing.T) {
		c, err := NewComposerFromTemplate(loadFixture(t, withCoverPage()),
			WithConfig(&Config{LogLevel: "off", ScratchDir: t.TempDir()}))
		require.NoError(t, err)
		require.NoError(t, c.Paragraph("", Run{Text: "first"}))
		body := saveAndOpen(t, c).body(t)
		require.Len(t, body, 3)
		assert.Equal(t, "w:sdt", body[0].FullTag())
	})
}

const coverWithIDs = xmlPI + `<w:document ` + nsW + ` ` + nsR +
	` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"><w:body>` +
	`<w:sdt><w:sdtPr><w:docPartObj><w:docPartGallery w:val="Cover Pages"/></w:docPartObj></w:sdtPr><w:sdtContent>` +
	`<w:p><w:bookmarkStart w:id="4" w:name="cover"/><w:r><w:drawing><wp:inline><wp:docPr id="3" name="Logo"/></wp:inline></w:drawing></w:r><w:bookmarkEnd w:id="4"/></w:p>` +
	`</w:sdtContent></w:sdt>` +
	`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>` +
	`</w:body></w:document>`

func TestCoverPageIDsReserved(t *testing.T) {
	img := writePNG(t, t.TempDir(), "pic.png", 10, 10)
	c := newTestComposer(t, withPart(partDocument, coverWithIDs))
	require.NoError(t, c.Heading(1, "cover", Run{Text: "Intro"}))
	require.NoError(t, c.Picture(img, PictureOptions{}))
	doc := saveAndOpen(t, c).xml(t, partDocument)

	var bookmarks, names, drawings []string
	for _, el := range doc.FindElements(".//w:bookmarkStart") {
		bookmarks = append(bookmarks, el.SelectAttrValue("w:id", ""))
		names = append(names, el.SelectAttrValue("w:name", ""))
	}
	for _, el := range doc.FindElements(".//wp:docPr") {
		drawings = append(drawings, el.SelectAttrValue("id", ""))
	}
	assert.Equal(t, []string{"4", "5"}, bookmarks)
	assert.Equal(t, []string{"cover", "cover_2"}, names)
	assert.Equal(t, []string{"3", "4"}, drawings)
}

func TestHyperlinksShareRelationship(t *testing.T) {
	c := newTestComposer(t, withExtraRels(3))
	require.NoError(t, c.Paragraph("",
		Run{Text: "one", Link: "https://example.com"},
		Run{Text: "two", Link: "https://example.com"},
		Run{Text: "three", Link: "https://example.org"},
	))
	out := saveAndOpen(t, c)

	links := out.xml(t, partDocument).FindElements(".//w:hyperlink")
	require.Len(t, links, 3)
	assert.Equal(t, links[0].SelectAttrValue("r:id", ""), links[1].SelectAttrValue("r:id", ""))
	assert.NotEqual(t, links[0].SelectAttrValue("r:id", ""), links[2].SelectAttrValue("r:id", ""))
	// two template rels plus three extra: the first new id is rId6
	assert.Equal(t, "rId6", links[0].SelectAttrValue("r:id", ""))
	assert.Equal(t, "Hyperlink", links[0].FindElement("w:r/w:rPr/w:rStyle").SelectAttrValue("w:val", ""))

	ids := map[string]bool{}
	external := 0
	for _, rel := range out.relationships(t, partDocumentRels) {
		assert.False(t, ids[rel.ID], "duplicate relationship id %s", rel.ID)
		ids[rel.ID] = true
		if rel.External {
			external++
		}
	}
	assert.Equal(t, 5, external)
}

func TestInternalAnchor(t *testing.T) {
	c := newTestComposer(t)
	require.NoError(t, c.Heading(1, "Getting Started!", Run{Text: "Getting started"}))
	require.NoError(t, c.Paragraph("", Run{Text: "back", Anchor: "Getting Started!"}))
	out := saveAndOpen(t, c)

	doc := out.xml(t, partDocument)
	start := doc.FindElement(".//w:bookmarkStart")
	require.NotNil(t, start)
	assert.Equal(t, "getting_started", start.SelectAttrValue("w:name", ""))
	link := doc.FindElement(".//w:hyperlink")
	require.NotNil(t, link)
	assert.Equal(t, "getting_started", link.SelectAttrValue("w:anchor", ""))
	assert.Nil(t, link.SelectAttr("r:id"))
}

func TestProperties(t *testing.T) {
	c := newTestComposer(t)
	c.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	c.SetProperties(Properties{
		Title:    "Report",
		Creator:  "Ops",
		Company:  "ACME",
		Keywords: []string{"a", "b"},
	})
	assert.Equal(t, "Report", c.Properties().Title)

	out := saveAndOpen(t, c)
	core := out.xml(t, partCoreProps).Root()
	assert.Equal(t, "Report", core.SelectElement("dc:title").Text())
	assert.Equal(t, "Ops", core.SelectElement("dc:creator").Text())
	assert.Equal(t, "a, b", core.SelectElement("cp:keywords").Text())
	assert.Equal(t, "2024-03-01T12:00:00Z", core.SelectElement("dcterms:created").Text())

	app := out.xml(t, partAppProps).Root()
	assert.Equal(t, "ACME", app.SelectElement("Company").Text())
	assert.Equal(t, Application, app.SelectElement("Application").Text())

	types := map[string]string{}
	for _, rel := range out.relationships(t, partPackageRels) {
		types[rel.Type] = rel.Target
	}
	assert.Equal(t, "word/document.xml", types[RelTypeOfficeDoc])
	assert.Equal(t, partCoreProps, types[RelTypeCoreProps])
	assert.Equal(t, partAppProps, types[RelTypeExtendedProps])
	manifestCovers(t, out)
}

func TestComposersAreIndependent(t *testing.T) {
	tmpl := loadFixture(t)
	dir := t.TempDir()
	img := writePNG(t, dir, "pic.png", 10, 10)

	var outs []*savedPackage
	for i := 0; i < 2; i++ {
		c, err := NewComposerFromTemplate(tmpl, WithScratchDir(t.TempDir()), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		require.NoError(t, c.Picture(img, PictureOptions{}))
		l, err := c.NewEnumeratedList(0, EnumeratedOptions{})
		require.NoError(t, err)
		require.NoError(t, c.ListItem(l, Run{Text: "x"}))
		outs = append(outs, saveAndOpen(t, c))
	}

	for _, out := range outs {
		docPr := out.xml(t, partDocument).FindElement(".//wp:docPr")
		require.NotNil(t, docPr)
		assert.Equal(t, "1", docPr.SelectAttrValue("id", ""))
		assert.True(t, out.has("word/media/image1.png"))
		num := out.xml(t, partDocument).FindElement(".//w:numId")
		assert.Equal(t, "6", num.SelectAttrValue("w:val", ""))
	}
}

func TestSetBodyRestoresMain(t *testing.T) {
	c := newTestComposer(t)
	tbl, err := c.NewTable(TableSpec{Widths: []int{1}})
	require.NoError(t, err)
	_, err = tbl.AddRow(false)
	require.NoError(t, err)
	cell, err := tbl.Cell(0, 0)
	require.NoError(t, err)

	prev := c.SetBody(cell)
	assert.Same(t, c.MainBody(), prev)
	assert.Same(t, cell, c.CurrentBody())
	c.SetBody(nil)
	assert.Same(t, c.MainBody(), c.CurrentBody())
}

func TestUnknownStyle(t *testing.T) {
	c := newTestComposer(t)
	err := c.Paragraph("No Such Style", Run{Text: "x"})
	require.Error(t, err)
	assert.True(t, IsStyleNotFound(err))

	err = c.Paragraph("", Run{Text: "x", Style: "Missing Char"})
	assert.True(t, IsStyleNotFound(err))
}

func TestParagraphFormatting(t *testing.T) {
	c := newTestComposer(t)
	require.NoError(t, c.AddParagraph(ParagraphOptions{Style: "Body Text", Align: "center", KeepNext: true},
		Run{Text: " padded "},
		Run{Text: "line1\nline2\tend", Style: "Literal"},
		Run{Field: "PAGE", Text: "1"},
	))
	assert.Error(t, c.AddParagraph(ParagraphOptions{Align: "diagonal"}))

	p := saveAndOpen(t, c).body(t)[0]
	assert.Equal(t, "BodyText", p.FindElement("w:pPr/w:pStyle").SelectAttrValue("w:val", ""))
	assert.Equal(t, "center", p.FindElement("w:pPr/w:jc").SelectAttrValue("w:val", ""))
	assert.NotNil(t, p.FindElement("w:pPr/w:keepNext"))

	runs := p.SelectElements("w:r")
	require.GreaterOrEqual(t, len(runs), 2)
	assert.Equal(t, "preserve", runs[0].SelectElement("w:t").SelectAttrValue("xml:space", ""))
	assert.Len(t, runs[1].SelectElements("w:br"), 1)
	assert.Len(t, runs[1].SelectElements("w:tab"), 1)
	assert.Equal(t, "Literal", runs[1].FindElement("w:rPr/w:rStyle").SelectAttrValue("w:val", ""))

	instr := p.FindElement(".//w:instrText")
	require.NotNil(t, instr)
	assert.Equal(t, " PAGE ", instr.Text())
	assert.Len(t, p.FindElements(".//w:fldChar"), 3)
}

func TestCaptionsNumberPerLabel(t *testing.T) {
	c := newTestComposer(t)
	require.NoError(t, c.Caption("", "Figure", Run{Text: "first"}))
	require.NoError(t, c.Caption("", "Table", Run{Text: "other"}))
	require.NoError(t, c.Caption("", "Figure", Run{Text: "second"}))

	body := saveAndOpen(t, c).body(t)
	assert.Equal(t, "Figure 1: first", paragraphText(body[0]))
	assert.Equal(t, "Table 1: other", paragraphText(body[1]))
	assert.Equal(t, "Figure 2: second", paragraphText(body[2]))
	assert.Equal(t, "Caption", body[0].FindElement("w:pPr/w:pStyle").SelectAttrValue("w:val", ""))
}

func TestHeadingLevels(t *testing.T) {
	c := newTestComposer(t)
	require.NoError(t, c.Heading(0, "", Run{Text: "Doc"}))
	require.NoError(t, c.Heading(2, "", Run{Text: "Sub"}))
	assert.Error(t, c.Heading(10, "", Run{Text: "too deep"}))

	body := saveAndOpen(t, c).body(t)
	assert.Equal(t, "Title", body[0].FindElement("w:pPr/w:pStyle").SelectAttrValue("w:val", ""))
	assert.Equal(t, "Heading2", body[1].FindElement("w:pPr/w:pStyle").SelectAttrValue("w:val", ""))
}

func TestBookmarkNamesAreUnique(t *testing.T) {
	c := newTestComposer(t)
	require.NoError(t, c.Heading(1, "intro", Run{Text: "a"}))
	require.NoError(t, c.Heading(1, "intro", Run{Text: "b"}))

	starts := saveAndOpen(t, c).xml(t, partDocument).FindElements(".//w:bookmarkStart")
	require.Len(t, starts, 2)
	assert.Equal(t, "intro", starts[0].SelectAttrValue("w:name", ""))
	assert.Equal(t, "intro_2", starts[1].SelectAttrValue("w:name", ""))
	assert.NotEqual(t, starts[0].SelectAttrValue("w:id", ""), starts[1].SelectAttrValue("w:id", ""))
}

func TestBookmarkName(t *testing.T) {
	tests := map[string]string{
		"Intro":                 "intro",
		"Getting Started!":      "getting_started",
		"2nd section":           "b_2nd_section",
		"":                      "b_",
		strings.Repeat("a", 50): strings.Repeat("a", 40),
	}
	for in, want := range tests {
		assert.Equal(t, want, BookmarkName(in), in)
	}
}
