// Package docxcompose assembles Microsoft Word documents (DOCX) from a style
// template and a stream of content operations.
//
// The template is an ordinary .docx whose styles, numbering definitions, page
// setup, footnote separators and cover page are reused; its body is
// discarded. Content is appended at a single insertion cursor, which can be
// redirected into table cells, admonitions and footnotes.
//
// # Quick Start
//
//	c, err := docxcompose.NewComposer("template.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.Heading(1, "intro", docxcompose.Run{Text: "Introduction"})
//	c.Paragraph("Body Text",
//	    docxcompose.Run{Text: "See "},
//	    docxcompose.Run{Text: "the docs", Link: "https://example.com"},
//	)
//
//	list, _ := c.NewEnumeratedList(0, docxcompose.EnumeratedOptions{Format: "loweralpha", Suffix: ")"})
//	c.ListItem(list, docxcompose.Run{Text: "first"})
//	c.ListItem(list, docxcompose.Run{Text: "second"})
//
//	if err := c.Save("out.docx"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Nested Content
//
// Operations that create containers return a *Body. Point the composer at it
// with SetBody, emit the nested content, then restore the previous body:
//
//	note, _ := c.Admonition(docxcompose.AdmonitionSpec{Kind: "warning"})
//	prev := c.SetBody(note)
//	c.Paragraph("", docxcompose.Run{Text: "Mind the gap."})
//	c.SetBody(prev)
//
// # Package Consistency
//
// Saving merges the numbering definitions created for lists into the
// template's numbering part, writes the footnotes collected during the
// session, and derives [Content_Types].xml so every part of the archive is
// covered. Relationship, numbering and footnote ids never collide with the
// template's own.
//
// # Configuration
//
// An Engine caches parsed templates and carries a Config, read from
// DOCXCOMPOSE_* environment variables by default. Per-composer options
// (WithLogger, WithCoverPage, WithScratchDir, WithImageDPI) override it.
//
// A Composer is not safe for concurrent use. Build documents in parallel
// with separate composers.
package docxcompose
