package docxcompose

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// Part names the composer reads or rebuilds.
const (
	partContentTypes = "[Content_Types].xml"
	partPackageRels  = "_rels/.rels"
	partDocument     = "word/document.xml"
	partDocumentRels = "word/_rels/document.xml.rels"
	partStyles       = "word/styles.xml"
	partNumbering    = "word/numbering.xml"
	partFootnotes    = "word/footnotes.xml"
	partSettings     = "word/settings.xml"
	partCoreProps    = "docProps/core.xml"
	partAppProps     = "docProps/app.xml"
	mediaDir         = "word/media/"
	xmlDeclaration   = `version="1.0" encoding="UTF-8" standalone="yes"`
	defaultDirPerm   = 0o755
	defaultFilePerm  = 0o644
)

// docxPackage indexes the entries of a .docx zip archive, keeping their
// original order so a rewritten package lists parts the way the source did.
type docxPackage struct {
	reader *zip.Reader
	order  []string
	parts  map[string]*zip.File
}

// openPackage indexes a package held in memory.
func openPackage(data []byte) (*docxPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w", err)
	}

	pkg := &docxPackage{
		reader: zr,
		parts:  make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if _, dup := pkg.parts[f.Name]; dup {
			continue
		}
		pkg.order = append(pkg.order, f.Name)
		pkg.parts[f.Name] = f
	}
	return pkg, nil
}

// Has reports whether the package contains name.
func (p *docxPackage) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Names returns the entry names in archive order.
func (p *docxPackage) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Part retrieves the content of a specific part
func (p *docxPackage) Part(name string) ([]byte, error) {
	file, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", name, err)
	}
	return content, nil
}

// XML parses a part into an etree document.
func (p *docxPackage) XML(name string) (*etree.Document, error) {
	content, err := p.Part(name)
	if err != nil {
		return nil, err
	}
	return parseXML(content)
}

// Extract writes every entry below dir. Entry names that would escape dir
// are rejected.
func (p *docxPackage) Extract(dir string) error {
	for _, name := range p.order {
		dest, err := scratchPath(dir, name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), defaultDirPerm); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := p.extractOne(name, dest); err != nil {
			return err
		}
	}
	return nil
}

func (p *docxPackage) extractOne(name, dest string) error {
	rc, err := p.parts[name].Open()
	if err != nil {
		return fmt.Errorf("failed to open part %s: %w", name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", name, err)
	}
	return out.Close()
}

// scratchPath maps a package entry name to a file below dir.
func scratchPath(dir, name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" || strings.Contains(name, "\\") {
		return "", fmt.Errorf("invalid package entry name %q", name)
	}
	dest := filepath.Join(dir, filepath.FromSlash(clean[1:]))
	rel, err := filepath.Rel(dir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("package entry %q escapes the scratch directory", name)
	}
	return dest, nil
}

// parseXML reads a part, rejecting empty documents.
func parseXML(content []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("XML has no root element")
	}
	return doc, nil
}

// newXMLDocument returns a document carrying the standalone declaration
// Word writes on every part.
func newXMLDocument(root *etree.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDeclaration)
	doc.SetRoot(root)
	return doc
}

// newPartRoot returns a root element declaring the given prefixes.
func newPartRoot(tag string, prefixes ...string) *etree.Element {
	root := etree.NewElement(tag)
	for _, p := range prefixes {
		root.CreateAttr("xmlns:"+p, tree.DefaultNamespaces[p])
	}
	return root
}

// serializeXML writes doc, adding the XML declaration when the document
// does not carry one.
func serializeXML(doc *etree.Document) ([]byte, error) {
	hasDecl := false
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			hasDecl = true
			break
		}
	}
	if !hasDecl {
		doc.InsertChildAt(0, etree.NewProcInst("xml", xmlDeclaration))
	}
	return doc.WriteToBytes()
}

// relsPartFor returns the relationships part belonging to part, e.g.
// "word/document.xml" -> "word/_rels/document.xml.rels".
func relsPartFor(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}
