package docxcompose

import (
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

// Properties are the document properties written to docProps/core.xml and
// docProps/app.xml on save.
type Properties struct {
	Title       string
	Subject     string
	Creator     string
	Company     string
	Category    string
	Description string
	Keywords    []string
}

// Application is the name written to docProps/app.xml.
const Application = "go-docxcompose"

var corePropsScope = []string{"cp", "dc", "dcterms", "dcmitype", "xsi"}

// SetProperties replaces the document properties.
func (c *Composer) SetProperties(p Properties) {
	p.Keywords = append([]string(nil), p.Keywords...)
	c.props = p
}

// Properties returns the current document properties.
func (c *Composer) Properties() Properties {
	p := c.props
	p.Keywords = append([]string(nil), p.Keywords...)
	return p
}

// renderProperties writes both property parts and makes sure the package
// relationships and manifest point at them.
func (c *Composer) renderProperties(put func(string, *etree.Document) error, overrides map[string]string) error {
	core, err := corePropertiesDocument(c.props, c.now())
	if err != nil {
		return &PackagingError{Part: partCoreProps, Cause: err}
	}
	app, err := appPropertiesDocument(c.props)
	if err != nil {
		return &PackagingError{Part: partAppProps, Cause: err}
	}

	for _, p := range []struct {
		part, relType, contentType string
		doc                        *etree.Document
	}{
		{partCoreProps, RelTypeCoreProps, contentTypeCore, core},
		{partAppProps, RelTypeExtendedProps, contentTypeApp, app},
	} {
		part := p.part
		if rel, ok := c.pkgRels.ByType(p.relType); ok {
			part = strings.TrimPrefix(rel.Target, "/")
		} else if _, err := c.pkgRels.Register(p.part, p.relType, false); err != nil {
			return &PackagingError{Part: partPackageRels, Cause: err}
		}
		if err := put(part, p.doc); err != nil {
			return err
		}
		overrides["/"+part] = p.contentType
	}
	return nil
}

func corePropertiesDocument(p Properties, now time.Time) (*etree.Document, error) {
	stamp := now.UTC().Format(time.RFC3339)
	root := newPartRoot("cp:coreProperties", corePropsScope...)
	b := tree.NewBuilder(nil).WithScope(corePropsScope...)

	children := []*tree.Element{
		tree.E("dc:title", tree.T(p.Title)),
		tree.E("dc:subject", tree.T(p.Subject)),
		tree.E("dc:creator", tree.T(p.Creator)),
		tree.E("cp:keywords", tree.T(strings.Join(p.Keywords, ", "))),
		tree.E("dc:description", tree.T(p.Description)),
		tree.E("cp:category", tree.T(p.Category)),
		tree.E("cp:lastModifiedBy", tree.T(p.Creator)),
		tree.E("dcterms:created", tree.A("xsi:type", "dcterms:W3CDTF"), tree.T(stamp)),
		tree.E("dcterms:modified", tree.A("xsi:type", "dcterms:W3CDTF"), tree.T(stamp)),
	}
	els, err := b.BuildAll(children...)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		root.AddChild(el)
	}
	return newXMLDocument(root), nil
}

func appPropertiesDocument(p Properties) (*etree.Document, error) {
	root := etree.NewElement("Properties")
	root.CreateAttr("xmlns", tree.NSExtendedProps)
	root.CreateAttr("xmlns:vt", tree.NSDocPropsVT)
	b := tree.NewBuilder(nil).WithScope("vt")

	els, err := b.BuildAll(
		tree.E("Application", tree.T(Application)),
		tree.E("DocSecurity", tree.T("0")),
		tree.E("ScaleCrop", tree.T("false")),
		tree.E("Company", tree.T(p.Company)),
		tree.E("LinksUpToDate", tree.T("false")),
		tree.E("SharedDoc", tree.T("false")),
		tree.E("HyperlinksChanged", tree.T("false")),
		tree.E("AppVersion", tree.T("16.0000")),
	)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		root.AddChild(el)
	}
	return newXMLDocument(root), nil
}
