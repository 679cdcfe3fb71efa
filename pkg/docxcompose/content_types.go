package docxcompose

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

const (
	contentTypeRels      = "application/vnd.openxmlformats-package.relationships+xml"
	contentTypeXML       = "application/xml"
	contentTypeFootnotes = "application/vnd.openxmlformats-officedocument.wordprocessingml.footnotes+xml"
	contentTypeCore      = "application/vnd.openxmlformats-package.core-properties+xml"
	contentTypeApp       = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
)

// defaultContentTypes are declared in every output manifest.
var defaultContentTypes = []struct{ ext, contentType string }{
	{"rels", contentTypeRels},
	{"xml", contentTypeXML},
	{"jpeg", "image/jpeg"},
	{"jpg", "image/jpeg"},
	{"gif", "image/gif"},
	{"png", "image/png"},
}

// imageContentTypes lists the image extensions the composer can embed.
var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// buildContentTypes derives the output manifest from the template's. The
// template's explicit entries are kept; the standard defaults are added,
// overrides are added for created parts, and every part must end up
// covered by an override or an extension default.
func buildContentTypes(base *etree.Document, parts []string, overrides map[string]string) (*etree.Document, error) {
	doc := base.Copy()
	root := doc.Root()
	if root.Tag != "Types" {
		return nil, &PackagingError{Part: partContentTypes, Cause: fmt.Errorf("unexpected root element %s", root.FullTag())}
	}

	defaults := make(map[string]bool)
	explicit := make(map[string]bool)
	lastDefault := -1
	for i, tok := range root.Child {
		el, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		switch el.Tag {
		case "Default":
			defaults[strings.ToLower(el.SelectAttrValue("Extension", ""))] = true
			lastDefault = i
		case "Override":
			explicit[el.SelectAttrValue("PartName", "")] = true
		}
	}

	addDefault := func(ext, contentType string) {
		el := etree.NewElement("Default")
		el.CreateAttr("Extension", ext)
		el.CreateAttr("ContentType", contentType)
		lastDefault++
		root.InsertChildAt(lastDefault, el)
		defaults[ext] = true
	}

	for _, d := range defaultContentTypes {
		if !defaults[d.ext] {
			addDefault(d.ext, d.contentType)
		}
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if explicit[name] {
			continue
		}
		el := root.CreateElement("Override")
		el.CreateAttr("PartName", name)
		el.CreateAttr("ContentType", overrides[name])
		explicit[name] = true
	}

	for _, part := range parts {
		if explicit["/"+part] {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(part), "."))
		if defaults[ext] {
			continue
		}
		ct, ok := imageContentTypes[ext]
		if !ok {
			return nil, &PackagingError{Part: partContentTypes, Cause: fmt.Errorf("no content type for part %s", part)}
		}
		addDefault(ext, ct)
	}
	return doc, nil
}
