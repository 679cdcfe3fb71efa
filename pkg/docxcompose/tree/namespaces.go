package tree

// Namespace URIs used by the package parts the composer writes.
const (
	NSWordML        = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSWordDrawing   = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NSDrawingML     = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPicture       = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	NSPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	NSCoreProps     = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	NSExtendedProps = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"
	NSDocPropsVT    = "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"
)

// DefaultNamespaces maps the conventional prefixes to their URIs.
var DefaultNamespaces = map[string]string{
	"w":        NSWordML,
	"r":        NSRelationships,
	"wp":       NSWordDrawing,
	"a":        NSDrawingML,
	"pic":      NSPicture,
	"wp14":     "http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing",
	"a14":      "http://schemas.microsoft.com/office/drawing/2010/main",
	"mc":       "http://schemas.openxmlformats.org/markup-compatibility/2006",
	"m":        "http://schemas.openxmlformats.org/officeDocument/2006/math",
	"v":        "urn:schemas-microsoft-com:vml",
	"o":        "urn:schemas-microsoft-com:office:office",
	"w10":      "urn:schemas-microsoft-com:office:word",
	"w14":      "http://schemas.microsoft.com/office/word/2010/wordml",
	"w15":      "http://schemas.microsoft.com/office/word/2012/wordml",
	"wne":      "http://schemas.microsoft.com/office/word/2006/wordml",
	"wps":      "http://schemas.microsoft.com/office/word/2010/wordprocessingShape",
	"cp":       NSCoreProps,
	"dc":       "http://purl.org/dc/elements/1.1/",
	"dcterms":  "http://purl.org/dc/terms/",
	"dcmitype": "http://purl.org/dc/dcmitype/",
	"xsi":      "http://www.w3.org/2001/XMLSchema-instance",
	"vt":       NSDocPropsVT,
}
