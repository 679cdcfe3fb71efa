package tree

import (
	"errors"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el)
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return s
}

func TestBuild_DeclaresOnlyUsedPrefixes(t *testing.T) {
	el, err := NewBuilder(nil).Build(E("w:p",
		E("w:r", E("w:t", T("hello"))),
	))
	require.NoError(t, err)

	assert.Equal(t, NSWordML, el.SelectAttrValue("xmlns:w", ""))
	assert.Nil(t, el.SelectAttr("xmlns:r"), "unused prefix must not be declared")

	r := el.SelectElement("w:r")
	require.NotNil(t, r)
	assert.Empty(t, r.Attr, "prefix declared by an ancestor is not repeated")
	assert.Equal(t, "hello", r.SelectElement("w:t").Text())
}

func TestBuild_AttributePrefixDeclaredWhereUsed(t *testing.T) {
	el, err := NewBuilder(nil).Build(E("w:hyperlink", A("r:id", "rId4"),
		E("w:r", E("w:t", T("link"))),
	))
	require.NoError(t, err)

	assert.Equal(t, NSWordML, el.SelectAttrValue("xmlns:w", ""))
	assert.Equal(t, NSRelationships, el.SelectAttrValue("xmlns:r", ""))
	assert.Equal(t, "rId4", el.SelectAttrValue("r:id", ""))
}

func TestBuild_WithScopeSkipsDeclarations(t *testing.T) {
	el, err := NewBuilder(nil).WithScope("w").Build(Val("w:pStyle", "Heading1"))
	require.NoError(t, err)
	assert.Equal(t, `<w:pStyle w:val="Heading1"/>`, render(t, el))
}

func TestBuild_ChildIntroducingNewPrefix(t *testing.T) {
	el, err := NewBuilder(nil).WithScope("w").Build(E("w:drawing",
		E("wp:inline", E("wp:extent", A("cx", "10"), A("cy", "20"))),
	))
	require.NoError(t, err)

	inline := el.SelectElement("wp:inline")
	require.NotNil(t, inline)
	assert.Equal(t, NSWordDrawing, inline.SelectAttrValue("xmlns:wp", ""))
	assert.Nil(t, inline.SelectElement("wp:extent").SelectAttr("xmlns:wp"))
}

func TestBuild_DefaultNamespaceAttribute(t *testing.T) {
	el, err := NewBuilder(nil).Build(E("Types", A("xmlns", NSContentTypes),
		E("Default", A("Extension", "xml"), A("ContentType", "application/xml")),
	))
	require.NoError(t, err)
	assert.Equal(t, NSContentTypes, el.SelectAttrValue("xmlns", ""))
	assert.Len(t, el.SelectElements("Default"), 1)
}

func TestBuild_MixedItemsKeepOrder(t *testing.T) {
	el, err := NewBuilder(nil).WithScope("w").Build(E("w:r",
		E("w:t", T("a")),
		E("w:br"),
		E("w:t", T("b")),
	))
	require.NoError(t, err)
	assert.Equal(t, `<w:r><w:t>a</w:t><w:br/><w:t>b</w:t></w:r>`, render(t, el))
}

func TestBuild_RawIsCopied(t *testing.T) {
	src := etree.NewDocument()
	require.NoError(t, src.ReadFromString(`<w:sectPr xmlns:w="`+NSWordML+`"><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`))

	el, err := NewBuilder(nil).Build(E("w:body", R(src.Root())))
	require.NoError(t, err)

	require.NotNil(t, el.SelectElement("w:sectPr"))
	assert.NotNil(t, src.Root(), "source element stays in its document")
	assert.Equal(t, src.Root(), src.Root().SelectElement("w:pgSz").Parent())
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name string
		elem *Element
	}{
		{"nil element", nil},
		{"empty tag", E("")},
		{"unknown prefix", E("zz:p")},
		{"double colon", E("w:p:q")},
		{"empty local name", E("w:")},
		{"empty attribute name", E("w:p", A("", "x"))},
		{"unknown attribute prefix", E("w:p", A("q:val", "x"))},
		{"manual prefixed declaration", E("w:p", A("xmlns:w", NSWordML))},
		{"nil child element", E("w:p", (*Element)(nil))},
		{"nil child interface", E("w:p", nil)},
		{"nil raw", E("w:p", Raw{})},
		{"deep failure", E("w:p", E("w:r", E("bogus:t")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := NewBuilder(nil).Build(tt.elem)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
			assert.Nil(t, el)
		})
	}
}

func TestBuild_ErrorMentionsPath(t *testing.T) {
	_, err := NewBuilder(nil).Build(E("w:p", E("w:r", E("bogus:t"))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "w:p/w:r/bogus:t")
}

func TestBuildAll(t *testing.T) {
	els, err := NewBuilder(nil).BuildAll(E("w:p"), E("w:p"))
	require.NoError(t, err)
	assert.Len(t, els, 2)

	_, err = NewBuilder(nil).BuildAll(E("w:p"), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestElementSet(t *testing.T) {
	e := E("w:ind", A("w:left", "10")).Set("w:left", "20").Set("w:hanging", "5")
	assert.Equal(t, []Attr{{"w:left", "20"}, {"w:hanging", "5"}}, e.Attrs)
}
