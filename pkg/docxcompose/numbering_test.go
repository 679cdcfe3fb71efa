package docxcompose

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func templateNums(n int) map[int]int {
	nums := make(map[int]int, n)
	for i := 1; i <= n; i++ {
		nums[i] = 0
	}
	return nums
}

func TestNumberFormat(t *testing.T) {
	tests := map[string]string{
		"arabic":     "decimal",
		"loweralpha": "lowerLetter",
		"upperalpha": "upperLetter",
		"lowerroman": "lowerRoman",
		"upperroman": "upperRoman",
		"":           "decimal",
		"klingon":    "decimal",
	}
	for keyword, want := range tests {
		assert.Equal(t, want, NumberFormat(keyword), keyword)
	}
}

func TestNextListIDAboveTemplate(t *testing.T) {
	a := NewNumberingAllocator(templateNums(5), 1, zap.NewNop())

	seen := map[int]bool{}
	for i := 0; i < 10; i++ {
		id := a.NextListID()
		assert.Greater(t, id, 5)
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
}

func TestTwoListsGetConsecutiveIDs(t *testing.T) {
	a := NewNumberingAllocator(templateNums(5), 1, nil)

	first := a.NextListID()
	require.NoError(t, a.DefineEnumerated(first, 1, "%1.", "arabic"))
	second := a.NextListID()
	require.NoError(t, a.DefineEnumerated(second, 1, "(%1)", "loweralpha"))

	assert.Equal(t, 6, first)
	assert.Equal(t, 7, second)
	assert.True(t, a.Resolves(6))
	assert.True(t, a.Resolves(7))
	assert.Equal(t, []int{6, 7}, a.SessionIDs())
}

func TestDefineBridgesGap(t *testing.T) {
	a := NewNumberingAllocator(templateNums(5), 1, nil)
	require.NoError(t, a.DefineEnumerated(6, 1, "%1.", "arabic"))

	require.NoError(t, a.DefineEnumerated(9, 1, "%1)", "upperroman"))
	for _, id := range []int{7, 8, 9} {
		assert.True(t, a.Resolves(id), "numId %d should resolve", id)
	}
	assert.Equal(t, 9, a.MaxID())

	// the bridged ids share one placeholder definition
	assert.Equal(t, a.nums[7].abstractID, a.nums[8].abstractID)
	assert.NotEqual(t, a.nums[7].abstractID, a.nums[9].abstractID)
	assert.True(t, a.nums[7].placeholder)

	next := a.NextListID()
	assert.Equal(t, 10, next)
}

func TestBridgeGapIsNoOpForAdjacentID(t *testing.T) {
	a := NewNumberingAllocator(templateNums(5), 1, nil)
	a.BridgeGap(6)
	assert.Empty(t, a.SessionIDs())
	assert.Equal(t, 5, a.MaxID())
}

func TestDefineConflicts(t *testing.T) {
	a := NewNumberingAllocator(templateNums(5), 1, nil)
	require.NoError(t, a.DefineEnumerated(6, 1, "%1.", "arabic"))

	t.Run("template id", func(t *testing.T) {
		err := a.DefineEnumerated(3, 1, "%1.", "arabic")
		require.Error(t, err)
		assert.True(t, IsNumberingConflict(err))
	})

	t.Run("different definition", func(t *testing.T) {
		err := a.DefineEnumerated(6, 2, "%1.", "arabic")
		require.Error(t, err)
		var conflict *NumberingConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, 6, conflict.NumID)
	})

	t.Run("same definition", func(t *testing.T) {
		assert.NoError(t, a.DefineEnumerated(6, 1, "%1.", "arabic"))
	})

	t.Run("placeholder", func(t *testing.T) {
		require.NoError(t, a.DefineEnumerated(9, 1, "%1.", "arabic"))
		err := a.DefineEnumerated(7, 1, "%1.", "arabic")
		assert.True(t, IsNumberingConflict(err))
	})

	t.Run("non-positive", func(t *testing.T) {
		assert.Error(t, a.DefineEnumerated(0, 1, "%1.", "arabic"))
	})

	t.Run("unused id in template range", func(t *testing.T) {
		sparse := NewNumberingAllocator(map[int]int{1: 0, 3: 0}, 0, nil)
		err := sparse.DefineEnumerated(2, 1, "%1.", "arabic")
		var conflict *NumberingConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, 2, conflict.NumID)
		assert.Contains(t, err.Error(), "template's id range")
		assert.Empty(t, sparse.SessionIDs())
		assert.Equal(t, 4, sparse.NextListID())
	})
}

func TestNextValue(t *testing.T) {
	a := NewNumberingAllocator(nil, 0, nil)
	id := a.NextListID()
	require.NoError(t, a.DefineEnumerated(id, 3, "%1.", "arabic"))
	assert.Equal(t, 3, a.NextValue(id))
	a.MarkItem(id)
	a.MarkItem(id)
	assert.Equal(t, 5, a.NextValue(id))
}

func TestMergeNumbering(t *testing.T) {
	tmpl := loadFixture(t)
	a := NewNumberingAllocator(tmpl.nums, tmpl.maxAbstractID, nil)
	require.NoError(t, a.DefineEnumerated(6, 4, "(%1)", "lowerroman"))
	require.NoError(t, a.DefineEnumerated(9, 1, "%1.", "arabic"))
	require.NoError(t, a.DefineBullet(a.NextListID()))

	doc, err := a.Merge(tmpl.numbering)
	require.NoError(t, err)
	root := doc.Root()

	// every abstractNum precedes every num
	lastAbstract, firstNum := -1, len(root.Child)
	for i, tok := range root.Child {
		el, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		switch el.Tag {
		case "abstractNum":
			lastAbstract = i
		case "num":
			if i < firstNum {
				firstNum = i
			}
		}
	}
	assert.Less(t, lastAbstract, firstNum)

	ids := map[string]string{}
	for _, num := range root.SelectElements("w:num") {
		ids[num.SelectAttrValue("w:numId", "")] = num.SelectElement("w:abstractNumId").SelectAttrValue("w:val", "")
	}
	for _, id := range []string{"1", "5", "6", "7", "8", "9", "10"} {
		assert.Contains(t, ids, id)
	}
	assert.Equal(t, ids["7"], ids["8"])

	abstracts := map[string]*etree.Element{}
	for _, abs := range root.SelectElements("w:abstractNum") {
		abstracts[abs.SelectAttrValue("w:abstractNumId", "")] = abs
	}
	six := abstracts[ids["6"]]
	require.NotNil(t, six)
	assert.Equal(t, "4", six.FindElement("w:lvl/w:start").SelectAttrValue("w:val", ""))
	assert.Equal(t, "lowerRoman", six.FindElement("w:lvl/w:numFmt").SelectAttrValue("w:val", ""))
	assert.Equal(t, "(%1)", six.FindElement("w:lvl/w:lvlText").SelectAttrValue("w:val", ""))

	bullet := abstracts[ids["10"]]
	require.NotNil(t, bullet)
	assert.Equal(t, "bullet", bullet.FindElement("w:lvl/w:numFmt").SelectAttrValue("w:val", ""))

	// the template document is untouched
	assert.Len(t, tmpl.numbering.Root().SelectElements("w:num"), 5)
}

func TestMergeBeforeCleanupMarker(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<w:numbering `+nsW+`>`+
		`<w:abstractNum w:abstractNumId="0"/><w:numIdMacAtCleanup w:val="0"/></w:numbering>`))

	a := NewNumberingAllocator(nil, 0, nil)
	require.NoError(t, a.DefineEnumerated(a.NextListID(), 1, "%1.", "arabic"))
	merged, err := a.Merge(doc)
	require.NoError(t, err)

	children := merged.Root().ChildElements()
	require.Len(t, children, 4)
	assert.Equal(t, "abstractNum", children[0].Tag)
	assert.Equal(t, "abstractNum", children[1].Tag)
	assert.Equal(t, "num", children[2].Tag)
	assert.Equal(t, "numIdMacAtCleanup", children[3].Tag)
	// built elements reuse the root's w declaration
	assert.Nil(t, children[2].SelectAttr("xmlns:w"))
}
