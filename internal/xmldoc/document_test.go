package xmldoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

const protocolTemplate = `<?xml version="1.0" encoding="utf-8" ?>
<Protocol xmlns="http://www.skyline.be/protocol">
	<Name>Demo</Name>
	<QActions>
		<QAction id="1" name="QAction 1" encoding="csharp" />
		<QAction id="2" name="Two" encoding="csharp"></QAction>
		<QAction id="3" name="Three" encoding="jscript"><![CDATA[x]]></QAction>
	</QActions>
</Protocol>
`

func TestParse_ElementsAndSpans(t *testing.T) {
	doc, err := Parse("protocol.xml", []byte(protocolTemplate))
	require.NoError(t, err)

	assert.Equal(t, "Protocol", doc.Root().Name)
	assert.Equal(t, "Demo", doc.FindText("Name"))
	assert.Equal(t, "\n", doc.Newline())
	assert.Equal(t, "\t", doc.IndentUnit())
	assert.Equal(t, "utf-8", doc.Encoding())

	qactions := doc.Find("QActions", "QAction")
	require.Len(t, qactions, 3)

	first := qactions[0]
	assert.True(t, first.SelfClosing)
	assert.True(t, first.IsEmpty())
	assert.Equal(t, "\t\t", doc.Indent(first))
	id, ok := first.Attr("id")
	require.True(t, ok)
	assert.Equal(t, "1", id)
	assert.Equal(t, first.Start.End, first.End.Start)
	assert.Equal(t, 0, first.End.Len())

	second := qactions[1]
	assert.False(t, second.SelfClosing)
	assert.True(t, second.IsEmpty())
	assert.Equal(t, 0, second.Inner.Len())

	third := qactions[2]
	assert.False(t, third.IsEmpty())
	assert.Equal(t, "x", third.Text())

	attr, ok := first.AttrSpan("name")
	require.True(t, ok)
	assert.Equal(t, `name="QAction 1"`, protocolTemplate[attr.Span.Start:attr.Span.End])
	assert.Equal(t, "QAction 1", protocolTemplate[attr.ValueSpan.Start:attr.ValueSpan.End])
}

func TestParse_CommentsCountAsContent(t *testing.T) {
	doc, err := Parse("t.xml", []byte("<a><b><!-- c --></b><c>  </c></a>"))
	require.NoError(t, err)

	b, ok := doc.Child(doc.Root(), "b")
	require.True(t, ok)
	assert.False(t, b.IsEmpty())

	c, ok := doc.Child(doc.Root(), "c")
	require.True(t, ok)
	assert.True(t, c.IsEmpty())
}

func TestParse_BlankCDATACountsAsContent(t *testing.T) {
	doc, err := Parse("t.xml", []byte("<a><b><![CDATA[   ]]></b><c><![CDATA[]]></c><d>\n\t</d></a>"))
	require.NoError(t, err)

	for _, name := range []string{"b", "c"} {
		el, ok := doc.Child(doc.Root(), name)
		require.True(t, ok)
		assert.False(t, el.IsEmpty(), name)
	}

	d, ok := doc.Child(doc.Root(), "d")
	require.True(t, ok)
	assert.True(t, d.IsEmpty())
}

func TestParse_PrologComments(t *testing.T) {
	doc, err := Parse("t.xml", []byte("<?xml version=\"1.0\"?>\n<!--history-->\n<a/>"))
	require.NoError(t, err)
	assert.Equal(t, []string{"history"}, doc.PrologComments())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("broken.xml", []byte("<a><b></a>"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = Parse("empty.xml", []byte("   "))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestParse_SpaceIndentation(t *testing.T) {
	doc, err := Parse("t.xml", []byte("<a>\n  <b>\n    <c/>\n  </b>\n</a>\n"))
	require.NoError(t, err)
	assert.Equal(t, "  ", doc.IndentUnit())
}

func TestCDATA_SplitsTerminator(t *testing.T) {
	assert.Equal(t, "<![CDATA[plain]]>", CDATA("plain"))
	assert.Equal(t, "<![CDATA[a]]]]><![CDATA[>b]]>", CDATA("a]]>b"))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt;", EscapeText("a & b <c>"))
	assert.Equal(t, "&quot;q&quot; &amp;", EscapeAttr(`"q" &`))
}
