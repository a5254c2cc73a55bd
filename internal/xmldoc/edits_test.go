package xmldoc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEdits_ReplacementAndInsertion(t *testing.T) {
	src := []byte("<a><b/></a>")
	idx := bytes.Index(src, []byte("<b/>"))
	require.NotEqual(t, -1, idx)

	out, err := ApplyEdits(src, []Edit{
		{Start: idx, End: idx + len("<b/>"), Replacement: []byte("<b>x</b>")},
		{Start: idx, End: idx, Replacement: []byte("<!--n-->")},
	})
	require.NoError(t, err)
	require.Equal(t, "<a><!--n--><b>x</b></a>", string(out))
}

func TestApplyEdits_NoEditsCopies(t *testing.T) {
	src := []byte("<a/>")
	out, err := ApplyEdits(src, nil)
	require.NoError(t, err)
	require.Equal(t, src, out)
	out[0] = 'x'
	require.Equal(t, byte('<'), src[0])
}

func TestApplyEdits_RejectsOverlaps(t *testing.T) {
	src := []byte("0123456789")
	_, err := ApplyEdits(src, []Edit{
		{Start: 2, End: 6, Replacement: []byte("x")},
		{Start: 4, End: 8, Replacement: []byte("y")},
	})
	require.Error(t, err)

	_, err = ApplyEdits(src, []Edit{
		{Start: 3, End: 3, Replacement: []byte("x")},
		{Start: 3, End: 3, Replacement: []byte("y")},
	})
	require.Error(t, err)
}

func TestApplyEdits_RejectsOutOfBounds(t *testing.T) {
	_, err := ApplyEdits([]byte("abc"), []Edit{{Start: 1, End: 9}})
	require.Error(t, err)
	_, err = ApplyEdits([]byte("abc"), []Edit{{Start: 2, End: 1}})
	require.Error(t, err)
}
