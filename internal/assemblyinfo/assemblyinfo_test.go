package assemblyinfo

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type buf struct{ b []byte }

func (w *buf) u8(v byte)    { w.b = append(w.b, v) }
func (w *buf) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *buf) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *buf) u64(v uint64) { w.b = binary.LittleEndian.AppendUint64(w.b, v) }
func (w *buf) zero(n int)   { w.b = append(w.b, make([]byte, n)...) }

// tablesStream builds a "#~" stream with the given row counts. Rows are zero-filled
// except the Assembly row, which carries version.
func tablesStream(heapSizes byte, rows map[int]uint32, rowSizes map[int]int, version Version) []byte {
	var w buf
	w.u32(0)
	w.u8(2)
	w.u8(0)
	w.u8(heapSizes)
	w.u8(1)
	var valid uint64
	for t := range rows {
		valid |= 1 << uint(t)
	}
	w.u64(valid)
	w.u64(0)
	for t := 0; t < 64; t++ {
		if n, ok := rows[t]; ok {
			w.u32(n)
		}
	}
	for t := 0; t < tAssembly; t++ {
		w.zero(rowSizes[t] * int(rows[t]))
	}
	w.u32(0x8004) // HashAlgId
	w.u16(version.Major)
	w.u16(version.Minor)
	w.u16(version.Build)
	w.u16(version.Revision)
	w.zero(16)
	return w.b
}

func metadataRoot(stream []byte) []byte {
	var w buf
	w.u32(metadataSignature)
	w.u16(1)
	w.u16(1)
	w.u32(0)
	version := []byte("v4.0.30319\x00\x00")
	w.u32(uint32(len(version)))
	w.b = append(w.b, version...)
	w.u16(0)
	w.u16(2)

	// Two stream headers: "#Strings" (ignored) and "#~".
	headerLen := 8 + 12 + 8 + 4
	start := len(w.b) + headerLen
	w.u32(uint32(start))
	w.u32(0)
	w.b = append(w.b, []byte("#Strings\x00\x00\x00\x00")...)
	w.u32(uint32(start))
	w.u32(uint32(len(stream)))
	w.b = append(w.b, []byte("#~\x00\x00")...)
	w.b = append(w.b, stream...)
	return w.b
}

func TestParseAssemblyVersion_ModuleAndAssemblyOnly(t *testing.T) {
	want := Version{Major: 13, Minor: 0, Build: 0, Revision: 0}
	stream := tablesStream(0, map[int]uint32{tModule: 1, tAssembly: 1}, map[int]int{tModule: 10}, want)

	got, err := parseAssemblyVersion(metadataRoot(stream))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseAssemblyVersion_WideHeapsAndCodedIndexes(t *testing.T) {
	want := Version{Major: 1, Minor: 2, Build: 3, Revision: 4}
	// Wide string/guid/blob heaps; 70000 TypeRefs make TypeDefOrRef (2 tag bits) four bytes wide.
	rows := map[int]uint32{tModule: 1, tTypeRef: 70000, tTypeDef: 3, tField: 2, tMethodDef: 5, tCustomAttribute: 4, tAssembly: 1}
	sizes := map[int]int{
		tModule:          2 + 4 + 3*4,
		tTypeRef:         4 + 2*4,
		tTypeDef:         4 + 2*4 + 4 + 2 + 2,
		tField:           2 + 4 + 4,
		tMethodDef:       4 + 2 + 2 + 4 + 4 + 2,
		tCustomAttribute: 4 + 2 + 4,
	}

	got, err := parseAssemblyVersion(metadataRoot(tablesStream(0x07, rows, sizes, want)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSizer_RowSizes(t *testing.T) {
	var rows [64]uint32
	rows[tTypeDef] = 10
	s := sizer{rows: rows}

	n, err := s.rowSize(tTypeDef)
	require.NoError(t, err)
	assert.Equal(t, 4+2+2+2+2+2, n)

	rows[tMethodDef] = 1 << 15
	s = sizer{rows: rows}
	n, err = s.rowSize(tMemberRef)
	require.NoError(t, err)
	// MemberRefParent has 3 tag bits: 2^15 rows do not fit in 13 bits.
	assert.Equal(t, 4+2+2, n)

	_, err = s.rowSize(0x21)
	assert.Error(t, err)
}

func TestParseAssemblyVersion_Errors(t *testing.T) {
	_, err := parseAssemblyVersion([]byte("nope"))
	assert.Error(t, err)

	var w buf
	w.u32(0)
	w.u8(2)
	w.u8(0)
	w.u8(0)
	w.u8(1)
	w.u64(1 << tModule)
	w.u64(0)
	w.u32(1)
	w.zero(10)
	_, err = parseAssemblyVersion(metadataRoot(w.b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no assembly manifest")
}

func TestPEReader_NotAPEFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.dll")
	require.NoError(t, os.WriteFile(path, []byte("not a pe file"), 0o600))

	_, err := PEReader{}.ReadVersion(path)
	assert.Error(t, err)
}

func TestVersion_CompareAndParse(t *testing.T) {
	a, err := ParseVersion("12.0.1")
	require.NoError(t, err)
	assert.Equal(t, "12.0.1.0", a.String())

	b, err := ParseVersion("13.0.0.0")
	require.NoError(t, err)
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))

	_, err = ParseVersion("1.x")
	assert.Error(t, err)
	_, err = ParseVersion("")
	assert.Error(t, err)
	_, err = ParseVersion("1.2.3.4.5")
	assert.Error(t, err)
}

type countingReader struct {
	mu    sync.Mutex
	calls int
}

func (c *countingReader) ReadVersion(path string) (Version, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if path == "bad" {
		return Version{}, errors.New("unreadable")
	}
	return Version{Major: 1}, nil
}

func TestCachingReader(t *testing.T) {
	inner := &countingReader{}
	r := NewCachingReader(inner)

	for i := 0; i < 3; i++ {
		v, err := r.ReadVersion("a.dll")
		require.NoError(t, err)
		assert.Equal(t, uint16(1), v.Major)
		_, err = r.ReadVersion("bad")
		assert.Error(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}
