package xmldoc

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}

	declEncoding = regexp.MustCompile(`^<\?xml[^>]*?encoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
)

// codec converts between the stored bytes of a document and its UTF-8 text.
type codec struct {
	name string
	enc  encoding.Encoding // nil for UTF-8
	bom  []byte            // re-emitted verbatim for UTF-8 documents
}

// detectCodec picks the codec from the byte order mark or the XML declaration.
func detectCodec(data []byte) (codec, error) {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return codec{name: "utf-8", bom: utf8BOM}, nil
	case bytes.HasPrefix(data, utf16LEBOM):
		return codec{name: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)}, nil
	case bytes.HasPrefix(data, utf16BEBOM):
		return codec{name: "utf-16be", enc: unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)}, nil
	}

	m := declEncoding.FindSubmatch(data)
	if m == nil {
		return codec{name: "utf-8"}, nil
	}
	label := strings.ToLower(string(m[1]))
	if label == "utf-8" || label == "utf8" {
		return codec{name: "utf-8"}, nil
	}
	enc, name := charset.Lookup(label)
	if enc == nil {
		return codec{}, fmt.Errorf("unsupported document encoding %q", label)
	}
	if name == "utf-8" {
		return codec{name: name}, nil
	}
	return codec{name: name, enc: enc}, nil
}

// decode returns the UTF-8 text of data.
func (c codec) decode(data []byte) ([]byte, error) {
	if c.enc == nil {
		return append([]byte(nil), data[len(c.bom):]...), nil
	}
	out, err := c.enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return out, nil
}

// encode converts UTF-8 text back into the document encoding.
func (c codec) encode(text []byte) ([]byte, error) {
	if c.enc == nil {
		out := make([]byte, 0, len(c.bom)+len(text))
		out = append(out, c.bom...)
		return append(out, text...), nil
	}
	out, err := c.enc.NewEncoder().Bytes(text)
	if err != nil {
		return nil, fmt.Errorf("content not representable in %s: %w", c.name, err)
	}
	return out, nil
}

// identityCharsetReader accepts any declared charset; text is already UTF-8.
func identityCharsetReader(_ string, in io.Reader) (io.Reader, error) {
	return in, nil
}
