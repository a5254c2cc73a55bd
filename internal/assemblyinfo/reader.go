package assemblyinfo

import (
	"debug/pe"
	"fmt"
	"sync"
)

// VersionReader reads the assembly version of a library file.
type VersionReader interface {
	ReadVersion(path string) (Version, error)
}

// PEReader reads versions from PE files carrying CLI metadata.
type PEReader struct{}

const comDescriptorDirectory = 14

// ReadVersion opens path and returns the version of its Assembly table row.
func (PEReader) ReadVersion(path string) (Version, error) {
	f, err := pe.Open(path)
	if err != nil {
		return Version{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	meta, err := cliMetadata(f)
	if err != nil {
		return Version{}, fmt.Errorf("%s: %w", path, err)
	}
	v, err := parseAssemblyVersion(meta)
	if err != nil {
		return Version{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// cliMetadata returns the metadata block referenced by the CLI header.
func cliMetadata(f *pe.File) ([]byte, error) {
	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes <= comDescriptorDirectory {
			return nil, fmt.Errorf("no CLI header")
		}
		dir = oh.DataDirectory[comDescriptorDirectory]
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes <= comDescriptorDirectory {
			return nil, fmt.Errorf("no CLI header")
		}
		dir = oh.DataDirectory[comDescriptorDirectory]
	default:
		return nil, fmt.Errorf("no optional header")
	}
	if dir.VirtualAddress == 0 || dir.Size < 16 {
		return nil, fmt.Errorf("not a managed assembly")
	}

	header, err := readRVA(f, dir.VirtualAddress, 16)
	if err != nil {
		return nil, fmt.Errorf("CLI header: %w", err)
	}
	le := littleEndian(header)
	metaRVA, metaSize := le.u32(8), le.u32(12)
	if metaRVA == 0 || metaSize == 0 {
		return nil, fmt.Errorf("CLI header has no metadata")
	}
	return readRVA(f, metaRVA, metaSize)
}

// readRVA reads size bytes at a relative virtual address.
func readRVA(f *pe.File, rva, size uint32) ([]byte, error) {
	for _, s := range f.Sections {
		span := s.VirtualSize
		if s.Size > span {
			span = s.Size
		}
		if rva < s.VirtualAddress || rva >= s.VirtualAddress+span {
			continue
		}
		off := rva - s.VirtualAddress
		if uint64(off)+uint64(size) > uint64(s.Size) {
			return nil, fmt.Errorf("rva %#x+%d exceeds section %s", rva, size, s.Name)
		}
		buf := make([]byte, size)
		if _, err := s.ReadAt(buf, int64(off)); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return nil, fmt.Errorf("rva %#x not in any section", rva)
}

// CachingReader memoizes another reader per path. It is safe for concurrent use.
type CachingReader struct {
	next  VersionReader
	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	v   Version
	err error
}

func NewCachingReader(next VersionReader) *CachingReader {
	return &CachingReader{next: next, cache: make(map[string]cached)}
}

func (c *CachingReader) ReadVersion(path string) (Version, error) {
	c.mu.Lock()
	if hit, ok := c.cache[path]; ok {
		c.mu.Unlock()
		return hit.v, hit.err
	}
	c.mu.Unlock()

	v, err := c.next.ReadVersion(path)

	c.mu.Lock()
	c.cache[path] = cached{v: v, err: err}
	c.mu.Unlock()
	return v, err
}
