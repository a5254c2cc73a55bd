package assemblyinfo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
)

const metadataSignature = 0x424A5342 // "BSJB"

// Metadata table numbers used by the row-size computation.
const (
	tModule                 = 0x00
	tTypeRef                = 0x01
	tTypeDef                = 0x02
	tFieldPtr               = 0x03
	tField                  = 0x04
	tMethodPtr              = 0x05
	tMethodDef              = 0x06
	tParamPtr               = 0x07
	tParam                  = 0x08
	tInterfaceImpl          = 0x09
	tMemberRef              = 0x0A
	tConstant               = 0x0B
	tCustomAttribute        = 0x0C
	tFieldMarshal           = 0x0D
	tDeclSecurity           = 0x0E
	tClassLayout            = 0x0F
	tFieldLayout            = 0x10
	tStandAloneSig          = 0x11
	tEventMap               = 0x12
	tEventPtr               = 0x13
	tEvent                  = 0x14
	tPropertyMap            = 0x15
	tPropertyPtr            = 0x16
	tProperty               = 0x17
	tMethodSemantics        = 0x18
	tMethodImpl             = 0x19
	tModuleRef              = 0x1A
	tTypeSpec               = 0x1B
	tImplMap                = 0x1C
	tFieldRVA               = 0x1D
	tEncLog                 = 0x1E
	tEncMap                 = 0x1F
	tAssembly               = 0x20
	tAssemblyRef            = 0x23
	tFile                   = 0x26
	tExportedType           = 0x27
	tManifestResource       = 0x28
	tGenericParam           = 0x2A
	tMethodSpec             = 0x2B
	tGenericParamConstraint = 0x2C
	tNone                   = -1
)

// Coded index tag tables. tNone marks tag values that do not map to a table.
var (
	ciTypeDefOrRef       = []int{tTypeDef, tTypeRef, tTypeSpec}
	ciHasConstant        = []int{tField, tParam, tProperty}
	ciResolutionScope    = []int{tModule, tModuleRef, tAssemblyRef, tTypeRef}
	ciMemberRefParent    = []int{tTypeDef, tTypeRef, tModuleRef, tMethodDef, tTypeSpec}
	ciHasFieldMarshal    = []int{tField, tParam}
	ciHasDeclSecurity    = []int{tTypeDef, tMethodDef, tAssembly}
	ciHasSemantics       = []int{tEvent, tProperty}
	ciMethodDefOrRef     = []int{tMethodDef, tMemberRef}
	ciMemberForwarded    = []int{tField, tMethodDef}
	ciCustomAttrType     = []int{tNone, tNone, tMethodDef, tMemberRef, tNone}
	ciHasCustomAttribute = []int{
		tMethodDef, tField, tTypeRef, tTypeDef, tParam, tInterfaceImpl, tMemberRef, tModule,
		tDeclSecurity, tProperty, tEvent, tStandAloneSig, tModuleRef, tTypeSpec, tAssembly,
		tAssemblyRef, tFile, tExportedType, tManifestResource, tGenericParam,
		tGenericParamConstraint, tMethodSpec,
	}
)

type littleEndian []byte

func (b littleEndian) u16(off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
func (b littleEndian) u32(off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

// parseAssemblyVersion finds the tables stream in a metadata root and reads the
// version of the Assembly row.
func parseAssemblyVersion(meta []byte) (Version, error) {
	if len(meta) < 16 || littleEndian(meta).u32(0) != metadataSignature {
		return Version{}, fmt.Errorf("invalid metadata signature")
	}
	versionLen := int(littleEndian(meta).u32(12))
	off := 16 + versionLen
	if off+4 > len(meta) {
		return Version{}, fmt.Errorf("truncated metadata root")
	}
	streams := int(littleEndian(meta).u16(off + 2))
	off += 4

	for i := 0; i < streams; i++ {
		if off+8 > len(meta) {
			return Version{}, fmt.Errorf("truncated stream header")
		}
		sOff := int(littleEndian(meta).u32(off))
		sSize := int(littleEndian(meta).u32(off + 4))
		nameEnd := bytes.IndexByte(meta[off+8:], 0)
		if nameEnd < 0 {
			return Version{}, fmt.Errorf("unterminated stream name")
		}
		name := string(meta[off+8 : off+8+nameEnd])
		// Names are padded to a four byte boundary including the terminator.
		off += 8 + (nameEnd+4)&^3

		if name != "#~" && name != "#-" {
			continue
		}
		if sOff < 0 || sSize < 0 || sOff+sSize > len(meta) {
			return Version{}, fmt.Errorf("tables stream out of range")
		}
		return tablesAssemblyVersion(meta[sOff : sOff+sSize])
	}
	return Version{}, fmt.Errorf("no tables stream")
}

// tablesAssemblyVersion walks the row counts of a tables stream to the Assembly table.
func tablesAssemblyVersion(stream []byte) (Version, error) {
	if len(stream) < 24 {
		return Version{}, fmt.Errorf("truncated tables header")
	}
	le := littleEndian(stream)
	heapSizes := stream[6]
	valid := binary.LittleEndian.Uint64(stream[8:])

	var rows [64]uint32
	off := 24
	for t := 0; t < 64; t++ {
		if valid&(1<<uint(t)) == 0 {
			continue
		}
		if off+4 > len(stream) {
			return Version{}, fmt.Errorf("truncated row counts")
		}
		rows[t] = le.u32(off)
		off += 4
	}
	if heapSizes&0x40 != 0 {
		// Uncompressed streams may carry four extra bytes.
		off += 4
	}
	if rows[tAssembly] == 0 {
		return Version{}, fmt.Errorf("no assembly manifest")
	}

	sz := sizer{rows: rows, heapSizes: heapSizes}
	for t := 0; t < tAssembly; t++ {
		if rows[t] == 0 {
			continue
		}
		rs, err := sz.rowSize(t)
		if err != nil {
			return Version{}, err
		}
		off += rs * int(rows[t])
	}

	// HashAlgId (4) precedes the four version parts.
	if off+12 > len(stream) {
		return Version{}, fmt.Errorf("assembly row out of range")
	}
	return Version{
		Major:    le.u16(off + 4),
		Minor:    le.u16(off + 6),
		Build:    le.u16(off + 8),
		Revision: le.u16(off + 10),
	}, nil
}

type sizer struct {
	rows      [64]uint32
	heapSizes byte
}

func (s sizer) str() int {
	if s.heapSizes&0x01 != 0 {
		return 4
	}
	return 2
}

func (s sizer) guid() int {
	if s.heapSizes&0x02 != 0 {
		return 4
	}
	return 2
}

func (s sizer) blob() int {
	if s.heapSizes&0x04 != 0 {
		return 4
	}
	return 2
}

func (s sizer) idx(table int) int {
	if s.rows[table] > 0xFFFF {
		return 4
	}
	return 2
}

func (s sizer) coded(tables []int) int {
	tagBits := bits.Len(uint(len(tables) - 1))
	var maxRows uint32
	for _, t := range tables {
		if t != tNone && s.rows[t] > maxRows {
			maxRows = s.rows[t]
		}
	}
	if maxRows < 1<<(16-tagBits) {
		return 2
	}
	return 4
}

// rowSize returns the byte size of one row of the tables preceding Assembly.
func (s sizer) rowSize(t int) (int, error) {
	switch t {
	case tModule:
		return 2 + s.str() + 3*s.guid(), nil
	case tTypeRef:
		return s.coded(ciResolutionScope) + 2*s.str(), nil
	case tTypeDef:
		return 4 + 2*s.str() + s.coded(ciTypeDefOrRef) + s.idx(tField) + s.idx(tMethodDef), nil
	case tFieldPtr:
		return s.idx(tField), nil
	case tField:
		return 2 + s.str() + s.blob(), nil
	case tMethodPtr:
		return s.idx(tMethodDef), nil
	case tMethodDef:
		return 4 + 2 + 2 + s.str() + s.blob() + s.idx(tParam), nil
	case tParamPtr:
		return s.idx(tParam), nil
	case tParam:
		return 2 + 2 + s.str(), nil
	case tInterfaceImpl:
		return s.idx(tTypeDef) + s.coded(ciTypeDefOrRef), nil
	case tMemberRef:
		return s.coded(ciMemberRefParent) + s.str() + s.blob(), nil
	case tConstant:
		return 2 + s.coded(ciHasConstant) + s.blob(), nil
	case tCustomAttribute:
		return s.coded(ciHasCustomAttribute) + s.coded(ciCustomAttrType) + s.blob(), nil
	case tFieldMarshal:
		return s.coded(ciHasFieldMarshal) + s.blob(), nil
	case tDeclSecurity:
		return 2 + s.coded(ciHasDeclSecurity) + s.blob(), nil
	case tClassLayout:
		return 2 + 4 + s.idx(tTypeDef), nil
	case tFieldLayout:
		return 4 + s.idx(tField), nil
	case tStandAloneSig:
		return s.blob(), nil
	case tEventMap:
		return s.idx(tTypeDef) + s.idx(tEvent), nil
	case tEventPtr:
		return s.idx(tEvent), nil
	case tEvent:
		return 2 + s.str() + s.coded(ciTypeDefOrRef), nil
	case tPropertyMap:
		return s.idx(tTypeDef) + s.idx(tProperty), nil
	case tPropertyPtr:
		return s.idx(tProperty), nil
	case tProperty:
		return 2 + s.str() + s.blob(), nil
	case tMethodSemantics:
		return 2 + s.idx(tMethodDef) + s.coded(ciHasSemantics), nil
	case tMethodImpl:
		return s.idx(tTypeDef) + 2*s.coded(ciMethodDefOrRef), nil
	case tModuleRef:
		return s.str(), nil
	case tTypeSpec:
		return s.blob(), nil
	case tImplMap:
		return 2 + s.coded(ciMemberForwarded) + s.str() + s.idx(tModuleRef), nil
	case tFieldRVA:
		return 4 + s.idx(tField), nil
	case tEncLog:
		return 8, nil
	case tEncMap:
		return 4, nil
	default:
		return 0, fmt.Errorf("unknown metadata table %#x", t)
	}
}
