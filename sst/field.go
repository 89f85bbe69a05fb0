// Package sst implements the Shared State Table of spec.md §3/§4.3: a
// row-per-peer table of typed fields, local index = my row, with put,
// put_with_completion, sync_with_members, and a predicate/observer
// subsystem.
package sst

import "encoding/binary"

// FieldID identifies a field by its position in the row layout declared at
// table construction.
type FieldID int

// FieldKind distinguishes a scalar field from a vector field, per spec.md
// §3 "Field".
type FieldKind int

const (
	Scalar FieldKind = iota
	Vector
)

// FieldSpec declares one field of the row layout. ElemWidth is the byte
// width of the field's (sole, for Scalar) element; Count is the number of
// elements (1 for Scalar, the vector's fixed length for Vector).
type FieldSpec struct {
	Name      string
	Kind      FieldKind
	ElemWidth int
	Count     int
}

// Width is the total byte width this field contributes to the row stride.
func (f FieldSpec) Width() int { return f.ElemWidth * f.Count }

// ScalarU32 declares a 4-byte scalar field.
func ScalarU32(name string) FieldSpec { return FieldSpec{Name: name, Kind: Scalar, ElemWidth: 4, Count: 1} }

// ScalarU64 declares an 8-byte scalar field.
func ScalarU64(name string) FieldSpec { return FieldSpec{Name: name, Kind: Scalar, ElemWidth: 8, Count: 1} }

// VectorU32 declares a vector field of count 4-byte elements.
func VectorU32(name string, count int) FieldSpec {
	return FieldSpec{Name: name, Kind: Vector, ElemWidth: 4, Count: count}
}

// VectorU64 declares a vector field of count 8-byte elements.
func VectorU64(name string, count int) FieldSpec {
	return FieldSpec{Name: name, Kind: Vector, ElemWidth: 8, Count: count}
}

// fieldLayout is a FieldSpec together with its resolved byte offset within
// the row, per spec.md §4.3 "Row layout is declared once at table creation
// by enumerating fields in a fixed order".
type fieldLayout struct {
	FieldSpec
	Offset int
}

func layoutFields(specs []FieldSpec) ([]fieldLayout, int) {
	var layout = make([]fieldLayout, len(specs))
	var offset int
	for i, spec := range specs {
		layout[i] = fieldLayout{FieldSpec: spec, Offset: offset}
		offset += spec.Width()
	}
	return layout, offset
}

func getUint32At(buf []byte, off int) uint32 { return binary.BigEndian.Uint32(buf[off : off+4]) }
func putUint32At(buf []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(buf[off:off+4], v)
}
func getUint64At(buf []byte, off int) uint64 { return binary.BigEndian.Uint64(buf[off : off+8]) }
func putUint64At(buf []byte, off int, v uint64) {
	binary.BigEndian.PutUint64(buf[off:off+8], v)
}
