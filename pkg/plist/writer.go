package plist

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"
)

const headerMagic = "bplist00"

// Object markers. High nibble selects the kind, low nibble carries the
// size or element count (0xF means the count follows as an int object).
const (
	markerFalse  = 0x08
	markerTrue   = 0x09
	markerInt    = 0x10
	markerReal   = 0x20
	markerData   = 0x40
	markerASCII  = 0x50
	markerUTF16  = 0x60
	markerArray  = 0xA0
	markerDict   = 0xD0
	markerCountX = 0x0F
)

// Marshal encodes a value tree as a binary property list.
func Marshal(v Value) ([]byte, error) {
	e := &encoder{}
	if _, err := e.flatten(v); err != nil {
		return nil, err
	}

	refSize := byteWidth(uint64(len(e.objects) - 1))

	var buf bytes.Buffer
	buf.WriteString(headerMagic)

	offsets := make([]uint64, len(e.objects))
	for i, obj := range e.objects {
		offsets[i] = uint64(buf.Len())
		e.encodeObject(&buf, obj, refSize)
	}

	tableOffset := uint64(buf.Len())
	offsetSize := byteWidth(tableOffset)
	for _, off := range offsets {
		writeSizedUint(&buf, off, offsetSize)
	}

	// Trailer: 5 unused bytes, sort version, offset size, ref size,
	// then object count, top object index and offset table offset as
	// big-endian 64-bit integers.
	var trailer [32]byte
	trailer[6] = byte(offsetSize)
	trailer[7] = byte(refSize)
	binary.BigEndian.PutUint64(trailer[8:16], uint64(len(e.objects)))
	binary.BigEndian.PutUint64(trailer[16:24], 0)
	binary.BigEndian.PutUint64(trailer[24:32], tableOffset)
	buf.Write(trailer[:])

	return buf.Bytes(), nil
}

// encObj is one entry of the flattened object table. Containers hold
// references to their children instead of the children themselves.
type encObj struct {
	v         Value
	keyRefs   []uint64 // dict keys (string objects)
	childRefs []uint64 // dict values or array elements
}

type encoder struct {
	objects []*encObj
}

// flatten appends v and its descendants to the object table,
// parent-first, and returns v's object index.
func (e *encoder) flatten(v Value) (uint64, error) {
	if v == nil {
		return 0, ErrNilValue
	}

	idx := uint64(len(e.objects))
	obj := &encObj{v: v}
	e.objects = append(e.objects, obj)

	switch t := v.(type) {
	case *Dict:
		for _, k := range t.keys {
			ref, err := e.flatten(String(k))
			if err != nil {
				return 0, err
			}
			obj.keyRefs = append(obj.keyRefs, ref)
		}
		for _, k := range t.keys {
			ref, err := e.flatten(t.items[k])
			if err != nil {
				return 0, err
			}
			obj.childRefs = append(obj.childRefs, ref)
		}
	case *Array:
		for _, item := range t.items {
			ref, err := e.flatten(item)
			if err != nil {
				return 0, err
			}
			obj.childRefs = append(obj.childRefs, ref)
		}
	}

	return idx, nil
}

func (e *encoder) encodeObject(buf *bytes.Buffer, obj *encObj, refSize int) {
	switch t := obj.v.(type) {
	case Bool:
		if t {
			buf.WriteByte(markerTrue)
		} else {
			buf.WriteByte(markerFalse)
		}
	case UInt:
		encodeUint(buf, uint64(t))
	case Real:
		buf.WriteByte(markerReal | 3)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(float64(t)))
		buf.Write(b[:])
	case String:
		encodeString(buf, string(t))
	case Data:
		writeMarker(buf, markerData, len(t))
		buf.Write(t)
	case *Array:
		writeMarker(buf, markerArray, len(obj.childRefs))
		for _, ref := range obj.childRefs {
			writeSizedUint(buf, ref, refSize)
		}
	case *Dict:
		writeMarker(buf, markerDict, len(obj.keyRefs))
		for _, ref := range obj.keyRefs {
			writeSizedUint(buf, ref, refSize)
		}
		for _, ref := range obj.childRefs {
			writeSizedUint(buf, ref, refSize)
		}
	}
}

// encodeUint writes an integer object using the minimal width. Values
// above the signed 64-bit range use the 16-byte form, since the 8-byte
// form is interpreted as signed by the format.
func encodeUint(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	switch {
	case v <= math.MaxUint8:
		buf.WriteByte(markerInt | 0)
		buf.WriteByte(byte(v))
	case v <= math.MaxUint16:
		buf.WriteByte(markerInt | 1)
		binary.BigEndian.PutUint16(b[:2], uint16(v))
		buf.Write(b[:2])
	case v <= math.MaxUint32:
		buf.WriteByte(markerInt | 2)
		binary.BigEndian.PutUint32(b[:4], uint32(v))
		buf.Write(b[:4])
	case v <= math.MaxInt64:
		buf.WriteByte(markerInt | 3)
		binary.BigEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	default:
		buf.WriteByte(markerInt | 4)
		buf.Write(make([]byte, 8))
		binary.BigEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
}

func encodeString(buf *bytes.Buffer, s string) {
	if isASCII(s) {
		writeMarker(buf, markerASCII, len(s))
		buf.WriteString(s)
		return
	}

	units := utf16.Encode([]rune(s))
	writeMarker(buf, markerUTF16, len(units))
	var b [2]byte
	for _, u := range units {
		binary.BigEndian.PutUint16(b[:], u)
		buf.Write(b[:])
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// writeMarker writes a marker byte with an inline count, spilling the
// count into a following int object when it does not fit the nibble.
func writeMarker(buf *bytes.Buffer, base byte, count int) {
	if count < int(markerCountX) {
		buf.WriteByte(base | byte(count))
		return
	}
	buf.WriteByte(base | markerCountX)
	encodeUint(buf, uint64(count))
}

// byteWidth returns the narrowest of 1, 2, 4 or 8 bytes that can
// represent v.
func byteWidth(v uint64) int {
	switch {
	case v <= math.MaxUint8:
		return 1
	case v <= math.MaxUint16:
		return 2
	case v <= math.MaxUint32:
		return 4
	default:
		return 8
	}
}

func writeSizedUint(buf *bytes.Buffer, v uint64, size int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[8-size:])
}
