package plist

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// maxDecodeDepth bounds container nesting. It also terminates decoding
// of documents whose reference graph contains a cycle.
const maxDecodeDepth = 512

const trailerSize = 32

// Unmarshal decodes a binary property list into a value tree.
func Unmarshal(data []byte) (Value, error) {
	if len(data) < len(headerMagic)+trailerSize {
		return nil, ErrTruncated
	}
	if string(data[:len(headerMagic)]) != headerMagic {
		return nil, ErrInvalidHeader
	}

	trailer := data[len(data)-trailerSize:]
	offsetSize := int(trailer[6])
	refSize := int(trailer[7])
	numObjects := binary.BigEndian.Uint64(trailer[8:16])
	topObject := binary.BigEndian.Uint64(trailer[16:24])
	tableOffset := binary.BigEndian.Uint64(trailer[24:32])

	if offsetSize < 1 || offsetSize > 8 || refSize < 1 || refSize > 8 {
		return nil, ErrInvalidTrailer
	}
	if numObjects == 0 || topObject >= numObjects {
		return nil, ErrInvalidTrailer
	}

	body := uint64(len(data) - trailerSize)
	if numObjects > body {
		return nil, ErrInvalidTrailer
	}
	tableEnd := tableOffset + numObjects*uint64(offsetSize)
	if tableOffset < uint64(len(headerMagic)) || tableEnd > body || tableEnd < tableOffset {
		return nil, ErrInvalidTrailer
	}

	offsets := make([]uint64, numObjects)
	for i := range offsets {
		start := tableOffset + uint64(i)*uint64(offsetSize)
		offsets[i] = readSizedUint(data[start : start+uint64(offsetSize)])
		if offsets[i] >= tableOffset {
			return nil, ErrInvalidObjectRef
		}
	}

	d := &decoder{
		data:    data[:tableOffset],
		offsets: offsets,
		refSize: refSize,
	}
	return d.decodeObject(topObject, 0)
}

type decoder struct {
	data    []byte
	offsets []uint64
	refSize int
}

func (d *decoder) decodeObject(ref uint64, depth int) (Value, error) {
	if depth > maxDecodeDepth {
		return nil, ErrNestedTooDeep
	}
	if ref >= uint64(len(d.offsets)) {
		return nil, ErrInvalidObjectRef
	}

	off := d.offsets[ref]
	if off >= uint64(len(d.data)) {
		return nil, ErrTruncated
	}
	marker := d.data[off]
	off++

	switch marker & 0xF0 {
	case 0x00:
		switch marker {
		case markerFalse:
			return Bool(false), nil
		case markerTrue:
			return Bool(true), nil
		}
		return nil, ErrInvalidMarker

	case markerInt:
		v, _, err := d.readInt(marker, off)
		return UInt(v), err

	case markerReal:
		switch marker & 0x0F {
		case 2:
			b, err := d.bytesAt(off, 4)
			if err != nil {
				return nil, err
			}
			return Real(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
		case 3:
			b, err := d.bytesAt(off, 8)
			if err != nil {
				return nil, err
			}
			return Real(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
		}
		return nil, ErrInvalidMarker

	case markerData:
		count, off, err := d.readCount(marker, off)
		if err != nil {
			return nil, err
		}
		b, err := d.bytesAt(off, count)
		if err != nil {
			return nil, err
		}
		out := make(Data, count)
		copy(out, b)
		return out, nil

	case markerASCII:
		count, off, err := d.readCount(marker, off)
		if err != nil {
			return nil, err
		}
		b, err := d.bytesAt(off, count)
		if err != nil {
			return nil, err
		}
		return String(b), nil

	case markerUTF16:
		count, off, err := d.readCount(marker, off)
		if err != nil {
			return nil, err
		}
		b, err := d.bytesAt(off, count*2)
		if err != nil {
			return nil, err
		}
		units := make([]uint16, count)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(b[i*2:])
		}
		return String(utf16.Decode(units)), nil

	case markerArray:
		count, off, err := d.readCount(marker, off)
		if err != nil {
			return nil, err
		}
		arr := NewArray()
		for i := uint64(0); i < count; i++ {
			childRef, err := d.refAt(off + i*uint64(d.refSize))
			if err != nil {
				return nil, err
			}
			child, err := d.decodeObject(childRef, depth+1)
			if err != nil {
				return nil, err
			}
			arr.Append(child)
		}
		return arr, nil

	case markerDict:
		count, off, err := d.readCount(marker, off)
		if err != nil {
			return nil, err
		}
		dict := NewDict()
		for i := uint64(0); i < count; i++ {
			keyRef, err := d.refAt(off + i*uint64(d.refSize))
			if err != nil {
				return nil, err
			}
			valRef, err := d.refAt(off + (count+i)*uint64(d.refSize))
			if err != nil {
				return nil, err
			}
			key, err := d.decodeObject(keyRef, depth+1)
			if err != nil {
				return nil, err
			}
			keyStr, ok := key.(String)
			if !ok {
				return nil, ErrInvalidKey
			}
			val, err := d.decodeObject(valRef, depth+1)
			if err != nil {
				return nil, err
			}
			dict.Set(string(keyStr), val)
		}
		return dict, nil
	}

	return nil, ErrInvalidMarker
}

// readInt decodes an int object body at off and returns the value and
// the offset past it.
func (d *decoder) readInt(marker byte, off uint64) (uint64, uint64, error) {
	size := uint64(1) << (marker & 0x0F)
	if size > 16 {
		return 0, 0, ErrInvalidMarker
	}
	b, err := d.bytesAt(off, size)
	if err != nil {
		return 0, 0, err
	}
	if size == 16 {
		// 128-bit form: only the low 64 bits may be populated.
		for _, c := range b[:8] {
			if c != 0 {
				return 0, 0, ErrOverflow
			}
		}
		b = b[8:]
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, off + size, nil
}

// readCount resolves a marker's element count, following the trailing
// int object when the inline nibble is 0xF.
func (d *decoder) readCount(marker byte, off uint64) (uint64, uint64, error) {
	n := uint64(marker & 0x0F)
	if n != uint64(markerCountX) {
		return n, off, nil
	}
	b, err := d.bytesAt(off, 1)
	if err != nil {
		return 0, 0, err
	}
	if b[0]&0xF0 != markerInt {
		return 0, 0, ErrInvalidMarker
	}
	count, next, err := d.readInt(b[0], off+1)
	if err != nil {
		return 0, 0, err
	}
	// Every element occupies at least one byte, so a count larger than
	// the document is unsatisfiable and must not drive allocations.
	if count > uint64(len(d.data)) {
		return 0, 0, ErrTruncated
	}
	return count, next, nil
}

func (d *decoder) refAt(off uint64) (uint64, error) {
	b, err := d.bytesAt(off, uint64(d.refSize))
	if err != nil {
		return 0, err
	}
	return readSizedUint(b), nil
}

func (d *decoder) bytesAt(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(d.data)) {
		return nil, ErrTruncated
	}
	return d.data[off:end], nil
}

func readSizedUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
