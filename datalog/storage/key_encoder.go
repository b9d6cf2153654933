package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/janus-algebra/datalog"
)

// Key layouts. Every key starts with its 1-byte index prefix; ids are
// 8-byte sign-flipped big endian so keys sort like the ids.
//
//	EAVT:  prefix e a tag value tx
//	AEVT:  prefix a e tag value tx
//	TXLOG: prefix tx e a added tag value
const idSize = 8

// EncodeKey creates an index key from a datom
func EncodeKey(index IndexType, d datalog.Datom) []byte {
	prefix := []byte{byte(index)}
	v := valueBytes(d.V)

	switch index {
	case EAVT:
		return concatBytes(prefix, encodeID(d.E), encodeID(d.A), v, encodeID(d.Tx))
	case AEVT:
		return concatBytes(prefix, encodeID(d.A), encodeID(d.E), v, encodeID(d.Tx))
	case TXLOG:
		added := []byte{0}
		if d.Added {
			added[0] = 1
		}
		return concatBytes(prefix, encodeID(d.Tx), encodeID(d.E), encodeID(d.A), added, v)
	default:
		panic(fmt.Sprintf("unknown index type: %v", index))
	}
}

// DecodeKey rebuilds the datom an index key was made from. Datoms read
// from EAVT and AEVT are assertions.
func DecodeKey(key []byte) (datalog.Datom, error) {
	if len(key) < 1 {
		return datalog.Datom{}, fmt.Errorf("key too short")
	}
	index := IndexType(key[0])
	key = key[1:]

	var d datalog.Datom
	var v []byte
	switch index {
	case EAVT, AEVT:
		if len(key) < 3*idSize+1 {
			return datalog.Datom{}, fmt.Errorf("%s key too short: %d bytes", index, len(key))
		}
		first, second := decodeID(key[0:idSize]), decodeID(key[idSize:2*idSize])
		if index == EAVT {
			d.E, d.A = first, second
		} else {
			d.A, d.E = first, second
		}
		v = key[2*idSize : len(key)-idSize]
		d.Tx = decodeID(key[len(key)-idSize:])
		d.Added = true

	case TXLOG:
		if len(key) < 3*idSize+2 {
			return datalog.Datom{}, fmt.Errorf("TXLOG key too short: %d bytes", len(key))
		}
		d.Tx = decodeID(key[0:idSize])
		d.E = decodeID(key[idSize : 2*idSize])
		d.A = decodeID(key[2*idSize : 3*idSize])
		d.Added = key[3*idSize] == 1
		v = key[3*idSize+1:]

	default:
		return datalog.Datom{}, fmt.Errorf("unknown index prefix %d", index)
	}

	val, err := datalog.DecodeValue(datalog.ValueType(v[0]), v[1:])
	if err != nil {
		return datalog.Datom{}, fmt.Errorf("failed to decode value: %w", err)
	}
	d.V = val
	return d, nil
}

// EncodePrefix creates a prefix key for range scans. Parts are ids
// followed, for EAVT and AEVT, by an optional value.
func EncodePrefix(index IndexType, ids []datalog.Entid, v *datalog.TypedValue) []byte {
	parts := [][]byte{{byte(index)}}
	for _, id := range ids {
		parts = append(parts, encodeID(id))
	}
	if v != nil {
		parts = append(parts, valueBytes(*v))
	}
	return concatBytes(parts...)
}

// EncodePrefixRange creates start and end keys for a prefix scan
func EncodePrefixRange(prefix []byte) (start, end []byte) {
	start = prefix
	end = make([]byte, len(prefix))
	copy(end, prefix)
	// Increment the last byte that is not 0xFF
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return start, end[:i+1]
		}
	}
	return start, nil
}

// valueBytes is the tag byte followed by the encoded value.
func valueBytes(v datalog.TypedValue) []byte {
	return concatBytes([]byte{byte(v.Type)}, datalog.EncodeValue(v))
}

func encodeID(e datalog.Entid) []byte {
	buf := make([]byte, idSize)
	binary.BigEndian.PutUint64(buf, uint64(e)^(1<<63))
	return buf
}

func decodeID(b []byte) datalog.Entid {
	return datalog.Entid(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// concatBytes efficiently concatenates byte slices
func concatBytes(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}

	result := make([]byte, size)
	offset := 0
	for _, p := range parts {
		copy(result[offset:], p)
		offset += len(p)
	}

	return result
}
