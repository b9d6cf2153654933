package datalog

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// EncodeValue serializes a value to bytes. Integers are sign-flipped big
// endian so encoded longs and refs sort like their numeric values.
func EncodeValue(v TypedValue) []byte {
	switch val := v.V.(type) {
	case Entid:
		return encodeInt64(int64(val))
	case int64:
		return encodeInt64(val)
	case float64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(val))
		return buf
	case bool:
		if val {
			return []byte{1}
		}
		return []byte{0}
	case time.Time:
		return encodeInt64(val.UnixMicro())
	case string:
		return []byte(val)
	case Keyword:
		return []byte(val.String())
	case uuid.UUID:
		out := make([]byte, 16)
		copy(out, val[:])
		return out
	default:
		panic(fmt.Sprintf("cannot encode value type: %T", v.V))
	}
}

// DecodeValue deserializes a value from bytes
func DecodeValue(vType ValueType, data []byte) (TypedValue, error) {
	switch vType {
	case TypeRef:
		if len(data) != 8 {
			return TypedValue{}, fmt.Errorf("ref value must be 8 bytes, got %d", len(data))
		}
		return Ref(Entid(decodeInt64(data))), nil
	case TypeLong:
		if len(data) != 8 {
			return TypedValue{}, fmt.Errorf("long value must be 8 bytes, got %d", len(data))
		}
		return Long(decodeInt64(data)), nil
	case TypeDouble:
		if len(data) != 8 {
			return TypedValue{}, fmt.Errorf("double value must be 8 bytes, got %d", len(data))
		}
		return Double(math.Float64frombits(binary.BigEndian.Uint64(data))), nil
	case TypeBoolean:
		if len(data) != 1 {
			return TypedValue{}, fmt.Errorf("boolean value must be 1 byte, got %d", len(data))
		}
		return Boolean(data[0] != 0), nil
	case TypeInstant:
		if len(data) != 8 {
			return TypedValue{}, fmt.Errorf("instant value must be 8 bytes, got %d", len(data))
		}
		return Instant(time.UnixMicro(decodeInt64(data))), nil
	case TypeString:
		return String(string(data)), nil
	case TypeKeyword:
		return KeywordValue(*InternKeyword(string(data))), nil
	case TypeUUID:
		u, err := uuid.FromBytes(data)
		if err != nil {
			return TypedValue{}, fmt.Errorf("uuid value: %w", err)
		}
		return UUID(u), nil
	default:
		return TypedValue{}, fmt.Errorf("unknown value type: %v", vType)
	}
}

func encodeInt64(i int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i)^(1<<63))
	return buf
}

func decodeInt64(data []byte) int64 {
	return int64(binary.BigEndian.Uint64(data) ^ (1 << 63))
}
