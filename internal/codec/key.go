package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Key tag bytes. Each encoded key starts with exactly one of these, making
// two keys of different kinds encode to different byte strings even when
// their "natural" representations collide (integer 1 vs text "1").
const (
	tagKeyInt    byte = 'I'
	tagKeyFloat  byte = 'F'
	tagKeyBool   byte = 'B'
	tagKeyString byte = 'S'
	tagKeyBytes  byte = 'Y'
	tagKeyGroup  byte = 'T'
)

// MaxKeyLength bounds the encoded length of a key. Engines in the mmap
// B+tree class cap key size well below a page; a few hundred bytes is a
// conservative ceiling that holds for every engine FlaxKV wires.
const MaxKeyLength = 480

// MaxGroupArity bounds the number of elements in a [KeyGroup]. The count
// prefix is a single byte, so groups larger than this cannot be encoded.
const MaxGroupArity = 255

// KeyKind identifies which variant of [Key] is populated.
type KeyKind uint8

const (
	KeyInt KeyKind = iota + 1
	KeyFloat
	KeyBool
	KeyString
	KeyBytes
	KeyGroup
)

// Key is the closed tagged union of supported logical key types: integers,
// floats, booleans, text, byte strings, and fixed-length ordered groups of
// the above. Two Keys are logically equal iff [EncodeKey] produces identical
// bytes for both (invariant I2 in the store's data model).
type Key struct {
	kind  KeyKind
	i     int64
	f     float64
	b     bool
	s     string
	y     []byte
	group []Key
}

func (k Key) Kind() KeyKind { return k.kind }

func IntKey(v int64) Key              { return Key{kind: KeyInt, i: v} }
func FloatKey(v float64) Key          { return Key{kind: KeyFloat, f: v} }
func BoolKey(v bool) Key              { return Key{kind: KeyBool, b: v} }
func StringKey(v string) Key          { return Key{kind: KeyString, s: v} }
func BytesKey(v []byte) Key           { return Key{kind: KeyBytes, y: v} }
func GroupKey(elems ...Key) Key       { return Key{kind: KeyGroup, group: elems} }

func (k Key) Int() int64       { return k.i }
func (k Key) Float() float64   { return k.f }
func (k Key) Bool() bool       { return k.b }
func (k Key) String() string   { return k.s }
func (k Key) Bytes() []byte    { return k.y }
func (k Key) Group() []Key     { return k.group }

// EncodeKey produces the canonical byte encoding for k. It is pure: equal
// keys always produce equal bytes and distinct keys (including across
// kinds) always produce distinct bytes.
func EncodeKey(k Key) ([]byte, error) {
	buf := make([]byte, 0, 16)

	encoded, err := appendKey(buf, k)
	if err != nil {
		return nil, err
	}

	if len(encoded) > MaxKeyLength {
		return nil, newEncodingError(fmt.Sprintf("key too long: %d bytes (max %d)", len(encoded), MaxKeyLength), ErrKeyTooLong)
	}

	return encoded, nil
}

func appendKey(buf []byte, k Key) ([]byte, error) {
	switch k.kind {
	case KeyInt:
		buf = append(buf, tagKeyInt, 8)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(k.i))

		return append(buf, tmp[:]...), nil

	case KeyFloat:
		if math.IsNaN(k.f) {
			return nil, newEncodingError("nan key", nil)
		}

		buf = append(buf, tagKeyFloat)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(k.f))

		return append(buf, tmp[:]...), nil

	case KeyBool:
		b := byte(0)
		if k.b {
			b = 1
		}

		return append(buf, tagKeyBool, b), nil

	case KeyString:
		if len(k.s) > math.MaxUint32 {
			return nil, newEncodingError("string key too long", nil)
		}

		buf = append(buf, tagKeyString)
		buf = appendUint32(buf, uint32(len(k.s)))

		return append(buf, k.s...), nil

	case KeyBytes:
		if len(k.y) > math.MaxUint32 {
			return nil, newEncodingError("bytes key too long", nil)
		}

		buf = append(buf, tagKeyBytes)
		buf = appendUint32(buf, uint32(len(k.y)))

		return append(buf, k.y...), nil

	case KeyGroup:
		if len(k.group) > MaxGroupArity {
			return nil, newEncodingError(fmt.Sprintf("group key arity %d exceeds max %d", len(k.group), MaxGroupArity), nil)
		}

		buf = append(buf, tagKeyGroup, byte(len(k.group)))

		for _, elem := range k.group {
			var err error

			buf, err = appendKey(buf, elem)
			if err != nil {
				return nil, err
			}
		}

		return buf, nil

	default:
		return nil, newEncodingError(fmt.Sprintf("unknown key kind %d", k.kind), nil)
	}
}

// DecodeKey is the inverse of [EncodeKey]: decode(encode(k)) == k for every
// supported k (invariant I4).
func DecodeKey(b []byte) (Key, error) {
	k, rest, err := decodeKey(b)
	if err != nil {
		return Key{}, err
	}

	if len(rest) != 0 {
		return Key{}, newEncodingError("trailing bytes after key", nil)
	}

	return k, nil
}

func decodeKey(b []byte) (Key, []byte, error) {
	if len(b) == 0 {
		return Key{}, nil, newEncodingError("empty key buffer", nil)
	}

	tag := b[0]
	b = b[1:]

	switch tag {
	case tagKeyInt:
		if len(b) < 1 {
			return Key{}, nil, newEncodingError("truncated int key width", nil)
		}

		width := int(b[0])
		b = b[1:]

		if width != 8 {
			return Key{}, nil, newEncodingError(fmt.Sprintf("unsupported int key width %d", width), nil)
		}

		if len(b) < 8 {
			return Key{}, nil, newEncodingError("truncated int key payload", nil)
		}

		v := int64(binary.BigEndian.Uint64(b[:8]))

		return IntKey(v), b[8:], nil

	case tagKeyFloat:
		if len(b) < 8 {
			return Key{}, nil, newEncodingError("truncated float key", nil)
		}

		v := math.Float64frombits(binary.BigEndian.Uint64(b[:8]))

		return FloatKey(v), b[8:], nil

	case tagKeyBool:
		if len(b) < 1 {
			return Key{}, nil, newEncodingError("truncated bool key", nil)
		}

		return BoolKey(b[0] != 0), b[1:], nil

	case tagKeyString:
		n, rest, err := readUint32(b)
		if err != nil {
			return Key{}, nil, err
		}

		if uint64(len(rest)) < uint64(n) {
			return Key{}, nil, newEncodingError("truncated string key", nil)
		}

		return StringKey(string(rest[:n])), rest[n:], nil

	case tagKeyBytes:
		n, rest, err := readUint32(b)
		if err != nil {
			return Key{}, nil, err
		}

		if uint64(len(rest)) < uint64(n) {
			return Key{}, nil, newEncodingError("truncated bytes key", nil)
		}

		cp := make([]byte, n)
		copy(cp, rest[:n])

		return BytesKey(cp), rest[n:], nil

	case tagKeyGroup:
		if len(b) < 1 {
			return Key{}, nil, newEncodingError("truncated group key count", nil)
		}

		count := int(b[0])
		b = b[1:]

		elems := make([]Key, 0, count)

		for range count {
			var (
				elem Key
				err  error
			)

			elem, b, err = decodeKey(b)
			if err != nil {
				return Key{}, nil, err
			}

			elems = append(elems, elem)
		}

		return GroupKey(elems...), b, nil

	default:
		return Key{}, nil, newEncodingError(fmt.Sprintf("unknown key tag %q", tag), nil)
	}
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)

	return append(buf, tmp[:]...)
}

func readUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, newEncodingError("truncated length prefix", nil)
	}

	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

// ErrKeyTooLong is a stable sentinel any [EncodingError] about key length
// wraps, so callers can errors.Is against it without parsing the message.
var ErrKeyTooLong = errors.New("key exceeds maximum length")
