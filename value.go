package flaxkv

import (
	"fmt"

	"github.com/flaxkv/flaxkv/internal/codec"
)

// KeyKind identifies which variant of [Key] is populated.
type KeyKind = codec.KeyKind

// The supported [Key] variants.
const (
	KeyInt    = codec.KeyInt
	KeyFloat  = codec.KeyFloat
	KeyBool   = codec.KeyBool
	KeyString = codec.KeyString
	KeyBytes  = codec.KeyBytes
	KeyGroup  = codec.KeyGroup
)

// Key is the closed set of logical key types a store accepts: integers,
// floats, booleans, text, byte strings, and fixed-length ordered groups of
// the above (§3 of the design). It is a thin, exported alias over the
// codec's tagged union so callers never need to import internal/codec.
type Key = codec.Key

// IntKey builds an integer-valued Key.
func IntKey(v int64) Key { return codec.IntKey(v) }

// FloatKey builds a float-valued Key. NaN is rejected at write time, not
// here (a Key can be constructed speculatively and only fails if actually
// used).
func FloatKey(v float64) Key { return codec.FloatKey(v) }

// BoolKey builds a boolean-valued Key.
func BoolKey(v bool) Key { return codec.BoolKey(v) }

// StringKey builds a text-valued Key.
func StringKey(v string) Key { return codec.StringKey(v) }

// BytesKey builds a byte-string-valued Key.
func BytesKey(v []byte) Key { return codec.BytesKey(v) }

// GroupKey builds a fixed-length ordered group Key out of elems. Two group
// keys are equal iff their elements are equal in the same order.
func GroupKey(elems ...Key) Key { return codec.GroupKey(elems...) }

// keyString renders k for diagnostics (error messages, logging). It is
// deliberately not called String() on Key itself: codec.Key.String()
// already means "the key's string-kind payload", which is empty for every
// other kind and would be a misleading Stringer implementation.
func keyString(k Key) string {
	switch k.Kind() {
	case codec.KeyInt:
		return fmt.Sprintf("int:%d", k.Int())
	case codec.KeyFloat:
		return fmt.Sprintf("float:%v", k.Float())
	case codec.KeyBool:
		return fmt.Sprintf("bool:%v", k.Bool())
	case codec.KeyString:
		return fmt.Sprintf("string:%q", k.String())
	case codec.KeyBytes:
		return fmt.Sprintf("bytes:%x", k.Bytes())
	case codec.KeyGroup:
		return fmt.Sprintf("group:%v", k.Group())
	default:
		return "<unset>"
	}
}

// ValueKind identifies which variant of [Value] is populated.
type ValueKind = codec.ValueKind

// The supported [Value] variants.
const (
	ValInt64   = codec.ValInt64
	ValFloat64 = codec.ValFloat64
	ValBool    = codec.ValBool
	ValString  = codec.ValString
	ValBytes   = codec.ValBytes
	ValSequence = codec.ValSequence
	ValMap     = codec.ValMap
	ValNDArray = codec.ValNDArray
)

// NDArray is a dense numeric array value: element type tag, shape, and a
// raw buffer.
type NDArray = codec.NDArray

// Value is the closed set of logical value types a store accepts: scalars,
// text, byte strings, ordered sequences, string-keyed maps, and dense
// numeric arrays (§3 of the design).
type Value = codec.Value

// Int64Value builds an integer-valued Value.
func Int64Value(v int64) Value { return codec.Int64Value(v) }

// Float64Value builds a float-valued Value.
func Float64Value(v float64) Value { return codec.Float64Value(v) }

// BoolValue builds a boolean-valued Value.
func BoolValue(v bool) Value { return codec.BoolValue(v) }

// StringValue builds a text-valued Value.
func StringValue(v string) Value { return codec.StringValue(v) }

// BytesValue builds a byte-string-valued Value.
func BytesValue(v []byte) Value { return codec.BytesValue(v) }

// SequenceValue builds an ordered-sequence Value. This is also the
// representation any ordered-set or group input degrades to, per §9(a).
func SequenceValue(elems []Value) Value { return codec.SequenceValue(elems) }

// MapValue builds a string-keyed map Value.
func MapValue(m map[string]Value) Value { return codec.MapValue(m) }

// NDArrayValue builds a dense numeric array Value.
func NDArrayValue(arr NDArray) Value { return codec.NDArrayValue(arr) }
