package codec

import (
	"bytes"
	"fmt"

	hcodec "github.com/hashicorp/go-msgpack/v2/codec"
)

// msgpackHandle is process-wide and stateless; ugorji's codec.Handle is
// designed to be shared across encoders/decoders.
var msgpackHandle = &hcodec.MsgpackHandle{}

// ValueKind identifies which variant of [Value] is populated.
type ValueKind uint8

const (
	ValInt64 ValueKind = iota + 1
	ValFloat64
	ValBool
	ValString
	ValBytes
	ValSequence
	ValMap
	ValNDArray
)

// NDArray is a dense numeric array: element type tag, shape, and a raw
// little-endian buffer. Encoded without per-element overhead (§4.1).
type NDArray struct {
	DType string
	Shape []int
	Data  []byte
}

// Value is the closed tagged union of supported logical value types.
// Ordered-collection-of-unique-values and fixed-length-ordered-group values
// have no dedicated variant here: any caller-built [Sequence] already *is*
// the generic ordered form spec.md documents such containers degrading to,
// so there is nothing richer being silently lost (see SPEC_FULL.md §9(a)).
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	b    bool
	s    string
	y    []byte
	seq  []Value
	m    map[string]Value
	arr  NDArray
}

func (v Value) Kind() ValueKind      { return v.kind }
func (v Value) Int() int64           { return v.i }
func (v Value) Float() float64       { return v.f }
func (v Value) Bool() bool           { return v.b }
func (v Value) String() string       { return v.s }
func (v Value) Bytes() []byte        { return v.y }
func (v Value) Sequence() []Value    { return v.seq }
func (v Value) Map() map[string]Value { return v.m }
func (v Value) NDArray() NDArray     { return v.arr }

func Int64Value(v int64) Value             { return Value{kind: ValInt64, i: v} }
func Float64Value(v float64) Value         { return Value{kind: ValFloat64, f: v} }
func BoolValue(v bool) Value               { return Value{kind: ValBool, b: v} }
func StringValue(v string) Value           { return Value{kind: ValString, s: v} }
func BytesValue(v []byte) Value            { return Value{kind: ValBytes, y: v} }
func SequenceValue(v []Value) Value        { return Value{kind: ValSequence, seq: v} }
func MapValue(v map[string]Value) Value    { return Value{kind: ValMap, m: v} }
func NDArrayValue(v NDArray) Value         { return Value{kind: ValNDArray, arr: v} }

// wireValue is the msgpack-serializable projection of [Value]. Field names
// double as the self-describing tags the wire format carries; omitempty
// keeps scalar payloads from bloating every other variant's encoding.
type wireValue struct {
	Tag   uint8                `codec:"t"`
	I     int64                `codec:"i,omitempty"`
	F     float64              `codec:"f,omitempty"`
	B     bool                 `codec:"b,omitempty"`
	S     string               `codec:"s,omitempty"`
	Y     []byte               `codec:"y,omitempty"`
	Seq   []wireValue          `codec:"seq,omitempty"`
	Map   map[string]wireValue `codec:"map,omitempty"`
	DType string               `codec:"dtype,omitempty"`
	Shape []int64              `codec:"shape,omitempty"`
	Data  []byte               `codec:"data,omitempty"`
}

func toWire(v Value) (wireValue, error) {
	w := wireValue{Tag: uint8(v.kind)}

	switch v.kind {
	case ValInt64:
		w.I = v.i
	case ValFloat64:
		w.F = v.f
	case ValBool:
		w.B = v.b
	case ValString:
		w.S = v.s
	case ValBytes:
		w.Y = v.y
	case ValSequence:
		w.Seq = make([]wireValue, len(v.seq))

		for i, elem := range v.seq {
			wv, err := toWire(elem)
			if err != nil {
				return wireValue{}, err
			}

			w.Seq[i] = wv
		}
	case ValMap:
		w.Map = make(map[string]wireValue, len(v.m))

		for key, elem := range v.m {
			wv, err := toWire(elem)
			if err != nil {
				return wireValue{}, err
			}

			w.Map[key] = wv
		}
	case ValNDArray:
		w.DType = v.arr.DType
		w.Shape = make([]int64, len(v.arr.Shape))

		for i, dim := range v.arr.Shape {
			w.Shape[i] = int64(dim)
		}

		w.Data = v.arr.Data
	default:
		return wireValue{}, newEncodingError(fmt.Sprintf("unknown value kind %d", v.kind), nil)
	}

	return w, nil
}

func fromWire(w wireValue) (Value, error) {
	switch ValueKind(w.Tag) {
	case ValInt64:
		return Int64Value(w.I), nil
	case ValFloat64:
		return Float64Value(w.F), nil
	case ValBool:
		return BoolValue(w.B), nil
	case ValString:
		return StringValue(w.S), nil
	case ValBytes:
		return BytesValue(w.Y), nil
	case ValSequence:
		seq := make([]Value, len(w.Seq))

		for i, wv := range w.Seq {
			elem, err := fromWire(wv)
			if err != nil {
				return Value{}, err
			}

			seq[i] = elem
		}

		return SequenceValue(seq), nil
	case ValMap:
		m := make(map[string]Value, len(w.Map))

		for key, wv := range w.Map {
			elem, err := fromWire(wv)
			if err != nil {
				return Value{}, err
			}

			m[key] = elem
		}

		return MapValue(m), nil
	case ValNDArray:
		shape := make([]int, len(w.Shape))

		for i, dim := range w.Shape {
			shape[i] = int(dim)
		}

		return NDArrayValue(NDArray{DType: w.DType, Shape: shape, Data: w.Data}), nil
	default:
		return Value{}, newEncodingError(fmt.Sprintf("unknown wire tag %d", w.Tag), nil)
	}
}

// EncodeValue produces the canonical byte encoding for v using a compact,
// self-describing tagged message format (msgpack).
func EncodeValue(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	enc := hcodec.NewEncoder(&buf, msgpackHandle)

	err = enc.Encode(w)
	if err != nil {
		return nil, newEncodingError("msgpack encode", err)
	}

	return buf.Bytes(), nil
}

// DecodeValue is the inverse of [EncodeValue]: decode(encode(v)) == v for
// every supported v (invariant I4), modulo the container-identity caveats
// documented on [Value].
func DecodeValue(b []byte) (Value, error) {
	var w wireValue

	dec := hcodec.NewDecoder(bytes.NewReader(b), msgpackHandle)

	err := dec.Decode(&w)
	if err != nil {
		return Value{}, newEncodingError("msgpack decode", err)
	}

	return fromWire(w)
}
