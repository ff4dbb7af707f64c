// Package canonical turns typed SQL values into hashable tokens.
//
// Values that are logically equal always produce the same token, whatever host
// type they arrived with. Tokens of different kinds never compare equal, so the
// integer 1, the float 1.0 and the text "1" are three distinct values.
package canonical

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Kind identifies which payload of a Value is populated.
type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindFloat
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Float is an IEEE-754 double split into its fields.
//
// For finite values Mantissa * 2^Exponent equals the magnitude, and Sign
// carries the sign bit. +0.0 and -0.0 therefore differ only in Sign and are
// treated as distinct values on purpose.
type Float struct {
	Mantissa uint64
	Exponent int16
	Sign     int8
}

const (
	mantissaBits = 52
	mantissaMask = (1 << mantissaBits) - 1
	implicitBit  = 1 << mantissaBits
	exponentMask = 0x7ff
	exponentBias = 1023
)

// DecodeFloat decomposes f. Normal numbers get their implicit leading bit back;
// subnormals (biased exponent 0) have none and are shifted by one so that the
// shared exponent offset still yields the exact magnitude.
func DecodeFloat(f float64) Float {
	bits := math.Float64bits(f)

	sign := int8(1)
	if bits>>63 != 0 {
		sign = -1
	}

	exponent := int16((bits >> mantissaBits) & exponentMask)

	var mantissa uint64
	if exponent == 0 {
		mantissa = (bits & mantissaMask) << 1
	} else {
		mantissa = (bits & mantissaMask) | implicitBit
	}

	exponent -= exponentBias + mantissaBits

	return Float{
		Mantissa: mantissa,
		Exponent: exponent,
		Sign:     sign,
	}
}

// Value is a canonical token. The zero Value is invalid.
type Value struct {
	kind    Kind
	integer int64
	float   Float
	text    []byte
}

func Integer(v int64) Value {
	return Value{kind: KindInteger, integer: v}
}

func FromFloat(f float64) Value {
	return Value{kind: KindFloat, float: DecodeFloat(f)}
}

// Text wraps b without copying; callers must not mutate b while the Value is
// in use.
func Text(b []byte) Value {
	return Value{kind: KindText, text: b}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) Int64() int64 {
	return v.integer
}

func (v Value) Float() Float {
	return v.float
}

func (v Value) Bytes() []byte {
	return v.text
}

// AppendBinary appends the kind-tagged encoding of v to dst.
//
// Layout: one kind byte followed by
//   - integer: 8 bytes little-endian two's complement
//   - float:   8 bytes mantissa, 2 bytes exponent, 1 byte sign (little-endian)
//   - text:    the raw bytes
func (v Value) AppendBinary(dst []byte) []byte {
	dst = append(dst, byte(v.kind))

	switch v.kind {
	case KindInteger:
		dst = binary.LittleEndian.AppendUint64(dst, uint64(v.integer))
	case KindFloat:
		dst = binary.LittleEndian.AppendUint64(dst, v.float.Mantissa)
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v.float.Exponent))
		dst = append(dst, byte(v.float.Sign))
	case KindText:
		dst = append(dst, v.text...)
	}

	return dst
}

// Hash returns the 64-bit xxhash of the tagged encoding.
func (v Value) Hash() uint64 {
	if v.kind == KindText {
		d := xxhash.New()
		_, _ = d.Write([]byte{byte(KindText)})
		_, _ = d.Write(v.text)
		return d.Sum64()
	}

	var buf [16]byte
	return xxhash.Sum64(v.AppendBinary(buf[:0]))
}
