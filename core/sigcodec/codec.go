// Package sigcodec implements the deterministic byte encoding used to sign
// protocol messages. The encoding is a pure function of the value and is
// never transmitted itself; only the resulting signature travels on the wire
// alongside the structured payload.
//
// Strings encode as raw UTF-8 bytes with no length prefix, so composite
// encoders must never place two variable-length strings next to each other
// without an intervening fixed-width field.
package sigcodec

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Encoded sizes of the fixed-width primitives.
const (
	BoolSize  = 1
	Int32Size = 4
	Int64Size = 8
	UUIDSize  = 16
	// TemporalSize covers durations and instants: int64 seconds + int32 nanos.
	TemporalSize = Int64Size + Int32Size
	// DecimalSize covers prices: int64 whole part + int32 scaled fraction.
	DecimalSize = Int64Size + Int32Size
)

// fracDigits is the fractional precision of encoded decimals.
const fracDigits = 9

// Signable is implemented by composite values that encode themselves for
// signing. Implementations append their members in a fixed, documented field
// order, treating absent embedded values as their zero-valued instance.
type Signable interface {
	SignatureSize() int
	AppendSignature(buf []byte) []byte
}

// AppendInt64 appends v in big-endian order.
func AppendInt64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

// AppendInt32 appends v in big-endian order.
func AppendInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

// AppendBool appends a single byte, 1 for true and 0 for false.
func AppendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// AppendString appends the raw UTF-8 bytes of s, without a length prefix.
func AppendString(buf []byte, s string) []byte {
	return append(buf, s...)
}

// AppendUUID appends the 16 raw bytes of u.
func AppendUUID(buf []byte, u uuid.UUID) []byte {
	return append(buf, u[:]...)
}

// AppendDuration appends d as whole seconds (int64) followed by the
// remaining nanoseconds (int32).
func AppendDuration(buf []byte, d time.Duration) []byte {
	secs := int64(d / time.Second)
	nanos := int32(d % time.Second)
	buf = AppendInt64(buf, secs)
	return AppendInt32(buf, nanos)
}

// AppendInstant appends t as Unix seconds (int64) followed by the
// nanoseconds within the second (int32).
func AppendInstant(buf []byte, t time.Time) []byte {
	buf = AppendInt64(buf, t.Unix())
	return AppendInt32(buf, int32(t.Nanosecond()))
}

// DecimalParts splits d into its whole part and its fraction scaled to nine
// digits, truncating any further precision. Both parts carry the sign of d.
func DecimalParts(d decimal.Decimal) (int64, int32) {
	whole := d.Truncate(0)
	frac := d.Sub(whole).Shift(fracDigits).Truncate(0)
	return whole.IntPart(), int32(frac.IntPart())
}

// AppendDecimal appends d as its whole part (int64) followed by its
// nine-digit scaled fraction (int32).
func AppendDecimal(buf []byte, d decimal.Decimal) []byte {
	whole, frac := DecimalParts(d)
	buf = AppendInt64(buf, whole)
	return AppendInt32(buf, frac)
}

// SizeOf returns the encoded size of v. It panics on unsupported types;
// use Encode when the value set is not statically known.
func SizeOf(v any) int {
	n, err := sizeOf(v)
	if err != nil {
		panic(err)
	}
	return n
}

func sizeOf(v any) (int, error) {
	switch t := v.(type) {
	case string:
		return len(t), nil
	case bool:
		return BoolSize, nil
	case int32:
		return Int32Size, nil
	case int64:
		return Int64Size, nil
	case uuid.UUID:
		return UUIDSize, nil
	case time.Duration:
		return TemporalSize, nil
	case time.Time:
		return TemporalSize, nil
	case decimal.Decimal:
		return DecimalSize, nil
	case Signable:
		return t.SignatureSize(), nil
	default:
		return 0, fmt.Errorf("sigcodec: unsupported type %T", v)
	}
}

// Append encodes v onto buf. It panics on unsupported types; use Encode when
// the value set is not statically known.
func Append(buf []byte, v any) []byte {
	buf, err := appendValue(buf, v)
	if err != nil {
		panic(err)
	}
	return buf
}

func appendValue(buf []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return AppendString(buf, t), nil
	case bool:
		return AppendBool(buf, t), nil
	case int32:
		return AppendInt32(buf, t), nil
	case int64:
		return AppendInt64(buf, t), nil
	case uuid.UUID:
		return AppendUUID(buf, t), nil
	case time.Duration:
		return AppendDuration(buf, t), nil
	case time.Time:
		return AppendInstant(buf, t), nil
	case decimal.Decimal:
		return AppendDecimal(buf, t), nil
	case Signable:
		return t.AppendSignature(buf), nil
	default:
		return nil, fmt.Errorf("sigcodec: unsupported type %T", v)
	}
}

// Encode serializes the ordered items into one byte sequence, allocating the
// exact required capacity up front.
func Encode(items ...any) ([]byte, error) {
	size := 0
	for _, it := range items {
		n, err := sizeOf(it)
		if err != nil {
			return nil, err
		}
		size += n
	}
	buf := make([]byte, 0, size)
	for _, it := range items {
		var err error
		buf, err = appendValue(buf, it)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}
