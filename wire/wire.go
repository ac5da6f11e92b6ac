package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/arloliu/rewind/errs"
)

// Unmarshaler is implemented by every envelope in this package.
type Unmarshaler interface {
	Unmarshal(data []byte) error
}

// fields iterates the top-level fields of a protobuf message, calling fn for
// each. fn consumes the field value and returns the number of bytes it used,
// or a negative count to fall through to generic skipping.
func fields(msg string, data []byte, fn func(num protowire.Number, typ protowire.Type, buf []byte) int) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %s: bad field tag", errs.ErrParse, msg)
		}
		data = data[n:]

		used := fn(num, typ, data)
		if used < 0 {
			used = protowire.ConsumeFieldValue(num, typ, data)
			if used < 0 {
				return fmt.Errorf("%w: %s: field %d truncated", errs.ErrParse, msg, num)
			}
		}
		data = data[used:]
	}

	return nil
}

func consumeBytes(buf []byte, dst *[]byte) int {
	v, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return n
	}
	*dst = v

	return n
}

func consumeString(buf []byte, dst *string) int {
	v, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return n
	}
	*dst = string(v)

	return n
}

func consumeInt32(buf []byte, dst *int32) int {
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return n
	}
	*dst = int32(v)

	return n
}

func consumeUint32(buf []byte, dst *uint32) int {
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return n
	}
	*dst = uint32(v)

	return n
}

func consumeBool(buf []byte, dst *bool) int {
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return n
	}
	*dst = v != 0

	return n
}

func consumeFloat(buf []byte, dst *float32) int {
	v, n := protowire.ConsumeFixed32(buf)
	if n < 0 {
		return n
	}
	*dst = math.Float32frombits(v)

	return n
}
