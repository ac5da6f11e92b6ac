// Package entity implements the live half of the replay state: typed
// property values decoded against the flattened tables, the entities built
// from them, and the slotted store the PVS deltas run against.
package entity

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/rewind/bitstream"
	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/sendtable"
)

// Limits for string and array properties; generous estimates the engine
// never exceeds on valid replays.
const (
	maxStringLength = 0x200 // 512
	maxArrayElems   = 100
)

// Kind tags the typed value stored in a Property.
type Kind uint8

// Value kinds.
const (
	KindNone Kind = iota
	KindInt
	KindUint
	KindFloat
	KindVector3
	KindVector2
	KindString
	KindArray
	KindInt64
	KindUint64
)

// Property is one live, typed property value together with the descriptor it
// was decoded from. The variant set is closed; the kind always matches the
// descriptor's type and flags.
type Property struct {
	prop *sendtable.SendProp
	name string
	kind Kind

	num  uint64 // int/uint/int64/uint64 bit patterns
	f32  float32
	vec  [3]float32
	str  string
	arr  []Property

	initialized bool
}

// Initialized reports whether this slot has been decoded at least once.
func (p *Property) Initialized() bool {
	return p.initialized
}

// Kind returns the stored value kind.
func (p *Property) Kind() Kind {
	return p.kind
}

// Name returns the hierarchical property name from the flat table.
func (p *Property) Name() string {
	return p.name
}

// SendProp returns the descriptor this value was decoded from.
func (p *Property) SendProp() *sendtable.SendProp {
	return p.prop
}

// Int returns the value as a signed 32-bit integer.
func (p *Property) Int() (int32, error) {
	if p.kind != KindInt {
		return 0, castErr(p, "int32")
	}

	return int32(p.num), nil
}

// Uint returns the value as an unsigned 32-bit integer.
func (p *Property) Uint() (uint32, error) {
	if p.kind != KindUint {
		return 0, castErr(p, "uint32")
	}

	return uint32(p.num), nil
}

// Int64 returns the value as a signed 64-bit integer.
func (p *Property) Int64() (int64, error) {
	if p.kind != KindInt64 {
		return 0, castErr(p, "int64")
	}

	return int64(p.num), nil
}

// Uint64 returns the value as an unsigned 64-bit integer.
func (p *Property) Uint64() (uint64, error) {
	if p.kind != KindUint64 {
		return 0, castErr(p, "uint64")
	}

	return p.num, nil
}

// Float returns the value as a float32.
func (p *Property) Float() (float32, error) {
	if p.kind != KindFloat {
		return 0, castErr(p, "float32")
	}

	return p.f32, nil
}

// Vector3 returns the value as a 3-component vector.
func (p *Property) Vector3() ([3]float32, error) {
	if p.kind != KindVector3 {
		return [3]float32{}, castErr(p, "vector3")
	}

	return p.vec, nil
}

// Vector2 returns the value as a 2-component vector.
func (p *Property) Vector2() ([2]float32, error) {
	if p.kind != KindVector2 {
		return [2]float32{}, castErr(p, "vector2")
	}

	return [2]float32{p.vec[0], p.vec[1]}, nil
}

// Str returns the value as a string.
func (p *Property) Str() (string, error) {
	if p.kind != KindString {
		return "", castErr(p, "string")
	}

	return p.str, nil
}

// Array returns the decoded element values.
func (p *Property) Array() ([]Property, error) {
	if p.kind != KindArray {
		return nil, castErr(p, "array")
	}

	return p.arr, nil
}

func castErr(p *Property, want string) error {
	return fmt.Errorf("%w: %s holds kind %d, requested %s", errs.ErrBadCast, p.name, p.kind, want)
}

// String renders the value for diagnostics.
func (p *Property) String() string {
	switch p.kind {
	case KindInt:
		return strconv.FormatInt(int64(int32(p.num)), 10)
	case KindUint:
		return strconv.FormatUint(p.num, 10)
	case KindInt64:
		return strconv.FormatInt(int64(p.num), 10)
	case KindUint64:
		return strconv.FormatUint(p.num, 10)
	case KindFloat:
		return strconv.FormatFloat(float64(p.f32), 'g', -1, 32)
	case KindVector3:
		return fmt.Sprintf("[%g %g %g]", p.vec[0], p.vec[1], p.vec[2])
	case KindVector2:
		return fmt.Sprintf("[%g %g]", p.vec[0], p.vec[1])
	case KindString:
		return strconv.Quote(p.str)
	case KindArray:
		parts := make([]string, len(p.arr))
		for i := range p.arr {
			parts[i] = p.arr[i].String()
		}

		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "<uninitialized>"
	}
}

// NewProperty decodes a fresh property value from the stream using the
// given descriptor.
func NewProperty(b *bitstream.Bitstream, prop *sendtable.SendProp, name string) (Property, error) {
	p := Property{prop: prop, name: name}
	if err := p.Update(b); err != nil {
		return Property{}, err
	}
	p.initialized = true

	return p, nil
}

// Update re-decodes the value in place from the stream.
func (p *Property) Update(b *bitstream.Bitstream) error {
	switch p.prop.Type {
	case sendtable.TypeInt:
		return p.readInt(b)
	case sendtable.TypeFloat:
		v, err := readFloat(b, p.prop)
		if err != nil {
			return err
		}
		p.kind = KindFloat
		p.f32 = v

		return nil
	case sendtable.TypeVector3:
		return p.readVector3(b)
	case sendtable.TypeVector2:
		return p.readVector2(b)
	case sendtable.TypeString:
		return p.readString(b)
	case sendtable.TypeArray:
		return p.readArray(b)
	case sendtable.TypeInt64:
		return p.readInt64(b)
	default:
		return fmt.Errorf("%w: %s of type %s", errs.ErrInvalidType, p.name, p.prop.Type)
	}
}

// Skip advances the stream past one value of the given descriptor, landing
// exactly where a decode would.
func Skip(b *bitstream.Bitstream, prop *sendtable.SendProp) error {
	switch prop.Type {
	case sendtable.TypeInt:
		return skipInt(b, prop)
	case sendtable.TypeFloat:
		return skipFloat(b, prop)
	case sendtable.TypeVector3:
		if err := skipFloat(b, prop); err != nil {
			return err
		}
		if err := skipFloat(b, prop); err != nil {
			return err
		}
		if prop.HasFlag(sendtable.FlagNormal) {
			_, err := b.Read(1)
			return err
		}

		return skipFloat(b, prop)
	case sendtable.TypeVector2:
		if err := skipFloat(b, prop); err != nil {
			return err
		}

		return skipFloat(b, prop)
	case sendtable.TypeString:
		length, err := b.Read(9)
		if err != nil {
			return err
		}
		if length > maxStringLength {
			return fmt.Errorf("%w: %d bytes", errs.ErrInvalidStringLength, length)
		}
		b.SeekForward(int(length) * 8)

		return nil
	case sendtable.TypeArray:
		return skipArray(b, prop)
	case sendtable.TypeInt64:
		if prop.HasFlag(sendtable.FlagEncodedAgainstTickcount) {
			return b.SkipVarInt64()
		}
		b.SeekForward(int(prop.NumBits))

		return nil
	default:
		return fmt.Errorf("%w: %s.%s of type %s", errs.ErrInvalidType, prop.TableName, prop.Name, prop.Type)
	}
}

func (p *Property) readInt(b *bitstream.Bitstream) error {
	prop := p.prop
	if prop.HasFlag(sendtable.FlagEncodedAgainstTickcount) {
		if prop.HasFlag(sendtable.FlagUnsigned) {
			v, err := b.VarUInt32()
			if err != nil {
				return err
			}
			p.kind = KindUint
			p.num = uint64(v)

			return nil
		}

		v, err := b.VarSInt32()
		if err != nil {
			return err
		}
		p.kind = KindInt
		p.num = uint64(uint32(v))

		return nil
	}

	if prop.HasFlag(sendtable.FlagUnsigned) {
		v, err := b.ReadUInt(int(prop.NumBits))
		if err != nil {
			return err
		}
		p.kind = KindUint
		p.num = uint64(v)

		return nil
	}

	v, err := b.ReadSInt(int(prop.NumBits))
	if err != nil {
		return err
	}
	p.kind = KindInt
	p.num = uint64(uint32(v))

	return nil
}

func skipInt(b *bitstream.Bitstream, prop *sendtable.SendProp) error {
	if prop.HasFlag(sendtable.FlagEncodedAgainstTickcount) {
		return b.SkipVarInt()
	}
	b.SeekForward(int(prop.NumBits))

	return nil
}

// readFloat decodes one float; the first matching flag wins, in the engine's
// order.
func readFloat(b *bitstream.Bitstream, prop *sendtable.SendProp) (float32, error) {
	switch {
	case prop.HasFlag(sendtable.FlagCoord):
		return b.ReadCoord()
	case prop.HasFlag(sendtable.FlagCoordMP):
		return b.ReadCoordMP(
			prop.HasFlag(sendtable.FlagCoordMPIntegral),
			prop.HasFlag(sendtable.FlagCoordMPLowPrecision),
		)
	case prop.HasFlag(sendtable.FlagNoScale):
		v, err := b.Read(32)
		if err != nil {
			return 0, err
		}

		return math.Float32frombits(v), nil
	case prop.HasFlag(sendtable.FlagNormal):
		return b.ReadNormal()
	case prop.HasAnyFlag(sendtable.FlagCellCoord | sendtable.FlagCellCoordIntegral | sendtable.FlagCellCoordLowPrecision):
		return b.ReadCellCoord(
			int(prop.NumBits),
			prop.HasFlag(sendtable.FlagCellCoordIntegral),
			prop.HasFlag(sendtable.FlagCellCoordLowPrecision),
		)
	default:
		v, err := b.Read(int(prop.NumBits))
		if err != nil {
			return 0, err
		}

		f := float32(v) / float32(uint32(1)<<uint(prop.NumBits)-1)

		return f*(prop.HighValue-prop.LowValue) + prop.LowValue, nil
	}
}

func skipFloat(b *bitstream.Bitstream, prop *sendtable.SendProp) error {
	switch {
	case prop.HasFlag(sendtable.FlagCoord):
		return b.SkipCoord()
	case prop.HasFlag(sendtable.FlagCoordMP):
		return b.SkipCoordMP(
			prop.HasFlag(sendtable.FlagCoordMPIntegral),
			prop.HasFlag(sendtable.FlagCoordMPLowPrecision),
		)
	case prop.HasFlag(sendtable.FlagNoScale):
		b.SeekForward(32)
		return nil
	case prop.HasFlag(sendtable.FlagNormal):
		return b.SkipNormal()
	case prop.HasAnyFlag(sendtable.FlagCellCoord | sendtable.FlagCellCoordIntegral | sendtable.FlagCellCoordLowPrecision):
		return b.SkipCellCoord(
			int(prop.NumBits),
			prop.HasFlag(sendtable.FlagCellCoordIntegral),
			prop.HasFlag(sendtable.FlagCellCoordLowPrecision),
		)
	default:
		b.SeekForward(int(prop.NumBits))
		return nil
	}
}

func (p *Property) readVector3(b *bitstream.Bitstream) error {
	x, err := readFloat(b, p.prop)
	if err != nil {
		return err
	}
	y, err := readFloat(b, p.prop)
	if err != nil {
		return err
	}

	var z float32
	if p.prop.HasFlag(sendtable.FlagNormal) {
		sign, err := b.Read(1)
		if err != nil {
			return err
		}

		f := float64(x)*float64(x) + float64(y)*float64(y)
		if f < 1 {
			z = float32(math.Sqrt(1 - f))
		}
		if sign != 0 {
			z = -z
		}
	} else {
		z, err = readFloat(b, p.prop)
		if err != nil {
			return err
		}
	}

	p.kind = KindVector3
	p.vec = [3]float32{x, y, z}

	return nil
}

func (p *Property) readVector2(b *bitstream.Bitstream) error {
	x, err := readFloat(b, p.prop)
	if err != nil {
		return err
	}
	y, err := readFloat(b, p.prop)
	if err != nil {
		return err
	}

	p.kind = KindVector2
	p.vec = [3]float32{x, y, 0}

	return nil
}

func (p *Property) readString(b *bitstream.Bitstream) error {
	length, err := b.Read(9)
	if err != nil {
		return err
	}
	if length > maxStringLength {
		return fmt.Errorf("%w: %d bytes", errs.ErrInvalidStringLength, length)
	}

	buf := make([]byte, length)
	if err := b.ReadBits(buf, int(length)*8); err != nil {
		return err
	}

	p.kind = KindString
	p.str = string(buf)

	return nil
}

// arrayCountBits returns the width of an array's element-count field:
// floor(log2(n)) + 1.
func arrayCountBits(elements int32) int {
	bits := 0
	for elements > 0 {
		bits++
		elements >>= 1
	}

	return bits
}

func (p *Property) readArray(b *bitstream.Bitstream) error {
	count, err := b.Read(arrayCountBits(p.prop.NumElements))
	if err != nil {
		return err
	}
	if count > maxArrayElems {
		return fmt.Errorf("%w: %d elements", errs.ErrInvalidElementCount, count)
	}

	elem, err := p.prop.ArrayElem()
	if err != nil {
		return err
	}

	arr := make([]Property, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := NewProperty(b, elem, elem.Name)
		if err != nil {
			return err
		}
		arr = append(arr, v)
	}

	p.kind = KindArray
	p.arr = arr

	return nil
}

func skipArray(b *bitstream.Bitstream, prop *sendtable.SendProp) error {
	count, err := b.Read(arrayCountBits(prop.NumElements))
	if err != nil {
		return err
	}
	if count > maxArrayElems {
		return fmt.Errorf("%w: %d elements", errs.ErrInvalidElementCount, count)
	}

	elem, err := prop.ArrayElem()
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		if err := Skip(b, elem); err != nil {
			return err
		}
	}

	return nil
}

func (p *Property) readInt64(b *bitstream.Bitstream) error {
	prop := p.prop
	if prop.HasFlag(sendtable.FlagEncodedAgainstTickcount) {
		if prop.HasFlag(sendtable.FlagUnsigned) {
			v, err := b.VarUInt64()
			if err != nil {
				return err
			}
			p.kind = KindUint64
			p.num = v

			return nil
		}

		v, err := b.VarSInt64()
		if err != nil {
			return err
		}
		p.kind = KindInt64
		p.num = uint64(v)

		return nil
	}

	negate := false
	highBits := int(prop.NumBits) - 32
	if highBits < 0 {
		return fmt.Errorf("%w: %s.%s with %d bits", errs.ErrInvalidInt64Type, prop.TableName, prop.Name, prop.NumBits)
	}

	if !prop.HasFlag(sendtable.FlagUnsigned) {
		highBits--
		sign, err := b.Read(1)
		if err != nil {
			return err
		}
		negate = sign != 0
	}

	low, err := b.Read(32)
	if err != nil {
		return err
	}
	high, err := b.Read(highBits)
	if err != nil {
		return err
	}

	val := int64(high)<<32 | int64(low)
	if negate {
		val = -val
	}

	if prop.HasFlag(sendtable.FlagUnsigned) {
		p.kind = KindUint64
		p.num = uint64(val)
	} else {
		p.kind = KindInt64
		p.num = uint64(val)
	}

	return nil
}
