// Package sendtable models the server's property-description tables and
// flattens them into the ordered, prioritized property lists a client needs
// to decode entities.
package sendtable

import (
	"fmt"

	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/wire"
)

// PropType enumerates the value types a property descriptor can carry.
type PropType int32

// Property descriptor types, matching the wire numbering.
const (
	TypeInt PropType = iota
	TypeFloat
	TypeVector3
	TypeVector2
	TypeString
	TypeArray
	TypeDataTable
	TypeInt64
)

func (t PropType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeVector3:
		return "Vector3"
	case TypeVector2:
		return "Vector2"
	case TypeString:
		return "String"
	case TypeArray:
		return "Array"
	case TypeDataTable:
		return "DataTable"
	case TypeInt64:
		return "Int64"
	default:
		return "Unknown"
	}
}

// Flag is the property flag bitmask steering decode and flattening.
type Flag uint32

// Property flags.
const (
	// FlagUnsigned marks an integer as unsigned.
	FlagUnsigned Flag = 1 << 0
	// FlagCoord decodes a float as a world coordinate.
	FlagCoord Flag = 1 << 1
	// FlagNoScale takes 32 raw IEEE-754 bits as-is.
	FlagNoScale Flag = 1 << 2
	// FlagRoundDown limits the high value to range minus one bit unit.
	FlagRoundDown Flag = 1 << 3
	// FlagRoundUp limits the low value to range minus one bit unit.
	FlagRoundUp Flag = 1 << 4
	// FlagNormal uses the normal-float encoding; vectors reconstruct Z.
	FlagNormal Flag = 1 << 5
	// FlagExclude is a sentinel naming another (table, prop) to exclude.
	FlagExclude Flag = 1 << 6
	// FlagXYZE selects XYZ/exponent encoding for vectors.
	FlagXYZE Flag = 1 << 7
	// FlagInsideArray marks a prop reached through an Array element
	// descriptor; it is skipped during flattening.
	FlagInsideArray Flag = 1 << 8
	// FlagCollapsible inlines a child DataTable into its parent.
	FlagCollapsible Flag = 1 << 11
	// FlagCoordMP decodes a multiplayer-optimized coordinate.
	FlagCoordMP Flag = 1 << 12
	// FlagCoordMPLowPrecision drops the coordinate fraction to 3 bits.
	FlagCoordMPLowPrecision Flag = 1 << 13
	// FlagCoordMPIntegral decodes an integer-only multiplayer coordinate.
	FlagCoordMPIntegral Flag = 1 << 14
	// FlagCellCoord decodes a world-cell fractional coordinate.
	FlagCellCoord Flag = 1 << 15
	// FlagCellCoordLowPrecision uses a 3-bit cell fraction.
	FlagCellCoordLowPrecision Flag = 1 << 16
	// FlagCellCoordIntegral decodes an integer cell coordinate.
	FlagCellCoordIntegral Flag = 1 << 17
	// FlagChangesOften is treated as priority 64 during flattening.
	FlagChangesOften Flag = 1 << 18
	// FlagEncodedAgainstTickcount switches integers to varint encoding.
	FlagEncodedAgainstTickcount Flag = 1 << 19
)

// SendProp is an immutable property descriptor: everything needed to read
// one property from a bitstream, but not the property value itself.
type SendProp struct {
	// Type of the described value.
	Type PropType
	// Name is the variable name within its table.
	Name string
	// TableName is the name of the owning send table.
	TableName string
	// Flags steer decoding and flattening.
	Flags Flag
	// Priority orders the property in the flat table.
	Priority int32
	// RefTableName names the referenced table for DataTable props and the
	// excluded table for exclude sentinels.
	RefTableName string
	// NumElements is the element count for Array props.
	NumElements int32
	// LowValue and HighValue bound scaled float decoding.
	LowValue  float32
	HighValue float32
	// NumBits is the width for bounded numerics.
	NumBits int32

	// elem describes Array elements; bound by the flattener from the
	// immediately preceding prop of the same table.
	elem *SendProp
}

// newSendProp builds a descriptor from its wire form.
func newSendProp(def wire.SendPropDef, tableName string) *SendProp {
	return &SendProp{
		Type:         PropType(def.Type),
		Name:         def.VarName,
		TableName:    tableName,
		Flags:        Flag(def.Flags),
		Priority:     def.Priority,
		RefTableName: def.DTName,
		NumElements:  def.NumElements,
		LowValue:     def.LowValue,
		HighValue:    def.HighValue,
		NumBits:      def.NumBits,
	}
}

// HasFlag reports whether all bits of f are set.
func (p *SendProp) HasFlag(f Flag) bool {
	return p.Flags&f == f
}

// HasAnyFlag reports whether any bit of f is set.
func (p *SendProp) HasAnyFlag(f Flag) bool {
	return p.Flags&f != 0
}

// ArrayElem returns the descriptor for this Array prop's elements. It fails
// until the flattener has bound the element descriptor.
func (p *SendProp) ArrayElem() (*SendProp, error) {
	if p.elem == nil {
		return nil, fmt.Errorf("%w: %s.%s (%s)", errs.ErrInvalidArrayProp, p.TableName, p.Name, p.Type)
	}

	return p.elem, nil
}

// bindArrayElem sets the element descriptor for an Array prop.
func (p *SendProp) bindArrayElem(elem *SendProp) {
	p.elem = elem
}
