// Package errs defines the sentinel errors shared across the rewind packages.
//
// Errors are grouped by the subsystem that raises them. Call sites wrap these
// sentinels with fmt.Errorf("%w: ...", err) to attach file, offset and
// bit-position context, so callers can match with errors.Is while still
// seeing where a replay went bad.
package errs

import "errors"

// Input format errors, raised while reading the outer demo stream.
var (
	// ErrFileNotAccessible indicates the replay file could not be opened.
	ErrFileNotAccessible = errors.New("unable to open file")
	// ErrFileTooSmall indicates the file is smaller than the demo header.
	ErrFileTooSmall = errors.New("file size is too small")
	// ErrHeaderMismatch indicates the 8-byte header magic is not PBUFDEM.
	ErrHeaderMismatch = errors.New("header magic is not matching")
	// ErrUnexpectedEOF indicates the stream ended in the middle of a record.
	ErrUnexpectedEOF = errors.New("unexpected end of file")
	// ErrCorrupted indicates the demo stream framing is damaged.
	ErrCorrupted = errors.New("demo file appears to be corrupted")
	// ErrInvalidCompression indicates payload decompression failed.
	ErrInvalidCompression = errors.New("data decompression failed")
	// ErrMessageTooBig indicates a message exceeds the scratch buffer limit.
	ErrMessageTooBig = errors.New("message size exceeds buffer limit")
	// ErrParse indicates a protobuf envelope could not be decoded.
	ErrParse = errors.New("parsing protobuf message failed")
)

// Bitstream bounds errors.
var (
	// ErrBitstreamOverflow indicates more bits were requested than remain.
	ErrBitstreamOverflow = errors.New("more bits requested than available")
	// ErrBitstreamTooLarge indicates an unlikely large chunk of data was
	// submitted as a bitstream.
	ErrBitstreamTooLarge = errors.New("unlikely large chunk of data submitted")
)

// Property decode errors.
var (
	// ErrInvalidType indicates a property has a type no decoder exists for.
	ErrInvalidType = errors.New("invalid property type")
	// ErrInvalidFloatCoord indicates a float coordinate flag combination
	// that cannot be decoded.
	ErrInvalidFloatCoord = errors.New("invalid float coordinate encoding")
	// ErrInvalidStringLength indicates a string property length over the cap.
	ErrInvalidStringLength = errors.New("invalid string property length")
	// ErrInvalidInt64Type indicates an int64 property with malformed width.
	ErrInvalidInt64Type = errors.New("invalid int64 property encoding")
	// ErrInvalidElementCount indicates an array property with too many elements.
	ErrInvalidElementCount = errors.New("invalid number of array elements")
	// ErrBadCast indicates a typed accessor does not match the stored variant.
	ErrBadCast = errors.New("property value type mismatch")
)

// Structural errors raised while maintaining tables and entities.
var (
	// ErrUnknownTable indicates a send table referenced by name is missing.
	ErrUnknownTable = errors.New("unknown send table")
	// ErrUnknownClassIndex indicates a class id outside the class list.
	ErrUnknownClassIndex = errors.New("unknown entity class index")
	// ErrEntityIDTooLarge indicates an entity id beyond the slot capacity.
	ErrEntityIDTooLarge = errors.New("entity id is too large")
	// ErrUnknownProperty indicates a property name lookup failed.
	ErrUnknownProperty = errors.New("property does not exist")
	// ErrUnknownSendprop indicates a field id outside the flat table.
	ErrUnknownSendprop = errors.New("property index out of range")
	// ErrInvalidArrayProp indicates an array property with no predecessor to
	// define its element type.
	ErrInvalidArrayProp = errors.New("array property has no previous member")
	// ErrBaselineNotFound indicates the instancebaseline table is missing.
	ErrBaselineNotFound = errors.New("unable to find baseline instance")
	// ErrInvalidDefinition indicates a class definition lookup failed.
	ErrInvalidDefinition = errors.New("invalid definition specified")
	// ErrInvalidID indicates an update or delete for an uninitialized slot.
	ErrInvalidID = errors.New("invalid entity id in update or delete")
)

// String table errors.
var (
	// ErrUnknownKey indicates a string table key lookup failed.
	ErrUnknownKey = errors.New("unknown string table key")
	// ErrUnknownIndex indicates a string table index lookup failed.
	ErrUnknownIndex = errors.New("unknown string table index")
	// ErrKeyMissing indicates a full update back-referenced a key that
	// cannot exist yet.
	ErrKeyMissing = errors.New("string table key missing in full update")
	// ErrMalformedSubstring indicates a key history reference with
	// out-of-range specs.
	ErrMalformedSubstring = errors.New("malformed string table key history reference")
	// ErrValueOverflow indicates a string table value over the size cap.
	ErrValueOverflow = errors.New("string table value too large")
)

// Dispatch errors.
var (
	// ErrNoConversionAvailable indicates no constructor is registered for a
	// (family, id) pair.
	ErrNoConversionAvailable = errors.New("no conversion available for message type")
	// ErrTypeError indicates a payload of the wrong type was forwarded.
	ErrTypeError = errors.New("payload type mismatch")
	// ErrUnknownEvent indicates an event descriptor lookup failed.
	ErrUnknownEvent = errors.New("unknown event descriptor")
)
