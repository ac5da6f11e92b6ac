package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// ServerInfo announces global replay parameters; the parser only consumes
// MaxClasses (it fixes the entity header class-id width) but the rest is
// kept for callers.
type ServerInfo struct {
	Protocol     int32
	ServerCount  int32
	IsDedicated  bool
	IsHLTV       bool
	IsReplay     bool
	MaxClients   int32
	MaxClasses   int32
	PlayerSlot   int32
	TickInterval float32
	GameDir      string
	MapName      string
	SkyName      string
	HostName     string
}

// Unmarshal decodes a ServerInfo envelope.
func (m *ServerInfo) Unmarshal(data []byte) error {
	return fields("ServerInfo", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.Protocol)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.ServerCount)
		case num == 3 && typ == protowire.VarintType:
			return consumeBool(buf, &m.IsDedicated)
		case num == 4 && typ == protowire.VarintType:
			return consumeBool(buf, &m.IsHLTV)
		case num == 5 && typ == protowire.VarintType:
			return consumeBool(buf, &m.IsReplay)
		case num == 10 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.MaxClients)
		case num == 11 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.MaxClasses)
		case num == 12 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.PlayerSlot)
		case num == 13 && typ == protowire.Fixed32Type:
			return consumeFloat(buf, &m.TickInterval)
		case num == 14 && typ == protowire.BytesType:
			return consumeString(buf, &m.GameDir)
		case num == 15 && typ == protowire.BytesType:
			return consumeString(buf, &m.MapName)
		case num == 16 && typ == protowire.BytesType:
			return consumeString(buf, &m.SkyName)
		case num == 17 && typ == protowire.BytesType:
			return consumeString(buf, &m.HostName)
		default:
			return -1
		}
	})
}

// SendPropDef is the wire form of one property descriptor.
type SendPropDef struct {
	Type        int32
	VarName     string
	Flags       int32
	Priority    int32
	DTName      string
	NumElements int32
	LowValue    float32
	HighValue   float32
	NumBits     int32
}

// SendTable is one property-description table for a networkable class.
type SendTable struct {
	IsEnd        bool
	NetTableName string
	NeedsDecoder bool
	Props        []SendPropDef
}

// Unmarshal decodes a SendTable envelope.
func (m *SendTable) Unmarshal(data []byte) error {
	return fields("SendTable", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeBool(buf, &m.IsEnd)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(buf, &m.NetTableName)
		case num == 3 && typ == protowire.VarintType:
			return consumeBool(buf, &m.NeedsDecoder)
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return n
			}

			// Priority defaults to 64 when the server omits the field.
			p := SendPropDef{Priority: 64}
			err := fields("SendTable.prop", v, func(num protowire.Number, typ protowire.Type, buf []byte) int {
				switch {
				case num == 1 && typ == protowire.VarintType:
					return consumeInt32(buf, &p.Type)
				case num == 2 && typ == protowire.BytesType:
					return consumeString(buf, &p.VarName)
				case num == 3 && typ == protowire.VarintType:
					return consumeInt32(buf, &p.Flags)
				case num == 4 && typ == protowire.VarintType:
					return consumeInt32(buf, &p.Priority)
				case num == 5 && typ == protowire.BytesType:
					return consumeString(buf, &p.DTName)
				case num == 6 && typ == protowire.VarintType:
					return consumeInt32(buf, &p.NumElements)
				case num == 7 && typ == protowire.Fixed32Type:
					return consumeFloat(buf, &p.LowValue)
				case num == 8 && typ == protowire.Fixed32Type:
					return consumeFloat(buf, &p.HighValue)
				case num == 9 && typ == protowire.VarintType:
					return consumeInt32(buf, &p.NumBits)
				default:
					return -1
				}
			})
			if err != nil {
				return -1
			}
			m.Props = append(m.Props, p)

			return n
		default:
			return -1
		}
	})
}

// CreateStringTable announces a new string table along with its first delta.
type CreateStringTable struct {
	Name              string
	MaxEntries        int32
	NumEntries        int32
	UserDataFixedSize bool
	UserDataSize      int32
	UserDataSizeBits  int32
	Flags             int32
	StringData        []byte
}

// Unmarshal decodes a CreateStringTable envelope.
func (m *CreateStringTable) Unmarshal(data []byte) error {
	return fields("CreateStringTable", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(buf, &m.Name)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.MaxEntries)
		case num == 3 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.NumEntries)
		case num == 4 && typ == protowire.VarintType:
			return consumeBool(buf, &m.UserDataFixedSize)
		case num == 5 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.UserDataSize)
		case num == 6 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.UserDataSizeBits)
		case num == 7 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.Flags)
		case num == 8 && typ == protowire.BytesType:
			return consumeBytes(buf, &m.StringData)
		default:
			return -1
		}
	})
}

// UpdateStringTable carries a sparse delta for an existing string table.
type UpdateStringTable struct {
	TableID           int32
	NumChangedEntries int32
	StringData        []byte
}

// Unmarshal decodes an UpdateStringTable envelope.
func (m *UpdateStringTable) Unmarshal(data []byte) error {
	return fields("UpdateStringTable", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.TableID)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.NumChangedEntries)
		case num == 3 && typ == protowire.BytesType:
			return consumeBytes(buf, &m.StringData)
		default:
			return -1
		}
	})
}

// PacketEntities carries one frame of entity deltas.
type PacketEntities struct {
	MaxEntries     int32
	UpdatedEntries int32
	IsDelta        bool
	UpdateBaseline bool
	Baseline       int32
	DeltaFrom      int32
	EntityData     []byte
}

// Unmarshal decodes a PacketEntities envelope.
func (m *PacketEntities) Unmarshal(data []byte) error {
	return fields("PacketEntities", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.MaxEntries)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.UpdatedEntries)
		case num == 3 && typ == protowire.VarintType:
			return consumeBool(buf, &m.IsDelta)
		case num == 4 && typ == protowire.VarintType:
			return consumeBool(buf, &m.UpdateBaseline)
		case num == 5 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.Baseline)
		case num == 6 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.DeltaFrom)
		case num == 7 && typ == protowire.BytesType:
			return consumeBytes(buf, &m.EntityData)
		default:
			return -1
		}
	})
}

// UserMessage wraps a game-specific sub-message; the parser re-dispatches it
// on the User family keyed by MsgType.
type UserMessage struct {
	MsgType int32
	MsgData []byte
}

// Unmarshal decodes a UserMessage envelope.
func (m *UserMessage) Unmarshal(data []byte) error {
	return fields("UserMessage", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.MsgType)
		case num == 2 && typ == protowire.BytesType:
			return consumeBytes(buf, &m.MsgData)
		default:
			return -1
		}
	})
}

// EventKey describes one field of a game event.
type EventKey struct {
	Type int32
	Name string
}

// EventDescriptor describes one game event type.
type EventDescriptor struct {
	EventID int32
	Name    string
	Keys    []EventKey
}

// GameEventList enumerates every game event the replay may emit.
type GameEventList struct {
	Descriptors []EventDescriptor
}

// Unmarshal decodes a GameEventList envelope.
func (m *GameEventList) Unmarshal(data []byte) error {
	return fields("GameEventList", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		if num != 1 || typ != protowire.BytesType {
			return -1
		}

		v, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return n
		}

		var d EventDescriptor
		err := fields("GameEventList.descriptor", v, func(num protowire.Number, typ protowire.Type, buf []byte) int {
			switch {
			case num == 1 && typ == protowire.VarintType:
				return consumeInt32(buf, &d.EventID)
			case num == 2 && typ == protowire.BytesType:
				return consumeString(buf, &d.Name)
			case num == 3 && typ == protowire.BytesType:
				kv, kn := protowire.ConsumeBytes(buf)
				if kn < 0 {
					return kn
				}

				var k EventKey
				kerr := fields("GameEventList.key", kv, func(num protowire.Number, typ protowire.Type, buf []byte) int {
					switch {
					case num == 1 && typ == protowire.VarintType:
						return consumeInt32(buf, &k.Type)
					case num == 2 && typ == protowire.BytesType:
						return consumeString(buf, &k.Name)
					default:
						return -1
					}
				})
				if kerr != nil {
					return -1
				}
				d.Keys = append(d.Keys, k)

				return kn
			default:
				return -1
			}
		})
		if err != nil {
			return -1
		}
		m.Descriptors = append(m.Descriptors, d)

		return n
	})
}

// Raw wraps a record the parser has no structured decoder for; subscribers
// receive the untouched payload bytes.
type Raw struct {
	Data []byte
}

// Unmarshal keeps the payload as-is.
func (m *Raw) Unmarshal(data []byte) error {
	m.Data = data
	return nil
}
