package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Packet is the outer envelope of a DEM Packet / SignonPacket record: an
// opaque byte buffer holding a framed sequence of NET records.
type Packet struct {
	Data []byte
}

// Unmarshal decodes a Packet envelope.
func (m *Packet) Unmarshal(data []byte) error {
	return fields("Packet", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		if num == 3 && typ == protowire.BytesType {
			return consumeBytes(buf, &m.Data)
		}

		return -1
	})
}

// SendTables is the outer envelope of a DEM SendTables record; its payload
// is another framed NET record sequence.
type SendTables struct {
	Data []byte
}

// Unmarshal decodes a SendTables envelope.
func (m *SendTables) Unmarshal(data []byte) error {
	return fields("SendTables", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		if num == 1 && typ == protowire.BytesType {
			return consumeBytes(buf, &m.Data)
		}

		return -1
	})
}

// Class describes one entity class announced in a ClassInfo record.
type Class struct {
	ClassID     int32
	NetworkName string
	TableName   string
}

// ClassInfo lists every entity class of the replay.
type ClassInfo struct {
	Classes []Class
}

// Unmarshal decodes a ClassInfo envelope.
func (m *ClassInfo) Unmarshal(data []byte) error {
	return fields("ClassInfo", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		if num != 1 || typ != protowire.BytesType {
			return -1
		}

		v, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return n
		}

		var c Class
		err := fields("ClassInfo.class", v, func(num protowire.Number, typ protowire.Type, buf []byte) int {
			switch {
			case num == 1 && typ == protowire.VarintType:
				return consumeInt32(buf, &c.ClassID)
			case num == 2 && typ == protowire.BytesType:
				return consumeString(buf, &c.NetworkName)
			case num == 3 && typ == protowire.BytesType:
				return consumeString(buf, &c.TableName)
			default:
				return -1
			}
		})
		if err != nil {
			return -1
		}
		m.Classes = append(m.Classes, c)

		return n
	})
}

// FileHeader carries replay metadata from the first DEM record.
type FileHeader struct {
	DemoFileStamp            string
	NetworkProtocol          int32
	ServerName               string
	ClientName               string
	MapName                  string
	GameDirectory            string
	FullPacketsVersion       int32
	AllowClientsideEntities  bool
	AllowClientsideParticles bool
}

// Unmarshal decodes a FileHeader envelope.
func (m *FileHeader) Unmarshal(data []byte) error {
	return fields("FileHeader", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(buf, &m.DemoFileStamp)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.NetworkProtocol)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(buf, &m.ServerName)
		case num == 4 && typ == protowire.BytesType:
			return consumeString(buf, &m.ClientName)
		case num == 5 && typ == protowire.BytesType:
			return consumeString(buf, &m.MapName)
		case num == 6 && typ == protowire.BytesType:
			return consumeString(buf, &m.GameDirectory)
		case num == 7 && typ == protowire.VarintType:
			return consumeInt32(buf, &m.FullPacketsVersion)
		case num == 8 && typ == protowire.VarintType:
			return consumeBool(buf, &m.AllowClientsideEntities)
		case num == 9 && typ == protowire.VarintType:
			return consumeBool(buf, &m.AllowClientsideParticles)
		default:
			return -1
		}
	})
}

// SnapshotItem is one entry of a string table snapshot.
type SnapshotItem struct {
	Str  string
	Data []byte
}

// SnapshotTable is a full string table dump inside a StringTables record.
type SnapshotTable struct {
	Items       []SnapshotItem
	ClientItems []SnapshotItem
	TableName   string
	TableFlags  int32
}

// StringTables is the outer envelope of a DEM StringTables record and of the
// snapshot half of a FullPacket.
type StringTables struct {
	Tables []SnapshotTable
}

func consumeSnapshotItem(buf []byte, dst *[]SnapshotItem) int {
	v, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return n
	}

	var item SnapshotItem
	err := fields("StringTables.item", v, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(buf, &item.Str)
		case num == 2 && typ == protowire.BytesType:
			return consumeBytes(buf, &item.Data)
		default:
			return -1
		}
	})
	if err != nil {
		return -1
	}
	*dst = append(*dst, item)

	return n
}

// Unmarshal decodes a StringTables envelope.
func (m *StringTables) Unmarshal(data []byte) error {
	return fields("StringTables", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		if num != 1 || typ != protowire.BytesType {
			return -1
		}

		v, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return n
		}

		var tbl SnapshotTable
		err := fields("StringTables.table", v, func(num protowire.Number, typ protowire.Type, buf []byte) int {
			switch {
			case num == 1 && typ == protowire.BytesType:
				return consumeSnapshotItem(buf, &tbl.Items)
			case num == 2 && typ == protowire.BytesType:
				return consumeSnapshotItem(buf, &tbl.ClientItems)
			case num == 3 && typ == protowire.BytesType:
				return consumeString(buf, &tbl.TableName)
			case num == 4 && typ == protowire.VarintType:
				return consumeInt32(buf, &tbl.TableFlags)
			default:
				return -1
			}
		})
		if err != nil {
			return -1
		}
		m.Tables = append(m.Tables, tbl)

		return n
	})
}

// FullPacket is a self-contained snapshot record: a complete string table
// dump plus an embedded packet of NET records. Used as a seek point.
type FullPacket struct {
	StringTables StringTables
	Packet       Packet
}

// Unmarshal decodes a FullPacket envelope.
func (m *FullPacket) Unmarshal(data []byte) error {
	var ferr error
	err := fields("FullPacket", data, func(num protowire.Number, typ protowire.Type, buf []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return n
			}
			if err := m.StringTables.Unmarshal(v); err != nil && ferr == nil {
				ferr = err
			}

			return n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return n
			}
			if err := m.Packet.Unmarshal(v); err != nil && ferr == nil {
				ferr = err
			}

			return n
		default:
			return -1
		}
	})
	if err != nil {
		return err
	}

	return ferr
}
