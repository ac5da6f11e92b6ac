package rewind

import (
	"github.com/arloliu/rewind/dispatch"
	"github.com/arloliu/rewind/format"
	"github.com/arloliu/rewind/wire"
)

// unmarshalInto adapts a wire message factory into a dispatch constructor.
func unmarshalInto[M any, PM interface {
	*M
	wire.Unmarshaler
}](data []byte) (any, error) {
	m := PM(new(M))
	if err := m.Unmarshal(data); err != nil {
		return nil, err
	}

	return m, nil
}

// demConstructors maps DEM record kinds to their payload constructors.
// Kinds without a structured envelope dispatch as wire.Raw.
var demConstructors = map[format.DemKind]dispatch.Constructor{
	format.DemFileHeader:          unmarshalInto[wire.FileHeader],
	format.DemFileInfo:            unmarshalInto[wire.Raw],
	format.DemSyncTick:            unmarshalInto[wire.Raw],
	format.DemSendTables:          unmarshalInto[wire.SendTables],
	format.DemClassInfo:           unmarshalInto[wire.ClassInfo],
	format.DemStringTables:        unmarshalInto[wire.StringTables],
	format.DemPacket:              unmarshalInto[wire.Packet],
	format.DemSignonPacket:        unmarshalInto[wire.Packet],
	format.DemConsoleCmd:          unmarshalInto[wire.Raw],
	format.DemCustomData:          unmarshalInto[wire.Raw],
	format.DemCustomDataCallbacks: unmarshalInto[wire.Raw],
	format.DemUserCmd:             unmarshalInto[wire.Raw],
	format.DemFullPacket:          unmarshalInto[wire.FullPacket],
	format.DemSaveGame:            unmarshalInto[wire.Raw],
}

// netConstructors maps NET/SVC record kinds to their payload constructors.
var netConstructors = map[format.NetKind]dispatch.Constructor{
	format.NetNOP:               unmarshalInto[wire.Raw],
	format.NetDisconnect:        unmarshalInto[wire.Raw],
	format.NetFile:              unmarshalInto[wire.Raw],
	format.NetSplitScreenUser:   unmarshalInto[wire.Raw],
	format.NetTick:              unmarshalInto[wire.Raw],
	format.NetStringCmd:         unmarshalInto[wire.Raw],
	format.NetSetConVar:         unmarshalInto[wire.Raw],
	format.NetSignonState:       unmarshalInto[wire.Raw],
	format.SvcServerInfo:        unmarshalInto[wire.ServerInfo],
	format.SvcSendTable:         unmarshalInto[wire.SendTable],
	format.SvcClassInfo:         unmarshalInto[wire.Raw],
	format.SvcSetPause:          unmarshalInto[wire.Raw],
	format.SvcCreateStringTable: unmarshalInto[wire.CreateStringTable],
	format.SvcUpdateStringTable: unmarshalInto[wire.UpdateStringTable],
	format.SvcVoiceInit:         unmarshalInto[wire.Raw],
	format.SvcVoiceData:         unmarshalInto[wire.Raw],
	format.SvcPrint:             unmarshalInto[wire.Raw],
	format.SvcSounds:            unmarshalInto[wire.Raw],
	format.SvcSetView:           unmarshalInto[wire.Raw],
	format.SvcFixAngle:          unmarshalInto[wire.Raw],
	format.SvcCrosshairAngle:    unmarshalInto[wire.Raw],
	format.SvcBSPDecal:          unmarshalInto[wire.Raw],
	format.SvcSplitScreen:       unmarshalInto[wire.Raw],
	format.SvcUserMessage:       unmarshalInto[wire.UserMessage],
	format.SvcGameEvent:         unmarshalInto[wire.Raw],
	format.SvcPacketEntities:    unmarshalInto[wire.PacketEntities],
	format.SvcTempEntities:      unmarshalInto[wire.Raw],
	format.SvcPrefetch:          unmarshalInto[wire.Raw],
	format.SvcMenu:              unmarshalInto[wire.Raw],
	format.SvcGameEventList:     unmarshalInto[wire.GameEventList],
	format.SvcGetCvarValue:      unmarshalInto[wire.Raw],
	format.SvcPacketReliable:    unmarshalInto[wire.Raw],
	format.SvcFullFrameSplit:    unmarshalInto[wire.Raw],
}

// registerTypes installs the id -> constructor tables on the dispatcher.
// User sub-messages have no structured envelopes here; they fall back to
// wire.Raw through the family default.
func registerTypes(d *dispatch.Dispatcher) {
	for kind, ctor := range demConstructors {
		d.RegisterConstructor(dispatch.Dem, uint32(kind), ctor)
	}
	for kind, ctor := range netConstructors {
		d.RegisterConstructor(dispatch.Net, uint32(kind), ctor)
	}
	d.RegisterDefault(dispatch.User, unmarshalInto[wire.Raw])
}
