package rewind

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arloliu/rewind/bitstream"
	"github.com/arloliu/rewind/demstream"
	"github.com/arloliu/rewind/dispatch"
	"github.com/arloliu/rewind/entity"
	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/format"
	"github.com/arloliu/rewind/internal/pool"
	"github.com/arloliu/rewind/sendtable"
	"github.com/arloliu/rewind/stringtable"
	"github.com/arloliu/rewind/wire"
)

// Parser drives a demo stream through the decoding pipeline: DEM records
// are demultiplexed into NET records, which feed the send tables, string
// tables and the entity store; every decoded event fans out through the
// dispatcher.
//
// A parser is strictly single-goroutine: all callbacks run synchronously on
// the goroutine calling Read or Run. For concurrent work, run independent
// parsers on independent goroutines.
type Parser struct {
	set        Settings
	stream     demstream.Stream
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger

	file string
	tick uint32
	msgs uint32

	classBits  int
	maxClasses int32
	classes    map[uint32]entity.Class

	sendTables   *sendtable.Registry
	flatTables   []sendtable.FlatSendTable
	flatByClass  map[uint32]*sendtable.FlatSendTable
	stringTables *stringtable.Registry
	entities     *entity.Store
	events       map[int32]wire.EventDescriptor

	fileHeader *wire.FileHeader

	delta        *entity.Delta
	fieldScratch *[]int

	flattened bool
	finished  bool

	// err carries a failure out of a dispatcher callback; callbacks cannot
	// return errors themselves.
	err error
}

// NewParser wires a parser to a stream. The stream must still be opened
// through Open; the parser takes ownership and closes it on Close.
func NewParser(stream demstream.Stream, set Settings) *Parser {
	p := &Parser{
		set:          set,
		stream:       stream,
		dispatcher:   dispatch.New(),
		log:          set.Logger,
		classes:      make(map[uint32]entity.Class, 512),
		sendTables:   sendtable.NewRegistry(),
		stringTables: stringtable.NewRegistry(),
		events:       make(map[int32]wire.EventDescriptor),
		fieldScratch: pool.GetFieldSlice(),
	}

	registerTypes(p.dispatcher)

	// The parser subscribes to its own dispatcher so state keeping also
	// works when records are forwarded instead of fast-pathed.
	p.subscribe(dispatch.Dem, uint32(format.DemPacket), p.handlePacketEvent)
	p.subscribe(dispatch.Dem, uint32(format.DemSignonPacket), p.handlePacketEvent)
	p.subscribe(dispatch.Dem, uint32(format.DemFileHeader), p.handleFileHeaderEvent)

	if set.ParseEntities {
		p.log.Debug().Msg("registering entity callbacks")
		p.subscribe(dispatch.Dem, uint32(format.DemClassInfo), p.handleClassesEvent)
		p.subscribe(dispatch.Dem, uint32(format.DemSendTables), p.handleSendTablesEvent)
		p.subscribe(dispatch.Net, uint32(format.SvcServerInfo), p.handleServerInfoEvent)
		p.subscribe(dispatch.Net, uint32(format.SvcSendTable), p.handleSendTableEvent)
		p.subscribe(dispatch.Net, uint32(format.SvcPacketEntities), p.handleEntitiesEvent)

		p.log.Debug().Int("slots", format.MaxEntities).Msg("allocating entity store")
		p.entities = entity.NewStore()
	}

	if set.ParseStringTables {
		p.subscribe(dispatch.Net, uint32(format.SvcCreateStringTable), p.handleCreateStringTableEvent)
		p.subscribe(dispatch.Net, uint32(format.SvcUpdateStringTable), p.handleUpdateStringTableEvent)
	}

	if set.ParseEvents {
		p.subscribe(dispatch.Net, uint32(format.SvcGameEventList), p.handleEventListEvent)
	}

	if set.ForwardUser {
		p.subscribe(dispatch.Net, uint32(format.SvcUserMessage), p.handleUserMessageEvent)
	}

	if set.TrackEntities {
		p.delta = &entity.Delta{}
	}

	return p
}

// subscribe registers an internal handler, routing its error into p.err.
func (p *Parser) subscribe(f dispatch.Family, id uint32, h func(*dispatch.Event) error) {
	p.dispatcher.On(f, id, func(ev *dispatch.Event) {
		if p.err == nil {
			p.err = h(ev)
		}
	})
}

// Open opens the replay and announces the Start status.
func (p *Parser) Open(path string) error {
	if err := p.stream.Open(path); err != nil {
		return err
	}
	p.file = path

	p.dispatcher.Forward(dispatch.Status, uint32(format.StatusStart), p.tick, nil)

	return nil
}

// Close releases the stream and the parser's scratch buffers.
func (p *Parser) Close() error {
	pool.PutFieldSlice(p.fieldScratch)
	p.fieldScratch = nil

	return p.stream.Close()
}

// Good reports whether records remain.
func (p *Parser) Good() bool {
	return p.stream.Good()
}

// Tick returns the tick of the last record read.
func (p *Parser) Tick() uint32 {
	return p.tick
}

// MessageCount returns the number of records processed, inner NET records
// included.
func (p *Parser) MessageCount() uint32 {
	return p.msgs
}

// Dispatcher exposes the event bus for subscriptions.
func (p *Parser) Dispatcher() *dispatch.Dispatcher {
	return p.dispatcher
}

// OnStatus subscribes to a replay lifecycle event.
func (p *Parser) OnStatus(s format.Status, cb dispatch.Callback) func() {
	return p.dispatcher.On(dispatch.Status, uint32(s), cb)
}

// OnDem subscribes to an outer DEM record kind; requires ForwardDem.
func (p *Parser) OnDem(kind format.DemKind, cb dispatch.Callback) func() {
	return p.dispatcher.On(dispatch.Dem, uint32(kind), cb)
}

// OnNet subscribes to a NET record kind; requires ForwardNet for
// non-internal kinds.
func (p *Parser) OnNet(kind format.NetKind, cb dispatch.Callback) func() {
	return p.dispatcher.On(dispatch.Net, uint32(kind), cb)
}

// OnUser subscribes to a user sub-message type; requires ForwardUser.
func (p *Parser) OnUser(id uint32, cb dispatch.Callback) func() {
	return p.dispatcher.On(dispatch.User, id, cb)
}

// OnEntity subscribes to entity events of one class. Subscribe after the
// Flattables status to know the class ids, or look them up by name.
func (p *Parser) OnEntity(classID uint32, cb dispatch.Callback) func() {
	return p.dispatcher.On(dispatch.Entity, classID, cb)
}

// OnEntityDelta subscribes to updated-field events of one class; requires
// TrackEntities.
func (p *Parser) OnEntityDelta(classID uint32, cb dispatch.Callback) func() {
	return p.dispatcher.On(dispatch.EntityDelta, classID, cb)
}

// Entities exposes the entity store.
func (p *Parser) Entities() *entity.Store {
	return p.entities
}

// StringTables exposes the string table registry.
func (p *Parser) StringTables() *stringtable.Registry {
	return p.stringTables
}

// SendTables exposes the send table registry.
func (p *Parser) SendTables() *sendtable.Registry {
	return p.sendTables
}

// FileHeader returns the parsed file header, or nil before the record has
// been seen.
func (p *Parser) FileHeader() *wire.FileHeader {
	return p.fileHeader
}

// FlatTable returns the flat table for a class id.
func (p *Parser) FlatTable(classID uint32) (*sendtable.FlatSendTable, error) {
	flat, ok := p.flatByClass[classID]
	if !ok {
		return nil, fmt.Errorf("%w: class %d", errs.ErrUnknownTable, classID)
	}

	return flat, nil
}

// ClassID resolves a class by its exact network name.
func (p *Parser) ClassID(networkName string) (uint32, error) {
	for id, c := range p.classes {
		if c.NetworkName == networkName {
			return id, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", errs.ErrInvalidDefinition, networkName)
}

// FindClassIDs resolves every class whose network name starts with the
// given prefix.
func (p *Parser) FindClassIDs(prefix string) []uint32 {
	var out []uint32
	for id, c := range p.classes {
		if strings.HasPrefix(c.NetworkName, prefix) {
			out = append(out, id)
		}
	}

	return out
}

// EventDescriptor returns the descriptor for a game event id; requires
// ParseEvents.
func (p *Parser) EventDescriptor(id int32) (wire.EventDescriptor, error) {
	d, ok := p.events[id]
	if !ok {
		return wire.EventDescriptor{}, fmt.Errorf("%w: %d", errs.ErrUnknownEvent, id)
	}

	return d, nil
}

// Read processes a single outer record.
func (p *Parser) Read() error {
	// Without DEM forwarding the stream seeks past record kinds nobody
	// consumes, which saves reading their payloads at all.
	msg, err := p.stream.Read(!p.set.ForwardDem)
	if err != nil {
		return err
	}
	p.msgs++

	// The trailing records are written with tick 0; keep the last real one.
	if msg.Tick > 0 {
		p.tick = msg.Tick
	}

	if p.set.ForwardDem {
		if err := p.dispatcher.ForwardRaw(dispatch.Dem, uint32(msg.Kind), msg.Tick, msg.Data); err != nil {
			return err
		}
	} else if err := p.handleDem(msg); err != nil {
		return err
	}

	if p.err != nil {
		return p.err
	}

	if !p.stream.Good() && !p.finished {
		p.finished = true
		p.log.Debug().Str("file", p.file).Msg("reached end of replay")
		p.dispatcher.Forward(dispatch.Status, uint32(format.StatusFinish), p.tick, nil)
	}

	return nil
}

// handleDem is the fast path: only the records that drive state are parsed.
func (p *Parser) handleDem(msg demstream.Message) error {
	switch msg.Kind {
	case format.DemPacket, format.DemSignonPacket:
		pkt, err := p.retrieveDem(msg)
		if err != nil {
			return err
		}

		return p.demuxNet(pkt.(*wire.Packet).Data, msg.Tick)
	case format.DemSendTables:
		if !p.set.ParseEntities {
			return nil
		}
		st, err := p.retrieveDem(msg)
		if err != nil {
			return err
		}

		return p.demuxNet(st.(*wire.SendTables).Data, msg.Tick)
	case format.DemClassInfo:
		if !p.set.ParseEntities {
			return nil
		}
		ci, err := p.retrieveDem(msg)
		if err != nil {
			return err
		}

		return p.handleClasses(ci.(*wire.ClassInfo), msg.Tick)
	case format.DemFileHeader:
		fh, err := p.retrieveDem(msg)
		if err != nil {
			return err
		}
		p.fileHeader = fh.(*wire.FileHeader)

		return nil
	default:
		return nil
	}
}

func (p *Parser) retrieveDem(msg demstream.Message) (any, error) {
	return p.dispatcher.Retrieve(dispatch.Dem, uint32(msg.Kind), msg.Data)
}

// Run processes every remaining record.
func (p *Parser) Run() error {
	for p.stream.Good() {
		if err := p.Read(); err != nil {
			return err
		}
	}

	return nil
}

// demuxNet walks the inner record sequence of a packet: varint kind, varint
// size, payload. Records that drive state are handled inline unless
// ForwardNetInternal moved all handling onto the dispatcher.
func (p *Parser) demuxNet(data []byte, tick uint32) error {
	for len(data) > 0 {
		p.msgs++

		kind, n, err := p.readNetVarint(data)
		if err != nil {
			return err
		}
		data = data[n:]

		size, n, err := p.readNetVarint(data)
		if err != nil {
			return err
		}
		data = data[n:]

		if int(size) > len(data) {
			return fmt.Errorf("%w: %s: net record kind %d, size %d of %d",
				errs.ErrUnexpectedEOF, p.file, kind, size, len(data))
		}

		payload := data[:size]
		data = data[size:]

		if p.set.ForwardNetInternal {
			if err := p.dispatcher.ForwardRaw(dispatch.Net, kind, tick, payload); err != nil {
				return err
			}
			if p.err != nil {
				return p.err
			}

			continue
		}

		handled, err := p.handleNet(format.NetKind(kind), payload, tick)
		if err != nil {
			return err
		}
		if handled {
			continue
		}

		if p.set.ForwardNet {
			if err := p.dispatcher.ForwardRaw(dispatch.Net, kind, tick, payload); err != nil {
				return err
			}
			if p.err != nil {
				return p.err
			}
		}
	}

	return nil
}

// handleNet dispatches one internal NET record inline. The returned flag
// reports whether the record was consumed and must not be forwarded.
func (p *Parser) handleNet(kind format.NetKind, payload []byte, tick uint32) (bool, error) {
	retrieve := func() (any, error) {
		return p.dispatcher.Retrieve(dispatch.Net, uint32(kind), payload)
	}

	switch kind {
	case format.SvcPacketEntities:
		if !p.set.ParseEntities {
			return true, nil
		}
		m, err := retrieve()
		if err != nil {
			return true, err
		}

		return true, p.handleEntities(m.(*wire.PacketEntities), tick)
	case format.SvcServerInfo:
		if !p.set.ParseEntities {
			return true, nil
		}
		m, err := retrieve()
		if err != nil {
			return true, err
		}

		return true, p.handleServerInfo(m.(*wire.ServerInfo))
	case format.SvcSendTable:
		if !p.set.ParseEntities {
			return true, nil
		}
		m, err := retrieve()
		if err != nil {
			return true, err
		}

		return true, p.handleSendTable(m.(*wire.SendTable))
	case format.SvcCreateStringTable:
		if !p.set.ParseStringTables {
			return true, nil
		}
		m, err := retrieve()
		if err != nil {
			return true, err
		}

		return true, p.handleCreateStringTable(m.(*wire.CreateStringTable))
	case format.SvcUpdateStringTable:
		if !p.set.ParseStringTables {
			return true, nil
		}
		m, err := retrieve()
		if err != nil {
			return true, err
		}

		return true, p.handleUpdateStringTable(m.(*wire.UpdateStringTable))
	case format.SvcGameEventList:
		if p.set.ParseEvents {
			m, err := retrieve()
			if err != nil {
				return true, err
			}
			if err := p.handleEventList(m.(*wire.GameEventList)); err != nil {
				return true, err
			}
		}

		// The event list stays forwardable; it is the one internal record
		// external consumers regularly want raw.
		return false, nil
	case format.SvcUserMessage:
		if !p.set.ForwardUser {
			return true, nil
		}
		m, err := retrieve()
		if err != nil {
			return true, err
		}

		return true, p.handleUserMessage(m.(*wire.UserMessage), tick)
	default:
		return false, nil
	}
}

func (p *Parser) readNetVarint(data []byte) (uint32, int, error) {
	var result uint32
	for i := 0; ; i++ {
		if i == 5 {
			return 0, 0, fmt.Errorf("%w: %s: net varint", errs.ErrCorrupted, p.file)
		}
		if i >= len(data) {
			return 0, 0, fmt.Errorf("%w: %s: net varint", errs.ErrUnexpectedEOF, p.file)
		}

		result |= uint32(data[i]&0x7F) << (7 * i)
		if data[i]&0x80 == 0 {
			return result, i + 1, nil
		}
	}
}

// Dispatcher-facing wrappers around the internal handlers; these run when
// records arrive through Forward instead of the fast path.

func (p *Parser) handlePacketEvent(ev *dispatch.Event) error {
	return p.demuxNet(ev.Payload.(*wire.Packet).Data, ev.Tick)
}

func (p *Parser) handleFileHeaderEvent(ev *dispatch.Event) error {
	p.fileHeader = ev.Payload.(*wire.FileHeader)
	return nil
}

func (p *Parser) handleSendTablesEvent(ev *dispatch.Event) error {
	return p.demuxNet(ev.Payload.(*wire.SendTables).Data, ev.Tick)
}

func (p *Parser) handleClassesEvent(ev *dispatch.Event) error {
	return p.handleClasses(ev.Payload.(*wire.ClassInfo), ev.Tick)
}

func (p *Parser) handleServerInfoEvent(ev *dispatch.Event) error {
	return p.handleServerInfo(ev.Payload.(*wire.ServerInfo))
}

func (p *Parser) handleSendTableEvent(ev *dispatch.Event) error {
	return p.handleSendTable(ev.Payload.(*wire.SendTable))
}

func (p *Parser) handleEntitiesEvent(ev *dispatch.Event) error {
	return p.handleEntities(ev.Payload.(*wire.PacketEntities), ev.Tick)
}

func (p *Parser) handleCreateStringTableEvent(ev *dispatch.Event) error {
	return p.handleCreateStringTable(ev.Payload.(*wire.CreateStringTable))
}

func (p *Parser) handleUpdateStringTableEvent(ev *dispatch.Event) error {
	return p.handleUpdateStringTable(ev.Payload.(*wire.UpdateStringTable))
}

func (p *Parser) handleEventListEvent(ev *dispatch.Event) error {
	return p.handleEventList(ev.Payload.(*wire.GameEventList))
}

func (p *Parser) handleUserMessageEvent(ev *dispatch.Event) error {
	return p.handleUserMessage(ev.Payload.(*wire.UserMessage), ev.Tick)
}

// handleServerInfo fixes the class-id width from the announced class count.
func (p *Parser) handleServerInfo(m *wire.ServerInfo) error {
	p.log.Debug().Int32("max_classes", m.MaxClasses).Msg("received server info")

	p.maxClasses = m.MaxClasses
	p.classBits = ceilLog2(m.MaxClasses)

	return nil
}

// handleSendTable stores one property table.
func (p *Parser) handleSendTable(m *wire.SendTable) error {
	p.log.Trace().Str("table", m.NetTableName).Int("props", len(m.Props)).Msg("adding send table")
	p.sendTables.Insert(sendtable.NewSendTable(m))

	return nil
}

// handleClasses builds the class list, flattens the send tables and
// announces the Flattables status.
func (p *Parser) handleClasses(m *wire.ClassInfo, tick uint32) error {
	for _, c := range m.Classes {
		p.classes[uint32(c.ClassID)] = entity.Class{
			ID:          uint32(c.ClassID),
			TableName:   c.TableName,
			NetworkName: c.NetworkName,
		}
	}

	if p.flattened {
		return nil
	}

	flats, err := p.sendTables.Flatten()
	if err != nil {
		return err
	}
	p.flatTables = flats

	byName := make(map[string]*sendtable.FlatSendTable, len(flats))
	for i := range flats {
		byName[flats[i].Name] = &flats[i]
	}

	p.flatByClass = make(map[uint32]*sendtable.FlatSendTable, len(p.classes))
	for id, c := range p.classes {
		flat, ok := byName[c.TableName]
		if !ok {
			// Classes without a send table are never observed on the wire.
			p.log.Debug().Str("class", c.NetworkName).Msg("class without send table")
			continue
		}
		p.flatByClass[id] = flat
	}

	p.flattened = true
	p.dispatcher.Forward(dispatch.Status, uint32(format.StatusFlattables), tick, nil)

	return nil
}

// handleCreateStringTable creates a table and applies its initial delta.
// Tables with the undocumented bit 2 in user_data_size_bits and tables on
// the skip list are dropped, but still consume a table id.
func (p *Parser) handleCreateStringTable(m *wire.CreateStringTable) error {
	if m.UserDataSizeBits&2 != 0 {
		p.stringTables.Insert(nil)
		p.log.Debug().Str("table", m.Name).Msg("dropping string table with user-data bit 2")

		return nil
	}
	if _, skip := p.set.SkipStringTables[m.Name]; skip {
		p.stringTables.Insert(nil)
		p.log.Debug().Str("table", m.Name).Msg("skipping string table")

		return nil
	}

	p.log.Debug().Str("table", m.Name).Int32("entries", m.NumEntries).Msg("creating string table")

	t := stringtable.New(m)
	p.stringTables.Insert(t)

	return t.ApplyDelta(m.NumEntries, m.StringData)
}

// handleUpdateStringTable applies a delta to a table addressed by id;
// unknown and dropped ids vanish silently.
func (p *Parser) handleUpdateStringTable(m *wire.UpdateStringTable) error {
	t, ok := p.stringTables.ByID(m.TableID)
	if !ok {
		p.log.Trace().Int32("id", m.TableID).Msg("update for unknown string table")
		return nil
	}

	p.log.Trace().Str("table", t.Name).Msg("updating string table")

	return t.ApplyDelta(m.NumChangedEntries, m.StringData)
}

// handleEventList stores the game event descriptors.
func (p *Parser) handleEventList(m *wire.GameEventList) error {
	p.log.Debug().Int("descriptors", len(m.Descriptors)).Msg("creating event list")

	for _, d := range m.Descriptors {
		p.events[d.EventID] = d
	}

	return nil
}

// handleUserMessage re-dispatches the wrapped sub-message on the User
// family keyed by its sub-type.
func (p *Parser) handleUserMessage(m *wire.UserMessage, tick uint32) error {
	return p.dispatcher.ForwardRaw(dispatch.User, uint32(m.MsgType), tick, m.MsgData)
}

// isSkipped reports whether an entity's class is excluded from decoding.
func (p *Parser) isSkipped(e *entity.Entity) bool {
	id := e.ClassID()
	if p.set.SkipUnsubscribedEntities && !p.dispatcher.HasCallback(dispatch.Entity, id) {
		return true
	}

	_, ok := p.set.SkipEntities[id]

	return ok
}

// handleEntities applies one PacketEntities record: updated_entries headers
// followed by the delta tail sweep.
func (p *Parser) handleEntities(m *wire.PacketEntities, tick uint32) error {
	b, err := bitstream.New(m.EntityData)
	if err != nil {
		return err
	}

	baseline, ok := p.stringTables.ByName(format.BaselineTable)
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrBaselineNotFound, format.BaselineTable)
	}

	id := int32(-1)
	for i := int32(0); i < m.UpdatedEntries; i++ {
		var state entity.State
		id, state, err = entity.ReadHeader(b, id)
		if err != nil {
			return err
		}

		slot, err := p.entities.At(id)
		if err != nil {
			return err
		}

		switch state {
		case entity.StateCreated:
			if err := p.createEntity(b, baseline, slot, id, tick); err != nil {
				return err
			}
		case entity.StateUpdated:
			if !slot.Initialized() {
				return fmt.Errorf("%w: update for empty slot %d", errs.ErrInvalidID, id)
			}

			if p.isSkipped(slot) {
				if err := slot.SkipUpdate(b, p.fieldScratch); err != nil {
					return err
				}
			} else {
				if err := slot.Update(b, p.fieldScratch, p.delta); err != nil {
					return err
				}
				slot.SetState(entity.StateUpdated)
				p.forwardEntity(slot, tick)
			}
		case entity.StateDeleted:
			if !slot.Initialized() {
				return fmt.Errorf("%w: delete for empty slot %d", errs.ErrInvalidID, id)
			}
			p.deleteEntity(slot, id, tick)
		case entity.StateDefault:
			// A pure PVS state change carries no payload.
		}

		if p.set.TrackEntities && slot.Initialized() && p.delta != nil && p.delta.EntityID == id {
			p.dispatcher.Forward(dispatch.EntityDelta, slot.ClassID(), tick, p.delta)
		}
	}

	// Delta tail sweep: ids flagged for removal after the header run.
	if m.IsDelta {
		for {
			more, err := b.Read(1)
			if err != nil {
				return err
			}
			if more == 0 {
				break
			}

			sweepID, err := b.Read(11)
			if err != nil {
				return err
			}

			slot, err := p.entities.At(int32(sweepID))
			if err != nil {
				return err
			}
			if slot.Initialized() {
				p.deleteEntity(slot, int32(sweepID), tick)
			}
		}
	}

	return nil
}

// createEntity decodes one create: class id, discarded serial, baseline,
// then the in-stream delta.
func (p *Parser) createEntity(b *bitstream.Bitstream, baseline *stringtable.StringTable, slot *entity.Entity, id int32, tick uint32) error {
	classID, err := b.Read(p.classBits)
	if err != nil {
		return err
	}
	// The 10-bit serial is never used; seek past it to keep position
	// parity with the engine.
	b.SeekForward(10)

	cls, ok := p.classes[classID]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrUnknownClassIndex, classID)
	}
	flat, ok := p.flatByClass[classID]
	if !ok {
		return fmt.Errorf("%w: class %s", errs.ErrUnknownTable, cls.NetworkName)
	}

	if !slot.Initialized() {
		*slot = entity.New(id, cls, flat)
	} else {
		slot.Rebind(id, cls, flat)
		slot.SetState(entity.StateOverwritten)
	}

	if p.isSkipped(slot) {
		return slot.SkipUpdate(b, p.fieldScratch)
	}

	base, err := baseline.Get(strconv.FormatUint(uint64(classID), 10))
	if err != nil {
		return err
	}
	bb, err := bitstream.New(base)
	if err != nil {
		return err
	}
	if err := slot.Update(bb, p.fieldScratch, nil); err != nil {
		return err
	}

	if err := slot.Update(b, p.fieldScratch, p.delta); err != nil {
		return err
	}

	p.forwardEntity(slot, tick)

	return nil
}

func (p *Parser) deleteEntity(slot *entity.Entity, id int32, tick uint32) {
	if !p.isSkipped(slot) {
		slot.SetState(entity.StateDeleted)
		p.forwardEntity(slot, tick)
	}

	p.entities.Free(id)
}

func (p *Parser) forwardEntity(e *entity.Entity, tick uint32) {
	if p.set.ForwardEntities {
		p.dispatcher.Forward(dispatch.Entity, e.ClassID(), tick, e)
	}
}

// SkipTo seeks to the given second. The entity store is cleared, the
// enclosing full packet's string table snapshot is replayed, its embedded
// packet runs through the normal path, and the remainder of the minute is
// read at the nominal two ticks per second.
func (p *Parser) SkipTo(seconds uint32) error {
	minute := seconds / 60
	remainder := int32(seconds % 60)

	// Establish a valid signon state before jumping around.
	for p.tick < 30 && p.Good() {
		if err := p.Read(); err != nil {
			return err
		}
	}

	if p.entities != nil {
		p.entities.Reset()
	}

	if err := p.stream.Move(minute); err != nil {
		return err
	}

	var msg demstream.Message
	for {
		var err error
		msg, err = p.stream.Read(false)
		if err != nil {
			return err
		}
		if msg.Kind == format.DemFullPacket || !p.Good() {
			break
		}
	}
	if msg.Kind != format.DemFullPacket {
		return fmt.Errorf("%w: %s: no full packet at minute %d", errs.ErrCorrupted, p.file, minute)
	}
	if msg.Tick > 0 {
		p.tick = msg.Tick
	}

	var fp wire.FullPacket
	if err := fp.Unmarshal(msg.Data); err != nil {
		return err
	}

	// Replay the snapshot into the live tables. Values are copied out of
	// the stream's scratch buffer.
	for _, tbl := range fp.StringTables.Tables {
		t, ok := p.stringTables.ByName(tbl.TableName)
		if !ok {
			continue
		}

		for _, item := range tbl.Items {
			t.Set(item.Str, append([]byte(nil), item.Data...))
		}
		for _, item := range tbl.ClientItems {
			t.Set(item.Str, append([]byte(nil), item.Data...))
		}
	}

	if err := p.demuxNet(fp.Packet.Data, msg.Tick); err != nil {
		return err
	}

	// Roughly two ticks per second inside a minute.
	for ; remainder > 0 && p.Good(); remainder -= 2 {
		if err := p.Read(); err != nil {
			return err
		}
	}

	return nil
}

// ceilLog2 returns the number of bits needed to address n distinct values.
func ceilLog2(n int32) int {
	if n <= 1 {
		return 0
	}

	return bits.Len32(uint32(n - 1))
}
