package rewind

import (
	"github.com/rs/zerolog"

	"github.com/arloliu/rewind/internal/options"
)

// Settings configures a parser. It is immutable for the lifetime of the
// parser once built; use the With... options to construct one.
type Settings struct {
	// ForwardDem publishes every DEM record through the dispatcher. When
	// off, the stream fast-path seeks past records the parser never
	// consumes.
	ForwardDem bool
	// ForwardNet publishes non-internal NET records.
	ForwardNet bool
	// ForwardNetInternal publishes even internally-handled NET records;
	// implies ForwardNet. State keeping then runs off the dispatcher
	// subscriptions instead of the inline fast path.
	ForwardNetInternal bool
	// ForwardUser publishes user sub-messages on the User family.
	ForwardUser bool
	// ParseStringTables processes string table create/update records.
	ParseStringTables bool
	// SkipStringTables drops the named tables silently.
	SkipStringTables map[string]struct{}
	// ParseEntities processes packet entities. Requires ParseStringTables
	// for the baseline.
	ParseEntities bool
	// TrackEntities additionally emits EntityDelta events carrying the
	// updated field ids.
	TrackEntities bool
	// ForwardEntities publishes Entity events. Entity state stays
	// accessible through the store either way.
	ForwardEntities bool
	// SkipUnsubscribedEntities skip-decodes classes with no Entity
	// subscriber. Those entities keep their slot but hold no values.
	SkipUnsubscribedEntities bool
	// SkipEntities lists class ids that are always skip-decoded.
	SkipEntities map[uint32]struct{}
	// ParseEvents processes the game event list.
	ParseEvents bool
	// Logger receives debug/trace logs; discards by default.
	Logger zerolog.Logger
}

// DefaultSettings parses everything needed for entity access and forwards
// entities, with all optional forwarding off.
func DefaultSettings() Settings {
	return Settings{
		ParseStringTables: true,
		ParseEntities:     true,
		ForwardEntities:   true,
		Logger:            zerolog.Nop(),
	}
}

// Option configures Settings.
type Option = options.Option[*Settings]

// NewSettings builds Settings from the defaults plus the given options.
func NewSettings(opts ...Option) (Settings, error) {
	s := DefaultSettings()
	if err := options.Apply(&s, opts...); err != nil {
		return Settings{}, err
	}

	if s.ForwardNetInternal {
		s.ForwardNet = true
	}

	return s, nil
}

// WithForwardDem publishes every DEM record.
func WithForwardDem(v bool) Option {
	return options.NoError(func(s *Settings) { s.ForwardDem = v })
}

// WithForwardNet publishes non-internal NET records.
func WithForwardNet(v bool) Option {
	return options.NoError(func(s *Settings) { s.ForwardNet = v })
}

// WithForwardNetInternal publishes every NET record, internal ones included.
func WithForwardNetInternal(v bool) Option {
	return options.NoError(func(s *Settings) { s.ForwardNetInternal = v })
}

// WithForwardUser publishes user sub-messages.
func WithForwardUser(v bool) Option {
	return options.NoError(func(s *Settings) { s.ForwardUser = v })
}

// WithStringTables toggles string table processing.
func WithStringTables(v bool) Option {
	return options.NoError(func(s *Settings) { s.ParseStringTables = v })
}

// WithSkipStringTables drops the named tables silently.
func WithSkipStringTables(names ...string) Option {
	return options.NoError(func(s *Settings) {
		if s.SkipStringTables == nil {
			s.SkipStringTables = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			s.SkipStringTables[n] = struct{}{}
		}
	})
}

// WithEntities toggles entity processing.
func WithEntities(v bool) Option {
	return options.NoError(func(s *Settings) { s.ParseEntities = v })
}

// WithTrackEntities emits EntityDelta events with updated field ids.
func WithTrackEntities(v bool) Option {
	return options.NoError(func(s *Settings) { s.TrackEntities = v })
}

// WithForwardEntities toggles Entity event publishing.
func WithForwardEntities(v bool) Option {
	return options.NoError(func(s *Settings) { s.ForwardEntities = v })
}

// WithSkipUnsubscribedEntities skip-decodes classes nobody subscribed to.
func WithSkipUnsubscribedEntities(v bool) Option {
	return options.NoError(func(s *Settings) { s.SkipUnsubscribedEntities = v })
}

// WithSkipEntities always skip-decodes the given class ids.
func WithSkipEntities(classIDs ...uint32) Option {
	return options.NoError(func(s *Settings) {
		if s.SkipEntities == nil {
			s.SkipEntities = make(map[uint32]struct{}, len(classIDs))
		}
		for _, id := range classIDs {
			s.SkipEntities[id] = struct{}{}
		}
	})
}

// WithEvents processes the game event list.
func WithEvents(v bool) Option {
	return options.NoError(func(s *Settings) { s.ParseEvents = v })
}

// WithLogger attaches a logger for debug output.
func WithLogger(l zerolog.Logger) Option {
	return options.NoError(func(s *Settings) { s.Logger = l })
}
