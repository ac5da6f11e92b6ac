package rewind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.True(t, s.ParseStringTables)
	assert.True(t, s.ParseEntities)
	assert.True(t, s.ForwardEntities)
	assert.False(t, s.ForwardDem)
	assert.False(t, s.ForwardNet)
	assert.False(t, s.ParseEvents)
}

func TestNewSettingsOptions(t *testing.T) {
	s, err := NewSettings(
		WithForwardUser(true),
		WithSkipEntities(5, 9),
		WithSkipStringTables("userinfo"),
		WithTrackEntities(true),
	)
	require.NoError(t, err)

	assert.True(t, s.ForwardUser)
	assert.True(t, s.TrackEntities)
	assert.Contains(t, s.SkipEntities, uint32(5))
	assert.Contains(t, s.SkipEntities, uint32(9))
	assert.Contains(t, s.SkipStringTables, "userinfo")
}

func TestForwardNetInternalImpliesForwardNet(t *testing.T) {
	s, err := NewSettings(WithForwardNetInternal(true))
	require.NoError(t, err)

	assert.True(t, s.ForwardNet)
	assert.True(t, s.ForwardNetInternal)
}
