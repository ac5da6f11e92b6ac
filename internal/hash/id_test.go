package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		data string
		id   uint64
	}{
		{"empty string", "", 0xef46db3751d8e999},
		{"short string", "test", 0x4fdcca5ddb678139},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.id, Key(tt.data))
		})
	}

	assert.NotEqual(t, Key("instancebaseline"), Key("userinfo"))
}

func TestBytesMatchesKey(t *testing.T) {
	assert.Equal(t, Key("CDOTA_BaseNPC"), Bytes([]byte("CDOTA_BaseNPC")))
}
