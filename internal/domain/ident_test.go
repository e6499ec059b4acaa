package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func TestNewRoomID(t *testing.T) {
	seen := make(map[RoomID]struct{})
	for i := 0; i < 200; i++ {
		id := NewRoomID()
		// 12 bytes, base64url without padding
		require.Len(t, string(id), 16)
		assert.NotContains(t, string(id), "+")
		assert.NotContains(t, string(id), "/")
		assert.NotContains(t, string(id), "=")

		_, dup := seen[id]
		require.False(t, dup, "room id collision: %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewAccessCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := NewAccessCode()
		require.NotEmpty(t, code)
		require.LessOrEqual(t, len(code), 6)
		for _, r := range string(code) {
			assert.True(t, strings.ContainsRune(base36Alphabet, r), "unexpected rune %q in code %s", r, code)
		}
	}
}

func TestClampTTL(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"absent falls back to default", 0, DefaultTTLSeconds},
		{"negative falls back to default", -5, DefaultTTLSeconds},
		{"below minimum clamps up", 59, MinTTLSeconds},
		{"tiny positive clamps up", 1, MinTTLSeconds},
		{"minimum passes through", 60, 60},
		{"default passes through", 3600, 3600},
		{"maximum passes through", 86400, 86400},
		{"above maximum clamps down", 86401, MaxTTLSeconds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampTTL(tt.in))
		})
	}
}
