package contest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCastID(t *testing.T) {
	tests := []struct {
		name      string
		castID    string
		wantHash  string
		wantFlags Flags
		wantImage string
	}{
		{
			name:      "bare hash defaults",
			castID:    "0xabc123",
			wantHash:  "0xabc123",
			wantFlags: DefaultFlags,
		},
		{
			name:      "explicit flags",
			castID:    "0xabc123|R1L1P1",
			wantHash:  "0xabc123",
			wantFlags: Flags{Recast: true, Like: true, Reply: true},
		},
		{
			name:      "flags and image",
			castID:    "0xabc123|R0L1P0|https://cdn.example/img.png",
			wantHash:  "0xabc123",
			wantFlags: Flags{Recast: false, Like: true, Reply: false},
			wantImage: "https://cdn.example/img.png",
		},
		{
			name:      "malformed flags fall back to defaults",
			castID:    "0xabc123|RXLYPZ",
			wantHash:  "0xabc123",
			wantFlags: DefaultFlags,
		},
		{
			name:      "empty flag segment",
			castID:    "0xabc123|",
			wantHash:  "0xabc123",
			wantFlags: DefaultFlags,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, flags, image := ParseCastID(tt.castID)
			assert.Equal(t, tt.wantHash, hash)
			assert.Equal(t, tt.wantFlags, flags)
			assert.Equal(t, tt.wantImage, image)
		})
	}
}

func TestDefaultFlagsPolicy(t *testing.T) {
	// Contests without a suffix require recast and reply; like is optional.
	assert.True(t, DefaultFlags.Recast)
	assert.False(t, DefaultFlags.Like)
	assert.True(t, DefaultFlags.Reply)
}
