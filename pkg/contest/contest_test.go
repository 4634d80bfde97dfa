package contest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	k, err := ParseKey("v2-12")
	require.NoError(t, err)
	assert.Equal(t, Key{Family: FamilyV2, ID: 12}, k)
	assert.Equal(t, "v2-12", k.String())

	k, err = ParseKey("m-3")
	require.NoError(t, err)
	assert.Equal(t, Key{Family: FamilyMilestn, ID: 3}, k)

	// Legacy bare numeric ids map to the token escrow.
	k, err = ParseKey("17")
	require.NoError(t, err)
	assert.Equal(t, Key{Family: FamilyToken, ID: 17}, k)

	for _, bad := range []string{"", "x9-1", "nft-", "-5", "token-abc"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.False(t, StatusPendingVRF.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestSeasonContains(t *testing.T) {
	s := Season{SeasonID: 2, StartTime: 1000, EndTime: 2000}
	assert.True(t, s.Contains(1000))
	assert.True(t, s.Contains(2000))
	assert.False(t, s.Contains(999))
	assert.False(t, s.Contains(2001))
}
