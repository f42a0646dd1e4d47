package assets

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClubsSnapshot(t *testing.T) {
	clubs, err := Clubs()
	require.NoError(t, err)
	require.Len(t, clubs, 27)

	seenPlayers := map[uuid.UUID]string{}
	for _, c := range clubs {
		assert.Equal(t, ClubID(c.Name), c.ID)
		assert.NotEmpty(t, c.League, c.Name)
		require.NotEmpty(t, c.Players, c.Name)
		for _, p := range c.Players {
			assert.Positive(t, p.Valuation, p.Name)
			owner, dup := seenPlayers[p.ID]
			assert.False(t, dup, "%s listed by %s and %s", p.Name, owner, c.Name)
			seenPlayers[p.ID] = c.Name
		}
	}
}

func TestIDsAreStable(t *testing.T) {
	assert.Equal(t, ClubID("Ajax"), ClubID("Ajax"))
	assert.NotEqual(t, ClubID("Ajax"), ClubID("PSV Eindhoven"))
	assert.NotEqual(t, ClubID("Rodri"), PlayerID("Rodri"))
}
