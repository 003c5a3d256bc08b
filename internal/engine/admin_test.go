package engine

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminCount(s *Session) int {
	n := 0
	for _, p := range s.players {
		if p.IsAdmin {
			n++
		}
	}
	return n
}

func TestAddPlayer(t *testing.T) {
	s, _ := newTestSession(t)

	events, err := s.AddPlayer("p1", "  Ada  ")
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtAdminChanged))
	assert.Equal(t, "Ada", s.players["p1"].Name)
	assert.True(t, s.players["p1"].IsAdmin)

	events, err = s.AddPlayer("p2", "Bo")
	require.NoError(t, err)
	assert.False(t, ContainsEvent(events, EvtAdminChanged))
	assert.False(t, s.players["p2"].IsAdmin)

	_, err = s.AddPlayer("p2", "Again")
	require.ErrorIs(t, err, ErrPlayerExists)
	_, err = s.AddPlayer("", "Nobody")
	require.ErrorIs(t, err, ErrInvalidPlayerID)
	_, err = s.AddPlayer("p3", "   ")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = s.AddPlayer("p3", "a name that is far too long to fit")
	require.ErrorIs(t, err, ErrInvalidName)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestPromoteAdmin(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 3)

	_, err := s.PromoteAdmin(ids[1], ids[2])
	require.ErrorIs(t, err, ErrNotAdmin)

	_, err = s.RemovePlayer(ids[2])
	require.NoError(t, err)
	_, err = s.PromoteAdmin(ids[0], ids[2])
	require.ErrorIs(t, err, ErrPlayerDisconnected)

	events, err := s.PromoteAdmin(ids[0], ids[1])
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtAdminChanged))
	assert.False(t, s.players[ids[0]].IsAdmin)
	assert.True(t, s.players[ids[1]].IsAdmin)
	assert.Equal(t, 1, adminCount(s))
}

func TestAdminSecret(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 3)

	_, err := s.ClaimAdmin(ids[1], testSecret)
	require.ErrorIs(t, err, ErrNoAdminSecret)

	_, err = s.SetAdminSecret(ids[1], testSecret)
	require.ErrorIs(t, err, ErrNotAdmin)
	_, err = s.SetAdminSecret(ids[0], "abc")
	require.ErrorIs(t, err, ErrSecretTooShort)
	_, err = s.SetAdminSecret(ids[0], string(make([]byte, 73)))
	require.ErrorIs(t, err, ErrSecretTooLong)

	_, err = s.SetAdminSecret(ids[0], testSecret)
	require.NoError(t, err)
	assert.NotContains(t, string(s.secretHash), testSecret)

	_, err = s.ClaimAdmin(ids[1], "wrong")
	require.ErrorIs(t, err, ErrWrongSecret)
	assert.True(t, s.players[ids[0]].IsAdmin)

	events, err := s.ClaimAdmin(ids[1], testSecret)
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtAdminChanged))
	assert.True(t, s.players[ids[1]].IsAdmin)
	assert.False(t, s.players[ids[0]].IsAdmin)
}

func TestFailoverAdmin_AfterGrace(t *testing.T) {
	s, clock := newTestSession(t)
	ids := seatPlayers(t, s, 3)
	_, err := s.RemovePlayer(ids[0])
	require.NoError(t, err)

	clock.Advance(29 * time.Second)
	events, err := s.FailoverAdmin(30 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, s.players[ids[0]].IsAdmin)

	clock.Advance(time.Second)
	events, err = s.FailoverAdmin(30 * time.Second)
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtAdminChanged))
	assert.True(t, s.players[ids[1]].IsAdmin)
	assert.False(t, s.players[ids[0]].IsAdmin)

	// The old admin comes back as a regular player.
	_, err = s.ReconnectPlayer(ids[0])
	require.NoError(t, err)
	assert.False(t, s.players[ids[0]].IsAdmin)
	assert.Equal(t, 1, adminCount(s))
}

func TestFailoverAdmin_NobodyConnected(t *testing.T) {
	s, clock := newTestSession(t)
	ids := seatPlayers(t, s, 2)
	for _, id := range ids {
		_, err := s.RemovePlayer(id)
		require.NoError(t, err)
	}
	clock.Advance(time.Minute)

	events, err := s.FailoverAdmin(30 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, s.players[ids[0]].IsAdmin, "role stays put until someone can take it")
}

func TestReconnect_ClearsStaleAdminFlag(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 3)
	_, err := s.RemovePlayer(ids[0])
	require.NoError(t, err)

	// Both flags set, as after a failover raced with the reconnect.
	s.players[ids[1]].IsAdmin = true

	_, err = s.ReconnectPlayer(ids[0])
	require.NoError(t, err)
	assert.False(t, s.players[ids[0]].IsAdmin)
	assert.True(t, s.players[ids[1]].IsAdmin)
}

func TestReconnect_PromotesWhenNoAdmin(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 3)
	s.players[ids[0]].IsAdmin = false
	_, err := s.RemovePlayer(ids[2])
	require.NoError(t, err)

	events, err := s.ReconnectPlayer(ids[2])
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtAdminChanged))
	assert.True(t, s.players[ids[2]].IsAdmin)
}

func TestSweep(t *testing.T) {
	s, clock := newTestSession(t)
	ids := seatPlayers(t, s, 4)
	_, err := s.RemovePlayer(ids[0])
	require.NoError(t, err)
	_, err = s.RemovePlayer(ids[3])
	require.NoError(t, err)

	clock.Advance(s.rules.AdminGrace)
	events, err := s.Sweep()
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtAdminChanged))
	assert.False(t, ContainsEvent(events, EvtPlayerLeft))
	assert.True(t, s.players[ids[1]].IsAdmin)

	clock.Advance(s.rules.DisconnectTimeout)
	events, err = s.Sweep()
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtPlayerLeft))
	assert.Equal(t, 2, s.PlayerCount())
	assert.Equal(t, []string{ids[1], ids[2]}, s.order)
}

func TestReservePlayer_SweptUnlessReconnected(t *testing.T) {
	s, clock := newTestSession(t)
	events, err := s.Apply(Command{Type: CmdJoin, PlayerID: "p1", Name: "Ada", Reserve: true})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtPlayerJoined))
	_, err = s.ReservePlayer("p2", "Bob")
	require.NoError(t, err)

	assert.True(t, s.players["p1"].IsAdmin)
	assert.False(t, s.players["p1"].Connected)
	assert.False(t, s.players["p2"].Connected)

	_, err = s.ReconnectPlayer("p1")
	require.NoError(t, err)
	assert.True(t, s.players["p1"].Connected)

	clock.Advance(s.rules.DisconnectTimeout)
	_, err = s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, s.order)
}

func TestKickPlayer(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 3)

	_, err := s.KickPlayer(ids[1], ids[2])
	require.ErrorIs(t, err, ErrNotAdmin)
	_, err = s.KickPlayer(ids[0], ids[0])
	require.ErrorIs(t, err, ErrKickSelf)
	_, err = s.KickPlayer(ids[0], "ghost")
	require.ErrorIs(t, err, ErrPlayerNotFound)

	events, err := s.KickPlayer(ids[0], ids[2])
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtPlayerKicked))
	assert.Equal(t, 2, s.PlayerCount())
}

func TestLeave_AdminHandsRoleOn(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 3)
	_, err := s.RemovePlayer(ids[1])
	require.NoError(t, err)

	_, err = s.LeavePlayer(ids[0])
	require.NoError(t, err)
	assert.True(t, s.players[ids[2]].IsAdmin, "first connected player inherits")
	assert.Equal(t, 1, adminCount(s))
}

func TestProfileChanges(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 1)

	_, err := s.ChangeName(ids[0], "Zed")
	require.NoError(t, err)
	assert.Equal(t, "Zed", s.players[ids[0]].Name)

	_, err = s.SetTokenImage(ids[0], "avatars/fox.png")
	require.NoError(t, err)
	assert.Equal(t, "avatars/fox.png", s.players[ids[0]].Avatar)

	_, err = s.SetTokenImage(ids[0], string(make([]byte, 513)))
	require.ErrorIs(t, err, ErrInvalidAvatar)

	_, err = s.SetTokenImage(ids[0], "")
	require.NoError(t, err)
	assert.Empty(t, s.players[ids[0]].Avatar)
}

func TestSettingsRequireAdminDuringDeckBuilding(t *testing.T) {
	s, _, _ := startedGame(t, 3)

	_, err := s.SetWinTarget("p1", 10)
	require.ErrorIs(t, err, ErrWrongPhase)
	_, err = s.UnlockPool("p1")
	require.ErrorIs(t, err, ErrWrongPhase)

	s2, _ := newTestSession(t)
	ids := seatPlayers(t, s2, 2)
	_, err = s2.SetWinTarget(ids[1], 10)
	require.ErrorIs(t, err, ErrNotAdmin)
	_, err = s2.SetWinTarget(ids[0], 4)
	require.ErrorIs(t, err, ErrInvalidWinTarget)
	_, err = s2.SetWinTarget(ids[0], 10)
	require.NoError(t, err)
	_, err = s2.SetBoardDisplaySettings(ids[0], BoardSettings{Layout: "spiral"})
	require.ErrorIs(t, err, ErrInvalidBoard)
	_, err = s2.SetBoardDisplaySettings(ids[0], BoardSettings{Layout: LayoutGrid})
	require.NoError(t, err)
	assert.Equal(t, LayoutGrid, s2.RoomView().Board.Layout)
	assert.Equal(t, 10, s2.RoomView().WinTarget)
}

func TestDeleteCard(t *testing.T) {
	s, _ := newTestSession(t)
	ids := seatPlayers(t, s, 3)
	c, _, err := s.UploadCard(ids[1], []byte("img"))
	require.NoError(t, err)

	_, _, err = s.DeleteCard(ids[2], c.ID)
	require.ErrorIs(t, err, ErrNotCardOwner)

	ok, _, err := s.DeleteCard(ids[1], "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, events, err := s.DeleteCard(ids[0], c.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ContainsEvent(events, EvtCardDeleted))
	assert.Zero(t, s.pool.Len())

	_, err = s.LockPool(ids[0])
	require.NoError(t, err)
	_, _, err = s.UploadCard(ids[1], []byte("img"))
	require.ErrorIs(t, err, ErrPoolLocked)
}

// Random sequences of registry operations never leave the room with other
// than exactly one admin while anyone is seated.
func TestSingleAdminHolds(t *testing.T) {
	s, clock := newTestSession(t)
	ids := seatPlayers(t, s, 5)
	_, err := s.SetAdminSecret(ids[0], testSecret)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 400; i++ {
		if len(s.order) == 0 {
			break
		}
		id := s.order[rng.Intn(len(s.order))]
		other := s.order[rng.Intn(len(s.order))]
		switch rng.Intn(7) {
		case 0:
			_, _ = s.RemovePlayer(id)
		case 1:
			_, _ = s.ReconnectPlayer(id)
		case 2:
			_, _ = s.ClaimAdmin(id, testSecret)
		case 3:
			if a := s.admin(); a != nil {
				_, _ = s.PromoteAdmin(a.ID, other)
			}
		case 4:
			clock.Advance(time.Duration(rng.Intn(40)) * time.Second)
			_, _ = s.FailoverAdmin(s.rules.AdminGrace)
		case 5:
			if rng.Intn(8) == 0 {
				_, _ = s.LeavePlayer(id)
			}
		case 6:
			nid := fmt.Sprintf("n%d", i)
			_, _ = s.AddPlayer(nid, "New "+nid)
		}
		if len(s.order) > 0 {
			require.Equal(t, 1, adminCount(s), "step %d", i)
		}
	}
}
