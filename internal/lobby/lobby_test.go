package lobby

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avialu/dixit-sub000/internal/engine"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "client outbox closed unexpectedly")
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got version %d", within, s.Version)
	case <-time.After(within):
		// good: no snapshot
	}
}

// recvUntil drains snapshots until one satisfies ok.
func recvUntil(t *testing.T, ch <-chan Snapshot, within time.Duration, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case snap, open := <-ch:
			require.True(t, open, "client outbox closed unexpectedly")
			if ok(snap) {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for matching snapshot")
			return Snapshot{}
		}
	}
}

func testRules() engine.Rules {
	r := engine.DefaultRules()
	r.SecretCost = bcrypt.MinCost
	r.DefaultWinTarget = engine.MinWinTarget
	r.StorytellerTimeout = time.Hour
	r.PlayersTimeout = time.Hour
	r.VotingTimeout = time.Hour
	r.RevealTimeout = time.Hour
	return r
}

func newTestLobby(t *testing.T, rules engine.Rules, cfg Config) *Lobby {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewLobby(ctx, "TEST01", engine.NewSession(rules), cfg)
}

func do(t *testing.T, l *Lobby, cmd engine.Command) []engine.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := l.Do(ctx, cmd)
	require.NoError(t, err, "%s", cmd.Type)
	return events
}

// seat joins p1..p3, fills the deck and sets the admin secret.
func seat(t *testing.T, l *Lobby) {
	t.Helper()
	for i := 1; i <= 3; i++ {
		do(t, l, engine.Command{Type: engine.CmdJoin, PlayerID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("P%d", i)})
	}
	for i := 0; i < engine.MinDeckSize(3, 6, engine.MinWinTarget); i++ {
		do(t, l, engine.Command{Type: engine.CmdUploadCard, PlayerID: fmt.Sprintf("p%d", i%3+1), Image: []byte{byte(i)}})
	}
	do(t, l, engine.Command{Type: engine.CmdSetAdminSecret, PlayerID: "p1", Secret: "hunter22"})
}

func TestLobby_Join_SendsCurrentSnapshot(t *testing.T) {
	l := newTestLobby(t, testRules(), Config{})

	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", PlayerID: "p1", Outbox: out}
	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, first.Version)
	assert.Equal(t, engine.PhaseDeckBuilding, first.Room.Phase)
	assert.Nil(t, first.Player, "not seated yet")

	do(t, l, engine.Command{Type: engine.CmdJoin, PlayerID: "p1", Name: "Ada"})
	next := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, next.Version)
	require.Len(t, next.Room.Players, 1)
	require.NotNil(t, next.Player)
	assert.True(t, next.Player.IsAdmin)
	assert.True(t, engine.ContainsEvent(next.Events, engine.EvtPlayerJoined))

	l.Inbox() <- Shutdown{}
}

func TestLobby_RejectedCommand_RepliesWithoutBroadcast(t *testing.T) {
	l := newTestLobby(t, testRules(), Config{})
	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	_, err := l.Do(context.Background(), engine.Command{Type: engine.CmdStartGame, PlayerID: "ghost"})
	require.ErrorIs(t, err, engine.ErrPlayerNotFound)
	recvNoSnapshot(t, out, 50*time.Millisecond)
}

func TestLobby_DropSlowClient(t *testing.T) {
	l := newTestLobby(t, testRules(), Config{})

	clientOut := make(chan Snapshot, 1)
	l.Inbox() <- Join{ClientID: "ch1", Outbox: clientOut}

	do(t, l, engine.Command{Type: engine.CmdJoin, PlayerID: "p1", Name: "Ada"})

	v, err := l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, v.NumClients, "expected slow client to be dropped")

	_, ok := <-clientOut
	assert.True(t, ok, "join snapshot still buffered")
	_, ok = <-clientOut
	assert.False(t, ok, "outbox closed on drop")
}

func TestLobby_TimerFires_AutoSubmitsForStoryteller(t *testing.T) {
	rules := testRules()
	rules.StorytellerTimeout = 50 * time.Millisecond
	l := newTestLobby(t, rules, Config{})
	seat(t, l)

	out := make(chan Snapshot, 16)
	l.Inbox() <- Join{ClientID: "c1", PlayerID: "p1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	do(t, l, engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"})
	started := recvSnapshot(t, out, 100*time.Millisecond)
	require.Equal(t, engine.PhaseStorytellerChoice, started.Room.Phase)
	require.NotNil(t, started.Room.DeadlineAt)

	next := recvSnapshot(t, out, time.Second)
	assert.Equal(t, engine.PhasePlayersChoice, next.Room.Phase)
	assert.Equal(t, engine.AutoClue, next.Room.Clue)
	assert.Len(t, next.Player.Hand, 5)
}

func TestLobby_TimerGen_DropsStaleFires(t *testing.T) {
	rules := testRules()
	rules.StorytellerTimeout = 0
	l := newTestLobby(t, rules, Config{})
	seat(t, l)
	do(t, l, engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"})

	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	// With no deadline armed a fire changes nothing, whatever its generation.
	l.Inbox() <- TimerFired{Gen: 0}
	l.Inbox() <- TimerFired{Gen: 12345}
	recvNoSnapshot(t, out, 100*time.Millisecond)

	v, err := l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseStorytellerChoice, v.Room.Phase)
}

func TestLobby_TimerRearmsForNextPhase(t *testing.T) {
	rules := testRules()
	rules.StorytellerTimeout = 200 * time.Millisecond
	rules.PlayersTimeout = 50 * time.Millisecond
	l := newTestLobby(t, rules, Config{})
	seat(t, l)
	do(t, l, engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"})

	out := make(chan Snapshot, 16)
	l.Inbox() <- Join{ClientID: "c1", PlayerID: "p1", Outbox: out}
	snap := recvSnapshot(t, out, 100*time.Millisecond)

	card := snap.Player.Hand[0].ID
	do(t, l, engine.Command{Type: engine.CmdStorytellerSubmit, PlayerID: "p1", CardID: card, Clue: "moon"})

	voting := recvUntil(t, out, time.Second, func(s Snapshot) bool { return s.Room.Phase == engine.PhaseVoting })
	assert.Equal(t, "moon", voting.Room.Clue)
	assert.Len(t, voting.Room.Submissions, 3)
}

func TestLobby_Shutdown_ClosesOutboxes(t *testing.T) {
	rules := testRules()
	rules.StorytellerTimeout = 100 * time.Millisecond
	l := newTestLobby(t, rules, Config{})
	seat(t, l)

	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond) // drain join snapshot

	do(t, l, engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"})
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	l.Inbox() <- Shutdown{}

	recvNoSnapshot(t, out, 300*time.Millisecond)
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("lobby did not stop")
	}

	_, err := l.Do(context.Background(), engine.Command{Type: engine.CmdJoin, PlayerID: "late", Name: "Late"})
	require.ErrorIs(t, err, ErrClosed)
}

func TestLobby_SweepFailsOverAdmin(t *testing.T) {
	rules := testRules()
	rules.AdminGrace = 20 * time.Millisecond
	l := newTestLobby(t, rules, Config{SweepInterval: 10 * time.Millisecond})
	seat(t, l)

	out := make(chan Snapshot, 16)
	l.Inbox() <- Join{ClientID: "c2", PlayerID: "p2", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	do(t, l, engine.Command{Type: engine.CmdDisconnect, PlayerID: "p1"})
	snap := recvUntil(t, out, time.Second, func(s Snapshot) bool {
		return s.Player != nil && s.Player.IsAdmin
	})
	assert.True(t, engine.ContainsEvent(snap.Events, engine.EvtAdminChanged))
}

func TestLobby_IdleShutdownNotifies(t *testing.T) {
	idle := make(chan *Lobby, 1)
	l := newTestLobby(t, testRules(), Config{
		SweepInterval: 10 * time.Millisecond,
		IdleTimeout:   30 * time.Millisecond,
		OnIdle:        func(closed *Lobby) { idle <- closed },
	})

	select {
	case closed := <-idle:
		assert.Same(t, l, closed)
	case <-time.After(time.Second):
		t.Fatal("idle callback not called")
	}
	<-l.Done()
}

func TestLobby_SubscriberKeepsIdleLobbyOpen(t *testing.T) {
	called := make(chan struct{}, 1)
	l := newTestLobby(t, testRules(), Config{
		SweepInterval: 10 * time.Millisecond,
		IdleTimeout:   30 * time.Millisecond,
		OnIdle:        func(*Lobby) { called <- struct{}{} },
	})
	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	select {
	case <-called:
		t.Fatal("lobby closed while a client was subscribed")
	case <-time.After(150 * time.Millisecond):
	}
}
