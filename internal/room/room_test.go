package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
	"github.com/DoyleJ11/tagsrv/internal/goldenmonkey"
	"github.com/DoyleJ11/tagsrv/internal/store"
	"github.com/DoyleJ11/tagsrv/internal/teamtag"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
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
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
	}
}

func getView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func join(t *testing.T, r *Room, out chan Snapshot) gamemode.ActorID {
	t.Helper()
	reply := make(chan gamemode.ActorID, 1)
	r.Inbox() <- Join{Outbox: out, Reply: reply}
	select {
	case id := <-reply:
		return id
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for join")
		return gamemode.NoActor
	}
}

func decode(t *testing.T, snap Snapshot) map[gamemode.ActorID]teamtag.Team {
	t.Helper()
	rep := teamtag.New(gamemode.Replica, gamemode.StaticRoster{}, teamtag.Options{})
	require.NoError(t, rep.ApplyState(snap.Payload))
	return rep.Snapshot()
}

func newTeamRoom(t *testing.T, rec store.Recorder) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r, err := New(ctx, Config{
		Code:     "ROOM01",
		Mode:     teamtag.ModeName,
		Seed:     11,
		Logger:   zaptest.NewLogger(t),
		Recorder: rec,
	})
	require.NoError(t, err)
	return r
}

func teamsOf(v View) map[gamemode.ActorID]string {
	out := map[gamemode.ActorID]string{}
	for _, p := range v.Players {
		out[p.Actor] = p.Team
	}
	return out
}

func TestRoom_JoinSendsSnapshot(t *testing.T) {
	r := newTeamRoom(t, nil)

	out := make(chan Snapshot, 2)
	id := join(t, r, out)
	assert.Equal(t, gamemode.ActorID(1), id)

	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, first.Version)
	assert.Equal(t, map[gamemode.ActorID]teamtag.Team{1: teamtag.Red}, decode(t, first))
}

func TestRoom_TagWinAndRestart(t *testing.T) {
	rec := store.NewMemory()
	r := newTeamRoom(t, rec)

	a := join(t, r, nil)
	b := join(t, r, nil)

	// The lone first player was a finished round; let the countdown run out.
	require.True(t, getView(t, r).Restarting)
	r.Inbox() <- Tick{Delta: teamtag.DefaultRestartDelay}

	v := getView(t, r)
	require.False(t, v.Restarting)
	teams := teamsOf(v)
	var red, blue gamemode.ActorID
	for id, team := range teams {
		switch team {
		case "red":
			red = id
		case "blue":
			blue = id
		}
	}
	require.ElementsMatch(t, []gamemode.ActorID{a, b}, []gamemode.ActorID{red, blue})

	r.Inbox() <- Tag{Tagged: blue, Tagging: red}
	v = getView(t, r)
	assert.True(t, v.Restarting)
	assert.Equal(t, map[gamemode.ActorID]string{a: "red", b: "red"}, teamsOf(v))

	// Two rounds end: the solo opening one and the tag above.
	var last store.Round
	require.Eventually(t, func() bool {
		rounds, _ := rec.RecentRounds(context.Background(), "ROOM01", 0)
		for _, rd := range rounds {
			if rd.Players == 2 {
				last = rd
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "red", last.Winner)
	assert.Equal(t, teamtag.ModeName, last.Mode)
}

func TestRoom_BroadcastBumpsVersion(t *testing.T) {
	r := newTeamRoom(t, nil)

	out := make(chan Snapshot, 4)
	join(t, r, out)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	join(t, r, nil)
	r.Inbox() <- Broadcast{}
	next := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, next.Version)
	assert.Len(t, decode(t, next), 2)
}

func TestRoom_PeriodicBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := New(ctx, Config{Code: "TICK01", BroadcastInterval: 10 * time.Millisecond, TickInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	out := make(chan Snapshot, 16)
	join(t, r, out)
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	next := recvSnapshot(t, out, 500*time.Millisecond)
	assert.GreaterOrEqual(t, next.Version, 1)
}

func TestRoom_DropSlowClient(t *testing.T) {
	r := newTeamRoom(t, nil)

	out := make(chan Snapshot, 1)
	join(t, r, out) // join snapshot fills the buffer
	r.Inbox() <- Broadcast{}

	v := getView(t, r)
	assert.Equal(t, 0, v.NumClients)
	assert.Len(t, v.Players, 1, "a dropped subscriber stays on the roster")
}

func TestRoom_LeaveClosesOutbox(t *testing.T) {
	r := newTeamRoom(t, nil)

	out := make(chan Snapshot, 2)
	a := join(t, r, out)
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	join(t, r, nil)

	r.Inbox() <- Leave{Actor: a}
	_, open := <-out
	assert.False(t, open)

	v := getView(t, r)
	require.Len(t, v.Players, 1)
	assert.NotEqual(t, a, v.Players[0].Actor)
}

func TestRoom_ShutdownClosesClients(t *testing.T) {
	r := newTeamRoom(t, nil)

	out := make(chan Snapshot, 2)
	join(t, r, out)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	r.Inbox() <- Shutdown{}
	recvNoSnapshot(t, out, 200*time.Millisecond)
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("room did not stop")
	}
}

func TestRoom_GoldenMonkey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := New(ctx, Config{Code: "GOLD01", Mode: goldenmonkey.ModeName, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, goldenmonkey.ModeName, r.Mode())

	out := make(chan Snapshot, 2)
	a := join(t, r, out)
	recvNoSnapshot(t, out, 50*time.Millisecond)

	v := getView(t, r)
	require.NotNil(t, v.Holder)
	assert.Equal(t, a, *v.Holder)
	assert.Equal(t, gamemode.MaterialGolden, v.Players[0].MatIndex)
	assert.Empty(t, v.Players[0].Team)
}

func TestRoom_GoldenMonkeyHolderLeavesThenJoin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := New(ctx, Config{Code: "GOLD02", Mode: goldenmonkey.ModeName, Seed: 9})
	require.NoError(t, err)

	join(t, r, nil)
	join(t, r, nil)
	v := getView(t, r)
	require.NotNil(t, v.Holder)
	first := *v.Holder

	r.Inbox() <- Leave{Actor: first}
	v = getView(t, r)
	require.NotNil(t, v.Holder, "the role passes to the remaining player")
	assert.NotEqual(t, first, *v.Holder)

	join(t, r, nil)
	v = getView(t, r)
	require.Len(t, v.Players, 2)
	require.NotNil(t, v.Holder)
	held := 0
	for _, p := range v.Players {
		assert.NotEqual(t, first, p.Actor)
		if p.MatIndex == gamemode.MaterialGolden {
			held++
			assert.Equal(t, *v.Holder, p.Actor)
		}
	}
	assert.Equal(t, 1, held)
}

func TestRoom_GoldenMonkeyEmptyThenJoin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := New(ctx, Config{Code: "GOLD03", Mode: goldenmonkey.ModeName, Seed: 9})
	require.NoError(t, err)

	a := join(t, r, nil)
	r.Inbox() <- Leave{Actor: a}
	require.Nil(t, getView(t, r).Holder)

	b := join(t, r, nil)
	v := getView(t, r)
	require.NotNil(t, v.Holder)
	assert.Equal(t, b, *v.Holder)
}

func TestRoom_OnEmptyAfterLastLeave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emptied := make(chan *Room, 1)
	r, err := New(ctx, Config{Code: "EMPTY1", OnEmpty: func(rm *Room) { emptied <- rm }})
	require.NoError(t, err)

	a := join(t, r, nil)
	b := join(t, r, nil)
	r.Inbox() <- Leave{Actor: a}
	_ = getView(t, r)
	select {
	case <-emptied:
		t.Fatalf("room reported empty with a player left")
	default:
	}

	r.Inbox() <- Leave{Actor: b}
	select {
	case rm := <-emptied:
		assert.Same(t, r, rm)
	case <-time.After(time.Second):
		t.Fatalf("OnEmpty not called")
	}
}

func TestRoom_LogsCarryRoomCode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	core, logs := observer.New(zapcore.InfoLevel)
	r, err := New(ctx, Config{Code: "LOG001", Logger: zap.New(core)})
	require.NoError(t, err)

	join(t, r, nil)
	joined := logs.FilterMessage("player joined").All()
	require.Len(t, joined, 1)
	assert.Equal(t, "LOG001", joined[0].ContextMap()["room"])
}

func TestNew_UnknownMode(t *testing.T) {
	_, err := New(context.Background(), Config{Code: "X", Mode: "hideandseek"})
	require.ErrorIs(t, err, ErrUnknownMode)
}
