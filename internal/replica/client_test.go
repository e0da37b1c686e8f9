package replica

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
	"github.com/DoyleJ11/tagsrv/internal/teamtag"
	"github.com/DoyleJ11/tagsrv/internal/types"
)

// fakeAuthority greets, then sends the given binary frames and closes.
func fakeAuthority(t *testing.T, greeting types.ServerMessage, frames ...[]byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		if err := wsjson.Write(ctx, conn, greeting); err != nil {
			return
		}
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageBinary, f); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "done")
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func encode(t *testing.T, table map[gamemode.ActorID]teamtag.Team) []byte {
	t.Helper()
	b := binary.LittleEndian.AppendUint32(nil, uint32(len(table)))
	for a, team := range table {
		b = binary.LittleEndian.AppendUint32(b, uint32(a))
		b = append(b, byte(team))
	}
	return b
}

func TestClient_AppliesSnapshots(t *testing.T) {
	first := encode(t, map[gamemode.ActorID]teamtag.Team{1: teamtag.Red, 2: teamtag.Blue})
	second := encode(t, map[gamemode.ActorID]teamtag.Team{1: teamtag.Red, 2: teamtag.Red})
	url := fakeAuthority(t, types.ServerMessage{Type: types.MsgWelcome, Actor: 2, Mode: teamtag.ModeName},
		first, []byte{9, 9}, second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	assert.Equal(t, gamemode.ActorID(2), c.Actor())

	require.NoError(t, c.Run(ctx))
	// The malformed middle frame is skipped.
	assert.Equal(t, map[gamemode.ActorID]teamtag.Team{1: teamtag.Red, 2: teamtag.Red}, c.Teams())
	assert.Equal(t, teamtag.Red, c.TeamOf(2))

	last, ok := <-c.Updates()
	require.True(t, ok)
	assert.Equal(t, teamtag.Red, last[2])
	_, ok = <-c.Updates()
	assert.False(t, ok, "updates close when Run returns")
}

func TestDial_RequiresWelcome(t *testing.T) {
	url := fakeAuthority(t, types.ServerMessage{Type: types.MsgError, Error: "nope"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, url, nil)
	require.ErrorIs(t, err, ErrNoWelcome)
}
