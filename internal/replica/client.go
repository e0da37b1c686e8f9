// Package replica mirrors a room's team table over the websocket transport.
// It never mutates state itself; every binary frame is a full snapshot that
// replaces the local table.
package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
	"github.com/DoyleJ11/tagsrv/internal/teamtag"
	"github.com/DoyleJ11/tagsrv/internal/types"
)

var ErrNoWelcome = errors.New("server did not send a welcome")

type Client struct {
	id    string
	conn  *websocket.Conn
	actor gamemode.ActorID
	mode  string
	log   *zap.Logger

	mu      sync.RWMutex
	teams   *teamtag.Controller
	updates chan map[gamemode.ActorID]teamtag.Team
}

// Dial connects, joins the room and waits for the welcome message.
func Dial(ctx context.Context, url string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	var welcome types.ServerMessage
	if err := wsjson.Read(ctx, conn, &welcome); err != nil {
		conn.Close(websocket.StatusProtocolError, "no welcome")
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != types.MsgWelcome {
		conn.Close(websocket.StatusProtocolError, "no welcome")
		return nil, fmt.Errorf("%w: got %q", ErrNoWelcome, welcome.Type)
	}

	c := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		actor:   welcome.Actor,
		mode:    welcome.Mode,
		teams:   teamtag.New(gamemode.Replica, gamemode.StaticRoster{}, teamtag.Options{Logger: log}),
		updates: make(chan map[gamemode.ActorID]teamtag.Team, 1),
	}
	c.log = log.With(zap.String("replica", c.id), zap.Int32("actor", int32(c.actor)))
	return c, nil
}

func (c *Client) Actor() gamemode.ActorID { return c.actor }

func (c *Client) Mode() string { return c.mode }

// Updates carries the latest table after each applied snapshot. Slow readers
// only see the most recent one.
func (c *Client) Updates() <-chan map[gamemode.ActorID]teamtag.Team { return c.updates }

func (c *Client) TeamOf(p gamemode.ActorID) teamtag.Team {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.teams.TeamOf(p)
}

func (c *Client) Teams() map[gamemode.ActorID]teamtag.Team {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.teams.Snapshot()
}

// Tag asks the authority to apply a tag. The authority decides.
func (c *Client) Tag(ctx context.Context, tagged, tagging gamemode.ActorID) error {
	return wsjson.Write(ctx, c.conn, types.ClientMessage{Type: types.MsgTag, Tagged: tagged, Tagging: tagging})
}

// Run applies snapshots until the connection closes or ctx ends. A clean
// close returns nil.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.updates)
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if typ == websocket.MessageText {
			var msg types.ServerMessage
			if err := json.Unmarshal(data, &msg); err == nil && msg.Type == types.MsgError {
				c.log.Warn("server error", zap.String("error", msg.Error))
			}
			continue
		}

		c.mu.Lock()
		err = c.teams.ApplyState(data)
		table := c.teams.Snapshot()
		c.mu.Unlock()
		if err != nil {
			// Desync is the transport's problem; keep the last good table.
			c.log.Warn("bad snapshot", zap.Error(err))
			continue
		}
		c.publish(table)
	}
}

func (c *Client) publish(table map[gamemode.ActorID]teamtag.Team) {
	select {
	case <-c.updates:
	default:
	}
	c.updates <- table
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
