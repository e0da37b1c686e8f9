package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
	"github.com/DoyleJ11/tagsrv/internal/hub"
	"github.com/DoyleJ11/tagsrv/internal/room"
	"github.com/DoyleJ11/tagsrv/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 8
)

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan room.Snapshot, outboxSize)
		joined := make(chan gamemode.ActorID, 1)
		if !send(rm, room.Join{Outbox: out, Reply: joined}) {
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		var actor gamemode.ActorID
		select {
		case actor = <-joined:
		case <-rm.Done():
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		defer send(rm, room.Leave{Actor: actor})

		clog := log.With(zap.String("room", code), zap.Int32("actor", int32(actor)))
		clog.Debug("client connected")

		if err := write(r.Context(), conn, types.ServerMessage{Type: types.MsgWelcome, Actor: actor, Mode: rm.Mode()}); err != nil {
			return
		}

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageBinary, snap.Payload)
				cancel()
				if err != nil {
					clog.Debug("snapshot write", zap.Error(err))
					return
				}
			}
			// Outbox closed: room dropped us or shut down.
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("client read", zap.Error(err))
				}
				return // room.Leave in defer
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			msg, ok := toRoomMessage(cm)
			if !ok {
				_ = write(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: "unknown type"})
				continue
			}
			if !send(rm, msg) {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// send gives up once the room has stopped.
func send(rm *room.Room, msg room.Msg) bool {
	select {
	case rm.Inbox() <- msg:
		return true
	case <-rm.Done():
		return false
	}
}

func toRoomMessage(m types.ClientMessage) (room.Msg, bool) {
	switch m.Type {
	case types.MsgTag:
		return room.Tag{Tagged: m.Tagged, Tagging: m.Tagging}, true
	default:
		return nil, false
	}
}
