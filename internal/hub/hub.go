package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/room"
	"github.com/DoyleJ11/tagsrv/internal/store"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code  string
	Mode  string
	Reply chan CreateResult
}

type CreateResult struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

// RemoveRoom shuts a room down and forgets it. Rooms send it themselves once
// their last player leaves; a non-nil Room only removes that exact room.
type RemoveRoom struct {
	Code string
	Room *room.Room
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Settings are applied to every room the hub creates.
type Settings struct {
	RestartDelay      time.Duration
	Seed              uint64
	TickInterval      time.Duration
	BroadcastInterval time.Duration
	Logger            *zap.Logger
	Recorder          store.Recorder
}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room
	settings Settings
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, settings Settings) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := settings.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		settings: settings,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed after ShutdownHub or when the parent context ends.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if rm := h.rooms[msg.Code]; rm != nil {
					msg.Reply <- CreateResult{Room: rm}
					break
				}
				rm, err := room.New(h.ctx, room.Config{
					Code:              msg.Code,
					Mode:              msg.Mode,
					RestartDelay:      h.settings.RestartDelay,
					Seed:              h.settings.Seed,
					TickInterval:      h.settings.TickInterval,
					BroadcastInterval: h.settings.BroadcastInterval,
					Logger:            h.log,
					Recorder:          h.settings.Recorder,
					OnEmpty:           h.removeWhenEmpty,
				})
				if err != nil {
					msg.Reply <- CreateResult{Err: err}
					break
				}
				h.rooms[msg.Code] = rm
				h.log.Info("room created", zap.String("room", msg.Code), zap.String("mode", rm.Mode()))
				msg.Reply <- CreateResult{Room: rm}

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				rm := h.rooms[msg.Code]
				if rm == nil || (msg.Room != nil && msg.Room != rm) {
					break
				}
				if msg.Room != nil && !idle(rm) {
					break // someone joined again after it emptied
				}
				rm.Inbox() <- room.Shutdown{}
				delete(h.rooms, msg.Code)
				h.log.Info("room removed", zap.String("room", msg.Code))

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}

// removeWhenEmpty runs on the room's goroutine, so it hands off to the hub
// loop without waiting for it.
func (h *Hub) removeWhenEmpty(rm *room.Room) {
	go func() {
		select {
		case h.inbox <- RemoveRoom{Code: rm.Code(), Room: rm}:
		case <-h.ctx.Done():
		}
	}()
}

// idle reports whether rm has no players. A stopped room counts as idle.
func idle(rm *room.Room) bool {
	reply := make(chan room.View, 1)
	select {
	case rm.Inbox() <- room.GetState{Reply: reply}:
	case <-rm.Done():
		return true
	}
	select {
	case v := <-reply:
		return len(v.Players) == 0
	case <-rm.Done():
		return true
	}
}
