// Package room drives one game mode as the authoritative instance. A single
// goroutine owns the roster and the mode; everything else talks to it through
// the inbox.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
	"github.com/DoyleJ11/tagsrv/internal/goldenmonkey"
	"github.com/DoyleJ11/tagsrv/internal/logging"
	"github.com/DoyleJ11/tagsrv/internal/store"
	"github.com/DoyleJ11/tagsrv/internal/teamtag"
)

var ErrUnknownMode = errors.New("unknown game mode")

type Msg interface{ isRoomMsg() }

type Join struct {
	Outbox chan Snapshot // where this client wants to receive snapshots
	Reply  chan gamemode.ActorID
}

func (Join) isRoomMsg() {}

type Leave struct{ Actor gamemode.ActorID }

func (Leave) isRoomMsg() {}

type Tag struct {
	Tagged  gamemode.ActorID
	Tagging gamemode.ActorID
}

func (Tag) isRoomMsg() {}

// Tick advances the mode by Delta. Rooms with a tick interval also tick
// themselves.
type Tick struct{ Delta time.Duration }

func (Tick) isRoomMsg() {}

// Broadcast pushes a snapshot to every client now.
type Broadcast struct{}

func (Broadcast) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Snapshot struct {
	Version int
	Payload []byte
}

type PlayerView struct {
	Actor    gamemode.ActorID `json:"actor"`
	Team     string           `json:"team,omitempty"`
	MatIndex int              `json:"mat_index"`
}

type View struct {
	Code       string            `json:"code"`
	Mode       string            `json:"mode"`
	Version    int               `json:"version"`
	NumClients int               `json:"num_clients"`
	Restarting bool              `json:"restarting"`
	Holder     *gamemode.ActorID `json:"holder,omitempty"`
	Players    []PlayerView      `json:"players"`
}

type Config struct {
	Code              string
	Mode              string
	RestartDelay      time.Duration
	Seed              uint64
	TickInterval      time.Duration
	BroadcastInterval time.Duration
	Logger            *zap.Logger
	Recorder          store.Recorder

	// OnEmpty is called from the room loop when the last player leaves. It
	// must not block on the room.
	OnEmpty func(*Room)
}

type Room struct {
	code      string
	inbox     chan Msg
	mode      gamemode.Mode
	roster    *roster
	nextActor gamemode.ActorID
	started   bool
	version   int
	clients   map[gamemode.ActorID]chan Snapshot

	tickEvery      time.Duration
	broadcastEvery time.Duration
	lastTick       time.Time

	log      *zap.Logger
	recorder store.Recorder
	onEmpty  func(*Room)
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, cfg Config) (*Room, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = logging.Room(log, cfg.Code)

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:           cfg.Code,
		inbox:          make(chan Msg, 64),
		roster:         &roster{},
		nextActor:      1,
		clients:        make(map[gamemode.ActorID]chan Snapshot),
		tickEvery:      cfg.TickInterval,
		broadcastEvery: cfg.BroadcastInterval,
		log:            log,
		recorder:       cfg.Recorder,
		onEmpty:        cfg.OnEmpty,
		ctx:            ctx,
		cancel:         cancel,
	}

	rng := gamemode.NewRand(cfg.Seed)
	switch cfg.Mode {
	case teamtag.ModeName, "":
		r.mode = teamtag.New(gamemode.Authority, r.roster, teamtag.Options{
			RestartDelay: cfg.RestartDelay,
			Rand:         rng,
			Logger:       log,
			OnRoundOver:  r.roundOver,
		})
	case goldenmonkey.ModeName:
		r.mode = goldenmonkey.New(gamemode.Authority, r.roster, rng, log)
	default:
		cancel()
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}

	go r.loop()
	return r, nil
}

// Inbox exposes the room's mailbox to the hub and the websocket layer.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

func (r *Room) Mode() string { return r.mode.Name() }

// Done is closed once the room loop has stopped.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func every(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (r *Room) loop() {
	tickC, stopTick := every(r.tickEvery)
	defer stopTick()
	broadcastC, stopBroadcast := every(r.broadcastEvery)
	defer stopBroadcast()
	r.lastTick = time.Now()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case now := <-tickC:
			r.mode.Tick(now.Sub(r.lastTick))
			r.lastTick = now

		case <-broadcastC:
			r.broadcast()

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.join(msg)

			case Leave:
				r.leave(msg.Actor)

			case Tag:
				r.mode.ReportTag(msg.Tagged, msg.Tagging)

			case Tick:
				r.mode.Tick(msg.Delta)

			case Broadcast:
				r.broadcast()

			case GetState:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) join(msg Join) {
	actor := r.nextActor
	r.nextActor++
	r.roster.add(actor)
	if msg.Outbox != nil {
		r.clients[actor] = msg.Outbox
	}

	if !r.started {
		r.started = true
		r.mode.StartSession()
	}
	r.mode.OnPlayerJoined(actor)
	r.log.Info("player joined", zap.Int32("actor", int32(actor)), zap.Int("players", r.roster.len()))

	if msg.Reply != nil {
		msg.Reply <- actor
	}
	// Send the current snapshot to the newcomer right away.
	if payload := r.mode.SerializeState(); payload != nil && msg.Outbox != nil {
		r.send(actor, msg.Outbox, Snapshot{Version: r.version, Payload: payload})
	}
}

func (r *Room) leave(actor gamemode.ActorID) {
	if !r.roster.remove(actor) {
		return
	}
	if ch, ok := r.clients[actor]; ok {
		close(ch)
		delete(r.clients, actor)
	}
	r.mode.OnPlayerLeft(actor)
	r.log.Info("player left", zap.Int32("actor", int32(actor)), zap.Int("players", r.roster.len()))
	if r.roster.len() == 0 && r.onEmpty != nil {
		r.onEmpty(r)
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch) // Tell client no more snapshots
		delete(r.clients, id)
	}
	r.cancel()
	r.log.Info("room closed")
}

func (r *Room) broadcast() {
	payload := r.mode.SerializeState()
	if payload == nil {
		return
	}
	r.version++
	snap := Snapshot{Version: r.version, Payload: payload}
	for id, ch := range r.clients {
		r.send(id, ch, snap)
	}
}

func (r *Room) send(id gamemode.ActorID, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		//ok
	default:
		// Client is slow/full - drop them.
		r.log.Warn("dropping slow client", zap.Int32("actor", int32(id)))
		close(ch)
		delete(r.clients, id)
	}
}

func (r *Room) view() View {
	v := View{
		Code:       r.code,
		Mode:       r.mode.Name(),
		Version:    r.version,
		NumClients: len(r.clients),
		Players:    make([]PlayerView, 0, r.roster.len()),
	}
	tt, isTeamTag := r.mode.(*teamtag.Controller)
	if isTeamTag {
		v.Restarting = tt.Restarting()
	}
	if gm, ok := r.mode.(*goldenmonkey.Controller); ok && gm.Holder() != gamemode.NoActor {
		h := gm.Holder()
		v.Holder = &h
	}
	for _, p := range r.roster.Players() {
		pv := PlayerView{Actor: p, MatIndex: r.mode.MatIndex(p)}
		if isTeamTag {
			pv.Team = tt.TeamOf(p).String()
		}
		v.Players = append(v.Players, pv)
	}
	return v
}

// roundOver runs inside the loop; the write happens off it.
func (r *Room) roundOver(winner teamtag.Team, players int) {
	if r.recorder == nil {
		return
	}
	round := store.Round{
		RoomCode: r.code,
		Mode:     r.mode.Name(),
		Winner:   winner.String(),
		Players:  players,
		EndedAt:  time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.recorder.RecordRound(ctx, round); err != nil {
			r.log.Error("record round", zap.Error(err))
		}
	}()
}
