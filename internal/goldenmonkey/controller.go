// Package goldenmonkey implements the golden monkey mode: the authority picks
// one connected player at random to wear the golden material.
package goldenmonkey

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
)

const ModeName = "goldenmonkey"

type GameState int

const (
	WaitingForPlayers GameState = iota
	PlayingRound
	RoundComplete
)

func (s GameState) String() string {
	switch s {
	case WaitingForPlayers:
		return "waiting_for_players"
	case PlayingRound:
		return "playing_round"
	case RoundComplete:
		return "round_complete"
	default:
		return "unknown"
	}
}

type Controller struct {
	role   gamemode.Role
	roster gamemode.Roster
	rng    gamemode.Rand
	log    *zap.Logger

	state      GameState
	stateSince time.Duration
	holder     gamemode.ActorID
}

var _ gamemode.Mode = (*Controller)(nil)

func New(role gamemode.Role, roster gamemode.Roster, rng gamemode.Rand, log *zap.Logger) *Controller {
	if rng == nil {
		rng = gamemode.NewRand(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		role:   role,
		roster: roster,
		rng:    rng,
		log:    log.With(zap.String("mode", ModeName), zap.Stringer("role", role)),
		holder: gamemode.NoActor,
	}
}

func (c *Controller) Name() string { return ModeName }

// Reset clears the holder and waits for players again.
func (c *Controller) Reset() {
	if c.role != gamemode.Authority {
		return
	}
	c.holder = gamemode.NoActor
	c.state = WaitingForPlayers
	c.stateSince = 0
}

func (c *Controller) StartSession() {
	if c.role != gamemode.Authority {
		return
	}
	c.Reset()
	c.AssignRole()
}

// AssignRole picks the golden monkey uniformly among connected players.
func (c *Controller) AssignRole() {
	if c.role != gamemode.Authority {
		return
	}
	players := c.roster.Players()
	if len(players) == 0 {
		return
	}
	c.holder = players[c.rng.IntN(len(players))]
	c.setState(PlayingRound)
	c.log.Info("golden monkey assigned", zap.Int32("actor", int32(c.holder)))
}

func (c *Controller) Holder() gamemode.ActorID { return c.holder }

func (c *Controller) State() GameState { return c.state }

// Tick only tracks how long the current state has lasted.
func (c *Controller) Tick(dt time.Duration) {
	if c.role != gamemode.Authority {
		return
	}
	c.stateSince += dt
}

// Since reports how long the current state has lasted.
func (c *Controller) Since() time.Duration { return c.stateSince }

func (c *Controller) ReportTag(tagged, tagging gamemode.ActorID) {}

// OnPlayerJoined hands the role to someone if nobody holds it.
func (c *Controller) OnPlayerJoined(p gamemode.ActorID) {
	if c.role != gamemode.Authority || c.holder != gamemode.NoActor {
		return
	}
	c.AssignRole()
}

// OnPlayerLeft ends the round when the holder leaves and passes the role on
// to one of the remaining players. The roster must no longer contain p.
func (c *Controller) OnPlayerLeft(p gamemode.ActorID) {
	if c.role != gamemode.Authority || p != c.holder {
		return
	}
	c.holder = gamemode.NoActor
	c.setState(RoundComplete)
	c.log.Info("golden monkey left", zap.Int32("actor", int32(p)))
	c.AssignRole()
}

func (c *Controller) MatIndex(p gamemode.ActorID) int {
	if p != gamemode.NoActor && p == c.holder {
		return gamemode.MaterialGolden
	}
	return gamemode.MaterialDefault
}

// SerializeState is a stub: the holder is not replicated.
func (c *Controller) SerializeState() []byte { return nil }

func (c *Controller) ApplyState([]byte) error { return nil }

func (c *Controller) setState(s GameState) {
	c.state = s
	c.stateSince = 0
}
