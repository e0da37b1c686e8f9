// Package teamtag implements the team infection mode: two seed players start
// on Red and Blue, tagging pulls the tagged player onto the tagger's team, and
// the round restarts once everyone connected shares a team.
//
// Only the authoritative controller mutates the team table. Replicas learn it
// from full snapshots produced by SerializeState and installed by ApplyState.
package teamtag

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
)

const (
	ModeName = "teamtag"

	DefaultRestartDelay = 3 * time.Second
)

type Options struct {
	RestartDelay time.Duration
	Rand         gamemode.Rand
	Logger       *zap.Logger
	// OnRoundOver runs when a win starts the restart countdown.
	OnRoundOver func(winner Team, players int)
}

type Controller struct {
	role   gamemode.Role
	roster gamemode.Roster
	rng    gamemode.Rand
	log    *zap.Logger

	teams map[gamemode.ActorID]Team

	restarting   bool
	elapsed      time.Duration
	restartDelay time.Duration
	onRoundOver  func(Team, int)
}

var _ gamemode.Mode = (*Controller)(nil)

func New(role gamemode.Role, roster gamemode.Roster, opts Options) *Controller {
	c := &Controller{
		role:         role,
		roster:       roster,
		rng:          opts.Rand,
		log:          opts.Logger,
		teams:        make(map[gamemode.ActorID]Team),
		restartDelay: opts.RestartDelay,
		onRoundOver:  opts.OnRoundOver,
	}
	if c.rng == nil {
		c.rng = gamemode.NewRand(0)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.restartDelay <= 0 {
		c.restartDelay = DefaultRestartDelay
	}
	c.log = c.log.With(zap.String("mode", ModeName), zap.Stringer("role", role))
	return c
}

func (c *Controller) Name() string { return ModeName }

func (c *Controller) authoritative() bool { return c.role == gamemode.Authority }

// StartSession seeds one random player on Red and another on Blue. Everyone
// else is Teamless.
func (c *Controller) StartSession() {
	if !c.authoritative() {
		return
	}
	players := c.connected()
	c.rng.Shuffle(len(players), func(i, j int) { players[i], players[j] = players[j], players[i] })

	for i, p := range players {
		switch i {
		case 0:
			c.changeTeam(p, Red)
		case 1:
			c.changeTeam(p, Blue)
		default:
			c.changeTeam(p, Teamless)
		}
	}
	c.log.Debug("session started", zap.Int("players", len(players)))
}

func (c *Controller) Tick(dt time.Duration) {
	if !c.authoritative() || !c.restarting {
		return
	}
	c.elapsed += dt
	if c.elapsed >= c.restartDelay {
		c.restart()
	}
}

func (c *Controller) restart() {
	for _, p := range c.roster.Players() {
		c.changeTeam(p, Teamless)
	}
	c.StartSession()
	c.restarting = false
	c.elapsed = 0
	c.log.Info("round restarted")
}

// ReportTag moves tagged onto tagging's team when the tag is legal. Illegal
// reports are dropped: they are expected around roster changes.
func (c *Controller) ReportTag(tagged, tagging gamemode.ActorID) {
	if !c.authoritative() {
		return
	}
	if !c.CanTag(tagging, tagged) {
		c.log.Debug("tag rejected",
			zap.Int32("tagged", int32(tagged)), zap.Int32("tagging", int32(tagging)))
		return
	}
	c.changeTeam(tagged, c.teams[tagging])
	c.EvaluateWinCondition()
}

// CanTag reports whether a may tag b. It has no side effects.
func (c *Controller) CanTag(a, b gamemode.ActorID) bool {
	ta, ok := c.teams[a]
	if !ok {
		return false
	}
	tb, ok := c.teams[b]
	if !ok {
		return false
	}
	return ta != Teamless && ta != tb
}

func (c *Controller) OnPlayerLeft(p gamemode.ActorID) {
	if !c.authoritative() {
		return
	}
	delete(c.teams, p)
	c.EvaluateWinCondition()
}

func (c *Controller) OnPlayerJoined(p gamemode.ActorID) {
	if !c.authoritative() {
		return
	}
	if _, ok := c.teams[p]; !ok {
		c.changeTeam(p, Teamless)
	}
	c.EvaluateWinCondition()
}

// EvaluateWinCondition starts the restart countdown when every connected
// player is on the same team, Teamless included. It does nothing while a
// countdown is already running or nobody is connected.
func (c *Controller) EvaluateWinCondition() {
	if !c.authoritative() || c.restarting {
		return
	}
	players := c.connected()
	total := len(players)
	if total == 0 {
		return
	}

	counts := make(map[Team]int, 3)
	for _, p := range players {
		if t, ok := c.teams[p]; ok {
			counts[t]++
		}
	}
	for _, t := range []Team{Red, Blue, Teamless} {
		if counts[t] != total {
			continue
		}
		c.restarting = true
		c.elapsed = 0
		c.log.Info("round over", zap.Stringer("winner", t), zap.Int("players", total))
		if c.onRoundOver != nil {
			c.onRoundOver(t, total)
		}
		return
	}
}

// TeamOf returns Teamless for players the table has never seen.
func (c *Controller) TeamOf(p gamemode.ActorID) Team {
	return c.teams[p]
}

func (c *Controller) MatIndex(p gamemode.ActorID) int {
	return teamMaterial[c.TeamOf(p)]
}

func (c *Controller) Restarting() bool { return c.restarting }

// Elapsed is the time spent in the current restart countdown.
func (c *Controller) Elapsed() time.Duration { return c.elapsed }

// Snapshot returns a copy of the team table.
func (c *Controller) Snapshot() map[gamemode.ActorID]Team {
	out := make(map[gamemode.ActorID]Team, len(c.teams))
	for a, t := range c.teams {
		out[a] = t
	}
	return out
}

// SerializeState encodes the full team table. Replicas return nil.
func (c *Controller) SerializeState() []byte {
	if !c.authoritative() {
		return nil
	}
	return encodeTable(c.teams)
}

// ApplyState replaces the local table with a decoded snapshot. The
// authoritative controller ignores snapshots. A malformed payload leaves the
// table untouched.
func (c *Controller) ApplyState(b []byte) error {
	if c.authoritative() {
		return nil
	}
	table, err := decodeTable(b)
	if err != nil {
		return err
	}
	c.teams = table
	return nil
}

func (c *Controller) changeTeam(p gamemode.ActorID, t Team) {
	if cur, ok := c.teams[p]; ok && cur == t {
		return
	}
	c.teams[p] = t
	c.log.Debug("team changed", zap.Int32("actor", int32(p)), zap.Stringer("team", t))
}

func (c *Controller) connected() []gamemode.ActorID {
	return append([]gamemode.ActorID(nil), c.roster.Players()...)
}
