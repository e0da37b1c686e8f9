// Package gamemode holds the capability set a game mode exposes to the room
// that drives it.
package gamemode

import (
	"math/rand/v2"
	"time"
)

// ActorID identifies a connected player for the lifetime of a room.
type ActorID int32

// NoActor is never assigned to a player.
const NoActor ActorID = -1

type Role int

const (
	Authority Role = iota
	Replica
)

func (r Role) String() string {
	if r == Authority {
		return "authority"
	}
	return "replica"
}

// Roster is the ordered list of currently connected players.
type Roster interface {
	Players() []ActorID
}

// Rand is satisfied by *rand.Rand from math/rand/v2.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a seeded source. A zero seed uses the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Material indices handed to the renderer.
const (
	MaterialDefault = 0
	MaterialRed     = 2
	MaterialBlue    = 3
	MaterialGolden  = 7
)

// Mode is what a room calls each frame and on every roster or tag event.
// Implementations are not safe for concurrent use.
type Mode interface {
	Name() string
	StartSession()
	Tick(dt time.Duration)
	ReportTag(tagged, tagging ActorID)
	OnPlayerJoined(p ActorID)
	OnPlayerLeft(p ActorID)
	MatIndex(p ActorID) int
	SerializeState() []byte
	ApplyState(b []byte) error
}

// StaticRoster is a fixed roster, handy for replicas and tests.
type StaticRoster []ActorID

func (s StaticRoster) Players() []ActorID { return s }
