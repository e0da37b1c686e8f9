package room

import (
	"slices"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
)

// roster is the join-ordered list of connected actors. It is only touched by
// the room loop.
type roster struct {
	actors []gamemode.ActorID
}

func (r *roster) Players() []gamemode.ActorID { return r.actors }

func (r *roster) len() int { return len(r.actors) }

func (r *roster) add(id gamemode.ActorID) {
	if !slices.Contains(r.actors, id) {
		r.actors = append(r.actors, id)
	}
}

func (r *roster) remove(id gamemode.ActorID) bool {
	i := slices.Index(r.actors, id)
	if i < 0 {
		return false
	}
	r.actors = slices.Delete(r.actors, i, i+1)
	return true
}
