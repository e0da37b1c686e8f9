package teamtag

import "github.com/DoyleJ11/tagsrv/internal/gamemode"

// Team ordinals are part of the snapshot wire format.
type Team uint8

const (
	Teamless Team = iota
	Red
	Blue
)

func (t Team) String() string {
	switch t {
	case Teamless:
		return "teamless"
	case Red:
		return "red"
	case Blue:
		return "blue"
	default:
		return "unknown"
	}
}

func (t Team) valid() bool { return t <= Blue }

var teamMaterial = map[Team]int{
	Teamless: gamemode.MaterialDefault,
	Red:      gamemode.MaterialRed,
	Blue:     gamemode.MaterialBlue,
}
