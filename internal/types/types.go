package types

import "github.com/DoyleJ11/tagsrv/internal/gamemode"

const (
	MsgTag     = "Tag"
	MsgWelcome = "Welcome"
	MsgError   = "Error"
)

type ClientMessage struct {
	Type    string           `json:"type"` // "Tag"
	Tagged  gamemode.ActorID `json:"tagged"`
	Tagging gamemode.ActorID `json:"tagging"`
}

// Snapshots travel as binary frames; everything else is a ServerMessage.
type ServerMessage struct {
	Type  string           `json:"type"` // "Welcome" | "Error"
	Actor gamemode.ActorID `json:"actor,omitempty"`
	Mode  string           `json:"mode,omitempty"`
	Error string           `json:"error,omitempty"`
}
