package types

// Client -> Server (text frames, JSON)
// Tag:
//   tagged: number   actor id of the player who was hit
//   tagging: number  actor id of the player who hit them
//
// The authority drops tags it considers illegal without replying.

// Server -> Client (text frames, JSON)
// Welcome:
//   actor: number    actor id assigned on join
//   mode: "teamtag" | "goldenmonkey"
//
// Error:
//   error: string    "bad json" | "unknown type"
