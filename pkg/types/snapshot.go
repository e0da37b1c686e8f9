package types

// TeamSnapshot (binary frame, little endian), sent on join and every
// broadcast interval:
//   count: int32
//   count x { actor: int32, team: uint8 }   team: 0 teamless, 1 red, 2 blue
//
// Entries are written sorted by actor but readers must treat them as a set.
// The frame carries the whole table; a replica replaces its table with it.
// There is no version field.
