package teamtag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/tagsrv/internal/gamemode"
)

var ErrMalformedSnapshot = errors.New("malformed team snapshot")

// [i32 count] then count x [i32 actor][u8 team], little endian.
const (
	countSize = 4
	entrySize = 5
)

func encodeTable(table map[gamemode.ActorID]Team) []byte {
	actors := make([]gamemode.ActorID, 0, len(table))
	for a := range table {
		actors = append(actors, a)
	}
	slices.Sort(actors)

	buf := make([]byte, 0, countSize+entrySize*len(actors))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(actors)))
	for _, a := range actors {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(a))
		buf = append(buf, byte(table[a]))
	}
	return buf
}

func decodeTable(b []byte) (map[gamemode.ActorID]Team, error) {
	if len(b) < countSize {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrMalformedSnapshot, len(b), countSize)
	}
	n := int32(binary.LittleEndian.Uint32(b))
	if n < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrMalformedSnapshot, n)
	}
	body := b[countSize:]
	if len(body) != int(n)*entrySize {
		return nil, fmt.Errorf("%w: count %d needs %d bytes, got %d", ErrMalformedSnapshot, n, int(n)*entrySize, len(body))
	}

	table := make(map[gamemode.ActorID]Team, n)
	for i := 0; i < int(n); i++ {
		e := body[i*entrySize : (i+1)*entrySize]
		actor := gamemode.ActorID(int32(binary.LittleEndian.Uint32(e)))
		team := Team(e[4])
		if !team.valid() {
			return nil, fmt.Errorf("%w: actor %d has team %d", ErrMalformedSnapshot, actor, team)
		}
		table[actor] = team
	}
	return table, nil
}
