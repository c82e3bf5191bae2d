// internal/veto/roll.go
package veto

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// TeamSide names one of the two session slots.
type TeamSide string

const (
	SideHome TeamSide = "home"
	SideAway TeamSide = "away"
)

// RollSeedFor derives the session's dice-roll seed from its identity, so the same match always
// rolls the same way.
func RollSeedFor(matchID, homeTeamID, awayTeamID uuid.UUID) int64 {
	d := xxhash.New()
	_, _ = d.Write(matchID[:])
	_, _ = d.Write(homeTeamID[:])
	_, _ = d.Write(awayTeamID[:])
	return int64(d.Sum64())
}

// DetermineFirstActor maps a seed onto the team that acts first. The seed is mixed with the
// splitmix64 finalizer before taking the top bit, so nearby seeds do not cluster on one side.
func DetermineFirstActor(seed int64) TeamSide {
	z := uint64(seed)
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	if z>>63 == 0 {
		return SideHome
	}
	return SideAway
}
