// Package fleet places a player's ships at random on the session grid.
package fleet

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mpetrov/armada/internal/game"
)

// Every fleet is one ship of each length. Longest first keeps the rejection
// sampling cheap.
var lengths = [...]int{3, 2, 1}

const maxAttempts = 100

var ErrNoPlacement = errors.New("no non-conflicting placement found")

// New generates a fleet for one player on a width×height grid, avoiding the
// cells in taken (other players' ships, so the whole session grid stays
// disjoint). Seeded from the wall clock: placements must differ across
// players and across calls.
func New(width, height int, taken map[game.Coord]bool) ([]game.Ship, error) {
	return Generate(width, height, taken, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// Generate is New with a caller-supplied source, for tests.
func Generate(width, height int, taken map[game.Coord]bool, rng *rand.Rand) ([]game.Ship, error) {
	occupied := make(map[game.Coord]bool, len(taken))
	for c := range taken {
		occupied[c] = true
	}

	ships := make([]game.Ship, 0, len(lengths))
	for _, ln := range lengths {
		ship, ok := place(width, height, ln, occupied, rng)
		if !ok {
			return nil, fmt.Errorf("ship of length %d: %w", ln, ErrNoPlacement)
		}
		for _, c := range ship.Cells {
			occupied[c] = true
		}
		ships = append(ships, ship)
	}
	return ships, nil
}

func place(width, height, length int, occupied map[game.Coord]bool, rng *rand.Rand) (game.Ship, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		horizontal := rng.Intn(2) == 0

		var ox, oy int
		if horizontal {
			if width < length {
				continue
			}
			ox = rng.Intn(width - length + 1)
			oy = rng.Intn(height)
		} else {
			if height < length {
				continue
			}
			ox = rng.Intn(width)
			oy = rng.Intn(height - length + 1)
		}

		cells := make([]game.Coord, length)
		conflict := false
		for i := 0; i < length; i++ {
			c := game.Coord{X: ox, Y: oy}
			if horizontal {
				c.X += i
			} else {
				c.Y += i
			}
			if occupied[c] {
				conflict = true
				break
			}
			cells[i] = c
		}
		if conflict {
			continue
		}
		return game.Ship{OriginX: ox, OriginY: oy, Length: length, Cells: cells}, true
	}
	return game.Ship{}, false
}
