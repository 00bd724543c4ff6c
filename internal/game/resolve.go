package game

import "errors"

var ErrNotPlaying = errors.New("session is not in play")
var ErrNotYourTurn = errors.New("not your turn")
var ErrShooterEliminated = errors.New("shooter is eliminated")
var ErrOwnShip = errors.New("cannot fire at your own ship")
var ErrAlreadyFired = errors.New("coordinate already fired at")
var ErrOutOfBounds = errors.New("coordinate outside the grid")
var ErrUnknownSlot = errors.New("no player in that slot")
var ErrAlreadyEliminated = errors.New("player already eliminated")

type FireCommand struct {
	ShooterIndex int
	At           Coord
}

// Outcome lists the record writes one resolved fire requires, in the order
// they must be applied: Shot, then Target (when hit), then Session. Each
// write is independently idempotent, so a partially applied sequence observed
// by another client is self-consistent and converges once the rest land.
type Outcome struct {
	Shot     Shot
	Target   *Player // updated copy of the hit player, nil on a miss
	Session  Session // updated copy: turn advanced or status finished
	Finished bool
}

// ResolveFire validates cmd against snap and computes the resulting writes.
// It never mutates snap; the caller applies the outcome to the store. All
// precondition failures are local no-ops that must not reach the store.
func ResolveFire(snap Snapshot, cmd FireCommand) (Outcome, error) {
	sess := snap.Session
	if sess.Status != StatusPlaying {
		return Outcome{}, ErrNotPlaying
	}
	if cmd.At.X < 0 || cmd.At.X >= GridWidth || cmd.At.Y < 0 || cmd.At.Y >= sess.GridHeight() {
		return Outcome{}, ErrOutOfBounds
	}
	shooter, ok := snap.PlayerAt(cmd.ShooterIndex)
	if !ok {
		return Outcome{}, ErrUnknownSlot
	}
	if shooter.IsEliminated {
		return Outcome{}, ErrShooterEliminated
	}
	if sess.TurnOwnerIndex != cmd.ShooterIndex {
		return Outcome{}, ErrNotYourTurn
	}
	if shooter.OwnsCell(cmd.At) {
		return Outcome{}, ErrOwnShip
	}
	if snap.FiredAt(cmd.ShooterIndex, cmd.At) {
		return Outcome{}, ErrAlreadyFired
	}

	// Lowest slot wins a cross-player cell collision. Placement keeps the
	// session grid disjoint on a best-effort basis; concurrent slot claims
	// that missed each other's fleets, or records written by peers that
	// predate the disjoint-placement rule, resolve deterministically here.
	target := TargetNone
	for _, p := range snap.Players {
		if p.SlotIndex != cmd.ShooterIndex && p.OwnsCell(cmd.At) {
			target = p.SlotIndex
			break
		}
	}

	out := Outcome{
		Shot: Shot{
			SessionID:    sess.ID,
			ShooterIndex: cmd.ShooterIndex,
			TargetIndex:  target,
			X:            cmd.At.X,
			Y:            cmd.At.Y,
			IsHit:        target != TargetNone,
		},
		Session: sess,
	}

	players := snap.Players
	if target != TargetNone {
		hit, _ := snap.PlayerAt(target)
		if !hit.HasHit(cmd.At) {
			hit.HitsTaken = append(append([]Coord(nil), hit.HitsTaken...), cmd.At)
		}
		if hit.FleetDestroyed() {
			hit.IsEliminated = true
		}
		out.Target = &hit
		players = replacePlayer(snap.Players, hit)
	}

	alive := countAlive(players)
	if alive == 1 {
		out.Session.Status = StatusFinished
		out.Finished = true
		return out, nil
	}
	out.Session.TurnOwnerIndex = NextTurnOwner(players, cmd.ShooterIndex, sess.PlayerCapacity)
	return out, nil
}

// Elimination lists the writes of a forced elimination: Player first, then
// Session. Used by the presence referee for disconnects and explicit leaves.
type Elimination struct {
	Player   Player
	Session  Session
	Finished bool
}

// ForceEliminate marks every fleet cell of the slot's player as hit and
// eliminates them. The turn advances and the session finishes by the same
// rules as a resolved shot.
func ForceEliminate(snap Snapshot, slot int) (Elimination, error) {
	sess := snap.Session
	if sess.Status != StatusPlaying {
		return Elimination{}, ErrNotPlaying
	}
	p, ok := snap.PlayerAt(slot)
	if !ok {
		return Elimination{}, ErrUnknownSlot
	}
	if p.IsEliminated {
		return Elimination{}, ErrAlreadyEliminated
	}

	p.HitsTaken = append([]Coord(nil), p.HitsTaken...)
	for _, sh := range p.Fleet {
		for _, c := range sh.Cells {
			if !p.HasHit(c) {
				p.HitsTaken = append(p.HitsTaken, c)
			}
		}
	}
	p.IsEliminated = true

	out := Elimination{Player: p, Session: sess}
	players := replacePlayer(snap.Players, p)
	if countAlive(players) == 1 {
		out.Session.Status = StatusFinished
		out.Finished = true
		return out, nil
	}
	if sess.TurnOwnerIndex == slot {
		out.Session.TurnOwnerIndex = NextTurnOwner(players, slot, sess.PlayerCapacity)
	}
	return out, nil
}

// NextTurnOwner scans forward from the current owner, wrapping modulo
// capacity, and returns the first non-eliminated slot. If the scan comes all
// the way back around it leaves the owner unchanged.
func NextTurnOwner(players []Player, from, capacity int) int {
	for i := 1; i <= capacity; i++ {
		slot := (from + i) % capacity
		for _, p := range players {
			if p.SlotIndex == slot && !p.IsEliminated {
				return slot
			}
		}
	}
	return from
}

func replacePlayer(players []Player, upd Player) []Player {
	out := append([]Player(nil), players...)
	for i := range out {
		if out[i].SlotIndex == upd.SlotIndex {
			out[i] = upd
		}
	}
	return out
}

func countAlive(players []Player) int {
	n := 0
	for _, p := range players {
		if !p.IsEliminated {
			n++
		}
	}
	return n
}
