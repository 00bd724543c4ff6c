package game

import (
	"errors"
	"testing"
)

func shipAt(length int, cells ...Coord) Ship {
	return Ship{OriginX: cells[0].X, OriginY: cells[0].Y, Length: length, Cells: cells}
}

// threePlayerSnap builds a capacity-3 session in play. Slot 0 owns a ship on
// row 0, slot 1 on row 1, slot 2 on row 2, so cells never collide.
func threePlayerSnap() Snapshot {
	sess := Session{ID: "s1", Code: "AAA111", PlayerCapacity: 3, Status: StatusPlaying, TurnOwnerIndex: 0}
	mk := func(slot int) Player {
		y := slot
		return Player{
			ID:        "p" + string(rune('0'+slot)),
			SessionID: "s1",
			SlotIndex: slot,
			Fleet: []Ship{
				shipAt(3, Coord{0, y}, Coord{1, y}, Coord{2, y}),
				shipAt(2, Coord{4, y}, Coord{5, y}),
				shipAt(1, Coord{7, y}),
			},
		}
	}
	return Snapshot{Session: sess, Players: []Player{mk(0), mk(1), mk(2)}}
}

func TestResolveFire_Preconditions(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Snapshot)
		cmd     FireCommand
		wantErr error
	}{
		{
			name:    "rejects when session still waiting",
			mutate:  func(s *Snapshot) { s.Session.Status = StatusWaiting },
			cmd:     FireCommand{ShooterIndex: 0, At: Coord{3, 1}},
			wantErr: ErrNotPlaying,
		},
		{
			name:    "rejects out of turn",
			mutate:  func(s *Snapshot) {},
			cmd:     FireCommand{ShooterIndex: 1, At: Coord{3, 0}},
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "rejects eliminated shooter",
			mutate:  func(s *Snapshot) { s.Players[0].IsEliminated = true },
			cmd:     FireCommand{ShooterIndex: 0, At: Coord{3, 1}},
			wantErr: ErrShooterEliminated,
		},
		{
			name:    "rejects firing at own ship",
			mutate:  func(s *Snapshot) {},
			cmd:     FireCommand{ShooterIndex: 0, At: Coord{1, 0}},
			wantErr: ErrOwnShip,
		},
		{
			name: "rejects replayed coordinate for the same shooter",
			mutate: func(s *Snapshot) {
				s.Shots = append(s.Shots, Shot{SessionID: "s1", ShooterIndex: 0, TargetIndex: TargetNone, X: 3, Y: 1})
			},
			cmd:     FireCommand{ShooterIndex: 0, At: Coord{3, 1}},
			wantErr: ErrAlreadyFired,
		},
		{
			name:    "rejects coordinate off the grid",
			mutate:  func(s *Snapshot) {},
			cmd:     FireCommand{ShooterIndex: 0, At: Coord{8, 0}},
			wantErr: ErrOutOfBounds,
		},
		{
			name:    "rejects unknown shooter slot",
			mutate:  func(s *Snapshot) { s.Players = s.Players[:2]; s.Session.TurnOwnerIndex = 2 },
			cmd:     FireCommand{ShooterIndex: 2, At: Coord{3, 0}},
			wantErr: ErrUnknownSlot,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := threePlayerSnap()
			tc.mutate(&snap)
			_, err := ResolveFire(snap, tc.cmd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestResolveFire_SameCoordinateDifferentShooterIsAllowed(t *testing.T) {
	// Shooters target the union grid: a coordinate shot by one shooter does
	// not block another shooter.
	snap := threePlayerSnap()
	snap.Shots = append(snap.Shots, Shot{SessionID: "s1", ShooterIndex: 1, TargetIndex: TargetNone, X: 3, Y: 2})

	out, err := ResolveFire(snap, FireCommand{ShooterIndex: 0, At: Coord{3, 2}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Shot.ShooterIndex != 0 {
		t.Fatalf("want shooter 0, got %d", out.Shot.ShooterIndex)
	}
}

func TestResolveFire_MissAdvancesTurn(t *testing.T) {
	snap := threePlayerSnap()

	out, err := ResolveFire(snap, FireCommand{ShooterIndex: 0, At: Coord{3, 1}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Shot.IsHit || out.Shot.TargetIndex != TargetNone {
		t.Fatalf("want miss with no target, got %+v", out.Shot)
	}
	if out.Target != nil {
		t.Fatalf("miss must not update any player")
	}
	if out.Session.TurnOwnerIndex != 1 {
		t.Fatalf("want turn owner 1, got %d", out.Session.TurnOwnerIndex)
	}
	if out.Finished {
		t.Fatalf("miss must not finish the session")
	}
}

func TestResolveFire_HitRecordsTarget(t *testing.T) {
	snap := threePlayerSnap()

	out, err := ResolveFire(snap, FireCommand{ShooterIndex: 0, At: Coord{0, 1}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.Shot.IsHit || out.Shot.TargetIndex != 1 {
		t.Fatalf("want hit on slot 1, got %+v", out.Shot)
	}
	if out.Target == nil || !out.Target.HasHit(Coord{0, 1}) {
		t.Fatalf("target must record the hit, got %+v", out.Target)
	}
	if out.Target.IsEliminated {
		t.Fatalf("one hit must not eliminate a full fleet")
	}
	if out.Session.TurnOwnerIndex != 1 {
		t.Fatalf("want turn owner 1, got %d", out.Session.TurnOwnerIndex)
	}
}

func TestResolveFire_LastCellEliminates(t *testing.T) {
	snap := threePlayerSnap()
	// Slot 1 has everything hit except the final cell of the 3-ship.
	snap.Players[1].HitsTaken = []Coord{{0, 1}, {1, 1}, {4, 1}, {5, 1}, {7, 1}}

	out, err := ResolveFire(snap, FireCommand{ShooterIndex: 0, At: Coord{2, 1}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.Target.IsEliminated {
		t.Fatalf("want slot 1 eliminated, got %+v", out.Target)
	}
	if out.Finished {
		t.Fatalf("two players remain; session must stay in play")
	}
	// Turn skips the freshly eliminated slot 1.
	if out.Session.TurnOwnerIndex != 2 {
		t.Fatalf("want turn owner 2, got %d", out.Session.TurnOwnerIndex)
	}
}

func TestResolveFire_LastOpponentFinishesWithoutTurnAdvance(t *testing.T) {
	snap := threePlayerSnap()
	snap.Players[2].IsEliminated = true
	snap.Players[1].HitsTaken = []Coord{{0, 1}, {1, 1}, {4, 1}, {5, 1}, {7, 1}}

	out, err := ResolveFire(snap, FireCommand{ShooterIndex: 0, At: Coord{2, 1}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.Finished || out.Session.Status != StatusFinished {
		t.Fatalf("want finished session, got %+v", out.Session)
	}
	if out.Session.TurnOwnerIndex != 0 {
		t.Fatalf("finishing shot must not advance the turn, got %d", out.Session.TurnOwnerIndex)
	}
}

func TestResolveFire_CellCollisionPicksLowestSlot(t *testing.T) {
	snap := threePlayerSnap()
	// Give slot 2 a ship overlapping slot 1's row-1 ship, as an older peer
	// without global-disjoint placement could have written.
	snap.Players[2].Fleet = append(snap.Players[2].Fleet, shipAt(1, Coord{0, 1}))

	out, err := ResolveFire(snap, FireCommand{ShooterIndex: 0, At: Coord{0, 1}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Shot.TargetIndex != 1 {
		t.Fatalf("want lowest colliding slot 1, got %d", out.Shot.TargetIndex)
	}
}

func TestNextTurnOwner(t *testing.T) {
	players := func(elim ...int) []Player {
		ps := make([]Player, 4)
		for i := range ps {
			ps[i] = Player{SlotIndex: i}
		}
		for _, e := range elim {
			ps[e].IsEliminated = true
		}
		return ps
	}

	cases := []struct {
		name    string
		players []Player
		from    int
		want    int
	}{
		{"plain advance", players(), 0, 1},
		{"skips eliminated", players(1), 0, 2},
		{"wraps around", players(), 3, 0},
		{"wraps past eliminated", players(0, 1), 3, 2},
		{"everyone else gone leaves owner", players(0, 1, 2), 3, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextTurnOwner(tc.players, tc.from, 4)
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestForceEliminate_MarksEveryCellAndAdvances(t *testing.T) {
	snap := threePlayerSnap()
	snap.Session.TurnOwnerIndex = 1

	out, err := ForceEliminate(snap, 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.Player.IsEliminated || !out.Player.FleetDestroyed() {
		t.Fatalf("want fully destroyed fleet, got %+v", out.Player)
	}
	if out.Session.TurnOwnerIndex != 2 {
		t.Fatalf("turn owner was eliminated; want advance to 2, got %d", out.Session.TurnOwnerIndex)
	}
}

func TestForceEliminate_KeepsTurnWhenNotOwner(t *testing.T) {
	snap := threePlayerSnap()

	out, err := ForceEliminate(snap, 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Session.TurnOwnerIndex != 0 {
		t.Fatalf("turn must stay with slot 0, got %d", out.Session.TurnOwnerIndex)
	}
}

func TestForceEliminate_LastOpponentFinishes(t *testing.T) {
	snap := threePlayerSnap()
	snap.Players[2].IsEliminated = true

	out, err := ForceEliminate(snap, 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.Finished || out.Session.Status != StatusFinished {
		t.Fatalf("want finished, got %+v", out.Session)
	}
}

func TestForceEliminate_IsMonotonic(t *testing.T) {
	snap := threePlayerSnap()
	snap.Players[1].IsEliminated = true

	_, err := ForceEliminate(snap, 1)
	if !errors.Is(err, ErrAlreadyEliminated) {
		t.Fatalf("want ErrAlreadyEliminated, got %v", err)
	}
}
