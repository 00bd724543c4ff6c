package game

import "testing"

func TestProject_WaitingHasNoWinner(t *testing.T) {
	snap := threePlayerSnap()
	snap.Session.Status = StatusWaiting
	snap.Players = snap.Players[:1]

	v := Project(snap)
	if v.Status != StatusWaiting || v.Joined != 1 || v.WinnerIndex != TargetNone {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestProject_SoleSurvivorIsWinner(t *testing.T) {
	snap := threePlayerSnap()
	snap.Session.Status = StatusFinished
	snap.Players[0].IsEliminated = true
	snap.Players[1].IsEliminated = true

	v := Project(snap)
	if v.WinnerIndex != 2 {
		t.Fatalf("want winner 2, got %d", v.WinnerIndex)
	}
	if len(v.Alive) != 1 || v.Alive[0] != 2 {
		t.Fatalf("want alive [2], got %v", v.Alive)
	}
}

func TestProject_IsDeterministic(t *testing.T) {
	snap := threePlayerSnap()
	snap.Players[1].IsEliminated = true

	a := Project(snap)
	b := Project(snap)
	if a.Status != b.Status || a.TurnOwnerIndex != b.TurnOwnerIndex || a.WinnerIndex != b.WinnerIndex {
		t.Fatalf("projection must be stable: %+v vs %+v", a, b)
	}
}

func TestShouldStart(t *testing.T) {
	snap := threePlayerSnap()
	snap.Session.Status = StatusWaiting
	if !ShouldStart(snap) {
		t.Fatalf("capacity reached while waiting: should start")
	}

	snap.Players = snap.Players[:2]
	if ShouldStart(snap) {
		t.Fatalf("short of capacity: should not start")
	}

	snap = threePlayerSnap()
	if ShouldStart(snap) {
		t.Fatalf("already playing: transition must be idempotent")
	}
}
