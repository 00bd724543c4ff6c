package game

// View is the read-only interpretation of a snapshot: phase, turn owner and
// winner. It is recomputed by every client from the same records, so it must
// stay deterministic and side-effect free for concurrent clients to converge.
type View struct {
	Status         Status
	Capacity       int
	Joined         int
	TurnOwnerIndex int
	WinnerIndex    int // TargetNone while nobody has won
	Alive          []int
}

func Project(snap Snapshot) View {
	v := View{
		Status:         snap.Session.Status,
		Capacity:       snap.Session.PlayerCapacity,
		Joined:         len(snap.Players),
		TurnOwnerIndex: snap.Session.TurnOwnerIndex,
		WinnerIndex:    TargetNone,
		Alive:          snap.AliveSlots(),
	}
	if v.Status != StatusWaiting && len(v.Alive) == 1 {
		v.WinnerIndex = v.Alive[0]
	}
	return v
}

// ShouldStart reports whether the Waiting→Playing transition is due. Any
// client observing this performs the transition; the write is idempotent
// because it is guarded on the current status.
func ShouldStart(snap Snapshot) bool {
	return snap.Session.Status == StatusWaiting &&
		len(snap.Players) == snap.Session.PlayerCapacity
}
