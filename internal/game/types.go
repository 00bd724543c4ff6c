package game

import "slices"

const (
	// GridWidth is fixed; the grid height equals the session's player capacity.
	GridWidth = 8

	MinCapacity = 3
	MaxCapacity = 8
)

// TargetNone marks a shot that hit open water.
const TargetNone = -1

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Ship struct {
	OriginX int     `json:"origin_x"`
	OriginY int     `json:"origin_y"`
	Length  int     `json:"length"`
	Cells   []Coord `json:"cells"`
}

// DestroyedBy reports whether every cell of the ship appears in hits.
func (s Ship) DestroyedBy(hits []Coord) bool {
	for _, c := range s.Cells {
		if !slices.Contains(hits, c) {
			return false
		}
	}
	return true
}

type Session struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	PlayerCapacity int    `json:"player_capacity"`
	Status         Status `json:"status"`
	TurnOwnerIndex int    `json:"turn_owner_index"`
}

func (s Session) GridHeight() int { return s.PlayerCapacity }

// HostSlot is the slot reserved for the session creator.
func (s Session) HostSlot() int { return s.PlayerCapacity - 1 }

type Player struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	SlotIndex    int     `json:"slot_index"`
	DisplayName  string  `json:"display_name"`
	Fleet        []Ship  `json:"fleet"`
	HitsTaken    []Coord `json:"hits_taken"`
	IsEliminated bool    `json:"is_eliminated"`
}

func (p Player) OwnsCell(c Coord) bool {
	for _, sh := range p.Fleet {
		if slices.Contains(sh.Cells, c) {
			return true
		}
	}
	return false
}

func (p Player) HasHit(c Coord) bool {
	return slices.Contains(p.HitsTaken, c)
}

// FleetDestroyed reports whether every cell of every ship has been hit.
func (p Player) FleetDestroyed() bool {
	for _, sh := range p.Fleet {
		if !sh.DestroyedBy(p.HitsTaken) {
			return false
		}
	}
	return true
}

type Shot struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	ShooterIndex int    `json:"shooter_index"`
	TargetIndex  int    `json:"target_index"` // TargetNone on a miss
	X            int    `json:"x"`
	Y            int    `json:"y"`
	IsHit        bool   `json:"is_hit"`
}

func (s Shot) At() Coord { return Coord{X: s.X, Y: s.Y} }

// Snapshot is one consistent read of every record backing a session.
// Players are kept sorted by slot index.
type Snapshot struct {
	Session Session  `json:"session"`
	Players []Player `json:"players"`
	Shots   []Shot   `json:"shots"`
}

func (s Snapshot) PlayerAt(slot int) (Player, bool) {
	for _, p := range s.Players {
		if p.SlotIndex == slot {
			return p, true
		}
	}
	return Player{}, false
}

// AliveSlots returns the slot indexes of non-eliminated players, ascending.
func (s Snapshot) AliveSlots() []int {
	var alive []int
	for _, p := range s.Players {
		if !p.IsEliminated {
			alive = append(alive, p.SlotIndex)
		}
	}
	return alive
}

// FiredAt reports whether the shooter already has a shot at the coordinate.
// Shooters target the union grid, so shots by other shooters do not count.
func (s Snapshot) FiredAt(shooter int, c Coord) bool {
	for _, sh := range s.Shots {
		if sh.ShooterIndex == shooter && sh.At() == c {
			return true
		}
	}
	return false
}
