package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
	"github.com/mpetrov/armada/internal/store/memstore"
)

const eventually = 3 * time.Second
const tick = 10 * time.Millisecond

// playingSession writes a capacity-3 session in play straight into the
// store, slot y owning row y so coordinates are predictable.
func playingSession(t *testing.T, ctx context.Context, st store.Store) game.Session {
	t.Helper()
	sess := game.Session{ID: "s1", Code: "AAA111", PlayerCapacity: 3, Status: game.StatusPlaying}
	require.NoError(t, st.CreateSession(ctx, sess))
	for slot := 0; slot < 3; slot++ {
		y := slot
		p := game.Player{
			ID:        "p" + string(rune('0'+slot)),
			SessionID: "s1",
			SlotIndex: slot,
			Fleet: []game.Ship{
				{OriginX: 0, OriginY: y, Length: 2, Cells: []game.Coord{{X: 0, Y: y}, {X: 1, Y: y}}},
				{OriginX: 4, OriginY: y, Length: 1, Cells: []game.Coord{{X: 4, Y: y}}},
			},
			HitsTaken: []game.Coord{},
		}
		require.NoError(t, st.CreatePlayer(ctx, p))
	}
	return sess
}

// beat keeps publishing heartbeats for a slot until ctx ends.
func beat(ctx context.Context, st store.Store, sessionID string, slot int, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			_ = st.PublishPresence(ctx, store.Presence{
				SessionID:     sessionID,
				SlotIndex:     slot,
				ParticipantID: "dev",
				LastSeenAt:    time.Now(),
			})
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

func TestSweeper_TimeoutForcesElimination(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := memstore.New(ctx)
	playingSession(t, ctx, st)

	const timeout = 300 * time.Millisecond
	// Slots 1 and 2 stay live; slot 0 never announces. The slot-1 sweeper
	// is the lowest fresh slot, so it holds the referee role.
	beat(ctx, st, "s1", 1, timeout/4)
	beat(ctx, st, "s1", 2, timeout/4)

	sw := NewSweeper(st, nil, "s1", 1, timeout)
	go sw.Run(ctx)

	require.Eventually(t, func() bool {
		players, err := st.Players(ctx, "s1")
		if err != nil {
			return false
		}
		return players[0].IsEliminated
	}, eventually, tick, "silent slot was never eliminated")

	players, err := st.Players(ctx, "s1")
	require.NoError(t, err)
	require.True(t, players[0].FleetDestroyed(), "every fleet cell must be marked hit")

	// Slot 0 owned the opening turn; elimination advances it.
	sess, err := st.Session(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, sess.TurnOwnerIndex)
	require.Equal(t, game.StatusPlaying, sess.Status, "two players remain")
}

func TestSweeper_NonRefereeDoesNotAct(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := memstore.New(ctx)
	playingSession(t, ctx, st)

	const timeout = 200 * time.Millisecond
	// Slot 1 is fresh and lower than our slot 2, so the slot-2 sweeper must
	// stay passive even though slot 0 has timed out.
	beat(ctx, st, "s1", 1, timeout/4)
	beat(ctx, st, "s1", 2, timeout/4)

	sw := NewSweeper(st, nil, "s1", 2, timeout)
	go sw.Run(ctx)

	time.Sleep(4 * timeout)
	players, err := st.Players(ctx, "s1")
	require.NoError(t, err)
	require.False(t, players[0].IsEliminated, "only the referee may eliminate")
}

func TestSweeper_StaleSelfYieldsRefereeRole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := memstore.New(ctx)
	playingSession(t, ctx, st)

	const timeout = 200 * time.Millisecond
	// Only slot 2 announces. The slot-1 sweeper's own heartbeat lapses after
	// its startup grace, making slot 2 the lowest fresh slot; slot 1 must not
	// eliminate anyone even though slot 0 has timed out.
	beat(ctx, st, "s1", 2, timeout/4)

	sw := NewSweeper(st, nil, "s1", 1, timeout)
	go sw.Run(ctx)

	time.Sleep(5 * timeout)
	players, err := st.Players(ctx, "s1")
	require.NoError(t, err)
	require.False(t, players[0].IsEliminated, "a sweeper with a stale heartbeat must yield the referee role")
	require.False(t, players[1].IsEliminated)
}

func TestSweeper_RefereeRoleMigrates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := memstore.New(ctx)
	playingSession(t, ctx, st)

	const timeout = 300 * time.Millisecond
	// Only slot 2 is alive on the feed. Once slots 0 and 1 age out, the
	// slot-2 sweeper becomes the lowest fresh slot and eliminates both.
	beat(ctx, st, "s1", 2, timeout/4)

	sw := NewSweeper(st, nil, "s1", 2, timeout)
	go sw.Run(ctx)

	require.Eventually(t, func() bool {
		sess, err := st.Session(ctx, "s1")
		return err == nil && sess.Status == game.StatusFinished
	}, eventually, tick, "referee role never migrated")

	players, err := st.Players(ctx, "s1")
	require.NoError(t, err)
	require.True(t, players[0].IsEliminated)
	require.True(t, players[1].IsEliminated)
	require.False(t, players[2].IsEliminated, "the sole survivor wins")
}

func TestSweeper_ExplicitLeaveSkipsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := memstore.New(ctx)
	playingSession(t, ctx, st)

	// Generous timeout: elimination must come from the leave announcement,
	// not the sweep.
	const timeout = 10 * time.Second
	beat(ctx, st, "s1", 1, time.Second)

	sw := NewSweeper(st, nil, "s1", 1, timeout)
	go sw.Run(ctx)
	time.Sleep(50 * time.Millisecond) // let the sweeper subscribe

	require.NoError(t, st.PublishPresence(ctx, store.Presence{
		SessionID: "s1", SlotIndex: 0, ParticipantID: "dev", LastSeenAt: time.Now(), Left: true,
	}))

	require.Eventually(t, func() bool {
		players, err := st.Players(ctx, "s1")
		return err == nil && players[0].IsEliminated
	}, eventually, tick, "leave was not handled immediately")
}

func TestSweeper_IgnoresWaitingSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := memstore.New(ctx)
	sess := playingSession(t, ctx, st)
	sess.Status = game.StatusWaiting
	require.NoError(t, st.UpdateSession(ctx, sess))

	const timeout = 200 * time.Millisecond
	beat(ctx, st, "s1", 1, timeout/4)

	sw := NewSweeper(st, nil, "s1", 1, timeout)
	go sw.Run(ctx)

	time.Sleep(4 * timeout)
	players, err := st.Players(ctx, "s1")
	require.NoError(t, err)
	for _, p := range players {
		require.False(t, p.IsEliminated, "no eliminations while waiting")
	}
}

func TestHeartbeat_PublishesAndPauses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := memstore.New(ctx)
	require.NoError(t, st.CreateSession(ctx, game.Session{ID: "s1", Code: "AAA111", PlayerCapacity: 3, Status: game.StatusWaiting}))

	sub, err := st.Subscribe(ctx, "s1", store.TypePresence)
	require.NoError(t, err)
	defer sub.Close()

	hb := NewHeartbeat(st, nil, "s1", 0, "dev-a", 50*time.Millisecond)
	go hb.Run(ctx)

	// Initial publish plus at least one tick.
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Events():
			require.NotNil(t, ev.Presence)
			require.Equal(t, 0, ev.Presence.SlotIndex)
		case <-time.After(time.Second):
			t.Fatalf("no heartbeat %d", i)
		}
	}

	hb.Pause()
	drainFor(sub.Events(), 100*time.Millisecond)
	select {
	case ev := <-sub.Events():
		t.Fatalf("heartbeat while paused: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}

	// Resume announces immediately.
	hb.Resume(ctx)
	select {
	case ev := <-sub.Events():
		require.NotNil(t, ev.Presence)
	case <-time.After(time.Second):
		t.Fatalf("no heartbeat after resume")
	}
}

func drainFor(ch <-chan store.Event, d time.Duration) {
	deadline := time.After(d)
	for {
		select {
		case <-ch:
		case <-deadline:
			return
		}
	}
}
