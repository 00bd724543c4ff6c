package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/game"
	"github.com/mpetrov/armada/internal/store"
)

// Fire validates and applies a shot. The turn-owner check runs against a
// fresh read, not the cached snapshot: two peers racing on a stale view must
// have at most one of them pass validation at write time. Precondition
// failures are returned without any store write.
func (c *Client) Fire(ctx context.Context, at game.Coord) error {
	snap, err := c.st.Snapshot(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("refresh before fire: %w", err)
	}

	out, err := game.ResolveFire(snap, game.FireCommand{ShooterIndex: c.slot, At: at})
	if err != nil {
		return err
	}

	// Ordered independent writes; each one is individually idempotent, so a
	// peer observing a partial sequence still holds a consistent view.
	out.Shot.ID = uuid.NewString()
	if err := c.st.AppendShot(ctx, out.Shot); err != nil {
		return fmt.Errorf("append shot: %w", err)
	}
	if out.Target != nil {
		if err := c.st.UpdatePlayer(ctx, *out.Target); err != nil {
			return fmt.Errorf("update target: %w", err)
		}
	}
	if err := c.st.UpdateSession(ctx, out.Session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	// The writes come back through our own feed subscription, which is the
	// single place the cached snapshot is advanced.
	c.log.Info("shot resolved",
		zap.Int("shooter", c.slot),
		zap.Int("x", at.X), zap.Int("y", at.Y),
		zap.Bool("hit", out.Shot.IsHit),
		zap.Bool("finished", out.Finished))
	return nil
}

// Restart clears all Player and Shot records, regenerates the host's own
// fleet and returns the session to Waiting with the turn reset. Other
// participants observe the wipe and re-claim their slots with fresh fleets.
func (c *Client) Restart(ctx context.Context) error {
	if !c.IsHost() {
		return ErrNotHost
	}

	sess, err := c.st.Session(ctx, c.sessionID)
	if err != nil {
		return err
	}

	// Wipe before flipping to Waiting. A peer that saw Waiting while its
	// cached player list was still full would re-trigger the start transition
	// against the half-cleared session.
	if err := c.st.DeleteShots(ctx, c.sessionID); err != nil {
		return fmt.Errorf("clear shots: %w", err)
	}
	if err := c.st.DeletePlayers(ctx, c.sessionID); err != nil {
		return fmt.Errorf("clear players: %w", err)
	}
	sess.Status = game.StatusWaiting
	sess.TurnOwnerIndex = 0
	if err := c.st.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	others, err := c.st.Players(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("re-register host: %w", err)
	}
	if err := c.claimSlot(ctx, c.slot, others); err != nil {
		return fmt.Errorf("re-register host: %w", err)
	}

	c.log.Info("session restarted", zap.String("session", c.sessionID))
	return nil
}

// Leave announces departure so the referee eliminates us immediately instead
// of waiting out the heartbeat timeout, then stops the subscription.
func (c *Client) Leave(ctx context.Context) error {
	err := c.st.PublishPresence(ctx, store.Presence{
		SessionID:     c.sessionID,
		SlotIndex:     c.slot,
		ParticipantID: c.participantID,
		LastSeenAt:    time.Now(),
		Left:          true,
	})
	c.Stop()
	if err != nil {
		return fmt.Errorf("announce leave: %w", err)
	}
	return nil
}
