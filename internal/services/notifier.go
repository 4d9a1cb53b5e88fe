package services

import (
	"context"
	"log"
	"time"
)

// Broadcaster is the real-time fan-out channel (the WebSocket hub).
type Broadcaster interface {
	BroadcastToUser(userID string, data interface{})
	BroadcastToRole(role string, data interface{})
}

// TokenSource looks up a driver's registered push tokens.
type TokenSource interface {
	TokensForUser(ctx context.Context, userID string) ([]string, error)
}

// ShiftNotifier fans shift-status-changed events out over the WebSocket
// hub and FCM. Strictly best-effort: every failure is logged and
// swallowed so a notification problem can never fail a transition.
type ShiftNotifier struct {
	hub    Broadcaster
	fcm    *FCMService
	tokens TokenSource
}

// NewShiftNotifier creates a notifier. hub, fcm and tokens may each be
// nil; whichever channels are configured get used.
func NewShiftNotifier(hub Broadcaster, fcm *FCMService, tokens TokenSource) *ShiftNotifier {
	return &ShiftNotifier{hub: hub, fcm: fcm, tokens: tokens}
}

// ShiftStatusChanged publishes the change to the driver, to manager
// dashboards, and as a push notification to the driver's devices.
func (n *ShiftNotifier) ShiftStatusChanged(change StatusChange) {
	payload := map[string]interface{}{
		"type": "shift_status_changed",
		"data": change,
	}

	if n.hub != nil {
		n.hub.BroadcastToUser(change.DriverID, payload)
		n.hub.BroadcastToRole("admin", payload)
		n.hub.BroadcastToRole("manager", payload)
		log.Printf("📡 Broadcast shift_status_changed: %s %s → %s", change.ShiftID, change.OldStatus, change.NewStatus)
	}

	if n.fcm != nil && n.tokens != nil {
		go n.push(change)
	}
}

func (n *ShiftNotifier) push(change StatusChange) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := n.tokens.TokensForUser(ctx, change.DriverID)
	if err != nil {
		log.Printf("⚠️  Failed to load FCM tokens for %s: %v", change.DriverID, err)
		return
	}

	for _, token := range tokens {
		if err := n.fcm.SendShiftStatusNotification(token, change.ShiftID, string(change.OldStatus), string(change.NewStatus)); err != nil {
			log.Printf("⚠️  FCM push failed for shift %s: %v", change.ShiftID, err)
		}
	}
}
