package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/planfold/planfold/internal/config"
)

// MembershipChangeEvent represents a change to an organization membership row.
// OrganizationID and UserID are the raw UUID strings from the trigger payload;
// on RELOAD events both are empty and subscribers should drop everything they
// have cached.
type MembershipChangeEvent struct {
	OrganizationID string
	UserID         string
	Operation      string // INSERT, UPDATE, DELETE, RELOAD
}

// MembershipChangeHandler is a callback function for membership changes
type MembershipChangeHandler func(event MembershipChangeEvent)

// PubSub handles PostgreSQL LISTEN/NOTIFY for membership changes. Role
// resolutions cached by API nodes go stale the moment a membership row
// changes, so every change is broadcast here.
type PubSub struct {
	connStr  string
	listener *pq.Listener
	handlers []MembershipChangeHandler
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewPubSub creates a new PubSub instance
func NewPubSub(conf *config.Config) *PubSub {
	connStr := fmt.Sprintf("postgresql://%v:%v@%v:%v/%v",
		conf.DB_USERNAME, conf.DB_PASSWORD, conf.DB_HOST, conf.DB_PORT, conf.DB_NAME)
	if conf.DISABLE_TLS == "true" {
		connStr = connStr + "?sslmode=disable"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &PubSub{
		connStr:  connStr,
		handlers: make([]MembershipChangeHandler, 0),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe adds a handler for membership change events
func (ps *PubSub) Subscribe(handler MembershipChangeHandler) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.handlers = append(ps.handlers, handler)
}

// Start begins listening for notifications
func (ps *PubSub) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("PubSub listener error", slog.Any("error", err))
		}
		if ev == pq.ListenerEventConnectionAttemptFailed {
			slog.Warn("PubSub connection attempt failed, will retry")
		}
		if ev == pq.ListenerEventDisconnected {
			slog.Warn("PubSub disconnected, will attempt reconnect")
		}
		if ev == pq.ListenerEventReconnected {
			slog.Info("PubSub reconnected, triggering full reload")
			// On reconnection, notify handlers to flush cached state
			// since we might have missed notifications
			ps.notifyHandlers(MembershipChangeEvent{Operation: "RELOAD"})
		}
	}

	ps.listener = pq.NewListener(ps.connStr, 10*time.Second, time.Minute, reportProblem)

	if err := ps.listener.Listen("membership_changes"); err != nil {
		return fmt.Errorf("failed to listen on membership_changes channel: %w", err)
	}

	slog.Info("PubSub started listening for membership changes")

	// Start the notification processing goroutine
	go ps.processNotifications()

	return nil
}

// Stop closes the listener
func (ps *PubSub) Stop() {
	ps.cancel()
	if ps.listener != nil {
		ps.listener.Close()
	}
	slog.Info("PubSub stopped")
}

func (ps *PubSub) processNotifications() {
	for {
		select {
		case <-ps.ctx.Done():
			return
		case notification := <-ps.listener.Notify:
			if notification == nil {
				// Connection lost, will be handled by reportProblem callback
				continue
			}

			// Parse the payload: "organization_id:user_id:operation"
			parts := strings.SplitN(notification.Extra, ":", 3)
			if len(parts) != 3 {
				slog.Warn("Invalid notification payload", slog.String("payload", notification.Extra))
				continue
			}

			event := MembershipChangeEvent{
				OrganizationID: parts[0],
				UserID:         parts[1],
				Operation:      parts[2],
			}

			slog.Debug("Received membership change notification",
				slog.String("organization_id", event.OrganizationID),
				slog.String("user_id", event.UserID),
				slog.String("operation", event.Operation))

			ps.notifyHandlers(event)
		}
	}
}

func (ps *PubSub) notifyHandlers(event MembershipChangeEvent) {
	ps.mu.RLock()
	handlers := make([]MembershipChangeHandler, len(ps.handlers))
	copy(handlers, ps.handlers)
	ps.mu.RUnlock()

	for _, handler := range handlers {
		// Run handlers in goroutines to avoid blocking the notification loop
		go handler(event)
	}
}
