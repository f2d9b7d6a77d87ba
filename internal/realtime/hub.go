// Package realtime fans out state-change events to clients subscribed to an
// organization's room.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
)

// Subscriber is a connected client handle.
// Deliver must not block: slow subscribers drop the message or themselves.
type Subscriber interface {
	ID() string
	Deliver(msg Message) error
}

// Hub is the room registry. The zero value is not usable; use NewHub.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Subscriber
	memberships map[string]map[string]struct{}
	closed      bool

	logger *slog.Logger
	now    func() time.Time
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:       make(map[string]map[string]Subscriber),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger,
		now:         time.Now,
	}
}

// Join adds sub to the organization's room. Joining twice is a no-op.
// It reports false once the hub is closed.
func (h *Hub) Join(orgID string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	room, ok := h.rooms[orgID]
	if !ok {
		room = make(map[string]Subscriber)
		h.rooms[orgID] = room
		roomsActive.Inc()
	}
	room[sub.ID()] = sub

	orgs, ok := h.memberships[sub.ID()]
	if !ok {
		orgs = make(map[string]struct{})
		h.memberships[sub.ID()] = orgs
	}
	orgs[orgID] = struct{}{}

	h.logger.Debug("subscriber joined room", "subscriber_id", sub.ID(), "organization_id", orgID)
	return true
}

// Leave removes sub from the organization's room and drops the room once empty.
func (h *Hub) Leave(orgID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(orgID, sub.ID())
}

// Disconnect removes sub from every room it joined.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for orgID := range h.memberships[sub.ID()] {
		h.leaveLocked(orgID, sub.ID())
	}
	delete(h.memberships, sub.ID())
}

func (h *Hub) leaveLocked(orgID, subID string) {
	if room, ok := h.rooms[orgID]; ok {
		delete(room, subID)
		if len(room) == 0 {
			delete(h.rooms, orgID)
			roomsActive.Dec()
		}
	}
	if orgs, ok := h.memberships[subID]; ok {
		delete(orgs, orgID)
		if len(orgs) == 0 {
			delete(h.memberships, subID)
		}
	}
}

// Publish delivers payload to every subscriber currently in the room.
// Delivery is at most once and never fails the caller; subscriber errors are
// logged and the remaining subscribers still receive the event.
func (h *Hub) Publish(ctx context.Context, orgID string, eventType EventType, payload any) {
	if h == nil {
		ctxlog.FromContext(ctx).Warn("realtime hub unavailable, event dropped",
			"type", eventType,
			"organization_id", orgID,
		)
		eventsDropped.WithLabelValues("unavailable").Inc()
		return
	}

	logger := ctxlog.FromContext(ctx)

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		logger.Warn("realtime hub closed, event dropped",
			"type", eventType,
			"organization_id", orgID,
		)
		eventsDropped.WithLabelValues("unavailable").Inc()
		return
	}
	room := h.rooms[orgID]
	subs := make([]Subscriber, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	eventsPublished.WithLabelValues(string(eventType)).Inc()

	msg := Message{
		Type:           eventType,
		OrganizationID: orgID,
		Payload:        payload,
		SentAt:         h.now().UTC(),
	}

	for _, sub := range subs {
		if err := deliver(sub, msg); err != nil {
			eventsDropped.WithLabelValues("delivery_failed").Inc()
			logger.Warn("failed to deliver event",
				"type", eventType,
				"organization_id", orgID,
				"subscriber_id", sub.ID(),
				"error", err,
			)
		}
	}
}

func deliver(sub Subscriber, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return sub.Deliver(msg)
}

// RoomSize returns the number of subscribers in the organization's room.
func (h *Hub) RoomSize(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orgID])
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Close empties the registry. Later publishes are dropped with a warning.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	roomsActive.Sub(float64(len(h.rooms)))
	h.rooms = make(map[string]map[string]Subscriber)
	h.memberships = make(map[string]map[string]struct{})
	h.logger.Info("realtime hub closed")
}
