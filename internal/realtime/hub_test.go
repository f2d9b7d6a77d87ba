package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSubscriber implements Subscriber for testing.
type recordingSubscriber struct {
	id  string
	err error

	mu       sync.Mutex
	received []Message
}

func newRecordingSubscriber(id string) *recordingSubscriber {
	return &recordingSubscriber{id: id}
}

func (s *recordingSubscriber) ID() string { return s.id }

func (s *recordingSubscriber) Deliver(msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
	return nil
}

func (s *recordingSubscriber) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.received))
	copy(out, s.received)
	return out
}

type panickingSubscriber struct{ id string }

func (s panickingSubscriber) ID() string { return s.id }

func (s panickingSubscriber) Deliver(Message) error { panic("boom") }

func TestHub_PublishReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub(nil)
	h1 := newRecordingSubscriber("h1")
	h2 := newRecordingSubscriber("h2")

	hub.Join("org-a", h1)
	hub.Join("org-b", h2)

	hub.Publish(context.Background(), "org-a", EventIncidentCreate, IncidentPayload{IncidentID: "inc-1"})

	require.Len(t, h1.messages(), 1)
	msg := h1.messages()[0]
	assert.Equal(t, EventIncidentCreate, msg.Type)
	assert.Equal(t, "org-a", msg.OrganizationID)
	assert.Equal(t, IncidentPayload{IncidentID: "inc-1"}, msg.Payload)
	assert.False(t, msg.SentAt.IsZero())

	assert.Empty(t, h2.messages())
}

func TestHub_LeaveStopsDeliveryAndDropsEmptyRoom(t *testing.T) {
	hub := NewHub(nil)
	h1 := newRecordingSubscriber("h1")

	hub.Join("org-a", h1)
	hub.Join("org-a", h1)
	assert.Equal(t, 1, hub.RoomSize("org-a"))

	hub.Leave("org-a", h1)
	hub.Leave("org-a", h1)
	assert.Equal(t, 0, hub.RoomSize("org-a"))
	assert.Equal(t, 0, hub.RoomCount())

	hub.Publish(context.Background(), "org-a", EventServiceStatusChange, nil)
	assert.Empty(t, h1.messages())
}

func TestHub_LateJoinerMissesEarlierEvents(t *testing.T) {
	hub := NewHub(nil)
	early := newRecordingSubscriber("early")
	late := newRecordingSubscriber("late")

	hub.Join("org-a", early)
	hub.Publish(context.Background(), "org-a", EventIncidentCreate, "first")
	hub.Join("org-a", late)
	hub.Publish(context.Background(), "org-a", EventIncidentUpdate, "second")

	assert.Len(t, early.messages(), 2)
	require.Len(t, late.messages(), 1)
	assert.Equal(t, EventIncidentUpdate, late.messages()[0].Type)
}

func TestHub_DisconnectRemovesAllMemberships(t *testing.T) {
	hub := NewHub(nil)
	h1 := newRecordingSubscriber("h1")
	h2 := newRecordingSubscriber("h2")

	hub.Join("org-a", h1)
	hub.Join("org-b", h1)
	hub.Join("org-b", h2)

	hub.Disconnect(h1)

	assert.Equal(t, 0, hub.RoomSize("org-a"))
	assert.Equal(t, 1, hub.RoomSize("org-b"))
	assert.Equal(t, 1, hub.RoomCount())

	hub.Publish(context.Background(), "org-b", EventCommentCreate, nil)
	assert.Empty(t, h1.messages())
	assert.Len(t, h2.messages(), 1)
}

func TestHub_FailingSubscriberDoesNotAbortBatch(t *testing.T) {
	hub := NewHub(nil)
	failing := newRecordingSubscriber("failing")
	failing.err = errors.New("connection reset")
	healthy := newRecordingSubscriber("healthy")

	hub.Join("org-a", failing)
	hub.Join("org-a", panickingSubscriber{id: "panicky"})
	hub.Join("org-a", healthy)

	assert.NotPanics(t, func() {
		hub.Publish(context.Background(), "org-a", EventMaintenanceUpdate, nil)
	})
	assert.Len(t, healthy.messages(), 1)
}

func TestHub_PreservesPublishOrderPerSubscriber(t *testing.T) {
	hub := NewHub(nil)
	h1 := newRecordingSubscriber("h1")
	hub.Join("org-a", h1)

	ctx := context.Background()
	hub.Publish(ctx, "org-a", EventIncidentUpdate, "incident")
	hub.Publish(ctx, "org-a", EventServiceStatusChange, "svc-1")
	hub.Publish(ctx, "org-a", EventServiceStatusChange, "svc-2")

	msgs := h1.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, EventIncidentUpdate, msgs[0].Type)
	assert.Equal(t, "svc-1", msgs[1].Payload)
	assert.Equal(t, "svc-2", msgs[2].Payload)
}

func TestHub_PublishAfterCloseIsNoop(t *testing.T) {
	hub := NewHub(nil)
	h1 := newRecordingSubscriber("h1")
	hub.Join("org-a", h1)

	hub.Close()
	hub.Close()

	assert.NotPanics(t, func() {
		hub.Publish(context.Background(), "org-a", EventIncidentCreate, nil)
	})
	assert.Empty(t, h1.messages())

	assert.False(t, hub.Join("org-a", h1))
	assert.Equal(t, 0, hub.RoomSize("org-a"))
}

func TestHub_NilHubPublishIsNoop(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() {
		hub.Publish(context.Background(), "org-a", EventIncidentCreate, nil)
	})
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := newRecordingSubscriber(fmt.Sprintf("sub-%d", i))
			org := fmt.Sprintf("org-%d", i%3)
			for j := 0; j < 50; j++ {
				hub.Join(org, sub)
				hub.Publish(ctx, org, EventServiceStatusChange, j)
				hub.Leave(org, sub)
			}
			hub.Disconnect(sub)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.RoomCount())
}
