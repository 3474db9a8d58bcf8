package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/prepview/backend/internal/models"
)

func newTestClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		send:   make(chan WSMessage, 8),
	}
}

func TestHubDeliversStatusToAllUserConnections(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	userID := uuid.New()
	c1 := newTestClient(userID)
	c2 := newTestClient(userID)
	other := newTestClient(uuid.New())
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	interviewID := uuid.New()
	hub.NotifyInterviewStatus(userID, interviewID, models.InterviewStatusCompleted)

	for i, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Event != EventInterviewStatus {
				t.Fatalf("client %d event = %s", i, msg.Event)
			}
			var ev InterviewStatusEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				t.Fatalf("client %d payload: %v", i, err)
			}
			if ev.InterviewID != interviewID || ev.Status != models.InterviewStatusCompleted {
				t.Fatalf("client %d got %+v", i, ev)
			}
		default:
			t.Fatalf("client %d received nothing", i)
		}
	}
	select {
	case msg := <-other.send:
		t.Fatalf("other user received %s", msg.Event)
	default:
	}
}

// Run with -race: sends must not iterate the connection map while
// Register/Unregister mutate it.
func TestHubSendDuringRegisterChurn(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	userID := uuid.New()
	hub.Register(newTestClient(userID))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c := newTestClient(userID)
			hub.Register(c)
			hub.Unregister(c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.NotifyInterviewStatus(userID, uuid.New(), models.InterviewStatusInProgress)
		}
	}()
	wg.Wait()

	if n := hub.ConnectionCount(userID); n != 1 {
		t.Fatalf("count = %d, want 1 after churn", n)
	}
}

func TestHubUnregisterDropsConnection(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	userID := uuid.New()
	c := newTestClient(userID)
	hub.Register(c)
	if n := hub.ConnectionCount(userID); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	hub.Unregister(c)
	if n := hub.ConnectionCount(userID); n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
	hub.NotifyInterviewStatus(userID, uuid.New(), models.InterviewStatusFailed)
	select {
	case msg := <-c.send:
		t.Fatalf("unregistered client received %s", msg.Event)
	default:
	}
}
