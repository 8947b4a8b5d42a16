package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"loyalty-service/internal/storage/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStream_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	intake := NewIntake(IntakeOptions{Archive: memory.NewProcessorEventStore()})
	stream, err := NewStream(context.Background(), StreamOptions{Endpoint: wsURL(server), Intake: intake})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}
	defer stream.Close()

	if stream.closed.Load() {
		t.Error("Stream should not report closed")
	}
}

func TestStream_ArchivesDeliveredEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		frames := []EventInput{
			{Provider: "stripe", ExternalID: "evt_1", EventType: "charge.succeeded", OccurredAt: 1000, Payload: "{}"},
			{Provider: "stripe", ExternalID: "evt_2", EventType: "refund.created", OccurredAt: 2000, Payload: "{}"},
		}
		for _, f := range frames {
			data, _ := json.Marshal(f)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	archive := memory.NewProcessorEventStore()
	intake := NewIntake(IntakeOptions{Archive: archive})

	stream, err := NewStream(context.Background(), StreamOptions{Endpoint: wsURL(server), Intake: intake})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}
	defer stream.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := archive.GetByTimeRange(context.Background(), 0, 5000)
		if err != nil {
			t.Fatalf("GetByTimeRange failed: %v", err)
		}
		if len(events) == 2 {
			if events[0].ID != EventID("stripe", "evt_1") {
				t.Errorf("Unexpected first event id %s", events[0].ID)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for both frames to archive")
}

func TestStream_SkipsUndecodableFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		data, _ := json.Marshal(EventInput{Provider: "stripe", ExternalID: "evt_3", OccurredAt: 1000, Payload: "{}"})
		conn.WriteMessage(websocket.TextMessage, data)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	archive := memory.NewProcessorEventStore()
	stream, err := NewStream(context.Background(), StreamOptions{
		Endpoint: wsURL(server),
		Intake:   NewIntake(IntakeOptions{Archive: archive}),
	})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}
	defer stream.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, _ := archive.GetByTimeRange(context.Background(), 0, 5000)
		if len(events) == 1 {
			return // bad frame skipped, good frame archived
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for the valid frame to archive")
}

func TestStream_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	intake := NewIntake(IntakeOptions{Archive: memory.NewProcessorEventStore()})
	stream, err := NewStream(context.Background(), StreamOptions{Endpoint: wsURL(server), Intake: intake})
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// Double close must be safe.
	if err := stream.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestNewStream_RequiresIntake(t *testing.T) {
	if _, err := NewStream(context.Background(), StreamOptions{Endpoint: "ws://localhost:0"}); err == nil {
		t.Error("Expected an error without an intake")
	}
}
