package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSubscriber(topics ...string) *subscriber {
	s := &subscriber{id: "s", topics: map[string]struct{}{}, send: make(chan []byte, 4)}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}
	return s
}

func TestHubPublishesToTopicSubscribersOnly(t *testing.T) {
	hub := NewHub(quietLogger())
	appts := newSubscriber(TopicAppointments)
	clients := newSubscriber(TopicClients)
	hub.register(appts)
	hub.register(clients)

	hub.Publish(context.Background(), TopicAppointments, "appointment.created", "a1", map[string]string{"date": "2024-03-04"})

	select {
	case raw := <-appts.send:
		var c Change
		if err := json.Unmarshal(raw, &c); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if c.Type != "appointment.created" || c.ResourceID != "a1" || !strings.Contains(string(c.Data), "2024-03-04") {
			t.Fatalf("unexpected change %+v", c)
		}
	default:
		t.Fatal("appointments subscriber got nothing")
	}
	if len(clients.send) != 0 {
		t.Fatal("clients subscriber should not receive appointment changes")
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(quietLogger())
	s := &subscriber{id: "slow", topics: map[string]struct{}{TopicClients: {}}, send: make(chan []byte, 1)}
	hub.register(s)

	done := make(chan struct{})
	go func() {
		hub.Publish(context.Background(), TopicClients, "client.updated", "c1", nil)
		hub.Publish(context.Background(), TopicClients, "client.updated", "c2", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(quietLogger())
	s := newSubscriber()
	hub.register(s)
	hub.subscribe(s, []string{TopicFollowUps})
	if hub.TopicCount(TopicFollowUps) != 1 {
		t.Fatalf("expected 1 follow-up subscriber, got %d", hub.TopicCount(TopicFollowUps))
	}
	hub.unsubscribe(s, []string{TopicFollowUps})
	if hub.TopicCount(TopicFollowUps) != 0 {
		t.Fatal("unsubscribe should remove the topic")
	}
	hub.unregister(s)
	hub.unregister(s)
	if hub.ClientCount() != 0 {
		t.Fatal("unregister should remove the subscriber")
	}
}

func TestHandlerStreamsChanges(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(NewHandler(hub, []string{"*"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?topics=" + TopicConsultations
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount(TopicConsultations) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(context.Background(), TopicConsultations, "consultation.created", "cons-1", nil)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"consultation.created"`) {
		t.Fatalf("unexpected message %s", raw)
	}
}

func TestHandlerRejectsUnknownOrigin(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewHub(quietLogger()), []string{"https://admin.example.com"}))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}
