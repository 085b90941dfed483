package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizboard-client/internal/domain"
)

type testServer struct {
	server   *httptest.Server
	inbound  chan envelope
	outbound chan envelope
	clientID chan string
}

func newChannelServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		inbound:  make(chan envelope, 16),
		outbound: make(chan envelope, 16),
		clientID: make(chan string, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.clientID <- r.URL.Query().Get("clientId")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for env := range ts.outbound {
				if err := conn.WriteJSON(env); err != nil {
					return
				}
			}
		}()
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			ts.inbound <- env
		}
	}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) url() string {
	return "ws" + ts.server.URL[len("http"):]
}

func dialTest(t *testing.T, ts *testServer) *Channel {
	t.Helper()
	channel, err := Dial(context.Background(), ts.url(), zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(channel.Close)
	return channel
}

func TestDialSendsClientID(t *testing.T) {
	ts := newChannelServer(t)
	dialTest(t, ts)

	select {
	case id := <-ts.clientID:
		if id == "" {
			t.Fatalf("expected a clientId query param")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server saw no connection")
	}
}

func TestEmitReachesServer(t *testing.T) {
	ts := newChannelServer(t)
	channel := dialTest(t, ts)

	payload := map[string]string{"code": "ABCD", "userId": "u1"}
	if err := channel.Emit("join-room", payload); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case env := <-ts.inbound:
		if env.Type != "join-room" {
			t.Fatalf("expected join-room, got %s", env.Type)
		}
		var got map[string]string
		if err := json.Unmarshal(env.Payload, &got); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if got["code"] != "ABCD" {
			t.Fatalf("unexpected payload: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the event")
	}
}

func TestOnDispatchesAndCancelStops(t *testing.T) {
	ts := newChannelServer(t)
	channel := dialTest(t, ts)

	received := make(chan []byte, 4)
	cancel := channel.On("quiz-started", func(payload []byte) {
		received <- payload
	})

	ts.outbound <- envelope{Type: "quiz-started", Payload: json.RawMessage(`{"questions":[]}`)}
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never fired")
	}

	cancel()
	cancel() // idempotent

	ts.outbound <- envelope{Type: "quiz-started", Payload: json.RawMessage(`{}`)}
	select {
	case <-received:
		t.Fatalf("handler fired after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmitAfterCloseFails(t *testing.T) {
	ts := newChannelServer(t)
	channel := dialTest(t, ts)

	channel.Close()
	channel.Close() // idempotent

	if err := channel.Emit("leave-room", nil); !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
}
