package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	go hub.Run()

	router := gin.New()
	router.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Expected dial to succeed, got %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub, srv := newHubServer(t)
	conn := dial(t, srv)

	// Registration happens after the upgrade response, poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.ClientCount())
	}

	hub.Publish("download_status", map[string]any{"job_id": "j1", "percent": 25.5})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected a message, got %v", err)
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Expected JSON envelope, got %v", err)
	}
	if got.Event != "download_status" {
		t.Errorf("Expected event download_status, got %q", got.Event)
	}
	if got.Data["job_id"] != "j1" {
		t.Errorf("Expected payload forwarded, got %v", got.Data)
	}
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Publish("download_status", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Expected publishes to complete without subscribers")
	}
}
