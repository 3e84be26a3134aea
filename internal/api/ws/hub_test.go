package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/pkg/dto"
)

func TestEventType(t *testing.T) {
	tests := []struct {
		ev   models.IdentityEvent
		want string
	}{
		{models.IdentityEvent{GlobalID: "G1", IsNew: true}, "new_visitor"},
		{models.IdentityEvent{GlobalID: "G1"}, "reid_match"},
		{models.IdentityEvent{Error: "missing embedding"}, "unresolved"},
	}
	for _, tt := range tests {
		if got := EventType(tt.ev); got != tt.want {
			t.Errorf("EventType(%+v) = %s, want %s", tt.ev, got, tt.want)
		}
	}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastWithCameraFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	all, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer all.Close()
	cam2, _, err := websocket.DefaultDialer.Dial(url+"?camera_id=cam2", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cam2.Close()
	waitClients(t, hub, 2)

	hub.BroadcastEvent(models.IdentityEvent{CameraID: "cam1", GlobalID: "G1", IsNew: true, Timestamp: time.Now()})
	hub.BroadcastEvent(models.IdentityEvent{CameraID: "cam2", GlobalID: "G1", LocalID: 3, Timestamp: time.Now()})

	read := func(c *websocket.Conn) dto.WSEvent {
		t.Helper()
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev dto.WSEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		return ev
	}

	if ev := read(all); ev.Type != "new_visitor" || ev.CameraID != "cam1" {
		t.Errorf("first event = %+v", ev)
	}
	if ev := read(all); ev.Type != "reid_match" {
		t.Errorf("second event = %+v", ev)
	}
	// the filtered client only sees cam2
	if ev := read(cam2); ev.CameraID != "cam2" || ev.Data.LocalID != 3 {
		t.Errorf("filtered event = %+v", ev)
	}

	all.Close()
	waitClients(t, hub, 1)
}
