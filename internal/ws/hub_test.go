package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/manpreetbhatti/inkboard/internal/board"
	"github.com/manpreetbhatti/inkboard/internal/db"
	"github.com/manpreetbhatti/inkboard/internal/protocol"
)

const waitTimeout = 2 * time.Second

var probeSeq int64

func startHub(t *testing.T) *Hub {
	t.Helper()
	n := 0
	hub := NewHub(nil, board.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}))
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// Creates a client without a socket; the test reads its send channel directly
func newTestClient(hub *Hub, id, roomID string, buffer int) *Client {
	c := newClient(hub, nil, roomID)
	c.id = id
	c.send = make(chan []byte, buffer)
	return c
}

func join(t *testing.T, hub *Hub, id, roomID string) *Client {
	t.Helper()
	c := newTestClient(hub, id, roomID, 256)
	hub.register <- c
	expect(t, c, protocol.MessageInit)
	return c
}

func send(hub *Hub, c *Client, in protocol.Inbound) {
	hub.inbound <- &Event{Client: c, Message: in}
}

// Blocks until every event queued before it has been applied
func barrier(t *testing.T, hub *Hub) {
	t.Helper()
	id := fmt.Sprintf("probe-%d", atomic.AddInt64(&probeSeq, 1))
	probe := newTestClient(hub, id, "__probe__"+id, 4)
	hub.register <- probe
	expect(t, probe, protocol.MessageInit)
	hub.unregister <- probe
}

func next(t *testing.T, c *Client) (protocol.Envelope, bool) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			return protocol.Envelope{}, false
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("Client %s got invalid frame: %v", c.id, err)
		}
		return env, true
	case <-time.After(waitTimeout):
		t.Fatalf("Client %s: timed out waiting for a message", c.id)
	}
	return protocol.Envelope{}, false
}

// Skips frames until one of the wanted type arrives
func expect(t *testing.T, c *Client, want protocol.MessageType) protocol.Envelope {
	t.Helper()
	for {
		env, ok := next(t, c)
		if !ok {
			t.Fatalf("Client %s: channel closed while waiting for %s", c.id, want)
		}
		if env.Type == want {
			return env
		}
	}
}

func drain(c *Client) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var env protocol.Envelope
			json.Unmarshal(data, &env)
			out = append(out, env)
		default:
			return out
		}
	}
}

func countType(envs []protocol.Envelope, t protocol.MessageType) int {
	n := 0
	for _, env := range envs {
		if env.Type == t {
			n++
		}
	}
	return n
}

func decodeHistory(t *testing.T, env protocol.Envelope) []board.Stroke {
	t.Helper()
	var data protocol.HistoryData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	return data.History
}

func start(x, y float64) protocol.Inbound {
	return protocol.Inbound{Type: protocol.MessageStartStroke, Start: protocol.StartStrokeData{
		X: x, Y: y, Color: "#112233", Size: 4, Type: board.ToolBrush,
	}}
}

func point(x, y float64) protocol.Inbound {
	return protocol.Inbound{Type: protocol.MessageDrawPoint, Point: protocol.PointData{X: x, Y: y}}
}

func simple(t protocol.MessageType) protocol.Inbound {
	return protocol.Inbound{Type: t}
}

func TestHubCreation(t *testing.T) {
	hub := NewHub(nil)
	if hub == nil {
		t.Fatal("Hub should not be nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map should be initialized")
	}
	if hub.GetRoomCount() != 0 || hub.GetClientCount() != 0 {
		t.Error("New hub should have no rooms or clients")
	}
	if len(hub.GetActiveRooms()) != 0 {
		t.Error("New hub should have no active rooms")
	}
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		msg  protocol.MessageType
		want Audience
	}{
		{protocol.MessageInit, AudienceSender},
		{protocol.MessageRemoteStart, AudienceOthers},
		{protocol.MessageRemotePoint, AudienceOthers},
		{protocol.MessageRemoteCursor, AudienceOthers},
		{protocol.MessageRemoteEnd, AudienceEveryone},
		{protocol.MessageHistoryUpdate, AudienceEveryone},
		{protocol.MessageUserUpdate, AudienceEveryone},
	}
	for _, tt := range tests {
		got, ok := RouteOf(tt.msg)
		if !ok || got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.msg, tt.want, got)
		}
	}
	if _, ok := RouteOf(protocol.MessageUndo); ok {
		t.Error("Inbound types should have no route")
	}
}

func TestJoinSendsInitAndRoster(t *testing.T) {
	hub := startHub(t)

	a := newTestClient(hub, "a", "room", 16)
	hub.register <- a

	env := expect(t, a, protocol.MessageInit)
	var init protocol.InitData
	if err := json.Unmarshal(env.Data, &init); err != nil {
		t.Fatalf("Failed to decode init: %v", err)
	}
	if init.SelfID != "a" {
		t.Errorf("Expected selfId 'a', got '%s'", init.SelfID)
	}
	if !strings.HasPrefix(init.AssignedColor, "#") {
		t.Errorf("Expected a hex color, got '%s'", init.AssignedColor)
	}
	if init.History == nil || len(init.History) != 0 {
		t.Errorf("Expected an empty history array, got %v", init.History)
	}

	env = expect(t, a, protocol.MessageUserUpdate)
	var roster protocol.UserUpdateData
	json.Unmarshal(env.Data, &roster)
	if len(roster.Roster) != 1 || roster.Roster[0].ID != "a" {
		t.Errorf("Expected roster [a], got %+v", roster.Roster)
	}

	b := join(t, hub, "b", "room")
	env = expect(t, a, protocol.MessageUserUpdate)
	json.Unmarshal(env.Data, &roster)
	if len(roster.Roster) != 2 {
		t.Errorf("Expected 2 participants, got %d", len(roster.Roster))
	}
	expect(t, b, protocol.MessageUserUpdate)

	if hub.GetClientCount() != 2 || hub.GetRoomCount() != 1 {
		t.Errorf("Expected 2 clients in 1 room, got %d in %d", hub.GetClientCount(), hub.GetRoomCount())
	}
}

func TestLateJoinerReceivesHistory(t *testing.T) {
	hub := startHub(t)
	a := join(t, hub, "a", "room")

	send(hub, a, start(1, 1))
	send(hub, a, point(2, 2))
	send(hub, a, simple(protocol.MessageEndStroke))
	expect(t, a, protocol.MessageHistoryUpdate)

	late := newTestClient(hub, "late", "room", 16)
	hub.register <- late
	env := expect(t, late, protocol.MessageInit)
	var init protocol.InitData
	json.Unmarshal(env.Data, &init)
	if len(init.History) != 1 || len(init.History[0].Points) != 2 {
		t.Errorf("Late joiner should see the committed stroke, got %+v", init.History)
	}
}

func TestLiveDrawingGoesToOthersOnly(t *testing.T) {
	hub := startHub(t)
	a := join(t, hub, "a", "room")
	b := join(t, hub, "b", "room")
	barrier(t, hub)
	drain(a)
	drain(b)

	send(hub, a, start(10, 20))
	env := expect(t, b, protocol.MessageRemoteStart)
	var rs protocol.RemoteStartData
	json.Unmarshal(env.Data, &rs)
	if rs.OwnerID != "a" || rs.Stroke.OwnerID != "a" || rs.Stroke.Points[0] != (board.Point{X: 10, Y: 20}) {
		t.Errorf("Unexpected remote_start payload: %+v", rs)
	}

	send(hub, a, point(11, 21))
	env = expect(t, b, protocol.MessageRemotePoint)
	var rp protocol.RemotePointData
	json.Unmarshal(env.Data, &rp)
	if rp.OwnerID != "a" || rp.X != 11 || rp.Y != 21 {
		t.Errorf("Unexpected remote_point payload: %+v", rp)
	}

	send(hub, a, protocol.Inbound{Type: protocol.MessageCursorMove, Point: protocol.PointData{X: 5, Y: 6}})
	expect(t, b, protocol.MessageRemoteCursor)

	barrier(t, hub)
	if got := drain(a); len(got) != 0 {
		t.Errorf("Sender should not receive its own live events, got %d", len(got))
	}
}

func TestCommitBroadcastsIdenticalSnapshotToEveryone(t *testing.T) {
	hub := startHub(t)
	clients := []*Client{
		join(t, hub, "a", "room"),
		join(t, hub, "b", "room"),
		join(t, hub, "c", "room"),
	}
	barrier(t, hub)
	for _, c := range clients {
		drain(c)
	}

	send(hub, clients[0], start(1, 1))
	send(hub, clients[0], point(2, 2))
	send(hub, clients[0], simple(protocol.MessageEndStroke))
	barrier(t, hub)

	var first []byte
	for _, c := range clients {
		envs := drain(c)
		if n := countType(envs, protocol.MessageHistoryUpdate); n != 1 {
			t.Fatalf("Client %s: expected exactly 1 history_update, got %d", c.id, n)
		}
		if n := countType(envs, protocol.MessageRemoteEnd); n != 1 {
			t.Errorf("Client %s: expected exactly 1 remote_end, got %d", c.id, n)
		}
		for _, env := range envs {
			if env.Type != protocol.MessageHistoryUpdate {
				continue
			}
			if first == nil {
				first = env.Data
			} else if string(first) != string(env.Data) {
				t.Errorf("Client %s saw a different snapshot", c.id)
			}
		}
	}
}

func TestUndoRedoBroadcast(t *testing.T) {
	hub := startHub(t)
	a := join(t, hub, "a", "room")
	b := join(t, hub, "b", "room")

	for i := 0; i < 2; i++ {
		send(hub, a, start(float64(i), 0))
		send(hub, a, simple(protocol.MessageEndStroke))
		expect(t, b, protocol.MessageHistoryUpdate)
	}

	send(hub, a, simple(protocol.MessageUndo))
	history := decodeHistory(t, expect(t, b, protocol.MessageHistoryUpdate))
	if len(history) != 2 || history[0].Hidden || !history[1].Hidden {
		t.Fatalf("Expected [visible, hidden], got %+v", history)
	}

	// b has nothing of its own to undo: no broadcast
	send(hub, b, simple(protocol.MessageUndo))
	send(hub, b, simple(protocol.MessageRedo))
	barrier(t, hub)
	if n := countType(drain(b), protocol.MessageHistoryUpdate); n != 0 {
		t.Errorf("No-op undo/redo must not broadcast, got %d updates", n)
	}

	send(hub, a, simple(protocol.MessageRedo))
	history = decodeHistory(t, expect(t, b, protocol.MessageHistoryUpdate))
	if history[1].Hidden || history[1].ID != "s2" {
		t.Errorf("Redo should restore s2 in place, got %+v", history)
	}
}

func TestDisconnectDiscardsDraft(t *testing.T) {
	hub := startHub(t)
	a := join(t, hub, "a", "room")
	b := join(t, hub, "b", "room")

	send(hub, b, start(1, 1))
	send(hub, b, point(2, 2))
	send(hub, b, point(3, 3))
	expect(t, a, protocol.MessageRemotePoint)

	hub.unregister <- b

	env := expect(t, a, protocol.MessageRemoteEnd)
	var end protocol.RemoteEndData
	json.Unmarshal(env.Data, &end)
	if end.OwnerID != "b" {
		t.Errorf("Expected remote_end for b, got %s", end.OwnerID)
	}
	env = expect(t, a, protocol.MessageUserUpdate)
	var roster protocol.UserUpdateData
	json.Unmarshal(env.Data, &roster)
	if len(roster.Roster) != 1 {
		t.Errorf("Expected 1 participant left, got %d", len(roster.Roster))
	}

	r, _ := hub.Room("room")
	if len(r.Board.Snapshot()) != 0 {
		t.Error("An unfinished stroke must never reach the log")
	}

	// Events from the departed client are ignored
	send(hub, b, simple(protocol.MessageEndStroke))
	barrier(t, hub)
	if len(r.Board.Snapshot()) != 0 {
		t.Error("Late end_stroke from a departed client must be ignored")
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := startHub(t)
	a := join(t, hub, "a", "red")
	b := join(t, hub, "b", "blue")
	barrier(t, hub)
	drain(b)

	send(hub, a, start(1, 1))
	send(hub, a, simple(protocol.MessageEndStroke))
	expect(t, a, protocol.MessageHistoryUpdate)
	barrier(t, hub)

	if got := drain(b); len(got) != 0 {
		t.Errorf("Other rooms should not receive broadcasts, got %d", len(got))
	}
	active := hub.GetActiveRooms()
	if active["red"] != 1 || active["blue"] != 1 {
		t.Errorf("Unexpected active rooms: %v", active)
	}
}

func TestSlowClientLossyDroppedThenEvicted(t *testing.T) {
	hub := startHub(t)
	a := join(t, hub, "a", "room")

	// init + user_update fill the buffer
	slow := newTestClient(hub, "slow", "room", 2)
	hub.register <- slow
	barrier(t, hub)
	drain(a)

	send(hub, a, protocol.Inbound{Type: protocol.MessageCursorMove, Point: protocol.PointData{X: 1, Y: 1}})
	barrier(t, hub)
	if hub.GetClientCount() != 2 {
		t.Fatalf("Dropping a lossy frame must not evict, got %d clients", hub.GetClientCount())
	}

	send(hub, a, start(1, 1))
	env := expect(t, a, protocol.MessageUserUpdate)
	var roster protocol.UserUpdateData
	json.Unmarshal(env.Data, &roster)
	if len(roster.Roster) != 1 || roster.Roster[0].ID != "a" {
		t.Errorf("Slow client should have been evicted, roster %+v", roster.Roster)
	}

	got := drain(slow)
	if len(got) != 2 {
		t.Errorf("Slow client should only hold its first 2 frames, got %d", len(got))
	}
	if _, ok := <-slow.send; ok {
		t.Error("Evicted client's send channel should be closed")
	}
}

func TestSessionsRecorded(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	hub := NewHub(database)
	go hub.Run()
	defer hub.Stop()

	a := join(t, hub, "a", "audit-room")
	hub.unregister <- a
	barrier(t, hub)

	s, err := database.GetSession("a")
	if err != nil || s == nil {
		t.Fatalf("Expected a session row, got %v", err)
	}
	if s.RoomID != "audit-room" || s.LeftAt == nil {
		t.Errorf("Unexpected session: %+v", s)
	}
}

func TestServeWsEndToEnd(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?room=e2e"

	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		return conn
	}
	read := func(conn *websocket.Conn, want protocol.MessageType) protocol.Envelope {
		conn.SetReadDeadline(time.Now().Add(waitTimeout))
		for {
			var env protocol.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				t.Fatalf("Read failed waiting for %s: %v", want, err)
			}
			if env.Type == want {
				return env
			}
		}
	}

	a := dial()
	defer a.Close()
	read(a, protocol.MessageInit)

	b := dial()
	defer b.Close()
	read(b, protocol.MessageInit)

	frames := []string{
		`{"type":"start_stroke","data":{"x":1,"y":1,"color":"#000000","size":3,"type":"brush"}}`,
		`{"type":"bogus"}`,
		`{"type":"draw_point","data":{"x":2,"y":2}}`,
		`{"type":"end_stroke"}`,
	}
	for _, f := range frames {
		if err := a.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	history := decodeHistory(t, read(b, protocol.MessageHistoryUpdate))
	if len(history) != 1 || len(history[0].Points) != 2 {
		t.Errorf("Expected one stroke with 2 points, got %+v", history)
	}

	a.Close()
	env := read(b, protocol.MessageUserUpdate)
	var roster protocol.UserUpdateData
	json.Unmarshal(env.Data, &roster)
	if len(roster.Roster) != 1 {
		t.Errorf("Expected 1 participant after disconnect, got %d", len(roster.Roster))
	}
}
