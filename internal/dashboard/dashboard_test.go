package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/jfcamacho/cajasync/internal/syncer"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(&Config{
		Addr:   "127.0.0.1:0", // random available port
		Logger: log.New(io.Discard, "", 0),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	time.Sleep(50 * time.Millisecond)
	return server
}

func dialTestClient(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{
		Addr:   "127.0.0.1:0",
		Logger: log.New(io.Discard, "", 0),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if server.GetAddr() == "" {
		t.Fatal("server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	server := setupTestServer(t)
	conn := dialTestClient(t, server)

	if count := server.ClientCount(); count != 1 {
		t.Errorf("client count = %d, want 1", count)
	}

	payload, _ := json.Marshal(QueueData{Depth: 3})
	server.Broadcast(Message{Type: MessageTypeQueue, Data: payload})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeQueue {
		t.Errorf("message type = %s, want %s", msg.Type, MessageTypeQueue)
	}
	if msg.Timestamp.IsZero() {
		t.Error("broadcast should stamp the message")
	}

	var data QueueData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal queue data: %v", err)
	}
	if data.Depth != 3 {
		t.Errorf("depth = %d, want 3", data.Depth)
	}
}

func TestHandlerOnPass(t *testing.T) {
	server := setupTestServer(t)
	conn := dialTestClient(t, server)

	handler := NewHandler(server, log.New(io.Discard, "", 0))
	handler.OnPass(&syncer.Summary{Success: true, SyncedCount: 2}, 1)

	// OnPass emits the pass result followed by the queue counter.
	passMsg := readMessage(t, conn)
	if passMsg.Type != MessageTypeSyncPass {
		t.Fatalf("first message type = %s, want %s", passMsg.Type, MessageTypeSyncPass)
	}
	var pass SyncPassData
	if err := json.Unmarshal(passMsg.Data, &pass); err != nil {
		t.Fatalf("failed to unmarshal sync pass data: %v", err)
	}
	if !pass.Success || pass.SyncedCount != 2 || pass.Depth != 1 {
		t.Errorf("sync pass data = %+v, want success with 2 synced and depth 1", pass)
	}

	queueMsg := readMessage(t, conn)
	if queueMsg.Type != MessageTypeQueue {
		t.Errorf("second message type = %s, want %s", queueMsg.Type, MessageTypeQueue)
	}
}

func TestHandlerReportsPassErrors(t *testing.T) {
	server := setupTestServer(t)
	conn := dialTestClient(t, server)

	handler := NewHandler(server, log.New(io.Discard, "", 0))
	summary := &syncer.Summary{
		Success: false,
		Errors: []syncer.EntryError{
			{EntryID: 7, Table: "transacciones", Operation: "INSERT",
				Err: context.DeadlineExceeded},
		},
	}
	handler.OnPass(summary, 1)

	msg := readMessage(t, conn)
	var pass SyncPassData
	if err := json.Unmarshal(msg.Data, &pass); err != nil {
		t.Fatalf("failed to unmarshal sync pass data: %v", err)
	}
	if pass.Success {
		t.Error("failed pass should not report success")
	}
	if len(pass.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry", pass.Errors)
	}
}
