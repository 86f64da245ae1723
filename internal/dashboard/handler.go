package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/jfcamacho/cajasync/internal/syncer"
)

// Handler formats sync events as dashboard messages. It bridges between
// the daemon's OnPass callback and the WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
	}
}

// OnPass handles completed sync passes. Wire it into daemon.Config.OnPass.
func (h *Handler) OnPass(summary *syncer.Summary, depth int) {
	data := SyncPassData{
		Success:     summary.Success,
		SyncedCount: summary.SyncedCount,
		Depth:       depth,
	}
	for _, e := range summary.Errors {
		data.Errors = append(data.Errors, e.Error())
	}

	h.broadcast(MessageTypeSyncPass, data)
	h.broadcast(MessageTypeQueue, QueueData{Depth: depth})
}

// OnQueueDepth broadcasts the pending-sync counter on its own, for
// mutations made while no pass is running.
func (h *Handler) OnQueueDepth(depth int) {
	h.broadcast(MessageTypeQueue, QueueData{Depth: depth})
}

// OnPullComplete reports a finished startup pull.
func (h *Handler) OnPullComplete() {
	h.broadcast(MessageTypePull, struct{}{})
}

func (h *Handler) broadcast(typ MessageType, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      payload,
	})
}
