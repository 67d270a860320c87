package api

import (
	"bufio"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"mailbridge/models"
)

// NotificationHandler fans ingestion status events out to observers
// that are not the run's initiator, over SSE or WebSocket.
type NotificationHandler struct {
	subscribers map[string]chan models.StatusEvent
	mu          sync.RWMutex
	log         *log.Entry
}

// NewNotificationHandler creates the broadcast hub.
func NewNotificationHandler(logger *log.Entry) *NotificationHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &NotificationHandler{
		subscribers: make(map[string]chan models.StatusEvent),
		log:         logger,
	}
}

func (h *NotificationHandler) subscribe() (string, chan models.StatusEvent) {
	id := uuid.New().String()
	ch := make(chan models.StatusEvent, 16)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *NotificationHandler) unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
	h.mu.Unlock()
}

// HandleSSE streams broadcast events over server-sent events.
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	setSSEHeaders(c)

	id, ch := h.subscribe()
	h.log.WithField("subscriber", id).Info("SSE subscriber connected")

	ctx := c.Context()
	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.unsubscribe(id)
			h.log.WithField("subscriber", id).Info("SSE subscriber disconnected")
		}()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := writeSSE(w, event); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}))
	return nil
}

// HandleWebSocket streams broadcast events over a WebSocket.
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	id, ch := h.subscribe()
	h.log.WithField("subscriber", id).Info("WebSocket subscriber connected")
	defer func() {
		h.unsubscribe(id)
		c.Close()
		h.log.WithField("subscriber", id).Info("WebSocket subscriber disconnected")
	}()

	for event := range ch {
		if err := c.WriteJSON(event); err != nil {
			h.log.WithField("subscriber", id).WithError(err).Warn("WebSocket write failed")
			return
		}
	}
}

// Broadcast sends a status event to every subscriber. Slow subscribers
// with a full channel miss the event rather than stalling the run.
func (h *NotificationHandler) Broadcast(event models.StatusEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.log.WithField("subscriber", id).Warn("subscriber channel full, dropping event")
		}
	}
}
