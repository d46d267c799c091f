package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/chordscape/chordscape/logging"
)

// statusMessage reports analysis progress to the visualizer
type statusMessage struct {
	Type     string `json:"type"` // "status_update"
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// metadataMessage carries the estimated key and source of an analysis
type metadataMessage struct {
	Type   string `json:"type"` // "metadata"
	Key    string `json:"key"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// chordNotes is one playable chord of the sequence: its time span, the MIDI
// notes folded into the visualizer's range, and the chord label
type chordNotes struct {
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Notes    []int   `json:"notes"`
	Chord    string  `json:"chord"`
}

// chordSequenceMessage carries the full playable chord sequence
type chordSequenceMessage struct {
	Type   string       `json:"type"` // "chord_sequence"
	Chords []chordNotes `json:"chords"`
}

// clientCommand is what the visualizer may send back
type clientCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	URL     string `json:"url"`
}

// Hub fans analysis messages out to every connected visualizer client
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	logger  logging.Logger
}

// NewHub creates an empty client hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger: logging.WithFields(logging.Fields{
			"component": "ws_hub",
		}),
	}
}

// Broadcast sends a JSON message to every connected client. Clients whose
// send fails are dropped.
func (h *Hub) Broadcast(message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error(err, "failed to encode broadcast message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := websocket.Message.Send(conn, string(payload)); err != nil {
			h.logger.Warn("dropping unreachable client", logging.Fields{
				"error": err.Error(),
			})
			h.remove(conn)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.logger.Info("client connected", logging.Fields{"clients": h.ClientCount()})
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Handler returns the websocket handler. Each connection gets its own
// context, cancelled on disconnect; analyses started by this client's
// commands carry it, so a departed client's work stops at the next stage
// boundary.
func (h *Hub) Handler(onAnalyze func(ctx context.Context, url string)) websocket.Handler {
	return func(conn *websocket.Conn) {
		h.add(conn)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		defer h.remove(conn)

		for {
			var raw string
			if err := websocket.Message.Receive(conn, &raw); err != nil {
				if err != io.EOF {
					h.logger.Debug("client read failed", logging.Fields{
						"error": err.Error(),
					})
				}
				return
			}

			var cmd clientCommand
			if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
				h.logger.Warn("ignoring malformed client message")
				continue
			}

			if cmd.Type != "command" {
				continue
			}
			switch cmd.Command {
			case "analyze_youtube":
				if cmd.URL == "" {
					h.Broadcast(statusMessage{
						Type:    "status_update",
						Status:  "error",
						Message: "Missing URL in analyze command",
					})
					continue
				}
				go onAnalyze(ctx, cmd.URL)
			default:
				h.logger.Warn("unknown client command", logging.Fields{
					"command": cmd.Command,
				})
			}
		}
	}
}
