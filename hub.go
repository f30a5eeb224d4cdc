package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSMessage represents a command from the client
type WSMessage struct {
	Action  string `json:"action"`
	CaseID  string `json:"case,omitempty"`
	Content string `json:"content,omitempty"`
	Target  string `json:"target,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Client represents a websocket connection
type Client struct {
	conn    *websocket.Conn
	name    string
	writeMu sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

func (c *Client) send(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	LogWSMessage("OUT", c.name, string(message))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub fans session events out to every connected client
type Hub struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

// Emit implements Sink. Events are dropped when the hub is stopped.
func (h *Hub) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logError("hub.Emit: marshal", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// add registers a client. It reports false once the hub is stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (%s). Total: %d", client.name, total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				DebugLog("hub.unregister", "client %s disconnected", client.name)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn, client := range h.clients {
				if err := client.send(message); err != nil {
					log.Printf("WebSocket write error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// handleWebSocket upgrades the connection and feeds client commands to the server
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error from %s: %v", r.RemoteAddr, err)
		return
	}

	client := &Client{conn: conn, name: r.RemoteAddr}
	DebugLog("handleWebSocket", "WebSocket upgraded successfully for %s", client.name)
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	// Handle messages and disconnection
	go func() {
		defer s.hub.remove(conn)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleWSMessage(client, message)
		}
	}()
}

// handleWSMessage routes a client command. Turn-driving commands run in the
// background so the read loop stays responsive; their errors come back as error events.
func (s *server) handleWSMessage(client *Client, message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("WebSocket unmarshal error from %s: %v", client.name, err)
		s.sendError(client, "", errors.New("malformed command"))
		return
	}
	LogWSMessage("IN", client.name, string(message))

	switch msg.Action {
	case "start_game":
		if _, err := s.startGame(msg.CaseID); err != nil {
			s.sendError(client, msg.Action, err)
		}
	case "advance_turn":
		go func() {
			if err := s.advanceTurn(s.ctx); err != nil {
				s.sendError(client, msg.Action, err)
			}
		}()
	case "player_send":
		if err := s.playerSend(msg.Content); err != nil {
			s.sendError(client, msg.Action, err)
		}
	case "submit_vote":
		if err := s.submitVote(msg.Target, msg.Reason); err != nil {
			s.sendError(client, msg.Action, err)
		}
	default:
		s.sendError(client, msg.Action, errors.New("unknown action"))
	}
}

// sendError reports a failed command to the client that issued it
func (s *server) sendError(client *Client, action string, err error) {
	if !isUserError(err) {
		logError("ws "+action, err)
	}
	e := Event{Kind: EventError, Content: action, Error: err.Error()}
	if cur, curErr := s.sessions.Current(); curErr == nil {
		e.GameID = cur.ID
	}
	data, mErr := json.Marshal(e)
	if mErr != nil {
		return
	}
	if werr := client.send(data); werr != nil {
		log.Printf("WebSocket write error to %s: %v", client.name, werr)
	}
}

// isUserError reports errors caused by the command rather than by the server
func isUserError(err error) bool {
	for _, target := range []error{ErrTurnInProgress, ErrWrongPhase, ErrGameEnded, ErrWaitingForPlayer,
		ErrEmptyMessage, ErrAlreadyVoted, ErrNoGame, errUnknownCase, context.Canceled} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
